package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lmittmann/tint"

	"github.com/bdougie/lastframe/internal/analyzer"
	"github.com/bdougie/lastframe/internal/config"
	"github.com/bdougie/lastframe/internal/extractor"
	"github.com/bdougie/lastframe/internal/metrics"
	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/storage"
)

const usage = "Usage: lastframe --video path/to/video.mp4 [--video ...] [--output dir] [--tolerance 40] [--decoder ffmpeg|gocv] [--describe] [--similar n] [--debug]"

// options holds command line overrides on top of the environment config.
type options struct {
	videos    []string
	outputDir string
	tolerance *float64
	decoder   string
	describe  bool
	similar   int
	debug     bool
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}

	value := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("missing value for %s", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--video":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			opts.videos = append(opts.videos, v)
			i++
		case "--output":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			opts.outputDir = v
			i++
		case "--tolerance":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			tolerance, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid tolerance %q: %w", v, err)
			}
			opts.tolerance = &tolerance
			i++
		case "--decoder":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			opts.decoder = v
			i++
		case "--similar":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid --similar value %q", v)
			}
			opts.similar = n
			i++
		case "--describe":
			opts.describe = true
		case "--debug":
			opts.debug = true
		default:
			return nil, fmt.Errorf("unknown argument %q", args[i])
		}
	}

	if len(opts.videos) == 0 {
		return nil, errors.New("at least one --video is required")
	}
	return opts, nil
}

// apply copies the command line overrides into cfg and revalidates it.
func (o *options) apply(cfg *config.Config) error {
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.tolerance != nil {
		cfg.Tolerance = *o.tolerance
	}
	if o.decoder != "" {
		cfg.Decoder = o.decoder
	}
	if o.describe {
		cfg.Describe = true
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg.Validate()
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := opts.apply(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Configure logger
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel(cfg.LogLevel),
			TimeFormat: "15:04:05",
		}),
	)

	if err := run(context.Background(), logger, cfg, opts); err != nil {
		logger.Error("lastframe failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts *options) error {
	opener, err := extractor.New(cfg.Decoder, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	processorOpts := []analyzer.Option{
		analyzer.WithTolerance(cfg.Tolerance),
		analyzer.WithOutputDir(cfg.OutputDir),
		analyzer.WithMetrics(m),
	}

	if cfg.Manifest {
		processorOpts = append(processorOpts, analyzer.WithStorage(storage.NewStorage(cfg.OutputDir)))
	}

	var pg *storage.PostgresStorage
	if cfg.DatabaseURL != "" {
		pg, err = storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		processorOpts = append(processorOpts, analyzer.WithStorage(pg))
	}

	if cfg.Describe {
		visionAgent, err := analyzer.NewAgent(ctx, logger, analyzer.AgentConfig{
			BaseURL: cfg.OllamaURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vision agent: %w", err)
		}
		processorOpts = append(processorOpts, analyzer.WithDescriber(visionAgent))
	}

	processor := analyzer.NewProcessor(opener, logger, processorOpts...)

	var failed int
	for _, video := range opts.videos {
		result, err := processor.FetchLastNonBlankFrame(ctx, video)
		if err != nil {
			failed++
			logger.Error("failed to process video", "video", video, "error", err)
			continue
		}
		printResult(result)

		if pg != nil && opts.similar > 0 && result.Found {
			printSimilar(ctx, logger, pg, result, opts.similar)
		}
	}

	var errs []error
	if err := processor.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush results: %w", err))
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d videos failed", failed, len(opts.videos)))
	}
	return errors.Join(errs...)
}

func printResult(result *models.Result) {
	if !result.Found {
		fmt.Printf("%s: no non-blank frame\n", result.VideoPath)
		return
	}
	fmt.Printf("%s: %s\n", result.VideoPath, result.OutputPath)
	if result.Description != "" {
		fmt.Printf("  %s\n", result.Description)
	}
}

func printSimilar(ctx context.Context, logger *slog.Logger, pg *storage.PostgresStorage, result *models.Result, limit int) {
	// The row just inserted is always the closest match.
	matches, err := pg.SearchSimilarFrames(ctx, result.GravityCenter, limit+1)
	if err != nil {
		logger.Warn("failed to search similar frames", "video", result.VideoPath, "error", err)
		return
	}
	shown := 0
	for _, match := range matches {
		if match.VideoPath == result.VideoPath || shown == limit {
			continue
		}
		fmt.Printf("  similar: %s (%s, distance %.2f)\n", match.VideoPath, match.OutputPath, match.Distance)
		shown++
	}
}
