// Package analyzer ties scanning, frame output and result recording together.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdougie/lastframe/internal/blank"
	"github.com/bdougie/lastframe/internal/metrics"
	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/scanner"
	"github.com/bdougie/lastframe/internal/storage"
)

// Describer produces a text description of a saved frame.
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

type Processor struct {
	opener    scanner.Opener
	describer Describer
	storages  []storage.Storage
	metrics   *metrics.Metrics
	logger    *slog.Logger

	tolerance float64
	outputDir string
}

type Option func(*Processor)

// WithTolerance sets the allowed blank-frame deviation. Defaults to blank.DefaultTolerance.
func WithTolerance(tolerance float64) Option {
	return func(p *Processor) { p.tolerance = tolerance }
}

// WithOutputDir sets where frames are written. Defaults to storage.DefaultOutputDir.
func WithOutputDir(dir string) Option {
	return func(p *Processor) { p.outputDir = dir }
}

// WithDescriber enables a description of every saved frame.
func WithDescriber(d Describer) Option {
	return func(p *Processor) { p.describer = d }
}

// WithStorage records every result in s.
func WithStorage(s storage.Storage) Option {
	return func(p *Processor) { p.storages = append(p.storages, s) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func NewProcessor(opener scanner.Opener, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		opener:    opener,
		logger:    logger,
		tolerance: blank.DefaultTolerance,
		outputDir: storage.DefaultOutputDir,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchLastNonBlankFrame scans videoPath and writes its last non-blank frame
// as a PNG. When every frame is blank, or the video has none, the result has
// Found set to false and the error is nil. Unreadable input, a malformed file
// name and output failures are returned as errors wrapping the models sentinels.
func (p *Processor) FetchLastNonBlankFrame(ctx context.Context, videoPath string) (*models.Result, error) {
	log := p.logger.With("video", videoPath)

	// Reject names we cannot derive an output path from before decoding anything.
	videoName, err := storage.VideoName(videoPath)
	if err != nil {
		p.observe(nil, metrics.OutcomeError)
		return nil, err
	}

	start := time.Now()
	log.Debug("scanning video", "tolerance", p.tolerance)

	sel, err := scanner.Scan(ctx, p.opener, videoPath, p.tolerance)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ObserveDuration(time.Since(start))
		}
		if errors.Is(err, models.ErrInputUnreadable) {
			p.observe(nil, metrics.OutcomeUnreadable)
		} else {
			p.observe(nil, metrics.OutcomeError)
		}
		return nil, fmt.Errorf("failed to scan '%s': %w", videoPath, err)
	}

	result := &models.Result{
		VideoPath:     videoPath,
		VideoName:     videoName,
		FrameIndex:    -1,
		FramesScanned: sel.Scanned,
		BlankFrames:   sel.Blank,
		Tolerance:     p.tolerance,
		CreatedAt:     start,
	}

	if !sel.Found() {
		result.Duration = time.Since(start)
		log.Info("no non-blank frame found", "frames", sel.Scanned, "blank", sel.Blank)
		p.record(ctx, log, result)
		p.observe(result, metrics.OutcomeNone)
		return result, nil
	}

	outputPath, err := storage.SaveFrame(p.outputDir, videoPath, sel.Frame)
	if err != nil {
		result.Duration = time.Since(start)
		p.observe(result, metrics.OutcomeError)
		return nil, err
	}

	result.Found = true
	result.OutputPath = outputPath
	result.FrameIndex = sel.Frame.Index
	result.GravityCenter = blank.GravityCenter(sel.Frame)
	result.Duration = time.Since(start)

	log.Info("saved last non-blank frame",
		"output", outputPath,
		"frame", sel.Frame.Index,
		"frames", sel.Scanned,
		"blank", sel.Blank,
		"duration", result.Duration.Round(time.Millisecond),
	)

	if p.describer != nil {
		description, err := p.describer.Describe(ctx, outputPath)
		if err != nil {
			log.Warn("failed to describe frame", "error", err)
		} else {
			result.Description = description
		}
	}

	p.record(ctx, log, result)
	p.observe(result, metrics.OutcomeFound)
	return result, nil
}

// Flush flushes every configured storage.
func (p *Processor) Flush() error {
	var errs []error
	for _, s := range p.storages {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record stores result everywhere configured. Storage failures are logged;
// the frame itself has already been written.
func (p *Processor) record(ctx context.Context, log *slog.Logger, result *models.Result) {
	for _, s := range p.storages {
		if err := s.AddResult(ctx, *result); err != nil {
			log.Error("failed to record result", "error", err)
		}
	}
}

func (p *Processor) observe(result *models.Result, outcome string) {
	if p.metrics != nil {
		p.metrics.Observe(result, outcome)
	}
}
