package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/scanner"
)

// FFmpeg decodes videos by piping raw BGR frames out of an ffmpeg process.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	logger      *slog.Logger
}

// NewFFmpeg creates an opener that runs the ffmpeg and ffprobe found on PATH.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		logger:      logger,
	}
}

// Open probes the first video stream of videoPath and starts decoding it.
func (e *FFmpeg) Open(ctx context.Context, videoPath string) (scanner.FrameSource, error) {
	if err := checkVideo(videoPath); err != nil {
		return nil, err
	}

	width, height, err := e.probe(ctx, videoPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	// Rotation metadata is ignored so that every frame matches the probed size.
	cmd := exec.CommandContext(ctx, e.FFmpegPath,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	e.logger.Debug("decoding video",
		"path", videoPath,
		"width", width,
		"height", height,
		"pid", cmd.Process.Pid,
	)

	return &ffmpegSource{
		ctx:    ctx,
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		width:  width,
		height: height,
	}, nil
}

// probe returns the dimensions of the first video stream. Only a failing
// ffprobe run or output without a usable stream marks the video unreadable;
// an ffprobe that cannot be started is returned as a plain error.
func (e *FFmpeg) probe(ctx context.Context, videoPath string) (int, int, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, 0, fmt.Errorf("failed to run ffprobe: %w", err)
		}
		return 0, 0, fmt.Errorf("%w: ffprobe: %v: %s", models.ErrInputUnreadable, err, strings.TrimSpace(string(exitErr.Stderr)))
	}

	width, height, err := parseDimensions(string(output))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ffprobe: %v", models.ErrInputUnreadable, err)
	}
	return width, height, nil
}

// parseDimensions reads ffprobe's "WIDTHxHEIGHT" line.
func parseDimensions(output string) (int, int, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	parts := strings.Split(strings.TrimSuffix(line, "x"), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output: %q", line)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height: %w", err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid video size %dx%d", width, height)
	}
	return width, height, nil
}

type ffmpegSource struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer

	width  int
	height int
	read   int

	waited  bool
	waitErr error
	closed  bool
}

// Next reads one bgr24 frame from the pipe.
func (s *ffmpegSource) Next() (*models.Frame, error) {
	if s.waited {
		return nil, io.EOF
	}

	frame := models.NewFrame(s.height, s.width, 3, models.FormatBGR)
	_, err := io.ReadFull(s.stdout, frame.Pix)
	switch {
	case err == nil:
		s.read++
		return frame, nil

	case errors.Is(err, io.EOF):
		if werr := s.wait(); werr != nil {
			// A cancelled context kills ffmpeg, which says nothing about the video.
			if s.ctx != nil && s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			if s.read == 0 {
				return nil, fmt.Errorf("%w: ffmpeg: %v: %s", models.ErrInputUnreadable, werr, s.stderrText())
			}
			return nil, fmt.Errorf("ffmpeg failed after %d frames: %v: %s", s.read, werr, s.stderrText())
		}
		return nil, io.EOF

	case errors.Is(err, io.ErrUnexpectedEOF):
		werr := s.wait()
		return nil, fmt.Errorf("truncated frame after %d frames (ffmpeg: %v): %s", s.read, werr, s.stderrText())

	default:
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}
}

func (s *ffmpegSource) wait() error {
	if !s.waited {
		s.waited = true
		s.waitErr = s.cmd.Wait()
	}
	return s.waitErr
}

func (s *ffmpegSource) stderrText() string {
	return strings.TrimSpace(s.stderr.String())
}

// Close stops ffmpeg if it is still running and reaps it.
func (s *ffmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.waited {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop ffmpeg: %w", err)
	}
	// The exit status of a killed process says nothing about the video.
	_ = s.wait()
	return nil
}
