// Package extractor opens video files as streams of decoded frames.
//
// Two decoders are available: ffmpeg (default, needs the ffmpeg and ffprobe
// binaries on PATH) and OpenCV through gocv (needs a build with -tags gocv).
package extractor

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/scanner"
)

// Decoder names accepted by New.
const (
	DecoderFFmpeg = "ffmpeg"
	DecoderGoCV   = "gocv"
)

// New returns the frame source opener registered under name.
func New(name string, logger *slog.Logger) (scanner.Opener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch name {
	case "", DecoderFFmpeg:
		return NewFFmpeg(logger), nil
	case DecoderGoCV:
		return newGoCV(logger)
	default:
		return nil, fmt.Errorf("unsupported decoder: %q", name)
	}
}

// checkVideo makes sure videoPath names a regular file before a decoder is started.
func checkVideo(videoPath string) error {
	info, err := os.Stat(videoPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: video file does not exist at path: '%s'", models.ErrInputUnreadable, videoPath)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: '%s' is a directory", models.ErrInputUnreadable, videoPath)
	}
	return nil
}
