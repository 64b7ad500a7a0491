//go:build gocv

package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/scanner"
)

// GoCV decodes videos with OpenCV's VideoCapture.
type GoCV struct {
	logger *slog.Logger
}

func newGoCV(logger *slog.Logger) (scanner.Opener, error) {
	return &GoCV{logger: logger}, nil
}

// Open starts an OpenCV capture on videoPath.
func (g *GoCV) Open(ctx context.Context, videoPath string) (scanner.FrameSource, error) {
	if err := checkVideo(videoPath); err != nil {
		return nil, err
	}

	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: opencv could not open '%s'", models.ErrInputUnreadable, videoPath)
	}

	g.logger.Debug("decoding video", "path", videoPath, "backend", capture.CodecString())

	return &gocvSource{
		capture: capture,
		mat:     gocv.NewMat(),
	}, nil
}

type gocvSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
}

// Next copies the next decoded Mat into a fresh frame.
func (s *gocvSource) Next() (*models.Frame, error) {
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	channels := s.mat.Channels()
	var format models.PixelFormat
	switch channels {
	case 1:
		format = models.FormatGray
	case 3:
		format = models.FormatBGR
	case 4:
		format = models.FormatBGRA
	default:
		return nil, fmt.Errorf("%w: %d channels", models.ErrUnsupportedFrame, channels)
	}

	frame := &models.Frame{
		Height:   s.mat.Rows(),
		Width:    s.mat.Cols(),
		Channels: channels,
		Pix:      s.mat.ToBytes(),
		Format:   format,
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// Close releases the Mat and the capture.
func (s *gocvSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.mat.Close(); err != nil {
		s.capture.Close()
		return fmt.Errorf("failed to release mat: %w", err)
	}
	return s.capture.Close()
}
