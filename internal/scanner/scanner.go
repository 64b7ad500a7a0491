// Package scanner walks a decoded frame stream once and keeps the last frame
// that is not blank.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bdougie/lastframe/internal/blank"
	"github.com/bdougie/lastframe/internal/models"
)

// FrameSource produces frames in decode order.
type FrameSource interface {
	// Next returns the next frame, or io.EOF once the stream is exhausted.
	// Each returned frame is owned by the caller.
	Next() (*models.Frame, error)

	// Close releases the decoder. It is called exactly once per source.
	Close() error
}

// Opener turns a video path into a FrameSource.
type Opener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// Selection is the outcome of a scan. Frame is nil when no frame in the
// stream was non-blank, including when the stream was empty.
type Selection struct {
	Frame   *models.Frame
	Scanned int
	Blank   int
}

// Found reports whether a non-blank frame was retained.
func (s *Selection) Found() bool {
	return s != nil && s.Frame != nil
}

// FindLastNonBlank pulls frames from src until it is exhausted and returns the
// most recent frame classified as non-blank. It does not close src.
func FindLastNonBlank(src FrameSource, tolerance float64) (*Selection, error) {
	sel := &Selection{}
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return sel, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %d: %w", sel.Scanned, err)
		}
		if err := frame.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", sel.Scanned, err)
		}
		frame.Index = sel.Scanned
		sel.Scanned++

		if blank.IsBlank(frame, tolerance) {
			sel.Blank++
			continue
		}
		sel.Frame = frame
	}
}

// Scan opens path with opener, runs FindLastNonBlank over it and closes the
// source on every exit path. Open errors are returned as the opener reported
// them, so only openers decide what counts as models.ErrInputUnreadable.
func Scan(ctx context.Context, opener Opener, path string, tolerance float64) (sel *Selection, err error) {
	src, err := opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close frame source: %w", cerr))
			sel = nil
		}
	}()

	return FindLastNonBlank(src, tolerance)
}
