package models

import "errors"

var (
	// ErrInputUnreadable is returned when a video cannot be opened or decoded at all.
	ErrInputUnreadable = errors.New("lastframe: input unreadable")

	// ErrOutputWrite is returned when the output directory or image cannot be written.
	ErrOutputWrite = errors.New("lastframe: output write failed")

	// ErrMalformedFilename is returned when a video name cannot be split into base and extension.
	ErrMalformedFilename = errors.New("lastframe: malformed video filename")

	// ErrUnsupportedFrame is returned for frames whose shape or format cannot be handled.
	ErrUnsupportedFrame = errors.New("lastframe: unsupported frame")
)
