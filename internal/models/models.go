package models

import (
	"fmt"
	"time"
)

// PixelFormat names the channel order of a frame's interleaved samples.
// Classification ignores it; only image encoding needs it.
type PixelFormat int

const (
	FormatBGR PixelFormat = iota
	FormatRGB
	FormatGray
	FormatBGRA
	FormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGR:
		return "bgr"
	case FormatRGB:
		return "rgb"
	case FormatGray:
		return "gray"
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Frame is one decoded picture: Height x Width points with Channels samples each,
// stored row-major and channel-interleaved in Pix.
type Frame struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
	Format   PixelFormat
	Index    int // position in decode order, starting at 0
}

// NewFrame allocates a zeroed frame.
func NewFrame(height, width, channels int, format PixelFormat) *Frame {
	return &Frame{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
		Format:   format,
	}
}

// At returns the sample for channel c of the pixel at (x, y).
func (f *Frame) At(x, y, c int) uint8 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// Set stores v as the sample for channel c of the pixel at (x, y).
func (f *Frame) Set(x, y, c int, v uint8) {
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// Points returns the number of pixels in the frame.
func (f *Frame) Points() int {
	return f.Height * f.Width
}

// Validate checks the frame shape against its buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrUnsupportedFrame)
	}
	if f.Height < 1 || f.Width < 1 || f.Channels < 1 {
		return fmt.Errorf("%w: shape %dx%dx%d", ErrUnsupportedFrame, f.Height, f.Width, f.Channels)
	}
	if want := f.Height * f.Width * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer has %d samples, shape needs %d", ErrUnsupportedFrame, len(f.Pix), want)
	}
	return nil
}

// Result represents the outcome of looking for the last non-blank frame of a video
type Result struct {
	VideoPath     string        `json:"video_path"`
	VideoName     string        `json:"video_name"`
	Found         bool          `json:"found"`
	OutputPath    string        `json:"output_path,omitempty"`
	FrameIndex    int           `json:"frame_index"`
	FramesScanned int           `json:"frames_scanned"`
	BlankFrames   int           `json:"blank_frames"`
	GravityCenter []float64     `json:"gravity_center,omitempty"`
	Description   string        `json:"description,omitempty"`
	Tolerance     float64       `json:"tolerance"`
	Duration      time.Duration `json:"duration_ns"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FrameSearchResult is a stored frame ranked by color distance to a query.
type FrameSearchResult struct {
	VideoName  string
	VideoPath  string
	OutputPath string
	FrameIndex int
	Distance   float64
}
