package storage

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/bdougie/lastframe/internal/models"
)

// DefaultOutputDir is where frames are written when no directory is configured.
const DefaultOutputDir = "tmp"

const frameSuffix = "_non_blank_frame.png"

// VideoName returns the video's file name without its extension. Only the
// last dot separates the extension, so "a.b.mp4" gives "a.b".
func VideoName(videoPath string) (string, error) {
	name := filepath.Base(videoPath)
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return "", fmt.Errorf("%w: '%s'", models.ErrMalformedFilename, name)
	}
	return name[:dot], nil
}

// OutputPath returns where the frame for videoPath is written inside outputDir.
func OutputPath(outputDir, videoPath string) (string, error) {
	videoName, err := VideoName(videoPath)
	if err != nil {
		return "", err
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return filepath.Join(outputDir, videoName+frameSuffix), nil
}

// SaveFrame writes frame as a PNG into outputDir, creating the directory if
// needed, and returns the file path. Existing files are overwritten.
func SaveFrame(outputDir, videoPath string, frame *models.Frame) (string, error) {
	framePath, err := OutputPath(outputDir, videoPath)
	if err != nil {
		return "", err
	}

	img, err := toImage(frame)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrOutputWrite, err)
	}

	if err := os.MkdirAll(filepath.Dir(framePath), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory '%s': %v", models.ErrOutputWrite, filepath.Dir(framePath), err)
	}

	// Write to a temp file first so a failed encode never leaves a partial PNG behind.
	tmp, err := os.CreateTemp(filepath.Dir(framePath), ".frame-*.png")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create frame file: %v", models.ErrOutputWrite, err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: failed to encode png: %v", models.ErrOutputWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to write frame file: %v", models.ErrOutputWrite, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOutputWrite, err)
	}
	if err := os.Rename(tmp.Name(), framePath); err != nil {
		return "", fmt.Errorf("%w: failed to move frame into place: %v", models.ErrOutputWrite, err)
	}

	return framePath, nil
}

// toImage converts interleaved samples to an image the png encoder understands.
func toImage(f *models.Frame) (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, f.Width, f.Height)

	switch {
	case f.Format == models.FormatGray && f.Channels == 1:
		img := image.NewGray(rect)
		copy(img.Pix, f.Pix)
		return img, nil

	case (f.Format == models.FormatBGR || f.Format == models.FormatRGB) && f.Channels == 3:
		img := image.NewNRGBA(rect)
		r, b := 0, 2
		if f.Format == models.FormatBGR {
			r, b = 2, 0
		}
		for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
			img.Pix[j] = f.Pix[i+r]
			img.Pix[j+1] = f.Pix[i+1]
			img.Pix[j+2] = f.Pix[i+b]
			img.Pix[j+3] = 0xff
		}
		return img, nil

	case (f.Format == models.FormatBGRA || f.Format == models.FormatRGBA) && f.Channels == 4:
		img := image.NewNRGBA(rect)
		copy(img.Pix, f.Pix)
		if f.Format == models.FormatBGRA {
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
			}
		}
		return img, nil
	}

	return nil, fmt.Errorf("%w: %d channels in %s order", models.ErrUnsupportedFrame, f.Channels, f.Format)
}
