//go:build !gocv

package extractor

import (
	"fmt"
	"log/slog"

	"github.com/bdougie/lastframe/internal/scanner"
)

// newGoCV returns an error when the binary was built without OpenCV support.
func newGoCV(logger *slog.Logger) (scanner.Opener, error) {
	return nil, fmt.Errorf("gocv decoder is not available, rebuild with -tags gocv")
}
