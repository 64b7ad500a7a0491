// Package blank decides whether a decoded frame is a single near-uniform color.
//
// A frame is treated as a cloud of Height*Width points in a Channels-dimensional
// color space. Its gravity center is the per-channel mean of those points. The
// frame is blank when every sample lies within the tolerance of its channel's
// mean.
package blank

import (
	"math"

	"github.com/bdougie/lastframe/internal/models"
)

// DefaultTolerance is the allowed per-sample deviation used when callers do not pick one.
const DefaultTolerance = 40

// GravityCenter returns the per-channel arithmetic mean of the frame.
// Sums are accumulated in float64 so large frames cannot overflow.
func GravityCenter(f *models.Frame) []float64 {
	sums := make([]float64, f.Channels)
	for i, v := range f.Pix {
		sums[i%f.Channels] += float64(v)
	}

	n := float64(f.Points())
	for c := range sums {
		sums[c] /= n
	}
	return sums
}

// IsBlank reports whether every sample of the frame is within tolerance of its
// channel's mean. A uniform frame is blank for any tolerance >= 0.
func IsBlank(f *models.Frame, tolerance float64) bool {
	center := GravityCenter(f)

	// Compare sample by sample instead of building a broadcast array of means.
	for i, v := range f.Pix {
		if math.Abs(float64(v)-center[i%f.Channels]) > tolerance {
			return false
		}
	}
	return true
}

// MaxDeviation returns the largest absolute distance of any sample from its
// channel's mean. IsBlank(f, t) is equivalent to MaxDeviation(f) <= t.
func MaxDeviation(f *models.Frame) float64 {
	center := GravityCenter(f)

	var worst float64
	for i, v := range f.Pix {
		if d := math.Abs(float64(v) - center[i%f.Channels]); d > worst {
			worst = d
		}
	}
	return worst
}
