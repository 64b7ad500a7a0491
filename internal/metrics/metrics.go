// Package metrics counts scan work for the node-exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bdougie/lastframe/internal/models"
)

// Outcome labels for VideosProcessedTotal.
const (
	OutcomeFound      = "found"
	OutcomeNone       = "none"
	OutcomeUnreadable = "unreadable"
	OutcomeError      = "error"
)

// Metrics groups the collectors of one process on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	FramesScannedTotal   prometheus.Counter
	BlankFramesTotal     prometheus.Counter
	VideosProcessedTotal *prometheus.CounterVec
	ScanDuration         prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FramesScannedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastframe_frames_scanned_total",
			Help: "Total number of decoded frames classified",
		}),
		BlankFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lastframe_blank_frames_total",
			Help: "Total number of frames classified as blank",
		}),
		VideosProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lastframe_videos_processed_total",
			Help: "Total number of videos processed, by outcome",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lastframe_scan_duration_seconds",
			Help:    "Duration of a full scan of one video",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
	}
	m.Registry.MustRegister(
		m.FramesScannedTotal,
		m.BlankFramesTotal,
		m.VideosProcessedTotal,
		m.ScanDuration,
	)
	return m
}

// Observe records one processed video.
func (m *Metrics) Observe(result *models.Result, outcome string) {
	if result != nil {
		m.FramesScannedTotal.Add(float64(result.FramesScanned))
		m.BlankFramesTotal.Add(float64(result.BlankFrames))
		m.ScanDuration.Observe(result.Duration.Seconds())
	}
	m.VideosProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a scan that failed before producing a result.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.ScanDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
