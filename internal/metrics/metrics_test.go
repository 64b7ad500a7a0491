package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/lastframe/internal/models"
)

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(&models.Result{FramesScanned: 10, BlankFrames: 4, Duration: time.Second}, OutcomeFound)
	m.Observe(&models.Result{FramesScanned: 5, BlankFrames: 5}, OutcomeNone)
	m.Observe(nil, OutcomeUnreadable)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.FramesScannedTotal))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.BlankFramesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosProcessedTotal.WithLabelValues(OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosProcessedTotal.WithLabelValues(OutcomeNone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosProcessedTotal.WithLabelValues(OutcomeUnreadable)))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe(&models.Result{FramesScanned: 3}, OutcomeFound)

	path := filepath.Join(t.TempDir(), "lastframe.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lastframe_frames_scanned_total 3")
	assert.Contains(t, string(data), `lastframe_videos_processed_total{outcome="found"} 1`)
}
