package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/lastframe/internal/metrics"
	"github.com/bdougie/lastframe/internal/models"
	"github.com/bdougie/lastframe/internal/scanner"
	"github.com/bdougie/lastframe/internal/storage"
)

type fakeSource struct {
	frames []*models.Frame
	closed bool
}

func (s *fakeSource) Next() (*models.Frame, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeOpener serves canned frame lists by path.
type fakeOpener struct {
	videos  map[string][]*models.Frame
	sources []*fakeSource
}

func (o *fakeOpener) Open(ctx context.Context, path string) (scanner.FrameSource, error) {
	frames, ok := o.videos[path]
	if !ok {
		return nil, fmt.Errorf("%w: no such video %s", models.ErrInputUnreadable, path)
	}
	src := &fakeSource{frames: frames}
	o.sources = append(o.sources, src)
	return src, nil
}

type fakeDescriber struct {
	text  string
	err   error
	paths []string
}

func (d *fakeDescriber) Describe(ctx context.Context, imagePath string) (string, error) {
	d.paths = append(d.paths, imagePath)
	return d.text, d.err
}

func solid(v uint8) *models.Frame {
	f := models.NewFrame(4, 4, 3, models.FormatBGR)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func pattern(seed uint8) *models.Frame {
	f := models.NewFrame(4, 4, 3, models.FormatBGR)
	for i := range f.Pix {
		f.Pix[i] = uint8(i*16) + seed
	}
	return f
}

func newTestProcessor(t *testing.T, opener scanner.Opener, opts ...Option) (*Processor, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	opts = append([]Option{WithOutputDir(dir)}, opts...)
	return NewProcessor(opener, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), dir
}

func TestFetchLastNonBlankFrame_SavesLastContentFrame(t *testing.T) {
	b := pattern(3)
	opener := &fakeOpener{videos: map[string][]*models.Frame{
		"renders/clip.mp4": {solid(0), pattern(1), solid(0), b, solid(0)},
	}}
	m := metrics.New()
	p, dir := newTestProcessor(t, opener, WithMetrics(m))

	result, err := p.FetchLastNonBlankFrame(context.Background(), "renders/clip.mp4")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, "clip", result.VideoName)
	assert.Equal(t, filepath.Join(dir, "clip_non_blank_frame.png"), result.OutputPath)
	assert.Equal(t, 3, result.FrameIndex)
	assert.Equal(t, 5, result.FramesScanned)
	assert.Equal(t, 3, result.BlankFrames)
	assert.Equal(t, 40.0, result.Tolerance)
	assert.Len(t, result.GravityCenter, 3)
	assert.FileExists(t, result.OutputPath)

	require.Len(t, opener.sources, 1)
	assert.True(t, opener.sources[0].closed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosProcessedTotal.WithLabelValues(metrics.OutcomeFound)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.FramesScannedTotal))
}

func TestFetchLastNonBlankFrame_AllBlankWritesNothing(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{
		"black.mp4": {solid(0), solid(0)},
		"empty.mp4": {},
	}}
	p, dir := newTestProcessor(t, opener)

	for _, video := range []string{"black.mp4", "empty.mp4"} {
		result, err := p.FetchLastNonBlankFrame(context.Background(), video)
		require.NoError(t, err, video)
		assert.False(t, result.Found, video)
		assert.Empty(t, result.OutputPath, video)
		assert.Equal(t, -1, result.FrameIndex, video)
	}

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "no output directory when there is nothing to write")
}

func TestFetchLastNonBlankFrame_ToleranceOption(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{"clip.mp4": {pattern(1)}}}
	p, _ := newTestProcessor(t, opener, WithTolerance(255))

	result, err := p.FetchLastNonBlankFrame(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, 255.0, result.Tolerance)
}

func TestFetchLastNonBlankFrame_Unreadable(t *testing.T) {
	m := metrics.New()
	p, _ := newTestProcessor(t, &fakeOpener{}, WithMetrics(m))

	result, err := p.FetchLastNonBlankFrame(context.Background(), "missing.mp4")
	require.ErrorIs(t, err, models.ErrInputUnreadable)
	assert.Nil(t, result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosProcessedTotal.WithLabelValues(metrics.OutcomeUnreadable)))
}

func TestFetchLastNonBlankFrame_MalformedNameSkipsDecoding(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{"clip": {pattern(1)}}}
	p, _ := newTestProcessor(t, opener)

	_, err := p.FetchLastNonBlankFrame(context.Background(), "clip")
	require.ErrorIs(t, err, models.ErrMalformedFilename)
	assert.Empty(t, opener.sources)
}

func TestFetchLastNonBlankFrame_MultiDotName(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{"final.v2.mp4": {pattern(1)}}}
	p, dir := newTestProcessor(t, opener)

	result, err := p.FetchLastNonBlankFrame(context.Background(), "final.v2.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final.v2_non_blank_frame.png"), result.OutputPath)
}

func TestFetchLastNonBlankFrame_OutputFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	opener := &fakeOpener{videos: map[string][]*models.Frame{"clip.mp4": {pattern(1)}}}
	p := NewProcessor(opener, nil, WithOutputDir(filepath.Join(blocker, "out")))

	_, err := p.FetchLastNonBlankFrame(context.Background(), "clip.mp4")
	require.ErrorIs(t, err, models.ErrOutputWrite)
}

func TestFetchLastNonBlankFrame_Describe(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{
		"a.mp4":     {pattern(1)},
		"b.mp4":     {pattern(2)},
		"black.mp4": {solid(0)},
	}}
	d := &fakeDescriber{text: "a test card"}
	p, _ := newTestProcessor(t, opener, WithDescriber(d))

	result, err := p.FetchLastNonBlankFrame(context.Background(), "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "a test card", result.Description)

	_, err = p.FetchLastNonBlankFrame(context.Background(), "black.mp4")
	require.NoError(t, err)
	assert.Len(t, d.paths, 1, "blank videos are not described")

	// A failing describer does not fail the extraction.
	d.err = errors.New("model not loaded")
	result, err = p.FetchLastNonBlankFrame(context.Background(), "b.mp4")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Empty(t, result.Description)
}

func TestFetchLastNonBlankFrame_RecordsManifest(t *testing.T) {
	opener := &fakeOpener{videos: map[string][]*models.Frame{
		"a.mp4":     {pattern(1)},
		"black.mp4": {solid(0)},
	}}
	manifestDir := t.TempDir()
	manifest := storage.NewStorage(manifestDir)
	p, _ := newTestProcessor(t, opener, WithStorage(manifest))

	_, err := p.FetchLastNonBlankFrame(context.Background(), "a.mp4")
	require.NoError(t, err)
	_, err = p.FetchLastNonBlankFrame(context.Background(), "black.mp4")
	require.NoError(t, err)
	_, err = p.FetchLastNonBlankFrame(context.Background(), "missing.mp4")
	require.Error(t, err)

	require.NoError(t, p.Flush())

	results, err := storage.ReadManifest(manifest.Path())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Found)
	assert.False(t, results[1].Found)
}
