package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawmap/internal/conf"
	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/testutil"
)

var pumpRuns = []testutil.TextRun{
	{Text: "1", X: 100, Y: 700},
	{Text: "2", X: 150, Y: 700},
}

func testSettings(dir string) *conf.Settings {
	return &conf.Settings{
		Drawings: conf.DrawingsSettings{Dir: dir},
		Render:   conf.RenderSettings{Scale: 3},
		Ingest: conf.IngestSettings{
			Workers:           2,
			FallbackThreshold: 2,
			LabelFormat:       "Component %s",
		},
		Watch: conf.WatchSettings{Enabled: true, Debounce: 20 * time.Millisecond},
	}
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := New(testSettings(dir), nil, WithRenderer(&testutil.FakeRenderer{PageHeight: 800}))
	require.NoError(t, err)
	return a, dir
}

var wantPump = drawing.Coordinates{{X: 300, Y: 300, ID: 1}, {X: 450, Y: 300, ID: 2}}

func TestIngestFiles(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)
	good := testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Height: 800, Runs: pumpRuns})
	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))

	results := a.IngestFiles(t.Context(), []string{bad, good})
	require.Len(t, results, 2)

	assert.Equal(t, bad, results[0].Path)
	assert.NotEmpty(t, results[0].Error)

	assert.Empty(t, results[1].Error)
	assert.Equal(t, 2, results[1].Outcome.Points)

	coords, err := a.Store.ReadCoordinates("pump")
	require.NoError(t, err)
	assert.Equal(t, wantPump, coords)
}

func TestIngestDir(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)
	testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Height: 800, Runs: pumpRuns})
	testutil.WritePDF(t, dir, "valve.pdf", testutil.PDFSpec{Height: 800, Runs: pumpRuns[:1]})

	records, err := a.IngestDir(t.Context(), dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, coordinator.StateDone, r.State, r.Drawing)
	}

	descs, err := a.Store.ReadDescriptors("valve")
	require.NoError(t, err)
	assert.Equal(t, drawing.Descriptors{"1": {Code: "1", Label: "Component 1"}}, descs)
}

func TestDump(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)
	path := testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Height: 800, Runs: pumpRuns})

	raw, err := a.Dump(t.Context(), path, false)
	require.NoError(t, err)
	assert.InDelta(t, 800, raw.PageHeight, 0)
	require.Len(t, raw.Fragments, 2)
	assert.Equal(t, "1", raw.Fragments[0].Text)
	assert.InDelta(t, 100, raw.Fragments[0].X, 1e-9)
	assert.InDelta(t, 700, raw.Fragments[0].Y, 1e-9)
	assert.Empty(t, raw.Points)

	mapped, err := a.Dump(t.Context(), path, true)
	require.NoError(t, err)
	assert.Empty(t, mapped.Fragments)
	assert.Equal(t, wantPump, mapped.Points)
	assert.Len(t, mapped.Descriptors, 2)

	// Dump never writes artifacts.
	assert.NoFileExists(t, a.Store.Paths("pump").Coordinates)
}

func TestDump_MappedWithoutMediaBox(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)
	path := testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Runs: pumpRuns, NoMediaBox: true})

	raw, err := a.Dump(t.Context(), path, false)
	require.NoError(t, err)
	assert.Zero(t, raw.PageHeight)
	assert.Empty(t, raw.Warning)

	mapped, err := a.Dump(t.Context(), path, true)
	require.NoError(t, err)
	assert.InDelta(t, 800, mapped.PageHeight, 0)
	assert.Equal(t, wantPump, mapped.Points)
	assert.Empty(t, mapped.Warning)
}

func TestDump_MappedWithoutPageSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(testSettings(dir), nil, WithRenderer(&testutil.FakeRenderer{Err: errors.NewStd("no raster")}))
	require.NoError(t, err)
	path := testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Runs: pumpRuns, NoMediaBox: true})

	res, err := a.Dump(t.Context(), path, true)
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "page size unknown")
	assert.Empty(t, res.Points)
	require.Len(t, res.Fragments, 2)
}

func TestDump_Unreadable(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := a.Dump(t.Context(), path, false)
	require.Error(t, err)
}

func TestWatch_IngestsAndInvalidatesCache(t *testing.T) {
	t.Parallel()

	a, dir := newTestApp(t)

	// Prime the cache with the empty list.
	coords, err := a.Store.ReadCoordinates("pump")
	require.NoError(t, err)
	assert.Empty(t, coords)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	testutil.WritePDF(t, dir, "pump.pdf", testutil.PDFSpec{Height: 800, Runs: pumpRuns})

	require.Eventually(t, func() bool {
		c, err := a.Store.ReadCoordinates("pump")
		return err == nil && len(c) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
