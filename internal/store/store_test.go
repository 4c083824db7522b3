package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, "", nil)
	require.NoError(t, err)
	return s
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestNewFileStore_DefaultsOutputToSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, dir, s.OutputDir())

	out := filepath.Join(dir, "artifacts")
	s, err = NewFileStore(dir, out, nil)
	require.NoError(t, err)
	assert.DirExists(t, out)
	assert.Equal(t, filepath.Join(out, "a.coords.json"), s.Paths("a").Coordinates)
}

func TestDrawings(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	touch(t, filepath.Join(s.SourceDir(), "pump.pdf"))
	touch(t, filepath.Join(s.SourceDir(), "Valve.PDF"))
	touch(t, filepath.Join(s.SourceDir(), "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(s.SourceDir(), "dir.pdf"), 0o755))
	require.NoError(t, s.WriteCoordinates("pump", drawing.Coordinates{{X: 1, Y: 2, ID: 1}}))

	products, err := s.Drawings()
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Valve", products[0].Name)
	assert.False(t, products[0].HasCoordinates)
	assert.Equal(t, "pump", products[1].Name)
	assert.True(t, products[1].HasCoordinates)
	assert.False(t, products[1].HasDescriptors)
	assert.Equal(t, filepath.Join(s.SourceDir(), "pump.pdf"), products[1].DrawingPath)
}

func TestDrawing_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Drawing("missing")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.IsNotFound(err))

	_, err = s.Drawing("../etc")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestReadMissingArtifacts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	coords, err := s.ReadCoordinates("nothing")
	require.NoError(t, err)
	assert.Empty(t, coords)

	descs, err := s.ReadDescriptors("nothing")
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestWriteCoordinates_Replaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteCoordinates("a", drawing.Coordinates{{X: 1, Y: 1, ID: 1}}))
	require.NoError(t, s.WriteCoordinates("a", drawing.Coordinates{{X: 300, Y: 300, ID: 1}, {X: 450, Y: 300, ID: 2}}))

	data, err := os.ReadFile(s.Paths("a").Coordinates)
	require.NoError(t, err)
	assert.JSONEq(t, `[[300,300,1],[450,300,2]]`, string(data))

	got, err := s.ReadCoordinates("a")
	require.NoError(t, err)
	assert.Equal(t, drawing.Coordinates{{X: 300, Y: 300, ID: 1}, {X: 450, Y: 300, ID: 2}}, got)

	entries, err := os.ReadDir(s.OutputDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteCoordinates_EmptyList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteCoordinates("empty", nil))

	data, err := os.ReadFile(s.Paths("empty").Coordinates)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestWriteDescriptorsIfAbsent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	edited := drawing.Descriptors{"1": {Code: "P-101", Label: "Feed pump"}}
	require.NoError(t, s.SaveDescriptors("a", edited))
	before, err := os.ReadFile(s.Paths("a").Descriptors)
	require.NoError(t, err)

	written, err := s.WriteDescriptorsIfAbsent("a", drawing.Descriptors{"1": {Code: "A", Label: "Component A"}})
	require.NoError(t, err)
	assert.False(t, written)

	after, err := os.ReadFile(s.Paths("a").Descriptors)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	written, err = s.WriteDescriptorsIfAbsent("b", drawing.Descriptors{"1": {Code: "A", Label: "Component A"}})
	require.NoError(t, err)
	assert.True(t, written)

	got, err := s.ReadDescriptors("b")
	require.NoError(t, err)
	assert.Equal(t, drawing.Descriptors{"1": {Code: "A", Label: "Component A"}}, got)
}

func TestWriteDescriptorsIfAbsent_Concurrent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			written, err := s.WriteDescriptorsIfAbsent("race", drawing.Descriptors{
				"1": {Code: drawing.Key(i), Label: "Component"},
			})
			assert.NoError(t, err)
			if written {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	got, err := s.ReadDescriptors("race")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReadCoordinates_Corrupt(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Paths("bad").Coordinates, []byte("{not json"), 0o600))

	_, err := s.ReadCoordinates("bad")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestInvalidNamesRejected(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		require.ErrorIs(t, s.WriteCoordinates(name, nil), ErrInvalidName, name)
		_, err := s.WriteDescriptorsIfAbsent(name, nil)
		require.ErrorIs(t, err, ErrInvalidName, name)
		_, err = s.ReadCoordinates(name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestCachedStore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	c := NewCachedStore(s, time.Minute)

	require.NoError(t, s.WriteCoordinates("a", drawing.Coordinates{{X: 1, Y: 1, ID: 1}}))
	got, err := c.ReadCoordinates("a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, c.Len())

	// Changes behind the cache are not visible until invalidated.
	require.NoError(t, s.WriteCoordinates("a", drawing.Coordinates{{X: 5, Y: 5, ID: 1}, {X: 6, Y: 6, ID: 2}}))
	got, err = c.ReadCoordinates("a")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	c.Invalidate("a")
	got, err = c.ReadCoordinates("a")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Returned values are copies.
	got[0].X = 999
	again, err := c.ReadCoordinates("a")
	require.NoError(t, err)
	assert.Equal(t, 5, again[0].X)

	require.NoError(t, c.SaveDescriptors("a", drawing.Descriptors{"1": {Code: "X", Label: "Y"}}))
	descs, err := c.ReadDescriptors("a")
	require.NoError(t, err)
	assert.Equal(t, "X", descs["1"].Code)

	c.Flush()
	assert.Zero(t, c.Len())
}
