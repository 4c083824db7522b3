package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/events"
	"github.com/tphakala/drawmap/internal/ingest"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/testutil"
)

type fakeStore struct {
	mu     sync.Mutex
	coords map[string]bool
}

func newFakeStore(withCoords ...string) *fakeStore {
	s := &fakeStore{coords: map[string]bool{}}
	for _, n := range withCoords {
		s.coords[n] = true
	}
	return s
}

func (s *fakeStore) HasCoordinates(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coords[name], nil
}

type fakeProcessor struct {
	mu        sync.Mutex
	calls     map[string]int
	fn        func(ctx context.Context, path string, attempt int) error
	active    atomic.Int32
	maxActive atomic.Int32
	started   chan string
}

func newFakeProcessor(fn func(ctx context.Context, path string, attempt int) error) *fakeProcessor {
	return &fakeProcessor{calls: map[string]int{}, fn: fn, started: make(chan string, 100)}
}

func (p *fakeProcessor) Process(ctx context.Context, path string) (ingest.Outcome, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls[path]++
	attempt := p.calls[path]
	p.mu.Unlock()
	p.started <- path

	if p.fn != nil {
		if err := p.fn(ctx, path, attempt); err != nil {
			return ingest.Outcome{Drawing: drawing.BaseName(path)}, err
		}
	}
	return ingest.Outcome{Drawing: drawing.BaseName(path), Points: 2}, nil
}

func (p *fakeProcessor) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func (p *fakeProcessor) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

type chanPublisher chan events.Event

func (c chanPublisher) TryPublish(e events.Event) bool {
	select {
	case c <- e:
		return true
	default:
		return false
	}
}

func touchPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	return path
}

func runInBackground(t *testing.T, c *Coordinator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(testutil.DefaultTestTimeout):
			t.Error("coordinator did not stop")
		}
	})
	return cancel
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, newFakeProcessor(nil), newFakeStore(), nil)
	require.Error(t, err)

	_, err = New(Config{Dir: "x", Workers: -1}, newFakeProcessor(nil), newFakeStore(), nil)
	require.Error(t, err)

	c, err := New(Config{Dir: "x"}, newFakeProcessor(nil), newFakeStore(), nil)
	require.NoError(t, err)
	assert.Positive(t, c.Workers())
}

func TestRunOnce_DispatchesDrawingsWithoutCoordinates(t *testing.T) {
	dir := t.TempDir()
	a := touchPDF(t, dir, "a.pdf")
	b := touchPDF(t, dir, "B.PDF")
	done := touchPDF(t, dir, "done.pdf")
	touchPDF(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	proc := newFakeProcessor(nil)
	pub := make(chanPublisher, 10)
	c, err := New(Config{Dir: dir, Workers: 2}, proc, newFakeStore("done"), pub)
	require.NoError(t, err)

	records, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, proc.Calls(a))
	assert.Equal(t, 1, proc.Calls(b))
	assert.Zero(t, proc.Calls(done))
	assert.Equal(t, 2, proc.Total())

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, StateDone, r.State)
		assert.Equal(t, 2, r.Points)
	}

	ready := map[string]bool{}
	for range 2 {
		e := testutil.Receive(t, (<-chan events.Event)(pub), testutil.DefaultTestTimeout, "ready event")
		assert.Equal(t, events.KindReady, e.Kind)
		ready[e.Drawing] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "B": true}, ready)
}

func TestRunOnce_EmptyDirectory(t *testing.T) {
	c, err := New(Config{Dir: t.TempDir(), Workers: 1}, newFakeProcessor(nil), newFakeStore(), nil)
	require.NoError(t, err)

	records, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunOnce_MissingDirectory(t *testing.T) {
	c, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope"), Workers: 1}, newFakeProcessor(nil), newFakeStore(), nil)
	require.NoError(t, err)

	_, err = c.RunOnce(context.Background())
	require.Error(t, err)
}

func TestScan_DeduplicatesInFlight(t *testing.T) {
	dir := t.TempDir()
	path := touchPDF(t, dir, "slow.pdf")

	gate := make(chan struct{})
	proc := newFakeProcessor(func(context.Context, string, int) error {
		<-gate
		return nil
	})
	c, err := New(Config{Dir: dir, Workers: 4}, proc, newFakeStore(), nil)
	require.NoError(t, err)
	runInBackground(t, c)

	testutil.Receive(t, (<-chan string)(proc.started), testutil.DefaultTestTimeout, "task start")
	for range 5 {
		n, err := c.Scan(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	close(gate)

	require.Eventually(t, func() bool {
		r, ok := c.Tracker().Get(path)
		return ok && r.State == StateDone
	}, testutil.DefaultTestTimeout, 10*time.Millisecond)

	// Done paths stay tracked even though the fake store never reports coordinates.
	n, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, proc.Calls(path))
}

func TestFailureEvictsAndNextScanRetries(t *testing.T) {
	dir := t.TempDir()
	path := touchPDF(t, dir, "flaky.pdf")

	proc := newFakeProcessor(func(_ context.Context, _ string, attempt int) error {
		if attempt == 1 {
			return fmt.Errorf("%w: corrupt", ingest.ErrUnreadablePDF)
		}
		return nil
	})
	pub := make(chanPublisher, 10)
	c, err := New(Config{Dir: dir, Workers: 1}, proc, newFakeStore(), pub)
	require.NoError(t, err)
	runInBackground(t, c)

	e := testutil.Receive(t, (<-chan events.Event)(pub), testutil.DefaultTestTimeout, "failure event")
	assert.Equal(t, events.KindFailed, e.Kind)
	assert.Equal(t, "flaky", e.Drawing)
	require.ErrorIs(t, e.Err, ingest.ErrUnreadablePDF)

	require.Eventually(t, func() bool {
		_, tracked := c.Tracker().Get(path)
		return !tracked
	}, testutil.DefaultTestTimeout, 10*time.Millisecond)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StateFailed, snap[0].State)

	// No automatic retry without a new directory event.
	testutil.NoReceive(t, (<-chan events.Event)(pub), 100*time.Millisecond, "unexpected retry")

	n, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e = testutil.Receive(t, (<-chan events.Event)(pub), testutil.DefaultTestTimeout, "ready event")
	assert.Equal(t, events.KindReady, e.Kind)
	assert.Equal(t, 2, proc.Calls(path))
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	for i := range 6 {
		touchPDF(t, dir, fmt.Sprintf("d%d.pdf", i))
	}

	proc := newFakeProcessor(func(context.Context, string, int) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	c, err := New(Config{Dir: dir, Workers: 2}, proc, newFakeStore(), nil)
	require.NoError(t, err)

	records, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.Equal(t, 6, proc.Total())
	assert.LessOrEqual(t, proc.maxActive.Load(), int32(2))
}

func TestShutdownFinishesInFlightAndDropsQueued(t *testing.T) {
	dir := t.TempDir()
	for i := range 3 {
		touchPDF(t, dir, fmt.Sprintf("d%d.pdf", i))
	}

	gate := make(chan struct{})
	var sawCancel atomic.Bool
	proc := newFakeProcessor(func(ctx context.Context, _ string, _ int) error {
		<-gate
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return nil
	})
	c, err := New(Config{Dir: dir, Workers: 1}, proc, newFakeStore(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	first := testutil.Receive(t, (<-chan string)(proc.started), testutil.DefaultTestTimeout, "first task")
	cancel()
	close(gate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testutil.DefaultTestTimeout):
		t.Fatal("coordinator did not stop")
	}

	assert.False(t, sawCancel.Load(), "dispatched tasks run without cancellation")
	assert.Equal(t, 1, proc.Total())
	r, ok := c.Tracker().Get(first)
	require.True(t, ok)
	assert.Equal(t, StateDone, r.State)
	assert.Equal(t, 1, c.Tracker().Len(), "queued paths are evicted")
}

func TestRun_AlreadyRunning(t *testing.T) {
	gate := make(chan struct{})
	dir := t.TempDir()
	touchPDF(t, dir, "a.pdf")
	proc := newFakeProcessor(func(context.Context, string, int) error {
		<-gate
		return nil
	})
	c, err := New(Config{Dir: dir, Workers: 1}, proc, newFakeStore(), nil)
	require.NoError(t, err)
	runInBackground(t, c)
	testutil.Receive(t, (<-chan string)(proc.started), testutil.DefaultTestTimeout, "task start")

	require.ErrorIs(t, c.Run(context.Background()), ErrAlreadyRunning)
	_, err = c.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	close(gate)
}

func TestWatcherTriggersRescan(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor(nil)
	pub := make(chanPublisher, 10)
	c, err := New(Config{Dir: dir, Workers: 1, Watch: true, Debounce: 20 * time.Millisecond}, proc, newFakeStore(), pub)
	require.NoError(t, err)
	runInBackground(t, c)

	// Let the watcher register before creating the file.
	time.Sleep(50 * time.Millisecond)
	touchPDF(t, dir, "new.PDF")
	touchPDF(t, dir, "ignored.txt")

	e := testutil.Receive(t, (<-chan events.Event)(pub), testutil.DefaultTestTimeout, "ready event after file creation")
	assert.Equal(t, "new", e.Drawing)
	assert.Equal(t, 1, proc.Total())
}

func TestPollingTriggersRescan(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor(nil)
	pub := make(chanPublisher, 10)
	c, err := New(Config{Dir: dir, Workers: 1, PollInterval: 20 * time.Millisecond}, proc, newFakeStore(), pub)
	require.NoError(t, err)
	runInBackground(t, c)

	touchPDF(t, dir, "polled.pdf")

	e := testutil.Receive(t, (<-chan events.Event)(pub), testutil.DefaultTestTimeout, "ready event from polling")
	assert.Equal(t, "polled", e.Drawing)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunOnce_WarnsWhenReadyEventRejected(t *testing.T) {
	dir := t.TempDir()
	touchPDF(t, dir, "pump.pdf")

	var out lockedBuffer
	full := make(chanPublisher) // unbuffered with no reader: every TryPublish fails
	c, err := New(Config{Dir: dir, Workers: 1}, newFakeProcessor(nil), newFakeStore(), full,
		WithLogger(logger.NewSlogLogger(&out, logger.LogLevelInfo, time.UTC)))
	require.NoError(t, err)

	records, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StateDone, records[0].State)

	logs := out.String()
	assert.Contains(t, logs, "level=WARN")
	assert.Contains(t, logs, `msg="Ready notification dropped, event bus full"`)
	assert.Contains(t, logs, "drawing=pump")
}

func TestRunOnce_NoPublisherDoesNotWarn(t *testing.T) {
	dir := t.TempDir()
	touchPDF(t, dir, "pump.pdf")

	var out lockedBuffer
	c, err := New(Config{Dir: dir, Workers: 1}, newFakeProcessor(nil), newFakeStore(), nil,
		WithLogger(logger.NewSlogLogger(&out, logger.LogLevelInfo, time.UTC)))
	require.NoError(t, err)

	_, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "Ready notification dropped")
}

func TestScan_SkipsUnusableNamesWithSingleWarning(t *testing.T) {
	dir := t.TempDir()
	touchPDF(t, dir, `a\b.pdf`)
	good := touchPDF(t, dir, "pump.pdf")

	var out lockedBuffer
	proc := newFakeProcessor(nil)
	c, err := New(Config{Dir: dir, Workers: 1}, proc, newFakeStore(), nil,
		WithLogger(logger.NewSlogLogger(&out, logger.LogLevelInfo, time.UTC)))
	require.NoError(t, err)

	n, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "pump.pdf is already queued")

	assert.Equal(t, 1, strings.Count(out.String(), "Skipping drawing with unusable file name"))
	assert.Equal(t, []string{good}, c.queue.drain())
}
