package coordinator

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle position of one drawing file.
type State int

const (
	StatePending State = iota
	StateInFlight
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is the tracked state of one drawing file.
type Record struct {
	Path      string    `json:"path"`
	Drawing   string    `json:"drawing"`
	State     State     `json:"state"`
	Points    int       `json:"points"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker is the dedup set. A path is tracked from dispatch until it fails;
// successful paths stay tracked for the life of the process. Failed paths
// are evicted so the next scan retries them, and their last failure is
// kept apart for reporting only.
type Tracker struct {
	mu       sync.Mutex
	records  map[string]*Record
	failures map[string]Record
	attempts map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records:  make(map[string]*Record),
		failures: make(map[string]Record),
		attempts: make(map[string]int),
	}
}

// TryAdd tracks path as Pending. It returns false when path is already tracked.
func (t *Tracker) TryAdd(path, drawing string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[path]; ok {
		return false
	}
	t.records[path] = &Record{
		Path:      path,
		Drawing:   drawing,
		State:     StatePending,
		Attempts:  t.attempts[path],
		UpdatedAt: time.Now(),
	}
	return true
}

// MarkInFlight moves a Pending path to InFlight.
func (t *Tracker) MarkInFlight(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[path]
	if !ok || r.State != StatePending {
		return false
	}
	r.State = StateInFlight
	r.Attempts++
	t.attempts[path] = r.Attempts
	r.UpdatedAt = time.Now()
	return true
}

// MarkDone records a successful ingestion; the path stays tracked.
func (t *Tracker) MarkDone(path string, points int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[path]
	if !ok {
		return
	}
	r.State = StateDone
	r.Points = points
	r.LastError = ""
	r.UpdatedAt = time.Now()
	delete(t.failures, path)
}

// Fail evicts path and remembers err as its last failure.
func (t *Tracker) Fail(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[path]
	if !ok {
		return
	}
	failed := *r
	failed.State = StateFailed
	failed.UpdatedAt = time.Now()
	if err != nil {
		failed.LastError = err.Error()
	}
	t.failures[path] = failed
	delete(t.records, path)
}

// Evict stops tracking path without recording a failure.
func (t *Tracker) Evict(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, path)
}

// Get returns the record of a tracked path.
func (t *Tracker) Get(path string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records[path]; ok {
		return *r, true
	}
	return Record{}, false
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Snapshot returns tracked records and untracked last failures, sorted by path.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	out := make([]Record, 0, len(t.records)+len(t.failures))
	for _, r := range t.records {
		out = append(out, *r)
	}
	for path, r := range t.failures {
		if _, tracked := t.records[path]; !tracked {
			out = append(out, r)
		}
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Counts returns the number of records per state, failures included.
func (t *Tracker) Counts() map[State]int {
	counts := make(map[State]int)
	for _, r := range t.Snapshot() {
		counts[r.State]++
	}
	return counts
}
