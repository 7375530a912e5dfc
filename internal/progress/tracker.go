// Package progress tracks Loader progress: items staged and loaded,
// throughput, and ETA. Adapted from the teacher's SQLite-backed
// download/tar-resumption Tracker, repurposed for the Loader's
// single-pass, non-resumable bulk ingest (spec.md's Loader has no
// partial-commit/resume contract, so the persistence and checkpoint
// machinery the teacher built around interrupted downloads has nothing
// to resume here) — kept in memory and reported via internal/xlog
// instead of a second SQLite schema.
package progress

import (
	"sync"
	"time"

	"github.com/nishad/redbiom/internal/xlog"
)

// State mirrors the teacher's ingest State enum, narrowed to the
// states a single Loader call passes through.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Statistics is a point-in-time snapshot of a Tracker, mirroring the
// teacher's Statistics shape (bytes/records -> generic items).
type Statistics struct {
	Label                  string
	Done                   int64
	Total                  int64
	Skipped                int64
	State                  State
	Duration               time.Duration
	ItemsPerSecond         float64
	PercentComplete        float64
	EstimatedTimeRemaining time.Duration
}

// Tracker reports progress for one Loader operation (e.g.
// LoadSampleData over a table). Safe for concurrent use since a single
// load may stage rows from multiple goroutines.
type Tracker struct {
	mu        sync.Mutex
	label     string
	total     int64
	done      int64
	skipped   int64
	state     State
	startedAt time.Time
	updatedAt time.Time

	log          *xlog.Logger
	reportEvery  time.Duration
	lastReported time.Time
}

// NewTracker starts a tracker for an operation expected to process
// total items (0 if unknown in advance).
func NewTracker(label string, total int64, log *xlog.Logger) *Tracker {
	if log == nil {
		log = xlog.Default()
	}
	now := time.Now()
	return &Tracker{
		label:       label,
		total:       total,
		state:       StateRunning,
		startedAt:   now,
		updatedAt:   now,
		log:         log,
		reportEvery: 2 * time.Second,
	}
}

// Add records n more items completed, logging a progress line at most
// once per reportEvery.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += n
	t.updatedAt = time.Now()

	if t.updatedAt.Sub(t.lastReported) >= t.reportEvery {
		t.lastReported = t.updatedAt
		t.logProgress()
	}
}

// AddSkipped records n more items skipped (already loaded, filtered,
// etc.) without counting toward Done.
func (t *Tracker) AddSkipped(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped += n
}

func (t *Tracker) logProgress() {
	if t.total > 0 {
		pct := float64(t.done) * 100 / float64(t.total)
		t.log.Infof("%s: %d/%d (%.1f%%)", t.label, t.done, t.total, pct)
	} else {
		t.log.Infof("%s: %d loaded", t.label, t.done)
	}
}

// Complete marks the tracked operation as finished successfully.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateCompleted
	t.updatedAt = time.Now()
	t.log.Infof("%s: completed, %d loaded, %d skipped", t.label, t.done, t.skipped)
}

// Fail marks the tracked operation as failed.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateFailed
	t.updatedAt = time.Now()
	t.log.Errorf("%s: failed after %d loaded: %v", t.label, t.done, err)
}

// Statistics returns a snapshot of the tracker's current state.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Statistics{
		Label:   t.label,
		Done:    t.done,
		Total:   t.total,
		Skipped: t.skipped,
		State:   t.state,
	}
	s.Duration = t.updatedAt.Sub(t.startedAt)
	if s.Duration.Seconds() > 0 {
		s.ItemsPerSecond = float64(t.done) / s.Duration.Seconds()
	}
	if t.total > 0 {
		s.PercentComplete = float64(t.done) * 100 / float64(t.total)
		if s.ItemsPerSecond > 0 {
			remaining := t.total - t.done
			s.EstimatedTimeRemaining = time.Duration(float64(remaining)/s.ItemsPerSecond) * time.Second
		}
	}
	return s
}
