// Package countdown derives a wall-clock countdown to a meeting's
// scheduled start from drift-corrected server time, and triggers the
// automatic join transition when the countdown elapses.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTickInterval is how often the remaining time is recomputed.
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultDriftNoticeThreshold is the drift magnitude beyond which the
	// viewer's clock diverges meaningfully from the countdown authority.
	DefaultDriftNoticeThreshold = 5 * time.Second
)

// Snapshot is the derived countdown state, recomputed every tick.
type Snapshot struct {
	RemainingSeconds int
	DriftMs          int64
	Complete         bool
	// ExcessiveDrift is set when |DriftMs| exceeds the notice threshold,
	// indicating the local clock disagrees with the server's.
	ExcessiveDrift bool
}

// Timer counts down to a meeting start. Drift between the local clock and
// the server clock is measured once at Start and applied to every tick.
// Completion fires exactly once, after which ticking stops entirely.
type Timer struct {
	clock          clockwork.Clock
	tickInterval   time.Duration
	driftThreshold time.Duration

	mu       sync.Mutex
	snapshot Snapshot
	stop     chan struct{}
	running  bool

	onTick     func(Snapshot)
	onComplete func()
}

// Option customizes a Timer.
type Option func(*Timer)

// WithTickInterval overrides the recompute period.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) { t.tickInterval = d }
}

// WithDriftThreshold overrides the excessive-drift notice threshold.
func WithDriftThreshold(d time.Duration) Option {
	return func(t *Timer) { t.driftThreshold = d }
}

// OnTick registers the per-tick callback.
func OnTick(fn func(Snapshot)) Option {
	return func(t *Timer) { t.onTick = fn }
}

// OnComplete registers the completion callback, invoked exactly once.
func OnComplete(fn func()) Option {
	return func(t *Timer) { t.onComplete = fn }
}

// New creates a countdown timer on the given clock.
func New(clock clockwork.Clock, opts ...Option) *Timer {
	t := &Timer{
		clock:          clock,
		tickInterval:   DefaultTickInterval,
		driftThreshold: DefaultDriftNoticeThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins ticking toward startTime. serverTime is the server's clock
// at acquisition time; the difference against the local clock is the
// drift correction. Calling Start again restarts the countdown with the
// new anchor.
func (t *Timer) Start(startTime, serverTime time.Time) {
	t.Stop()

	drift := t.clock.Now().Sub(serverTime)

	t.mu.Lock()
	t.snapshot = Snapshot{
		DriftMs:        drift.Milliseconds(),
		ExcessiveDrift: drift.Abs() > t.driftThreshold,
	}
	t.recomputeLocked(startTime, drift)
	stop := make(chan struct{})
	t.stop = stop
	t.running = true
	snap := t.snapshot
	done := snap.Complete
	t.mu.Unlock()

	t.notify(snap, done)
	if done {
		return
	}

	ticker := t.clock.NewTicker(t.tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				t.mu.Lock()
				if !t.running || t.snapshot.Complete {
					t.mu.Unlock()
					return
				}
				t.recomputeLocked(startTime, drift)
				snap := t.snapshot
				done := snap.Complete
				if done {
					t.running = false
				}
				t.mu.Unlock()
				t.notify(snap, done)
				if done {
					return
				}
			}
		}
	}()
}

// Stop halts ticking without firing completion. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.running = false
	t.mu.Unlock()
}

// State returns the latest snapshot.
func (t *Timer) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

func (t *Timer) recomputeLocked(startTime time.Time, drift time.Duration) {
	corrected := t.clock.Now().Add(-drift)
	remaining := int(startTime.Sub(corrected).Milliseconds() / 1000)
	if remaining <= 0 {
		remaining = 0
		t.snapshot.Complete = true
	}
	t.snapshot.RemainingSeconds = remaining
}

func (t *Timer) notify(snap Snapshot, completed bool) {
	if t.onTick != nil {
		t.onTick(snap)
	}
	if completed && t.onComplete != nil {
		t.onComplete()
	}
}
