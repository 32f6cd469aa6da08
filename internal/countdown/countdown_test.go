package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	ticks     []Snapshot
	completes int
}

func (r *recorder) onTick(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, s)
}

func (r *recorder) onComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func (r *recorder) snapshot() ([]Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.ticks...), r.completes
}

func TestTimer_CountsDownMonotonicallyToZero(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	timer := New(clock, OnTick(rec.onTick), OnComplete(rec.onComplete))
	defer timer.Stop()

	timer.Start(clock.Now().Add(2*time.Second), clock.Now())

	state := timer.State()
	require.Equal(t, 2, state.RemainingSeconds)
	require.False(t, state.Complete)
	require.Zero(t, state.DriftMs)

	require.Eventually(t, func() bool {
		if timer.State().Complete {
			return true
		}
		clock.Advance(DefaultTickInterval)
		return false
	}, 5*time.Second, 2*time.Millisecond)

	ticks, completes := rec.snapshot()
	require.Equal(t, 1, completes)
	for i := 1; i < len(ticks); i++ {
		require.LessOrEqual(t, ticks[i].RemainingSeconds, ticks[i-1].RemainingSeconds)
	}
	require.Zero(t, ticks[len(ticks)-1].RemainingSeconds)
	require.True(t, ticks[len(ticks)-1].Complete)
}

func TestTimer_CompletesExactlyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	timer := New(clock, OnTick(rec.onTick), OnComplete(rec.onComplete))
	defer timer.Stop()

	timer.Start(clock.Now().Add(500*time.Millisecond), clock.Now())
	require.Eventually(t, func() bool {
		if timer.State().Complete {
			return true
		}
		clock.Advance(DefaultTickInterval)
		return false
	}, 5*time.Second, 2*time.Millisecond)

	// further time passing fires nothing new
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	_, completes := rec.snapshot()
	require.Equal(t, 1, completes)
}

func TestTimer_AlreadyStartedCompletesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	timer := New(clock, OnTick(rec.onTick), OnComplete(rec.onComplete))

	timer.Start(clock.Now().Add(-time.Minute), clock.Now())

	_, completes := rec.snapshot()
	require.Equal(t, 1, completes)
	require.True(t, timer.State().Complete)
	require.Zero(t, timer.State().RemainingSeconds)
}

func TestTimer_DriftCorrection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock)
	defer timer.Stop()

	// local clock runs 10s ahead of the server
	serverTime := clock.Now().Add(-10 * time.Second)
	timer.Start(clock.Now().Add(2*time.Second), serverTime)

	state := timer.State()
	require.Equal(t, int64(10000), state.DriftMs)
	require.True(t, state.ExcessiveDrift)
	// corrected clock puts the start 12s away, not 2s
	require.Equal(t, 12, state.RemainingSeconds)
}

func TestTimer_SmallDriftIsNotFlagged(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock)
	defer timer.Stop()

	timer.Start(clock.Now().Add(time.Minute), clock.Now().Add(-2*time.Second))
	require.False(t, timer.State().ExcessiveDrift)
}

func TestTimer_StopPreventsCompletion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	timer := New(clock, OnTick(rec.onTick), OnComplete(rec.onComplete))

	timer.Start(clock.Now().Add(time.Second), clock.Now())
	timer.Stop()

	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)

	_, completes := rec.snapshot()
	require.Zero(t, completes)
	require.False(t, timer.State().Complete)
}
