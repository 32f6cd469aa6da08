package wsclient

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelay_DoublesPerAttempt(t *testing.T) {
	base := 3 * time.Second
	max := 30 * time.Second
	jitter := 500 * time.Millisecond
	rng := rand.New(rand.NewSource(42))

	expected := []time.Duration{
		3 * time.Second,
		6 * time.Second,
		12 * time.Second,
		24 * time.Second,
	}
	for attempt, want := range expected {
		got := backoffDelay(attempt+1, base, max, jitter, rng)
		require.GreaterOrEqual(t, got, want, "attempt %d", attempt+1)
		require.Less(t, got, want+jitter, "attempt %d", attempt+1)
	}
}

func TestBackoffDelay_CapsAtMax(t *testing.T) {
	base := 3 * time.Second
	max := 30 * time.Second

	for _, attempt := range []int{5, 6, 20} {
		got := backoffDelay(attempt, base, max, 0, nil)
		require.Equal(t, max, got, "attempt %d", attempt)
	}
}

func TestBackoffDelay_NoJitterIsDeterministic(t *testing.T) {
	got := backoffDelay(2, 3*time.Second, 30*time.Second, 0, nil)
	require.Equal(t, 6*time.Second, got)
}

func TestBackoffDelay_ClampsAttemptFloor(t *testing.T) {
	got := backoffDelay(0, 3*time.Second, 30*time.Second, 0, nil)
	require.Equal(t, 3*time.Second, got)
	got = backoffDelay(-3, 3*time.Second, 30*time.Second, 0, nil)
	require.Equal(t, 3*time.Second, got)
}

func TestBackoffDelay_JitterStaysWithinBound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	jitter := 500 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := backoffDelay(1, 3*time.Second, 30*time.Second, jitter, rng)
		require.GreaterOrEqual(t, got, 3*time.Second)
		require.Less(t, got, 3*time.Second+jitter)
	}
}
