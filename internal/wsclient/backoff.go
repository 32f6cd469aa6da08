package wsclient

import (
	"math/rand"
	"time"
)

// reconnectPhase tracks the reconnect state machine. Transitions are
// driven by single-shot timers so cancellation stays unambiguous.
type reconnectPhase int

const (
	reconnectIdle reconnectPhase = iota
	reconnectWaiting
	reconnectAttempting
)

// backoffDelay computes the delay before reconnect attempt n (1-based):
// base doubled per attempt, capped at max, plus uniform random jitter in
// [0, jitter) to avoid thundering-herd reconnects.
func backoffDelay(attempt int, base, max, jitter time.Duration, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	if jitter > 0 && rng != nil {
		delay += time.Duration(rng.Int63n(int64(jitter)))
	}
	return delay
}
