package wsclient

import (
	"sync"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/protocol"
)

// handlerSet is a typed fan-out registry. Subscribing returns an
// unsubscribe func; emit snapshots the handler list so handlers may
// subscribe or unsubscribe reentrantly.
type handlerSet[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(T)
	closed   bool
}

func (h *handlerSet[T]) subscribe(fn func(T)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	if h.handlers == nil {
		h.handlers = make(map[int]func(T))
	}
	id := h.nextID
	h.nextID++
	h.handlers[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.handlers, id)
		h.mu.Unlock()
	}
}

func (h *handlerSet[T]) emit(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.handlers))
	for _, fn := range h.handlers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (h *handlerSet[T]) close() {
	h.mu.Lock()
	h.closed = true
	h.handlers = nil
	h.mu.Unlock()
}

// events groups every event channel the client exposes.
type events struct {
	snapshot       handlerSet[engagement.Summary]
	delta          handlerSet[engagement.Delta]
	meetingEnded   handlerSet[string]
	notStarted     handlerSet[string]
	countdown      handlerSet[protocol.MeetingCountdownFrame]
	meetingStarted handlerSet[protocol.MeetingStartedFrame]
	meetingSummary handlerSet[protocol.MeetingSummaryFrame]
	errs           handlerSet[error]
	stateChange    handlerSet[State]
}

func (e *events) closeAll() {
	e.snapshot.close()
	e.delta.close()
	e.meetingEnded.close()
	e.notStarted.close()
	e.countdown.close()
	e.meetingStarted.close()
	e.meetingSummary.close()
	e.errs.close()
	e.stateChange.close()
}

// OnSnapshot registers a handler for full engagement snapshots.
func (c *Client) OnSnapshot(fn func(engagement.Summary)) func() {
	return c.events.snapshot.subscribe(fn)
}

// OnDelta registers a handler for incremental engagement updates.
func (c *Client) OnDelta(fn func(engagement.Delta)) func() {
	return c.events.delta.subscribe(fn)
}

// OnMeetingEnded registers a handler fired when the meeting ends.
func (c *Client) OnMeetingEnded(fn func(message string)) func() {
	return c.events.meetingEnded.subscribe(fn)
}

// OnMeetingNotStarted registers a handler fired when the server reports
// the meeting has not started.
func (c *Client) OnMeetingNotStarted(fn func(message string)) func() {
	return c.events.notStarted.subscribe(fn)
}

// OnCountdown registers a handler for pre-start countdown frames.
func (c *Client) OnCountdown(fn func(protocol.MeetingCountdownFrame)) func() {
	return c.events.countdown.subscribe(fn)
}

// OnMeetingStarted registers a handler fired when a counted-down meeting
// goes live.
func (c *Client) OnMeetingStarted(fn func(protocol.MeetingStartedFrame)) func() {
	return c.events.meetingStarted.subscribe(fn)
}

// OnMeetingSummary registers a handler for the final meeting statistics.
func (c *Client) OnMeetingSummary(fn func(protocol.MeetingSummaryFrame)) func() {
	return c.events.meetingSummary.subscribe(fn)
}

// OnError registers a handler for transport and server errors.
func (c *Client) OnError(fn func(error)) func() {
	return c.events.errs.subscribe(fn)
}

// OnStateChange registers a handler for connection state transitions.
func (c *Client) OnStateChange(fn func(State)) func() {
	return c.events.stateChange.subscribe(fn)
}
