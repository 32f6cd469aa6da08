// Package wsclient implements the realtime transport client for a
// meeting's engagement channel: a single reconnecting WebSocket
// connection that translates the wire protocol into typed events, keeps
// the connection alive with heartbeats, and recovers from drops with
// exponential backoff while the meeting is still live.
package wsclient

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/protocol"
)

// State is the connection state, owned exclusively by the client; callers
// observe it read-only.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateEnded        State = "ended"
	StateNotStarted   State = "not_started"
)

// Config tunes transport timing. Zero values fall back to defaults.
type Config struct {
	// PingInterval is the application-level heartbeat period.
	PingInterval time.Duration
	// JoinTimeout bounds how long Join waits for an acknowledgment.
	JoinTimeout time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// ReconnectBase is the first backoff delay; it doubles per attempt.
	ReconnectBase time.Duration
	// ReconnectMax caps the backoff delay.
	ReconnectMax time.Duration
	// ReconnectJitter is the upper bound of the random delay added to
	// each backoff.
	ReconnectJitter time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = 3 * time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReconnectJitter < 0 {
		c.ReconnectJitter = 0
	} else if c.ReconnectJitter == 0 {
		c.ReconnectJitter = 500 * time.Millisecond
	}
	return c
}

type joinOutcome struct {
	participantID string
	err           error
}

// Client owns a single bidirectional connection to a meeting's realtime
// channel. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	cfg     Config
	logger  *zap.Logger
	clock   clockwork.Clock
	dialer  *websocket.Dialer
	rng     *rand.Rand
	events  events

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	meetingID      string
	participantID  string
	identityToken  string
	joined         bool
	generation     int
	attempts       int
	phase          reconnectPhase
	reconnectTimer clockwork.Timer
	heartbeatTimer clockwork.Timer
	joinWaiter     chan joinOutcome
	closed         bool

	stateMu      sync.Mutex
	statePending []State
	stateActive  bool
}

// Option customizes a Client.
type Option func(*Client)

// WithClock injects a clock, used by tests to control timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRand injects the jitter source, used by tests for determinism.
func WithRand(rng *rand.Rand) Option {
	return func(c *Client) { c.rng = rng }
}

// New creates a transport client for the given WebSocket base URL
// (e.g. "ws://localhost:8080"); the meeting channel path is appended on
// Connect.
func New(baseURL string, cfg Config, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer = &websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ParticipantID returns the participant identifier, empty until joined.
func (c *Client) ParticipantID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

// MeetingID returns the meeting this client is bound to.
func (c *Client) MeetingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meetingID
}

// Connect opens the channel to the meeting. It returns once the
// transport-level handshake succeeds. Calling while already connecting or
// connected is a no-op. A failed dial leaves the client disconnected and
// schedules a reconnect.
func (c *Client) Connect(ctx context.Context, meetingID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateEnded {
		c.mu.Unlock()
		return &StaleSessionError{State: StateEnded}
	}
	c.meetingID = meetingID
	c.setStateLocked(StateConnecting)
	gen := c.generation
	url := c.baseURL + "/ws/meetings/" + meetingID
	c.mu.Unlock()

	c.logger.Debug("connecting to meeting channel", zap.String("url", url))
	conn, _, err := c.dialer.DialContext(ctx, url, nil)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClientClosed
	}
	if err != nil {
		c.setStateLocked(StateDisconnected)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		connErr := &ConnectionError{URL: url, Err: err}
		c.logger.Warn("meeting channel dial failed", zap.Error(err))
		c.events.errs.emit(connErr)
		return connErr
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateConnected)
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()

	c.logger.Info("meeting channel connected", zap.String("meeting_id", meetingID))
	go c.readPump(conn, gen)
	return nil
}

// Join requests enrollment as an active participant on the open channel.
// It returns the participant identifier, or a JoinError if the server
// rejects the join or no acknowledgment arrives within the join timeout.
// Calling Join before Connect succeeds returns ErrNotConnected without
// touching the network. The token is remembered so the client can
// re-enroll automatically after a transient reconnect.
func (c *Client) Join(ctx context.Context, identityToken string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClientClosed
	}
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	c.identityToken = identityToken
	waiter := make(chan joinOutcome, 1)
	c.joinWaiter = waiter
	err := c.conn.WriteJSON(protocol.JoinFrame{Type: protocol.TypeJoin, Token: identityToken})
	c.mu.Unlock()
	if err != nil {
		return "", &ConnectionError{URL: c.baseURL, Err: err}
	}

	timeout := c.clock.After(c.cfg.JoinTimeout)
	select {
	case outcome := <-waiter:
		if outcome.err != nil {
			return "", outcome.err
		}
		return outcome.participantID, nil
	case <-timeout:
		c.clearJoinWaiter(waiter)
		return "", &JoinError{Timeout: true}
	case <-ctx.Done():
		c.clearJoinWaiter(waiter)
		return "", ctx.Err()
	}
}

// SendStatus sends a fire-and-forget engagement status update. Before a
// successful join it logs a warning and does nothing.
func (c *Client) SendStatus(status engagement.Status) {
	c.mu.Lock()
	if !c.joined || c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		c.logger.Warn("cannot send status: not joined", zap.String("status", string(status)))
		return
	}
	err := c.conn.WriteJSON(protocol.StatusFrame{Type: protocol.TypeStatus, Status: status})
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("status send failed", zap.Error(err))
	}
}

// Disconnect tears down the channel, cancels any pending reconnect and
// heartbeat timers, and resets the state to disconnected. Safe to call
// multiple times.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.generation++
	c.cancelTimersLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.participantID = ""
	c.joined = false
	c.attempts = 0
	c.phase = reconnectIdle
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// Close disposes the client: Disconnect plus dropping every listener. No
// event callback fires after Close returns.
func (c *Client) Close() {
	c.Disconnect()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.events.closeAll()
}

func (c *Client) readPump(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(err, gen)
			return
		}
		frame, err := protocol.DecodeServer(raw)
		if err != nil {
			// Malformed frames are dropped, never fatal.
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		c.handleFrame(frame, gen)
	}
}

func (c *Client) handleFrame(frame any, gen int) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	switch f := frame.(type) {
	case protocol.SnapshotFrame:
		c.events.snapshot.emit(f.Data)
	case protocol.DeltaFrame:
		c.events.delta.emit(f.Data)
	case protocol.JoinedFrame:
		c.mu.Lock()
		c.participantID = f.ParticipantID
		c.joined = true
		waiter := c.joinWaiter
		c.joinWaiter = nil
		c.mu.Unlock()
		if waiter != nil {
			waiter <- joinOutcome{participantID: f.ParticipantID}
		}
		if f.Snapshot != nil {
			c.events.snapshot.emit(*f.Snapshot)
		}
	case protocol.PongFrame:
		// Liveness confirmed; no state change.
	case protocol.ErrorFrame:
		c.mu.Lock()
		waiter := c.joinWaiter
		c.joinWaiter = nil
		c.mu.Unlock()
		if waiter != nil {
			waiter <- joinOutcome{err: &JoinError{Message: f.Message}}
			return
		}
		c.logger.Warn("server error", zap.String("message", f.Message))
		c.events.errs.emit(errors.New(f.Message))
	case protocol.MeetingEndedFrame:
		c.transitionTerminal(StateEnded)
		c.events.meetingEnded.emit(f.Message)
	case protocol.MeetingNotStartedFrame:
		c.mu.Lock()
		c.setStateLocked(StateNotStarted)
		c.mu.Unlock()
		c.events.notStarted.emit(f.Message)
	case protocol.MeetingCountdownFrame:
		c.events.countdown.emit(f)
	case protocol.MeetingStartedFrame:
		c.events.meetingStarted.emit(f)
	case protocol.MeetingSummaryFrame:
		c.transitionTerminal(StateEnded)
		c.events.meetingSummary.emit(f)
	}
}

// transitionTerminal moves to a terminal state and cancels reconnection
// permanently.
func (c *Client) transitionTerminal(state State) {
	c.mu.Lock()
	c.cancelTimersLocked()
	c.phase = reconnectIdle
	c.setStateLocked(state)
	c.mu.Unlock()
}

func (c *Client) handleClose(err error, gen int) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.cancelHeartbeatLocked()

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) &&
		closeErr.Code == websocket.CloseNormalClosure &&
		closeErr.Text == protocol.CloseReasonMeetingEnded {
		alreadyEnded := c.state == StateEnded
		c.phase = reconnectIdle
		c.setStateLocked(StateEnded)
		c.mu.Unlock()
		c.logger.Info("meeting ended, channel closed")
		if !alreadyEnded {
			c.events.meetingEnded.emit("")
		}
		return
	}

	if c.state == StateEnded || c.state == StateNotStarted {
		c.mu.Unlock()
		return
	}

	c.logger.Warn("meeting channel dropped", zap.Error(err))
	c.setStateLocked(StateDisconnected)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.events.errs.emit(&ConnectionError{URL: c.baseURL, Err: err})
}

// scheduleReconnectLocked arms the backoff timer. Reconnects are only
// scheduled while disconnected with a known meeting and no pending
// attempt; terminal states never reconnect.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.state != StateDisconnected || c.meetingID == "" || c.phase != reconnectIdle {
		return
	}
	c.attempts++
	delay := backoffDelay(c.attempts, c.cfg.ReconnectBase, c.cfg.ReconnectMax, c.cfg.ReconnectJitter, c.rng)
	c.phase = reconnectWaiting
	gen := c.generation
	c.logger.Info("scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", delay))
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.attemptReconnect(gen) })
}

func (c *Client) attemptReconnect(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != StateDisconnected {
		c.phase = reconnectIdle
		c.mu.Unlock()
		return
	}
	c.phase = reconnectAttempting
	meetingID := c.meetingID
	token := c.identityToken
	rejoin := c.joined
	c.joined = false
	c.mu.Unlock()

	err := c.Connect(context.Background(), meetingID)

	c.mu.Lock()
	c.phase = reconnectIdle
	c.mu.Unlock()
	if err != nil {
		return
	}
	if rejoin && token != "" {
		if _, err := c.Join(context.Background(), token); err != nil {
			c.logger.Warn("re-join after reconnect failed", zap.Error(err))
			c.events.errs.emit(err)
		}
	}
}

func (c *Client) scheduleHeartbeatLocked(gen int) {
	c.heartbeatTimer = c.clock.AfterFunc(c.cfg.PingInterval, func() { c.sendPing(gen) })
}

func (c *Client) sendPing(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return
	}
	err := c.conn.WriteJSON(protocol.PingFrame{Type: protocol.TypePing})
	if err == nil {
		c.scheduleHeartbeatLocked(gen)
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("heartbeat failed", zap.Error(err))
	}
}

func (c *Client) cancelTimersLocked() {
	c.cancelHeartbeatLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) cancelHeartbeatLocked() {
	if c.heartbeatTimer != nil {
		c.heartbeatTimer.Stop()
		c.heartbeatTimer = nil
	}
}

func (c *Client) clearJoinWaiter(waiter chan joinOutcome) {
	c.mu.Lock()
	if c.joinWaiter == waiter {
		c.joinWaiter = nil
	}
	c.mu.Unlock()
}

func (c *Client) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.queueStateEvent(state)
}

// queueStateEvent hands state changes to a single drain goroutine so
// handlers observe transitions in the order they happened. Delivery
// stays asynchronous; handlers may call back into the client.
func (c *Client) queueStateEvent(state State) {
	c.stateMu.Lock()
	c.statePending = append(c.statePending, state)
	if c.stateActive {
		c.stateMu.Unlock()
		return
	}
	c.stateActive = true
	c.stateMu.Unlock()
	go c.drainStateEvents()
}

func (c *Client) drainStateEvents() {
	for {
		c.stateMu.Lock()
		if len(c.statePending) == 0 {
			c.stateActive = false
			c.stateMu.Unlock()
			return
		}
		state := c.statePending[0]
		c.statePending = c.statePending[1:]
		c.stateMu.Unlock()
		c.events.stateChange.emit(state)
	}
}
