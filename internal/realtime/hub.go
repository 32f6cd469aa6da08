package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub maintains meeting_id -> set of connections and broadcasts frames.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// meetingID -> map[connID]*Conn
	meetings map[uuid.UUID]map[string]*Conn
	subs     map[uuid.UUID]func() // cancel Redis subscription per meeting
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishMeetingFrame(meetingID uuid.UUID, frame []byte) error
}

// RedisSubscriber subscribes to meeting channels and invokes handler for incoming frames.
type RedisSubscriber interface {
	SubscribeMeeting(meetingID uuid.UUID, handler func(frame []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		meetings: make(map[uuid.UUID]map[string]*Conn),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a connection to a meeting room. Starts the Redis
// subscription for this meeting if it is the first connection.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	if h.meetings[c.MeetingID] == nil {
		h.meetings[c.MeetingID] = make(map[string]*Conn)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeMeeting(c.MeetingID, func(frame []byte) {
				h.broadcastLocal(c.MeetingID, frame)
			})
			if err != nil {
				h.logger.Warn("meeting subscribe failed, falling back to local broadcast",
					zap.String("meeting_id", c.MeetingID.String()), zap.Error(err))
			} else {
				h.subs[c.MeetingID] = cancel
			}
		}
	}
	h.meetings[c.MeetingID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection joined meeting", zap.String("conn_id", c.ID), zap.String("meeting_id", c.MeetingID.String()))
}

// Unregister removes a connection. Cancels the Redis subscription when
// the last connection for the meeting leaves.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if m, ok := h.meetings[c.MeetingID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.meetings, c.MeetingID)
			if cancel, ok := h.subs[c.MeetingID]; ok {
				cancel()
				delete(h.subs, c.MeetingID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("connection left meeting", zap.String("conn_id", c.ID), zap.String("meeting_id", c.MeetingID.String()))
}

// Broadcast sends a frame to every connection in a meeting. With Redis
// configured it publishes only; the subscriber callback performs the
// local broadcast once for all instances, avoiding duplicate delivery.
// Meetings without a live subscription, or whose publish fails, get a
// direct local broadcast so connections are never left without frames.
func (h *Hub) Broadcast(meetingID uuid.UUID, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("broadcast encode failed", zap.Error(err))
		return
	}
	if h.redis != nil && h.subscribed(meetingID) {
		if err = h.redis.PublishMeetingFrame(meetingID, data); err == nil {
			return
		}
		h.logger.Warn("frame publish failed, falling back to local broadcast",
			zap.String("meeting_id", meetingID.String()), zap.Error(err))
	}
	h.broadcastLocal(meetingID, data)
}

func (h *Hub) subscribed(meetingID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[meetingID]
	return ok
}

func (h *Hub) broadcastLocal(meetingID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := h.meetings[meetingID]
	targets := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// buffer full, skip
		}
	}
}

// ConnCount returns the number of local connections in a meeting.
func (h *Hub) ConnCount(meetingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.meetings[meetingID])
}

// ActiveMeetings returns the meeting ids with at least one local connection.
func (h *Hub) ActiveMeetings() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.meetings))
	for id := range h.meetings {
		ids = append(ids, id)
	}
	return ids
}

// CloseMeeting closes every local connection of a meeting with the given
// close code and reason. Used when the meeting ends.
func (h *Hub) CloseMeeting(meetingID uuid.UUID, code int, reason string) {
	h.mu.RLock()
	conns := h.meetings[meetingID]
	targets := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.closeWith(code, reason)
	}
}
