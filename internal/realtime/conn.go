package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/internal/protocol"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// MeetingService is what a connection needs from the domain layer.
// RecordStatus returns the participant-tagged delta for immediate
// broadcast, nil when no rollup is available yet.
type MeetingService interface {
	GetMeeting(ctx context.Context, id uuid.UUID) (*models.MeetingDetail, error)
	Join(ctx context.Context, meetingID uuid.UUID, token string) (participantID uuid.UUID, err error)
	RecordStatus(ctx context.Context, meetingID, participantID uuid.UUID, status engagement.Status, at time.Time) (*engagement.Delta, error)
	Snapshot(ctx context.Context, meetingID uuid.UUID) (*engagement.Summary, error)
}

// Conn represents a single WebSocket connection in a meeting.
type Conn struct {
	ID            string
	MeetingID     uuid.UUID
	ParticipantID uuid.UUID // zero until joined
	hub           *Hub
	svc           MeetingService
	conn          *websocket.Conn
	send          chan []byte
	logger        *zap.Logger
}

// ServeWs handles the WebSocket upgrade at /ws/meetings/:id and runs
// the connection loop.
func ServeWs(hub *Hub, svc MeetingService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		meetingID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting id"})
			return
		}
		meeting, err := svc.GetMeeting(c.Request.Context(), meetingID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := &Conn{
			ID:        uuid.New().String(),
			MeetingID: meetingID,
			hub:       hub,
			svc:       svc,
			conn:      ws,
			send:      make(chan []byte, 256),
			logger:    logger,
		}

		now := time.Now()
		if meeting.Ended(now) {
			conn.writeFrame(protocol.MeetingEndedFrame{Type: protocol.TypeMeetingEnded})
			conn.closeWith(websocket.CloseNormalClosure, protocol.CloseReasonMeetingEnded)
			_ = ws.Close()
			return
		}

		hub.Register(conn)
		go conn.writePump()

		if !meeting.Started(now) {
			conn.sendFrame(protocol.MeetingCountdownFrame{
				Type:            protocol.TypeMeetingCountdown,
				MeetingID:       meeting.ID.String(),
				StartTime:       meeting.StartTS,
				ServerTime:      now,
				CityName:        strOrEmpty(meeting.CityName),
				MeetingRoomName: strOrEmpty(meeting.MeetingRoomName),
			})
		}

		conn.readPump()
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := protocol.DecodeClient(raw)
		if err != nil {
			c.sendFrame(protocol.ErrorFrame{Type: protocol.TypeError, Message: "malformed frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Conn) handleFrame(frame interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch f := frame.(type) {
	case protocol.JoinFrame:
		participantID, err := c.svc.Join(ctx, c.MeetingID, f.Token)
		if err != nil {
			c.logger.Debug("join rejected", zap.String("meeting_id", c.MeetingID.String()), zap.Error(err))
			c.sendFrame(protocol.ErrorFrame{Type: protocol.TypeError, Message: err.Error()})
			return
		}
		c.ParticipantID = participantID
		snapshot, err := c.svc.Snapshot(ctx, c.MeetingID)
		if err != nil {
			c.logger.Warn("snapshot load failed", zap.String("meeting_id", c.MeetingID.String()), zap.Error(err))
			snapshot = nil
		}
		c.sendFrame(protocol.JoinedFrame{
			Type:          protocol.TypeJoined,
			ParticipantID: participantID.String(),
			MeetingID:     c.MeetingID.String(),
			Snapshot:      snapshot,
		})
	case protocol.StatusFrame:
		if c.ParticipantID == uuid.Nil {
			c.sendFrame(protocol.ErrorFrame{Type: protocol.TypeError, Message: "not joined"})
			return
		}
		status := engagement.Status(f.Status)
		if !status.Valid() {
			c.sendFrame(protocol.ErrorFrame{Type: protocol.TypeError, Message: "unknown status"})
			return
		}
		delta, err := c.svc.RecordStatus(ctx, c.MeetingID, c.ParticipantID, status, time.Now())
		if err != nil {
			c.logger.Warn("status record failed", zap.String("participant_id", c.ParticipantID.String()), zap.Error(err))
			return
		}
		if delta != nil {
			c.hub.Broadcast(c.MeetingID, protocol.DeltaFrame{Type: protocol.TypeDelta, Data: *delta})
		}
	case protocol.PingFrame:
		c.sendFrame(protocol.PongFrame{Type: protocol.TypePong, ServerTime: time.Now().UTC()})
	}
}

// sendFrame queues a frame on the outbound channel.
func (c *Conn) sendFrame(frame interface{}) {
	data, err := protocol.Encode(frame)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writeFrame writes a frame synchronously, bypassing the send queue.
// Only used before the pumps start.
func (c *Conn) writeFrame(frame interface{}) {
	data, err := protocol.Encode(frame)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) closeWith(code int, reason string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = c.conn.Close()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
