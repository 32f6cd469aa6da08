package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/internal/protocol"
)

// RollupService is what the broadcaster needs from the domain layer.
type RollupService interface {
	GetMeeting(ctx context.Context, id uuid.UUID) (*models.MeetingDetail, error)
	Rollup(ctx context.Context, meetingID uuid.UUID, now time.Time) (*engagement.Delta, error)
	Finalize(ctx context.Context, meetingID uuid.UUID) (*protocol.MeetingSummaryFrame, error)
}

// Broadcaster pushes periodic engagement deltas to every meeting with
// live connections, announces meeting start to countdown clients, and
// finishes meetings whose end time has passed.
type Broadcaster struct {
	hub      *Hub
	svc      RollupService
	clock    clockwork.Clock
	interval time.Duration
	logger   *zap.Logger

	started map[uuid.UUID]bool
	ended   map[uuid.UUID]bool
}

// NewBroadcaster creates a broadcaster ticking at the given interval.
func NewBroadcaster(hub *Hub, svc RollupService, clock clockwork.Clock, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Broadcaster{
		hub:      hub,
		svc:      svc,
		clock:    clock,
		interval: interval,
		logger:   logger,
		started:  make(map[uuid.UUID]bool),
		ended:    make(map[uuid.UUID]bool),
	}
}

// Run ticks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			b.tick(ctx)
		}
	}
}

func (b *Broadcaster) tick(ctx context.Context) {
	now := b.clock.Now()
	for _, meetingID := range b.hub.ActiveMeetings() {
		b.tickMeeting(ctx, meetingID, now)
	}
}

func (b *Broadcaster) tickMeeting(ctx context.Context, meetingID uuid.UUID, now time.Time) {
	if b.ended[meetingID] {
		return
	}
	meeting, err := b.svc.GetMeeting(ctx, meetingID)
	if err != nil {
		b.logger.Warn("broadcaster meeting lookup failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return
	}

	if meeting.Ended(now) {
		b.finish(ctx, meetingID)
		return
	}
	if !meeting.Started(now) {
		return
	}

	if !b.started[meetingID] {
		b.started[meetingID] = true
		b.hub.Broadcast(meetingID, protocol.MeetingStartedFrame{
			Type:      protocol.TypeMeetingStarted,
			MeetingID: meetingID.String(),
		})
	}

	delta, err := b.svc.Rollup(ctx, meetingID, now)
	if err != nil {
		b.logger.Warn("rollup failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return
	}
	if delta == nil {
		return
	}
	b.hub.Broadcast(meetingID, protocol.DeltaFrame{Type: protocol.TypeDelta, Data: *delta})
}

func (b *Broadcaster) finish(ctx context.Context, meetingID uuid.UUID) {
	b.ended[meetingID] = true
	summary, err := b.svc.Finalize(ctx, meetingID)
	if err != nil {
		b.logger.Warn("finalize failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
	} else if summary != nil {
		b.hub.Broadcast(meetingID, *summary)
	}
	b.hub.Broadcast(meetingID, protocol.MeetingEndedFrame{Type: protocol.TypeMeetingEnded})
	b.hub.CloseMeeting(meetingID, websocket.CloseNormalClosure, protocol.CloseReasonMeetingEnded)
	b.logger.Info("meeting finished", zap.String("meeting_id", meetingID.String()))
}
