package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/internal/protocol"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMeetingService struct {
	mu       sync.Mutex
	meeting  models.MeetingDetail
	joinID   uuid.UUID
	joinErr  error
	snapshot *engagement.Summary
	statuses []engagement.Status
	delta    *engagement.Delta
	summary  *protocol.MeetingSummaryFrame
}

func (f *fakeMeetingService) GetMeeting(ctx context.Context, id uuid.UUID) (*models.MeetingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.meeting
	return &m, nil
}

func (f *fakeMeetingService) Join(ctx context.Context, meetingID uuid.UUID, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return uuid.Nil, f.joinErr
	}
	return f.joinID, nil
}

func (f *fakeMeetingService) RecordStatus(ctx context.Context, meetingID, participantID uuid.UUID, status engagement.Status, at time.Time) (*engagement.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if f.delta == nil {
		return nil, nil
	}
	d := *f.delta
	d.ParticipantID = participantID.String()
	d.Status = status
	return &d, nil
}

func (f *fakeMeetingService) Snapshot(ctx context.Context, meetingID uuid.UUID) (*engagement.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeMeetingService) Rollup(ctx context.Context, meetingID uuid.UUID, now time.Time) (*engagement.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delta, nil
}

func (f *fakeMeetingService) Finalize(ctx context.Context, meetingID uuid.UUID) (*protocol.MeetingSummaryFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, nil
}

func (f *fakeMeetingService) endMeeting(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meeting.EndTS = now.Add(-time.Minute)
}

func (f *fakeMeetingService) recorded() []engagement.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engagement.Status(nil), f.statuses...)
}

func liveMeeting(id uuid.UUID, now time.Time) models.MeetingDetail {
	return models.MeetingDetail{Meeting: models.Meeting{
		ID:      id,
		StartTS: now.Add(-10 * time.Minute),
		EndTS:   now.Add(50 * time.Minute),
	}}
}

func startRealtimeServer(t *testing.T, hub *Hub, svc MeetingService) string {
	t.Helper()
	router := gin.New()
	router.GET("/ws/meetings/:id", ServeWs(hub, svc, zap.NewNop()))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialMeeting(t *testing.T, baseURL string, meetingID uuid.UUID) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(baseURL+"/ws/meetings/"+meetingID.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerFrame(t *testing.T, conn *websocket.Conn) any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.DecodeServer(raw)
	require.NoError(t, err)
	return frame
}

func TestJoinDeliversAcknowledgmentWithSnapshot(t *testing.T) {
	meetingID := uuid.New()
	participantID := uuid.New()
	svc := &fakeMeetingService{
		meeting:  liveMeeting(meetingID, time.Now()),
		joinID:   participantID,
		snapshot: &engagement.Summary{MeetingID: meetingID.String(), BucketMinutes: 1},
	}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteJSON(protocol.JoinFrame{Type: protocol.TypeJoin, Token: "fp-1"}))

	frame := readServerFrame(t, conn)
	joined, ok := frame.(protocol.JoinedFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, participantID.String(), joined.ParticipantID)
	require.Equal(t, meetingID.String(), joined.MeetingID)
	require.NotNil(t, joined.Snapshot)
	require.Equal(t, meetingID.String(), joined.Snapshot.MeetingID)
}

func TestStatusBeforeJoinIsRejected(t *testing.T) {
	meetingID := uuid.New()
	svc := &fakeMeetingService{meeting: liveMeeting(meetingID, time.Now())}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteJSON(protocol.StatusFrame{Type: protocol.TypeStatus, Status: engagement.StatusEngaged}))

	frame := readServerFrame(t, conn)
	errFrame, ok := frame.(protocol.ErrorFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, "not joined", errFrame.Message)
	require.Empty(t, svc.recorded())
}

func TestStatusAfterJoinIsRecorded(t *testing.T) {
	meetingID := uuid.New()
	svc := &fakeMeetingService{meeting: liveMeeting(meetingID, time.Now()), joinID: uuid.New()}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteJSON(protocol.JoinFrame{Type: protocol.TypeJoin, Token: "fp-1"}))
	readServerFrame(t, conn)

	require.NoError(t, conn.WriteJSON(protocol.StatusFrame{Type: protocol.TypeStatus, Status: engagement.StatusSpeaking}))
	require.Eventually(t, func() bool {
		recorded := svc.recorded()
		return len(recorded) == 1 && recorded[0] == engagement.StatusSpeaking
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusUpdateBroadcastsConfirmingDelta(t *testing.T) {
	meetingID := uuid.New()
	participantID := uuid.New()
	svc := &fakeMeetingService{
		meeting: liveMeeting(meetingID, time.Now()),
		joinID:  participantID,
		delta:   &engagement.Delta{MeetingID: meetingID.String(), Overall: 50},
	}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteJSON(protocol.JoinFrame{Type: protocol.TypeJoin, Token: "fp-1"}))
	readServerFrame(t, conn)

	require.NoError(t, conn.WriteJSON(protocol.StatusFrame{Type: protocol.TypeStatus, Status: engagement.StatusEngaged}))

	frame := readServerFrame(t, conn)
	delta, ok := frame.(protocol.DeltaFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, participantID.String(), delta.Data.ParticipantID)
	require.Equal(t, engagement.StatusEngaged, delta.Data.Status)
}

func TestMalformedFrameIsNotFatal(t *testing.T) {
	meetingID := uuid.New()
	svc := &fakeMeetingService{meeting: liveMeeting(meetingID, time.Now()), joinID: uuid.New()}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	frame := readServerFrame(t, conn)
	errFrame, ok := frame.(protocol.ErrorFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, "malformed frame", errFrame.Message)

	// the connection survives and still serves pings
	require.NoError(t, conn.WriteJSON(protocol.PingFrame{Type: protocol.TypePing}))
	frame = readServerFrame(t, conn)
	_, ok = frame.(protocol.PongFrame)
	require.True(t, ok, "got %#v", frame)
}

func TestEndedMeetingIsClosedImmediately(t *testing.T) {
	meetingID := uuid.New()
	now := time.Now()
	svc := &fakeMeetingService{meeting: models.MeetingDetail{Meeting: models.Meeting{
		ID:      meetingID,
		StartTS: now.Add(-2 * time.Hour),
		EndTS:   now.Add(-time.Hour),
	}}}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)

	frame := readServerFrame(t, conn)
	_, ok := frame.(protocol.MeetingEndedFrame)
	require.True(t, ok, "got %#v", frame)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Equal(t, protocol.CloseReasonMeetingEnded, closeErr.Text)
	require.Zero(t, hub.ConnCount(meetingID))
}

func TestPendingMeetingGetsCountdown(t *testing.T) {
	meetingID := uuid.New()
	now := time.Now()
	start := now.Add(30 * time.Minute)
	svc := &fakeMeetingService{meeting: models.MeetingDetail{Meeting: models.Meeting{
		ID:      meetingID,
		StartTS: start,
		EndTS:   start.Add(time.Hour),
	}}}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)

	frame := readServerFrame(t, conn)
	countdown, ok := frame.(protocol.MeetingCountdownFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, meetingID.String(), countdown.MeetingID)
	require.WithinDuration(t, start, countdown.StartTime, time.Second)
	require.WithinDuration(t, now, countdown.ServerTime, 5*time.Second)
}

func TestBroadcasterPushesDeltasAndFinishesMeeting(t *testing.T) {
	meetingID := uuid.New()
	now := time.Now()
	svc := &fakeMeetingService{
		meeting: liveMeeting(meetingID, now),
		joinID:  uuid.New(),
		delta:   &engagement.Delta{MeetingID: meetingID.String(), Overall: 66},
		summary: &protocol.MeetingSummaryFrame{
			Type:            protocol.TypeMeetingSummary,
			MeetingID:       meetingID.String(),
			EngagementLevel: engagement.LevelHealthy,
		},
	}
	hub := NewHub(zap.NewNop(), nil, nil)
	url := startRealtimeServer(t, hub, svc)

	conn := dialMeeting(t, url, meetingID)
	require.NoError(t, conn.WriteJSON(protocol.JoinFrame{Type: protocol.TypeJoin, Token: "fp-1"}))
	readServerFrame(t, conn)

	clock := clockwork.NewFakeClockAt(now)
	broadcaster := NewBroadcaster(hub, svc, clock, 15*time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(15 * time.Second)

	// first tick on a started meeting announces the start, then the delta
	frame := readServerFrame(t, conn)
	started, ok := frame.(protocol.MeetingStartedFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, meetingID.String(), started.MeetingID)

	frame = readServerFrame(t, conn)
	delta, ok := frame.(protocol.DeltaFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, float64(66), delta.Data.Overall)

	// once the meeting is over the next tick finishes it
	svc.endMeeting(clock.Now())
	clock.BlockUntil(1)
	clock.Advance(15 * time.Second)

	frame = readServerFrame(t, conn)
	summary, ok := frame.(protocol.MeetingSummaryFrame)
	require.True(t, ok, "got %#v", frame)
	require.Equal(t, engagement.LevelHealthy, summary.EngagementLevel)

	frame = readServerFrame(t, conn)
	_, ok = frame.(protocol.MeetingEndedFrame)
	require.True(t, ok, "got %#v", frame)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Equal(t, protocol.CloseReasonMeetingEnded, closeErr.Text)
}
