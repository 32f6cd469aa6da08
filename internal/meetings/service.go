package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/auth"
	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/internal/participants"
	"github.com/aura-meet/engagement/internal/protocol"
	"github.com/aura-meet/engagement/internal/teams"
	"github.com/aura-meet/engagement/pkg/queue"
)

var (
	// ErrMeetingEnded means the meeting is over and accepts no updates.
	ErrMeetingEnded = errors.New("meeting ended")
	// ErrMeetingNotStarted means the meeting has not begun yet.
	ErrMeetingNotStarted = errors.New("meeting not started")
	// ErrBadToken means the identity token did not resolve to this meeting.
	ErrBadToken = errors.New("invalid identity token")
)

// ServiceConfig tunes slot and aggregation geometry. Smoothing picks
// the series smoothing strategy; empty means Kalman.
type ServiceConfig struct {
	SlotMinutes   int
	BucketMinutes int
	WindowMinutes int
	Smoothing     engagement.SmoothingAlgorithm
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.SlotMinutes < 1 {
		c.SlotMinutes = 60
	}
	if c.BucketMinutes < 1 {
		c.BucketMinutes = 1
	}
	if c.WindowMinutes < 1 {
		c.WindowMinutes = 5
	}
	return c
}

// Service owns meeting slot resolution, participant joins, status
// recording, and engagement aggregation.
type Service struct {
	repo         *Repository
	participants *participants.Repository
	cache        *SnapshotCache
	sessions     *auth.SessionService
	jobs         *queue.Queue
	clock        clockwork.Clock
	logger       *zap.Logger
	cfg          ServiceConfig
	smoother     engagement.Smoother
}

// NewService creates the meeting service. cache and jobs may be nil.
func NewService(repo *Repository, parts *participants.Repository, cache *SnapshotCache, sessions *auth.SessionService, jobs *queue.Queue, clock clockwork.Clock, logger *zap.Logger, cfg ServiceConfig) *Service {
	return &Service{
		repo:         repo,
		participants: parts,
		cache:        cache,
		sessions:     sessions,
		jobs:         jobs,
		clock:        clock,
		logger:       logger,
		cfg:          cfg.withDefaults(),
		smoother:     engagement.NewSmoother(cfg.Smoothing),
	}
}

// VisitInput selects the meeting context for a dashboard visit.
type VisitInput struct {
	MeetingRoomID *uuid.UUID
	MSTeams       string
	Fingerprint   string
}

// VisitResult is the bootstrap payload for a dashboard session.
type VisitResult struct {
	Meeting      *models.MeetingDetail `json:"meeting"`
	MeetingID    string                `json:"meeting_id"`
	MeetingStart time.Time             `json:"meeting_start"`
	MeetingEnd   time.Time             `json:"meeting_end"`
	SessionToken string                `json:"session_token"`
}

// Visit finds or creates the meeting for the current slot and issues a
// session token binding the visitor's fingerprint to it.
func (s *Service) Visit(ctx context.Context, in VisitInput) (*VisitResult, error) {
	now := s.clock.Now()

	var (
		detail *models.MeetingDetail
		err    error
	)
	switch {
	case in.MSTeams != "":
		detail, err = s.visitTeams(ctx, in.MSTeams, now)
	case in.MeetingRoomID != nil:
		detail, err = s.visitRoom(ctx, *in.MeetingRoomID, now)
	default:
		return nil, errors.New("meeting_room_id or ms_teams required")
	}
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Generate(detail.ID, in.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &VisitResult{
		Meeting:      detail,
		MeetingID:    detail.ID.String(),
		MeetingStart: detail.StartTS,
		MeetingEnd:   detail.EndTS,
		SessionToken: token,
	}, nil
}

func (s *Service) visitRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (*models.MeetingDetail, error) {
	detail, err := s.repo.FindCurrentByRoom(ctx, roomID, now)
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	start, end := s.slotBounds(now)
	m := &models.Meeting{StartTS: start, EndTS: end, MeetingRoomID: &roomID}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("meeting slot created",
		zap.String("meeting_id", m.ID.String()),
		zap.String("meeting_room_id", roomID.String()),
		zap.Time("start_ts", start))
	return s.repo.GetDetail(ctx, m.ID)
}

func (s *Service) visitTeams(ctx context.Context, invite string, now time.Time) (*models.MeetingDetail, error) {
	parsed, err := teams.ParseInvite(invite)
	if err != nil {
		return nil, err
	}

	var detail *models.MeetingDetail
	if parsed.ThreadID != "" {
		detail, err = s.repo.FindCurrentByThread(ctx, parsed.ThreadID, now)
	} else {
		detail, err = s.repo.FindCurrentByTeamsID(ctx, parsed.MeetingID, now)
	}
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	start, end := s.slotBounds(now)
	m := &models.Meeting{StartTS: start, EndTS: end}
	if parsed.ThreadID != "" {
		m.MSTeamsThreadID = &parsed.ThreadID
	} else {
		m.MSTeamsID = &parsed.MeetingID
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("teams meeting slot created",
		zap.String("meeting_id", m.ID.String()),
		zap.Time("start_ts", start))
	return s.repo.GetDetail(ctx, m.ID)
}

// slotBounds aligns a meeting slot to the configured duration grid.
func (s *Service) slotBounds(now time.Time) (start, end time.Time) {
	slot := time.Duration(s.cfg.SlotMinutes) * time.Minute
	start = now.UTC().Truncate(slot)
	return start, start.Add(slot)
}

// GetMeeting returns a meeting with its location names.
func (s *Service) GetMeeting(ctx context.Context, id uuid.UUID) (*models.MeetingDetail, error) {
	return s.repo.GetDetail(ctx, id)
}

// UpdateDuration moves the meeting end to start plus the given minutes.
func (s *Service) UpdateDuration(ctx context.Context, id uuid.UUID, durationMinutes int) (*models.MeetingDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	end := detail.StartTS.Add(time.Duration(durationMinutes) * time.Minute)
	if err := s.repo.UpdateEnd(ctx, id, end); err != nil {
		return nil, err
	}
	return s.repo.GetDetail(ctx, id)
}

// Join resolves an identity token to a participant of the meeting. The
// token is either a session token from /visit or a raw fingerprint from
// older clients.
func (s *Service) Join(ctx context.Context, meetingID uuid.UUID, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrBadToken
	}
	detail, err := s.repo.GetDetail(ctx, meetingID)
	if err != nil {
		return uuid.Nil, err
	}
	now := s.clock.Now()
	if detail.Ended(now) {
		return uuid.Nil, ErrMeetingEnded
	}
	if !detail.Started(now) {
		return uuid.Nil, ErrMeetingNotStarted
	}

	fingerprint := token
	if claims, err := s.sessions.Validate(token); err == nil {
		if claims.MeetingID != meetingID {
			return uuid.Nil, ErrBadToken
		}
		fingerprint = claims.Fingerprint
	}

	p, err := s.participants.Ensure(ctx, meetingID, fingerprint)
	if err != nil {
		return uuid.Nil, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, meetingID)
	}
	return p.ID, nil
}

// RecordStatus stores a status sample, clamped to the meeting window,
// and returns the resulting delta tagged with the triggering participant
// so clients can reconcile optimistic local state. The delta is nil when
// the rollup cannot be computed; the sample is stored either way.
func (s *Service) RecordStatus(ctx context.Context, meetingID, participantID uuid.UUID, status engagement.Status, at time.Time) (*engagement.Delta, error) {
	detail, err := s.repo.GetDetail(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !detail.Started(at) {
		return nil, ErrMeetingNotStarted
	}
	if detail.Ended(at) {
		return nil, ErrMeetingEnded
	}
	if at.Before(detail.StartTS) {
		at = detail.StartTS
	}
	if err := s.participants.RecordSample(ctx, participantID, meetingID, string(status), at); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, meetingID)
	}

	delta, err := s.Rollup(ctx, meetingID, at)
	if err != nil {
		s.logger.Warn("status rollup failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return nil, nil
	}
	if delta != nil {
		delta.ParticipantID = participantID.String()
		delta.Status = status
	}
	return delta, nil
}

// RecordStatusByParticipant is the legacy HTTP path: the participant id
// alone identifies the meeting. The periodic broadcaster picks up the
// change, so the delta is discarded here.
func (s *Service) RecordStatusByParticipant(ctx context.Context, participantID uuid.UUID, status engagement.Status, at time.Time) error {
	p, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		return err
	}
	_, err = s.RecordStatus(ctx, p.MeetingID, participantID, status, at)
	return err
}

// Snapshot returns the full engagement summary for a meeting, cached.
func (s *Service) Snapshot(ctx context.Context, meetingID uuid.UUID) (*engagement.Summary, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, meetingID); err == nil && cached != nil {
			return cached, nil
		}
	}
	detail, err := s.repo.GetDetail(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	summary, err := s.buildSummary(ctx, detail)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, meetingID, summary)
	}
	return summary, nil
}

func (s *Service) buildSummary(ctx context.Context, detail *models.MeetingDetail) (*engagement.Summary, error) {
	now := s.clock.Now()
	end := detail.EndTS
	if now.Before(end) {
		end = now
	}
	if end.Before(detail.StartTS) {
		end = detail.StartTS
	}

	infos, samples, err := s.loadSamples(ctx, detail.ID, detail.StartTS, end)
	if err != nil {
		return nil, err
	}
	summary := engagement.BuildSummary(detail.ID.String(), detail.StartTS, end,
		s.cfg.BucketMinutes, s.cfg.WindowMinutes, infos, samples, s.smoother)
	return &summary, nil
}

// Rollup recomputes the current bucket over the trailing window,
// producing the next delta broadcast. Returns nil without error when the
// meeting has no participants yet.
func (s *Service) Rollup(ctx context.Context, meetingID uuid.UUID, now time.Time) (*engagement.Delta, error) {
	windowStart := now.Add(-time.Duration(s.cfg.WindowMinutes) * time.Minute)
	infos, samples, err := s.loadSamples(ctx, meetingID, windowStart, now)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	delta := engagement.BucketRollup(meetingID.String(), now,
		s.cfg.BucketMinutes, s.cfg.WindowMinutes, infos, samples)
	return &delta, nil
}

// Finalize computes and persists the final rollup of a finished meeting
// and builds its summary frame.
func (s *Service) Finalize(ctx context.Context, meetingID uuid.UUID) (*protocol.MeetingSummaryFrame, error) {
	detail, err := s.repo.GetDetail(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	infos, samples, err := s.loadSamples(ctx, meetingID, detail.StartTS, detail.EndTS)
	if err != nil {
		return nil, err
	}
	summary := engagement.BuildSummary(meetingID.String(), detail.StartTS, detail.EndTS,
		s.cfg.BucketMinutes, s.cfg.WindowMinutes, infos, samples, s.smoother)

	avg := engagement.AverageEngagement(summary)
	normalized := engagement.NormalizeEngagement(avg, len(infos))
	level := engagement.ClassifyLevel(normalized)

	record := &models.MeetingSummary{
		MeetingID:            meetingID,
		ParticipantCount:     len(infos),
		AverageEngagement:    avg,
		NormalizedEngagement: normalized,
		EngagementLevel:      string(level),
	}
	if err := s.repo.SaveSummary(ctx, record); err != nil {
		s.logger.Warn("summary persist failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, meetingID)
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueueMeetingArchive(ctx, queue.MeetingArchivePayload{MeetingID: meetingID}); err != nil {
			s.logger.Warn("archive enqueue failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		}
	}

	return &protocol.MeetingSummaryFrame{
		Type:                 protocol.TypeMeetingSummary,
		MeetingID:            meetingID.String(),
		CityName:             deref(detail.CityName),
		MeetingRoomName:      deref(detail.MeetingRoomName),
		StartTS:              detail.StartTS,
		EndTS:                detail.EndTS,
		DurationMinutes:      int(detail.EndTS.Sub(detail.StartTS).Minutes()),
		MaxParticipants:      len(infos),
		NormalizedEngagement: normalized,
		EngagementLevel:      level,
	}, nil
}

func (s *Service) loadSamples(ctx context.Context, meetingID uuid.UUID, from, to time.Time) ([]engagement.ParticipantInfo, engagement.SampleSet, error) {
	list, err := s.participants.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, nil, err
	}
	infos := make([]engagement.ParticipantInfo, 0, len(list))
	for _, p := range list {
		infos = append(infos, engagement.ParticipantInfo{ID: p.ID.String(), Fingerprint: p.Fingerprint})
	}

	rows, err := s.participants.SamplesByMeeting(ctx, meetingID, from, to.Add(time.Minute))
	if err != nil {
		return nil, nil, err
	}
	samples := make(engagement.SampleSet)
	for _, row := range rows {
		samples.Add(row.ParticipantID.String(), row.RecordedAt, engagement.Status(row.Status), s.cfg.BucketMinutes)
	}
	return infos, samples, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
