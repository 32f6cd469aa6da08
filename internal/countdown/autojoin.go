package countdown

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/wsclient"
)

// Transport is the slice of the realtime client the auto-join transition
// needs.
type Transport interface {
	State() wsclient.State
	ParticipantID() string
	Connect(ctx context.Context, meetingID string) error
	Join(ctx context.Context, identityToken string) (string, error)
}

// AutoJoiner performs the join transition when a countdown completes:
// re-establish the channel if it is no longer connected, then enroll with
// the stored identity token. Failures surface as errors without breaking
// the countdown view.
type AutoJoiner struct {
	transport Transport
	logger    *zap.Logger
}

// NewAutoJoiner creates an auto-joiner over the given transport.
func NewAutoJoiner(transport Transport, logger *zap.Logger) *AutoJoiner {
	return &AutoJoiner{transport: transport, logger: logger}
}

// EnsureJoined connects (if needed) and joins the meeting. It is a no-op
// when a participant identity already exists.
func (a *AutoJoiner) EnsureJoined(ctx context.Context, meetingID, identityToken string) error {
	if a.transport.ParticipantID() != "" {
		return nil
	}
	if a.transport.State() != wsclient.StateConnected {
		a.logger.Info("countdown complete, re-establishing channel", zap.String("meeting_id", meetingID))
		if err := a.transport.Connect(ctx, meetingID); err != nil {
			return fmt.Errorf("auto-join connect: %w", err)
		}
	}
	participantID, err := a.transport.Join(ctx, identityToken)
	if err != nil {
		return fmt.Errorf("auto-join: %w", err)
	}
	a.logger.Info("auto-joined meeting",
		zap.String("meeting_id", meetingID),
		zap.String("participant_id", participantID))
	return nil
}
