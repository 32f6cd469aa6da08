package countdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/wsclient"
)

type fakeTransport struct {
	state         wsclient.State
	participantID string
	connectErr    error
	joinErr       error

	connects int
	joins    int
}

func (f *fakeTransport) State() wsclient.State { return f.state }
func (f *fakeTransport) ParticipantID() string { return f.participantID }

func (f *fakeTransport) Connect(ctx context.Context, meetingID string) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.state = wsclient.StateConnected
	return nil
}

func (f *fakeTransport) Join(ctx context.Context, identityToken string) (string, error) {
	f.joins++
	if f.joinErr != nil {
		return "", f.joinErr
	}
	f.participantID = "p-1"
	return f.participantID, nil
}

func TestEnsureJoined_NoOpWhenAlreadyJoined(t *testing.T) {
	transport := &fakeTransport{state: wsclient.StateConnected, participantID: "p-1"}
	joiner := NewAutoJoiner(transport, zap.NewNop())

	require.NoError(t, joiner.EnsureJoined(context.Background(), "m-1", "token"))
	require.Zero(t, transport.connects)
	require.Zero(t, transport.joins)
}

func TestEnsureJoined_JoinsOverExistingConnection(t *testing.T) {
	transport := &fakeTransport{state: wsclient.StateConnected}
	joiner := NewAutoJoiner(transport, zap.NewNop())

	require.NoError(t, joiner.EnsureJoined(context.Background(), "m-1", "token"))
	require.Zero(t, transport.connects)
	require.Equal(t, 1, transport.joins)
}

func TestEnsureJoined_ReconnectsWhenDisconnected(t *testing.T) {
	transport := &fakeTransport{state: wsclient.StateDisconnected}
	joiner := NewAutoJoiner(transport, zap.NewNop())

	require.NoError(t, joiner.EnsureJoined(context.Background(), "m-1", "token"))
	require.Equal(t, 1, transport.connects)
	require.Equal(t, 1, transport.joins)
}

func TestEnsureJoined_SurfacesConnectError(t *testing.T) {
	dialErr := errors.New("dial refused")
	transport := &fakeTransport{state: wsclient.StateDisconnected, connectErr: dialErr}
	joiner := NewAutoJoiner(transport, zap.NewNop())

	err := joiner.EnsureJoined(context.Background(), "m-1", "token")
	require.ErrorIs(t, err, dialErr)
	require.Zero(t, transport.joins)
}

func TestEnsureJoined_SurfacesJoinError(t *testing.T) {
	joinErr := errors.New("bad token")
	transport := &fakeTransport{state: wsclient.StateConnected, joinErr: joinErr}
	joiner := NewAutoJoiner(transport, zap.NewNop())

	err := joiner.EnsureJoined(context.Background(), "m-1", "token")
	require.ErrorIs(t, err, joinErr)
}
