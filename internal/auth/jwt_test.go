package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSessionService_GenerateValidate(t *testing.T) {
	svc := NewSessionService("test-secret", 1)
	meetingID := uuid.New()

	token, err := svc.Generate(meetingID, "fp-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, meetingID, claims.MeetingID)
	require.Equal(t, "fp-123", claims.Fingerprint)
}

func TestSessionService_RejectsWrongSecret(t *testing.T) {
	token, err := NewSessionService("secret-a", 1).Generate(uuid.New(), "fp")
	require.NoError(t, err)

	_, err = NewSessionService("secret-b", 1).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionService_RejectsGarbage(t *testing.T) {
	svc := NewSessionService("test-secret", 1)
	_, err := svc.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
