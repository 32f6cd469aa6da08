package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims bind a visitor fingerprint to a meeting. The token is
// issued on /visit and presented with the WebSocket join frame.
type SessionClaims struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	Fingerprint string    `json:"fingerprint"`
	jwt.RegisteredClaims
}

// SessionService issues and validates meeting session tokens.
type SessionService struct {
	secret      []byte
	expireHours int
}

// NewSessionService creates a session token service.
func NewSessionService(secret string, expireHours int) *SessionService {
	return &SessionService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Generate creates a session token for a visitor of a meeting.
func (s *SessionService) Generate(meetingID uuid.UUID, fingerprint string) (string, error) {
	claims := SessionClaims{
		MeetingID:   meetingID,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a session token, returning claims or error.
func (s *SessionService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
