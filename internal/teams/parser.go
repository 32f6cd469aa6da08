// Package teams parses Microsoft Teams meeting invites into the
// identifiers the meeting store keys on.
package teams

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnrecognizedInvite means the input matched no known invite shape.
var ErrUnrecognizedInvite = errors.New("teams: unrecognized invite")

// Invite is the parsed result. Exactly one of ThreadID and MeetingID is
// set: classic meetup-join links carry a chat thread id, newer /meet/
// links and bare dial-in codes carry a meeting id.
type Invite struct {
	ThreadID  string
	MeetingID string
}

// ParseInvite extracts the meeting identity from a Teams invite URL or
// a bare meeting code.
func ParseInvite(raw string) (Invite, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Invite{}, ErrUnrecognizedInvite
	}

	if code, ok := meetingCode(raw); ok {
		return Invite{MeetingID: code}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Invite{}, ErrUnrecognizedInvite
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		switch seg {
		case "meetup-join":
			if i+1 >= len(segments) {
				return Invite{}, ErrUnrecognizedInvite
			}
			thread, err := url.PathUnescape(segments[i+1])
			if err != nil || thread == "" {
				return Invite{}, ErrUnrecognizedInvite
			}
			return Invite{ThreadID: thread}, nil
		case "meet":
			if i+1 >= len(segments) || segments[i+1] == "" {
				return Invite{}, ErrUnrecognizedInvite
			}
			return Invite{MeetingID: segments[i+1]}, nil
		}
	}
	return Invite{}, ErrUnrecognizedInvite
}

// meetingCode matches a dial-in meeting code as Teams displays it:
// digits grouped with spaces ("385 562 023 120 47"), starting and
// ending with a digit. Returns the code with the spaces stripped.
func meetingCode(s string) (string, bool) {
	if len(s) < 3 || !isDigit(s[0]) || !isDigit(s[len(s)-1]) {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case isDigit(s[i]):
			b.WriteByte(s[i])
		case s[i] == ' ':
		default:
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
