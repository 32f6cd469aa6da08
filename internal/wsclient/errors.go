package wsclient

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation requires an open channel
// and none exists, e.g. Join before a successful Connect.
var ErrNotConnected = errors.New("not connected to a meeting channel")

// ErrClientClosed is returned from operations on a disposed client.
var ErrClientClosed = errors.New("client is closed")

// ConnectionError reports that the transport could not be opened or was
// rejected by the server.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// JoinError reports that enrollment was rejected or timed out.
type JoinError struct {
	Message string
	Timeout bool
}

func (e *JoinError) Error() string {
	if e.Timeout {
		return "join timed out waiting for acknowledgment"
	}
	return "join rejected: " + e.Message
}

// StaleSessionError reports that the server declared the meeting over or
// not yet started; these states are terminal for the session and carry no
// retry affordance.
type StaleSessionError struct {
	State   State
	Message string
}

func (e *StaleSessionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("stale session (%s): %s", e.State, e.Message)
	}
	return fmt.Sprintf("stale session (%s)", e.State)
}
