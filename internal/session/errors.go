package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSession matches every transport or scene failure reported by a Session.
	ErrSession = errors.New("session: simulator request failed")

	// ErrNotOpen indicates a request on a session that is not connected.
	ErrNotOpen = errors.New("session: not open")

	// ErrProtocol indicates a malformed or mismatched frame.
	ErrProtocol = errors.New("session: protocol violation")
)

// SessionError wraps a failure with the operation that caused it.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func (e *SessionError) Is(target error) bool { return target == ErrSession }

// RemoteError is an error message sent back by the simulator.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "simulator: " + e.Message }
