package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is reported when an operation names an unknown stream.
	ErrNoSession = errors.New("no such session")
	// ErrNoMedia is reported when a session has no media connection.
	ErrNoMedia = errors.New("session has no media connection")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrQueueFull is returned when a call could not be queued.
	ErrQueueFull = errors.New("orchestrator queue full")
)

// MediaError wraps a media engine failure for one session.
type MediaError struct {
	StreamID string
	Op       string
	Err      error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media %s for %s: %v", e.Op, e.StreamID, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}
