package relay

import (
	"context"
	"errors"
	"fmt"
)

// EventKind tells whether a device appeared or went away.
type EventKind int

const (
	Attach EventKind = iota + 1
	Detach
)

func (k EventKind) String() string {
	switch k {
	case Attach:
		return "attach"
	case Detach:
		return "detach"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one device notification.
type Event struct {
	ID   string
	Kind EventKind
}

// ByteFunc receives the device syslog one byte at a time.
type ByteFunc func(b byte)

// Transport opens capture sessions on a device.
//
// StartCapture begins delivering bytes to onByte from a single goroutine and
// returns a handle to stop it. onByte blocks until StartCapture has returned
// and the session is announced, so it must not be called synchronously.
type Transport interface {
	StartCapture(ctx context.Context, id string, onByte ByteFunc) (Capture, error)
}

// Capture is an open syslog subscription. Stop must not return until onByte
// will no longer be called, unless it gives up waiting and returns an error
// wrapping ErrStopTimeout. In that case a call already in progress may still
// finish, and no further calls are made.
type Capture interface {
	Stop() error
}

// State is the controller's session state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

var (
	// ErrNoTransport is returned by New without a Transport.
	ErrNoTransport = errors.New("relay: transport is required")
	// ErrFeedClosed is returned by Run when the event feed closes before
	// the context is cancelled.
	ErrFeedClosed = errors.New("relay: device event feed closed")
	// ErrStopTimeout is wrapped by Capture.Stop when the capture goroutine
	// did not finish in time.
	ErrStopTimeout = errors.New("relay: capture did not stop in time")
)
