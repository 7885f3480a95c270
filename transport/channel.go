// Package transport implements the byte-stream and datagram
// collaborator interfaces the core consumes (spec.md §6): non-blocking
// TCP/UDP channels, the VRPN server address grammar, and the fixed-backoff
// connection setup state machine for both transport schemes.
package transport

import (
	"errors"
	"time"
)

// ErrWouldBlock is returned by Stream.TryRead when no data is currently
// available; it is not a stream error, matching spec.md §7's framing of
// "non-blocking reads returning byte counts or a would-block signal".
var ErrWouldBlock = errors.New("vrpn/transport: would block")

// Stream is the core's non-blocking byte-stream collaborator interface:
// a reliable, ordered channel (TCP in this implementation).
type Stream interface {
	// TryRead returns whatever bytes are immediately available. It
	// returns ErrWouldBlock (with a nil slice) when the stream simply
	// has nothing to offer yet, and io.EOF when the peer closed its
	// write side.
	TryRead() ([]byte, error)
	// Write sends b, blocking until the kernel has accepted all of it
	// or an error occurs.
	Write(b []byte) (int, error)
	Close() error
}

// Datagram is the core's non-blocking datagram collaborator interface
// (UDP in this implementation).
type Datagram interface {
	TryReadFrom() ([]byte, error)
	WriteTo(b []byte) (int, error)
	Close() error
}

// pollDeadline is how far into the future TryRead/TryReadFrom push the
// read deadline before attempting a read; it is the mechanism by which
// a blocking net.Conn is turned into a non-blocking TryRead, matching
// the immediate-deadline idiom already used for socket setup in
// facebook-time's timestamp package.
const pollDeadline = time.Microsecond
