package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the error kinds named in the design's error
// handling section. Callers should use errors.Is/errors.As rather than
// string comparison.
var (
	// ErrOutOfBuffer names the out-of-buffer error kind. The encoder in
	// this package sizes its own output buffer and never returns it.
	ErrOutOfBuffer = errors.New("vrpn/wire: buffering ran out of buffer space")

	// ErrMalformedLength is produced by the decoder when a length field
	// is smaller than the padded header size. Fatal to the stream.
	ErrMalformedLength = errors.New("vrpn/wire: length field smaller than padded header size")

	// ErrUnexpectedCookieBytes is produced when a cookie does not match
	// the expected ASCII banner byte-for-byte. Fatal to the stream.
	ErrUnexpectedCookieBytes = errors.New("vrpn/wire: cookie bytes did not match the expected banner")

	// ErrShortDescription is produced when a system description message
	// body is too short to contain its declared length-prefixed name.
	ErrShortDescription = errors.New("vrpn/wire: description body shorter than its declared length")
)

// SizeRequirement describes how many more bytes a decode needs before it
// can proceed; exactly one of Exactly/AtLeast is meaningful (AtLeast <
// 0 when Exactly is set, and vice versa).
type SizeRequirement struct {
	Exactly int
	AtLeast int
}

func exactly(n int) SizeRequirement  { return SizeRequirement{Exactly: n, AtLeast: -1} }
func atLeast(n int) SizeRequirement  { return SizeRequirement{Exactly: -1, AtLeast: n} }

// NeedMoreDataError is not an error condition at the stream level: it
// signals that the decoder's buffer does not yet contain a complete
// frame. The caller should retry once more bytes have arrived; no bytes
// are consumed when this is returned.
type NeedMoreDataError struct {
	Requirement SizeRequirement
}

func (e *NeedMoreDataError) Error() string {
	if e.Requirement.Exactly >= 0 {
		return fmt.Sprintf("vrpn/wire: need %d more bytes", e.Requirement.Exactly)
	}
	return fmt.Sprintf("vrpn/wire: need at least %d more bytes", e.Requirement.AtLeast)
}

// ErrVersionMismatch is returned by the cookie compatibility checks
// when the peer's major version does not match ours. Fatal to the
// connection.
type ErrVersionMismatch struct {
	Actual, Expected Version
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("vrpn/wire: version mismatch: expected something compatible with %s, got %s", e.Expected, e.Actual)
}
