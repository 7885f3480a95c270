package vrpnnet

import (
	"errors"
	"fmt"

	"github.com/vrpn-go/vrpn/transport"
	"github.com/vrpn-go/vrpn/wire"
)

// exchangeCookies implements spec.md §4.2/§4.8's handshake: both sides
// write their network cookie, then read and validate the peer's. Only
// the major version participates in compatibility; a mismatch is fatal
// to the connection (§7).
func exchangeCookies(stream *transport.TCPStream) error {
	ours := wire.NewNetworkCookie().Encode()
	if _, err := stream.Write(ours); err != nil {
		return fmt.Errorf("vrpn/vrpnnet: writing cookie: %w", err)
	}

	buf, err := readExactly(stream, wire.CookieSize)
	if err != nil {
		return fmt.Errorf("vrpn/vrpnnet: reading peer cookie: %w", err)
	}
	peer, err := wire.DecodeCookie(buf)
	if err != nil {
		return err
	}
	if err := wire.CheckNetworkCompatible(peer.Version); err != nil {
		return err
	}
	return nil
}

// readExactly blocks (spinning on TryRead) until n bytes have arrived
// on stream. Handshake I/O is small and one-shot, so a busy read here
// does not conflict with the endpoint's normal non-blocking poll
// discipline, which only begins afterward.
func readExactly(stream *transport.TCPStream, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		chunk, err := stream.TryRead()
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				continue
			}
			return nil, err
		}
		buf = append(buf, chunk...)
	}
	return buf[:n], nil
}
