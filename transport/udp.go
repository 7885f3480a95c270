package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// UDPChannel adapts a UDP socket to the core's non-blocking Datagram
// interface. A channel opened with DialUDP is kernel-connected to a
// single peer and WriteTo targets it directly; a channel opened with
// ListenUDP is unconnected (so it can receive a reply regardless of
// which local port the peer's own socket answers from) and needs
// BindPeer before WriteTo has anywhere to send.
type UDPChannel struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// DialUDP opens a UDP socket connected to addr, used once the TCP
// handshake has told each side the other's UDP callback address.
func DialUDP(addr string) (*UDPChannel, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("vrpn/transport: resolve UDP addr %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPChannel{conn: conn}, nil
}

// ListenUDP opens a UDP socket bound to addr (used by a server, or by a
// client advertising its own callback port to the peer).
func ListenUDP(addr string) (*UDPChannel, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("vrpn/transport: resolve UDP addr %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &UDPChannel{conn: conn}, nil
}

// LocalPort reports the bound local UDP port.
func (c *UDPChannel) LocalPort() uint16 {
	return uint16(c.conn.LocalAddr().(*net.UDPAddr).Port)
}

// LocalAddr reports the socket's local address, including the IP
// routing picked for an address dialed via DialUDP.
func (c *UDPChannel) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// BindPeer fixes the remote address WriteTo sends to, for a channel
// opened with ListenUDP rather than DialUDP.
func (c *UDPChannel) BindPeer(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("vrpn/transport: resolve UDP peer %s: %w", addr, err)
	}
	c.peer = raddr
	return nil
}

// WriteToAddr sends a one-off datagram to addr regardless of any
// bound peer. Used for the initial lobbing datagram, sent before the
// server has any reason to know this socket.
func (c *UDPChannel) WriteToAddr(b []byte, addr string) (int, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return 0, fmt.Errorf("vrpn/transport: resolve UDP addr %s: %w", addr, err)
	}
	return c.conn.WriteToUDP(b, raddr)
}

// TryReadFrom implements Datagram.
func (c *UDPChannel) TryReadFrom() ([]byte, error) {
	b, _, err := c.tryReadFromAddr()
	return b, err
}

// TryReadFromAddr behaves like TryReadFrom but also reports the
// sender's address, for the server's shared lobbying-receive socket,
// which must learn a peer's UDP return address from an incoming
// packet rather than already knowing it.
func (c *UDPChannel) TryReadFromAddr() ([]byte, *net.UDPAddr, error) {
	return c.tryReadFromAddr()
}

func (c *UDPChannel) tryReadFromAddr() ([]byte, *net.UDPAddr, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return nil, nil, err
	}
	buf := make([]byte, 64*1024)
	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, nil, ErrWouldBlock
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// WriteTo implements Datagram.
func (c *UDPChannel) WriteTo(b []byte) (int, error) {
	if c.peer != nil {
		return c.conn.WriteToUDP(b, c.peer)
	}
	return c.conn.Write(b)
}

// Close implements Datagram.
func (c *UDPChannel) Close() error { return c.conn.Close() }

// LobbingAttempts is the number of times the client re-sends the
// lobbing datagram while waiting for the server's callback TCP
// connection, per spec.md §4.8.
const LobbingAttempts = 5

// LobbingWait is how long the client waits for the callback connection
// after each lobbed datagram before retrying.
const LobbingWait = 500 * time.Millisecond

// EncodeLobbingDatagram renders the exact ASCII payload
// original_source's connect_tcp_and_udp sends to the server's
// well-known port to announce a callback address: "<ip> <port>\0".
// The client (vrpnnet's dialLobbed) puts its TCP callback listener's
// address in it.
func EncodeLobbingDatagram(ip string, port uint16) []byte {
	return append([]byte(fmt.Sprintf("%s %d", ip, port)), 0)
}

// ErrLobbingTimedOut is returned when the server never calls back on
// the client's listener within LobbingAttempts retries.
var ErrLobbingTimedOut = errors.New("vrpn/transport: server never connected back after lobbing UDP callback address")

// DecodeLobbingDatagram parses the "<ip> <port>\0" payload
// EncodeLobbingDatagram produces.
func DecodeLobbingDatagram(b []byte) (ip string, port uint16, err error) {
	if len(b) == 0 || b[len(b)-1] != 0 {
		return "", 0, fmt.Errorf("vrpn/transport: lobbing datagram missing NUL terminator")
	}
	fields := strings.Fields(string(b[:len(b)-1]))
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("vrpn/transport: malformed lobbing datagram %q", b)
	}
	n, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("vrpn/transport: malformed lobbing port %q: %w", fields[1], err)
	}
	return fields[0], uint16(n), nil
}
