package vrpnnet

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn-go/vrpn/config"
	"github.com/vrpn-go/vrpn/transport"
)

// ServerConnection is a Connection bound to a TCP listener, accepting
// new peer endpoints as they connect (§4.8's server variant), plus a
// shared UDP socket on the same port that listens for UDP+TCP clients'
// lobbing datagrams.
type ServerConnection struct {
	*Connection
	listener *transport.Listener
	lobby    *transport.UDPChannel
	dc       config.DynamicConfig
}

// Listen binds a TCP listener and a UDP socket on addr (empty string
// selects transport.DefaultPort on all interfaces) and returns a
// server Connection ready to Accept and PollLobbying, with
// config.Default()'s reconnect backoff for PollLobbying's callback
// dial. Use SetDynamicConfig to override it.
func Listen(addr string) (*ServerConnection, error) {
	if addr == "" {
		addr = fmt.Sprintf(":%d", transport.DefaultPort)
	}
	ln, err := transport.Listen(addr)
	if err != nil {
		return nil, err
	}
	lobby, err := transport.ListenUDP(addr)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &ServerConnection{
		Connection: NewConnection(RoleServer),
		listener:   ln,
		lobby:      lobby,
		dc:         config.Default(),
	}, nil
}

// SetDynamicConfig overrides the reconnect backoff PollLobbying's
// callback dial uses, per an operator-supplied config.DynamicConfig.
func (s *ServerConnection) SetDynamicConfig(dc config.DynamicConfig) { s.dc = dc }

// Addr returns the bound listener address.
func (s *ServerConnection) Addr() string { return s.listener.Addr().String() }

// Close stops accepting new peers and closes the lobbing socket.
func (s *ServerConnection) Close() error {
	s.lobby.Close()
	return s.listener.Close()
}

// AcceptOnce blocks for the next plain (TCP-only scheme) incoming
// peer, runs the cookie exchange (send ours, then read and check
// theirs), and
// appends a new endpoint to the connection with no UDP channel.
// UDP+TCP peers arrive via PollLobbying instead, since they never dial
// the listener directly.
func (s *ServerConnection) AcceptOnce() error {
	stream, err := s.listener.Accept()
	if err != nil {
		return err
	}

	if err := exchangeCookies(stream); err != nil {
		stream.Close()
		return err
	}

	ep := NewEndpoint(stream, nil)
	idx := s.AddEndpoint(ep)
	if err := ep.PackAllDescriptions(s.dispatch); err != nil {
		log.WithField("component", "vrpnnet").WithError(err).
			WithField("endpoint", idx).Warn("vrpn: could not replay descriptions to new peer")
	}
	return nil
}

// Serve accepts new peers in a loop until the listener is closed.
func (s *ServerConnection) Serve() error {
	for {
		if err := s.AcceptOnce(); err != nil {
			return err
		}
	}
}

// PollLobbying checks the shared UDP socket for one pending lobbing
// datagram and, if present, completes the other half of §4.8's UDP+TCP
// setup: it decodes the client's announced TCP callback port, dials
// back to establish the reliable channel, and binds a UDP channel to
// the datagram's source address (the client's actual UDP socket, which
// may differ from the announced TCP port) for the low-latency channel.
// Returns at once when no datagram is pending; when one is, it blocks
// for the callback dial and the cookie exchange. Meant to be driven from
// the same tick as PollEndpoints.
func (s *ServerConnection) PollLobbying() error {
	payload, from, err := s.lobby.TryReadFromAddr()
	if err != nil {
		if errors.Is(err, transport.ErrWouldBlock) {
			return nil
		}
		return err
	}

	ip, callbackPort, err := transport.DecodeLobbingDatagram(payload)
	if err != nil {
		log.WithField("component", "vrpnnet").WithError(err).
			Warn("vrpn: malformed UDP lobbing datagram, dropping")
		return nil
	}

	callbackAddr := net.JoinHostPort(ip, strconv.Itoa(int(callbackPort)))
	stream, err := transport.DialReliableWithBackoff(callbackAddr, s.dc.ReconnectAttempts, s.dc.ReconnectBackoff)
	if err != nil {
		log.WithField("component", "vrpnnet").WithError(err).
			Warn("vrpn: could not call back to peer after lobbing")
		return nil
	}

	if err := exchangeCookies(stream); err != nil {
		stream.Close()
		return err
	}

	udp, err := transport.ListenUDP(":0")
	if err != nil {
		stream.Close()
		return err
	}
	if err := udp.BindPeer(from.String()); err != nil {
		stream.Close()
		udp.Close()
		return err
	}

	ep := NewEndpoint(stream, udp)
	idx := s.AddEndpoint(ep)
	if err := ep.PackAllDescriptions(s.dispatch); err != nil {
		log.WithField("component", "vrpnnet").WithError(err).
			WithField("endpoint", idx).Warn("vrpn: could not replay descriptions to new peer")
	}
	return nil
}
