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

// Dial implements the client half of spec.md §4.8 with the stock
// reconnect backoff (config.Default()'s ReconnectAttempts/
// ReconnectBackoff). Use DialWithConfig to honor an operator-supplied
// DynamicConfig instead.
func Dial(info transport.ServerInfo) (*Connection, error) {
	return DialWithConfig(info, config.Default())
}

// DialWithConfig is Dial, but the TCP-only path's (and the UDP+TCP
// path's callback-less fallback) dial backoff comes from dc's
// ReconnectAttempts/ReconnectBackoff rather than transport's package
// defaults. For the UDP+TCP scheme the reliable channel itself comes
// out of the lobbing handshake (dialLobbed), which has its own
// LobbingAttempts/LobbingWait budget per spec.md §4.8 and isn't
// affected by dc. Either way the result is wrapped as this
// Connection's single endpoint.
func DialWithConfig(info transport.ServerInfo, dc config.DynamicConfig) (*Connection, error) {
	c := NewConnection(RoleClient)

	var stream *transport.TCPStream
	var udp *transport.UDPChannel
	var err error

	if info.Scheme == transport.SchemeUDPAndTCP {
		stream, udp, err = dialLobbed(info)
		if err != nil {
			log.WithField("component", "vrpnnet").WithError(err).
				Warn("vrpn: UDP+TCP lobbing setup failed, falling back to a direct TCP-only connection")
			stream, err = transport.DialReliableWithBackoff(info.Addr(), dc.ReconnectAttempts, dc.ReconnectBackoff)
			udp = nil
		}
	} else {
		stream, err = transport.DialReliableWithBackoff(info.Addr(), dc.ReconnectAttempts, dc.ReconnectBackoff)
	}
	if err != nil {
		return nil, err
	}

	if err := exchangeCookies(stream); err != nil {
		stream.Close()
		if udp != nil {
			udp.Close()
		}
		return nil, err
	}

	ep := NewEndpoint(stream, udp)
	c.AddEndpoint(ep)
	if err := ep.PackAllDescriptions(c.dispatch); err != nil {
		c.log.WithError(err).Warn("vrpn: could not replay descriptions to new peer")
	}
	return c, nil
}

// dialLobbed implements spec.md §4.8's UDP+TCP connection setup, per
// original_source's vrpn_tokio/connect.rs connect_tcp_and_udp: the
// client binds its own ephemeral TCP listener and an unconnected UDP
// socket, lobs a "<ip> <port>\0" datagram announcing the listener's
// callback address to the server's well-known TCP port over UDP (not
// TCP), and retries the lob up to LobbingAttempts times, LobbingWait
// apart, while racing the listener's Accept for the server's
// callback. The UDP socket used to send the lob doubles as the
// resulting endpoint's low-latency channel; it is bound to the server's
// address before the first lob is sent.
func dialLobbed(info transport.ServerInfo) (*transport.TCPStream, *transport.UDPChannel, error) {
	udp, err := transport.ListenUDP(":0")
	if err != nil {
		return nil, nil, err
	}
	if err := udp.BindPeer(info.Addr()); err != nil {
		udp.Close()
		return nil, nil, err
	}

	listener, err := transport.Listen(":0")
	if err != nil {
		udp.Close()
		return nil, nil, err
	}
	defer listener.Close()

	localIP, err := localRoutableIP(info.Addr())
	if err != nil {
		udp.Close()
		return nil, nil, err
	}
	port, err := portOf(listener.Addr())
	if err != nil {
		udp.Close()
		return nil, nil, err
	}
	payload := transport.EncodeLobbingDatagram(localIP, port)

	for attempt := 1; attempt <= transport.LobbingAttempts; attempt++ {
		if _, err := udp.WriteToAddr(payload, info.Addr()); err != nil {
			udp.Close()
			return nil, nil, fmt.Errorf("vrpn/vrpnnet: sending UDP lobbing datagram: %w", err)
		}
		stream, err := listener.AcceptTimeout(transport.LobbingWait)
		if err == nil {
			return stream, udp, nil
		}
		if !errors.Is(err, transport.ErrWouldBlock) {
			udp.Close()
			return nil, nil, fmt.Errorf("vrpn/vrpnnet: waiting for callback connection: %w", err)
		}
		log.WithField("component", "vrpnnet").
			Debugf("vrpn: lobbing attempt %d/%d got no callback yet, retrying", attempt, transport.LobbingAttempts)
	}
	udp.Close()
	return nil, nil, transport.ErrLobbingTimedOut
}

// localRoutableIP reports the local IP the kernel would pick to reach
// remoteAddr, by briefly dialing it and reading back the socket's
// local address; the lobbing datagram needs this, not a listener
// bound to the wildcard address.
func localRoutableIP(remoteAddr string) (string, error) {
	probe, err := net.Dial("udp", remoteAddr)
	if err != nil {
		return "", fmt.Errorf("vrpn/vrpnnet: resolving local routable address: %w", err)
	}
	defer probe.Close()
	host, _, err := net.SplitHostPort(probe.LocalAddr().String())
	if err != nil {
		return "", err
	}
	return host, nil
}

func portOf(addr net.Addr) (uint16, error) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(port), nil
}
