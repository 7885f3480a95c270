// Package ping implements the liveness check described in spec.md
// §4.9: a client that pings periodically and flatlines if unanswered,
// and a server that echoes every ping back as a pong.
package ping

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn-go/vrpn/dispatch"
	"github.com/vrpn-go/vrpn/vrpnnet"
	"github.com/vrpn-go/vrpn/wire"
)

// PingMessageName and PongMessageName are the two message type names
// spec.md §4.9 defines; both carry empty bodies.
const (
	PingMessageName = wire.MessageTypeName("vrpn_Base ping_message")
	PongMessageName = wire.MessageTypeName("vrpn_Base pong_message")
)

// DefaultFlatlineAfter and DefaultRepingAfter are the fallbacks NewClient
// uses when given a zero flatlineAfter, matching config.Default()'s
// PingFlatlineThreshold and spec.md §4.9's 1s reping cadence.
const (
	DefaultFlatlineAfter = 10 * time.Second
	DefaultRepingAfter   = 1 * time.Second
)

// Client installs a pong handler for a given sender and tracks the
// duration since the first unanswered ping, per spec.md §4.9. A Client
// holds a plain pointer to the Connection it pings on. The pong handler
// always returns HandlerContinue; it is removed only by Close.
type Client struct {
	mu sync.Mutex

	conn            *vrpnnet.Connection
	senderName      string
	firstUnanswered *time.Time
	flatlined       bool

	flatlineAfter time.Duration
	repingAfter   time.Duration

	handle dispatch.HandlerHandle

	log *log.Entry
}

// NewClient registers a pong handler for senderName on conn, sends an
// initial ping, and starts the unanswered-ping clock. flatlineAfter
// should come from config.DynamicConfig.PingFlatlineThreshold; a zero
// value falls back to DefaultFlatlineAfter, with the reping cadence
// scaled to a tenth of whichever threshold is in effect.
func NewClient(conn *vrpnnet.Connection, senderName string, flatlineAfter time.Duration) *Client {
	if flatlineAfter <= 0 {
		flatlineAfter = DefaultFlatlineAfter
	}
	repingAfter := flatlineAfter / 10
	if repingAfter <= 0 {
		repingAfter = DefaultRepingAfter
	}

	c := &Client{
		conn:          conn,
		senderName:    senderName,
		flatlineAfter: flatlineAfter,
		repingAfter:   repingAfter,
		log:           log.WithField("component", "ping-client"),
	}

	senderID := conn.RegisterSender(senderName).ID
	pongID := conn.RegisterType(string(PongMessageName)).ID

	c.handle = conn.AddHandler(func(wire.GenericMessage) (dispatch.HandlerResult, error) {
		c.onPong()
		return dispatch.HandlerContinue, nil
	}, &pongID, &senderID)

	c.sendPing()
	return c
}

func (c *Client) sendPing() {
	now := time.Now()
	c.mu.Lock()
	if c.firstUnanswered == nil {
		c.firstUnanswered = &now
	}
	c.mu.Unlock()

	if err := c.conn.PackMessageBody(c.senderName, string(PingMessageName), nil, wire.ClassReliable, wire.TimeVal{
		Seconds: int32(now.Unix()),
		Micros:  int32(now.Nanosecond() / 1000),
	}); err != nil {
		c.log.WithError(err).Warn("vrpn: could not send ping")
	}
}

func (c *Client) onPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.firstUnanswered = nil
	c.flatlined = false
}

// CheckPingCycle implements §4.9: called once per second by the owner.
// It returns the duration since the first unanswered ping, or
// (0, false) if the most recent ping has been answered. A new ping is
// sent once that duration exceeds the reping threshold; Flatlined
// becomes true once it exceeds the configured flatline threshold.
func (c *Client) CheckPingCycle() (time.Duration, bool) {
	c.mu.Lock()
	first := c.firstUnanswered
	c.mu.Unlock()

	if first == nil {
		return 0, false
	}
	elapsed := time.Since(*first)

	if elapsed > c.flatlineAfter {
		c.mu.Lock()
		c.flatlined = true
		c.mu.Unlock()
	}
	if elapsed > c.repingAfter {
		c.sendPing()
	}
	return elapsed, true
}

// RepingAfter reports the duration this client waits for an answer
// before sending another ping, for callers (e.g. cmd/vrpn-ping) that
// drive CheckPingCycle off a ticker at this cadence.
func (c *Client) RepingAfter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repingAfter
}

// Flatlined reports whether the peer has gone unacceptably long without
// answering a ping.
func (c *Client) Flatlined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flatlined
}

// Close removes the pong handler.
func (c *Client) Close() { c.conn.RemoveHandler(c.handle) }

// Server installs a ping handler on conn that answers every ping with a
// pong carrying the same sender id, per spec.md §4.9's server role.
type Server struct {
	conn   *vrpnnet.Connection
	handle dispatch.HandlerHandle
	log    *log.Entry
}

// NewServer registers the ping handler.
func NewServer(conn *vrpnnet.Connection) *Server {
	s := &Server{conn: conn, log: log.WithField("component", "ping-server")}
	pingID := conn.RegisterType(string(PingMessageName)).ID
	conn.RegisterType(string(PongMessageName))

	s.handle = conn.AddHandler(func(msg wire.GenericMessage) (dispatch.HandlerResult, error) {
		s.onPing(msg)
		return dispatch.HandlerContinue, nil
	}, &pingID, nil)
	return s
}

func (s *Server) onPing(msg wire.GenericMessage) {
	senderName, ok := s.conn.Dispatcher().SenderName(wire.NewLocalID[wire.SenderKind](msg.Header.Sender))
	if !ok {
		s.log.WithField("sender", msg.Header.Sender).Warn("vrpn: ping from an unregistered sender, cannot reply")
		return
	}
	now := time.Now()
	if err := s.conn.PackMessageBody(senderName, string(PongMessageName), nil, wire.ClassReliable, wire.TimeVal{
		Seconds: int32(now.Unix()),
		Micros:  int32(now.Nanosecond() / 1000),
	}); err != nil {
		s.log.WithError(err).Warn("vrpn: could not send pong")
	}
}

// Close removes the ping handler.
func (s *Server) Close() { s.conn.RemoveHandler(s.handle) }
