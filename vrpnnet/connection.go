package vrpnnet

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn-go/vrpn/dispatch"
	"github.com/vrpn-go/vrpn/stats"
	"github.com/vrpn-go/vrpn/wire"
)

// Status is the tri-state connection status from spec.md §4.8.
type Status int

const (
	// StatusClientConnecting: a client connection is mid-handshake or
	// mid-retry, with no endpoint up yet.
	StatusClientConnecting Status = iota
	// StatusClientConnected: the client has exactly one live endpoint.
	StatusClientConnected
	// StatusServer: a server connection, carrying N peer endpoints.
	StatusServer
)

func (s Status) String() string {
	switch s {
	case StatusClientConnecting:
		return "client-connecting"
	case StatusClientConnected:
		return "client-connected"
	case StatusServer:
		return "server"
	default:
		return "unknown"
	}
}

// Role distinguishes a client Connection (one outbound peer, retried on
// drop) from a server Connection (many inbound peers, accepted and
// dropped independently).
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Connection aggregates a sparse vector of endpoints behind a shared
// dispatcher, per spec.md §4.8. Endpoint slots are set to nil rather
// than compacted when an endpoint closes, matching the "sparse vector"
// wording and keeping any externally-held endpoint index stable for
// the life of the Connection.
type Connection struct {
	mu sync.Mutex

	role      Role
	endpoints []*Endpoint
	dispatch  *dispatch.TypeDispatcher

	logNames *wire.LogFileNames

	counters *stats.Counters

	log *log.Entry
}

// NewConnection constructs an empty Connection ready to accept or hold
// endpoints, with a fresh dispatcher carrying the system
// pre-registrations.
func NewConnection(role Role) *Connection {
	return &Connection{
		role:     role,
		dispatch: dispatch.NewTypeDispatcher(),
		log:      log.WithField("component", "connection"),
	}
}

// Dispatcher exposes the shared dispatcher for handler registration.
func (c *Connection) Dispatcher() *dispatch.TypeDispatcher { return c.dispatch }

// RegisterSender registers a sender name and propagates a newly
// allocated id to every active endpoint (§4.7.2, triggered by §4.8).
func (c *Connection) RegisterSender(name string) dispatch.RegisterResult[wire.SenderKind] {
	result := c.dispatch.RegisterSender(name)
	if result.IsNew {
		c.propagateNewSender(name, result.ID)
	}
	return result
}

// RegisterType registers a message type name and propagates a newly
// allocated id to every active endpoint.
func (c *Connection) RegisterType(name string) dispatch.RegisterResult[wire.TypeKind] {
	result := c.dispatch.RegisterType(name)
	if result.IsNew {
		c.propagateNewType(name, result.ID)
	}
	return result
}

func (c *Connection) propagateNewSender(name string, id wire.LocalID[wire.SenderKind]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ep := range c.endpoints {
		if ep == nil {
			continue
		}
		if err := ep.NewLocalSenderID(name, id); err != nil {
			c.log.WithError(err).Warn("vrpn: could not announce new sender to a peer")
		}
	}
}

func (c *Connection) propagateNewType(name string, id wire.LocalID[wire.TypeKind]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ep := range c.endpoints {
		if ep == nil {
			continue
		}
		if err := ep.NewLocalTypeID(name, id); err != nil {
			c.log.WithError(err).Warn("vrpn: could not announce new message type to a peer")
		}
	}
}

// AddHandler and RemoveHandler forward to the shared dispatcher (§6).
func (c *Connection) AddHandler(cb dispatch.HandlerFunc, typeFilter *wire.LocalID[wire.TypeKind], senderFilter *wire.LocalID[wire.SenderKind]) dispatch.HandlerHandle {
	return c.dispatch.AddHandler(cb, typeFilter, senderFilter)
}

func (c *Connection) RemoveHandler(h dispatch.HandlerHandle) bool { return c.dispatch.RemoveHandler(h) }

// AddEndpoint appends a new peer endpoint, returning its slot index.
func (c *Connection) AddEndpoint(ep *Endpoint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep.SetCounters(c.counters)
	for i, existing := range c.endpoints {
		if existing == nil {
			c.endpoints[i] = ep
			return i
		}
	}
	c.endpoints = append(c.endpoints, ep)
	return len(c.endpoints) - 1
}

// SetCounters attaches the process-wide counters this Connection's
// endpoints report RX/TX/dropped-message activity to, per SPEC_FULL.md
// §4.12, applying it to every endpoint already held as well as future
// ones added via AddEndpoint.
func (c *Connection) SetCounters(counters *stats.Counters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = counters
	for _, ep := range c.endpoints {
		if ep != nil {
			ep.SetCounters(counters)
		}
	}
}

// Status reports the tri-state connection status (§4.8).
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == RoleServer {
		return StatusServer
	}
	for _, ep := range c.endpoints {
		if ep != nil {
			return StatusClientConnected
		}
	}
	return StatusClientConnecting
}

// EndpointCount reports the number of live (non-nil) endpoint slots.
func (c *Connection) EndpointCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ep := range c.endpoints {
		if ep != nil {
			n++
		}
	}
	return n
}

// LogNames reports the negotiated local/remote log file names, if any
// were set via SetLogNames.
func (c *Connection) LogNames() (wire.LogFileNames, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logNames == nil {
		return wire.LogFileNames{}, false
	}
	return *c.logNames, true
}

// SetLogNames records the log file names negotiated at handshake time
// (§4.15) so LogNames can surface them later.
func (c *Connection) SetLogNames(names wire.LogFileNames) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logNames = &names
}

// PackMessageBody implements pack_message_body (§6): registers sender
// and type if needed, builds a generic message stamped with the
// caller-supplied time now, and buffers it on every endpoint.
func (c *Connection) PackMessageBody(senderName, typeName string, body []byte, class wire.ClassOfService, now wire.TimeVal) error {
	sender := c.RegisterSender(senderName)
	msgType := c.RegisterType(typeName)

	msg := wire.GenericMessage{
		Header: wire.Header{
			Time:        now,
			Sender:      sender.ID.Int(),
			MessageType: msgType.ID.Int(),
		},
		Body: body,
	}
	return c.PackMessage(msg, class)
}

// PackMessage implements pack_message (§4.8): buffer a already-built
// generic message on every active endpoint.
func (c *Connection) PackMessage(msg wire.GenericMessage, class wire.ClassOfService) error {
	c.mu.Lock()
	endpoints := append([]*Endpoint(nil), c.endpoints...)
	c.mu.Unlock()

	var firstErr error
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		if err := ep.BufferGenericMessage(msg, class); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PackAllDescriptions implements pack_all_descriptions (§6): every
// endpoint replays the full current sender/type registration set.
func (c *Connection) PackAllDescriptions() error {
	c.mu.Lock()
	endpoints := append([]*Endpoint(nil), c.endpoints...)
	c.mu.Unlock()

	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		if err := ep.PackAllDescriptions(c.dispatch); err != nil {
			return err
		}
	}
	return nil
}

// PollEndpoints drives every live endpoint's Poll once, removing any
// that report PollClosed, and returns every ExtendedSystemCommand
// surfaced this round for the caller (typically cmd/vrpnd) to log or
// act on.
func (c *Connection) PollEndpoints() []ExtendedSystemCommand {
	c.mu.Lock()
	endpoints := append([]*Endpoint(nil), c.endpoints...)
	c.mu.Unlock()

	var all []ExtendedSystemCommand
	for i, ep := range endpoints {
		if ep == nil {
			continue
		}
		status, extended, err := ep.Poll(c.dispatch)
		all = append(all, extended...)
		if err != nil {
			c.log.WithError(err).WithField("endpoint", i).Error("vrpn: endpoint poll failed, closing")
			c.removeEndpoint(i)
			continue
		}
		if status == PollClosed {
			c.log.WithField("endpoint", i).Info("vrpn: peer closed the connection")
			c.removeEndpoint(i)
		}
	}
	return all
}

func (c *Connection) removeEndpoint(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= 0 && i < len(c.endpoints) {
		c.endpoints[i] = nil
	}
}

// ErrNotClient reports a client-only operation attempted on a
// server-role Connection. No Connection method in this package returns
// it.
var ErrNotClient = fmt.Errorf("vrpn/vrpnnet: not a client connection")
