package dispatch

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vrpn-go/vrpn/wire"
)

// ErrTooManyHandlers is returned when a single handler list has
// exhausted its id space.
var ErrTooManyHandlers = errors.New("vrpn/dispatch: too many handlers")

// maxHandlersPerCollection bounds one handler list (2^20 slots, far
// below the registry's 2^31-1 id bound); it is generous enough that
// hitting it indicates a leak.
const maxHandlersPerCollection = 1 << 20

// HandlerResult tells the dispatcher whether a callback wants to keep
// receiving future messages.
type HandlerResult int

const (
	// HandlerContinue leaves the handler registered.
	HandlerContinue HandlerResult = iota
	// HandlerRemove unregisters the handler once this call returns.
	HandlerRemove
)

// HandlerFunc is a registered callback. Returning a non-nil error is
// logged by the dispatcher and treated the same as HandlerContinue;
// handlers signal their own removal via the returned HandlerResult, not
// via error.
type HandlerFunc func(msg wire.GenericMessage) (HandlerResult, error)

// HandlerHandle identifies a registered handler for later removal. It
// is stable across additions and removals of other handlers.
type HandlerHandle struct {
	messageType   wire.IDType
	isTypeFiltered bool
	id             uint64
}

type callbackEntry struct {
	handle       uint64
	callback     HandlerFunc
	senderFilter *wire.LocalID[wire.SenderKind]
}

// callbackCollection is one handler list (either the generic list or
// one type's list). Removal takes the slot rather than compacting the
// slice, so in-flight iteration is unaffected by a handler removing
// itself or another handler mid-dispatch.
type callbackCollection struct {
	entries    []*callbackEntry
	nextHandle uint64
}

func (c *callbackCollection) add(cb HandlerFunc, senderFilter *wire.LocalID[wire.SenderKind]) (uint64, error) {
	if len(c.entries) >= maxHandlersPerCollection {
		return 0, ErrTooManyHandlers
	}
	h := c.nextHandle
	c.nextHandle++
	c.entries = append(c.entries, &callbackEntry{handle: h, callback: cb, senderFilter: senderFilter})
	return h, nil
}

func (c *callbackCollection) remove(handle uint64) bool {
	for i, e := range c.entries {
		if e != nil && e.handle == handle {
			c.entries[i] = nil
			return true
		}
	}
	return false
}

// call runs every live, sender-matching entry. mu is the dispatcher's
// mutex, held by the caller; it is released around each callback so a
// handler can call back into the dispatcher (register a name, add or
// remove a handler, send a reply) without deadlocking.
func (c *callbackCollection) call(msg wire.GenericMessage, mu *sync.Mutex, log *logrus.Entry) {
	for i, e := range c.entries {
		if e == nil {
			continue
		}
		if e.senderFilter != nil && e.senderFilter.Int() != msg.Header.Sender {
			continue
		}
		mu.Unlock()
		result, err := e.callback(msg)
		mu.Lock()
		if err != nil {
			log.WithError(err).Warn("vrpn: handler returned an error")
		}
		if result == HandlerRemove {
			c.entries[i] = nil
		}
	}
}

// RegisterResult reports whether register{Sender,Type} found an
// existing mapping or created one. Err is set only when registering a
// genuinely new name failed (ErrTooManyMappings); a lookup of an
// already-registered name never fails.
type RegisterResult[K any] struct {
	ID    wire.LocalID[K]
	IsNew bool
	Err   error
}

// TypeDispatcher owns the connection-wide name registries and handler
// collections. All mutating operations are safe for concurrent use; the
// concurrency model expects it to normally be reached only from the
// single task polling a connection's endpoints, with the mutex guarding
// the (rare) case of a handler registered from another goroutine.
type TypeDispatcher struct {
	mu sync.Mutex

	senders *registry[wire.SenderKind]
	types   *registry[wire.TypeKind]

	generic callbackCollection
	perType map[wire.IDType]*callbackCollection

	log *logrus.Entry
}

// NewTypeDispatcher constructs a dispatcher with the system
// pre-registrations applied in the order the protocol requires:
// sender "VRPN Control" first, then the four connection lifecycle
// message types.
func NewTypeDispatcher() *TypeDispatcher {
	d := &TypeDispatcher{
		senders: newRegistry[wire.SenderKind](),
		types:   newRegistry[wire.TypeKind](),
		perType: make(map[wire.IDType]*callbackCollection),
		log:     logrus.WithField("component", "dispatch"),
	}
	if _, _, err := d.senders.tryInsertOrGet(string(wire.ControlSenderName)); err != nil {
		panic("vrpn/dispatch: could not pre-register system names: " + err.Error())
	}
	for _, n := range []wire.MessageTypeName{
		wire.GotFirstConnectionName,
		wire.GotConnectionName,
		wire.DroppedConnectionName,
		wire.DroppedLastConnectionName,
	} {
		if _, _, err := d.types.tryInsertOrGet(string(n)); err != nil {
			panic("vrpn/dispatch: could not pre-register system names: " + err.Error())
		}
	}
	return d
}

// RegisterSender registers a sender name, or returns its existing id.
func (d *TypeDispatcher) RegisterSender(name string) RegisterResult[wire.SenderKind] {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, isNew, err := d.senders.tryInsertOrGet(name)
	return RegisterResult[wire.SenderKind]{ID: id, IsNew: isNew, Err: err}
}

// RegisterType registers a message type name, or returns its existing
// id.
func (d *TypeDispatcher) RegisterType(name string) RegisterResult[wire.TypeKind] {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, isNew, err := d.types.tryInsertOrGet(name)
	return RegisterResult[wire.TypeKind]{ID: id, IsNew: isNew, Err: err}
}

// SenderName returns the name registered to a local sender id.
func (d *TypeDispatcher) SenderName(id wire.LocalID[wire.SenderKind]) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.senders.nameOf(id)
}

// TypeName returns the name registered to a local message type id.
func (d *TypeDispatcher) TypeName(id wire.LocalID[wire.TypeKind]) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.types.nameOf(id)
}

// Senders returns every registered sender name in registration order.
func (d *TypeDispatcher) Senders() []NamedID[wire.SenderKind] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.senders.all()
}

// Types returns every registered message type name in registration
// order.
func (d *TypeDispatcher) Types() []NamedID[wire.TypeKind] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.types.all()
}

// AddHandler installs a generic handler (typeFilter == nil) or a
// type-specific handler, optionally restricted to one sender.
func (d *TypeDispatcher) AddHandler(cb HandlerFunc, typeFilter *wire.LocalID[wire.TypeKind], senderFilter *wire.LocalID[wire.SenderKind]) HandlerHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if typeFilter == nil {
		h, err := d.generic.add(cb, senderFilter)
		if err != nil {
			d.log.WithError(err).Warn("vrpn: dropping handler registration, generic list is full")
		}
		return HandlerHandle{id: h}
	}
	coll, ok := d.perType[typeFilter.Int()]
	if !ok {
		coll = &callbackCollection{}
		d.perType[typeFilter.Int()] = coll
	}
	h, err := coll.add(cb, senderFilter)
	if err != nil {
		d.log.WithError(err).WithField("type", typeFilter.Int()).Warn("vrpn: dropping handler registration, list is full")
	}
	return HandlerHandle{messageType: typeFilter.Int(), isTypeFiltered: true, id: h}
}

// RemoveHandler unregisters a previously-added handler. Reports whether
// it was found.
func (d *TypeDispatcher) RemoveHandler(handle HandlerHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !handle.isTypeFiltered {
		return d.generic.remove(handle.id)
	}
	coll, ok := d.perType[handle.messageType]
	if !ok {
		return false
	}
	return coll.remove(handle.id)
}

// Dispatch routes one non-system message: the generic handler list
// fires first, in registration order, then the type-specific list,
// also in registration order. System messages (negative type id) are
// never handed to user handlers — the endpoint layer is responsible
// for consuming those before calling Dispatch.
func (d *TypeDispatcher) Dispatch(msg wire.GenericMessage) {
	if msg.IsSystemMessage() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generic.call(msg, &d.mu, d.log)
	if coll, ok := d.perType[msg.Header.MessageType]; ok {
		coll.call(msg, &d.mu, d.log)
	}
}
