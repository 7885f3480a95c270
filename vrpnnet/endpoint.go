package vrpnnet

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn-go/vrpn/dispatch"
	"github.com/vrpn-go/vrpn/stats"
	"github.com/vrpn-go/vrpn/transport"
	"github.com/vrpn-go/vrpn/translation"
	"github.com/vrpn-go/vrpn/wire"
)

// ErrNoRoom is returned by BufferGenericMessage when the outbound queue
// for the selected channel is at capacity. Per spec.md §9's
// back-pressure note, callers must treat this as transient and retry
// after the next Poll, never drop the message themselves.
var ErrNoRoom = errors.New("vrpn/vrpnnet: outbound queue has no room")

// maxOutboxFrames bounds each channel's outbound queue.
const maxOutboxFrames = 4096

// maxFramesPerPoll bounds how many reads a single Poll makes from one
// channel. Every complete frame a read delivers is dispatched in that
// Poll, so the number of frames per Poll is not capped.
const maxFramesPerPoll = 10

// PollStatus is the result of one Poll call.
type PollStatus int

const (
	// PollPending reports the endpoint is still open.
	PollPending PollStatus = iota
	// PollClosed reports a drained stream hit end-of-stream; the caller
	// (Connection) must remove this endpoint on its next pass.
	PollClosed
)

type outbox struct {
	mu     sync.Mutex
	frames [][]byte
}

func (o *outbox) push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.frames) >= maxOutboxFrames {
		return ErrNoRoom
	}
	o.frames = append(o.frames, frame)
	return nil
}

func (o *outbox) drainInto(w interface {
	Write([]byte) (int, error)
}) error {
	o.mu.Lock()
	frames := o.frames
	o.frames = nil
	o.mu.Unlock()

	for _, f := range frames {
		if _, err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}

// Endpoint is the per-peer conversation state described in spec.md
// §4.7: a reliable channel, an optional low-latency channel, the
// sender/type translation tables that keep this peer's numeric ids in
// sync with ours, and an outbound queue of internally- or
// handler-generated SystemCommand values.
type Endpoint struct {
	mu sync.Mutex

	reliable        transport.Stream
	reliableDecoder wire.FrameDecoder
	reliableOutbox  outbox

	udp        transport.Datagram
	udpDecoder wire.FrameDecoder
	udpOutbox  outbox

	senders *translation.Table[wire.SenderKind]
	types   *translation.Table[wire.TypeKind]

	systemQueue []SystemCommand

	seq uint32

	counters *stats.Counters

	log *log.Entry
}

// NewEndpoint wraps an established reliable channel (and optionally a
// low-latency channel) as a fresh Endpoint with empty translation
// tables.
func NewEndpoint(reliable transport.Stream, udp transport.Datagram) *Endpoint {
	return &Endpoint{
		reliable: reliable,
		udp:      udp,
		senders:  translation.NewTable[wire.SenderKind](),
		types:    translation.NewTable[wire.TypeKind](),
		log:      log.WithField("component", "endpoint"),
	}
}

// SetCounters attaches the process-wide counters this endpoint reports
// RX/TX/dropped-message activity to. A nil Endpoint.counters (the
// default) makes every Inc* call below a no-op.
func (e *Endpoint) SetCounters(c *stats.Counters) {
	e.mu.Lock()
	e.counters = c
	e.mu.Unlock()
}

// typeName resolves a local message-type id back to a name, for counter
// keys. The lookup goes through this endpoint's translation table, so
// only types the peer has described resolve; any other id falls back to
// "type-<id>".
func (e *Endpoint) typeName(localType wire.LocalID[wire.TypeKind]) string {
	if entry, ok := e.types.FindByLocal(localType); ok {
		return entry.Name
	}
	return fmt.Sprintf("type-%d", localType.Int())
}

func (e *Endpoint) nextSeq() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.seq
	e.seq++
	return s
}

// BufferGenericMessage implements §4.7's public contract: reliable
// class (or the absence of a UDP channel) routes to the TCP sink,
// otherwise the UDP sink. Returns ErrNoRoom on back-pressure.
func (e *Endpoint) BufferGenericMessage(msg wire.GenericMessage, class wire.ClassOfService) error {
	frame := wire.EncodeSequencedMessage(msg, e.nextSeq())
	var err error
	if class.WantsReliable() || e.udp == nil {
		err = e.reliableOutbox.push(frame)
	} else {
		err = e.udpOutbox.push(frame)
	}
	if err != nil {
		e.incDropped("outbox-full")
		return err
	}
	e.incTX(e.typeName(wire.NewLocalID[wire.TypeKind](msg.Header.MessageType)))
	return nil
}

func (e *Endpoint) incRX(name string) {
	if e.counters != nil {
		e.counters.IncRX(name)
	}
}

func (e *Endpoint) incTX(name string) {
	if e.counters != nil {
		e.counters.IncTX(name)
	}
}

func (e *Endpoint) incDropped(reason string) {
	if e.counters != nil {
		e.counters.IncDropped(reason)
	}
}

// SendSystemChange enqueues a SystemCommand for this endpoint's own
// processing loop, per §4.7's public contract.
func (e *Endpoint) SendSystemChange(cmd SystemCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.systemQueue = append(e.systemQueue, cmd)
}

// NewLocalSenderID implements new_local_id for the sender namespace: if
// the peer has already described name, binds that translation entry to
// local (otherwise the table is left unchanged, since it is indexed by
// remote id), and emits a sender description on the reliable channel,
// per §4.7.2.
func (e *Endpoint) NewLocalSenderID(name string, local wire.LocalID[wire.SenderKind]) error {
	e.mu.Lock()
	e.senders.AttachLocalToName(name, local)
	e.mu.Unlock()
	return e.reliableOutbox.push(wire.EncodeSequencedMessage(
		wire.NewDescriptionMessage(wire.SystemSenderDescription, local.Int(), name), e.nextSeq()))
}

// NewLocalTypeID implements new_local_id for the message-type
// namespace, with the same table behavior as NewLocalSenderID, per
// §4.7.2.
func (e *Endpoint) NewLocalTypeID(name string, local wire.LocalID[wire.TypeKind]) error {
	e.mu.Lock()
	e.types.AttachLocalToName(name, local)
	e.mu.Unlock()
	return e.reliableOutbox.push(wire.EncodeSequencedMessage(
		wire.NewDescriptionMessage(wire.SystemTypeDescription, local.Int(), name), e.nextSeq()))
}

// PackAllDescriptions emits one description message per name the
// dispatcher has registered, for a peer that just connected and needs
// the full id-to-name mapping replayed to it.
func (e *Endpoint) PackAllDescriptions(d *dispatch.TypeDispatcher) error {
	for _, s := range d.Senders() {
		if err := e.NewLocalSenderID(s.Name, s.ID); err != nil {
			return err
		}
	}
	for _, ty := range d.Types() {
		if err := e.NewLocalTypeID(ty.Name, ty.ID); err != nil {
			return err
		}
	}
	return nil
}

// SenderTable and TypeTable expose this endpoint's translation tables
// read-only-in-spirit, for callers (such as tests) that inspect or seed
// the mappings.
func (e *Endpoint) SenderTable() *translation.Table[wire.SenderKind] { return e.senders }
func (e *Endpoint) TypeTable() *translation.Table[wire.TypeKind]     { return e.types }

// remapInbound implements §4.7.3: both the sender and message-type
// fields of a non-system message must be translated from remote to
// local space before it reaches the dispatcher. A failed remap drops
// the message with a warning; the endpoint stays open.
func (e *Endpoint) remapInbound(msg wire.GenericMessage) (wire.GenericMessage, bool) {
	e.mu.Lock()
	localSender, ok, err := e.senders.MapToLocal(wire.NewRemoteID[wire.SenderKind](msg.Header.Sender))
	e.mu.Unlock()
	if err != nil || !ok {
		e.log.WithError(err).WithField("remote_sender", msg.Header.Sender).Warn("vrpn: dropping message, sender remap failed")
		e.incDropped("sender-remap-failed")
		return wire.GenericMessage{}, false
	}

	e.mu.Lock()
	localType, ok, err := e.types.MapToLocal(wire.NewRemoteID[wire.TypeKind](msg.Header.MessageType))
	e.mu.Unlock()
	if err != nil || !ok {
		e.log.WithError(err).WithField("remote_type", msg.Header.MessageType).Warn("vrpn: dropping message, type remap failed")
		e.incDropped("type-remap-failed")
		return wire.GenericMessage{}, false
	}

	msg.Header.Sender = localSender.Int()
	msg.Header.MessageType = localType.Int()
	return msg, true
}

// handleSystemMessage implements the receive side of §4.7.1: update
// translation tables for descriptions, and surface everything else
// (UDP/log/disconnect) as an ExtendedSystemCommand for the Connection
// to log or act on. d is the dispatcher used to resolve or
// allocate a local id for a newly-described name.
func (e *Endpoint) handleSystemMessage(msg wire.GenericMessage, d *dispatch.TypeDispatcher) (*ExtendedSystemCommand, error) {
	parsed, err := parseSystemMessage(msg)
	if err != nil {
		e.log.WithError(err).Warn("vrpn: could not parse system message")
		return nil, err
	}

	switch parsed.kind {
	case CommandSenderDescription:
		result := d.RegisterSender(parsed.name)
		if result.Err != nil {
			return nil, result.Err
		}
		e.mu.Lock()
		_, insErr := e.senders.InsertRemote(parsed.name, wire.NewRemoteID[wire.SenderKind](parsed.remoteID), result.ID)
		e.mu.Unlock()
		if insErr != nil {
			e.log.WithError(insErr).Warn("vrpn: could not record remote sender description")
		}
		return nil, nil

	case CommandTypeDescription:
		result := d.RegisterType(parsed.name)
		if result.Err != nil {
			return nil, result.Err
		}
		e.mu.Lock()
		_, insErr := e.types.InsertRemote(parsed.name, wire.NewRemoteID[wire.TypeKind](parsed.remoteID), result.ID)
		e.mu.Unlock()
		if insErr != nil {
			e.log.WithError(insErr).Warn("vrpn: could not record remote type description")
		}
		return nil, nil

	case CommandUDPDescription:
		return &ExtendedSystemCommand{Kind: CommandUDPDescription, UDPAddr: parsed.udpAddr, UDPPort: parsed.udpPort}, nil

	case CommandLogDescription:
		return &ExtendedSystemCommand{Kind: CommandLogDescription, LogNames: parsed.logNames}, nil

	case CommandDisconnect:
		return &ExtendedSystemCommand{Kind: CommandDisconnect}, nil

	default:
		return nil, fmt.Errorf("vrpn/vrpnnet: unhandled system command kind %d", parsed.kind)
	}
}

// drainSystemQueue turns every queued outgoing SystemCommand into wire
// bytes on the reliable channel, and reports the non-description ones
// (UDP/log/disconnect) as ExtendedSystemCommands for the Connection.
func (e *Endpoint) drainSystemQueue() ([]ExtendedSystemCommand, error) {
	e.mu.Lock()
	queue := e.systemQueue
	e.systemQueue = nil
	e.mu.Unlock()

	var extended []ExtendedSystemCommand
	for _, cmd := range queue {
		switch cmd.Kind {
		case CommandSenderDescription:
			if err := e.NewLocalSenderID(cmd.Name, wire.NewLocalID[wire.SenderKind](cmd.LocalID)); err != nil {
				return extended, err
			}
		case CommandTypeDescription:
			if err := e.NewLocalTypeID(cmd.Name, wire.NewLocalID[wire.TypeKind](cmd.LocalID)); err != nil {
				return extended, err
			}
		case CommandUDPDescription:
			msg := wire.NewUDPDescriptionMessage(net.ParseIP(cmd.UDPAddr), cmd.UDPPort)
			if err := e.reliableOutbox.push(wire.EncodeSequencedMessage(msg, e.nextSeq())); err != nil {
				return extended, err
			}
			extended = append(extended, ExtendedSystemCommand{Kind: CommandUDPDescription, UDPAddr: cmd.UDPAddr, UDPPort: cmd.UDPPort})
		case CommandLogDescription:
			msg := wire.NewLogDescriptionMessage(cmd.LogNames)
			if err := e.reliableOutbox.push(wire.EncodeSequencedMessage(msg, e.nextSeq())); err != nil {
				return extended, err
			}
			extended = append(extended, ExtendedSystemCommand{Kind: CommandLogDescription, LogNames: cmd.LogNames})
		case CommandDisconnect:
			msg := wire.NewDisconnectMessage()
			if err := e.reliableOutbox.push(wire.EncodeSequencedMessage(msg, e.nextSeq())); err != nil {
				return extended, err
			}
			extended = append(extended, ExtendedSystemCommand{Kind: CommandDisconnect})
		}
	}
	return extended, nil
}

// Poll implements §4.7.4's polling discipline: flush outbound frames,
// drain a bounded number of inbound frames from each channel
// (dispatching user messages, handling system messages internally),
// then drain the internal SystemCommand queue. extended collects every
// ExtendedSystemCommand surfaced this call, for the Connection to act
// on.
func (e *Endpoint) Poll(d *dispatch.TypeDispatcher) (status PollStatus, extended []ExtendedSystemCommand, err error) {
	if err := e.reliableOutbox.drainInto(e.reliable); err != nil {
		return PollClosed, nil, fmt.Errorf("vrpn/vrpnnet: reliable flush: %w", err)
	}
	if e.udp != nil {
		if err := e.udpOutbox.drainInto(udpWriter{e.udp}); err != nil {
			e.log.WithError(err).Warn("vrpn: UDP flush failed, continuing without it")
		}
	}

	closed, err := e.drainStream(d, &extended)
	if err != nil {
		return PollClosed, extended, err
	}
	if e.udp != nil {
		e.drainDatagram(d, &extended)
	}

	sysExtended, err := e.drainSystemQueue()
	extended = append(extended, sysExtended...)
	if err != nil {
		return PollPending, extended, err
	}

	if closed {
		return PollClosed, extended, nil
	}
	return PollPending, extended, nil
}

type udpWriter struct{ d transport.Datagram }

func (w udpWriter) Write(b []byte) (int, error) { return w.d.WriteTo(b) }

func (e *Endpoint) drainStream(d *dispatch.TypeDispatcher, extended *[]ExtendedSystemCommand) (closed bool, err error) {
	for i := 0; i < maxFramesPerPoll; i++ {
		chunk, readErr := e.reliable.TryRead()
		if readErr != nil {
			if errors.Is(readErr, transport.ErrWouldBlock) {
				break
			}
			if errors.Is(readErr, io.EOF) {
				return true, nil
			}
			return false, readErr
		}
		e.reliableDecoder.Push(chunk)

		for {
			seqMsg, ok, decErr := e.reliableDecoder.Next()
			if decErr != nil {
				e.log.WithError(decErr).Error("vrpn: malformed frame on reliable channel, closing endpoint")
				e.incDropped("reliable-frame-malformed")
				return true, nil
			}
			if !ok {
				break
			}
			e.dispatchOne(seqMsg.Message, d, extended)
		}
	}
	return false, nil
}

func (e *Endpoint) drainDatagram(d *dispatch.TypeDispatcher, extended *[]ExtendedSystemCommand) {
	for i := 0; i < maxFramesPerPoll; i++ {
		chunk, readErr := e.udp.TryReadFrom()
		if readErr != nil {
			if !errors.Is(readErr, transport.ErrWouldBlock) {
				e.log.WithError(readErr).Warn("vrpn: UDP read failed, continuing without it")
			}
			return
		}
		e.udpDecoder.Push(chunk)
		for {
			seqMsg, ok, decErr := e.udpDecoder.Next()
			if decErr != nil {
				e.log.WithError(decErr).Warn("vrpn: malformed frame on UDP channel, dropping")
				e.incDropped("udp-frame-malformed")
				e.udpDecoder = wire.FrameDecoder{}
				return
			}
			if !ok {
				break
			}
			e.dispatchOne(seqMsg.Message, d, extended)
		}
	}
}

func (e *Endpoint) dispatchOne(msg wire.GenericMessage, d *dispatch.TypeDispatcher, extended *[]ExtendedSystemCommand) {
	if msg.IsSystemMessage() {
		ext, err := e.handleSystemMessage(msg, d)
		if err != nil {
			e.log.WithError(err).Warn("vrpn: dropping malformed system message")
			return
		}
		if ext != nil {
			*extended = append(*extended, *ext)
		}
		return
	}
	remapped, ok := e.remapInbound(msg)
	if !ok {
		return
	}
	e.incRX(e.typeName(wire.NewLocalID[wire.TypeKind](remapped.Header.MessageType)))
	d.Dispatch(remapped)
}

