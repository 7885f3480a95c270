// Package vrpnnet implements the endpoint and connection layers: the
// per-peer conversation state (channels, translation tables, outbound
// queue) and the multi-endpoint aggregate that application code talks
// to.
package vrpnnet

import (
	"fmt"

	"github.com/vrpn-go/vrpn/wire"
)

// SystemCommandKind distinguishes the internally-generated actions an
// endpoint's send side must take, queued by send_system_change and
// drained on every poll.
type SystemCommandKind int

const (
	// CommandSenderDescription announces a newly allocated local sender id.
	CommandSenderDescription SystemCommandKind = iota
	// CommandTypeDescription announces a newly allocated local message type id.
	CommandTypeDescription
	// CommandUDPDescription announces this endpoint's UDP callback address.
	CommandUDPDescription
	// CommandLogDescription announces the negotiated log file names.
	CommandLogDescription
	// CommandDisconnect signals orderly teardown to the peer.
	CommandDisconnect
)

// SystemCommand is one outbound system action, queued on an endpoint
// through Endpoint.SendSystemChange.
type SystemCommand struct {
	Kind SystemCommandKind

	// Valid for CommandSenderDescription/CommandTypeDescription.
	LocalID wire.IDType
	Name    string

	// Valid for CommandUDPDescription.
	UDPPort uint16
	UDPAddr string

	// Valid for CommandLogDescription.
	LogNames wire.LogFileNames
}

// ExtendedSystemCommand is what a drained internal SystemCommand becomes
// once it has been turned into wire bytes, or what an inbound
// informational system message becomes once parsed: the parts of
// §4.7.1/§4.7.4 that are not purely "update a translation table" are
// surfaced to the owning Connection for logging or teardown rather than
// handled silently inside the endpoint.
type ExtendedSystemCommand struct {
	Kind     SystemCommandKind
	UDPAddr  string
	UDPPort  uint16
	LogNames wire.LogFileNames
}

// ErrNotSystemMessage is returned by parseSystemMessage when handed a
// message whose type id is not negative.
var ErrNotSystemMessage = fmt.Errorf("vrpn/vrpnnet: not a system message")

// ErrUnrecognizedSystemMessage is returned for a negative type id this
// implementation does not know how to parse.
type ErrUnrecognizedSystemMessage struct{ ID wire.IDType }

func (e *ErrUnrecognizedSystemMessage) Error() string {
	return fmt.Sprintf("vrpn/vrpnnet: unrecognized system message id %d", e.ID)
}

// parsedSystemMessage is the endpoint's internal decode of one inbound
// system message, per §4.7.1.
type parsedSystemMessage struct {
	kind       SystemCommandKind
	name       string       // sender/type description
	remoteID   wire.IDType  // sender/type description: remote id being described
	udpAddr    string       // UDP description
	udpPort    uint16       // UDP description
	logNames   wire.LogFileNames
}

// parseSystemMessage implements §4.7.1: classify and decode a system
// message by its negative type id. It never inspects non-system
// messages; callers must check IsSystemMessage first.
func parseSystemMessage(msg wire.GenericMessage) (parsedSystemMessage, error) {
	switch msg.Header.MessageType {
	case wire.SystemSenderDescription:
		name, err := wire.DecodeNameBody(msg.Body)
		if err != nil {
			return parsedSystemMessage{}, err
		}
		return parsedSystemMessage{kind: CommandSenderDescription, name: name, remoteID: msg.Header.Sender}, nil

	case wire.SystemTypeDescription:
		name, err := wire.DecodeNameBody(msg.Body)
		if err != nil {
			return parsedSystemMessage{}, err
		}
		return parsedSystemMessage{kind: CommandTypeDescription, name: name, remoteID: msg.Header.Sender}, nil

	case wire.SystemUDPDescription:
		ip, port, err := wire.ParseUDPDescription(msg)
		if err != nil {
			return parsedSystemMessage{}, err
		}
		return parsedSystemMessage{kind: CommandUDPDescription, udpAddr: ip.String(), udpPort: port}, nil

	case wire.SystemLogDescription:
		names, err := wire.DecodeLogFileNamesBody(msg.Body)
		if err != nil {
			return parsedSystemMessage{}, err
		}
		return parsedSystemMessage{kind: CommandLogDescription, logNames: names}, nil

	case wire.SystemDisconnectMessage:
		return parsedSystemMessage{kind: CommandDisconnect}, nil

	default:
		if !msg.IsSystemMessage() {
			return parsedSystemMessage{}, ErrNotSystemMessage
		}
		return parsedSystemMessage{}, &ErrUnrecognizedSystemMessage{ID: msg.Header.MessageType}
	}
}
