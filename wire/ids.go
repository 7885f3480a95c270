// Package wire implements the VRPN binary wire format: identifiers, the
// cookie handshake, the length-prefixed message codec, and the system
// message description bodies that ride on top of it.
package wire

// IDType is the wire representation shared by every sender and
// message-type identifier. Negative values are reserved for system
// message types; see IsSystemMessageType.
type IDType int32

// SenderKind and TypeKind are phantom markers distinguishing the sender
// and message-type identifier namespaces at compile time, so a value
// from one namespace can never be passed where the other is expected.
type SenderKind struct{}

// TypeKind marks message-type identifiers, as opposed to SenderKind.
type TypeKind struct{}

// LocalID is an identifier interpreted in the local process's namespace.
type LocalID[K any] struct {
	v IDType
}

// RemoteID is an identifier interpreted in a peer's namespace. It is
// never implicitly convertible to a LocalID; that conversion only
// happens through a translation table.
type RemoteID[K any] struct {
	v IDType
}

// NewLocalID wraps a raw id as a local id of kind K.
func NewLocalID[K any](v IDType) LocalID[K] { return LocalID[K]{v} }

// NewRemoteID wraps a raw id as a remote id of kind K.
func NewRemoteID[K any](v IDType) RemoteID[K] { return RemoteID[K]{v} }

// Int returns the underlying wire value.
func (id LocalID[K]) Int() IDType { return id.v }

// Int returns the underlying wire value.
func (id RemoteID[K]) Int() IDType { return id.v }

// SenderID and MessageTypeID name the two local-id specializations used
// pervasively once an id has been assigned a namespace.
type SenderID = LocalID[SenderKind]
type MessageTypeID = LocalID[TypeKind]

// IsSystemMessageType reports whether a message-type id is one of the
// reserved negative system ids (SystemSenderDescription and friends),
// as opposed to a user-registered, non-negative message type.
func IsSystemMessageType(id IDType) bool { return id < 0 }

// Reserved system message type ids. These are compile-time constants,
// never assigned through the name registry.
const (
	SystemSenderDescription IDType = -1
	SystemTypeDescription   IDType = -2
	SystemUDPDescription    IDType = -3
	SystemLogDescription    IDType = -4
	SystemDisconnectMessage IDType = -5
)

// SenderName and MessageTypeName are the stable, cross-peer string
// identifiers that local/remote ids are translated through.
type SenderName string
type MessageTypeName string

// Pre-registered names. The name registry assigns these the first local
// ids of their respective kind, in this exact order, on construction.
const (
	ControlSenderName = SenderName("VRPN Control")

	GotFirstConnectionName    = MessageTypeName("VRPN_Connection_Got_First_Connection")
	GotConnectionName         = MessageTypeName("VRPN_Connection_Got_Connection")
	DroppedConnectionName     = MessageTypeName("VRPN_Connection_Dropped_Connection")
	DroppedLastConnectionName = MessageTypeName("VRPN_Connection_Dropped_Last_Connection")
)

// ClassOfService is a bit flag set controlling transport selection
// (Reliable routes to TCP, LowLatency to UDP) plus descriptive
// latency/throughput hints that are otherwise only channel-selection
// input.
type ClassOfService uint8

const (
	ClassReliable ClassOfService = 1 << iota
	ClassFixedLatency
	ClassLowLatency
	ClassFixedThroughput
	ClassHighThroughput
)

// WantsReliable reports whether this class of service requires the
// reliable (TCP) channel.
func (c ClassOfService) WantsReliable() bool { return c&ClassReliable != 0 }
