package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// EncodeNameBody renders a sender/type description body: a u32 length
// (including the trailing NUL) followed by the name bytes and one NUL
// terminator.
func EncodeNameBody(name string) []byte {
	b := make([]byte, 0, 4+len(name)+1)
	b = binary.BigEndian.AppendUint32(b, uint32(len(name)+1))
	b = append(b, name...)
	b = append(b, 0)
	return b
}

// DecodeNameBody parses a sender/type description body produced by
// EncodeNameBody.
func DecodeNameBody(body []byte) (string, error) {
	if len(body) < 4 {
		return "", ErrShortDescription
	}
	n := binary.BigEndian.Uint32(body[:4])
	if n < 1 || uint32(len(body)-4) < n {
		return "", ErrShortDescription
	}
	// n includes the trailing NUL; the name itself is n-1 bytes.
	return string(body[4 : 4+n-1]), nil
}

// NewDescriptionMessage builds the generic message a side sends to
// announce that a local id (sender or message type) now means a given
// name. descriptionType is SystemSenderDescription or
// SystemTypeDescription; the sender field of the header carries the id
// being described, per the protocol's system-message convention.
func NewDescriptionMessage(descriptionType IDType, describedLocalID IDType, name string) GenericMessage {
	return GenericMessage{
		Header: Header{
			Sender:      describedLocalID,
			MessageType: descriptionType,
		},
		Body: EncodeNameBody(name),
	}
}

// NewUDPDescriptionMessage is the single sanctioned constructor for the
// UDP_DESCRIPTION system message. The protocol packs the callback port
// into the header's sender field rather than the body — a brittle
// convention inherited from the reference C++ implementation — so this
// helper and ParseUDPDescription are the only places in this codebase
// allowed to touch that field for this message type.
func NewUDPDescriptionMessage(addr net.IP, port uint16) GenericMessage {
	body := make([]byte, 0, len(addr.String())+1)
	body = append(body, addr.String()...)
	body = append(body, 0)
	return GenericMessage{
		Header: Header{
			Sender:      IDType(port),
			MessageType: SystemUDPDescription,
		},
		Body: body,
	}
}

// ParseUDPDescription parses a UDP_DESCRIPTION system message produced
// by NewUDPDescriptionMessage, recovering the IP address from the body
// and the port from the header's sender field.
func ParseUDPDescription(msg GenericMessage) (net.IP, uint16, error) {
	if msg.Header.MessageType != SystemUDPDescription {
		return nil, 0, fmt.Errorf("vrpn/wire: not a UDP description message")
	}
	raw := msg.Body
	if i := indexZero(raw); i >= 0 {
		raw = raw[:i]
	}
	ip := net.ParseIP(string(raw))
	if ip == nil {
		return nil, 0, fmt.Errorf("vrpn/wire: could not parse UDP description address %q", raw)
	}
	port := uint16(msg.Header.Sender & 0xffff)
	return ip, port, nil
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// LogFileNames names the local and remote recording files optionally
// negotiated at handshake time, carried by the LOG_DESCRIPTION system
// message.
type LogFileNames struct {
	Local  string
	Remote string
}

// EncodeLogFileNamesBody renders a LOG_DESCRIPTION body as two
// consecutive length-prefixed names, local then remote, matching the
// field order of the connection's own local/remote log name pair.
func EncodeLogFileNamesBody(names LogFileNames) []byte {
	b := EncodeNameBody(names.Local)
	b = append(b, EncodeNameBody(names.Remote)...)
	return b
}

// DecodeLogFileNamesBody parses a body produced by
// EncodeLogFileNamesBody.
func DecodeLogFileNamesBody(body []byte) (LogFileNames, error) {
	local, err := DecodeNameBody(body)
	if err != nil {
		return LogFileNames{}, err
	}
	rest := body[4+len(local)+1:]
	remote, err := DecodeNameBody(rest)
	if err != nil {
		return LogFileNames{}, err
	}
	return LogFileNames{Local: local, Remote: remote}, nil
}

// NewLogDescriptionMessage builds the LOG_DESCRIPTION system message
// exchanged once at handshake time when remote logging is requested.
func NewLogDescriptionMessage(names LogFileNames) GenericMessage {
	return GenericMessage{
		Header: Header{MessageType: SystemLogDescription},
		Body:   EncodeLogFileNamesBody(names),
	}
}

// NewDisconnectMessage builds the empty-bodied DISCONNECT_MESSAGE
// system message signaling orderly remote teardown.
func NewDisconnectMessage() GenericMessage {
	return GenericMessage{Header: Header{MessageType: SystemDisconnectMessage}}
}
