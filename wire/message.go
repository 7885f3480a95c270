package wire

import "encoding/binary"

// TimeVal is a Unix-epoch timestamp split the way VRPN writes it on the
// wire: whole seconds plus a microseconds remainder.
type TimeVal struct {
	Seconds int32
	Micros  int32
}

// Header holds the logical fields of a VRPN message header other than
// the length field, which the codec computes from the body size. The
// sequence number that immediately follows on the wire is
// carried alongside a Header in a SequencedGenericMessage rather than
// inside it, matching the protocol's "outside the official header"
// framing.
//
// Sender and MessageType are raw IDType, not LocalID/RemoteID: a
// message fresh off the wire is in an ambiguous namespace until an
// Endpoint remaps it, and a message about to be sent is already in
// local space by construction. Only the endpoint layer is allowed to
// cross that boundary.
type Header struct {
	Time        TimeVal
	Sender      IDType
	MessageType IDType
}

// GenericMessage carries an opaque body: the form used on the wire and
// inside the codec. Typed bodies are parsed from/rendered to this form
// by higher layers.
type GenericMessage struct {
	Header Header
	Body   []byte
}

// IsSystemMessage reports whether this message's type id is a reserved
// negative system id.
func (m GenericMessage) IsSystemMessage() bool { return IsSystemMessageType(m.Header.MessageType) }

// SequencedGenericMessage is a GenericMessage plus the sequence number
// that rides immediately after the header on the wire. The sequence
// number is informational (monotonic, wraps); nothing in the protocol
// depends on it for correctness.
type SequencedGenericMessage struct {
	Message        GenericMessage
	SequenceNumber uint32
}

// UnpaddedHeaderSize is the size, before 8-byte alignment, of the four
// header fields that precede the sequence number: length, seconds,
// micros, sender, message type — five 4-byte fields.
const UnpaddedHeaderSize = 5 * 4

// PaddedHeaderSize is UnpaddedHeaderSize rounded up to the 8-byte
// alignment unit. The sequence number's 4 bytes exactly fill the gap
// this padding introduces, so the bytes actually sent before the body
// are: length, seconds, micros, sender, type, sequence = 24 bytes.
const PaddedHeaderSize = 24

func init() {
	if Padded(UnpaddedHeaderSize) != PaddedHeaderSize {
		panic("wire: header padding constants are inconsistent")
	}
}

// Padded rounds n up to the next multiple of 8.
func Padded(n int) int { return n + (8-n%8)%8 }

// LengthField computes the wire length field from an unpadded body
// size: padded(header) + unpadded body size. This is *not* the total
// on-wire size.
func LengthField(unpaddedBodySize int) uint32 { return uint32(unpaddedBodySize + PaddedHeaderSize) }

// UnpaddedBodySize recovers the unpadded body size from a wire length
// field.
func UnpaddedBodySize(lengthField uint32) int { return int(lengthField) - PaddedHeaderSize }

// PaddedBodySize is the body size including trailing zero padding.
func PaddedBodySize(unpaddedBodySize int) int { return Padded(unpaddedBodySize) }

// BodyPadding is the number of zero padding bytes following the body.
func BodyPadding(unpaddedBodySize int) int { return PaddedBodySize(unpaddedBodySize) - unpaddedBodySize }

// TotalWireSize is the complete number of bytes a message occupies on
// the wire: padded header plus padded body.
func TotalWireSize(unpaddedBodySize int) int { return PaddedHeaderSize + PaddedBodySize(unpaddedBodySize) }

// EncodeSequencedMessage renders a message plus its sequence number as
// the exact byte sequence defined by the protocol: length field, time
// seconds, time micros, sender, message type, sequence number, body
// bytes, then zero padding to the next 8-byte boundary.
func EncodeSequencedMessage(msg GenericMessage, seq uint32) []byte {
	bodySize := len(msg.Body)
	buf := make([]byte, 0, TotalWireSize(bodySize))
	buf = binary.BigEndian.AppendUint32(buf, LengthField(bodySize))
	buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Header.Time.Seconds))
	buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Header.Time.Micros))
	buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Header.Sender))
	buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Header.MessageType))
	buf = binary.BigEndian.AppendUint32(buf, seq)
	buf = append(buf, msg.Body...)
	buf = append(buf, make([]byte, BodyPadding(bodySize))...)
	return buf
}

// DecodeSequencedMessage attempts to pull one complete frame off the
// front of buf. It is pull-based and non-destructive on failure: a
// NeedMoreDataError means buf's caller should retry once more bytes
// have arrived, without buf having been consumed. On success it
// returns the decoded message and the number of bytes consumed, which
// the caller must advance its buffer by.
func DecodeSequencedMessage(buf []byte) (SequencedGenericMessage, int, error) {
	if len(buf) < 4 {
		return SequencedGenericMessage{}, 0, &NeedMoreDataError{Requirement: atLeast(4)}
	}
	lengthField := binary.BigEndian.Uint32(buf[0:4])
	if lengthField < PaddedHeaderSize {
		return SequencedGenericMessage{}, 0, ErrMalformedLength
	}
	bodySize := UnpaddedBodySize(lengthField)
	total := TotalWireSize(bodySize)
	if len(buf) < total {
		return SequencedGenericMessage{}, 0, &NeedMoreDataError{Requirement: exactly(total - len(buf))}
	}

	seconds := int32(binary.BigEndian.Uint32(buf[4:8]))
	micros := int32(binary.BigEndian.Uint32(buf[8:12]))
	sender := IDType(binary.BigEndian.Uint32(buf[12:16]))
	msgType := IDType(binary.BigEndian.Uint32(buf[16:20]))
	seq := binary.BigEndian.Uint32(buf[20:24])

	body := make([]byte, bodySize)
	copy(body, buf[PaddedHeaderSize:PaddedHeaderSize+bodySize])

	return SequencedGenericMessage{
		Message: GenericMessage{
			Header: Header{
				Time:        TimeVal{Seconds: seconds, Micros: micros},
				Sender:      sender,
				MessageType: msgType,
			},
			Body: body,
		},
		SequenceNumber: seq,
	}, total, nil
}

// FrameDecoder accumulates bytes pushed from a stream transport and
// yields complete messages as they become available, supporting
// multiple fully-buffered messages being drained from a single Push.
type FrameDecoder struct {
	buf []byte
}

// Push appends newly-read bytes to the decoder's internal buffer.
func (d *FrameDecoder) Push(b []byte) { d.buf = append(d.buf, b...) }

// Next attempts to decode one message from the buffered bytes. ok is
// false (with a nil error) when there simply isn't a complete frame
// yet; err is non-nil only for a structurally malformed frame.
func (d *FrameDecoder) Next() (msg SequencedGenericMessage, ok bool, err error) {
	m, consumed, err := DecodeSequencedMessage(d.buf)
	if err != nil {
		if _, needMore := err.(*NeedMoreDataError); needMore {
			return SequencedGenericMessage{}, false, nil
		}
		return SequencedGenericMessage{}, false, err
	}
	d.buf = d.buf[consumed:]
	return m, true, nil
}

// Buffered reports how many bytes are currently held awaiting a
// complete frame.
func (d *FrameDecoder) Buffered() int { return len(d.buf) }
