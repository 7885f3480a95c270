package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 1 from the corpus's own test vectors: a 48-byte sender
// description announcing remote sender id 0 as "VRPN Control".
func scenario1() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x29, 0x5b, 0xeb, 0x33, 0x2e, 0x00, 0x0c, 0x58, 0xb1,
		0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x0d, 0x56, 0x52, 0x50, 0x4e, 0x20, 0x43, 0x6f, 0x6e,
		0x74, 0x72, 0x6f, 0x6c, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
}

// Scenario 2: a 40-byte sender description for remote id 1, "Tracker0".
func scenario2() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x25, 0x5b, 0xeb, 0x33, 0x2e, 0x00, 0x0c, 0x58, 0xb1,
		0x00, 0x00, 0x00, 0x01, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x09, 0x54, 0x72, 0x61, 0x63, 0x6b, 0x65, 0x72, 0x30,
		0x00, 0x00, 0x00, 0x00,
	}
}

func TestDecodeSenderDescriptionScenario1(t *testing.T) {
	msg, consumed, err := DecodeSequencedMessage(scenario1())
	require.NoError(t, err)
	require.Equal(t, 48, consumed)
	require.Equal(t, SystemSenderDescription, msg.Message.Header.MessageType)
	require.EqualValues(t, 0, msg.Message.Header.Sender)

	name, err := DecodeNameBody(msg.Message.Body)
	require.NoError(t, err)
	require.Equal(t, "VRPN Control", name)

	// Round trip: re-encoding the decoded message reproduces the wire bytes.
	reencoded := EncodeSequencedMessage(msg.Message, msg.SequenceNumber)
	require.Equal(t, scenario1(), reencoded)
}

func TestDecodeSenderDescriptionScenario2(t *testing.T) {
	msg, consumed, err := DecodeSequencedMessage(scenario2())
	require.NoError(t, err)
	require.Equal(t, 40, consumed)
	require.EqualValues(t, 1, msg.Message.Header.Sender)

	name, err := DecodeNameBody(msg.Message.Body)
	require.NoError(t, err)
	require.Equal(t, "Tracker0", name)
}

func TestDecodeThreeMessagesInOneStream(t *testing.T) {
	typeDescMsg := NewDescriptionMessage(SystemTypeDescription, 0, string(GotFirstConnectionName))
	typeDescWire := EncodeSequencedMessage(typeDescMsg, 0)
	require.Len(t, typeDescWire, 72)

	stream := append(append(scenario1(), scenario2()...), typeDescWire...)

	var dec FrameDecoder
	dec.Push(stream)

	first, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	name1, _ := DecodeNameBody(first.Message.Body)
	require.Equal(t, "VRPN Control", name1)

	second, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	name2, _ := DecodeNameBody(second.Message.Body)
	require.Equal(t, "Tracker0", name2)

	third, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, SystemTypeDescription, third.Message.Header.MessageType)
	name3, _ := DecodeNameBody(third.Message.Body)
	require.Equal(t, string(GotFirstConnectionName), name3)

	require.Zero(t, dec.Buffered())
}

func TestDecodeNeedsMoreDataIsNonDestructive(t *testing.T) {
	full := scenario1()
	partial := full[:len(full)-1]

	var dec FrameDecoder
	dec.Push(partial)
	_, ok, err := dec.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, len(partial), dec.Buffered())

	dec.Push(full[len(full)-1:])
	msg, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := DecodeNameBody(msg.Message.Body)
	require.Equal(t, "VRPN Control", name)
}

func TestDecodeRejectsMalformedLength(t *testing.T) {
	buf := make([]byte, 8)
	buf[3] = 1 // length field = 1, below PaddedHeaderSize
	_, _, err := DecodeSequencedMessage(buf)
	require.ErrorIs(t, err, ErrMalformedLength)
}

func TestTotalWireSizeInvariant(t *testing.T) {
	for _, bodySize := range []int{0, 1, 7, 8, 9, 13, 17, 100} {
		require.Equal(t, PaddedHeaderSize+Padded(bodySize), TotalWireSize(bodySize))
	}
}

func TestPaddedArithmeticGroundTruth(t *testing.T) {
	// Numeric ground truth: body=17 -> length_field=41, total=48;
	// body=13 -> length_field=37, total=40.
	require.EqualValues(t, 41, LengthField(17))
	require.Equal(t, 48, TotalWireSize(17))
	require.EqualValues(t, 37, LengthField(13))
	require.Equal(t, 40, TotalWireSize(13))
}

func TestEncodeDecodeRoundTripArbitraryMessage(t *testing.T) {
	msg := GenericMessage{
		Header: Header{
			Time:        TimeVal{Seconds: 123456, Micros: 789},
			Sender:      42,
			MessageType: 7,
		},
		Body: []byte("hello, tracker"),
	}
	encoded := EncodeSequencedMessage(msg, 99)

	decoded, consumed, err := DecodeSequencedMessage(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, msg, decoded.Message)
	require.EqualValues(t, 99, decoded.SequenceNumber)
}
