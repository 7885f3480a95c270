package vrpnnet

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vrpn-go/vrpn/dispatch"
	"github.com/vrpn-go/vrpn/transport"
	"github.com/vrpn-go/vrpn/wire"
)

// TestPollWritesBufferedFrameExactlyOnce exercises the same Poll path as
// TestBufferGenericMessageFlushesOnPoll, but verifies the exact byte
// sequence handed to Stream.Write via call expectations rather than a
// behavioral fake, the way the teacher's gomock-generated mocks verify
// Clock calls in ptp/sptp/client.
func TestPollWritesBufferedFrameExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	stream := NewMockStream(ctrl)

	msg := wire.GenericMessage{Header: wire.Header{Sender: 1, MessageType: 2}, Body: []byte("payload")}
	want := wire.EncodeSequencedMessage(msg, 0)

	stream.EXPECT().TryRead().Return(nil, transport.ErrWouldBlock).AnyTimes()
	stream.EXPECT().Write(want).Return(len(want), nil)

	var iface transport.Stream = stream
	ep := NewEndpoint(iface, nil)
	require.NoError(t, ep.BufferGenericMessage(msg, wire.ClassReliable))

	d := dispatch.NewTypeDispatcher()
	_, _, err := ep.Poll(d)
	require.NoError(t, err)
}

// TestPollClosesOnEOFViaMock mirrors TestPollClosesOnEOF using a mock
// that returns io.EOF instead of the fake's eof flag.
func TestPollClosesOnEOFViaMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	stream := NewMockStream(ctrl)
	stream.EXPECT().TryRead().Return(nil, io.EOF).AnyTimes()

	var iface transport.Stream = stream
	ep := NewEndpoint(iface, nil)

	d := dispatch.NewTypeDispatcher()
	status, _, err := ep.Poll(d)
	require.NoError(t, err)
	require.Equal(t, PollClosed, status)
}
