package vrpnnet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrpn-go/vrpn/dispatch"
	"github.com/vrpn-go/vrpn/wire"
)

func TestPollParsesSenderDescriptionWithoutDispatching(t *testing.T) {
	d := dispatch.NewTypeDispatcher()
	msg := wire.NewDescriptionMessage(wire.SystemSenderDescription, 3, "Tracker0")
	stream := newFakeStream(wire.EncodeSequencedMessage(msg, 0))

	ep := NewEndpoint(stream, nil)

	calls := 0
	d.AddHandler(func(wire.GenericMessage) (dispatch.HandlerResult, error) {
		calls++
		return dispatch.HandlerContinue, nil
	}, nil, nil)

	status, _, err := ep.Poll(d)
	require.NoError(t, err)
	require.Equal(t, PollPending, status)
	require.Zero(t, calls, "a system message must never reach a user handler")

	local, ok, err := ep.SenderTable().MapToLocal(wire.NewRemoteID[wire.SenderKind](3))
	require.NoError(t, err)
	require.True(t, ok)

	name, ok := d.SenderName(local)
	require.True(t, ok)
	require.Equal(t, "Tracker0", name)
}

func TestPollRemapsAndDispatchesUserMessage(t *testing.T) {
	d := dispatch.NewTypeDispatcher()
	localType := d.RegisterType("my_message").ID
	localSender := d.RegisterSender("my_sender").ID

	ep := NewEndpoint(newFakeStream(nil), nil)
	_, err := ep.SenderTable().InsertRemote("my_sender", wire.NewRemoteID[wire.SenderKind](9), localSender)
	require.NoError(t, err)
	_, err = ep.TypeTable().InsertRemote("my_message", wire.NewRemoteID[wire.TypeKind](7), localType)
	require.NoError(t, err)

	var gotSender, gotType wire.IDType
	d.AddHandler(func(m wire.GenericMessage) (dispatch.HandlerResult, error) {
		gotSender = m.Header.Sender
		gotType = m.Header.MessageType
		return dispatch.HandlerContinue, nil
	}, nil, nil)

	wireMsg := wire.GenericMessage{Header: wire.Header{Sender: 9, MessageType: 7}, Body: []byte("hi")}
	stream := ep.reliable.(*fakeStream)
	stream.toRead.Write(wire.EncodeSequencedMessage(wireMsg, 0))

	status, _, err := ep.Poll(d)
	require.NoError(t, err)
	require.Equal(t, PollPending, status)
	require.Equal(t, localSender.Int(), gotSender)
	require.Equal(t, localType.Int(), gotType)
}

func TestPollDropsMessageWithUnknownRemoteSender(t *testing.T) {
	d := dispatch.NewTypeDispatcher()
	ep := NewEndpoint(newFakeStream(nil), nil)

	calls := 0
	d.AddHandler(func(wire.GenericMessage) (dispatch.HandlerResult, error) {
		calls++
		return dispatch.HandlerContinue, nil
	}, nil, nil)

	wireMsg := wire.GenericMessage{Header: wire.Header{Sender: 42, MessageType: 1}, Body: nil}
	stream := ep.reliable.(*fakeStream)
	stream.toRead.Write(wire.EncodeSequencedMessage(wireMsg, 0))

	status, _, err := ep.Poll(d)
	require.NoError(t, err)
	require.Equal(t, PollPending, status, "remap failure drops the message, it does not close the endpoint")
	require.Zero(t, calls)
}

func TestBufferGenericMessageFlushesOnPoll(t *testing.T) {
	d := dispatch.NewTypeDispatcher()
	stream := newFakeStream(nil)
	ep := NewEndpoint(stream, nil)

	msg := wire.GenericMessage{Header: wire.Header{Sender: 1, MessageType: 2}, Body: []byte("payload")}
	require.NoError(t, ep.BufferGenericMessage(msg, wire.ClassReliable))

	_, _, err := ep.Poll(d)
	require.NoError(t, err)

	decoded, _, err := wire.DecodeSequencedMessage(stream.written.Bytes())
	require.NoError(t, err)
	require.Equal(t, "payload", string(decoded.Message.Body))
	require.EqualValues(t, 1, decoded.Message.Header.Sender)
	require.EqualValues(t, 2, decoded.Message.Header.MessageType)
}

func TestPollClosesOnEOF(t *testing.T) {
	d := dispatch.NewTypeDispatcher()
	stream := newFakeStream(nil)
	stream.eof = true
	ep := NewEndpoint(stream, nil)

	status, _, err := ep.Poll(d)
	require.NoError(t, err)
	require.Equal(t, PollClosed, status)
}

func TestNewLocalSenderIDEmitsDescription(t *testing.T) {
	stream := newFakeStream(nil)
	ep := NewEndpoint(stream, nil)
	require.NoError(t, ep.NewLocalSenderID("Tracker0", wire.NewLocalID[wire.SenderKind](5)))

	d := dispatch.NewTypeDispatcher()
	_, _, err := ep.Poll(d)
	require.NoError(t, err)

	decoded, _, err := wire.DecodeSequencedMessage(stream.written.Bytes())
	require.NoError(t, err)
	require.Equal(t, wire.SystemSenderDescription, decoded.Message.Header.MessageType)
	require.EqualValues(t, 5, decoded.Message.Header.Sender)

	name, err := wire.DecodeNameBody(decoded.Message.Body)
	require.NoError(t, err)
	require.Equal(t, "Tracker0", name)
}
