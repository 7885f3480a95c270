package ping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrpn-go/vrpn/vrpnnet"
)

// TestCheckPingCycleFlatlinesThenClearsOnPong exercises spec.md §8
// scenario 6 without waiting in real time: with no peer to reply, the
// cycle reports an unanswered ping; backdating the first-unanswered
// timestamp past the default flatline threshold makes it flatline, then
// an injected pong clears it.
func TestCheckPingCycleFlatlinesThenClearsOnPong(t *testing.T) {
	conn := vrpnnet.NewConnection(vrpnnet.RoleClient)
	client := NewClient(conn, "test_client", DefaultFlatlineAfter)

	elapsed, ok := client.CheckPingCycle()
	require.True(t, ok)
	require.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.False(t, client.Flatlined())

	client.mu.Lock()
	stale := time.Now().Add(-(DefaultFlatlineAfter + time.Second))
	client.firstUnanswered = &stale
	client.mu.Unlock()

	_, ok = client.CheckPingCycle()
	require.True(t, ok)
	require.True(t, client.Flatlined())

	client.onPong()
	elapsed, ok = client.CheckPingCycle()
	require.False(t, ok)
	require.Zero(t, elapsed)
	require.False(t, client.Flatlined())
}

func TestServerLeavesRegisteredSenderNamesResolvable(t *testing.T) {
	conn := vrpnnet.NewConnection(vrpnnet.RoleServer)
	NewServer(conn)

	senderID := conn.RegisterSender("some_client").ID
	_, ok := conn.Dispatcher().SenderName(senderID)
	require.True(t, ok)
}
