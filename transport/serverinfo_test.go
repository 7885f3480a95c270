package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseServerInfoDefaults(t *testing.T) {
	info, err := ParseServerInfo("tracker1")
	require.NoError(t, err)
	require.Equal(t, SchemeUDPAndTCP, info.Scheme)
	require.Equal(t, "tracker1", info.Host)
	require.Equal(t, DefaultPort, info.Port)
	require.Empty(t, info.Device)
}

func TestParseServerInfoTCPOnlyWithPort(t *testing.T) {
	info, err := ParseServerInfo("tcp:tracker1:4511")
	require.NoError(t, err)
	require.Equal(t, SchemeTCPOnly, info.Scheme)
	require.Equal(t, "tracker1", info.Host)
	require.Equal(t, 4511, info.Port)
}

func TestParseServerInfoDeviceAtHost(t *testing.T) {
	info, err := ParseServerInfo("x-vrpn:Tracker0@tracker1:3883")
	require.NoError(t, err)
	require.Equal(t, "Tracker0", info.Device)
	require.Equal(t, "tracker1", info.Host)
	require.Equal(t, 3883, info.Port)
}

func TestParseServerInfoUnsupportedSchemeStillParses(t *testing.T) {
	info, err := ParseServerInfo("x-vrsh:tracker1")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	require.Equal(t, SchemeUnsupportedVRSH, info.Scheme)
	require.Equal(t, "tracker1", info.Host)

	_, err = ParseServerInfo("mpi:tracker1")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestAddrFormatting(t *testing.T) {
	info, err := ParseServerInfo("tcp:host.example.com:9999")
	require.NoError(t, err)
	require.Equal(t, "host.example.com:9999", info.Addr())
}

func TestEncodeLobbingDatagram(t *testing.T) {
	got := EncodeLobbingDatagram("10.0.0.1", 4512)
	require.Equal(t, "10.0.0.1 4512\x00", string(got))
}
