package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNetworkCookieRoundTrip(t *testing.T) {
	c := Cookie{Version: Version{Major: 7, Minor: 35}, LogMode: 0}
	encoded := c.Encode()
	require.Len(t, encoded, CookieSize)
	require.Equal(t, "vrpn: ver. 07.35  0\x00\x00\x00\x00\x00", string(encoded))

	decoded, err := DecodeCookie(encoded)
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestFileCookieExactBytes(t *testing.T) {
	c := NewFileCookie()
	require.Equal(t, "vrpn: ver. 04.00  0\x00\x00\x00\x00\x00", string(c.Encode()))
}

func TestDecodeCookieRejectsGarbage(t *testing.T) {
	_, err := DecodeCookie([]byte("not a cookie, just 24 b."))
	require.ErrorIs(t, err, ErrUnexpectedCookieBytes)
}

func TestDecodeCookieRejectsWrongLength(t *testing.T) {
	_, err := DecodeCookie([]byte("too short"))
	require.Error(t, err)
}

func TestCheckNetworkCompatibleIgnoresMinor(t *testing.T) {
	require.NoError(t, CheckNetworkCompatible(Version{Major: 7, Minor: 0}))
	require.NoError(t, CheckNetworkCompatible(Version{Major: 7, Minor: 99}))

	err := CheckNetworkCompatible(Version{Major: 6, Minor: 35})
	require.Error(t, err)
	var mismatch *ErrVersionMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, uint8(6), mismatch.Actual.Major)
}

func TestCheckFileCompatible(t *testing.T) {
	require.NoError(t, CheckFileCompatible(Version{Major: 4, Minor: 12}))
	require.Error(t, CheckFileCompatible(Version{Major: 7, Minor: 35}))
}
