package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDynamicConfigRoundTrip(t *testing.T) {
	dc := Default()
	dc.PingInterval = 2 * time.Second

	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, dc.Write(path))

	got, err := ReadDynamicConfig(path)
	require.NoError(t, err)
	require.Equal(t, dc.PingInterval, got.PingInterval)
	require.Equal(t, dc.ReconnectAttempts, got.ReconnectAttempts)
}

func TestDefaultMatchesSpecThresholds(t *testing.T) {
	dc := Default()
	require.Equal(t, 500*time.Millisecond, dc.ReconnectBackoff)
	require.Equal(t, 5, dc.ReconnectAttempts)
	require.Equal(t, 1*time.Second, dc.PingInterval)
	require.Equal(t, 10*time.Second, dc.PingFlatlineThreshold)
}
