package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCountersIncAndSnapshot(t *testing.T) {
	c := New()
	c.IncRX("Tracker0")
	c.IncRX("Tracker0")
	c.IncTX("Tracker0")
	c.IncDropped("sender-remap-failed")

	require.EqualValues(t, 2, c.RX("Tracker0"))
	require.EqualValues(t, 1, c.TX("Tracker0"))
	require.EqualValues(t, 1, c.Dropped("sender-remap-failed"))
}

func TestCountersReset(t *testing.T) {
	c := New()
	c.IncRX("Tracker0")
	c.Reset()
	require.Zero(t, c.RX("Tracker0"))
}

func TestRegistrySyncRegistersCollectors(t *testing.T) {
	c := New()
	c.IncRX("Tracker0")
	c.SetEndpointCount(3)

	reg := prometheus.NewRegistry()
	r := NewRegistry(c, reg)
	r.Sync()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
