package stats

import "github.com/prometheus/client_golang/prometheus"

// Registry exports a Counters snapshot through prometheus/client_golang
// CounterVecs and plain Gauges, so cmd/vrpnd can serve /metrics. The teacher
// carries this dependency for its own (unused-here) purposes; wiring it
// to VRPN's counters exercises it against this domain instead.
type Registry struct {
	rx            *prometheus.CounterVec
	tx            *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	endpointCount prometheus.Gauge
	flatlined     prometheus.Gauge

	counters *Counters
}

// NewRegistry builds a Registry wired to counters and registers its
// collectors with reg.
func NewRegistry(counters *Counters, reg prometheus.Registerer) *Registry {
	r := &Registry{
		counters: counters,
		rx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vrpn",
			Name:      "messages_received_total",
			Help:      "Messages received, by message type name.",
		}, []string{"type"}),
		tx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vrpn",
			Name:      "messages_sent_total",
			Help:      "Messages sent, by message type name.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vrpn",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped, by reason.",
		}, []string{"reason"}),
		endpointCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrpn",
			Name:      "endpoints",
			Help:      "Currently active peer endpoints.",
		}),
		flatlined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrpn",
			Name:      "flatlined_peers",
			Help:      "Peers whose ping has gone unanswered past the flatline threshold.",
		}),
	}
	reg.MustRegister(r.rx, r.tx, r.dropped, r.endpointCount, r.flatlined)
	return r
}

// Sync adds the current Counters snapshot into the Prometheus
// collectors and should be followed by counters.Reset(), matching the
// teacher's Snapshot-then-Reset reporting cycle; otherwise the next
// Sync double-counts whatever wasn't reset.
func (r *Registry) Sync() {
	for k, v := range r.counters.RXSnapshot() {
		r.rx.WithLabelValues(k).Add(float64(v))
	}
	for k, v := range r.counters.TXSnapshot() {
		r.tx.WithLabelValues(k).Add(float64(v))
	}
	for k, v := range r.counters.DroppedSnapshot() {
		r.dropped.WithLabelValues(k).Add(float64(v))
	}
	r.endpointCount.Set(float64(r.counters.EndpointCount()))
	r.flatlined.Set(float64(r.counters.FlatlinedPeers()))
}
