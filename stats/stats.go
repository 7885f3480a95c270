// Package stats implements the counters and liveness gauges described
// in SPEC_FULL.md §4.12, adapted from facebook-time's
// ptp/ptp4u/stats.syncMapInt64 counter-bag pattern to VRPN's
// per-message-type and per-endpoint concerns.
package stats

import "sync"

// syncMapInt64 is a mutex-guarded string-keyed counter map, the same
// pattern as the teacher's int-keyed version, rekeyed to VRPN message
// type/sender names since this domain's ids are process-local rather
// than wire constants shared by every peer.
type syncMapInt64 struct {
	mu sync.Mutex
	m  map[string]int64
}

func newSyncMapInt64() *syncMapInt64 { return &syncMapInt64{m: make(map[string]int64)} }

func (s *syncMapInt64) inc(key string) {
	s.mu.Lock()
	s.m[key]++
	s.mu.Unlock()
}

func (s *syncMapInt64) load(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

func (s *syncMapInt64) snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

func (s *syncMapInt64) reset() {
	s.mu.Lock()
	for k := range s.m {
		s.m[k] = 0
	}
	s.mu.Unlock()
}

// Counters tracks the in-process counts an operator cares about: per
// message-type RX/TX, dropped messages by reason, and per-connection
// endpoint/ping health.
type Counters struct {
	rx      *syncMapInt64
	tx      *syncMapInt64
	dropped *syncMapInt64

	mu             sync.Mutex
	endpointCount  int64
	flatlinedPeers int64
}

// New constructs an empty Counters.
func New() *Counters {
	return &Counters{
		rx:      newSyncMapInt64(),
		tx:      newSyncMapInt64(),
		dropped: newSyncMapInt64(),
	}
}

// IncRX records one inbound message of the given type name.
func (c *Counters) IncRX(typeName string) { c.rx.inc(typeName) }

// IncTX records one outbound message of the given type name.
func (c *Counters) IncTX(typeName string) { c.tx.inc(typeName) }

// IncDropped records one dropped message, keyed by the reason it was
// dropped (e.g. "sender-remap-failed", "type-remap-failed").
func (c *Counters) IncDropped(reason string) { c.dropped.inc(reason) }

// SetEndpointCount records the current number of live endpoints.
func (c *Counters) SetEndpointCount(n int) {
	c.mu.Lock()
	c.endpointCount = int64(n)
	c.mu.Unlock()
}

// SetFlatlinedPeers records the current number of flatlined peers.
func (c *Counters) SetFlatlinedPeers(n int) {
	c.mu.Lock()
	c.flatlinedPeers = int64(n)
	c.mu.Unlock()
}

// RX returns the current RX count for a message type name.
func (c *Counters) RX(typeName string) int64 { return c.rx.load(typeName) }

// TX returns the current TX count for a message type name.
func (c *Counters) TX(typeName string) int64 { return c.tx.load(typeName) }

// Dropped returns the current dropped-message count for a reason.
func (c *Counters) Dropped(reason string) int64 { return c.dropped.load(reason) }

// RXSnapshot, TXSnapshot, and DroppedSnapshot copy out the full current
// counter maps, for the CLI status table and the Prometheus registry.
func (c *Counters) RXSnapshot() map[string]int64      { return c.rx.snapshot() }
func (c *Counters) TXSnapshot() map[string]int64      { return c.tx.snapshot() }
func (c *Counters) DroppedSnapshot() map[string]int64 { return c.dropped.snapshot() }

// EndpointCount and FlatlinedPeers return the most recently set gauges.
func (c *Counters) EndpointCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpointCount
}

func (c *Counters) FlatlinedPeers() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flatlinedPeers
}

// Reset zeroes the RX/TX/dropped counters, matching the teacher's
// periodic Snapshot-then-Reset reporting cycle.
func (c *Counters) Reset() {
	c.rx.reset()
	c.tx.reset()
	c.dropped.reset()
}
