// Package dispatch implements the per-connection name registry and type
// dispatcher: process-wide local-id allocation for sender and
// message-type names, and handler collections keyed by local message
// type and optional sender filter.
package dispatch

import (
	"errors"

	"github.com/cespare/xxhash"
	"github.com/vrpn-go/vrpn/wire"
)

// ErrTooManyMappings is returned when a registry has exhausted the
// 31-bit positive id space available to local ids.
var ErrTooManyMappings = errors.New("vrpn/dispatch: too many mappings")

// maxRegistryEntries bounds a registry to the positive range of
// wire.IDType (a signed 32-bit integer); local ids must stay
// non-negative.
const maxRegistryEntries = 1<<31 - 1

// NamedID pairs a registered name with the local id it was assigned.
type NamedID[K any] struct {
	Name string
	ID   wire.LocalID[K]
}

// registry is an insertion-ordered list of names with a hashed lookup
// to the list index, which doubles as the local id. It never removes
// entries for the lifetime of a connection.
//
// Lookup keys on an xxhash of the name rather than the raw string,
// matching facebook-time's use of xxhash for fast keying; because
// hashes can collide, every candidate is still verified against the
// stored name before being treated as a match.
type registry[K any] struct {
	names  []string
	byHash map[uint64][]int
}

func newRegistry[K any]() *registry[K] {
	return &registry[K]{byHash: make(map[uint64][]int)}
}

// tryInsertOrGet returns the existing local id for name if already
// registered, otherwise registers it and returns the newly-assigned id.
func (r *registry[K]) tryInsertOrGet(name string) (id wire.LocalID[K], isNew bool, err error) {
	h := xxhash.Sum64([]byte(name))
	for _, idx := range r.byHash[h] {
		if r.names[idx] == name {
			return wire.NewLocalID[K](wire.IDType(idx)), false, nil
		}
	}
	if len(r.names) >= maxRegistryEntries {
		return wire.LocalID[K]{}, false, ErrTooManyMappings
	}
	idx := len(r.names)
	r.names = append(r.names, name)
	r.byHash[h] = append(r.byHash[h], idx)
	return wire.NewLocalID[K](wire.IDType(idx)), true, nil
}

// tryGetByName returns the local id for name if registered.
func (r *registry[K]) tryGetByName(name string) (wire.LocalID[K], bool) {
	h := xxhash.Sum64([]byte(name))
	for _, idx := range r.byHash[h] {
		if r.names[idx] == name {
			return wire.NewLocalID[K](wire.IDType(idx)), true
		}
	}
	return wire.LocalID[K]{}, false
}

// nameOf returns the name registered at a given local id, if any.
func (r *registry[K]) nameOf(id wire.LocalID[K]) (string, bool) {
	idx := int(id.Int())
	if idx < 0 || idx >= len(r.names) {
		return "", false
	}
	return r.names[idx], true
}

// all returns every registered {name, id} pair in registration order.
func (r *registry[K]) all() []NamedID[K] {
	out := make([]NamedID[K], len(r.names))
	for i, n := range r.names {
		out[i] = NamedID[K]{Name: n, ID: wire.NewLocalID[K](wire.IDType(i))}
	}
	return out
}
