// Package translation implements the per-endpoint, per-kind bidirectional
// id translation tables that keep a local process's numeric sender and
// message-type ids in sync with a peer's.
package translation

import (
	"errors"
	"fmt"

	"github.com/vrpn-go/vrpn/wire"
)

// ErrInvalidRemoteID is returned when a remote id falls outside the
// table's populated range.
var ErrInvalidRemoteID = errors.New("vrpn/translation: invalid remote id")

// ErrEmptyEntry is returned when a remote id is within range but its
// slot has never been populated.
var ErrEmptyEntry = errors.New("vrpn/translation: empty translation table entry")

// Entry is one occupied slot: the name shared with the peer, and the
// local/remote id pair it has been assigned.
type Entry[K any] struct {
	Name   string
	Local  wire.LocalID[K]
	Remote wire.RemoteID[K]
}

// Table is an indexed-by-remote-id sparse vector of translation
// entries. There is no separate name index: AttachLocalToName scans the
// entries for a matching name. K is wire.SenderKind or wire.TypeKind.
// Table does no locking of its own.
type Table[K any] struct {
	entries []*Entry[K]
}

// NewTable constructs an empty translation table.
func NewTable[K any]() *Table[K] { return &Table[K]{} }

// InsertRemote grows the table if necessary and stores {name, local,
// remote}. Negative remote ids are rejected: translation tables only
// ever hold mappings for non-negative, user-assigned ids.
func (t *Table[K]) InsertRemote(name string, remote wire.RemoteID[K], local wire.LocalID[K]) (wire.RemoteID[K], error) {
	idx := int(remote.Int())
	if idx < 0 {
		return remote, fmt.Errorf("%w: %d", ErrInvalidRemoteID, idx)
	}
	for len(t.entries) <= idx {
		t.entries = append(t.entries, nil)
	}
	t.entries[idx] = &Entry[K]{Name: name, Local: local, Remote: remote}
	return remote, nil
}

// MapToLocal converts a remote id to the local id it has been bound to.
// A negative remote id returns (_, false, nil): by convention this
// means "no remapping applies" rather than an error (system message
// ids are never translated). An out-of-range or never-populated slot
// is an error.
func (t *Table[K]) MapToLocal(remote wire.RemoteID[K]) (wire.LocalID[K], bool, error) {
	idx := int(remote.Int())
	if idx < 0 {
		return wire.LocalID[K]{}, false, nil
	}
	if idx >= len(t.entries) {
		return wire.LocalID[K]{}, false, fmt.Errorf("%w: %d", ErrInvalidRemoteID, idx)
	}
	e := t.entries[idx]
	if e == nil {
		return wire.LocalID[K]{}, false, ErrEmptyEntry
	}
	return e.Local, true, nil
}

// AttachLocalToName scans for an entry whose name matches and updates
// its local id in place. Used when the local side registers a name
// that the remote has already announced a remote id for. Reports
// whether a matching entry was found.
func (t *Table[K]) AttachLocalToName(name string, local wire.LocalID[K]) bool {
	for _, e := range t.entries {
		if e != nil && e.Name == name {
			e.Local = local
			return true
		}
	}
	return false
}

// FindByLocal linearly scans for the entry bound to the given local id.
func (t *Table[K]) FindByLocal(local wire.LocalID[K]) (*Entry[K], bool) {
	for _, e := range t.entries {
		if e != nil && e.Local.Int() == local.Int() {
			return e, true
		}
	}
	return nil, false
}

// Iter returns the occupied entries in remote-id order.
func (t *Table[K]) Iter() []*Entry[K] {
	out := make([]*Entry[K], 0, len(t.entries))
	for _, e := range t.entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
