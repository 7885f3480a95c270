package translation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vrpn-go/vrpn/wire"
)

func TestInsertAndMapToLocal(t *testing.T) {
	tbl := NewTable[wire.SenderKind]()

	remote, err := tbl.InsertRemote("Tracker0", wire.NewRemoteID[wire.SenderKind](3), wire.NewLocalID[wire.SenderKind](1))
	require.NoError(t, err)
	require.EqualValues(t, 3, remote.Int())

	local, ok, err := tbl.MapToLocal(wire.NewRemoteID[wire.SenderKind](3))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, local.Int())
}

func TestMapToLocalNegativeIsNoneNotError(t *testing.T) {
	tbl := NewTable[wire.TypeKind]()
	local, ok, err := tbl.MapToLocal(wire.NewRemoteID[wire.TypeKind](-2))
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, local.Int())
}

func TestMapToLocalOutOfRangeIsError(t *testing.T) {
	tbl := NewTable[wire.SenderKind]()
	_, _, err := tbl.MapToLocal(wire.NewRemoteID[wire.SenderKind](5))
	require.ErrorIs(t, err, ErrInvalidRemoteID)
}

func TestMapToLocalEmptySlotIsError(t *testing.T) {
	tbl := NewTable[wire.SenderKind]()
	_, err := tbl.InsertRemote("X", wire.NewRemoteID[wire.SenderKind](3), wire.NewLocalID[wire.SenderKind](0))
	require.NoError(t, err)

	// Slot 1 was never populated while growing to hold slot 3.
	_, _, err = tbl.MapToLocal(wire.NewRemoteID[wire.SenderKind](1))
	require.ErrorIs(t, err, ErrEmptyEntry)
}

func TestInsertRemoteRejectsNegative(t *testing.T) {
	tbl := NewTable[wire.SenderKind]()
	_, err := tbl.InsertRemote("X", wire.NewRemoteID[wire.SenderKind](-1), wire.NewLocalID[wire.SenderKind](0))
	require.ErrorIs(t, err, ErrInvalidRemoteID)
}

func TestAttachLocalToName(t *testing.T) {
	tbl := NewTable[wire.TypeKind]()
	_, err := tbl.InsertRemote("vrpn_Base ping_message", wire.NewRemoteID[wire.TypeKind](0), wire.NewLocalID[wire.TypeKind](99))
	require.NoError(t, err)

	found := tbl.AttachLocalToName("vrpn_Base ping_message", wire.NewLocalID[wire.TypeKind](5))
	require.True(t, found)

	local, ok, err := tbl.MapToLocal(wire.NewRemoteID[wire.TypeKind](0))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, local.Int())

	require.False(t, tbl.AttachLocalToName("no such name", wire.NewLocalID[wire.TypeKind](1)))
}

func TestFindByLocalAndIter(t *testing.T) {
	tbl := NewTable[wire.SenderKind]()
	_, _ = tbl.InsertRemote("A", wire.NewRemoteID[wire.SenderKind](0), wire.NewLocalID[wire.SenderKind](0))
	_, _ = tbl.InsertRemote("B", wire.NewRemoteID[wire.SenderKind](2), wire.NewLocalID[wire.SenderKind](1))

	e, ok := tbl.FindByLocal(wire.NewLocalID[wire.SenderKind](1))
	require.True(t, ok)
	require.Equal(t, "B", e.Name)

	entries := tbl.Iter()
	require.Len(t, entries, 2)

	_, ok = tbl.FindByLocal(wire.NewLocalID[wire.SenderKind](42))
	require.False(t, ok)
}

// TestTableRoundTripInvariant exercises the §8 invariant directly: for every entry e,
// map_to_local(e.remote_id) == e.local_id and find_by_local(e.local_id)
// recovers the same remote id.
func TestTableRoundTripInvariant(t *testing.T) {
	tbl := NewTable[wire.TypeKind]()
	for i := 0; i < 10; i++ {
		_, err := tbl.InsertRemote("name", wire.NewRemoteID[wire.TypeKind](wire.IDType(i)), wire.NewLocalID[wire.TypeKind](wire.IDType(i*2)))
		require.NoError(t, err)
	}
	for _, e := range tbl.Iter() {
		local, ok, err := tbl.MapToLocal(e.Remote)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, e.Local, local)

		found, ok := tbl.FindByLocal(e.Local)
		require.True(t, ok)
		require.Equal(t, e.Remote, found.Remote)
	}
}
