package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
	"omnifs/internal/image"
)

type fakeStore struct {
	recs []image.MetadataEntry
}

func newFakeStore(n uint32) *fakeStore {
	recs := make([]image.MetadataEntry, n)
	recs[image.RootEntryID] = image.MetadataEntry{Valid: 1, IsDir: 1, Parent: image.RootEntryID}
	return &fakeStore{recs: recs}
}

func (f *fakeStore) WriteEntry(id uint32, e *image.MetadataEntry) error {
	f.recs[id] = *e
	return nil
}

func (f *fakeStore) ReadEntry(id uint32) (*image.MetadataEntry, error) {
	r := f.recs[id]
	return &r, nil
}

func newTable(t *testing.T, n uint32) *Table {
	t.Helper()
	tbl, err := Load(newFakeStore(n), n)
	require.NoError(t, err)
	return tbl
}

func mkdir(t *testing.T, tbl *Table, parent uint32, name string) uint32 {
	t.Helper()
	id, err := tbl.Allocate()
	require.NoError(t, err)
	require.NoError(t, tbl.Put(id, image.MetadataEntry{Valid: 1, IsDir: 1, Parent: parent, Name: nameBytes(name)}))
	return id
}

func nameBytes(name string) [12]byte {
	var e image.MetadataEntry
	e.SetName(name)
	return e.Name
}

func TestRootResolvesToRootID(t *testing.T) {
	tbl := newTable(t, 8)
	id, ok := tbl.Resolve("/")
	require.True(t, ok)
	require.EqualValues(t, image.RootEntryID, id)

	id, ok = tbl.Resolve("")
	require.True(t, ok)
	require.EqualValues(t, image.RootEntryID, id)
}

func TestResolveWalksSegments(t *testing.T) {
	tbl := newTable(t, 8)
	docs := mkdir(t, tbl, image.RootEntryID, "docs")
	sub := mkdir(t, tbl, docs, "sub")

	id, ok := tbl.Resolve("/docs/sub")
	require.True(t, ok)
	require.Equal(t, sub, id)

	_, ok = tbl.Resolve("/docs/missing")
	require.False(t, ok)
}

func TestChildrenOfIsTableOrderNotAlphabetical(t *testing.T) {
	tbl := newTable(t, 8)
	mkdir(t, tbl, image.RootEntryID, "zebra")
	mkdir(t, tbl, image.RootEntryID, "apple")

	children := tbl.ChildrenOf(image.RootEntryID)
	require.Len(t, children, 2)
	require.Equal(t, "zebra", children[0].Name)
	require.Equal(t, "apple", children[1].Name)
}

func TestAllocateReturnsLowestFreeSlot(t *testing.T) {
	tbl := newTable(t, 4)
	id1, err := tbl.Allocate()
	require.NoError(t, err)
	require.EqualValues(t, 1, id1)
	require.NoError(t, tbl.Put(id1, image.MetadataEntry{Valid: 1, IsDir: 1, Parent: image.RootEntryID, Name: nameBytes("a")}))

	require.NoError(t, tbl.Free(id1))
	id2, err := tbl.Allocate()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestAllocateExhaustion(t *testing.T) {
	tbl := newTable(t, 2)
	_, err := tbl.Allocate()
	require.NoError(t, err)
	require.NoError(t, tbl.Put(1, image.MetadataEntry{Valid: 1, IsDir: 1, Parent: image.RootEntryID, Name: nameBytes("a")}))

	_, err = tbl.Allocate()
	require.ErrorIs(t, err, ErrNoSlot)
}

func TestFreeRemovesFromPathIndex(t *testing.T) {
	tbl := newTable(t, 4)
	id := mkdir(t, tbl, image.RootEntryID, "docs")
	_, ok := tbl.Resolve("/docs")
	require.True(t, ok)

	require.NoError(t, tbl.Free(id))
	_, ok = tbl.Resolve("/docs")
	require.False(t, ok)
}

func TestNameExistsUnderRejectsDuplicate(t *testing.T) {
	tbl := newTable(t, 4)
	mkdir(t, tbl, image.RootEntryID, "docs")
	require.True(t, tbl.NameExistsUnder(image.RootEntryID, "docs"))
	require.False(t, tbl.NameExistsUnder(image.RootEntryID, "other"))
}

func TestPutUpdatesPathOnRename(t *testing.T) {
	tbl := newTable(t, 4)
	id, err := tbl.Allocate()
	require.NoError(t, err)
	require.NoError(t, tbl.Put(id, image.MetadataEntry{Valid: 1, Parent: image.RootEntryID, Name: nameBytes("a")}))

	e := tbl.Get(id)
	e.SetName("b")
	require.NoError(t, tbl.Put(id, e))

	_, ok := tbl.Resolve("/a")
	require.False(t, ok)
	got, ok := tbl.Resolve("/b")
	require.True(t, ok)
	require.Equal(t, id, got)
}
