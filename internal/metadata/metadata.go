// Package metadata implements the hierarchical namespace: the metadata
// table (a flat, array-indexed set of file/directory entries addressed by
// parent id + short name) and the in-memory path index derived from it.
package metadata

import (
	"omnifs/internal/image"
)

type store interface {
	WriteEntry(id uint32, e *image.MetadataEntry) error
	ReadEntry(id uint32) (*image.MetadataEntry, error)
}

// Child describes one entry returned by ChildrenOf.
type Child struct {
	ID    uint32
	Name  string
	IsDir bool
}

// Table is the in-memory metadata array plus the path→id index derived
// from it. Not safe for concurrent use; internal/engine wraps it in its
// own lock.
type Table struct {
	store      store
	maxEntries uint32
	entries    []image.MetadataEntry
	pathToID   map[string]uint32
	idToPath   map[uint32]string
	byParent   map[uint32]map[string]uint32
}

// Load reads every metadata slot from img and rebuilds the path index by
// traversing entries from root, per spec.md §5's startup sequence.
func Load(img store, maxEntries uint32) (*Table, error) {
	t := &Table{store: img, maxEntries: maxEntries}
	t.entries = make([]image.MetadataEntry, maxEntries)
	for id := uint32(0); id < maxEntries; id++ {
		e, err := img.ReadEntry(id)
		if err != nil {
			return nil, err
		}
		t.entries[id] = *e
	}
	t.rebuildIndex()
	return t, nil
}

func (t *Table) rebuildIndex() {
	t.pathToID = map[string]uint32{"/": image.RootEntryID}
	t.idToPath = map[uint32]string{image.RootEntryID: "/"}
	t.byParent = map[uint32]map[string]uint32{}
	for id := uint32(0); id < t.maxEntries; id++ {
		e := &t.entries[id]
		if e.Valid != 1 || id == image.RootEntryID {
			continue
		}
		if t.byParent[e.Parent] == nil {
			t.byParent[e.Parent] = map[string]uint32{}
		}
		t.byParent[e.Parent][e.NameString()] = id
	}
	var walk func(dir uint32, prefix string)
	walk = func(dir uint32, prefix string) {
		for name, id := range t.byParent[dir] {
			full := prefix + name
			t.pathToID[full] = id
			t.idToPath[id] = full
			if t.entries[id].IsDir == 1 {
				walk(id, full+"/")
			}
		}
	}
	walk(image.RootEntryID, "/")
}

// Resolve splits path on '/', discards empty segments, and walks from root
// matching each segment against in-use children by exact byte comparison.
// The root ("/" or "") resolves to RootEntryID.
func (t *Table) Resolve(path string) (uint32, bool) {
	segments := SplitSegments(path)
	cursor := uint32(image.RootEntryID)
	for _, seg := range segments {
		children := t.byParent[cursor]
		next, ok := children[seg]
		if !ok {
			return 0, false
		}
		cursor = next
	}
	return cursor, true
}

// ChildrenOf returns the in-use entries whose parent is dirID, in
// metadata-table order (stable, not alphabetical), per spec.md §4.4.
func (t *Table) ChildrenOf(dirID uint32) []Child {
	var out []Child
	for id := uint32(0); id < t.maxEntries; id++ {
		e := &t.entries[id]
		if e.Valid == 1 && e.Parent == dirID && id != dirID {
			out = append(out, Child{ID: id, Name: e.NameString(), IsDir: e.IsDir == 1})
		}
	}
	return out
}

// Allocate returns the lowest-indexed free slot at id >= 1.
func (t *Table) Allocate() (uint32, error) {
	for id := uint32(1); id < t.maxEntries; id++ {
		if t.entries[id].Valid != 1 {
			return id, nil
		}
	}
	return 0, ErrNoSlot
}

// Get returns a copy of the entry at id.
func (t *Table) Get(id uint32) image.MetadataEntry {
	return t.entries[id]
}

// NameExistsUnder reports whether an in-use entry named name already
// exists directly under dirID.
func (t *Table) NameExistsUnder(dirID uint32, name string) bool {
	_, ok := t.byParent[dirID][name]
	return ok
}

// Put writes e to slot id, updates the in-memory array, and keeps the path
// index and byParent index consistent — the three-way atomicity spec.md
// §4.4 requires from the caller's perspective. Entries never have children
// of their own renamed out from under them (the spec has no dir_rename),
// so a single entry's path never needs a subtree cascade.
func (t *Table) Put(id uint32, e image.MetadataEntry) error {
	if err := t.store.WriteEntry(id, &e); err != nil {
		return err
	}
	old := t.entries[id]
	t.entries[id] = e

	if old.Valid == 1 && id != image.RootEntryID {
		if m := t.byParent[old.Parent]; m != nil {
			delete(m, old.NameString())
		}
		delete(t.pathToID, t.idToPath[id])
		delete(t.idToPath, id)
	}
	if e.Valid == 1 && id != image.RootEntryID {
		if t.byParent[e.Parent] == nil {
			t.byParent[e.Parent] = map[string]uint32{}
		}
		t.byParent[e.Parent][e.NameString()] = id
		full := t.pathOf(e.Parent, e.NameString())
		t.pathToID[full] = id
		t.idToPath[id] = full
	}
	return nil
}

// Free clears slot id (Valid=0) and removes it from every index.
func (t *Table) Free(id uint32) error {
	return t.Put(id, image.MetadataEntry{})
}

func (t *Table) pathOf(parent uint32, name string) string {
	prefix := t.idToPath[parent]
	if prefix == "/" {
		return "/" + name
	}
	return prefix + "/" + name
}

// PathOf returns the absolute path of an in-use entry, if known.
func (t *Table) PathOf(id uint32) (string, bool) {
	p, ok := t.idToPath[id]
	return p, ok
}
