// Package image implements the on-disk record layout of an omnifs image:
// fixed-offset reads and writes of the header, user table, metadata table,
// free-block bitmap, and data blocks.
package image

import "fmt"

// Magic identifies a valid omnifs image. It intentionally does not change
// across patch versions; Version carries format evolution.
var Magic = [8]byte{'O', 'M', 'N', 'I', 'F', 'S', '0', '1'}

const (
	// CurrentVersion is written by Format and checked by Open.
	CurrentVersion = 1

	// HeaderSize is the fixed, on-disk size of Header.
	HeaderSize = 512

	// UserRecordSize is the fixed, on-disk size of UserRecord.
	UserRecordSize = 96

	// MetadataEntrySize is the fixed, on-disk size of MetadataEntry.
	MetadataEntrySize = 72

	// MaxNameLen is the longest short name a metadata entry can hold,
	// one byte short of the 12-byte field to leave room for a NUL.
	MaxNameLen = 11

	// RootEntryID is the id of the always-present root directory.
	RootEntryID = 0
)

// Header is the fixed 512-byte first record of an image. All region offsets
// are absolute byte offsets into the image file, computed once at format
// time and persisted rather than recomputed, so an image remains
// self-describing even if the constants above change in a future version.
type Header struct {
	Magic        [8]byte
	Version      uint32
	TotalSize    uint64
	HeaderSize   uint32
	BlockSize    uint32
	MaxUsers     uint32
	MaxEntries   uint32
	UserTableOff uint32
	MetadataOff  uint32
	BitmapOff    uint32
	DataOff      uint32
	TotalBlocks  uint32
	CreatedAt    int64
	Reserved     [448]byte
}

// Validate checks the structural invariants spec'd for a valid image:
// magic/version match, and region offsets are monotonically increasing and
// consistent with the declared total size.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad magic", ErrCorruptImage)
	}
	if h.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptImage, h.Version)
	}
	if h.HeaderSize != HeaderSize {
		return fmt.Errorf("%w: unexpected header size %d", ErrCorruptImage, h.HeaderSize)
	}
	if !(h.UserTableOff < h.MetadataOff && h.MetadataOff < h.BitmapOff && h.BitmapOff < h.DataOff && h.DataOff < uint32(h.TotalSize)) {
		return fmt.Errorf("%w: region offsets are not monotonically increasing", ErrCorruptImage)
	}
	wantBlocks := (h.TotalSize - uint64(h.DataOff)) / uint64(h.BlockSize)
	if uint64(h.TotalBlocks) > wantBlocks {
		return fmt.Errorf("%w: declared block count exceeds data region capacity", ErrCorruptImage)
	}
	return nil
}

// UserRecord is one fixed-size, array-indexed slot of the user table.
type UserRecord struct {
	Username  [32]byte
	Digest    [32]byte
	Role      uint8
	Active    uint8
	Reserved0 [2]byte
	CreatedAt int64
	LastLogin int64
	Reserved1 [12]byte
}

// MetadataEntry is one fixed-size, array-indexed slot of the metadata
// table: a file or a directory, or a free slot when Valid == 0.
type MetadataEntry struct {
	Valid      uint8
	IsDir      uint8
	Reserved0  [2]byte
	Parent     uint32
	Name       [12]byte
	StartBlock uint32
	Size       uint64
	Owner      uint32
	Perm       uint32
	CreatedAt  int64
	ModifiedAt int64
	Reserved1  [16]byte
}

// IsDir0 reports whether the entry is a directory. Named with the 0 suffix
// to stay clear of the raw IsDir byte field.
func (m MetadataEntry) IsDir0() bool { return m.IsDir == 1 }

// IsValid reports whether the slot is in use.
func (m MetadataEntry) IsValid() bool { return m.Valid == 1 }

// NameString returns the short name as a Go string, trimmed at the first
// NUL byte.
func (m *MetadataEntry) NameString() string {
	for i, b := range m.Name {
		if b == 0 {
			return string(m.Name[:i])
		}
	}
	return string(m.Name[:])
}

// SetName copies s into the fixed Name field. The caller must have already
// validated len(s) <= MaxNameLen.
func (m *MetadataEntry) SetName(s string) {
	m.Name = [12]byte{}
	copy(m.Name[:], s)
}

// UsernameString returns the username as a Go string, trimmed at the first
// NUL byte.
func (u *UserRecord) UsernameString() string {
	for i, b := range u.Username {
		if b == 0 {
			return string(u.Username[:i])
		}
	}
	return string(u.Username[:])
}

// SetUsername copies s into the fixed Username field. The caller must have
// already validated the length fits.
func (u *UserRecord) SetUsername(s string) {
	u.Username = [32]byte{}
	copy(u.Username[:], s)
}

// Layout derives the absolute offsets of every region from the format-time
// parameters. Create uses it to size the image and persists the result in
// Header; Open trusts the persisted Header and does not call Layout.
func Layout(headerSize, blockSize, maxUsers, maxEntries, totalBlocks uint32) (userTableOff, metadataOff, bitmapOff, dataOff uint32) {
	userTableOff = headerSize
	metadataOff = userTableOff + maxUsers*UserRecordSize
	bitmapOff = metadataOff + maxEntries*MetadataEntrySize
	bitmapBytes := (totalBlocks + 7) / 8
	dataOff = roundUp(bitmapOff+bitmapBytes, blockSize)
	return
}

func roundUp(v, multiple uint32) uint32 {
	if multiple == 0 {
		return v
	}
	rem := v % multiple
	if rem == 0 {
		return v
	}
	return v + (multiple - rem)
}
