package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// File is a positioned binary codec over one backing image file. Every
// Read*/Write* call is a single fixed-size record at a deterministic
// offset; every Write* flushes before returning, so a crash between two
// calls leaves at most the record being written in an indeterminate state.
//
// File has no locking of its own — internal/engine serializes all access
// with its own mutex, matching the single-writer discipline in spec.md §5.
type File struct {
	f      *os.File
	header Header
}

// Create formats a brand-new image file of totalSize bytes at path,
// writing a fresh Header plus a zeroed user table, a zeroed metadata table
// (with RootEntryID seeded as an in-use directory) and a bitmap marking
// every block free except the reserved block 0. It does not seed
// any user records; callers (internal/engine.Format) own that.
func Create(path string, totalSize uint64, headerSize, blockSize, maxUsers, maxEntries uint32, createdAt int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}

	userTableOff, metadataOff, _, _ := Layout(headerSize, blockSize, maxUsers, maxEntries, 0)

	// totalBlocks and dataOff are mutually dependent (more blocks means a
	// bigger bitmap means a later dataOff); grow totalBlocks in coarse then
	// fine steps until one more block would no longer fit in totalSize.
	totalBlocks := uint32(0)
	if blockSize > 0 {
		for _, step := range []uint32{1024, 1} {
			for {
				candidate := totalBlocks + step
				_, _, _, dOff := Layout(headerSize, blockSize, maxUsers, maxEntries, candidate)
				need := uint64(dOff) + uint64(candidate)*uint64(blockSize)
				if need > totalSize {
					break
				}
				totalBlocks = candidate
			}
		}
	}
	_, _, bitmapOff, dataOff := Layout(headerSize, blockSize, maxUsers, maxEntries, totalBlocks)

	h := Header{
		Magic:        Magic,
		Version:      CurrentVersion,
		TotalSize:    totalSize,
		HeaderSize:   headerSize,
		BlockSize:    blockSize,
		MaxUsers:     maxUsers,
		MaxEntries:   maxEntries,
		UserTableOff: userTableOff,
		MetadataOff:  metadataOff,
		BitmapOff:    bitmapOff,
		DataOff:      dataOff,
		TotalBlocks:  totalBlocks,
		CreatedAt:    createdAt,
	}

	img := &File{f: f, header: h}

	if err := img.truncateTo(totalSize); err != nil {
		f.Close()
		return nil, err
	}
	if err := img.WriteHeader(&h); err != nil {
		f.Close()
		return nil, err
	}

	empty := UserRecord{}
	for i := uint32(0); i < maxUsers; i++ {
		if err := img.WriteUser(i, &empty); err != nil {
			f.Close()
			return nil, err
		}
	}

	root := MetadataEntry{Valid: 1, IsDir: 1, Parent: RootEntryID, CreatedAt: createdAt, ModifiedAt: createdAt, Perm: 0o755}
	root.SetName("/")
	if err := img.WriteEntry(RootEntryID, &root); err != nil {
		f.Close()
		return nil, err
	}
	freeEntry := MetadataEntry{}
	for i := uint32(1); i < maxEntries; i++ {
		if err := img.WriteEntry(i, &freeEntry); err != nil {
			f.Close()
			return nil, err
		}
	}

	bitmapBytes := make([]byte, dataOff-bitmapOff)
	for i := range bitmapBytes {
		bitmapBytes[i] = 0xFF
	}
	if len(bitmapBytes) > 0 {
		bitmapBytes[0] &^= 1 // block 0 is permanently allocated
	}
	if err := img.WriteBitmapBytes(bitmapBytes); err != nil {
		f.Close()
		return nil, err
	}

	return img, nil
}

// Open reads and validates the header of an existing image file.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	img := &File{f: f}
	h, err := img.ReadHeader()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := h.Validate(); err != nil {
		f.Close()
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	if uint64(fi.Size()) != h.TotalSize {
		f.Close()
		return nil, fmt.Errorf("%w: file size %d does not match header total_size %d", ErrCorruptImage, fi.Size(), h.TotalSize)
	}
	img.header = *h
	return img, nil
}

// Close closes the backing file descriptor.
func (img *File) Close() error {
	return img.f.Close()
}

// Header returns the cached, in-memory copy of the header.
func (img *File) Header() Header { return img.header }

func (img *File) truncateTo(size uint64) error {
	if err := img.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("%w: truncate: %v", ErrIO, err)
	}
	return nil
}

func (img *File) writeAt(offset int64, v any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIO, err)
	}
	if _, err := img.f.WriteAt(buf.Bytes(), offset); err != nil {
		return fmt.Errorf("%w: write at %d: %v", ErrIO, offset, err)
	}
	if err := img.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	return nil
}

func (img *File) readAt(offset int64, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("%w: value has no fixed binary size", ErrIO)
	}
	buf := make([]byte, size)
	if _, err := img.f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return fmt.Errorf("%w: read at %d: %v", ErrIO, offset, err)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrIO, err)
	}
	return nil
}

// WriteHeader persists h at offset 0 and updates the cached copy.
func (img *File) WriteHeader(h *Header) error {
	if err := img.writeAt(0, h); err != nil {
		return err
	}
	img.header = *h
	return nil
}

// ReadHeader reads the header record from offset 0.
func (img *File) ReadHeader() (*Header, error) {
	var h Header
	if err := img.readAt(0, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (img *File) userOffset(id uint32) int64 {
	return int64(img.header.UserTableOff) + int64(id)*UserRecordSize
}

// WriteUser persists the user record at index id.
func (img *File) WriteUser(id uint32, u *UserRecord) error {
	if id >= img.header.MaxUsers && img.header.MaxUsers != 0 {
		return fmt.Errorf("%w: user id %d out of range", ErrIO, id)
	}
	return img.writeAt(img.userOffset(id), u)
}

// ReadUser reads the user record at index id.
func (img *File) ReadUser(id uint32) (*UserRecord, error) {
	var u UserRecord
	if err := img.readAt(img.userOffset(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (img *File) entryOffset(id uint32) int64 {
	return int64(img.header.MetadataOff) + int64(id)*MetadataEntrySize
}

// WriteEntry persists the metadata entry at index id.
func (img *File) WriteEntry(id uint32, e *MetadataEntry) error {
	return img.writeAt(img.entryOffset(id), e)
}

// ReadEntry reads the metadata entry at index id.
func (img *File) ReadEntry(id uint32) (*MetadataEntry, error) {
	var e MetadataEntry
	if err := img.readAt(img.entryOffset(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// WriteBitmapBytes overwrites the entire bitmap region in one positioned
// write. The bitmap is small and fixed-size, so whole-region rewrites are
// the persistence granularity, matching spec.md §4.2.
func (img *File) WriteBitmapBytes(b []byte) error {
	if _, err := img.f.WriteAt(b, int64(img.header.BitmapOff)); err != nil {
		return fmt.Errorf("%w: write bitmap: %v", ErrIO, err)
	}
	if err := img.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	return nil
}

// ReadBitmapBytes reads the entire bitmap region.
func (img *File) ReadBitmapBytes() ([]byte, error) {
	n := img.header.DataOff - img.header.BitmapOff
	buf := make([]byte, n)
	if _, err := img.f.ReadAt(buf, int64(img.header.BitmapOff)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read bitmap: %v", ErrIO, err)
	}
	return buf, nil
}

func (img *File) blockOffset(b uint32) int64 {
	return int64(img.header.DataOff) + int64(b)*int64(img.header.BlockSize)
}

// WriteBlock writes buf (must be <= BlockSize bytes) to the data block b.
func (img *File) WriteBlock(b uint32, buf []byte) error {
	if uint32(len(buf)) > img.header.BlockSize {
		return fmt.Errorf("%w: content exceeds block size", ErrIO)
	}
	if _, err := img.f.WriteAt(buf, img.blockOffset(b)); err != nil {
		return fmt.Errorf("%w: write block %d: %v", ErrIO, b, err)
	}
	if err := img.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	return nil
}

// ReadBlock reads n bytes (n <= BlockSize) from data block b.
func (img *File) ReadBlock(b uint32, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := img.f.ReadAt(buf, img.blockOffset(b)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read block %d: %v", ErrIO, b, err)
	}
	return buf, nil
}
