// Package bitmap implements the free-block bitmap: one bit per data block,
// bit=1 meaning free and bit=0 meaning allocated, with bit 0 permanently
// reserved as an allocated sentinel.
package bitmap

import "fmt"

// Bitmap is an in-memory mirror of the image's free-block bitmap region.
// It carries no file handle of its own; internal/engine is responsible for
// loading its bytes from internal/image and persisting them back after a
// mutation.
type Bitmap struct {
	bits  []byte
	count uint32 // total number of blocks tracked
}

// New wraps raw bitmap bytes loaded from the image. count is the number of
// blocks the bitmap actually tracks (may be less than len(raw)*8 when the
// byte count was rounded up).
func New(raw []byte, count uint32) *Bitmap {
	b := make([]byte, len(raw))
	copy(b, raw)
	return &Bitmap{bits: b, count: count}
}

// Bytes returns the raw bytes backing the bitmap, for persistence.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, len(b.bits))
	copy(out, b.bits)
	return out
}

func (b *Bitmap) isFree(i uint32) bool {
	return b.bits[i/8]&(1<<(i%8)) != 0
}

func (b *Bitmap) setFree(i uint32) {
	b.bits[i/8] |= 1 << (i % 8)
}

func (b *Bitmap) setAllocated(i uint32) {
	b.bits[i/8] &^= 1 << (i % 8)
}

// Allocate scans for the first free bit at index >= 1 (block 0 is the
// reserved sentinel and is never returned), clears it, and returns its
// index. ok is false when no block is free.
func (b *Bitmap) Allocate() (block uint32, ok bool) {
	for i := uint32(1); i < b.count; i++ {
		if b.isFree(i) {
			b.setAllocated(i)
			return i, true
		}
	}
	return 0, false
}

// Free marks block as free again. It is a no-op, not an error, for block 0
// — callers should never pass it, but the bitmap itself stays safe either
// way.
func (b *Bitmap) Free(block uint32) {
	if block == 0 {
		return
	}
	b.setFree(block)
}

// IsFree reports whether block is currently free.
func (b *Bitmap) IsFree(block uint32) (bool, error) {
	if block >= b.count {
		return false, fmt.Errorf("bitmap: block %d out of range", block)
	}
	return b.isFree(block), nil
}

// CountFree returns the number of currently free blocks, not counting the
// permanently allocated block 0.
func (b *Bitmap) CountFree() uint32 {
	var n uint32
	for i := uint32(1); i < b.count; i++ {
		if b.isFree(i) {
			n++
		}
	}
	return n
}

// TotalBlocks returns the number of blocks the bitmap tracks.
func (b *Bitmap) TotalBlocks() uint32 { return b.count }
