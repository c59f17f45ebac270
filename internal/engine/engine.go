// Package engine implements the operation engine (C6): the authenticated,
// serialized surface of omnifs, composing the image codec, free-block
// bitmap, user table, metadata table and session manager into the
// operations spec.md §4.6 describes.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"omnifs/internal/bitmap"
	"omnifs/internal/image"
	"omnifs/internal/metadata"
	"omnifs/internal/session"
	"omnifs/internal/users"
)

// FormatParams are the format-time parameters of a brand-new image,
// mirroring spec.md §6's `[filesystem]`/`[security]` config sections.
type FormatParams struct {
	TotalSize     uint64
	HeaderSize    uint32
	BlockSize     uint32
	MaxUsers      uint32
	MaxEntries    uint32
	AdminUsername string
	AdminPassword string
}

// Engine is the process-wide, single-owner value the transport holds for
// the server's lifetime (spec.md §9, "global mutable state"). All
// exported methods are safe for concurrent use: pure reads take a shared
// lock, mutations take an exclusive one, and every lock region encloses
// both the in-memory and the on-image effects of one operation, per
// spec.md §5.
type Engine struct {
	mu       sync.RWMutex
	img      *image.File
	bm       *bitmap.Bitmap
	users    *users.Table
	meta     *metadata.Table
	sessions *session.Manager
	log      *zap.Logger
	now      func() time.Time
}

// Format creates a brand-new image at path and seeds it with one active
// Admin, per spec.md §4.3's "format-time admin".
func Format(path string, p FormatParams, log *zap.Logger) (*Engine, error) {
	now := time.Now()
	img, err := image.Create(path, p.TotalSize, p.HeaderSize, p.BlockSize, p.MaxUsers, p.MaxEntries, now.Unix())
	if err != nil {
		return nil, wrapIO(err)
	}
	e, err := newEngine(img, log)
	if err != nil {
		return nil, err
	}
	if err := e.users.Seed(p.AdminUsername, p.AdminPassword, now.Unix()); err != nil {
		img.Close()
		return nil, wrapIO(err)
	}
	log.Info("formatted image", zap.String("path", path), zap.Uint32("total_blocks", img.Header().TotalBlocks))
	return e, nil
}

// Open loads an existing image, rebuilding every in-memory index from it,
// per spec.md §5's startup sequence.
func Open(path string, log *zap.Logger) (*Engine, error) {
	img, err := image.Open(path)
	if err != nil {
		return nil, translateImageErr(err)
	}
	e, err := newEngine(img, log)
	if err != nil {
		img.Close()
		return nil, err
	}
	log.Info("opened image", zap.String("path", path))
	return e, nil
}

func newEngine(img *image.File, log *zap.Logger) (*Engine, error) {
	h := img.Header()

	rawBitmap, err := img.ReadBitmapBytes()
	if err != nil {
		return nil, wrapIO(err)
	}
	bm := bitmap.New(rawBitmap, h.TotalBlocks)

	ut, err := users.Load(img, h.MaxUsers)
	if err != nil {
		return nil, wrapIO(err)
	}

	mt, err := metadata.Load(img, h.MaxEntries)
	if err != nil {
		return nil, wrapIO(err)
	}

	return &Engine{
		img:      img,
		bm:       bm,
		users:    ut,
		meta:     mt,
		sessions: session.New(),
		log:      log,
		now:      time.Now,
	}, nil
}

// Close flushes any dirty in-memory state and closes the image descriptor;
// sessions are simply dropped, per spec.md §5.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.img.WriteBitmapBytes(e.bm.Bytes()); err != nil {
		return wrapIO(err)
	}
	return e.img.Close()
}

func (e *Engine) persistBitmap() error {
	return wrapIO(e.img.WriteBitmapBytes(e.bm.Bytes()))
}
