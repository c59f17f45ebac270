package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// Metadata is the caller-facing view returned by get_metadata.
type Metadata struct {
	Path       string
	Name       string
	IsDir      bool
	Size       uint64
	Owner      uint32
	Perm       uint32
	CreatedAt  int64
	ModifiedAt int64
}

// GetMetadata returns the full metadata record for any entry, file or
// directory.
func (e *Engine) GetMetadata(token, path string) (Metadata, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.requireSession(token); err != nil {
		return Metadata{}, err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	entry := e.meta.Get(id)
	return Metadata{
		Path: path, Name: entry.NameString(), IsDir: entry.IsDir0(), Size: entry.Size,
		Owner: entry.Owner, Perm: entry.Perm,
		CreatedAt: entry.CreatedAt, ModifiedAt: entry.ModifiedAt,
	}, nil
}

// SetPermissions updates an entry's Unix-style permission bits. Admin only.
func (e *Engine) SetPermissions(token, path string, perm uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	entry := e.meta.Get(id)
	entry.Perm = perm
	entry.ModifiedAt = e.now().Unix()
	if err := e.meta.Put(id, entry); err != nil {
		return wrapIO(err)
	}
	e.log.Info("set_permissions", zap.String("path", path), zap.Uint32("perm", perm))
	return nil
}

// Stats is the aggregate image-wide view returned by get_stats.
type Stats struct {
	TotalBlocks    uint32
	FreeBlocks     uint32
	UsedBlocks     uint32
	MaxEntries     uint32
	UsedEntries    uint32
	FileCount      uint32
	DirectoryCount uint32
	MaxUsers       uint32
	ActiveUsers    uint32
	BlockSize      uint32
	TotalImageSize uint64
}

// GetStats reports image-wide capacity and usage figures.
func (e *Engine) GetStats(token string) (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.requireSession(token); err != nil {
		return Stats{}, err
	}
	h := e.img.Header()
	var fileCount, dirCount uint32
	for id := uint32(0); id < h.MaxEntries; id++ {
		entry := e.meta.Get(id)
		if !entry.IsValid() {
			continue
		}
		if entry.IsDir0() {
			dirCount++
		} else {
			fileCount++
		}
	}
	free := e.bm.CountFree()
	return Stats{
		TotalBlocks:    h.TotalBlocks,
		FreeBlocks:     free,
		UsedBlocks:     h.TotalBlocks - free - 1, // block 0 is the reserved sentinel
		MaxEntries:     h.MaxEntries,
		UsedEntries:    fileCount + dirCount,
		FileCount:      fileCount,
		DirectoryCount: dirCount,
		MaxUsers:       h.MaxUsers,
		ActiveUsers:    uint32(len(e.users.List())),
		BlockSize:      h.BlockSize,
		TotalImageSize: h.TotalSize,
	}, nil
}
