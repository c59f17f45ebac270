package engine

import (
	"fmt"

	"go.uber.org/zap"

	"omnifs/internal/image"
)

// FileCreate creates a new file at path with the given content. Admin
// only. The data block is allocated first; any failure after that releases
// it before returning, per spec.md's "failure semantics".
func (e *Engine) FileCreate(token, path string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	parentPath, name, err := splitForCreate(path)
	if err != nil {
		return err
	}
	if uint32(len(content)) > e.blockSize() {
		return fmt.Errorf("%w: content exceeds block size %d", ErrInvalidArgument, e.blockSize())
	}
	parentID, ok := e.meta.Resolve(parentPath)
	if !ok {
		return fmt.Errorf("%w: parent %q does not exist", ErrNotFound, parentPath)
	}
	if !e.meta.Get(parentID).IsDir0() {
		return fmt.Errorf("%w: parent %q is not a directory", ErrNotADirectory, parentPath)
	}
	if e.meta.NameExistsUnder(parentID, name) {
		return fmt.Errorf("%w: %q already exists", ErrAlreadyExists, path)
	}

	block, ok := e.bm.Allocate()
	if !ok {
		return fmt.Errorf("%w: no free data block", ErrNoSpace)
	}
	if err := e.persistBitmap(); err != nil {
		e.bm.Free(block)
		return err
	}

	id, err := e.meta.Allocate()
	if err != nil {
		e.bm.Free(block)
		e.persistBitmap() //nolint:errcheck // best-effort rollback
		return fmt.Errorf("%w: metadata table full", ErrNoSpace)
	}

	if err := e.img.WriteBlock(block, obfuscate(content)); err != nil {
		e.bm.Free(block)
		e.persistBitmap() //nolint:errcheck // best-effort rollback
		return wrapIO(err)
	}

	who, _ := e.requireSession(token)
	now := e.now().Unix()
	entry := image.MetadataEntry{
		Valid: 1, IsDir: 0, Parent: parentID, StartBlock: block,
		Size: uint64(len(content)), Owner: who.UserID, Perm: 0o644,
		CreatedAt: now, ModifiedAt: now,
	}
	entry.SetName(name)
	if err := e.meta.Put(id, entry); err != nil {
		e.bm.Free(block)
		e.persistBitmap() //nolint:errcheck // best-effort rollback
		return wrapIO(err)
	}
	e.log.Info("file_create", zap.String("path", path), zap.Int("size", len(content)))
	return nil
}

// FileRead returns a file's exact content.
func (e *Engine) FileRead(token, path string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.requireSession(token); err != nil {
		return nil, err
	}
	id, entry, err := e.resolveFile(path)
	if err != nil {
		return nil, err
	}
	if entry.Size == 0 {
		return []byte{}, nil
	}
	raw, err := e.img.ReadBlock(entry.StartBlock, uint32(entry.Size))
	if err != nil {
		return nil, wrapIO(err)
	}
	_ = id
	return deobfuscate(raw), nil
}

// FileEdit overwrites len(patch) bytes starting at index within the
// file's existing content; it never extends the file. Admin only.
func (e *Engine) FileEdit(token, path string, patch []byte, index uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, entry, err := e.resolveFile(path)
	if err != nil {
		return err
	}
	if index+uint64(len(patch)) > entry.Size {
		return fmt.Errorf("%w: patch extends past end of file", ErrInvalidArgument)
	}
	existing, err := e.img.ReadBlock(entry.StartBlock, uint32(entry.Size))
	if err != nil {
		return wrapIO(err)
	}
	plain := deobfuscate(existing)
	copy(plain[index:], patch)
	if err := e.img.WriteBlock(entry.StartBlock, obfuscate(plain)); err != nil {
		return wrapIO(err)
	}
	entry.ModifiedAt = e.now().Unix()
	if err := e.meta.Put(id, entry); err != nil {
		return wrapIO(err)
	}
	e.log.Info("file_edit", zap.String("path", path), zap.Uint64("index", index), zap.Int("len", len(patch)))
	return nil
}

// FileDelete frees a file's data block and metadata entry. Admin only.
func (e *Engine) FileDelete(token, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, entry, err := e.resolveFile(path)
	if err != nil {
		return err
	}
	if entry.StartBlock != 0 {
		e.bm.Free(entry.StartBlock)
		if err := e.persistBitmap(); err != nil {
			return err
		}
	}
	if err := e.meta.Free(id); err != nil {
		return wrapIO(err)
	}
	e.log.Info("file_delete", zap.String("path", path))
	return nil
}

// FileTruncate resets a file's size to 0 and releases its data block
// immediately (spec.md §9 open question, resolved in SPEC_FULL.md §3).
// Admin only.
func (e *Engine) FileTruncate(token, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, entry, err := e.resolveFile(path)
	if err != nil {
		return err
	}
	if entry.StartBlock != 0 {
		e.bm.Free(entry.StartBlock)
		if err := e.persistBitmap(); err != nil {
			return err
		}
	}
	entry.StartBlock = 0
	entry.Size = 0
	entry.ModifiedAt = e.now().Unix()
	if err := e.meta.Put(id, entry); err != nil {
		return wrapIO(err)
	}
	e.log.Info("file_truncate", zap.String("path", path))
	return nil
}

// FileExists reports whether path resolves to an in-use file.
func (e *Engine) FileExists(token, path string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.requireSession(token); err != nil {
		return false, err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return false, nil
	}
	entry := e.meta.Get(id)
	return !entry.IsDir0(), nil
}

// FileRename moves a file to a new path, refusing to overwrite an
// existing entry or to rename the root. Admin only.
func (e *Engine) FileRename(token, oldPath, newPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, entry, err := e.resolveFile(oldPath)
	if err != nil {
		return err
	}
	if id == image.RootEntryID {
		return fmt.Errorf("%w: cannot rename root", ErrInvalidArgument)
	}
	newParentPath, newName, err := splitForCreate(newPath)
	if err != nil {
		return err
	}
	newParentID, ok := e.meta.Resolve(newParentPath)
	if !ok {
		return fmt.Errorf("%w: parent %q does not exist", ErrNotFound, newParentPath)
	}
	if !e.meta.Get(newParentID).IsDir0() {
		return fmt.Errorf("%w: parent %q is not a directory", ErrNotADirectory, newParentPath)
	}
	if e.meta.NameExistsUnder(newParentID, newName) {
		return fmt.Errorf("%w: %q already exists", ErrAlreadyExists, newPath)
	}

	entry.Parent = newParentID
	entry.SetName(newName)
	entry.ModifiedAt = e.now().Unix()
	if err := e.meta.Put(id, entry); err != nil {
		return wrapIO(err)
	}
	e.log.Info("file_rename", zap.String("old", oldPath), zap.String("new", newPath))
	return nil
}

func (e *Engine) resolveFile(path string) (uint32, image.MetadataEntry, error) {
	id, ok := e.meta.Resolve(path)
	if !ok {
		return 0, image.MetadataEntry{}, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	entry := e.meta.Get(id)
	if entry.IsDir0() {
		return 0, image.MetadataEntry{}, fmt.Errorf("%w: %q", ErrNotAFile, path)
	}
	return id, entry, nil
}

func (e *Engine) blockSize() uint32 {
	return e.img.Header().BlockSize
}
