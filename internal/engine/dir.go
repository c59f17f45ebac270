package engine

import (
	"fmt"

	"go.uber.org/zap"

	"omnifs/internal/image"
	"omnifs/internal/metadata"
)

// DirEntry is one child returned by DirList.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  uint64
}

// DirCreate creates a new, empty directory at path. Admin only.
func (e *Engine) DirCreate(token, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}

	parentPath, name, err := splitForCreate(path)
	if err != nil {
		return err
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

	id, err := e.meta.Allocate()
	if err != nil {
		return fmt.Errorf("%w: metadata table full", ErrNoSpace)
	}
	now := e.now().Unix()
	entry := image.MetadataEntry{Valid: 1, IsDir: 1, Parent: parentID, Perm: 0o755, CreatedAt: now, ModifiedAt: now}
	entry.SetName(name)
	if err := e.meta.Put(id, entry); err != nil {
		return wrapIO(err)
	}
	e.log.Info("dir_create", zap.String("path", path))
	return nil
}

// DirList enumerates the children of the directory at path.
func (e *Engine) DirList(token, path string) ([]DirEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.requireSession(token); err != nil {
		return nil, err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	entry := e.meta.Get(id)
	if !entry.IsDir0() {
		return nil, fmt.Errorf("%w: %q", ErrNotADirectory, path)
	}
	children := e.meta.ChildrenOf(id)
	out := make([]DirEntry, len(children))
	for i, c := range children {
		child := e.meta.Get(c.ID)
		out[i] = DirEntry{Name: c.Name, IsDir: c.IsDir, Size: child.Size}
	}
	return out, nil
}

// DirDelete removes an empty, non-root directory. Admin only.
func (e *Engine) DirDelete(token, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if id == image.RootEntryID {
		return fmt.Errorf("%w: cannot delete root", ErrInvalidArgument)
	}
	entry := e.meta.Get(id)
	if !entry.IsDir0() {
		return fmt.Errorf("%w: %q", ErrNotADirectory, path)
	}
	if len(e.meta.ChildrenOf(id)) > 0 {
		return fmt.Errorf("%w: %q is not empty", ErrDirectoryNotEmpty, path)
	}
	if err := e.meta.Free(id); err != nil {
		return wrapIO(err)
	}
	e.log.Info("dir_delete", zap.String("path", path))
	return nil
}

// DirExists reports whether path resolves to an in-use directory.
func (e *Engine) DirExists(token, path string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.requireSession(token); err != nil {
		return false, err
	}
	id, ok := e.meta.Resolve(path)
	if !ok {
		return false, nil
	}
	return e.meta.Get(id).IsDir0(), nil
}

// splitForCreate splits path into a parent path and final short name,
// validating both the root case and the name length invariant (spec.md §3,
// short names are 10-11 bytes bounded).
func splitForCreate(path string) (parentPath, name string, err error) {
	parentPath, name = metadata.SplitParentName(path)
	if name == "" {
		return "", "", fmt.Errorf("%w: cannot create the root", ErrInvalidArgument)
	}
	if len(name) > image.MaxNameLen {
		return "", "", fmt.Errorf("%w: name %q exceeds %d bytes", ErrInvalidArgument, name, image.MaxNameLen)
	}
	return parentPath, name, nil
}
