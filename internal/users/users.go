package users

import (
	"fmt"

	"omnifs/internal/image"
)

// Role is the small tagged integer persisted in UserRecord.Role, per
// spec.md §9 ("serialization of variants").
type Role uint8

const (
	RoleAdmin  Role = 0
	RoleNormal Role = 1
)

// PrimaryAdminID is the reserved slot seeded at format time; it can never
// be deleted (spec.md §3 C3 invariant, §4.3 "format-time admin").
const PrimaryAdminID uint32 = 0

// store is the slice of image.File operations the table needs; declared as
// an interface purely so tests can exercise Table without a real backing
// file.
type store interface {
	WriteUser(id uint32, u *image.UserRecord) error
	ReadUser(id uint32) (*image.UserRecord, error)
}

// Table is the in-memory user table plus the username→slot credential
// index described in spec.md §4.3. It is not safe for concurrent use on
// its own; internal/engine wraps it with its own lock.
type Table struct {
	store    store
	maxUsers uint32
	records  []image.UserRecord
	byName   map[string]uint32 // active users only
}

// Load reads every user slot from img and rebuilds the credential index.
func Load(img store, maxUsers uint32) (*Table, error) {
	t := &Table{store: img, maxUsers: maxUsers, byName: map[string]uint32{}}
	t.records = make([]image.UserRecord, maxUsers)
	for id := uint32(0); id < maxUsers; id++ {
		rec, err := img.ReadUser(id)
		if err != nil {
			return nil, err
		}
		t.records[id] = *rec
		if rec.Active == 1 {
			t.byName[rec.UsernameString()] = id
		}
	}
	return t, nil
}

func (t *Table) flush(id uint32) error {
	return t.store.WriteUser(id, &t.records[id])
}

// flushAll rewrites the entire user-table region, matching the "any
// mutation rewrites the whole region" persistence granularity of
// spec.md §4.3.
func (t *Table) flushAll() error {
	for id := range t.records {
		if err := t.flush(uint32(id)); err != nil {
			return err
		}
	}
	return nil
}

// Seed writes the format-time Admin at PrimaryAdminID. Callers must only
// invoke this once, immediately after Load on a freshly created image.
func (t *Table) Seed(username, password string, now int64) error {
	var u image.UserRecord
	u.SetUsername(username)
	u.Digest = Digest(password)
	u.Role = uint8(RoleAdmin)
	u.Active = 1
	u.CreatedAt = now
	t.records[PrimaryAdminID] = u
	t.byName[username] = PrimaryAdminID
	return t.flushAll()
}

// Login verifies username/password against an active record and issues a
// fresh last-login time; it returns the user id and role on success.
func (t *Table) Login(username, password string, now int64) (id uint32, role Role, err error) {
	slot, ok := t.byName[username]
	digest := Digest(password)
	if !ok {
		return 0, 0, ErrAuthFailed
	}
	rec := &t.records[slot]
	if rec.Active != 1 || rec.Digest != digest {
		return 0, 0, ErrAuthFailed
	}
	rec.LastLogin = now
	if err := t.flush(slot); err != nil {
		return 0, 0, err
	}
	return slot, Role(rec.Role), nil
}

// Create allocates the first inactive slot for a brand-new active user.
func (t *Table) Create(username, password string, role Role, now int64) (uint32, error) {
	if _, exists := t.byName[username]; exists {
		return 0, ErrAlreadyExists
	}
	slot, ok := t.firstInactiveSlot()
	if !ok {
		return 0, ErrNoSlot
	}
	var u image.UserRecord
	u.SetUsername(username)
	u.Digest = Digest(password)
	u.Role = uint8(role)
	u.Active = 1
	u.CreatedAt = now
	t.records[slot] = u
	t.byName[username] = slot
	if err := t.flushAll(); err != nil {
		return 0, err
	}
	return slot, nil
}

func (t *Table) firstInactiveSlot() (uint32, bool) {
	for id := uint32(0); id < t.maxUsers; id++ {
		if t.records[id].Active != 1 {
			return id, true
		}
	}
	return 0, false
}

// Delete marks username inactive, refusing the primary admin and the
// caller's own account, and removes it from the credential index.
func (t *Table) Delete(username string, callerID uint32) error {
	slot, ok := t.byName[username]
	if !ok {
		return ErrNotFound
	}
	if slot == PrimaryAdminID {
		return ErrInvariantViolation
	}
	if slot == callerID {
		return ErrInvariantViolation
	}
	t.records[slot].Active = 0
	delete(t.byName, username)
	return t.flushAll()
}

// List enumerates active usernames in table order.
func (t *Table) List() []string {
	names := make([]string, 0, len(t.byName))
	for id := uint32(0); id < t.maxUsers; id++ {
		if t.records[id].Active == 1 {
			names = append(names, t.records[id].UsernameString())
		}
	}
	return names
}

// Get returns the record at id, whether or not it is active.
func (t *Table) Get(id uint32) (image.UserRecord, error) {
	if id >= t.maxUsers {
		return image.UserRecord{}, fmt.Errorf("%w: user id %d out of range", ErrNotFound, id)
	}
	return t.records[id], nil
}

// Username returns the stored username for an active or inactive slot.
func (t *Table) Username(id uint32) (string, error) {
	rec, err := t.Get(id)
	if err != nil {
		return "", err
	}
	return rec.UsernameString(), nil
}
