package engine

import (
	"go.uber.org/zap"

	"omnifs/internal/users"
)

// UserCreate creates a new active user. Admin only.
func (e *Engine) UserCreate(token, username, password string, role users.Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireAdmin(token); err != nil {
		return err
	}
	if _, err := e.users.Create(username, password, role, e.now().Unix()); err != nil {
		return translateUsersErr(err)
	}
	e.log.Info("user created", zap.String("username", username))
	return nil
}

// UserDelete deactivates a user and revokes its sessions. Admin only;
// refuses the primary admin and the caller's own account.
func (e *Engine) UserDelete(token, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	caller, err := e.requireAdmin(token)
	if err != nil {
		return err
	}
	deletedID, found := e.findUserID(username)
	if err := e.users.Delete(username, caller.UserID); err != nil {
		return translateUsersErr(err)
	}
	if found {
		e.sessions.InvalidateForUser(deletedID)
	}
	e.log.Info("user deleted", zap.String("username", username))
	return nil
}

// UserList enumerates active usernames. Admin only.
func (e *Engine) UserList(token string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.requireAdmin(token); err != nil {
		return nil, err
	}
	return e.users.List(), nil
}

// findUserID looks up a username's id by scanning every slot, active or
// not, and returns the first match. UserDelete calls it before the delete
// so that it can invalidate that user's sessions afterwards.
func (e *Engine) findUserID(username string) (uint32, bool) {
	for id := uint32(0); ; id++ {
		rec, err := e.users.Get(id)
		if err != nil {
			return 0, false
		}
		if rec.UsernameString() == username {
			return id, true
		}
	}
}
