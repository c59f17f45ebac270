package engine

import (
	"fmt"

	"go.uber.org/zap"

	"omnifs/internal/session"
	"omnifs/internal/users"
)

// SessionInfo is the caller-facing view of an authenticated session,
// returned by Login and get_session_info.
type SessionInfo struct {
	Token    string
	UserID   uint32
	Username string
	Role     users.Role
}

func (e *Engine) requireSession(token string) (session.Info, error) {
	info, ok := e.sessions.Resolve(token, e.now())
	if !ok {
		return session.Info{}, fmt.Errorf("%w: invalid or expired session", ErrUnauthorized)
	}
	return info, nil
}

func (e *Engine) requireAdmin(token string) (session.Info, error) {
	info, err := e.requireSession(token)
	if err != nil {
		return session.Info{}, err
	}
	if info.Role != users.RoleAdmin {
		return session.Info{}, fmt.Errorf("%w: admin role required", ErrPermissionDenied)
	}
	return info, nil
}

// Login verifies credentials and issues a new session, per spec.md's
// user_login.
func (e *Engine) Login(username, password string) (SessionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, role, err := e.users.Login(username, password, e.now().Unix())
	if err != nil {
		e.log.Info("login failed", zap.String("username", username))
		return SessionInfo{}, translateUsersErr(err)
	}
	token, err := e.sessions.Login(id, username, role, e.now())
	if err != nil {
		return SessionInfo{}, wrapIO(err)
	}
	e.log.Info("login succeeded", zap.String("username", username), zap.Uint32("user_id", id))
	return SessionInfo{Token: token, UserID: id, Username: username, Role: role}, nil
}

// Logout invalidates a single session, per spec.md's user_logout.
func (e *Engine) Logout(token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions.Invalidate(token)
	return nil
}

// GetSessionInfo reports the identity bound to token, per spec.md's
// get_session_info (supplemented — see SPEC_FULL.md §9).
func (e *Engine) GetSessionInfo(token string) (SessionInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	info, err := e.requireSession(token)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{Token: info.Token, UserID: info.UserID, Username: info.Username, Role: info.Role}, nil
}
