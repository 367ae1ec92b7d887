package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/kvstore"
)

const (
	// TokenRefreshBuffer is how long before expiry the access token is refreshed
	TokenRefreshBuffer = 5 * time.Minute

	// DefaultSessionTTL is how long an idle session is kept
	DefaultSessionTTL = 24 * time.Hour
)

// Session is a signed-in user's handle. The ID is what the browser carries.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Tokens    Tokens    `json:"tokens"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists sessions in the key-value store.
type SessionStore struct {
	store kvstore.Store
}

// NewSessionStore creates a new session store
func NewSessionStore(store kvstore.Store) *SessionStore {
	return &SessionStore{store: store}
}

func sessionKey(id string) string {
	return "session_" + id
}

// Save stores the session for ttl
func (s *SessionStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.store.KVSetWithExpiry(ctx, sessionKey(session.ID), data, ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the session with the given ID, or nil if there is none
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.store.KVGet(ctx, sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.store.KVDelete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SessionManager ties provider tokens to stored sessions, refreshing tokens shortly before
// they expire.
type SessionManager struct {
	provider Provider
	sessions *SessionStore
	ttl      time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewSessionManager creates a new session manager. A zero ttl uses DefaultSessionTTL.
func NewSessionManager(provider Provider, sessions *SessionStore, ttl time.Duration, logger *zap.SugaredLogger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		provider: provider,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new user account
func (m *SessionManager) Register(ctx context.Context, reg Registration) (bool, error) {
	confirmed, err := m.provider.Register(ctx, reg)
	if err != nil {
		return false, err
	}
	m.logger.Infow("Registered user", "username", reg.Username, "confirmed", confirmed)
	return confirmed, nil
}

// ConfirmRegistration confirms a new user account
func (m *SessionManager) ConfirmRegistration(ctx context.Context, username, code string) error {
	return m.provider.ConfirmRegistration(ctx, username, code)
}

// SignIn authenticates the user and creates a session
func (m *SessionManager) SignIn(ctx context.Context, username, password string) (*Session, error) {
	tokens, err := m.provider.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Tokens:    *tokens,
		CreatedAt: m.now(),
	}
	if err := m.sessions.Save(ctx, session, m.ttl); err != nil {
		return nil, err
	}

	m.logger.Infow("User signed in", "username", username, "sessionId", session.ID)
	return session, nil
}

// Current returns the live session for id, refreshing its tokens when they are within
// TokenRefreshBuffer of expiry. Returns ErrNoSession when the session is missing or can no
// longer be refreshed.
func (m *SessionManager) Current(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	session, err := m.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}

	if m.isTokenValid(session.Tokens.ExpiresAt) {
		return session, nil
	}

	m.logger.Debugw("Refreshing session tokens", "sessionId", id, "username", session.Username)
	tokens, err := m.provider.Refresh(ctx, session.Tokens.RefreshToken)
	if err != nil {
		m.logger.Warnw("Failed to refresh session tokens", "sessionId", id, "error", err.Error())
		if delErr := m.sessions.Delete(ctx, id); delErr != nil {
			m.logger.Warnw("Failed to delete stale session", "sessionId", id, "error", delErr.Error())
		}
		return nil, ErrNoSession
	}

	session.Tokens = *tokens
	if err := m.sessions.Save(ctx, session, m.ttl); err != nil {
		return nil, err
	}
	return session, nil
}

// isTokenValid reports whether the token has more than TokenRefreshBuffer left
func (m *SessionManager) isTokenValid(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return expiry.Sub(m.now()) > TokenRefreshBuffer
}

// SignOut signs the user out everywhere and removes the session. The session is removed
// even when the provider call fails.
func (m *SessionManager) SignOut(ctx context.Context, id string) error {
	session, err := m.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNoSession
	}

	signOutErr := m.provider.SignOut(ctx, session.Tokens.AccessToken)
	if err := m.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if signOutErr != nil {
		m.logger.Warnw("Provider sign out failed", "sessionId", id, "error", signOutErr.Error())
		return signOutErr
	}

	m.logger.Infow("User signed out", "username", session.Username, "sessionId", id)
	return nil
}

// ChangePassword changes the password of the session's user
func (m *SessionManager) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	session, err := m.Current(ctx, id)
	if err != nil {
		return err
	}
	return m.provider.ChangePassword(ctx, session.Tokens.AccessToken, oldPassword, newPassword)
}

// ForgotPassword starts a password reset for username
func (m *SessionManager) ForgotPassword(ctx context.Context, username string) (string, error) {
	return m.provider.ForgotPassword(ctx, username)
}

// IsAuthError reports whether err should be shown to the user as a rejected request rather
// than a server failure.
func IsAuthError(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrUserExists, ErrNotConfirmed, ErrInvalidCode,
		ErrInvalidPassword, ErrChallengeRequired, ErrNoSession,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
