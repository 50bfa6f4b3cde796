package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

var errClosed = errors.New("memory store closed")

type SessionsStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time
}

var _ store.SessionsStore = (*SessionsStore)(nil)

func NewSessionsStore() *SessionsStore {
	return &SessionsStore{sessions: make(map[string]domain.Session), now: time.Now}
}

func (s *SessionsStore) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.sessions[id] = domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (s *SessionsStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil || !sess.ExpiresAt.After(s.now()) {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *SessionsStore) RevokeSession(_ context.Context, sessionID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	sess.RevokedAt = &when
	s.sessions[sessionID] = sess
	return nil
}

type CredentialsStore struct {
	mu    sync.Mutex
	creds map[string]domain.Credential
}

var _ store.CredentialsStore = (*CredentialsStore)(nil)

func NewCredentialsStore() *CredentialsStore {
	return &CredentialsStore{creds: make(map[string]domain.Credential)}
}

func (s *CredentialsStore) CreateCredential(_ context.Context, c domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(c.Username)
	if _, ok := s.creds[key]; ok {
		return domain.ErrUsernameTaken
	}
	s.creds[key] = c
	return nil
}

func (s *CredentialsStore) GetCredential(_ context.Context, username string) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return domain.Credential{}, domain.ErrNotFound
	}
	return c, nil
}
