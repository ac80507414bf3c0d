package store

import (
	"context"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/internal/domain"
)

// MemoryStore is an in-memory Store implementation for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	users    map[string]*domain.User
	keys     map[string]*domain.APIKeyRecord // keyed by key value
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		users:    make(map[string]*domain.User),
		keys:     make(map[string]*domain.APIKeyRecord),
	}
}

// PutSession adds or replaces a session.
func (s *MemoryStore) PutSession(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
}

// PutUser adds or replaces a user.
func (s *MemoryStore) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// PutAPIKey adds or replaces an API key record.
func (s *MemoryStore) PutAPIKey(k *domain.APIKeyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.keys[k.KeyValue] = &cp
}

// DeleteUser removes a user.
func (s *MemoryStore) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// RevokeAPIKey marks the key inactive. Revocation is permanent: the record
// keeps existing so the key value can never be reused by another owner.
func (s *MemoryStore) RevokeAPIKey(keyValue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyValue]
	if !ok {
		return false
	}
	now := time.Now()
	k.IsActive = false
	k.RevokedAt = &now
	return true
}

func (s *MemoryStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastActivity = time.Now()
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	cp.Permissions = append([]string(nil), u.Permissions...)
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			cp.Permissions = append([]string(nil), u.Permissions...)
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetAPIKeyByValue(ctx context.Context, keyValue string) (*domain.APIKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[keyValue]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *k
	cp.Permissions = append([]string(nil), k.Permissions...)
	return &cp, nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, keyID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == keyID {
			k.UsageCount += delta
			k.LastUsedAt = time.Now()
			return nil
		}
	}
	return ErrKeyNotFound
}

func (s *MemoryStore) GetSigningSecret(ctx context.Context, keyValue string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[keyValue]
	if !ok {
		return "", ErrKeyNotFound
	}
	return k.SecretForSigning, nil
}
