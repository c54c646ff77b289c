package users

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// MemoryStore is an in-memory implementation of the UserStore interface
type MemoryStore struct {
	byID    map[string]core.User
	byEmail map[string]string
	clock   core.Clock
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store
func NewMemoryStore(clock core.Clock) ports.UserStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &MemoryStore{
		byID:    make(map[string]core.User),
		byEmail: make(map[string]string),
		clock:   clock,
	}
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	user := s.byID[id]
	return &user, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, upd core.UserUpdate) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if upd.Empty() {
		return &user, nil
	}

	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.EmailVerified != nil {
		user.EmailVerified = *upd.EmailVerified
	}
	user.UpdatedAt = s.clock.Now()
	s.byID[id] = user

	return &user, nil
}

func (s *MemoryStore) Create(ctx context.Context, user *core.User) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(user.Email)
	if _, taken := s.byEmail[key]; taken {
		return nil, core.ErrConflict
	}

	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if _, taken := s.byID[stored.ID]; taken {
		return nil, core.ErrConflict
	}
	now := s.clock.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = stored
	s.byEmail[key] = stored.ID

	return &stored, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
