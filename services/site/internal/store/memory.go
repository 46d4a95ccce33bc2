package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/streamsite/services/site/internal/domain"
)

// MemoryStore is a development-only in-memory implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[string]domain.Comment // id -> comment
	users    map[string]domain.User    // id -> user
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments: make(map[string]domain.Comment),
		users:    make(map[string]domain.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FindByMediaKey(_ context.Context, mediaType, mediaID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Comment{}
	for _, c := range s.comments {
		if c.MediaType == mediaType && c.MediaID == mediaID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) GetComment(_ context.Context, id string) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.comments[c.ID]; exists {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", c.ID, domain.ErrConflict)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c = c.Clone()
	s.comments[c.ID] = c
	return c.Clone(), nil
}

func (s *MemoryStore) UpdateVotes(_ context.Context, id string, likes, dislikes []string) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	c.Likes = append([]string{}, likes...)
	c.Dislikes = append([]string{}, dislikes...)
	s.comments[id] = c
	return c.Clone(), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u.Clone(), nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return domain.User{}, fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	u.EnsureMaps()
	s.users[u.ID] = u.Clone()
	return u.Clone(), nil
}

func (s *MemoryStore) SaveUser(_ context.Context, id string, p UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	p.Apply(&u, s.now())
	u = u.Clone()
	s.users[id] = u
	return u.Clone(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

// Rollback helpers for JSONFileStore.

func (s *MemoryStore) putComment(c domain.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c.Clone()
}

func (s *MemoryStore) dropComment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, id)
}

func (s *MemoryStore) putUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
}

func (s *MemoryStore) dropUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}
