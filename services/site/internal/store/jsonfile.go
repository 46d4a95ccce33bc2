package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/example/streamsite/services/site/internal/domain"
)

// JSONFileStore keeps every record in one JSON document on disk, rewritten
// atomically after each mutation. Reads are served from memory. A mutation
// whose rewrite fails is rolled back in memory before the error is returned.
type JSONFileStore struct {
	mem  *MemoryStore
	path string
	wmu  sync.Mutex // serializes mutate+flush
}

type fileDocument struct {
	Users    []fileUser       `json:"users"`
	Comments []domain.Comment `json:"comments"`
}

// fileUser persists the password hash that domain.User hides from JSON.
type fileUser struct {
	domain.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// OpenJSONFile loads path, creating an empty document when it does not exist.
func OpenJSONFile(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("jsonfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: %w", err)
	}
	s := &JSONFileStore{mem: NewMemoryStore(), path: path}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, s.flush()
	case err != nil:
		return nil, fmt.Errorf("jsonfile: read %s: %w", path, err)
	}
	if len(b) == 0 {
		return s, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", path, err)
	}
	for _, fu := range doc.Users {
		u := fu.User
		u.PasswordHash = fu.PasswordHash
		u.EnsureMaps()
		s.mem.users[u.ID] = u
	}
	for _, c := range doc.Comments {
		s.mem.comments[c.ID] = c
	}
	return s, nil
}

func (s *JSONFileStore) FindByMediaKey(ctx context.Context, mediaType, mediaID string) ([]domain.Comment, error) {
	return s.mem.FindByMediaKey(ctx, mediaType, mediaID)
}

func (s *JSONFileStore) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	return s.mem.GetComment(ctx, id)
}

func (s *JSONFileStore) Insert(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	out, err := s.mem.Insert(ctx, c)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.flush(); err != nil {
		s.mem.dropComment(out.ID)
		return domain.Comment{}, err
	}
	return out, nil
}

func (s *JSONFileStore) UpdateVotes(ctx context.Context, id string, likes, dislikes []string) (domain.Comment, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	prev, err := s.mem.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	out, err := s.mem.UpdateVotes(ctx, id, likes, dislikes)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.flush(); err != nil {
		s.mem.putComment(prev)
		return domain.Comment{}, err
	}
	return out, nil
}

func (s *JSONFileStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.mem.GetUser(ctx, id)
}

func (s *JSONFileStore) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.mem.FindUserByEmail(ctx, email)
}

func (s *JSONFileStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	out, err := s.mem.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.flush(); err != nil {
		s.mem.dropUser(out.ID)
		return domain.User{}, err
	}
	return out, nil
}

func (s *JSONFileStore) SaveUser(ctx context.Context, id string, p UserPatch) (domain.User, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	prev, err := s.mem.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	out, err := s.mem.SaveUser(ctx, id, p)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.flush(); err != nil {
		s.mem.putUser(prev)
		return domain.User{}, err
	}
	return out, nil
}

func (s *JSONFileStore) Ping(context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *JSONFileStore) Close() error { return nil }

// flush writes a sorted snapshot to a temp file and renames it over path.
func (s *JSONFileStore) flush() error {
	s.mem.mu.RLock()
	doc := fileDocument{
		Users:    make([]fileUser, 0, len(s.mem.users)),
		Comments: make([]domain.Comment, 0, len(s.mem.comments)),
	}
	for _, u := range s.mem.users {
		doc.Users = append(doc.Users, fileUser{User: u, PasswordHash: u.PasswordHash})
	}
	for _, c := range s.mem.comments {
		doc.Comments = append(doc.Comments, c)
	}
	s.mem.mu.RUnlock()

	sort.Slice(doc.Users, func(i, j int) bool { return doc.Users[i].ID < doc.Users[j].ID })
	sort.Slice(doc.Comments, func(i, j int) bool {
		if !doc.Comments[i].CreatedAt.Equal(doc.Comments[j].CreatedAt) {
			return doc.Comments[i].CreatedAt.Before(doc.Comments[j].CreatedAt)
		}
		return doc.Comments[i].ID < doc.Comments[j].ID
	})

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".site-*.json")
	if err != nil {
		return fmt.Errorf("%w: jsonfile: %v", domain.ErrUpstreamUnavailable, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: jsonfile: %v", domain.ErrUpstreamUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: jsonfile: %v", domain.ErrUpstreamUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: jsonfile: %v", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
