// Package store persists comments and user records. Backends are swappable;
// the engines only see the CommentStore and UserStore contracts.
package store

import (
	"context"
	"time"

	"github.com/example/streamsite/services/site/internal/domain"
)

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	// FindByMediaKey returns every comment of one thread, in no particular order.
	FindByMediaKey(ctx context.Context, mediaType, mediaID string) ([]domain.Comment, error)
	GetComment(ctx context.Context, id string) (domain.Comment, error)
	Insert(ctx context.Context, c domain.Comment) (domain.Comment, error)
	UpdateVotes(ctx context.Context, id string, likes, dislikes []string) (domain.Comment, error)
}

// UserStore defines the contract for user persistence.
type UserStore interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	// CreateUser fails with domain.ErrConflict when the email or username is taken.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	// SaveUser writes only the fields set in p and returns the stored record.
	SaveUser(ctx context.Context, id string, p UserPatch) (domain.User, error)
}

// Store is a complete backend.
type Store interface {
	CommentStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// UserPatch carries the state fields one operation touched. Nil fields are left as stored.
type UserPatch struct {
	Library  *domain.Library
	History  *[]domain.HistoryEntry
	Progress *map[string]domain.Progress
	Ratings  *map[string]int
	Settings *domain.Settings
}

func (p UserPatch) Empty() bool {
	return p.Library == nil && p.History == nil && p.Progress == nil && p.Ratings == nil && p.Settings == nil
}

// Apply copies the set fields onto u and stamps UpdatedAt.
func (p UserPatch) Apply(u *domain.User, now time.Time) {
	if p.Library != nil {
		u.Library = *p.Library
	}
	if p.History != nil {
		u.History = *p.History
	}
	if p.Progress != nil {
		u.Progress = *p.Progress
	}
	if p.Ratings != nil {
		u.Ratings = *p.Ratings
	}
	if p.Settings != nil {
		u.Settings = *p.Settings
	}
	u.UpdatedAt = now
}
