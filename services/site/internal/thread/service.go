package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/store"
)

// Service reads threads and applies posts and votes.
type Service struct {
	comments store.CommentStore
	users    store.UserStore
	events   *events.Publisher
	log      *zap.Logger
	clock    *monotonicClock
}

type Option func(*Service)

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.clock = newMonotonicClock(now) }
}

// WithEvents publishes comment events through p.
func WithEvents(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(comments store.CommentStore, users store.UserStore, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		comments: comments,
		users:    users,
		log:      logging.OrNop(log),
		clock:    newMonotonicClock(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListThread returns the reply trees of one media thread. An empty thread is
// an empty slice. A store failure yields no tree at all.
func (s *Service) ListThread(ctx context.Context, mediaType string, mediaID any) ([]*Node, error) {
	records, err := s.load(ctx, mediaType, mediaID)
	if err != nil {
		return nil, err
	}
	return BuildTree(records), nil
}

// ListFlat returns the thread's records oldest first, for clients that build
// the tree themselves.
func (s *Service) ListFlat(ctx context.Context, mediaType string, mediaID any) ([]CommentView, error) {
	records, err := s.load(ctx, mediaType, mediaID)
	if err != nil {
		return nil, err
	}
	return Flatten(records), nil
}

func (s *Service) load(ctx context.Context, mediaType string, mediaID any) ([]domain.Comment, error) {
	t, id, err := domain.ValidateMediaKey(mediaType, mediaID)
	if err != nil {
		return nil, err
	}
	records, err := s.comments.FindByMediaKey(ctx, t, id)
	if err != nil {
		return nil, upstream("load thread", err)
	}
	return records, nil
}

type PostInput struct {
	AuthorID  string
	MediaType string
	MediaID   any
	Text      string
	IsSpoiler bool
	ParentID  string
}

// PostComment stores a new comment. Text is trimmed and cut to
// domain.MaxCommentRunes; a parent must exist in the same thread.
func (s *Service) PostComment(ctx context.Context, in PostInput) (domain.Comment, error) {
	if strings.TrimSpace(in.AuthorID) == "" {
		return domain.Comment{}, domain.ErrUnauthenticated
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Comment{}, fmt.Errorf("%w: comment text is empty", domain.ErrInvalidInput)
	}
	text = truncateRunes(text, domain.MaxCommentRunes)

	mediaType, mediaID, err := domain.ValidateMediaKey(in.MediaType, in.MediaID)
	if err != nil {
		return domain.Comment{}, err
	}

	author, err := s.users.GetUser(ctx, in.AuthorID)
	if err != nil {
		return domain.Comment{}, passNotFound("load author", err)
	}

	var parentID *string
	if p := strings.TrimSpace(in.ParentID); p != "" {
		parent, err := s.comments.GetComment(ctx, p)
		if err != nil {
			return domain.Comment{}, passNotFound("load parent", err)
		}
		if parent.MediaType != mediaType || parent.MediaID != mediaID {
			return domain.Comment{}, fmt.Errorf("parent %s is not in thread %s: %w",
				p, domain.CompoundKey(mediaType, mediaID), domain.ErrNotFound)
		}
		parentID = &p
	}

	c := domain.Comment{
		AuthorID:   author.ID,
		AuthorName: author.Username,
		MediaType:  mediaType,
		MediaID:    mediaID,
		Text:       text,
		IsSpoiler:  in.IsSpoiler,
		ParentID:   parentID,
		Likes:      []string{},
		Dislikes:   []string{},
		CreatedAt:  s.clock.Next(),
	}
	if r, ok := author.Rating(mediaType, mediaID); ok {
		c.AuthorRating = &r
	}

	created, err := s.comments.Insert(ctx, c)
	if err != nil {
		return domain.Comment{}, upstream("insert comment", err)
	}

	s.log.Debug("comment posted", logging.RequestIDField(ctx),
		zap.String("comment_id", created.ID), zap.String("thread", domain.CompoundKey(mediaType, mediaID)))
	s.events.Publish(events.SubjectCommentCreated, "comment_created", created.AuthorID, map[string]any{
		"comment_id": created.ID,
		"media_type": created.MediaType,
		"media_id":   created.MediaID,
		"is_reply":   created.ParentID != nil,
	})
	return created, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

// passNotFound keeps NotFound and Unavailable as they are and treats anything
// else from the store as an outage.
func passNotFound(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return upstream(op, err)
}

func upstream(op string, err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrUpstreamUnavailable, err)
}
