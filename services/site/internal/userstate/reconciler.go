// Package userstate applies library, history, progress, rating and settings
// updates to user records.
//
// Every write is a read-modify-write through store.UserStore with no version
// check. Two concurrent writes to the same field of the same user race and
// the later save wins.
package userstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/store"
)

const (
	MinRating = 1
	MaxRating = 10
)

type Reconciler struct {
	users store.UserStore
	log   *zap.Logger
	now   func() time.Time
}

func NewReconciler(users store.UserStore, log *zap.Logger) *Reconciler {
	return &Reconciler{users: users, log: logging.OrNop(log), now: func() time.Time { return time.Now().UTC() }}
}

func (r *Reconciler) Get(ctx context.Context, userID string) (domain.User, error) {
	return r.load(ctx, userID)
}

// SetLibraryStatus upserts the library entry for a media item. StatusNone
// deletes it. Hint fields that are present overwrite the stored display
// metadata; absent ones keep it.
func (r *Reconciler) SetLibraryStatus(ctx context.Context, userID, mediaType string, mediaID any, status string, hint domain.MediaHint) (domain.User, error) {
	t, id, err := domain.ValidateMediaKey(mediaType, mediaID)
	if err != nil {
		return domain.User{}, err
	}
	st, err := domain.ParseLibraryStatus(status)
	if err != nil {
		return domain.User{}, err
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	key := domain.CompoundKey(t, id)
	lib := u.Library
	if st == domain.StatusNone {
		delete(lib, key)
	} else {
		entry := lib[key]
		entry.Status = st
		entry.MediaType = t
		entry.MediaID = id
		entry.UpdatedAt = r.now()
		mergeMetadata(&entry.Title, &entry.Poster, &entry.Rating, hint.Metadata())
		lib[key] = entry
	}
	return r.save(ctx, userID, store.UserPatch{Library: &lib})
}

// RecordHistory puts the hinted item at the front of the user's history,
// dropping any earlier entry for the same item and anything past HistoryCap.
// An empty mediaType is taken from the hint, then defaults to movie.
func (r *Reconciler) RecordHistory(ctx context.Context, userID, mediaType string, hint domain.MediaHint) (domain.User, error) {
	id, ok := hint.ID()
	if !ok {
		return domain.User{}, fmt.Errorf("%w: history item has no id", domain.ErrInvalidInput)
	}
	if mediaType == "" {
		mediaType = hint.Type()
	}
	if mediaType == "" {
		mediaType = domain.MediaMovie
	}
	t, err := domain.ParseMediaType(mediaType)
	if err != nil {
		return domain.User{}, err
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	meta := hint.Metadata()
	entry := domain.HistoryEntry{
		MediaID:   id,
		MediaType: t,
		Title:     meta.Title,
		Poster:    meta.Poster,
		Rating:    meta.Rating,
		ViewedAt:  r.now(),
	}
	hist := PushHistory(u.History, entry, domain.HistoryCap)
	return r.save(ctx, userID, store.UserPatch{History: &hist})
}

// PushHistory returns history with e at index 0, no other entry for the same
// (type, id), and at most limit entries.
func PushHistory(history []domain.HistoryEntry, e domain.HistoryEntry, limit int) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(history)+1)
	out = append(out, e)
	for _, h := range history {
		if h.MediaType == e.MediaType && h.MediaID == e.MediaID {
			continue
		}
		out = append(out, h)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RemoveHistory drops every entry with mediaID regardless of type. Removing an
// absent id is not an error.
func (r *Reconciler) RemoveHistory(ctx context.Context, userID string, mediaID any) (domain.User, error) {
	id, ok := domain.NormalizeMediaID(mediaID)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	hist := make([]domain.HistoryEntry, 0, len(u.History))
	for _, h := range u.History {
		if h.MediaID != id {
			hist = append(hist, h)
		}
	}
	return r.save(ctx, userID, store.UserPatch{History: &hist})
}

func (r *Reconciler) ClearHistory(ctx context.Context, userID string) (domain.User, error) {
	if _, err := r.load(ctx, userID); err != nil {
		return domain.User{}, err
	}
	hist := []domain.HistoryEntry{}
	return r.save(ctx, userID, store.UserPatch{History: &hist})
}

// MergeProgress shallow-merges partial onto the stored progress of one item
// and stamps updatedAt in unix milliseconds.
func (r *Reconciler) MergeProgress(ctx context.Context, userID, mediaType string, mediaID any, partial map[string]any) (domain.User, error) {
	t, id, err := domain.ValidateMediaKey(mediaType, mediaID)
	if err != nil {
		return domain.User{}, err
	}
	if partial == nil {
		return domain.User{}, fmt.Errorf("%w: progress is required", domain.ErrInvalidInput)
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	key := domain.CompoundKey(t, id)
	progress := u.Progress
	merged := progress[key]
	if merged == nil {
		merged = domain.Progress{}
	}
	for k, v := range partial {
		merged[k] = v
	}
	merged["updatedAt"] = r.now().UnixMilli()
	progress[key] = merged
	return r.save(ctx, userID, store.UserPatch{Progress: &progress})
}

// MergeSettings shallow-merges partial onto the user's stored settings.
// Keys absent from partial keep their stored value.
func (r *Reconciler) MergeSettings(ctx context.Context, userID string, partial map[string]any) (domain.User, error) {
	if partial == nil {
		return domain.User{}, fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	settings := u.Settings
	for k, v := range partial {
		settings[k] = v
	}
	return r.save(ctx, userID, store.UserPatch{Settings: &settings})
}

// SetRating stores an integer rating between MinRating and MaxRating.
func (r *Reconciler) SetRating(ctx context.Context, userID, mediaType string, mediaID any, rating int) (domain.User, error) {
	t, id, err := domain.ValidateMediaKey(mediaType, mediaID)
	if err != nil {
		return domain.User{}, err
	}
	if rating < MinRating || rating > MaxRating {
		return domain.User{}, fmt.Errorf("%w: rating %d outside %d..%d", domain.ErrInvalidInput, rating, MinRating, MaxRating)
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	ratings := u.Ratings
	ratings[domain.CompoundKey(t, id)] = rating
	return r.save(ctx, userID, store.UserPatch{Ratings: &ratings})
}

// Backfill writes fetched display metadata into the library entry and every
// history entry for one item that still lack a title. Status, order and
// timestamps are untouched. It saves nothing when no entry needed healing.
func (r *Reconciler) Backfill(ctx context.Context, userID, mediaType, mediaID string, meta domain.Metadata) (domain.User, bool, error) {
	if strings.TrimSpace(meta.Title) == "" {
		return domain.User{}, false, fmt.Errorf("%w: backfill without title", domain.ErrInvalidInput)
	}
	u, err := r.load(ctx, userID)
	if err != nil {
		return domain.User{}, false, err
	}

	var patch store.UserPatch
	key := domain.CompoundKey(mediaType, mediaID)
	if entry, ok := u.Library[key]; ok && entry.Bare() {
		fillMetadata(&entry.Title, &entry.Poster, &entry.Rating, meta)
		lib := u.Library
		lib[key] = entry
		patch.Library = &lib
	}

	hist := u.History
	healed := false
	for i := range hist {
		h := &hist[i]
		if h.MediaType == mediaType && h.MediaID == mediaID && h.Bare() {
			fillMetadata(&h.Title, &h.Poster, &h.Rating, meta)
			healed = true
		}
	}
	if healed {
		patch.History = &hist
	}

	if patch.Empty() {
		return u, false, nil
	}
	saved, err := r.users.SaveUser(ctx, userID, patch)
	if err != nil {
		return domain.User{}, false, storeErr("backfill", err)
	}
	r.log.Debug("entry backfilled", logging.RequestIDField(ctx),
		zap.String("user_id", userID), zap.String("key", key), zap.Bool("history", healed))
	return saved, true, nil
}

func (r *Reconciler) load(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, storeErr("load user", err)
	}
	u.EnsureMaps()
	return u, nil
}

func (r *Reconciler) save(ctx context.Context, userID string, p store.UserPatch) (domain.User, error) {
	u, err := r.users.SaveUser(ctx, userID, p)
	if err != nil {
		return domain.User{}, storeErr("save user", err)
	}
	return u, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrUpstreamUnavailable, err)
}

// mergeMetadata overwrites fields present in meta.
func mergeMetadata(title, poster *string, rating **float64, meta domain.Metadata) {
	if meta.Title != "" {
		*title = meta.Title
	}
	if meta.Poster != "" {
		*poster = meta.Poster
	}
	if meta.Rating != nil {
		v := *meta.Rating
		*rating = &v
	}
}

// fillMetadata sets only the fields that are still empty.
func fillMetadata(title, poster *string, rating **float64, meta domain.Metadata) {
	if strings.TrimSpace(*title) == "" {
		*title = meta.Title
	}
	if *poster == "" {
		*poster = meta.Poster
	}
	if *rating == nil && meta.Rating != nil {
		v := *meta.Rating
		*rating = &v
	}
}
