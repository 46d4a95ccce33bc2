package userstate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/store"
)

func newReconciler(t *testing.T) (*Reconciler, string) {
	t.Helper()
	mem := store.NewMemoryStore()
	u, err := mem.CreateUser(context.Background(), domain.User{Username: "ann", Email: "ann@example.com"})
	require.NoError(t, err)
	r := NewReconciler(mem, nil)
	clock := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r, u.ID
}

func TestSetLibraryStatus(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	u, err := r.SetLibraryStatus(ctx, uid, "movie", float64(42), "watching", nil)
	require.NoError(t, err)
	entry := u.Library["movie_42"]
	assert.Equal(t, domain.StatusWatching, entry.Status)
	assert.Equal(t, "42", entry.MediaID)
	assert.True(t, entry.Bare())
	first := entry.UpdatedAt

	u, err = r.SetLibraryStatus(ctx, uid, "movie", "42", "watched", domain.MediaHint{"name": "Matrix", "poster_path": "/m.jpg", "vote_average": 8.2})
	require.NoError(t, err)
	entry = u.Library["movie_42"]
	assert.Equal(t, domain.StatusWatched, entry.Status)
	assert.Equal(t, "Matrix", entry.Title)
	assert.Equal(t, "/m.jpg", entry.Poster)
	require.NotNil(t, entry.Rating)
	assert.Equal(t, 8.2, *entry.Rating)
	assert.True(t, entry.UpdatedAt.After(first))

	u, err = r.SetLibraryStatus(ctx, uid, "movie", "42", "planned", nil)
	require.NoError(t, err)
	assert.Equal(t, "Matrix", u.Library["movie_42"].Title, "absent hint keeps metadata")

	u, err = r.SetLibraryStatus(ctx, uid, "movie", "42", "none", nil)
	require.NoError(t, err)
	_, present := u.Library["movie_42"]
	assert.False(t, present)

	u, err = r.Get(ctx, uid)
	require.NoError(t, err)
	_, present = u.Library["movie_42"]
	assert.False(t, present, "none deletes the key in storage")
}

func TestSetLibraryStatusErrors(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	_, err := r.SetLibraryStatus(ctx, "ghost", "movie", "1", "watching", nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = r.SetLibraryStatus(ctx, uid, "movie", "1", "binging", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = r.SetLibraryStatus(ctx, uid, "podcast", "1", "watching", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = r.SetLibraryStatus(ctx, "", "movie", "1", "watching", nil)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestRecordHistoryDedupPromotes(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	_, err := r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"id": float64(42), "title": "A"})
	require.NoError(t, err)
	_, err = r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"id": "7", "title": "B"})
	require.NoError(t, err)
	_, err = r.RecordHistory(ctx, uid, "tv", domain.MediaHint{"id": "42", "name": "Show"})
	require.NoError(t, err)
	u, err := r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"mediaId": "42", "title": "A again"})
	require.NoError(t, err)

	require.Len(t, u.History, 3)
	assert.Equal(t, "42", u.History[0].MediaID)
	assert.Equal(t, "movie", u.History[0].MediaType)
	assert.Equal(t, "A again", u.History[0].Title)
	assert.Equal(t, "tv", u.History[1].MediaType, "same id, other type is a different item")
	count := 0
	for _, h := range u.History {
		if h.MediaType == "movie" && h.MediaID == "42" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordHistoryCap(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	var u domain.User
	var err error
	for i := 0; i < 25; i++ {
		u, err = r.RecordHistory(ctx, uid, "", domain.MediaHint{"itemId": i, "media_type": "TV", "name": fmt.Sprint("show ", i)})
		require.NoError(t, err)
	}
	require.Len(t, u.History, domain.HistoryCap)
	assert.Equal(t, "24", u.History[0].MediaID)
	assert.Equal(t, "5", u.History[domain.HistoryCap-1].MediaID)
}

func TestRecordHistoryRequiresID(t *testing.T) {
	r, uid := newReconciler(t)
	_, err := r.RecordHistory(context.Background(), uid, "movie", domain.MediaHint{"title": "no id"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRemoveAndClearHistory(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		_, err := r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"id": id})
		require.NoError(t, err)
	}

	u, err := r.RemoveHistory(ctx, uid, float64(2))
	require.NoError(t, err)
	require.Len(t, u.History, 2)
	assert.Equal(t, "3", u.History[0].MediaID)
	assert.Equal(t, "1", u.History[1].MediaID)

	u, err = r.RemoveHistory(ctx, uid, "999")
	require.NoError(t, err, "absent id is a no-op")
	assert.Len(t, u.History, 2)

	u, err = r.ClearHistory(ctx, uid)
	require.NoError(t, err)
	assert.NotNil(t, u.History)
	assert.Empty(t, u.History)
}

func TestMergeProgressKeepsSiblings(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	_, err := r.MergeProgress(ctx, uid, "tv", "1399", map[string]any{"season": 1, "episode": 3})
	require.NoError(t, err)
	u, err := r.MergeProgress(ctx, uid, "tv", "1399", map[string]any{"time": 120})
	require.NoError(t, err)

	p := u.Progress["tv_1399"]
	assert.Equal(t, 1, p["season"])
	assert.Equal(t, 3, p["episode"])
	assert.Equal(t, 120, p["time"])
	assert.Contains(t, p, "updatedAt")

	_, err = r.MergeProgress(ctx, uid, "tv", "1399", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMergeSettingsShallow(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	_, err := r.MergeSettings(ctx, uid, map[string]any{"card_size": "large", "include_adult": false})
	require.NoError(t, err)
	u, err := r.MergeSettings(ctx, uid, map[string]any{"include_adult": true})
	require.NoError(t, err)
	assert.Equal(t, true, u.Settings["include_adult"])
	assert.Equal(t, "large", u.Settings["card_size"])

	stored, err := r.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, true, stored.Settings["include_adult"])
	assert.Empty(t, stored.History)

	_, err = r.MergeSettings(ctx, uid, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = r.MergeSettings(ctx, "", map[string]any{"x": 1})
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
	_, err = r.MergeSettings(ctx, "missing", map[string]any{"x": 1})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetRatingBounds(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	u, err := r.SetRating(ctx, uid, "movie", "42", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, u.Ratings["movie_42"])

	for _, bad := range []int{0, 11, -3} {
		_, err := r.SetRating(ctx, uid, "movie", "42", bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "rating %d", bad)
	}
}

func TestBackfillHealsBareEntriesOnce(t *testing.T) {
	r, uid := newReconciler(t)
	ctx := context.Background()

	_, err := r.SetLibraryStatus(ctx, uid, "movie", "42", "watching", nil)
	require.NoError(t, err)
	_, err = r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"id": "42"})
	require.NoError(t, err)
	before, err := r.RecordHistory(ctx, uid, "movie", domain.MediaHint{"id": "9", "title": "Other"})
	require.NoError(t, err)

	rating := 7.5
	u, changed, err := r.Backfill(ctx, uid, "movie", "42", domain.Metadata{Title: "Matrix", Poster: "/p.jpg", Rating: &rating})
	require.NoError(t, err)
	assert.True(t, changed)

	entry := u.Library["movie_42"]
	assert.Equal(t, "Matrix", entry.Title)
	assert.Equal(t, domain.StatusWatching, entry.Status)
	assert.Equal(t, before.Library["movie_42"].UpdatedAt, entry.UpdatedAt)

	require.Len(t, u.History, 2)
	assert.Equal(t, "9", u.History[0].MediaID, "order preserved")
	assert.Equal(t, "Matrix", u.History[1].Title)
	assert.Equal(t, before.History[1].ViewedAt, u.History[1].ViewedAt)

	_, changed, err = r.Backfill(ctx, uid, "movie", "42", domain.Metadata{Title: "Other title"})
	require.NoError(t, err)
	assert.False(t, changed, "healed entries are not rewritten")

	_, _, err = r.Backfill(ctx, uid, "movie", "42", domain.Metadata{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPushHistory(t *testing.T) {
	var hist []domain.HistoryEntry
	hist = PushHistory(hist, domain.HistoryEntry{MediaType: "movie", MediaID: "1"}, 2)
	hist = PushHistory(hist, domain.HistoryEntry{MediaType: "movie", MediaID: "2"}, 2)
	hist = PushHistory(hist, domain.HistoryEntry{MediaType: "movie", MediaID: "3"}, 2)
	require.Len(t, hist, 2)
	assert.Equal(t, "3", hist[0].MediaID)
	assert.Equal(t, "2", hist[1].MediaID)
}

func TestRecordHistoryDefaultsToMovie(t *testing.T) {
	r, uid := newReconciler(t)
	u, err := r.RecordHistory(context.Background(), uid, "", domain.MediaHint{"id": "5"})
	require.NoError(t, err)
	require.Len(t, u.History, 1)
	assert.Equal(t, domain.MediaMovie, u.History[0].MediaType)
}
