package revival

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/streamsite/services/site/internal/domain"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &RedisCache{Client: fake}

	_, ok, err := c.Get(ctx, "movie_603")
	require.NoError(t, err)
	assert.False(t, ok, "miss is not an error")

	rating := 8.2
	require.NoError(t, c.Set(ctx, "movie_603", domain.Metadata{Title: "The Matrix", Poster: "/m.jpg", Rating: &rating}))
	assert.Contains(t, fake.data, "site:revival:movie_603")
	assert.Equal(t, time.Duration(0), fake.ttls["site:revival:movie_603"])

	m, ok, err := c.Get(ctx, "movie_603")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "The Matrix", m.Title)
	require.NotNil(t, m.Rating)
	assert.Equal(t, 8.2, *m.Rating)

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}

func TestRedisCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &RedisCache{Client: fake}

	fake.data["site:revival:tv_1"] = "{not json"
	_, ok, err := c.Get(ctx, "tv_1")
	assert.Error(t, err)
	assert.False(t, ok)

	down := errors.New("connection refused")
	fake.err = down
	_, _, err = c.Get(ctx, "tv_1")
	assert.ErrorIs(t, err, down)
	assert.ErrorIs(t, c.Set(ctx, "tv_1", domain.Metadata{Title: "x"}), down)
	assert.ErrorIs(t, c.Ping(ctx), down)
}

func TestCoordinatorFallsBackWhenRedisFails(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	cat := newFakeCatalog(map[string]string{"movie_1": "One"})
	coord := NewCoordinator(cat, nil, Options{Cache: &RedisCache{Client: fake}})

	cards := []Card{{MediaType: "movie", MediaID: "1"}}
	assert.Equal(t, 1, coord.NewPass().Revive(context.Background(), "", cards))
	assert.Equal(t, "One", cards[0].Title)
	assert.Equal(t, 1, cat.count("movie_1"))
}
