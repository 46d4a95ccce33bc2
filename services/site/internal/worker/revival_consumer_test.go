package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/services/site/internal/domain"
)

type fakeReviver struct {
	calls []string
	err   error
}

func (f *fakeReviver) ReviveEntry(_ context.Context, userID, mediaType, mediaID string) (bool, error) {
	f.calls = append(f.calls, userID+":"+domain.CompoundKey(mediaType, mediaID))
	return f.err == nil, f.err
}

func payload(t *testing.T, userID string, props map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(events.Event{EventID: "e1", EventName: "revival_requested", UserID: userID, Properties: props})
	require.NoError(t, err)
	return b
}

func TestHandleRevival(t *testing.T) {
	r := &fakeReviver{}
	retry, err := HandleRevival(context.Background(), r, payload(t, "u1", RevivalRequest("movie", "42")))
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, []string{"u1:movie_42"}, r.calls)
}

func TestHandleRevivalNumericID(t *testing.T) {
	r := &fakeReviver{}
	_, err := HandleRevival(context.Background(), r, payload(t, "u1", map[string]any{"media_type": "tv", "media_id": 1399}))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1:tv_1399"}, r.calls)
}

func TestHandleRevivalPermanentErrors(t *testing.T) {
	r := &fakeReviver{}
	retry, err := HandleRevival(context.Background(), r, []byte("{not json"))
	assert.Error(t, err)
	assert.False(t, retry)

	retry, err = HandleRevival(context.Background(), r, payload(t, "", RevivalRequest("movie", "1")))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.False(t, retry)
	assert.Empty(t, r.calls)

	r.err = domain.ErrNotFound
	retry, err = HandleRevival(context.Background(), r, payload(t, "ghost", RevivalRequest("movie", "1")))
	assert.Error(t, err)
	assert.False(t, retry)
}

func TestHandleRevivalRetriesOutages(t *testing.T) {
	r := &fakeReviver{err: domain.ErrUpstreamUnavailable}
	retry, err := HandleRevival(context.Background(), r, payload(t, "u1", RevivalRequest("movie", "1")))
	assert.Error(t, err)
	assert.True(t, retry)
}

func TestStartRevivalConsumerRequiresJetStream(t *testing.T) {
	err := StartRevivalConsumer(context.Background(), nil, &fakeReviver{}, nil)
	assert.Error(t, err)
}
