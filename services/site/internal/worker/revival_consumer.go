// Package worker runs background consumers of site events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/domain"
)

const revivalDurable = "site_revival"

// Reviver heals one user's entry for one media item.
type Reviver interface {
	ReviveEntry(ctx context.Context, userID, mediaType, mediaID string) (bool, error)
}

// RevivalRequest builds the properties of a site.revival.requested event.
func RevivalRequest(mediaType, mediaID string) map[string]any {
	return map[string]any{"media_type": mediaType, "media_id": mediaID}
}

// HandleRevival processes one site.revival.requested payload. A nil error or
// a permanent error means the message should be acked; a retryable error
// means nak.
func HandleRevival(ctx context.Context, r Reviver, data []byte) (retry bool, err error) {
	ev, err := events.Decode(data)
	if err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	mediaType, _ := ev.Properties["media_type"].(string)
	mediaID, _ := domain.NormalizeMediaID(ev.Properties["media_id"])
	if ev.UserID == "" || mediaType == "" || mediaID == "" {
		return false, fmt.Errorf("%w: incomplete revival request %s", domain.ErrInvalidInput, ev.EventID)
	}
	ctx = logging.WithRequestID(ctx, ev.EventID)
	if _, err := r.ReviveEntry(ctx, ev.UserID, mediaType, mediaID); err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return true, err
		}
		return false, err
	}
	return false, nil
}

// StartRevivalConsumer pulls site.revival.requested in batches until ctx is
// done. It returns once the subscription is set up.
func StartRevivalConsumer(ctx context.Context, js nats.JetStreamContext, r Reviver, log *zap.Logger) error {
	log = logging.OrNop(log)
	if js == nil {
		return errors.New("revival_consumer: jetstream not configured")
	}
	sub, err := js.PullSubscribe(events.SubjectRevivalRequested, revivalDurable)
	if err != nil {
		return fmt.Errorf("revival_consumer: subscribe: %w", err)
	}

	batchSize := envInt("WORKER_BATCH_SIZE", 20)
	batchWait := time.Duration(envInt("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond

	go func() {
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(batchSize, nats.MaxWait(batchWait))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Warn("revival_consumer: fetch", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, m := range msgs {
				retry, err := HandleRevival(ctx, r, m.Data)
				switch {
				case err == nil:
					if err := m.Ack(); err != nil {
						log.Warn("revival_consumer: ack", zap.Error(err))
					}
				case retry:
					log.Warn("revival_consumer: will retry", zap.Error(err))
					if err := m.NakWithDelay(5 * time.Second); err != nil {
						log.Warn("revival_consumer: nak", zap.Error(err))
					}
				default:
					log.Info("revival_consumer: dropped request", zap.Error(err))
					if err := m.Term(); err != nil {
						log.Warn("revival_consumer: term", zap.Error(err))
					}
				}
			}
		}
	}()
	return nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
