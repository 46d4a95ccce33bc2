// Package revival heals library and history entries that were stored without
// display metadata. A render collects every bare entry, fetches each distinct
// item once from the catalog, patches every place it appears and writes the
// result back so later renders find it complete.
package revival

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/metrics"
)

const (
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 10 * time.Second
)

// Catalog resolves canonical metadata for one media item.
type Catalog interface {
	FetchMetadata(ctx context.Context, mediaType, mediaID string) (domain.Metadata, error)
}

// Backfiller persists fetched metadata into a user's bare entries.
type Backfiller interface {
	Backfill(ctx context.Context, userID, mediaType, mediaID string, meta domain.Metadata) (domain.User, bool, error)
}

type Options struct {
	Cache       Cache
	Concurrency int
	// FetchTimeout bounds one shared catalog request.
	FetchTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

type Coordinator struct {
	catalog  Catalog
	users    Backfiller
	cache    Cache
	limit    int
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	inflight singleflight.Group
}

func NewCoordinator(catalog Catalog, users Backfiller, opts Options) *Coordinator {
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Coordinator{
		catalog: catalog,
		users:   users,
		cache:   cache,
		limit:   limit,
		timeout: timeout,
		log:     logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Pass scopes deduplication to one render. It is not safe for concurrent use.
type Pass struct {
	c        *Coordinator
	resolved map[string]domain.Metadata
	failed   map[string]bool
	written  map[string]bool
}

func (c *Coordinator) NewPass() *Pass {
	return &Pass{
		c:        c,
		resolved: make(map[string]domain.Metadata),
		failed:   make(map[string]bool),
		written:  make(map[string]bool),
	}
}

// Revive patches every bare card in sections in place and writes healed
// metadata back for userID once per item. It returns the number of cards
// patched. Catalog and write-back failures are logged, never returned.
func (p *Pass) Revive(ctx context.Context, userID string, sections ...[]Card) int {
	type item struct{ mediaType, mediaID string }
	var pending []item
	seen := make(map[string]bool)
	for _, cards := range sections {
		for _, card := range cards {
			if !card.Bare() {
				continue
			}
			key := card.Key()
			if seen[key] || p.failed[key] {
				continue
			}
			seen[key] = true
			if _, ok := p.resolved[key]; !ok {
				pending = append(pending, item{card.MediaType, card.MediaID})
			}
		}
	}

	if len(pending) > 0 {
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(p.c.limit)
		for _, it := range pending {
			it := it
			g.Go(func() error {
				meta, ok := p.c.lookup(ctx, it.mediaType, it.mediaID)
				key := domain.CompoundKey(it.mediaType, it.mediaID)
				mu.Lock()
				defer mu.Unlock()
				if ok {
					p.resolved[key] = meta
				} else {
					p.failed[key] = true
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	patched := 0
	for _, cards := range sections {
		for i := range cards {
			if !cards[i].Bare() {
				continue
			}
			if meta, ok := p.resolved[cards[i].Key()]; ok {
				cards[i].Fill(meta)
				patched++
			}
		}
	}

	if userID == "" {
		return patched
	}
	for key := range seen {
		meta, ok := p.resolved[key]
		if !ok || p.written[key] {
			continue
		}
		p.written[key] = true
		t, id, _ := domain.SplitCompoundKey(key)
		if _, _, err := p.c.users.Backfill(ctx, userID, t, id, meta); err != nil {
			p.c.metrics.RevivalOutcome(metrics.OutcomeWriteFail)
			p.c.log.Warn("revival: write-back failed", logging.RequestIDField(ctx),
				zap.String("user_id", userID), zap.String("key", key), zap.Error(err))
		}
	}
	return patched
}

// ReviveEntry heals one item for one user outside a render. It reports
// whether anything was written.
func (c *Coordinator) ReviveEntry(ctx context.Context, userID, mediaType, mediaID string) (bool, error) {
	t, id, err := domain.ValidateMediaKey(mediaType, mediaID)
	if err != nil {
		return false, err
	}
	meta, ok := c.lookup(ctx, t, id)
	if !ok {
		return false, nil
	}
	_, changed, err := c.users.Backfill(ctx, userID, t, id, meta)
	if err != nil {
		c.metrics.RevivalOutcome(metrics.OutcomeWriteFail)
		return false, err
	}
	return changed, nil
}

// lookup consults the cache, then the catalog. Concurrent lookups of the same
// key share one catalog request, which runs detached from the caller's
// cancellation under its own timeout.
func (c *Coordinator) lookup(ctx context.Context, mediaType, mediaID string) (domain.Metadata, bool) {
	key := domain.CompoundKey(mediaType, mediaID)
	if m, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("revival: cache read failed", logging.RequestIDField(ctx), zap.String("key", key), zap.Error(err))
	} else if ok {
		c.metrics.RevivalOutcome(metrics.OutcomeCacheHit)
		return m, true
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		start := time.Now()
		m, err := c.catalog.FetchMetadata(fctx, mediaType, mediaID)
		c.metrics.ObserveCatalog(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if m.Title == "" {
			return nil, fmt.Errorf("%s: %w: record has no title", key, domain.ErrNotFound)
		}
		if err := c.cache.Set(fctx, key, m); err != nil {
			c.log.Warn("revival: cache write failed", logging.RequestIDField(ctx), zap.String("key", key), zap.Error(err))
		}
		return m, nil
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, domain.ErrNotFound) {
			outcome = metrics.OutcomeNotFound
		}
		c.metrics.RevivalOutcome(outcome)
		c.log.Warn("revival: fetch failed", logging.RequestIDField(ctx), zap.String("key", key), zap.Error(err))
		return domain.Metadata{}, false
	}
	c.metrics.RevivalOutcome(metrics.OutcomeFetched)
	return v.(domain.Metadata), true
}
