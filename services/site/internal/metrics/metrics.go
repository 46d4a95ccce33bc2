// Package metrics holds the site's Prometheus collectors on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "site"

// Revival outcomes.
const (
	OutcomeCacheHit  = "cache_hit"
	OutcomeFetched   = "fetched"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
	OutcomeWriteFail = "writeback_failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	CommentsPosted  prometheus.Counter
	Votes           *prometheus.CounterVec
	UserWrites      *prometheus.CounterVec
	Revival         *prometheus.CounterVec
	CatalogDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CommentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_posted_total",
			Help:      "Comments stored.",
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_votes_total",
			Help:      "Votes applied, by vote type.",
		}, []string{"vote"}),
		UserWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_state_writes_total",
			Help:      "User state writes, by operation and result.",
		}, []string{"op", "result"}),
		Revival: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revival_lookups_total",
			Help:      "Metadata revival lookups, by outcome.",
		}, []string{"outcome"}),
		CatalogDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_seconds",
			Help:      "External catalog fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CommentsPosted, m.Votes, m.UserWrites, m.Revival, m.CatalogDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) CommentPosted() {
	if m != nil {
		m.CommentsPosted.Inc()
	}
}

func (m *Metrics) Voted(vote string) {
	if m != nil {
		m.Votes.WithLabelValues(vote).Inc()
	}
}

func (m *Metrics) UserWrite(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UserWrites.WithLabelValues(op, result).Inc()
}

func (m *Metrics) RevivalOutcome(outcome string) {
	if m != nil {
		m.Revival.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveCatalog(seconds float64) {
	if m != nil {
		m.CatalogDuration.Observe(seconds)
	}
}
