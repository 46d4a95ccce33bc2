package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounters(t *testing.T) {
	m := New()
	m.CommentPosted()
	m.Voted("like")
	m.Voted("like")
	m.UserWrite("rate", nil)
	m.UserWrite("rate", errors.New("boom"))
	m.RevivalOutcome(OutcomeFetched)

	body := scrape(t, m)
	for _, want := range []string{
		"site_comments_posted_total 1",
		`site_comment_votes_total{vote="like"} 2`,
		`site_user_state_writes_total{op="rate",result="error"} 1`,
		`site_user_state_writes_total{op="rate",result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CommentPosted()
	m.Voted("like")
	m.UserWrite("x", nil)
	m.RevivalOutcome(OutcomeFailed)
	m.ObserveCatalog(0.1)
}

func TestHandlerExposesSiteMetrics(t *testing.T) {
	m := New()
	m.RevivalOutcome(OutcomeCacheHit)

	body := scrape(t, m)
	if !strings.Contains(body, `site_revival_lookups_total{outcome="cache_hit"} 1`) {
		t.Fatalf("missing revival counter in:\n%s", body)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
