// Package tmdb fetches canonical media records from The Movie Database.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/streamsite/services/site/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "en-US"
	// DefaultRPS matches TMDB's published budget of 40 requests per 10 seconds.
	DefaultRPS = 4.0
)

type Options struct {
	BaseURL  string
	APIKey   string
	Language string
	RPS      float64
	Burst    int
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	apiKey   string
	language string
	limiter  *rate.Limiter
}

func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     strings.TrimSpace(opts.APIKey),
		language:   lang,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Record is the subset of a TMDB movie or tv payload the site keeps.
type Record struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Overview     string  `json:"overview"`
}

// Metadata maps a record to the display fields revival backfills. Movies
// carry title, tv shows carry name.
func (r Record) Metadata() domain.Metadata {
	title := r.Title
	if title == "" {
		title = r.Name
	}
	m := domain.Metadata{Title: title, Poster: r.PosterPath}
	if r.VoteAverage > 0 {
		v := r.VoteAverage
		m.Rating = &v
	}
	return m
}

// FetchByID loads one movie or tv record. A 404 wraps domain.ErrNotFound;
// every other failure wraps domain.ErrUpstreamUnavailable.
func (c *Client) FetchByID(ctx context.Context, mediaType, mediaID string) (Record, error) {
	t, err := domain.ParseMediaType(mediaType)
	if err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(mediaID) == "" {
		return Record{}, fmt.Errorf("%w: media id is required", domain.ErrInvalidInput)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Record{}, fmt.Errorf("tmdb: %w: %v", domain.ErrUpstreamUnavailable, err)
	}

	q := url.Values{}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	q.Set("language", c.language)
	u := c.BaseURL + "/" + t + "/" + url.PathEscape(mediaID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "streamsite/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("tmdb: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Record{}, fmt.Errorf("tmdb: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Record{}, fmt.Errorf("tmdb: %s %s: %w", t, mediaID, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return Record{}, fmt.Errorf("tmdb: %w: status %d body=%q", domain.ErrUpstreamUnavailable, resp.StatusCode, string(b[:min(len(b), 200)]))
	}

	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return Record{}, fmt.Errorf("tmdb: %w: decode: %v", domain.ErrUpstreamUnavailable, err)
	}
	return out, nil
}

// FetchMetadata is FetchByID reduced to display metadata.
func (c *Client) FetchMetadata(ctx context.Context, mediaType, mediaID string) (domain.Metadata, error) {
	rec, err := c.FetchByID(ctx, mediaType, mediaID)
	if err != nil {
		return domain.Metadata{}, err
	}
	return rec.Metadata(), nil
}
