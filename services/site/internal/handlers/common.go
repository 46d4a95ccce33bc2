// Package handlers exposes the site's HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/streamsite/internal/platform/api"
	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Client-facing failure messages. Internal detail only goes to the log.
const (
	msgSaveFailed    = "could not save, try again"
	msgCommentFailed = "could not post comment, try again"
	msgVoteFailed    = "could not record vote, try again"
	msgLoadFailed    = "could not load, try again"
)

// Env carries the collaborators every handler shares. Zero values are valid.
type Env struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Events  *events.Publisher
}

func (e Env) log() *zap.Logger { return logging.OrNop(e.Log) }

type userResponse struct {
	Success bool        `json:"success"`
	User    domain.User `json:"user"`
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zero; the
// operation then rejects whatever required field is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid JSON", domain.ErrInvalidInput)
	}
	return nil
}

// writeError maps domain errors to HTTP problems. failMsg replaces the detail
// of store and upstream failures.
func writeError(w http.ResponseWriter, r *http.Request, env Env, err error, failMsg string) {
	var p api.Problem
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		p = api.ErrUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		p = api.ErrInvalidInput.WithMessage(validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		p = api.ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		p = api.ErrConflict
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		env.log().Warn("dependency unavailable", logging.RequestIDField(r.Context()), zap.Error(err))
		p = api.ErrUnavailable.WithMessage(failMsg)
	default:
		env.log().Error("request failed", logging.RequestIDField(r.Context()), zap.Error(err))
		p = api.ErrInternal.WithMessage(failMsg)
	}
	p.Write(w, logging.RequestIDFromContext(r.Context()))
}

// validationMessage strips the sentinel prefix from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(domain.ErrInvalidInput.Error())+2:]
	}
	return "invalid input"
}

// parseRating accepts integral JSON numbers and numeric strings.
func parseRating(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: rating must be an integer", domain.ErrInvalidInput)
}
