package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MediaHint is the loosely shaped item payload clients send with library and
// history writes. It may be a raw TMDB record (name, poster_path, vote_average)
// or a stored entry (title, poster, rating).
type MediaHint map[string]any

// ID returns the canonical media id from id, mediaId or itemId.
func (h MediaHint) ID() (string, bool) {
	for _, k := range []string{"id", "mediaId", "itemId"} {
		if id, ok := NormalizeMediaID(h[k]); ok {
			return id, true
		}
	}
	return "", false
}

// Type returns type or media_type, lower-cased.
func (h MediaHint) Type() string {
	return strings.ToLower(h.str("type", "media_type", "mediaType"))
}

func (h MediaHint) Title() string  { return h.str("title", "name") }
func (h MediaHint) Poster() string { return h.str("poster", "poster_path") }

// Rating returns rating or vote_average.
func (h MediaHint) Rating() *float64 {
	for _, k := range []string{"rating", "vote_average"} {
		if f, ok := toFloat(h[k]); ok {
			return &f
		}
	}
	return nil
}

func (h MediaHint) Metadata() Metadata {
	return Metadata{Title: h.Title(), Poster: h.Poster(), Rating: h.Rating()}
}

func (h MediaHint) str(keys ...string) string {
	for _, k := range keys {
		if s, ok := h[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
