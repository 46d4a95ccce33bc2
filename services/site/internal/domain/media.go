package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// ParseMediaType accepts "movie" and "tv" (case-insensitive).
func ParseMediaType(s string) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case MediaMovie, MediaTV:
		return t, nil
	default:
		return "", fmt.Errorf("%w: media type %q", ErrInvalidInput, s)
	}
}

// CompoundKey is the "{type}_{id}" key used by library, progress and ratings.
func CompoundKey(mediaType, mediaID string) string {
	return mediaType + "_" + mediaID
}

// SplitCompoundKey reverses CompoundKey. Ids may contain underscores; types never do.
func SplitCompoundKey(key string) (mediaType, mediaID string, ok bool) {
	i := strings.IndexByte(key, '_')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// NormalizeMediaID turns a JSON-decoded id (string or number) into its canonical
// string form. Integral numbers lose their fractional part ("42", not "42.0").
// Numbers outside the int64 range are rejected.
func NormalizeMediaID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		return NormalizeMediaID(string(id))
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || math.Abs(id) >= 1<<63 {
			return "", false
		}
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10), true
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case float32:
		return NormalizeMediaID(float64(id))
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}

// ValidateMediaKey parses the type and normalizes the id of a media reference.
func ValidateMediaKey(mediaType string, mediaID any) (string, string, error) {
	t, err := ParseMediaType(mediaType)
	if err != nil {
		return "", "", err
	}
	id, ok := NormalizeMediaID(mediaID)
	if !ok {
		return "", "", fmt.Errorf("%w: media id is required", ErrInvalidInput)
	}
	return t, id, nil
}
