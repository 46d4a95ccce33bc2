package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HistoryCap bounds User.History.
const HistoryCap = 20

type LibraryStatus string

const (
	StatusWatching LibraryStatus = "watching"
	StatusPlanned  LibraryStatus = "planned"
	StatusWatched  LibraryStatus = "watched"
	StatusDropped  LibraryStatus = "dropped"
	// StatusNone is never stored; setting it removes the entry.
	StatusNone LibraryStatus = "none"
)

// Statuses lists the storable statuses in display order.
var Statuses = []LibraryStatus{StatusWatching, StatusPlanned, StatusWatched, StatusDropped}

func ParseLibraryStatus(s string) (LibraryStatus, error) {
	st := LibraryStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusWatching, StatusPlanned, StatusWatched, StatusDropped, StatusNone:
		return st, nil
	default:
		return "", fmt.Errorf("%w: library status %q", ErrInvalidInput, s)
	}
}

// Metadata is the display information revival backfills.
type Metadata struct {
	Title  string   `json:"title,omitempty"`
	Poster string   `json:"poster,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

func (m Metadata) Empty() bool {
	return m.Title == "" && m.Poster == "" && m.Rating == nil
}

type LibraryEntry struct {
	Status    LibraryStatus `json:"status"`
	MediaType string        `json:"type"`
	MediaID   string        `json:"id"`
	Title     string        `json:"title,omitempty"`
	Poster    string        `json:"poster,omitempty"`
	Rating    *float64      `json:"rating,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Bare reports whether the entry was stored without display metadata.
func (e LibraryEntry) Bare() bool {
	return strings.TrimSpace(e.Title) == ""
}

// Library maps compound keys to entries.
type Library map[string]LibraryEntry

// UnmarshalJSON accepts the legacy shape where a value is a bare status string
// ("movie_12": "watching") and fills type/id from the key when they are missing.
func (l *Library) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Library, len(raw))
	for key, val := range raw {
		var entry LibraryEntry
		var status string
		if err := json.Unmarshal(val, &status); err == nil {
			entry.Status = LibraryStatus(status)
		} else {
			var obj libraryEntryWire
			if err := json.Unmarshal(val, &obj); err != nil {
				return fmt.Errorf("library %q: %w", key, err)
			}
			entry = obj.entry()
		}
		if entry.MediaType == "" || entry.MediaID == "" {
			if t, id, ok := SplitCompoundKey(key); ok {
				if entry.MediaType == "" {
					entry.MediaType = t
				}
				if entry.MediaID == "" {
					entry.MediaID = id
				}
			}
		}
		if entry.Status == "" || entry.Status == StatusNone {
			continue
		}
		out[key] = entry
	}
	*l = out
	return nil
}

// libraryEntryWire tolerates numeric ids and the original ms "timestamp" field.
type libraryEntryWire struct {
	Status    LibraryStatus `json:"status"`
	MediaType string        `json:"type"`
	MediaID   any           `json:"id"`
	Title     string        `json:"title"`
	Name      string        `json:"name"`
	Poster    string        `json:"poster"`
	Rating    *float64      `json:"rating"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Timestamp int64         `json:"timestamp"`
}

func (w libraryEntryWire) entry() LibraryEntry {
	id, _ := NormalizeMediaID(w.MediaID)
	e := LibraryEntry{
		Status:    w.Status,
		MediaType: w.MediaType,
		MediaID:   id,
		Title:     firstNonEmpty(w.Title, w.Name),
		Poster:    w.Poster,
		Rating:    w.Rating,
		UpdatedAt: w.UpdatedAt,
	}
	if e.UpdatedAt.IsZero() && w.Timestamp > 0 {
		e.UpdatedAt = time.UnixMilli(w.Timestamp).UTC()
	}
	return e
}

type HistoryEntry struct {
	MediaID   string    `json:"id"`
	MediaType string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Poster    string    `json:"poster,omitempty"`
	Rating    *float64  `json:"rating,omitempty"`
	ViewedAt  time.Time `json:"viewedAt"`
}

func (h HistoryEntry) Bare() bool {
	return strings.TrimSpace(h.Title) == ""
}

// UnmarshalJSON accepts numeric ids and the original ms "timestamp" field.
// Entries stored without a type are movies.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var w struct {
		MediaID   any       `json:"id"`
		MediaType string    `json:"type"`
		Title     string    `json:"title"`
		Name      string    `json:"name"`
		Poster    string    `json:"poster"`
		Rating    *float64  `json:"rating"`
		ViewedAt  time.Time `json:"viewedAt"`
		Timestamp int64     `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, _ := NormalizeMediaID(w.MediaID)
	if strings.TrimSpace(w.MediaType) == "" {
		w.MediaType = MediaMovie
	}
	*h = HistoryEntry{
		MediaID:   id,
		MediaType: w.MediaType,
		Title:     firstNonEmpty(w.Title, w.Name),
		Poster:    w.Poster,
		Rating:    w.Rating,
		ViewedAt:  w.ViewedAt,
	}
	if h.ViewedAt.IsZero() && w.Timestamp > 0 {
		h.ViewedAt = time.UnixMilli(w.Timestamp).UTC()
	}
	return nil
}

// Progress is a shallow-mergeable resume position, e.g. {season, episode, time, duration}.
type Progress map[string]any

// Settings are display preferences such as include_adult and card_size.
// Updates shallow-merge into the stored map.
type Settings map[string]any

// DefaultSettings are the preferences a new account starts with.
func DefaultSettings() Settings {
	return Settings{
		"include_adult":       false,
		"card_size":           "medium",
		"card_hover_disabled": false,
		"background_type":     "default",
	}
}

type User struct {
	ID           string              `json:"id"`
	Username     string              `json:"username"`
	Email        string              `json:"email"`
	PasswordHash string              `json:"-"`
	Library      Library             `json:"library"`
	History      []HistoryEntry      `json:"history"`
	Progress     map[string]Progress `json:"progress"`
	Ratings      map[string]int      `json:"ratings"`
	Settings     Settings            `json:"settings"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Rating returns the user's rating of a media item, if any.
func (u User) Rating(mediaType, mediaID string) (int, bool) {
	r, ok := u.Ratings[CompoundKey(mediaType, mediaID)]
	return r, ok
}

// Clone deep-copies the mutable state fields.
func (u User) Clone() User {
	out := u
	out.Library = make(Library, len(u.Library))
	for k, v := range u.Library {
		out.Library[k] = v
	}
	out.History = append([]HistoryEntry{}, u.History...)
	out.Progress = make(map[string]Progress, len(u.Progress))
	for k, v := range u.Progress {
		p := make(Progress, len(v))
		for pk, pv := range v {
			p[pk] = pv
		}
		out.Progress[k] = p
	}
	out.Ratings = make(map[string]int, len(u.Ratings))
	for k, v := range u.Ratings {
		out.Ratings[k] = v
	}
	out.Settings = make(Settings, len(u.Settings))
	for k, v := range u.Settings {
		out.Settings[k] = v
	}
	return out
}

// EnsureMaps replaces nil state containers with empty ones so JSON renders {} and [].
func (u *User) EnsureMaps() {
	if u.Library == nil {
		u.Library = Library{}
	}
	if u.History == nil {
		u.History = []HistoryEntry{}
	}
	if u.Progress == nil {
		u.Progress = map[string]Progress{}
	}
	if u.Ratings == nil {
		u.Ratings = map[string]int{}
	}
	if u.Settings == nil {
		u.Settings = Settings{}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
