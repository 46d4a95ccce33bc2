package revival

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/example/streamsite/services/site/internal/domain"
)

// PreviewSize is how many recent history items the dashboard shows.
const PreviewSize = 6

// Card is one rendered appearance of a media item.
type Card struct {
	MediaType string               `json:"type"`
	MediaID   string               `json:"id"`
	Title     string               `json:"title"`
	Poster    string               `json:"poster,omitempty"`
	Rating    *float64             `json:"rating,omitempty"`
	Status    domain.LibraryStatus `json:"status,omitempty"`
	ViewedAt  *time.Time           `json:"viewedAt,omitempty"`
	UpdatedAt *time.Time           `json:"updatedAt,omitempty"`
	Progress  domain.Progress      `json:"progress,omitempty"`
}

func (c Card) Key() string { return domain.CompoundKey(c.MediaType, c.MediaID) }

func (c Card) Bare() bool { return strings.TrimSpace(c.Title) == "" }

// Fill sets the display fields that are still empty.
func (c *Card) Fill(m domain.Metadata) {
	if c.Bare() {
		c.Title = m.Title
	}
	if c.Poster == "" {
		c.Poster = m.Poster
	}
	if c.Rating == nil && m.Rating != nil {
		v := *m.Rating
		c.Rating = &v
	}
}

// Profile is the server-side model of the profile page.
type Profile struct {
	User    domain.User                     `json:"user"`
	Stats   map[domain.LibraryStatus]int    `json:"stats"`
	Preview []Card                          `json:"preview"`
	Library map[domain.LibraryStatus][]Card `json:"library"`
	History []Card                          `json:"history"`
}

// BuildProfile lays out the dashboard preview, library sections and full
// history of u. Library cards are newest first within a status.
func BuildProfile(u domain.User) *Profile {
	p := &Profile{
		User:    u,
		Stats:   make(map[domain.LibraryStatus]int, len(domain.Statuses)),
		Library: make(map[domain.LibraryStatus][]Card, len(domain.Statuses)),
		History: make([]Card, 0, len(u.History)),
	}
	for _, st := range domain.Statuses {
		p.Stats[st] = 0
		p.Library[st] = []Card{}
	}
	for _, e := range u.Library {
		if _, known := p.Stats[e.Status]; !known {
			continue
		}
		p.Stats[e.Status]++
		updated := e.UpdatedAt
		p.Library[e.Status] = append(p.Library[e.Status], Card{
			MediaType: e.MediaType, MediaID: e.MediaID,
			Title: e.Title, Poster: e.Poster, Rating: e.Rating,
			Status: e.Status, UpdatedAt: &updated,
		})
	}
	for _, cards := range p.Library {
		sort.SliceStable(cards, func(i, j int) bool {
			if !cards[i].UpdatedAt.Equal(*cards[j].UpdatedAt) {
				return cards[i].UpdatedAt.After(*cards[j].UpdatedAt)
			}
			return cards[i].Key() < cards[j].Key()
		})
	}
	for _, h := range u.History {
		viewed := h.ViewedAt
		p.History = append(p.History, Card{
			MediaType: h.MediaType, MediaID: h.MediaID,
			Title: h.Title, Poster: h.Poster, Rating: h.Rating,
			ViewedAt: &viewed, Progress: u.Progress[domain.CompoundKey(h.MediaType, h.MediaID)],
		})
	}
	n := min(PreviewSize, len(p.History))
	p.Preview = make([]Card, n)
	copy(p.Preview, p.History[:n])
	return p
}

// Sections returns every card list of the page, for Pass.Revive.
func (p *Profile) Sections() [][]Card {
	out := [][]Card{p.Preview, p.History}
	for _, st := range domain.Statuses {
		out = append(out, p.Library[st])
	}
	return out
}

// Revive runs pass over the whole page and applies the healed metadata to
// the embedded user record too.
func (p *Profile) Revive(ctx context.Context, pass *Pass) int {
	n := pass.Revive(ctx, p.User.ID, p.Sections()...)
	for key, meta := range pass.resolved {
		if e, ok := p.User.Library[key]; ok && e.Bare() {
			c := Card{Title: e.Title, Poster: e.Poster, Rating: e.Rating}
			c.Fill(meta)
			e.Title, e.Poster, e.Rating = c.Title, c.Poster, c.Rating
			p.User.Library[key] = e
		}
		for i := range p.User.History {
			h := &p.User.History[i]
			if h.Bare() && domain.CompoundKey(h.MediaType, h.MediaID) == key {
				c := Card{Title: h.Title, Poster: h.Poster, Rating: h.Rating}
				c.Fill(meta)
				h.Title, h.Poster, h.Rating = c.Title, c.Poster, c.Rating
			}
		}
	}
	return n
}
