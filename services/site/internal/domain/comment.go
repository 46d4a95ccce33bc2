package domain

import "time"

// MaxCommentRunes is the stored length limit; longer text is truncated.
const MaxCommentRunes = 1500

// Comment is one record of a media thread. Text and parent are immutable;
// only the vote sets change after creation.
type Comment struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorRating *int      `json:"authorRating,omitempty"`
	MediaType    string    `json:"mediaType"`
	MediaID      string    `json:"mediaId"`
	Text         string    `json:"text"`
	IsSpoiler    bool      `json:"isSpoiler"`
	ParentID     *string   `json:"parentId,omitempty"`
	Likes        []string  `json:"likes"`
	Dislikes     []string  `json:"dislikes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Score is likes minus dislikes; it may be negative.
func (c Comment) Score() int {
	return len(c.Likes) - len(c.Dislikes)
}

// Clone returns a copy that shares no slices or pointers with c.
func (c Comment) Clone() Comment {
	out := c
	out.Likes = append([]string{}, c.Likes...)
	out.Dislikes = append([]string{}, c.Dislikes...)
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	if c.AuthorRating != nil {
		r := *c.AuthorRating
		out.AuthorRating = &r
	}
	return out
}
