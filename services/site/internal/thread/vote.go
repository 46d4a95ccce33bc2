package thread

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/services/site/internal/domain"
)

type VoteType string

const (
	VoteLike    VoteType = "like"
	VoteDislike VoteType = "dislike"
	// VoteNone withdraws the caller's vote.
	VoteNone VoteType = "none"
)

func ParseVoteType(s string) (VoteType, error) {
	switch v := VoteType(strings.ToLower(strings.TrimSpace(s))); v {
	case VoteLike, VoteDislike, VoteNone:
		return v, nil
	default:
		return "", fmt.Errorf("%w: vote type %q", domain.ErrInvalidInput, s)
	}
}

// ApplyVote removes userID from both sets, then adds it to the set named by v.
// The result never lists a user in both.
func ApplyVote(likes, dislikes []string, userID string, v VoteType) ([]string, []string) {
	outLikes := without(likes, userID)
	outDislikes := without(dislikes, userID)
	switch v {
	case VoteLike:
		outLikes = append(outLikes, userID)
	case VoteDislike:
		outDislikes = append(outDislikes, userID)
	}
	return outLikes, outDislikes
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Vote records userID's vote on a comment and returns the updated comment.
func (s *Service) Vote(ctx context.Context, commentID, userID string, v VoteType) (domain.Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Comment{}, domain.ErrUnauthenticated
	}
	v, err := ParseVoteType(string(v))
	if err != nil {
		return domain.Comment{}, err
	}
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return domain.Comment{}, passNotFound("load comment", err)
	}

	likes, dislikes := ApplyVote(c.Likes, c.Dislikes, userID, v)
	updated, err := s.comments.UpdateVotes(ctx, c.ID, likes, dislikes)
	if err != nil {
		return domain.Comment{}, passNotFound("save votes", err)
	}

	s.events.Publish(events.SubjectCommentVoted, "comment_voted", userID, map[string]any{
		"comment_id": updated.ID,
		"vote":       string(v),
		"score":      updated.Score(),
	})
	return updated, nil
}
