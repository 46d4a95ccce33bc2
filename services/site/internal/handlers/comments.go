package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/streamsite/internal/platform/api"
	"github.com/example/streamsite/internal/platform/auth"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/thread"
)

type postCommentRequest struct {
	MediaID   any     `json:"mediaId"`
	MediaType string  `json:"mediaType"`
	Text      string  `json:"text"`
	IsSpoiler bool    `json:"isSpoiler"`
	ParentID  *string `json:"parentId"`
}

type commentResponse struct {
	Success bool               `json:"success"`
	Comment thread.CommentView `json:"comment"`
}

type treeResponse struct {
	Success  bool           `json:"success"`
	Comments []*thread.Node `json:"comments"`
}

// ListComments handles GET /api/comments/{type}/{id}. The response is the
// flat record list; clients build the tree.
func ListComments(ts *thread.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comments, err := ts.ListFlat(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, env, err, msgLoadFailed)
			return
		}
		api.WriteJSON(w, http.StatusOK, comments)
	}
}

// CommentTree handles GET /api/comments/{type}/{id}/tree.
func CommentTree(ts *thread.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := ts.ListThread(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, env, err, msgLoadFailed)
			return
		}
		api.WriteJSON(w, http.StatusOK, treeResponse{Success: true, Comments: roots})
	}
}

// PostComment handles POST /api/comments.
func PostComment(ts *thread.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		if userID == "" {
			writeError(w, r, env, domain.ErrUnauthenticated, msgCommentFailed)
			return
		}
		var req postCommentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, env, err, msgCommentFailed)
			return
		}
		in := thread.PostInput{
			AuthorID:  userID,
			MediaType: req.MediaType,
			MediaID:   req.MediaID,
			Text:      req.Text,
			IsSpoiler: req.IsSpoiler,
		}
		if req.ParentID != nil {
			in.ParentID = *req.ParentID
		}
		c, err := ts.PostComment(r.Context(), in)
		if err != nil {
			writeError(w, r, env, err, msgCommentFailed)
			return
		}
		env.Metrics.CommentPosted()
		api.WriteJSON(w, http.StatusCreated, commentResponse{Success: true, Comment: thread.NewView(c)})
	}
}

type voteRequest struct {
	VoteType string `json:"voteType"`
}

// VoteComment handles POST /api/comments/{id}/vote.
func VoteComment(ts *thread.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		if userID == "" {
			writeError(w, r, env, domain.ErrUnauthenticated, msgVoteFailed)
			return
		}
		var req voteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, env, err, msgVoteFailed)
			return
		}
		v, err := thread.ParseVoteType(req.VoteType)
		if err != nil {
			writeError(w, r, env, err, msgVoteFailed)
			return
		}
		c, err := ts.Vote(r.Context(), chi.URLParam(r, "id"), userID, v)
		if err != nil {
			writeError(w, r, env, err, msgVoteFailed)
			return
		}
		env.Metrics.Voted(string(v))
		api.WriteJSON(w, http.StatusOK, commentResponse{Success: true, Comment: thread.NewView(c)})
	}
}
