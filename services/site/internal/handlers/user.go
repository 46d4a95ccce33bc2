package handlers

import (
	"context"
	"net/http"

	"github.com/example/streamsite/internal/platform/api"
	"github.com/example/streamsite/internal/platform/auth"
	"github.com/example/streamsite/internal/platform/events"
	"github.com/example/streamsite/services/site/internal/domain"
	"github.com/example/streamsite/services/site/internal/revival"
	"github.com/example/streamsite/services/site/internal/userstate"
	"github.com/example/streamsite/services/site/internal/worker"
)

type libraryRequest struct {
	ItemID any              `json:"itemId"`
	Type   string           `json:"type"`
	Status string           `json:"status"`
	Item   domain.MediaHint `json:"item"`
}

type historyRequest struct {
	Item domain.MediaHint `json:"item"`
}

type historyRemoveRequest struct {
	ItemID any `json:"itemId"`
}

type progressRequest struct {
	ItemID   any            `json:"itemId"`
	Type     string         `json:"type"`
	Progress map[string]any `json:"progress"`
}

type settingsRequest struct {
	Settings map[string]any `json:"settings"`
}

type rateRequest struct {
	ItemID any    `json:"itemId"`
	Type   string `json:"type"`
	Rating any    `json:"rating"`
}

// userWrite wraps the shared shape of every user-state endpoint: resolve the
// caller, decode the body, apply, respond with the stored user.
func userWrite[T any](op string, env Env, apply func(ctx context.Context, userID string, req T) (domain.User, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		if userID == "" {
			writeError(w, r, env, domain.ErrUnauthenticated, msgSaveFailed)
			return
		}
		var req T
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, env, err, msgSaveFailed)
			return
		}
		u, err := apply(r.Context(), userID, req)
		env.Metrics.UserWrite(op, err)
		if err != nil {
			writeError(w, r, env, err, msgSaveFailed)
			return
		}
		api.WriteJSON(w, http.StatusOK, userResponse{Success: true, User: u})
	}
}

// SetLibrary handles POST /api/user/library.
func SetLibrary(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("library", env, func(ctx context.Context, userID string, req libraryRequest) (domain.User, error) {
		u, err := rec.SetLibraryStatus(ctx, userID, req.Type, req.ItemID, req.Status, req.Item)
		if err != nil {
			return u, err
		}
		t, id, _ := domain.ValidateMediaKey(req.Type, req.ItemID)
		if e, ok := u.Library[domain.CompoundKey(t, id)]; ok && e.Bare() {
			requestRevival(env.Events, userID, e.MediaType, e.MediaID)
		}
		return u, nil
	})
}

// RecordHistory handles POST /api/user/history.
func RecordHistory(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("history", env, func(ctx context.Context, userID string, req historyRequest) (domain.User, error) {
		u, err := rec.RecordHistory(ctx, userID, "", req.Item)
		if err != nil {
			return u, err
		}
		if len(u.History) > 0 && u.History[0].Bare() {
			requestRevival(env.Events, userID, u.History[0].MediaType, u.History[0].MediaID)
		}
		return u, nil
	})
}

// RemoveHistory handles DELETE /api/user/history.
func RemoveHistory(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("history_remove", env, func(ctx context.Context, userID string, req historyRemoveRequest) (domain.User, error) {
		return rec.RemoveHistory(ctx, userID, req.ItemID)
	})
}

// ClearHistory handles DELETE /api/user/history/clear.
func ClearHistory(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("history_clear", env, func(ctx context.Context, userID string, _ struct{}) (domain.User, error) {
		return rec.ClearHistory(ctx, userID)
	})
}

// SaveProgress handles POST /api/user/progress.
func SaveProgress(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("progress", env, func(ctx context.Context, userID string, req progressRequest) (domain.User, error) {
		return rec.MergeProgress(ctx, userID, req.Type, req.ItemID, req.Progress)
	})
}

// Rate handles POST /api/user/rate.
func Rate(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("rate", env, func(ctx context.Context, userID string, req rateRequest) (domain.User, error) {
		rating, err := parseRating(req.Rating)
		if err != nil {
			return domain.User{}, err
		}
		return rec.SetRating(ctx, userID, req.Type, req.ItemID, rating)
	})
}

// SaveSettings handles POST /api/auth/settings.
func SaveSettings(rec *userstate.Reconciler, env Env) http.HandlerFunc {
	return userWrite("settings", env, func(ctx context.Context, userID string, req settingsRequest) (domain.User, error) {
		return rec.MergeSettings(ctx, userID, req.Settings)
	})
}

type profileResponse struct {
	Success bool `json:"success"`
	*revival.Profile
}

// Profile handles GET /api/user/profile. Bare entries are revived before the
// page model is returned; revival problems never fail the request.
func Profile(rec *userstate.Reconciler, coord *revival.Coordinator, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		u, err := rec.Get(r.Context(), userID)
		if err != nil {
			writeError(w, r, env, err, msgLoadFailed)
			return
		}
		p := revival.BuildProfile(u)
		if coord != nil {
			p.Revive(r.Context(), coord.NewPass())
		}
		api.WriteJSON(w, http.StatusOK, profileResponse{Success: true, Profile: p})
	}
}

func requestRevival(pub *events.Publisher, userID, mediaType, mediaID string) {
	pub.Publish(events.SubjectRevivalRequested, "revival_requested", userID, worker.RevivalRequest(mediaType, mediaID))
}
