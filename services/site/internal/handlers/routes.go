package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/streamsite/internal/platform/auth"
	"github.com/example/streamsite/services/site/internal/accounts"
	"github.com/example/streamsite/services/site/internal/revival"
	"github.com/example/streamsite/services/site/internal/thread"
	"github.com/example/streamsite/services/site/internal/userstate"
)

// Services are the engines behind the API. Revival may be nil.
type Services struct {
	Threads  *thread.Service
	Users    *userstate.Reconciler
	Revival  *revival.Coordinator
	Accounts *accounts.Service
}

// Mount registers every /api route on r. Call httpserver.SetupRouter first.
func Mount(r chi.Router, svc Services, verifier auth.JWTVerifier, env Env) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", Register(svc.Accounts, env))
		r.Post("/auth/login", Login(svc.Accounts, env))

		r.Get("/comments/{type}/{id}", ListComments(svc.Threads, env))
		r.Get("/comments/{type}/{id}/tree", CommentTree(svc.Threads, env))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(verifier))
			r.Post("/auth/settings", SaveSettings(svc.Users, env))
			r.Post("/comments", PostComment(svc.Threads, env))
			r.Post("/comments/{id}/vote", VoteComment(svc.Threads, env))

			r.Get("/user/profile", Profile(svc.Users, svc.Revival, env))
			r.Post("/user/library", SetLibrary(svc.Users, env))
			r.Post("/user/history", RecordHistory(svc.Users, env))
			r.Delete("/user/history", RemoveHistory(svc.Users, env))
			r.Delete("/user/history/clear", ClearHistory(svc.Users, env))
			r.Post("/user/progress", SaveProgress(svc.Users, env))
			r.Post("/user/rate", Rate(svc.Users, env))
		})
	})
}
