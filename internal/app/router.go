package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/horanet/hauth/internal/engine"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Engine     *engine.Engine
	Handler    *engine.Handler
	Downstream http.Handler
}

// NewRouter assembles the daemon router: ambient middleware, then the
// engine endpoints under /hauth, then the gated catch-all in front of
// the downstream application. The /hauth subtree is itself gated, so
// the rule table must mark login/logout as skip and may reserve account
// management to a role.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(params.Engine.Control)
	r.Route("/hauth", params.Handler.MountRoutes)
	r.Handle("/*", params.Downstream)

	return r
}
