package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/investly/adminportal/internal/platform/httpx"
	"github.com/investly/adminportal/internal/shared"
)

const (
	rateLimit  = 10
	rateWindow = time.Minute
)

// Scopes read by the timeline and required for a bulk export.
var (
	viewScopes   = []string{"roles.view", "settings.view"}
	exportScopes = []string{"roles.view", "roles.edit"}
)

// Gate builds permission middleware over "page.action" scopes.
type Gate interface {
	RequireAny(scopes ...string) func(http.Handler) http.Handler
	RequireAll(scopes ...string) func(http.Handler) http.Handler
}

// MountRoutes registers the timeline and CSV export endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)
	if h.gate == nil {
		r.Handle("/*", http.HandlerFunc(deny))
		return
	}
	r.With(h.gate.RequireAny(viewScopes...)).Get("/", h.handleTimeline)
	r.With(h.gate.RequireAll(exportScopes...), limiter).Get("/export.csv", h.handleExport)
}

func deny(w http.ResponseWriter, _ *http.Request) {
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	if actor := shared.ActorFromContext(r.Context()); actor != "" {
		return "role:" + actor + ":" + key, nil
	}
	return "ip:" + key, nil
}
