package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/platform/httpx"
	"github.com/investly/adminportal/internal/shared"
)

// DefaultRoleHeader carries the acting role id on admin API requests.
const DefaultRoleHeader = "X-Admin-Role"

// Resolver loads the permission matrix of a role. ok is false for unknown roles.
type Resolver interface {
	ResolveMatrix(ctx context.Context, roleID string) (m Matrix, ok bool, err error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveDecision(pageID, action string, allowed bool)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
	Header   string
	Recorder DecisionRecorder
}

// Scope is a page/action pair written as "page.action".
type Scope struct {
	PageID string
	Action pages.Action
}

// RequireAny ensures the acting role has at least one of the scopes.
func (m Middleware) RequireAny(scopes ...string) func(http.Handler) http.Handler {
	return m.require(normalizeScopes(scopes), false)
}

// RequireAll ensures the acting role has every scope.
func (m Middleware) RequireAll(scopes ...string) func(http.Handler) http.Handler {
	return m.require(normalizeScopes(scopes), true)
}

// RequirePermission gates a handler on a single page action.
func (m Middleware) RequirePermission(pageID string, action pages.Action) func(http.Handler) http.Handler {
	return m.require([]Scope{{PageID: pageID, Action: action}}, true)
}

func (m Middleware) require(required []Scope, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			roleID := m.actingRole(r)
			if roleID == "" {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "acting role missing")
				return
			}
			matrix, ok, err := m.Resolver.ResolveMatrix(r.Context(), roleID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac resolve role", slog.String("role", roleID), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "unknown role")
				return
			}
			if !m.decide(matrix, required, all) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), roleID)))
		})
	}
}

func (m Middleware) decide(matrix Matrix, required []Scope, all bool) bool {
	for _, s := range required {
		allowed := Allowed(matrix, s.PageID, s.Action)
		if m.Recorder != nil {
			m.Recorder.ObserveDecision(s.PageID, string(s.Action), allowed)
		}
		if all && !allowed {
			return false
		}
		if !all && allowed {
			return true
		}
	}
	return all
}

func (m Middleware) actingRole(r *http.Request) string {
	header := m.Header
	if header == "" {
		header = DefaultRoleHeader
	}
	return strings.TrimSpace(r.Header.Get(header))
}

// ParseScope splits "page.action" into a Scope.
func ParseScope(raw string) (Scope, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	idx := strings.LastIndex(raw, ".")
	if idx <= 0 || idx == len(raw)-1 {
		return Scope{}, false
	}
	action, err := pages.ParseAction(raw[idx+1:])
	if err != nil {
		return Scope{}, false
	}
	return Scope{PageID: raw[:idx], Action: action}, true
}

func normalizeScopes(raw []string) []Scope {
	seen := make(map[Scope]struct{}, len(raw))
	out := make([]Scope, 0, len(raw))
	for _, s := range raw {
		scope, ok := ParseScope(s)
		if !ok {
			// Unparseable scopes stay in the list and never match.
			scope = Scope{PageID: strings.TrimSpace(s)}
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}
