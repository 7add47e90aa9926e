package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/platform/httpx"
)

// PermissionsHandler exposes the page registry used to build the permission grid.
type PermissionsHandler struct {
	registry *pages.Registry
	rbac     Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(registry *pages.Registry, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{registry: registry, rbac: rbac}
}

type registryResponse struct {
	Pages   []pages.Descriptor `json:"pages"`
	Modules []string           `json:"modules"`
}

// MountRoutes registers registry routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission("roles", pages.ActionView))
		r.Get("/", h.listPages)
	})
}

func (h *PermissionsHandler) listPages(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, registryResponse{
		Pages:   h.registry.ListPages(),
		Modules: h.registry.ListModules(),
	})
}
