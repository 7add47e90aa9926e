package roles

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/platform/httpx"
	"github.com/investly/adminportal/internal/rbac"
)

const rolesPage = "roles"

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rolesPage, pages.ActionView))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
		r.Get("/{id}/check", h.checkPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rolesPage, pages.ActionCreate))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rolesPage, pages.ActionEdit))
		r.Patch("/{id}", h.updateRole)
		r.Patch("/{id}/permissions", h.updatePermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rolesPage, pages.ActionDelete))
		r.Delete("/{id}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]roleResponse, 0, len(all))
	for _, role := range all {
		out = append(out, toResponse(h.service.Registry(), role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRole(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	if err := h.validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	rule, err := req.BaseRule.Compile(h.service.Registry())
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Rule:        rule,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/roles/"+role.ID)
	h.writeRole(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	if err := h.validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	version, err := expectedVersion(r, req.Version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Name:            req.Name,
		Description:     req.Description,
		Color:           req.Color,
		ExpectedVersion: version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRole(w, http.StatusOK, role)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	if err := h.validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	version, err := expectedVersion(r, req.Version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.UpdateRolePermission(r.Context(), PermissionUpdate{
		RoleID:          chi.URLParam(r, "id"),
		PageID:          strings.TrimSpace(req.PageID),
		Action:          pages.Action(strings.ToLower(strings.TrimSpace(req.Action))),
		Enabled:         *req.Enabled,
		ExpectedVersion: version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRole(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id"), version); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pageID := r.URL.Query().Get("page")
	action := pages.Action(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action"))))
	httpx.JSON(w, http.StatusOK, checkResponse{
		RoleID:  role.ID,
		PageID:  pageID,
		Action:  action,
		Allowed: HasPermission(&role, pageID, action),
	})
}

func (h *Handler) writeRole(w http.ResponseWriter, status int, role Role) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(role.Version, 10)))
	httpx.JSON(w, status, toResponse(h.service.Registry(), role))
}

func (h *Handler) validate(req any) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ", "))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrProtectedRole), errors.Is(err, ErrConflict):
		h.logger.Info("role request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	default:
		h.logger.Error("role request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// expectedVersion reads If-Match, falling back to the body version. 0 disables the check.
func expectedVersion(r *http.Request, fromBody int64) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return fromBody, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: malformed If-Match %q", ErrValidation, r.Header.Get("If-Match"))
	}
	return v, nil
}
