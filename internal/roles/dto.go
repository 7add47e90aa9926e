package roles

import (
	"time"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
)

type createRoleRequest struct {
	Name        string        `json:"name" validate:"required,max=64"`
	Description string        `json:"description" validate:"max=256"`
	Color       string        `json:"color" validate:"omitempty,hexcolor"`
	BaseRule    rbac.RuleSpec `json:"baseRule"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=256"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	Version     int64   `json:"version" validate:"gte=0"`
}

type updatePermissionRequest struct {
	PageID  string `json:"pageId" validate:"required"`
	Action  string `json:"action" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
}

type permissionEntryView struct {
	Action  pages.Action `json:"action"`
	Label   string       `json:"label"`
	Enabled bool         `json:"enabled"`
}

type pagePermissionView struct {
	PageID   string                `json:"pageId"`
	PageName string                `json:"pageName"`
	Module   string                `json:"module"`
	Actions  []permissionEntryView `json:"actions"`
}

type roleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Color       string               `json:"color"`
	IsSystem    bool                 `json:"isSystem"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Version     int64                `json:"version"`
	Permissions []pagePermissionView `json:"permissions"`
}

type checkResponse struct {
	RoleID  string       `json:"roleId"`
	PageID  string       `json:"pageId"`
	Action  pages.Action `json:"action"`
	Allowed bool         `json:"allowed"`
}

// toResponse joins labels from the registry so stored matrices never carry stale label text.
func toResponse(registry *pages.Registry, r Role) roleResponse {
	perms := make([]pagePermissionView, 0, len(r.Permissions))
	for _, pp := range r.Permissions {
		view := pagePermissionView{
			PageID:   pp.PageID,
			PageName: pp.PageName,
			Module:   pp.Module,
			Actions:  make([]permissionEntryView, 0, len(pp.Actions)),
		}
		for _, e := range pp.Actions {
			label, _ := registry.ActionLabel(pp.PageID, e.Action)
			view.Actions = append(view.Actions, permissionEntryView{Action: e.Action, Label: label, Enabled: e.Enabled})
		}
		perms = append(perms, view)
	}
	return roleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
		Permissions: perms,
	}
}
