package roles

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/shared"
)

// Well-known role ids.
const (
	SuperAdminID = "super_admin"
	AdminID      = "admin"
	ManagerID    = "manager"
	OperationsID = "operations"
	ViewerID     = "viewer"
)

// DefaultColor is used when a role is created without a display colour.
const DefaultColor = "#6B7280"

var (
	// ErrValidation indicates malformed create/update input.
	ErrValidation = fmt.Errorf("roles: %w", shared.ErrValidation)
	// ErrDuplicateName indicates another role already uses the name.
	ErrDuplicateName = fmt.Errorf("roles: name already in use: %w", shared.ErrDuplicate)
	// ErrNotFound indicates an unknown role, page or action reference.
	ErrNotFound = fmt.Errorf("roles: %w", shared.ErrNotFound)
	// ErrProtectedRole indicates an attempt to delete or rename a system role.
	ErrProtectedRole = fmt.Errorf("roles: %w", shared.ErrProtected)
	// ErrConflict indicates the role changed since the caller read it.
	ErrConflict = fmt.Errorf("roles: %w", shared.ErrConflict)
)

// Role is a named bundle of per-page, per-action permission flags.
type Role struct {
	ID          string
	Name        string
	Description string
	Color       string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
	Permissions rbac.Matrix
}

// Clone returns a deep copy of the role.
func (r Role) Clone() Role {
	r.Permissions = r.Permissions.Clone()
	return r
}

// HasPermission reports whether role may perform action on pageID.
// It is total: a nil role, unknown page or unknown action is denied.
func HasPermission(role *Role, pageID string, action pages.Action) bool {
	if role == nil {
		return false
	}
	return rbac.Allowed(role.Permissions, pageID, action)
}

// CreateInput carries the fields of a new custom role.
type CreateInput struct {
	Name        string
	Description string
	Color       string
	Rule        rbac.Rule
}

// UpdateInput carries display metadata changes. Nil fields are left as is.
type UpdateInput struct {
	Name            *string
	Description     *string
	Color           *string
	ExpectedVersion int64
}

// PermissionUpdate toggles one permission entry of a role.
type PermissionUpdate struct {
	RoleID          string
	PageID          string
	Action          pages.Action
	Enabled         bool
	ExpectedVersion int64
}

// ChangeKind names the mutation recorded in a ChangeEvent.
type ChangeKind string

// Change kinds emitted to the audit sink.
const (
	ChangeCreated    ChangeKind = "role.created"
	ChangeUpdated    ChangeKind = "role.updated"
	ChangePermission ChangeKind = "role.permission_changed"
	ChangeDeleted    ChangeKind = "role.deleted"
)

// ChangeEvent describes a successful catalog mutation.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	RoleID   string     `json:"role_id"`
	RoleName string     `json:"role_name"`
	Actor    string     `json:"actor,omitempty"`
	PageID   string     `json:"page_id,omitempty"`
	Action   string     `json:"action,omitempty"`
	Enabled  *bool      `json:"enabled,omitempty"`
	Version  int64      `json:"version"`
	At       time.Time  `json:"at"`
}

// FoldName is the comparison key for role names: trimmed and Unicode case folded,
// so "Straße" and "STRASSE" collide.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
