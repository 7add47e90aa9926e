package rbac

import "github.com/investly/adminportal/internal/pages"

// PermissionEntry is the enabled flag of one action for a (role, page) pair.
// The display label is resolved from the page registry when rendering.
type PermissionEntry struct {
	Action  pages.Action `json:"action"`
	Enabled bool         `json:"enabled"`
}

// PagePermission holds a role's permission entries for one page.
type PagePermission struct {
	PageID   string            `json:"pageId"`
	PageName string            `json:"pageName"`
	Module   string            `json:"module"`
	Actions  []PermissionEntry `json:"actions"`
}

// Matrix is the full set of page permissions for one role, in registry order.
type Matrix []PagePermission

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, pp := range m {
		out[i] = pp
		out[i].Actions = append([]PermissionEntry(nil), pp.Actions...)
	}
	return out
}

// Granted lists the enabled permissions as "page.action" scopes.
func (m Matrix) Granted() []string {
	var out []string
	for _, pp := range m {
		for _, e := range pp.Actions {
			if e.Enabled {
				out = append(out, pp.PageID+"."+string(e.Action))
			}
		}
	}
	return out
}
