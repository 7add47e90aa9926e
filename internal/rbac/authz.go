package rbac

import "github.com/investly/adminportal/internal/pages"

// Allowed answers whether the matrix enables action on pageID. It never
// fails: unknown pages and actions are denied.
func Allowed(m Matrix, pageID string, action pages.Action) bool {
	for _, pp := range m {
		if pp.PageID != pageID {
			continue
		}
		for _, e := range pp.Actions {
			if e.Action == action {
				return e.Enabled
			}
		}
		return false
	}
	return false
}
