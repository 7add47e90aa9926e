package rbac

import "github.com/investly/adminportal/internal/pages"

// Rule decides whether an action on a page is enabled for a role.
type Rule func(page pages.Descriptor, action pages.Action) bool

// BuildPermissions derives a full matrix from rule: one page permission per
// registered page and one entry per available action, both in declared order.
func BuildPermissions(registry *pages.Registry, rule Rule) Matrix {
	if rule == nil {
		rule = DenyAll()
	}
	descs := registry.ListPages()
	out := make(Matrix, 0, len(descs))
	for _, page := range descs {
		pp := PagePermission{
			PageID:   page.ID,
			PageName: page.Name,
			Module:   page.Module,
			Actions:  make([]PermissionEntry, 0, len(page.AvailableActions)),
		}
		for _, def := range page.AvailableActions {
			pp.Actions = append(pp.Actions, PermissionEntry{
				Action:  def.Action,
				Enabled: rule(page, def.Action),
			})
		}
		out = append(out, pp)
	}
	return out
}

// Reconcile aligns a stored matrix with the current registry. Pages and
// actions unknown to the registry are dropped, missing ones are filled from
// fallback, and existing flags are kept.
func Reconcile(registry *pages.Registry, stored Matrix, fallback Rule) Matrix {
	existing := make(map[string]map[pages.Action]bool, len(stored))
	for _, pp := range stored {
		flags := make(map[pages.Action]bool, len(pp.Actions))
		for _, e := range pp.Actions {
			flags[e.Action] = e.Enabled
		}
		existing[pp.PageID] = flags
	}
	if fallback == nil {
		fallback = DenyAll()
	}
	return BuildPermissions(registry, func(page pages.Descriptor, action pages.Action) bool {
		if flags, ok := existing[page.ID]; ok {
			if enabled, ok := flags[action]; ok {
				return enabled
			}
		}
		return fallback(page, action)
	})
}

// Conforms reports whether m has exactly the registry's pages and actions, in order.
func Conforms(registry *pages.Registry, m Matrix) bool {
	descs := registry.ListPages()
	if len(descs) != len(m) {
		return false
	}
	for i, d := range descs {
		pp := m[i]
		if pp.PageID != d.ID || pp.PageName != d.Name || pp.Module != d.Module || len(pp.Actions) != len(d.AvailableActions) {
			return false
		}
		for j, def := range d.AvailableActions {
			if pp.Actions[j].Action != def.Action {
				return false
			}
		}
	}
	return true
}
