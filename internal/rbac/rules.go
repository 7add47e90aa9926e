package rbac

import "github.com/investly/adminportal/internal/pages"

// AllowAll enables every action on every page.
func AllowAll() Rule {
	return func(pages.Descriptor, pages.Action) bool { return true }
}

// DenyAll disables everything.
func DenyAll() Rule {
	return func(pages.Descriptor, pages.Action) bool { return false }
}

// ViewOnly enables only the view action.
func ViewOnly() Rule {
	return AllowActions(pages.ActionView)
}

// AllowActions enables the listed actions wherever a page offers them.
func AllowActions(actions ...pages.Action) Rule {
	set := make(map[pages.Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return func(_ pages.Descriptor, action pages.Action) bool {
		_, ok := set[action]
		return ok
	}
}

// ExceptPages disables every action on the listed pages and defers to rule elsewhere.
func ExceptPages(rule Rule, pageIDs ...string) Rule {
	excluded := idSet(pageIDs)
	return func(page pages.Descriptor, action pages.Action) bool {
		if _, ok := excluded[page.ID]; ok {
			return false
		}
		return rule(page, action)
	}
}

// ExceptActionOn disables a single action on the listed pages and defers to rule elsewhere.
func ExceptActionOn(rule Rule, denied pages.Action, pageIDs ...string) Rule {
	excluded := idSet(pageIDs)
	return func(page pages.Descriptor, action pages.Action) bool {
		if action == denied {
			if _, ok := excluded[page.ID]; ok {
				return false
			}
		}
		return rule(page, action)
	}
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
