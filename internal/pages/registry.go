// Package pages holds the registry of administrable admin-portal pages.
package pages

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRegistry is returned when the page definitions break registry invariants.
var ErrInvalidRegistry = errors.New("pages: invalid registry")

// Registry is the immutable set of page descriptors, kept in definition order.
type Registry struct {
	pages   []Descriptor
	index   map[string]int
	modules []string
}

// NewRegistry validates the descriptors and builds a Registry.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		pages: make([]Descriptor, 0, len(descs)),
		index: make(map[string]int, len(descs)),
	}
	seenModules := make(map[string]struct{})
	for i, d := range descs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("%w: page #%d has empty id", ErrInvalidRegistry, i+1)
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate page id %q", ErrInvalidRegistry, d.ID)
		}
		if len(d.AvailableActions) == 0 {
			return nil, fmt.Errorf("%w: page %q has no actions", ErrInvalidRegistry, d.ID)
		}
		seenActions := make(map[Action]struct{}, len(d.AvailableActions))
		for _, def := range d.AvailableActions {
			if !def.Action.Valid() {
				return nil, fmt.Errorf("%w: page %q declares unknown action %q", ErrInvalidRegistry, d.ID, def.Action)
			}
			if _, dup := seenActions[def.Action]; dup {
				return nil, fmt.Errorf("%w: page %q repeats action %q", ErrInvalidRegistry, d.ID, def.Action)
			}
			seenActions[def.Action] = struct{}{}
		}
		r.index[d.ID] = len(r.pages)
		r.pages = append(r.pages, d.clone())
		if _, ok := seenModules[d.Module]; !ok {
			seenModules[d.Module] = struct{}{}
			r.modules = append(r.modules, d.Module)
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics; intended for static test fixtures.
func MustRegistry(descs []Descriptor) *Registry {
	r, err := NewRegistry(descs)
	if err != nil {
		panic(err)
	}
	return r
}

// ListPages returns copies of all descriptors in registry order.
func (r *Registry) ListPages() []Descriptor {
	out := make([]Descriptor, len(r.pages))
	for i, d := range r.pages {
		out[i] = d.clone()
	}
	return out
}

// ListModules returns distinct module names in order of first occurrence.
func (r *Registry) ListModules() []string {
	return append([]string(nil), r.modules...)
}

// Len returns the number of registered pages.
func (r *Registry) Len() int {
	return len(r.pages)
}

// Page looks up a descriptor by id.
func (r *Registry) Page(id string) (Descriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.pages[i].clone(), true
}

// ActionLabel resolves the display label of an action on a page.
func (r *Registry) ActionLabel(pageID string, action Action) (string, bool) {
	i, ok := r.index[pageID]
	if !ok {
		return "", false
	}
	for _, def := range r.pages[i].AvailableActions {
		if def.Action == action {
			return def.Label, true
		}
	}
	return "", false
}
