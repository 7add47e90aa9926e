package pages

import (
	"fmt"
	"strings"
)

// Action is a capability that can be gated on a page.
type Action string

// Supported actions. The set is closed; new kinds need a code change.
const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
)

// AllActions lists every action kind in canonical order.
func AllActions() []Action {
	return []Action{ActionView, ActionEdit, ActionDelete, ActionCreate, ActionApprove, ActionExport}
}

// Valid reports whether a is one of the known action kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionEdit, ActionDelete, ActionCreate, ActionApprove, ActionExport:
		return true
	}
	return false
}

// ParseAction converts raw input into an Action.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !a.Valid() {
		return "", fmt.Errorf("pages: unknown action %q", raw)
	}
	return a, nil
}

// ActionDef pairs an action with its display label on a page.
type ActionDef struct {
	Action Action `json:"action" yaml:"action"`
	Label  string `json:"label" yaml:"label"`
}

// Descriptor identifies an administrable page and the actions it supports.
type Descriptor struct {
	ID               string      `json:"pageId" yaml:"id"`
	Name             string      `json:"pageName" yaml:"name"`
	Module           string      `json:"module" yaml:"module"`
	AvailableActions []ActionDef `json:"availableActions" yaml:"actions"`
}

// Supports reports whether the page exposes the given action.
func (d Descriptor) Supports(action Action) bool {
	for _, def := range d.AvailableActions {
		if def.Action == action {
			return true
		}
	}
	return false
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.AvailableActions = append([]ActionDef(nil), d.AvailableActions...)
	return out
}
