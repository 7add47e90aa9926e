package rbac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/investly/adminportal/internal/pages"
)

// Rule kinds accepted by RuleSpec.
const (
	RuleKindAll      = "all"
	RuleKindViewOnly = "view_only"
	RuleKindActions  = "actions"
	RuleKindNone     = "none"
)

// ErrInvalidRule marks a RuleSpec that cannot be compiled.
var ErrInvalidRule = errors.New("rbac: invalid rule")

// RuleSpec is the serialisable description of a Rule used by the API and CLI.
//
//	{"kind":"actions","actions":["view","edit","approve","export"],"exceptPages":["users"]}
type RuleSpec struct {
	Kind              string         `json:"kind" yaml:"kind"`
	Actions           []pages.Action `json:"actions,omitempty" yaml:"actions,omitempty"`
	ExceptPages       []string       `json:"exceptPages,omitempty" yaml:"exceptPages,omitempty"`
	ExceptAction      pages.Action   `json:"exceptAction,omitempty" yaml:"exceptAction,omitempty"`
	ExceptActionPages []string       `json:"exceptActionPages,omitempty" yaml:"exceptActionPages,omitempty"`
}

// Compile turns the spec into a Rule, checking actions and page ids against registry.
func (s RuleSpec) Compile(registry *pages.Registry) (Rule, error) {
	var rule Rule
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case RuleKindAll:
		rule = AllowAll()
	case RuleKindViewOnly, "viewonly", "view-only":
		rule = ViewOnly()
	case RuleKindNone, "":
		rule = DenyAll()
	case RuleKindActions:
		if len(s.Actions) == 0 {
			return nil, fmt.Errorf("%w: kind %q needs at least one action", ErrInvalidRule, RuleKindActions)
		}
		for _, a := range s.Actions {
			if !a.Valid() {
				return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRule, a)
			}
		}
		rule = AllowActions(s.Actions...)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, s.Kind)
	}

	if err := checkPages(registry, s.ExceptPages); err != nil {
		return nil, err
	}
	if len(s.ExceptPages) > 0 {
		rule = ExceptPages(rule, s.ExceptPages...)
	}

	if s.ExceptAction != "" {
		if !s.ExceptAction.Valid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRule, s.ExceptAction)
		}
		if err := checkPages(registry, s.ExceptActionPages); err != nil {
			return nil, err
		}
		rule = ExceptActionOn(rule, s.ExceptAction, s.ExceptActionPages...)
	} else if len(s.ExceptActionPages) > 0 {
		return nil, fmt.Errorf("%w: exceptActionPages requires exceptAction", ErrInvalidRule)
	}
	return rule, nil
}

func checkPages(registry *pages.Registry, ids []string) error {
	if registry == nil {
		return nil
	}
	for _, id := range ids {
		if _, ok := registry.Page(id); !ok {
			return fmt.Errorf("%w: unknown page %q", ErrInvalidRule, id)
		}
	}
	return nil
}
