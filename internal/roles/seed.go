package roles

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
)

// Seed describes a role created when the catalog initialises.
type Seed struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Color       string        `json:"color" yaml:"color"`
	IsSystem    bool          `json:"system" yaml:"system"`
	Rule        rbac.RuleSpec `json:"rule" yaml:"rule"`
}

var restrictedPages = []string{"roles", "settings"}

var operationalActions = []pages.Action{pages.ActionView, pages.ActionEdit, pages.ActionApprove, pages.ActionExport}

// DefaultSeeds returns the built-in system roles followed by the stock custom roles.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			ID:          SuperAdminID,
			Name:        "Super Admin",
			Description: "Full access to every page and action",
			Color:       "#DC2626",
			IsSystem:    true,
			Rule:        rbac.RuleSpec{Kind: rbac.RuleKindAll},
		},
		{
			ID:          AdminID,
			Name:        "Admin",
			Description: "Full access except deleting roles and platform settings",
			Color:       "#7C3AED",
			IsSystem:    true,
			Rule: rbac.RuleSpec{
				Kind:              rbac.RuleKindAll,
				ExceptAction:      pages.ActionDelete,
				ExceptActionPages: restrictedPages,
			},
		},
		{
			ID:          ManagerID,
			Name:        "Manager",
			Description: "Reviews and approves product and transaction workflows",
			Color:       "#2563EB",
			Rule: rbac.RuleSpec{
				Kind:        rbac.RuleKindActions,
				Actions:     operationalActions,
				ExceptPages: restrictedPages,
			},
		},
		{
			ID:          OperationsID,
			Name:        "Operations",
			Description: "Day-to-day operations without customer or content administration",
			Color:       "#059669",
			Rule: rbac.RuleSpec{
				Kind:        rbac.RuleKindActions,
				Actions:     operationalActions,
				ExceptPages: []string{"users", "content", "roles", "settings"},
			},
		},
		{
			ID:          ViewerID,
			Name:        "Viewer",
			Description: "Read-only access",
			Color:       "#6B7280",
			Rule:        rbac.RuleSpec{Kind: rbac.RuleKindViewOnly},
		},
	}
}

type seedFile struct {
	Roles []Seed `yaml:"roles"`
}

// LoadSeeds reads seed roles from a YAML file with a top-level roles list.
// The registry is used to reject rules naming unknown pages.
func LoadSeeds(path string, registry *pages.Registry) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roles: read seeds: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("roles: parse seeds: %w", err)
	}
	return file.Roles, ValidateSeeds(file.Roles, registry)
}

// ValidateSeeds checks ids and names are unique, rules compile and super_admin is a system seed.
func ValidateSeeds(seeds []Seed, registry *pages.Registry) error {
	ids := make(map[string]struct{}, len(seeds))
	names := make(map[string]struct{}, len(seeds))
	hasSuper := false
	for i, seed := range seeds {
		if strings.TrimSpace(seed.ID) == "" || strings.TrimSpace(seed.Name) == "" {
			return fmt.Errorf("%w: seed %d needs id and name", ErrValidation, i)
		}
		if _, dup := ids[seed.ID]; dup {
			return fmt.Errorf("%w: seed id %q repeated", ErrValidation, seed.ID)
		}
		ids[seed.ID] = struct{}{}
		key := FoldName(seed.Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("%w: seed name %q repeated", ErrValidation, seed.Name)
		}
		names[key] = struct{}{}
		if _, err := seed.Rule.Compile(registry); err != nil {
			return fmt.Errorf("%w: seed %q: %v", ErrValidation, seed.ID, err)
		}
		if seed.ID == SuperAdminID {
			hasSuper = seed.IsSystem
		}
	}
	if !hasSuper {
		return fmt.Errorf("%w: seeds must include %q as a system role", ErrValidation, SuperAdminID)
	}
	return nil
}
