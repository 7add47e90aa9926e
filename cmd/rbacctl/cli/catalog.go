package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/roles"
)

// ErrDenied is returned by Check when the role lacks the permission.
var ErrDenied = errors.New("permission denied")

// CatalogCLI exposes read and grant helpers over the role catalog.
type CatalogCLI struct {
	Service *roles.Service
	Printer Printer
}

// Pages lists registered pages, optionally filtered by module.
func (c *CatalogCLI) Pages(module string) error {
	all := c.Service.Registry().ListPages()
	out := make([]pages.Descriptor, 0, len(all))
	rows := make([][]string, 0, len(all))
	for _, p := range all {
		if module != "" && !strings.EqualFold(p.Module, module) {
			continue
		}
		out = append(out, p)
		actions := make([]string, 0, len(p.AvailableActions))
		for _, def := range p.AvailableActions {
			actions = append(actions, string(def.Action))
		}
		rows = append(rows, []string{p.ID, p.Name, p.Module, strings.Join(actions, ",")})
	}
	return c.Printer.Print(out, []string{"ID", "NAME", "MODULE", "ACTIONS"}, rows)
}

// Modules lists module names in registry order.
func (c *CatalogCLI) Modules() error {
	mods := c.Service.Registry().ListModules()
	rows := make([][]string, 0, len(mods))
	for _, m := range mods {
		rows = append(rows, []string{m})
	}
	return c.Printer.Print(mods, []string{"MODULE"}, rows)
}

type roleSummary struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	System   bool   `json:"system" yaml:"system"`
	Version  int64  `json:"version" yaml:"version"`
	Granted  int    `json:"granted" yaml:"granted"`
	Color    string `json:"color" yaml:"color"`
	Describe string `json:"description" yaml:"description"`
}

// Roles lists every role with its granted permission count.
func (c *CatalogCLI) Roles(ctx context.Context) error {
	all, err := c.Service.ListRoles(ctx)
	if err != nil {
		return err
	}
	out := make([]roleSummary, 0, len(all))
	rows := make([][]string, 0, len(all))
	for _, r := range all {
		s := roleSummary{
			ID:       r.ID,
			Name:     r.Name,
			System:   r.IsSystem,
			Version:  r.Version,
			Granted:  len(r.Permissions.Granted()),
			Color:    r.Color,
			Describe: r.Description,
		}
		out = append(out, s)
		rows = append(rows, []string{s.ID, s.Name, strconv.FormatBool(s.System), strconv.FormatInt(s.Version, 10), strconv.Itoa(s.Granted)})
	}
	return c.Printer.Print(out, []string{"ID", "NAME", "SYSTEM", "VERSION", "GRANTED"}, rows)
}

type matrixRow struct {
	PageID  string          `json:"pageId" yaml:"page"`
	Module  string          `json:"module" yaml:"module"`
	Actions map[string]bool `json:"actions" yaml:"actions"`
}

// Matrix prints the full permission matrix of one role.
func (c *CatalogCLI) Matrix(ctx context.Context, roleID string) error {
	role, err := c.Service.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	header := []string{"PAGE", "MODULE"}
	for _, a := range pages.AllActions() {
		header = append(header, strings.ToUpper(string(a)))
	}
	out := make([]matrixRow, 0, len(role.Permissions))
	rows := make([][]string, 0, len(role.Permissions))
	for _, pp := range role.Permissions {
		mr := matrixRow{PageID: pp.PageID, Module: pp.Module, Actions: make(map[string]bool, len(pp.Actions))}
		cells := map[pages.Action]string{}
		for _, e := range pp.Actions {
			mr.Actions[string(e.Action)] = e.Enabled
			cells[e.Action] = "-"
			if e.Enabled {
				cells[e.Action] = "x"
			}
		}
		row := []string{pp.PageID, pp.Module}
		for _, a := range pages.AllActions() {
			cell, ok := cells[a]
			if !ok {
				cell = " "
			}
			row = append(row, cell)
		}
		out = append(out, mr)
		rows = append(rows, row)
	}
	return c.Printer.Print(out, header, rows)
}

type checkResult struct {
	RoleID  string `json:"roleId" yaml:"role"`
	PageID  string `json:"pageId" yaml:"page"`
	Action  string `json:"action" yaml:"action"`
	Allowed bool   `json:"allowed" yaml:"allowed"`
}

// Check prints whether the role may perform action on page. It returns
// ErrDenied when failDenied is set and the answer is no.
func (c *CatalogCLI) Check(ctx context.Context, roleID, pageID, action string, failDenied bool) error {
	allowed := c.Service.HasPermission(ctx, roleID, pageID, pages.Action(strings.ToLower(action)))
	res := checkResult{RoleID: roleID, PageID: pageID, Action: action, Allowed: allowed}
	verdict := "deny"
	if allowed {
		verdict = "allow"
	}
	if err := c.Printer.Print(res, []string{"ROLE", "PAGE", "ACTION", "RESULT"}, [][]string{{roleID, pageID, action, verdict}}); err != nil {
		return err
	}
	if failDenied && !allowed {
		return fmt.Errorf("%w: %s may not %s on %s", ErrDenied, roleID, action, pageID)
	}
	return nil
}

// Set enables or disables one permission on a role.
func (c *CatalogCLI) Set(ctx context.Context, roleID, pageID, action string, enabled bool) error {
	parsed, err := pages.ParseAction(action)
	if err != nil {
		return err
	}
	role, err := c.Service.UpdateRolePermission(ctx, roles.PermissionUpdate{
		RoleID:  roleID,
		PageID:  pageID,
		Action:  parsed,
		Enabled: enabled,
	})
	if err != nil {
		return err
	}
	res := checkResult{RoleID: role.ID, PageID: pageID, Action: string(parsed), Allowed: enabled}
	return c.Printer.Print(res, []string{"ROLE", "PAGE", "ACTION", "ENABLED", "VERSION"},
		[][]string{{role.ID, pageID, string(parsed), strconv.FormatBool(enabled), strconv.FormatInt(role.Version, 10)}})
}

// Seeds prints the default seed roles.
func (c *CatalogCLI) Seeds() error {
	seeds := roles.DefaultSeeds()
	rows := make([][]string, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, []string{s.ID, s.Name, strconv.FormatBool(s.IsSystem), s.Rule.Kind})
	}
	return c.Printer.Print(map[string]any{"roles": seeds}, []string{"ID", "NAME", "SYSTEM", "RULE"}, rows)
}
