package roles

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/shared"
)

func testRegistry() *pages.Registry {
	return pages.MustRegistry([]pages.Descriptor{
		{ID: "dashboard", Name: "Dashboard", Module: "Overview", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Dashboard"},
			{Action: pages.ActionExport, Label: "Export Reports"},
		}},
		{ID: "users", Name: "User Management", Module: "Customers", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Users"},
			{Action: pages.ActionEdit, Label: "Edit Users"},
			{Action: pages.ActionDelete, Label: "Delete Users"},
			{Action: pages.ActionCreate, Label: "Create Users"},
			{Action: pages.ActionExport, Label: "Export Users"},
		}},
		{ID: "orders", Name: "Orders", Module: "Transactions", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Orders"},
			{Action: pages.ActionApprove, Label: "Approve Orders"},
		}},
		{ID: "content", Name: "Content", Module: "Marketing", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Content"},
			{Action: pages.ActionEdit, Label: "Edit Content"},
		}},
		{ID: "roles", Name: "Roles & Permissions", Module: "Administration", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Roles"},
			{Action: pages.ActionCreate, Label: "Create Roles"},
			{Action: pages.ActionEdit, Label: "Edit Permissions"},
			{Action: pages.ActionDelete, Label: "Delete Roles"},
		}},
		{ID: "settings", Name: "Settings", Module: "Administration", AvailableActions: []pages.ActionDef{
			{Action: pages.ActionView, Label: "View Settings"},
			{Action: pages.ActionEdit, Label: "Edit Settings"},
		}},
	})
}

type recordingAudit struct {
	events []ChangeEvent
	err    error
}

func (a *recordingAudit) RoleChanged(ctx context.Context, evt ChangeEvent) error {
	a.events = append(a.events, evt)
	return a.err
}

type fixedIDs struct{ n int }

func (f *fixedIDs) next() string {
	f.n++
	return fmt.Sprintf("custom-%d", f.n)
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, *recordingAudit) {
	t.Helper()
	repo := NewMemoryRepository()
	audit := &recordingAudit{}
	ids := &fixedIDs{}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(repo, testRegistry(), ServiceConfig{
		Audit: audit,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: ids.next,
	})
	require.NoError(t, svc.Init(context.Background()))
	return svc, repo, audit
}

func snapshot(t *testing.T, svc *Service) []Role {
	t.Helper()
	all, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	return all
}

func TestInitSeedsDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	all := snapshot(t, svc)

	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{SuperAdminID, AdminID, ManagerID, OperationsID, ViewerID}, ids)
	assert.True(t, all[0].IsSystem)
	assert.True(t, all[1].IsSystem)
	assert.False(t, all[2].IsSystem)

	for _, r := range all {
		assert.True(t, rbac.Conforms(svc.Registry(), r.Permissions), r.ID)
	}
}

func TestSeededRuleShapes(t *testing.T) {
	svc, _, _ := newTestService(t)
	get := func(id string) *Role {
		r, err := svc.GetRole(context.Background(), id)
		require.NoError(t, err)
		return &r
	}

	super := get(SuperAdminID)
	assert.True(t, HasPermission(super, "roles", pages.ActionDelete))

	admin := get(AdminID)
	assert.False(t, HasPermission(admin, "roles", pages.ActionDelete))
	assert.True(t, HasPermission(admin, "roles", pages.ActionEdit))
	assert.True(t, HasPermission(admin, "users", pages.ActionDelete))

	manager := get(ManagerID)
	assert.False(t, HasPermission(manager, "settings", pages.ActionView))
	assert.True(t, HasPermission(manager, "orders", pages.ActionApprove))
	assert.False(t, HasPermission(manager, "users", pages.ActionDelete))

	ops := get(OperationsID)
	assert.False(t, HasPermission(ops, "users", pages.ActionView))
	assert.False(t, HasPermission(ops, "content", pages.ActionEdit))
	assert.True(t, HasPermission(ops, "orders", pages.ActionApprove))

	viewer := get(ViewerID)
	assert.True(t, HasPermission(viewer, "dashboard", pages.ActionView))
	assert.False(t, HasPermission(viewer, "dashboard", pages.ActionExport))
}

func TestInitIsIdempotentAndRestoresSystemRoles(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteRole(ctx, ViewerID, 0))
	// Simulate a system role lost from storage.
	admin, err := repo.GetRole(ctx, AdminID)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteRole(ctx, AdminID, admin.Version))

	require.NoError(t, svc.Init(ctx))

	_, err = svc.GetRole(ctx, AdminID)
	assert.NoError(t, err)
	_, err = svc.GetRole(ctx, ViewerID)
	assert.ErrorIs(t, err, ErrNotFound, "custom seeds are not recreated in a non-empty catalog")
}

func TestInitReconcilesStaleMatrices(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	small := pages.MustRegistry(testRegistry().ListPages()[:2])
	svc := NewService(repo, small, ServiceConfig{})
	require.NoError(t, svc.Init(ctx))

	grown := NewService(repo, testRegistry(), ServiceConfig{})
	require.NoError(t, grown.Init(ctx))

	super, err := grown.GetRole(ctx, SuperAdminID)
	require.NoError(t, err)
	assert.True(t, rbac.Conforms(grown.Registry(), super.Permissions))
	assert.True(t, HasPermission(&super, "settings", pages.ActionEdit))
	assert.Equal(t, int64(2), super.Version)

	viewer, err := grown.GetRole(ctx, ViewerID)
	require.NoError(t, err)
	assert.True(t, HasPermission(&viewer, "dashboard", pages.ActionView))
	assert.False(t, HasPermission(&viewer, "settings", pages.ActionView), "new pages start disabled")
}

func TestCreateRole(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := shared.ContextWithActor(context.Background(), SuperAdminID)

	rule := rbac.ExceptPages(rbac.AllowActions(pages.ActionView, pages.ActionEdit, pages.ActionApprove, pages.ActionExport), "users")
	ops, err := svc.CreateRole(ctx, CreateInput{Name: "  Ops  ", Description: "ops desk", Rule: rule})
	require.NoError(t, err)

	assert.Equal(t, "custom-1", ops.ID)
	assert.Equal(t, "Ops", ops.Name)
	assert.Equal(t, DefaultColor, ops.Color)
	assert.False(t, ops.IsSystem)
	assert.Equal(t, int64(1), ops.Version)
	assert.False(t, ops.CreatedAt.IsZero())
	assert.True(t, rbac.Conforms(svc.Registry(), ops.Permissions))

	assert.False(t, HasPermission(&ops, "users", pages.ActionView))
	assert.False(t, HasPermission(&ops, "dashboard", pages.ActionEdit))
	assert.True(t, HasPermission(&ops, "orders", pages.ActionApprove))

	require.Len(t, audit.events, 1)
	assert.Equal(t, ChangeCreated, audit.events[0].Kind)
	assert.Equal(t, SuperAdminID, audit.events[0].Actor)
}

func TestCreateRoleValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	before := len(snapshot(t, svc))

	_, err := svc.CreateRole(ctx, CreateInput{Name: "   ", Rule: rbac.ViewOnly()})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateRole(ctx, CreateInput{Name: "viewer", Rule: rbac.ViewOnly()})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.CreateRole(ctx, CreateInput{Name: "SUPER ADMIN", Rule: rbac.ViewOnly()})
	require.ErrorIs(t, err, ErrDuplicateName)

	assert.Len(t, snapshot(t, svc), before)
}

func TestCreateRoleIDsAreNeverReused(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, testRegistry(), ServiceConfig{})
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	first, err := svc.CreateRole(ctx, CreateInput{Name: "Temp", Rule: rbac.ViewOnly()})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, first.ID, 0))

	second, err := svc.CreateRole(ctx, CreateInput{Name: "Temp", Rule: rbac.ViewOnly()})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestDeleteRole(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()

	ops, err := svc.CreateRole(ctx, CreateInput{Name: "Ops", Rule: rbac.ViewOnly()})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, ops.ID, 0))
	_, err = svc.GetRole(ctx, ops.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ChangeDeleted, audit.events[len(audit.events)-1].Kind)

	err = svc.DeleteRole(ctx, ops.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSystemRoleIsRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	before := snapshot(t, svc)

	for _, id := range []string{SuperAdminID, AdminID} {
		err := svc.DeleteRole(ctx, id, 0)
		require.ErrorIs(t, err, ErrProtectedRole)
		assert.ErrorIs(t, err, shared.ErrProtected)
	}
	assert.Equal(t, before, snapshot(t, svc))
}

func TestDeleteRoleVersionConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.DeleteRole(ctx, ViewerID, 7)
	require.ErrorIs(t, err, ErrConflict)
	_, err = svc.GetRole(ctx, ViewerID)
	assert.NoError(t, err)
}

func TestUpdateRolePermissionTouchesOneEntry(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()
	before := snapshot(t, svc)

	updated, err := svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: ViewerID, PageID: "users", Action: pages.ActionDelete, Enabled: true,
	})
	require.NoError(t, err)
	assert.True(t, HasPermission(&updated, "users", pages.ActionDelete))
	assert.Equal(t, int64(2), updated.Version)

	after := snapshot(t, svc)
	require.Len(t, after, len(before))
	changed := 0
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].IsSystem, after[i].IsSystem)
		assert.Equal(t, before[i].CreatedAt, after[i].CreatedAt)
		for p := range before[i].Permissions {
			for a := range before[i].Permissions[p].Actions {
				if before[i].Permissions[p].Actions[a] != after[i].Permissions[p].Actions[a] {
					changed++
				}
			}
		}
	}
	assert.Equal(t, 1, changed)

	last := audit.events[len(audit.events)-1]
	assert.Equal(t, ChangePermission, last.Kind)
	require.NotNil(t, last.Enabled)
	assert.True(t, *last.Enabled)
}

func TestUpdateRolePermissionOnSystemRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: AdminID, PageID: "users", Action: pages.ActionDelete, Enabled: false,
	})
	require.NoError(t, err)
	assert.True(t, admin.IsSystem)
	assert.False(t, HasPermission(&admin, "users", pages.ActionDelete))

	_, err = svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: SuperAdminID, PageID: "roles", Action: pages.ActionView, Enabled: false,
	})
	require.ErrorIs(t, err, ErrProtectedRole)

	// roles has no approve action, so the lookup fails before the lockout guard.
	_, err = svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: SuperAdminID, PageID: "roles", Action: pages.ActionApprove, Enabled: false,
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrProtectedRole)
}

func TestUpdateRolePermissionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	before := snapshot(t, svc)

	cases := []PermissionUpdate{
		{RoleID: "ghost", PageID: "users", Action: pages.ActionView, Enabled: true},
		{RoleID: ViewerID, PageID: "ghost", Action: pages.ActionView, Enabled: true},
		{RoleID: ViewerID, PageID: "dashboard", Action: pages.ActionEdit, Enabled: true},
		{RoleID: ViewerID, PageID: "dashboard", Action: "publish", Enabled: true},
	}
	for _, in := range cases {
		_, err := svc.UpdateRolePermission(ctx, in)
		assert.ErrorIs(t, err, ErrNotFound, "%+v", in)
	}
	assert.Equal(t, before, snapshot(t, svc))
}

func TestUpdateRolePermissionVersionConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: ViewerID, PageID: "users", Action: pages.ActionEdit, Enabled: true, ExpectedVersion: 1,
	})
	require.NoError(t, err)

	_, err = svc.UpdateRolePermission(ctx, PermissionUpdate{
		RoleID: ViewerID, PageID: "users", Action: pages.ActionDelete, Enabled: true, ExpectedVersion: 1,
	})
	require.ErrorIs(t, err, ErrConflict)

	viewer, err := svc.GetRole(ctx, ViewerID)
	require.NoError(t, err)
	assert.False(t, HasPermission(&viewer, "users", pages.ActionDelete))
}

func TestUpdateRoleMetadata(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	name, color := "Read Only", "#000000"

	viewer, err := svc.UpdateRole(ctx, ViewerID, UpdateInput{Name: &name, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "Read Only", viewer.Name)
	assert.Equal(t, "#000000", viewer.Color)

	taken := "manager"
	_, err = svc.UpdateRole(ctx, ViewerID, UpdateInput{Name: &taken})
	assert.ErrorIs(t, err, ErrDuplicateName)

	rename := "Boss"
	_, err = svc.UpdateRole(ctx, SuperAdminID, UpdateInput{Name: &rename})
	assert.ErrorIs(t, err, ErrProtectedRole)

	desc := "Owns everything"
	super, err := svc.UpdateRole(ctx, SuperAdminID, UpdateInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Owns everything", super.Description)

	blank := " "
	_, err = svc.UpdateRole(ctx, ViewerID, UpdateInput{Name: &blank})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReturnedRolesAreCopies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	viewer, err := svc.GetRole(ctx, ViewerID)
	require.NoError(t, err)
	viewer.Permissions[0].Actions[0].Enabled = false

	again, err := svc.GetRole(ctx, ViewerID)
	require.NoError(t, err)
	assert.True(t, again.Permissions[0].Actions[0].Enabled)
}

func TestResolveMatrixAndHasPermission(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, ok, err := svc.ResolveMatrix(ctx, ViewerID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rbac.Allowed(m, "dashboard", pages.ActionView))

	_, ok, err = svc.ResolveMatrix(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, svc.HasPermission(ctx, ViewerID, "dashboard", pages.ActionView))
	assert.False(t, svc.HasPermission(ctx, "ghost", "dashboard", pages.ActionView))
}

type failingRepo struct {
	*MemoryRepository
}

func (f failingRepo) GetRole(ctx context.Context, id string) (Role, error) {
	return Role{}, errors.New("database offline")
}

func TestHasPermissionFailsClosedOnRepositoryError(t *testing.T) {
	svc := NewService(failingRepo{NewMemoryRepository()}, testRegistry(), ServiceConfig{})
	assert.False(t, svc.HasPermission(context.Background(), SuperAdminID, "dashboard", pages.ActionView))
}

func TestHasPermissionNilRole(t *testing.T) {
	assert.False(t, HasPermission(nil, "dashboard", pages.ActionView))
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	svc, _, audit := newTestService(t)
	audit.err = errors.New("queue down")

	_, err := svc.CreateRole(context.Background(), CreateInput{Name: "Ops", Rule: rbac.ViewOnly()})
	assert.NoError(t, err)
}
