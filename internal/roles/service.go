package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	InsertRole(ctx context.Context, role Role) error
	UpdateRole(ctx context.Context, role Role, expectedVersion int64) error
	DeleteRole(ctx context.Context, id string, expectedVersion int64) error
}

// AuditSink receives successful catalog mutations.
type AuditSink interface {
	RoleChanged(ctx context.Context, evt ChangeEvent) error
}

// ServiceConfig holds optional collaborators of Service.
type ServiceConfig struct {
	Cache  *Cache
	Audit  AuditSink
	Logger *slog.Logger
	Seeds  []Seed
	Now    func() time.Time
	NewID  func() string
}

// Service is the role catalog. It owns role lifecycle and protects system roles.
type Service struct {
	repo     RepositoryPort
	registry *pages.Registry
	cache    *Cache
	audit    AuditSink
	logger   *slog.Logger
	seeds    []Seed
	now      func() time.Time
	newID    func() string

	// mu serialises writes so uniqueness checks and version bumps are atomic per process.
	mu sync.Mutex
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, registry *pages.Registry, cfg ServiceConfig) *Service {
	s := &Service{
		repo:     repo,
		registry: registry,
		cache:    cfg.Cache,
		audit:    cfg.Audit,
		logger:   cfg.Logger,
		seeds:    cfg.Seeds,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.seeds == nil {
		s.seeds = DefaultSeeds()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

// Registry exposes the page registry the catalog builds matrices from.
func (s *Service) Registry() *pages.Registry {
	return s.registry
}

// Init seeds the catalog. An empty catalog receives every seed; otherwise
// only missing system roles are recreated. Stored matrices that no longer
// match the registry are reconciled.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("roles: init list: %w", err)
	}
	present := make(map[string]Role, len(existing))
	for _, r := range existing {
		present[r.ID] = r
	}

	base := s.now()
	for i, seed := range s.seeds {
		if _, ok := present[seed.ID]; ok {
			continue
		}
		if len(existing) > 0 && !seed.IsSystem {
			continue
		}
		rule, err := seed.Rule.Compile(nil)
		if err != nil {
			return fmt.Errorf("roles: seed %q: %w", seed.ID, err)
		}
		// Stagger timestamps so listing keeps seed order.
		at := base.Add(time.Duration(i) * time.Millisecond)
		role := Role{
			ID:          seed.ID,
			Name:        seed.Name,
			Description: seed.Description,
			Color:       seed.Color,
			IsSystem:    seed.IsSystem,
			CreatedAt:   at,
			UpdatedAt:   at,
			Version:     1,
			Permissions: rbac.BuildPermissions(s.registry, rule),
		}
		if err := s.repo.InsertRole(ctx, role); err != nil {
			return fmt.Errorf("roles: seed %q: %w", seed.ID, err)
		}
		s.logger.Info("seeded role", slog.String("role", role.ID), slog.Bool("system", role.IsSystem))
	}

	for _, r := range existing {
		if rbac.Conforms(s.registry, r.Permissions) {
			continue
		}
		fallback := rbac.DenyAll()
		if r.ID == SuperAdminID {
			fallback = rbac.AllowAll()
		}
		updated := r.Clone()
		updated.Permissions = rbac.Reconcile(s.registry, r.Permissions, fallback)
		updated.Version = r.Version + 1
		updated.UpdatedAt = s.now()
		if err := s.repo.UpdateRole(ctx, updated, r.Version); err != nil {
			return fmt.Errorf("roles: reconcile %q: %w", r.ID, err)
		}
		s.logger.Info("reconciled role permissions with page registry", slog.String("role", r.ID))
	}
	s.invalidate(ctx)
	return nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole adds a custom role whose matrix is derived from in.Rule.
func (s *Service) CreateRole(ctx context.Context, in CreateInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = DefaultColor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureNameFree(ctx, "", name); err != nil {
		return Role{}, err
	}
	now := s.now()
	role := Role{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
		Permissions: rbac.BuildPermissions(s.registry, in.Rule),
	}
	if err := s.repo.InsertRole(ctx, role); err != nil {
		return Role{}, err
	}
	s.record(ctx, ChangeEvent{Kind: ChangeCreated, RoleID: role.ID, RoleName: role.Name, Version: role.Version})
	return role.Clone(), nil
}

// UpdateRole changes display metadata. System roles keep their name.
func (s *Service) UpdateRole(ctx context.Context, id string, in UpdateInput) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadForWrite(ctx, id, in.ExpectedVersion)
	if err != nil {
		return Role{}, err
	}
	updated := current.Clone()
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: name is required", ErrValidation)
		}
		if name != current.Name {
			if current.IsSystem {
				return Role{}, fmt.Errorf("%w: cannot rename %q", ErrProtectedRole, id)
			}
			if err := s.ensureNameFree(ctx, id, name); err != nil {
				return Role{}, err
			}
			updated.Name = name
		}
	}
	if in.Description != nil {
		updated.Description = strings.TrimSpace(*in.Description)
	}
	if in.Color != nil {
		updated.Color = strings.TrimSpace(*in.Color)
		if updated.Color == "" {
			updated.Color = DefaultColor
		}
	}
	if err := s.commit(ctx, current, &updated); err != nil {
		return Role{}, err
	}
	s.record(ctx, ChangeEvent{Kind: ChangeUpdated, RoleID: id, RoleName: updated.Name, Version: updated.Version})
	return updated.Clone(), nil
}

// UpdateRolePermission sets exactly one permission entry of a role.
func (s *Service) UpdateRolePermission(ctx context.Context, in PermissionUpdate) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadForWrite(ctx, in.RoleID, in.ExpectedVersion)
	if err != nil {
		return Role{}, err
	}
	updated := current.Clone()
	entry := findEntry(updated.Permissions, in.PageID, in.Action)
	if entry == nil {
		return Role{}, fmt.Errorf("%w: permission %s.%s on role %q", ErrNotFound, in.PageID, in.Action, in.RoleID)
	}
	if in.RoleID == SuperAdminID && in.PageID == "roles" && !in.Enabled {
		return Role{}, fmt.Errorf("%w: %s must keep access to role management", ErrProtectedRole, SuperAdminID)
	}
	entry.Enabled = in.Enabled

	if err := s.commit(ctx, current, &updated); err != nil {
		return Role{}, err
	}
	enabled := in.Enabled
	s.record(ctx, ChangeEvent{
		Kind:     ChangePermission,
		RoleID:   updated.ID,
		RoleName: updated.Name,
		PageID:   in.PageID,
		Action:   string(in.Action),
		Enabled:  &enabled,
		Version:  updated.Version,
	})
	return updated.Clone(), nil
}

// DeleteRole removes a custom role. System roles are rejected with ErrProtectedRole.
func (s *Service) DeleteRole(ctx context.Context, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return fmt.Errorf("%w: cannot delete %q", ErrProtectedRole, id)
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return fmt.Errorf("%w: role %q is at version %d", ErrConflict, id, current.Version)
	}
	if err := s.repo.DeleteRole(ctx, id, current.Version); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, ChangeEvent{Kind: ChangeDeleted, RoleID: id, RoleName: current.Name, Version: current.Version})
	return nil
}

// ResolveMatrix returns the permission matrix of roleID, served from the cache when configured.
func (s *Service) ResolveMatrix(ctx context.Context, roleID string) (rbac.Matrix, bool, error) {
	load := func(ctx context.Context) (rbac.Matrix, error) {
		role, err := s.repo.GetRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		return role.Permissions, nil
	}
	m, err := s.cache.Matrix(ctx, roleID, load)
	if errors.Is(err, ErrCacheUnavailable) {
		s.logger.Warn("role cache unavailable, reading repository", slog.String("role", roleID), slog.Any("error", err))
		m, err = load(ctx)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// HasPermission resolves roleID and checks one page action. Any failure denies.
func (s *Service) HasPermission(ctx context.Context, roleID, pageID string, action pages.Action) bool {
	m, ok, err := s.ResolveMatrix(ctx, roleID)
	if err != nil {
		s.logger.Warn("permission check failed closed", slog.String("role", roleID), slog.Any("error", err))
		return false
	}
	return ok && rbac.Allowed(m, pageID, action)
}

// WarmCache loads every role matrix into the cache.
func (s *Service) WarmCache(ctx context.Context) (int, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return 0, err
	}
	warmed := 0
	for _, r := range all {
		if _, _, err := s.ResolveMatrix(ctx, r.ID); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

func (s *Service) loadForWrite(ctx context.Context, id string, expectedVersion int64) (Role, error) {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return Role{}, fmt.Errorf("%w: role %q is at version %d", ErrConflict, id, current.Version)
	}
	return current, nil
}

func (s *Service) commit(ctx context.Context, current Role, updated *Role) error {
	updated.Version = current.Version + 1
	updated.UpdatedAt = s.now()
	if err := s.repo.UpdateRole(ctx, *updated, current.Version); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, selfID, name string) error {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	want := FoldName(name)
	for _, r := range all {
		if r.ID == selfID {
			continue
		}
		if FoldName(r.Name) == want {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump role cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, evt ChangeEvent) {
	if s.audit == nil {
		return
	}
	evt.Actor = shared.ActorFromContext(ctx)
	evt.At = s.now()
	if err := s.audit.RoleChanged(ctx, evt); err != nil {
		s.logger.Warn("record role change", slog.String("role", evt.RoleID), slog.String("kind", string(evt.Kind)), slog.Any("error", err))
	}
}

func findEntry(m rbac.Matrix, pageID string, action pages.Action) *rbac.PermissionEntry {
	for i := range m {
		if m[i].PageID != pageID {
			continue
		}
		for j := range m[i].Actions {
			if m[i].Actions[j].Action == action {
				return &m[i].Actions[j]
			}
		}
		return nil
	}
	return nil
}
