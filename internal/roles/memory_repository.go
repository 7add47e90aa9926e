package roles

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps roles in process memory, in insertion order.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	roles map[string]Role
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{roles: make(map[string]Role)}
}

// ListRoles returns all roles in insertion order.
func (m *MemoryRepository) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.roles[id].Clone())
	}
	return out, nil
}

// GetRole fetches a role by id.
func (m *MemoryRepository) GetRole(ctx context.Context, id string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %q", ErrNotFound, id)
	}
	return role.Clone(), nil
}

// InsertRole stores a new role. Ids and case-insensitive names must be unique.
func (m *MemoryRepository) InsertRole(ctx context.Context, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.roles[role.ID]; exists {
		return fmt.Errorf("%w: id %q", ErrDuplicateName, role.ID)
	}
	for _, existing := range m.roles {
		if FoldName(existing.Name) == FoldName(role.Name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, role.Name)
		}
	}
	m.roles[role.ID] = role.Clone()
	m.order = append(m.order, role.ID)
	return nil
}

// UpdateRole replaces a stored role if its version still equals expectedVersion.
func (m *MemoryRepository) UpdateRole(ctx context.Context, role Role, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.roles[role.ID]
	if !ok {
		return fmt.Errorf("%w: role %q", ErrNotFound, role.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: role %q is at version %d", ErrConflict, role.ID, current.Version)
	}
	for id, existing := range m.roles {
		if id != role.ID && FoldName(existing.Name) == FoldName(role.Name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, role.Name)
		}
	}
	m.roles[role.ID] = role.Clone()
	return nil
}

// DeleteRole removes a role if its version still equals expectedVersion.
func (m *MemoryRepository) DeleteRole(ctx context.Context, id string, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.roles[id]
	if !ok {
		return fmt.Errorf("%w: role %q", ErrNotFound, id)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: role %q is at version %d", ErrConflict, id, current.Version)
	}
	delete(m.roles, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
