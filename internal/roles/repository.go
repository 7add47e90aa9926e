package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/investly/adminportal/internal/platform/db"
	"github.com/investly/adminportal/internal/rbac"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by Repository.
type DB interface {
	db.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool DB
}

// NewRepository constructs a repository.
func NewRepository(pool DB) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the role table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("roles: migrate: %w", err)
	}
	return nil
}

// ListRoles returns all roles in creation order.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, listRolesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, getRoleSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %q", ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// InsertRole stores a new role.
func (r *Repository) InsertRole(ctx context.Context, role Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("roles: encode permissions: %w", err)
	}
	_, err = r.pool.Exec(ctx, insertRoleSQL,
		role.ID, role.Name, role.Description, role.Color, role.IsSystem,
		role.CreatedAt, role.UpdatedAt, role.Version, perms)
	return mapPgError(err, role)
}

// UpdateRole replaces a stored role if its version still equals expectedVersion.
func (r *Repository) UpdateRole(ctx context.Context, role Role, expectedVersion int64) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("roles: encode permissions: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkVersion(ctx, tx, role.ID, expectedVersion); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, updateRoleSQL,
			role.ID, role.Name, role.Description, role.Color,
			role.UpdatedAt, role.Version, perms)
		return mapPgError(err, role)
	})
}

// DeleteRole removes a role if its version still equals expectedVersion.
func (r *Repository) DeleteRole(ctx context.Context, id string, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkVersion(ctx, tx, id, expectedVersion); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, deleteRoleSQL, id)
		return err
	})
}

func checkVersion(ctx context.Context, tx pgx.Tx, id string, expected int64) error {
	var current int64
	if err := tx.QueryRow(ctx, lockRoleVersionSQL, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: role %q", ErrNotFound, id)
		}
		return err
	}
	if current != expected {
		return fmt.Errorf("%w: role %q is at version %d", ErrConflict, id, current)
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role  Role
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Color, &role.IsSystem,
		&role.CreatedAt, &role.UpdatedAt, &role.Version, &perms); err != nil {
		return Role{}, err
	}
	var matrix rbac.Matrix
	if err := json.Unmarshal(perms, &matrix); err != nil {
		return Role{}, fmt.Errorf("roles: decode permissions of %q: %w", role.ID, err)
	}
	role.Permissions = matrix
	return role, nil
}

func mapPgError(err error, role Role) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %q", ErrDuplicateName, role.Name)
	}
	return err
}
