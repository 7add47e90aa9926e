package roles

// Schema creates the role table. seq keeps listing in creation order.
const Schema = `
CREATE TABLE IF NOT EXISTS admin_roles (
	seq         BIGSERIAL,
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	is_system   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL DEFAULT 1,
	permissions JSONB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS admin_roles_name_key ON admin_roles (lower(name));
`

const listRolesSQL = `
SELECT id, name, description, color, is_system, created_at, updated_at, version, permissions
FROM admin_roles
ORDER BY created_at, seq`

const getRoleSQL = `
SELECT id, name, description, color, is_system, created_at, updated_at, version, permissions
FROM admin_roles
WHERE id = $1`

const insertRoleSQL = `
INSERT INTO admin_roles (id, name, description, color, is_system, created_at, updated_at, version, permissions)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const lockRoleVersionSQL = `SELECT version FROM admin_roles WHERE id = $1 FOR UPDATE`

const updateRoleSQL = `
UPDATE admin_roles
SET name = $2, description = $3, color = $4, updated_at = $5, version = $6, permissions = $7
WHERE id = $1`

const deleteRoleSQL = `DELETE FROM admin_roles WHERE id = $1`
