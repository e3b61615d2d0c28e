package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Store persists access groups, roles and grant rows. Grants live in a
// table keyed by (role_id, group_id) with four boolean columns.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetGroupByTag returns the access group for a resource tag, or nil when
// none exists yet.
func (s *Store) GetGroupByTag(ctx context.Context, tag string) (*Group, error) {
	query := `SELECT id, tag, description FROM access_groups WHERE tag = $1`

	var group Group
	err := s.db.QueryRowContext(ctx, query, tag).Scan(&group.ID, &group.Tag, &group.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access group: %w", err)
	}
	return &group, nil
}

// CreateGroup provisions an access group for a resource tag with an empty
// description. Racing creations for the same tag are tolerated; the first
// insert wins and the row is re-read.
func (s *Store) CreateGroup(ctx context.Context, tag string) (*Group, error) {
	query := `
		INSERT INTO access_groups (tag, description)
		VALUES ($1, '')
		ON CONFLICT (tag) DO NOTHING
		RETURNING id, tag, description
	`

	var group Group
	err := s.db.QueryRowContext(ctx, query, tag).Scan(&group.ID, &group.Tag, &group.Description)
	if err == sql.ErrNoRows {
		return s.GetGroupByTag(ctx, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create access group: %w", err)
	}
	return &group, nil
}

// GetGrant returns the permission row for a (role, group) pair, or nil
// when no grant exists.
func (s *Store) GetGrant(ctx context.Context, roleID, groupID int64) (*Permission, error) {
	query := `
		SELECT read, "create", "update", "delete"
		FROM access_role_permissions
		WHERE role_id = $1 AND group_id = $2
	`

	var perm Permission
	err := s.db.QueryRowContext(ctx, query, roleID, groupID).Scan(
		&perm.Read,
		&perm.Create,
		&perm.Update,
		&perm.Delete,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &perm, nil
}

// UpsertGrant writes the permission row for a (role, group) pair.
func (s *Store) UpsertGrant(ctx context.Context, roleID, groupID int64, perm Permission) error {
	query := `
		INSERT INTO access_role_permissions (role_id, group_id, read, "create", "update", "delete")
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (role_id, group_id)
		DO UPDATE SET read = EXCLUDED.read, "create" = EXCLUDED."create",
		              "update" = EXCLUDED."update", "delete" = EXCLUDED."delete"
	`

	if _, err := s.db.ExecContext(ctx, query, roleID, groupID, perm.Read, perm.Create, perm.Update, perm.Delete); err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// DeleteGrant removes the permission row for a (role, group) pair. A
// missing row is not an error.
func (s *Store) DeleteGrant(ctx context.Context, roleID, groupID int64) error {
	query := `DELETE FROM access_role_permissions WHERE role_id = $1 AND group_id = $2`

	if _, err := s.db.ExecContext(ctx, query, roleID, groupID); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// GetRole returns a role by id, or nil when absent.
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `SELECT id, tag, description, rank, active FROM access_roles WHERE id = $1`

	var role Role
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(&role.ID, &role.Tag, &role.Description, &role.Rank, &role.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// RolesForPrincipal returns the ids of every active role assigned to the
// principal.
func (s *Store) RolesForPrincipal(ctx context.Context, principalID int64) ([]int64, error) {
	query := `
		SELECT r.id
		FROM access_roles r
		JOIN user_access_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.active
		ORDER BY r.rank DESC, r.id
	`

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get principal roles: %w", err)
	}
	defer rows.Close()

	var roleIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, id)
	}
	return roleIDs, rows.Err()
}
