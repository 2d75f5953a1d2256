package db

import (
	"context"
	"fmt"
	"time"

	"github.com/roboskills/skillhub/models"
)

// UpsertOrganization creates an organization or updates its name and OEM
// flag. Used by the startup seeding pass.
func (db *DB) UpsertOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, is_oem, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_oem = excluded.is_oem
	`

	_, err := db.ExecContext(ctx, query, org.ID, org.Name, org.IsOEM, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert organization: %w", err)
	}

	return nil
}

// UpsertUser creates a user record if it does not exist.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email
	`

	_, err := db.ExecContext(ctx, query, user.ID, user.Email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// AddMember adds a user to an organization. Idempotent.
func (db *DB) AddMember(ctx context.Context, orgID, userID string) error {
	query := `
		INSERT INTO org_members (org_id, user_id)
		VALUES (?, ?)
		ON CONFLICT(org_id, user_id) DO NOTHING
	`

	_, err := db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// IsMember reports whether the user belongs to the organization.
func (db *DB) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM org_members WHERE org_id = ? AND user_id = ?`, orgID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// OrganizationsOf returns the ids of every organization the user belongs to.
func (db *DB) OrganizationsOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT org_id FROM org_members WHERE user_id = ? ORDER BY org_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var orgs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		orgs = append(orgs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return orgs, nil
}
