package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roboskills/skillhub/models"
)

const licenseColumns = `id, user_id, token_hash, lifetime, issued_at, revoked_at`

func scanLicense(row interface{ Scan(...any) error }) (*models.DeveloperLicense, error) {
	lic := &models.DeveloperLicense{}
	err := row.Scan(
		&lic.ID,
		&lic.UserID,
		&lic.TokenHash,
		&lic.Lifetime,
		&lic.IssuedAt,
		&lic.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return lic, nil
}

// ActiveLicense retrieves the user's non-revoked license, or nil when none
// exists.
func (db *DB) ActiveLicense(ctx context.Context, userID string) (*models.DeveloperLicense, error) {
	query := `SELECT ` + licenseColumns + ` FROM developer_licenses WHERE user_id = ? AND revoked_at IS NULL`

	lic, err := scanLicense(db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active license: %w", err)
	}

	return lic, nil
}

// CreateLicense inserts a new license record. The partial unique index on
// (user_id) for non-revoked rows rejects a concurrent duplicate activation.
func (db *DB) CreateLicense(ctx context.Context, lic *models.DeveloperLicense) error {
	query := `
		INSERT INTO developer_licenses (id, user_id, token_hash, lifetime, issued_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query, lic.ID, lic.UserID, lic.TokenHash, lic.Lifetime, lic.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to create license: %w", err)
	}

	return nil
}

// LicenseByHash retrieves a license by its token hash, or nil when no license
// matches.
func (db *DB) LicenseByHash(ctx context.Context, hash string) (*models.DeveloperLicense, error) {
	query := `SELECT ` + licenseColumns + ` FROM developer_licenses WHERE token_hash = ?`

	lic, err := scanLicense(db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by hash: %w", err)
	}

	return lic, nil
}

// RevokeLicense marks a license revoked. One-way; revoked rows are never
// cleared.
func (db *DB) RevokeLicense(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE developer_licenses
		SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL
	`

	_, err := db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}

	return nil
}
