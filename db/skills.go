package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/workflow"
)

// CreateSkill inserts a new skill.
func (db *DB) CreateSkill(ctx context.Context, skill *models.Skill) error {
	query := `
		INSERT INTO skills (id, owner_id, name, slug, category, status, price_cents, is_free, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		skill.ID, skill.OwnerID, skill.Name, skill.Slug, skill.Category,
		skill.Status, skill.PriceCents, skill.IsFree, skill.CreatedAt, skill.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create skill: %w", err)
	}

	return nil
}

// GetSkill retrieves a skill by ID.
func (db *DB) GetSkill(ctx context.Context, id string) (*models.Skill, error) {
	query := `
		SELECT id, owner_id, name, slug, category, status, price_cents, is_free, created_at, updated_at
		FROM skills
		WHERE id = ?
	`

	skill := &models.Skill{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&skill.ID,
		&skill.OwnerID,
		&skill.Name,
		&skill.Slug,
		&skill.Category,
		&skill.Status,
		&skill.PriceCents,
		&skill.IsFree,
		&skill.CreatedAt,
		&skill.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &workflow.NotFoundError{Resource: "skill", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}

	return skill, nil
}

// SlugExists reports whether a skill already uses the slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM skills WHERE slug = ?`, slug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return n > 0, nil
}

// SetSkillStatus updates a skill's lifecycle status.
func (db *DB) SetSkillStatus(ctx context.Context, skillID string, status models.SkillStatus) error {
	query := `
		UPDATE skills
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := db.ExecContext(ctx, query, status, time.Now().UTC(), skillID)
	if err != nil {
		return fmt.Errorf("failed to set skill status: %w", err)
	}

	return nil
}

// CreateSkillVersion inserts a new version snapshot.
func (db *DB) CreateSkillVersion(ctx context.Context, version *models.SkillVersion) error {
	assetsJSON, err := json.Marshal(version.Assets)
	if err != nil {
		return fmt.Errorf("failed to encode assets: %w", err)
	}
	oemsJSON, err := json.Marshal(version.CompatibleOEMs)
	if err != nil {
		return fmt.Errorf("failed to encode compatible oems: %w", err)
	}

	query := `
		INSERT INTO skill_versions (
			id, skill_id, version, manifest_yaml, release_notes, risk_level, visibility,
			package_path, package_size, package_sha256, assets_json, compatible_oems_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		version.ID, version.SkillID, version.Version, version.ManifestYAML, version.ReleaseNotes,
		version.RiskLevel, version.Visibility, version.PackagePath, version.PackageSize,
		version.PackageSHA256, string(assetsJSON), string(oemsJSON), version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create skill version: %w", err)
	}

	return nil
}

const versionColumns = `
	id, skill_id, version, manifest_yaml, release_notes, risk_level, visibility,
	package_path, package_size, package_sha256, assets_json, compatible_oems_json,
	created_at, published_at
`

func scanVersion(row interface{ Scan(...any) error }) (*models.SkillVersion, error) {
	v := &models.SkillVersion{}
	var assetsJSON, oemsJSON string
	err := row.Scan(
		&v.ID,
		&v.SkillID,
		&v.Version,
		&v.ManifestYAML,
		&v.ReleaseNotes,
		&v.RiskLevel,
		&v.Visibility,
		&v.PackagePath,
		&v.PackageSize,
		&v.PackageSHA256,
		&assetsJSON,
		&oemsJSON,
		&v.CreatedAt,
		&v.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(assetsJSON), &v.Assets); err != nil {
		return nil, fmt.Errorf("failed to decode assets: %w", err)
	}
	if err := json.Unmarshal([]byte(oemsJSON), &v.CompatibleOEMs); err != nil {
		return nil, fmt.Errorf("failed to decode compatible oems: %w", err)
	}
	return v, nil
}

// GetSkillVersion retrieves a version by ID.
func (db *DB) GetSkillVersion(ctx context.Context, id string) (*models.SkillVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM skill_versions WHERE id = ?`

	v, err := scanVersion(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &workflow.NotFoundError{Resource: "skill version", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skill version: %w", err)
	}

	return v, nil
}

// ListSkillVersions retrieves all versions of a skill.
func (db *DB) ListSkillVersions(ctx context.Context, skillID string) ([]*models.SkillVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM skill_versions WHERE skill_id = ? ORDER BY created_at ASC`

	rows, err := db.QueryContext(ctx, query, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var versions []*models.SkillVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return versions, nil
}

// SetSkillVersionVisibility updates a version's visibility. Flipping to
// public also records the publish time.
func (db *DB) SetSkillVersionVisibility(ctx context.Context, versionID string, v models.Visibility) error {
	query := `
		UPDATE skill_versions
		SET visibility = ?,
		    published_at = CASE WHEN ? = 'public' AND published_at IS NULL THEN ? ELSE published_at END
		WHERE id = ?
	`

	_, err := db.ExecContext(ctx, query, v, v, time.Now().UTC(), versionID)
	if err != nil {
		return fmt.Errorf("failed to set version visibility: %w", err)
	}

	return nil
}
