// Package db provides sqlite-backed storage for the marketplace.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// DB wraps the database connection. It implements workflow.Store,
// workflow.Directory and license.Store.
type DB struct {
	*sql.DB
}

// New creates a new database connection.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// InitSchema creates the database tables if they don't exist.
func (db *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_oem INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS org_members (
		org_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (org_id, user_id),
		FOREIGN KEY (org_id) REFERENCES organizations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_org_members_user ON org_members(user_id);

	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		price_cents INTEGER NOT NULL DEFAULT 0,
		is_free INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_skills_owner ON skills(owner_id);
	CREATE INDEX IF NOT EXISTS idx_skills_slug ON skills(slug);

	CREATE TABLE IF NOT EXISTS skill_versions (
		id TEXT PRIMARY KEY,
		skill_id TEXT NOT NULL,
		version TEXT NOT NULL,
		manifest_yaml TEXT NOT NULL,
		release_notes TEXT NOT NULL DEFAULT '',
		risk_level TEXT NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'private',
		package_path TEXT NOT NULL DEFAULT '',
		package_size INTEGER NOT NULL DEFAULT 0,
		package_sha256 TEXT NOT NULL DEFAULT '',
		assets_json TEXT NOT NULL DEFAULT '{}',
		compatible_oems_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_at DATETIME,
		FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE,
		UNIQUE(skill_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_versions_skill ON skill_versions(skill_id);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		version_id TEXT NOT NULL,
		submitter_id TEXT NOT NULL,
		target_oem_id TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		resubmit_count INTEGER NOT NULL DEFAULT 0,
		platform_review_json TEXT,
		platform_review_notes TEXT,
		oem_review_notes TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		platform_reviewed_at DATETIME,
		oem_reviewed_at DATETIME,
		FOREIGN KEY (version_id) REFERENCES skill_versions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_version ON submissions(version_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

	CREATE TABLE IF NOT EXISTS oem_reviews (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (submission_id) REFERENCES submissions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_oem_reviews_submission ON oem_reviews(submission_id);

	CREATE TABLE IF NOT EXISTS developer_licenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		lifetime INTEGER NOT NULL DEFAULT 1,
		issued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		revoked_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_licenses_active_user
		ON developer_licenses(user_id) WHERE revoked_at IS NULL;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
