// Package models defines the data models for the skill marketplace.
package models

import (
	"database/sql"
	"time"
)

// SkillStatus represents the lifecycle state of a skill listing.
type SkillStatus string

// Skill status constants.
const (
	SkillDraft     SkillStatus = "draft"
	SkillPublished SkillStatus = "published"
	SkillSuspended SkillStatus = "suspended"
)

// Visibility represents who can see and install a skill version.
type Visibility string

// Visibility constants.
const (
	VisibilityPrivate Visibility = "private"
	VisibilityBeta    Visibility = "beta"
	VisibilityPublic  Visibility = "public"
)

// RiskLevel is the coarse impact classification of a skill version,
// cross-checked against its requested permissions during platform review.
type RiskLevel string

// Risk level constants, ordered low < medium < high.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskRank maps risk levels to their ordering.
var riskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// AtLeast reports whether r is at or above the given level.
func (r RiskLevel) AtLeast(min RiskLevel) bool {
	return riskRank[r] >= riskRank[min]
}

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// Decision is an OEM reviewer's verdict on a submission.
type Decision string

// Decision constants.
const (
	DecisionApproved         Decision = "approved"
	DecisionRejected         Decision = "rejected"
	DecisionChangesRequested Decision = "changes_requested"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionChangesRequested:
		return true
	}
	return false
}

// Skill represents a marketplace product entry owned by a developer.
type Skill struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id"`
	Name       string      `json:"name"`
	Slug       string      `json:"slug"` // URL-safe, globally unique.
	Category   string      `json:"category"`
	Status     SkillStatus `json:"status"`
	PriceCents int64       `json:"price_cents"`
	IsFree     bool        `json:"is_free"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Assets holds the media bundled with a skill version.
type Assets struct {
	IconPath    string   `json:"icon_path"`
	Screenshots []string `json:"screenshots"`
}

// SkillVersion is one immutable snapshot of a skill's package and manifest.
// It becomes immutable once a submission referencing it leaves draft.
type SkillVersion struct {
	ID             string       `json:"id"`
	SkillID        string       `json:"skill_id"`
	Version        string       `json:"version"` // Strict semver, monotonically increasing per skill.
	ManifestYAML   string       `json:"manifest_yaml"`
	ReleaseNotes   string       `json:"release_notes"`
	RiskLevel      RiskLevel    `json:"risk_level"`
	Visibility     Visibility   `json:"visibility"`
	PackagePath    string       `json:"package_path"`
	PackageSize    int64        `json:"package_size"`
	PackageSHA256  string       `json:"package_sha256"`
	Assets         Assets       `json:"assets"`
	CompatibleOEMs []string     `json:"compatible_oems"` // Org IDs the version declares support for.
	CreatedAt      time.Time    `json:"created_at"`
	PublishedAt    sql.NullTime `json:"published_at"`
}

// Submission is the unit of review wrapping one skill version.
type Submission struct {
	ID                  string         `json:"id"`
	VersionID           string         `json:"version_id"`
	SubmitterID         string         `json:"submitter_id"`
	TargetOemID         sql.NullString `json:"target_oem_id"` // Null means any compatible OEM may review.
	Status              string         `json:"status"`
	ResubmitCount       int            `json:"resubmit_count"`
	PlatformReviewJSON  sql.NullString `json:"platform_review_json"` // Serialized review.Result.
	PlatformReviewNotes sql.NullString `json:"platform_review_notes"`
	OemReviewNotes      sql.NullString `json:"oem_review_notes"`
	CreatedAt           time.Time      `json:"created_at"`
	PlatformReviewedAt  sql.NullTime   `json:"platform_reviewed_at"`
	OemReviewedAt       sql.NullTime   `json:"oem_reviewed_at"`
}

// OemReview is an immutable record of one OEM decision. Never updated or
// deleted; resubmission cycles accumulate one record per decision.
type OemReview struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	OrgID        string    `json:"org_id"`
	ReviewerID   string    `json:"reviewer_id"`
	Decision     Decision  `json:"decision"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeveloperLicense is proof of developer-program enrollment. Only the token
// hash is ever persisted; the raw token is revealed once at issuance.
type DeveloperLicense struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	TokenHash string       `json:"-"`
	Lifetime  bool         `json:"lifetime"`
	IssuedAt  time.Time    `json:"issued_at"`
	RevokedAt sql.NullTime `json:"revoked_at"`
}

// Active reports whether the license has not been revoked.
func (l *DeveloperLicense) Active() bool {
	return !l.RevokedAt.Valid
}

// Organization is a party in the marketplace, either a developer studio or a
// robot manufacturer with review authority over its own brand.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsOEM     bool      `json:"is_oem"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a minimal identity record. Authentication lives elsewhere; the core
// only needs user ids and org memberships.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
