package workflow

import (
	"context"
	"time"

	"github.com/roboskills/skillhub/models"
)

// Store is the data-access collaborator the workflow depends on. Each method
// is assumed atomic at the single-record level.
type Store interface {
	CreateSkill(ctx context.Context, skill *models.Skill) error
	GetSkill(ctx context.Context, id string) (*models.Skill, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetSkillStatus(ctx context.Context, skillID string, status models.SkillStatus) error

	CreateSkillVersion(ctx context.Context, version *models.SkillVersion) error
	GetSkillVersion(ctx context.Context, id string) (*models.SkillVersion, error)
	ListSkillVersions(ctx context.Context, skillID string) ([]*models.SkillVersion, error)
	SetSkillVersionVisibility(ctx context.Context, versionID string, v models.Visibility) error

	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	// ActiveSubmissionExists reports whether the version already has a
	// submission in a non-terminal status.
	ActiveSubmissionExists(ctx context.Context, versionID string) (bool, error)
	// CompareAndSetStatus atomically moves the submission from expected to
	// next. It returns false without error when the stored status no longer
	// matches expected.
	CompareAndSetStatus(ctx context.Context, id string, expected, next Status) (bool, error)
	SetPlatformReview(ctx context.Context, id string, reportJSON string, notes string, at time.Time) error
	BumpResubmitCount(ctx context.Context, id string) error
	// ListStrandedPlatformReviews returns submissions sitting in
	// platform_review with no persisted report since before the cutoff.
	ListStrandedPlatformReviews(ctx context.Context, cutoff time.Time) ([]*models.Submission, error)

	// CommitDecision atomically moves the submission from expected to next
	// and records the decision in the same transaction. It returns false
	// without error when the stored status no longer matches expected.
	CommitDecision(ctx context.Context, rec *models.OemReview, expected, next Status) (bool, error)
	ListOemReviews(ctx context.Context, submissionID string) ([]*models.OemReview, error)
}

// Directory answers org-membership questions. Identity and authentication are
// external; the workflow only resolves memberships.
type Directory interface {
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
	OrganizationsOf(ctx context.Context, userID string) ([]string, error)
}
