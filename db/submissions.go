package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/workflow"
)

// CreateSubmission inserts a new submission in draft.
func (db *DB) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	query := `
		INSERT INTO submissions (id, version_id, submitter_id, target_oem_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		sub.ID, sub.VersionID, sub.SubmitterID, sub.TargetOemID, sub.Status, sub.CreatedAt, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

const submissionColumns = `
	id, version_id, submitter_id, target_oem_id, status, resubmit_count,
	platform_review_json, platform_review_notes, oem_review_notes,
	created_at, platform_reviewed_at, oem_reviewed_at
`

func scanSubmission(row interface{ Scan(...any) error }) (*models.Submission, error) {
	sub := &models.Submission{}
	err := row.Scan(
		&sub.ID,
		&sub.VersionID,
		&sub.SubmitterID,
		&sub.TargetOemID,
		&sub.Status,
		&sub.ResubmitCount,
		&sub.PlatformReviewJSON,
		&sub.PlatformReviewNotes,
		&sub.OemReviewNotes,
		&sub.CreatedAt,
		&sub.PlatformReviewedAt,
		&sub.OemReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmission retrieves a submission by ID.
func (db *DB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`

	sub, err := scanSubmission(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &workflow.NotFoundError{Resource: "submission", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// ActiveSubmissionExists reports whether the version has a submission in a
// non-terminal status.
func (db *DB) ActiveSubmissionExists(ctx context.Context, versionID string) (bool, error) {
	query := `
		SELECT COUNT(1) FROM submissions
		WHERE version_id = ? AND status NOT IN (?, ?)
	`

	var n int
	err := db.QueryRowContext(ctx, query, versionID, workflow.StatusApproved, workflow.StatusRejected).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count active submissions: %w", err)
	}
	return n > 0, nil
}

// CompareAndSetStatus atomically moves a submission from expected to next.
// Returns false when the stored status no longer matches expected.
func (db *DB) CompareAndSetStatus(ctx context.Context, id string, expected, next workflow.Status) (bool, error) {
	query := `
		UPDATE submissions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := db.ExecContext(ctx, query, next, time.Now().UTC(), id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// SetPlatformReview persists the review report verbatim on the submission.
func (db *DB) SetPlatformReview(ctx context.Context, id string, reportJSON string, notes string, at time.Time) error {
	query := `
		UPDATE submissions
		SET platform_review_json = ?, platform_review_notes = ?, platform_reviewed_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := db.ExecContext(ctx, query, reportJSON, notes, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set platform review: %w", err)
	}

	return nil
}

// BumpResubmitCount increments the submission's resubmission counter.
func (db *DB) BumpResubmitCount(ctx context.Context, id string) error {
	query := `
		UPDATE submissions
		SET resubmit_count = resubmit_count + 1, updated_at = ?
		WHERE id = ?
	`

	_, err := db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to bump resubmit count: %w", err)
	}

	return nil
}

// ListStrandedPlatformReviews returns submissions in platform_review with no
// persisted report whose last update predates the cutoff.
func (db *DB) ListStrandedPlatformReviews(ctx context.Context, cutoff time.Time) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = ? AND platform_review_json IS NULL AND updated_at < ?
		ORDER BY updated_at ASC
	`

	rows, err := db.QueryContext(ctx, query, workflow.StatusPlatformReview, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stranded reviews: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return subs, nil
}
