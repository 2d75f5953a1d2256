package db

import (
	"context"
	"fmt"
	"time"

	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/workflow"
)

// CommitDecision applies an OEM decision in a single transaction: the guarded
// status transition, the submission's review notes and the immutable decision
// record commit or roll back together. The decision table is the audit trail;
// its rows are never updated or deleted. Returns false without error when the
// stored status no longer matches expected.
func (db *DB) CommitDecision(ctx context.Context, rec *models.OemReview, expected, next workflow.Status) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, oem_review_notes = ?, oem_reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, next, rec.Notes, rec.CreatedAt, time.Now().UTC(), rec.SubmissionID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO oem_reviews (id, submission_id, org_id, reviewer_id, decision, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SubmissionID, rec.OrgID, rec.ReviewerID, rec.Decision, rec.Notes, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit decision: %w", err)
	}
	return true, nil
}

// ListOemReviews retrieves the decision history for a submission, oldest
// first.
func (db *DB) ListOemReviews(ctx context.Context, submissionID string) ([]*models.OemReview, error) {
	query := `
		SELECT id, submission_id, org_id, reviewer_id, decision, notes, created_at
		FROM oem_reviews
		WHERE submission_id = ?
		ORDER BY created_at ASC
	`

	rows, err := db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query oem reviews: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var reviews []*models.OemReview
	for rows.Next() {
		rec := &models.OemReview{}
		err := rows.Scan(
			&rec.ID,
			&rec.SubmissionID,
			&rec.OrgID,
			&rec.ReviewerID,
			&rec.Decision,
			&rec.Notes,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oem review: %w", err)
		}
		reviews = append(reviews, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return reviews, nil
}
