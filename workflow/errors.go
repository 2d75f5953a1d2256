package workflow

import (
	"fmt"
	"strings"

	"github.com/roboskills/skillhub/manifest"
)

// Error kind identifiers, stable across the API surface.
const (
	KindValidation             = "validation_error"
	KindInvalidTransition      = "invalid_transition"
	KindUnauthorized           = "unauthorized"
	KindNotesRequired          = "notes_required"
	KindNotReviewable          = "not_reviewable"
	KindConcurrentModification = "concurrent_modification"
	KindNotFound               = "not_found"
)

// Kinder is implemented by all domain errors so callers can map them to wire
// responses without string matching.
type Kinder interface {
	Kind() string
}

// ValidationError reports structural problems with submitted data. It never
// partially applies state.
type ValidationError struct {
	Errors []manifest.FieldError `json:"errors"`
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []manifest.FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Kind implements Kinder.
func (e *ValidationError) Kind() string { return KindValidation }

// InvalidTransitionError reports a state change not present in the transition
// table. The submission is left untouched.
type InvalidTransitionError struct {
	From   Status `json:"from"`
	Action Action `json:"action"`
	Actor  Role   `json:"actor"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %q is not available from status %q", e.Action, e.From)
}

// Kind implements Kinder.
func (e *InvalidTransitionError) Kind() string { return KindInvalidTransition }

// UnauthorizedError reports that the actor lacks the role or org membership
// the attempted action requires. Distinct from InvalidTransition so callers
// can render "you cannot do this" vs "this cannot be done now".
type UnauthorizedError struct {
	Action   Action `json:"action,omitempty"`
	Actor    Role   `json:"actor,omitempty"`
	Required Role   `json:"required,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return "unauthorized: " + e.Reason
	}
	return fmt.Sprintf("unauthorized: action %q requires role %q", e.Action, e.Required)
}

// Kind implements Kinder.
func (e *UnauthorizedError) Kind() string { return KindUnauthorized }

// NotesRequiredError reports a negative OEM decision without sufficient
// justification.
type NotesRequiredError struct {
	MinLength int `json:"min_length"`
	Got       int `json:"got"`
}

func (e *NotesRequiredError) Error() string {
	return fmt.Sprintf("decision notes must be at least %d characters (got %d)", e.MinLength, e.Got)
}

// Kind implements Kinder.
func (e *NotesRequiredError) Kind() string { return KindNotesRequired }

// NotReviewableError reports a decision attempted on a submission that is not
// currently awaiting OEM review.
type NotReviewableError struct {
	Status   Status `json:"status"`
	Required Status `json:"required"`
}

func (e *NotReviewableError) Error() string {
	return fmt.Sprintf("submission is %q, decisions require %q", e.Status, e.Required)
}

// Kind implements Kinder.
func (e *NotReviewableError) Kind() string { return KindNotReviewable }

// ConcurrentModificationError reports that the optimistic-concurrency guard
// tripped: the submission status changed between read and write. The caller
// must reload and retry.
type ConcurrentModificationError struct {
	SubmissionID string `json:"submission_id"`
	Expected     Status `json:"expected"`
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("submission %s is no longer in status %q", e.SubmissionID, e.Expected)
}

// Kind implements Kinder.
func (e *ConcurrentModificationError) Kind() string { return KindConcurrentModification }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Kind implements Kinder.
func (e *NotFoundError) Kind() string { return KindNotFound }
