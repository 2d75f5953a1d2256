// Package workflow implements the submission review state machine and the
// service that drives submissions through it.
package workflow

// Status is a submission's position in the review pipeline.
type Status string

// Submission status constants.
const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusPlatformReview   Status = "platform_review"
	StatusOemReview        Status = "oem_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
)

// Role identifies the kind of actor attempting a transition.
type Role string

// Actor roles.
const (
	RoleDeveloper   Role = "developer"
	RoleSystem      Role = "system"
	RoleOemReviewer Role = "oem_reviewer"
)

// Action is a requested state transition.
type Action string

// Transition actions.
const (
	ActionSubmit              Action = "submit"
	ActionBeginPlatformReview Action = "begin_platform_review"
	ActionPassPlatformReview  Action = "pass_platform_review"
	ActionFailPlatformReview  Action = "fail_platform_review"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionRequestChanges      Action = "request_changes"
)

type transition struct {
	to   Status
	role Role
}

// transitions is the authoritative table. Anything not listed here is
// illegal. Data guards (payload validity, notes length, review outcome) are
// enforced by the service before the transition is committed.
var transitions = map[Status]map[Action]transition{
	StatusDraft: {
		ActionSubmit: {StatusSubmitted, RoleDeveloper},
	},
	StatusSubmitted: {
		ActionBeginPlatformReview: {StatusPlatformReview, RoleSystem},
	},
	StatusPlatformReview: {
		ActionPassPlatformReview: {StatusOemReview, RoleSystem},
		ActionFailPlatformReview: {StatusChangesRequested, RoleSystem},
	},
	StatusOemReview: {
		ActionApprove:        {StatusApproved, RoleOemReviewer},
		ActionReject:         {StatusRejected, RoleOemReviewer},
		ActionRequestChanges: {StatusChangesRequested, RoleOemReviewer},
	},
	StatusChangesRequested: {
		ActionSubmit: {StatusSubmitted, RoleDeveloper},
	},
}

// Next returns the status the submission moves to when role performs action
// from the current status. Actor authorization is checked independently of
// transition legality: an action that exists for the current status but
// belongs to another role fails Unauthorized, not InvalidTransition.
func Next(from Status, action Action, role Role) (Status, error) {
	t, ok := transitions[from][action]
	if !ok {
		return "", &InvalidTransitionError{From: from, Action: action, Actor: role}
	}
	if t.role != role {
		return "", &UnauthorizedError{Action: action, Actor: role, Required: t.role}
	}
	return t.to, nil
}

// IsTerminal reports whether no transitions lead out of the status.
func IsTerminal(s Status) bool {
	return s == StatusApproved || s == StatusRejected
}

// NeedsDeveloperAction reports whether the submission is waiting on its owner.
func NeedsDeveloperAction(s Status) bool {
	return s == StatusDraft || s == StatusChangesRequested
}

// InReview reports whether the submission is in an automated or human review
// step.
func InReview(s Status) bool {
	return s == StatusSubmitted || s == StatusPlatformReview || s == StatusOemReview
}

// ValidStatus reports whether s is a known submission status.
func ValidStatus(s Status) bool {
	if IsTerminal(s) {
		return true
	}
	_, ok := transitions[s]
	return ok
}
