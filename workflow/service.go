package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/roboskills/skillhub/manifest"
	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/review"
)

// MinDecisionNotes is the minimum justification length for any OEM decision
// other than approved.
const MinDecisionNotes = 10

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service drives skills, versions and submissions through the review
// workflow. All operations take the acting user id explicitly; there is no
// ambient session state.
type Service struct {
	store  Store
	dir    Directory
	engine *review.Engine
	logger *slog.Logger

	// maxResubmissions bounds changes_requested -> submitted cycles per
	// submission. Zero means unlimited.
	maxResubmissions int
}

// NewService creates a workflow service.
func NewService(store Store, dir Directory, engine *review.Engine, logger *slog.Logger, maxResubmissions int) *Service {
	return &Service{
		store:            store,
		dir:              dir,
		engine:           engine,
		logger:           logger,
		maxResubmissions: maxResubmissions,
	}
}

// SkillInput is the payload for creating a skill listing.
type SkillInput struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	IsFree     bool   `json:"is_free"`
}

// CreateSkill creates a new skill in draft status.
func (s *Service) CreateSkill(ctx context.Context, ownerID string, in SkillInput) (*models.Skill, error) {
	var errs []manifest.FieldError
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, manifest.FieldError{Field: "name", Message: "name is required"})
	}
	if !slugPattern.MatchString(in.Slug) {
		errs = append(errs, manifest.FieldError{Field: "slug", Message: "slug must be lowercase letters, digits and hyphens"})
	}
	if in.PriceCents < 0 {
		errs = append(errs, manifest.FieldError{Field: "price_cents", Message: "price cannot be negative"})
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	exists, err := s.store.SlugExists(ctx, in.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		return nil, NewValidationError("slug", fmt.Sprintf("slug %q is already taken", in.Slug))
	}

	skill := &models.Skill{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Name:       in.Name,
		Slug:       in.Slug,
		Category:   in.Category,
		Status:     models.SkillDraft,
		PriceCents: in.PriceCents,
		IsFree:     in.IsFree,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateSkill(ctx, skill); err != nil {
		return nil, fmt.Errorf("failed to create skill: %w", err)
	}

	s.logger.Info("skill created", "skill_id", skill.ID, "slug", skill.Slug, "owner", ownerID)
	return skill, nil
}

// VersionInput is the payload for creating a skill version.
type VersionInput struct {
	ManifestYAML   string           `json:"manifest_yaml"`
	ReleaseNotes   string           `json:"release_notes"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
	PackagePath    string           `json:"package_path"`
	PackageSize    int64            `json:"package_size"`
	PackageSHA256  string           `json:"package_sha256"`
	Assets         models.Assets    `json:"assets"`
	CompatibleOEMs []string         `json:"compatible_oems"`
}

// CreateVersion creates a new immutable version snapshot under a skill. The
// version string must order strictly above every existing version of the
// skill.
func (s *Service) CreateVersion(ctx context.Context, skillID, actorID string, in VersionInput) (*models.SkillVersion, error) {
	skill, err := s.store.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if skill.OwnerID != actorID {
		return nil, &UnauthorizedError{Reason: "only the skill owner may create versions"}
	}

	m, err := manifest.Parse([]byte(in.ManifestYAML))
	if err != nil {
		return nil, NewValidationError("manifest", err.Error())
	}
	if errs := m.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if m.Name != skill.Name {
		return nil, NewValidationError("manifest.name",
			fmt.Sprintf("manifest name %q does not match skill name %q", m.Name, skill.Name))
	}
	if !in.RiskLevel.Valid() {
		return nil, NewValidationError("risk_level", fmt.Sprintf("unknown risk level %q", in.RiskLevel))
	}

	next, err := manifest.ParseVersion(m.Version)
	if err != nil {
		return nil, NewValidationError("manifest.version", err.Error())
	}
	existing, err := s.store.ListSkillVersions(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	for _, v := range existing {
		prior, err := manifest.ParseVersion(v.Version)
		if err != nil {
			return nil, fmt.Errorf("stored version %q is unparseable: %w", v.Version, err)
		}
		if !next.GreaterThan(prior) {
			return nil, NewValidationError("manifest.version",
				fmt.Sprintf("version %s must be greater than existing version %s", m.Version, v.Version))
		}
	}

	version := &models.SkillVersion{
		ID:             uuid.New().String(),
		SkillID:        skillID,
		Version:        m.Version,
		ManifestYAML:   in.ManifestYAML,
		ReleaseNotes:   in.ReleaseNotes,
		RiskLevel:      in.RiskLevel,
		Visibility:     models.VisibilityPrivate,
		PackagePath:    in.PackagePath,
		PackageSize:    in.PackageSize,
		PackageSHA256:  in.PackageSHA256,
		Assets:         in.Assets,
		CompatibleOEMs: in.CompatibleOEMs,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateSkillVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	s.logger.Info("version created", "version_id", version.ID, "skill_id", skillID, "version", version.Version)
	return version, nil
}

// CreateSubmission opens a draft submission for a version. A version may have
// at most one submission in a non-terminal state at a time.
func (s *Service) CreateSubmission(ctx context.Context, versionID, submitterID string, targetOemID string) (*models.Submission, error) {
	version, err := s.store.GetSkillVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	skill, err := s.store.GetSkill(ctx, version.SkillID)
	if err != nil {
		return nil, err
	}
	if skill.OwnerID != submitterID {
		return nil, &UnauthorizedError{Reason: "only the skill owner may submit its versions"}
	}

	active, err := s.store.ActiveSubmissionExists(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active submissions: %w", err)
	}
	if active {
		return nil, NewValidationError("version_id", "version already has a submission under review")
	}

	target := sql.NullString{}
	if targetOemID != "" {
		if !contains(version.CompatibleOEMs, targetOemID) {
			return nil, NewValidationError("target_oem_id",
				fmt.Sprintf("version does not declare compatibility with OEM %q", targetOemID))
		}
		target = sql.NullString{String: targetOemID, Valid: true}
	} else if len(version.CompatibleOEMs) == 0 {
		return nil, NewValidationError("target_oem_id",
			"version declares no compatible OEMs; a target OEM is required")
	}

	sub := &models.Submission{
		ID:          uuid.New().String(),
		VersionID:   versionID,
		SubmitterID: submitterID,
		TargetOemID: target,
		Status:      string(StatusDraft),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info("submission created", "submission_id", sub.ID, "version_id", versionID, "target_oem", targetOemID)
	return sub, nil
}

// GetSkill loads a skill.
func (s *Service) GetSkill(ctx context.Context, id string) (*models.Skill, error) {
	return s.store.GetSkill(ctx, id)
}

// GetSubmission loads a submission.
func (s *Service) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return s.store.GetSubmission(ctx, id)
}

// Advance is the single state-transition entry point. Developer actions are
// performed directly; OEM decision actions are routed through Decide with the
// payload as notes. System transitions cannot be requested externally.
func (s *Service) Advance(ctx context.Context, submissionID, actorID string, action Action, payload string) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionSubmit:
		return s.submit(ctx, sub, actorID)
	case ActionApprove:
		return s.Decide(ctx, submissionID, actorID, models.DecisionApproved, payload)
	case ActionReject:
		return s.Decide(ctx, submissionID, actorID, models.DecisionRejected, payload)
	case ActionRequestChanges:
		return s.Decide(ctx, submissionID, actorID, models.DecisionChangesRequested, payload)
	case ActionBeginPlatformReview, ActionPassPlatformReview, ActionFailPlatformReview:
		return nil, &UnauthorizedError{Action: action, Required: RoleSystem,
			Reason: fmt.Sprintf("action %q is system-driven and cannot be requested", action)}
	default:
		return nil, &InvalidTransitionError{From: Status(sub.Status), Action: action}
	}
}

// submit moves a draft or changes_requested submission to submitted and runs
// the platform review synchronously.
func (s *Service) submit(ctx context.Context, sub *models.Submission, actorID string) (*models.Submission, error) {
	if sub.SubmitterID != actorID {
		return nil, &UnauthorizedError{Action: ActionSubmit, Required: RoleDeveloper,
			Reason: "only the submission owner may submit"}
	}

	from := Status(sub.Status)
	if _, err := Next(from, ActionSubmit, RoleDeveloper); err != nil {
		return nil, err
	}

	resubmitting := from == StatusChangesRequested
	if resubmitting && s.maxResubmissions > 0 && sub.ResubmitCount >= s.maxResubmissions {
		return nil, NewValidationError("submission",
			fmt.Sprintf("resubmission limit of %d reached", s.maxResubmissions))
	}

	// Guard: the wizard payload is re-validated from scratch on every
	// submit, including resubmissions.
	version, err := s.store.GetSkillVersion(ctx, sub.VersionID)
	if err != nil {
		return nil, err
	}
	if err := s.validateSubmitPayload(version); err != nil {
		return nil, err
	}

	swapped, err := s.store.CompareAndSetStatus(ctx, sub.ID, from, StatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if !swapped {
		return nil, &ConcurrentModificationError{SubmissionID: sub.ID, Expected: from}
	}
	if resubmitting {
		if err := s.store.BumpResubmitCount(ctx, sub.ID); err != nil {
			return nil, fmt.Errorf("failed to bump resubmit count: %w", err)
		}
	}

	s.logger.Info("submission submitted", "submission_id", sub.ID, "resubmission", resubmitting)

	if err := s.runPlatformReview(ctx, sub.ID, version); err != nil {
		return nil, err
	}
	return s.store.GetSubmission(ctx, sub.ID)
}

// validateSubmitPayload checks that every wizard step is present and valid
// before a submission may leave draft.
func (s *Service) validateSubmitPayload(version *models.SkillVersion) error {
	var errs []manifest.FieldError

	m, err := manifest.Parse([]byte(version.ManifestYAML))
	if err != nil {
		errs = append(errs, manifest.FieldError{Field: "manifest", Message: err.Error()})
	} else {
		errs = append(errs, m.Validate()...)
	}
	if version.PackagePath == "" || version.PackageSHA256 == "" {
		errs = append(errs, manifest.FieldError{Field: "package", Message: "package upload is incomplete"})
	}
	if !version.RiskLevel.Valid() {
		errs = append(errs, manifest.FieldError{Field: "risk_level", Message: "risk level is not set"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// runPlatformReview drives submitted -> platform_review, executes the check
// battery and routes the submission on the report outcome. The report is
// persisted verbatim before the final transition so a crash in between is
// recoverable by the sweeper.
func (s *Service) runPlatformReview(ctx context.Context, submissionID string, version *models.SkillVersion) error {
	next, err := Next(StatusSubmitted, ActionBeginPlatformReview, RoleSystem)
	if err != nil {
		return err
	}
	swapped, err := s.store.CompareAndSetStatus(ctx, submissionID, StatusSubmitted, next)
	if err != nil {
		return fmt.Errorf("failed to enter platform review: %w", err)
	}
	if !swapped {
		return &ConcurrentModificationError{SubmissionID: submissionID, Expected: StatusSubmitted}
	}

	return s.completePlatformReview(ctx, submissionID, version)
}

// completePlatformReview runs the battery against a submission already in
// platform_review and commits the outcome transition.
func (s *Service) completePlatformReview(ctx context.Context, submissionID string, version *models.SkillVersion) error {
	result := s.engine.Run(ctx, version)

	reportJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode review report: %w", err)
	}
	if err := s.store.SetPlatformReview(ctx, submissionID, string(reportJSON), result.Summary(), result.Timestamp); err != nil {
		return fmt.Errorf("failed to persist review report: %w", err)
	}

	action := ActionFailPlatformReview
	if result.Passed {
		action = ActionPassPlatformReview
	}
	next, err := Next(StatusPlatformReview, action, RoleSystem)
	if err != nil {
		return err
	}
	swapped, err := s.store.CompareAndSetStatus(ctx, submissionID, StatusPlatformReview, next)
	if err != nil {
		return fmt.Errorf("failed to commit review outcome: %w", err)
	}
	if !swapped {
		return &ConcurrentModificationError{SubmissionID: submissionID, Expected: StatusPlatformReview}
	}

	s.logger.Info("platform review completed",
		"submission_id", submissionID, "passed", result.Passed, "failed_checks", result.FailedChecks())
	return nil
}

// Decide records an OEM reviewer's decision on a submission in oem_review.
// The status compare-and-set makes the first committed decision win; a
// concurrent loser gets ConcurrentModification and must reload.
func (s *Service) Decide(ctx context.Context, submissionID, reviewerID string, decision models.Decision, notes string) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if Status(sub.Status) != StatusOemReview {
		return nil, &NotReviewableError{Status: Status(sub.Status), Required: StatusOemReview}
	}

	version, err := s.store.GetSkillVersion(ctx, sub.VersionID)
	if err != nil {
		return nil, err
	}
	orgID, err := s.authorizeReviewer(ctx, sub, version, reviewerID)
	if err != nil {
		return nil, err
	}

	if !decision.Valid() {
		return nil, NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}
	// Notes length counts characters, not bytes.
	if trimmed := strings.TrimSpace(notes); decision != models.DecisionApproved && utf8.RuneCountInString(trimmed) < MinDecisionNotes {
		return nil, &NotesRequiredError{MinLength: MinDecisionNotes, Got: utf8.RuneCountInString(trimmed)}
	}

	next, err := Next(StatusOemReview, actionFor(decision), RoleOemReviewer)
	if err != nil {
		return nil, err
	}

	// The status transition and the decision record commit together: a
	// failure leaves the submission in oem_review with no partial trace.
	rec := &models.OemReview{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		OrgID:        orgID,
		ReviewerID:   reviewerID,
		Decision:     decision,
		Notes:        notes,
		CreatedAt:    time.Now().UTC(),
	}
	swapped, err := s.store.CommitDecision(ctx, rec, StatusOemReview, next)
	if err != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", err)
	}
	if !swapped {
		return nil, &ConcurrentModificationError{SubmissionID: submissionID, Expected: StatusOemReview}
	}

	if decision == models.DecisionApproved {
		if err := s.publish(ctx, version); err != nil {
			return nil, err
		}
	}

	s.logger.Info("oem decision recorded",
		"submission_id", submissionID, "org_id", orgID, "reviewer", reviewerID, "decision", decision)
	return s.store.GetSubmission(ctx, submissionID)
}

// authorizeReviewer resolves the organization on whose behalf the reviewer
// acts. For a targeted submission that is the target OEM; for a null target
// any of the version's declared-compatible OEM orgs qualifies.
func (s *Service) authorizeReviewer(ctx context.Context, sub *models.Submission, version *models.SkillVersion, reviewerID string) (string, error) {
	if sub.TargetOemID.Valid {
		ok, err := s.dir.IsMember(ctx, reviewerID, sub.TargetOemID.String)
		if err != nil {
			return "", fmt.Errorf("failed to check membership: %w", err)
		}
		if !ok {
			return "", &UnauthorizedError{Required: RoleOemReviewer,
				Reason: "reviewer does not belong to the submission's target OEM"}
		}
		return sub.TargetOemID.String, nil
	}

	orgs, err := s.dir.OrganizationsOf(ctx, reviewerID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve organizations: %w", err)
	}
	for _, org := range orgs {
		if contains(version.CompatibleOEMs, org) {
			return org, nil
		}
	}
	return "", &UnauthorizedError{Required: RoleOemReviewer,
		Reason: "reviewer does not belong to any OEM the version declares compatibility with"}
}

// publish flips the version public and the skill published. Reached only
// through an approved transition, which is terminal, so it cannot re-trigger.
func (s *Service) publish(ctx context.Context, version *models.SkillVersion) error {
	if err := s.store.SetSkillVersionVisibility(ctx, version.ID, models.VisibilityPublic); err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}
	if err := s.store.SetSkillStatus(ctx, version.SkillID, models.SkillPublished); err != nil {
		return fmt.Errorf("failed to publish skill: %w", err)
	}
	s.logger.Info("version published", "version_id", version.ID, "skill_id", version.SkillID)
	return nil
}

// PlatformReviewResult returns the persisted review report for a submission.
func (s *Service) PlatformReviewResult(ctx context.Context, submissionID string) (*review.Result, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.PlatformReviewJSON.Valid {
		return nil, &NotFoundError{Resource: "platform review report", ID: submissionID}
	}

	var result review.Result
	if err := json.Unmarshal([]byte(sub.PlatformReviewJSON.String), &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored report: %w", err)
	}
	return &result, nil
}

// SweepStranded re-drives submissions stuck in platform_review with no
// persisted report (a crash between the status write and the report write).
// It returns the number of submissions completed.
func (s *Service) SweepStranded(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stranded, err := s.store.ListStrandedPlatformReviews(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stranded reviews: %w", err)
	}

	completed := 0
	for _, sub := range stranded {
		version, err := s.store.GetSkillVersion(ctx, sub.VersionID)
		if err != nil {
			s.logger.Error("failed to load version for stranded review", "submission_id", sub.ID, "error", err)
			continue
		}
		if err := s.completePlatformReview(ctx, sub.ID, version); err != nil {
			s.logger.Error("failed to complete stranded review", "submission_id", sub.ID, "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}

func actionFor(d models.Decision) Action {
	switch d {
	case models.DecisionApproved:
		return ActionApprove
	case models.DecisionRejected:
		return ActionReject
	default:
		return ActionRequestChanges
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
