package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/review"
)

// memStore is an in-memory Store used to exercise the workflow without a
// database.
type memStore struct {
	mu          sync.Mutex
	skills      map[string]*models.Skill
	versions    map[string]*models.SkillVersion
	submissions map[string]*models.Submission
	reviews     []*models.OemReview

	// failNextCAS makes the next status compare-and-set report a lost race.
	failNextCAS bool
	// failNextCommit makes the next CommitDecision fail outright, leaving
	// the submission untouched like a rolled-back transaction.
	failNextCommit bool
}

func newMemStore() *memStore {
	return &memStore{
		skills:      map[string]*models.Skill{},
		versions:    map[string]*models.SkillVersion{},
		submissions: map[string]*models.Submission{},
	}
}

func (m *memStore) CreateSkill(_ context.Context, s *models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.skills[s.ID] = &cp
	return nil
}

func (m *memStore) GetSkill(_ context.Context, id string) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skills[id]
	if !ok {
		return nil, &NotFoundError{Resource: "skill", ID: id}
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.skills {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetSkillStatus(_ context.Context, skillID string, status models.SkillStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skills[skillID]
	if !ok {
		return &NotFoundError{Resource: "skill", ID: skillID}
	}
	s.Status = status
	return nil
}

func (m *memStore) CreateSkillVersion(_ context.Context, v *models.SkillVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.versions[v.ID] = &cp
	return nil
}

func (m *memStore) GetSkillVersion(_ context.Context, id string) (*models.SkillVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, &NotFoundError{Resource: "skill version", ID: id}
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) ListSkillVersions(_ context.Context, skillID string) ([]*models.SkillVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SkillVersion
	for _, v := range m.versions {
		if v.SkillID == skillID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) SetSkillVersionVisibility(_ context.Context, versionID string, vis models.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[versionID]
	if !ok {
		return &NotFoundError{Resource: "skill version", ID: versionID}
	}
	v.Visibility = vis
	return nil
}

func (m *memStore) CreateSubmission(_ context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.submissions[sub.ID] = &cp
	return nil
}

func (m *memStore) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, &NotFoundError{Resource: "submission", ID: id}
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) ActiveSubmissionExists(_ context.Context, versionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.submissions {
		if sub.VersionID == versionID && !IsTerminal(Status(sub.Status)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CompareAndSetStatus(_ context.Context, id string, expected, next Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextCAS {
		m.failNextCAS = false
		return false, nil
	}
	sub, ok := m.submissions[id]
	if !ok {
		return false, &NotFoundError{Resource: "submission", ID: id}
	}
	if Status(sub.Status) != expected {
		return false, nil
	}
	sub.Status = string(next)
	return true, nil
}

func (m *memStore) SetPlatformReview(_ context.Context, id string, reportJSON string, notes string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.submissions[id]
	sub.PlatformReviewJSON.String, sub.PlatformReviewJSON.Valid = reportJSON, true
	sub.PlatformReviewNotes.String, sub.PlatformReviewNotes.Valid = notes, true
	sub.PlatformReviewedAt.Time, sub.PlatformReviewedAt.Valid = at, true
	return nil
}

func (m *memStore) BumpResubmitCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[id].ResubmitCount++
	return nil
}

func (m *memStore) ListStrandedPlatformReviews(_ context.Context, _ time.Time) ([]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, sub := range m.submissions {
		if Status(sub.Status) == StatusPlatformReview && !sub.PlatformReviewJSON.Valid {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CommitDecision(_ context.Context, rec *models.OemReview, expected, next Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextCAS {
		m.failNextCAS = false
		return false, nil
	}
	if m.failNextCommit {
		m.failNextCommit = false
		return false, fmt.Errorf("commit failed")
	}
	sub, ok := m.submissions[rec.SubmissionID]
	if !ok {
		return false, &NotFoundError{Resource: "submission", ID: rec.SubmissionID}
	}
	if Status(sub.Status) != expected {
		return false, nil
	}
	sub.Status = string(next)
	sub.OemReviewNotes.String, sub.OemReviewNotes.Valid = rec.Notes, true
	sub.OemReviewedAt.Time, sub.OemReviewedAt.Valid = rec.CreatedAt, true
	cp := *rec
	m.reviews = append(m.reviews, &cp)
	return true, nil
}

func (m *memStore) ListOemReviews(_ context.Context, submissionID string) ([]*models.OemReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.OemReview
	for _, rec := range m.reviews {
		if rec.SubmissionID == submissionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// setVersion replaces a stored version, standing in for the wizard editing
// steps the core treats as external.
func (m *memStore) setVersion(v *models.SkillVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.versions[v.ID] = &cp
}

// memDirectory is an in-memory Directory.
type memDirectory struct {
	memberships map[string][]string // user -> orgs
}

func (d *memDirectory) IsMember(_ context.Context, userID, orgID string) (bool, error) {
	for _, org := range d.memberships[userID] {
		if org == orgID {
			return true, nil
		}
	}
	return false, nil
}

func (d *memDirectory) OrganizationsOf(_ context.Context, userID string) ([]string, error) {
	return d.memberships[userID], nil
}

// memPackages is an in-memory review.PackageStore.
type memPackages struct {
	sizes  map[string]int64
	hashes map[string]string
}

func (p *memPackages) Stat(_ context.Context, path string) (int64, string, error) {
	size, ok := p.sizes[path]
	if !ok {
		return 0, "", fmt.Errorf("no such package: %s", path)
	}
	return size, p.hashes[path], nil
}

const (
	devID       = "user-dev"
	reviewerA   = "user-reviewer-a" // Member of oem-acme.
	reviewerB   = "user-reviewer-b" // Member of oem-borg.
	outsiderID  = "user-outsider"   // Member of no OEM.
	oemAcme     = "oem-acme"
	oemBorg     = "oem-borg"
	packagePath = "pkg/skill.tar.gz"
	packageHash = "deadbeef"
	packageSize = int64(4096)
)

type fixture struct {
	svc   *Service
	store *memStore
	pkgs  *memPackages
}

func newFixture(t *testing.T, maxResubmissions int) *fixture {
	t.Helper()
	store := newMemStore()
	dir := &memDirectory{memberships: map[string][]string{
		reviewerA:  {oemAcme},
		reviewerB:  {oemBorg},
		outsiderID: {"org-unrelated"},
	}}
	pkgs := &memPackages{
		sizes:  map[string]int64{packagePath: packageSize},
		hashes: map[string]string{packagePath: packageHash},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, dir, review.NewEngine(pkgs), logger, maxResubmissions)
	return &fixture{svc: svc, store: store, pkgs: pkgs}
}

func manifestYAML(version string) string {
	return `
name: Warehouse Navigator
version: ` + version + `
permissions:
  - name: navigation
    justification: Moves the robot between shelves.
`
}

func versionInput(version string, screenshots int) VersionInput {
	shots := make([]string, screenshots)
	for i := range shots {
		shots[i] = fmt.Sprintf("shot-%d.png", i)
	}
	return VersionInput{
		ManifestYAML:   manifestYAML(version),
		ReleaseNotes:   "Initial release.",
		RiskLevel:      models.RiskMedium,
		PackagePath:    packagePath,
		PackageSize:    packageSize,
		PackageSHA256:  packageHash,
		Assets:         models.Assets{IconPath: "icon.png", Screenshots: shots},
		CompatibleOEMs: []string{oemAcme, oemBorg},
	}
}

func (f *fixture) createSkillAndVersion(t *testing.T, screenshots int) (*models.Skill, *models.SkillVersion) {
	t.Helper()
	ctx := context.Background()

	skill, err := f.svc.CreateSkill(ctx, devID, SkillInput{
		Name: "Warehouse Navigator", Slug: "warehouse-navigator", Category: "logistics", IsFree: true,
	})
	if err != nil {
		t.Fatalf("CreateSkill failed: %v", err)
	}

	version, err := f.svc.CreateVersion(ctx, skill.ID, devID, versionInput("1.0.0", screenshots))
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	return skill, version
}

func TestCreateSkill_Validation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if _, err := f.svc.CreateSkill(ctx, devID, SkillInput{Name: "X", Slug: "Bad Slug!"}); !isKind(err, KindValidation) {
		t.Errorf("Expected validation error for bad slug, got %v", err)
	}

	if _, err := f.svc.CreateSkill(ctx, devID, SkillInput{Name: "X", Slug: "taken", IsFree: true}); err != nil {
		t.Fatalf("CreateSkill failed: %v", err)
	}
	if _, err := f.svc.CreateSkill(ctx, devID, SkillInput{Name: "Y", Slug: "taken", IsFree: true}); !isKind(err, KindValidation) {
		t.Errorf("Expected validation error for duplicate slug, got %v", err)
	}
}

func TestCreateVersion_Monotonicity(t *testing.T) {
	f := newFixture(t, 0)
	skill, _ := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	// Lower and equal versions must fail.
	for _, v := range []string{"0.9.9", "1.0.0"} {
		if _, err := f.svc.CreateVersion(ctx, skill.ID, devID, versionInput(v, 3)); !isKind(err, KindValidation) {
			t.Errorf("Expected validation error for version %s, got %v", v, err)
		}
	}

	// A higher version succeeds.
	if _, err := f.svc.CreateVersion(ctx, skill.ID, devID, versionInput("1.0.1", 3)); err != nil {
		t.Errorf("CreateVersion(1.0.1) failed: %v", err)
	}

	// Only the owner may create versions.
	if _, err := f.svc.CreateVersion(ctx, skill.ID, outsiderID, versionInput("1.0.2", 3)); !isKind(err, KindUnauthorized) {
		t.Errorf("Expected unauthorized for non-owner, got %v", err)
	}
}

func TestCreateSubmission_SingleActive(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	if _, err := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme); err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}

	// A second submission while the first is non-terminal must fail.
	if _, err := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme); !isKind(err, KindValidation) {
		t.Errorf("Expected validation error for second active submission, got %v", err)
	}

	// Target OEM must be declared compatible.
	if _, err := f.svc.CreateSubmission(ctx, version.ID, devID, "oem-unknown"); !isKind(err, KindValidation) {
		t.Errorf("Expected validation error for incompatible target, got %v", err)
	}

	// Only the owner may submit.
	if _, err := f.svc.CreateSubmission(ctx, version.ID, outsiderID, oemAcme); !isKind(err, KindUnauthorized) {
		t.Errorf("Expected unauthorized for non-owner, got %v", err)
	}
}

// The end-to-end review scenario: failed platform review, resubmission,
// unauthorized reviewers, approval and publish side effects.
func TestReviewPipeline_EndToEnd(t *testing.T) {
	f := newFixture(t, 0)
	skill, version := f.createSkillAndVersion(t, 2) // Two screenshots: below minimum.
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}
	if sub.Status != string(StatusDraft) {
		t.Fatalf("Expected draft, got %s", sub.Status)
	}

	// Submitting runs the platform review, which fails on assets.
	sub, err = f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("Advance(submit) failed: %v", err)
	}
	if sub.Status != string(StatusChangesRequested) {
		t.Fatalf("Expected changes_requested, got %s", sub.Status)
	}

	result, err := f.svc.PlatformReviewResult(ctx, sub.ID)
	if err != nil {
		t.Fatalf("PlatformReviewResult failed: %v", err)
	}
	if result.Passed {
		t.Fatal("Expected failed report")
	}
	found := false
	for _, name := range result.FailedChecks() {
		if name == review.CheckAssets {
			found = true
		}
	}
	if !found {
		t.Errorf("Report should name the asset check, failed: %v", result.FailedChecks())
	}

	// The developer cannot take the OEM decision path.
	if _, err := f.svc.Decide(ctx, sub.ID, devID, models.DecisionApproved, ""); !isKind(err, KindNotReviewable) {
		// Not in oem_review yet, so the status gate fires first.
		t.Errorf("Expected not_reviewable, got %v", err)
	}

	// Fix the assets and resubmit.
	fixed, err := f.svc.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission failed: %v", err)
	}
	v, _ := f.store.GetSkillVersion(ctx, fixed.VersionID)
	v.Assets.Screenshots = []string{"a.png", "b.png", "c.png"}
	f.store.setVersion(v)

	sub, err = f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("Advance(resubmit) failed: %v", err)
	}
	if sub.Status != string(StatusOemReview) {
		t.Fatalf("Expected oem_review, got %s", sub.Status)
	}
	if sub.ResubmitCount != 1 {
		t.Errorf("Expected resubmit count 1, got %d", sub.ResubmitCount)
	}

	// A reviewer outside the target org is rejected, and the status holds.
	if _, err := f.svc.Decide(ctx, sub.ID, reviewerB, models.DecisionApproved, ""); !isKind(err, KindUnauthorized) {
		t.Errorf("Expected unauthorized for wrong-org reviewer, got %v", err)
	}
	check, _ := f.svc.GetSubmission(ctx, sub.ID)
	if check.Status != string(StatusOemReview) {
		t.Fatalf("Status changed by failed decision: %s", check.Status)
	}

	// The target-org reviewer approves.
	sub, err = f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, "")
	if err != nil {
		t.Fatalf("Decide(approve) failed: %v", err)
	}
	if sub.Status != string(StatusApproved) {
		t.Fatalf("Expected approved, got %s", sub.Status)
	}

	// Publish side effects.
	gotSkill, _ := f.store.GetSkill(ctx, skill.ID)
	if gotSkill.Status != models.SkillPublished {
		t.Errorf("Expected published skill, got %s", gotSkill.Status)
	}
	gotVersion, _ := f.store.GetSkillVersion(ctx, version.ID)
	if gotVersion.Visibility != models.VisibilityPublic {
		t.Errorf("Expected public version, got %s", gotVersion.Visibility)
	}

	// One immutable decision record exists.
	reviews, _ := f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 1 {
		t.Fatalf("Expected 1 review record, got %d", len(reviews))
	}
	if reviews[0].OrgID != oemAcme || reviews[0].Decision != models.DecisionApproved {
		t.Errorf("Unexpected review record: %+v", reviews[0])
	}

	// Approved is terminal: a second decision fails and nothing re-triggers.
	if _, err := f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, ""); !isKind(err, KindNotReviewable) {
		t.Errorf("Expected not_reviewable on terminal submission, got %v", err)
	}
	reviews, _ = f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 1 {
		t.Errorf("Second approval attempt must not add records, got %d", len(reviews))
	}
}

func TestDecide_NotesGate(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)
	sub, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if sub.Status != string(StatusOemReview) {
		t.Fatalf("Expected oem_review, got %s", sub.Status)
	}

	for _, d := range []models.Decision{models.DecisionRejected, models.DecisionChangesRequested} {
		_, err := f.svc.Decide(ctx, sub.ID, reviewerA, d, "too short")
		var notes *NotesRequiredError
		if !errors.As(err, &notes) {
			t.Fatalf("Decide(%s): expected NotesRequiredError, got %v", d, err)
		}
		if notes.MinLength != MinDecisionNotes {
			t.Errorf("Expected min length %d, got %d", MinDecisionNotes, notes.MinLength)
		}
	}

	// The limit counts characters, not bytes: 15 bytes here but 5 runes.
	_, err = f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionRejected, "日本語メモ")
	var short *NotesRequiredError
	if !errors.As(err, &short) {
		t.Fatalf("Expected NotesRequiredError for multibyte notes, got %v", err)
	}
	if short.Got != 5 {
		t.Errorf("Expected rune count 5, got %d", short.Got)
	}

	// No record, no status change.
	reviews, _ := f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 0 {
		t.Errorf("Short-notes decisions must not create records, got %d", len(reviews))
	}
	check, _ := f.svc.GetSubmission(ctx, sub.ID)
	if check.Status != string(StatusOemReview) {
		t.Errorf("Status changed by rejected decision: %s", check.Status)
	}

	// With sufficient notes the rejection lands.
	sub, err = f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionRejected, "The emergency stop handling is broken.")
	if err != nil {
		t.Fatalf("Decide(rejected) failed: %v", err)
	}
	if sub.Status != string(StatusRejected) {
		t.Errorf("Expected rejected, got %s", sub.Status)
	}
}

func TestDecide_NullTargetFirstWins(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	// No target OEM: any declared-compatible OEM's reviewer may decide.
	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, "")
	sub, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	// An outsider still cannot.
	if _, err := f.svc.Decide(ctx, sub.ID, outsiderID, models.DecisionApproved, ""); !isKind(err, KindUnauthorized) {
		t.Errorf("Expected unauthorized for outsider, got %v", err)
	}

	sub, err = f.svc.Decide(ctx, sub.ID, reviewerB, models.DecisionApproved, "")
	if err != nil {
		t.Fatalf("Decide by compatible OEM failed: %v", err)
	}
	if sub.Status != string(StatusApproved) {
		t.Fatalf("Expected approved, got %s", sub.Status)
	}

	reviews, _ := f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 1 || reviews[0].OrgID != oemBorg {
		t.Errorf("Expected one review by %s, got %+v", oemBorg, reviews)
	}
}

func TestDecide_ConcurrentModification(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)
	if _, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, ""); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	// Simulate losing the status race to another reviewer.
	f.store.failNextCAS = true
	_, err := f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, "")
	var concurrent *ConcurrentModificationError
	if !errors.As(err, &concurrent) {
		t.Fatalf("Expected ConcurrentModificationError, got %v", err)
	}

	// The loser created no record; a reload-and-retry succeeds.
	reviews, _ := f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 0 {
		t.Errorf("Lost race must not create records, got %d", len(reviews))
	}
	if _, err := f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, ""); err != nil {
		t.Errorf("Retry after reload failed: %v", err)
	}
}

// A decision commit that fails mid-write must leave no trace: the submission
// stays in oem_review and no audit record appears.
func TestDecide_FailedCommitChangesNothing(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)
	if _, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, ""); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	f.store.failNextCommit = true
	if _, err := f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, ""); err == nil {
		t.Fatal("Expected error from failed commit")
	}

	check, _ := f.svc.GetSubmission(ctx, sub.ID)
	if check.Status != string(StatusOemReview) {
		t.Fatalf("Failed commit changed status to %s", check.Status)
	}
	reviews, _ := f.store.ListOemReviews(ctx, sub.ID)
	if len(reviews) != 0 {
		t.Errorf("Failed commit must not create records, got %d", len(reviews))
	}

	// A retry lands normally.
	if _, err := f.svc.Decide(ctx, sub.ID, reviewerA, models.DecisionApproved, ""); err != nil {
		t.Errorf("Retry after failed commit failed: %v", err)
	}
}

func TestAdvance_SystemActionsRejected(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)

	for _, action := range []Action{ActionBeginPlatformReview, ActionPassPlatformReview, ActionFailPlatformReview} {
		if _, err := f.svc.Advance(ctx, sub.ID, devID, action, ""); !isKind(err, KindUnauthorized) {
			t.Errorf("Advance(%s): expected unauthorized, got %v", action, err)
		}
	}

	// Unknown actions are invalid transitions.
	if _, err := f.svc.Advance(ctx, sub.ID, devID, Action("frobnicate"), ""); !isKind(err, KindInvalidTransition) {
		t.Errorf("Expected invalid_transition for unknown action, got %v", err)
	}

	// Only the submitter may submit.
	if _, err := f.svc.Advance(ctx, sub.ID, outsiderID, ActionSubmit, ""); !isKind(err, KindUnauthorized) {
		t.Errorf("Expected unauthorized for non-submitter, got %v", err)
	}

	// Status untouched by all of the above.
	check, _ := f.svc.GetSubmission(ctx, sub.ID)
	if check.Status != string(StatusDraft) {
		t.Errorf("Expected draft, got %s", check.Status)
	}
}

func TestAdvance_ResubmissionLimit(t *testing.T) {
	f := newFixture(t, 1)
	_, version := f.createSkillAndVersion(t, 2) // Always fails asset check.
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)
	sub, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if sub.Status != string(StatusChangesRequested) {
		t.Fatalf("Expected changes_requested, got %s", sub.Status)
	}

	// First resubmission is allowed.
	sub, err = f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, "")
	if err != nil {
		t.Fatalf("First resubmission failed: %v", err)
	}

	// Second one hits the limit.
	if _, err := f.svc.Advance(ctx, sub.ID, devID, ActionSubmit, ""); !isKind(err, KindValidation) {
		t.Errorf("Expected validation error at resubmission limit, got %v", err)
	}
}

func TestSweepStranded(t *testing.T) {
	f := newFixture(t, 0)
	_, version := f.createSkillAndVersion(t, 3)
	ctx := context.Background()

	sub, _ := f.svc.CreateSubmission(ctx, version.ID, devID, oemAcme)

	// Force the stranded shape: status platform_review, no report.
	f.store.mu.Lock()
	f.store.submissions[sub.ID].Status = string(StatusPlatformReview)
	f.store.mu.Unlock()

	completed, err := f.svc.SweepStranded(ctx, 0)
	if err != nil {
		t.Fatalf("SweepStranded failed: %v", err)
	}
	if completed != 1 {
		t.Fatalf("Expected 1 completed sweep, got %d", completed)
	}

	check, _ := f.svc.GetSubmission(ctx, sub.ID)
	if check.Status != string(StatusOemReview) {
		t.Errorf("Expected oem_review after sweep, got %s", check.Status)
	}
	if !check.PlatformReviewJSON.Valid {
		t.Error("Expected persisted report after sweep")
	}
}

// isKind reports whether err carries the given stable kind.
func isKind(err error, kind string) bool {
	var k Kinder
	if !errors.As(err, &k) {
		return false
	}
	return k.Kind() == kind
}
