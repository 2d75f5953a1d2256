// Package review implements the automated platform review check battery.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roboskills/skillhub/manifest"
	"github.com/roboskills/skillhub/models"
)

// Screenshot count bounds for the asset completeness check.
const (
	MinScreenshots = 3
	MaxScreenshots = 10
)

// Check names, in battery order.
const (
	CheckManifest          = "manifest_valid"
	CheckPackage           = "package_integrity"
	CheckAssets            = "asset_completeness"
	CheckRiskLevel         = "risk_level_consistency"
	CheckNetworkDisclosure = "network_disclosure"
	CheckJustifications    = "justification_completeness"
)

// PackageStore resolves stored package blobs to their actual size and
// checksum.
type PackageStore interface {
	Stat(ctx context.Context, path string) (size int64, sha256 string, err error)
}

// Check is one pass/fail entry in the review report.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the full platform review report. It is persisted verbatim on the
// submission; the state machine consumes only Passed.
type Result struct {
	Passed    bool      `json:"passed"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// FailedChecks returns the names of the checks that did not pass.
func (r *Result) FailedChecks() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Summary renders a short human-readable outcome line for the report.
func (r *Result) Summary() string {
	if r.Passed {
		return fmt.Sprintf("all %d checks passed", len(r.Checks))
	}
	return "failed checks: " + strings.Join(r.FailedChecks(), ", ")
}

// Engine runs the check battery. It never mutates submission state; it only
// produces a report.
type Engine struct {
	packages PackageStore
}

// NewEngine creates a review engine backed by the given package store.
func NewEngine(packages PackageStore) *Engine {
	return &Engine{packages: packages}
}

// Run executes the ordered battery against a skill version. Every check runs
// even after earlier failures so the report lists everything the developer
// has to fix.
func (e *Engine) Run(ctx context.Context, version *models.SkillVersion) *Result {
	result := &Result{Passed: true, Timestamp: time.Now().UTC()}

	m, parseErr := manifest.Parse([]byte(version.ManifestYAML))
	result.add(e.checkManifest(m, parseErr))
	result.add(e.checkPackage(ctx, version))
	result.add(e.checkAssets(version))

	// The remaining checks need a parsed manifest; without one they fail
	// with the parse problem rather than guessing.
	if parseErr != nil || m == nil {
		for _, name := range []string{CheckRiskLevel, CheckNetworkDisclosure, CheckJustifications} {
			result.add(Check{Name: name, Detail: "manifest could not be parsed"})
		}
		return result
	}

	result.add(e.checkRiskLevel(m, version.RiskLevel))
	result.add(e.checkNetworkDisclosure(m))
	result.add(e.checkJustifications(m))
	return result
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	r.Passed = r.Passed && c.Passed
}

func (e *Engine) checkManifest(m *manifest.Manifest, parseErr error) Check {
	c := Check{Name: CheckManifest}
	if parseErr != nil {
		c.Detail = parseErr.Error()
		return c
	}
	if errs := m.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, fe := range errs {
			msgs[i] = fe.Error()
		}
		c.Detail = strings.Join(msgs, "; ")
		return c
	}
	c.Passed = true
	return c
}

func (e *Engine) checkPackage(ctx context.Context, version *models.SkillVersion) Check {
	c := Check{Name: CheckPackage}
	if version.PackagePath == "" {
		c.Detail = "no package recorded"
		return c
	}

	size, sum, err := e.packages.Stat(ctx, version.PackagePath)
	if err != nil {
		c.Detail = fmt.Sprintf("package not readable: %v", err)
		return c
	}
	if size != version.PackageSize {
		c.Detail = fmt.Sprintf("stored size %d does not match recorded size %d", size, version.PackageSize)
		return c
	}
	if sum != version.PackageSHA256 {
		c.Detail = "stored checksum does not match recorded checksum"
		return c
	}
	c.Passed = true
	return c
}

func (e *Engine) checkAssets(version *models.SkillVersion) Check {
	c := Check{Name: CheckAssets}
	if version.Assets.IconPath == "" {
		c.Detail = "icon is missing"
		return c
	}
	n := len(version.Assets.Screenshots)
	if n < MinScreenshots || n > MaxScreenshots {
		c.Detail = fmt.Sprintf("screenshot count %d outside [%d, %d]", n, MinScreenshots, MaxScreenshots)
		return c
	}
	c.Passed = true
	return c
}

func (e *Engine) checkRiskLevel(m *manifest.Manifest, level models.RiskLevel) Check {
	c := Check{Name: CheckRiskLevel}
	if !level.Valid() {
		c.Detail = fmt.Sprintf("unknown risk level %q", level)
		return c
	}

	if m.HasPermission("manipulation") || m.HasPermission("emergency") {
		if level != models.RiskHigh {
			c.Detail = fmt.Sprintf("manipulation/emergency permissions require risk level high, declared %q", level)
			return c
		}
	} else if m.HasPermission("navigation") || m.HasPermission("sensors") || m.HasPermission("network") {
		if !level.AtLeast(models.RiskMedium) {
			c.Detail = fmt.Sprintf("navigation/sensors/network permissions require at least medium risk, declared %q", level)
			return c
		}
	}
	c.Passed = true
	return c
}

func (e *Engine) checkNetworkDisclosure(m *manifest.Manifest) Check {
	c := Check{Name: CheckNetworkDisclosure}
	if m.HasPermission("network") && len(m.DataUsage.Endpoints) == 0 {
		c.Detail = "network permission requested but no endpoints declared in data_usage"
		return c
	}
	c.Passed = true
	return c
}

func (e *Engine) checkJustifications(m *manifest.Manifest) Check {
	c := Check{Name: CheckJustifications}
	var missing []string
	for _, p := range m.Permissions {
		if strings.TrimSpace(p.Justification) == "" {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		c.Detail = "permissions without justification: " + strings.Join(missing, ", ")
		return c
	}
	c.Passed = true
	return c
}
