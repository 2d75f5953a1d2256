// Package manifest provides parsing and validation of skill.yaml manifests.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest represents a skill.yaml file.
// Additional fields in the YAML will be ignored, not cause errors.
// Missing fields will have zero values (empty string, nil slice, etc).
type Manifest struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description"`
	Author      string       `yaml:"author"`
	License     string       `yaml:"license"`
	Permissions []Permission `yaml:"permissions"`
	DataUsage   DataUsage    `yaml:"data_usage"`
}

// Permission is one requested capability with its justification.
type Permission struct {
	Name          string `yaml:"name"`
	Justification string `yaml:"justification"`
}

// DataUsage declares how the skill handles data, including every network
// endpoint it talks to.
type DataUsage struct {
	Endpoints []string `yaml:"endpoints"`
	Retention string   `yaml:"retention"`
}

// UnmarshalYAML accepts permissions in two formats:
// 1. Plain strings: ["navigation", "camera"]
// 2. Objects: [{name: navigation, justification: ...}]
func (p *Permission) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		return nil
	}

	var obj struct {
		Name          string `yaml:"name"`
		Justification string `yaml:"justification"`
	}
	if err := value.Decode(&obj); err != nil {
		return err
	}
	p.Name = obj.Name
	p.Justification = obj.Justification
	return nil
}

// Catalog is the fixed set of permissions a skill may request.
var Catalog = map[string]bool{
	"navigation":   true,
	"sensors":      true,
	"network":      true,
	"camera":       true,
	"microphone":   true,
	"speech":       true,
	"storage":      true,
	"manipulation": true,
	"emergency":    true,
}

// FieldError is a single validation failure with the field path it concerns.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Parse parses a skill.yaml from bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse skill.yaml: %w", err)
	}
	return &m, nil
}

// Validate checks the manifest against the structural rules. It returns all
// failures, not just the first; any failure blocks progress. Cross-checking
// the name against the owning skill is the caller's responsibility.
func (m *Manifest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	}

	if m.Version == "" {
		errs = append(errs, FieldError{Field: "version", Message: "version is required"})
	} else if _, err := ParseVersion(m.Version); err != nil {
		errs = append(errs, FieldError{Field: "version", Message: err.Error()})
	}

	seen := map[string]bool{}
	for i, p := range m.Permissions {
		field := fmt.Sprintf("permissions[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field, Message: "permission name is required"})
			continue
		}
		if !Catalog[p.Name] {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("unknown permission %q (known: %s)", p.Name, catalogNames()),
			})
		}
		if seen[p.Name] {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate permission %q", p.Name)})
		}
		seen[p.Name] = true
	}

	return errs
}

// HasPermission reports whether the manifest requests the named permission.
func (m *Manifest) HasPermission(name string) bool {
	for _, p := range m.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

func catalogNames() string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
