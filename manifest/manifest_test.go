package manifest

import (
	"strings"
	"testing"
)

// Test parsing skill.yaml with object-style permissions.
func TestParse_ObjectPermissions(t *testing.T) {
	yamlContent := `
name: Warehouse Navigator
version: 1.2.0
description: Autonomous shelf-to-shelf navigation.
permissions:
  - name: navigation
    justification: Moves the robot between waypoints.
  - name: sensors
    justification: Reads lidar for obstacle avoidance.
data_usage:
  endpoints:
    - https://telemetry.example.com/ingest
  retention: 30d
`

	m, err := Parse([]byte(yamlContent))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if m.Name != "Warehouse Navigator" {
		t.Errorf("Expected name 'Warehouse Navigator', got '%s'", m.Name)
	}

	if m.Version != "1.2.0" {
		t.Errorf("Expected version '1.2.0', got '%s'", m.Version)
	}

	if len(m.Permissions) != 2 {
		t.Fatalf("Expected 2 permissions, got %d", len(m.Permissions))
	}

	if m.Permissions[0].Name != "navigation" {
		t.Errorf("Expected permission 'navigation', got '%s'", m.Permissions[0].Name)
	}

	if m.Permissions[1].Justification != "Reads lidar for obstacle avoidance." {
		t.Errorf("Unexpected justification: '%s'", m.Permissions[1].Justification)
	}

	if len(m.DataUsage.Endpoints) != 1 {
		t.Fatalf("Expected 1 endpoint, got %d", len(m.DataUsage.Endpoints))
	}
}

// Test parsing skill.yaml with plain string permissions.
func TestParse_StringPermissions(t *testing.T) {
	yamlContent := `
name: Greeter
version: 0.1.0
permissions:
  - speech
  - camera
`

	m, err := Parse([]byte(yamlContent))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(m.Permissions) != 2 {
		t.Fatalf("Expected 2 permissions, got %d", len(m.Permissions))
	}

	if m.Permissions[0].Name != "speech" || m.Permissions[1].Name != "camera" {
		t.Errorf("Unexpected permissions: %+v", m.Permissions)
	}

	if m.Permissions[0].Justification != "" {
		t.Errorf("Expected empty justification, got '%s'", m.Permissions[0].Justification)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErrs []string // substrings expected in the field errors, one per error
	}{
		{
			name: "valid",
			manifest: Manifest{
				Name:    "Greeter",
				Version: "1.0.0",
				Permissions: []Permission{
					{Name: "speech", Justification: "Talks to visitors."},
				},
			},
		},
		{
			name:     "missing name and version",
			manifest: Manifest{},
			wantErrs: []string{"name is required", "version is required"},
		},
		{
			name: "blank name",
			manifest: Manifest{
				Name:    "   ",
				Version: "1.0.0",
			},
			wantErrs: []string{"name is required"},
		},
		{
			name: "bad version",
			manifest: Manifest{
				Name:    "Greeter",
				Version: "1.0",
			},
			wantErrs: []string{"expected MAJOR.MINOR.PATCH"},
		},
		{
			name: "unknown permission is a hard error",
			manifest: Manifest{
				Name:        "Greeter",
				Version:     "1.0.0",
				Permissions: []Permission{{Name: "teleportation"}},
			},
			wantErrs: []string{`unknown permission "teleportation"`},
		},
		{
			name: "duplicate permission",
			manifest: Manifest{
				Name:    "Greeter",
				Version: "1.0.0",
				Permissions: []Permission{
					{Name: "camera"},
					{Name: "camera"},
				},
			},
			wantErrs: []string{`duplicate permission "camera"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.manifest.Validate()
			if len(errs) != len(tt.wantErrs) {
				t.Fatalf("Expected %d errors, got %d: %v", len(tt.wantErrs), len(errs), errs)
			}
			for i, want := range tt.wantErrs {
				if !strings.Contains(errs[i].Message, want) {
					t.Errorf("Error %d: expected to contain %q, got %q", i, want, errs[i].Message)
				}
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		major   int
		minor   int
		patch   int
	}{
		{in: "1.2.3", major: 1, minor: 2, patch: 3},
		{in: "0.0.1", major: 0, minor: 0, patch: 1},
		{in: "1.0.0-rc.1", major: 1, minor: 0, patch: 0},
		{in: "1.0.0+build.5", major: 1, minor: 0, patch: 0},
		{in: "1.0", wantErr: true},
		{in: "1.0.0.0", wantErr: true},
		{in: "01.0.0", wantErr: true},
		{in: "1.00.0", wantErr: true},
		{in: "1.0.x", wantErr: true},
		{in: "", wantErr: true},
		{in: "v1.0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got %+v", tt.in, v)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) failed: %v", tt.in, err)
			}
			if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
				t.Errorf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
					tt.in, v.Major, v.Minor, v.Patch, tt.major, tt.minor, tt.patch)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"2.0.0", "1.9.9", 1},
		{"1.2.0", "1.10.0", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0-rc.1", "1.0.0", 0}, // Pre-release ignored for ordering.
	}

	for _, tt := range tests {
		got, err := CompareVersions(tt.a, tt.b)
		if err != nil {
			t.Fatalf("CompareVersions(%q, %q) failed: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
