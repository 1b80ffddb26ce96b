package orchestrator

import (
	"testing"

	"github.com/lazyops/lazyops/pkg/api"
)

func TestDefaultBranch(t *testing.T) {
	tests := []struct {
		name     string
		branches []string
		want     string
	}{
		{"main present", []string{"main", "dev"}, "main"},
		{"main not first", []string{"dev", "main"}, "main"},
		{"no main", []string{"dev", "qa"}, "dev"},
		{"empty", []string{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultBranch(tt.branches); got != tt.want {
				t.Errorf("DefaultBranch(%v) = %q, want %q", tt.branches, got, tt.want)
			}
			req := BranchRequest{Branches: tt.branches, Default: DefaultBranch(tt.branches)}
			if req.CanConfirm() != (tt.want != "") {
				t.Errorf("CanConfirm() = %v with default %q", req.CanConfirm(), tt.want)
			}
		})
	}
}

func TestDeployTypeForBranch(t *testing.T) {
	tests := []struct {
		branch string
		prefix string
		want   api.DeployType
	}{
		{"deploy-2024-01-01", "deploy", api.DeployRollback},
		{"feature/foo", "deploy", api.DeployClassic},
		{"main", "deploy", api.DeployClassic},
		{"deploy-2024-01-01", "", api.DeployClassic},
		{"rb/2024", "rb/", api.DeployRollback},
	}
	for _, tt := range tests {
		t.Run(tt.branch+"/"+tt.prefix, func(t *testing.T) {
			if got := DeployTypeForBranch(tt.branch, tt.prefix); got != tt.want {
				t.Errorf("DeployTypeForBranch(%q, %q) = %q, want %q", tt.branch, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"deploy", deployPrompt("main"), `Deploy application with branch "main"?`},
		{"kill", killPrompt(1234), `Kill process with PID "1234"?`},
		{"rollback", rollbackPrompt(api.Deployment{Version: "v1", Branch: "release-1"}), `Rollback to version "v1" (branch "release-1")?`},
		{"rollback without version", rollbackPrompt(api.Deployment{Branch: "release-1"}), `Rollback to branch "release-1"?`},
		{"notes", notesPrompt(api.Deployment{ID: 4}), "Notes for deployment #4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("prompt = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
