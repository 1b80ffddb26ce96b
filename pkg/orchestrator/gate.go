package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazyops/lazyops/pkg/api"
)

// Gate is the modal round trip that precedes every mutating action. Each
// method blocks until the operator answers; a false result means the modal
// was closed without an affirmative answer.
type Gate interface {
	ChooseBranch(ctx context.Context, req BranchRequest) (BranchChoice, bool)
	Confirm(ctx context.Context, prompt string) bool
	EnterText(ctx context.Context, prompt, initial string) (string, bool)
}

// BranchRequest is what the branch chooser is opened with.
type BranchRequest struct {
	ApplicationID  int64
	GitURL         string
	Branches       []string
	Default        string
	RollbackPrefix string
}

// CanConfirm reports whether the chooser has anything to select.
func (r BranchRequest) CanConfirm() bool {
	return r.Default != ""
}

// TypeFor returns the deploy type the chooser should propose for branch.
func (r BranchRequest) TypeFor(branch string) api.DeployType {
	return DeployTypeForBranch(branch, r.RollbackPrefix)
}

// BranchChoice is the chooser's answer. Type is explicit; an empty Type is
// filled from the branch naming convention.
type BranchChoice struct {
	Branch string
	Type   api.DeployType
}

// DefaultBranch picks main when present, otherwise the first branch.
func DefaultBranch(branches []string) string {
	for _, b := range branches {
		if b == "main" {
			return b
		}
	}
	if len(branches) > 0 {
		return branches[0]
	}
	return ""
}

// DeployTypeForBranch is the only place the rollback branch naming
// convention is interpreted.
func DeployTypeForBranch(branch, prefix string) api.DeployType {
	if prefix != "" && strings.HasPrefix(branch, prefix) {
		return api.DeployRollback
	}
	return api.DeployClassic
}

func deployPrompt(branch string) string {
	return fmt.Sprintf("Deploy application with branch %q?", branch)
}

func killPrompt(pid int64) string {
	return fmt.Sprintf("Kill process with PID \"%d\"?", pid)
}

func rollbackPrompt(d api.Deployment) string {
	if d.Version == "" {
		return fmt.Sprintf("Rollback to branch %q?", d.Branch)
	}
	return fmt.Sprintf("Rollback to version %q (branch %q)?", d.Version, d.Branch)
}

const (
	deleteApplicationPrompt = "Are you sure you want to delete this application?"
	deleteDeploymentPrompt  = "Are you sure you want to delete this deployment?"
)

func notesPrompt(d api.Deployment) string {
	if d.Version == "" {
		return fmt.Sprintf("Notes for deployment #%d", d.ID)
	}
	return fmt.Sprintf("Notes for %s", d.Version)
}
