package git

import (
	"os/exec"
	"strings"
)

// IsRepository reports whether workDir is inside a git working tree.
func IsRepository(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// IsClean reports whether the working tree has no uncommitted changes.
// Untracked files count as changes: a rollback point must cover everything.
func IsClean(workDir string) bool {
	cmd := exec.Command("git", "status", "--porcelain", "-uall")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == ""
}

// HasRollbackPoint reports whether a new-file write may skip approval:
// the tree is version-controlled and has no uncommitted changes, so the
// mutation can be undone with a checkout.
func HasRollbackPoint(workDir string) bool {
	return IsRepository(workDir) && IsClean(workDir)
}
