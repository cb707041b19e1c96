package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file paths to a fixed working-directory root.
// Every tool target resolves through Resolve before any I/O happens.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at workDir.
// workDir must be an absolute path.
func NewPathValidator(workDir string) *PathValidator {
	return &PathValidator{root: filepath.Clean(workDir)}
}

// Root returns the working-directory root.
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve validates a path and returns its absolute form inside the root.
// Relative paths resolve against the root, not the process working directory.
// Any resolution escaping the root is rejected before filesystem access.
func (v *PathValidator) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("null byte in path")
	}

	cleaned := filepath.Clean(path)
	var abs string
	if filepath.IsAbs(cleaned) {
		abs = cleaned
	} else {
		abs = filepath.Join(v.root, cleaned)
	}

	if !v.within(abs) {
		return "", fmt.Errorf("path %q is outside the working directory", path)
	}

	// Resolve symlinks so a link inside the root cannot point outside it.
	// The path may not exist yet (new files); resolve the parent instead.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		parent, perr := filepath.EvalSymlinks(filepath.Dir(abs))
		if perr != nil {
			if !os.IsNotExist(perr) {
				return "", fmt.Errorf("failed to resolve parent: %w", perr)
			}
			resolved = abs
		} else {
			resolved = filepath.Join(parent, filepath.Base(abs))
		}
	}

	if !v.within(resolved) {
		return "", fmt.Errorf("path %q resolves outside the working directory", path)
	}

	return resolved, nil
}

// ResolveFile validates a file path whose parent directory must exist.
func (v *PathValidator) ResolveFile(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("parent directory does not exist: %s", dir)
	}
	return abs, nil
}

// ResolveDir validates a path that must be an existing directory.
func (v *PathValidator) ResolveDir(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", path)
	}
	return abs, nil
}

// within reports whether target is the root or inside it.
func (v *PathValidator) within(target string) bool {
	rel, err := filepath.Rel(v.root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
