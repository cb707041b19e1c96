package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/git"
	"kodo/internal/security"
)

// ListFilesTool enumerates files under a directory, honoring .gitignore
// rules and always excluding VCS bookkeeping directories.
type ListFilesTool struct {
	pathValidator *security.PathValidator
	maxEntries    int
}

// NewListFilesTool creates a ListFilesTool.
func NewListFilesTool(validator *security.PathValidator) *ListFilesTool {
	return &ListFilesTool{pathValidator: validator, maxEntries: 2000}
}

func (t *ListFilesTool) Name() string {
	return "list_files"
}

func (t *ListFilesTool) Description() string {
	return "Lists files under a directory in the project, recursively. Entries matched by .gitignore rules are omitted."
}

func (t *ListFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to list, relative to the project root; defaults to the root",
				},
			},
		},
	}
}

func (t *ListFilesTool) Validate(args map[string]any) error {
	return nil
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	rel := GetStringDefault(args, "path", ".")

	dir, err := t.pathValidator.ResolveDir(rel)
	if err != nil {
		return Errorf("path validation failed: %s", err), nil
	}

	ignore := git.NewIgnore(t.pathValidator.Root())
	if err := ignore.Load(); err != nil {
		return Errorf("error loading ignore rules: %s", err), nil
	}

	var files []string
	truncated := false
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == dir {
			return nil
		}
		if ignore.Match(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(files) >= t.maxEntries {
			truncated = true
			return filepath.SkipAll
		}
		relPath, relErr := filepath.Rel(t.pathValidator.Root(), path)
		if relErr != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return Errorf("error walking directory: %s", err), nil
	}

	sort.Strings(files)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d file(s) under %s:\n", len(files), rel)
	sb.WriteString(strings.Join(files, "\n"))
	if truncated {
		fmt.Fprintf(&sb, "\n... [listing truncated at %d entries]", t.maxEntries)
	}

	return OKWithData(sb.String(), map[string]any{
		"files": files,
		"count": len(files),
	}), nil
}
