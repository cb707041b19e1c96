package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/fileutil"
	"kodo/internal/security"
)

// PatchChange is a single find/replace request.
type PatchChange struct {
	Find    string
	Replace string
}

// PatchFileTool applies ordered find/replace changes to a file. The call is
// atomic: if any change's substring is missing from the current content,
// nothing is written and the unmodified content is returned for recovery.
type PatchFileTool struct {
	pathValidator *security.PathValidator
	approver      Approver
}

// NewPatchFileTool creates a PatchFileTool.
func NewPatchFileTool(validator *security.PathValidator, approver Approver) *PatchFileTool {
	return &PatchFileTool{pathValidator: validator, approver: approver}
}

func (t *PatchFileTool) Name() string {
	return "patch_file"
}

func (t *PatchFileTool) Description() string {
	return "Applies a list of find/replace changes to a file. Each change replaces the first occurrence of its find string in the file as modified by earlier changes. All changes apply or none do."
}

func (t *PatchFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The file to patch, relative to the project root",
				},
				"changes": {
					Type:        genai.TypeArray,
					Description: "Ordered find/replace changes",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"find": {
								Type:        genai.TypeString,
								Description: "Exact substring to locate",
							},
							"replace": {
								Type:        genai.TypeString,
								Description: "Replacement text",
							},
						},
						Required: []string{"find", "replace"},
					},
				},
			},
			Required: []string{"file_path", "changes"},
		},
	}
}

func (t *PatchFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "file_path")
	if !ok || path == "" {
		return NewValidationError("file_path", "is required")
	}

	changes, err := parsePatchChanges(args)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return NewValidationError("changes", "at least one change is required")
	}
	for i, ch := range changes {
		if ch.Find == "" {
			return NewValidationError("changes", fmt.Sprintf("change %d: find must not be empty", i+1))
		}
	}
	return nil
}

func (t *PatchFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "file_path")
	changes, err := parsePatchChanges(args)
	if err != nil {
		return Errorf("invalid changes: %s", err), nil
	}

	abs, err := t.pathValidator.ResolveFile(path)
	if err != nil {
		return Errorf("path validation failed: %s", err), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Errorf("file not found: %s", path), nil
		}
		return Errorf("error reading file: %s", err), nil
	}
	if isBinary(data) {
		return Errorf("cannot patch binary file: %s", path), nil
	}

	original := string(data)
	patched, failedIdx := applyPatches(original, changes)
	if failedIdx >= 0 {
		// No write happened; hand back the unmodified content so the model
		// can re-match against what is actually in the file.
		return ErrorWithData(
			fmt.Sprintf("change %d: find string not found in %s; no changes were applied", failedIdx+1, path),
			map[string]any{
				"failed_change": failedIdx + 1,
				"file_content":  original,
			},
		), nil
	}

	if t.approver != nil {
		approved, err := t.approver.ApproveMutation(ctx, ApprovalRequest{
			Tool:       t.Name(),
			Path:       abs,
			OldContent: original,
			NewContent: patched,
		})
		if err != nil {
			return Errorf("approval error: %s", err), nil
		}
		if !approved {
			return Canceled("patch rejected by user"), nil
		}
	}

	if err := fileutil.AtomicWriteString(abs, patched, 0644); err != nil {
		return Errorf("error writing file: %s", err), nil
	}

	return OKWithData(
		fmt.Sprintf("Applied %d change(s) to %s", len(changes), path),
		map[string]any{
			"changesApplied": len(changes),
			"newContent":     patched,
		},
	), nil
}

// applyPatches applies changes in order against the evolving content.
// Each change replaces the first occurrence of its find string. Returns the
// patched content and -1, or the original content untouched and the index
// of the first change whose find string was missing.
func applyPatches(content string, changes []PatchChange) (string, int) {
	current := content
	for i, ch := range changes {
		idx := strings.Index(current, ch.Find)
		if idx < 0 {
			return content, i
		}
		current = current[:idx] + ch.Replace + current[idx+len(ch.Find):]
	}
	return current, -1
}

func parsePatchChanges(args map[string]any) ([]PatchChange, error) {
	raw, ok := args["changes"]
	if !ok {
		return nil, NewValidationError("changes", "is required")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, NewValidationError("changes", "must be an array")
	}

	changes := make([]PatchChange, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError("changes", fmt.Sprintf("change %d is not an object", i+1))
		}
		find, _ := m["find"].(string)
		replace, _ := m["replace"].(string)
		changes = append(changes, PatchChange{Find: find, Replace: replace})
	}
	return changes, nil
}
