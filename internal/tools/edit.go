package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/fileutil"
	"kodo/internal/security"
)

// LineEdit replaces an inclusive 1-based line range with new content. The
// first and last line of the range must match the expected boundary content
// (compared with surrounding whitespace trimmed); the match is a verification
// check, not a search key.
type LineEdit struct {
	StartLine  int
	EndLine    int
	FirstLine  string
	LastLine   string
	NewContent string
}

// EditFileTool applies line-range edits to a file. Every edit is validated
// against the original file before anything is changed; a single invalid edit
// fails the whole call with no write.
type EditFileTool struct {
	pathValidator *security.PathValidator
	approver      Approver
}

// NewEditFileTool creates an EditFileTool.
func NewEditFileTool(validator *security.PathValidator, approver Approver) *EditFileTool {
	return &EditFileTool{pathValidator: validator, approver: approver}
}

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Description() string {
	return "Replaces inclusive 1-based line ranges in a file. Each edit names its range and the exact content of the first and last line of that range as a safety check. All edits apply or none do."
}

func (t *EditFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The file to edit, relative to the project root",
				},
				"changes": {
					Type:        genai.TypeArray,
					Description: "Line-range edits to apply",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"start_line": {
								Type:        genai.TypeInteger,
								Description: "First line of the range, 1-based inclusive",
							},
							"end_line": {
								Type:        genai.TypeInteger,
								Description: "Last line of the range, 1-based inclusive",
							},
							"start_content": {
								Type:        genai.TypeString,
								Description: "Exact current content of the start line",
							},
							"end_content": {
								Type:        genai.TypeString,
								Description: "Exact current content of the end line",
							},
							"new_content": {
								Type:        genai.TypeString,
								Description: "Replacement text for the range; empty deletes the lines",
							},
						},
						Required: []string{"start_line", "end_line", "start_content", "end_content", "new_content"},
					},
				},
			},
			Required: []string{"file_path", "changes"},
		},
	}
}

func (t *EditFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "file_path")
	if !ok || path == "" {
		return NewValidationError("file_path", "is required")
	}
	edits, err := parseLineChanges(args)
	if err != nil {
		return err
	}
	if len(edits) == 0 {
		return NewValidationError("changes", "at least one edit is required")
	}
	return nil
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "file_path")
	edits, err := parseLineChanges(args)
	if err != nil {
		return Errorf("invalid edits: %s", err), nil
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
		return Errorf("cannot edit binary file: %s", path), nil
	}

	original := string(data)
	lines := strings.Split(original, "\n")
	trailingNewline := strings.HasSuffix(original, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	// Validate the whole batch against the original file before touching it.
	if err := validateLineEdits(lines, edits); err != nil {
		// Hand back the untouched content so the model can re-derive line
		// numbers against what is actually in the file.
		return ErrorWithData(
			fmt.Sprintf("%s; no changes were applied", err),
			map[string]any{"file_content": original},
		), nil
	}

	edited := applyLineEdits(lines, edits)
	newContent := strings.Join(edited, "\n")
	if trailingNewline && newContent != "" {
		newContent += "\n"
	}

	if t.approver != nil {
		approved, err := t.approver.ApproveMutation(ctx, ApprovalRequest{
			Tool:       t.Name(),
			Path:       abs,
			OldContent: original,
			NewContent: newContent,
		})
		if err != nil {
			return Errorf("approval error: %s", err), nil
		}
		if !approved {
			return Canceled("edit rejected by user"), nil
		}
	}

	if err := fileutil.AtomicWriteString(abs, newContent, 0644); err != nil {
		return Errorf("error writing file: %s", err), nil
	}

	return OKWithData(
		fmt.Sprintf("Applied %d edit(s) to %s", len(edits), path),
		map[string]any{
			"changesApplied": len(edits),
			"newContent":     newContent,
		},
	), nil
}

// validateLineEdits checks bounds, ordering, overlap, and boundary content
// for every edit against the original line slice.
func validateLineEdits(lines []string, edits []LineEdit) error {
	type span struct{ start, end, ordinal int }
	spans := make([]span, 0, len(edits))

	for i, e := range edits {
		n := i + 1
		if e.StartLine < 1 || e.EndLine < 1 {
			return fmt.Errorf("edit %d: line numbers are 1-based and must be positive", n)
		}
		if e.StartLine > e.EndLine {
			return fmt.Errorf("edit %d: start_line %d is after end_line %d", n, e.StartLine, e.EndLine)
		}
		if e.EndLine > len(lines) {
			return fmt.Errorf("edit %d: end_line %d is beyond end of file (%d lines)", n, e.EndLine, len(lines))
		}
		if got := lines[e.StartLine-1]; strings.TrimSpace(got) != strings.TrimSpace(e.FirstLine) {
			return fmt.Errorf("edit %d: line %d does not match expected content (found %q)", n, e.StartLine, got)
		}
		if got := lines[e.EndLine-1]; strings.TrimSpace(got) != strings.TrimSpace(e.LastLine) {
			return fmt.Errorf("edit %d: line %d does not match expected content (found %q)", n, e.EndLine, got)
		}
		spans = append(spans, span{e.StartLine, e.EndLine, n})
	}

	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start <= spans[i-1].end {
			return fmt.Errorf("edit %d: range %d-%d overlaps edit %d",
				spans[i].ordinal, spans[i].start, spans[i].end, spans[i-1].ordinal)
		}
	}
	return nil
}

// applyLineEdits applies validated edits in descending start-line order so
// that earlier line numbers stay valid while later ranges are replaced.
func applyLineEdits(lines []string, edits []LineEdit) []string {
	ordered := make([]LineEdit, len(edits))
	copy(ordered, edits)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].StartLine > ordered[b].StartLine })

	result := make([]string, len(lines))
	copy(result, lines)
	for _, e := range ordered {
		var replacement []string
		if e.NewContent != "" {
			replacement = strings.Split(strings.TrimSuffix(e.NewContent, "\n"), "\n")
		}
		tail := append([]string{}, result[e.EndLine:]...)
		result = append(result[:e.StartLine-1], replacement...)
		result = append(result, tail...)
	}
	return result
}

func parseLineChanges(args map[string]any) ([]LineEdit, error) {
	raw, ok := args["changes"]
	if !ok {
		return nil, NewValidationError("changes", "is required")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, NewValidationError("changes", "must be an array")
	}

	edits := make([]LineEdit, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError("changes", fmt.Sprintf("edit %d is not an object", i+1))
		}
		start, ok := GetInt(m, "start_line")
		if !ok {
			return nil, NewValidationError("changes", fmt.Sprintf("edit %d: start_line is required", i+1))
		}
		end, ok := GetInt(m, "end_line")
		if !ok {
			return nil, NewValidationError("changes", fmt.Sprintf("edit %d: end_line is required", i+1))
		}
		first, _ := m["start_content"].(string)
		last, _ := m["end_content"].(string)
		content, _ := m["new_content"].(string)
		edits = append(edits, LineEdit{
			StartLine:  start,
			EndLine:    end,
			FirstLine:  first,
			LastLine:   last,
			NewContent: content,
		})
	}
	return edits, nil
}
