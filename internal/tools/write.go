package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/genai"

	"kodo/internal/fileutil"
	"kodo/internal/git"
	"kodo/internal/security"
)

// WriteNewFileTool creates files inside the working-directory sandbox.
// Every write passes the approval gate, except a brand-new file in a clean
// version-controlled tree, where a rollback point already exists.
type WriteNewFileTool struct {
	workDir       string
	pathValidator *security.PathValidator
	approver      Approver
}

// NewWriteNewFileTool creates a WriteNewFileTool.
func NewWriteNewFileTool(workDir string, validator *security.PathValidator, approver Approver) *WriteNewFileTool {
	return &WriteNewFileTool{
		workDir:       workDir,
		pathValidator: validator,
		approver:      approver,
	}
}

func (t *WriteNewFileTool) Name() string {
	return "write_new_file"
}

func (t *WriteNewFileTool) Description() string {
	return "Writes content to a new file. Fails if the file exists unless overwrite is true."
}

func (t *WriteNewFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The file path to write, relative to the project root",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to write",
				},
				"overwrite": {
					Type:        genai.TypeBoolean,
					Description: "If true, overwrite an existing file",
				},
				"encoding": {
					Type:        genai.TypeString,
					Description: "Text encoding (only utf-8 is supported)",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteNewFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	if enc := GetStringDefault(args, "encoding", "utf-8"); !isUTF8(enc) {
		return NewValidationError("encoding", "only utf-8 is supported")
	}
	return nil
}

func (t *WriteNewFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "path")
	content, _ := GetString(args, "content")
	overwrite := GetBoolDefault(args, "overwrite", false)

	abs, err := t.pathValidator.Resolve(path)
	if err != nil {
		return Errorf("path validation failed: %s", err), nil
	}

	var oldContent []byte
	_, statErr := os.Stat(abs)
	isNew := os.IsNotExist(statErr)

	if !isNew {
		if !overwrite {
			return Errorf("file already exists: %s (set overwrite=true to replace it)", path), nil
		}
		oldContent, err = os.ReadFile(abs)
		if err != nil {
			return Errorf("error reading existing file: %s", err), nil
		}
	}

	if t.needsApproval(isNew) {
		approved, err := t.approver.ApproveMutation(ctx, ApprovalRequest{
			Tool:       t.Name(),
			Path:       abs,
			OldContent: string(oldContent),
			NewContent: content,
			IsNewFile:  isNew,
		})
		if err != nil {
			return Errorf("approval error: %s", err), nil
		}
		if !approved {
			return Canceled("write rejected by user"), nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return Errorf("error creating directories: %s", err), nil
	}
	if err := fileutil.AtomicWriteString(abs, content, 0644); err != nil {
		return Errorf("error writing file: %s", err), nil
	}

	var status string
	if isNew {
		status = fmt.Sprintf("Created new file: %s (%d bytes)", path, len(content))
	} else {
		status = fmt.Sprintf("Overwrote file: %s (%d bytes)", path, len(content))
	}
	return OK(status), nil
}

// needsApproval applies the rollback-point fast path: a new file in a clean
// repository can always be reverted, so it may skip the gate.
func (t *WriteNewFileTool) needsApproval(isNew bool) bool {
	if t.approver == nil {
		return false
	}
	if isNew && git.HasRollbackPoint(t.workDir) {
		return false
	}
	return true
}
