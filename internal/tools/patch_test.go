package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodo/internal/security"
)

func writeWorkFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readWorkFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func patchArgs(path string, changes ...map[string]any) map[string]any {
	items := make([]any, len(changes))
	for i, c := range changes {
		items[i] = c
	}
	return map[string]any{"file_path": path, "changes": items}
}

func TestPatchAppliesChangesInOrder(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "main.go", "func old() {}\nvar old = 1\n")
	tool := NewPatchFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), patchArgs("main.go",
		map[string]any{"find": "old", "replace": "renamed"},
		map[string]any{"find": "old", "replace": "renamed"},
	))
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)

	// Each change replaces the first occurrence in the evolving content.
	assert.Equal(t, "func renamed() {}\nvar renamed = 1\n", readWorkFile(t, abs))
	assert.Equal(t, 2, res.Data["changesApplied"])
	assert.Equal(t, "func renamed() {}\nvar renamed = 1\n", res.Data["newContent"])
}

func TestPatchLaterChangeSeesEarlierReplacement(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "f.txt", "aaa\n")
	tool := NewPatchFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), patchArgs("f.txt",
		map[string]any{"find": "aaa", "replace": "bbb"},
		map[string]any{"find": "bbb", "replace": "ccc"},
	))
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)
	assert.Equal(t, "ccc\n", readWorkFile(t, abs))
}

func TestPatchFailureIsAtomic(t *testing.T) {
	root := t.TempDir()
	original := "line one\nline two\nline three\n"
	abs := writeWorkFile(t, root, "f.txt", original)
	tool := NewPatchFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), patchArgs("f.txt",
		map[string]any{"find": "line one", "replace": "first"},
		map[string]any{"find": "not present anywhere", "replace": "x"},
		map[string]any{"find": "line three", "replace": "third"},
	))
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	// The failing ordinal and the untouched content come back for recovery.
	assert.Contains(t, res.Content, "change 2")
	assert.Equal(t, 2, res.Data["failed_change"])
	assert.Equal(t, original, res.Data["file_content"])

	// The file on disk is byte-identical to its pre-call state.
	assert.Equal(t, original, readWorkFile(t, abs))
}

func TestPatchRejectsEscapingPath(t *testing.T) {
	tool := NewPatchFileTool(security.NewPathValidator(t.TempDir()), nil)

	res, err := tool.Execute(context.Background(), patchArgs("../outside.txt",
		map[string]any{"find": "a", "replace": "b"},
	))
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
}

func TestPatchMissingFile(t *testing.T) {
	tool := NewPatchFileTool(security.NewPathValidator(t.TempDir()), nil)

	res, err := tool.Execute(context.Background(), patchArgs("nope.txt",
		map[string]any{"find": "a", "replace": "b"},
	))
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "not found")
}

func TestPatchValidateRequiresChanges(t *testing.T) {
	tool := NewPatchFileTool(security.NewPathValidator(t.TempDir()), nil)

	assert.Error(t, tool.Validate(map[string]any{"file_path": "f.txt"}))
	assert.Error(t, tool.Validate(map[string]any{"file_path": "f.txt", "changes": []any{}}))
	assert.Error(t, tool.Validate(patchArgs("f.txt", map[string]any{"find": "", "replace": "x"})))
	assert.NoError(t, tool.Validate(patchArgs("f.txt", map[string]any{"find": "a", "replace": ""})))
}

type rejectingApprover struct{}

func (rejectingApprover) ApproveMutation(context.Context, ApprovalRequest) (bool, error) {
	return false, nil
}

func (rejectingApprover) ApproveCommand(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestPatchUserRejectionIsCanceled(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "f.txt", "hello\n")
	tool := NewPatchFileTool(security.NewPathValidator(root), rejectingApprover{})

	res, err := tool.Execute(context.Background(), patchArgs("f.txt",
		map[string]any{"find": "hello", "replace": "goodbye"},
	))
	require.NoError(t, err)

	// User refusal is canceled, not error, and nothing is written.
	assert.Equal(t, StatusCanceled, res.Status)
	assert.Equal(t, "hello\n", readWorkFile(t, abs))
}
