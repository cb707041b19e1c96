package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodo/internal/security"
)

func editArgs(path string, changes ...map[string]any) map[string]any {
	items := make([]any, len(changes))
	for i, c := range changes {
		items[i] = c
	}
	return map[string]any{"file_path": path, "changes": items}
}

func change(start, end int, startContent, endContent, newContent string) map[string]any {
	return map[string]any{
		"start_line":    start,
		"end_line":      end,
		"start_content": startContent,
		"end_content":   endContent,
		"new_content":   newContent,
	}
}

func TestEditReplacesLineRange(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "f.txt", "one\ntwo\nthree\nfour\n")
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(2, 3, "two", "three", "TWO\nTHREE"),
	))
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)
	assert.Equal(t, "one\nTWO\nTHREE\nfour\n", readWorkFile(t, abs))
}

func TestEditDeletesRangeWithEmptyContent(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "f.txt", "one\ntwo\nthree\n")
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(2, 2, "two", "two", ""),
	))
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)
	assert.Equal(t, "one\nthree\n", readWorkFile(t, abs))
}

func TestEditOrderingInvariant(t *testing.T) {
	original := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\n"
	want := "A\nl2\nB\nB2\nl5\nl6\nC\nl8\n"

	early := change(1, 1, "l1", "l1", "A")
	middle := change(3, 4, "l3", "l4", "B\nB2")
	late := change(7, 7, "l7", "l7", "C")

	// Declaration order must not matter: edits with disjoint ranges produce
	// the same result as replacing each span independently in the original.
	orders := [][]map[string]any{
		{early, middle, late},
		{late, middle, early},
		{middle, early, late},
		{late, early, middle},
	}

	for _, order := range orders {
		root := t.TempDir()
		abs := writeWorkFile(t, root, "f.txt", original)
		tool := NewEditFileTool(security.NewPathValidator(root), nil)

		res, err := tool.Execute(context.Background(), editArgs("f.txt", order...))
		require.NoError(t, err)
		require.True(t, res.IsOK(), res.Content)
		assert.Equal(t, want, readWorkFile(t, abs))
	}
}

func TestEditBoundaryMismatchFailsWithZeroWrites(t *testing.T) {
	root := t.TempDir()
	original := "one\ntwo\nthree\n"
	abs := writeWorkFile(t, root, "f.txt", original)
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(2, 3, "two", "WRONG", "x"),
	))
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Content, "does not match expected content")
	assert.Equal(t, original, res.Data["file_content"])
	assert.Equal(t, original, readWorkFile(t, abs))
}

func TestEditWholeBatchFailsOnOneBadChange(t *testing.T) {
	root := t.TempDir()
	original := "one\ntwo\nthree\nfour\n"
	abs := writeWorkFile(t, root, "f.txt", original)
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(1, 1, "one", "one", "ONE"),
		change(4, 4, "mismatch", "four", "FOUR"),
	))
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	// Even the valid first change must not have been applied.
	assert.Equal(t, original, readWorkFile(t, abs))
}

func TestEditBoundaryComparisonTrimsWhitespace(t *testing.T) {
	root := t.TempDir()
	abs := writeWorkFile(t, root, "f.txt", "\tindented line\nnext\n")
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(1, 1, "indented line", "  indented line  ", "replaced"),
	))
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Content)
	assert.Equal(t, "replaced\nnext\n", readWorkFile(t, abs))
}

func TestEditRejectsBadRanges(t *testing.T) {
	root := t.TempDir()
	original := "one\ntwo\n"
	abs := writeWorkFile(t, root, "f.txt", original)
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	cases := []map[string]any{
		change(0, 1, "one", "one", "x"),       // lines are 1-based
		change(2, 1, "two", "one", "x"),       // start after end
		change(1, 5, "one", "missing", "x"),   // end beyond EOF
	}
	for _, c := range cases {
		res, err := tool.Execute(context.Background(), editArgs("f.txt", c))
		require.NoError(t, err)
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, original, readWorkFile(t, abs))
	}
}

func TestEditRejectsOverlappingRanges(t *testing.T) {
	root := t.TempDir()
	original := "one\ntwo\nthree\nfour\n"
	abs := writeWorkFile(t, root, "f.txt", original)
	tool := NewEditFileTool(security.NewPathValidator(root), nil)

	res, err := tool.Execute(context.Background(), editArgs("f.txt",
		change(1, 3, "one", "three", "x"),
		change(2, 4, "two", "four", "y"),
	))
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, original, readWorkFile(t, abs))
}
