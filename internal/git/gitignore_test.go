package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestIgnoreBasicPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\nbuild/\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "debug.log"), false))
	assert.True(t, ig.Match(filepath.Join(root, "sub/deep.log"), false))
	assert.True(t, ig.Match(filepath.Join(root, "build"), true))
	assert.True(t, ig.Match(filepath.Join(root, "build/out.bin"), false))

	assert.False(t, ig.Match(filepath.Join(root, "main.go"), false))
	assert.False(t, ig.Match(filepath.Join(root, "logs.go"), false))
}

func TestIgnoreNegationLastMatchWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\n!keep.log\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "debug.log"), false))
	// A file matching a negated pattern is never excluded.
	assert.False(t, ig.Match(filepath.Join(root, "keep.log"), false))
}

func TestIgnoreNegationOrderMatters(t *testing.T) {
	root := t.TempDir()
	// Re-ignoring after a negation flips the outcome back.
	writeFile(t, root, ".gitignore", "!special.log\n*.log\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "special.log"), false))
}

func TestIgnoreAnchoredPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "/dist\ndocs/generated\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "dist"), true))
	assert.True(t, ig.Match(filepath.Join(root, "docs/generated"), true))
	assert.True(t, ig.Match(filepath.Join(root, "docs/generated/api.md"), false))

	// Anchored patterns do not float to subdirectories.
	assert.False(t, ig.Match(filepath.Join(root, "pkg/dist"), true))
	assert.False(t, ig.Match(filepath.Join(root, "other/docs/generated"), true))
}

func TestIgnoreDirOnlyPatternSparesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "cache/\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "cache"), true))
	// A plain file named like the directory pattern is not excluded.
	assert.False(t, ig.Match(filepath.Join(root, "cache"), false))
}

func TestIgnoreNestedGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\n")
	writeFile(t, root, "sub/.gitignore", "*.tmp\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, "sub/scratch.tmp"), false))
	// The nested file scopes to its own directory.
	assert.False(t, ig.Match(filepath.Join(root, "scratch.tmp"), false))
}

func TestIgnoreVCSDirsAlwaysExcluded(t *testing.T) {
	root := t.TempDir()
	// Even a negation cannot resurrect VCS metadata.
	writeFile(t, root, ".gitignore", "!.git\n!.git/**\n")
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.True(t, ig.Match(filepath.Join(root, ".git"), true))
	assert.True(t, ig.Match(filepath.Join(root, ".git/config"), false))
	assert.True(t, ig.Match(filepath.Join(root, "sub/.hg/store"), false))
	assert.True(t, ig.Match(filepath.Join(root, ".svn"), true))
}

func TestIgnoreWithoutGitignoreFile(t *testing.T) {
	root := t.TempDir()
	ig := NewIgnore(root)
	require.NoError(t, ig.Load())

	assert.False(t, ig.Match(filepath.Join(root, "anything.txt"), false))
	assert.True(t, ig.Match(filepath.Join(root, ".git/HEAD"), false))
}

func TestIgnoreAddPattern(t *testing.T) {
	root := t.TempDir()
	ig := NewIgnore(root)
	ig.AddPattern("node_modules/")

	assert.True(t, ig.Match(filepath.Join(root, "node_modules"), true))
	assert.True(t, ig.Match(filepath.Join(root, "node_modules/pkg/index.js"), false))
}
