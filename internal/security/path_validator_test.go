package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRelativePathsStayInRoot(t *testing.T) {
	root := t.TempDir()
	v := NewPathValidator(root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0644))

	got, err := v.Resolve("main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "main.go"), got)
}

func TestResolveRejectsTraversal(t *testing.T) {
	v := NewPathValidator(t.TempDir())

	cases := []string{
		"../outside.txt",
		"../../etc/passwd",
		"sub/../../outside.txt",
		"./../sibling",
	}
	for _, path := range cases {
		_, err := v.Resolve(path)
		assert.Error(t, err, "path %q must be rejected", path)
	}
}

func TestResolveRejectsAbsoluteOutsideRoot(t *testing.T) {
	v := NewPathValidator(t.TempDir())

	_, err := v.Resolve("/etc/passwd")
	assert.Error(t, err)
}

func TestResolveRejectsEmptyAndNullByte(t *testing.T) {
	v := NewPathValidator(t.TempDir())

	_, err := v.Resolve("")
	assert.Error(t, err)

	_, err = v.Resolve("a\x00b")
	assert.Error(t, err)
}

func TestResolveAllowsNewFiles(t *testing.T) {
	root := t.TempDir()
	v := NewPathValidator(root)

	got, err := v.Resolve("brand/new/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "brand", "new", "file.txt"), got)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	v := NewPathValidator(root)
	_, err := v.Resolve("escape/secret.txt")
	assert.Error(t, err)
}

func TestResolveFileRequiresExistingParent(t *testing.T) {
	v := NewPathValidator(t.TempDir())

	_, err := v.ResolveFile("missing/dir/file.txt")
	assert.Error(t, err)
}

func TestResolveDirRejectsFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0644))

	v := NewPathValidator(root)
	_, err := v.ResolveDir("f.txt")
	assert.Error(t, err)

	got, err := v.ResolveDir(".")
	require.NoError(t, err)
	assert.Equal(t, root, got)
}
