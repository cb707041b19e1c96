package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"kodo/internal/security"
)

// ReadFilesTool reads one or more files and renders them as <file> blocks
// for prompt injection.
type ReadFilesTool struct {
	pathValidator *security.PathValidator
	maxBytes      int64
}

// NewReadFilesTool creates a ReadFilesTool confined to the given validator.
func NewReadFilesTool(validator *security.PathValidator, maxBytes int64) *ReadFilesTool {
	if maxBytes <= 0 {
		maxBytes = 512 * 1024
	}
	return &ReadFilesTool{pathValidator: validator, maxBytes: maxBytes}
}

func (t *ReadFilesTool) Name() string {
	return "read_files"
}

func (t *ReadFilesTool) Description() string {
	return "Reads one or more files and returns their contents. Paths are relative to the project root."
}

func (t *ReadFilesTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "File paths to read",
				},
				"encoding": {
					Type:        genai.TypeString,
					Description: "Text encoding (only utf-8 is supported)",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFilesTool) Validate(args map[string]any) error {
	paths, ok := GetStringSlice(args, "path")
	if !ok || len(paths) == 0 {
		return NewValidationError("path", "at least one path is required")
	}
	if enc := GetStringDefault(args, "encoding", "utf-8"); !isUTF8(enc) {
		return NewValidationError("encoding", "only utf-8 is supported")
	}
	return nil
}

func (t *ReadFilesTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	paths, _ := GetStringSlice(args, "path")

	var blocks []string
	for _, path := range paths {
		abs, err := t.pathValidator.Resolve(path)
		if err != nil {
			return Errorf("path validation failed for %s: %s", path, err), nil
		}

		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return Errorf("file not found: %s", path), nil
			}
			return Errorf("cannot access %s: %s", path, err), nil
		}
		if info.IsDir() {
			return Errorf("%s is a directory, not a file", path), nil
		}
		if info.Size() > t.maxBytes {
			return Errorf("file %s is too large (%d bytes, limit %d)", path, info.Size(), t.maxBytes), nil
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return Errorf("error reading %s: %s", path, err), nil
		}
		if isBinary(data) {
			return Errorf("cannot read binary file: %s", path), nil
		}

		blocks = append(blocks, RenderFileBlock(path, string(data)))
	}

	return OK(strings.Join(blocks, "\n")), nil
}

// RenderFileBlock renders a file as a tagged block for prompt injection.
func RenderFileBlock(path, content string) string {
	return fmt.Sprintf("<file path=%q>\n%s\n</file>", path, content)
}

func isUTF8(enc string) bool {
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// isBinary reports whether data looks binary by checking for null bytes in
// the first 512 bytes.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 512 {
		n = 512
	}
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
