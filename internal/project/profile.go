// Package project builds a bounded snapshot of the workspace that planning
// and execution prompts can lean on without re-scanning the disk.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kodo/internal/git"
)

// ContextProfile is a compact description of the project a session works in.
type ContextProfile struct {
	ProjectRoot        string
	CurrentDirectory   string
	Files              []string
	Dependencies       []string
	TechnologyStack    []string
	DirectoryStructure string
	Guidelines         string
}

// Render formats the profile for inclusion in a model prompt.
func (p *ContextProfile) Render() string {
	var sb strings.Builder
	sb.WriteString("Project context:\n")
	fmt.Fprintf(&sb, "- Root: %s\n", p.ProjectRoot)
	if len(p.TechnologyStack) > 0 {
		fmt.Fprintf(&sb, "- Technologies: %s\n", strings.Join(p.TechnologyStack, ", "))
	}
	if len(p.Dependencies) > 0 {
		fmt.Fprintf(&sb, "- Dependencies: %s\n", strings.Join(p.Dependencies, ", "))
	}
	if p.DirectoryStructure != "" {
		sb.WriteString("- Layout:\n")
		sb.WriteString(indent(p.DirectoryStructure, "  "))
		sb.WriteString("\n")
	}
	if p.Guidelines != "" {
		sb.WriteString("- Project guidelines:\n")
		sb.WriteString(indent(p.Guidelines, "  "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Builder scans a workspace into a ContextProfile.
type Builder struct {
	workDir   string
	scanDepth int
}

// NewBuilder creates a Builder rooted at workDir. scanDepth bounds how deep
// the directory walk goes; values below 1 fall back to 4.
func NewBuilder(workDir string, scanDepth int) *Builder {
	if scanDepth < 1 {
		scanDepth = 4
	}
	return &Builder{workDir: workDir, scanDepth: scanDepth}
}

// Build scans the workspace. Scanning is best effort: unreadable corners of
// the tree are skipped rather than failing the whole profile.
func (b *Builder) Build() (*ContextProfile, error) {
	root, err := filepath.Abs(b.workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	ignore := git.NewIgnore(root)
	if err := ignore.Load(); err != nil {
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}

	files, dirs := b.scan(root, ignore)

	profile := &ContextProfile{
		ProjectRoot:        root,
		CurrentDirectory:   root,
		Files:              files,
		TechnologyStack:    detectTechnologies(root, files),
		Dependencies:       detectDependencies(root),
		DirectoryStructure: renderTree(dirs),
		Guidelines:         readGuidelines(root),
	}
	return profile, nil
}

// scan walks the tree to the configured depth, collecting relative file
// paths and the directories that contain them.
func (b *Builder) scan(root string, ignore *git.Ignore) (files []string, dirs []string) {
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if ignore.Match(path, e.IsDir()) {
				continue
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if e.IsDir() {
				if depth < b.scanDepth {
					dirs = append(dirs, rel)
					walk(path, depth+1)
				}
				continue
			}
			files = append(files, rel)
		}
	}
	walk(root, 1)
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

var techMarkers = []struct {
	file string
	tech string
}{
	{"go.mod", "Go"},
	{"package.json", "JavaScript/Node"},
	{"tsconfig.json", "TypeScript"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"pom.xml", "Java"},
	{"build.gradle", "Java/Gradle"},
	{"Gemfile", "Ruby"},
	{"composer.json", "PHP"},
	{"CMakeLists.txt", "C/C++"},
	{"Dockerfile", "Docker"},
	{"Makefile", "Make"},
}

func detectTechnologies(root string, files []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range techMarkers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil && !seen[m.tech] {
			seen[m.tech] = true
			out = append(out, m.tech)
		}
	}
	return out
}

// detectDependencies pulls direct dependency names from the manifests the
// project actually has. Only names are collected; versions are noise at
// planning time.
func detectDependencies(root string) []string {
	var deps []string
	deps = append(deps, goModDeps(filepath.Join(root, "go.mod"))...)
	deps = append(deps, packageJSONDeps(filepath.Join(root, "package.json"))...)
	sort.Strings(deps)
	return deps
}

func goModDeps(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var deps []string
	inBlock := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "require (":
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock && line != "" && !strings.Contains(line, "// indirect"):
			if fields := strings.Fields(line); len(fields) >= 1 {
				deps = append(deps, fields[0])
			}
		case strings.HasPrefix(line, "require ") && !strings.HasSuffix(line, "("):
			if fields := strings.Fields(line); len(fields) >= 2 {
				deps = append(deps, fields[1])
			}
		}
	}
	return deps
}

func packageJSONDeps(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	// A light scrape is enough here; planning only needs the names.
	var deps []string
	inDeps := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, `"dependencies"`) || strings.HasPrefix(trimmed, `"devDependencies"`) {
			inDeps = true
			continue
		}
		if inDeps {
			if strings.HasPrefix(trimmed, "}") {
				inDeps = false
				continue
			}
			if name, ok := strings.CutPrefix(trimmed, `"`); ok {
				if end := strings.Index(name, `"`); end > 0 {
					deps = append(deps, name[:end])
				}
			}
		}
	}
	return deps
}

func renderTree(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range dirs {
		depth := strings.Count(d, "/")
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(filepath.Base(d))
		sb.WriteString("/\n")
	}
	return sb.String()
}

var guidelineFiles = []string{"AGENTS.md", "CONTRIBUTING.md", "README.md"}

const maxGuidelineBytes = 8 * 1024

// readGuidelines returns the first guideline document found, truncated.
func readGuidelines(root string) string {
	for _, name := range guidelineFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		text := string(data)
		if len(text) > maxGuidelineBytes {
			text = text[:maxGuidelineBytes] + "\n... [truncated]"
		}
		return text
	}
	return ""
}
