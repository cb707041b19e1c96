package git

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// vcsDirs are always excluded from enumeration regardless of patterns.
var vcsDirs = []string{".git", ".hg", ".svn"}

// pattern represents a single gitignore pattern.
type pattern struct {
	glob     string
	negation bool // starts with !
	dirOnly  bool // ends with /
	anchored bool // contains / before the end
	baseDir  string
}

// Ignore parses and matches gitignore patterns, including !-negation.
// Patterns apply in order and the last match wins, so a file matching a
// negated pattern is never excluded even if an earlier pattern matched it.
// VCS metadata directories are hard-excluded no matter what the patterns say.
type Ignore struct {
	workDir  string
	patterns []pattern
	mu       sync.RWMutex
	loaded   bool
}

// NewIgnore creates an Ignore for the given working directory.
func NewIgnore(workDir string) *Ignore {
	return &Ignore{workDir: workDir}
}

// Load parses the root .gitignore and any nested .gitignore files.
func (ig *Ignore) Load() error {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	ig.patterns = ig.patterns[:0]
	ig.loaded = true

	root := filepath.Join(ig.workDir, ".gitignore")
	if err := ig.loadFile(root, ig.workDir); err != nil && !os.IsNotExist(err) {
		return err
	}

	return filepath.Walk(ig.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() && isVCSDir(info.Name()) {
			return filepath.SkipDir
		}
		if !info.IsDir() && info.Name() == ".gitignore" && path != root {
			if err := ig.loadFile(path, filepath.Dir(path)); err != nil && !os.IsNotExist(err) {
				return nil // nested files are best-effort
			}
		}
		return nil
	})
}

func (ig *Ignore) loadFile(path, baseDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseLine(scanner.Text(), baseDir); p != nil {
			ig.patterns = append(ig.patterns, *p)
		}
	}
	return scanner.Err()
}

// AddPattern adds a pattern programmatically, as if appended to the root file.
func (ig *Ignore) AddPattern(line string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.loaded = true
	if p := parseLine(line, ig.workDir); p != nil {
		ig.patterns = append(ig.patterns, *p)
	}
}

func parseLine(line, baseDir string) *pattern {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &pattern{baseDir: baseDir}

	if strings.HasPrefix(line, "!") {
		p.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}

	p.glob = line
	return p
}

// Match reports whether a path should be excluded from enumeration.
// isDir must reflect whether the path names a directory; callers walking a
// tree know this without an extra stat.
func (ig *Ignore) Match(path string, isDir bool) bool {
	rel, err := filepath.Rel(ig.workDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return false
	}

	// VCS metadata is excluded unconditionally, negations included.
	for _, part := range strings.Split(rel, "/") {
		if isVCSDir(part) {
			return true
		}
	}

	ig.mu.RLock()
	defer ig.mu.RUnlock()
	if !ig.loaded {
		return false
	}

	ignored := false
	for _, p := range ig.patterns {
		if ig.matchPattern(p, rel, isDir) {
			ignored = !p.negation
		}
	}
	return ignored
}

func (ig *Ignore) matchPattern(p pattern, rel string, isDir bool) bool {
	// A dir-only pattern still excludes files beneath a matching directory,
	// which the **-suffixed variants below cover.
	if p.dirOnly && !isDir && !strings.Contains(rel, "/") {
		return false
	}

	glob := p.glob
	if p.baseDir != ig.workDir {
		baseRel, err := filepath.Rel(ig.workDir, p.baseDir)
		if err == nil {
			glob = filepath.ToSlash(filepath.Join(baseRel, p.glob))
		}
	}

	if p.anchored {
		return globMatch(glob, rel) || globMatch(glob+"/**", rel)
	}

	if globMatch("**/"+glob, rel) || globMatch("**/"+glob+"/**", rel) {
		return true
	}
	return globMatch(glob, filepath.Base(rel))
}

func globMatch(glob, path string) bool {
	ok, err := doublestar.Match(glob, path)
	return err == nil && ok
}

func isVCSDir(name string) bool {
	for _, d := range vcsDirs {
		if name == d {
			return true
		}
	}
	return false
}
