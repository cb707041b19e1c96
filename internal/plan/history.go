package plan

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kodo/internal/fileutil"
	"kodo/internal/logging"
)

// History persists completed plans as JSON lines, keeping only the most
// recent entries so the file cannot grow without bound.
type History struct {
	path       string
	maxEntries int
}

// NewHistory creates a History backed by the given file.
func NewHistory(path string, maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &History{path: path, maxEntries: maxEntries}
}

// Append records a completed plan, stamping CompletedAt if unset, and trims
// the log to the retention limit.
func (h *History) Append(p *TaskPlan) error {
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}

	entries, err := h.load()
	if err != nil {
		// A corrupt log should not block recording new work.
		logging.Warn("resetting unreadable plan history", "path", h.path, "error", err)
		entries = nil
	}

	entries = append(entries, p)
	if len(entries) > h.maxEntries {
		entries = entries[len(entries)-h.maxEntries:]
	}
	return h.write(entries)
}

// Recent returns up to n completed plans, newest last.
func (h *History) Recent(n int) ([]*TaskPlan, error) {
	entries, err := h.load()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// SuccessRate reports the fraction of recorded plans whose validation
// passed, and whether any plans are recorded at all.
func (h *History) SuccessRate() (float64, bool) {
	entries, err := h.load()
	if err != nil || len(entries) == 0 {
		return 0, false
	}
	passed := 0
	for _, p := range entries {
		if p.ValidationResult.Passed() {
			passed++
		}
	}
	return float64(passed) / float64(len(entries)), true
}

func (h *History) load() ([]*TaskPlan, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []*TaskPlan
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p TaskPlan
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("malformed history entry: %w", err)
		}
		entries = append(entries, &p)
	}
	return entries, scanner.Err()
}

func (h *History) write(entries []*TaskPlan) error {
	var buf []byte
	for _, p := range entries {
		line, err := json.Marshal(p)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return fileutil.AtomicWrite(h.path, buf, 0600)
}
