package ui

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxDiffLines = 400

// unifiedDiff renders a colorized unified diff between two versions of a
// file, truncated so huge rewrites stay readable at the prompt.
func unifiedDiff(path, oldContent, newContent string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(oldContent, newContent, true))

	var sb strings.Builder
	sb.WriteString(diffHeadStyle.Render(fmt.Sprintf("--- %s", path)))
	sb.WriteString("\n")
	sb.WriteString(diffHeadStyle.Render(fmt.Sprintf("+++ %s", path)))
	sb.WriteString("\n")

	lineCount := 0
	added, removed := 0, 0
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			if i == len(lines)-1 && line == "" {
				continue
			}
			if lineCount >= maxDiffLines {
				continue
			}
			lineCount++
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				sb.WriteString(diffAddStyle.Render("+" + line))
				sb.WriteString("\n")
			case diffmatchpatch.DiffDelete:
				sb.WriteString(diffRemoveStyle.Render("-" + line))
				sb.WriteString("\n")
			default:
				sb.WriteString(" " + line + "\n")
			}
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += strings.Count(d.Text, "\n")
		case diffmatchpatch.DiffDelete:
			removed += strings.Count(d.Text, "\n")
		}
	}

	if lineCount >= maxDiffLines {
		sb.WriteString(mutedStyle.Render("... [diff truncated]"))
		sb.WriteString("\n")
	}
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("+%d -%d lines", added, removed)))
	return sb.String()
}
