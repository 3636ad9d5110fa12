package output

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
)

// contextLines is how many unchanged lines are kept around each change.
const contextLines = 3

// FileDiff describes one change a dry run intercepted.
type FileDiff struct {
	Path   string `json:"path" yaml:"path"`
	Change string `json:"change" yaml:"change"`
	To     string `json:"to,omitempty" yaml:"to,omitempty"`
	Binary bool   `json:"binary,omitempty" yaml:"binary,omitempty"`
	Text   string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// BuildDiffs turns recorded dry-run changes under root into displayable
// diffs. Text files get a line diff; binary files get a size summary.
func BuildDiffs(root string, changes []fsys.Change) []FileDiff {
	diffs := make([]FileDiff, 0, len(changes))
	for _, c := range changes {
		switch c.Kind {
		case fsys.ChangeRename:
			if fsys.IsTemp(c.To) {
				// A directory staged for deletion.
				diffs = append(diffs, FileDiff{Path: relPath(root, c.Path), Change: "removed"})
				continue
			}
			diffs = append(diffs, FileDiff{Path: relPath(root, c.Path), Change: "renamed", To: relPath(root, c.To)})

		case fsys.ChangeRemove:
			if fsys.IsTemp(c.Path) {
				continue
			}
			diffs = append(diffs, FileDiff{Path: relPath(root, c.Path), Change: "removed"})

		case fsys.ChangeWrite:
			d := FileDiff{Path: relPath(root, c.Path), Change: "modified"}
			if c.Before == nil {
				d.Change = "created"
			}
			if isText(c.Before) && isText(c.After) {
				d.Text = LineDiff(string(c.Before), string(c.After))
			} else {
				d.Binary = true
				d.Text = fmt.Sprintf("binary content %s -> %s",
					humanize.IBytes(uint64(len(c.Before))), humanize.IBytes(uint64(len(c.After))))
			}
			diffs = append(diffs, d)

		default:
			logger.Debug("ignoring unknown change", "kind", c.Kind, "path", c.Path)
		}
	}
	return diffs
}

// LineDiff renders a line-oriented diff of before and after. Unchanged runs
// are trimmed to a few lines of context.
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for i, d := range diffs {
		body := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			writeLines(&sb, "+", body)
		case diffmatchpatch.DiffDelete:
			writeLines(&sb, "-", body)
		default:
			writeContext(&sb, body, i > 0, i < len(diffs)-1)
		}
	}
	return sb.String()
}

// writeContext keeps the head of an equal run that follows a change and the
// tail of one that precedes a change. Omitted lines before the tail are
// marked with "@@".
func writeContext(sb *strings.Builder, body []string, afterChange, beforeChange bool) {
	var head, tail []string
	if afterChange {
		head = body[:min(contextLines, len(body))]
	}
	if beforeChange {
		tail = body[max(len(body)-contextLines, 0):]
	}
	if afterChange && beforeChange && len(head)+len(tail) >= len(body) {
		writeLines(sb, " ", body)
		return
	}
	writeLines(sb, " ", head)
	if len(tail) > 0 {
		if len(head)+len(tail) < len(body) {
			sb.WriteString("@@\n")
		}
		writeLines(sb, " ", tail)
	}
}

func writeLines(sb *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func isText(data []byte) bool {
	return utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}

func relPath(root, p string) string {
	if root == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
