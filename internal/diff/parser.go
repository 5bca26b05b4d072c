// Package diff parses unified diffs and mines them for search queries,
// structural symbols, and author intent. The parser is tolerant: malformed
// input degrades to fewer changes, never to an error.
package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ebernie/kode-context/internal/core"
)

var (
	fileHeaderRegex = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)
)

// pendingDel is a removed line waiting to be paired with an added line
// inside the same hunk.
type pendingDel struct {
	line    int
	content string
}

// Parse scans a unified diff once and produces the change records the
// retrieval pipeline keys on. An empty or unrecognizable diff yields an
// empty ParsedDiff.
func Parse(diffContent string) *core.ParsedDiff {
	parsed := &core.ParsedDiff{
		PerFile: make(map[string]*core.FileChanges),
	}

	var (
		filename string
		oldLine  int
		newLine  int
		inHunk   bool
		pending  []pendingDel
	)

	flushPending := func() {
		for _, d := range pending {
			appendChange(parsed, core.DiffChange{
				Filename: filename,
				Line:     d.line,
				Content:  d.content,
				Kind:     core.ChangeDel,
			})
		}
		pending = pending[:0]
	}

	for _, line := range strings.Split(diffContent, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushPending()
			inHunk = false
			if m := fileHeaderRegex.FindStringSubmatch(line); m != nil {
				filename = m[2]
			}

		case strings.HasPrefix(line, "@@"):
			flushPending()
			m := hunkHeaderRegex.FindStringSubmatch(line)
			if m == nil {
				inHunk = false
				continue
			}
			oldLine, _ = strconv.Atoi(m[1])
			newLine, _ = strconv.Atoi(m[2])
			inHunk = true

		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"),
			strings.HasPrefix(line, "index "), strings.HasPrefix(line, "new file"),
			strings.HasPrefix(line, "deleted file"), strings.HasPrefix(line, "Binary "):
			// metadata lines carry no change content

		case !inHunk || filename == "":
			// preamble or unrecognized content between hunks

		case strings.HasPrefix(line, "-"):
			pending = append(pending, pendingDel{line: oldLine, content: strings.TrimPrefix(line, "-")})
			oldLine++

		case strings.HasPrefix(line, "+"):
			content := strings.TrimPrefix(line, "+")
			if len(pending) > 0 {
				// A removal directly above an addition is one logical
				// modification; record both sides under mods.
				d := pending[0]
				pending = pending[1:]
				appendChange(parsed, core.DiffChange{
					Filename: filename,
					Line:     newLine,
					Content:  content,
					Kind:     core.ChangeMod,
				})
				appendChange(parsed, core.DiffChange{
					Filename: filename,
					Line:     d.line,
					Content:  d.content,
					Kind:     core.ChangeMod,
				})
			} else {
				appendChange(parsed, core.DiffChange{
					Filename: filename,
					Line:     newLine,
					Content:  content,
					Kind:     core.ChangeAdd,
				})
			}
			newLine++

		default:
			// context line (leading space) or an empty line inside a hunk
			flushPending()
			oldLine++
			newLine++
		}
	}
	flushPending()

	return parsed
}

func appendChange(parsed *core.ParsedDiff, change core.DiffChange) {
	parsed.Changes = append(parsed.Changes, change)

	fc, ok := parsed.PerFile[change.Filename]
	if !ok {
		fc = &core.FileChanges{}
		parsed.PerFile[change.Filename] = fc
	}
	switch change.Kind {
	case core.ChangeAdd:
		fc.Adds = append(fc.Adds, change.Line)
	case core.ChangeDel:
		fc.Dels = append(fc.Dels, change.Line)
	case core.ChangeMod:
		fc.Mods = append(fc.Mods, change.Line)
	}
}
