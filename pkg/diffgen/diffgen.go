// Package diffgen renders unified diffs between an original and an edited
// text, and stitches per-file diffs into a single multi-file patch document
// in PatchSet order.
package diffgen

import (
	"strings"

	"github.com/patchlab/patchcore/pkg/patch"
	"github.com/pmezard/go-difflib/difflib"
)

const contextLines = 3

// GenerateUnifiedForFile renders a unified diff between oldText and newText,
// labeling the two sides with oldPath/newPath. Both texts are folded to LF
// line endings before comparison, matching how the rest of this module
// represents in-memory content.
func GenerateUnifiedForFile(oldText, newText, oldPath, newPath string) (string, error) {
	oldFolded := foldEOL(oldText)
	newFolded := foldEOL(newText)

	a := splitLinesKeepEnds(oldFolded)
	b := splitLinesKeepEnds(newFolded)
	// A final line without "\n" is terminated here and followed by the
	// standard "\ No newline at end of file" marker, so every emitted diff
	// line stays on its own line.
	for _, side := range [][]string{a, b} {
		if n := len(side); n > 0 && !strings.HasSuffix(side[n-1], "\n") {
			side[n-1] += "\n\\ No newline at end of file\n"
		}
	}

	diff := difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: oldPath,
		ToFile:   newPath,
		Eol:      "\n",
		Context:  contextLines,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// GenerateUnifiedPatchSet renders one combined unified-diff document
// covering every non-binary file in ps, in ps's order. baseline holds each
// file's original content (keyed by DisplayPath); outputs holds the
// resulting content after edits (as produced by Preview). A file absent
// from outputs for a modify is treated as unchanged.
func GenerateUnifiedPatchSet(baseline, outputs map[string]string, ps *patch.PatchSet) (string, error) {
	var buf strings.Builder

	for _, fp := range ps.Files {
		if fp.IsBinary {
			continue
		}

		display := fp.DisplayPath
		var oldText, newText, oldLabel, newLabel string

		switch fp.Operation {
		case patch.OpDelete:
			oldText = baseline[display]
			newText = ""
			oldLabel = fp.OldPath
			newLabel = "/dev/null"
		case patch.OpCreate:
			oldText = ""
			newText = outputs[display]
			oldLabel = "/dev/null"
			newLabel = fp.NewPath
		default:
			oldText = baseline[display]
			if out, ok := outputs[display]; ok {
				newText = out
			} else {
				newText = oldText
			}
			oldLabel = fp.OldPath
			newLabel = fp.NewPath
		}

		block, err := GenerateUnifiedForFile(oldText, newText, oldLabel, newLabel)
		if err != nil {
			return "", err
		}
		if block == "" {
			continue
		}
		if !strings.HasSuffix(block, "\n") {
			block += "\n"
		}
		buf.WriteString(block)
	}

	return buf.String(), nil
}

func foldEOL(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// splitLinesKeepEnds splits s into lines, each retaining its trailing "\n"
// except possibly the last, which keeps none if s did not end in one. This
// avoids go-difflib's own SplitLines quirk of always terminating the final
// element, which would fabricate a trailing blank line for content that
// never had one.
func splitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
