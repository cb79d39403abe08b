package applier

import (
	"os"
	"strings"

	"github.com/patchlab/patchcore/pkg/locator"
	"github.com/patchlab/patchcore/pkg/patch"
)

// applyFilePatchInMemory applies fp's hunks to the current content of
// resolvedPath (or an empty buffer for a create operation) and returns the
// resulting text, per-file stats, and a diagnostics slice describing any
// hunk that could not be located or verified.
func applyFilePatchInMemory(fp *patch.FilePatch, resolvedPath string, opts patch.Options) (text string, stats patch.FileApplyStats, diagnostics []patch.Diagnostic, failed bool, conflicted bool) {
	// The empty text splits to a single empty element, the same trailing
	// marker a non-empty LF-terminated file carries.
	outLines := []string{""}

	if fp.Operation != patch.OpCreate {
		raw, err := os.ReadFile(resolvedPath)
		orig := ""
		if err == nil {
			orig = string(raw)
		}
		orig = strings.ReplaceAll(orig, "\r\n", "\n")
		orig = strings.ReplaceAll(orig, "\r", "\n")
		outLines = strings.Split(orig, "\n")
		if strings.HasSuffix(orig, "\n") {
			if len(outLines) == 0 || outLines[len(outLines)-1] != "" {
				outLines = append(outLines, "")
			}
		}
	}

	lineOffset := 0

	for hIdx, h := range fp.Hunks {
		expectedPos := (h.OldStart - 1) + lineOffset
		if expectedPos < 0 {
			expectedPos = 0
		}

		pos, ok, trace := locator.Locate(outLines, h, expectedPos, opts.IgnoreWhitespaceDifferences, opts.BestEffortFuzzyApply, opts.FuzzyWindowSize)

		if !ok {
			diagnostics = append(diagnostics, buildMismatchDiag(outLines, h, expectedPos, trace, hIdx, ""))

			if opts.ConflictMarkerMode {
				outLines = insertConflictMarkers(outLines, expectedPos, h)
				conflicted = true
				stats.HunksApplied++
				continue
			}
			failed = true
			break
		}

		newOut, delta, mismatch := applyHunkAt(outLines, h, pos, opts.IgnoreWhitespaceDifferences)
		if mismatch != "" {
			diagnostics = append(diagnostics, buildMismatchDiag(outLines, h, pos, trace, hIdx, mismatch))

			if opts.ConflictMarkerMode {
				outLines = insertConflictMarkers(outLines, pos, h)
				conflicted = true
				stats.HunksApplied++
				continue
			}
			failed = true
			break
		}

		outLines = newOut
		lineOffset += delta
		stats.HunksApplied++
		stats.LinesAdded += countTag(h.Lines, patch.TagAddition)
		stats.LinesRemoved += countTag(h.Lines, patch.TagDeletion)
	}

	text = strings.Join(outLines, "\n")
	return text, stats, diagnostics, failed, conflicted
}

func countTag(lines []patch.Line, tag patch.LineTag) int {
	n := 0
	for _, l := range lines {
		if l.Tag == tag {
			n++
		}
	}
	return n
}

// applyHunkAt applies a single hunk's lines starting at pos, re-verifying
// every context/deletion line as it goes (the locator only checked the
// anchor sequence; this walks the full hunk body). Returns the new buffer,
// the net line-count delta, and a non-empty mismatch reason on failure.
func applyHunkAt(lines []string, h patch.Hunk, pos int, ignoreWS bool) ([]string, int, string) {
	i := pos
	out := make([]string, 0, len(lines)+countTag(h.Lines, patch.TagAddition))
	out = append(out, lines[:pos]...)

	for _, l := range h.Lines {
		switch l.Tag {
		case patch.TagContext:
			if i >= len(lines) {
				return lines, 0, "Context beyond EOF"
			}
			if locator.NormalizeMatchLine(l.Text, ignoreWS) != locator.NormalizeMatchLine(lines[i], ignoreWS) {
				return lines, 0, "Context mismatch"
			}
			out = append(out, lines[i])
			i++
		case patch.TagDeletion:
			if i >= len(lines) {
				return lines, 0, "Deletion beyond EOF"
			}
			if locator.NormalizeMatchLine(l.Text, ignoreWS) != locator.NormalizeMatchLine(lines[i], ignoreWS) {
				return lines, 0, "Deletion mismatch"
			}
			i++
		case patch.TagAddition:
			out = append(out, l.Text)
		}
	}

	out = append(out, lines[i:]...)
	delta := countTag(h.Lines, patch.TagAddition) - countTag(h.Lines, patch.TagDeletion)
	return out, delta, ""
}

// buildMismatchDiag assembles a Diagnostic with enough surrounding context
// for a host to render a useful "it didn't apply here, and here's why"
// message without re-reading the file itself.
func buildMismatchDiag(lines []string, h patch.Hunk, attemptedPos int, trace patch.LocatorTrace, hunkIndex int, mismatch string) patch.Diagnostic {
	excerptStart := attemptedPos - 2
	if excerptStart < 0 {
		excerptStart = 0
	}
	excerptEnd := attemptedPos + 3
	if excerptEnd > len(lines) {
		excerptEnd = len(lines)
	}
	var actualExcerpt []string
	if excerptStart < excerptEnd {
		actualExcerpt = append(actualExcerpt, lines[excerptStart:excerptEnd]...)
	}

	var expectedExcerpt []string
	for _, l := range h.Lines {
		if l.Tag == patch.TagContext || l.Tag == patch.TagDeletion {
			expectedExcerpt = append(expectedExcerpt, l.Text)
			if len(expectedExcerpt) == 5 {
				break
			}
		}
	}

	kind := patch.DiagLocatorFailed
	message := "Could not locate this hunk's context in the current file content."
	if mismatch != "" {
		kind = patch.DiagApplyReVerifyFailed
		message = "Hunk was located but a line within it no longer matched on re-verification."
	}

	return patch.Diagnostic{
		Kind:                kind,
		HunkIndex:           hunkIndex,
		HunkHeader:          h.Header,
		AttemptedLine1Based: attemptedPos + 1,
		AttemptedPos0Based:  attemptedPos,
		Trace:               trace,
		ExpectedExcerpt:     expectedExcerpt,
		ActualExcerpt:       actualExcerpt,
		MismatchReason:      mismatch,
		Message:             message,
	}
}

// insertConflictMarkers splices advisory conflict markers into lines at pos
// when a hunk cannot be cleanly applied. This is opt-in (ConflictMarkerMode)
// and does not claim the markers reflect true merge intent — only that the
// original and patch content are both preserved for manual resolution.
func insertConflictMarkers(lines []string, pos int, h patch.Hunk) []string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(lines) {
		pos = len(lines)
	}

	var originalPart, patchPart []string
	for _, l := range h.Lines {
		if l.Tag == patch.TagContext || l.Tag == patch.TagDeletion {
			originalPart = append(originalPart, l.Text)
		}
		if l.Tag == patch.TagContext || l.Tag == patch.TagAddition {
			patchPart = append(patchPart, l.Text)
		}
	}

	markers := make([]string, 0, len(originalPart)+len(patchPart)+3)
	markers = append(markers, "<<<<<<< ORIGINAL")
	markers = append(markers, originalPart...)
	markers = append(markers, "=======")
	markers = append(markers, patchPart...)
	markers = append(markers, ">>>>>>> PATCH")

	out := make([]string, 0, len(lines)+len(markers))
	out = append(out, lines[:pos]...)
	out = append(out, markers...)
	out = append(out, lines[pos:]...)
	return out
}
