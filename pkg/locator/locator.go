// Package locator finds where a hunk's anchor lines live in a buffer that
// may have drifted from the position recorded in the hunk header.
package locator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/patchlab/patchcore/pkg/patch"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeMatchLine trims trailing CR/LF and whitespace, then optionally
// collapses interior whitespace runs, for a content-insensitive compare.
func NormalizeMatchLine(s string, ignoreWhitespace bool) string {
	s = strings.TrimRight(s, "\r\n")
	s = strings.TrimRight(s, " \t")
	if ignoreWhitespace {
		s = whitespaceRun.ReplaceAllString(s, " ")
	}
	return s
}

// anchorSequence returns the hunk's context+deletion lines in order; these
// are the lines that must already exist in the buffer being patched.
func anchorSequence(hunk patch.Hunk) []patch.Line {
	var seq []patch.Line
	for _, l := range hunk.Lines {
		if l.Tag == patch.TagContext || l.Tag == patch.TagDeletion {
			seq = append(seq, l)
		}
	}
	return seq
}

// AnchorsMatch reports whether the hunk's anchor sequence matches the
// buffer starting at pos.
func AnchorsMatch(lines []string, hunk patch.Hunk, pos int, ignoreWhitespace bool) bool {
	seq := anchorSequence(hunk)
	if len(seq) == 0 {
		return true
	}
	if pos < 0 || pos > len(lines) {
		return false
	}
	idx := pos
	for _, l := range seq {
		if idx >= len(lines) {
			return false
		}
		want := NormalizeMatchLine(l.Text, ignoreWhitespace)
		have := NormalizeMatchLine(lines[idx], ignoreWhitespace)
		if want != have {
			return false
		}
		idx++
	}
	return true
}

// Locate finds a position for hunk's anchors. It first tries expectedPos
// (bounded to the buffer) and, if that fails and fuzzy is enabled, searches
// within ±fuzzyWindow lines, picking the candidate closest to expectedPos
// (ties broken by the smallest index).
func Locate(lines []string, hunk patch.Hunk, expectedPos int, ignoreWhitespace bool, fuzzy bool, fuzzyWindow int) (pos int, ok bool, trace patch.LocatorTrace) {
	trace = patch.LocatorTrace{Mode: "strict", ExpectedPos: expectedPos}

	bounded := expectedPos
	if bounded < 0 {
		bounded = 0
	}
	if bounded > len(lines) {
		bounded = len(lines)
	}

	if AnchorsMatch(lines, hunk, bounded, ignoreWhitespace) {
		trace.Matched = true
		trace.MatchedAt = bounded
		return bounded, true, trace
	}

	if !fuzzy {
		trace.Reason = "Anchors did not match at expected location."
		return 0, false, trace
	}

	trace.Mode = "fuzzy"
	start := bounded - fuzzyWindow
	if start < 0 {
		start = 0
	}
	end := bounded + fuzzyWindow
	if end > len(lines) {
		end = len(lines)
	}

	var candidates []int
	for p := start; p <= end; p++ {
		if AnchorsMatch(lines, hunk, p, ignoreWhitespace) {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		trace.Reason = "No anchor match found within fuzzy window."
		return 0, false, trace
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := abs(candidates[i] - bounded)
		dj := abs(candidates[j] - bounded)
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	chosen := candidates[0]
	trace.Matched = true
	trace.MatchedAt = chosen
	trace.DeltaFromExpected = chosen - bounded
	trace.CandidateCount = len(candidates)
	if len(candidates) > 1 && abs(candidates[0]-bounded) == abs(candidates[1]-bounded) {
		trace.Ambiguous = true
		trace.Reason = "Multiple equally-close matches; deterministic tie-break by earliest."
	}
	return chosen, true, trace
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
