// Package parser turns normalized file blocks into a structured PatchSet.
// Parsing is tolerant: a block that cannot be understood is skipped rather
// than aborting the whole batch.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/patchlab/patchcore/pkg/normalizer"
	"github.com/patchlab/patchcore/pkg/patch"
)

var (
	reDiffGit = regexp.MustCompile(`^diff --git (.+?) (.+?)\s*$`)
	reHunk    = regexp.MustCompile(`^@@\s+-(\d+)(?:,(\d+))?\s+\+(\d+)(?:,(\d+))?\s+@@(.*)$`)
)

// Parse converts dialect-tagged file blocks into a PatchSet. Blocks that do
// not match the recognized shape for their dialect are dropped.
func Parse(dialect patch.Dialect, blocks []normalizer.FileBlock) *patch.PatchSet {
	ps := &patch.PatchSet{Dialect: dialect}

	for _, block := range blocks {
		lines := strings.Split(strings.TrimSuffix(block.Text, "\n"), "\n")
		if len(lines) == 0 {
			continue
		}

		var fp *patch.FilePatch
		switch dialect {
		case patch.DialectGit:
			fp = parseGitBlock(lines)
		case patch.DialectIndex:
			fp = parseIndexBlock(lines, block.IndexPath)
		default:
			fp = parseClassicBlock(lines)
		}

		if fp != nil {
			ps.Files = append(ps.Files, *fp)
		}
	}

	return ps
}

func stripPrefixAB(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "a/") && len(p) > 2 {
		return p[2:]
	}
	if strings.HasPrefix(p, "b/") && len(p) > 2 {
		return p[2:]
	}
	return p
}

func pathFromHeaderLine(line, prefix string) string {
	rest := line[len(prefix):]
	if idx := strings.IndexByte(rest, '\t'); idx >= 0 {
		return strings.TrimSpace(rest[:idx])
	}
	return strings.TrimSpace(rest)
}

func inferOperation(oldPath, newPath string, metadata map[string]string) patch.Operation {
	if _, ok := metadata["new_file_mode"]; ok {
		return patch.OpCreate
	}
	if oldPath == "/dev/null" {
		return patch.OpCreate
	}
	if _, ok := metadata["deleted_file_mode"]; ok {
		return patch.OpDelete
	}
	if newPath == "/dev/null" {
		return patch.OpDelete
	}
	if _, ok := metadata["rename_from"]; ok {
		return patch.OpRename
	}
	if _, ok := metadata["rename_to"]; ok {
		return patch.OpRename
	}
	if oldPath != newPath && oldPath != "/dev/null" && newPath != "/dev/null" {
		return patch.OpRename
	}
	return patch.OpModify
}

func binaryFilePatch(oldPath, newPath, display, reason string, metadata map[string]string) *patch.FilePatch {
	return &patch.FilePatch{
		OldPath:      oldPath,
		NewPath:      newPath,
		DisplayPath:  display,
		Operation:    patch.OpModify,
		IsBinary:     true,
		BinaryReason: reason,
		Metadata:     metadata,
	}
}

func detectBinaryReason(lines []string) string {
	for _, ln := range lines {
		if strings.HasPrefix(ln, "GIT binary patch") {
			return "GIT binary patch unsupported"
		}
		if strings.HasPrefix(ln, "Binary files ") {
			return "Binary files differ (unsupported)"
		}
	}
	return ""
}

func parseGitBlock(lines []string) *patch.FilePatch {
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	m := reDiffGit.FindStringSubmatch(first)
	if m == nil {
		return nil
	}

	oldPath := stripPrefixAB(m[1])
	newPath := stripPrefixAB(m[2])
	metadata := map[string]string{"diff_git": lines[0]}

	if reason := detectBinaryReason(lines); reason != "" {
		display := stripPrefixAB(firstNonEmpty(newPath, oldPath))
		return binaryFilePatch(oldPath, newPath, display, reason, metadata)
	}

	i := 1
	var oldHdr, newHdr *string
metadataLoop:
	for i < len(lines) {
		ln := lines[i]
		switch {
		case strings.HasPrefix(ln, "index "):
			metadata["index"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "old mode "):
			metadata["old_mode"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "new mode "):
			metadata["new_mode"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "new file mode "):
			metadata["new_file_mode"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "deleted file mode "):
			metadata["deleted_file_mode"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "similarity index "):
			metadata["similarity_index"] = strings.TrimSpace(ln)
		case strings.HasPrefix(ln, "rename from "):
			metadata["rename_from"] = strings.TrimSpace(strings.TrimPrefix(ln, "rename from "))
		case strings.HasPrefix(ln, "rename to "):
			metadata["rename_to"] = strings.TrimSpace(strings.TrimPrefix(ln, "rename to "))
		case strings.HasPrefix(ln, "--- "):
			h := pathFromHeaderLine(ln, "--- ")
			oldHdr = &h
			i++
			break metadataLoop
		}
		i++
	}
	if oldHdr != nil {
		for i < len(lines) {
			ln := lines[i]
			if strings.HasPrefix(ln, "+++ ") {
				h := pathFromHeaderLine(ln, "+++ ")
				newHdr = &h
				i++
				break
			}
			i++
		}
	}

	if oldHdr != nil {
		if *oldHdr == "/dev/null" {
			oldPath = "/dev/null"
		} else {
			oldPath = stripPrefixAB(*oldHdr)
		}
	}
	if newHdr != nil {
		if *newHdr == "/dev/null" {
			newPath = "/dev/null"
		} else {
			newPath = stripPrefixAB(*newHdr)
		}
	}

	op := inferOperation(oldPath, newPath, metadata)
	display := stripPrefixAB(firstNonDevNull(newPath, oldPath))
	fp := &patch.FilePatch{OldPath: oldPath, NewPath: newPath, DisplayPath: display, Operation: op, Metadata: metadata}
	fp.Hunks = parseHunksFrom(lines[i:])
	return fp
}

func parseIndexBlock(lines []string, indexPath string) *patch.FilePatch {
	metadata := map[string]string{}
	if indexPath != "" {
		metadata["index_path"] = indexPath
	}

	if reason := detectBinaryReason(lines); reason != "" {
		display := indexPath
		if display == "" {
			display = "(unknown)"
		}
		return binaryFilePatch(display, display, display, reason, metadata)
	}

	i := 0
	var oldPath string
	found := false
	for i < len(lines) {
		if strings.HasPrefix(lines[i], "--- ") {
			oldPath = pathFromHeaderLine(lines[i], "--- ")
			i++
			found = true
			break
		}
		i++
	}
	if !found {
		return nil
	}

	var newPath string
	found = false
	for i < len(lines) {
		if strings.HasPrefix(lines[i], "+++ ") {
			newPath = pathFromHeaderLine(lines[i], "+++ ")
			i++
			found = true
			break
		}
		i++
	}
	if !found {
		return nil
	}

	if oldPath != "/dev/null" {
		oldPath = stripPrefixAB(oldPath)
	}
	if newPath != "/dev/null" {
		newPath = stripPrefixAB(newPath)
	}

	op := inferOperation(oldPath, newPath, metadata)
	display := stripPrefixAB(firstNonDevNull(newPath, oldPath))
	fp := &patch.FilePatch{OldPath: oldPath, NewPath: newPath, DisplayPath: display, Operation: op, Metadata: metadata}
	fp.Hunks = parseHunksFrom(lines[i:])
	return fp
}

func parseClassicBlock(lines []string) *patch.FilePatch {
	metadata := map[string]string{}

	if reason := detectBinaryReason(lines); reason != "" {
		return binaryFilePatch("(unknown)", "(unknown)", "(unknown)", reason, metadata)
	}

	if len(lines) == 0 || !strings.HasPrefix(lines[0], "--- ") {
		idx := 0
		for idx < len(lines) && !strings.HasPrefix(lines[idx], "--- ") {
			idx++
		}
		if idx >= len(lines) {
			return nil
		}
		lines = lines[idx:]
	}

	oldHdr := pathFromHeaderLine(lines[0], "--- ")
	oldPath := oldHdr
	if oldHdr != "/dev/null" {
		oldPath = stripPrefixAB(oldHdr)
	}

	i := 1
	var newPath string
	found := false
	for i < len(lines) {
		if strings.HasPrefix(lines[i], "+++ ") {
			newHdr := pathFromHeaderLine(lines[i], "+++ ")
			newPath = newHdr
			if newHdr != "/dev/null" {
				newPath = stripPrefixAB(newHdr)
			}
			i++
			found = true
			break
		}
		i++
	}
	if !found {
		return nil
	}

	op := inferOperation(oldPath, newPath, metadata)
	display := stripPrefixAB(firstNonDevNull(newPath, oldPath))
	fp := &patch.FilePatch{OldPath: oldPath, NewPath: newPath, DisplayPath: display, Operation: op, Metadata: metadata}
	fp.Hunks = parseHunksFrom(lines[i:])
	return fp
}

func parseHunksFrom(lines []string) []patch.Hunk {
	var hunks []patch.Hunk
	var current *patch.Hunk

	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, ln := range lines {
		if m := reHunk.FindStringSubmatch(ln); m != nil {
			flush()
			oldStart, _ := strconv.Atoi(m[1])
			oldCount := 1
			if m[2] != "" {
				oldCount, _ = strconv.Atoi(m[2])
			}
			newStart, _ := strconv.Atoi(m[3])
			newCount := 1
			if m[4] != "" {
				newCount, _ = strconv.Atoi(m[4])
			}
			current = &patch.Hunk{
				OldStart: oldStart,
				OldCount: oldCount,
				NewStart: newStart,
				NewCount: newCount,
				Header:   strings.TrimSpace(ln),
			}
			continue
		}

		if current == nil {
			continue
		}

		if strings.HasPrefix(ln, "\\ No newline at end of file") {
			continue
		}
		if ln == "" {
			current.Lines = append(current.Lines, patch.Line{Tag: patch.TagContext, Text: ""})
			continue
		}

		switch ln[0] {
		case ' ', '+', '-':
			current.Lines = append(current.Lines, patch.Line{Tag: patch.LineTag(ln[0]), Text: ln[1:]})
		default:
			current.Lines = append(current.Lines, patch.Line{Tag: patch.TagContext, Text: ln})
		}
	}
	flush()
	return hunks
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonDevNull(newPath, oldPath string) string {
	if newPath != "/dev/null" {
		return newPath
	}
	return oldPath
}
