// Package normalizer folds line endings, strips a leading BOM, detects the
// patch dialect, and splits raw patch text into per-file blocks.
package normalizer

import (
	"strings"

	"github.com/patchlab/patchcore/pkg/patch"
)

const bom = "\xef\xbb\xbf"

const (
	binaryMarkerGit     = "GIT binary patch"
	binaryMarkerClassic = "Binary files "
)

// FileBlock is one dialect-specific chunk of normalized text believed to
// describe changes to a single file.
type FileBlock struct {
	Dialect            patch.Dialect
	Text               string
	IndexPath          string
	HasBinaryIndicator bool
}

// Normalize strips a leading BOM, folds CRLF/CR to LF, detects the dialect
// deterministically from the folded text, and splits it into file blocks.
func Normalize(raw string) (normalized string, dialect patch.Dialect, blocks []FileBlock) {
	raw = strings.TrimPrefix(raw, bom)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	hasHunk := false
	hasGit := false
	hasIndex := false
	hasMinus := false
	hasPlus := false
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "@@"):
			hasHunk = true
		case strings.HasPrefix(l, "diff --git "):
			hasGit = true
		case strings.HasPrefix(l, "Index: "):
			hasIndex = true
		case strings.HasPrefix(l, "--- "):
			hasMinus = true
		case strings.HasPrefix(l, "+++ "):
			hasPlus = true
		}
	}

	switch {
	case hasGit:
		dialect = patch.DialectGit
	case hasIndex:
		dialect = patch.DialectIndex
	case hasMinus && hasPlus:
		dialect = patch.DialectClassic
	case hasHunk:
		dialect = patch.DialectClassic
	default:
		dialect = patch.DialectClassic
	}

	// The final LF terminates the last line; it does not start another one.
	body := strings.TrimSuffix(raw, "\n")
	switch {
	case hasGit:
		blocks = splitGitBlocks(body)
	case hasIndex:
		blocks = splitIndexBlocks(body)
	default:
		blocks = splitClassicBlocks(body)
	}

	for i := range blocks {
		blocks[i].HasBinaryIndicator = hasBinaryIndicator(blocks[i].Text)
	}

	return raw, dialect, blocks
}

func hasBinaryIndicator(text string) bool {
	return strings.Contains(text, binaryMarkerGit) || strings.Contains(text, binaryMarkerClassic)
}

func splitGitBlocks(text string) []FileBlock {
	lines := strings.Split(text, "\n")
	var blocks []FileBlock
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, FileBlock{Dialect: patch.DialectGit, Text: strings.Join(cur, "\n") + "\n"})
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			cur = []string{line}
			continue
		}
		if cur != nil {
			cur = append(cur, line)
		}
		// preamble before the first "diff --git " line is discarded
	}
	flush()
	return blocks
}

func splitIndexBlocks(text string) []FileBlock {
	lines := strings.Split(text, "\n")
	var blocks []FileBlock
	var cur []string
	var curIndexPath string

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, FileBlock{Dialect: patch.DialectIndex, Text: strings.Join(cur, "\n") + "\n", IndexPath: curIndexPath})
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "Index: ") {
			flush()
			curIndexPath = strings.TrimSpace(strings.TrimPrefix(line, "Index: "))
			cur = []string{line}
			continue
		}
		if cur != nil {
			cur = append(cur, line)
		}
	}
	flush()
	return blocks
}

func splitClassicBlocks(text string) []FileBlock {
	lines := strings.Split(text, "\n")
	var blocks []FileBlock
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, FileBlock{Dialect: patch.DialectClassic, Text: strings.Join(cur, "\n") + "\n"})
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "--- ") {
			foundPlusPlus := false
			limit := i + 60
			if limit > len(lines) {
				limit = len(lines)
			}
			for j := i + 1; j < limit; j++ {
				if strings.HasPrefix(lines[j], "+++ ") {
					foundPlusPlus = true
					break
				}
				if strings.HasPrefix(lines[j], "@@ ") {
					break
				}
			}
			if foundPlusPlus {
				flush()
				cur = []string{line}
				continue
			}
			if cur != nil {
				cur = append(cur, line)
			}
			continue
		}
		if cur != nil {
			cur = append(cur, line)
		}
		// leading noise before the first block is discarded
	}
	flush()
	return blocks
}
