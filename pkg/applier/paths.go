package applier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchlab/patchcore/pkg/patch"
)

// resolveExistingDir resolves root to an absolute, symlink-free path. It
// requires root to already exist: there is nothing sensible to treat as a
// workspace root otherwise.
func resolveExistingDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return real, nil
}

// resolveUnderRoot joins rel onto rootAbs and verifies the result stays
// within rootAbs, resolving symlinks so that a link planted inside root
// cannot be used to escape it. Resolution walks up to the nearest existing
// ancestor before calling EvalSymlinks, since the joined path itself may
// not exist yet (create operations).
func resolveUnderRoot(rootAbs, rel string) (string, error) {
	joined := filepath.Join(rootAbs, rel)
	joined = filepath.Clean(joined)

	resolved, err := resolveSymlinksOfNearestAncestor(joined)
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(rootAbs, resolved)
	if err != nil {
		return "", err
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resolved path %q escapes root %q: %w", resolved, rootAbs, patch.ErrOutsideRoot)
	}
	return resolved, nil
}

// resolveSymlinksOfNearestAncestor resolves symlinks along path, walking up
// to the nearest ancestor that exists if path itself does not (yet).
func resolveSymlinksOfNearestAncestor(path string) (string, error) {
	cur := path
	var tail []string
	for {
		if _, err := os.Lstat(cur); err == nil {
			real, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// reached filesystem root without finding an existing ancestor
			return path, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
