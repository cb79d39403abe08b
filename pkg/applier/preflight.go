// Package applier validates, previews, and applies a PatchSet against a
// workspace root: preflight path resolution, an in-memory dry-run, and a
// transactional disk apply with backups and atomic writes.
package applier

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/patchlab/patchcore/pkg/patch"
)

var strictPathRejection = regexp.MustCompile(`[:*?"<>|]`)

// Preflight resolves every file reference in ps against root and classifies
// it with a PreflightStatus. root may be empty, in which case every record
// is Invalid (there is nothing to resolve against).
func Preflight(ps *patch.PatchSet, root string, opts patch.Options) []patch.PreflightRecord {
	report := make([]patch.PreflightRecord, 0, len(ps.Files))

	var rootAbs string
	if root != "" {
		if resolved, err := resolveExistingDir(root); err == nil {
			rootAbs = resolved
		} else {
			rootAbs = ""
		}
	}

	for i := range ps.Files {
		fp := &ps.Files[i]
		report = append(report, preflightOne(fp, rootAbs, opts))
	}
	return report
}

func preflightOne(fp *patch.FilePatch, rootAbs string, opts patch.Options) patch.PreflightRecord {
	rec := patch.PreflightRecord{
		File:      fp.DisplayPath,
		Operation: fp.Operation,
		Status:    patch.StatusFound,
		FilePatch: fp,
	}

	if rootAbs == "" {
		rec.Status = patch.StatusInvalid
		rec.Suggested = "Choose a root folder that contains the referenced files."
		return rec
	}

	candidateRel := fp.NewPath
	if candidateRel == "/dev/null" {
		candidateRel = fp.OldPath
	}
	if candidateRel == "" || candidateRel == "/dev/null" {
		rec.Status = patch.StatusInvalid
		rec.Suggested = "Patch file header paths are missing or invalid."
		return rec
	}

	if opts.StrictFilenameMatch {
		if strings.HasPrefix(candidateRel, "/") || strings.HasPrefix(candidateRel, "\\") || strictPathRejection.MatchString(candidateRel) {
			rec.Status = patch.StatusInvalid
			rec.Suggested = "Disable strict filename matching or fix patch paths to be relative and valid."
			return rec
		}
	}

	resolvedAbs, err := resolveUnderRoot(rootAbs, candidateRel)
	if err != nil {
		rec.Status = patch.StatusOutsideRoot
		if errors.Is(err, patch.ErrOutsideRoot) {
			rec.Suggested = "Choose a different root folder or fix patch paths (path resolves outside root)."
		} else {
			rec.Suggested = "Path could not be resolved against the selected root folder."
		}
		return rec
	}
	rec.Resolved = resolvedAbs

	if fp.IsBinary {
		rec.Status = patch.StatusUnsupportedBinary
		rec.Suggested = "Enable skipping unsupported binary files to apply other files; the binary patch itself cannot be applied."
		return rec
	}

	switch fp.Operation {
	case patch.OpModify:
		if !pathExists(resolvedAbs) {
			rec.Status = patch.StatusMissing
			rec.Suggested = "Select a root folder that contains this file, or verify patch paths."
		}
	case patch.OpCreate:
		if !pathExists(filepath.Dir(resolvedAbs)) {
			rec.Status = patch.StatusMissing
			rec.Suggested = "Create the destination folders or choose a different root folder."
		}
	case patch.OpDelete:
		if !pathExists(resolvedAbs) {
			rec.Status = patch.StatusMissing
			rec.Suggested = "Select a root folder that contains the file to delete."
		}
	case patch.OpRename:
		if !opts.AllowRenameDeleteModeChanges {
			rec.Status = patch.StatusBlocked
			rec.Suggested = "Enable allowing rename/delete/mode changes to proceed."
			break
		}
		oldRel := fp.OldPath
		if oldRel != "" && oldRel != "/dev/null" {
			oldAbs, err := resolveUnderRoot(rootAbs, oldRel)
			if err != nil {
				rec.Status = patch.StatusOutsideRoot
				rec.Suggested = "Rename source resolves outside root; choose a different root folder."
				break
			}
			if !pathExists(oldAbs) {
				rec.Status = patch.StatusMissing
				rec.Suggested = "Rename source file not found; choose a different root folder."
			}
		}
	}

	return rec
}
