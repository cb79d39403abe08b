package applier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patchlab/patchcore/pkg/patch"
)

const backupFolderName = ".patchstudio_backups"

// DiskApply re-runs preflight deterministically, checks preview's conflict
// state, then writes every file's outcome to disk behind a backup session
// folder. preview should be the ApplyResult returned by Preview for the
// same patchset/root/options; its Outputs are reused rather than
// recomputed, except for a modify whose output Preview didn't record.
func DiskApply(ps *patch.PatchSet, root string, preview *patch.ApplyResult, opts patch.Options) *patch.ApplyResult {
	res := patch.NewApplyResult("Apply failed.")

	report := Preflight(ps, root, opts)
	res.Preflight = report

	var blocking []patch.PreflightRecord
	for _, r := range report {
		if r.Status.Blocking(opts.SkipUnsupportedBinaryFiles) {
			blocking = append(blocking, r)
		}
	}
	if len(blocking) > 0 {
		res.OverallMessage = "Patch references files not found under the selected root folder."
		res.AddLog("ERROR", "Preflight failed; blocking apply.", map[string]any{"blocking": len(blocking)})
		res.Success = false
		return res
	}

	var conflicted []string
	var outputs map[string]string
	if preview != nil {
		conflicted = preview.ConflictedFiles
		outputs = preview.Outputs
	}
	if len(conflicted) > 0 && !opts.AllowWritingConflictedOutput {
		res.OverallMessage = "Conflicted output was produced; writing to disk is blocked."
		res.AddLog("ERROR", "Conflicted output blocks disk write.", map[string]any{"conflicted": len(conflicted)})
		res.Success = false
		return res
	}

	rootAbs, err := resolveExistingDir(root)
	if err != nil {
		res.OverallMessage = "Apply failed: root folder could not be resolved."
		res.Success = false
		return res
	}

	backupRoot := filepath.Join(rootAbs, backupFolderName, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		res.OverallMessage = "Apply failed: could not create backup folder."
		res.AddLog("ERROR", "Failed to create backup folder.", map[string]any{"error": err.Error()})
		res.Success = false
		return res
	}
	res.AddLog("INFO", "Created backup folder.", map[string]any{"backup": backupRoot})

	filesApplied := 0

	for _, r := range report {
		fp := r.FilePatch
		display := fp.DisplayPath

		if r.Status == patch.StatusUnsupportedBinary {
			if opts.SkipUnsupportedBinaryFiles {
				res.PerFile[display] = &patch.PerFileResult{Status: "Skipped (binary unsupported)"}
				continue
			}
			res.PerFile[display] = &patch.PerFileResult{Status: "Blocked (binary unsupported)"}
			if !opts.PartialApplyPerFileOverride {
				res.OverallMessage = "Apply failed due to blocked binary patch."
				res.Success = false
				return res
			}
			continue
		}

		targetRel := fp.NewPath
		if targetRel == "/dev/null" {
			targetRel = fp.OldPath
		}
		if targetRel == "" {
			res.PerFile[display] = &patch.PerFileResult{Status: "Failed", Error: "Invalid target path."}
			if !opts.PartialApplyPerFileOverride {
				res.Success = false
				return res
			}
			continue
		}

		targetAbs, err := resolveUnderRoot(rootAbs, targetRel)
		if err != nil {
			res.PerFile[display] = &patch.PerFileResult{Status: "Failed", Error: "Resolved path outside root."}
			if !opts.PartialApplyPerFileOverride {
				res.Success = false
				return res
			}
			continue
		}

		output, hasOutput := outputs[display]
		applyErr := applyOneToDisk(fp, targetAbs, rootAbs, backupRoot, output, hasOutput, opts, res, display, &filesApplied)
		if applyErr != nil {
			res.PerFile[display] = &patch.PerFileResult{Status: "Failed", Error: applyErr.Error()}
			res.AddLog("ERROR", "Disk apply failed for file.", map[string]any{"file": display, "error": applyErr.Error()})
			if !opts.PartialApplyPerFileOverride {
				res.OverallMessage = "Apply failed due to one or more files."
				res.Success = false
				return res
			}
		}
	}

	res.Success = true
	res.OverallMessage = "Apply completed."
	res.FilesApplied = filesApplied
	res.BackupFolder = backupRoot
	return res
}

func applyOneToDisk(fp *patch.FilePatch, targetAbs, rootAbs, backupRoot, output string, hasOutput bool, opts patch.Options, res *patch.ApplyResult, display string, filesApplied *int) error {
	switch fp.Operation {
	case patch.OpDelete:
		if err := backupFile(targetAbs, rootAbs, backupRoot); err != nil {
			return err
		}
		trySiblingBak(targetAbs)
		if pathExists(targetAbs) {
			if err := os.Remove(targetAbs); err != nil {
				return err
			}
		}
		res.PerFile[display] = &patch.PerFileResult{Status: "Deleted", Resolved: targetAbs}
		*filesApplied++
		return nil

	case patch.OpCreate:
		if err := os.MkdirAll(filepath.Dir(targetAbs), 0o755); err != nil {
			return err
		}
		eol := "\n"
		if opts.PreserveOriginalLineEndings && pathExists(targetAbs) {
			eol = detectEOL(targetAbs)
		}
		if err := atomicWriteText(targetAbs, output, eol); err != nil {
			return err
		}
		res.PerFile[display] = &patch.PerFileResult{Status: "Created", Resolved: targetAbs}
		*filesApplied++
		return nil

	case patch.OpRename:
		if !opts.AllowRenameDeleteModeChanges {
			return fmt.Errorf("rename not allowed")
		}
		oldRel := fp.OldPath
		if oldRel == "" || oldRel == "/dev/null" {
			return fmt.Errorf("invalid rename source")
		}
		oldAbs, err := resolveUnderRoot(rootAbs, oldRel)
		if err != nil {
			return fmt.Errorf("rename source outside root")
		}
		if err := backupFile(oldAbs, rootAbs, backupRoot); err != nil {
			return err
		}
		if err := backupFile(targetAbs, rootAbs, backupRoot); err != nil {
			return err
		}
		trySiblingBak(oldAbs)
		trySiblingBak(targetAbs)
		if err := os.MkdirAll(filepath.Dir(targetAbs), 0o755); err != nil {
			return err
		}
		if err := os.Rename(oldAbs, targetAbs); err != nil {
			return err
		}
		res.PerFile[display] = &patch.PerFileResult{Status: "Renamed", RenameFrom: oldAbs, RenameTo: targetAbs}
		*filesApplied++
		return nil

	default: // modify
		if err := backupFile(targetAbs, rootAbs, backupRoot); err != nil {
			return err
		}
		trySiblingBak(targetAbs)
		content := output
		if !hasOutput {
			recomputed, _, _, _, _ := applyFilePatchInMemory(fp, targetAbs, opts)
			content = recomputed
		}
		eol := "\n"
		if opts.PreserveOriginalLineEndings && pathExists(targetAbs) {
			eol = detectEOL(targetAbs)
		}
		if err := atomicWriteText(targetAbs, content, eol); err != nil {
			return err
		}
		res.PerFile[display] = &patch.PerFileResult{Status: "Modified", Resolved: targetAbs}
		*filesApplied++
		return nil
	}
}

// backupFile copies src (if it exists and is a regular file) into
// backupRoot, preserving its path relative to rootAbs.
func backupFile(src, rootAbs, backupRoot string) error {
	if !isRegularFile(src) {
		return nil
	}
	rel, err := filepath.Rel(rootAbs, src)
	if err != nil {
		return err
	}
	dest := filepath.Join(backupRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return copyFile(src, dest)
}

// trySiblingBak makes a best-effort ".bak" copy next to target. Failures
// are swallowed: this is a convenience copy, not the backup of record.
func trySiblingBak(target string) {
	if !isRegularFile(target) {
		return
	}
	bak := target + ".bak"
	if pathExists(bak) {
		bak = target + "." + time.Now().Format("20060102_150405") + ".bak"
	}
	_ = copyFile(target, bak)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// detectEOL inspects target's current bytes and picks the dominant line
// ending: CRLF wins when it is present and at least as common as lone-LF
// occurrences (a tie goes to CRLF).
func detectEOL(target string) string {
	data, err := os.ReadFile(target)
	if err != nil {
		return "\n"
	}
	crlf := strings.Count(string(data), "\r\n")
	lf := strings.Count(string(data), "\n")
	if crlf > 0 && crlf >= (lf-crlf) {
		return "\r\n"
	}
	return "\n"
}

// atomicWriteText writes text to path by writing a temp file in the same
// directory and renaming it into place, so a reader never observes a
// partially-written file. Internal "\n" separators are converted to eol.
func atomicWriteText(path, text, eol string) error {
	data := text
	if eol != "\n" {
		data = strings.ReplaceAll(text, "\n", eol)
	}

	tmp := fmt.Sprintf("%s.patchstudio_tmp_%d_%d", path, os.Getpid(), time.Now().UnixNano())
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
