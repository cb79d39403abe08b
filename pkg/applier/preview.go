package applier

import (
	"github.com/patchlab/patchcore/pkg/patch"
)

// Preview runs preflight, then applies every file's hunks in memory without
// touching disk. The returned ApplyResult's Outputs map holds the full
// resulting text for every file whose hunks applied (an empty string for a
// delete), keyed by display path; failed and binary files have no entry.
// This is what DiskApply writes and what a diff generator would compare
// against the original.
func Preview(ps *patch.PatchSet, root string, opts patch.Options) *patch.ApplyResult {
	res := patch.NewApplyResult("Preview failed.")
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
		res.AddLog("WARN", "Preflight failed; blocking preview.", map[string]any{"blocking": len(blocking)})
		res.Success = false
		return res
	}

	res.AddLog("INFO", "Preflight passed for preview.", map[string]any{"files": len(report)})

	for _, r := range report {
		fp := r.FilePatch
		display := fp.DisplayPath

		if r.Status == patch.StatusUnsupportedBinary {
			if opts.SkipUnsupportedBinaryFiles {
				res.PerFile[display] = &patch.PerFileResult{Status: "Skipped (binary unsupported)", Applied: false}
				res.AddLog("INFO", "Skipped unsupported binary file.", map[string]any{"file": display})
				continue
			}
			res.PerFile[display] = &patch.PerFileResult{Status: "Blocked (binary unsupported)", Applied: false}
			res.FailedFiles = append(res.FailedFiles, display)
			continue
		}

		newText, stats, diagnostics, failed, conflicted := applyFilePatchInMemory(fp, r.Resolved, opts)

		if failed {
			res.FailedFiles = append(res.FailedFiles, display)
			res.PerFile[display] = &patch.PerFileResult{Status: "Failed", Applied: false, Diagnostics: diagnostics}
			res.AddLog("ERROR", "Hunk application failed.", map[string]any{"file": display})
			if !opts.PartialApplyPerFileOverride {
				break
			}
			continue
		}

		if conflicted {
			res.ConflictedFiles = append(res.ConflictedFiles, display)
		}

		if fp.Operation == patch.OpDelete {
			res.Outputs[display] = ""
		} else {
			res.Outputs[display] = newText
		}

		status := "OK"
		if conflicted {
			status = "Conflicted"
		}
		res.PerFile[display] = &patch.PerFileResult{
			Status:      status,
			Applied:     true,
			Stats:       stats,
			Diagnostics: diagnostics,
			Operation:   fp.Operation,
			Resolved:    r.Resolved,
		}
	}

	if len(res.FailedFiles) > 0 && !opts.PartialApplyPerFileOverride {
		res.Success = false
		res.OverallMessage = "Preview failed due to one or more files."
		return res
	}

	res.Success = true
	if len(res.ConflictedFiles) > 0 {
		res.AddLog("WARN", "Preview produced conflicted output for some files.", map[string]any{"conflicted": len(res.ConflictedFiles)})
	}
	res.OverallMessage = "Preview succeeded."
	return res
}
