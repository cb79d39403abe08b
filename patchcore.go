// Package patchcore wires the Normalizer, Parser, Locator, Applier, and
// DiffGenerator stages into a small facade for hosts (a CLI or GUI) that
// want "parse this, preview it, apply it" without assembling the pipeline
// themselves.
package patchcore

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/patchlab/patchcore/pkg/applier"
	"github.com/patchlab/patchcore/pkg/diffgen"
	"github.com/patchlab/patchcore/pkg/normalizer"
	"github.com/patchlab/patchcore/pkg/parser"
	"github.com/patchlab/patchcore/pkg/patch"
)

// Engine is the library-mode entry point: load a patch document, preview
// it against a workspace root, and optionally commit it to disk.
type Engine struct {
	Options patch.Options
}

// New returns an Engine configured with opts.
func New(opts patch.Options) *Engine {
	return &Engine{Options: opts}
}

// ParsePatch normalizes raw and parses it into a PatchSet. Parsing is
// tolerant: blocks it cannot understand are dropped rather than raising an
// error, so a non-nil PatchSet with zero files is a valid (if unhelpful)
// result, not a failure signal.
func (e *Engine) ParsePatch(raw string) (*patch.PatchSet, error) {
	if raw == "" {
		return nil, patch.ErrEmptyInput
	}
	_, dialect, blocks := normalizer.Normalize(raw)
	return parser.Parse(dialect, blocks), nil
}

// Preflight validates ps's file references against root without touching
// disk or hunk content.
func (e *Engine) Preflight(ps *patch.PatchSet, root string) ([]patch.PreflightRecord, error) {
	if root == "" {
		return nil, patch.ErrNoRootFolder
	}
	return applier.Preflight(ps, root, e.Options), nil
}

// Preview runs preflight and an in-memory dry-run apply, returning the
// resulting per-file outputs without writing anything to disk.
func (e *Engine) Preview(ps *patch.PatchSet, root string) *patch.ApplyResult {
	res := applier.Preview(ps, root, e.Options)
	res.InvocationID = uuid.NewString()
	slog.Info("patchcore: preview complete",
		"invocation_id", res.InvocationID,
		"success", res.Success,
		"files", ps.TotalFiles(),
		"conflicted", len(res.ConflictedFiles),
		"failed", len(res.FailedFiles),
	)
	return res
}

// Apply commits preview's outputs to disk behind a timestamped backup
// folder. preview must come from a prior call to Preview against the same
// ps/root/options; passing a stale or mismatched preview produces
// undefined per-file results.
func (e *Engine) Apply(ps *patch.PatchSet, root string, preview *patch.ApplyResult) *patch.ApplyResult {
	res := applier.DiskApply(ps, root, preview, e.Options)
	res.InvocationID = uuid.NewString()
	slog.Info("patchcore: apply complete",
		"invocation_id", res.InvocationID,
		"success", res.Success,
		"files_applied", res.FilesApplied,
		"backup_folder", res.BackupFolder,
	)
	return res
}

// GenerateDiff renders a single-file unified diff between oldText and
// newText.
func (e *Engine) GenerateDiff(oldText, newText, oldPath, newPath string) (string, error) {
	return diffgen.GenerateUnifiedForFile(oldText, newText, oldPath, newPath)
}

// GenerateDiffForPatchSet renders one combined unified-diff document
// covering every non-binary file in ps, given its original content
// (baseline) and the edited content produced by Preview (outputs).
func (e *Engine) GenerateDiffForPatchSet(baseline, outputs map[string]string, ps *patch.PatchSet) (string, error) {
	return diffgen.GenerateUnifiedPatchSet(baseline, outputs, ps)
}

// ApplyRaw is a convenience that parses raw, previews it against root, and
// commits the result to disk in one call. It returns the preview so a host
// can inspect what happened even if the disk write was blocked.
func (e *Engine) ApplyRaw(raw, root string) (*patch.ApplyResult, *patch.ApplyResult, error) {
	ps, err := e.ParsePatch(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("patchcore: %w", err)
	}
	preview := e.Preview(ps, root)
	if !preview.Success {
		return preview, nil, nil
	}
	applied := e.Apply(ps, root, preview)
	return preview, applied, nil
}
