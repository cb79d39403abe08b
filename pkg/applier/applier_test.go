package applier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/patchlab/patchcore/pkg/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func modifyPatchSet(display string) *patch.PatchSet {
	return &patch.PatchSet{
		Files: []patch.FilePatch{
			{
				OldPath:     display,
				NewPath:     display,
				DisplayPath: display,
				Operation:   patch.OpModify,
				Hunks: []patch.Hunk{
					{
						OldStart: 2,
						OldCount: 1,
						NewStart: 2,
						NewCount: 1,
						Header:   "@@ -2,1 +2,1 @@",
						Lines: []patch.Line{
							{Tag: patch.TagDeletion, Text: "line two"},
							{Tag: patch.TagAddition, Text: "LINE TWO"},
						},
					},
				},
			},
		},
	}
}

func TestPreflight_MissingRoot(t *testing.T) {
	ps := modifyPatchSet("foo.txt")
	report := Preflight(ps, "", patch.DefaultOptions())

	require.Len(t, report, 1)
	assert.Equal(t, patch.StatusInvalid, report[0].Status)
}

func TestPreflight_FoundWhenFileExists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "line one\nline two\nline three\n")

	ps := modifyPatchSet("foo.txt")
	report := Preflight(ps, dir, patch.DefaultOptions())

	require.Len(t, report, 1)
	assert.Equal(t, patch.StatusFound, report[0].Status)
	assert.NotEmpty(t, report[0].Resolved)
}

func TestPreflight_MissingFile(t *testing.T) {
	dir := t.TempDir()
	ps := modifyPatchSet("missing.txt")
	report := Preflight(ps, dir, patch.DefaultOptions())

	require.Len(t, report, 1)
	assert.Equal(t, patch.StatusMissing, report[0].Status)
}

func TestPreflight_RenameBlockedByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.txt", "hi\n")

	ps := &patch.PatchSet{Files: []patch.FilePatch{
		{OldPath: "old.txt", NewPath: "new.txt", DisplayPath: "new.txt", Operation: patch.OpRename},
	}}
	report := Preflight(ps, dir, patch.DefaultOptions())

	require.Len(t, report, 1)
	assert.Equal(t, patch.StatusBlocked, report[0].Status)
}

func TestPreview_AppliesModifyInMemory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "line one\nline two\nline three\n")

	ps := modifyPatchSet("foo.txt")
	res := Preview(ps, dir, patch.DefaultOptions())

	require.True(t, res.Success)
	assert.Contains(t, res.Outputs["foo.txt"], "LINE TWO")
	assert.NotContains(t, res.Outputs["foo.txt"], "line two\n")
	pf := res.PerFile["foo.txt"]
	require.NotNil(t, pf)
	assert.Equal(t, "OK", pf.Status)
	assert.Equal(t, 1, pf.Stats.HunksApplied)
}

func TestPreview_FailsOnContextMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "totally different content\n")

	ps := modifyPatchSet("foo.txt")
	res := Preview(ps, dir, patch.DefaultOptions())

	require.False(t, res.Success)
	assert.Contains(t, res.FailedFiles, "foo.txt")
}

func TestPreview_FuzzyLocatesDriftedHunk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "prefix one\nprefix two\nline one\nline two\nline three\n")

	ps := modifyPatchSet("foo.txt")
	opts := patch.DefaultOptions()
	opts.BestEffortFuzzyApply = true

	res := Preview(ps, dir, opts)

	require.True(t, res.Success)
	assert.Contains(t, res.Outputs["foo.txt"], "LINE TWO")
}

func TestPreview_ConflictMarkerModeProducesConflictedOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "totally different content\n")

	ps := modifyPatchSet("foo.txt")
	opts := patch.DefaultOptions()
	opts.ConflictMarkerMode = true

	res := Preview(ps, dir, opts)

	require.True(t, res.Success)
	assert.Contains(t, res.ConflictedFiles, "foo.txt")
	assert.Contains(t, res.Outputs["foo.txt"], "<<<<<<< ORIGINAL")
	assert.Contains(t, res.Outputs["foo.txt"], ">>>>>>> PATCH")
}

func TestDiskApply_WritesModifiedFileAndBackup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "line one\nline two\nline three\n")

	ps := modifyPatchSet("foo.txt")
	opts := patch.DefaultOptions()
	preview := Preview(ps, dir, opts)
	require.True(t, preview.Success)

	res := DiskApply(ps, dir, preview, opts)

	require.True(t, res.Success)
	assert.Equal(t, 1, res.FilesApplied)
	assert.DirExists(t, res.BackupFolder)

	written, err := os.ReadFile(filepath.Join(dir, "foo.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "LINE TWO")

	backedUp, err := os.ReadFile(filepath.Join(res.BackupFolder, "foo.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(backedUp), "line two")
}

func TestDiskApply_CreateWritesNewFile(t *testing.T) {
	dir := t.TempDir()

	ps := &patch.PatchSet{Files: []patch.FilePatch{
		{
			OldPath: "/dev/null", NewPath: "brand_new.txt", DisplayPath: "brand_new.txt",
			Operation: patch.OpCreate,
			Hunks: []patch.Hunk{{
				OldStart: 0, OldCount: 0, NewStart: 1, NewCount: 2,
				Lines: []patch.Line{
					{Tag: patch.TagAddition, Text: "hello"},
					{Tag: patch.TagAddition, Text: "world"},
				},
			}},
		},
	}}
	opts := patch.DefaultOptions()
	preview := Preview(ps, dir, opts)
	require.True(t, preview.Success)

	res := DiskApply(ps, dir, preview, opts)

	require.True(t, res.Success)
	content, err := os.ReadFile(filepath.Join(dir, "brand_new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(content))
}

func TestDiskApply_DeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gone.txt", "bye\n")

	ps := &patch.PatchSet{Files: []patch.FilePatch{
		{OldPath: "gone.txt", NewPath: "/dev/null", DisplayPath: "gone.txt", Operation: patch.OpDelete},
	}}
	opts := patch.DefaultOptions()
	preview := Preview(ps, dir, opts)
	require.True(t, preview.Success)

	res := DiskApply(ps, dir, preview, opts)

	require.True(t, res.Success)
	assert.NoFileExists(t, filepath.Join(dir, "gone.txt"))
}

func TestDiskApply_BlocksWhenConflictedAndNotAllowed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "foo.txt", "totally different content\n")

	ps := modifyPatchSet("foo.txt")
	opts := patch.DefaultOptions()
	opts.ConflictMarkerMode = true
	preview := Preview(ps, dir, opts)
	require.True(t, preview.Success)
	require.NotEmpty(t, preview.ConflictedFiles)

	res := DiskApply(ps, dir, preview, opts)

	assert.False(t, res.Success)
}

func TestPreflight_SymlinkEscapeIsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "top secret\n")

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	ps := modifyPatchSet("escape/secret.txt")
	report := Preflight(ps, root, patch.DefaultOptions())

	require.Len(t, report, 1)
	assert.Equal(t, patch.StatusOutsideRoot, report[0].Status)
	assert.True(t, report[0].Status.Blocking(false))
}

func TestResolveUnderRoot_SymlinkEscapeReturnsErrOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	_, err := resolveUnderRoot(root, filepath.Join("escape", "secret.txt"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, patch.ErrOutsideRoot))
}

func TestDetectEOL_PrefersCRLFWhenDominant(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crlf.txt", "a\r\nb\r\nc\r\n")
	assert.Equal(t, "\r\n", detectEOL(path))

	path2 := writeFile(t, dir, "lf.txt", "a\nb\nc\n")
	assert.Equal(t, "\n", detectEOL(path2))
}
