package normalizer

import (
	"testing"

	"github.com/patchlab/patchcore/pkg/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsBOMAndFoldsEOL(t *testing.T) {
	raw := "\xef\xbb\xbf--- a\r\n+++ b\r\n@@ -1 +1 @@\r\n-x\r\n+y\r\n"
	normalized, dialect, blocks := Normalize(raw)

	assert.NotContains(t, normalized, "\xef\xbb\xbf")
	assert.NotContains(t, normalized, "\r")
	assert.Equal(t, patch.DialectClassic, dialect)
	require.Len(t, blocks, 1)
}

func TestNormalize_IsIdempotent(t *testing.T) {
	raw := "\xef\xbb\xbfdiff --git a/x b/x\r\nindex 1..2 100644\r\n--- a/x\r\n+++ b/x\r\n@@ -1 +1 @@\r\n-a\r\n+b\r\n"
	once, d1, _ := Normalize(raw)
	twice, d2, _ := Normalize(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, d1, d2)
}

func TestNormalize_DialectDetection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want patch.Dialect
	}{
		{
			name: "git",
			raw:  "diff --git a/f b/f\nindex 1..2 100644\n--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n",
			want: patch.DialectGit,
		},
		{
			name: "index",
			raw:  "Index: f\n===\n--- f\n+++ f\n@@ -1 +1 @@\n-a\n+b\n",
			want: patch.DialectIndex,
		},
		{
			name: "classic",
			raw:  "--- f\t2020-01-01\n+++ f\t2020-01-02\n@@ -1 +1 @@\n-a\n+b\n",
			want: patch.DialectClassic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, dialect, _ := Normalize(tt.raw)
			assert.Equal(t, tt.want, dialect)
		})
	}
}

func TestSplitGitBlocks_DiscardsPreamble(t *testing.T) {
	raw := "some preamble noise\ndiff --git a/x b/x\nindex 1..2 100644\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\ndiff --git a/y b/y\nindex 3..4 100644\n--- a/y\n+++ b/y\n@@ -1 +1 @@\n-c\n+d\n"
	_, dialect, blocks := Normalize(raw)

	require.Equal(t, patch.DialectGit, dialect)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0].Text, "a/x")
	assert.Contains(t, blocks[1].Text, "a/y")
	assert.NotContains(t, blocks[0].Text, "preamble")
}

func TestSplitClassicBlocks_OnlyStartsBlockWhenPlusPlusFollowsWithin60Lines(t *testing.T) {
	raw := "--- not-a-header\nsome content that is not a diff at all\n--- f\n+++ f\n@@ -1 +1 @@\n-a\n+b\n"
	_, _, blocks := Normalize(raw)

	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0].Text, "not-a-header")
	assert.Contains(t, blocks[1].Text, "--- f")
	assert.Contains(t, blocks[1].Text, "+++ f")
}

func TestNormalize_BinaryIndicatorFlag(t *testing.T) {
	raw := "diff --git a/bin.dat b/bin.dat\nindex 1..2 100644\nGIT binary patch\nliteral 10\n"
	_, _, blocks := Normalize(raw)

	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].HasBinaryIndicator)
}
