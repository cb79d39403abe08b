package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchSet_Totals(t *testing.T) {
	ps := &PatchSet{
		Files: []FilePatch{
			{Hunks: []Hunk{{}, {}}},
			{Hunks: []Hunk{{}}},
		},
	}
	assert.Equal(t, 2, ps.TotalFiles())
	assert.Equal(t, 3, ps.TotalHunks())
}

func TestPreflightStatus_Blocking(t *testing.T) {
	assert.True(t, StatusMissing.Blocking(false))
	assert.True(t, StatusInvalid.Blocking(true))
	assert.True(t, StatusOutsideRoot.Blocking(true))
	assert.True(t, StatusBlocked.Blocking(true))
	assert.False(t, StatusFound.Blocking(false))

	assert.True(t, StatusUnsupportedBinary.Blocking(false))
	assert.False(t, StatusUnsupportedBinary.Blocking(true))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 200, opts.FuzzyWindowSize)
	assert.True(t, opts.PreserveOriginalLineEndings)
	assert.False(t, opts.BestEffortFuzzyApply)
}

func TestNewApplyResult_InitializesMaps(t *testing.T) {
	res := NewApplyResult("pending")
	assert.Equal(t, "pending", res.OverallMessage)
	assert.NotNil(t, res.PerFile)
	assert.NotNil(t, res.Outputs)
	assert.Empty(t, res.Logs)
}

func TestApplyResult_AddLog(t *testing.T) {
	res := NewApplyResult("pending")
	res.AddLog("INFO", "did a thing", map[string]any{"count": 3})

	require := assert.New(t)
	require.Len(res.Logs, 1)
	require.Equal("INFO", res.Logs[0].Level)
	require.Equal("did a thing", res.Logs[0].Message)
	require.Equal(3, res.Logs[0].Fields["count"])
	require.False(res.Logs[0].Timestamp.IsZero())
}
