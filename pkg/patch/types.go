// Package patch defines the shared types and contracts for every patchcore
// module. This package has ZERO dependencies on any other pkg/ package.
// All cross-module communication goes through the types defined here.
package patch

import "time"

// Dialect identifies the wire format a patch was written in.
type Dialect string

const (
	DialectClassic Dialect = "Classic"
	DialectGit     Dialect = "Git"
	DialectIndex   Dialect = "Index"
)

// Operation describes how a FilePatch changes its target file.
type Operation string

const (
	OpModify Operation = "modify"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
	OpRename Operation = "rename"
)

// LineTag classifies a single line within a Hunk.
type LineTag byte

const (
	TagContext  LineTag = ' '
	TagAddition LineTag = '+'
	TagDeletion LineTag = '-'
)

// Line is one tagged line of hunk content. Text excludes the tag byte and
// the trailing newline.
type Line struct {
	Tag  LineTag
	Text string
}

// Hunk is a contiguous change region with an "@@ ... @@" header.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Lines    []Line
}

// FilePatch describes the changes to a single logical file.
type FilePatch struct {
	OldPath      string
	NewPath      string
	DisplayPath  string
	Operation    Operation
	Hunks        []Hunk
	IsBinary     bool
	BinaryReason string
	Metadata     map[string]string
}

// PatchSet is an ordered, immutable collection of file patches parsed from
// a single patch document.
type PatchSet struct {
	Dialect Dialect
	Files   []FilePatch
}

// TotalHunks returns the number of hunks across every file in the set.
func (p *PatchSet) TotalHunks() int {
	n := 0
	for _, fp := range p.Files {
		n += len(fp.Hunks)
	}
	return n
}

// TotalFiles returns the number of files in the set.
func (p *PatchSet) TotalFiles() int {
	return len(p.Files)
}

// PreflightStatus is the outcome of validating a single file reference
// against a workspace root.
type PreflightStatus string

const (
	StatusFound             PreflightStatus = "Found"
	StatusMissing           PreflightStatus = "Missing"
	StatusInvalid           PreflightStatus = "Invalid"
	StatusOutsideRoot       PreflightStatus = "Outside root"
	StatusBlocked           PreflightStatus = "Blocked"
	StatusUnsupportedBinary PreflightStatus = "Unsupported (binary)"
)

// Blocking reports whether this status prevents preview/apply from
// proceeding, given whether unsupported binary files are being skipped.
func (s PreflightStatus) Blocking(skipUnsupportedBinary bool) bool {
	switch s {
	case StatusMissing, StatusInvalid, StatusOutsideRoot, StatusBlocked:
		return true
	case StatusUnsupportedBinary:
		return !skipUnsupportedBinary
	default:
		return false
	}
}

// PreflightRecord is one row of a preflight report.
type PreflightRecord struct {
	File      string
	Operation Operation
	Resolved  string
	Status    PreflightStatus
	Suggested string
	FilePatch *FilePatch
}

// Options is the explicit configuration surface described in the external
// interfaces section: every recognized option and its documented default.
type Options struct {
	StrictFilenameMatch          bool
	BestEffortFuzzyApply         bool
	FuzzyWindowSize              int
	IgnoreWhitespaceDifferences  bool
	ConflictMarkerMode           bool
	AllowRenameDeleteModeChanges bool
	PartialApplyPerFileOverride  bool
	PreserveOriginalLineEndings  bool
	AllowWritingConflictedOutput bool
	SkipUnsupportedBinaryFiles   bool
}

// DefaultOptions returns the documented defaults: a 200-line fuzzy window
// and EOL preservation on, everything else off.
func DefaultOptions() Options {
	return Options{
		FuzzyWindowSize:             200,
		PreserveOriginalLineEndings: true,
	}
}

// DiagnosticKind discriminates the tagged-variant Diagnostic record
// described in the design notes (Go has no sum types, so this is the
// idiomatic approximation: a flat struct with a Kind discriminator).
type DiagnosticKind string

const (
	DiagBlockedByPreflight  DiagnosticKind = "blocked_by_preflight"
	DiagLocatorFailed       DiagnosticKind = "locator_failed"
	DiagApplyReVerifyFailed DiagnosticKind = "apply_reverify_failed"
	DiagIOError             DiagnosticKind = "io_error"
)

// LocatorTrace records how the Locator arrived at (or failed to reach) a
// match: strict vs. fuzzy, candidate counts, and tie-break ambiguity.
type LocatorTrace struct {
	Mode              string
	ExpectedPos       int
	Matched           bool
	MatchedAt         int
	DeltaFromExpected int
	CandidateCount    int
	Ambiguous         bool
	Reason            string
}

// Diagnostic is a structured record of a hunk-application failure or
// conflict, carrying enough context for a host to render a useful message
// without re-deriving it.
type Diagnostic struct {
	Kind                DiagnosticKind
	HunkIndex           int
	HunkHeader          string
	AttemptedLine1Based int
	AttemptedPos0Based  int
	Trace               LocatorTrace
	ExpectedExcerpt     []string
	ActualExcerpt       []string
	MismatchReason      string
	MismatchAt          int
	MismatchExpected    string
	MismatchActual      string
	Message             string
}

// FileApplyStats tallies what happened while applying one file's hunks.
type FileApplyStats struct {
	HunksApplied int
	LinesAdded   int
	LinesRemoved int
}

// PerFileResult is the per-file outcome recorded in an ApplyResult.
type PerFileResult struct {
	Status      string
	Applied     bool
	Stats       FileApplyStats
	Diagnostics []Diagnostic
	Operation   Operation
	Resolved    string
	Error       string
	RenameFrom  string
	RenameTo    string
}

// LogEntry is one append-only log line surfaced to a host for display.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Fields    map[string]any
}

// ApplyResult is the outcome of a Preview or DiskApply invocation. It is
// never mutated by the caller and carries everything a host needs to
// render a report without re-deriving state from the filesystem.
type ApplyResult struct {
	Success         bool
	OverallMessage  string
	InvocationID    string
	PerFile         map[string]*PerFileResult
	Preflight       []PreflightRecord
	Outputs         map[string]string
	ConflictedFiles []string
	FailedFiles     []string
	FilesApplied    int
	BackupFolder    string
	Logs            []LogEntry
}

// NewApplyResult returns a zero-valued result ready to be populated.
func NewApplyResult(overallMessage string) *ApplyResult {
	return &ApplyResult{
		OverallMessage: overallMessage,
		PerFile:        make(map[string]*PerFileResult),
		Outputs:        make(map[string]string),
	}
}

// AddLog appends a structured log entry, mirroring the host-facing log
// stream the original design calls out as independent of process-level
// logging.
func (r *ApplyResult) AddLog(level, message string, fields map[string]any) {
	r.Logs = append(r.Logs, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
}
