package patch

import "errors"

var (
	// ErrEmptyInput is returned when a patch document is the empty
	// string.
	ErrEmptyInput = errors.New("patch: empty input")

	// ErrNoRootFolder is returned when preflight is asked to validate a
	// patch set without a workspace root to resolve paths against.
	ErrNoRootFolder = errors.New("patch: no root folder")

	// ErrOutsideRoot is returned when a resolved path escapes the
	// workspace root (via symlinks or ".." components).
	ErrOutsideRoot = errors.New("patch: resolved path escapes workspace root")
)
