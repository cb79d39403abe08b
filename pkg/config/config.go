// Package config loads the .patchcore.yml options file used to seed a
// patch.Options value without requiring every host to hand-build one.
package config

import (
	"fmt"
	"os"

	"github.com/patchlab/patchcore/pkg/patch"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = ".patchcore.yml"

// File represents the .patchcore.yml configuration file.
type File struct {
	Root    string        `yaml:"root"`
	Options OptionsConfig `yaml:"options"`
}

// OptionsConfig mirrors the patch.Options surface in YAML-friendly form.
// PreserveOriginalLineEndings and SkipUnsupportedBinaryFiles default to
// true, so (like the teacher's AnalyzerModuleConfig.Enabled) they are
// pointers: nil means "not set, use the documented default", distinct from
// an explicit false.
type OptionsConfig struct {
	StrictFilenameMatch          bool  `yaml:"strict_filename_match"`
	BestEffortFuzzyApply         bool  `yaml:"best_effort_fuzzy_apply"`
	FuzzyWindowSize              int   `yaml:"fuzzy_window_size"`
	IgnoreWhitespaceDifferences  bool  `yaml:"ignore_whitespace_differences"`
	ConflictMarkerMode           bool  `yaml:"conflict_marker_mode"`
	AllowRenameDeleteModeChanges bool  `yaml:"allow_rename_delete_mode_changes"`
	PartialApplyPerFileOverride  bool  `yaml:"partial_apply_per_file_override"`
	PreserveOriginalLineEndings  *bool `yaml:"preserve_original_line_endings"`
	AllowWritingConflictedOutput bool  `yaml:"allow_writing_conflicted_output"`
	SkipUnsupportedBinaryFiles   *bool `yaml:"skip_unsupported_binary_files"`
}

// preserveEOL reports whether original line endings should be preserved,
// defaulting to true when unset.
func (o OptionsConfig) preserveEOL() bool {
	if o.PreserveOriginalLineEndings == nil {
		return true
	}
	return *o.PreserveOriginalLineEndings
}

// skipUnsupportedBinary reports whether unsupported binary files should be
// skipped rather than blocking, defaulting to true when unset.
func (o OptionsConfig) skipUnsupportedBinary() bool {
	if o.SkipUnsupportedBinaryFiles == nil {
		return true
	}
	return *o.SkipUnsupportedBinaryFiles
}

// Load reads and parses a .patchcore.yml configuration file. If path is
// empty, it looks for .patchcore.yml in the current directory. If the
// default config file is not found, sensible defaults are returned. If an
// explicitly specified config file is not found, an error is returned.
func Load(path string) (*File, error) {
	useDefault := path == ""
	if useDefault {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && useDefault {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	file := &File{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(file)
	return file, nil
}

// DefaultConfig returns a File matching the documented defaults: a 200-line
// fuzzy window, EOL preservation and binary-skipping on, and the current
// directory as root.
func DefaultConfig() *File {
	file := &File{Root: "."}
	applyDefaults(file)
	return file
}

func applyDefaults(file *File) {
	if file.Root == "" {
		file.Root = "."
	}
	if file.Options.FuzzyWindowSize == 0 {
		file.Options.FuzzyWindowSize = patch.DefaultOptions().FuzzyWindowSize
	}
}

// ToOptions projects the YAML-shaped config into the typed patch.Options
// consumed by the rest of the engine.
func (f *File) ToOptions() patch.Options {
	o := f.Options
	return patch.Options{
		StrictFilenameMatch:          o.StrictFilenameMatch,
		BestEffortFuzzyApply:         o.BestEffortFuzzyApply,
		FuzzyWindowSize:              o.FuzzyWindowSize,
		IgnoreWhitespaceDifferences:  o.IgnoreWhitespaceDifferences,
		ConflictMarkerMode:           o.ConflictMarkerMode,
		AllowRenameDeleteModeChanges: o.AllowRenameDeleteModeChanges,
		PartialApplyPerFileOverride:  o.PartialApplyPerFileOverride,
		PreserveOriginalLineEndings:  o.preserveEOL(),
		AllowWritingConflictedOutput: o.AllowWritingConflictedOutput,
		SkipUnsupportedBinaryFiles:   o.skipUnsupportedBinary(),
	}
}
