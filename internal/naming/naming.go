// Package naming derives the file names and locations of everything the
// splitter writes.
package naming

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/split-nlogo/internal/sanitize"
)

// Suffixes appended to the sanitized experiment name.
const (
	RunTableSuffix = "_run_table.csv"
	ScriptSuffix   = "_script"
	RunFileExt     = ".xml"
)

// Policy places generated files.
type Policy struct {
	// OutputDir receives run documents and run tables.
	OutputDir string

	// ScriptDir receives job scripts.
	ScriptDir string

	// Prefix is prepended to every generated file name.
	Prefix string
}

// Width returns the number of decimal digits in combinations. Run numbers
// are padded to this width.
//
// The width follows the combination count, not the final run count, so
// repetition splitting can produce run numbers wider than the padding.
// Existing batch scripts depend on these names, so the behavior is kept.
func Width(combinations int) int {
	if combinations < 1 {
		combinations = 1
	}
	return len(strconv.Itoa(combinations))
}

// Base returns the prefixed, sanitized experiment name shared by every
// file of an experiment.
func (p Policy) Base(experiment string) string {
	return p.Prefix + sanitize.FileComponent(experiment)
}

// RunFileName returns the file name (without directory) of one run.
func (p Policy) RunFileName(experiment string, run, width int) string {
	return fmt.Sprintf("%s_%0*d%s", p.Base(experiment), width, run, RunFileExt)
}

// RunFilePath returns where the run document is written.
func (p Policy) RunFilePath(experiment string, run, width int) string {
	return filepath.Join(p.OutputDir, p.RunFileName(experiment, run, width))
}

// RunTablePath returns where the experiment's CSV run table is written.
func (p Policy) RunTablePath(experiment string) string {
	return filepath.Join(p.OutputDir, p.Base(experiment)+RunTableSuffix)
}

// ScriptPath returns where the experiment's job script is written. ext is
// the template file's extension, including the dot.
func (p Policy) ScriptPath(experiment, ext string) string {
	return filepath.Join(p.ScriptDir, p.Base(experiment)+ScriptSuffix+ext)
}
