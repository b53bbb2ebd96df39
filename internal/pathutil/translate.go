// Package pathutil normalizes the file and directory paths given on the
// command line.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Translator turns user-supplied paths into the form written into
// generated scripts. NetLogo's headless launcher changes into its own
// directory before running, so relative paths are made absolute unless
// translation is disabled.
type Translator struct {
	Disabled bool
}

// Resolve returns path unchanged when translation is disabled, and its
// cleaned absolute form otherwise.
func (t Translator) Resolve(path string) (string, error) {
	if t.Disabled {
		return path, nil
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path %q contains null byte", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path of %q: %w", path, err)
	}
	return abs, nil
}

// ModelName returns the base name of a model file up to its first dot,
// e.g. "virus" for "/models/virus.v2.nlogo".
func ModelName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	name, _, _ := strings.Cut(base, ".")
	return name
}
