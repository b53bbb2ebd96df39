// Package sanitize turns experiment names into strings that are safe to use
// as a single path component.
package sanitize

import "strings"

// fileReplacer maps the characters that commonly break file names. It is
// not exhaustive; experiment names are assumed to follow sensible naming
// practice otherwise.
var fileReplacer = strings.NewReplacer(
	" ", "_",
	"/", "-",
	`\`, "-",
)

// FileComponent replaces spaces with underscores and both slash kinds with
// hyphens.
func FileComponent(name string) string {
	if name == "" {
		return ""
	}
	return fileReplacer.Replace(name)
}

// StripControlChars removes ASCII control characters (0x00-0x1F) from s,
// except newline and tab.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
