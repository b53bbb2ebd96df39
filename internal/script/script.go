// Package script renders job-submission scripts from user templates.
//
// Templates use brace placeholders such as {experiment} or {numexps}.
// Doubled braces ({{ and }}) produce literal braces. Placeholders that are
// not recognized are copied through unchanged so templates for other
// tools (shell ${VAR} expansions, for example) survive rendering.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Vars are the values available to a template.
type Vars struct {
	// Model is the full path of the model file. Key: {model}.
	Model string
	// ModelName is the model file's base name without extension. Key: {modelname}.
	ModelName string
	// Experiment is the experiment name. Key: {experiment}.
	Experiment string
	// NumExps is the number of runs generated for the experiment. Key: {numexps}.
	NumExps int
	// CSVPath is the directory simulations should write table output to. Key: {csvfpath}.
	CSVPath string
}

func (v Vars) lookup(key string) (string, bool) {
	switch key {
	case "model":
		return v.Model, true
	case "modelname":
		return v.ModelName, true
	case "experiment":
		return v.Experiment, true
	case "numexps":
		return strconv.Itoa(v.NumExps), true
	case "csvfpath":
		return v.CSVPath, true
	}
	return "", false
}

// Template is a loaded script template.
type Template struct {
	text string
	ext  string
}

// Load reads a template file. The file's extension is reused for the
// generated scripts.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script template: %w", err)
	}
	return &Template{text: string(data), ext: filepath.Ext(path)}, nil
}

// New returns a template from text, producing scripts with extension ext.
func New(text, ext string) *Template {
	return &Template{text: text, ext: ext}
}

// Ext returns the extension, including the dot, of generated scripts.
func (t *Template) Ext() string {
	return t.ext
}

// Render substitutes vars into the template. It also returns the unknown
// placeholder names it left in place, in order of first appearance.
func (t *Template) Render(vars Vars) (string, []string) {
	return Render(t.text, vars)
}

// Render substitutes vars into text. See Template.Render.
func Render(text string, vars Vars) (string, []string) {
	var (
		b       strings.Builder
		unknown []string
		seen    = make(map[string]bool)
	)
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				b.WriteString(text[i:])
				i = len(text)
				continue
			}
			key := text[i+1 : i+1+end]
			if val, ok := vars.lookup(key); ok {
				b.WriteString(val)
			} else {
				b.WriteString("{" + key + "}")
				if !seen[key] {
					seen[key] = true
					unknown = append(unknown, key)
				}
			}
			i += end + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), unknown
}

// WriteFile renders the template and writes it to path. It returns the
// unknown placeholder names, as Render does.
func (t *Template) WriteFile(path string, vars Vars) ([]string, error) {
	out, unknown := t.Render(vars)
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return unknown, err
	}
	return unknown, nil
}
