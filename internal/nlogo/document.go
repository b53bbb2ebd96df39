// Package nlogo reads BehaviorSpace experiments out of NetLogo model files
// and writes single-experiment setup documents.
//
// A .nlogo file is mostly non-XML model source; the experiments live in
// one or more <experiments> sections embedded in it. Those sections are
// cut out of the surrounding text and parsed into an immutable Node tree.
package nlogo

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	experimentsOpen  = "<experiments>"
	experimentsClose = "</experiments>"
)

// Experiment is one <experiment> element of a model file.
type Experiment struct {
	Name string
	Node Node
}

// ExtractFragments cuts every <experiments> section out of text and
// returns each one re-wrapped in its tags.
func ExtractFragments(text string) []string {
	parts := strings.Split(text, experimentsOpen)
	var out []string
	for _, part := range parts[1:] {
		body, _, _ := strings.Cut(part, experimentsClose)
		out = append(out, experimentsOpen+body+experimentsClose)
	}
	return out
}

// Load reads the model file at path and returns its experiments in
// document order. Errors opening or reading the file keep their
// *fs.PathError so callers can report the offending path.
func Load(path string) ([]Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	var experiments []Experiment
	for i, fragment := range ExtractFragments(string(data)) {
		exps, err := Parse(strings.NewReader(fragment))
		if err != nil {
			return nil, fmt.Errorf("parsing experiments section %d: %w", i+1, err)
		}
		experiments = append(experiments, exps...)
	}
	return experiments, nil
}

// Parse decodes an <experiments> document and returns its <experiment>
// children.
func Parse(r io.Reader) ([]Experiment, error) {
	root, err := decodeTree(r)
	if err != nil {
		return nil, err
	}
	if root.Name != "experiments" {
		return nil, fmt.Errorf("unexpected root element <%s>, want <experiments>", root.Name)
	}

	var out []Experiment
	for _, n := range root.ChildElements("experiment") {
		name, _ := n.Attr("name")
		out = append(out, Experiment{Name: name, Node: n})
	}
	return out, nil
}

// decodeTree builds a Node tree from the first root element in r.
func decodeTree(r io.Reader) (Node, error) {
	dec := xml.NewDecoder(r)

	// stack[0] is a synthetic holder for the root element.
	stack := []Node{{Kind: ElementNode}}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Node{}, fmt.Errorf("decoding xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make([]Attr, 0, len(t.Attr))
			for _, a := range t.Attr {
				attrs = append(attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			stack = append(stack, Element(qualified(t.Name), attrs))
		case xml.EndElement:
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := &stack[len(stack)-1]
			parent.Children = append(parent.Children, done)
		case xml.CharData:
			if len(stack) > 1 {
				parent := &stack[len(stack)-1]
				parent.Children = append(parent.Children, Text(string(t)))
			}
		case xml.Comment:
			if len(stack) > 1 {
				parent := &stack[len(stack)-1]
				parent.Children = append(parent.Children, Node{Kind: CommentNode, Text: string(t)})
			}
		}
	}

	for _, c := range stack[0].Children {
		if c.Kind == ElementNode {
			return c, nil
		}
	}
	return Node{}, errors.New("document has no root element")
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
