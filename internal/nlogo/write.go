package nlogo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header lines of every generated setup document. NetLogo's headless
// runner recognizes the BehaviorSpace doctype.
const (
	XMLDeclaration = `<?xml version="1.0" encoding="us-ascii"?>`
	DocType        = `<!DOCTYPE experiments SYSTEM "behaviorspace.dtd">`
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// WriteRunDocument writes experiment as a standalone setup document
// wrapped in an <experiments> element.
func WriteRunDocument(w io.Writer, experiment Node) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(XMLDeclaration + "\n")
	bw.WriteString(DocType + "\n")
	bw.WriteString("<experiments>\n")
	writeNode(bw, experiment)
	bw.WriteString("</experiments>\n")
	return bw.Flush()
}

// WriteRunFile creates (or truncates) path and writes the setup document
// into it.
func WriteRunFile(path string, experiment Node) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := WriteRunDocument(f, experiment); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeNode(w *bufio.Writer, n Node) {
	switch n.Kind {
	case TextNode:
		w.WriteString(asciiOnly(textEscaper.Replace(n.Text)))
	case CommentNode:
		w.WriteString("<!--" + asciiOnly(n.Text) + "-->")
	case ElementNode:
		w.WriteString("<" + n.Name)
		for _, a := range n.Attrs {
			w.WriteString(" " + a.Name + `="` + asciiOnly(attrEscaper.Replace(a.Value)) + `"`)
		}
		if len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for _, c := range n.Children {
			writeNode(w, c)
		}
		w.WriteString("</" + n.Name + ">")
	}
}

// asciiOnly replaces runes outside ASCII with character references so the
// output matches its us-ascii declaration.
func asciiOnly(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			var b strings.Builder
			for _, r := range s {
				if r < 0x80 {
					b.WriteRune(r)
				} else {
					fmt.Fprintf(&b, "&#%d;", r)
				}
			}
			return b.String()
		}
	}
	return s
}
