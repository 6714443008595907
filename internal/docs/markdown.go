package docs

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractText flattens markdown source to plain text by walking the parsed
// AST and collecting text segments. Block boundaries become line breaks so
// the structural parser sees one logical line per heading or paragraph line.
func extractText(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		}

		// Closing a block-level node ends the current line.
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindListItem,
			ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindBlockquote:
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	return buf.String()
}
