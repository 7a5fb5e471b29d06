package ingest

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// PlainText strips markdown structure from raw markup, returning the bare
// text used for embedding and fulltext indexing. Block boundaries collapse to
// single spaces so sentence segmentation downstream stays sane.
func PlainText(markup string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	doc := parser.NewWithExtensions(extensions).Parse([]byte(markup))

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		case *ast.CodeBlock:
			b.Write(n.Literal)
			b.WriteByte(' ')
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TableCell:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		}
		return ast.GoToNext
	})

	return strings.Join(strings.Fields(b.String()), " ")
}
