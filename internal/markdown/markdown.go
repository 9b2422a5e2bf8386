// Package markdown renders stored post bodies to HTML with goldmark.
//
// The engine runs in goldmark's default safe mode: raw HTML in the source is
// replaced with an "omitted" comment and links with dangerous schemes
// (javascript:, vbscript:, file:, data: other than images) are dropped. Both
// Render and Excerpt output whole block elements only, so either fragment is
// safe to emit as template.HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ellipsis is appended to an excerpt that dropped blocks.
const ellipsis = "<p>...</p>\n"

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a Renderer with CommonMark rules and no extensions.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// Render converts src to an HTML fragment.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: rendering: %w", err)
	}
	return buf.String(), nil
}

// Excerpt renders only the first n top-level blocks of src (paragraphs, lists,
// code blocks, quotes, headings) and appends an ellipsis paragraph when any were
// left out. Cutting at block boundaries keeps every tag balanced.
func (r *Renderer) Excerpt(src string, n int) (string, error) {
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	cut := false
	kept := 0
	for child := doc.FirstChild(); child != nil; {
		next := child.NextSibling()
		if kept >= n {
			doc.RemoveChild(doc, child)
			cut = true
		} else {
			kept++
		}
		child = next
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return "", fmt.Errorf("markdown: rendering excerpt: %w", err)
	}
	if cut {
		buf.WriteString(ellipsis)
	}
	return buf.String(), nil
}
