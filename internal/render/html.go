package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// MarkupHTML converts markup source to HTML that is safe to embed. Raw HTML in
// the source is dropped by the converter and whatever survives is sanitized.
func MarkupHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markup: %w", err)
	}
	return string(policy.SanitizeBytes(buf.Bytes())), nil
}

// HTML renders the display list as a standalone fragment, one div per block.
// Markup that fails to convert falls back to escaped text.
func HTML(blocks []Block) string {
	var buf bytes.Buffer
	buf.WriteString("<div class=\"chat\">\n")
	for _, block := range blocks {
		fmt.Fprintf(&buf, "<div class=\"message %s\" style=\"text-align: %s\">", block.Kind, block.Align)
		buf.WriteString(blockHTML(block))
		buf.WriteString("</div>\n")
	}
	buf.WriteString("</div>\n")
	return buf.String()
}

func blockHTML(block Block) string {
	if block.Markup {
		if out, err := MarkupHTML(block.Content); err == nil {
			return out
		}
	}
	return "<p>" + html.EscapeString(block.Content) + "</p>"
}
