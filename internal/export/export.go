package export

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/collabcanvas/backend/internal/canvas"
)

// RenderHTML turns a persisted canvas into a static HTML page: the tag comes
// from the component type (div when absent), the style map becomes an inline
// style attribute, content text renders before children.
func RenderHTML(components canvas.Tree) string {
	var b strings.Builder
	b.WriteString("<body>\n")
	for _, c := range components {
		renderComponent(&b, c)
		b.WriteString("\n")
	}
	b.WriteString("</body>")
	return b.String()
}

func renderComponent(b *strings.Builder, c *canvas.Component) {
	tag := c.Type
	if tag == "" {
		tag = canvas.DefaultType
	}
	fmt.Fprintf(b, `<%s style="%s">`, tag, html.EscapeString(inlineStyle(c.Style)))
	b.WriteString(html.EscapeString(c.Content))
	for _, child := range c.Children {
		renderComponent(b, child)
	}
	fmt.Fprintf(b, "</%s>", tag)
}

// inlineStyle flattens the style map deterministically so renders are
// byte-stable across runs.
func inlineStyle(style map[string]string) string {
	if len(style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + style[k]
	}
	return strings.Join(parts, "; ")
}

// Archive packages the rendered page as a zip holding a single
// self-contained HTML file named after the room.
func Archive(roomCode string, components canvas.Tree) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	f, err := zw.Create(roomCode + ".html")
	if err != nil {
		return nil, fmt.Errorf("create archive entry: %w", err)
	}
	page := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><title>%s</title></head>\n%s\n</html>\n",
		html.EscapeString(roomCode), RenderHTML(components))
	if _, err := f.Write([]byte(page)); err != nil {
		return nil, fmt.Errorf("write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
