package export

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabcanvas/backend/internal/canvas"
)

func TestRenderHTMLNesting(t *testing.T) {
	tree := canvas.Tree{
		{
			ID:    "c1",
			Type:  "section",
			Style: map[string]string{"left": "10px", "top": "20px"},
			Children: []*canvas.Component{
				{ID: "c2", Type: "span", Content: "hello"},
			},
		},
	}

	got := RenderHTML(tree)
	assert.Contains(t, got, `<section style="left: 10px; top: 20px">`)
	assert.Contains(t, got, `<span style="">hello</span></section>`)
	assert.True(t, bytes.HasPrefix([]byte(got), []byte("<body>")))
}

func TestRenderHTMLDefaultsTagToDiv(t *testing.T) {
	got := RenderHTML(canvas.Tree{{ID: "c1"}})
	assert.Contains(t, got, "<div")
	assert.Contains(t, got, "</div>")
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	got := RenderHTML(canvas.Tree{{ID: "c1", Content: `<script>alert("x")</script>`}})
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "&lt;script&gt;")
}

func TestRenderHTMLIsDeterministic(t *testing.T) {
	tree := canvas.Tree{{
		ID:    "c1",
		Style: map[string]string{"z": "1", "a": "2", "m": "3"},
	}}
	first := RenderHTML(tree)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, RenderHTML(tree))
	}
}

func TestArchiveContainsRoomPage(t *testing.T) {
	data, err := Archive("ABC1", canvas.Tree{{ID: "c1", Content: "hi"}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "ABC1.html", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	page, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(page), "hi")
	assert.Contains(t, string(page), "<!DOCTYPE html>")
}
