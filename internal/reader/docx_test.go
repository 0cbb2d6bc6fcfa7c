package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docxFixture builds a minimal OOXML package with the given paragraphs.
func docxFixture(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&doc, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDocxBlocks(t *testing.T) {
	data := docxFixture(t, "First paragraph.", "Second paragraph.", "  ", "Third.")

	blocks, err := extractDocxBlocks(data)
	require.NoError(t, err)
	// The whitespace-only paragraph is dropped.
	assert.Equal(t, []string{"First paragraph.", "Second paragraph.", "Third."}, blocks)
}

func TestExtractDocxBlocksSplitRuns(t *testing.T) {
	var doc strings.Builder
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	// One paragraph whose text is split across two runs.
	doc.WriteString(`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>`)
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	blocks, err := extractDocxBlocks(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello world"}, blocks)
}

func TestExtractDocxBlocksNotAZip(t *testing.T) {
	_, err := extractDocxBlocks([]byte("plain text, not a package"))
	assert.Error(t, err)
}

func TestExtractDocxBlocksMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = extractDocxBlocks(buf.Bytes())
	assert.ErrorContains(t, err, "word/document.xml")
}

func TestDocxSessionNavigation(t *testing.T) {
	paragraphs := make([]string, 25)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d", i)
	}
	srv := serveContent(t, docxFixture(t, paragraphs...))

	s := NewDocxSession()
	events := recordEvents(s)
	require.NoError(t, s.Init(context.Background(), Descriptor{DocumentID: 11, SourceURL: srv.URL}))

	assert.Equal(t, 25, s.BlockCount())
	assert.Equal(t, "block:0", s.Position().Marker)
	assert.Len(t, s.VisibleBlocks(), 20)

	// Forward clamps to the scroll range (25 - 20 = 5).
	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "block:5", s.Position().Marker)
	assert.Equal(t, 100, s.Position().Percent)
	require.Len(t, *events, 1)

	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionPrev}))
	assert.Equal(t, "block:0", s.Position().Marker)
}

func TestDocxSessionResume(t *testing.T) {
	paragraphs := make([]string, 30)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d", i)
	}
	srv := serveContent(t, docxFixture(t, paragraphs...))

	s := NewDocxSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{
		SourceURL:      srv.URL,
		CachedPosition: "block:8",
	}))

	assert.Equal(t, "block:8", s.Position().Marker)
}

func TestDocxSessionUnparsable(t *testing.T) {
	srv := serveContent(t, []byte("not a docx"))

	s := NewDocxSession()
	err := s.Init(context.Background(), Descriptor{SourceURL: srv.URL})
	require.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, StateError, s.State())
}
