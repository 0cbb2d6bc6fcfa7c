package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openshelf/openshelf/internal/format"
)

// docxViewportBlocks is how many paragraphs one "page" of the flow view
// advances by.
const docxViewportBlocks = 20

// DocxSession is the flow-document reader: word-processor content rendered
// as reflowed blocks rather than fixed pages. Its position marker is the
// top visible block, "block:<n>".
type DocxSession struct {
	base

	blocks   []string
	topBlock int
}

// NewDocxSession creates a flow-document reader session.
func NewDocxSession() *DocxSession {
	return &DocxSession{base: newBase()}
}

func (s *DocxSession) Kind() format.Kind {
	return format.KindFlowDocument
}

func (s *DocxSession) Init(ctx context.Context, desc Descriptor) error {
	s.docID = desc.DocumentID

	data, err := fetch(ctx, desc.SourceURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	blocks, err := extractDocxBlocks(data)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: unparsable docx: %v", ErrLoad, err)
	}
	s.blocks = blocks

	s.topBlock = 0
	if block, ok := parseBlockMarker(desc.CachedPosition); ok {
		s.topBlock = s.clampBlock(block)
	}

	s.ready(blockMarker(s.topBlock), percentOf(s.topBlock, s.maxTop()))
	return nil
}

func (s *DocxSession) Navigate(_ context.Context, nav Navigation) error {
	if !s.beginNav() {
		if s.State() == StateError || s.State() == StateLoading {
			return ErrNotReady
		}
		return nil
	}

	s.mu.Lock()
	target := s.topBlock
	switch {
	case nav.Offset != nil:
		target = s.clampBlock(*nav.Offset)
	case nav.Direction == DirectionNext:
		target = s.clampBlock(s.topBlock + docxViewportBlocks)
	case nav.Direction == DirectionPrev:
		target = s.clampBlock(s.topBlock - docxViewportBlocks)
	}

	moved := target != s.topBlock
	s.topBlock = target
	marker := blockMarker(s.topBlock)
	percent := percentOf(s.topBlock, s.maxTop())
	s.mu.Unlock()

	s.endNav(marker, percent, moved)
	return nil
}

// BlockCount returns the number of extracted paragraphs.
func (s *DocxSession) BlockCount() int {
	return len(s.blocks)
}

// VisibleBlocks returns the paragraphs of the current viewport.
func (s *DocxSession) VisibleBlocks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.topBlock + docxViewportBlocks
	if end > len(s.blocks) {
		end = len(s.blocks)
	}
	return s.blocks[s.topBlock:end]
}

func (s *DocxSession) maxTop() int {
	m := len(s.blocks) - docxViewportBlocks
	if m < 0 {
		return 0
	}
	return m
}

func (s *DocxSession) clampBlock(block int) int {
	if block < 0 {
		return 0
	}
	if m := s.maxTop(); block > m {
		return m
	}
	return block
}

// extractDocxBlocks pulls paragraph text out of the OOXML package. Only
// word/document.xml is consulted; formatting is discarded, which is all
// the flow view needs.
func extractDocxBlocks(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a zip archive: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, err
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("word/document.xml missing")
	}
	defer docXML.Close()

	var blocks []string
	var current strings.Builder

	decoder := xml.NewDecoder(docXML)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					blocks = append(blocks, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		blocks = append(blocks, text)
	}

	return blocks, nil
}

func blockMarker(block int) string {
	return fmt.Sprintf("block:%d", block)
}

func parseBlockMarker(marker string) (int, bool) {
	rest, ok := strings.CutPrefix(marker, "block:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
