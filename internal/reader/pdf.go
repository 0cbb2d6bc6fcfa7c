package reader

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/openshelf/openshelf/internal/format"
)

// Zoom bounds for the fixed-layout view. Presentation state only, never
// persisted.
const (
	minZoom  = 0.5
	maxZoom  = 3.0
	zoomStep = 0.25
)

// countPDFPages parses the document and returns its page count. A seam so
// tests can supply a count without crafting real PDF bytes.
var countPDFPages = func(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// PDFSession is the paginated fixed-layout reader. Its position marker is
// the 1-based page number, "page:<n>"; the percentage is the fraction of
// total pages.
type PDFSession struct {
	base

	numPages int
	page     int // 1-based

	zoom     float64
	rotation int // degrees, one of 0/90/180/270
}

// NewPDFSession creates a fixed-layout reader session.
func NewPDFSession() *PDFSession {
	return &PDFSession{base: newBase(), zoom: 1.0}
}

func (s *PDFSession) Kind() format.Kind {
	return format.KindFixedLayout
}

func (s *PDFSession) Init(ctx context.Context, desc Descriptor) error {
	s.docID = desc.DocumentID

	data, err := fetch(ctx, desc.SourceURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	numPages, err := countPDFPages(data)
	if err != nil || numPages < 1 {
		s.fail()
		return fmt.Errorf("%w: unparsable pdf: %v", ErrLoad, err)
	}
	s.numPages = numPages

	s.page = 1
	if page, ok := parsePageMarker(desc.CachedPosition); ok {
		s.page = s.clampPage(page)
	}

	s.ready(pageMarker(s.page), percentOf(s.page, s.numPages))
	return nil
}

func (s *PDFSession) Navigate(_ context.Context, nav Navigation) error {
	if !s.beginNav() {
		if s.State() == StateError || s.State() == StateLoading {
			return ErrNotReady
		}
		return nil
	}

	s.mu.Lock()
	target := s.page
	switch {
	case nav.Offset != nil:
		target = s.clampPage(*nav.Offset)
	case nav.Direction == DirectionNext:
		target = s.clampPage(s.page + 1)
	case nav.Direction == DirectionPrev:
		target = s.clampPage(s.page - 1)
	}

	moved := target != s.page
	s.page = target
	marker := pageMarker(s.page)
	percent := percentOf(s.page, s.numPages)
	s.mu.Unlock()

	s.endNav(marker, percent, moved)
	return nil
}

// PageCount returns the total number of pages.
func (s *PDFSession) PageCount() int {
	return s.numPages
}

// ZoomIn raises the render scale one step, bounded.
func (s *PDFSession) ZoomIn() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zoom+zoomStep <= maxZoom {
		s.zoom += zoomStep
	}
	return s.zoom
}

// ZoomOut lowers the render scale one step, bounded.
func (s *PDFSession) ZoomOut() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zoom-zoomStep >= minZoom {
		s.zoom -= zoomStep
	}
	return s.zoom
}

// Zoom returns the current render scale.
func (s *PDFSession) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Rotate advances the rotation cycle one step forward: 0 → 90 → 180 →
// 270 → 0. There is no reverse cycle.
func (s *PDFSession) Rotate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = (s.rotation + 90) % 360
	return s.rotation
}

// Rotation returns the current rotation in degrees.
func (s *PDFSession) Rotation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

func (s *PDFSession) clampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > s.numPages {
		return s.numPages
	}
	return page
}

func pageMarker(page int) string {
	return fmt.Sprintf("page:%d", page)
}

func parsePageMarker(marker string) (int, bool) {
	rest, ok := strings.CutPrefix(marker, "page:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
