package reader

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openshelf/openshelf/internal/format"
)

// textViewportLines is how many lines one "page" of the scrolling text
// view advances by.
const textViewportLines = 40

// TextSession is the scrolling plain-text reader. Its position marker is
// the top visible line, "line:<n>"; the percentage is the fraction of the
// total scroll range.
type TextSession struct {
	base

	lines   []string
	topLine int
}

// NewTextSession creates a scrolling text reader session.
func NewTextSession() *TextSession {
	return &TextSession{base: newBase()}
}

func (s *TextSession) Kind() format.Kind {
	return format.KindScrollingText
}

func (s *TextSession) Init(ctx context.Context, desc Descriptor) error {
	s.docID = desc.DocumentID

	data, err := fetch(ctx, desc.SourceURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	s.lines = strings.Split(string(data), "\n")
	s.topLine = 0

	if line, ok := parseLineMarker(desc.CachedPosition); ok {
		s.topLine = s.clampLine(line)
	}

	s.ready(lineMarker(s.topLine), percentOf(s.topLine, s.maxTop()))
	return nil
}

func (s *TextSession) Navigate(_ context.Context, nav Navigation) error {
	if !s.beginNav() {
		if s.State() == StateError || s.State() == StateLoading {
			return ErrNotReady
		}
		return nil
	}

	s.mu.Lock()
	target := s.topLine
	switch {
	case nav.Offset != nil:
		target = s.clampLine(*nav.Offset)
	case nav.Direction == DirectionNext:
		target = s.clampLine(s.topLine + textViewportLines)
	case nav.Direction == DirectionPrev:
		target = s.clampLine(s.topLine - textViewportLines)
	}

	moved := target != s.topLine
	s.topLine = target
	marker := lineMarker(s.topLine)
	percent := percentOf(s.topLine, s.maxTop())
	s.mu.Unlock()

	s.endNav(marker, percent, moved)
	return nil
}

// LineCount returns the number of lines in the loaded document.
func (s *TextSession) LineCount() int {
	return len(s.lines)
}

// VisibleLines returns the lines of the current viewport.
func (s *TextSession) VisibleLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.topLine + textViewportLines
	if end > len(s.lines) {
		end = len(s.lines)
	}
	return s.lines[s.topLine:end]
}

// maxTop is the largest valid top line: the scroll range excludes the
// final viewport so the last page still fills the screen.
func (s *TextSession) maxTop() int {
	m := len(s.lines) - textViewportLines
	if m < 0 {
		return 0
	}
	return m
}

func (s *TextSession) clampLine(line int) int {
	if line < 0 {
		return 0
	}
	if m := s.maxTop(); line > m {
		return m
	}
	return line
}

func lineMarker(line int) string {
	return fmt.Sprintf("line:%d", line)
}

func parseLineMarker(marker string) (int, bool) {
	rest, ok := strings.CutPrefix(marker, "line:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
