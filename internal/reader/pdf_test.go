package reader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPageCount replaces the PDF parser for the duration of a test.
func stubPageCount(t *testing.T, pages int, err error) {
	t.Helper()
	orig := countPDFPages
	countPDFPages = func([]byte) (int, error) { return pages, err }
	t.Cleanup(func() { countPDFPages = orig })
}

func TestPDFSessionInit(t *testing.T) {
	stubPageCount(t, 10, nil)
	srv := serveContent(t, []byte("%PDF-1.4 stub"))

	s := NewPDFSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{DocumentID: 3, SourceURL: srv.URL}))

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 10, s.PageCount())
	assert.Equal(t, "page:1", s.Position().Marker)
	assert.Equal(t, 10, s.Position().Percent)
}

func TestPDFSessionUnparsable(t *testing.T) {
	stubPageCount(t, 0, errors.New("bad xref"))
	srv := serveContent(t, []byte("not a pdf"))

	s := NewPDFSession()
	err := s.Init(context.Background(), Descriptor{SourceURL: srv.URL})
	require.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, StateError, s.State())
}

func TestPDFSessionResumeClampsToPageCount(t *testing.T) {
	stubPageCount(t, 10, nil)
	srv := serveContent(t, []byte("%PDF"))

	s := NewPDFSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{
		SourceURL:      srv.URL,
		CachedPosition: "page:40",
	}))

	assert.Equal(t, "page:10", s.Position().Marker)
	assert.Equal(t, 100, s.Position().Percent)
}

func TestPDFSessionNavigation(t *testing.T) {
	stubPageCount(t, 3, nil)
	srv := serveContent(t, []byte("%PDF"))

	s := NewPDFSession()
	events := recordEvents(s)
	require.NoError(t, s.Init(context.Background(), Descriptor{DocumentID: 3, SourceURL: srv.URL}))

	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "page:2", s.Position().Marker)

	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "page:3", s.Position().Marker)

	// At the last page: no wraparound, no event.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "page:3", s.Position().Marker)
	assert.Len(t, *events, 2)

	page := 1
	require.NoError(t, s.Navigate(context.Background(), Navigation{Offset: &page}))
	assert.Equal(t, "page:1", s.Position().Marker)
}

func TestPDFSessionZoomBounds(t *testing.T) {
	s := NewPDFSession()

	assert.InDelta(t, 1.0, s.Zoom(), 1e-9)
	assert.InDelta(t, 1.25, s.ZoomIn(), 1e-9)

	for i := 0; i < 20; i++ {
		s.ZoomIn()
	}
	assert.InDelta(t, 3.0, s.Zoom(), 1e-9)

	for i := 0; i < 20; i++ {
		s.ZoomOut()
	}
	assert.InDelta(t, 0.5, s.Zoom(), 1e-9)
}

func TestPDFSessionRotationCycle(t *testing.T) {
	s := NewPDFSession()

	assert.Equal(t, 0, s.Rotation())
	assert.Equal(t, 90, s.Rotate())
	assert.Equal(t, 180, s.Rotate())
	assert.Equal(t, 270, s.Rotate())
	assert.Equal(t, 0, s.Rotate())
}

func TestPDFZoomAndRotationNotInMarker(t *testing.T) {
	stubPageCount(t, 5, nil)
	srv := serveContent(t, []byte("%PDF"))

	s := NewPDFSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{SourceURL: srv.URL}))

	s.ZoomIn()
	s.Rotate()
	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))

	// Presentation state stays out of the persisted position.
	assert.Equal(t, "page:2", s.Position().Marker)
}
