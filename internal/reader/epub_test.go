package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// epubFixture builds a minimal two-chapter package with an NCX.
func epubFixture(t *testing.T) []byte {
	t.Helper()

	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container" version="1.0">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <manifest>
    <item id="ch1" href="chap1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chap2.xhtml" media-type="application/xhtml+xml"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`,
		"OEBPS/chap1.xhtml": `<html><body><h1>One</h1><p>Opening chapter &amp; text.</p></body></html>`,
		"OEBPS/chap2.xhtml": `<html><body><h1>Two</h1><p>Closing chapter text.</p></body></html>`,
		"OEBPS/toc.ncx": `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/">
  <navMap>
    <navPoint id="n1"><navLabel><text>Chapter One</text></navLabel><content src="chap1.xhtml"/></navPoint>
    <navPoint id="n2"><navLabel><text>Chapter Two</text></navLabel><content src="chap2.xhtml#start"/></navPoint>
  </navMap>
</ncx>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseEPUB(t *testing.T) {
	chapters, toc, err := parseEPUB(epubFixture(t))
	require.NoError(t, err)

	require.Len(t, chapters, 2)
	assert.Equal(t, "chap1.xhtml", chapters[0].href)
	assert.Equal(t, "One Opening chapter & text.", chapters[0].text)
	assert.Equal(t, "Two Closing chapter text.", chapters[1].text)

	require.Len(t, toc, 2)
	assert.Equal(t, "Chapter One", toc[0].Label)
	assert.Equal(t, "chap2.xhtml#start", toc[1].Href)
}

func TestParseEPUBNotAZip(t *testing.T) {
	_, _, err := parseEPUB([]byte("not an epub"))
	assert.Error(t, err)
}

func TestParseEPUBMissingContainer(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("mimetype")
	require.NoError(t, err)
	_, err = f.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, _, err = parseEPUB(buf.Bytes())
	assert.ErrorContains(t, err, "container.xml")
}

func TestEPUBSessionInit(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{DocumentID: 5, SourceURL: srv.URL}))

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "pos:0:0", s.Position().Marker)
	assert.Equal(t, 0, s.Position().Percent)
	assert.Len(t, s.TOC(), 2)
}

func TestEPUBSessionChapterNavigation(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	events := recordEvents(s)
	require.NoError(t, s.Init(context.Background(), Descriptor{DocumentID: 5, SourceURL: srv.URL}))

	// Short chapters: one page each, so Next crosses the chapter boundary.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "pos:1:0", s.Position().Marker)
	assert.Equal(t, 50, s.Position().Percent)
	require.Len(t, *events, 1)

	// At the end of the last chapter: no wraparound, no event.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionNext}))
	assert.Equal(t, "pos:1:0", s.Position().Marker)
	assert.Len(t, *events, 1)

	require.NoError(t, s.Navigate(context.Background(), Navigation{Direction: DirectionPrev}))
	assert.Equal(t, "pos:0:0", s.Position().Marker)
}

func TestEPUBSessionTOCTarget(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{SourceURL: srv.URL}))

	// Fragment in the TOC href is ignored when matching the spine.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Target: "chap2.xhtml#start"}))
	assert.Equal(t, "pos:1:0", s.Position().Marker)

	// An unknown target does not move.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Target: "missing.xhtml"}))
	assert.Equal(t, "pos:1:0", s.Position().Marker)
}

func TestEPUBSessionResume(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{
		SourceURL:      srv.URL,
		CachedPosition: "pos:1:5",
	}))

	assert.Equal(t, "pos:1:5", s.Position().Marker)
}

func TestEPUBSessionResumeOutOfRange(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{
		SourceURL:      srv.URL,
		CachedPosition: "pos:9:0",
	}))

	// A chapter index beyond the spine falls back to the beginning.
	assert.Equal(t, "pos:0:0", s.Position().Marker)
}

func TestEPUBSessionFontScaleBounds(t *testing.T) {
	s := NewEPUBSession()

	assert.Equal(t, 100, s.FontScale())
	assert.Equal(t, 110, s.IncreaseFontScale())

	for i := 0; i < 30; i++ {
		s.IncreaseFontScale()
	}
	assert.Equal(t, 200, s.FontScale())

	for i := 0; i < 30; i++ {
		s.DecreaseFontScale()
	}
	assert.Equal(t, 50, s.FontScale())
}

func TestEPUBSessionTheme(t *testing.T) {
	s := NewEPUBSession()

	assert.Equal(t, "light", s.Theme())
	s.SetTheme("dark")
	assert.Equal(t, "dark", s.Theme())
	s.SetTheme("sepia")
	assert.Equal(t, "light", s.Theme())
}

func TestEPUBSessionLocations(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{SourceURL: srv.URL}))

	// Before the generation pass the session is usable but not indexed.
	_, _, ready := s.Locations()
	assert.False(t, ready)

	require.NoError(t, s.GenerateLocations(context.Background()))

	current, total, ready := s.Locations()
	require.True(t, ready)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, current)

	// With totals known the percentage becomes character-based.
	require.NoError(t, s.Navigate(context.Background(), Navigation{Target: "chap2.xhtml"}))
	pos := s.Position()
	assert.Greater(t, pos.Percent, 50)
}

func TestEPUBSessionConcurrentNavigateAndLocations(t *testing.T) {
	srv := serveContent(t, epubFixture(t))

	s := NewEPUBSession()
	require.NoError(t, s.Init(context.Background(), Descriptor{SourceURL: srv.URL}))
	require.NoError(t, s.GenerateLocations(context.Background()))

	// Paging and the location readout arrive on separate request handlers,
	// so they hit the session from different goroutines.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			dir := DirectionNext
			if i%2 == 1 {
				dir = DirectionPrev
			}
			_ = s.Navigate(context.Background(), Navigation{Direction: dir})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Locations()
			s.Position()
		}
	}()
	wg.Wait()

	_, _, ready := s.Locations()
	assert.True(t, ready)
}
