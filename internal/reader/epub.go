package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/openshelf/openshelf/internal/format"
)

const (
	// locationSize is the character span of one generated location,
	// matching the rough "one page" estimate readers conventionally use.
	locationSize = 1000

	// basePageChars is the page span at 100% font scale. Larger fonts fit
	// fewer characters per page.
	basePageChars = 1000

	minFontScale  = 50
	maxFontScale  = 200
	fontScaleStep = 10
)

// TOCEntry is one table-of-contents item.
type TOCEntry struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type epubChapter struct {
	href string
	text string
}

// EPUBSession is the paginated reflowable reader. Its position marker is
// "pos:<chapter>:<offset>", a chapter index plus character offset, so it
// stays valid across font-scale changes that re-flow page boundaries.
//
// Total page count requires a full location-generation pass over the
// content; that pass runs asynchronously (see GenerateLocations) and the
// session stays navigable before it completes, reporting a chapter-based
// percentage until character totals are known.
type EPUBSession struct {
	base

	chapters []epubChapter
	toc      []TOCEntry

	chapterIdx int
	charOffset int

	fontScale int // percent, 50-200
	theme     string

	// Populated by GenerateLocations.
	locationsReady bool
	totalChars     int
	cumChars       []int // characters before chapter i
}

// NewEPUBSession creates a reflowable reader session.
func NewEPUBSession() *EPUBSession {
	return &EPUBSession{base: newBase(), fontScale: 100, theme: "light"}
}

func (s *EPUBSession) Kind() format.Kind {
	return format.KindReflowable
}

func (s *EPUBSession) Init(ctx context.Context, desc Descriptor) error {
	s.docID = desc.DocumentID

	data, err := fetch(ctx, desc.SourceURL)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	chapters, toc, err := parseEPUB(data)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: unparsable epub: %v", ErrLoad, err)
	}
	if len(chapters) == 0 {
		s.fail()
		return fmt.Errorf("%w: epub has no readable content", ErrLoad)
	}
	s.chapters = chapters
	s.toc = toc

	s.mu.Lock()
	s.chapterIdx, s.charOffset = 0, 0
	if ch, off, ok := parsePosMarker(desc.CachedPosition); ok && ch < len(chapters) {
		s.chapterIdx = ch
		s.charOffset = s.clampOffset(ch, off)
	}
	marker := posMarker(s.chapterIdx, s.charOffset)
	percent := s.percentLocked()
	s.mu.Unlock()

	s.ready(marker, percent)
	return nil
}

func (s *EPUBSession) Navigate(_ context.Context, nav Navigation) error {
	if !s.beginNav() {
		if s.State() == StateError || s.State() == StateLoading {
			return ErrNotReady
		}
		return nil
	}

	// beginNav serializes navigations, but Locations reads the position
	// fields from other goroutines. All chapterIdx/charOffset access stays
	// under mu.
	s.mu.Lock()
	prevCh, prevOff := s.chapterIdx, s.charOffset

	switch {
	case nav.Target != "":
		if idx, ok := s.chapterForHref(nav.Target); ok {
			s.chapterIdx = idx
			s.charOffset = 0
		}
	case nav.Direction == DirectionNext:
		s.pageForward()
	case nav.Direction == DirectionPrev:
		s.pageBackward()
	}

	moved := s.chapterIdx != prevCh || s.charOffset != prevOff
	marker := posMarker(s.chapterIdx, s.charOffset)
	percent := s.percentLocked()
	s.mu.Unlock()

	s.endNav(marker, percent, moved)
	return nil
}

// TOC returns the table of contents.
func (s *EPUBSession) TOC() []TOCEntry {
	return s.toc
}

// IncreaseFontScale steps the font scale up, bounded at 200%.
func (s *EPUBSession) IncreaseFontScale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fontScale+fontScaleStep <= maxFontScale {
		s.fontScale += fontScaleStep
	}
	return s.fontScale
}

// DecreaseFontScale steps the font scale down, bounded at 50%.
func (s *EPUBSession) DecreaseFontScale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fontScale-fontScaleStep >= minFontScale {
		s.fontScale -= fontScaleStep
	}
	return s.fontScale
}

// FontScale returns the current font scale in percent.
func (s *EPUBSession) FontScale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fontScale
}

// SetTheme applies the user's light/dark preference.
func (s *EPUBSession) SetTheme(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if theme == "dark" {
		s.theme = "dark"
	} else {
		s.theme = "light"
	}
}

// Theme returns the active theme.
func (s *EPUBSession) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// GenerateLocations runs the one-time pass over the full content that
// makes total page count available. Intended to run as a background task;
// the session stays responsive (navigation and percentages keep working)
// until it completes.
func (s *EPUBSession) GenerateLocations(ctx context.Context) error {
	cum := make([]int, len(s.chapters))
	total := 0
	for i, ch := range s.chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		cum[i] = total
		total += len(ch.text)
	}

	s.mu.Lock()
	s.cumChars = cum
	s.totalChars = total
	s.locationsReady = true
	s.mu.Unlock()
	return nil
}

// Locations reports the current location index and the total count.
// ready is false until GenerateLocations has completed.
func (s *EPUBSession) Locations() (current, total int, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locationsReady {
		return 0, 0, false
	}
	globalChar := s.cumChars[s.chapterIdx] + s.charOffset
	total = (s.totalChars + locationSize - 1) / locationSize
	current = globalChar/locationSize + 1
	if total == 0 {
		current = 0
	}
	return current, total, true
}

// pageSize is the character span of one page at the current font scale.
// Callers hold mu.
func (s *EPUBSession) pageSize() int {
	size := basePageChars * 100 / s.fontScale
	if size < 1 {
		size = 1
	}
	return size
}

// pageForward and pageBackward move one page within the current chapter,
// crossing chapter boundaries when the page runs out. Callers hold mu.
func (s *EPUBSession) pageForward() {
	size := s.pageSize()
	chapterLen := len(s.chapters[s.chapterIdx].text)
	if s.charOffset+size < chapterLen {
		s.charOffset += size
		return
	}
	if s.chapterIdx+1 < len(s.chapters) {
		s.chapterIdx++
		s.charOffset = 0
	}
	// At the last page of the last chapter: no wraparound.
}

func (s *EPUBSession) pageBackward() {
	size := s.pageSize()
	if s.charOffset > 0 {
		s.charOffset -= size
		if s.charOffset < 0 {
			s.charOffset = 0
		}
		return
	}
	if s.chapterIdx > 0 {
		s.chapterIdx--
		tail := len(s.chapters[s.chapterIdx].text) - size
		if tail < 0 {
			tail = 0
		}
		s.charOffset = tail
	}
}

// percentLocked derives the progress percentage. Callers hold mu.
func (s *EPUBSession) percentLocked() int {
	if s.locationsReady && s.totalChars > 0 {
		return percentOf(s.cumChars[s.chapterIdx]+s.charOffset, s.totalChars)
	}
	// Location totals not known yet: approximate by chapter position.
	return percentOf(s.chapterIdx, len(s.chapters))
}

func (s *EPUBSession) clampOffset(chapter, offset int) int {
	if offset < 0 {
		return 0
	}
	if l := len(s.chapters[chapter].text); offset >= l && l > 0 {
		return l - 1
	}
	return offset
}

// chapterForHref matches a TOC target against spine hrefs, ignoring any
// fragment.
func (s *EPUBSession) chapterForHref(target string) (int, bool) {
	target, _, _ = strings.Cut(target, "#")
	for i, ch := range s.chapters {
		if ch.href == target || strings.HasSuffix(ch.href, "/"+target) {
			return i, true
		}
	}
	return 0, false
}

func posMarker(chapter, offset int) string {
	return fmt.Sprintf("pos:%d:%d", chapter, offset)
}

func parsePosMarker(marker string) (chapter, offset int, ok bool) {
	rest, found := strings.CutPrefix(marker, "pos:")
	if !found {
		return 0, 0, false
	}
	chStr, offStr, found := strings.Cut(rest, ":")
	if !found {
		return 0, 0, false
	}
	ch, err1 := strconv.Atoi(chStr)
	off, err2 := strconv.Atoi(offStr)
	if err1 != nil || err2 != nil || ch < 0 || off < 0 {
		return 0, 0, false
	}
	return ch, off, true
}

// --- EPUB package parsing ---

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		Itemrefs []struct {
			IDref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type ncxNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxDocument struct {
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

// parseEPUB opens the package zip and extracts spine chapters in reading
// order plus the NCX table of contents when one is present.
func parseEPUB(data []byte) ([]epubChapter, []TOCEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("not a zip archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	containerXML, err := readZipFile(files, "META-INF/container.xml")
	if err != nil {
		return nil, nil, err
	}
	var cont epubContainer
	if err := xml.Unmarshal(containerXML, &cont); err != nil {
		return nil, nil, fmt.Errorf("malformed container.xml: %w", err)
	}
	if len(cont.Rootfiles) == 0 {
		return nil, nil, fmt.Errorf("container.xml names no rootfile")
	}

	opfPath := cont.Rootfiles[0].FullPath
	opfXML, err := readZipFile(files, opfPath)
	if err != nil {
		return nil, nil, err
	}
	var pkg opfPackage
	if err := xml.Unmarshal(opfXML, &pkg); err != nil {
		return nil, nil, fmt.Errorf("malformed opf: %w", err)
	}

	opfDir := path.Dir(opfPath)
	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	ncxHref := ""
	for _, item := range pkg.Manifest.Items {
		hrefByID[item.ID] = item.Href
		if item.MediaType == "application/x-dtbncx+xml" || item.ID == pkg.Spine.Toc {
			ncxHref = item.Href
		}
	}

	var chapters []epubChapter
	for _, ref := range pkg.Spine.Itemrefs {
		href, ok := hrefByID[ref.IDref]
		if !ok {
			continue
		}
		content, err := readZipFile(files, resolveHref(opfDir, href))
		if err != nil {
			continue // A missing spine item degrades, it does not fail the book.
		}
		chapters = append(chapters, epubChapter{
			href: href,
			text: stripMarkup(string(content)),
		})
	}

	var toc []TOCEntry
	if ncxHref != "" {
		if ncxXML, err := readZipFile(files, resolveHref(opfDir, ncxHref)); err == nil {
			var doc ncxDocument
			if err := xml.Unmarshal(ncxXML, &doc); err == nil {
				toc = flattenNavPoints(doc.NavPoints)
			}
		}
	}
	if len(toc) == 0 {
		for _, ch := range chapters {
			toc = append(toc, TOCEntry{Label: ch.href, Href: ch.href})
		}
	}

	return chapters, toc, nil
}

func readZipFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%s missing from epub package", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func resolveHref(opfDir, href string) string {
	if opfDir == "." || opfDir == "" {
		return href
	}
	return path.Join(opfDir, href)
}

func flattenNavPoints(points []ncxNavPoint) []TOCEntry {
	var entries []TOCEntry
	for _, p := range points {
		entries = append(entries, TOCEntry{
			Label: strings.TrimSpace(p.Label),
			Href:  p.Content.Src,
		})
		entries = append(entries, flattenNavPoints(p.Children)...)
	}
	return entries
}

// stripMarkup reduces XHTML chapter content to plain text: tags dropped,
// entities unescaped, whitespace collapsed.
func stripMarkup(content string) string {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
