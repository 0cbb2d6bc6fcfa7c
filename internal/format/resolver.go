// Package format resolves which reader variant should open a file, based
// on the file's name and its advisory MIME type.
package format

import "strings"

// Kind identifies a reader variant.
type Kind string

const (
	// KindFixedLayout is the paginated fixed-layout reader (PDF).
	KindFixedLayout Kind = "fixed_layout"
	// KindReflowable is the paginated reflowable reader (EPUB).
	KindReflowable Kind = "reflowable"
	// KindFlowDocument is the word-processor flow reader (DOC/DOCX).
	KindFlowDocument Kind = "flow_document"
	// KindScrollingText is the scrolling plain-text reader (TXT/MD).
	KindScrollingText Kind = "scrolling_text"
	// KindUnsupported means no reader can open the file. Surfaced as a
	// diagnostic view, not an error.
	KindUnsupported Kind = "unsupported"
)

// Extension returns the final filename suffix, lowercased, without the dot.
// A name with multiple dots uses the last segment ("book.tar.epub" → "epub");
// a name with no dot yields "".
func Extension(name string) string {
	lower := strings.ToLower(name)
	idx := strings.LastIndex(lower, ".")
	if idx < 0 {
		return ""
	}
	return lower[idx+1:]
}

// Resolve deterministically selects a reader variant for a file. The MIME
// type is advisory only; classification matches on either the extension or
// a MIME substring, in fixed priority order, first match wins.
func Resolve(name, mimeType string) Kind {
	ext := Extension(name)
	mime := strings.ToLower(mimeType)

	switch {
	case ext == "pdf" || strings.Contains(mime, "pdf"):
		return KindFixedLayout
	case ext == "epub" || strings.Contains(mime, "epub"):
		return KindReflowable
	case ext == "doc" || ext == "docx" ||
		strings.Contains(mime, "officedocument") || strings.Contains(mime, "word"):
		return KindFlowDocument
	case ext == "txt" || ext == "md" ||
		strings.Contains(mime, "text") || strings.Contains(mime, "plain"):
		return KindScrollingText
	default:
		return KindUnsupported
	}
}

// allowedUploadExtensions is the fixed allow-list enforced before any
// storage call. Formats beyond the readable set (mobi, azw, ...) are
// accepted for safekeeping even though no reader opens them yet.
var allowedUploadExtensions = map[string]bool{
	"pdf":  true,
	"epub": true,
	"mobi": true,
	"azw":  true,
	"azw3": true,
	"fb2":  true,
	"txt":  true,
	"rtf":  true,
	"doc":  true,
	"docx": true,
	"odt":  true,
}

// AllowedUpload reports whether a filename passes the upload allow-list.
func AllowedUpload(name string) bool {
	return allowedUploadExtensions[Extension(name)]
}

// AllowedExtensions returns the upload allow-list, for error messages.
func AllowedExtensions() []string {
	return []string{"pdf", "epub", "mobi", "azw", "azw3", "fb2", "txt", "rtf", "doc", "docx", "odt"}
}
