// Package reader implements the per-format reader state machines. Each
// variant owns a private position representation behind a uniform Session
// contract: initialize from a source URL (resuming from a cached position
// when one exists), navigate, and emit a position-changed event carrying
// an opaque marker and an integer percentage after every successful move.
package reader

import (
	"context"
	"errors"
	"sync"

	"github.com/openshelf/openshelf/internal/format"
)

// State models the reader lifecycle: Loading → Ready → (Navigating →
// Ready)*, with a terminal Error reachable from Loading on fetch/parse
// failure.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateNavigating State = "navigating"
	StateError      State = "error"
)

var (
	// ErrLoad wraps fetch/parse failures during Init. Contained to the
	// document's view; the rest of the application stays usable.
	ErrLoad = errors.New("failed to load document")

	// ErrNotReady is returned by Navigate before Init completes or after
	// a load failure.
	ErrNotReady = errors.New("reader is not ready")
)

// Direction selects relative navigation.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionNext
	DirectionPrev
)

// Navigation describes one navigation request. Exactly one of Direction,
// Target (a table-of-contents href) or Offset (an explicit page, line or
// block index) should be set.
type Navigation struct {
	Direction Direction
	Target    string
	Offset    *int
}

// PositionEvent is emitted after every successful navigation. Marker is
// opaque and only ever interpreted by the variant that wrote it; Percent
// is derived by the variant and clamped to [0,100].
type PositionEvent struct {
	DocumentID uint
	Marker     string
	Percent    int
}

// Listener receives position-changed events.
type Listener func(PositionEvent)

// Descriptor identifies the document a session is opened for.
type Descriptor struct {
	DocumentID     uint
	SourceURL      string
	CachedPosition string
}

// Session is the uniform reader contract shared by all variants.
type Session interface {
	// Init loads content from the descriptor's source URL. With a cached
	// position it resumes there, otherwise it starts at the natural
	// beginning. A fetch or parse failure moves the session to the
	// terminal Error state and returns an error wrapping ErrLoad.
	Init(ctx context.Context, desc Descriptor) error

	// Navigate moves to the next/previous page, a TOC target, or an
	// explicit offset, depending on variant. It has no effect at a
	// terminal boundary (no wraparound). A navigation arriving while one
	// is in flight is ignored.
	Navigate(ctx context.Context, nav Navigation) error

	Kind() format.Kind
	State() State
	Position() PositionEvent
	SetListener(l Listener)
}

// Zoomer is implemented by variants with a continuous zoom scale.
type Zoomer interface {
	ZoomIn() float64
	ZoomOut() float64
	Zoom() float64
}

// Rotator is implemented by variants with a page-rotation cycle.
type Rotator interface {
	Rotate() int
	Rotation() int
}

// FontScaler is implemented by variants with a stepped font-scale control.
type FontScaler interface {
	IncreaseFontScale() int
	DecreaseFontScale() int
	FontScale() int
}

// Themer is implemented by variants whose rendering follows the user's
// light/dark preference.
type Themer interface {
	SetTheme(theme string)
	Theme() string
}

// base carries the state machine shared by every variant. Variants embed
// it and hold their private position representation alongside.
type base struct {
	mu       sync.Mutex
	state    State
	docID    uint
	marker   string
	percent  int
	listener Listener
}

func newBase() base {
	return base{state: StateLoading}
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) Position() PositionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return PositionEvent{DocumentID: b.docID, Marker: b.marker, Percent: b.percent}
}

func (b *base) SetListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// beginNav transitions Ready → Navigating. Returns false when the session
// is not Ready, which ignores overlapping navigation requests as well as
// calls before Init or after a load failure.
func (b *base) beginNav() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return false
	}
	b.state = StateNavigating
	return true
}

// endNav transitions back to Ready and, when the position changed, emits
// the position event outside the lock.
func (b *base) endNav(marker string, percent int, moved bool) {
	b.mu.Lock()
	b.state = StateReady
	var l Listener
	var ev PositionEvent
	if moved {
		b.marker = marker
		b.percent = clampPercent(percent)
		l = b.listener
		ev = PositionEvent{DocumentID: b.docID, Marker: b.marker, Percent: b.percent}
	}
	b.mu.Unlock()

	if moved && l != nil {
		l(ev)
	}
}

// ready transitions Loading → Ready with the initial position. No event
// is emitted: resuming is not a navigation.
func (b *base) ready(marker string, percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateReady
	b.marker = marker
	b.percent = clampPercent(percent)
}

// fail moves the session to the terminal Error state.
func (b *base) fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateError
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// percentOf computes a rounded integer percentage of pos within total.
func percentOf(pos, total int) int {
	if total <= 0 {
		return 0
	}
	return clampPercent((pos*100 + total/2) / total)
}
