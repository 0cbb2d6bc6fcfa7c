package progress

import (
	"log"
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet window applied when none is configured.
const DefaultDebounceWindow = time.Second

// RemoteStore is the authoritative progress record, reachable only through
// an owner-scoped update call.
type RemoteStore interface {
	UpdateProgress(documentID uint, userID uint, marker string, percentage int, finished bool) error
}

type pendingWrite struct {
	timer    *time.Timer
	userID   uint
	marker   string
	percent  int
	finished bool
}

// Writer coalesces rapid position-change events into a single delayed
// remote write per document. Each Schedule call within the quiet window
// cancels and reschedules the pending timer, so only the last event of a
// burst is sent, after the burst ends (trailing edge only).
//
// A failed remote write is logged and dropped; there is no retry queue.
// The local cache stays authoritative for resuming, and the next
// navigation event schedules a fresh write.
type Writer struct {
	store  RemoteStore
	window time.Duration

	mu      sync.Mutex
	pending map[uint]*pendingWrite
	closed  bool
}

// NewWriter creates a debounced sync writer with the given quiet window.
// A non-positive window falls back to DefaultDebounceWindow.
func NewWriter(store RemoteStore, window time.Duration) *Writer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Writer{
		store:   store,
		window:  window,
		pending: make(map[uint]*pendingWrite),
	}
}

// Schedule records the latest position for a document and (re)starts its
// quiet-window timer. At most one write is ever pending per document.
func (w *Writer) Schedule(userID, documentID uint, marker string, percentage int, finished bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if p, ok := w.pending[documentID]; ok {
		p.timer.Stop()
	}

	p := &pendingWrite{
		userID:   userID,
		marker:   marker,
		percent:  percentage,
		finished: finished,
	}
	p.timer = time.AfterFunc(w.window, func() {
		w.fire(documentID)
	})
	w.pending[documentID] = p
}

// Flush sends a document's pending write immediately, if any.
func (w *Writer) Flush(documentID uint) {
	w.mu.Lock()
	p, ok := w.pending[documentID]
	if ok {
		p.timer.Stop()
	}
	w.mu.Unlock()

	if ok {
		w.fire(documentID)
	}
}

// Close stops all timers and flushes every pending write synchronously, so
// the last position before shutdown is still sent.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	var ids []uint
	for id, p := range w.pending {
		p.timer.Stop()
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.fire(id)
	}
}

// PendingCount reports how many documents have an unsent write.
func (w *Writer) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// fire sends the pending write for a document. The entry is removed before
// the store call so a Schedule racing with the flush starts a fresh window
// instead of piggybacking on a stale one.
func (w *Writer) fire(documentID uint) {
	w.mu.Lock()
	p, ok := w.pending[documentID]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, documentID)
	w.mu.Unlock()

	if err := w.store.UpdateProgress(documentID, p.userID, p.marker, p.percent, p.finished); err != nil {
		// Swallowed: the local cache remains authoritative for resuming.
		log.Printf("[PROGRESS] remote write for document %d failed: %v", documentID, err)
	}
}
