package reader

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/format"
)

// Registry tracks open reader sessions by an opaque id handed to the
// client. Background work (the EPUB location pass) resolves its session
// through the registry, so a session closed in the meantime makes the
// work a no-op instead of an error.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Add stores the session and returns its id.
func (r *Registry) Add(s Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id
}

// Get returns the session for id, if it is still open.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes out a session. Safe to call for ids already removed.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Count reports the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// New constructs the session variant for a resolved format kind, or nil
// when the kind has no reader.
func New(kind format.Kind) Session {
	switch kind {
	case format.KindFixedLayout:
		return NewPDFSession()
	case format.KindReflowable:
		return NewEPUBSession()
	case format.KindFlowDocument:
		return NewDocxSession()
	case format.KindScrollingText:
		return NewTextSession()
	default:
		return nil
	}
}
