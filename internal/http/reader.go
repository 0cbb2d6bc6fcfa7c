package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/entities"
	"github.com/openshelf/openshelf/internal/format"
	"github.com/openshelf/openshelf/internal/progress"
	"github.com/openshelf/openshelf/internal/reader"
	"github.com/openshelf/openshelf/internal/storage"
	"github.com/openshelf/openshelf/internal/tasks"
)

// ReaderController manages reader sessions: it resolves a document
// reference to a metadata row, selects the reader variant, and proxies
// navigation and display controls to the live session.
type ReaderController struct {
	store      DocumentStore
	storage    storage.Client
	sessions   *reader.Registry
	cache      progress.Cache
	writer     *progress.Writer
	taskClient *tasks.Client
}

func NewReaderController(
	store DocumentStore,
	storageClient storage.Client,
	sessions *reader.Registry,
	cache progress.Cache,
	writer *progress.Writer,
	taskClient *tasks.Client,
) *ReaderController {
	return &ReaderController{
		store:      store,
		storage:    storageClient,
		sessions:   sessions,
		cache:      cache,
		writer:     writer,
		taskClient: taskClient,
	}
}

type openRequest struct {
	// Reference identifies the document: a numeric ID, a storage path,
	// a title, or a name fragment.
	Reference string `json:"reference"`
}

// parseOpenReference accepts the document reference as a JSON body or a
// URL-escaped "document" query parameter. Either form may carry a bare
// JSON string or a {"reference": "..."} object; reader pages built
// against earlier versions send the bare form.
func parseOpenReference(c *gin.Context) (string, bool) {
	if q := c.Query("document"); q != "" {
		if ref, ok := decodeReference([]byte(q)); ok {
			return ref, true
		}
		return q, true
	}
	raw, err := c.GetRawData()
	if err != nil {
		return "", false
	}
	return decodeReference(raw)
}

func decodeReference(raw []byte) (string, bool) {
	var req openRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Reference != "" {
		return req.Reference, true
	}
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil && bare != "" {
		return bare, true
	}
	return "", false
}

// Open resolves a document reference, builds the matching reader session,
// resumes from the cached position, and returns the session handle. An
// unparsable or byte-level broken document is not an HTTP error: the
// response carries the error state so the page renders a diagnostic view.
func (rc *ReaderController) Open(c *gin.Context) {
	userID := GetUserID(c)

	ref, ok := parseOpenReference(c)
	if !ok {
		respondBadRequest(c, "document reference is required")
		return
	}

	doc, err := rc.resolveReference(userID, ref)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			respondNotFound(c, "document")
			return
		}
		respondInternalError(c, err, "resolve document")
		return
	}

	kind := format.Resolve(doc.StoragePath, doc.MIMEType)
	if kind == format.KindUnsupported {
		c.JSON(http.StatusOK, gin.H{
			"kind":      kind,
			"document":  doc,
			"extension": format.Extension(doc.StoragePath),
			"message":   "no reader is available for this file type",
			"allowed":   format.AllowedExtensions(),
		})
		return
	}

	session := reader.New(kind)
	if session == nil {
		respondInternalError(c, errors.New("no session for kind "+string(kind)), "open reader")
		return
	}

	// Every position change lands in the cache immediately and reaches
	// the document row through the debounced writer. Events outlive the
	// open request, so the listener runs against the background context.
	docID := doc.ID
	session.SetListener(func(ev reader.PositionEvent) {
		rc.cache.Set(context.Background(), userID, docID, ev.Marker)
		rc.writer.Schedule(userID, docID, ev.Marker, ev.Percent, ev.Percent >= 100)
	})

	url, err := rc.storage.GetDownloadURL(c.Request.Context(), doc.StoragePath)
	if err != nil {
		respondInternalError(c, err, "presign document")
		return
	}

	if err := session.Init(c.Request.Context(), reader.Descriptor{
		DocumentID:     docID,
		SourceURL:      url,
		CachedPosition: rc.cachedPosition(c, userID, doc),
	}); err != nil {
		// Terminal for this document only; the session is not registered.
		c.JSON(http.StatusOK, gin.H{
			"kind":     kind,
			"state":    session.State(),
			"document": doc,
			"message":  "the document could not be loaded",
		})
		return
	}

	sessionID := rc.sessions.Add(session)

	resp := gin.H{
		"session_id": sessionID,
		"kind":       kind,
		"state":      session.State(),
		"position":   session.Position(),
		"document":   doc,
	}
	if epub, ok := session.(*reader.EPUBSession); ok {
		resp["toc"] = epub.TOC()
		rc.enqueueLocations(sessionID, docID)
	}
	attachDisplayState(resp, session)

	c.JSON(http.StatusOK, resp)
}

// resolveReference tries a numeric document ID first, then the tolerant
// name lookup chain.
func (rc *ReaderController) resolveReference(userID uint, ref string) (*entities.Document, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return rc.store.GetByID(uint(id), userID)
	}
	return rc.store.FindByReference(userID, ref)
}

// cachedPosition prefers the fast cache and falls back to the
// authoritative document row.
func (rc *ReaderController) cachedPosition(c *gin.Context, userID uint, doc *entities.Document) string {
	if marker, ok := rc.cache.Get(c.Request.Context(), userID, doc.ID); ok {
		return marker
	}
	return doc.Progress
}

func (rc *ReaderController) enqueueLocations(sessionID string, docID uint) {
	if rc.taskClient == nil {
		return
	}
	task := tasks.GenerateLocationsTask{SessionID: sessionID, DocumentID: docID}
	if _, err := rc.taskClient.Add(task).Save(); err != nil {
		log.Printf("failed to enqueue location pass for document %d: %v", docID, err)
	}
}

type navigateRequest struct {
	Direction string `json:"direction"`
	Target    string `json:"target"`
	Offset    *int   `json:"offset"`
}

// Navigate applies one navigation to a live session and returns the
// resulting position. An ignored navigation (boundary, overlapping
// request) still returns the current position.
func (rc *ReaderController) Navigate(c *gin.Context) {
	session, ok := rc.session(c)
	if !ok {
		return
	}

	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid navigation request")
		return
	}

	nav := reader.Navigation{Target: req.Target, Offset: req.Offset}
	switch strings.ToLower(req.Direction) {
	case "next", "forward":
		nav.Direction = reader.DirectionNext
	case "prev", "previous", "back":
		nav.Direction = reader.DirectionPrev
	case "":
		if req.Target == "" && req.Offset == nil {
			respondBadRequest(c, "direction, target or offset is required")
			return
		}
	default:
		respondBadRequest(c, "unknown direction "+req.Direction)
		return
	}

	if err := session.Navigate(c.Request.Context(), nav); err != nil {
		if errors.Is(err, reader.ErrNotReady) {
			respondError(c, http.StatusConflict, "reader is not ready")
			return
		}
		respondInternalError(c, err, "navigate")
		return
	}

	rc.respondPosition(c, session)
}

// Position returns the session's current position and display state.
func (rc *ReaderController) Position(c *gin.Context) {
	session, ok := rc.session(c)
	if !ok {
		return
	}
	rc.respondPosition(c, session)
}

// Display adjusts a display control on the session. Controls are
// variant-specific; a control the variant does not implement is a 400.
func (rc *ReaderController) Display(c *gin.Context) {
	session, ok := rc.session(c)
	if !ok {
		return
	}

	var req struct {
		Control string `json:"control"`
		Value   string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid display request")
		return
	}

	switch req.Control {
	case "zoom_in":
		if z, ok := session.(reader.Zoomer); ok {
			c.JSON(http.StatusOK, gin.H{"zoom": z.ZoomIn()})
			return
		}
	case "zoom_out":
		if z, ok := session.(reader.Zoomer); ok {
			c.JSON(http.StatusOK, gin.H{"zoom": z.ZoomOut()})
			return
		}
	case "rotate":
		if r, ok := session.(reader.Rotator); ok {
			c.JSON(http.StatusOK, gin.H{"rotation": r.Rotate()})
			return
		}
	case "font_increase":
		if f, ok := session.(reader.FontScaler); ok {
			c.JSON(http.StatusOK, gin.H{"font_scale": f.IncreaseFontScale()})
			return
		}
	case "font_decrease":
		if f, ok := session.(reader.FontScaler); ok {
			c.JSON(http.StatusOK, gin.H{"font_scale": f.DecreaseFontScale()})
			return
		}
	case "theme":
		if t, ok := session.(reader.Themer); ok {
			t.SetTheme(req.Value)
			c.JSON(http.StatusOK, gin.H{"theme": t.Theme()})
			return
		}
	default:
		respondBadRequest(c, "unknown control "+req.Control)
		return
	}
	respondBadRequest(c, "control "+req.Control+" is not supported by this reader")
}

// Close tears down a session and flushes any pending progress write for
// its document. Closing an unknown session is not an error.
func (rc *ReaderController) Close(c *gin.Context) {
	id := c.Param("id")
	if session, ok := rc.sessions.Get(id); ok {
		rc.writer.Flush(session.Position().DocumentID)
	}
	rc.sessions.Remove(id)
	respondSuccess(c, "session closed")
}

func (rc *ReaderController) session(c *gin.Context) (reader.Session, bool) {
	session, ok := rc.sessions.Get(c.Param("id"))
	if !ok {
		respondNotFound(c, "reader session")
		return nil, false
	}
	return session, true
}

func (rc *ReaderController) respondPosition(c *gin.Context, session reader.Session) {
	resp := gin.H{
		"state":    session.State(),
		"position": session.Position(),
	}
	attachDisplayState(resp, session)
	c.JSON(http.StatusOK, resp)
}

// attachDisplayState adds whichever display controls the variant carries.
func attachDisplayState(resp gin.H, session reader.Session) {
	if z, ok := session.(reader.Zoomer); ok {
		resp["zoom"] = z.Zoom()
	}
	if r, ok := session.(reader.Rotator); ok {
		resp["rotation"] = r.Rotation()
	}
	if f, ok := session.(reader.FontScaler); ok {
		resp["font_scale"] = f.FontScale()
	}
	if t, ok := session.(reader.Themer); ok {
		resp["theme"] = t.Theme()
	}
	if epub, ok := session.(*reader.EPUBSession); ok {
		current, total, ready := epub.Locations()
		resp["locations"] = gin.H{"current": current, "total": total, "ready": ready}
	}
}
