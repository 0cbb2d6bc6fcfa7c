package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/progress"
)

// ProgressController exposes reading progress directly, for clients that
// sync positions without holding a reader session open.
type ProgressController struct {
	store  DocumentStore
	cache  progress.Cache
	writer *progress.Writer
}

func NewProgressController(store DocumentStore, cache progress.Cache, writer *progress.Writer) *ProgressController {
	return &ProgressController{store: store, cache: cache, writer: writer}
}

type progressUpdate struct {
	Marker     string `json:"marker" binding:"required"`
	Percentage int    `json:"percentage"`
	Finished   bool   `json:"finished"`
}

// Update records a position for a document. The cache is written
// synchronously; the document row follows through the debounced writer.
// Later positions may carry a lower percentage than earlier ones, the
// newest write always wins.
func (pc *ProgressController) Update(c *gin.Context) {
	userID := GetUserID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req progressUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "marker is required")
		return
	}
	if req.Percentage < 0 || req.Percentage > 100 {
		respondBadRequest(c, "percentage must be between 0 and 100")
		return
	}

	if _, err := pc.store.GetByID(id, userID); err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			respondNotFound(c, "document")
			return
		}
		respondInternalError(c, err, "get document")
		return
	}

	pc.cache.Set(c.Request.Context(), userID, id, req.Marker)
	pc.writer.Schedule(userID, id, req.Marker, req.Percentage, req.Finished)

	c.JSON(http.StatusOK, gin.H{
		"marker":     req.Marker,
		"percentage": req.Percentage,
		"finished":   req.Finished,
	})
}

// Get returns the latest known position for a document, preferring the
// fast cache over the document row. The row stays authoritative for the
// percentage and finished flag; the cache only carries the marker.
func (pc *ProgressController) Get(c *gin.Context) {
	userID := GetUserID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := pc.store.GetByID(id, userID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			respondNotFound(c, "document")
			return
		}
		respondInternalError(c, err, "get document")
		return
	}

	marker := doc.Progress
	if cached, ok := pc.cache.Get(c.Request.Context(), userID, id); ok {
		marker = cached
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"marker":      marker,
		"percentage":  doc.ProgressPercentage,
		"finished":    doc.IsFinished,
	})
}
