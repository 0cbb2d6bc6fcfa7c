package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/entities"
	"github.com/openshelf/openshelf/internal/format"
	"github.com/openshelf/openshelf/internal/storage"
	"github.com/openshelf/openshelf/internal/utils"
)

// maxUploadSize caps upload request bodies at 200 MB.
const maxUploadSize = 200 << 20

// LibraryController handles the document library endpoints: listing,
// upload, and removal.
type LibraryController struct {
	store   DocumentStore
	storage storage.Client
}

func NewLibraryController(store DocumentStore, storageClient storage.Client) *LibraryController {
	return &LibraryController{
		store:   store,
		storage: storageClient,
	}
}

// List returns the user's documents, newest activity first. Download
// URLs are re-presigned on every listing so clients never hold an
// expired link.
func (lc *LibraryController) List(c *gin.Context) {
	userID := GetUserID(c)

	docs, err := lc.store.ListByUser(userID)
	if err != nil {
		respondInternalError(c, err, "list documents")
		return
	}

	for i := range docs {
		url, err := lc.storage.GetDownloadURL(c.Request.Context(), docs[i].StoragePath)
		if err != nil {
			// Keep the stored URL; the reader open path presigns again.
			log.Printf("failed to presign %s: %v", docs[i].StoragePath, err)
			continue
		}
		docs[i].URL = url
		if err := lc.store.UpdateURL(docs[i].ID, url); err != nil {
			log.Printf("failed to persist refreshed URL for document %d: %v", docs[i].ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// Get returns one document with a fresh download URL.
func (lc *LibraryController) Get(c *gin.Context) {
	userID := GetUserID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := lc.store.GetByID(id, userID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			respondNotFound(c, "document")
			return
		}
		respondInternalError(c, err, "get document")
		return
	}

	if url, err := lc.storage.GetDownloadURL(c.Request.Context(), doc.StoragePath); err == nil {
		doc.URL = url
	}

	c.JSON(http.StatusOK, doc)
}

// Upload accepts a document file and stores it under the user's prefix.
// The extension allow-list is enforced before any storage traffic; the
// metadata row is written only after the object upload succeeds.
func (lc *LibraryController) Upload(c *gin.Context) {
	userID := GetUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	defer file.Close()

	// Sanitizing can consume the whole base name ("???.pdf" leaves just
	// "pdf"). The allow-list then falls back to the name the client sent,
	// and the object key to a generated one carrying only the extension.
	name := utils.SanitizeFilename(header.Filename)
	nameUsable := format.AllowedUpload(name)
	if !nameUsable && !format.AllowedUpload(header.Filename) {
		respondError(c, http.StatusUnsupportedMediaType, fmt.Sprintf(
			"unsupported file type %q, allowed: %s",
			format.Extension(header.Filename), strings.Join(format.AllowedExtensions(), ", ")))
		return
	}

	// Sniff the real content type; the client-declared one is advisory.
	contentType := header.Header.Get("Content-Type")
	if detected, err := mimetype.DetectReader(file); err == nil {
		contentType = detected.String()
	}
	if _, err := file.Seek(0, 0); err != nil {
		respondInternalError(c, err, "rewind upload")
		return
	}

	key := storage.ObjectKey(userID, name)
	if !nameUsable {
		key = storage.RandomObjectKey(userID, format.Extension(header.Filename))
	}
	if err := lc.storage.Upload(c.Request.Context(), key, file, contentType); err != nil {
		respondInternalError(c, err, "upload to storage")
		return
	}

	url, err := lc.storage.GetDownloadURL(c.Request.Context(), key)
	if err != nil {
		log.Printf("failed to presign %s after upload: %v", key, err)
	}

	doc := &entities.Document{
		UserID:      userID,
		Title:       storage.DisplayTitle(key),
		URL:         url,
		StoragePath: key,
		MIMEType:    contentType,
		Size:        header.Size,
	}
	if err := lc.store.Create(doc); err != nil {
		// Metadata failed after the object landed; remove the object so
		// the library and storage stay consistent. The sweep catches any
		// leftover if this delete also fails.
		if delErr := lc.storage.Delete(c.Request.Context(), key); delErr != nil {
			log.Printf("failed to roll back object %s: %v", key, delErr)
		}
		respondInternalError(c, err, "create document")
		return
	}

	respondCreated(c, doc)
}

// Delete removes a document: the object first, then the metadata row.
// A row left behind by a failed second step is a stale row, exactly
// what the reconciliation sweep removes.
func (lc *LibraryController) Delete(c *gin.Context) {
	userID := GetUserID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := lc.store.GetByID(id, userID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			respondNotFound(c, "document")
			return
		}
		respondInternalError(c, err, "get document")
		return
	}

	if err := lc.storage.Delete(c.Request.Context(), doc.StoragePath); err != nil {
		respondInternalError(c, err, "delete object")
		return
	}

	if err := lc.store.Delete(id, userID); err != nil {
		// The object is already gone; the sweep clears this stale row.
		log.Printf("failed to delete metadata row for document %d: %v", id, err)
	}

	respondSuccess(c, "document deleted")
}
