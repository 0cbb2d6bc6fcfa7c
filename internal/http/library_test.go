package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openshelf/openshelf/internal/entities"
)

func seedDocument(t *testing.T, env *testEnv, key, title string, content []byte) *entities.Document {
	t.Helper()
	env.store.put(key, content)
	doc := &entities.Document{
		Title:       title,
		StoragePath: key,
		MIMEType:    "text/plain",
		Size:        int64(len(content)),
	}
	if err := env.docs.Create(doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestListRefreshesDownloadURLs(t *testing.T) {
	env := newTestEnv(t)
	seedDocument(t, env, "users/0/ebooks/123_a.txt", "a", []byte("alpha"))
	seedDocument(t, env, "users/0/ebooks/456_b.txt", "b", []byte("beta"))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Documents []entities.Document `json:"documents"`
		Count     int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 documents, got %d", resp.Count)
	}
	for _, d := range resp.Documents {
		if !strings.HasPrefix(d.URL, env.store.baseURL) {
			t.Errorf("document %d URL not presigned: %q", d.ID, d.URL)
		}
	}
}

func TestUploadStoresObjectAndMetadata(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, "my book.txt", []byte("some words")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc entities.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(doc.StoragePath, "users/0/ebooks/") {
		t.Errorf("object key outside user prefix: %q", doc.StoragePath)
	}
	if !env.store.has(doc.StoragePath) {
		t.Error("object not written to storage")
	}
	if doc.Title != "my book" {
		t.Errorf("expected title %q, got %q", "my book", doc.Title)
	}
	if _, err := env.docs.GetByID(doc.ID, 0); err != nil {
		t.Errorf("metadata row missing: %v", err)
	}
}

func TestUploadGeneratesKeyWhenNameSanitizesAway(t *testing.T) {
	env := newTestEnv(t)

	// The whole base name is invalid characters; only the extension
	// survives sanitization.
	rec := env.do(t, uploadRequest(t, "???.epub", []byte("PK\x03\x04fake")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc entities.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(doc.StoragePath, "users/0/ebooks/") {
		t.Errorf("object key outside user prefix: %q", doc.StoragePath)
	}
	if !strings.HasSuffix(doc.StoragePath, ".epub") {
		t.Errorf("generated key lost the extension: %q", doc.StoragePath)
	}
	if strings.Contains(doc.StoragePath, "?") {
		t.Errorf("unsanitized characters in key: %q", doc.StoragePath)
	}
	if !env.store.has(doc.StoragePath) {
		t.Error("object not written to storage")
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, "script.exe", []byte{0x4d, 0x5a}))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if len(env.store.objects) != 0 {
		t.Error("rejected upload must not reach storage")
	}
}

func TestUploadRollsBackObjectOnMetadataFailure(t *testing.T) {
	env := newTestEnv(t)
	env.docs.createErr = errors.New("disk full")

	rec := env.do(t, uploadRequest(t, "book.epub", []byte("PK\x03\x04fake")))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(env.store.objects) != 0 {
		t.Error("orphaned object left in storage after metadata failure")
	}
}

func TestDeleteRemovesRowAndObject(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(t, env, "users/0/ebooks/123_gone.txt", "gone", []byte("bye"))

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/documents/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := env.docs.GetByID(doc.ID, 0); err == nil {
		t.Error("metadata row still present")
	}
	if env.store.has(doc.StoragePath) {
		t.Error("object still present")
	}
}

func TestDeleteKeepsRowWhenObjectDeleteFails(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(t, env, "users/0/ebooks/123_stuck.txt", "stuck", []byte("data"))
	env.store.deleteErr = errors.New("storage unavailable")

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/documents/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// The row survives so the document stays in the library and the
	// delete can be retried.
	if _, err := env.docs.GetByID(doc.ID, 0); err != nil {
		t.Errorf("metadata row removed despite failed object delete: %v", err)
	}
}

func TestDeleteUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/documents/42", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
