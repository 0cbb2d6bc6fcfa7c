package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/entities"
	"github.com/openshelf/openshelf/internal/progress"
	"github.com/openshelf/openshelf/internal/reader"
	"github.com/openshelf/openshelf/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStorage keeps objects in memory and presigns them as URLs on a
// local test server, so reader sessions can actually fetch content.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string

	uploadErr error
	deleteErr error
	createHit bool
}

func newFakeStorage(t *testing.T) *fakeStorage {
	t.Helper()
	fs := &fakeStorage{objects: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		data, ok := fs.objects[r.URL.Path[1:]]
		fs.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	fs.baseURL = srv.URL
	return fs
}

func (f *fakeStorage) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeStorage) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStorage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var files []storage.FileInfo
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			files = append(files, storage.FileInfo{Name: k, Path: k, Size: int64(len(v))})
		}
	}
	return files, nil
}

func (f *fakeStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Upload(_ context.Context, path string, content io.Reader, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.put(path, data)
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	return nil
}

func (f *fakeStorage) Exists(_ context.Context, path string) (bool, error) {
	return f.has(path), nil
}

func (f *fakeStorage) GetMetadata(_ context.Context, path string) (*storage.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, errors.New("no such object")
	}
	return &storage.FileInfo{Name: path, Path: path, Size: int64(len(data))}, nil
}

func (f *fakeStorage) GetDownloadURL(_ context.Context, path string) (string, error) {
	return f.baseURL + "/" + path, nil
}

// fakeDocuments is an in-memory DocumentStore.
type fakeDocuments struct {
	mu        sync.Mutex
	rows      map[uint]*entities.Document
	nextID    uint
	createErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{rows: map[uint]*entities.Document{}, nextID: 1}
}

func (f *fakeDocuments) Create(doc *entities.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc.ID = f.nextID
	f.nextID++
	cp := *doc
	f.rows[doc.ID] = &cp
	return nil
}

func (f *fakeDocuments) ListByUser(userID uint) ([]entities.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []entities.Document
	for _, d := range f.rows {
		if d.UserID == userID {
			docs = append(docs, *d)
		}
	}
	return docs, nil
}

func (f *fakeDocuments) GetByID(id uint, userID uint) (*entities.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	if d.UserID != userID {
		return nil, documents.ErrNotOwner
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocuments) UpdateProgress(id uint, userID uint, marker string, percentage int, finished bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.UserID != userID {
		return documents.ErrNotFound
	}
	d.Progress = marker
	d.ProgressPercentage = percentage
	d.IsFinished = finished
	return nil
}

func (f *fakeDocuments) UpdateURL(id uint, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.rows[id]; ok {
		d.URL = url
	}
	return nil
}

func (f *fakeDocuments) Delete(id uint, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.UserID != userID {
		return documents.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDocuments) FindByReference(userID uint, name string) (*entities.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.UserID != userID {
			continue
		}
		if d.StoragePath == name || d.Title == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, documents.ErrNotFound
}

// fakeSettings is an in-memory SettingsStore.
type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) key(userID uint, key string) string {
	return fmt.Sprintf("%d/%s", userID, key)
}

func (f *fakeSettings) GetSettingValue(userID uint, key, fallback string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[f.key(userID, key)]; ok {
		return v
	}
	return fallback
}

func (f *fakeSettings) SetSetting(userID uint, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[f.key(userID, key)] = value
	return nil
}

// testEnv bundles the fakes a controller test touches.
type testEnv struct {
	router   *gin.Engine
	docs     *fakeDocuments
	store    *fakeStorage
	settings *fakeSettings
	cache    progress.Cache
	writer   *progress.Writer
	sessions *reader.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		docs:     newFakeDocuments(),
		store:    newFakeStorage(t),
		settings: newFakeSettings(),
		cache:    progress.NewMemoryCache(),
		sessions: reader.NewRegistry(),
	}
	env.writer = progress.NewWriter(env.docs, 10*time.Millisecond)
	t.Cleanup(env.writer.Close)

	env.router = NewRouter(RouterConfig{
		Documents: env.docs,
		Settings:  env.settings,
		Storage:   env.store,
		Cache:     env.cache,
		Writer:    env.writer,
		Sessions:  env.sessions,
		Version:   "test",
	})
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("unexpected ping response: %d %q", rec.Code, rec.Body.String())
	}
}
