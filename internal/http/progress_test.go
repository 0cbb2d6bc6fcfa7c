package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestProgressUpdateAndGet(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(t, env, "users/0/ebooks/123_novel.txt", "novel", textContent(100))

	req := httptest.NewRequest(http.MethodPut, "/api/documents/1/progress",
		strings.NewReader(`{"marker": "line:20", "percentage": 20}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The cache is written synchronously.
	if marker, ok := env.cache.Get(context.Background(), 0, doc.ID); !ok || marker != "line:20" {
		t.Errorf("cache not updated: %q %v", marker, ok)
	}

	// The remote row follows after the debounce window.
	deadline := time.Now().Add(time.Second)
	for {
		row, err := env.docs.GetByID(doc.ID, 0)
		if err != nil {
			t.Fatalf("get document: %v", err)
		}
		if row.Progress == "line:20" {
			if row.ProgressPercentage != 20 {
				t.Errorf("expected percentage 20, got %d", row.ProgressPercentage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never reached the document row")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/1/progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Marker     string `json:"marker"`
		Percentage int    `json:"percentage"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Marker != "line:20" || resp.Percentage != 20 {
		t.Errorf("unexpected progress: %+v", resp)
	}
}

func TestProgressGetPrefersCache(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(t, env, "users/0/ebooks/123_novel.txt", "novel", textContent(100))
	env.docs.UpdateProgress(doc.ID, 0, "line:10", 10, false)
	env.cache.Set(context.Background(), 0, doc.ID, "line:30")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/1/progress", nil))
	var resp struct {
		Marker string `json:"marker"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Marker != "line:30" {
		t.Errorf("expected cached marker line:30, got %q", resp.Marker)
	}
}

func TestProgressUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	seedDocument(t, env, "users/0/ebooks/123_novel.txt", "novel", textContent(100))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing marker", `{"percentage": 10}`, http.StatusBadRequest},
		{"percentage too high", `{"marker": "line:1", "percentage": 150}`, http.StatusBadRequest},
		{"percentage negative", `{"marker": "line:1", "percentage": -1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/documents/1/progress", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if rec := env.do(t, req); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestProgressUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPut, "/api/documents/9/progress",
		strings.NewReader(`{"marker": "line:1"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := env.do(t, req); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReaderSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/settings/reader", nil))
	var resp struct {
		Theme     string `json:"theme"`
		FontScale int    `json:"font_scale"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Theme != "light" || resp.FontScale != 100 {
		t.Errorf("unexpected defaults: %+v", resp)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/settings/reader",
		strings.NewReader(`{"theme": "dark", "font_scale": 120}`))
	req.Header.Set("Content-Type", "application/json")
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Theme != "dark" || resp.FontScale != 120 {
		t.Errorf("settings not persisted: %+v", resp)
	}
}

func TestReaderSettingsValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad theme", `{"theme": "sepia"}`},
		{"scale too low", `{"font_scale": 10}`},
		{"scale too high", `{"font_scale": 300}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/settings/reader", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}
