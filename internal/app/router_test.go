package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestRouter() *router {
	return &router{validate: nil}
}

func TestRouterPlaceholderMatching(t *testing.T) {
	rt := newTestRouter()
	var gotID string
	rt.add(http.MethodGet, "/user/{id}", authNone, func(w http.ResponseWriter, r *http.Request, p params, _ identity) {
		gotID = p["id"]
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/abc123", nil))
	if rec.Code != http.StatusOK || gotID != "abc123" {
		t.Fatalf("status=%d id=%q", rec.Code, gotID)
	}
}

func TestRouterDepthMismatch(t *testing.T) {
	rt := newTestRouter()
	rt.add(http.MethodGet, "/user/{id}", authNone, func(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	for _, path := range []string{"/user", "/user/a/b", "/other/a"} {
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("path %s: want 404, got %d", path, rec.Code)
		}
	}
}

func TestRouterTrailingSlashAndQuery(t *testing.T) {
	rt := newTestRouter()
	rt.add(http.MethodGet, "/users", authNone, func(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	for _, path := range []string{"/users", "/users/", "/users?q=alice"} {
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("path %s: want 200, got %d", path, rec.Code)
		}
	}
}

func TestRouterMethodMatters(t *testing.T) {
	rt := newTestRouter()
	rt.add(http.MethodPost, "/content", authNone, func(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	})

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404 for wrong method, got %d", rec.Code)
	}
}

func TestRouter404Envelope(t *testing.T) {
	rt := newTestRouter()
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"success":false`) {
		t.Fatalf("missing failure envelope: %s", body)
	}
}
