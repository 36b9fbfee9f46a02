package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"vrhub/api/internal/account"
	"vrhub/api/internal/auth"
	"vrhub/api/internal/content"
	"vrhub/api/internal/search"
	"vrhub/api/internal/social"
	"vrhub/api/internal/store"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens := auth.NewTokens("test-secret", time.Hour, 30*24*time.Hour)
	searcher := search.NewService(nil, search.NewStoreScan(st))
	accounts := account.NewService(st, tokens, searcher)
	socialSvc := social.NewService(st, nil)
	contentSvc := content.NewService(st, nil, searcher)

	return NewServer(accounts, socialSvc, contentSvc, tokens, nil, searcher).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func registerAndLogin(t *testing.T, h http.Handler, handle string) (token, accountID string) {
	t.Helper()
	rec, _ := doJSON(t, h, http.MethodPost, "/account", "", map[string]string{
		"handle":   handle,
		"email":    handle + "@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", handle, rec.Code, rec.Body.String())
	}
	rec, body := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"handle":   handle,
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", handle, rec.Code, rec.Body.String())
	}
	return body["token"].(string), body["accountId"].(string)
}

func TestRegisterLoginAndAuthGating(t *testing.T) {
	h := newTestServer(t)

	rec, _ := doJSON(t, h, http.MethodGet, "/account", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated account read: %d", rec.Code)
	}

	token, _ := registerAndLogin(t, h, "alice")
	rec, body := doJSON(t, h, http.MethodGet, "/account", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("account read: %d %s", rec.Code, rec.Body.String())
	}
	if body["handle"] != "alice" {
		t.Fatalf("unexpected account body: %v", body)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/account", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token accepted: %d", rec.Code)
	}
}

func TestSurfacesRejectEachOthersTokens(t *testing.T) {
	h := newTestServer(t)
	sessionToken, _ := registerAndLogin(t, h, "alice")

	rec, body := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"handle":   "alice",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("v1 login: %d %s", rec.Code, rec.Body.String())
	}
	apiToken := body["token"].(string)

	// Session token works on the flat surface, not on /v1.
	if rec, _ := doJSON(t, h, http.MethodGet, "/account", sessionToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("session token on flat surface: %d", rec.Code)
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/v1/auth/test", sessionToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("session token accepted on /v1: %d", rec.Code)
	}

	// API token works on /v1, not on the flat surface.
	if rec, _ := doJSON(t, h, http.MethodGet, "/v1/auth/test", apiToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("api token on /v1: %d", rec.Code)
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/account", apiToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("api token accepted on flat surface: %d", rec.Code)
	}
}

func TestFriendFlowOverHTTP(t *testing.T) {
	h := newTestServer(t)
	aliceToken, aliceID := registerAndLogin(t, h, "alice")
	bobToken, bobID := registerAndLogin(t, h, "bob")

	rec, body := doJSON(t, h, http.MethodPost, "/user/"+bobID+"/friend", aliceToken, nil)
	if rec.Code != http.StatusOK || body["accepted"] != false {
		t.Fatalf("first request: %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, h, http.MethodPost, "/user/"+aliceID+"/friend", bobToken, nil)
	if rec.Code != http.StatusOK || body["accepted"] != true {
		t.Fatalf("counter request: %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, h, http.MethodGet, "/account/friends", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("friends: %d", rec.Code)
	}
	friends := body["friends"].([]any)
	if len(friends) != 1 {
		t.Fatalf("want one friend, got %v", body)
	}

	// A duplicate request reports its error inline, not as a 4xx.
	rec, body = doJSON(t, h, http.MethodPost, "/user/"+bobID+"/friend", aliceToken, nil)
	if rec.Code != http.StatusOK || body["accepted"] != false || body["error"] != "Already friends" {
		t.Fatalf("duplicate: %d %v", rec.Code, body)
	}
}

func TestContentVisibilityOverHTTP(t *testing.T) {
	h := newTestServer(t)
	ownerToken, _ := registerAndLogin(t, h, "owner")
	strangerToken, _ := registerAndLogin(t, h, "stranger")

	rec, body := doJSON(t, h, http.MethodPost, "/content", ownerToken, map[string]any{
		"name": "Secret Lair",
		"type": "world",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	contentID := body["id"].(string)

	if rec, _ := doJSON(t, h, http.MethodGet, "/content/"+contentID, ownerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner read: %d", rec.Code)
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/content/"+contentID, strangerToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger read should 404: %d", rec.Code)
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/content/"+contentID, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous read should 404: %d", rec.Code)
	}

	// Direct share opens it up.
	_, stranger := doJSON(t, h, http.MethodGet, "/account", strangerToken, nil)
	rec, _ = doJSON(t, h, http.MethodPost, "/content/"+contentID+"/share", ownerToken, map[string]any{
		"userIds": []string{stranger["id"].(string)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("share: %d %s", rec.Code, rec.Body.String())
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/content/"+contentID, strangerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("shared read: %d", rec.Code)
	}
}

func TestFlatMultipartContentUpdate(t *testing.T) {
	h := newTestServer(t)
	token, _ := registerAndLogin(t, h, "owner")

	rec, body := doJSON(t, h, http.MethodPost, "/content", token, map[string]any{
		"name": "Old Name",
		"type": "avatar",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	contentID := body["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("metadata", `{"name":"New Name","description":"refreshed"}`); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPut, "/content/"+contentID, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("update: %d %s", out.Code, out.Body.String())
	}
	var updated map[string]any
	if err := json.Unmarshal(out.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated["name"] != "New Name" || updated["description"] != "refreshed" {
		t.Fatalf("metadata not applied: %v", updated)
	}
}

func TestSearchEndpointFallsBackToStore(t *testing.T) {
	h := newTestServer(t)
	token, _ := registerAndLogin(t, h, "alice")
	registerAndLogin(t, h, "alicia")
	registerAndLogin(t, h, "bob")

	rec, body := doJSON(t, h, http.MethodGet, "/search?q=alic", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	users := body["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("want 2 user hits, got %v", body)
	}
}

func TestSearchHidesBlockedUsers(t *testing.T) {
	h := newTestServer(t)
	aliceToken, _ := registerAndLogin(t, h, "alice")
	_, bobID := registerAndLogin(t, h, "bob")

	rec, _ := doJSON(t, h, http.MethodPost, "/user/"+bobID+"/block", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("block: %d", rec.Code)
	}

	rec, body := doJSON(t, h, http.MethodGet, "/search?q=bob", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d", rec.Code)
	}
	users := body["users"].([]any)
	if len(users) != 0 {
		t.Fatalf("blocked user visible in search: %v", users)
	}
}

func TestSearchHasMoreCountsRawHits(t *testing.T) {
	h := newTestServer(t)
	aliceToken, _ := registerAndLogin(t, h, "alice")
	registerAndLogin(t, h, "bobby")
	registerAndLogin(t, h, "bobcat")
	_, blockedID := registerAndLogin(t, h, "bobsled")

	rec, _ := doJSON(t, h, http.MethodPost, "/user/"+blockedID+"/block", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("block: %d", rec.Code)
	}

	// Three raw hits against a page of two: filtering thins the page to
	// exactly the limit, but hasMore still reports the extra raw hit.
	rec, body := doJSON(t, h, http.MethodGet, "/search?q=bob&limit=2", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	users := body["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("want 2 visible users, got %v", users)
	}
	if body["hasMore"] != true {
		t.Fatalf("want hasMore for the extra raw hit, got %v", body["hasMore"])
	}
}

func TestFileEndpointsUnavailableWithoutBlobStore(t *testing.T) {
	h := newTestServer(t)
	token, _ := registerAndLogin(t, h, "alice")

	rec, body := doJSON(t, h, http.MethodPost, "/content", token, map[string]any{
		"name": "Thing",
		"type": "prop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	contentID := body["id"].(string)

	rec, _ = doJSON(t, h, http.MethodPost, "/v1/content/"+contentID+"/updatebundle", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated updatebundle: %d", rec.Code)
	}
	if rec, _ := doJSON(t, h, http.MethodGet, "/image/alice.png", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("image without blob store: %d", rec.Code)
	}
}

func TestV1ShareGroups(t *testing.T) {
	h := newTestServer(t)
	sessionToken, _ := registerAndLogin(t, h, "owner")

	rec, body := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"handle":   "owner",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("v1 login: %d", rec.Code)
	}
	apiToken := body["token"].(string)

	rec, body = doJSON(t, h, http.MethodPost, "/v1/shares/groups/create", apiToken, map[string]string{
		"name": "friends",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: %d %s", rec.Code, rec.Body.String())
	}
	groupID := body["id"].(string)

	rec, body = doJSON(t, h, http.MethodGet, "/v1/shares/groups", apiToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list groups: %d", rec.Code)
	}
	groups := body["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("want one group, got %v", groups)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/v1/shares/groups/"+groupID, apiToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete group: %d", rec.Code)
	}

	// Session tokens stay confined to the flat surface.
	if rec, _ := doJSON(t, h, http.MethodGet, "/v1/shares/groups", sessionToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("session token accepted on /v1 shares: %d", rec.Code)
	}
}
