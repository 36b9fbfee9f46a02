package app

import (
	"io"
	"net/http"

	"vrhub/api/internal/blob"
	"vrhub/api/internal/search"
)

// handleSearch queries the index (or the store fallback) and re-validates
// every hit against the store: blocked users disappear, content the viewer
// may not see disappears. The index is never trusted on its own.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	q := r.URL.Query()
	text := q.Get("q")
	contentType := q.Get("type")
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	// One extra hit decides hasMore.
	userHits, err := s.search.SearchUsers(text, limit+1, offset)
	if err != nil {
		fail(w, err)
		return
	}
	contentHits, err := s.search.SearchContent(text, contentType, limit+1, offset)
	if err != nil {
		fail(w, err)
		return
	}

	users, err := s.validateUserHits(id.AccountID, userHits)
	if err != nil {
		fail(w, err)
		return
	}
	ids := make([]string, 0, len(contentHits))
	for _, hit := range contentHits {
		ids = append(ids, hit.ID)
	}
	items, err := s.content.FilterVisible(id.AccountID, ids)
	if err != nil {
		fail(w, err)
		return
	}

	// hasMore reflects the raw index results: visibility filtering may
	// thin out this page while later pages still hold hits.
	hasMore := len(userHits) > limit || len(contentHits) > limit
	if len(users) > limit {
		users = users[:limit]
	}
	if len(items) > limit {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":   users,
		"content": items,
		"page":    page,
		"hasMore": hasMore,
	})
}

func (s *Server) handleUserSearch(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	text := r.URL.Query().Get("q")
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	hits, err := s.search.SearchUsers(text, limit+1, offset)
	if err != nil {
		fail(w, err)
		return
	}
	users, err := s.validateUserHits(id.AccountID, hits)
	if err != nil {
		fail(w, err)
		return
	}
	hasMore := len(hits) > limit
	if len(users) > limit {
		users = users[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":   users,
		"page":    page,
		"hasMore": hasMore,
	})
}

func (s *Server) validateUserHits(viewerID string, hits []search.UserRecord) ([]search.UserRecord, error) {
	valid := []search.UserRecord{}
	for _, hit := range hits {
		if viewerID != "" {
			blocked, err := s.social.BlockedEither(viewerID, hit.ID)
			if err != nil {
				return nil, err
			}
			if blocked {
				continue
			}
		}
		valid = append(valid, hit)
	}
	return valid, nil
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, p params, _ identity) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "File storage is not available")
		return
	}
	rc, err := s.blobs.Get(r.Context(), blob.ImageKey(p["id"]))
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentTypeByExt(p["id"]))
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "File storage is not available")
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	if err := s.blobs.Put(r.Context(), blob.ImageKey(id.AccountID), file, header.Size, contentTypeByExt(header.Filename)); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleProfileThumbnail(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "File storage is not available")
		return
	}
	url, err := s.blobs.UploadURL(r.Context(), blob.ImageKey(id.AccountID))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploadUrl": url})
}

func (s *Server) handleProfileBanner(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "File storage is not available")
		return
	}
	url, err := s.blobs.UploadURL(r.Context(), blob.BannerKey(id.AccountID))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploadUrl": url})
}
