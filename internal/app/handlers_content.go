package app

import (
	"encoding/json"
	"io"
	"net/http"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/content"
)

const maxMultipartMemory = 32 << 20

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var req content.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.content.Create(id.AccountID, req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, p params, id identity) {
	item, err := s.content.Get(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMyContent(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	items, err := s.content.Mine(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": items})
}

// handleUpdateContent is the flat surface's multipart update: a `metadata`
// JSON parameter plus optional `file` and `thumbnail` parts. File bytes
// pass through the server here; /v1 clients get presigned URLs instead.
// `updates` is accepted as an alias for clients that reuse the profile
// parameter name.
func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request, p params, id identity) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	contentID := p["id"]

	raw := r.FormValue("metadata")
	if raw == "" {
		raw = r.FormValue("updates")
	}
	if raw != "" {
		var upd content.MetadataUpdate
		if err := json.Unmarshal([]byte(raw), &upd); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid metadata JSON")
			return
		}
		if _, err := s.content.UpdateMetadata(id.AccountID, contentID, upd); err != nil {
			fail(w, err)
			return
		}
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		key := r.FormValue("key")
		upd, err := s.content.UpdateBundle(r.Context(), id.AccountID, contentID, key)
		if err != nil {
			fail(w, err)
			return
		}
		if err := s.content.UploadBundleData(r.Context(), id.AccountID, contentID, upd.Bundle.ID, file, header.Size, "application/octet-stream"); err != nil {
			fail(w, err)
			return
		}
	}

	if thumb, header, err := r.FormFile("thumbnail"); err == nil {
		defer thumb.Close()
		if err := s.content.UploadThumbnail(r.Context(), id.AccountID, contentID, thumb, header.Size, contentTypeByExt(header.Filename)); err != nil {
			fail(w, err)
			return
		}
	}

	item, err := s.content.Get(id.AccountID, contentID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleV1UpdateContent(w http.ResponseWriter, r *http.Request, p params, id identity) {
	var upd content.MetadataUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.content.UpdateMetadata(id.AccountID, p["id"], upd)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateBundle(w http.ResponseWriter, r *http.Request, p params, id identity) {
	var body struct {
		Key string `json:"key"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upd, err := s.content.UpdateBundle(r.Context(), id.AccountID, p["id"], body.Key)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upd)
}

func (s *Server) handleUpdateThumbnail(w http.ResponseWriter, r *http.Request, p params, id identity) {
	url, err := s.content.UpdateThumbnail(r.Context(), id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploadUrl": url})
}

func (s *Server) handleSetActiveBundle(w http.ResponseWriter, r *http.Request, p params, id identity) {
	var body struct {
		BundleID string `json:"bundleId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.SetActiveBundle(id.AccountID, p["id"], body.BundleID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleBundles(w http.ResponseWriter, r *http.Request, p params, id identity) {
	bundles, err := s.content.Bundles(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bundles": bundles})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request, p params, id identity) {
	key, err := s.content.GetKey(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key})
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request, p params, id identity) {
	if err := s.content.Delete(r.Context(), id.AccountID, p["id"]); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleShareContent(w http.ResponseWriter, r *http.Request, p params, id identity) {
	var body struct {
		UserIDs []string `json:"userIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.SetSharedUsers(id.AccountID, p["id"], body.UserIDs); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleContentSearch is the catalog listing: filters, sort and paging run
// against the store with the viewer's visibility applied.
func (s *Server) handleContentSearch(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	q := r.URL.Query()
	resp, err := s.content.List(id.AccountID, content.ListRequest{
		Query: q.Get("q"),
		Type:  q.Get("type"),
		Tag:   q.Get("tag"),
		Sort:  q.Get("sort"),
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 0),
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, p params, id identity) {
	rc, name, err := s.content.Download(r.Context(), id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentTypeByExt(name))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; nothing left to report to the client.
		return
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	groups, err := s.content.Groups(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.content.CreateGroup(id.AccountID, body.Name)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request, p params, id identity) {
	if err := s.content.DeleteGroup(id.AccountID, p["id"]); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleContentGroups(w http.ResponseWriter, r *http.Request, p params, id identity) {
	groups, err := s.content.ContentGroups(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleAttachGroup(w http.ResponseWriter, r *http.Request, p params, id identity) {
	groupID, err := bodyField(r, "groupId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.AttachGroup(id.AccountID, p["id"], groupID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDetachGroup(w http.ResponseWriter, r *http.Request, p params, id identity) {
	groupID, err := bodyField(r, "groupId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.DetachGroup(id.AccountID, p["id"], groupID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request, p params, id identity) {
	userID, err := bodyField(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.AddGroupMember(id.AccountID, p["id"], userID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request, p params, id identity) {
	userID, err := bodyField(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.RemoveGroupMember(id.AccountID, p["id"], userID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAddShare(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		ContentID string `json:"contentId"`
		UserID    string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.AddSharedUser(id.AccountID, body.ContentID, body.UserID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRemoveShare(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		ContentID string `json:"contentId"`
		UserID    string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.content.RemoveSharedUser(id.AccountID, body.ContentID, body.UserID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func bodyField(r *http.Request, field string) (string, error) {
	var body map[string]string
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	value := body[field]
	if value == "" {
		return "", apperr.Validation(field + " is required")
	}
	return value, nil
}
