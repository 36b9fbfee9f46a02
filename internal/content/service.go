// Package content is the catalog engine: versioned encrypted bundles,
// share groups and the visibility policy.
package content

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/blob"
	"vrhub/api/internal/search"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

type Service struct {
	store  *store.Store
	blobs  blob.Store
	search *search.Service
	now    func() time.Time
}

// NewService creates the content engine. blobs may be nil when no bucket is
// configured; bundle and image operations then report unavailable.
func NewService(st *store.Store, blobs blob.Store, searcher *search.Service) *Service {
	return &Service{store: st, blobs: blobs, search: searcher, now: time.Now}
}

type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Public      bool     `json:"public"`
	WarningTags []string `json:"warningTags"`
}

// Create inserts the content item and its default share group in one
// closure. Every item keeps its default group until deletion.
func (s *Service) Create(ownerID string, req CreateRequest) (store.Content, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return store.Content{}, apperr.Validation("Name is required")
	}
	if !store.ValidContentType(req.Type) {
		return store.Content{}, apperr.Validation("Invalid content type")
	}

	now := s.now()
	group := store.ShareGroup{
		ID:        util.NewID(),
		OwnerID:   ownerID,
		Name:      "default",
		Default:   true,
		MemberIDs: []string{},
		CreatedAt: now,
	}
	item := store.Content{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Public:        req.Public,
		WarningTags:   req.WarningTags,
		BundleIDs:     []string{},
		ShareGroupIDs: []string{group.ID},
		SharedUserIDs: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if item.WarningTags == nil {
		item.WarningTags = []string{}
	}
	if item.Public {
		item.PublicAt = &now
	}

	err := s.store.Execute(func(tx *store.Tx) error {
		if err := store.ShareGroups.Insert(tx, group); err != nil {
			return err
		}
		return store.Contents.Insert(tx, item)
	})
	if err != nil {
		return store.Content{}, err
	}
	s.indexIfPublic(item)
	return item, nil
}

// Get resolves a content item for viewerID. An item the viewer may not see
// is reported exactly like a missing one.
func (s *Service) Get(viewerID, contentID string) (store.Content, error) {
	var item store.Content
	err := s.store.Execute(func(tx *store.Tx) error {
		var err error
		item, err = s.visibleContent(tx, viewerID, contentID)
		return err
	})
	return item, err
}

func (s *Service) Mine(ownerID string) ([]store.Content, error) {
	items := []store.Content{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.Contents.Find(tx, func(c store.Content) bool {
			return c.OwnerID == ownerID
		})
		if err != nil {
			return err
		}
		items = rows
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, err
}

type MetadataUpdate struct {
	Name        util.Opt[string]   `json:"name"`
	Description util.Opt[string]   `json:"description"`
	WarningTags util.Opt[[]string] `json:"warningTags"`
	Public      util.Opt[bool]     `json:"public"`
}

func (s *Service) UpdateMetadata(ownerID, contentID string, upd MetadataUpdate) (store.Content, error) {
	if upd.Name.Set && !upd.Name.Null && strings.TrimSpace(upd.Name.Value) == "" {
		return store.Content{}, apperr.Validation("Name is required")
	}
	var item store.Content
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		changed := false
		changed = upd.Name.Apply(&c.Name) || changed
		changed = upd.Description.Apply(&c.Description) || changed
		changed = upd.WarningTags.Apply(&c.WarningTags) || changed
		wasPublic := c.Public
		changed = upd.Public.Apply(&c.Public) || changed
		if c.WarningTags == nil {
			c.WarningTags = []string{}
		}
		if c.Public && !wasPublic {
			now := s.now()
			c.PublicAt = &now
		}
		if changed {
			c.UpdatedAt = s.now()
			if err := store.Contents.Update(tx, c); err != nil {
				return err
			}
		}
		item = c
		return nil
	})
	if err != nil {
		return store.Content{}, err
	}
	if item.Public {
		s.indexIfPublic(item)
	} else {
		s.search.DeleteContent(item.ID)
	}
	return item, nil
}

type BundleUpdate struct {
	Bundle    store.Bundle `json:"bundle"`
	UploadURL string       `json:"uploadUrl"`
}

// UpdateBundle appends a new bundle version and returns a presigned upload
// URL for its bytes. Inside the closure the order is fixed: insert the
// bundle, append it to history, repoint the active ref, touch updated-at.
// The presign happens after commit, outside the lock.
func (s *Service) UpdateBundle(ctx context.Context, ownerID, contentID, key string) (*BundleUpdate, error) {
	if s.blobs == nil {
		return nil, apperr.Unavailable("File storage is not available")
	}
	if key == "" {
		return nil, apperr.Validation("Decryption key is required")
	}

	bundle := store.Bundle{
		ID:        uuid.NewString(),
		ContentID: contentID,
		Key:       key,
		CreatedAt: s.now(),
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		bundle.Version = 1
		if c.ActiveBundleID != "" {
			active, found, err := store.Bundles.Get(tx, c.ActiveBundleID)
			if err != nil {
				return err
			}
			if found {
				bundle.Version = active.Version + 1
			}
		}
		if err := store.Bundles.Insert(tx, bundle); err != nil {
			return err
		}
		c.BundleIDs = append(c.BundleIDs, bundle.ID)
		c.ActiveBundleID = bundle.ID
		c.UpdatedAt = s.now()
		return store.Contents.Update(tx, c)
	})
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.UploadURL(ctx, blob.BundleKey(contentID, bundle.ID))
	if err != nil {
		return nil, fmt.Errorf("presign bundle upload: %w", err)
	}
	return &BundleUpdate{Bundle: bundle, UploadURL: url}, nil
}

// UpdateThumbnail returns a presigned upload URL for the content thumbnail.
func (s *Service) UpdateThumbnail(ctx context.Context, ownerID, contentID string) (string, error) {
	if s.blobs == nil {
		return "", apperr.Unavailable("File storage is not available")
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		_, err := s.ownedContent(tx, ownerID, contentID)
		return err
	})
	if err != nil {
		return "", err
	}
	url, err := s.blobs.UploadURL(ctx, blob.ThumbnailKey(contentID))
	if err != nil {
		return "", fmt.Errorf("presign thumbnail upload: %w", err)
	}
	return url, nil
}

func (s *Service) Bundles(viewerID, contentID string) ([]store.Bundle, error) {
	bundles := []store.Bundle{}
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.visibleContent(tx, viewerID, contentID)
		if err != nil {
			return err
		}
		for _, id := range c.BundleIDs {
			b, found, err := store.Bundles.Get(tx, id)
			if err != nil {
				return err
			}
			if found {
				bundles = append(bundles, b)
			}
		}
		return nil
	})
	return bundles, err
}

// GetKey returns the active bundle's decryption key, visibility-gated.
func (s *Service) GetKey(viewerID, contentID string) (string, error) {
	var key string
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.visibleContent(tx, viewerID, contentID)
		if err != nil {
			return err
		}
		if c.ActiveBundleID == "" {
			return apperr.Conflict("Content has no active bundle")
		}
		b, found, err := store.Bundles.Get(tx, c.ActiveBundleID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.Conflict("Content has no active bundle")
		}
		key = b.Key
		return nil
	})
	return key, err
}

// SetActiveBundle repoints the active ref to any bundle in this content's
// history. A bundle belonging to different content is rejected.
func (s *Service) SetActiveBundle(ownerID, contentID, bundleID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		b, found, err := store.Bundles.Get(tx, bundleID)
		if err != nil {
			return err
		}
		if !found || b.ContentID != contentID {
			return apperr.Validation("Bundle does not belong to this content")
		}
		c.ActiveBundleID = bundleID
		c.UpdatedAt = s.now()
		return store.Contents.Update(tx, c)
	})
}

// Download streams the active bundle's bytes.
func (s *Service) Download(ctx context.Context, viewerID, contentID string) (io.ReadCloser, string, error) {
	if s.blobs == nil {
		return nil, "", apperr.Unavailable("File storage is not available")
	}
	var bundleID string
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.visibleContent(tx, viewerID, contentID)
		if err != nil {
			return err
		}
		if c.ActiveBundleID == "" {
			return apperr.Conflict("Content has no active bundle")
		}
		bundleID = c.ActiveBundleID
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	rc, err := s.blobs.Get(ctx, blob.BundleKey(contentID, bundleID))
	if err != nil {
		return nil, "", apperr.NotFound("Bundle data not found")
	}
	return rc, bundleID + ".bundle", nil
}

// UploadBundleData writes bundle bytes through the server, for clients
// that cannot follow a presigned URL.
func (s *Service) UploadBundleData(ctx context.Context, ownerID, contentID, bundleID string, r io.Reader, size int64, contentType string) error {
	if s.blobs == nil {
		return apperr.Unavailable("File storage is not available")
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		if !containsString(c.BundleIDs, bundleID) {
			return apperr.Validation("Bundle does not belong to this content")
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, blob.BundleKey(contentID, bundleID), r, size, contentType)
}

// UploadThumbnail writes thumbnail bytes through the server.
func (s *Service) UploadThumbnail(ctx context.Context, ownerID, contentID string, r io.Reader, size int64, contentType string) error {
	if s.blobs == nil {
		return apperr.Unavailable("File storage is not available")
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		_, err := s.ownedContent(tx, ownerID, contentID)
		return err
	})
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, blob.ThumbnailKey(contentID), r, size, contentType)
}

// Delete removes the content item. Blob objects go first so a failure
// mid-way leaves orphan blobs rather than metadata pointing at nothing.
func (s *Service) Delete(ctx context.Context, ownerID, contentID string) error {
	var bundleIDs []string
	err := s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		bundleIDs = c.BundleIDs
		return nil
	})
	if err != nil {
		return err
	}

	if s.blobs != nil {
		for _, id := range bundleIDs {
			if err := s.blobs.Delete(ctx, blob.BundleKey(contentID, id)); err != nil {
				return fmt.Errorf("delete bundle blob %s: %w", id, err)
			}
		}
		if err := s.blobs.Delete(ctx, blob.ThumbnailKey(contentID)); err != nil {
			return fmt.Errorf("delete thumbnail blob: %w", err)
		}
	}

	err = s.store.Execute(func(tx *store.Tx) error {
		c, err := s.ownedContent(tx, ownerID, contentID)
		if err != nil {
			return err
		}
		c.ActiveBundleID = ""
		if err := store.Contents.Update(tx, c); err != nil {
			return err
		}
		if _, err := store.Bundles.DeleteWhere(tx, func(b store.Bundle) bool {
			return b.ContentID == contentID
		}); err != nil {
			return err
		}
		if _, err := store.ShareGroups.DeleteWhere(tx, func(g store.ShareGroup) bool {
			return g.Default && containsString(c.ShareGroupIDs, g.ID)
		}); err != nil {
			return err
		}
		return store.Contents.Delete(tx, contentID)
	})
	if err != nil {
		return err
	}
	s.search.DeleteContent(contentID)
	return nil
}

func (s *Service) ownedContent(tx *store.Tx, ownerID, contentID string) (store.Content, error) {
	c, found, err := store.Contents.Get(tx, contentID)
	if err != nil {
		return store.Content{}, err
	}
	if !found || c.OwnerID != ownerID {
		// Existence is sensitive: non-owners get the same answer as a
		// missing id.
		return store.Content{}, apperr.NotFound("Content not found")
	}
	return c, nil
}

func (s *Service) visibleContent(tx *store.Tx, viewerID, contentID string) (store.Content, error) {
	c, found, err := store.Contents.Get(tx, contentID)
	if err != nil {
		return store.Content{}, err
	}
	if !found {
		return store.Content{}, apperr.NotFound("Content not found")
	}
	ok, err := s.visible(tx, viewerID, c)
	if err != nil {
		return store.Content{}, err
	}
	if !ok {
		return store.Content{}, apperr.NotFound("Content not found")
	}
	return c, nil
}

// visible is the single visibility policy: public, owner, group member or
// directly shared.
func (s *Service) visible(tx *store.Tx, viewerID string, c store.Content) (bool, error) {
	if c.Public {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}
	if c.OwnerID == viewerID {
		return true, nil
	}
	if containsString(c.SharedUserIDs, viewerID) {
		return true, nil
	}
	for _, gid := range c.ShareGroupIDs {
		g, found, err := store.ShareGroups.Get(tx, gid)
		if err != nil {
			return false, err
		}
		if found && containsString(g.MemberIDs, viewerID) {
			return true, nil
		}
	}
	return false, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Service) indexIfPublic(c store.Content) {
	if !c.Public {
		return
	}
	s.search.IndexContent(search.ContentRecord{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Type:        c.Type,
		Tags:        c.WarningTags,
		OwnerID:     c.OwnerID,
	})
}
