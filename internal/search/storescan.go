package search

import (
	"strings"

	"vrhub/api/internal/store"
)

// StoreScan answers searches with a plain scan over the primary store. It
// mirrors what the index covers: every profile, public content only.
type StoreScan struct {
	store *store.Store
}

func NewStoreScan(st *store.Store) *StoreScan {
	return &StoreScan{store: st}
}

func (s *StoreScan) SearchUsers(text string, limit, offset int) ([]UserRecord, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	out := []UserRecord{}
	err := s.store.Execute(func(tx *store.Tx) error {
		profiles, err := store.Profiles.Find(tx, func(p store.Profile) bool {
			if text == "" {
				return true
			}
			return strings.Contains(strings.ToLower(p.Handle), text) ||
				strings.Contains(strings.ToLower(p.DisplayName), text)
		})
		if err != nil {
			return err
		}
		for _, p := range profiles {
			out = append(out, UserRecord{ID: p.ID, Handle: p.Handle, DisplayName: p.DisplayName, Bio: p.Bio})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page(out, limit, offset), nil
}

func (s *StoreScan) SearchContent(text, contentType string, limit, offset int) ([]ContentRecord, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	out := []ContentRecord{}
	err := s.store.Execute(func(tx *store.Tx) error {
		items, err := store.Contents.Find(tx, func(c store.Content) bool {
			if !c.Public {
				return false
			}
			if contentType != "" && c.Type != contentType {
				return false
			}
			if text == "" {
				return true
			}
			return strings.Contains(strings.ToLower(c.Name), text) ||
				strings.Contains(strings.ToLower(c.Description), text)
		})
		if err != nil {
			return err
		}
		for _, c := range items {
			out = append(out, ContentRecord{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Type:        c.Type,
				Tags:        c.WarningTags,
				OwnerID:     c.OwnerID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
