package content

import (
	"sort"
	"strings"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/store"
)

const defaultPageSize = 20

type ListRequest struct {
	Query string
	Type  string
	Tag   string
	Sort  string // newest | updated | name
	Page  int
	Limit int
}

type ListResponse struct {
	Items   []store.Content `json:"items"`
	Page    int             `json:"page"`
	HasMore bool            `json:"hasMore"`
}

// List scans the catalog with the viewer's visibility applied, then
// filters, sorts and pages. hasMore comes from a one-item overfetch.
func (s *Service) List(viewerID string, req ListRequest) (*ListResponse, error) {
	if req.Type != "" && !store.ValidContentType(req.Type) {
		return nil, apperr.Validation("Invalid content type")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = defaultPageSize
	}

	query := strings.ToLower(strings.TrimSpace(req.Query))
	matches := []store.Content{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.Contents.Find(tx, func(c store.Content) bool {
			if req.Type != "" && c.Type != req.Type {
				return false
			}
			if req.Tag != "" && !containsString(c.WarningTags, req.Tag) {
				return false
			}
			if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, c := range rows {
			ok, err := s.visible(tx, viewerID, c)
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch req.Sort {
	case "name":
		sort.Slice(matches, func(i, j int) bool {
			return strings.ToLower(matches[i].Name) < strings.ToLower(matches[j].Name)
		})
	case "updated":
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		})
	default:
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		})
	}

	start := (req.Page - 1) * req.Limit
	if start >= len(matches) {
		return &ListResponse{Items: []store.Content{}, Page: req.Page}, nil
	}
	end := start + req.Limit
	hasMore := end < len(matches)
	if end > len(matches) {
		end = len(matches)
	}
	return &ListResponse{Items: matches[start:end], Page: req.Page, HasMore: hasMore}, nil
}

// FilterVisible resolves candidate ids to content the viewer may see,
// dropping anything missing or hidden. Used to re-validate index hits.
func (s *Service) FilterVisible(viewerID string, ids []string) ([]store.Content, error) {
	items := []store.Content{}
	err := s.store.Execute(func(tx *store.Tx) error {
		for _, id := range ids {
			c, found, err := store.Contents.Get(tx, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			ok, err := s.visible(tx, viewerID, c)
			if err != nil {
				return err
			}
			if ok {
				items = append(items, c)
			}
		}
		return nil
	})
	return items, err
}
