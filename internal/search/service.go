package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to a
// store scan. Hits from either path still need store re-validation by the
// caller; the index is an accelerator, never an authority.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) SearchUsers(text string, limit, offset int) ([]UserRecord, error) {
	if s.meili != nil && s.meili.Healthy() {
		hits, err := s.meili.SearchUsers(text, limit, offset)
		if err == nil {
			return hits, nil
		}
		log.Printf("search: meilisearch error, falling back to store: %v", err)
	}
	return s.fallback.SearchUsers(text, limit, offset)
}

func (s *Service) SearchContent(text, contentType string, limit, offset int) ([]ContentRecord, error) {
	if s.meili != nil && s.meili.Healthy() {
		hits, err := s.meili.SearchContent(text, contentType, limit, offset)
		if err == nil {
			return hits, nil
		}
		log.Printf("search: meilisearch error, falling back to store: %v", err)
	}
	return s.fallback.SearchContent(text, contentType, limit, offset)
}

// IndexUser pushes a profile into the index (fire-and-forget).
func (s *Service) IndexUser(u UserRecord) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexUser(u); err != nil {
			log.Printf("search: index user %s: %v", u.ID, err)
		}
	}()
}

// IndexContent pushes a public content item into the index (fire-and-forget).
func (s *Service) IndexContent(c ContentRecord) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContent(c); err != nil {
			log.Printf("search: index content %s: %v", c.ID, err)
		}
	}()
}

// DeleteUser removes a profile from the index (fire-and-forget).
func (s *Service) DeleteUser(id string) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteUser(id); err != nil {
			log.Printf("search: delete user %s: %v", id, err)
		}
	}()
}

// DeleteContent removes a content item from the index (fire-and-forget).
func (s *Service) DeleteContent(id string) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContent(id); err != nil {
			log.Printf("search: delete content %s: %v", id, err)
		}
	}()
}
