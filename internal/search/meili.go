package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxUsers   = "vrhub_users"
	idxContent = "vrhub_content"
)

// Meili is the Meilisearch-backed index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The caller
// should proceed without an index when the initial connection fails; the
// health loop will pick it up if it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxUsers,
			searchable: []string{"handle", "displayName", "bio"},
		},
		{
			uid:        idxContent,
			filterable: []string{"type", "ownerId"},
			searchable: []string{"name", "description", "tags"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterableInterface := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterableInterface[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
				log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) SearchUsers(text string, limit, offset int) ([]UserRecord, error) {
	resp, err := m.search(idxUsers, text, limit, offset, nil)
	if err != nil {
		return nil, err
	}
	return decodeHits[UserRecord](resp.Hits)
}

func (m *Meili) SearchContent(text, contentType string, limit, offset int) ([]ContentRecord, error) {
	var filter []string
	if contentType != "" {
		filter = append(filter, fmt.Sprintf("type = %q", contentType))
	}
	resp, err := m.search(idxContent, text, limit, offset, filter)
	if err != nil {
		return nil, err
	}
	return decodeHits[ContentRecord](resp.Hits)
}

func (m *Meili) search(uid, text string, limit, offset int, filter []string) (*meili.SearchResponse, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	req := &meili.SearchRequest{
		Limit:  int64(limit),
		Offset: int64(offset),
	}
	if len(filter) > 0 {
		req.Filter = filter
	}
	resp, err := m.client.Index(uid).Search(text, req)
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	return resp, nil
}

func decodeHits[T any](hits []meili.Hit) ([]T, error) {
	out := make([]T, 0, len(hits))
	for _, hit := range hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Meili) IndexUser(u UserRecord) error {
	_, err := m.client.Index(idxUsers).AddDocuments([]UserRecord{u}, nil)
	return err
}

func (m *Meili) IndexContent(c ContentRecord) error {
	_, err := m.client.Index(idxContent).AddDocuments([]ContentRecord{c}, nil)
	return err
}

func (m *Meili) DeleteUser(id string) error {
	_, err := m.client.Index(idxUsers).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeleteContent(id string) error {
	_, err := m.client.Index(idxContent).DeleteDocument(id, nil)
	return err
}
