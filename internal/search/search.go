package search

// UserRecord is the data we index for a profile.
type UserRecord struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// ContentRecord is the data we index for a public content item.
type ContentRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Tags        []string `json:"tags"`
	OwnerID     string   `json:"ownerId"`
}

// Fallback answers queries straight from the primary store when the index
// is unavailable.
type Fallback interface {
	SearchUsers(text string, limit, offset int) ([]UserRecord, error)
	SearchContent(text, contentType string, limit, offset int) ([]ContentRecord, error)
}
