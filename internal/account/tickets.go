package account

import (
	"strings"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

type TicketRequest struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ContentID string `json:"contentId,omitempty"`
}

// CreateTicket opens a moderation ticket with its first message. No
// workflow beyond create/list exists yet.
func (s *Service) CreateTicket(accountID string, req TicketRequest) (store.Ticket, error) {
	if strings.TrimSpace(req.Title) == "" {
		return store.Ticket{}, apperr.Validation("Title is required")
	}
	now := s.now()
	ticket := store.Ticket{
		ID:        util.NewID(),
		AccountID: accountID,
		Type:      req.Type,
		Title:     strings.TrimSpace(req.Title),
		Status:    "open",
		ContentID: req.ContentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		if err := store.Tickets.Insert(tx, ticket); err != nil {
			return err
		}
		if strings.TrimSpace(req.Body) == "" {
			return nil
		}
		return store.TicketMessages.Insert(tx, store.TicketMessage{
			ID:        util.NewID(),
			TicketID:  ticket.ID,
			AuthorID:  accountID,
			Body:      req.Body,
			CreatedAt: now,
		})
	})
	if err != nil {
		return store.Ticket{}, err
	}
	return ticket, nil
}

func (s *Service) Tickets(accountID string) ([]store.Ticket, error) {
	tickets := []store.Ticket{}
	err := s.store.Execute(func(tx *store.Tx) error {
		rows, err := store.Tickets.Find(tx, func(t store.Ticket) bool {
			return t.AccountID == accountID
		})
		if err != nil {
			return err
		}
		tickets = rows
		return nil
	})
	return tickets, err
}
