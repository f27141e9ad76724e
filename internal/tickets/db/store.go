// Package db holds the ticket store backends. Every backend enforces
// uniqueness of user_id and ticket_id and never overwrites an existing
// record.
package db

import (
	"context"
	"errors"

	"entrypass/internal/models"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrDuplicateUserID   = errors.New("a ticket already exists for this user_id")
	ErrDuplicateTicketID = errors.New("ticket_id already in use")
)

type Store interface {
	AddTicket(ctx context.Context, ticket models.Ticket) error
	GetAllTickets(ctx context.Context) ([]models.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTicketByUserID(ctx context.Context, userID string) (*models.Ticket, error)
	Close() error
}

// UserIDs harvests the dedup keys of every stored ticket.
func UserIDs(ctx context.Context, store Store) (map[string]struct{}, error) {
	tickets, err := store.GetAllTickets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(tickets))
	for _, t := range tickets {
		ids[t.UserID] = struct{}{}
	}
	return ids, nil
}
