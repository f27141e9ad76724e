package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"entrypass/internal/models"
	"entrypass/internal/utils"
)

type jsonDocument struct {
	Tickets []models.Ticket `json:"tickets"`
}

// JSONStore keeps every ticket in one JSON document on disk. Reads always go
// to the file, so writes from another process are visible. Writes replace the
// file atomically. Only one writer process is supported.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONStore{path: path}, nil
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) load() (*jsonDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &jsonDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var doc jsonDocument
	if len(data) == 0 {
		return &doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *JSONStore) AddTicket(ctx context.Context, ticket models.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	for _, existing := range doc.Tickets {
		if existing.UserID == ticket.UserID {
			return fmt.Errorf("%w: %s", ErrDuplicateUserID, ticket.UserID)
		}
		if existing.TicketID == ticket.TicketID {
			return fmt.Errorf("%w: %s", ErrDuplicateTicketID, ticket.TicketID)
		}
	}

	doc.Tickets = append(doc.Tickets, ticket)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tickets: %w", err)
	}
	return utils.WriteFileAtomic(s.path, data, 0644)
}

func (s *JSONStore) GetAllTickets(ctx context.Context) ([]models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if doc.Tickets == nil {
		return []models.Ticket{}, nil
	}
	return doc.Tickets, nil
}

func (s *JSONStore) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.find(ctx, ticketID, func(t models.Ticket) bool { return t.TicketID == ticketID })
}

func (s *JSONStore) GetTicketByUserID(ctx context.Context, userID string) (*models.Ticket, error) {
	return s.find(ctx, userID, func(t models.Ticket) bool { return t.UserID == userID })
}

func (s *JSONStore) find(ctx context.Context, key string, match func(models.Ticket) bool) (*models.Ticket, error) {
	tickets, err := s.GetAllTickets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if match(tickets[i]) {
			return &tickets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, key)
}

func (s *JSONStore) Close() error {
	return nil
}
