package db

import (
	"context"
	"encoding/json"
	"fmt"

	"entrypass/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStore layout, all keys under Prefix:
//
//	<prefix>:ticket:<ticket_id>  ticket JSON
//	<prefix>:user:<user_id>      ticket_id
//	<prefix>:tickets             list of ticket_ids in insertion order
//
// Readers enumerate through the list, which is appended last, so a ticket is
// never visible before its record is complete.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "entrypass"
	}
	return &RedisStore{Client: client, Prefix: prefix}
}

func (r *RedisStore) ticketKey(ticketID string) string {
	return r.Prefix + ":ticket:" + ticketID
}

func (r *RedisStore) userKey(userID string) string {
	return r.Prefix + ":user:" + userID
}

func (r *RedisStore) listKey() string {
	return r.Prefix + ":tickets"
}

func (r *RedisStore) AddTicket(ctx context.Context, ticket models.Ticket) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to encode ticket %s: %w", ticket.TicketID, err)
	}

	claimed, err := r.Client.SetNX(ctx, r.userKey(ticket.UserID), ticket.TicketID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim user_id %s: %w", ticket.UserID, err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrDuplicateUserID, ticket.UserID)
	}

	stored, err := r.Client.SetNX(ctx, r.ticketKey(ticket.TicketID), data, 0).Result()
	if err != nil || !stored {
		_ = r.Client.Del(ctx, r.userKey(ticket.UserID)).Err()
		if err != nil {
			return fmt.Errorf("failed to store ticket %s: %w", ticket.TicketID, err)
		}
		return fmt.Errorf("%w: %s", ErrDuplicateTicketID, ticket.TicketID)
	}

	if err := r.Client.RPush(ctx, r.listKey(), ticket.TicketID).Err(); err != nil {
		_ = r.Client.Del(ctx, r.userKey(ticket.UserID), r.ticketKey(ticket.TicketID)).Err()
		return fmt.Errorf("failed to index ticket %s: %w", ticket.TicketID, err)
	}
	return nil
}

func (r *RedisStore) GetAllTickets(ctx context.Context) ([]models.Ticket, error) {
	ids, err := r.Client.LRange(ctx, r.listKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if len(ids) == 0 {
		return []models.Ticket{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.ticketKey(id)
	}

	values, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // removed out of band
		}
		var ticket models.Ticket
		if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
			return nil, fmt.Errorf("failed to decode ticket %s: %w", ids[i], err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (r *RedisStore) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	raw, err := r.Client.Get(ctx, r.ticketKey(ticketID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket %s: %w", ticketID, err)
	}
	return &ticket, nil
}

func (r *RedisStore) GetTicketByUserID(ctx context.Context, userID string) (*models.Ticket, error) {
	ticketID, err := r.Client.Get(ctx, r.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return r.GetTicketByID(ctx, ticketID)
}

func (r *RedisStore) Close() error {
	return r.Client.Close()
}
