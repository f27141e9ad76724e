package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"entrypass/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SQLiteBusyTimeout is how long a write waits for another connection's
// lock on the same file.
const SQLiteBusyTimeout = 5 * time.Second

// DB is the relational backend.
type DB struct {
	Bun *bun.DB
}

func OpenSQLite(dsn string) (*DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// sqlite allows a single writer; one connection keeps in-memory
	// databases shared across queries too.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	// Another process writing the same file makes us wait instead of
	// failing with SQLITE_BUSY.
	if _, err := sqldb.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeout.Milliseconds())); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to set sqlite busy_timeout: %w", err)
	}

	return &DB{Bun: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

func OpenPostgres(dsn string) (*DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &DB{Bun: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// Migrate creates the tickets table if it is missing.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Bun.NewCreateTable().
		Model((*models.Ticket)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tickets table: %w", err)
	}
	return nil
}

// AddTicket is a single INSERT; the table's unique constraints decide
// duplicates, so concurrent writers get the same errors as the other stores.
func (d *DB) AddTicket(ctx context.Context, ticket models.Ticket) error {
	if _, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx); err != nil {
		return insertError(ticket, err)
	}
	return nil
}

func insertError(ticket models.Ticket, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		if strings.Contains(pqErr.Constraint, "user_id") {
			return fmt.Errorf("%w: %s", ErrDuplicateUserID, ticket.UserID)
		}
		return fmt.Errorf("%w: %s", ErrDuplicateTicketID, ticket.TicketID)
	}

	// The sqlite drivers behind sqliteshim have different error types but
	// share the engine's message.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "tickets.user_id") {
			return fmt.Errorf("%w: %s", ErrDuplicateUserID, ticket.UserID)
		}
		if strings.Contains(msg, "tickets.ticket_id") {
			return fmt.Errorf("%w: %s", ErrDuplicateTicketID, ticket.TicketID)
		}
	}
	return fmt.Errorf("failed to insert ticket %s: %w", ticket.TicketID, err)
}

func (d *DB) GetAllTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Order("created_at ASC", "ticket_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func (d *DB) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return d.getOne(ctx, "ticket_id = ?", ticketID)
}

func (d *DB) GetTicketByUserID(ctx context.Context, userID string) (*models.Ticket, error) {
	return d.getOne(ctx, "user_id = ?", userID)
}

func (d *DB) getOne(ctx context.Context, where, arg string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) Close() error {
	return d.Bun.Close()
}
