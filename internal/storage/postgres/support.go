package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/support"
)

const (
	ticketColumns = `id, user_id, order_id, subject, message, status, admin_reply, replied_by, replied_at, created_at`

	insertTicketSQL = `INSERT INTO support_tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getTicketSQL = `SELECT ` + ticketColumns + ` FROM support_tickets WHERE id = $1`

	listUserTicketsSQL = `SELECT ` + ticketColumns + ` FROM support_tickets
		WHERE user_id = $1 ORDER BY created_at DESC`

	listTicketsSQL = `SELECT ` + ticketColumns + ` FROM support_tickets ORDER BY created_at DESC`

	countTicketsSQL = `SELECT count(*), count(*) FILTER (WHERE status = 'open') FROM support_tickets`

	// The admin_reply guard keeps concurrent replies from overwriting each other.
	replyTicketSQL = `UPDATE support_tickets
		SET status = $2, admin_reply = $3, replied_by = $4, replied_at = $5
		WHERE id = $1 AND admin_reply = ''`
)

var _ support.Repository = (*SupportRepository)(nil)

// SupportRepository implements support.Repository backed by PostgreSQL.
type SupportRepository struct {
	pool *pgxpool.Pool
}

// NewSupportRepository returns a SupportRepository that uses the given pool.
func NewSupportRepository(pool *pgxpool.Pool) *SupportRepository {
	return &SupportRepository{pool: pool}
}

// Create inserts a new ticket.
func (r *SupportRepository) Create(ctx context.Context, t *support.Ticket) error {
	_, err := r.pool.Exec(ctx, insertTicketSQL,
		t.ID, t.UserID, t.OrderID, t.Subject, t.Message, string(t.Status),
		t.AdminReply, t.RepliedBy, t.RepliedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating ticket %q: %w", t.ID, err)
	}
	return nil
}

// GetByID returns a single ticket.
func (r *SupportRepository) GetByID(ctx context.Context, id string) (*support.Ticket, error) {
	rows, err := r.pool.Query(ctx, getTicketSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting ticket %q: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTicket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, support.ErrNotFound
		}
		return nil, fmt.Errorf("getting ticket %q: %w", id, err)
	}
	return &t, nil
}

// ListByUser returns a user's tickets newest first.
func (r *SupportRepository) ListByUser(ctx context.Context, userID string) ([]support.Ticket, error) {
	rows, err := r.pool.Query(ctx, listUserTicketsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanTicket)
}

// List returns all tickets newest first.
func (r *SupportRepository) List(ctx context.Context) ([]support.Ticket, error) {
	rows, err := r.pool.Query(ctx, listTicketsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	return pgx.CollectRows(rows, scanTicket)
}

// Count returns the total and open ticket counts.
func (r *SupportRepository) Count(ctx context.Context) (support.Counts, error) {
	var c support.Counts
	if err := r.pool.QueryRow(ctx, countTicketsSQL).Scan(&c.Total, &c.Open); err != nil {
		return c, fmt.Errorf("counting tickets: %w", err)
	}
	return c, nil
}

// SaveReply stores the admin reply. It fails with support.ErrAlreadyReplied
// if another reply was stored first.
func (r *SupportRepository) SaveReply(ctx context.Context, t *support.Ticket) error {
	tag, err := r.pool.Exec(ctx, replyTicketSQL, t.ID, string(t.Status), t.AdminReply, t.RepliedBy, t.RepliedAt)
	if err != nil {
		return fmt.Errorf("saving reply to ticket %q: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return support.ErrAlreadyReplied
	}
	return nil
}

func scanTicket(row pgx.CollectableRow) (support.Ticket, error) {
	var (
		t      support.Ticket
		status string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Subject, &t.Message, &status,
		&t.AdminReply, &t.RepliedBy, &t.RepliedAt, &t.CreatedAt)
	t.Status = support.Status(status)
	return t, err
}
