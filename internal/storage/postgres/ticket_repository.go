package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type TicketRepository struct {
	db
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db{pool: pool}}
}

// LockOrder takes a transaction scoped advisory lock keyed on the order id.
func (r *TicketRepository) LockOrder(ctx context.Context, orderID string) error {
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orderID); err != nil {
		return wrapErr("lock order", err)
	}
	return nil
}

func (r *TicketRepository) ListTicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	rows, err := r.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY sequence_number`, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, wrapErr("list tickets", err)
	}
	tickets, err := collect(rows, scanTicket)
	if err != nil {
		return nil, wrapErr("list tickets", err)
	}
	return tickets, nil
}

// InsertTicket relies on UNIQUE (order_id, sequence_number): a duplicate
// sequence reports false instead of a second row.
func (r *TicketRepository) InsertTicket(ctx context.Context, t domain.Ticket) (bool, error) {
	const stmt = `
INSERT INTO tickets (
	id, ticket_number, order_id, ticket_type_id, event_id, sequence_number, status,
	signed_payload, artifact_url, holder_name, holder_email, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (order_id, sequence_number) DO NOTHING`

	tag, err := r.exec(ctx, stmt,
		t.ID, t.TicketNumber, t.OrderID, t.TicketTypeID, t.EventID, t.SequenceNumber, string(t.Status),
		t.SignedPayload, t.ArtifactURL, t.HolderName, t.HolderEmail, t.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrOrderNotFound
		}
		return false, wrapErr("insert ticket", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CommitSale moves qty units from reserved to sold.
func (r *TicketRepository) CommitSale(ctx context.Context, ticketTypeID string, qty int) error {
	tag, err := r.exec(ctx, `
UPDATE ticket_types
SET sold_quantity = sold_quantity + $2,
    reserved_quantity = reserved_quantity - $2
WHERE id = $1`,
		ticketTypeID, qty,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("commit sale: %w", domain.ErrInsufficientInventory)
		}
		return wrapErr("commit sale", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketTypeNotFound
	}
	return nil
}

func (r *TicketRepository) SetArtifactURL(ctx context.Context, ticketID, url string) error {
	if _, err := r.exec(ctx, `UPDATE tickets SET artifact_url = $2 WHERE id = $1`, ticketID, url); err != nil {
		return wrapErr("set artifact url", err)
	}
	return nil
}

func (r *TicketRepository) GetTicketByNumber(ctx context.Context, number string) (domain.Ticket, error) {
	t, err := scanTicket(r.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = $1`, number))
	if err != nil {
		return domain.Ticket{}, lookupErr("get ticket", err, domain.ErrTicketNotFound)
	}
	return t, nil
}

// MarkTicketUsed reports false if the ticket was already checked in.
func (r *TicketRepository) MarkTicketUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE tickets SET status = 'USED', checked_in_at = $2
WHERE id = $1 AND status <> 'USED'`,
		id, at,
	)
	if err != nil {
		return false, wrapErr("mark ticket used", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransferTicket reports false unless the ticket was still VALID.
func (r *TicketRepository) TransferTicket(ctx context.Context, id, holderName, holderEmail string) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE tickets SET status = 'TRANSFERRED', holder_name = $2, holder_email = $3
WHERE id = $1 AND status = 'VALID'`,
		id, holderName, holderEmail,
	)
	if err != nil {
		return false, wrapErr("transfer ticket", err)
	}
	return tag.RowsAffected() == 1, nil
}
