package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type ReservationRepository struct {
	db
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db{pool: pool}}
}

func (r *ReservationRepository) ListTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	rows, err := r.query(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list ticket types", err)
	}
	types, err := collect(rows, scanTicketType)
	if err != nil {
		return nil, wrapErr("list ticket types", err)
	}
	return types, nil
}

func (r *ReservationRepository) FindReservationByIdempotencyKey(ctx context.Context, ticketTypeID, key string) (*domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, `
SELECT `+reservationColumns+`
FROM reservations
WHERE ticket_type_id = $1 AND idempotency_key = $2`,
		ticketTypeID, key,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, wrapErr("find reservation by idempotency key", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, ticket_type_id, event_id, quantity, expires_at, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.TicketTypeID,
		res.EventID,
		res.Quantity,
		res.ExpiresAt,
		res.IdempotencyKey,
		res.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrTicketTypeNotFound
		}
		return wrapErr("create reservation", err)
	}
	return nil
}

// AdjustReserved moves reserved_quantity by delta. The table CHECK rejects
// any change that would oversell.
func (r *ReservationRepository) AdjustReserved(ctx context.Context, ticketTypeID string, delta int) error {
	tag, err := r.exec(ctx,
		`UPDATE ticket_types SET reserved_quantity = reserved_quantity + $2 WHERE id = $1`,
		ticketTypeID, delta,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("adjust reserved: %w", domain.ErrInsufficientInventory)
		}
		return wrapErr("adjust reserved", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketTypeNotFound
	}
	return nil
}

// ListExpiredReservations returns unclaimed reservations whose expiry has
// passed, oldest first.
func (r *ReservationRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := r.query(ctx, `
SELECT `+reservationColumns+`
FROM reservations
WHERE order_id IS NULL AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapErr("list expired reservations", err)
	}
	res, err := collect(rows, scanReservation)
	if err != nil {
		return nil, wrapErr("list expired reservations", err)
	}
	return res, nil
}
