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

type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

func (r *OrderRepository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	var e domain.Event
	err := r.queryRow(ctx, `SELECT id, organizer_id, name, starts_at FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.OrganizerID, &e.Name, &e.StartsAt)
	if err != nil {
		return domain.Event{}, lookupErr("get event", err, domain.ErrEventNotFound)
	}
	return e, nil
}

func (r *OrderRepository) GetPromoCodeForUpdate(ctx context.Context, eventID, code string) (domain.PromoCode, error) {
	var p domain.PromoCode
	err := r.queryRow(ctx, `
SELECT code, event_id, kind, value, max_uses, used_count, valid_from, valid_until
FROM promo_codes
WHERE event_id = $1 AND code = $2
FOR UPDATE`,
		eventID, code,
	).Scan(&p.Code, &p.EventID, &p.Kind, &p.Value, &p.MaxUses, &p.UsedCount, &p.ValidFrom, &p.ValidUntil)
	if err != nil {
		return domain.PromoCode{}, lookupErr("get promo code", err, fmt.Errorf("promo code %s: %w", code, domain.ErrNotFound))
	}
	return p, nil
}

func (r *OrderRepository) IncrementPromoUsage(ctx context.Context, eventID, code string) error {
	_, err := r.exec(ctx,
		`UPDATE promo_codes SET used_count = used_count + 1 WHERE event_id = $1 AND code = $2`,
		eventID, code,
	)
	if err != nil {
		return wrapErr("increment promo usage", err)
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o domain.Order) error {
	const stmt = `
INSERT INTO orders (
	id, reservation_id, event_id, ticket_type_id, organizer_id,
	buyer_email, buyer_name, buyer_phone, status,
	subtotal, discount, platform_fee, processing_fee, total_amount,
	ticket_count, promo_code, external_payment_ref, paid_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.exec(ctx, stmt,
		o.ID, o.ReservationID, o.EventID, o.TicketTypeID, o.OrganizerID,
		o.Buyer.Email, o.Buyer.Name, o.Buyer.Phone, string(o.Status),
		o.Subtotal, o.Discount, o.PlatformFee, o.ProcessingFee, o.TotalAmount,
		o.TicketCount, o.PromoCode, o.ExternalPaymentRef, o.PaidAt, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReservationClaimed
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return wrapErr("create order", err)
	}
	return nil
}

// ClaimReservation links the reservation to orderID unless another order
// already holds it.
func (r *OrderRepository) ClaimReservation(ctx context.Context, reservationID, orderID string) error {
	tag, err := r.exec(ctx,
		`UPDATE reservations SET order_id = $2 WHERE id = $1 AND order_id IS NULL`,
		reservationID, orderID,
	)
	if err != nil {
		return wrapErr("claim reservation", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationClaimed
	}
	return nil
}

func (r *OrderRepository) GetOrderByReservationID(ctx context.Context, reservationID string) (*domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE reservation_id = $1`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, lookupErr("get order by reservation", err, domain.ErrOrderNotFound)
	}
	return &o, nil
}

func (r *OrderRepository) GetOrderByPaymentRef(ctx context.Context, ref string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_payment_ref = $1`, ref))
	if err != nil {
		return domain.Order{}, lookupErr("get order by payment ref", err, domain.ErrOrderNotFound)
	}
	return o, nil
}

// ListStalePendingOrders returns PENDING orders created before the cutoff,
// oldest first.
func (r *OrderRepository) ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status = 'PENDING' AND created_at < $1
ORDER BY created_at
LIMIT $2`,
		createdBefore, limit,
	)
	if err != nil {
		return nil, wrapErr("list stale orders", err)
	}
	orders, err := collect(rows, scanOrder)
	if err != nil {
		return nil, wrapErr("list stale orders", err)
	}
	return orders, nil
}
