package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const ticketTypeColumns = `id, event_id, name, price, total_quantity, sold_quantity, reserved_quantity, max_per_order, sales_start, sales_end`

func scanTicketType(row pgx.Row) (domain.TicketType, error) {
	var tt domain.TicketType
	err := row.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price,
		&tt.TotalQuantity, &tt.SoldQuantity, &tt.ReservedQuantity, &tt.MaxPerOrder,
		&tt.SalesStart, &tt.SalesEnd)
	return tt, err
}

const reservationColumns = `id, ticket_type_id, event_id, quantity, expires_at, order_id, COALESCE(idempotency_key, ''), created_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var r domain.Reservation
	var orderID *string
	err := row.Scan(&r.ID, &r.TicketTypeID, &r.EventID, &r.Quantity, &r.ExpiresAt, &orderID, &r.IdempotencyKey, &r.CreatedAt)
	if orderID != nil {
		r.OrderID = *orderID
	}
	return r, err
}

const orderColumns = `id, reservation_id, event_id, ticket_type_id, organizer_id,
	buyer_email, buyer_name, buyer_phone, status,
	subtotal, discount, platform_fee, processing_fee, total_amount,
	ticket_count, promo_code, external_payment_ref, paid_at, created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ReservationID, &o.EventID, &o.TicketTypeID, &o.OrganizerID,
		&o.Buyer.Email, &o.Buyer.Name, &o.Buyer.Phone, &o.Status,
		&o.Subtotal, &o.Discount, &o.PlatformFee, &o.ProcessingFee, &o.TotalAmount,
		&o.TicketCount, &o.PromoCode, &o.ExternalPaymentRef, &o.PaidAt, &o.CreatedAt)
	return o, err
}

const ticketColumns = `id, ticket_number, order_id, ticket_type_id, event_id, sequence_number, status,
	signed_payload, artifact_url, holder_name, holder_email, checked_in_at, created_at`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.TicketNumber, &t.OrderID, &t.TicketTypeID, &t.EventID, &t.SequenceNumber, &t.Status,
		&t.SignedPayload, &t.ArtifactURL, &t.HolderName, &t.HolderEmail, &t.CheckedInAt, &t.CreatedAt)
	return t, err
}

// lookupErr maps a single-row lookup failure onto the domain.
func lookupErr(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	if isInvalidUUID(err) {
		return domain.ErrInvalidID
	}
	return wrapErr(op, err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
}

// Queries below are shared by more than one repository.

func (d db) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	tt, err := scanTicketType(d.queryRow(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`, id))
	if err != nil {
		return domain.TicketType{}, lookupErr("get ticket type", err, domain.ErrTicketTypeNotFound)
	}
	return tt, nil
}

func (d db) GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error) {
	tt, err := scanTicketType(d.queryRow(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.TicketType{}, lookupErr("lock ticket type", err, domain.ErrTicketTypeNotFound)
	}
	return tt, nil
}

func (d db) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	r, err := scanReservation(d.queryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Reservation{}, lookupErr("lock reservation", err, domain.ErrReservationNotFound)
	}
	return r, nil
}

// DeleteReservation reports whether this call removed the row.
func (d db) DeleteReservation(ctx context.Context, id string) (bool, error) {
	tag, err := d.exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, wrapErr("delete reservation", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (d db) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(d.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, lookupErr("get order", err, domain.ErrOrderNotFound)
	}
	return o, nil
}

// TransitionOrder moves the order from -> to only if it is still in from.
func (d db) TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, domain.ErrInvalidTransition
	}
	tag, err := d.exec(ctx, `
UPDATE orders
SET status = $3::text,
    paid_at = CASE WHEN $3::text = 'PAID' THEN $4::timestamptz ELSE paid_at END
WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, wrapErr("transition order", err)
	}
	return tag.RowsAffected() == 1, nil
}
