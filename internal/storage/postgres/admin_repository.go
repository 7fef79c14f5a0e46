package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db{pool: pool}}
}

func (r *AdminRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, organizer_id, name, starts_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.exec(ctx, stmt, event.ID, event.OrganizerID, event.Name, event.StartsAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return wrapErr("create event", err)
	}
	return nil
}

// ListEvents lists events in creation order, restricted to one organizer
// when organizerID is not empty.
func (r *AdminRepository) ListEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	const query = `
SELECT id, organizer_id, name, starts_at
FROM events
WHERE $1::text = '' OR organizer_id = $1
ORDER BY created_at ASC`
	rows, err := r.query(ctx, query, organizerID)
	if err != nil {
		return nil, wrapErr("list events", err)
	}
	events, err := collect(rows, func(row pgx.Row) (domain.Event, error) {
		var e domain.Event
		err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.StartsAt)
		return e, err
	})
	if err != nil {
		return nil, wrapErr("list events", err)
	}
	return events, nil
}

func (r *AdminRepository) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	const stmt = `
INSERT INTO ticket_types (id, event_id, name, price, total_quantity, max_per_order, sales_start, sales_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.exec(ctx, stmt,
		tt.ID, tt.EventID, tt.Name, tt.Price, tt.TotalQuantity, tt.MaxPerOrder, tt.SalesStart, tt.SalesEnd,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrTicketTypeAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		return wrapErr("create ticket type", err)
	}
	return nil
}

func (r *AdminRepository) ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, wrapErr("check event", err)
	}
	if !exists {
		return nil, domain.ErrEventNotFound
	}

	rows, err := r.query(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, wrapErr("list ticket types", err)
	}
	types, err := collect(rows, scanTicketType)
	if err != nil {
		return nil, wrapErr("list ticket types", err)
	}
	return types, nil
}

func (r *AdminRepository) CreatePromoCode(ctx context.Context, p domain.PromoCode) error {
	const stmt = `
INSERT INTO promo_codes (event_id, code, kind, value, max_uses, valid_from, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.exec(ctx, stmt,
		p.EventID, p.Code, string(p.Kind), p.Value, p.MaxUses, p.ValidFrom, p.ValidUntil,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrInvalidPromoCode
		}
		if isForeignKeyViolation(err) {
			return domain.ErrEventNotFound
		}
		return wrapErr("create promo code", err)
	}
	return nil
}
