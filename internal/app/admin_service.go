package app

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type AdminRepository interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	ListEvents(ctx context.Context, organizerID string) ([]domain.Event, error)
	CreateTicketType(ctx context.Context, tt domain.TicketType) error
	ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error)
	CreatePromoCode(ctx context.Context, p domain.PromoCode) error
}

type counterSeeder interface {
	Initialize(ctx context.Context, ticketTypeID string, available int) (bool, error)
}

type AdminService struct {
	base
	repo    AdminRepository
	counter counterSeeder
}

func NewAdminService(repo AdminRepository, counter CounterStore, clk clock.Clock, opts ...Option) *AdminService {
	return &AdminService{
		base:    newBase(clk, opts),
		repo:    repo,
		counter: counter,
	}
}

type CreateEventInput struct {
	OrganizerID string
	Name        string
	StartsAt    *time.Time
}

func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	if in.OrganizerID == "" {
		return domain.Event{}, domain.ErrOrganizerRequired
	}
	if in.Name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	startsAt := s.clock.Now()
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}

	event := domain.Event{
		ID:          newID(),
		OrganizerID: in.OrganizerID,
		Name:        in.Name,
		StartsAt:    startsAt,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// ListEvents lists all events, or only the organizer's when organizerID is set.
func (s *AdminService) ListEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx, organizerID)
}

type CreateTicketTypeInput struct {
	EventID       string
	Name          string
	Price         decimal.Decimal
	TotalQuantity int
	MaxPerOrder   int
	SalesStart    *time.Time
	SalesEnd      *time.Time
}

func (s *AdminService) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (domain.TicketType, error) {
	if in.EventID == "" {
		return domain.TicketType{}, domain.ErrInvalidID
	}
	if in.Name == "" {
		return domain.TicketType{}, domain.ErrTicketTypeNameRequired
	}
	if in.TotalQuantity <= 0 || in.MaxPerOrder < 0 {
		return domain.TicketType{}, domain.ErrInvalidCapacity
	}
	if in.Price.IsNegative() {
		return domain.TicketType{}, domain.ErrInvalidPrice
	}

	tt := domain.TicketType{
		ID:            newID(),
		EventID:       in.EventID,
		Name:          in.Name,
		Price:         in.Price.Round(2),
		TotalQuantity: in.TotalQuantity,
		MaxPerOrder:   in.MaxPerOrder,
		SalesStart:    in.SalesStart,
		SalesEnd:      in.SalesEnd,
	}
	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return domain.TicketType{}, err
	}

	// A failed seed is repaired on first reservation.
	if _, err := s.counter.Initialize(ctx, tt.ID, tt.TotalQuantity); err != nil {
		s.logger.Warn("counter seed failed", "ticket_type_id", tt.ID, "error", err)
	}
	return tt, nil
}

func (s *AdminService) ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListTicketTypesByEvent(ctx, eventID)
}

type CreatePromoCodeInput struct {
	EventID    string
	Code       string
	Kind       domain.DiscountKind
	Value      decimal.Decimal
	MaxUses    int
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

func (s *AdminService) CreatePromoCode(ctx context.Context, in CreatePromoCodeInput) (domain.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if in.EventID == "" {
		return domain.PromoCode{}, domain.ErrInvalidID
	}
	if code == "" || !in.Value.IsPositive() || in.MaxUses < 0 {
		return domain.PromoCode{}, domain.ErrInvalidPromoCode
	}
	switch in.Kind {
	case domain.DiscountPercent:
		if in.Value.GreaterThan(decimal.NewFromInt(100)) {
			return domain.PromoCode{}, domain.ErrInvalidPromoCode
		}
	case domain.DiscountFixed:
	default:
		return domain.PromoCode{}, domain.ErrInvalidPromoCode
	}

	p := domain.PromoCode{
		Code:       code,
		EventID:    in.EventID,
		Kind:       in.Kind,
		Value:      in.Value,
		MaxUses:    in.MaxUses,
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
	}
	if err := s.repo.CreatePromoCode(ctx, p); err != nil {
		return domain.PromoCode{}, err
	}
	return p, nil
}
