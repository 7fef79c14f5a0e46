package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/fees"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetPromoCodeForUpdate(ctx context.Context, eventID, code string) (domain.PromoCode, error)
	IncrementPromoUsage(ctx context.Context, eventID, code string) error
	CreateOrder(ctx context.Context, order domain.Order) error
	ClaimReservation(ctx context.Context, reservationID, orderID string) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderByReservationID(ctx context.Context, reservationID string) (*domain.Order, error)
	TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error)
}

// PaymentGateway opens and verifies gateway transactions.
type PaymentGateway interface {
	Initialize(ctx context.Context, req domain.PaymentRequest) (domain.PaymentSession, error)
	Verify(ctx context.Context, reference string) (domain.PaymentResult, error)
}

type paidMarker interface {
	MarkPaid(ctx context.Context, orderID string, trigger string) (MarkPaidResult, error)
}

type claimedReleaser interface {
	ReleaseClaimed(ctx context.Context, id string, reason string) (bool, error)
}

type OrderConfig struct {
	Currency  string
	BuyerFees fees.BuyerConfig
}

type OrderService struct {
	base
	repo         OrderRepository
	gateway      PaymentGateway
	payments     paidMarker
	reservations claimedReleaser
	cfg          OrderConfig
}

func NewOrderService(
	repo OrderRepository,
	gateway PaymentGateway,
	payments paidMarker,
	reservations claimedReleaser,
	clk clock.Clock,
	cfg OrderConfig,
	opts ...Option,
) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	return &OrderService{
		base:         newBase(clk, opts),
		repo:         repo,
		gateway:      gateway,
		payments:     payments,
		reservations: reservations,
		cfg:          cfg,
	}
}

type CreateOrderInput struct {
	ReservationID string
	Buyer         domain.Buyer
	PromoCode     string
}

type CreateOrderResult struct {
	Order            domain.Order
	AuthorizationURL string
	Created          bool
}

// CreateOrder binds a pending order to an unexpired, unclaimed reservation.
// Free orders are confirmed on the spot; others open a gateway transaction.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	in.Buyer.Email = strings.TrimSpace(in.Buyer.Email)
	if in.Buyer.Email == "" {
		return CreateOrderResult{}, domain.ErrBuyerEmailRequired
	}
	if in.ReservationID == "" {
		return CreateOrderResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result CreateOrderResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}

		if res.Claimed() {
			existing, err := s.repo.GetOrderByReservationID(txCtx, res.ID)
			if err != nil {
				return err
			}
			if existing != nil && strings.EqualFold(existing.Buyer.Email, in.Buyer.Email) {
				result = CreateOrderResult{Order: *existing}
				return nil
			}
			return domain.ErrReservationClaimed
		}
		if res.Expired(now) {
			return domain.ErrReservationExpired
		}

		tt, err := s.repo.GetTicketType(txCtx, res.TicketTypeID)
		if err != nil {
			return err
		}
		event, err := s.repo.GetEvent(txCtx, res.EventID)
		if err != nil {
			return err
		}

		subtotal := tt.Price.Mul(decimal.NewFromInt(int64(res.Quantity)))
		discount := decimal.Zero
		promo := strings.ToUpper(strings.TrimSpace(in.PromoCode))
		if promo != "" {
			p, err := s.repo.GetPromoCodeForUpdate(txCtx, res.EventID, promo)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrInvalidPromoCode
				}
				return err
			}
			if !p.Usable(now) {
				return domain.ErrInvalidPromoCode
			}
			discount = p.Discount(subtotal)
			if err := s.repo.IncrementPromoUsage(txCtx, res.EventID, promo); err != nil {
				return err
			}
		}

		quote := s.cfg.BuyerFees.Quote(subtotal.Sub(discount))
		order := domain.Order{
			ID:                 newID(),
			ReservationID:      res.ID,
			EventID:            res.EventID,
			TicketTypeID:       res.TicketTypeID,
			OrganizerID:        event.OrganizerID,
			Buyer:              in.Buyer,
			Status:             domain.OrderStatusPending,
			Subtotal:           subtotal,
			Discount:           discount,
			PlatformFee:        quote.PlatformFee,
			ProcessingFee:      quote.ProcessingFee,
			TotalAmount:        quote.Total,
			TicketCount:        res.Quantity,
			PromoCode:          promo,
			ExternalPaymentRef: newPaymentRef(),
			CreatedAt:          now,
		}
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := s.repo.ClaimReservation(txCtx, res.ID, order.ID); err != nil {
			return err
		}

		result = CreateOrderResult{Order: order, Created: true}
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !result.Created {
		return result, nil
	}

	order := result.Order
	metrics.TrackOrder(string(domain.OrderStatusPending))
	s.logger.Info("order created",
		"order_id", order.ID,
		"reservation_id", order.ReservationID,
		"total", order.TotalAmount.StringFixed(2),
	)

	if order.Free() {
		paid, err := s.payments.MarkPaid(ctx, order.ID, TriggerFree)
		if err != nil {
			s.logger.Error("free order confirmation failed", "order_id", order.ID, "error", err)
			return CreateOrderResult{}, err
		}
		result.Order = paid.Order
		return result, nil
	}

	var session domain.PaymentSession
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.gateway.Initialize(ctx, domain.PaymentRequest{
			Reference: order.ExternalPaymentRef,
			Email:     order.Buyer.Email,
			Amount:    order.TotalAmount,
			Currency:  s.cfg.Currency,
			Metadata: map[string]string{
				"order_id": order.ID,
				"event_id": order.EventID,
			},
		})
		return err
	})
	if err != nil {
		s.logger.Error("payment initialization failed", "order_id", order.ID, "error", err)
		if _, ferr := s.fail(ctx, order, domain.OrderStatusFailed, "payment_init_failed"); ferr != nil {
			s.logger.Error("failing order after init error", "order_id", order.ID, "error", ferr)
		}
		return CreateOrderResult{}, err
	}
	result.AuthorizationURL = session.AuthorizationURL
	return result, nil
}

// CancelOrder abandons a pending order and gives its reservation back.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	ok, err := s.fail(ctx, order, domain.OrderStatusCancelled, "cancelled")
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	order.Status = domain.OrderStatusCancelled
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// fail moves a pending order to a terminal non-paid status and releases its
// reservation. It reports false when the order was no longer pending.
func (s *OrderService) fail(ctx context.Context, order domain.Order, to domain.OrderStatus, reason string) (bool, error) {
	ok, err := s.repo.TransitionOrder(ctx, order.ID, domain.OrderStatusPending, to, s.clock.Now())
	if err != nil || !ok {
		return false, err
	}
	metrics.TrackOrder(string(to))
	if _, err := s.reservations.ReleaseClaimed(ctx, order.ReservationID, reason); err != nil {
		s.logger.Error("release after order failure", "order_id", order.ID, "error", err)
	}
	return true, nil
}
