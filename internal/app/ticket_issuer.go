package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/retry"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/ticketsig"
)

type TicketRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockOrder serialises issuers for one order until the transaction ends.
	LockOrder(ctx context.Context, orderID string) error
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	ListTicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error)
	// InsertTicket reports false when the order already has a ticket with
	// the same sequence number.
	InsertTicket(ctx context.Context, t domain.Ticket) (bool, error)
	DeleteReservation(ctx context.Context, id string) (bool, error)
	CommitSale(ctx context.Context, ticketTypeID string, qty int) error
	SetArtifactURL(ctx context.Context, ticketID, url string) error
	GetTicketByNumber(ctx context.Context, number string) (domain.Ticket, error)
	MarkTicketUsed(ctx context.Context, id string, at time.Time) (bool, error)
	TransferTicket(ctx context.Context, id, holderName, holderEmail string) (bool, error)
}

type TicketSigner interface {
	Sign(t domain.Ticket, issuedAt time.Time) (string, error)
	Verify(payload string) (ticketsig.Claims, error)
}

type ArtifactGenerator interface {
	Generate(ctx context.Context, t domain.Ticket) (string, error)
}

// Notifier is told about orders whose tickets were just issued.
type Notifier interface {
	OrderPaid(ctx context.Context, order domain.Order, tickets []domain.Ticket) error
}

type markerConsumer interface {
	Consume(ctx context.Context, ticketTypeID, reservationID string) error
}

type IssuerConfig struct {
	ArtifactConcurrency int
	ArtifactRetry       retry.Policy
}

type TicketIssuer struct {
	base
	repo      TicketRepository
	counter   markerConsumer
	signer    TicketSigner
	artifacts ArtifactGenerator
	notifier  Notifier
	cfg       IssuerConfig
}

func NewTicketIssuer(
	repo TicketRepository,
	counter CounterStore,
	signer TicketSigner,
	artifacts ArtifactGenerator,
	notifier Notifier,
	clk clock.Clock,
	cfg IssuerConfig,
	opts ...Option,
) *TicketIssuer {
	if cfg.ArtifactConcurrency <= 0 {
		cfg.ArtifactConcurrency = 4
	}
	if cfg.ArtifactRetry.MaxAttempts <= 0 {
		cfg.ArtifactRetry = retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Retryable:       func(error) bool { return true },
		}
	}
	return &TicketIssuer{
		base:      newBase(clk, opts),
		repo:      repo,
		counter:   counter,
		signer:    signer,
		artifacts: artifacts,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Issue materialises one ticket per reserved unit of a paid order and
// retires its reservation. Calling it again for the same order returns the
// existing tickets without touching inventory.
func (s *TicketIssuer) Issue(ctx context.Context, order domain.Order) ([]domain.Ticket, error) {
	if order.Status != domain.OrderStatusPaid {
		return nil, domain.ErrInvalidTransition
	}

	var tickets []domain.Ticket
	var created int
	var consumed bool

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		tickets, created, consumed = nil, 0, false
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.LockOrder(txCtx, order.ID); err != nil {
				return err
			}
			existing, err := s.repo.ListTicketsByOrder(txCtx, order.ID)
			if err != nil {
				return err
			}
			if len(existing) >= order.TicketCount {
				tickets = existing
				return nil
			}

			res, err := s.repo.GetReservationForUpdate(txCtx, order.ReservationID)
			if err != nil {
				return err
			}

			have := make(map[int]bool, len(existing))
			for _, t := range existing {
				have[t.SequenceNumber] = true
			}
			now := s.clock.Now()
			tickets = existing
			for seq := 1; seq <= order.TicketCount; seq++ {
				if have[seq] {
					continue
				}
				t := domain.Ticket{
					ID:             newID(),
					TicketNumber:   newTicketNumber(),
					OrderID:        order.ID,
					TicketTypeID:   order.TicketTypeID,
					EventID:        order.EventID,
					SequenceNumber: seq,
					Status:         domain.TicketStatusValid,
					HolderName:     order.Buyer.Name,
					HolderEmail:    order.Buyer.Email,
					CreatedAt:      now,
				}
				if t.SignedPayload, err = s.signer.Sign(t, now); err != nil {
					return err
				}
				inserted, err := s.repo.InsertTicket(txCtx, t)
				if err != nil {
					return err
				}
				if inserted {
					tickets = append(tickets, t)
					created++
				}
			}

			deleted, err := s.repo.DeleteReservation(txCtx, res.ID)
			if err != nil {
				return err
			}
			if deleted {
				consumed = true
				return s.repo.CommitSale(txCtx, res.TicketTypeID, res.Quantity)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if created == 0 {
		s.generateArtifacts(ctx, tickets)
		return tickets, nil
	}

	metrics.TrackTicketsIssued(created)
	s.logger.Info("tickets issued", "order_id", order.ID, "count", created)

	if consumed {
		if err := s.counter.Consume(ctx, order.TicketTypeID, order.ReservationID); err != nil {
			s.logger.Warn("counter marker consume failed", "reservation_id", order.ReservationID, "error", err)
		}
	}

	s.generateArtifacts(ctx, tickets)

	if s.notifier != nil {
		if err := s.notifier.OrderPaid(ctx, order, tickets); err != nil {
			s.logger.Warn("order notification failed", "order_id", order.ID, "error", err)
		}
	}
	return tickets, nil
}

// generateArtifacts renders missing QR artifacts. Failures are logged and the
// ticket stays valid without an artifact URL.
func (s *TicketIssuer) generateArtifacts(ctx context.Context, tickets []domain.Ticket) {
	if s.artifacts == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ArtifactConcurrency)
	for i := range tickets {
		if tickets[i].ArtifactURL != "" {
			continue
		}
		t := &tickets[i]
		g.Go(func() error {
			var url string
			err := s.cfg.ArtifactRetry.Do(gctx, func(ctx context.Context) error {
				var err error
				url, err = s.artifacts.Generate(ctx, *t)
				return err
			})
			if err == nil {
				err = s.repo.SetArtifactURL(gctx, t.ID, url)
			}
			if err != nil {
				metrics.TrackArtifactFailure()
				s.logger.Warn("ticket artifact failed", "ticket_number", t.TicketNumber, "error", err)
				return nil
			}
			t.ArtifactURL = url
			return nil
		})
	}
	_ = g.Wait()
}

// CheckIn admits the holder of a signed ticket payload exactly once.
func (s *TicketIssuer) CheckIn(ctx context.Context, payload string) (domain.Ticket, error) {
	claims, err := s.signer.Verify(payload)
	if err != nil {
		return domain.Ticket{}, err
	}
	t, err := s.repo.GetTicketByNumber(ctx, claims.TicketNumber)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return domain.Ticket{}, domain.ErrInvalidTicketPayload
		}
		return domain.Ticket{}, err
	}
	if t.OrderID != claims.OrderID || t.EventID != claims.EventID {
		return domain.Ticket{}, domain.ErrInvalidTicketPayload
	}

	now := s.clock.Now()
	ok, err := s.repo.MarkTicketUsed(ctx, t.ID, now)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ok {
		return domain.Ticket{}, domain.ErrTicketAlreadyUsed
	}
	t.Status = domain.TicketStatusUsed
	t.CheckedInAt = &now
	s.logger.Info("ticket checked in", "ticket_number", t.TicketNumber, "event_id", t.EventID)
	return t, nil
}

type TransferInput struct {
	TicketNumber string
	HolderName   string
	HolderEmail  string
}

// Transfer hands a valid ticket to a new holder. A ticket moves once.
func (s *TicketIssuer) Transfer(ctx context.Context, in TransferInput) (domain.Ticket, error) {
	if in.HolderName == "" || in.HolderEmail == "" {
		return domain.Ticket{}, domain.ErrInvalidHolder
	}
	t, err := s.repo.GetTicketByNumber(ctx, in.TicketNumber)
	if err != nil {
		return domain.Ticket{}, err
	}
	ok, err := s.repo.TransferTicket(ctx, t.ID, in.HolderName, in.HolderEmail)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotTransferable
	}
	t.Status = domain.TicketStatusTransferred
	t.HolderName = in.HolderName
	t.HolderEmail = in.HolderEmail
	return t, nil
}
