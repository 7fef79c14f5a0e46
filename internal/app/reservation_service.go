package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/retry"
)

// CounterStore is the fast atomic gate in front of the ledger. It may lose
// state at any time; the ledger can always rebuild it.
type CounterStore interface {
	// Reserve decrements the available count by qty and records a hold
	// marker for reservationID, or reports false if fewer than qty remain.
	// A live marker for reservationID reports true without decrementing.
	Reserve(ctx context.Context, ticketTypeID, reservationID string, qty int, ttl time.Duration) (bool, error)
	// Release restores the marker's quantity once. Double release is a no-op.
	Release(ctx context.Context, ticketTypeID, reservationID string) (bool, error)
	// Initialize seeds the available count if it is not set yet.
	Initialize(ctx context.Context, ticketTypeID string, available int) (bool, error)
	// Consume drops the marker without restoring stock.
	Consume(ctx context.Context, ticketTypeID, reservationID string) error
	Available(ctx context.Context, ticketTypeID string) (int, bool, error)
	Overwrite(ctx context.Context, ticketTypeID string, available int) error
}

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
	GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error)
	ListTicketTypes(ctx context.Context) ([]domain.TicketType, error)
	FindReservationByIdempotencyKey(ctx context.Context, ticketTypeID, key string) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	DeleteReservation(ctx context.Context, id string) (bool, error)
	AdjustReserved(ctx context.Context, ticketTypeID string, delta int) error
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
}

type ReservationConfig struct {
	TTL time.Duration
	// MarkerGrace keeps counter hold markers alive past the ledger expiry
	// so the sweep can still release them.
	MarkerGrace time.Duration
	SweepBatch  int
}

const (
	defaultReservationTTL = 15 * time.Minute
	defaultMarkerGrace    = 10 * time.Minute
	defaultSweepBatch     = 200
)

type ReservationService struct {
	base
	repo    ReservationRepository
	counter CounterStore
	cfg     ReservationConfig

	driftMu sync.Mutex
	// drift holds the last mismatch Reconcile saw per ticket type.
	drift map[string]driftReading
}

type driftReading struct {
	counter int
	ledger  int
}

func NewReservationService(repo ReservationRepository, counter CounterStore, clk clock.Clock, cfg ReservationConfig, opts ...Option) *ReservationService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultReservationTTL
	}
	if cfg.MarkerGrace <= 0 {
		cfg.MarkerGrace = defaultMarkerGrace
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	return &ReservationService{
		base:    newBase(clk, opts),
		repo:    repo,
		counter: counter,
		cfg:     cfg,
		drift:   make(map[string]driftReading),
	}
}

type ReserveInput struct {
	EventID        string
	TicketTypeID   string
	Quantity       int
	IdempotencyKey string
}

// Reserve admits the request through the counter store and then records
// it in the ledger. A ledger failure gives the units back to the counter.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if in.TicketTypeID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	if in.IdempotencyKey != "" {
		if existing, err := s.findByKey(ctx, in); err != nil || existing != nil {
			if err != nil {
				return domain.Reservation{}, err
			}
			return *existing, nil
		}
	}

	var tt domain.TicketType
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		tt, err = s.repo.GetTicketType(ctx, in.TicketTypeID)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if in.EventID != "" && tt.EventID != in.EventID {
		return domain.Reservation{}, domain.ErrTicketTypeNotFound
	}

	now := s.clock.Now()
	if err := tt.CheckPurchasable(in.Quantity, now); err != nil {
		return domain.Reservation{}, err
	}

	res := domain.Reservation{
		ID:             newID(),
		TicketTypeID:   tt.ID,
		EventID:        tt.EventID,
		Quantity:       in.Quantity,
		ExpiresAt:      now.Add(s.cfg.TTL),
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	}

	admitted, err := s.admit(ctx, tt, res)
	if err != nil {
		if retry.IsTransient(err) {
			// A timed-out reserve may still have run on the store.
			s.releaseCounter(ctx, res)
		}
		metrics.TrackReservation("error")
		return domain.Reservation{}, err
	}
	if !admitted {
		metrics.TrackReservation("rejected")
		return domain.Reservation{}, domain.ErrInsufficientInventory
	}

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			locked, err := s.repo.GetTicketTypeForUpdate(txCtx, tt.ID)
			if err != nil {
				return err
			}
			if locked.Available() < res.Quantity {
				return domain.ErrInsufficientInventory
			}
			if err := s.repo.CreateReservation(txCtx, res); err != nil {
				return err
			}
			return s.repo.AdjustReserved(txCtx, tt.ID, res.Quantity)
		})
	})
	if err != nil {
		s.releaseCounter(ctx, res)
		if errors.Is(err, domain.ErrIdempotencyConflict) && in.IdempotencyKey != "" {
			// A concurrent request with the same key won the insert.
			if existing, ferr := s.findByKey(ctx, in); ferr == nil && existing != nil {
				return *existing, nil
			}
		}
		metrics.TrackReservation(reservationResult(err))
		return domain.Reservation{}, err
	}

	metrics.TrackReservation("admitted")
	s.logger.Info("reservation created",
		"reservation_id", res.ID,
		"ticket_type_id", res.TicketTypeID,
		"quantity", res.Quantity,
		"expires_at", res.ExpiresAt,
	)
	return res, nil
}

func (s *ReservationService) findByKey(ctx context.Context, in ReserveInput) (*domain.Reservation, error) {
	existing, err := s.repo.FindReservationByIdempotencyKey(ctx, in.TicketTypeID, in.IdempotencyKey)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Quantity != in.Quantity {
		return nil, domain.ErrIdempotencyConflict
	}
	return existing, nil
}

// admit runs the counter store gate, seeding the counter from the ledger
// on a cold start.
func (s *ReservationService) admit(ctx context.Context, tt domain.TicketType, res domain.Reservation) (bool, error) {
	markerTTL := s.cfg.TTL + s.cfg.MarkerGrace
	var admitted bool
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		ok, err := s.counter.Reserve(ctx, tt.ID, res.ID, res.Quantity, markerTTL)
		if errors.Is(err, domain.ErrCounterNotSeeded) {
			if _, err := s.counter.Initialize(ctx, tt.ID, tt.Available()); err != nil {
				return err
			}
			ok, err = s.counter.Reserve(ctx, tt.ID, res.ID, res.Quantity, markerTTL)
		}
		if err != nil {
			return err
		}
		admitted = ok
		return nil
	})
	return admitted, err
}

func (s *ReservationService) releaseCounter(ctx context.Context, res domain.Reservation) {
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		_, err := s.counter.Release(ctx, res.TicketTypeID, res.ID)
		return err
	})
	if err != nil {
		metrics.TrackCounterReleaseFailure()
		s.logger.Warn("counter release failed",
			"reservation_id", res.ID,
			"ticket_type_id", res.TicketTypeID,
			"error", err,
		)
	}
}

// Release cancels an unclaimed reservation. Unknown ids are treated as
// already released.
func (s *ReservationService) Release(ctx context.Context, id string) (bool, error) {
	return s.release(ctx, id, false, "client")
}

// ReleaseClaimed releases a reservation that an order claimed, after that
// order failed or was cancelled.
func (s *ReservationService) ReleaseClaimed(ctx context.Context, id string, reason string) (bool, error) {
	return s.release(ctx, id, true, reason)
}

func (s *ReservationService) release(ctx context.Context, id string, allowClaimed bool, reason string) (bool, error) {
	var res domain.Reservation
	var released bool
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		released = false
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			res, err = s.repo.GetReservationForUpdate(txCtx, id)
			if err != nil {
				if errors.Is(err, domain.ErrReservationNotFound) {
					return nil
				}
				return err
			}
			if res.Claimed() && !allowClaimed {
				return domain.ErrReservationClaimed
			}
			deleted, err := s.repo.DeleteReservation(txCtx, id)
			if err != nil || !deleted {
				return err
			}
			released = true
			return s.repo.AdjustReserved(txCtx, res.TicketTypeID, -res.Quantity)
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidID) {
			return false, nil
		}
		return false, err
	}
	if !released {
		return false, nil
	}

	metrics.TrackRelease(reason)
	s.releaseCounter(ctx, res)
	s.logger.Info("reservation released",
		"reservation_id", res.ID,
		"ticket_type_id", res.TicketTypeID,
		"quantity", res.Quantity,
		"reason", reason,
	)
	return true, nil
}

// SweepExpired releases expired reservations that no order has claimed.
// Claimed ones are settled by the payment reconciler.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredReservations(ctx, s.clock.Now(), s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	swept := 0
	var errs []error
	for _, res := range expired {
		ok, err := s.release(ctx, res.ID, false, "expired")
		if err != nil {
			if errors.Is(err, domain.ErrReservationClaimed) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if ok {
			swept++
		}
	}
	return swept, errors.Join(errs...)
}

// Reconcile rewrites counters that disagree with the ledger's view of
// availability. A missing counter is seeded at once. A present one is only
// overwritten when the previous pass saw the same counter and ledger
// values, so a reserve or release caught between the two reads is not
// mistaken for drift. It returns how many counters were corrected.
func (s *ReservationService) Reconcile(ctx context.Context) (int, error) {
	types, err := s.repo.ListTicketTypes(ctx)
	if err != nil {
		return 0, err
	}

	s.driftMu.Lock()
	defer s.driftMu.Unlock()

	corrected := 0
	var errs []error
	for _, tt := range types {
		want := tt.Available()
		metrics.SetAvailable(tt.ID, want)

		got, ok, err := s.counter.Available(ctx, tt.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			delete(s.drift, tt.ID)
			seeded, err := s.counter.Initialize(ctx, tt.ID, want)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if seeded {
				corrected++
				metrics.TrackCounterCorrection()
				s.logger.Warn("counter seeded from ledger", "ticket_type_id", tt.ID, "ledger", want)
			}
			continue
		}
		if got == want {
			delete(s.drift, tt.ID)
			continue
		}

		reading := driftReading{counter: got, ledger: want}
		if prev, seen := s.drift[tt.ID]; !seen || prev != reading {
			s.drift[tt.ID] = reading
			s.logger.Debug("counter drift observed", "ticket_type_id", tt.ID, "counter", got, "ledger", want)
			continue
		}
		delete(s.drift, tt.ID)
		if err := s.counter.Overwrite(ctx, tt.ID, want); err != nil {
			errs = append(errs, err)
			continue
		}
		corrected++
		metrics.TrackCounterCorrection()
		s.logger.Warn("counter drift corrected",
			"ticket_type_id", tt.ID,
			"counter", got,
			"ledger", want,
		)
	}
	return corrected, errors.Join(errs...)
}

func reservationResult(err error) string {
	if errors.Is(err, domain.ErrInsufficientInventory) {
		return "rejected"
	}
	return "error"
}
