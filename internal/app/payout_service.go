package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/fees"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
)

type PayoutRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockOrganizer serialises payout requests for one organizer until the
	// transaction ends.
	LockOrganizer(ctx context.Context, organizerID string) error
	ListPaidOrdersByOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error)
	ListPayouts(ctx context.Context, organizerID string) ([]domain.Payout, error)
	GetBankAccount(ctx context.Context, organizerID string) (*domain.BankAccount, error)
	UpsertBankAccount(ctx context.Context, acct domain.BankAccount) error
	CreatePayout(ctx context.Context, p domain.Payout) error
}

type PayoutConfig struct {
	Fees          fees.Config
	MinimumPayout decimal.Decimal
}

type PayoutService struct {
	base
	repo PayoutRepository
	cfg  PayoutConfig
}

func NewPayoutService(repo PayoutRepository, clk clock.Clock, cfg PayoutConfig, opts ...Option) *PayoutService {
	return &PayoutService{
		base: newBase(clk, opts),
		repo: repo,
		cfg:  cfg,
	}
}

// Balance replays the organizer's paid orders and payouts.
func (s *PayoutService) Balance(ctx context.Context, organizerID string) (fees.Summary, error) {
	if organizerID == "" {
		return fees.Summary{}, domain.ErrOrganizerRequired
	}
	return s.summary(ctx, organizerID)
}

func (s *PayoutService) summary(ctx context.Context, organizerID string) (fees.Summary, error) {
	orders, err := s.repo.ListPaidOrdersByOrganizer(ctx, organizerID)
	if err != nil {
		return fees.Summary{}, err
	}
	payouts, err := s.repo.ListPayouts(ctx, organizerID)
	if err != nil {
		return fees.Summary{}, err
	}

	entries := make([]fees.OrderEntry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, fees.OrderEntry{
			OrderID:     o.ID,
			Amount:      o.OrganizerAmount(),
			TicketCount: o.TicketCount,
			CreatedAt:   o.CreatedAt,
		})
	}
	past := make([]fees.PayoutEntry, 0, len(payouts))
	for _, p := range payouts {
		past = append(past, fees.PayoutEntry{Amount: p.Amount, Status: p.Status})
	}
	return s.cfg.Fees.Replay(entries, past, s.clock.Now()), nil
}

func (s *PayoutService) History(ctx context.Context, organizerID string) ([]domain.Payout, error) {
	if organizerID == "" {
		return nil, domain.ErrOrganizerRequired
	}
	return s.repo.ListPayouts(ctx, organizerID)
}

func (s *PayoutService) SetBankAccount(ctx context.Context, acct domain.BankAccount) error {
	if acct.OrganizerID == "" {
		return domain.ErrOrganizerRequired
	}
	acct.BankName = strings.TrimSpace(acct.BankName)
	acct.AccountNumber = strings.TrimSpace(acct.AccountNumber)
	acct.AccountName = strings.TrimSpace(acct.AccountName)
	if !acct.Valid() {
		return domain.ErrInvalidBankAccount
	}
	return s.repo.UpsertBankAccount(ctx, acct)
}

// RequestPayout records a PENDING payout if amount fits within the balance
// that has cleared the hold period and is not already claimed by another
// in-flight payout.
func (s *PayoutService) RequestPayout(ctx context.Context, organizerID string, amount decimal.Decimal) (domain.Payout, error) {
	if organizerID == "" {
		return domain.Payout{}, domain.ErrOrganizerRequired
	}
	if !amount.IsPositive() {
		return domain.Payout{}, domain.ErrInvalidAmount
	}
	if amount.LessThan(s.cfg.MinimumPayout) {
		metrics.TrackPayoutRequest("below_minimum")
		return domain.Payout{}, domain.ErrPayoutBelowMinimum
	}

	var payout domain.Payout
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockOrganizer(txCtx, organizerID); err != nil {
			return err
		}
		acct, err := s.repo.GetBankAccount(txCtx, organizerID)
		if err != nil {
			return err
		}
		if acct == nil {
			return domain.ErrBankAccountRequired
		}

		sum, err := s.summary(txCtx, organizerID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(sum.Withdrawable()) {
			return domain.ErrPayoutExceedsAvailable
		}

		payout = domain.Payout{
			ID:          newID(),
			OrganizerID: organizerID,
			Amount:      amount,
			Status:      domain.PayoutStatusPending,
			BankAccount: *acct,
			RequestedAt: s.clock.Now(),
		}
		return s.repo.CreatePayout(txCtx, payout)
	})
	if err != nil {
		metrics.TrackPayoutRequest("rejected")
		return domain.Payout{}, err
	}

	metrics.TrackPayoutRequest("accepted")
	s.logger.Info("payout requested",
		"payout_id", payout.ID,
		"organizer_id", organizerID,
		"amount", amount.StringFixed(2),
	)
	return payout, nil
}
