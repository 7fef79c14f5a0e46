package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type PayoutRepository struct {
	db
}

func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{db: db{pool: pool}}
}

func (r *PayoutRepository) LockOrganizer(ctx context.Context, organizerID string) error {
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('payout:' || $1))`, organizerID); err != nil {
		return wrapErr("lock organizer", err)
	}
	return nil
}

// ListPaidOrdersByOrganizer returns PAID orders oldest first.
func (r *PayoutRepository) ListPaidOrdersByOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error) {
	rows, err := r.query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE organizer_id = $1 AND status = 'PAID'
ORDER BY created_at, id`,
		organizerID,
	)
	if err != nil {
		return nil, wrapErr("list paid orders", err)
	}
	orders, err := collect(rows, scanOrder)
	if err != nil {
		return nil, wrapErr("list paid orders", err)
	}
	return orders, nil
}

func scanPayout(row pgx.Row) (domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.OrganizerID, &p.Amount, &p.Status,
		&p.BankAccount.BankName, &p.BankAccount.AccountNumber, &p.BankAccount.AccountName,
		&p.RequestedAt, &p.ProcessedAt)
	p.BankAccount.OrganizerID = p.OrganizerID
	return p, err
}

func (r *PayoutRepository) ListPayouts(ctx context.Context, organizerID string) ([]domain.Payout, error) {
	rows, err := r.query(ctx, `
SELECT id, organizer_id, amount, status, bank_name, account_number, account_name, requested_at, processed_at
FROM payouts
WHERE organizer_id = $1
ORDER BY requested_at DESC`,
		organizerID,
	)
	if err != nil {
		return nil, wrapErr("list payouts", err)
	}
	payouts, err := collect(rows, scanPayout)
	if err != nil {
		return nil, wrapErr("list payouts", err)
	}
	return payouts, nil
}

func (r *PayoutRepository) GetBankAccount(ctx context.Context, organizerID string) (*domain.BankAccount, error) {
	b := domain.BankAccount{OrganizerID: organizerID}
	err := r.queryRow(ctx,
		`SELECT bank_name, account_number, account_name FROM bank_accounts WHERE organizer_id = $1`,
		organizerID,
	).Scan(&b.BankName, &b.AccountNumber, &b.AccountName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get bank account", err)
	}
	return &b, nil
}

func (r *PayoutRepository) UpsertBankAccount(ctx context.Context, acct domain.BankAccount) error {
	_, err := r.exec(ctx, `
INSERT INTO bank_accounts (organizer_id, bank_name, account_number, account_name, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (organizer_id) DO UPDATE
SET bank_name = EXCLUDED.bank_name,
    account_number = EXCLUDED.account_number,
    account_name = EXCLUDED.account_name,
    updated_at = NOW()`,
		acct.OrganizerID, acct.BankName, acct.AccountNumber, acct.AccountName,
	)
	if err != nil {
		return wrapErr("upsert bank account", err)
	}
	return nil
}

func (r *PayoutRepository) CreatePayout(ctx context.Context, p domain.Payout) error {
	_, err := r.exec(ctx, `
INSERT INTO payouts (id, organizer_id, amount, status, bank_name, account_number, account_name, requested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrganizerID, p.Amount, string(p.Status),
		p.BankAccount.BankName, p.BankAccount.AccountNumber, p.BankAccount.AccountName,
		p.RequestedAt,
	)
	if err != nil {
		return wrapErr("create payout", err)
	}
	return nil
}
