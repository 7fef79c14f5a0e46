package app

import (
	"log/slog"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/retry"
)

// base carries the collaborators every service shares.
type base struct {
	clock  clock.Clock
	logger *slog.Logger
	retry  retry.Policy
}

type Option func(*base)

func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRetryPolicy overrides the policy wrapped around counter store, ledger
// and gateway calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(b *base) {
		b.retry = p
	}
}

func newBase(clk clock.Clock, opts []Option) base {
	b := base{
		clock:  clk,
		logger: slog.Default(),
		retry:  retry.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
