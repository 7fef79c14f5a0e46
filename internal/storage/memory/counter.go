// Package memory holds an in-process counter store for single-node runs
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

type marker struct {
	ticketTypeID string
	qty          int
	expiresAt    time.Time
}

// CounterStore keeps per ticket type availability and hold markers behind
// one mutex, which gives the same all-or-nothing behaviour as the Redis
// scripts.
type CounterStore struct {
	mu        sync.Mutex
	available map[string]int
	markers   map[string]marker
	clock     clock.Clock
}

func NewCounterStore(clk clock.Clock) *CounterStore {
	return &CounterStore{
		available: make(map[string]int),
		markers:   make(map[string]marker),
		clock:     clk,
	}
}

func (s *CounterStore) Reserve(ctx context.Context, ticketTypeID, reservationID string, qty int, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.live(reservationID); ok && m.ticketTypeID == ticketTypeID {
		return true, nil
	}
	avail, ok := s.available[ticketTypeID]
	if !ok {
		return false, domain.ErrCounterNotSeeded
	}
	if avail < qty {
		return false, nil
	}
	s.available[ticketTypeID] = avail - qty
	s.markers[reservationID] = marker{
		ticketTypeID: ticketTypeID,
		qty:          qty,
		expiresAt:    s.clock.Now().Add(ttl),
	}
	return true, nil
}

func (s *CounterStore) Release(ctx context.Context, ticketTypeID, reservationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live(reservationID)
	if !ok || m.ticketTypeID != ticketTypeID {
		return false, nil
	}
	delete(s.markers, reservationID)
	if avail, seeded := s.available[ticketTypeID]; seeded {
		s.available[ticketTypeID] = avail + m.qty
	}
	return true, nil
}

func (s *CounterStore) Initialize(ctx context.Context, ticketTypeID string, available int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.available[ticketTypeID]; ok {
		return false, nil
	}
	s.available[ticketTypeID] = available
	return true, nil
}

func (s *CounterStore) Consume(ctx context.Context, ticketTypeID, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if m, ok := s.markers[reservationID]; ok && m.ticketTypeID == ticketTypeID {
		delete(s.markers, reservationID)
	}
	s.mu.Unlock()
	return nil
}

func (s *CounterStore) Available(ctx context.Context, ticketTypeID string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.available[ticketTypeID]
	return n, ok, nil
}

func (s *CounterStore) Overwrite(ctx context.Context, ticketTypeID string, available int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.available[ticketTypeID] = available
	s.mu.Unlock()
	return nil
}

// Flush drops every counter and marker, as a cache restart would.
func (s *CounterStore) Flush() {
	s.mu.Lock()
	s.available = make(map[string]int)
	s.markers = make(map[string]marker)
	s.mu.Unlock()
}

// live returns the marker if it has not expired. Expired markers are
// dropped. Caller holds mu.
func (s *CounterStore) live(reservationID string) (marker, bool) {
	m, ok := s.markers[reservationID]
	if !ok {
		return marker{}, false
	}
	if !s.clock.Now().Before(m.expiresAt) {
		delete(s.markers, reservationID)
		return marker{}, false
	}
	return m, true
}
