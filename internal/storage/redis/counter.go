// Package redis implements the inventory counter store on Redis. Test and
// decrement run inside Lua scripts so they are indivisible on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// KEYS[1] counter, KEYS[2] marker. ARGV[1] qty, ARGV[2] marker ttl in ms.
// Returns -1 when the counter is not seeded, 0 when short, 1 when admitted.
// An existing marker means this reservation was already admitted, so a
// retried call after a timeout does not take the units twice.
const reserveScript = `
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 1
end
local avail = redis.call('GET', KEYS[1])
if not avail then
  return -1
end
local qty = tonumber(ARGV[1])
if tonumber(avail) < qty then
  return 0
end
redis.call('DECRBY', KEYS[1], qty)
redis.call('SET', KEYS[2], qty, 'PX', ARGV[2])
return 1
`

// KEYS[1] counter, KEYS[2] marker. Restores the marker's quantity once and
// only into a counter that still exists.
const releaseScript = `
local qty = redis.call('GET', KEYS[2])
if not qty then
  return 0
end
redis.call('DEL', KEYS[2])
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('INCRBY', KEYS[1], qty)
end
return 1
`

const defaultTimeout = 1500 * time.Millisecond

type CounterStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewCounterStore returns a store whose calls each give up after timeout.
// A zero timeout uses 1.5s.
func NewCounterStore(client redis.UniversalClient, prefix string, timeout time.Duration) *CounterStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CounterStore{client: client, prefix: prefix, timeout: timeout}
}

// Both keys share the ticket type hash tag so the scripts stay on one slot
// in a cluster.
func (s *CounterStore) counterKey(ticketTypeID string) string {
	return s.prefix + "inventory:{" + ticketTypeID + "}:available"
}

func (s *CounterStore) markerKey(ticketTypeID, reservationID string) string {
	return s.prefix + "inventory:{" + ticketTypeID + "}:hold:" + reservationID
}

func unavailable(op string, err error) error {
	return fmt.Errorf("counter %s: %w: %w", op, domain.ErrCounterUnavailable, err)
}

func (s *CounterStore) Reserve(ctx context.Context, ticketTypeID, reservationID string, qty int, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys := []string{s.counterKey(ticketTypeID), s.markerKey(ticketTypeID, reservationID)}
	res, err := s.client.Eval(ctx, reserveScript, keys, qty, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable("reserve", err)
	}
	switch res {
	case -1:
		return false, domain.ErrCounterNotSeeded
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (s *CounterStore) Release(ctx context.Context, ticketTypeID, reservationID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys := []string{s.counterKey(ticketTypeID), s.markerKey(ticketTypeID, reservationID)}
	res, err := s.client.Eval(ctx, releaseScript, keys).Int64()
	if err != nil {
		return false, unavailable("release", err)
	}
	return res == 1, nil
}

// Initialize seeds the counter with SETNX so the first writer wins.
func (s *CounterStore) Initialize(ctx context.Context, ticketTypeID string, available int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.client.SetNX(ctx, s.counterKey(ticketTypeID), available, 0).Result()
	if err != nil {
		return false, unavailable("initialize", err)
	}
	return ok, nil
}

func (s *CounterStore) Consume(ctx context.Context, ticketTypeID, reservationID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.markerKey(ticketTypeID, reservationID)).Err(); err != nil {
		return unavailable("consume", err)
	}
	return nil
}

func (s *CounterStore) Available(ctx context.Context, ticketTypeID string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Get(ctx, s.counterKey(ticketTypeID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, unavailable("read", err)
	}
	return n, true, nil
}

func (s *CounterStore) Overwrite(ctx context.Context, ticketTypeID string, available int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.counterKey(ticketTypeID), available, 0).Err(); err != nil {
		return unavailable("overwrite", err)
	}
	return nil
}

// Ping reports whether Redis answers.
func (s *CounterStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
