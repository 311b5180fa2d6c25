// Package redisstock implements a Redis-backed stock guard. The counter in
// Redis is a fast cross-instance gate in front of the event-sourced ledger;
// the ledger remains the source of truth.
package redisstock

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReserve atomically reads the counter, checks it covers the requested
// quantity and decrements. Returns the remaining stock, or -1 when short.
const luaReserve = `
local key = KEYS[1]
local decr = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', key) or '-1')
if current < 0 then
  return -2
end
if current >= decr then
  return redis.call('DECRBY', key, decr)
end
return -1
`

// luaReleaseOnce restores stock at most once per token. A SETNX lock keyed by
// the token absorbs duplicate compensations (retried cancels, replayed
// messages).
const luaReleaseOnce = `
local lockKey = KEYS[1]
local stockKey = KEYS[2]
local quantity = tonumber(ARGV[1])
local ttlSec = tonumber(ARGV[2])

if redis.call('SETNX', lockKey, '1') == 1 then
  redis.call('EXPIRE', lockKey, ttlSec)
  redis.call('INCRBY', stockKey, quantity)
  return 1
end
return 0
`

const releaseLockTTL = 7 * 24 * time.Hour

func stockKey(productID string) string {
	return fmt.Sprintf("stock:count:%s", productID)
}

func releaseLockKey(token string) string {
	return fmt.Sprintf("stock:released:%s", token)
}

// Guard wraps a Redis client as an inventory fast path.
type Guard struct {
	client *rd.Client
}

func NewGuard(client *rd.Client) *Guard {
	return &Guard{client: client}
}

// Reserve returns (false, nil) when the counter is insufficient and
// (true, nil) after a successful decrement. A missing counter is an error,
// not a sold-out signal, so an unseeded guard never rejects sales silently.
func (g *Guard) Reserve(ctx context.Context, productID string, quantity int) (bool, error) {
	n, err := g.client.Eval(ctx, luaReserve, []string{stockKey(productID)}, quantity).Int()
	if err != nil {
		return false, err
	}
	switch n {
	case -2:
		return false, fmt.Errorf("stock counter not preloaded for product %s", productID)
	case -1:
		return false, nil
	default:
		return true, nil
	}
}

// Release restores quantity units, at most once per token.
func (g *Guard) Release(ctx context.Context, productID, token string, quantity int) error {
	ttlSec := int64(releaseLockTTL / time.Second)
	_, err := g.client.Eval(ctx, luaReleaseOnce,
		[]string{releaseLockKey(token), stockKey(productID)},
		quantity, ttlSec).Int()
	return err
}

// Preload sets the counter to the ledger's current stock.
func (g *Guard) Preload(ctx context.Context, productID string, stock int) error {
	return g.client.Set(ctx, stockKey(productID), stock, 0).Err()
}

// Stock reads the current counter value; -1 means not preloaded.
func (g *Guard) Stock(ctx context.Context, productID string) (int, error) {
	v, err := g.client.Get(ctx, stockKey(productID)).Int()
	if err == rd.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}
