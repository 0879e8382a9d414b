package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyIdemOrderCreate = "idem:order:create:%s:%s"
	KeyWebhookDelivery = "dedup:webhook:%s:%s"

	TTLIdempotency   = 24 * time.Hour
	TTLWebhookDedupe = 48 * time.Hour

	opTimeout = 2 * time.Second
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
}

// Guard is a best-effort fast path in front of the database. A nil Guard
// turns every check into a pass-through.
type Guard struct {
	rdb *redis.Client
}

func NewGuard(rdb *redis.Client) *Guard {
	if rdb == nil {
		return nil
	}
	return &Guard{rdb: rdb}
}

// Ping checks connectivity.
func (g *Guard) Ping(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.rdb.Ping(ctx).Err()
}

// IdempotencyKey namespaces a client key by the caller it belongs to, so one
// caller's key never resolves to another caller's order.
func IdempotencyKey(scope, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, scope, key)
}

// RememberOrder maps a caller's Idempotency-Key to the order it created.
func (g *Guard) RememberOrder(ctx context.Context, scope, key, orderID string) error {
	if g == nil || key == "" {
		return nil
	}
	return g.rdb.Set(ctx, IdempotencyKey(scope, key), orderID, TTLIdempotency).Err()
}

// LookupOrder returns the order created for a caller's Idempotency-Key, if any.
func (g *Guard) LookupOrder(ctx context.Context, scope, key string) (string, bool, error) {
	if g == nil || key == "" {
		return "", false, nil
	}
	id, err := g.rdb.Get(ctx, IdempotencyKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// FirstDelivery reports whether this (order, status) webhook has not been
// seen before and claims it.
func (g *Guard) FirstDelivery(ctx context.Context, orderID, status string) (bool, error) {
	if g == nil {
		return true, nil
	}
	return g.rdb.SetNX(ctx, fmt.Sprintf(KeyWebhookDelivery, orderID, status), time.Now().Unix(), TTLWebhookDedupe).Result()
}

// Forget releases a claim taken by FirstDelivery so a retry is processed.
func (g *Guard) Forget(ctx context.Context, orderID, status string) error {
	if g == nil {
		return nil
	}
	return g.rdb.Del(ctx, fmt.Sprintf(KeyWebhookDelivery, orderID, status)).Err()
}

func (g *Guard) Close() error {
	if g == nil {
		return nil
	}
	return g.rdb.Close()
}
