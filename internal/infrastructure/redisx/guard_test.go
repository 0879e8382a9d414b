package redisx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuard_NilClient(t *testing.T) {
	assert.Nil(t, NewGuard(nil))
}

func TestGuard_NilIsPassThrough(t *testing.T) {
	var g *Guard
	ctx := context.Background()

	require.NoError(t, g.Ping(ctx))
	require.NoError(t, g.RememberOrder(ctx, "user-1", "key-1", "INV-1"))

	id, found, err := g.LookupOrder(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)

	first, err := g.FirstDelivery(ctx, "INV-1", "paid")
	require.NoError(t, err)
	assert.True(t, first)

	assert.NoError(t, g.Forget(ctx, "INV-1", "paid"))
	assert.NoError(t, g.Close())
}

func TestGuard_EmptyIdempotencyKeySkipsRedis(t *testing.T) {
	// An unreachable address would fail any real command.
	g := NewGuard(New("127.0.0.1:1"))
	defer g.Close()
	ctx := context.Background()

	require.NoError(t, g.RememberOrder(ctx, "user-1", "", "INV-1"))
	_, found, err := g.LookupOrder(ctx, "user-1", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyKey_ScopedPerCaller(t *testing.T) {
	assert.Equal(t, "idem:order:create:user-1:key-1", IdempotencyKey("user-1", "key-1"))
	assert.NotEqual(t, IdempotencyKey("user-1", "key-1"), IdempotencyKey("user-2", "key-1"))
	assert.NotEqual(t, IdempotencyKey("guest:a@example.com", "key-1"), IdempotencyKey("guest:b@example.com", "key-1"))
}
