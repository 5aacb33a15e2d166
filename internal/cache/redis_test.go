package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := New(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestSetAndGetAccount(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	expected := model.Account{
		Identity:           "alice",
		DepositBalance:     95,
		SubscriptionExpiry: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DailyPasses:        3,
		HasReferrer:        true,
	}
	require.NoError(t, c.SetAccount(ctx, expected))

	got, found, err := c.GetAccount(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.DepositBalance, got.DepositBalance)
	assert.True(t, expected.SubscriptionExpiry.Equal(got.SubscriptionExpiry))
	assert.Equal(t, expected.DailyPasses, got.DailyPasses)
	assert.True(t, got.HasReferrer)
}

func TestGetAccountMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	_, found, err := c.GetAccount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetAccount(ctx, model.Account{Identity: "alice", DepositBalance: 1}))
	require.NoError(t, c.Invalidate(ctx, "alice"))

	_, found, err := c.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetAccount(ctx, model.Account{Identity: "alice"}))
	mr.FastForward(2 * time.Minute)

	_, found, err := c.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewFailsOnBadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}
