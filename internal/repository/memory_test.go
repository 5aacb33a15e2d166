package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

func TestMemoryRepository_UnknownAccountIsZero(t *testing.T) {
	repo := NewMemoryRepository()

	acc, err := repo.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, model.Account{Identity: "alice"}, acc)
}

func TestMemoryRepository_CommitPersistsChanges(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, "alice")
		if err != nil {
			return err
		}
		acc.DepositBalance = 100
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		st, err := tx.LockState(ctx)
		if err != nil {
			return err
		}
		st.TotalDeposits += 100
		st.Custodied += 100
		if err := tx.SaveState(ctx, st); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, model.Event{ID: uuid.New(), Kind: model.EventDeposit, Identity: "alice", Amount: 100})
	})
	require.NoError(t, err)

	acc, err := repo.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(100), acc.DepositBalance)

	st, err := repo.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.State{TotalDeposits: 100, Custodied: 100}, st)

	events, err := repo.GetEventsByIdentity(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDeposit, events[0].Kind)
}

func TestMemoryRepository_ErrorRollsBack(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := repo.InTx(ctx, func(tx Tx) error {
		acc, _ := tx.LockAccount(ctx, "alice")
		acc.DepositBalance = 500
		_ = tx.SaveAccount(ctx, acc)
		st, _ := tx.LockState(ctx)
		st.Paused = true
		_ = tx.SaveState(ctx, st)
		_ = tx.AppendEvent(ctx, model.Event{ID: uuid.New(), Identity: "alice"})
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	acc, err := repo.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, acc.DepositBalance)

	st, err := repo.GetState(ctx)
	require.NoError(t, err)
	assert.False(t, st.Paused)

	events, err := repo.GetEventsByIdentity(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryRepository_EventsNewestFirstWithLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
			return tx.AppendEvent(ctx, model.Event{ID: uuid.New(), Identity: "alice", Amount: model.Amount(i), CreatedAt: at})
		}))
	}

	events, err := repo.GetEventsByIdentity(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.Amount(2), events[0].Amount)
	assert.Equal(t, model.Amount(1), events[1].Amount)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.InTx(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
