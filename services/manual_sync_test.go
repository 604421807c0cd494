package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"stacksave-sync/chain/chaintest"
	"stacksave-sync/models"
	"stacksave-sync/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncGoal_OverwritesStateOnly(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFakeClient()
	mem := store.NewMemoryStore()
	svc := NewManualSyncService(fake, mem)

	fake.SetGoalState(1, goalState(1, 50, 52, 2, 1))
	require.NoError(t, svc.SyncGoal(ctx, 1))

	goal, err := mem.GetGoal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(goal.DepositedAmount.Decimal))
	assert.True(t, decimal.NewFromInt(52).Equal(goal.CurrentValue.Decimal))
	assert.Equal(t, models.GoalStatusCompleted, goal.Status)
	assert.Nil(t, goal.LastDepositTime)
	assert.Empty(t, mem.Transactions(1))

	saves, err := mem.ListDailySaves(ctx, 1, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, saves)
}

func TestSyncGoal_PropagatesChainErrors(t *testing.T) {
	fake := chaintest.NewFakeClient()
	svc := NewManualSyncService(fake, store.NewMemoryStore())

	rpcErr := errors.New("connection refused")
	fake.FailReads(1, rpcErr)

	err := svc.SyncGoal(context.Background(), 1)
	assert.ErrorIs(t, err, rpcErr)
}

func TestSyncUserGoals_AbortsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFakeClient()
	mem := store.NewMemoryStore()
	svc := NewManualSyncService(fake, mem)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 3; i++ {
		g := models.Goal{ID: i, Owner: testOwner.Hex()}
		g.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		mem.PutGoal(g)
		fake.SetGoalState(i, goalState(i, 100, 100, 0, 0))
	}
	// goals are synced newest first: 3, 2, 1
	rpcErr := errors.New("rate limited")
	fake.FailReads(2, rpcErr)

	synced, err := svc.SyncUserGoals(ctx, testOwner.Hex())
	assert.ErrorIs(t, err, rpcErr)
	assert.Equal(t, 1, synced)

	g3, err := mem.GetGoal(ctx, 3)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(g3.DepositedAmount.Decimal), "goals synced before the failure stay updated")

	g1, err := mem.GetGoal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, g1.DepositedAmount.IsZero(), "goals after the failure are not touched")
}

func TestSyncUserGoals_CaseInsensitiveOwner(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.NewFakeClient()
	mem := store.NewMemoryStore()
	svc := NewManualSyncService(fake, mem)

	mem.PutGoal(models.Goal{ID: 9, Owner: testOwner.Hex()})
	fake.SetGoalState(9, goalState(9, 5, 5, 0, 0))

	synced, err := svc.SyncUserGoals(ctx, "0X9A8B7C6D5E4F30211203F4E5D6C7B8A9F0E1D2C3")
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	synced, err = svc.SyncUserGoals(ctx, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
}
