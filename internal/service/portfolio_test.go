package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
)

func TestProvisionAssignsIdentifiers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.portfolios.Provision(ctx, uuid.New(), false, "")
	require.NoError(t, err)

	assert.True(t, p.BalanceUSD.IsZero())
	assert.Len(t, p.ReferralCode, 8)
	assert.Len(t, p.AccountNumber, 12)
	assert.Nil(t, p.ReferredBy)

	other, err := env.portfolios.Provision(ctx, uuid.New(), true, "")
	require.NoError(t, err)
	assert.True(t, other.IsMerchant)
	assert.NotEqual(t, p.ReferralCode, other.ReferralCode)
	assert.NotEqual(t, p.AccountNumber, other.AccountNumber)
}

func TestFreezeBlocksAllMovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 500, false)
	admin := uuid.New()

	require.NoError(t, env.portfolios.Freeze(ctx, user.UserID, admin, "court order"))

	got, err := env.portfolios.Get(ctx, user.UserID)
	require.NoError(t, err)
	assert.True(t, got.IsFrozen)
	assert.Equal(t, "court order", got.FrozenReason)
	require.NotNil(t, got.FrozenBy)
	assert.Equal(t, admin, *got.FrozenBy)

	_, err = env.withdrawals.CreateExternal(ctx, user.UserID, decimal.NewFromInt(10), "bank:x")
	assert.ErrorIs(t, err, models.ErrAccountFrozen)

	require.NoError(t, env.portfolios.Unfreeze(ctx, user.UserID, admin))

	got, err = env.portfolios.Get(ctx, user.UserID)
	require.NoError(t, err)
	assert.False(t, got.IsFrozen)
	assert.Empty(t, got.FrozenReason)

	_, err = env.withdrawals.CreateExternal(ctx, user.UserID, decimal.NewFromInt(10), "bank:x")
	require.NoError(t, err)

	logs := env.store.AdminLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionFrozen, logs[0].Action)
	assert.Equal(t, domain.ActionUnfrozen, logs[1].Action)
}

func TestFreezeUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	err := env.portfolios.Freeze(context.Background(), uuid.New(), uuid.New(), "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetMerchant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 0, false)

	require.NoError(t, env.portfolios.SetMerchant(ctx, user.UserID, true))

	got, err := env.portfolios.Get(ctx, user.UserID)
	require.NoError(t, err)
	assert.True(t, got.IsMerchant)

	err = env.portfolios.SetMerchant(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
