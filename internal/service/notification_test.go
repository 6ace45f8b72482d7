package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/models"
)

func TestNotificationInbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store)
	sender := env.seedPortfolio(t, 100, false)
	recipient := env.seedPortfolio(t, 0, false)

	_, err := env.withdrawals.Transfer(ctx, sender.UserID, recipient.AccountNumber, decimal.NewFromInt(25))
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, recipient.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	ns, err := svc.List(ctx, recipient.UserID, 50, 0)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "Funds received", ns[0].Title)

	require.NoError(t, svc.MarkRead(ctx, ns[0].ID, recipient.UserID))

	unread, err = svc.UnreadCount(ctx, recipient.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// Reading someone else's row is indistinguishable from it not existing.
	err = svc.MarkRead(ctx, ns[0].ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
