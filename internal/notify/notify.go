package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/repository"
)

// Notifier delivers user-facing notifications. Delivery is best effort: a
// failed notification must never fail the settlement that produced it.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message, txKind string, txID *uuid.UUID)
}

// StoreNotifier persists notifications to the user's in-app inbox.
type StoreNotifier struct {
	store repository.Store
}

func NewStoreNotifier(store repository.Store) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (n *StoreNotifier) Notify(ctx context.Context, userID uuid.UUID, title, message, txKind string, txID *uuid.UUID) {
	err := n.store.Queries().InsertNotification(ctx, &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		TxKind:  txKind,
		TxID:    txID,
	})
	if err != nil {
		zap.L().Warn("notification delivery failed",
			zap.String("user_id", userID.String()),
			zap.String("title", title),
			zap.Error(err))
	}
}

// NoopNotifier drops all notifications.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, uuid.UUID, string, string, string, *uuid.UUID) {}
