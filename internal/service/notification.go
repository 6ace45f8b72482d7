package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/montero-exchange/ledger/internal/models"
)

// NotificationService reads the stored inbox.
type NotificationService struct {
	store QueryStore
}

func NewNotificationService(store QueryStore) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Notification, error) {
	return s.store.Queries().ListNotifications(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Queries().CountUnreadNotifications(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	rows, err := s.store.Queries().MarkNotificationRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
