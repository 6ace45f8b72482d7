package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/models"
)

// AuditService writes immutable admin action records. Entries are written
// after the settlement transaction commits; a failed write is logged and
// never unwinds the settlement.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Record stores a single admin action entry.
func (s *AuditService) Record(ctx context.Context, actorID uuid.UUID, action, txKind string, txID, affectedID uuid.UUID) {
	err := s.store.Queries().InsertAdminLog(ctx, &models.AdminLog{
		ActorID:    actorID,
		Action:     action,
		TxKind:     txKind,
		TxID:       txID,
		AffectedID: affectedID,
	})
	if err != nil {
		zap.L().Error("admin log write failed",
			zap.String("actor_id", actorID.String()),
			zap.String("action", action),
			zap.String("tx_id", txID.String()),
			zap.Error(err))
	}
}
