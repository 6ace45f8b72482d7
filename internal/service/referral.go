package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/repository"
)

// ReferralService pays the referrer a one-time bonus when the user they
// referred funds their wallet for the first time.
type ReferralService struct {
	bonusRate decimal.Decimal
}

func NewReferralService(bonusRate decimal.Decimal) *ReferralService {
	return &ReferralService{bonusRate: bonusRate}
}

// ReferralBonus describes a bonus paid inside a deposit settlement, so the
// caller can notify the referrer after commit.
type ReferralBonus struct {
	ReferrerID uuid.UUID
	Amount     decimal.Decimal
}

// ReferrerOf returns the referrer for a user whose bonus is still unpaid,
// or nil. Used to include the referrer in the settlement lock set.
func (s *ReferralService) ReferrerOf(ctx context.Context, q repository.Queries, userID uuid.UUID) (*uuid.UUID, error) {
	edge, err := q.GetReferralEdgeForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup referral edge: %w", err)
	}
	if edge.HasFundedWallet {
		return nil, nil
	}
	return &edge.ReferrerID, nil
}

// AwardInTx pays the first-funding bonus inside the caller's transaction.
// Returns nil when the user has no referrer or the bonus was already paid.
// The referrer's portfolio must already be in the caller's lock set.
func (s *ReferralService) AwardInTx(ctx context.Context, q repository.Queries, depositorID uuid.UUID, depositAmount decimal.Decimal) (*ReferralBonus, error) {
	edge, err := q.GetReferralEdgeForUpdate(ctx, depositorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock referral edge: %w", err)
	}
	if edge.HasFundedWallet {
		return nil, nil
	}

	rows, err := q.MarkReferralFunded(ctx, depositorID)
	if err != nil {
		return nil, fmt.Errorf("mark referral funded: %w", err)
	}
	if rows == 0 {
		// A concurrent settlement won the funding race.
		return nil, nil
	}

	bonus := depositAmount.Mul(s.bonusRate).Round(domain.BalancePlaces)
	if err := q.CreditPortfolio(ctx, edge.ReferrerID, bonus); err != nil {
		if errors.Is(err, models.ErrAccountFrozen) {
			// The funding event still counts; the bonus is forfeit while
			// the referrer is frozen.
			zap.L().Warn("referral bonus skipped, referrer frozen",
				zap.String("referrer_id", edge.ReferrerID.String()),
				zap.String("referred_user_id", depositorID.String()))
			return nil, nil
		}
		return nil, fmt.Errorf("credit referral bonus: %w", err)
	}

	return &ReferralBonus{ReferrerID: edge.ReferrerID, Amount: bonus}, nil
}
