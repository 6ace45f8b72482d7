package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/notify"
	"github.com/montero-exchange/ledger/internal/observability"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/repository"
)

// SwapService runs time-delayed conversions out of the settlement asset and
// back. The destination price is frozen at creation; settlement liquidates
// at live prices, so the payout carries the destination asset's drift over
// the delay.
type SwapService struct {
	store           QueryStore
	audit           *AuditService
	notifier        notify.Notifier
	prices          oracle.PriceOracle
	settlementAsset string
	minLead         time.Duration
	maxLead         time.Duration
}

func NewSwapService(store QueryStore, audit *AuditService, notifier notify.Notifier, prices oracle.PriceOracle, settlementAsset string, minLead, maxLead time.Duration) *SwapService {
	return &SwapService{
		store:           store,
		audit:           audit,
		notifier:        notifier,
		prices:          prices,
		settlementAsset: settlementAsset,
		minLead:         minLead,
		maxLead:         maxLead,
	}
}

// Create escrows the swap amount and schedules settlement. The destination
// asset's current price is captured here and never rewritten.
func (s *SwapService) Create(ctx context.Context, userID uuid.UUID, toAsset string, amount decimal.Decimal, settleAt time.Time) (*models.SwapRequest, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if toAsset == s.settlementAsset {
		return nil, fmt.Errorf("destination asset must differ from %s", s.settlementAsset)
	}
	now := time.Now()
	if settleAt.Before(now.Add(s.minLead)) || settleAt.After(now.Add(s.maxLead)) {
		return nil, fmt.Errorf("%w: must be between %s and %s from now", ErrSettleWindow, s.minLead, s.maxLead)
	}

	originalToPrice, err := s.prices.Price(ctx, toAsset)
	if err != nil {
		return nil, fmt.Errorf("quote destination asset: %w", err)
	}
	if !originalToPrice.IsPositive() {
		return nil, fmt.Errorf("destination asset %s has no positive price", toAsset)
	}

	sw := &models.SwapRequest{
		ID:              uuid.New(),
		UserID:          userID,
		FromAsset:       s.settlementAsset,
		ToAsset:         toAsset,
		BackAsset:       s.settlementAsset,
		Amount:          amount.Round(domain.BalancePlaces),
		BackAmount:      decimal.Zero,
		OriginalToPrice: originalToPrice,
		Status:          domain.SwapStatusPending,
		SettleAt:        settleAt,
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		if _, err := q.LockPortfolios(ctx, userID); err != nil {
			return err
		}
		if err := q.DebitPortfolio(ctx, userID, sw.Amount); err != nil {
			return fmt.Errorf("escrow swap amount: %w", err)
		}
		return q.CreateSwap(ctx, sw)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("swap created",
		zap.String("swap_id", sw.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("to_asset", toAsset),
		zap.String("amount", sw.Amount.String()),
		zap.Time("settle_at", settleAt))
	return sw, nil
}

// Approve marks a pending swap as reviewed. Approval is advisory: both
// PENDING and APPROVED swaps settle when due.
func (s *SwapService) Approve(ctx context.Context, swapID, adminID uuid.UUID) (*models.SwapRequest, error) {
	var approved *models.SwapRequest

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		sw, err := q.GetSwapForUpdate(ctx, swapID)
		if err != nil {
			return err
		}
		if err := guardTransition(domain.TxKindSwap, sw.Status, domain.SwapStatusApproved); err != nil {
			return err
		}
		rows, err := q.UpdateSwapStatus(ctx, sw.ID, domain.SwapStatusApproved)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "approve swap"); err != nil {
			return err
		}
		sw.Status = domain.SwapStatusApproved
		approved = sw
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, domain.ActionApproved, domain.TxKindSwap, approved.ID, approved.UserID)
	return approved, nil
}

// Cancel refunds the escrowed amount of a swap that has not started
// settling. The owner or an admin may cancel.
func (s *SwapService) Cancel(ctx context.Context, swapID, actorID uuid.UUID, isAdmin bool) (*models.SwapRequest, error) {
	var cancelled *models.SwapRequest

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		sw, err := q.GetSwapForUpdate(ctx, swapID)
		if err != nil {
			return err
		}
		if sw.UserID != actorID && !isAdmin {
			return fmt.Errorf("%w: only the owner or an admin can cancel", ErrForbidden)
		}
		if err := guardTransition(domain.TxKindSwap, sw.Status, domain.SwapStatusCancelled); err != nil {
			return err
		}

		if _, err := q.LockPortfolios(ctx, sw.UserID); err != nil {
			return err
		}
		if err := q.CreditPortfolio(ctx, sw.UserID, sw.Amount); err != nil {
			return fmt.Errorf("refund swap escrow: %w", err)
		}

		rows, err := q.UpdateSwapStatus(ctx, sw.ID, domain.SwapStatusCancelled)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "cancel swap"); err != nil {
			return err
		}
		sw.Status = domain.SwapStatusCancelled
		cancelled = sw
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("swap cancel skipped", zap.String("swap_id", swapID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindSwap, "conflict")
		}
		return nil, err
	}

	if isAdmin && actorID != cancelled.UserID {
		s.audit.Record(ctx, actorID, domain.ActionCancelled, domain.TxKindSwap, cancelled.ID, cancelled.UserID)
	}
	observability.IncrementSettlement(domain.TxKindSwap, "cancelled")
	s.notifier.Notify(ctx, cancelled.UserID, "Swap cancelled",
		fmt.Sprintf("Your swap was cancelled and %s refunded.", domain.FormatUSD(cancelled.Amount)),
		domain.TxKindSwap, &cancelled.ID)
	return cancelled, nil
}

// Settle converts the escrowed amount through the destination asset at the
// frozen creation price, liquidates at live prices, and credits the return.
// The swap is claimed IN_PROGRESS and completed in one transaction; a
// concurrent settle of the same swap surfaces as ErrStateConflict. Pass
// force to settle before the scheduled time; the sweep never does.
func (s *SwapService) Settle(ctx context.Context, swapID uuid.UUID, actorID *uuid.UUID, force bool) (*models.SwapRequest, error) {
	var (
		settled *models.SwapRequest
		payout  decimal.Decimal
	)

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		sw, err := q.GetSwapForUpdate(ctx, swapID)
		if err != nil {
			return err
		}
		if err := guardTransition(domain.TxKindSwap, sw.Status, domain.SwapStatusInProgress); err != nil {
			return err
		}
		if !force && time.Now().Before(sw.SettleAt) {
			return fmt.Errorf("%w: due at %s", ErrNotDue, sw.SettleAt.Format(time.RFC3339))
		}

		rows, err := q.UpdateSwapStatus(ctx, sw.ID, domain.SwapStatusInProgress)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "claim swap"); err != nil {
			return err
		}

		fromPriceNow, err := s.prices.Price(ctx, sw.FromAsset)
		if err != nil {
			return fmt.Errorf("quote %s: %w", sw.FromAsset, err)
		}
		toPriceNow, err := s.prices.Price(ctx, sw.ToAsset)
		if err != nil {
			return fmt.Errorf("quote %s: %w", sw.ToAsset, err)
		}
		backPriceNow, err := s.prices.Price(ctx, sw.BackAsset)
		if err != nil {
			return fmt.Errorf("quote %s: %w", sw.BackAsset, err)
		}

		toAmount, backAmount, err := domain.SwapReturn(sw.Amount, fromPriceNow, sw.OriginalToPrice, toPriceNow, backPriceNow)
		if err != nil {
			return err
		}

		if _, err := q.LockPortfolios(ctx, sw.UserID); err != nil {
			return err
		}
		if err := q.CreditPortfolio(ctx, sw.UserID, backAmount); err != nil {
			return fmt.Errorf("credit swap return: %w", err)
		}

		now := time.Now()
		rows, err = q.CompleteSwap(ctx, sw.ID, backAmount, now)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "complete swap"); err != nil {
			return err
		}

		legs := []models.TradeLeg{
			{UserID: sw.UserID, SwapID: sw.ID, Asset: sw.FromAsset, Side: domain.TradeSideSell, Quantity: sw.Amount, Price: fromPriceNow},
			{UserID: sw.UserID, SwapID: sw.ID, Asset: sw.ToAsset, Side: domain.TradeSideBuy, Quantity: toAmount, Price: sw.OriginalToPrice},
			{UserID: sw.UserID, SwapID: sw.ID, Asset: sw.ToAsset, Side: domain.TradeSideSell, Quantity: toAmount, Price: toPriceNow},
			{UserID: sw.UserID, SwapID: sw.ID, Asset: sw.BackAsset, Side: domain.TradeSideBuy, Quantity: backAmount, Price: backPriceNow},
		}
		if err := q.InsertTradeLegs(ctx, legs); err != nil {
			return err
		}

		sw.Status = domain.SwapStatusCompleted
		sw.BackAmount = backAmount
		sw.CompletedAt = &now
		settled = sw
		payout = backAmount
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("swap settle skipped", zap.String("swap_id", swapID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindSwap, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindSwap, "completed")
	if actorID != nil {
		s.audit.Record(ctx, *actorID, domain.ActionSettled, domain.TxKindSwap, settled.ID, settled.UserID)
	}
	s.notifySettled(ctx, settled, payout)
	return settled, nil
}

// RunSweep settles every due swap, isolating failures per swap. Returns
// settled and failed counts.
func (s *SwapService) RunSweep(ctx context.Context) (settled, failed int, err error) {
	due, err := s.store.Queries().ListDueSwaps(ctx, time.Now())
	if err != nil {
		return 0, 0, fmt.Errorf("list due swaps: %w", err)
	}

	for _, sw := range due {
		if err := ctx.Err(); err != nil {
			return settled, failed, err
		}
		if _, settleErr := s.Settle(ctx, sw.ID, nil, false); settleErr != nil {
			if errors.Is(settleErr, ErrStateConflict) || errors.Is(settleErr, ErrNotDue) {
				// Another settler got there first, or the swap moved after
				// listing. Nothing to do.
				observability.IncrementSweepSwap("conflict")
				continue
			}
			failed++
			observability.IncrementSweepSwap("failed")
			zap.L().Error("sweep swap settlement failed",
				zap.String("swap_id", sw.ID.String()),
				zap.Error(settleErr))
			continue
		}
		settled++
		observability.IncrementSweepSwap("settled")
	}

	if settled > 0 || failed > 0 {
		zap.L().Info("swap sweep finished", zap.Int("settled", settled), zap.Int("failed", failed))
	}
	return settled, failed, nil
}

func (s *SwapService) notifySettled(ctx context.Context, sw *models.SwapRequest, payout decimal.Decimal) {
	pl := payout.Sub(sw.Amount)
	var pct decimal.Decimal
	if sw.Amount.IsPositive() {
		pct = pl.Div(sw.Amount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	verb := "gained"
	if pl.IsNegative() {
		verb = "lost"
		pl = pl.Abs()
		pct = pct.Abs()
	}
	s.notifier.Notify(ctx, sw.UserID, "Swap settled",
		fmt.Sprintf("Your %s swap settled for %s. You %s %s (%s%%).",
			sw.ToAsset, domain.FormatUSD(payout), verb, domain.FormatUSD(pl), pct.String()),
		domain.TxKindSwap, &sw.ID)
}

func (s *SwapService) Get(ctx context.Context, swapID uuid.UUID) (*models.SwapRequest, error) {
	return s.store.Queries().GetSwap(ctx, swapID)
}

func (s *SwapService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.SwapRequest, error) {
	return s.store.Queries().ListUserSwaps(ctx, userID, limit, offset)
}

func (s *SwapService) TradeLegs(ctx context.Context, swapID uuid.UUID) ([]models.TradeLeg, error) {
	return s.store.Queries().ListSwapTradeLegs(ctx, swapID)
}
