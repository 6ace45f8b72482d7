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
	"github.com/montero-exchange/ledger/internal/repository"
)

// WithdrawalService moves funds out of a portfolio. Internal transfers settle
// immediately; everything else escrows the gross amount at creation and
// settles or refunds later, so a portfolio can never promise the same funds
// twice.
type WithdrawalService struct {
	store    QueryStore
	audit    *AuditService
	notifier notify.Notifier
	feeRate  decimal.Decimal
}

func NewWithdrawalService(store QueryStore, audit *AuditService, notifier notify.Notifier, feeRate decimal.Decimal) *WithdrawalService {
	return &WithdrawalService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		feeRate:  feeRate,
	}
}

// Transfer moves funds to another user's account number and settles
// immediately.
func (s *WithdrawalService) Transfer(ctx context.Context, senderID uuid.UUID, accountNumber string, amount decimal.Decimal) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(domain.BalancePlaces)

	recipient, err := s.store.Queries().GetPortfolioByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if recipient.UserID == senderID {
		return nil, ErrSelfTransfer
	}

	now := time.Now()
	w := &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      senderID,
		Amount:      amount,
		Method:      domain.WithdrawalMethodInternal,
		Status:      domain.WithdrawalStatusCompleted,
		Destination: accountNumber,
		ConfirmedAt: &now,
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		if _, err := q.LockPortfolios(ctx, senderID, recipient.UserID); err != nil {
			return err
		}
		if err := q.DebitPortfolio(ctx, senderID, amount); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := q.CreditPortfolio(ctx, recipient.UserID, amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return q.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "transferred")
	s.notifier.Notify(ctx, recipient.UserID, "Funds received",
		fmt.Sprintf("You received %s.", domain.FormatUSD(amount)),
		domain.TxKindWithdrawal, &w.ID)
	s.notifier.Notify(ctx, senderID, "Transfer sent",
		fmt.Sprintf("You sent %s to account %s.", domain.FormatUSD(amount), accountNumber),
		domain.TxKindWithdrawal, &w.ID)

	zap.L().Info("internal transfer settled",
		zap.String("withdrawal_id", w.ID.String()),
		zap.String("sender_id", senderID.String()),
		zap.String("recipient_id", recipient.UserID.String()),
		zap.String("amount", amount.String()))
	return w, nil
}

// CreateExternal escrows funds for an off-platform withdrawal awaiting
// admin approval.
func (s *WithdrawalService) CreateExternal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, destination string) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(domain.BalancePlaces)

	w := &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Method:      domain.WithdrawalMethodExternal,
		Status:      domain.WithdrawalStatusPending,
		Destination: destination,
	}

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		if _, err := q.LockPortfolios(ctx, userID); err != nil {
			return err
		}
		if err := q.DebitPortfolio(ctx, userID, amount); err != nil {
			return fmt.Errorf("escrow withdrawal: %w", err)
		}
		return q.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("external withdrawal created",
		zap.String("withdrawal_id", w.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()))
	return w, nil
}

// CreateMerchant escrows the gross amount for a merchant-paid cash
// withdrawal. The fee is deducted from the gross: the merchant hands the
// user the net in cash and is later credited the gross, keeping the fee.
func (s *WithdrawalService) CreateMerchant(ctx context.Context, userID, merchantID uuid.UUID, amount decimal.Decimal) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if userID == merchantID {
		return nil, ErrSelfTransfer
	}
	merchant, err := s.store.Queries().GetPortfolio(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if !merchant.IsMerchant {
		return nil, ErrNotMerchant
	}

	quote := domain.QuoteDeductedFee(amount.Round(domain.BalancePlaces), s.feeRate)
	notes, err := models.EncodeFeeQuote(quote)
	if err != nil {
		return nil, fmt.Errorf("encode fee quote: %w", err)
	}

	w := &models.Withdrawal{
		ID:                   uuid.New(),
		UserID:               userID,
		Amount:               quote.GrossAmount,
		Method:               domain.WithdrawalMethodBank,
		Status:               domain.WithdrawalStatusPending,
		MerchantID:           &merchantID,
		ConfirmationRequired: true,
		Notes:                notes,
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		if _, err := q.LockPortfolios(ctx, userID); err != nil {
			return err
		}
		if err := q.DebitPortfolio(ctx, userID, quote.GrossAmount); err != nil {
			return fmt.Errorf("escrow withdrawal: %w", err)
		}
		return q.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, merchantID, "Cash payout request",
		fmt.Sprintf("Pay out %s in cash. You will be credited %s including your %s fee.",
			domain.FormatUSD(quote.NetAmount), domain.FormatUSD(quote.GrossAmount), domain.FormatUSD(quote.FeeAmount)),
		domain.TxKindWithdrawal, &w.ID)

	zap.L().Info("merchant withdrawal created",
		zap.String("withdrawal_id", w.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("merchant_id", merchantID.String()),
		zap.String("gross", quote.GrossAmount.String()),
		zap.String("fee", quote.FeeAmount.String()))
	return w, nil
}

// Confirm is the user acknowledging cash receipt on a merchant withdrawal.
// The escrowed gross moves to the merchant and the withdrawal completes.
func (s *WithdrawalService) Confirm(ctx context.Context, withdrawalID, actorID uuid.UUID) (*models.Withdrawal, error) {
	var settled *models.Withdrawal

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.UserID != actorID {
			return fmt.Errorf("%w: only the withdrawing user can confirm", ErrForbidden)
		}
		if w.MerchantID == nil {
			return fmt.Errorf("withdrawal %s has no merchant to credit", withdrawalID)
		}
		if err := guardTransition(domain.TxKindWithdrawal, w.Status, domain.WithdrawalStatusCompleted); err != nil {
			return err
		}

		if _, err := q.LockPortfolios(ctx, *w.MerchantID); err != nil {
			return err
		}
		if err := q.CreditPortfolio(ctx, *w.MerchantID, w.Amount); err != nil {
			return fmt.Errorf("credit merchant: %w", err)
		}

		now := time.Now()
		rows, err := q.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusCompleted, false, &now)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "confirm withdrawal"); err != nil {
			return err
		}

		w.Status = domain.WithdrawalStatusCompleted
		w.ConfirmationRequired = false
		w.ConfirmedAt = &now
		settled = w
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("withdrawal confirm skipped", zap.String("withdrawal_id", withdrawalID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindWithdrawal, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "completed")
	s.notifier.Notify(ctx, *settled.MerchantID, "Payout confirmed",
		fmt.Sprintf("The user confirmed receipt. %s has been credited to your balance.", domain.FormatUSD(settled.Amount)),
		domain.TxKindWithdrawal, &settled.ID)
	return settled, nil
}

// Decline is the user reporting the merchant never paid. The escrowed gross
// returns to the user.
func (s *WithdrawalService) Decline(ctx context.Context, withdrawalID, actorID uuid.UUID) (*models.Withdrawal, error) {
	var settled *models.Withdrawal

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.UserID != actorID {
			return fmt.Errorf("%w: only the withdrawing user can decline", ErrForbidden)
		}
		if err := guardTransition(domain.TxKindWithdrawal, w.Status, domain.WithdrawalStatusRejected); err != nil {
			return err
		}
		return s.refundAndReject(ctx, q, w, &settled)
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("withdrawal decline skipped", zap.String("withdrawal_id", withdrawalID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindWithdrawal, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "rejected")
	s.notifier.Notify(ctx, settled.UserID, "Withdrawal cancelled",
		fmt.Sprintf("Your withdrawal of %s was cancelled and refunded.", domain.FormatUSD(settled.Amount)),
		domain.TxKindWithdrawal, &settled.ID)
	return settled, nil
}

// Approve completes a pending external withdrawal; the escrowed funds leave
// the platform, no portfolio is credited.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, adminID uuid.UUID) (*models.Withdrawal, error) {
	var settled *models.Withdrawal

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.MerchantID != nil {
			return fmt.Errorf("%w: merchant withdrawal %s settles by user confirmation", ErrForbidden, withdrawalID)
		}
		if err := guardTransition(domain.TxKindWithdrawal, w.Status, domain.WithdrawalStatusCompleted); err != nil {
			return err
		}

		now := time.Now()
		rows, err := q.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusCompleted, false, &now)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "approve withdrawal"); err != nil {
			return err
		}

		w.Status = domain.WithdrawalStatusCompleted
		w.ConfirmedAt = &now
		settled = w
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("withdrawal approval skipped", zap.String("withdrawal_id", withdrawalID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindWithdrawal, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "completed")
	s.audit.Record(ctx, adminID, domain.ActionApproved, domain.TxKindWithdrawal, settled.ID, settled.UserID)
	s.notifier.Notify(ctx, settled.UserID, "Withdrawal approved",
		fmt.Sprintf("Your withdrawal of %s to %s has been sent.", domain.FormatUSD(settled.Amount), settled.Destination),
		domain.TxKindWithdrawal, &settled.ID)
	return settled, nil
}

// Reject declines a pending withdrawal and refunds the escrowed gross.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, adminID uuid.UUID) (*models.Withdrawal, error) {
	var settled *models.Withdrawal

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if err := guardTransition(domain.TxKindWithdrawal, w.Status, domain.WithdrawalStatusRejected); err != nil {
			return err
		}
		return s.refundAndReject(ctx, q, w, &settled)
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("withdrawal rejection skipped", zap.String("withdrawal_id", withdrawalID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindWithdrawal, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "rejected")
	s.audit.Record(ctx, adminID, domain.ActionRejected, domain.TxKindWithdrawal, settled.ID, settled.UserID)
	s.notifier.Notify(ctx, settled.UserID, "Withdrawal rejected",
		fmt.Sprintf("Your withdrawal of %s was rejected and refunded.", domain.FormatUSD(settled.Amount)),
		domain.TxKindWithdrawal, &settled.ID)
	return settled, nil
}

// ForceComplete settles a stuck merchant withdrawal without the user's
// confirmation, crediting the merchant from escrow. Reserved for disputes an
// admin has resolved off-platform.
func (s *WithdrawalService) ForceComplete(ctx context.Context, withdrawalID, adminID uuid.UUID) (*models.Withdrawal, error) {
	var settled *models.Withdrawal

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		w, err := q.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.MerchantID == nil {
			return fmt.Errorf("withdrawal %s has no merchant to credit", withdrawalID)
		}
		if err := guardTransition(domain.TxKindWithdrawal, w.Status, domain.WithdrawalStatusCompleted); err != nil {
			return err
		}

		if _, err := q.LockPortfolios(ctx, *w.MerchantID); err != nil {
			return err
		}
		if err := q.CreditPortfolio(ctx, *w.MerchantID, w.Amount); err != nil {
			return fmt.Errorf("credit merchant: %w", err)
		}

		now := time.Now()
		rows, err := q.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusCompleted, false, &now)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "force complete withdrawal"); err != nil {
			return err
		}

		w.Status = domain.WithdrawalStatusCompleted
		w.ConfirmationRequired = false
		w.ConfirmedAt = &now
		settled = w
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("withdrawal force-complete skipped", zap.String("withdrawal_id", withdrawalID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindWithdrawal, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindWithdrawal, "completed")
	observability.IncrementForceComplete()
	s.audit.Record(ctx, adminID, domain.ActionForceCompleted, domain.TxKindWithdrawal, settled.ID, settled.UserID)
	s.notifier.Notify(ctx, *settled.MerchantID, "Payout force-completed",
		fmt.Sprintf("An administrator settled the payout. %s has been credited to your balance.", domain.FormatUSD(settled.Amount)),
		domain.TxKindWithdrawal, &settled.ID)
	s.notifier.Notify(ctx, settled.UserID, "Withdrawal settled",
		fmt.Sprintf("Your withdrawal of %s was settled by an administrator.", domain.FormatUSD(settled.Amount)),
		domain.TxKindWithdrawal, &settled.ID)

	zap.L().Warn("withdrawal force-completed",
		zap.String("withdrawal_id", settled.ID.String()),
		zap.String("admin_id", adminID.String()))
	return settled, nil
}

func (s *WithdrawalService) refundAndReject(ctx context.Context, q repository.Queries, w *models.Withdrawal, out **models.Withdrawal) error {
	if _, err := q.LockPortfolios(ctx, w.UserID); err != nil {
		return err
	}
	if err := q.CreditPortfolio(ctx, w.UserID, w.Amount); err != nil {
		return fmt.Errorf("refund escrow: %w", err)
	}

	rows, err := q.UpdateWithdrawalStatus(ctx, w.ID, domain.WithdrawalStatusRejected, false, nil)
	if err != nil {
		return err
	}
	if err := requireExactlyOne(rows, "reject withdrawal"); err != nil {
		return err
	}

	w.Status = domain.WithdrawalStatusRejected
	w.ConfirmationRequired = false
	*out = w
	return nil
}

func (s *WithdrawalService) Get(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	return s.store.Queries().GetWithdrawal(ctx, withdrawalID)
}

func (s *WithdrawalService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Withdrawal, error) {
	return s.store.Queries().ListUserWithdrawals(ctx, userID, limit, offset)
}
