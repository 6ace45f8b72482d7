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

// DepositService records funding requests and settles them on approval.
// Direct deposits are approved by an admin; merchant-mediated deposits are
// approved by the named merchant, who collects the gross amount off-platform
// and funds the depositor's base amount from their own balance.
type DepositService struct {
	store    QueryStore
	audit    *AuditService
	notifier notify.Notifier
	referral *ReferralService
	feeRate  decimal.Decimal
}

func NewDepositService(store QueryStore, audit *AuditService, notifier notify.Notifier, referral *ReferralService, feeRate decimal.Decimal) *DepositService {
	return &DepositService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		referral: referral,
		feeRate:  feeRate,
	}
}

// Create records a direct deposit request awaiting admin approval.
func (s *DepositService) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*models.Deposit, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.store.Queries().GetPortfolio(ctx, userID); err != nil {
		return nil, err
	}

	d := &models.Deposit{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount.Round(domain.BalancePlaces),
		Method:    domain.DepositMethodDirect,
		Status:    domain.DepositStatusPending,
		Reference: reference,
	}
	if err := s.store.Queries().CreateDeposit(ctx, d); err != nil {
		return nil, err
	}
	zap.L().Info("deposit created",
		zap.String("deposit_id", d.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", d.Amount.String()))
	return d, nil
}

// CreateMerchant records a merchant-mediated deposit. The fee is quoted as
// an add-on at creation and frozen into the record: the depositor hands the
// merchant amount plus fee off-platform, and on approval the merchant's
// balance funds only the base amount.
func (s *DepositService) CreateMerchant(ctx context.Context, userID, merchantID uuid.UUID, amount decimal.Decimal, reference string) (*models.Deposit, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if userID == merchantID {
		return nil, ErrSelfTransfer
	}
	if _, err := s.store.Queries().GetPortfolio(ctx, userID); err != nil {
		return nil, err
	}
	merchant, err := s.store.Queries().GetPortfolio(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if !merchant.IsMerchant {
		return nil, ErrNotMerchant
	}

	quote := domain.QuoteAddOnFee(amount, s.feeRate)
	notes, err := models.EncodeFeeQuote(quote)
	if err != nil {
		return nil, fmt.Errorf("encode fee quote: %w", err)
	}

	d := &models.Deposit{
		ID:                     uuid.New(),
		UserID:                 userID,
		Amount:                 quote.NetAmount,
		Method:                 domain.DepositMethodMerchant,
		Status:                 domain.DepositStatusPending,
		MerchantID:             &merchantID,
		MerchantActionRequired: true,
		Notes:                  notes,
		Reference:              reference,
	}
	if err := s.store.Queries().CreateDeposit(ctx, d); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, merchantID, "Deposit request",
		fmt.Sprintf("A deposit of %s awaits your approval. You collect %s including your %s fee.",
			domain.FormatUSD(quote.NetAmount), domain.FormatUSD(quote.GrossAmount), domain.FormatUSD(quote.FeeAmount)),
		domain.TxKindDeposit, &d.ID)

	zap.L().Info("merchant deposit created",
		zap.String("deposit_id", d.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("merchant_id", merchantID.String()),
		zap.String("amount", d.Amount.String()),
		zap.String("fee", quote.FeeAmount.String()))
	return d, nil
}

// Approve settles a pending deposit. actorID must be the named merchant for
// merchant-mediated deposits; direct deposits take any admin. The first
// approved deposit of a referred user also pays the referral bonus, inside
// the same transaction.
func (s *DepositService) Approve(ctx context.Context, depositID, actorID uuid.UUID, isAdmin bool) (*models.Deposit, error) {
	var (
		settled  *models.Deposit
		bonus    *ReferralBonus
		credited decimal.Decimal
	)

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		d, err := q.GetDepositForUpdate(ctx, depositID)
		if err != nil {
			return err
		}
		if err := guardTransition(domain.TxKindDeposit, d.Status, domain.DepositStatusApproved); err != nil {
			return err
		}

		lockIDs := []uuid.UUID{d.UserID}
		if d.MerchantID != nil {
			if actorID != *d.MerchantID {
				return fmt.Errorf("%w: deposit %s requires merchant approval", ErrForbidden, depositID)
			}
			lockIDs = append(lockIDs, *d.MerchantID)
		} else if !isAdmin {
			return fmt.Errorf("%w: deposit %s requires admin approval", ErrForbidden, depositID)
		}

		referrerID, err := s.referral.ReferrerOf(ctx, q, d.UserID)
		if err != nil {
			return err
		}
		if referrerID != nil {
			lockIDs = append(lockIDs, *referrerID)
		}
		if _, err := q.LockPortfolios(ctx, lockIDs...); err != nil {
			return err
		}

		if d.MerchantID != nil {
			// The merchant pockets the fee off-platform and funds the base.
			if err := q.DebitPortfolio(ctx, *d.MerchantID, d.Amount); err != nil {
				return fmt.Errorf("debit merchant: %w", err)
			}
		}
		if err := q.CreditPortfolio(ctx, d.UserID, d.Amount); err != nil {
			return fmt.Errorf("credit depositor: %w", err)
		}
		credited = d.Amount

		bonus, err = s.referral.AwardInTx(ctx, q, d.UserID, d.Amount)
		if err != nil {
			return err
		}

		now := time.Now()
		rows, err := q.UpdateDepositStatus(ctx, d.ID, domain.DepositStatusApproved, false, &now)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "approve deposit"); err != nil {
			return err
		}

		d.Status = domain.DepositStatusApproved
		d.MerchantActionRequired = false
		d.CompletedAt = &now
		settled = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("deposit approval skipped", zap.String("deposit_id", depositID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindDeposit, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindDeposit, "approved")
	s.audit.Record(ctx, actorID, domain.ActionApproved, domain.TxKindDeposit, settled.ID, settled.UserID)
	s.notifier.Notify(ctx, settled.UserID, "Deposit approved",
		fmt.Sprintf("Your deposit of %s has been credited.", domain.FormatUSD(credited)),
		domain.TxKindDeposit, &settled.ID)
	if bonus != nil {
		observability.IncrementReferralBonus()
		s.notifier.Notify(ctx, bonus.ReferrerID, "Referral bonus",
			fmt.Sprintf("You earned a %s referral bonus.", domain.FormatUSD(bonus.Amount)),
			domain.TxKindDeposit, &settled.ID)
	}
	return settled, nil
}

// Reject declines a pending deposit. No balances move.
func (s *DepositService) Reject(ctx context.Context, depositID, actorID uuid.UUID, isAdmin bool) (*models.Deposit, error) {
	var settled *models.Deposit

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		d, err := q.GetDepositForUpdate(ctx, depositID)
		if err != nil {
			return err
		}
		if err := guardTransition(domain.TxKindDeposit, d.Status, domain.DepositStatusRejected); err != nil {
			return err
		}
		if d.MerchantID != nil {
			if actorID != *d.MerchantID && !isAdmin {
				return fmt.Errorf("%w: deposit %s requires merchant or admin rejection", ErrForbidden, depositID)
			}
		} else if !isAdmin {
			return fmt.Errorf("%w: deposit %s requires admin rejection", ErrForbidden, depositID)
		}

		rows, err := q.UpdateDepositStatus(ctx, d.ID, domain.DepositStatusRejected, false, nil)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "reject deposit"); err != nil {
			return err
		}

		d.Status = domain.DepositStatusRejected
		d.MerchantActionRequired = false
		settled = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			zap.L().Info("deposit rejection skipped", zap.String("deposit_id", depositID.String()), zap.Error(err))
			observability.IncrementSettlement(domain.TxKindDeposit, "conflict")
		}
		return nil, err
	}

	observability.IncrementSettlement(domain.TxKindDeposit, "rejected")
	s.audit.Record(ctx, actorID, domain.ActionRejected, domain.TxKindDeposit, settled.ID, settled.UserID)
	s.notifier.Notify(ctx, settled.UserID, "Deposit rejected",
		fmt.Sprintf("Your deposit of %s was rejected.", domain.FormatUSD(settled.Amount)),
		domain.TxKindDeposit, &settled.ID)
	return settled, nil
}

func (s *DepositService) Get(ctx context.Context, depositID uuid.UUID) (*models.Deposit, error) {
	return s.store.Queries().GetDeposit(ctx, depositID)
}

func (s *DepositService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Deposit, error) {
	return s.store.Queries().ListUserDeposits(ctx, userID, limit, offset)
}
