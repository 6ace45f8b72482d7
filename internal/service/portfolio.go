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

// PortfolioService provisions balance records and handles account
// administration (merchant standing, freezes).
type PortfolioService struct {
	store QueryStore
	audit *AuditService
}

func NewPortfolioService(store QueryStore, audit *AuditService) *PortfolioService {
	return &PortfolioService{store: store, audit: audit}
}

// Provision creates a zero-balance portfolio for a new user. A referral code
// of the referring user may be supplied; an unknown code fails the signup so
// typos surface immediately.
func (s *PortfolioService) Provision(ctx context.Context, userID uuid.UUID, isMerchant bool, referredByCode string) (*models.Portfolio, error) {
	var referrerID *uuid.UUID
	if referredByCode != "" {
		referrer, err := s.store.Queries().GetPortfolioByReferralCode(ctx, referredByCode)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("referral code %q: %w", referredByCode, models.ErrNotFound)
			}
			return nil, fmt.Errorf("lookup referral code: %w", err)
		}
		referrerID = &referrer.UserID
	}

	code, err := newReferralCode()
	if err != nil {
		return nil, err
	}
	accountNumber, err := newAccountNumber()
	if err != nil {
		return nil, err
	}

	p := &models.Portfolio{
		UserID:        userID,
		BalanceUSD:    decimal.Zero,
		IsMerchant:    isMerchant,
		ReferralCode:  code,
		AccountNumber: accountNumber,
		ReferredBy:    referrerID,
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		if err := q.CreatePortfolio(ctx, p); err != nil {
			return err
		}
		if referrerID != nil {
			return q.CreateReferralEdge(ctx, &models.ReferralEdge{
				ReferrerID:     *referrerID,
				ReferredUserID: userID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("portfolio provisioned",
		zap.String("user_id", userID.String()),
		zap.Bool("is_merchant", isMerchant),
		zap.Bool("referred", referrerID != nil))
	return p, nil
}

func (s *PortfolioService) Get(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	return s.store.Queries().GetPortfolio(ctx, userID)
}

// Freeze blocks all balance movement for the user. In-flight transactions
// remain recorded but cannot settle until the account is unfrozen.
func (s *PortfolioService) Freeze(ctx context.Context, userID, actorID uuid.UUID, reason string) error {
	rows, err := s.store.Queries().SetPortfolioFrozen(ctx, userID, true, reason, &actorID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	s.audit.Record(ctx, actorID, domain.ActionFrozen, "", uuid.Nil, userID)
	zap.L().Warn("portfolio frozen",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("reason", reason))
	return nil
}

func (s *PortfolioService) Unfreeze(ctx context.Context, userID, actorID uuid.UUID) error {
	rows, err := s.store.Queries().SetPortfolioFrozen(ctx, userID, false, "", nil)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	s.audit.Record(ctx, actorID, domain.ActionUnfrozen, "", uuid.Nil, userID)
	zap.L().Info("portfolio unfrozen",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

// SetMerchant grants or revokes merchant standing.
func (s *PortfolioService) SetMerchant(ctx context.Context, userID uuid.UUID, isMerchant bool) error {
	rows, err := s.store.Queries().SetPortfolioMerchant(ctx, userID, isMerchant)
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
