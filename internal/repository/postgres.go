package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresQueries implements Queries against a pgx connection or transaction.
type PostgresQueries struct {
	db DBTX
}

func New(db DBTX) *PostgresQueries {
	return &PostgresQueries{db: db}
}

func (q *PostgresQueries) WithTx(tx pgx.Tx) *PostgresQueries {
	return &PostgresQueries{db: tx}
}

// PostgresStore provides query access and transaction scoping over a pool.
type PostgresStore struct {
	db      *pgxpool.Pool
	queries *PostgresQueries
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:      db,
		queries: New(db),
	}
}

func (s *PostgresStore) Queries() Queries {
	return s.queries
}

// RunInTx executes fn within a database transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

const portfolioColumns = `user_id, balance_usd, is_merchant, is_frozen, frozen_reason, frozen_at, frozen_by, referral_code, account_number, referred_by, created_at`

func scanPortfolio(row pgx.Row) (*models.Portfolio, error) {
	p := &models.Portfolio{}
	err := row.Scan(&p.UserID, &p.BalanceUSD, &p.IsMerchant, &p.IsFrozen, &p.FrozenReason,
		&p.FrozenAt, &p.FrozenBy, &p.ReferralCode, &p.AccountNumber, &p.ReferredBy, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *PostgresQueries) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (user_id, balance_usd, is_merchant, referral_code, account_number, referred_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, p.UserID, p.BalanceUSD, p.IsMerchant, p.ReferralCode, p.AccountNumber, p.ReferredBy).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

func (q *PostgresQueries) GetPortfolio(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE user_id = $1`
	return scanPortfolio(q.db.QueryRow(ctx, query, userID))
}

func (q *PostgresQueries) GetPortfolioByAccountNumber(ctx context.Context, accountNumber string) (*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE account_number = $1`
	return scanPortfolio(q.db.QueryRow(ctx, query, accountNumber))
}

func (q *PostgresQueries) GetPortfolioByReferralCode(ctx context.Context, code string) (*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE referral_code = $1`
	return scanPortfolio(q.db.QueryRow(ctx, query, code))
}

// LockPortfolios acquires row locks in ascending user-ID order so concurrent
// settlements that touch overlapping portfolios never deadlock.
func (q *PostgresQueries) LockPortfolios(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*models.Portfolio, error) {
	ids := append([]uuid.UUID(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make(map[uuid.UUID]*models.Portfolio, len(ids))
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE user_id = $1 FOR UPDATE`
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		p, err := scanPortfolio(q.db.QueryRow(ctx, query, id))
		if err != nil {
			return nil, fmt.Errorf("lock portfolio %s: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}

func (q *PostgresQueries) CreditPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE portfolios SET balance_usd = balance_usd + $1 WHERE user_id = $2 AND NOT is_frozen`
	tag, err := q.db.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return q.classifyBalanceFailure(ctx, userID, decimal.Zero)
	}
	return nil
}

func (q *PostgresQueries) DebitPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE portfolios
		SET balance_usd = balance_usd - $1
		WHERE user_id = $2 AND NOT is_frozen AND balance_usd >= $1
	`
	tag, err := q.db.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return q.classifyBalanceFailure(ctx, userID, amount)
	}
	return nil
}

// classifyBalanceFailure turns a zero-row balance update into the sentinel
// the caller can act on.
func (q *PostgresQueries) classifyBalanceFailure(ctx context.Context, userID uuid.UUID, needed decimal.Decimal) error {
	p, err := q.GetPortfolio(ctx, userID)
	if err != nil {
		return err
	}
	if p.IsFrozen {
		return models.ErrAccountFrozen
	}
	if p.BalanceUSD.LessThan(needed) {
		return models.ErrInsufficientFunds
	}
	return fmt.Errorf("balance update on portfolio %s affected no rows", userID)
}

func (q *PostgresQueries) SetPortfolioFrozen(ctx context.Context, userID uuid.UUID, frozen bool, reason string, actorID *uuid.UUID) (int64, error) {
	query := `
		UPDATE portfolios
		SET is_frozen = $1,
		    frozen_reason = CASE WHEN $1 THEN $2 ELSE '' END,
		    frozen_at = CASE WHEN $1 THEN NOW() ELSE NULL END,
		    frozen_by = CASE WHEN $1 THEN $3 ELSE NULL END
		WHERE user_id = $4
	`
	tag, err := q.db.Exec(ctx, query, frozen, reason, actorID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to update frozen state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) SetPortfolioMerchant(ctx context.Context, userID uuid.UUID, isMerchant bool) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE portfolios SET is_merchant = $1 WHERE user_id = $2`, isMerchant, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to update merchant flag: %w", err)
	}
	return tag.RowsAffected(), nil
}

const depositColumns = `id, user_id, amount, method, status, merchant_id, merchant_action_required, notes, reference, created_at, completed_at`

func scanDeposit(row pgx.Row) (*models.Deposit, error) {
	d := &models.Deposit{}
	err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.Method, &d.Status, &d.MerchantID,
		&d.MerchantActionRequired, &d.Notes, &d.Reference, &d.CreatedAt, &d.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (q *PostgresQueries) CreateDeposit(ctx context.Context, d *models.Deposit) error {
	query := `
		INSERT INTO deposits (id, user_id, amount, method, status, merchant_id, merchant_action_required, notes, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, d.ID, d.UserID, d.Amount, d.Method, d.Status,
		d.MerchantID, d.MerchantActionRequired, d.Notes, d.Reference).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deposit: %w", err)
	}
	return nil
}

func (q *PostgresQueries) GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`
	return scanDeposit(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) GetDepositForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE`
	return scanDeposit(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) UpdateDepositStatus(ctx context.Context, id uuid.UUID, status string, merchantActionRequired bool, completedAt *time.Time) (int64, error) {
	query := `UPDATE deposits SET status = $1, merchant_action_required = $2, completed_at = $3 WHERE id = $4`
	tag, err := q.db.Exec(ctx, query, status, merchantActionRequired, completedAt, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update deposit status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) ListUserDeposits(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var out []models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

const withdrawalColumns = `id, user_id, amount, method, status, destination, merchant_id, confirmation_required, notes, created_at, confirmed_at`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	w := &models.Withdrawal{}
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.Status, &w.Destination,
		&w.MerchantID, &w.ConfirmationRequired, &w.Notes, &w.CreatedAt, &w.ConfirmedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (q *PostgresQueries) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (id, user_id, amount, method, status, destination, merchant_id, confirmation_required, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, w.ID, w.UserID, w.Amount, w.Method, w.Status,
		w.Destination, w.MerchantID, w.ConfirmationRequired, w.Notes).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

func (q *PostgresQueries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, status string, confirmationRequired bool, confirmedAt *time.Time) (int64, error) {
	query := `UPDATE withdrawals SET status = $1, confirmation_required = $2, confirmed_at = $3 WHERE id = $4`
	tag, err := q.db.Exec(ctx, query, status, confirmationRequired, confirmedAt, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

const swapColumns = `id, user_id, from_asset, to_asset, back_asset, amount, back_amount, original_to_price, status, settle_at, created_at, completed_at`

func scanSwap(row pgx.Row) (*models.SwapRequest, error) {
	sw := &models.SwapRequest{}
	err := row.Scan(&sw.ID, &sw.UserID, &sw.FromAsset, &sw.ToAsset, &sw.BackAsset, &sw.Amount,
		&sw.BackAmount, &sw.OriginalToPrice, &sw.Status, &sw.SettleAt, &sw.CreatedAt, &sw.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return sw, nil
}

func (q *PostgresQueries) CreateSwap(ctx context.Context, sw *models.SwapRequest) error {
	query := `
		INSERT INTO swap_requests (id, user_id, from_asset, to_asset, back_asset, amount, back_amount, original_to_price, status, settle_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, sw.ID, sw.UserID, sw.FromAsset, sw.ToAsset, sw.BackAsset,
		sw.Amount, sw.BackAmount, sw.OriginalToPrice, sw.Status, sw.SettleAt).Scan(&sw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create swap request: %w", err)
	}
	return nil
}

func (q *PostgresQueries) GetSwap(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1`
	return scanSwap(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) GetSwapForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1 FOR UPDATE`
	return scanSwap(q.db.QueryRow(ctx, query, id))
}

func (q *PostgresQueries) UpdateSwapStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE swap_requests SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update swap status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) CompleteSwap(ctx context.Context, id uuid.UUID, backAmount decimal.Decimal, completedAt time.Time) (int64, error) {
	query := `UPDATE swap_requests SET status = $1, back_amount = $2, completed_at = $3 WHERE id = $4`
	tag, err := q.db.Exec(ctx, query, domain.SwapStatusCompleted, backAmount, completedAt, id)
	if err != nil {
		return 0, fmt.Errorf("failed to complete swap: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) ListDueSwaps(ctx context.Context, cutoff time.Time) ([]models.SwapRequest, error) {
	query := `
		SELECT ` + swapColumns + `
		FROM swap_requests
		WHERE status IN ($1, $2) AND settle_at <= $3
		ORDER BY settle_at ASC
	`
	rows, err := q.db.Query(ctx, query, domain.SwapStatusPending, domain.SwapStatusApproved, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list due swaps: %w", err)
	}
	defer rows.Close()

	var out []models.SwapRequest
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		out = append(out, *sw)
	}
	return out, rows.Err()
}

func (q *PostgresQueries) ListUserSwaps(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.SwapRequest, error) {
	query := `
		SELECT ` + swapColumns + `
		FROM swap_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list swaps: %w", err)
	}
	defer rows.Close()

	var out []models.SwapRequest
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		out = append(out, *sw)
	}
	return out, rows.Err()
}

func (q *PostgresQueries) CreateReferralEdge(ctx context.Context, e *models.ReferralEdge) error {
	query := `
		INSERT INTO referral_edges (referrer_id, referred_user_id, has_funded_wallet, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, e.ReferrerID, e.ReferredUserID, e.HasFundedWallet).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create referral edge: %w", err)
	}
	return nil
}

func (q *PostgresQueries) GetReferralEdgeForUpdate(ctx context.Context, referredUserID uuid.UUID) (*models.ReferralEdge, error) {
	e := &models.ReferralEdge{}
	query := `
		SELECT referrer_id, referred_user_id, has_funded_wallet, created_at
		FROM referral_edges
		WHERE referred_user_id = $1
		FOR UPDATE
	`
	err := q.db.QueryRow(ctx, query, referredUserID).Scan(&e.ReferrerID, &e.ReferredUserID, &e.HasFundedWallet, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// MarkReferralFunded flips the funded flag exactly once; the affected row
// count tells the caller whether this was the first funding event.
func (q *PostgresQueries) MarkReferralFunded(ctx context.Context, referredUserID uuid.UUID) (int64, error) {
	query := `UPDATE referral_edges SET has_funded_wallet = TRUE WHERE referred_user_id = $1 AND NOT has_funded_wallet`
	tag, err := q.db.Exec(ctx, query, referredUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark referral funded: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) InsertTradeLegs(ctx context.Context, legs []models.TradeLeg) error {
	query := `
		INSERT INTO trade_legs (id, user_id, swap_id, asset, side, quantity, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	for i := range legs {
		if legs[i].ID == uuid.Nil {
			legs[i].ID = uuid.New()
		}
		_, err := q.db.Exec(ctx, query, legs[i].ID, legs[i].UserID, legs[i].SwapID,
			legs[i].Asset, legs[i].Side, legs[i].Quantity, legs[i].Price)
		if err != nil {
			return fmt.Errorf("failed to insert trade leg: %w", err)
		}
	}
	return nil
}

func (q *PostgresQueries) ListSwapTradeLegs(ctx context.Context, swapID uuid.UUID) ([]models.TradeLeg, error) {
	query := `
		SELECT id, user_id, swap_id, asset, side, quantity, price, created_at
		FROM trade_legs
		WHERE swap_id = $1
		ORDER BY created_at ASC
	`
	rows, err := q.db.Query(ctx, query, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trade legs: %w", err)
	}
	defer rows.Close()

	var out []models.TradeLeg
	for rows.Next() {
		var leg models.TradeLeg
		if err := rows.Scan(&leg.ID, &leg.UserID, &leg.SwapID, &leg.Asset, &leg.Side,
			&leg.Quantity, &leg.Price, &leg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade leg: %w", err)
		}
		out = append(out, leg)
	}
	return out, rows.Err()
}

func (q *PostgresQueries) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, user_id, title, message, is_read, tx_kind, tx_id, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.TxKind, n.TxID).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (q *PostgresQueries) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, is_read, tx_kind, tx_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead,
			&n.TxKind, &n.TxID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *PostgresQueries) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	if err := q.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (q *PostgresQueries) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	tag, err := q.db.Exec(ctx, query, id, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *PostgresQueries) InsertAdminLog(ctx context.Context, l *models.AdminLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO admin_logs (id, actor_id, action, tx_kind, tx_id, affected_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, l.ID, l.ActorID, l.Action, l.TxKind, l.TxID, l.AffectedID).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert admin log: %w", err)
	}
	return nil
}
