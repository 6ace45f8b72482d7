package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
)

// MemoryStore is an in-process implementation of Store. Transactions are
// serialized behind a single mutex and rolled back via snapshot restore,
// which gives the same observable semantics as a serializable database
// transaction. Used by the test suite and for local development without
// Postgres.
type MemoryStore struct {
	mu sync.Mutex

	portfolios    map[uuid.UUID]*models.Portfolio
	deposits      map[uuid.UUID]*models.Deposit
	withdrawals   map[uuid.UUID]*models.Withdrawal
	swaps         map[uuid.UUID]*models.SwapRequest
	referrals     map[uuid.UUID]*models.ReferralEdge // keyed by referred user
	tradeLegs     []models.TradeLeg
	notifications []models.Notification
	adminLogs     []models.AdminLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios:  make(map[uuid.UUID]*models.Portfolio),
		deposits:    make(map[uuid.UUID]*models.Deposit),
		withdrawals: make(map[uuid.UUID]*models.Withdrawal),
		swaps:       make(map[uuid.UUID]*models.SwapRequest),
		referrals:   make(map[uuid.UUID]*models.ReferralEdge),
	}
}

func (s *MemoryStore) Queries() Queries {
	return &memQueries{store: s}
}

// RunInTx serializes the transaction behind the store mutex and restores a
// snapshot if fn fails, so partial mutations never become visible.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memQueries{store: s, inTx: true}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	portfolios    map[uuid.UUID]*models.Portfolio
	deposits      map[uuid.UUID]*models.Deposit
	withdrawals   map[uuid.UUID]*models.Withdrawal
	swaps         map[uuid.UUID]*models.SwapRequest
	referrals     map[uuid.UUID]*models.ReferralEdge
	tradeLegs     []models.TradeLeg
	notifications []models.Notification
	adminLogs     []models.AdminLog
}

func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		portfolios:    make(map[uuid.UUID]*models.Portfolio, len(s.portfolios)),
		deposits:      make(map[uuid.UUID]*models.Deposit, len(s.deposits)),
		withdrawals:   make(map[uuid.UUID]*models.Withdrawal, len(s.withdrawals)),
		swaps:         make(map[uuid.UUID]*models.SwapRequest, len(s.swaps)),
		referrals:     make(map[uuid.UUID]*models.ReferralEdge, len(s.referrals)),
		tradeLegs:     append([]models.TradeLeg(nil), s.tradeLegs...),
		notifications: append([]models.Notification(nil), s.notifications...),
		adminLogs:     append([]models.AdminLog(nil), s.adminLogs...),
	}
	for k, v := range s.portfolios {
		cp := *v
		snap.portfolios[k] = &cp
	}
	for k, v := range s.deposits {
		cp := *v
		snap.deposits[k] = &cp
	}
	for k, v := range s.withdrawals {
		cp := *v
		snap.withdrawals[k] = &cp
	}
	for k, v := range s.swaps {
		cp := *v
		snap.swaps[k] = &cp
	}
	for k, v := range s.referrals {
		cp := *v
		snap.referrals[k] = &cp
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.portfolios = snap.portfolios
	s.deposits = snap.deposits
	s.withdrawals = snap.withdrawals
	s.swaps = snap.swaps
	s.referrals = snap.referrals
	s.tradeLegs = snap.tradeLegs
	s.notifications = snap.notifications
	s.adminLogs = snap.adminLogs
}

type memQueries struct {
	store *MemoryStore
	inTx  bool
}

// lock takes the store mutex for callers outside RunInTx; inside a
// transaction the mutex is already held.
func (q *memQueries) lock() func() {
	if q.inTx {
		return func() {}
	}
	q.store.mu.Lock()
	return q.store.mu.Unlock
}

func (q *memQueries) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	defer q.lock()()
	if _, ok := q.store.portfolios[p.UserID]; ok {
		return fmt.Errorf("portfolio for user %s already exists", p.UserID)
	}
	for _, existing := range q.store.portfolios {
		if existing.AccountNumber == p.AccountNumber {
			return fmt.Errorf("account number %s already taken", p.AccountNumber)
		}
		if existing.ReferralCode == p.ReferralCode {
			return fmt.Errorf("referral code %s already taken", p.ReferralCode)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	q.store.portfolios[p.UserID] = &cp
	return nil
}

func (q *memQueries) GetPortfolio(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	defer q.lock()()
	p, ok := q.store.portfolios[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (q *memQueries) GetPortfolioByAccountNumber(ctx context.Context, accountNumber string) (*models.Portfolio, error) {
	defer q.lock()()
	for _, p := range q.store.portfolios {
		if p.AccountNumber == accountNumber {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (q *memQueries) GetPortfolioByReferralCode(ctx context.Context, code string) (*models.Portfolio, error) {
	defer q.lock()()
	for _, p := range q.store.portfolios {
		if p.ReferralCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (q *memQueries) LockPortfolios(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*models.Portfolio, error) {
	defer q.lock()()
	// Transactions are fully serialized here; sorting matches the Postgres
	// implementation's lock-ordering contract.
	ids := append([]uuid.UUID(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make(map[uuid.UUID]*models.Portfolio, len(ids))
	for _, id := range ids {
		p, ok := q.store.portfolios[id]
		if !ok {
			return nil, fmt.Errorf("lock portfolio %s: %w", id, models.ErrNotFound)
		}
		cp := *p
		out[id] = &cp
	}
	return out, nil
}

func (q *memQueries) CreditPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	defer q.lock()()
	p, ok := q.store.portfolios[userID]
	if !ok {
		return models.ErrNotFound
	}
	if p.IsFrozen {
		return models.ErrAccountFrozen
	}
	p.BalanceUSD = p.BalanceUSD.Add(amount)
	return nil
}

func (q *memQueries) DebitPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	defer q.lock()()
	p, ok := q.store.portfolios[userID]
	if !ok {
		return models.ErrNotFound
	}
	if p.IsFrozen {
		return models.ErrAccountFrozen
	}
	if p.BalanceUSD.LessThan(amount) {
		return models.ErrInsufficientFunds
	}
	p.BalanceUSD = p.BalanceUSD.Sub(amount)
	return nil
}

func (q *memQueries) SetPortfolioFrozen(ctx context.Context, userID uuid.UUID, frozen bool, reason string, actorID *uuid.UUID) (int64, error) {
	defer q.lock()()
	p, ok := q.store.portfolios[userID]
	if !ok {
		return 0, nil
	}
	p.IsFrozen = frozen
	if frozen {
		now := time.Now()
		p.FrozenAt = &now
		p.FrozenReason = reason
		p.FrozenBy = actorID
	} else {
		p.FrozenAt = nil
		p.FrozenReason = ""
		p.FrozenBy = nil
	}
	return 1, nil
}

func (q *memQueries) SetPortfolioMerchant(ctx context.Context, userID uuid.UUID, isMerchant bool) (int64, error) {
	defer q.lock()()
	p, ok := q.store.portfolios[userID]
	if !ok {
		return 0, nil
	}
	p.IsMerchant = isMerchant
	return 1, nil
}

func (q *memQueries) CreateDeposit(ctx context.Context, d *models.Deposit) error {
	defer q.lock()()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	cp := *d
	q.store.deposits[d.ID] = &cp
	return nil
}

func (q *memQueries) GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	defer q.lock()()
	d, ok := q.store.deposits[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (q *memQueries) GetDepositForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	return q.GetDeposit(ctx, id)
}

func (q *memQueries) UpdateDepositStatus(ctx context.Context, id uuid.UUID, status string, merchantActionRequired bool, completedAt *time.Time) (int64, error) {
	defer q.lock()()
	d, ok := q.store.deposits[id]
	if !ok {
		return 0, nil
	}
	d.Status = status
	d.MerchantActionRequired = merchantActionRequired
	d.CompletedAt = completedAt
	return 1, nil
}

func (q *memQueries) ListUserDeposits(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Deposit, error) {
	defer q.lock()()
	var out []models.Deposit
	for _, d := range q.store.deposits {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (q *memQueries) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	defer q.lock()()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	cp := *w
	q.store.withdrawals[w.ID] = &cp
	return nil
}

func (q *memQueries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	defer q.lock()()
	w, ok := q.store.withdrawals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (q *memQueries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return q.GetWithdrawal(ctx, id)
}

func (q *memQueries) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, status string, confirmationRequired bool, confirmedAt *time.Time) (int64, error) {
	defer q.lock()()
	w, ok := q.store.withdrawals[id]
	if !ok {
		return 0, nil
	}
	w.Status = status
	w.ConfirmationRequired = confirmationRequired
	w.ConfirmedAt = confirmedAt
	return 1, nil
}

func (q *memQueries) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Withdrawal, error) {
	defer q.lock()()
	var out []models.Withdrawal
	for _, w := range q.store.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (q *memQueries) CreateSwap(ctx context.Context, sw *models.SwapRequest) error {
	defer q.lock()()
	if sw.ID == uuid.Nil {
		sw.ID = uuid.New()
	}
	if sw.CreatedAt.IsZero() {
		sw.CreatedAt = time.Now()
	}
	cp := *sw
	q.store.swaps[sw.ID] = &cp
	return nil
}

func (q *memQueries) GetSwap(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	defer q.lock()()
	sw, ok := q.store.swaps[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *sw
	return &cp, nil
}

func (q *memQueries) GetSwapForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	return q.GetSwap(ctx, id)
}

func (q *memQueries) UpdateSwapStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	defer q.lock()()
	sw, ok := q.store.swaps[id]
	if !ok {
		return 0, nil
	}
	sw.Status = status
	return 1, nil
}

func (q *memQueries) CompleteSwap(ctx context.Context, id uuid.UUID, backAmount decimal.Decimal, completedAt time.Time) (int64, error) {
	defer q.lock()()
	sw, ok := q.store.swaps[id]
	if !ok {
		return 0, nil
	}
	sw.Status = domain.SwapStatusCompleted
	sw.BackAmount = backAmount
	sw.CompletedAt = &completedAt
	return 1, nil
}

func (q *memQueries) ListDueSwaps(ctx context.Context, cutoff time.Time) ([]models.SwapRequest, error) {
	defer q.lock()()
	var out []models.SwapRequest
	for _, sw := range q.store.swaps {
		if (sw.Status == domain.SwapStatusPending || sw.Status == domain.SwapStatusApproved) && !sw.SettleAt.After(cutoff) {
			out = append(out, *sw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettleAt.Before(out[j].SettleAt) })
	return out, nil
}

func (q *memQueries) ListUserSwaps(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.SwapRequest, error) {
	defer q.lock()()
	var out []models.SwapRequest
	for _, sw := range q.store.swaps {
		if sw.UserID == userID {
			out = append(out, *sw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (q *memQueries) CreateReferralEdge(ctx context.Context, e *models.ReferralEdge) error {
	defer q.lock()()
	if _, ok := q.store.referrals[e.ReferredUserID]; ok {
		return fmt.Errorf("user %s already has a referrer", e.ReferredUserID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	q.store.referrals[e.ReferredUserID] = &cp
	return nil
}

func (q *memQueries) GetReferralEdgeForUpdate(ctx context.Context, referredUserID uuid.UUID) (*models.ReferralEdge, error) {
	defer q.lock()()
	e, ok := q.store.referrals[referredUserID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (q *memQueries) MarkReferralFunded(ctx context.Context, referredUserID uuid.UUID) (int64, error) {
	defer q.lock()()
	e, ok := q.store.referrals[referredUserID]
	if !ok || e.HasFundedWallet {
		return 0, nil
	}
	e.HasFundedWallet = true
	return 1, nil
}

func (q *memQueries) InsertTradeLegs(ctx context.Context, legs []models.TradeLeg) error {
	defer q.lock()()
	for i := range legs {
		if legs[i].ID == uuid.Nil {
			legs[i].ID = uuid.New()
		}
		if legs[i].CreatedAt.IsZero() {
			legs[i].CreatedAt = time.Now()
		}
	}
	q.store.tradeLegs = append(q.store.tradeLegs, legs...)
	return nil
}

func (q *memQueries) ListSwapTradeLegs(ctx context.Context, swapID uuid.UUID) ([]models.TradeLeg, error) {
	defer q.lock()()
	var out []models.TradeLeg
	for _, leg := range q.store.tradeLegs {
		if leg.SwapID == swapID {
			out = append(out, leg)
		}
	}
	return out, nil
}

func (q *memQueries) InsertNotification(ctx context.Context, n *models.Notification) error {
	defer q.lock()()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	q.store.notifications = append(q.store.notifications, *n)
	return nil
}

func (q *memQueries) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Notification, error) {
	defer q.lock()()
	var out []models.Notification
	for i := len(q.store.notifications) - 1; i >= 0; i-- {
		if q.store.notifications[i].UserID == userID {
			out = append(out, q.store.notifications[i])
		}
	}
	return page(out, limit, offset), nil
}

func (q *memQueries) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer q.lock()()
	var count int64
	for _, n := range q.store.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (q *memQueries) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	defer q.lock()()
	for i := range q.store.notifications {
		if q.store.notifications[i].ID == id && q.store.notifications[i].UserID == userID {
			q.store.notifications[i].IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}

func (q *memQueries) InsertAdminLog(ctx context.Context, l *models.AdminLog) error {
	defer q.lock()()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	q.store.adminLogs = append(q.store.adminLogs, *l)
	return nil
}

// AdminLogs returns a copy of the admin log, newest last. Test helper.
func (s *MemoryStore) AdminLogs() []models.AdminLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AdminLog(nil), s.adminLogs...)
}

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}
