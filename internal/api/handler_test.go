package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/api"
	"github.com/montero-exchange/ledger/internal/api/middleware"
	"github.com/montero-exchange/ledger/internal/config"
	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/notify"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/repository"
	"github.com/montero-exchange/ledger/internal/service"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "montero-ledger-test"
	testJWTAudience = "montero-api-test"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

type apiEnv struct {
	router http.Handler
	store  *repository.MemoryStore
	prices *oracle.StaticOracle
}

// setupAPI wires the full router over the in-memory store with a static
// price table. db, redis and the idempotency store are nil so health
// degrades gracefully and the idempotency middleware passes through.
func setupAPI(t *testing.T) *apiEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	audit := service.NewAuditService(store)
	notifier := notify.NewStoreNotifier(store)
	referral := service.NewReferralService(decimal.NewFromFloat(0.15))

	prices := oracle.NewStaticOracle()
	prices.SetPrice("USDT", decimal.NewFromInt(1))
	prices.SetPrice("BTC", decimal.NewFromInt(50))

	svcs := api.Services{
		Portfolios:    service.NewPortfolioService(store, audit),
		Deposits:      service.NewDepositService(store, audit, notifier, referral, decimal.NewFromFloat(0.035)),
		Withdrawals:   service.NewWithdrawalService(store, audit, notifier, decimal.NewFromFloat(0.05)),
		Swaps:         service.NewSwapService(store, audit, notifier, prices, "USDT", time.Minute, 24*time.Hour),
		Notifications: service.NewNotificationService(store),
		Prices:        prices,
	}

	cfg := &config.Config{
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
	}

	router := api.NewRouter(cfg, zap.NewNop(), nil, nil, nil, svcs).Routes()
	return &apiEnv{router: router, store: store, prices: prices}
}

func generateTokenWithRole(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"sub":     userID.String(),
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(middleware.JWTSecret())
	require.NoError(t, err)
	return signed
}

var apiPortfolioSeq int

func (e *apiEnv) seedPortfolio(t *testing.T, balance int64, isMerchant bool) *models.Portfolio {
	t.Helper()
	apiPortfolioSeq++
	p := &models.Portfolio{
		UserID:        uuid.New(),
		BalanceUSD:    decimal.NewFromInt(balance),
		IsMerchant:    isMerchant,
		ReferralCode:  fmt.Sprintf("HTTP%04d", apiPortfolioSeq),
		AccountNumber: fmt.Sprintf("70000000%04d", apiPortfolioSeq),
	}
	require.NoError(t, e.store.Queries().CreatePortfolio(context.Background(), p))
	return p
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type problemBody struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problemBody {
	t.Helper()
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	var p problemBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestAuthRejectsUnauthenticatedRequests(t *testing.T) {
	env := setupAPI(t)

	badSecretToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": uuid.New().String(),
			"role":    "user",
			"iss":     testJWTIssuer,
			"aud":     testJWTAudience,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("wrong-secret"))
		require.NoError(t, err)
		return signed
	}()

	tests := []struct {
		name     string
		header   string
		wantType string
	}{
		{"missing header", "", "auth/authorization-header-required"},
		{"not a bearer token", "Basic abc123", "auth/invalid-token-format"},
		{"wrong signing key", "Bearer " + badSecretToken, "auth/invalid-token"},
		{"garbage token", "Bearer not.a.jwt", "auth/invalid-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/portfolio", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, "https://errors.montero.exchange/"+tt.wantType, p.Type)
			assert.Equal(t, http.StatusUnauthorized, p.Status)
			assert.Equal(t, "Unauthorized", p.Title)
			assert.NotEmpty(t, p.Detail)
			assert.Equal(t, "/v1/portfolio", p.Instance)
			assert.NotEmpty(t, p.RequestID)
		})
	}
}

func TestAuthRejectsMismatchedSubject(t *testing.T) {
	env := setupAPI(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.New().String(),
		"role":    "user",
		"sub":     uuid.New().String(),
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(middleware.JWTSecret())
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/portfolio", signed, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "https://errors.montero.exchange/auth/invalid-token-claims", p.Type)
}

func TestAdminRoutesRejectUserRole(t *testing.T) {
	env := setupAPI(t)
	user := env.seedPortfolio(t, 100, false)
	token := generateTokenWithRole(t, user.UserID, "user")

	rec := env.do(t, http.MethodPost, "/v1/admin/portfolios/"+uuid.New().String()+"/freeze", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "https://errors.montero.exchange/auth/insufficient-permissions", p.Type)
	assert.Equal(t, http.StatusForbidden, p.Status)
}

func TestLogin(t *testing.T) {
	env := setupAPI(t)
	user := env.seedPortfolio(t, 0, false)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"existing portfolio", map[string]string{"user_id": user.UserID.String()}, http.StatusOK},
		{"admin role skips portfolio lookup", map[string]string{"user_id": uuid.New().String(), "role": "admin"}, http.StatusOK},
		{"unknown portfolio", map[string]string{"user_id": uuid.New().String()}, http.StatusNotFound},
		{"malformed user id", map[string]string{"user_id": "not-a-uuid"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/auth/login", "", tt.body)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotEmpty(t, resp["token"])

			// The issued token must pass the auth middleware.
			whoami := env.do(t, http.MethodGet, "/v1/notifications", resp["token"], nil)
			assert.Equal(t, http.StatusOK, whoami.Code)
		})
	}
}

func TestTransferEndToEnd(t *testing.T) {
	env := setupAPI(t)
	sender := env.seedPortfolio(t, 500, false)
	receiver := env.seedPortfolio(t, 0, false)
	senderToken := generateTokenWithRole(t, sender.UserID, "user")
	receiverToken := generateTokenWithRole(t, receiver.UserID, "user")

	// 1. Sender pushes 200 to the receiver's account number.
	rec := env.do(t, http.MethodPost, "/v1/transfers", senderToken, map[string]interface{}{
		"account_number": receiver.AccountNumber,
		"amount":         "200",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var wd models.Withdrawal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wd))
	assert.Equal(t, "COMPLETED", wd.Status)
	assert.True(t, decimal.NewFromInt(200).Equal(wd.Amount))

	// 2. Both sides see the settled balances.
	check := func(token string, want int64) {
		res := env.do(t, http.MethodGet, "/v1/portfolio", token, nil)
		require.Equal(t, http.StatusOK, res.Code)
		var p models.Portfolio
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
		assert.True(t, decimal.NewFromInt(want).Equal(p.BalanceUSD), "got %s", p.BalanceUSD)
	}
	check(senderToken, 300)
	check(receiverToken, 200)

	// 3. The receiver is notified.
	notifRec := env.do(t, http.MethodGet, "/v1/notifications", receiverToken, nil)
	require.Equal(t, http.StatusOK, notifRec.Code)
	assert.Contains(t, notifRec.Body.String(), "Funds received")
}

func TestDepositApproveFlow(t *testing.T) {
	env := setupAPI(t)
	user := env.seedPortfolio(t, 0, false)
	userToken := generateTokenWithRole(t, user.UserID, "user")
	adminToken := generateTokenWithRole(t, uuid.New(), "admin")

	// 1. User opens a direct deposit; it stays pending.
	rec := env.do(t, http.MethodPost, "/v1/deposits", userToken, map[string]interface{}{
		"amount":    "150",
		"reference": "wire-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dep models.Deposit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dep))
	require.Equal(t, "PENDING", dep.Status)

	// 2. Direct deposits settle only under an admin token.
	denied := env.do(t, http.MethodPost, "/v1/deposits/"+dep.ID.String()+"/approve", userToken, nil)
	require.Equal(t, http.StatusForbidden, denied.Code)

	approved := env.do(t, http.MethodPost, "/v1/deposits/"+dep.ID.String()+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, approved.Code, approved.Body.String())

	res := env.do(t, http.MethodGet, "/v1/portfolio", userToken, nil)
	var p models.Portfolio
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	assert.True(t, decimal.NewFromInt(150).Equal(p.BalanceUSD))

	// 3. Approving again is a state conflict, not a double credit.
	replay := env.do(t, http.MethodPost, "/v1/deposits/"+dep.ID.String()+"/approve", adminToken, nil)
	require.Equal(t, http.StatusConflict, replay.Code)
	pb := decodeProblem(t, replay)
	assert.Equal(t, "https://errors.montero.exchange/ledger/state-conflict", pb.Type)
}

func TestServiceErrorMapping(t *testing.T) {
	env := setupAPI(t)
	user := env.seedPortfolio(t, 10, false)
	other := env.seedPortfolio(t, 0, false)
	token := generateTokenWithRole(t, user.UserID, "user")
	adminToken := generateTokenWithRole(t, uuid.New(), "admin")

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/deposits/"+uuid.New().String(), token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "https://errors.montero.exchange/resource/not-found", p.Type)
		assert.Equal(t, http.StatusNotFound, p.Status)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/transfers", token, map[string]interface{}{
			"account_number": other.AccountNumber,
			"amount":         "5000",
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "https://errors.montero.exchange/ledger/insufficient-funds", p.Type)
	})

	t.Run("invalid amount", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/transfers", token, map[string]interface{}{
			"account_number": other.AccountNumber,
			"amount":         "-5",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "https://errors.montero.exchange/ledger/invalid-request", p.Type)
	})

	t.Run("frozen account", func(t *testing.T) {
		frozen := env.do(t, http.MethodPost, "/v1/admin/portfolios/"+user.UserID.String()+"/freeze", adminToken, map[string]string{"reason": "chargeback review"})
		require.Equal(t, http.StatusOK, frozen.Code, frozen.Body.String())

		rec := env.do(t, http.MethodPost, "/v1/transfers", token, map[string]interface{}{
			"account_number": other.AccountNumber,
			"amount":         "1",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "https://errors.montero.exchange/ledger/account-frozen", p.Type)
	})
}

func TestSwapLifecycleOverHTTP(t *testing.T) {
	env := setupAPI(t)
	user := env.seedPortfolio(t, 1000, false)
	token := generateTokenWithRole(t, user.UserID, "user")
	adminToken := generateTokenWithRole(t, uuid.New(), "admin")

	// 1. Create a BTC swap settling in two hours; 1000 USDT escrows.
	rec := env.do(t, http.MethodPost, "/v1/swaps", token, map[string]interface{}{
		"to_asset":  "BTC",
		"amount":    "1000",
		"settle_at": time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sw models.SwapRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sw))
	assert.Equal(t, "PENDING", sw.Status)
	assert.True(t, decimal.NewFromInt(50).Equal(sw.OriginalToPrice))

	res := env.do(t, http.MethodGet, "/v1/portfolio", token, nil)
	var p models.Portfolio
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	assert.True(t, p.BalanceUSD.IsZero())

	// 2. Admin force-settles ahead of schedule. Prices are unchanged, so
	// the round trip breaks even and the full escrow returns.
	settled := env.do(t, http.MethodPost, "/v1/admin/swaps/"+sw.ID.String()+"/settle", adminToken, nil)
	require.Equal(t, http.StatusOK, settled.Code, settled.Body.String())
	require.NoError(t, json.Unmarshal(settled.Body.Bytes(), &sw))
	assert.Equal(t, "COMPLETED", sw.Status)

	res = env.do(t, http.MethodGet, "/v1/portfolio", token, nil)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	assert.True(t, decimal.NewFromInt(1000).Equal(p.BalanceUSD), "got %s", p.BalanceUSD)

	// 3. Cancelling a settled swap is a state conflict.
	cancelled := env.do(t, http.MethodPost, "/v1/swaps/"+sw.ID.String()+"/cancel", token, nil)
	require.Equal(t, http.StatusConflict, cancelled.Code)
	pb := decodeProblem(t, cancelled)
	assert.Equal(t, "https://errors.montero.exchange/ledger/state-conflict", pb.Type)

	// 4. The four trade legs are queryable by the owner.
	trades := env.do(t, http.MethodGet, "/v1/swaps/"+sw.ID.String()+"/trades", token, nil)
	require.Equal(t, http.StatusOK, trades.Code)
	var legsResp struct {
		Trades []models.TradeLeg `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(trades.Body.Bytes(), &legsResp))
	assert.Len(t, legsResp.Trades, 4)
}
