package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Spikeyfun/game-contracts/internal/engine"
	"github.com/Spikeyfun/game-contracts/internal/oracle"
	"github.com/Spikeyfun/game-contracts/internal/vault"
)

const (
	owner        = "0x1000000000000000000000000000000000000001"
	feeRecipient = "0x3000000000000000000000000000000000000003"
	playerAddr   = "0x2000000000000000000000000000000000000002"
	secret       = "test-admin-secret"
)

func newAdminRouter(t *testing.T) (*gin.Engine, *engine.Engine, *vault.Vault) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dev, err := oracle.NewDev(owner)
	require.NoError(t, err)
	v := vault.Open(vault.NewMemoryStore(), "treasury")

	eng, err := engine.Initialize(engine.Config{
		Owner:            owner,
		MinBet:           1_000_000,
		MaxBet:           100_000_000_000,
		SpinFee:          10_000_000,
		Fee:              engine.FeePolicy{RateBps: 100, Recipient: feeRecipient},
		WagerRefundDelay: 6 * time.Hour,
		DrawRefundDelay:  24 * time.Hour,
	}, engine.NewMemoryStore(), v, dev, oracle.NewVerifier(dev.SignerAddress(), []string{dev.Caller()}))
	require.NoError(t, err)

	router := gin.New()
	group := router.Group("/admin")
	group.Use(Middleware(secret))
	NewHandler(eng, v).RegisterRoutes(group)
	return router, eng, v
}

func do(t *testing.T, router *gin.Engine, method, path, adminSecret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if adminSecret != "" {
		req.Header.Set("X-Admin-Secret", adminSecret)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareRejectsMissingSecret(t *testing.T) {
	router, _, _ := newAdminRouter(t)

	w := do(t, router, http.MethodGet, "/admin/fee-policy", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/admin/fee-policy", "wrong", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/admin/fee-policy", secret, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareDisabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(""))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSetFeePolicyEndpoint(t *testing.T) {
	router, eng, _ := newAdminRouter(t)

	w := do(t, router, http.MethodPut, "/admin/fee-policy", secret, gin.H{
		"rateBps":   250,
		"recipient": feeRecipient,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint16(250), eng.FeePolicy().RateBps)

	w = do(t, router, http.MethodPut, "/admin/fee-policy", secret, gin.H{
		"rateBps":   50,
		"recipient": "not-an-address",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPauseEndpoint(t *testing.T) {
	router, eng, _ := newAdminRouter(t)

	w := do(t, router, http.MethodPut, "/admin/pause", secret, gin.H{"paused": true})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, eng.Paused())
}

func TestFundAndDepositEndpoints(t *testing.T) {
	router, eng, v := newAdminRouter(t)

	w := do(t, router, http.MethodPost, "/admin/treasury/fund", secret, gin.H{"amount": 500})
	require.Equal(t, http.StatusOK, w.Code)

	tb, err := eng.TreasuryBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(500), tb)

	w = do(t, router, http.MethodPost, "/admin/deposits", secret, gin.H{
		"address": playerAddr,
		"amount":  250,
	})
	require.Equal(t, http.StatusOK, w.Code)

	bal, err := v.Balance(context.Background(), playerAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(250), bal)

	w = do(t, router, http.MethodPost, "/admin/treasury/withdraw", secret, gin.H{
		"to":     owner,
		"amount": 200,
	})
	require.Equal(t, http.StatusOK, w.Code)

	tb, err = eng.TreasuryBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(300), tb)

	// Overdrawing the treasury fails.
	w = do(t, router, http.MethodPost, "/admin/treasury/withdraw", secret, gin.H{
		"to":     owner,
		"amount": 10_000,
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOracleCallerEndpoints(t *testing.T) {
	router, eng, _ := newAdminRouter(t)

	w := do(t, router, http.MethodPost, "/admin/oracle/callers", secret, gin.H{"address": playerAddr})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, eng.Verifier().Callers(), "0x2000000000000000000000000000000000000002")

	w = do(t, router, http.MethodDelete, "/admin/oracle/callers/"+playerAddr, secret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, eng.Verifier().Callers(), "0x2000000000000000000000000000000000000002")
}

func TestCreateWheelEndpoint(t *testing.T) {
	router, eng, _ := newAdminRouter(t)

	w := do(t, router, http.MethodPut, "/admin/wheels/w1", secret, gin.H{
		"prizes": []gin.H{
			{"id": "gold", "kind": "fungible", "amount": 1000, "stock": 2},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	prizes, err := eng.WheelPrizes(context.Background(), "w1")
	require.NoError(t, err)
	require.Len(t, prizes, 1)

	// Inconsistent pooled prize is rejected.
	w = do(t, router, http.MethodPut, "/admin/wheels/w2", secret, gin.H{
		"prizes": []gin.H{
			{"id": "plush", "kind": "pooled", "stock": 2, "collection": "c", "items": []string{"only-one"}},
		},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
