package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *harness) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newHarness(t)
	router := gin.New()
	NewHandler(h.engine).RegisterRoutes(router.Group("/v1"))
	return router, h
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitWagerEndpointDoesNotLeakNonce(t *testing.T) {
	router, h := newTestRouter(t)
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	w := doJSON(t, router, http.MethodPost, "/v1/rps/wagers", gin.H{
		"player": player,
		"move":   0,
		"stake":  100_000_000,
		"seed":   hex.EncodeToString([]byte("seed")),
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotContains(t, w.Body.String(), "rnd_", "submission must not return the oracle nonce")

	// The nonce is observable via the last-nonce query.
	w = doJSON(t, router, http.MethodGet, "/v1/players/"+player+"/last-nonce", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Nonce, "rnd_")
}

func TestSubmitWagerEndpointValidation(t *testing.T) {
	router, h := newTestRouter(t)
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"bad address", gin.H{"player": "nope", "move": 0, "stake": 100_000_000, "seed": "aa"}, http.StatusBadRequest},
		{"bad seed", gin.H{"player": player, "move": 0, "stake": 100_000_000, "seed": "zz"}, http.StatusBadRequest},
		{"bad move", gin.H{"player": player, "move": 9, "stake": 100_000_000, "seed": "aa"}, http.StatusBadRequest},
		{"stake too low", gin.H{"player": player, "move": 0, "stake": 999_999, "seed": "aa"}, http.StatusBadRequest},
		{"missing stake", gin.H{"player": player, "move": 0, "seed": "aa"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/rps/wagers", tc.body)
			require.Equal(t, tc.code, w.Code)
		})
	}
}

func TestSubmitWagerEndpointInsufficientFunds(t *testing.T) {
	router, h := newTestRouter(t)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	w := doJSON(t, router, http.MethodPost, "/v1/rps/wagers", gin.H{
		"player": player, "move": 0, "stake": 100_000_000, "seed": "aa",
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestFulfillEndpointSettles(t *testing.T) {
	router, h := newTestRouter(t)
	ctx := context.Background()
	seed := []byte("seed")
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	nonce, err := h.engine.SubmitWager(ctx, player, MoveRock, 100_000_000, seed)
	require.NoError(t, err)

	cb, err := h.dev.FulfillWith(nonce, seed, big.NewInt(2))
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/v1/oracle/fulfill", gin.H{
		"nonce":      cb.Nonce,
		"seed":       hex.EncodeToString(cb.Seed),
		"randomness": []string{cb.Randomness[0].String()},
		"signature":  hex.EncodeToString(cb.Signature),
		"caller":     cb.Caller,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/results/"+nonce, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"win"`)
}

func TestFulfillEndpointRejectsBadSignature(t *testing.T) {
	router, h := newTestRouter(t)
	ctx := context.Background()
	seed := []byte("seed")
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	nonce, err := h.engine.SubmitWager(ctx, player, MoveRock, 100_000_000, seed)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/v1/oracle/fulfill", gin.H{
		"nonce":      nonce,
		"seed":       hex.EncodeToString(seed),
		"randomness": []string{"2"},
		"signature":  hex.EncodeToString(make([]byte, 65)),
		"caller":     owner,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReclaimEndpoint(t *testing.T) {
	router, h := newTestRouter(t)
	ctx := context.Background()
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	nonce, err := h.engine.SubmitWager(ctx, player, MoveRock, 100_000_000, []byte("s"))
	require.NoError(t, err)

	// Too early for the single-nonce path.
	w := doJSON(t, router, http.MethodPost, "/v1/players/"+player+"/reclaim", gin.H{"nonce": nonce})
	require.Equal(t, http.StatusConflict, w.Code)

	h.clock.Advance(7 * time.Hour)
	w = doJSON(t, router, http.MethodPost, "/v1/players/"+player+"/reclaim", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"refunded":1`)
}

func TestQueryEndpoints(t *testing.T) {
	router, h := newTestRouter(t)
	ctx := context.Background()
	seed := []byte("seed")
	h.fund(t, player, 100_000_000)
	h.fund(t, h.vault.Treasury(), 200_000_000)

	nonce, err := h.engine.SubmitWager(ctx, player, MoveRock, 100_000_000, seed)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/v1/requests/"+nonce, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"game":"rps"`)

	w = doJSON(t, router, http.MethodGet, "/v1/requests/rnd_missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/treasury", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), fmt.Sprintf(`"balance":%d`, 299_000_000))

	require.NoError(t, h.fulfill(t, nonce, seed, 1))

	w = doJSON(t, router, http.MethodGet, "/v1/history?game=rps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(t, router, http.MethodGet, "/v1/history?game=wheel", nil)
	require.Contains(t, w.Body.String(), `"count":0`)
}
