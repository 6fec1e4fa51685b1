package engine

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Spikeyfun/game-contracts/internal/oracle"
	"github.com/Spikeyfun/game-contracts/internal/validation"
	"github.com/Spikeyfun/game-contracts/internal/vault"
)

// Handler provides HTTP endpoints for game submissions, oracle callbacks,
// refunds, and the read-only query surface.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new engine handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up the public engine routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/rps/wagers", h.SubmitWager)
	r.POST("/raffles", h.SubmitRaffle)
	r.POST("/wheel/spins", h.SubmitSpin)
	r.POST("/oracle/fulfill", h.Fulfill)
	r.POST("/players/:address/reclaim", h.Reclaim)

	r.GET("/requests/:nonce", h.GetPending)
	r.GET("/results/:nonce", h.GetCompleted)
	r.GET("/players/:address/last-nonce", h.LastNonce)
	r.GET("/treasury", h.Treasury)
	r.GET("/history", h.History)
	r.GET("/wheels/:id", h.Wheel)
}

// WagerRequest is the body for POST /v1/rps/wagers.
type WagerRequest struct {
	Player string `json:"player" binding:"required"`
	Move   uint8  `json:"move"`
	Stake  uint64 `json:"stake" binding:"required"`
	Seed   string `json:"seed" binding:"required"` // hex
}

// SubmitWager handles POST /v1/rps/wagers.
//
// The response is 202: the outcome arrives asynchronously via the oracle
// callback, and the nonce is intentionally not echoed back — clients
// discover it through the last-nonce query.
func (h *Handler) SubmitWager(c *gin.Context) {
	var req WagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Player) {
		badRequest(c, "Invalid player address")
		return
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		badRequest(c, "Seed must be a hex string")
		return
	}

	if _, err := h.engine.SubmitWager(c.Request.Context(), req.Player, Move(req.Move), req.Stake, seed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// RaffleRequest is the body for POST /v1/raffles.
type RaffleRequest struct {
	Organizer    string   `json:"organizer" binding:"required"`
	Participants []string `json:"participants" binding:"required"`
	Prize        uint64   `json:"prize" binding:"required"`
	Seed         string   `json:"seed" binding:"required"`
}

// SubmitRaffle handles POST /v1/raffles.
func (h *Handler) SubmitRaffle(c *gin.Context) {
	var req RaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Organizer) {
		badRequest(c, "Invalid organizer address")
		return
	}
	for _, p := range req.Participants {
		if !validation.IsValidAddress(p) {
			badRequest(c, "Invalid participant address")
			return
		}
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		badRequest(c, "Seed must be a hex string")
		return
	}

	if _, err := h.engine.SubmitRaffle(c.Request.Context(), req.Organizer, req.Participants, req.Prize, seed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// SpinRequest is the body for POST /v1/wheel/spins.
type SpinRequest struct {
	Player  string `json:"player" binding:"required"`
	WheelID string `json:"wheelId" binding:"required"`
	Seed    string `json:"seed" binding:"required"`
}

// SubmitSpin handles POST /v1/wheel/spins.
func (h *Handler) SubmitSpin(c *gin.Context) {
	var req SpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Player) {
		badRequest(c, "Invalid player address")
		return
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		badRequest(c, "Seed must be a hex string")
		return
	}

	if _, err := h.engine.SubmitSpin(c.Request.Context(), req.Player, req.WheelID, seed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// FulfillRequest is the body for POST /v1/oracle/fulfill.
type FulfillRequest struct {
	Nonce      string   `json:"nonce" binding:"required"`
	Seed       string   `json:"seed" binding:"required"`
	Randomness []string `json:"randomness" binding:"required"` // decimal strings
	Signature  string   `json:"signature" binding:"required"`  // hex, 65 bytes
	Caller     string   `json:"caller" binding:"required"`
}

// Fulfill handles POST /v1/oracle/fulfill.
func (h *Handler) Fulfill(c *gin.Context) {
	var req FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	seed, err := decodeSeed(req.Seed)
	if err != nil {
		badRequest(c, "Seed must be a hex string")
		return
	}
	sig, err := hex.DecodeString(trim0x(req.Signature))
	if err != nil {
		badRequest(c, "Signature must be a hex string")
		return
	}

	values := make([]*big.Int, 0, len(req.Randomness))
	for _, r := range req.Randomness {
		v, ok := new(big.Int).SetString(r, 10)
		if !ok || v.Sign() < 0 {
			badRequest(c, "Randomness values must be non-negative decimal strings")
			return
		}
		values = append(values, v)
	}

	cb := &oracle.Callback{
		Nonce:      req.Nonce,
		Seed:       seed,
		Randomness: values,
		Signature:  sig,
		Caller:     req.Caller,
	}
	if err := h.engine.Fulfill(c.Request.Context(), cb); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReclaimRequest optionally names a single nonce to refund.
type ReclaimRequest struct {
	Nonce string `json:"nonce"`
}

// Reclaim handles POST /v1/players/:address/reclaim. Without a nonce in
// the body it refunds everything stale the player has outstanding.
func (h *Handler) Reclaim(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		badRequest(c, "Invalid player address")
		return
	}

	var req ReclaimRequest
	_ = c.ShouldBindJSON(&req) // empty body is fine

	if req.Nonce != "" {
		if err := h.engine.ReclaimNonce(c.Request.Context(), address, req.Nonce); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"refunded": 1})
		return
	}

	n, err := h.engine.Reclaim(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": n})
}

// GetPending handles GET /v1/requests/:nonce.
func (h *Handler) GetPending(c *gin.Context) {
	req, err := h.engine.Pending(c.Request.Context(), c.Param("nonce"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}

// GetCompleted handles GET /v1/results/:nonce.
func (h *Handler) GetCompleted(c *gin.Context) {
	rec, err := h.engine.Completed(c.Request.Context(), c.Param("nonce"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": rec})
}

// LastNonce handles GET /v1/players/:address/last-nonce.
func (h *Handler) LastNonce(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		badRequest(c, "Invalid player address")
		return
	}
	nonce, ok, err := h.engine.LastNonce(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No outstanding requests",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Treasury handles GET /v1/treasury.
func (h *Handler) Treasury(c *gin.Context) {
	balance, err := h.engine.TreasuryBalance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// History handles GET /v1/history?game=rps&limit=50.
func (h *Handler) History(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	recs, err := h.engine.History(c.Request.Context(), Game(c.Query("game")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": recs, "count": len(recs)})
}

// Wheel handles GET /v1/wheels/:id.
func (h *Handler) Wheel(c *gin.Context) {
	prizes, err := h.engine.WheelPrizes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prizes": prizes, "count": len(prizes)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

// respondError maps engine errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, ErrInvalidSelection),
		errors.Is(err, ErrStakeOutOfBounds),
		errors.Is(err, ErrNoParticipants),
		errors.Is(err, ErrInvalidPrize),
		errors.Is(err, ErrInvalidFeeConfig),
		errors.Is(err, ErrUnexpectedRandomCount),
		errors.Is(err, ErrInvalidIndex),
		errors.Is(err, vault.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, vault.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, vault.ErrInsufficientTreasuryFunds):
		status, code = http.StatusPaymentRequired, "insufficient_treasury_funds"
	case errors.Is(err, ErrRequestNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrNoPrizesAvailable):
		status, code = http.StatusConflict, "no_prizes_available"
	case errors.Is(err, ErrTooEarlyForRefund):
		status, code = http.StatusConflict, "too_early_for_refund"
	case errors.Is(err, ErrNotRequestOwner),
		errors.Is(err, ErrUnauthorized):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, oracle.ErrUnauthorizedCaller):
		status, code = http.StatusForbidden, "unauthorized_oracle_caller"
	case errors.Is(err, oracle.ErrVerificationFailed),
		errors.Is(err, oracle.ErrMalformedSignature):
		status, code = http.StatusUnauthorized, "verification_failed"
	case errors.Is(err, ErrPaused),
		errors.Is(err, ErrNotInitialized):
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func decodeSeed(s string) ([]byte, error) {
	return hex.DecodeString(trim0x(s))
}

func trim0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
