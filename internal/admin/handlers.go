package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spikeyfun/game-contracts/internal/engine"
	"github.com/Spikeyfun/game-contracts/internal/validation"
	"github.com/Spikeyfun/game-contracts/internal/vault"
)

// Handler provides the admin HTTP endpoints. All mutations run as the
// configured owner address.
type Handler struct {
	engine *engine.Engine
	vault  *vault.Vault
}

// NewHandler creates a new admin handler.
func NewHandler(e *engine.Engine, v *vault.Vault) *Handler {
	return &Handler{engine: e, vault: v}
}

// RegisterRoutes sets up the admin routes. The caller is expected to have
// attached Middleware to the group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/fee-policy", h.SetFeePolicy)
	r.GET("/fee-policy", h.GetFeePolicy)
	r.PUT("/pause", h.SetPaused)
	r.POST("/treasury/fund", h.FundTreasury)
	r.POST("/treasury/withdraw", h.WithdrawTreasury)
	r.POST("/deposits", h.Deposit)
	r.PUT("/wheels/:id", h.CreateWheel)
	r.POST("/oracle/callers", h.AllowCaller)
	r.DELETE("/oracle/callers/:address", h.RevokeCaller)
	r.GET("/oracle/callers", h.ListCallers)
}

// FeePolicyRequest is the body for PUT /admin/fee-policy.
type FeePolicyRequest struct {
	RateBps   uint16 `json:"rateBps"`
	Recipient string `json:"recipient" binding:"required"`
}

// SetFeePolicy handles PUT /admin/fee-policy.
func (h *Handler) SetFeePolicy(c *gin.Context) {
	var req FeePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Recipient) {
		badRequest(c, "Invalid recipient address")
		return
	}
	policy := engine.FeePolicy{RateBps: req.RateBps, Recipient: req.Recipient}
	if err := h.engine.SetFeePolicy(h.engine.Owner(), policy); err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feePolicy": h.engine.FeePolicy()})
}

// GetFeePolicy handles GET /admin/fee-policy.
func (h *Handler) GetFeePolicy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feePolicy": h.engine.FeePolicy()})
}

// PauseRequest is the body for PUT /admin/pause.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// SetPaused handles PUT /admin/pause.
func (h *Handler) SetPaused(c *gin.Context) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.engine.SetPaused(h.engine.Owner(), req.Paused); err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": h.engine.Paused()})
}

// FundRequest is the body for POST /admin/treasury/fund.
type FundRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// FundTreasury handles POST /admin/treasury/fund.
func (h *Handler) FundTreasury(c *gin.Context) {
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.engine.FundTreasury(c.Request.Context(), h.engine.Owner(), req.Amount); err != nil {
		adminError(c, err)
		return
	}
	balance, err := h.engine.TreasuryBalance(c.Request.Context())
	if err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// WithdrawRequest is the body for POST /admin/treasury/withdraw.
type WithdrawRequest struct {
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// WithdrawTreasury handles POST /admin/treasury/withdraw.
func (h *Handler) WithdrawTreasury(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.To) {
		badRequest(c, "Invalid recipient address")
		return
	}
	if err := h.engine.DefundTreasury(c.Request.Context(), h.engine.Owner(), req.To, req.Amount); err != nil {
		adminError(c, err)
		return
	}
	balance, err := h.engine.TreasuryBalance(c.Request.Context())
	if err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// DepositRequest is the body for POST /admin/deposits. Player funding is
// an operator action here; production deployments settle deposits through
// an external payment rail.
type DepositRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

// Deposit handles POST /admin/deposits.
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Address) {
		badRequest(c, "Invalid address")
		return
	}
	if err := h.vault.Deposit(c.Request.Context(), req.Address, req.Amount, "admin_deposit"); err != nil {
		adminError(c, err)
		return
	}
	balance, err := h.vault.Balance(c.Request.Context(), req.Address)
	if err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": req.Address, "balance": balance})
}

// WheelRequest is the body for PUT /admin/wheels/:id.
type WheelRequest struct {
	Prizes []*engine.Prize `json:"prizes" binding:"required"`
}

// CreateWheel handles PUT /admin/wheels/:id.
func (h *Handler) CreateWheel(c *gin.Context) {
	var req WheelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	wheelID := c.Param("id")
	if err := h.engine.CreateWheel(c.Request.Context(), h.engine.Owner(), wheelID, req.Prizes); err != nil {
		adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wheel": wheelID, "prizes": len(req.Prizes)})
}

// CallerRequest is the body for POST /admin/oracle/callers.
type CallerRequest struct {
	Address string `json:"address" binding:"required"`
}

// AllowCaller handles POST /admin/oracle/callers.
func (h *Handler) AllowCaller(c *gin.Context) {
	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !validation.IsValidAddress(req.Address) {
		badRequest(c, "Invalid address")
		return
	}
	h.engine.Verifier().AllowCaller(req.Address)
	c.JSON(http.StatusOK, gin.H{"callers": h.engine.Verifier().Callers()})
}

// RevokeCaller handles DELETE /admin/oracle/callers/:address.
func (h *Handler) RevokeCaller(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		badRequest(c, "Invalid address")
		return
	}
	h.engine.Verifier().RevokeCaller(address)
	c.JSON(http.StatusOK, gin.H{"callers": h.engine.Verifier().Callers()})
}

// ListCallers handles GET /admin/oracle/callers.
func (h *Handler) ListCallers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"callers": h.engine.Verifier().Callers()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

func adminError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "admin_operation_failed",
		"message": err.Error(),
	})
}
