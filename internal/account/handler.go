package account

import (
	"net/http"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/errors"
	"github.com/ahwlsqja/zklogin-session-engine/internal/common/middleware"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for account queries
type Handler struct {
	service       *Service
	faucetLimiter *ratelimit.MapLimiter
}

// NewHandler creates a new account handler. A nil limiter disables faucet rate limiting.
func NewHandler(service *Service, faucetLimiter *ratelimit.MapLimiter) *Handler {
	return &Handler{service: service, faucetLimiter: faucetLimiter}
}

// RegisterRoutes registers account routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts/:address")
	{
		accounts.GET("/balance", h.GetBalance)
		// 주소 단위로 제한: 여러 IP에서 같은 주소로 몰아받는 것 방지
		accounts.POST("/faucet",
			ratelimit.Middleware(h.faucetLimiter, ratelimit.ByParam("address"), func(c *gin.Context) {
				middleware.RespondError(c, errors.RateLimited())
			}),
			h.RequestFaucet,
		)
	}
}

// GetBalance godoc
// @Summary Get SUI balance
// @Description Returns the SUI balance of an address
// @Tags accounts
// @Produce json
// @Param address path string true "Sui address (0x-prefixed hex)"
// @Success 200 {object} middleware.SuccessResponse{data=BalanceResponse} "Balance"
// @Failure 400 {object} middleware.ErrorResponse "Invalid address"
// @Failure 503 {object} middleware.ErrorResponse "Node unavailable"
// @Router /api/v1/accounts/{address}/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("address"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondOK(c, ToBalanceResponse(balance))
}

// RequestFaucet godoc
// @Summary Request test funds
// @Description Asks the network faucet to fund an address
// @Tags accounts
// @Produce json
// @Param address path string true "Sui address (0x-prefixed hex)"
// @Success 202 {object} middleware.SuccessResponse{data=FaucetResponse} "Requested"
// @Failure 400 {object} middleware.ErrorResponse "Invalid address"
// @Failure 429 {object} middleware.ErrorResponse "Rate limited"
// @Failure 502 {object} middleware.ErrorResponse "Faucet error"
// @Router /api/v1/accounts/{address}/faucet [post]
func (h *Handler) RequestFaucet(c *gin.Context) {
	address, err := h.service.RequestFunds(c.Request.Context(), c.Param("address"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	middleware.RespondSuccess(c, http.StatusAccepted, FaucetResponse{Address: address, Status: "requested"})
}
