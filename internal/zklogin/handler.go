package zklogin

import (
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/errors"
	"github.com/ahwlsqja/zklogin-session-engine/internal/common/middleware"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/ratelimit"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the login flow
type Handler struct {
	service      *Service
	proofLimiter *ratelimit.MapLimiter
	sessionsPath string
}

// NewHandler creates a new zkLogin handler. A nil limiter disables proof rate limiting.
func NewHandler(service *Service, proofLimiter *ratelimit.MapLimiter) *Handler {
	return &Handler{service: service, proofLimiter: proofLimiter}
}

// RegisterRoutes registers session and salt routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	h.sessionsPath = sessions.BasePath()
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/restart", h.RestartSession)
		sessions.GET("/:id/authorize", h.Authorize)
		sessions.POST("/:id/token", h.SubmitToken)
		sessions.POST("/:id/proof",
			ratelimit.Middleware(h.proofLimiter, ratelimit.ByClientIP, rejectRateLimited),
			h.AcquireProof,
		)
		sessions.POST("/:id/transactions", h.ExecuteTransaction)
		sessions.POST("/:id/transfers", h.Transfer)
	}
	rg.DELETE("/salts", h.DeleteSalt)
}

func rejectRateLimited(c *gin.Context) {
	middleware.RespondError(c, errors.RateLimited())
}

// extractAndValidateSessionID extracts and validates the session id from path
func extractAndValidateSessionID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.InvalidInput("Invalid session ID format")
	}
	return id, nil
}

// StartSession godoc
// @Summary Open a login session
// @Description Generates an ephemeral key, fixes the epoch window and derives the OAuth nonce
// @Tags sessions
// @Produce json
// @Success 201 {object} middleware.SuccessResponse{data=SessionResponse} "Session opened"
// @Failure 503 {object} middleware.ErrorResponse "Node unavailable"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /api/v1/sessions [post]
func (h *Handler) StartSession(c *gin.Context) {
	res, err := h.service.Start(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondCreated(c, h.toSessionResponse(res))
}

// RestartSession godoc
// @Summary Restart a login session
// @Description Discards all material of the session and opens it again under the same ID
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} middleware.SuccessResponse{data=SessionResponse} "Session reopened"
// @Failure 404 {object} middleware.ErrorResponse "Session not found"
// @Failure 409 {object} middleware.ErrorResponse "Another step is in progress"
// @Router /api/v1/sessions/{id}/restart [post]
func (h *Handler) RestartSession(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	res, err := h.service.Restart(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, h.toSessionResponse(res))
}

// GetSession godoc
// @Summary Get session status
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} middleware.SuccessResponse{data=StatusResponse} "Session status"
// @Failure 400 {object} middleware.ErrorResponse "Invalid session ID"
// @Failure 404 {object} middleware.ErrorResponse "Session not found"
// @Router /api/v1/sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	status, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, ToStatusResponse(status))
}

// Authorize godoc
// @Summary Redirect to the OAuth provider
// @Description Redirects the browser to the provider's authorize endpoint with the session nonce
// @Tags sessions
// @Param id path string true "Session ID (UUID)"
// @Success 302 "Redirect to provider"
// @Failure 400 {object} middleware.ErrorResponse "Invalid state transition"
// @Failure 404 {object} middleware.ErrorResponse "Session not found"
// @Router /api/v1/sessions/{id}/authorize [get]
func (h *Handler) Authorize(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	location, err := h.service.Authorize(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	c.Redirect(http.StatusFound, location)
}

// SubmitToken godoc
// @Summary Submit the id_token returned by the provider
// @Description Checks the token nonce, resolves the salt and derives the address
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body SubmitTokenRequest true "Identity token"
// @Success 200 {object} middleware.SuccessResponse{data=IdentityResponse} "Identity correlated"
// @Failure 400 {object} middleware.ErrorResponse "Malformed token"
// @Failure 401 {object} middleware.ErrorResponse "Nonce mismatch"
// @Failure 409 {object} middleware.ErrorResponse "Another step is in progress"
// @Router /api/v1/sessions/{id}/token [post]
func (h *Handler) SubmitToken(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req SubmitTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}

	res, err := h.service.Correlate(c.Request.Context(), id, req.IDToken)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, ToIdentityResponse(res))
}

// AcquireProof godoc
// @Summary Request the zkLogin proof
// @Description Calls the proving service once. Transient failures leave the session retryable.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} middleware.SuccessResponse{data=StatusResponse} "Session is signable"
// @Failure 409 {object} middleware.ErrorResponse "Identity token expired"
// @Failure 422 {object} middleware.ErrorResponse "Proof rejected"
// @Failure 429 {object} middleware.ErrorResponse "Rate limited"
// @Failure 502 {object} middleware.ErrorResponse "Proof malformed"
// @Failure 503 {object} middleware.ErrorResponse "Prover unavailable"
// @Router /api/v1/sessions/{id}/proof [post]
func (h *Handler) AcquireProof(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	status, err := h.service.AcquireProof(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, ToStatusResponse(status))
}

// ExecuteTransaction godoc
// @Summary Sign and execute a transaction
// @Description Signs client-built transaction bytes with the session's zkLogin authority and submits them
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body ExecuteTransactionRequest true "Transaction bytes"
// @Success 200 {object} middleware.SuccessResponse{data=ExecutionResponse} "Executed"
// @Failure 401 {object} middleware.ErrorResponse "Epoch window expired"
// @Failure 409 {object} middleware.ErrorResponse "Proof expired"
// @Failure 422 {object} middleware.ErrorResponse "Rejected by the node"
// @Router /api/v1/sessions/{id}/transactions [post]
func (h *Handler) ExecuteTransaction(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req ExecuteTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	txBytes, err := base64.StdEncoding.DecodeString(req.TxBytes)
	if err != nil || len(txBytes) == 0 {
		middleware.RespondError(c, errors.InvalidInput("tx_bytes must be non-empty base64"))
		return
	}

	exec, err := h.service.Execute(c.Request.Context(), id, txBytes)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, ExecutionResponse{Digest: exec.Digest})
}

// Transfer godoc
// @Summary Transfer SUI from the session address
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body TransferRequest true "Transfer"
// @Success 200 {object} middleware.SuccessResponse{data=ExecutionResponse} "Executed"
// @Failure 400 {object} middleware.ErrorResponse "Invalid input"
// @Failure 422 {object} middleware.ErrorResponse "Rejected by the node"
// @Router /api/v1/sessions/{id}/transfers [post]
func (h *Handler) Transfer(c *gin.Context) {
	id, err := extractAndValidateSessionID(c)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}
	recipient, ok := sui.NormalizeAddress(req.Recipient)
	if !ok {
		middleware.RespondError(c, errors.InvalidInput("Invalid recipient address"))
		return
	}
	amount, err := strconv.ParseUint(req.Amount, 10, 64)
	if err != nil || amount == 0 {
		middleware.RespondError(c, errors.InvalidInput("amount must be a positive integer of MIST"))
		return
	}

	exec, err := h.service.Transfer(c.Request.Context(), id, recipient, amount)
	if err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondOK(c, ExecutionResponse{Digest: exec.Digest})
}

// DeleteSalt godoc
// @Summary Delete an identity's salt
// @Description The derived address becomes unreachable. Requires confirm=true.
// @Tags salts
// @Accept json
// @Param request body DeleteSaltRequest true "Identity"
// @Success 204 "Deleted"
// @Failure 400 {object} middleware.ErrorResponse "Not confirmed"
// @Failure 404 {object} middleware.ErrorResponse "Salt not found"
// @Router /api/v1/salts [delete]
func (h *Handler) DeleteSalt(c *gin.Context) {
	var req DeleteSaltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}

	id := Identity{Issuer: req.Issuer, Audience: req.Audience, Subject: req.Subject}
	if err := h.service.DeleteSalt(c.Request.Context(), id, req.Confirm); err != nil {
		middleware.RespondError(c, toAppError(err))
		return
	}
	middleware.RespondNoContent(c)
}

func (h *Handler) toSessionResponse(res *StartResult) SessionResponse {
	return SessionResponse{
		SessionID:    res.SessionID,
		Nonce:        res.Nonce,
		CurrentEpoch: strconv.FormatUint(res.CurrentEpoch, 10),
		MaxEpoch:     strconv.FormatUint(res.MaxEpoch, 10),
		AuthorizeURL: h.sessionsPath + "/" + res.SessionID + "/authorize",
	}
}

// toAppError maps flow errors to API errors
func toAppError(err error) error {
	var transitionErr *TransitionError
	var submissionErr *SubmissionError

	switch {
	case stderrors.As(err, &transitionErr):
		return errors.InvalidStateTransition(transitionErr.From.String(), transitionErr.To.String())
	case stderrors.As(err, &submissionErr):
		return errors.SubmissionRejected(submissionErr.Reason, submissionErr.Digest).WithError(err)
	case stderrors.Is(err, ErrSessionNotFound):
		return errors.NotFound("Session")
	case stderrors.Is(err, ErrSaltNotFound):
		return errors.NotFound("Salt")
	case stderrors.Is(err, ErrFlowBusy):
		return errors.LockFailed("session")
	case stderrors.Is(err, ErrNonceMismatch):
		return errors.NonceMismatch()
	case stderrors.Is(err, ErrMalformedToken):
		return errors.MalformedToken(err.Error())
	case stderrors.Is(err, ErrExpiredWindow):
		return errors.ExpiredWindow()
	case stderrors.Is(err, ErrProofExpired):
		return errors.MaterialExpired("Proof expired, request it again")
	case stderrors.Is(err, ErrTokenExpired):
		return errors.MaterialExpired("Identity token expired, restart the login")
	case stderrors.Is(err, ErrKeyMismatch):
		return errors.KeyMismatch()
	case stderrors.Is(err, ErrEpochQueryFailed):
		return errors.ChainError("Could not read the current epoch").WithError(err)
	case stderrors.Is(err, ErrProverUnavailable):
		return errors.ProverUnavailable().WithError(err)
	case stderrors.Is(err, ErrProofRejected):
		return errors.ProofRejected(err.Error())
	case stderrors.Is(err, ErrProofMalformed):
		return errors.ProofMalformed().WithError(err)
	case stderrors.Is(err, ErrDeleteNotConfirmed):
		return errors.InvalidInput("Salt deletion must be confirmed")
	}
	return errors.Internal("An unexpected error occurred").WithError(err)
}
