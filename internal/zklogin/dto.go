package zklogin

import "strconv"

// ============================================================================
// Request DTOs
// ============================================================================

// SubmitTokenRequest carries the id_token taken from the provider redirect fragment
type SubmitTokenRequest struct {
	IDToken string `json:"id_token" binding:"required" example:"eyJhbGciOiJSUzI1NiJ9.eyJpc3MiOi..."`
}

// ExecuteTransactionRequest carries BCS transaction bytes built by the client
type ExecuteTransactionRequest struct {
	TxBytes string `json:"tx_bytes" binding:"required,base64" example:"AAACACBqEB6aOvXIBwES+Ahkizbvv43uihqC3kbZUE6WoRCKFwEAjvdvVsOZYzousxC8qRJOXr6dc5ibLEPPsdZCnsexwN7wAgAAAAAAACD0qw1bmgwPwcN6ELyZfF3y29HhVp2A8ZkKaQZbrGfnfQ=="`
}

// TransferRequest asks the server to build and sign a SUI transfer
type TransferRequest struct {
	Recipient string `json:"recipient" binding:"required" example:"0xfa0f8542f256e669694624aa3ee7bfbde5af54641646a3a05924cf9e329a8a36"`
	// Amount in MIST as a decimal string
	Amount string `json:"amount" binding:"required,numeric" example:"1000000000"`
}

// DeleteSaltRequest names the identity whose salt is removed.
// NOTE: 삭제 후 해당 주소의 자산은 복구 불가 → confirm 필수
type DeleteSaltRequest struct {
	Issuer   string `json:"issuer" binding:"required" example:"https://accounts.google.com"`
	Audience string `json:"audience" binding:"required" example:"25769832374-famecqrhe2gkebt5fvqms2263046lj96.apps.googleusercontent.com"`
	Subject  string `json:"subject" binding:"required" example:"110463452167303598383"`
	Confirm  bool   `json:"confirm" example:"true"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// SessionResponse is returned when a session is opened
type SessionResponse struct {
	SessionID    string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Nonce        string `json:"nonce" example:"pTNIwEUQaNzUMEnE6uwFzgHzgR8"`
	CurrentEpoch string `json:"current_epoch" example:"100"`
	MaxEpoch     string `json:"max_epoch" example:"110"`
	AuthorizeURL string `json:"authorize_url" example:"/api/v1/sessions/550e8400-e29b-41d4-a716-446655440000/authorize"`
}

// StatusResponse is the current view of a session
type StatusResponse struct {
	SessionID string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	State     string `json:"state" example:"SIGNABLE"`
	Address   string `json:"address,omitempty" example:"0xfa0f8542f256e669694624aa3ee7bfbde5af54641646a3a05924cf9e329a8a36"`
	MaxEpoch  string `json:"max_epoch,omitempty" example:"110"`
	Digest    string `json:"digest,omitempty" example:"9Zq3RUq5W7ehkEvVm9Kd7uHPyQjzYFfGQ7sFcXUjAFRW"`
	LastError string `json:"last_error,omitempty" example:"nonce_mismatch"`
}

// IdentityResponse is returned once a token has been correlated
type IdentityResponse struct {
	Address  string `json:"address" example:"0xfa0f8542f256e669694624aa3ee7bfbde5af54641646a3a05924cf9e329a8a36"`
	Issuer   string `json:"issuer" example:"https://accounts.google.com"`
	Audience string `json:"audience" example:"25769832374-famecqrhe2gkebt5fvqms2263046lj96.apps.googleusercontent.com"`
	Subject  string `json:"subject" example:"110463452167303598383"`
}

// ExecutionResponse carries the digest of an executed transaction
type ExecutionResponse struct {
	Digest string `json:"digest" example:"9Zq3RUq5W7ehkEvVm9Kd7uHPyQjzYFfGQ7sFcXUjAFRW"`
}

// ============================================================================
// Converters
// ============================================================================

// ToStatusResponse converts a SessionStatus
func ToStatusResponse(s *SessionStatus) StatusResponse {
	resp := StatusResponse{
		SessionID: s.SessionID,
		State:     s.State.String(),
		Address:   s.Address,
		Digest:    s.Digest,
		LastError: s.LastError,
	}
	if s.MaxEpoch > 0 {
		resp.MaxEpoch = strconv.FormatUint(s.MaxEpoch, 10)
	}
	return resp
}

// ToIdentityResponse converts a CorrelateResult
func ToIdentityResponse(r *CorrelateResult) IdentityResponse {
	return IdentityResponse{
		Address:  r.Address,
		Issuer:   r.Claims.Issuer,
		Audience: r.Claims.Audience,
		Subject:  r.Claims.Subject,
	}
}
