package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"go.uber.org/zap"
)

const (
	// DefaultKeyClaimName is the claim the proof binds the address to
	DefaultKeyClaimName = "sub"

	maxResponseBytes = 1 << 20
)

// Error definitions
var (
	ErrUnavailable = errors.New("prover unavailable")
	ErrRejected    = errors.New("prover rejected inputs")
	ErrMalformed   = errors.New("prover response malformed")
)

// Request is the JSON body sent to the proving service
type Request struct {
	JWT                        string `json:"jwt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   uint64 `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

// Proof is the partial zkLogin signature returned by the prover, everything except the address seed
type Proof struct {
	ProofPoints      sui.ProofPoints      `json:"proofPoints"`
	IssBase64Details sui.IssBase64Details `json:"issBase64Details"`
	HeaderBase64     string               `json:"headerBase64"`
}

// Validate reports whether every field needed to build a signature is present
func (p *Proof) Validate() error {
	switch {
	case len(p.ProofPoints.A) == 0 || len(p.ProofPoints.B) == 0 || len(p.ProofPoints.C) == 0:
		return errors.New("missing proof points")
	case p.IssBase64Details.Value == "":
		return errors.New("missing issBase64Details")
	case p.HeaderBase64 == "":
		return errors.New("missing headerBase64")
	}
	return nil
}

// StatusError carries the HTTP status and message reported by the prover
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// Client calls a zkLogin proving service over HTTP
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a prover client for endpoint
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Prove issues exactly one request to the prover. It never retries.
func (c *Client) Prove(ctx context.Context, req Request) (*Proof, error) {
	if req.KeyClaimName == "" {
		req.KeyClaimName = DefaultKeyClaimName
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode prover request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prover request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("prover request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			kind:       classifyStatus(resp.StatusCode),
		}
		c.logger.Warn("prover returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("message", statusErr.Message),
		)
		return nil, statusErr
	}

	var proof Proof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := proof.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c.logger.Debug("proof received", zap.Uint64("max_epoch", req.MaxEpoch))
	return &proof, nil
}

func classifyStatus(code int) error {
	if code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return ErrUnavailable
	}
	return ErrRejected
}

// errorMessage pulls a human-readable message from a prover error body
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := string(bytes.TrimSpace(raw))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}
