package faucet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type fixedAmountRequest struct {
	FixedAmountRequest struct {
		Recipient string `json:"recipient"`
	} `json:"FixedAmountRequest"`
}

// Client requests test gas from a network faucet
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a faucet client
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}
}

// Request asks the faucet to fund recipient. The result only affects the displayed balance.
func (c *Client) Request(ctx context.Context, recipient string) error {
	var body fixedAmountRequest
	body.FixedAmountRequest.Recipient = recipient

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build faucet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("faucet request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("faucet returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	c.logger.Info("faucet request accepted", zap.String("recipient", recipient))
	return nil
}
