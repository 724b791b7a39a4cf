package sui

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	requestTypeWaitForLocalExecution = "WaitForLocalExecution"
	statusSuccess                    = "success"
)

// Client is a JSON-RPC client for a Sui full node
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// Dial connects to the node at url using the given HTTP client
func Dial(ctx context.Context, url string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial sui node: %w", err)
	}
	return NewClient(c, logger), nil
}

// NewClient wraps an existing rpc client
func NewClient(c *rpc.Client, logger *zap.Logger) *Client {
	return &Client{rpc: c, logger: logger}
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}

// CurrentEpoch returns the network's current epoch
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var state systemState
	if err := c.rpc.CallContext(ctx, &state, "suix_getLatestSuiSystemState"); err != nil {
		return 0, fmt.Errorf("suix_getLatestSuiSystemState: %w", err)
	}
	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse epoch %q: %w", state.Epoch, err)
	}
	return epoch, nil
}

// Balance returns the SUI balance held by owner
func (c *Client) Balance(ctx context.Context, owner string) (*Balance, error) {
	var bal Balance
	if err := c.rpc.CallContext(ctx, &bal, "suix_getBalance", owner, SuiCoinType); err != nil {
		return nil, fmt.Errorf("suix_getBalance: %w", err)
	}
	return &bal, nil
}

// Coins returns one page of SUI coins owned by owner
func (c *Client) Coins(ctx context.Context, owner string, cursor *string, limit uint) (*CoinPage, error) {
	var page CoinPage
	if err := c.rpc.CallContext(ctx, &page, "suix_getCoins", owner, SuiCoinType, cursor, limit); err != nil {
		return nil, fmt.Errorf("suix_getCoins: %w", err)
	}
	return &page, nil
}

// SelectGasCoin returns the first coin holding at least need MIST
func (c *Client) SelectGasCoin(ctx context.Context, owner string, need *big.Int) (*Coin, error) {
	var cursor *string
	for {
		page, err := c.Coins(ctx, owner, cursor, 50)
		if err != nil {
			return nil, err
		}
		for i := range page.Data {
			bal, ok := new(big.Int).SetString(page.Data[i].Balance, 10)
			if ok && bal.Cmp(need) >= 0 {
				return &page.Data[i], nil
			}
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return nil, fmt.Errorf("no single coin of %s holds %s MIST", owner, need)
		}
		cursor = page.NextCursor
	}
}

// TransferSuiTx asks the node to build an unsigned SUI transfer paid from coinID
func (c *Client) TransferSuiTx(ctx context.Context, signer, coinID string, gasBudget uint64, recipient string, amount uint64) ([]byte, error) {
	var res transactionBytes
	err := c.rpc.CallContext(ctx, &res, "unsafe_transferSui",
		signer,
		coinID,
		strconv.FormatUint(gasBudget, 10),
		recipient,
		strconv.FormatUint(amount, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("unsafe_transferSui: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(res.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("decode tx bytes: %w", err)
	}
	return raw, nil
}

// ExecuteTransaction submits signed transaction bytes.
// A node-side execution failure is returned as *ExecutionFailure.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures ...string) (*ExecutionResult, error) {
	options := map[string]bool{"showEffects": true}

	var res executionResponse
	err := c.rpc.CallContext(ctx, &res, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		options,
		requestTypeWaitForLocalExecution,
	)
	if err != nil {
		return nil, fmt.Errorf("sui_executeTransactionBlock: %w", err)
	}
	if !ValidDigest(res.Digest) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedDigest, res.Digest)
	}

	status := statusSuccess
	if res.Effects != nil && res.Effects.Status.Status != "" {
		status = res.Effects.Status.Status
	}
	if status != statusSuccess {
		c.logger.Warn("transaction execution failed",
			zap.String("digest", res.Digest),
			zap.String("reason", res.Effects.Status.Error),
		)
		return nil, &ExecutionFailure{Digest: res.Digest, Reason: res.Effects.Status.Error}
	}

	c.logger.Info("transaction executed", zap.String("digest", res.Digest))
	return &ExecutionResult{Digest: res.Digest, Status: status}, nil
}

// RejectionReason extracts the node's message when err is a JSON-RPC or execution rejection.
// Transport failures report false.
func RejectionReason(err error) (string, bool) {
	var failure *ExecutionFailure
	if errors.As(err, &failure) {
		return failure.Reason, true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Error(), true
	}
	return "", false
}
