package sui

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// SuiCoinType is the native coin type
	SuiCoinType = "0x2::sui::SUI"
	// MistPerSui is the number of base units in one SUI
	MistPerSui = 1_000_000_000
)

// ErrMalformedDigest is returned when the node answers with a digest that is not 32 base58 bytes
var ErrMalformedDigest = errors.New("malformed transaction digest")

// Balance is the result of suix_getBalance
type Balance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}

// Coin is one entry of suix_getCoins
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// CoinPage is a page of suix_getCoins results
type CoinPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type systemState struct {
	Epoch string `json:"epoch"`
}

type transactionBytes struct {
	TxBytes string `json:"txBytes"`
}

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type executionEffects struct {
	Status executionStatus `json:"status"`
}

type executionResponse struct {
	Digest  string            `json:"digest"`
	Effects *executionEffects `json:"effects,omitempty"`
}

// ExecutionResult is the outcome of a submitted transaction
type ExecutionResult struct {
	Digest string
	Status string
}

// ExecutionFailure is returned when the node accepted the transaction but execution failed
type ExecutionFailure struct {
	Digest string
	Reason string
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Digest, e.Reason)
}

// ValidDigest reports whether d is a base58-encoded 32-byte digest
func ValidDigest(d string) bool {
	raw, err := base58.Decode(d)
	return err == nil && len(raw) == 32
}

// NormalizeAddress lowercases a 0x-prefixed address and left-pads it to 32 bytes.
// It returns false when a is not a hex address.
func NormalizeAddress(a string) (string, bool) {
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		return "", false
	}
	body := strings.ToLower(a[2:])
	if len(body) == 0 || len(body) > 64 {
		return "", false
	}
	if _, err := hex.DecodeString(strings.Repeat("0", len(body)%2) + body); err != nil {
		return "", false
	}
	return "0x" + strings.Repeat("0", 64-len(body)) + body, true
}
