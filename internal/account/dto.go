package account

import (
	"math/big"
	"strings"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
)

// ============================================================================
// Response DTOs
// ============================================================================

// BalanceResponse represents the balance of a derived address
type BalanceResponse struct {
	Address   string `json:"address" example:"0x5f3b2c6a0c2d1e8f4a9b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f"`
	TotalMist string `json:"total_mist" example:"1500000000"`
	Sui       string `json:"sui" example:"1.5"`
	CoinCount int    `json:"coin_count" example:"2"`
}

// FaucetResponse confirms that funds were requested
type FaucetResponse struct {
	Address string `json:"address" example:"0x5f3b2c6a0c2d1e8f4a9b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f"`
	Status  string `json:"status" example:"requested"`
}

// ============================================================================
// Converters
// ============================================================================

// ToBalanceResponse converts AccountBalance to BalanceResponse
func ToBalanceResponse(b *AccountBalance) BalanceResponse {
	return BalanceResponse{
		Address:   b.Address,
		TotalMist: b.Mist.String(),
		Sui:       formatSui(b.Mist),
		CoinCount: b.CoinCount,
	}
}

// formatSui renders MIST as a decimal SUI amount without trailing zeros
func formatSui(mist *big.Int) string {
	whole, frac := new(big.Int).QuoRem(mist, big.NewInt(sui.MistPerSui), new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(leftPad(frac.String(), 9), "0")
	return whole.String() + "." + fracStr
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
