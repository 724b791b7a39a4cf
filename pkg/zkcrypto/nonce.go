package zkcrypto

import (
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	// NonceLength is the length of an encoded nonce
	NonceLength = 27
	nonceBytes  = 20
)

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)

// GenerateNonce derives the OAuth nonce binding an ephemeral public key, a max epoch and randomness.
// suiPublicKey is the flagged public key (scheme flag followed by the raw key).
func GenerateNonce(suiPublicKey []byte, maxEpoch uint64, randomness string) (string, error) {
	r, err := ParseDecimal(randomness)
	if err != nil {
		return "", fmt.Errorf("randomness: %w", err)
	}

	pk := new(big.Int).SetBytes(suiPublicKey)
	hi, lo := new(big.Int).QuoRem(pk, twoPow128, new(big.Int))

	h, err := PoseidonHash([]*big.Int{hi, lo, new(big.Int).SetUint64(maxEpoch), r})
	if err != nil {
		return "", err
	}

	nonce := base64.RawURLEncoding.EncodeToString(PaddedBigEndian(h, nonceBytes))
	if len(nonce) != NonceLength {
		return "", fmt.Errorf("nonce length %d, want %d", len(nonce), NonceLength)
	}
	return nonce, nil
}

// ExtendedPublicKey returns the flagged public key as a decimal integer, the form the prover expects.
func ExtendedPublicKey(suiPublicKey []byte) string {
	return new(big.Int).SetBytes(suiPublicKey).String()
}
