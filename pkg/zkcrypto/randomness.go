package zkcrypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const randomnessBytes = 16

// GenerateRandomness returns 128 bits of entropy as a decimal string.
// The same encoding is used for the nonce randomness and for user salts.
func GenerateRandomness() (string, error) {
	return generateRandomnessFrom(rand.Reader)
}

func generateRandomnessFrom(r io.Reader) (string, error) {
	buf := make([]byte, randomnessBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read randomness: %w", err)
	}
	return new(big.Int).SetBytes(buf).String(), nil
}
