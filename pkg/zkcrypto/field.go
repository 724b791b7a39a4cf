package zkcrypto

import (
	"fmt"
	"math/big"
)

const (
	// packWidth is the number of bits packed into one field element
	packWidth = 248

	MaxKeyClaimNameLength  = 32
	MaxKeyClaimValueLength = 115
	MaxAudValueLength      = 145
)

// HashASCIIStrToField maps an ASCII string of at most maxSize characters to a field element.
// The string is right-padded with NUL bytes and packed big-endian into 31-byte chunks
// taken from the end, so only the first chunk can be short. The chunks are Poseidon-hashed.
func HashASCIIStrToField(s string, maxSize int) (*big.Int, error) {
	if len(s) > maxSize {
		return nil, fmt.Errorf("string %q is longer than %d chars", s, maxSize)
	}
	padded := make([]byte, maxSize)
	copy(padded, s)

	return PoseidonHash(packChunks(padded, packWidth/8))
}

// packChunks splits b into big-endian integers of chunkSize bytes, aligned to the end of b
func packChunks(b []byte, chunkSize int) []*big.Int {
	n := (len(b) + chunkSize - 1) / chunkSize
	packed := make([]*big.Int, n)
	end := len(b)
	for i := n - 1; i >= 0; i-- {
		start := end - chunkSize
		if start < 0 {
			start = 0
		}
		packed[i] = new(big.Int).SetBytes(b[start:end])
		end = start
	}
	return packed
}

// PaddedBigEndian returns the lowest width bytes of n, big-endian, left-padded with zeros.
func PaddedBigEndian(n *big.Int, width int) []byte {
	raw := n.Bytes()
	if len(raw) >= width {
		return raw[len(raw)-width:]
	}
	out := make([]byte, width)
	copy(out[width-len(raw):], raw)
	return out
}

// TrimmedBigEndian is PaddedBigEndian with leading zero bytes removed.
// Zero is encoded as a single zero byte.
func TrimmedBigEndian(n *big.Int, width int) []byte {
	b := PaddedBigEndian(n, width)
	for i, v := range b {
		if v != 0 {
			return b[i:]
		}
	}
	return []byte{0}
}

// ParseDecimal parses a base-10 field element such as a salt or randomness value.
func ParseDecimal(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid decimal value")
	}
	return n, nil
}
