package zkcrypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

const (
	// maxPoseidonWidth is the widest input set hashed in a single permutation
	maxPoseidonWidth = 16
	// maxPoseidonInputs is the widest input set accepted by PoseidonHash
	maxPoseidonInputs = 32
)

// ErrTooManyInputs is returned when more than 32 field elements are hashed
var ErrTooManyInputs = errors.New("poseidon: too many inputs")

// PoseidonHash hashes up to 32 BN254 field elements.
// Inputs wider than 16 are split in two halves and the half digests hashed again,
// matching the circuit's hashing of long vectors.
func PoseidonHash(inputs []*big.Int) (*big.Int, error) {
	switch {
	case len(inputs) == 0:
		return nil, fmt.Errorf("poseidon: empty input")
	case len(inputs) <= maxPoseidonWidth:
		h, err := poseidon.Hash(inputs)
		if err != nil {
			return nil, fmt.Errorf("poseidon: %w", err)
		}
		return h, nil
	case len(inputs) <= maxPoseidonInputs:
		left, err := PoseidonHash(inputs[:maxPoseidonWidth])
		if err != nil {
			return nil, err
		}
		right, err := PoseidonHash(inputs[maxPoseidonWidth:])
		if err != nil {
			return nil, err
		}
		return PoseidonHash([]*big.Int{left, right})
	default:
		return nil, ErrTooManyInputs
	}
}
