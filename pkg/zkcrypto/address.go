package zkcrypto

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

const (
	// ZkLoginFlag is the signature scheme flag for zkLogin
	ZkLoginFlag byte = 0x05

	// KeyClaimName is the JWT claim the address is bound to
	KeyClaimName = "sub"

	googleIssuer       = "accounts.google.com"
	googleIssuerScheme = "https://accounts.google.com"
)

type addressOptions struct {
	legacy bool
}

// AddressOption customizes address derivation
type AddressOption func(*addressOptions)

// WithLegacySeedEncoding strips leading zero bytes from the address seed,
// reproducing addresses computed by older clients.
func WithLegacySeedEncoding() AddressOption {
	return func(o *addressOptions) { o.legacy = true }
}

// AddressSeed computes Poseidon(name, value, aud, Poseidon(salt)) over hashed claim strings.
func AddressSeed(salt, claimName, claimValue, aud string) (*big.Int, error) {
	s, err := ParseDecimal(salt)
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	nameF, err := HashASCIIStrToField(claimName, MaxKeyClaimNameLength)
	if err != nil {
		return nil, err
	}
	valueF, err := HashASCIIStrToField(claimValue, MaxKeyClaimValueLength)
	if err != nil {
		return nil, err
	}
	audF, err := HashASCIIStrToField(aud, MaxAudValueLength)
	if err != nil {
		return nil, err
	}
	saltF, err := PoseidonHash([]*big.Int{s})
	if err != nil {
		return nil, err
	}
	return PoseidonHash([]*big.Int{nameF, valueF, audF, saltF})
}

// AddressFromSeed computes the on-chain address for an address seed and issuer.
func AddressFromSeed(seed *big.Int, iss string, opts ...AddressOption) (string, error) {
	o := addressOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if iss == googleIssuer {
		iss = googleIssuerScheme
	}
	if len(iss) > 255 {
		return "", fmt.Errorf("issuer longer than 255 bytes")
	}

	seedBytes := PaddedBigEndian(seed, 32)
	if o.legacy {
		seedBytes = TrimmedBigEndian(seed, 32)
	}

	buf := make([]byte, 0, 2+len(iss)+len(seedBytes))
	buf = append(buf, ZkLoginFlag, byte(len(iss)))
	buf = append(buf, iss...)
	buf = append(buf, seedBytes...)

	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// DeriveAddress maps (issuer, audience, subject, salt) to a zkLogin address. It performs no I/O.
func DeriveAddress(iss, aud, sub, salt string, opts ...AddressOption) (string, error) {
	if iss == "" || aud == "" || sub == "" {
		return "", fmt.Errorf("issuer, audience and subject are required")
	}
	seed, err := AddressSeed(salt, KeyClaimName, sub, aud)
	if err != nil {
		return "", err
	}
	return AddressFromSeed(seed, iss, opts...)
}
