package zkcrypto

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPublicKey() []byte {
	pk := make([]byte, 33)
	for i := 1; i < len(pk); i++ {
		pk[i] = byte(i * 7)
	}
	return pk
}

func TestPoseidonHash(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		h, err := PoseidonHash([]*big.Int{big.NewInt(1), big.NewInt(2)})
		require.NoError(t, err)
		assert.Equal(t, "7853200120776062878684798364095072458815029376092732009249414926327459813530", h.String())
	})

	t.Run("wide input splits in halves", func(t *testing.T) {
		in := make([]*big.Int, 20)
		for i := range in {
			in[i] = big.NewInt(int64(i + 1))
		}
		got, err := PoseidonHash(in)
		require.NoError(t, err)

		left, err := PoseidonHash(in[:16])
		require.NoError(t, err)
		right, err := PoseidonHash(in[16:])
		require.NoError(t, err)
		want, err := PoseidonHash([]*big.Int{left, right})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("rejects more than 32 inputs", func(t *testing.T) {
		in := make([]*big.Int, 33)
		for i := range in {
			in[i] = big.NewInt(1)
		}
		_, err := PoseidonHash(in)
		assert.ErrorIs(t, err, ErrTooManyInputs)
	})
}

func TestHashASCIIStrToField(t *testing.T) {
	a, err := HashASCIIStrToField("sub", MaxKeyClaimNameLength)
	require.NoError(t, err)
	// 32 padded bytes pack as a 1-byte chunk followed by a 31-byte chunk
	assert.Equal(t, "9102752833182448263444250585012134730074321235810986230287216596098480554553", a.String())
	b, err := HashASCIIStrToField("sub", MaxKeyClaimNameLength)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HashASCIIStrToField("sub", MaxKeyClaimValueLength)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "padding width is part of the hash")

	_, err = HashASCIIStrToField(strings.Repeat("x", 33), MaxKeyClaimNameLength)
	assert.Error(t, err)
}

func TestPackChunksAlignsToEnd(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5, 6, 7}
	got := packChunks(b, 3)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Int64())
	assert.Equal(t, int64(0x020304), got[1].Int64())
	assert.Equal(t, int64(0x050607), got[2].Int64())

	even := packChunks([]byte{1, 2, 3, 4, 5, 6}, 3)
	require.Len(t, even, 2)
	assert.Equal(t, int64(0x010203), even[0].Int64())
}

func TestBigEndianHelpers(t *testing.T) {
	n := big.NewInt(0x0102)
	assert.Equal(t, []byte{0, 0, 1, 2}, PaddedBigEndian(n, 4))
	assert.Equal(t, []byte{1, 2}, TrimmedBigEndian(n, 4))
	assert.Equal(t, []byte{0}, TrimmedBigEndian(big.NewInt(0), 4))

	wide := new(big.Int).SetBytes([]byte{9, 8, 7, 6})
	assert.Equal(t, []byte{7, 6}, PaddedBigEndian(wide, 2))
}

func TestGenerateRandomness(t *testing.T) {
	r, err := generateRandomnessFrom(bytes.NewReader(bytes.Repeat([]byte{0xff}, 16)))
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", r)

	_, err = generateRandomnessFrom(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		r, err := GenerateRandomness()
		require.NoError(t, err)
		_, dup := seen[r]
		require.False(t, dup)
		seen[r] = struct{}{}
	}
}

func TestGenerateNonce(t *testing.T) {
	pk := testPublicKey()

	n1, err := GenerateNonce(pk, 110, "123456789")
	require.NoError(t, err)
	assert.Len(t, n1, NonceLength)
	assert.Equal(t, "cV_-ZKDDw66sc8itRxPbsjzPC7E", n1)

	again, err := GenerateNonce(pk, 110, "123456789")
	require.NoError(t, err)
	assert.Equal(t, n1, again)

	otherEpoch, err := GenerateNonce(pk, 111, "123456789")
	require.NoError(t, err)
	assert.NotEqual(t, n1, otherEpoch)

	_, err = GenerateNonce(pk, 110, "r1")
	assert.Error(t, err)
}

func TestGenerateNonceUniqueAcrossRandomness(t *testing.T) {
	pk := testPublicKey()
	seen := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		r, err := GenerateRandomness()
		require.NoError(t, err)
		n, err := GenerateNonce(pk, 42, r)
		require.NoError(t, err)
		if prev, ok := seen[n]; ok && prev != r {
			t.Fatalf("nonce collision for randomness %s and %s", prev, r)
		}
		seen[n] = r
	}
}

func TestExtendedPublicKey(t *testing.T) {
	assert.Equal(t, "258", ExtendedPublicKey([]byte{0, 1, 2}))
}

func TestDeriveAddress(t *testing.T) {
	const (
		iss  = "https://accounts.google.com"
		aud  = "client.apps.googleusercontent.com"
		sub  = "110463452167303598383"
		salt = "129390038577185583942388216820280642146"
	)

	addr, err := DeriveAddress(iss, aud, sub, salt)
	require.NoError(t, err)
	assert.Equal(t, "0xe155cdb77c1437be09fc2af8fdbc267aad60e41f9eb86f3f9afd823c752d8f41", addr)

	t.Run("reference sdk vector", func(t *testing.T) {
		const (
			iss  = "https://oauth.sui.io"
			aud  = "test"
			sub  = "8c2d7d66-87af-41fa-b6fc-63e8bb71fab4"
			salt = "248191903847969014646285995941615069143"
		)
		seed, err := AddressSeed(salt, KeyClaimName, sub, aud)
		require.NoError(t, err)
		assert.Equal(t, "12656230168928029081140975011196959912747887311733023189420004426319528372266", seed.String())

		got, err := DeriveAddress(iss, aud, sub, salt)
		require.NoError(t, err)
		assert.Equal(t, "0x22cebcf68a9d75d508d50d553dd6bae378ef51177a3a6325b749e57e3ba237d6", got)
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			again, err := DeriveAddress(iss, aud, sub, salt)
			require.NoError(t, err)
			assert.Equal(t, addr, again)
		}
	})

	t.Run("every input matters", func(t *testing.T) {
		variants := [][4]string{
			{"https://other.example", aud, sub, salt},
			{iss, aud + "x", sub, salt},
			{iss, aud, sub + "1", salt},
			{iss, aud, sub, "129390038577185583942388216820280642147"},
		}
		for _, v := range variants {
			other, err := DeriveAddress(v[0], v[1], v[2], v[3])
			require.NoError(t, err)
			assert.NotEqual(t, addr, other, "variant %v", v)
		}
	})

	t.Run("google issuer is normalized", func(t *testing.T) {
		short, err := DeriveAddress("accounts.google.com", aud, sub, salt)
		require.NoError(t, err)
		assert.Equal(t, addr, short)
	})

	t.Run("rejects missing claims and bad salt", func(t *testing.T) {
		_, err := DeriveAddress("", aud, sub, salt)
		assert.Error(t, err)
		_, err = DeriveAddress(iss, aud, sub, "not-a-number")
		assert.Error(t, err)
	})
}

func TestAddressFromSeedLegacyEncoding(t *testing.T) {
	small := big.NewInt(12345)
	padded, err := AddressFromSeed(small, "https://issuer.example")
	require.NoError(t, err)
	legacy, err := AddressFromSeed(small, "https://issuer.example", WithLegacySeedEncoding())
	require.NoError(t, err)
	assert.NotEqual(t, padded, legacy)

	full := new(big.Int).SetBytes(bytes.Repeat([]byte{0x11}, 32))
	a, err := AddressFromSeed(full, "https://issuer.example")
	require.NoError(t, err)
	b, err := AddressFromSeed(full, "https://issuer.example", WithLegacySeedEncoding())
	require.NoError(t, err)
	assert.Equal(t, a, b, "encodings agree when the seed has no leading zero byte")
}
