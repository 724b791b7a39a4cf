package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeypairExportRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	restored, err := KeypairFromExport(kp.Export())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), restored.PublicKey())

	sui := kp.SuiPublicKey()
	require.Len(t, sui, 33)
	assert.Equal(t, Ed25519Flag, sui[0])

	for _, bad := range []string{"", "!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := KeypairFromExport(bad)
		assert.ErrorIs(t, err, ErrInvalidExport)
	}
}

func TestSignTransaction(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	tx := []byte{1, 2, 3, 4}
	serialized, err := kp.SignTransaction(tx)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(serialized)
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, Ed25519Flag, raw[0])

	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	digest := IntentDigest(IntentScopeTransactionData, tx)
	assert.True(t, ed25519.Verify(pub, digest[:], sig))
	assert.False(t, ed25519.Verify(pub, tx, sig), "signature covers the intent digest, not raw bytes")

	_, err = kp.SignTransaction(nil)
	assert.Error(t, err)
}

func TestSignTransactionFixedKey(t *testing.T) {
	// seed 0x01..0x20
	kp, err := KeypairFromExport("AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHyA=")
	require.NoError(t, err)
	assert.Equal(t, "79b5562e8fe654f94078b112e8a98ba7901f853ae695bed7e0e3910bad049664", hex.EncodeToString(kp.PublicKey()))

	serialized, err := kp.SignTransaction([]byte{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, "AJ549IMCgxSzntPgE440Q9g6mqNf487UY2cPNi9rk97uQbTTyjSmRMRb9AQpedX8zTek78/+zaxrcFBfrFe7WAJ5tVYuj+ZU+UB4sRLoqYunkB+FOuaVvtfg45ELrQSWZA==", serialized)
}

func TestIntentMessage(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 9}, IntentMessage(IntentScopeTransactionData, []byte{9}))
	assert.Equal(t, []byte{3, 0, 0}, IntentMessage(IntentScopePersonalMessage, nil))
}

func TestZkLoginSignatureLayout(t *testing.T) {
	sig := &ZkLoginSignature{
		Inputs: ZkLoginInputs{
			ProofPoints: ProofPoints{
				A: []string{"1"},
				B: [][]string{{"2"}},
				C: []string{"3"},
			},
			IssBase64Details: IssBase64Details{Value: "x", IndexMod4: 1},
			HeaderBase64:     "h",
			AddressSeed:      "5",
		},
		MaxEpoch:      10,
		UserSignature: []byte{0xaa},
	}

	want := []byte{
		1, 1, '1', // a
		1, 1, 1, '2', // b
		1, 1, '3', // c
		1, 'x', 1, // issBase64Details
		1, 'h', // headerBase64
		1, '5', // addressSeed
		10, 0, 0, 0, 0, 0, 0, 0, // maxEpoch
		1, 0xaa, // userSignature
	}
	got, err := sig.Bytes()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	serialized, err := sig.Serialize()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(serialized)
	require.NoError(t, err)
	assert.Equal(t, zkcrypto.ZkLoginFlag, raw[0])
	assert.Equal(t, want, raw[1:])
}

var testDigest = base58.Encode(make([]byte, 32))

type fakeSuix struct {
	epoch string
	coins []Coin
}

func (f *fakeSuix) GetLatestSuiSystemState() (map[string]any, error) {
	return map[string]any{"epoch": f.epoch}, nil
}

func (f *fakeSuix) GetBalance(owner string, coinType *string) (*Balance, error) {
	if owner == "0xbad" {
		return nil, errors.New("invalid owner")
	}
	return &Balance{CoinType: SuiCoinType, CoinObjectCount: 1, TotalBalance: "1500000000"}, nil
}

func (f *fakeSuix) GetCoins(owner string, coinType *string, cursor *string, limit *uint) (*CoinPage, error) {
	return &CoinPage{Data: f.coins}, nil
}

type fakeUnsafe struct{}

func (fakeUnsafe) TransferSui(signer, coinID, gasBudget, recipient, amount string) (map[string]any, error) {
	return map[string]any{"txBytes": base64.StdEncoding.EncodeToString([]byte(signer + coinID + amount))}, nil
}

type fakeSuiNS struct {
	status string
	digest string
}

func (f *fakeSuiNS) ExecuteTransactionBlock(txBytes string, sigs []string, opts map[string]any, requestType *string) (map[string]any, error) {
	if len(sigs) == 0 {
		return nil, errors.New("Invalid user signature")
	}
	effects := map[string]any{"status": map[string]any{"status": f.status}}
	if f.status != "success" {
		effects["status"].(map[string]any)["error"] = "InsufficientGas"
	}
	return map[string]any{"digest": f.digest, "effects": effects}, nil
}

func newFakeNode(t *testing.T, exec *fakeSuiNS) *Client {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("suix", &fakeSuix{
		epoch: "100",
		coins: []Coin{{CoinObjectID: "0xsmall", Balance: "10"}, {CoinObjectID: "0xbig", Balance: "5000000000"}},
	}))
	require.NoError(t, srv.RegisterName("unsafe", fakeUnsafe{}))
	require.NoError(t, srv.RegisterName("sui", exec))

	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})

	c, err := Dial(context.Background(), hs.URL, http.DefaultClient, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	exec := &fakeSuiNS{status: "success", digest: testDigest}
	c := newFakeNode(t, exec)

	t.Run("CurrentEpoch", func(t *testing.T) {
		epoch, err := c.CurrentEpoch(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), epoch)
	})

	t.Run("Balance", func(t *testing.T) {
		bal, err := c.Balance(ctx, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, "1500000000", bal.TotalBalance)

		_, err = c.Balance(ctx, "0xbad")
		require.Error(t, err)
		reason, ok := RejectionReason(err)
		assert.True(t, ok)
		assert.Contains(t, reason, "invalid owner")
	})

	t.Run("SelectGasCoin", func(t *testing.T) {
		coin, err := c.SelectGasCoin(ctx, "0xabc", bigInt(1_000_000_000))
		require.NoError(t, err)
		assert.Equal(t, "0xbig", coin.CoinObjectID)

		_, err = c.SelectGasCoin(ctx, "0xabc", bigInt(9_000_000_000))
		assert.Error(t, err)
	})

	t.Run("TransferSuiTx", func(t *testing.T) {
		tx, err := c.TransferSuiTx(ctx, "0xme", "0xbig", 10_000_000, "0xyou", 7)
		require.NoError(t, err)
		assert.Equal(t, []byte("0xme0xbig7"), tx)
	})

	t.Run("ExecuteTransaction", func(t *testing.T) {
		res, err := c.ExecuteTransaction(ctx, []byte{1}, "sig")
		require.NoError(t, err)
		assert.Equal(t, testDigest, res.Digest)

		_, err = c.ExecuteTransaction(ctx, []byte{1})
		require.Error(t, err)
		reason, ok := RejectionReason(err)
		assert.True(t, ok)
		assert.Contains(t, reason, "Invalid user signature")
	})

	t.Run("ExecuteTransaction failure effects", func(t *testing.T) {
		exec.status = "failure"
		defer func() { exec.status = "success" }()

		_, err := c.ExecuteTransaction(ctx, []byte{1}, "sig")
		var failure *ExecutionFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "InsufficientGas", failure.Reason)
		assert.Equal(t, testDigest, failure.Digest)
	})

	t.Run("ExecuteTransaction malformed digest", func(t *testing.T) {
		exec.digest = "not-base58-0OIl"
		defer func() { exec.digest = testDigest }()

		_, err := c.ExecuteTransaction(ctx, []byte{1}, "sig")
		assert.ErrorIs(t, err, ErrMalformedDigest)
	})
}

func TestRejectionReasonTransport(t *testing.T) {
	_, ok := RejectionReason(errors.New("dial tcp: connection refused"))
	assert.False(t, ok)
}

func TestNormalizeAddress(t *testing.T) {
	full := "0x" + strings.Repeat("ab", 32)

	got, ok := NormalizeAddress(strings.ToUpper(full[:2]) + strings.ToUpper(full[2:]))
	assert.True(t, ok)
	assert.Equal(t, full, got)

	got, ok = NormalizeAddress("0x2")
	assert.True(t, ok)
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"2", got)

	for _, bad := range []string{"", "0x", "abc", "0xzz", "0x" + strings.Repeat("a", 65)} {
		_, ok := NormalizeAddress(bad)
		assert.False(t, ok, bad)
	}
}
