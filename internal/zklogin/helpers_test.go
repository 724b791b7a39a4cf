package zklogin

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/nonce"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/prover"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testIssuer   = "https://accounts.google.com"
	testAudience = "client-id"
	testSubject  = "110463452167303598383"
	testDigest   = "9Zq3RUq5W7ehkEvVm9Kd7uHPyQjzYFfGQ7sFcXUjAFRW"

	testRandomness = "123456789"
	testSalt       = "987654321"

	// exported ed25519 seed 0x01..0x20
	testKeySeed = "AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHyA="
)

func fixedKeypair() (*sui.Keypair, error) {
	return sui.KeypairFromExport(testKeySeed)
}

// fakeNode is an in-memory full node
type fakeNode struct {
	mu       sync.Mutex
	epoch    uint64
	epochErr error
	execErr  error
	executed [][]byte
	sigs     []string
	gasNeed  *big.Int
}

func (n *fakeNode) CurrentEpoch(context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.epoch, n.epochErr
}

func (n *fakeNode) setEpoch(e uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.epoch = e
}

func (n *fakeNode) ExecuteTransaction(_ context.Context, txBytes []byte, signatures ...string) (*sui.ExecutionResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.execErr != nil {
		return nil, n.execErr
	}
	n.executed = append(n.executed, txBytes)
	n.sigs = append(n.sigs, signatures...)
	return &sui.ExecutionResult{Digest: testDigest, Status: "success"}, nil
}

func (n *fakeNode) SelectGasCoin(_ context.Context, _ string, need *big.Int) (*sui.Coin, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasNeed = need
	return &sui.Coin{CoinObjectID: "0xc01", Balance: "5000000000"}, nil
}

func (n *fakeNode) TransferSuiTx(_ context.Context, signer, coinID string, _ uint64, recipient string, _ uint64) ([]byte, error) {
	return []byte("transfer:" + signer + ":" + coinID + ":" + recipient), nil
}

// proverFunc adapts a function to the Prover interface
type proverFunc func(ctx context.Context, req prover.Request) (*prover.Proof, error)

func (f proverFunc) Prove(ctx context.Context, req prover.Request) (*prover.Proof, error) {
	return f(ctx, req)
}

func validProof() *prover.Proof {
	return &prover.Proof{
		ProofPoints: sui.ProofPoints{
			A: []string{"1", "2", "1"},
			B: [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
			C: []string{"7", "8", "1"},
		},
		IssBase64Details: sui.IssBase64Details{Value: "wiaXNzIjoiaHR0cHM6Ly9hY2NvdW50cy5nb29nbGUuY29tIiw", IndexMod4: 1},
		HeaderBase64:     "eyJhbGciOiJSUzI1NiJ9",
	}
}

func okProver() Prover {
	return proverFunc(func(context.Context, prover.Request) (*prover.Proof, error) {
		return validProof(), nil
	})
}

func fixed(v string) RandomnessFunc {
	return func() (string, error) { return v, nil }
}

// countingStore counts writes to the wrapped store
type countingStore struct {
	session.Store
	mu     sync.Mutex
	writes int
}

func (s *countingStore) Set(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Store.Set(ctx, namespace, key, value)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type testEnv struct {
	svc      *Service
	node     *fakeNode
	tiers    session.Tiers
	volatile *countingStore
	durable  *countingStore
}

func newTestEnv(t *testing.T, p Prover) *testEnv {
	t.Helper()
	return newTestEnvWithKeys(t, p, nil)
}

// newTestEnvWithKeys uses keys for every ephemeral keypair; nil draws random ones
func newTestEnvWithKeys(t *testing.T, p Prover, keys KeypairFunc) *testEnv {
	t.Helper()
	volatile := &countingStore{Store: session.NewMemoryStore(0)}
	durable := &countingStore{Store: session.NewMemoryStore(0)}
	tiers := session.Tiers{Volatile: volatile, Durable: durable}
	node := &fakeNode{epoch: 100}

	svc := NewService(Dependencies{
		Tiers:          tiers,
		Guard:          nonce.NewMemoryStore(time.Minute),
		Node:           node,
		Prover:         p,
		Salts:          NewStoreSaltRepository(durable),
		Keypairs:       keys,
		Randomness:     fixed(testRandomness),
		SaltRandomness: fixed(testSalt),
	}, Config{
		ClientID:     testAudience,
		RedirectURI:  "http://localhost:3000/callback",
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		Lookahead:    10,
	}, zap.NewNop())

	return &testEnv{svc: svc, node: node, tiers: tiers, volatile: volatile, durable: durable}
}

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func tokenFor(t *testing.T, nonceValue string) string {
	return makeToken(t, jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   testSubject,
		"nonce": nonceValue,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

// signable drives a new session up to SIGNABLE
func (e *testEnv) signable(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	start, err := e.svc.Start(ctx)
	require.NoError(t, err)
	_, err = e.svc.Authorize(ctx, start.SessionID)
	require.NoError(t, err)
	_, err = e.svc.Correlate(ctx, start.SessionID, tokenFor(t, start.Nonce))
	require.NoError(t, err)
	_, err = e.svc.AcquireProof(ctx, start.SessionID)
	require.NoError(t, err)
	return start.SessionID
}
