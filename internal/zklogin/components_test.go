package zklogin

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTiers() session.Tiers {
	return session.Tiers{Volatile: session.NewMemoryStore(0), Durable: session.NewMemoryStore(0)}
}

func TestKeyVault(t *testing.T) {
	ctx := context.Background()
	tiers := newTiers()
	vault := NewKeyVault(tiers, nil, zap.NewNop())

	_, err := vault.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	kp, err := vault.Generate()
	require.NoError(t, err)
	_, err = vault.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound, "generating does not store")

	require.NoError(t, vault.Save(ctx, "s", kp))

	loaded, err := vault.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())

	// volatile tier lost, durable copy still loads
	require.NoError(t, tiers.Volatile.Clear(ctx, "s"))
	loaded, err = vault.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())

	ext, err := tiers.Durable.Get(ctx, "s", slotExtendedPublicKey)
	require.NoError(t, err)
	assert.Equal(t, zkcrypto.ExtendedPublicKey(kp.SuiPublicKey()), ext)

	require.NoError(t, tiers.Durable.Set(ctx, "s", slotEphemeralKey, "not-a-key"))
	_, err = vault.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIsExpiredBoundary(t *testing.T) {
	assert.False(t, IsExpired(110, 109))
	assert.False(t, IsExpired(110, 110))
	assert.True(t, IsExpired(110, 111))
}

func TestEpochWindow(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{epoch: 100}
	store := session.NewMemoryStore(0)
	w := NewEpochWindow(node, store, zap.NewNop())

	win, err := w.Next(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, Window{CurrentEpoch: 100, MaxEpoch: 110}, win)
	_, err = w.MaxEpoch(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, w.Save(ctx, "s", win))

	maxEpoch, err := w.MaxEpoch(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, uint64(110), maxEpoch)

	node.setEpoch(110)
	current, err := w.Check(ctx, 110)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), current)

	node.setEpoch(111)
	_, err = w.Check(ctx, 110)
	assert.ErrorIs(t, err, ErrExpiredWindow)

	node.epochErr = errors.New("connection refused")
	_, err = w.Next(ctx, 10)
	assert.ErrorIs(t, err, ErrEpochQueryFailed)
	_, err = w.MaxEpoch(ctx, "other")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNonceBinder(t *testing.T) {
	ctx := context.Background()
	kp, err := sui.GenerateKeypair()
	require.NoError(t, err)

	b := NewNonceBinder(newTiers(), fixed(testRandomness))
	binding, err := b.Derive(kp.SuiPublicKey(), 110)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, "s", binding))

	want, err := zkcrypto.GenerateNonce(kp.SuiPublicKey(), 110, testRandomness)
	require.NoError(t, err)
	assert.Equal(t, want, binding.Nonce)
	assert.Equal(t, testRandomness, binding.Randomness)

	got, err := b.Nonce(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = b.Randomness(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCorrelate(t *testing.T) {
	t.Run("matching nonce", func(t *testing.T) {
		claims, err := Correlate(tokenFor(t, "abc"), "abc")
		require.NoError(t, err)
		assert.Equal(t, testIssuer, claims.Issuer)
		assert.Equal(t, testAudience, claims.Audience)
		assert.Equal(t, testSubject, claims.Subject)
		assert.False(t, claims.ExpiresAt.IsZero())
	})

	t.Run("other nonce", func(t *testing.T) {
		_, err := Correlate(tokenFor(t, "other"), "abc")
		assert.ErrorIs(t, err, ErrNonceMismatch)
	})

	t.Run("missing nonce", func(t *testing.T) {
		tok := makeToken(t, jwt.MapClaims{"iss": testIssuer, "aud": testAudience, "sub": testSubject})
		_, err := Correlate(tok, "abc")
		assert.ErrorIs(t, err, ErrNonceMismatch)
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, err := Correlate("definitely.not.jwt", "abc")
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := makeToken(t, jwt.MapClaims{"iss": testIssuer, "aud": testAudience, "nonce": "abc"})
		_, err := Correlate(tok, "abc")
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("multiple audiences", func(t *testing.T) {
		tok := makeToken(t, jwt.MapClaims{"iss": testIssuer, "aud": []string{"a", "b"}, "sub": testSubject, "nonce": "abc"})
		_, err := Correlate(tok, "abc")
		assert.ErrorIs(t, err, ErrMalformedToken)
	})
}

func TestSaltRegistry(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreSaltRepository(session.NewMemoryStore(0))
	id := Identity{Issuer: testIssuer, Audience: testAudience, Subject: testSubject}

	calls := 0
	random := func() (string, error) {
		calls++
		if calls == 1 {
			return "111", nil
		}
		return "222", nil
	}
	reg := NewSaltRegistry(repo, random, zap.NewNop())

	first, err := reg.GetOrCreate(ctx, id)
	require.NoError(t, err)
	second, err := reg.GetOrCreate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "111", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, reg.Delete(ctx, id, false), ErrDeleteNotConfirmed)
	got, err := reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "111", got)

	require.NoError(t, reg.Delete(ctx, id, true))
	_, err = reg.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSaltNotFound)

	fresh, err := reg.GetOrCreate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "222", fresh)

	_, err = reg.GetOrCreate(ctx, Identity{Issuer: testIssuer})
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestIdentityHash(t *testing.T) {
	a := Identity{Issuer: "iss", Audience: "aud", Subject: "sub"}
	b := Identity{Issuer: "is", Audience: "saud", Subject: "sub"}
	assert.Len(t, a.Hash(), 64)
	assert.Equal(t, a.Hash(), a.Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())
}

// countingSigner records how often it was asked to sign
type countingSigner struct {
	kp    *sui.Keypair
	calls int
}

func (s *countingSigner) SignTransaction(txBytes []byte) (string, error) {
	s.calls++
	return s.kp.SignTransaction(txBytes)
}

func assembleInput(t *testing.T) (AssembleInput, *countingSigner) {
	kp, err := sui.GenerateKeypair()
	require.NoError(t, err)
	signer := &countingSigner{kp: kp}
	return AssembleInput{
		TxBytes:      []byte{1, 2, 3},
		Signer:       signer,
		Proof:        validProof(),
		Claims:       &Claims{Issuer: testIssuer, Audience: testAudience, Subject: testSubject},
		Salt:         testSalt,
		MaxEpoch:     110,
		CurrentEpoch: 105,
	}, signer
}

func TestAssemble(t *testing.T) {
	in, signer := assembleInput(t)

	sig, err := Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), sig.MaxEpoch)
	assert.Equal(t, 1, signer.calls)

	raw, err := base64.StdEncoding.DecodeString(sig.Serialized)
	require.NoError(t, err)
	assert.Equal(t, zkcrypto.ZkLoginFlag, raw[0])
}

func TestAssembleWithoutProofNeverSigns(t *testing.T) {
	in, signer := assembleInput(t)
	in.Proof = nil

	_, err := Assemble(in)
	assert.ErrorIs(t, err, ErrIncompleteInputs)
	assert.Equal(t, 0, signer.calls)
}

func TestAssembleIncompleteInputs(t *testing.T) {
	for name, mutate := range map[string]func(*AssembleInput){
		"signer": func(in *AssembleInput) { in.Signer = nil },
		"claims": func(in *AssembleInput) { in.Claims = nil },
		"salt":   func(in *AssembleInput) { in.Salt = "" },
		"tx":     func(in *AssembleInput) { in.TxBytes = nil },
	} {
		t.Run(name, func(t *testing.T) {
			in, _ := assembleInput(t)
			mutate(&in)
			_, err := Assemble(in)
			assert.ErrorIs(t, err, ErrIncompleteInputs)
		})
	}
}

func TestAssembleExpiredWindow(t *testing.T) {
	in, signer := assembleInput(t)
	in.CurrentEpoch = 111

	_, err := Assemble(in)
	assert.ErrorIs(t, err, ErrExpiredWindow)
	assert.Equal(t, 0, signer.calls)

	in.CurrentEpoch = 110
	_, err = Assemble(in)
	assert.NoError(t, err)
}

func TestSubmitterRejection(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{epoch: 100, execErr: &sui.ExecutionFailure{Digest: testDigest, Reason: "InsufficientGas"}}
	epochs := NewEpochWindow(node, session.NewMemoryStore(0), zap.NewNop())
	sub := NewTransactionSubmitter(node, epochs, nil, zap.NewNop())

	_, err := sub.Submit(ctx, []byte{1}, &CompositeSignature{Serialized: "sig", MaxEpoch: 110})
	require.ErrorIs(t, err, ErrSubmissionRejected)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "InsufficientGas", subErr.Reason)
	assert.Equal(t, testDigest, subErr.Digest)

	node.execErr = nil
	exec, err := sub.Submit(ctx, []byte{1}, &CompositeSignature{Serialized: "sig", MaxEpoch: 110})
	require.NoError(t, err)
	assert.Equal(t, testDigest, exec.Digest)

	node.setEpoch(111)
	_, err = sub.Submit(ctx, []byte{1}, &CompositeSignature{Serialized: "sig", MaxEpoch: 110})
	assert.ErrorIs(t, err, ErrExpiredWindow)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateUnauthenticated.CanTransitionTo(StateAwaitingProvider))
	assert.True(t, StateCorrelated.CanTransitionTo(StateAwaitingProof))
	assert.True(t, StateSignable.CanTransitionTo(StateFailed))
	assert.False(t, StateCorrelated.CanTransitionTo(StateSignable))
	assert.True(t, StateSignable.CanTransitionTo(StateAwaitingProof), "lost proof is fetched again")
	assert.False(t, StateFinalized.CanTransitionTo(StateSubmitting))
	assert.False(t, StateFailed.CanTransitionTo(StateFailed))
	assert.True(t, StateFinalized.Terminal())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrNonceMismatch))
	assert.True(t, IsFatal(errors.Join(errors.New("ctx"), ErrProofRejected)))
	assert.False(t, IsFatal(ErrProverUnavailable))
	assert.False(t, IsFatal(&SubmissionError{Reason: "x"}))
	assert.False(t, IsFatal(ErrEpochQueryFailed))
}
