package zklogin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"sync"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/nonce"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/prover"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// guard owner for OAuth nonces; a token can be correlated once
	oauthNonceOwner = "oauth"
	// guard value held while a session runs a mutating step
	stepGuardValue = "step"

	// DefaultGasBudget is the gas budget of server-built transfers, in MIST
	DefaultGasBudget uint64 = 10_000_000
)

// Config holds the OAuth client and chain parameters of the flow
type Config struct {
	ClientID     string
	RedirectURI  string
	AuthorizeURL string
	Lookahead    uint64
	GasBudget    uint64
}

// Dependencies are the collaborators of a Service
type Dependencies struct {
	Tiers   session.Tiers
	Guard   nonce.Store
	Node    Node
	Prover  Prover
	Salts   SaltRepository
	Metrics *Metrics

	// Keypairs, Randomness and SaltRandomness default to crypto/rand
	Keypairs       KeypairFunc
	Randomness     RandomnessFunc
	SaltRandomness RandomnessFunc
	AddressOptions []zkcrypto.AddressOption
}

// Service drives the login state machine for many sessions
type Service struct {
	cfg       Config
	tiers     session.Tiers
	guard     nonce.Store
	node      Node
	keys      *KeyVault
	epochs    *EpochWindow
	binder    *NonceBinder
	salts     *SaltRegistry
	proofs    *ProofAcquirer
	submitter *TransactionSubmitter
	metrics   *Metrics
	addrOpts  []zkcrypto.AddressOption
	inflight  sync.Map
	newID     func() string
	logger    *zap.Logger
}

// NewService wires the flow components
func NewService(deps Dependencies, cfg Config, logger *zap.Logger) *Service {
	if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.GasBudget == 0 {
		cfg.GasBudget = DefaultGasBudget
	}
	epochs := NewEpochWindow(deps.Node, deps.Tiers.Durable, logger)
	return &Service{
		cfg:       cfg,
		tiers:     deps.Tiers,
		guard:     deps.Guard,
		node:      deps.Node,
		keys:      NewKeyVault(deps.Tiers, deps.Keypairs, logger),
		epochs:    epochs,
		binder:    NewNonceBinder(deps.Tiers, deps.Randomness),
		salts:     NewSaltRegistry(deps.Salts, deps.SaltRandomness, logger, deps.AddressOptions...),
		proofs:    NewProofAcquirer(deps.Prover, deps.Metrics, logger),
		submitter: NewTransactionSubmitter(deps.Node, epochs, deps.Metrics, logger),
		metrics:   deps.Metrics,
		addrOpts:  deps.AddressOptions,
		newID:     func() string { return uuid.New().String() },
		logger:    logger,
	}
}

// StartResult describes a freshly opened session
type StartResult struct {
	SessionID    string
	Nonce        string
	CurrentEpoch uint64
	MaxEpoch     uint64
}

// Start opens a new session: fresh ephemeral key, epoch window and nonce
func (s *Service) Start(ctx context.Context) (*StartResult, error) {
	return s.start(ctx, s.newID())
}

// Restart discards everything stored for an existing session and starts it again
func (s *Service) Restart(ctx context.Context, sessionID string) (*StartResult, error) {
	if _, err := s.state(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.start(ctx, sessionID)
}

func (s *Service) start(ctx context.Context, sessionID string) (*StartResult, error) {
	release, err := s.reserve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. Epoch window, ephemeral key and nonce; nothing is written until all three exist
	win, err := s.epochs.Next(ctx, s.cfg.Lookahead)
	if err != nil {
		s.metrics.observeFailure(err)
		return nil, err
	}
	kp, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}
	binding, err := s.binder.Derive(kp.SuiPublicKey(), win.MaxEpoch)
	if err != nil {
		return nil, err
	}

	// 2. Replace any previous material for this session
	if err := s.tiers.ClearBoth(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("clear session: %w", err)
	}
	if err := s.keys.Save(ctx, sessionID, kp); err != nil {
		return nil, err
	}
	if err := s.epochs.Save(ctx, sessionID, win); err != nil {
		return nil, err
	}
	if err := s.binder.Save(ctx, sessionID, binding); err != nil {
		return nil, err
	}

	if err := s.setState(ctx, sessionID, StateAwaitingProvider); err != nil {
		return nil, err
	}
	return &StartResult{
		SessionID:    sessionID,
		Nonce:        binding.Nonce,
		CurrentEpoch: win.CurrentEpoch,
		MaxEpoch:     win.MaxEpoch,
	}, nil
}

// Authorize returns the provider URL the user is sent to
func (s *Service) Authorize(ctx context.Context, sessionID string) (string, error) {
	release, _, err := s.begin(ctx, sessionID, StateAwaitingToken)
	if err != nil {
		return "", err
	}
	defer release()

	n, err := s.binder.Nonce(ctx, sessionID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(s.cfg.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", s.cfg.ClientID)
	q.Set("redirect_uri", s.cfg.RedirectURI)
	q.Set("response_type", "id_token")
	q.Set("scope", "openid")
	q.Set("nonce", n)
	u.RawQuery = q.Encode()

	if err := s.setState(ctx, sessionID, StateAwaitingToken); err != nil {
		return "", err
	}
	return u.String(), nil
}

// CorrelateResult is the identity and address resolved from a returned token
type CorrelateResult struct {
	Claims  *Claims
	Address string
}

// Correlate accepts the id_token returned by the provider
func (s *Service) Correlate(ctx context.Context, sessionID, rawToken string) (*CorrelateResult, error) {
	release, _, err := s.begin(ctx, sessionID, StateCorrelated)
	if err != nil {
		return nil, err
	}
	defer release()

	// 1. Token must carry the nonce bound at Start
	expected, err := s.binder.Nonce(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	claims, err := Correlate(rawToken, expected)
	if err != nil {
		s.logger.Warn("token correlation failed", logfield.Session(sessionID), zap.Error(err))
		return nil, s.fail(ctx, sessionID, err)
	}

	// 2. A token is consumed by one correlation only
	token, err := s.guard.Reserve(ctx, claims.Nonce, oauthNonceOwner)
	if err != nil {
		if errors.Is(err, nonce.ErrNonceAlreadyUsed) {
			return nil, ErrFlowBusy
		}
		return nil, err
	}
	consumed := false
	defer func() {
		if !consumed {
			_ = s.guard.Release(context.WithoutCancel(ctx), claims.Nonce, oauthNonceOwner, token)
		}
	}()

	// 3. Salt and address
	salt, err := s.salts.GetOrCreate(ctx, claims.Identity())
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}
	address, err := zkcrypto.DeriveAddress(claims.Issuer, claims.Audience, claims.Subject, salt, s.addrOpts...)
	if err != nil {
		return nil, s.fail(ctx, sessionID, fmt.Errorf("%w: %v", ErrMalformedToken, err))
	}

	// 4. Persist
	if err := s.tiers.Volatile.Set(ctx, sessionID, slotIDToken, rawToken); err != nil {
		return nil, fmt.Errorf("persist id token: %w", err)
	}
	if err := s.putJSON(ctx, s.tiers.Durable, sessionID, slotClaims, claims); err != nil {
		return nil, err
	}
	if err := s.tiers.Durable.Set(ctx, sessionID, slotAddress, address); err != nil {
		return nil, fmt.Errorf("persist address: %w", err)
	}
	if err := s.guard.MarkUsed(ctx, claims.Nonce, oauthNonceOwner); err != nil {
		return nil, err
	}
	consumed = true

	if err := s.setState(ctx, sessionID, StateCorrelated); err != nil {
		return nil, err
	}
	s.logger.Info("identity correlated",
		logfield.Session(sessionID),
		logfield.Subject(claims.Subject),
		logfield.Address(address),
	)
	return &CorrelateResult{Claims: claims, Address: address}, nil
}

// proofRecord is a proof together with the key and window it was generated for
type proofRecord struct {
	Proof             prover.Proof `json:"proof"`
	ExtendedPublicKey string       `json:"extended_public_key"`
	MaxEpoch          uint64       `json:"max_epoch"`
}

// AcquireProof requests the zero-knowledge proof for the correlated token.
// A signable session whose proof has expired from the volatile tier may call it again.
func (s *Service) AcquireProof(ctx context.Context, sessionID string) (*SessionStatus, error) {
	release, current, err := s.begin(ctx, sessionID, StateAwaitingProof)
	if err != nil {
		return nil, err
	}
	defer release()
	if current == StateSignable {
		if record, err := s.loadProof(ctx, sessionID); err == nil && record != nil {
			return s.Status(ctx, sessionID)
		}
	}
	s.inflight.Store(sessionID, StateAwaitingProof)

	// 1. Gather inputs
	kp, err := s.keys.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	maxEpoch, err := s.epochs.MaxEpoch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.epochs.Check(ctx, maxEpoch); err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}
	randomness, err := s.binder.Randomness(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	jwt, err := s.tiers.Volatile.Get(ctx, sessionID, slotIDToken)
	if errors.Is(err, session.ErrNotFound) {
		return nil, s.fail(ctx, sessionID, ErrTokenExpired)
	}
	if err != nil {
		return nil, err
	}
	claims, err := s.loadClaims(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	salt, err := s.salts.Get(ctx, claims.Identity())
	if err != nil {
		return nil, err
	}
	extended := zkcrypto.ExtendedPublicKey(kp.SuiPublicKey())

	// 2. One oracle call
	proof, err := s.proofs.Request(ctx, ProofRequest{
		JWT:               jwt,
		ExtendedPublicKey: extended,
		MaxEpoch:          maxEpoch,
		Randomness:        randomness,
		Salt:              salt,
	})
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}

	// 3. Keep the proof with the key and window it binds
	record := proofRecord{Proof: *proof, ExtendedPublicKey: extended, MaxEpoch: maxEpoch}
	if err := s.putJSON(ctx, s.tiers.Volatile, sessionID, slotProof, record); err != nil {
		return nil, err
	}
	if err := s.setState(ctx, sessionID, StateSignable); err != nil {
		return nil, err
	}
	s.inflight.Delete(sessionID)
	return s.Status(ctx, sessionID)
}

// Execute signs txBytes with the session's zkLogin authority and submits them
func (s *Service) Execute(ctx context.Context, sessionID string, txBytes []byte) (*Execution, error) {
	return s.execute(ctx, sessionID, func(context.Context, string) ([]byte, error) {
		return txBytes, nil
	})
}

// Transfer sends amount MIST from the session's address to recipient
func (s *Service) Transfer(ctx context.Context, sessionID, recipient string, amount uint64) (*Execution, error) {
	return s.execute(ctx, sessionID, func(ctx context.Context, sender string) ([]byte, error) {
		need := new(big.Int).SetUint64(amount)
		need.Add(need, new(big.Int).SetUint64(s.cfg.GasBudget))

		coin, err := s.node.SelectGasCoin(ctx, sender, need)
		if err != nil {
			return nil, submissionError(err)
		}
		txBytes, err := s.node.TransferSuiTx(ctx, sender, coin.CoinObjectID, s.cfg.GasBudget, recipient, amount)
		if err != nil {
			return nil, submissionError(err)
		}
		return txBytes, nil
	})
}

type txBuilder func(ctx context.Context, sender string) ([]byte, error)

func (s *Service) execute(ctx context.Context, sessionID string, build txBuilder) (*Execution, error) {
	release, _, err := s.begin(ctx, sessionID, StateSubmitting)
	if err != nil {
		return nil, err
	}
	defer release()
	s.inflight.Store(sessionID, StateSubmitting)

	// 1. Key must be the one the proof was generated for
	kp, err := s.keys.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	record, err := s.loadProof(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, s.fail(ctx, sessionID, ErrProofExpired)
	}
	if record.ExtendedPublicKey != zkcrypto.ExtendedPublicKey(kp.SuiPublicKey()) {
		return nil, s.fail(ctx, sessionID, ErrKeyMismatch)
	}

	claims, err := s.loadClaims(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	salt, err := s.salts.Get(ctx, claims.Identity())
	if err != nil {
		return nil, err
	}
	address, err := s.tiers.Durable.Get(ctx, sessionID, slotAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: no address", ErrSessionNotFound)
	}

	// 2. Build and sign
	current, err := s.epochs.Current(ctx)
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}
	txBytes, err := build(ctx, address)
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}
	sig, err := Assemble(AssembleInput{
		TxBytes:      txBytes,
		Signer:       kp,
		Proof:        &record.Proof,
		Claims:       claims,
		Salt:         salt,
		MaxEpoch:     record.MaxEpoch,
		CurrentEpoch: current,
	})
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}

	// 3. Submit
	exec, err := s.submitter.Submit(ctx, txBytes, sig)
	if err != nil {
		return nil, s.fail(ctx, sessionID, err)
	}
	if err := s.tiers.Durable.Set(ctx, sessionID, slotDigest, exec.Digest); err != nil {
		s.logger.Error("failed to persist digest", logfield.Session(sessionID), zap.Error(err))
	}
	if err := s.setState(ctx, sessionID, StateFinalized); err != nil {
		return nil, err
	}
	s.inflight.Delete(sessionID)
	return exec, nil
}

// SessionStatus is the externally visible view of a session
type SessionStatus struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	Address   string `json:"address,omitempty"`
	MaxEpoch  uint64 `json:"max_epoch,omitempty"`
	Digest    string `json:"digest,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Status reports the session's state, including steps currently in flight
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	st, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if inflight, ok := s.inflight.Load(sessionID); ok {
		st = inflight.(State)
	}

	status := &SessionStatus{SessionID: sessionID, State: st}
	status.Address, _ = s.tiers.Durable.Get(ctx, sessionID, slotAddress)
	status.Digest, _ = s.tiers.Durable.Get(ctx, sessionID, slotDigest)
	status.LastError, _ = s.tiers.Durable.Get(ctx, sessionID, slotLastError)
	if maxEpoch, err := s.epochs.MaxEpoch(ctx, sessionID); err == nil {
		status.MaxEpoch = maxEpoch
	}
	return status, nil
}

// DeleteSalt removes an identity's salt after explicit confirmation
func (s *Service) DeleteSalt(ctx context.Context, id Identity, confirm bool) error {
	return s.salts.Delete(ctx, id, confirm)
}

// reserve takes the session's step guard
func (s *Service) reserve(ctx context.Context, sessionID string) (func(), error) {
	token, err := s.guard.Reserve(ctx, stepGuardValue, sessionID)
	if err != nil {
		if errors.Is(err, nonce.ErrNonceAlreadyUsed) {
			return nil, ErrFlowBusy
		}
		return nil, err
	}
	return func() {
		s.inflight.Delete(sessionID)
		if err := s.guard.Release(context.WithoutCancel(ctx), stepGuardValue, sessionID, token); err != nil {
			s.logger.Error("failed to release step guard", logfield.Session(sessionID), zap.Error(err))
		}
	}, nil
}

// begin takes the guard and checks that the session may move to next
func (s *Service) begin(ctx context.Context, sessionID string, next State) (func(), State, error) {
	release, err := s.reserve(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	current, err := s.state(ctx, sessionID)
	if err != nil {
		release()
		return nil, "", err
	}
	if !current.CanTransitionTo(next) {
		release()
		return nil, current, &TransitionError{From: current, To: next}
	}
	return release, current, nil
}

func (s *Service) state(ctx context.Context, sessionID string) (State, error) {
	v, err := s.tiers.Durable.Get(ctx, sessionID, slotState)
	if errors.Is(err, session.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	st, ok := parseState(v)
	if !ok {
		return "", fmt.Errorf("%w: unknown state %q", ErrSessionNotFound, v)
	}
	return st, nil
}

func (s *Service) setState(ctx context.Context, sessionID string, next State) error {
	if err := s.tiers.Durable.Set(ctx, sessionID, slotState, next.String()); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	s.metrics.observeTransition(next)
	s.logger.Info("session state changed", logfield.Session(sessionID), zap.Stringer("state", next))
	return nil
}

// fail records err. Fatal errors move the session to Failed; the rest leave it untouched.
func (s *Service) fail(ctx context.Context, sessionID string, err error) error {
	s.metrics.observeFailure(err)
	if !IsFatal(err) {
		return err
	}
	if setErr := s.setState(ctx, sessionID, StateFailed); setErr != nil {
		s.logger.Error("failed to mark session failed", logfield.Session(sessionID), zap.Error(setErr))
		return err
	}
	if setErr := s.tiers.Durable.Set(ctx, sessionID, slotLastError, errorReason(err)); setErr != nil {
		s.logger.Error("failed to record session error", logfield.Session(sessionID), zap.Error(setErr))
	}
	return err
}

func (s *Service) putJSON(ctx context.Context, store session.Store, sessionID, slot string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, sessionID, slot, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", slot, err)
	}
	return nil
}

func (s *Service) loadClaims(ctx context.Context, sessionID string) (*Claims, error) {
	raw, err := s.tiers.Durable.Get(ctx, sessionID, slotClaims)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: no claims", ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, fmt.Errorf("%w: corrupt claims", ErrSessionNotFound)
	}
	return &claims, nil
}

// loadProof returns nil without error when the proof is no longer held
func (s *Service) loadProof(ctx context.Context, sessionID string) (*proofRecord, error) {
	raw, err := s.tiers.Volatile.Get(ctx, sessionID, slotProof)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record proofRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode proof record: %w", err)
	}
	return &record, nil
}
