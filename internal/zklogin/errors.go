package zklogin

import (
	"errors"
	"fmt"
)

// Error definitions
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrEpochQueryFailed   = errors.New("epoch query failed")
	ErrNonceMismatch      = errors.New("token nonce does not match bound nonce")
	ErrMalformedToken     = errors.New("malformed identity token")
	ErrProverUnavailable  = errors.New("prover unavailable")
	ErrProofRejected      = errors.New("proof rejected")
	ErrProofMalformed     = errors.New("proof malformed")
	ErrProofExpired       = errors.New("proof no longer held, request it again")
	ErrTokenExpired       = errors.New("identity token no longer held, restart the login")
	ErrIncompleteInputs   = errors.New("incomplete signature inputs")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrExpiredWindow      = errors.New("epoch window expired")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrFlowBusy           = errors.New("another step is in progress for this session")
	ErrKeyMismatch        = errors.New("ephemeral key differs from the key bound to the proof")
	ErrDeleteNotConfirmed = errors.New("salt deletion requires explicit confirmation")
	ErrSaltNotFound       = errors.New("salt not found")
)

// SubmissionError carries the node's reason for rejecting a transaction
type SubmissionError struct {
	Digest string
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Digest != "" {
		return fmt.Sprintf("%v: %s (digest %s)", ErrSubmissionRejected, e.Reason, e.Digest)
	}
	return fmt.Sprintf("%v: %s", ErrSubmissionRejected, e.Reason)
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionRejected
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransitionError reports a step attempted from the wrong state
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// fatalErrors end the login attempt; the user has to start over
var fatalErrors = []error{
	ErrNonceMismatch,
	ErrMalformedToken,
	ErrExpiredWindow,
	ErrIncompleteInputs,
	ErrProofRejected,
	ErrKeyMismatch,
}

// IsFatal reports whether err moves a session to the failed state.
// Everything else leaves the session where it was so the step can be retried.
func IsFatal(err error) bool {
	for _, f := range fatalErrors {
		if errors.Is(err, f) {
			return true
		}
	}
	return false
}
