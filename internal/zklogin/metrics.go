package zklogin

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the login flow's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	proofDuration *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zklogin",
			Name:      "state_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zklogin",
			Name:      "step_failures_total",
			Help:      "Failed flow steps by error class.",
		}, []string{"reason", "fatal"}),
		proofDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zklogin",
			Name:      "proof_request_duration_seconds",
			Help:      "Latency of proving oracle calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zklogin",
			Name:      "submissions_total",
			Help:      "Transactions submitted to the node by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.transitions, m.failures, m.proofDuration, m.submissions)
	return m
}

func (m *Metrics) observeTransition(to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) observeFailure(err error) {
	if m == nil {
		return
	}
	fatal := "false"
	if IsFatal(err) {
		fatal = "true"
	}
	m.failures.WithLabelValues(errorReason(err), fatal).Inc()
}

func (m *Metrics) observeProof(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.proofDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) observeSubmission(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "rejected"
	}
	m.submissions.WithLabelValues(result).Inc()
}

// errorReason maps an error to a bounded label value
func errorReason(err error) string {
	reasons := []struct {
		err   error
		label string
	}{
		{ErrSessionNotFound, "session_not_found"},
		{ErrEpochQueryFailed, "epoch_query_failed"},
		{ErrNonceMismatch, "nonce_mismatch"},
		{ErrMalformedToken, "malformed_token"},
		{ErrProverUnavailable, "prover_unavailable"},
		{ErrProofRejected, "proof_rejected"},
		{ErrProofMalformed, "proof_malformed"},
		{ErrProofExpired, "proof_expired"},
		{ErrTokenExpired, "token_expired"},
		{ErrIncompleteInputs, "incomplete_inputs"},
		{ErrSubmissionRejected, "submission_rejected"},
		{ErrExpiredWindow, "expired_window"},
		{ErrInvalidTransition, "invalid_transition"},
		{ErrFlowBusy, "flow_busy"},
		{ErrKeyMismatch, "key_mismatch"},
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
