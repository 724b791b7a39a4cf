package zklogin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity token fields the login flow depends on
type Claims struct {
	Issuer    string    `json:"iss"`
	Audience  string    `json:"aud"`
	Subject   string    `json:"sub"`
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Identity returns the (issuer, audience, subject) triple the salt is keyed by
func (c *Claims) Identity() Identity {
	return Identity{Issuer: c.Issuer, Audience: c.Audience, Subject: c.Subject}
}

// Correlate decodes an id_token and checks that it carries expectedNonce.
// The token signature is not verified here; the prover checks it inside the circuit.
func Correlate(rawToken, expectedNonce string) (*Claims, error) {
	parser := jwt.NewParser()
	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rawToken, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, err := parseClaimsMap(mapClaims)
	if err != nil {
		return nil, err
	}
	if claims.Nonce != expectedNonce {
		return nil, ErrNonceMismatch
	}
	return claims, nil
}

func parseClaimsMap(m jwt.MapClaims) (*Claims, error) {
	iss, err := m.GetIssuer()
	if err != nil || iss == "" {
		return nil, fmt.Errorf("%w: missing iss", ErrMalformedToken)
	}
	sub, err := m.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformedToken)
	}
	aud, err := m.GetAudience()
	if err != nil || len(aud) == 0 {
		return nil, fmt.Errorf("%w: missing aud", ErrMalformedToken)
	}
	if len(aud) > 1 {
		return nil, fmt.Errorf("%w: multiple audiences", ErrMalformedToken)
	}
	nonce, _ := m["nonce"].(string)

	claims := &Claims{
		Issuer:   iss,
		Audience: aud[0],
		Subject:  sub,
		Nonce:    nonce,
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
