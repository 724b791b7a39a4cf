package sui

import "golang.org/x/crypto/blake2b"

// IntentScope identifies what kind of message is being signed
type IntentScope byte

const (
	IntentScopeTransactionData IntentScope = 0
	IntentScopePersonalMessage IntentScope = 3

	intentVersion = 0
	intentAppID   = 0
)

// IntentMessage prefixes msg with the 3-byte intent (scope, version, app id)
func IntentMessage(scope IntentScope, msg []byte) []byte {
	out := make([]byte, 0, 3+len(msg))
	out = append(out, byte(scope), intentVersion, intentAppID)
	return append(out, msg...)
}

// IntentDigest is the blake2b-256 hash of the intent message, the value actually signed
func IntentDigest(scope IntentScope, msg []byte) [32]byte {
	return blake2b.Sum256(IntentMessage(scope, msg))
}
