package zklogin

// Storage slots. Each one is written by a single component.
const (
	// KeyVault (both tiers)
	slotEphemeralKey      = "ephemeral_key"
	slotExtendedPublicKey = "extended_public_key"

	// EpochWindow (durable)
	slotMaxEpoch = "max_epoch"

	// NonceBinder (both tiers)
	slotRandomness = "randomness"
	slotNonce      = "nonce"

	// Service
	slotState     = "state"      // durable
	slotIDToken   = "id_token"   // volatile only
	slotClaims    = "claims"     // durable
	slotAddress   = "address"    // durable
	slotProof     = "proof"      // volatile
	slotDigest    = "digest"     // durable
	slotLastError = "last_error" // durable
)
