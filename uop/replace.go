package uop

import "math/big"

// DefaultReplacementBumpPercent is applied when a pool's configuration
// leaves the bump unset.
const DefaultReplacementBumpPercent = 10

// ReplacementAllowed reports whether candidate may replace incumbent at the
// same (sender, nonce) slot: both its max fee and max priority fee must
// individually exceed the incumbent's by at least bumpPercent, matching
// op_pool/mempool's independent fee-field comparison rather than a single
// combined one.
func ReplacementAllowed(incumbent, candidate *UserOperation, bumpPercent int) bool {
	if bumpPercent <= 0 {
		bumpPercent = DefaultReplacementBumpPercent
	}
	return exceedsByBump(incumbent.MaxFeePerGas, candidate.MaxFeePerGas, bumpPercent) &&
		exceedsByBump(incumbent.MaxPriorityFeePerGas, candidate.MaxPriorityFeePerGas, bumpPercent)
}

// exceedsByBump reports whether candidate >= incumbent * (100+bumpPercent) / 100.
func exceedsByBump(incumbent, candidate *big.Int, bumpPercent int) bool {
	incumbent, candidate = orZero(incumbent), orZero(candidate)
	threshold := new(big.Int).Mul(incumbent, big.NewInt(int64(100+bumpPercent)))
	scaledCandidate := new(big.Int).Mul(candidate, big.NewInt(100))
	return scaledCandidate.Cmp(threshold) >= 0
}
