package uop

import "math/big"

// EffectivePriorityFeePerGas is the value the pool orders operations by:
// min(maxPriorityFeePerGas, maxFeePerGas - baseFee), clamped at zero. If
// baseFee is unknown (nil), the max priority fee is used directly, per the
// fallback adopted in place of the source's under-specified behavior.
func (u *UserOperation) EffectivePriorityFeePerGas(baseFee *big.Int) *big.Int {
	tip := orZero(u.MaxPriorityFeePerGas)
	if baseFee == nil {
		return new(big.Int).Set(tip)
	}
	headroom := new(big.Int).Sub(orZero(u.MaxFeePerGas), baseFee)
	fee := tip
	if headroom.Cmp(tip) < 0 {
		fee = headroom
	}
	if fee.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(fee)
}
