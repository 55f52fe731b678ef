package uop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// canonicalEncoding is the fixed-order, RLP-encodable preimage of a
// UserOperation's hash. Optional addresses are encoded as the zero address
// when absent so the preimage shape never varies with presence/absence of an
// entity, matching the "canonical encoding" requirement of the wire hash.
type canonicalEncoding struct {
	EntryPoint           common.Address
	ChainID              *big.Int
	Sender               common.Address
	Nonce                *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Paymaster            common.Address
	Factory              common.Address
	Aggregator           common.Address
	CallData             []byte
}

func zeroIfNil(a *common.Address) common.Address {
	if a == nil {
		return common.Address{}
	}
	return *a
}

// Hash returns the UO's deterministic identity: keccak-256 of the canonical
// RLP encoding of its fields, salted by the entry point address and chain
// id. It is stable across processes and does not depend on validation
// metadata, so replacements and resubmissions of the same intent hash the
// same way regardless of who validated them.
func (u *UserOperation) Hash(entryPoint common.Address, chainID uint64) common.Hash {
	enc := canonicalEncoding{
		EntryPoint:           entryPoint,
		ChainID:              new(big.Int).SetUint64(chainID),
		Sender:               u.Sender,
		Nonce:                orZero(u.Nonce),
		MaxFeePerGas:         orZero(u.MaxFeePerGas),
		MaxPriorityFeePerGas: orZero(u.MaxPriorityFeePerGas),
		Paymaster:            zeroIfNil(u.Paymaster),
		Factory:              zeroIfNil(u.Factory),
		Aggregator:           zeroIfNil(u.Aggregator),
		CallData:             u.CallData,
	}
	b, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		// The preimage is built entirely from fixed-shape fields; encoding
		// fails only for a negative big.Int field (nil ones become zero via
		// orZero).
		panic("uop: canonical encoding failed: " + err.Error())
	}
	return crypto.Keccak256Hash(b)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// NonceKey identifies the at-most-one-resident-operation slot a UO occupies:
// its (sender, nonce) pair.
type NonceKey struct {
	Sender common.Address
	Nonce  string // big.Int.String(), since big.Int is not comparable
}

func (u *UserOperation) NonceKey() NonceKey {
	return NonceKey{Sender: u.Sender, Nonce: orZero(u.Nonce).String()}
}
