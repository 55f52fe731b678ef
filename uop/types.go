// Package uop defines the ERC-4337 user operation record, its canonical
// identity hash, and the priority and replacement rules used to order and
// admit operations into a mempool.
package uop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Entity is one of the closed set of addressable roles that can appear in a
// UserOperation. Values are exhaustive; new roles are not expected.
type Entity uint8

const (
	EntityAccount Entity = iota
	EntityPaymaster
	EntityFactory
	EntityAggregator
)

func (e Entity) String() string {
	switch e {
	case EntityAccount:
		return "account"
	case EntityPaymaster:
		return "paymaster"
	case EntityFactory:
		return "factory"
	case EntityAggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

// UserOperation is the signed, pre-execution intent submitted against a
// known entry point contract. It is opaque beyond the fields the pool needs
// to hash, price, and route it.
type UserOperation struct {
	Sender                 common.Address
	Nonce                  *big.Int
	MaxFeePerGas           *big.Int
	MaxPriorityFeePerGas   *big.Int
	Paymaster              *common.Address // nil if absent
	Factory                *common.Address // nil unless this is the sender's first operation
	Aggregator             *common.Address // nil if absent
	CallData               []byte
}

// StorageSlot pins a single storage value observed during upstream
// validation, used to detect state the sender's operation depended on.
type StorageSlot struct {
	Address common.Address
	Slot    common.Hash
	Value   common.Hash
}

// ValidTimeRange is the inclusive [ValidAfter, ValidUntil] window, in
// seconds since the Unix epoch, during which the operation is valid. A zero
// ValidUntil means "no upper bound".
type ValidTimeRange struct {
	ValidAfter uint64
	ValidUntil uint64
}

// PoolOperation augments a UserOperation with the validation metadata
// produced by the (out-of-scope) upstream simulator. Only PoolOperations are
// ever stored in the pool.
type PoolOperation struct {
	UserOperation

	ValidTimeRange        ValidTimeRange
	ExpectedCodeHash      map[common.Address]common.Hash
	SimBlockHash          common.Hash
	ExpectedStorageSlots  []StorageSlot
	EntitiesNeedingStake  []Entity
	AccountIsStaked       bool

	// EntryPoint is the contract this operation targets; it is not part of
	// the canonical hash preimage fields listed in the wire format but is
	// carried alongside the operation so callers never need a side table.
	EntryPoint common.Address
}

// NeedsStake reports whether e is among the entities this operation requires
// to be staked.
func (p *PoolOperation) NeedsStake(e Entity) bool {
	for _, need := range p.EntitiesNeedingStake {
		if need == e {
			return true
		}
	}
	return false
}

// Entities returns the distinct (kind, address) pairs referenced by this
// operation: the sender always, plus any present paymaster/factory/aggregator.
func (p *PoolOperation) Entities() []EntityRef {
	refs := make([]EntityRef, 0, 4)
	refs = append(refs, EntityRef{Kind: EntityAccount, Address: p.Sender})
	if p.Paymaster != nil {
		refs = append(refs, EntityRef{Kind: EntityPaymaster, Address: *p.Paymaster})
	}
	if p.Factory != nil {
		refs = append(refs, EntityRef{Kind: EntityFactory, Address: *p.Factory})
	}
	if p.Aggregator != nil {
		refs = append(refs, EntityRef{Kind: EntityAggregator, Address: *p.Aggregator})
	}
	return refs
}

// EntityRef names one addressable participant in an operation.
type EntityRef struct {
	Kind    Entity
	Address common.Address
}
