package mempool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/bundler/uop"
)

// Reason is the typed rejection reason surfaced to callers and, ultimately,
// mapped onto the external wire reason codes of the request transport.
type Reason int

const (
	ReasonUnspecified Reason = iota
	ReasonUnsupportedEntryPoint
	ReasonInvalidArgument
	ReasonEntityThrottled
	ReasonReplacementUnderpriced
	ReasonMempoolFull
	ReasonDiscardedOnInsert
	ReasonEntityRequiresStake
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupportedEntryPoint:
		return "UnsupportedEntryPoint"
	case ReasonInvalidArgument:
		return "InvalidArgument"
	case ReasonEntityThrottled:
		return "EntityThrottled"
	case ReasonReplacementUnderpriced:
		return "ReplacementUnderpriced"
	case ReasonMempoolFull:
		return "MempoolFull"
	case ReasonDiscardedOnInsert:
		return "DiscardedOnInsert"
	case ReasonEntityRequiresStake:
		return "EntityRequiresStake"
	case ReasonInternal:
		return "Internal"
	default:
		return "Unspecified"
	}
}

// RejectError is returned when an operation cannot be admitted. Entity and
// Address are populated only for the entity-gated reasons.
type RejectError struct {
	Reason  Reason
	Entity  uop.Entity
	Address common.Address
	detail  string
}

func (e *RejectError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.detail)
	}
	return e.Reason.String()
}

func errUnsupportedEntryPoint(ep common.Address) *RejectError {
	return &RejectError{Reason: ReasonUnsupportedEntryPoint, detail: fmt.Sprintf("entry point %s not configured", ep)}
}

func errInvalidArgument(detail string) *RejectError {
	return &RejectError{Reason: ReasonInvalidArgument, detail: detail}
}

// NewUnsupportedEntryPoint is the exported constructor callers outside this
// package (the request service, resolving a pool before Admit even runs)
// use to report an unrecognised entry point.
func NewUnsupportedEntryPoint(ep common.Address) *RejectError {
	return errUnsupportedEntryPoint(ep)
}

// NewInvalidArgument is the exported constructor for byte-length and
// missing-field violations caught at the request service boundary.
func NewInvalidArgument(detail string) *RejectError {
	return errInvalidArgument(detail)
}

func errEntityThrottled(kind uop.Entity, addr common.Address) *RejectError {
	return &RejectError{Reason: ReasonEntityThrottled, Entity: kind, Address: addr}
}

func errReplacementUnderpriced() *RejectError {
	return &RejectError{Reason: ReasonReplacementUnderpriced}
}

func errMempoolFull() *RejectError {
	return &RejectError{Reason: ReasonMempoolFull}
}

func errDiscardedOnInsert() *RejectError {
	return &RejectError{Reason: ReasonDiscardedOnInsert}
}

func errEntityRequiresStake(kind uop.Entity, addr common.Address) *RejectError {
	return &RejectError{Reason: ReasonEntityRequiresStake, Entity: kind, Address: addr}
}

func errInternal(detail string) *RejectError {
	return &RejectError{Reason: ReasonInternal, detail: detail}
}
