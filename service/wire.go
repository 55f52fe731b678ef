package service

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/luxfi/bundler/mempool"
)

// WireReason is the external reason code set the transport speaks, distinct
// from the internal mempool.Reason enum: several internal reasons collapse
// onto the single legacy "OperationRejected" code.
type WireReason string

const (
	WireEntityThrottled       WireReason = "EntityThrottled"
	WireOperationRejected     WireReason = "OperationRejected"
	WireReplacementUnderpriced WireReason = "ReplacementUnderpriced"
	WireDiscardedOnInsert     WireReason = "OperationDiscardedOnInsert"
	WireUnspecified           WireReason = "Unspecified"
)

// Detail is the structured error payload carried alongside a generic
// transport status code. Metadata uses structpb.Struct so it can be
// embedded directly in a protobuf status detail without a bespoke message
// type.
type Detail struct {
	Reason   WireReason
	Metadata *structpb.Struct
}

// ToWireDetail translates an internal rejection into the external detail
// payload. Both capacity reasons (MempoolFull, DiscardedOnInsert) map to
// OperationDiscardedOnInsert. Reasons with no direct external analogue
// (staking, unsupported entry point, invalid argument, internal faults)
// collapse onto OperationRejected or Unspecified.
func ToWireDetail(err *mempool.RejectError) *Detail {
	switch err.Reason {
	case mempool.ReasonEntityThrottled:
		meta, buildErr := structpb.NewStruct(map[string]interface{}{
			err.Entity.String(): hexutil.Encode(err.Address.Bytes()),
		})
		if buildErr != nil {
			meta = nil
		}
		return &Detail{Reason: WireEntityThrottled, Metadata: meta}
	case mempool.ReasonReplacementUnderpriced:
		return &Detail{Reason: WireReplacementUnderpriced}
	case mempool.ReasonDiscardedOnInsert, mempool.ReasonMempoolFull:
		return &Detail{Reason: WireDiscardedOnInsert}
	case mempool.ReasonUnsupportedEntryPoint, mempool.ReasonInvalidArgument, mempool.ReasonEntityRequiresStake:
		return &Detail{Reason: WireOperationRejected}
	default:
		return &Detail{Reason: WireUnspecified}
	}
}
