package service

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bundler/mempool"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/router"
	"github.com/luxfi/bundler/uop"
)

var entryPoint = common.HexToAddress("0x5100000000000000000000000000000000000E")

func newTestService(t *testing.T) (*Service, *mempool.Pool, *reputation.Tracker) {
	t.Helper()
	pool := mempool.NewPool(entryPoint, 1337, mempool.Config{MaxSize: 10})
	tracker := reputation.New(reputation.NewMockableClock(), reputation.DefaultDecayHours)
	r := router.New([]*mempool.Pool{pool})
	return New(r, tracker, 1337), pool, tracker
}

func opWithFee(sender common.Address, nonce, fee int64) *uop.PoolOperation {
	return &uop.PoolOperation{
		UserOperation: uop.UserOperation{
			Sender:               sender,
			Nonce:                big.NewInt(nonce),
			MaxFeePerGas:         big.NewInt(fee),
			MaxPriorityFeePerGas: big.NewInt(fee),
		},
		EntryPoint: entryPoint,
	}
}

func TestGetSupportedEntryPoints(t *testing.T) {
	svc, _, _ := newTestService(t)
	chainID, eps := svc.GetSupportedEntryPoints()
	require.Equal(t, uint64(1337), chainID)
	require.Equal(t, []common.Address{entryPoint}, eps)
}

func TestAddOpAndGetOps(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := common.HexToAddress("0x5200000000000000000000000000000000000E")
	op := opWithFee(sender, 1, 5)

	hash, err := svc.AddOp(entryPoint.Bytes(), op)
	require.NoError(t, err)

	ops, err := svc.GetOps(entryPoint.Bytes(), 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, hash, ops[0].Hash(entryPoint, 1337))
}

func TestAddOpRejectsMalformedEntryPoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := common.HexToAddress("0x5300000000000000000000000000000000000E")
	op := opWithFee(sender, 1, 5)

	_, err := svc.AddOp([]byte{0x01, 0x02}, op)
	require.Error(t, err)
	var rejErr *mempool.RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, mempool.ReasonInvalidArgument, rejErr.Reason)
}

func TestAddOpRejectsUnknownEntryPoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := common.HexToAddress("0x5400000000000000000000000000000000000E")
	op := opWithFee(sender, 1, 5)

	unknown := common.HexToAddress("0x9900000000000000000000000000000000000E")
	_, err := svc.AddOp(unknown.Bytes(), op)
	require.Error(t, err)
	var rejErr *mempool.RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, mempool.ReasonUnsupportedEntryPoint, rejErr.Reason)
}

func TestRemoveOpsValidatesHashLength(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.RemoveOps(entryPoint.Bytes(), [][]byte{{0x01}})
	require.Error(t, err)
	var rejErr *mempool.RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, mempool.ReasonInvalidArgument, rejErr.Reason)
}

func TestRemoveOpsRemovesResident(t *testing.T) {
	svc, pool, _ := newTestService(t)
	sender := common.HexToAddress("0x5500000000000000000000000000000000000E")
	op := opWithFee(sender, 1, 5)
	hash, err := svc.AddOp(entryPoint.Bytes(), op)
	require.NoError(t, err)

	err = svc.RemoveOps(entryPoint.Bytes(), [][]byte{hash.Bytes()})
	require.NoError(t, err)
	require.Equal(t, 0, pool.Size())
}

func TestDebugSetReputationRequiresNonEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.DebugSetReputation(entryPoint.Bytes(), nil)
	require.Error(t, err)
	var rejErr *mempool.RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, mempool.ReasonInvalidArgument, rejErr.Reason)
}

// An overridden paymaster classifies as Banned and AddOp is rejected with
// EntityThrottled, exercised through the service surface rather than the
// pool directly.
func TestDebugSetReputationThenAddOpRejected(t *testing.T) {
	svc, pool, _ := newTestService(t)
	pool.SetBaseFee(nil)
	pool.SetThresholds(reputation.Thresholds{ThrottlingSlack: 10, BanningSlack: 100})

	paymaster := common.HexToAddress("0x5600000000000000000000000000000000000E")
	err := svc.DebugSetReputation(entryPoint.Bytes(), []ReputationOverride{
		{Address: paymaster.Bytes(), OpsSeen: 1000, OpsIncluded: 0},
	})
	require.NoError(t, err)

	sender := common.HexToAddress("0x5700000000000000000000000000000000000E")
	op := opWithFee(sender, 1, 5)
	op.Paymaster = &paymaster

	_, err = svc.AddOp(entryPoint.Bytes(), op)
	require.Error(t, err)
	var rejErr *mempool.RejectError
	require.ErrorAs(t, err, &rejErr)
	require.Equal(t, mempool.ReasonEntityThrottled, rejErr.Reason)
}

func TestDebugDumpReputationReflectsOverride(t *testing.T) {
	svc, _, _ := newTestService(t)
	paymaster := common.HexToAddress("0x5800000000000000000000000000000000000E")
	require.NoError(t, svc.DebugSetReputation(entryPoint.Bytes(), []ReputationOverride{
		{Address: paymaster.Bytes(), OpsSeen: 7, OpsIncluded: 2},
	}))

	dump, err := svc.DebugDumpReputation(entryPoint.Bytes())
	require.NoError(t, err)
	require.Len(t, dump, 1)
	require.Equal(t, paymaster, dump[0].Address)
	require.Equal(t, uint64(7), dump[0].Entry.OpsSeen)
}

func TestDebugClearStateClearsPool(t *testing.T) {
	svc, pool, _ := newTestService(t)
	sender := common.HexToAddress("0x5900000000000000000000000000000000000E")
	_, err := svc.AddOp(entryPoint.Bytes(), opWithFee(sender, 1, 5))
	require.NoError(t, err)

	svc.DebugClearState()
	require.Equal(t, 0, pool.Size())
}

func TestToWireDetailEntityThrottled(t *testing.T) {
	paymaster := common.HexToAddress("0x5A00000000000000000000000000000000000E")
	rejErr := &mempool.RejectError{Reason: mempool.ReasonEntityThrottled, Entity: uop.EntityPaymaster, Address: paymaster}
	detail := ToWireDetail(rejErr)
	require.Equal(t, WireEntityThrottled, detail.Reason)
	require.Equal(t, hexutil.Encode(paymaster.Bytes()), detail.Metadata.Fields["paymaster"].GetStringValue())
}
