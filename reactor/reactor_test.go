package reactor

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bundler/mempool"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/uop"
)

var entryPoint = common.HexToAddress("0xE100000000000000000000000000000000000E")

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

func TestOnMinedBlockRemovesAndCreditsReputation(t *testing.T) {
	pool := mempool.NewPool(entryPoint, 1337, mempool.Config{MaxSize: 10})
	tracker := reputation.New(reputation.NewMockableClock(), reputation.DefaultDecayHours)
	sender := common.HexToAddress("0xE200000000000000000000000000000000000E")

	op := opWithFee(sender, 1, 5)
	hash, err := pool.Admit(mempool.OriginLocal, tracker, op)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tracker.Get(sender).OpsSeen)
	require.Equal(t, uint64(0), tracker.Get(sender).OpsIncluded)

	r := New([]*mempool.Pool{pool}, tracker)
	block := Block{
		Number:      1,
		BaseFee:     big.NewInt(1),
		MinedByPool: map[common.Address][]common.Hash{entryPoint: {hash}},
	}
	require.NoError(t, r.OnMinedBlock(context.Background(), block))

	require.Equal(t, 0, pool.Size())
	require.Equal(t, uint64(1), tracker.Get(sender).OpsIncluded)
}

func TestOnMinedBlockUpdatesBaseFeeEvenWithoutInclusions(t *testing.T) {
	pool := mempool.NewPool(entryPoint, 1337, mempool.Config{MaxSize: 10})
	tracker := reputation.New(reputation.NewMockableClock(), reputation.DefaultDecayHours)
	sender := common.HexToAddress("0xE300000000000000000000000000000000000E")
	other := common.HexToAddress("0xE400000000000000000000000000000000000E")

	_, err := pool.Admit(mempool.OriginLocal, tracker, opWithFee(sender, 1, 5))
	require.NoError(t, err)
	// Tip 3 with ample fee headroom ranks below sender's tip 5 until a base
	// fee of 3 caps sender's effective tip at 5-3=2.
	wide := opWithFee(other, 1, 3)
	wide.MaxFeePerGas = big.NewInt(100)
	_, err = pool.Admit(mempool.OriginLocal, tracker, wide)
	require.NoError(t, err)
	require.Equal(t, sender, pool.Best(1)[0].Sender)

	r := New([]*mempool.Pool{pool}, tracker)
	block := Block{Number: 2, BaseFee: big.NewInt(3)}
	require.NoError(t, r.OnMinedBlock(context.Background(), block))

	best := pool.Best(2)
	require.Len(t, best, 2)
	require.Equal(t, other, best[0].Sender)
	require.Equal(t, big.NewInt(2), best[1].EffectivePriorityFeePerGas(big.NewInt(3)))
}

func TestOnMinedBlockBroadcastsAppliedEvent(t *testing.T) {
	pool := mempool.NewPool(entryPoint, 1337, mempool.Config{MaxSize: 10})
	tracker := reputation.New(reputation.NewMockableClock(), reputation.DefaultDecayHours)
	r := New([]*mempool.Pool{pool}, tracker)
	defer r.Close()

	ch := make(chan AppliedEvent, 1)
	sub := r.Subscribe(ch)
	defer sub.Unsubscribe()

	require.NoError(t, r.OnMinedBlock(context.Background(), Block{Number: 7}))

	select {
	case ev := <-ch:
		require.Equal(t, uint64(7), ev.Block.Number)
	default:
		t.Fatal("expected an AppliedEvent to be broadcast")
	}
}
