// Package reactor applies newly mined blocks to every pool: operations the
// block included are removed and credited against their entities'
// reputation, and the block's base fee is pushed into each pool so resident
// priority ordering reflects the network's current conditions.
package reactor

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bundler/mempool"
	"github.com/luxfi/bundler/reputation"
)

// Block is the minimal view of a mined block the reactor needs: the hashes
// of every included operation, grouped by the entry point that mined them,
// and the block's base fee for repricing residents.
type Block struct {
	Number      uint64
	BaseFee     *big.Int
	MinedByPool map[common.Address][]common.Hash
}

// AppliedEvent is broadcast after a block has been fully applied to every
// pool, for observers such as debug endpoints or tests.
type AppliedEvent struct {
	Block Block
}

// Reactor drives one MinedBlock application at a time (concurrent
// OnMinedBlock calls wait their turn); within an
// application, each pool is handled concurrently since pools never share
// state and the fan-out across them is embarrassingly parallel.
type Reactor struct {
	pools   []*mempool.Pool
	tracker *reputation.Tracker
	log     log.Logger

	applyMu sync.Mutex // serializes OnMinedBlock calls

	feed event.Feed
	subs event.SubscriptionScope
}

// New constructs a Reactor over the given pools, sharing tracker with the
// admission controllers that feed those same pools.
func New(pools []*mempool.Pool, tracker *reputation.Tracker) *Reactor {
	return &Reactor{
		pools:   pools,
		tracker: tracker,
		log:     log.New("component", "reactor"),
	}
}

// Subscribe registers ch to receive an AppliedEvent after every call to
// OnMinedBlock completes.
func (r *Reactor) Subscribe(ch chan<- AppliedEvent) event.Subscription {
	return r.subs.Track(r.feed.Subscribe(ch))
}

// Close unsubscribes every listener registered via Subscribe.
func (r *Reactor) Close() {
	r.subs.Close()
}

// OnMinedBlock applies block to every pool: residents named in
// block.MinedByPool are removed and their entities credited via
// IncIncluded, and block.BaseFee (if known) is pushed to every pool
// regardless of whether it mined anything, since repricing is independent
// of inclusion.
func (r *Reactor) OnMinedBlock(ctx context.Context, block Block) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, pool := range r.pools {
		pool := pool
		g.Go(func() error {
			if block.BaseFee != nil {
				pool.SetBaseFee(block.BaseFee)
			}
			hashes := block.MinedByPool[pool.EntryPoint()]
			if len(hashes) == 0 {
				return nil
			}
			refs := pool.RemoveByMined(hashes)
			for _, ref := range refs {
				r.tracker.IncIncluded(ref.Address)
			}
			r.log.Debug("applied mined block to pool", "entryPoint", pool.EntryPoint(), "included", len(refs), "block", block.Number)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.feed.Send(AppliedEvent{Block: block})
	return nil
}
