// Package router maps entry point addresses onto their dedicated mempool
// pool. The mapping is built once at construction and never mutated, so
// lookups require no locking.
package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/bundler/mempool"
)

// Router dispatches by entry point address to the pool instance scoped to
// it. It holds no state beyond the lookup table: everything stateful lives
// in the individual *mempool.Pool values.
type Router struct {
	pools map[common.Address]*mempool.Pool
	order []common.Address
}

// New builds a Router over pools. Pools with duplicate entry point
// addresses are rejected by the caller constructing the slice; New simply
// indexes the last one seen for a given address.
func New(pools []*mempool.Pool) *Router {
	r := &Router{
		pools: make(map[common.Address]*mempool.Pool, len(pools)),
		order: make([]common.Address, 0, len(pools)),
	}
	for _, p := range pools {
		ep := p.EntryPoint()
		if _, exists := r.pools[ep]; !exists {
			r.order = append(r.order, ep)
		}
		r.pools[ep] = p
	}
	return r
}

// Lookup returns the pool scoped to entryPoint, or ok=false if this router
// was not configured to support it.
func (r *Router) Lookup(entryPoint common.Address) (*mempool.Pool, bool) {
	p, ok := r.pools[entryPoint]
	return p, ok
}

// SupportedEntryPoints returns every entry point this router dispatches to,
// in the order the pools were supplied to New.
func (r *Router) SupportedEntryPoints() []common.Address {
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Pools returns every pool this router dispatches to, in the same order as
// SupportedEntryPoints, for callers (the block reactor, debug dumps) that
// need to operate over all of them.
func (r *Router) Pools() []*mempool.Pool {
	out := make([]*mempool.Pool, len(r.order))
	for i, ep := range r.order {
		out[i] = r.pools[ep]
	}
	return out
}
