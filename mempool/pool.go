// Package mempool implements the per-entry-point priority-ordered operation
// store and the admission controller that gates insertion on reputation,
// capacity, and replacement rules.
package mempool

import (
	"math/big"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/uop"
)

// Origin distinguishes operations submitted directly by a local caller from
// ones discovered through the external gossip path; both enter through the
// same admission pipeline, but local origin is exempt from none of its
// gates — the distinction exists purely for observability upstream.
type Origin uint8

const (
	OriginLocal Origin = iota
	OriginExternal
)

// Config bounds and tunes one Pool's admission and eviction behaviour.
type Config struct {
	MaxSize                int
	ReplacementBumpPercent int
	Thresholds             reputation.Thresholds
}

func (c Config) normalized() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 1
	}
	if c.ReplacementBumpPercent <= 0 {
		c.ReplacementBumpPercent = uop.DefaultReplacementBumpPercent
	}
	return c
}

type entityKey struct {
	kind uop.Entity
	addr common.Address
}

// resident is a stored operation plus the bookkeeping the store needs to
// keep its indices coherent and its priority order stable under ties.
type resident struct {
	op  *uop.PoolOperation
	seq uint64
}

// Pool is the concurrency-safe, priority-ordered store for one entry point.
// A single RWMutex gives a single-writer/many-reader discipline:
// Best/All/dump-style reads take the read lock, every mutation takes
// the write lock for its whole critical section so partial states are never
// observable.
type Pool struct {
	entryPoint common.Address
	chainID    uint64
	cfg        Config
	metrics    *poolMetrics

	mu           sync.RWMutex
	byHash       map[common.Hash]*resident
	byNonce      map[uop.NonceKey]common.Hash
	entityCounts map[entityKey]int
	nextSeq      uint64

	baseFee atomic.Pointer[big.Int] // nil until an external collaborator reports one
}

// NewPool constructs an empty pool for entryPoint under chainID.
func NewPool(entryPoint common.Address, chainID uint64, cfg Config) *Pool {
	p := &Pool{
		entryPoint:   entryPoint,
		chainID:      chainID,
		cfg:          cfg.normalized(),
		metrics:      newPoolMetrics(entryPoint),
		byHash:       make(map[common.Hash]*resident),
		byNonce:      make(map[uop.NonceKey]common.Hash),
		entityCounts: make(map[entityKey]int),
	}
	return p
}

// EntryPoint returns the address this pool is scoped to.
func (p *Pool) EntryPoint() common.Address { return p.entryPoint }

// SetBaseFee records the most recently known network base fee, used to
// compute effective priority fees for every resident and future insertion.
// A nil value reverts to the max-priority-fee fallback.
func (p *Pool) SetBaseFee(baseFee *big.Int) {
	if baseFee == nil {
		p.baseFee.Store(nil)
		return
	}
	p.baseFee.Store(new(big.Int).Set(baseFee))
}

// SetThresholds updates the reputation classification thresholds this pool
// gates admission with. Safe to call concurrently with Admit.
func (p *Pool) SetThresholds(th reputation.Thresholds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Thresholds = th
}

func (p *Pool) priorityOf(op *uop.PoolOperation) *big.Int {
	return op.EffectivePriorityFeePerGas(p.baseFee.Load())
}

// Size returns the number of resident operations.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Best returns up to max resident operations in descending priority order,
// ties broken by earlier insertion sequence. The returned slice is a
// snapshot: later mutation of the pool does not retroactively change it,
// though the pool may have already evicted or replaced an item in it by the
// time the caller acts on it.
func (p *Pool) Best(max int) []*uop.PoolOperation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.orderedLocked(max)
}

// All returns every resident operation, in the same stable order as Best,
// for debug dumps. max bounds the result the same way Best does.
func (p *Pool) All(max int) []*uop.PoolOperation {
	return p.Best(max)
}

func (p *Pool) orderedLocked(max int) []*uop.PoolOperation {
	residents := make([]*resident, 0, len(p.byHash))
	for _, r := range p.byHash {
		residents = append(residents, r)
	}
	sort.Slice(residents, func(i, j int) bool {
		pi, pj := p.priorityOf(residents[i].op), p.priorityOf(residents[j].op)
		if c := pi.Cmp(pj); c != 0 {
			return c > 0 // descending priority
		}
		return residents[i].seq < residents[j].seq // FIFO among ties
	})
	if max >= 0 && max < len(residents) {
		residents = residents[:max]
	}
	out := make([]*uop.PoolOperation, len(residents))
	for i, r := range residents {
		out[i] = r.op
	}
	return out
}

// RemoveByHash removes the resident identified by hash, returning whether it
// was present.
func (p *Pool) RemoveByHash(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.removeLocked(hash)
	if ok {
		p.metrics.size.Update(int64(len(p.byHash)))
	}
	return ok
}

// RemoveByMined removes every hash in hashes that is resident, skipping
// unknown ones, and returns the entity references of every removed
// operation so callers (the block reactor) can update reputation. Removing
// the same set twice is a no-op the second time.
func (p *Pool) RemoveByMined(hashes []common.Hash) []uop.EntityRef {
	p.mu.Lock()
	defer p.mu.Unlock()

	var refs []uop.EntityRef
	for _, h := range hashes {
		if r, ok := p.removeLocked(h); ok {
			refs = append(refs, r.op.Entities()...)
		}
	}
	p.metrics.size.Update(int64(len(p.byHash)))
	return refs
}

// Clear removes every resident operation and resets per-entity counts. It
// does not touch reputation.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byHash = make(map[common.Hash]*resident)
	p.byNonce = make(map[uop.NonceKey]common.Hash)
	p.entityCounts = make(map[entityKey]int)
	p.metrics.size.Update(0)
}

// removeLocked removes hash from all indices. Caller holds p.mu.
func (p *Pool) removeLocked(hash common.Hash) (*resident, bool) {
	r, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	delete(p.byHash, hash)
	delete(p.byNonce, r.op.NonceKey())
	for _, ref := range r.op.Entities() {
		p.decEntityLocked(ref)
	}
	return r, true
}

// insertLocked adds op to every index under a freshly allocated sequence
// number. Caller holds p.mu and has already made room / validated slots.
func (p *Pool) insertLocked(op *uop.PoolOperation) common.Hash {
	hash := op.Hash(p.entryPoint, p.chainID)
	seq := p.nextSeq
	p.nextSeq++
	r := &resident{op: op, seq: seq}
	p.byHash[hash] = r
	p.byNonce[op.NonceKey()] = hash
	for _, ref := range op.Entities() {
		p.incEntityLocked(ref)
	}
	p.metrics.size.Update(int64(len(p.byHash)))
	return hash
}

func (p *Pool) incEntityLocked(ref uop.EntityRef) {
	p.entityCounts[entityKey{ref.Kind, ref.Address}]++
}

func (p *Pool) decEntityLocked(ref uop.EntityRef) {
	k := entityKey{ref.Kind, ref.Address}
	p.entityCounts[k]--
	if p.entityCounts[k] <= 0 {
		delete(p.entityCounts, k)
	}
}

// entityCountLocked returns how many resident operations currently
// reference addr in role kind. Caller holds p.mu (read or write).
func (p *Pool) entityCountLocked(kind uop.Entity, addr common.Address) int {
	return p.entityCounts[entityKey{kind, addr}]
}

// byNonceLocked looks up the resident occupying (sender, nonce), if any.
func (p *Pool) byNonceLocked(key uop.NonceKey) (*resident, bool) {
	hash, ok := p.byNonce[key]
	if !ok {
		return nil, false
	}
	r := p.byHash[hash]
	return r, r != nil
}

// minPriorityLocked returns the lowest effective priority fee among
// residents and the hash of the (a) resident holding it, or ok=false if the
// pool is empty. Among multiple residents tied at the minimum, the most
// recently inserted is chosen so that, all else equal, eviction favors
// keeping the oldest surviving operations.
func (p *Pool) minPriorityLocked() (hash common.Hash, priority *big.Int, ok bool) {
	var (
		minPrio *big.Int
		minHash common.Hash
		minSeq  uint64
		found   bool
	)
	for h, r := range p.byHash {
		prio := p.priorityOf(r.op)
		switch {
		case !found:
			minPrio, minHash, minSeq, found = prio, h, r.seq, true
		case prio.Cmp(minPrio) < 0:
			minPrio, minHash, minSeq = prio, h, r.seq
		case prio.Cmp(minPrio) == 0 && r.seq > minSeq:
			minHash, minSeq = h, r.seq
		}
	}
	return minHash, minPrio, found
}
