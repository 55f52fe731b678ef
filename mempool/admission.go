package mempool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/uop"
)

// Admit runs the full admission pipeline against op and, on success,
// inserts it and returns its hash. The entire pipeline from the replacement
// check onward runs under the pool's single write lock so partial states
// are never observable to concurrent readers.
//
// tracker is the process-wide reputation table, locked independently of
// any pool; Admit never holds tracker's lock while trying to acquire
// another pool's lock, since it only ever touches its own pool's lock.
func (p *Pool) Admit(origin Origin, tracker *reputation.Tracker, op *uop.PoolOperation) (common.Hash, error) {
	if op.EntryPoint != p.entryPoint {
		return common.Hash{}, errUnsupportedEntryPoint(op.EntryPoint)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	allEntities := op.Entities()

	if err := p.checkReputationLocked(tracker, op); err != nil {
		p.bumpSeenLocked(tracker, allEntities)
		p.metrics.recordReject(err.Reason)
		return common.Hash{}, err
	}

	for _, ref := range allEntities {
		if op.NeedsStake(ref.Kind) && !op.AccountIsStaked {
			p.bumpSeenLocked(tracker, allEntities)
			rejErr := errEntityRequiresStake(ref.Kind, ref.Address)
			p.metrics.recordReject(rejErr.Reason)
			return common.Hash{}, rejErr
		}
	}

	nonceKey := op.NonceKey()
	incumbent, hasIncumbent := p.byNonceLocked(nonceKey)
	if hasIncumbent {
		if !uop.ReplacementAllowed(&incumbent.op.UserOperation, &op.UserOperation, p.cfg.ReplacementBumpPercent) {
			p.bumpSeenLocked(tracker, allEntities)
			rejErr := errReplacementUnderpriced()
			p.metrics.recordReject(rejErr.Reason)
			return common.Hash{}, rejErr
		}
	}

	if !hasIncumbent && len(p.byHash) >= p.cfg.MaxSize {
		evictHash, evictPriority, ok := p.minPriorityLocked()
		if !ok {
			p.bumpSeenLocked(tracker, allEntities)
			rejErr := errInternal("capacity check found no eviction candidate in a full pool")
			log.Error("mempool admission invariant violation", "reason", rejErr.detail)
			p.metrics.recordReject(rejErr.Reason)
			return common.Hash{}, rejErr
		}
		if p.priorityOf(op).Cmp(evictPriority) <= 0 {
			p.bumpSeenLocked(tracker, allEntities)
			rejErr := errDiscardedOnInsert()
			p.metrics.recordReject(rejErr.Reason)
			return common.Hash{}, rejErr
		}
		p.removeLocked(evictHash)
		p.metrics.evictions.Inc(1)
	}

	if hasIncumbent {
		p.removeLocked(incumbent.op.Hash(p.entryPoint, p.chainID))
		p.metrics.replacements.Inc(1)
	}

	p.bumpSeenLocked(tracker, allEntities)

	hash := p.insertLocked(op)
	p.metrics.admitted.Inc(1)
	return hash, nil
}

// checkReputationLocked gates admission on reputation: paymaster, factory,
// and aggregator (when present) are always checked; the sender is checked
// only when it needs a stake and isn't staked.
func (p *Pool) checkReputationLocked(tracker *reputation.Tracker, op *uop.PoolOperation) *RejectError {
	for _, ref := range op.Entities() {
		if ref.Kind == uop.EntityAccount && !(op.NeedsStake(uop.EntityAccount) && !op.AccountIsStaked) {
			continue
		}
		switch tracker.Status(ref.Address, p.cfg.Thresholds) {
		case reputation.StatusBanned:
			return errEntityThrottled(ref.Kind, ref.Address)
		case reputation.StatusThrottled:
			if p.entityCountLocked(ref.Kind, ref.Address) > 0 {
				return errEntityThrottled(ref.Kind, ref.Address)
			}
		}
	}
	return nil
}

// bumpSeenLocked increments ops_seen for every entity referenced by op —
// sender always, plus any present paymaster/factory/aggregator — once per
// admission attempt regardless of the attempt's eventual outcome. This runs
// whenever the write critical section was entered, which is always true
// here since Admit only calls this while already holding p.mu.
func (p *Pool) bumpSeenLocked(tracker *reputation.Tracker, entities []uop.EntityRef) {
	for _, ref := range entities {
		tracker.IncSeen(ref.Address)
	}
}
