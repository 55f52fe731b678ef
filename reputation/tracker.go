// Package reputation tracks per-address behavioural counters for entities
// (accounts, paymasters, factories, aggregators) participating in the
// mempool and derives an admission classification from them.
package reputation

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Status is the derived classification of an address's reputation.
type Status uint8

const (
	StatusOK Status = iota
	StatusThrottled
	StatusBanned
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusThrottled:
		return "throttled"
	case StatusBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// Thresholds configures the classification boundary for one comparison.
type Thresholds struct {
	ThrottlingSlack int64
	BanningSlack    int64
}

// Entry is a snapshot of an address's reputation counters, after any
// pending decay has been applied.
type Entry struct {
	OpsSeen     uint64
	OpsIncluded uint64
	LastUpdate  time.Time
}

type record struct {
	opsSeen     float64
	opsIncluded float64
	lastUpdate  time.Time
	skipDecay   bool // set by SetOverride, cleared by the next Tick
}

// Tracker is the process-wide reputation table, shared across every pool so
// that throttling a paymaster observed at one entry point also throttles it
// at another, per the design's "global reputation table" decision.
type Tracker struct {
	mu         sync.Mutex
	entries    map[common.Address]*record
	clock      Clock
	decayHours float64
	log        log.Logger
}

// DefaultDecayHours matches the ~24h "simulated operation time" default.
const DefaultDecayHours = 24

// New creates a Tracker using clock as its time source and decayHours as the
// full-decay window. A non-positive decayHours falls back to the default.
func New(clock Clock, decayHours float64) *Tracker {
	if clock == nil {
		clock = SystemClock
	}
	if decayHours <= 0 {
		decayHours = DefaultDecayHours
	}
	return &Tracker{
		entries:    make(map[common.Address]*record),
		clock:      clock,
		decayHours: decayHours,
		log:        log.New("component", "reputation"),
	}
}

func (t *Tracker) recordFor(addr common.Address) *record {
	r, ok := t.entries[addr]
	if !ok {
		r = &record{lastUpdate: t.clock.Now()}
		t.entries[addr] = r
	}
	return r
}

// IncSeen increments ops_seen for addr by one. Called once per admission
// attempt referencing the address, regardless of the attempt's outcome.
func (t *Tracker) IncSeen(addr common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.recordFor(addr)
	t.decayOnRead(r)
	r.opsSeen++
}

// IncIncluded increments ops_included for addr by one. Called once per mined
// UO that referenced the address.
func (t *Tracker) IncIncluded(addr common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.recordFor(addr)
	t.decayOnRead(r)
	r.opsIncluded++
}

// Get returns addr's current reputation, applying any decay owed since its
// last update.
func (t *Tracker) Get(addr common.Address) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.recordFor(addr)
	t.decayOnRead(r)
	return Entry{
		OpsSeen:     round(r.opsSeen),
		OpsIncluded: round(r.opsIncluded),
		LastUpdate:  r.lastUpdate,
	}
}

// Status returns addr's classification under the given thresholds.
//
// diff = ops_seen - ops_included. Banned if diff > BanningSlack; Throttled
// if diff > ThrottlingSlack; OK otherwise. Comparisons are strict, so an
// exact match on a slack value classifies as the more permissive state.
func (t *Tracker) Status(addr common.Address, th Thresholds) Status {
	e := t.Get(addr)
	diff := float64(e.OpsSeen) - float64(e.OpsIncluded)
	switch {
	case diff > float64(th.BanningSlack):
		return StatusBanned
	case diff > float64(th.ThrottlingSlack):
		return StatusThrottled
	default:
		return StatusOK
	}
}

// SetOverride directly sets addr's counters, bypassing the on-read decay
// calculation until the next periodic Tick.
func (t *Tracker) SetOverride(addr common.Address, seen, included uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.recordFor(addr)
	r.opsSeen = float64(seen)
	r.opsIncluded = float64(included)
	r.lastUpdate = t.clock.Now()
	r.skipDecay = true
	t.log.Debug("reputation override applied", "address", addr, "opsSeen", seen, "opsIncluded", included)
}

// Tick applies decay to every tracked address unconditionally, including
// those whose on-read decay was suspended by a recent SetOverride, and then
// re-arms on-read decay for them. Intended to be called roughly once per
// decayHours of simulated operation time.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	for _, r := range t.entries {
		t.decay(r, now)
		r.skipDecay = false
	}
}

// decayOnRead applies decay unless the record was just overridden.
func (t *Tracker) decayOnRead(r *record) {
	if r.skipDecay {
		return
	}
	t.decay(r, t.clock.Now())
}

// decay multiplies both counters by (1 - hoursSinceLastUpdate/decayHours),
// clamped to >= 0, and advances lastUpdate to now.
func (t *Tracker) decay(r *record, now time.Time) {
	hours := now.Sub(r.lastUpdate).Hours()
	if hours <= 0 {
		return
	}
	factor := 1 - hours/t.decayHours
	if factor < 0 {
		factor = 0
	}
	r.opsSeen *= factor
	r.opsIncluded *= factor
	r.lastUpdate = now
}

func round(f float64) uint64 {
	if f < 0 {
		return 0
	}
	return uint64(f + 0.5)
}

// Addresses returns every address the tracker currently has an entry for,
// for debug dumps. Order is unspecified.
func (t *Tracker) Addresses() []common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	addrs := make([]common.Address, 0, len(t.entries))
	for a := range t.entries {
		addrs = append(addrs, a)
	}
	return addrs
}
