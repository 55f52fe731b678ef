// Package service implements the external request surface: the abstract
// operations a transport-specific handler (JSON-RPC, gRPC, or otherwise)
// delegates to once it has decoded a wire message. Every method here takes
// and validates raw byte slices for addresses and hashes, since that is the
// shape a decoded wire message actually has.
package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/luxfi/bundler/mempool"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/router"
	"github.com/luxfi/bundler/uop"
)

// Service wires the router and the shared reputation tracker behind the
// operations a transport handler calls.
type Service struct {
	router  *router.Router
	tracker *reputation.Tracker
	chainID uint64
	log     log.Logger
}

// New constructs a Service dispatching through r and reading/writing
// reputation through tracker.
func New(r *router.Router, tracker *reputation.Tracker, chainID uint64) *Service {
	return &Service{router: r, tracker: tracker, chainID: chainID, log: log.New("component", "service")}
}

// GetSupportedEntryPoints returns the configured chain id and every entry
// point this service routes to.
func (s *Service) GetSupportedEntryPoints() (uint64, []common.Address) {
	return s.chainID, s.router.SupportedEntryPoints()
}

func decodeAddress(raw []byte, field string) (common.Address, *mempool.RejectError) {
	if len(raw) != common.AddressLength {
		return common.Address{}, mempool.NewInvalidArgument(
			fmt.Sprintf("%s must be %d bytes, got %d", field, common.AddressLength, len(raw)))
	}
	return common.BytesToAddress(raw), nil
}

func decodeHash(raw []byte, field string) (common.Hash, *mempool.RejectError) {
	if len(raw) != common.HashLength {
		return common.Hash{}, mempool.NewInvalidArgument(
			fmt.Sprintf("%s must be %d bytes, got %d", field, common.HashLength, len(raw)))
	}
	return common.BytesToHash(raw), nil
}

func (s *Service) resolvePool(entryPointBytes []byte) (*mempool.Pool, *mempool.RejectError) {
	ep, err := decodeAddress(entryPointBytes, "entry_point")
	if err != nil {
		return nil, err
	}
	pool, ok := s.router.Lookup(ep)
	if !ok {
		return nil, mempool.NewUnsupportedEntryPoint(ep)
	}
	return pool, nil
}

// AddOp validates entryPointBytes, then runs op through admission with
// Local origin, returning its canonical hash on success.
func (s *Service) AddOp(entryPointBytes []byte, op *uop.PoolOperation) (common.Hash, error) {
	pool, err := s.resolvePool(entryPointBytes)
	if err != nil {
		return common.Hash{}, err
	}
	hash, admitErr := pool.Admit(mempool.OriginLocal, s.tracker, op)
	if admitErr != nil {
		return common.Hash{}, admitErr
	}
	return hash, nil
}

// GetOps returns up to max resident operations for entryPointBytes in
// descending priority order.
func (s *Service) GetOps(entryPointBytes []byte, max int) ([]*uop.PoolOperation, error) {
	pool, err := s.resolvePool(entryPointBytes)
	if err != nil {
		return nil, err
	}
	return pool.Best(max), nil
}

// RemoveOps removes every hash in hashesBytes from entryPointBytes's pool.
// Each hash must decode to exactly 32 bytes; unknown hashes are ignored,
// matching the pool's own remove-by-hash semantics.
func (s *Service) RemoveOps(entryPointBytes []byte, hashesBytes [][]byte) error {
	pool, err := s.resolvePool(entryPointBytes)
	if err != nil {
		return err
	}
	hashes := make([]common.Hash, 0, len(hashesBytes))
	for _, raw := range hashesBytes {
		h, err := decodeHash(raw, "hash")
		if err != nil {
			return err
		}
		hashes = append(hashes, h)
	}
	for _, h := range hashes {
		pool.RemoveByHash(h)
	}
	return nil
}

// DebugClearState clears every pool this service routes to. Reputation is
// untouched.
func (s *Service) DebugClearState() {
	for _, pool := range s.router.Pools() {
		pool.Clear()
	}
}

// DebugDumpMempool returns every resident operation for entryPointBytes.
func (s *Service) DebugDumpMempool(entryPointBytes []byte) ([]*uop.PoolOperation, error) {
	pool, err := s.resolvePool(entryPointBytes)
	if err != nil {
		return nil, err
	}
	return pool.All(-1), nil
}

// ReputationOverride is one (address, ops_seen, ops_included) triple from a
// DebugSetReputation request.
type ReputationOverride struct {
	Address     []byte
	OpsSeen     uint64
	OpsIncluded uint64
}

// DebugSetReputation applies overrides to the shared reputation table.
// entryPointBytes is validated for routing consistency even though the
// table itself is shared across every entry point. overrides must be
// non-empty.
func (s *Service) DebugSetReputation(entryPointBytes []byte, overrides []ReputationOverride) error {
	if _, err := s.resolvePool(entryPointBytes); err != nil {
		return err
	}
	if len(overrides) == 0 {
		return mempool.NewInvalidArgument("overrides must be non-empty")
	}
	for _, o := range overrides {
		addr, err := decodeAddress(o.Address, "address")
		if err != nil {
			return err
		}
		s.tracker.SetOverride(addr, o.OpsSeen, o.OpsIncluded)
	}
	return nil
}

// ReputationDump pairs an address with its current (post-decay)
// classification-relevant entry.
type ReputationDump struct {
	Address common.Address
	Entry   reputation.Entry
}

// DebugDumpReputation returns the current entry for every address the
// tracker has seen. entryPointBytes is validated the same way as
// DebugSetReputation.
func (s *Service) DebugDumpReputation(entryPointBytes []byte) ([]ReputationDump, error) {
	if _, err := s.resolvePool(entryPointBytes); err != nil {
		return nil, err
	}
	addrs := s.tracker.Addresses()
	out := make([]ReputationDump, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, ReputationDump{Address: a, Entry: s.tracker.Get(a)})
	}
	return out, nil
}
