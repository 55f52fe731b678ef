package mempool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
)

// poolMetrics mirrors core/txpool's per-reason gauge/counter naming
// convention (e.g. "txpool/reservations") scoped to one entry point.
type poolMetrics struct {
	size       metrics.Gauge
	admitted   metrics.Counter
	rejected   map[Reason]metrics.Counter
	evictions  metrics.Counter
	replacements metrics.Counter
}

func newPoolMetrics(entryPoint common.Address) *poolMetrics {
	prefix := fmt.Sprintf("mempool/%s", entryPoint.Hex())
	pm := &poolMetrics{
		size:         metrics.GetOrRegisterGauge(prefix+"/size", nil),
		admitted:     metrics.GetOrRegisterCounter(prefix+"/admitted", nil),
		evictions:    metrics.GetOrRegisterCounter(prefix+"/evictions", nil),
		replacements: metrics.GetOrRegisterCounter(prefix+"/replacements", nil),
		rejected:     make(map[Reason]metrics.Counter),
	}
	for _, r := range []Reason{
		ReasonUnsupportedEntryPoint, ReasonInvalidArgument, ReasonEntityThrottled,
		ReasonReplacementUnderpriced, ReasonMempoolFull, ReasonDiscardedOnInsert,
		ReasonEntityRequiresStake, ReasonInternal,
	} {
		pm.rejected[r] = metrics.GetOrRegisterCounter(fmt.Sprintf("%s/rejected/%s", prefix, r), nil)
	}
	return pm
}

func (pm *poolMetrics) recordReject(r Reason) {
	if c, ok := pm.rejected[r]; ok {
		c.Inc(1)
	}
}
