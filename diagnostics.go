// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import (
	"github.com/ohler55/ojg/oj"
)

// Stats is a point-in-time snapshot of process-wide accounting,
// surfaced to the corevmctl CLI and to tests asserting P5/P6.
type Stats struct {
	HeapBytes      uint64 `json:"heap_bytes"`
	StubsLive      int    `json:"stubs_live"`
	PairingsLive   int    `json:"pairings_live"`
	ManualsPending int    `json:"manuals_pending"`
	DataStackTop   int    `json:"data_stack_top"`
	LifeguardDepth int    `json:"lifeguard_depth"`
	Depletion      uint64 `json:"depletion"`
}

// Snapshot reports the current Stats.
func (rt *Runtime) Snapshot() Stats {
	return Stats{
		HeapBytes:      rt.heap.Bytes(),
		StubsLive:      rt.stubPool.liveCount(),
		PairingsLive:   rt.pairingPool.liveCount(),
		ManualsPending: len(rt.manuals),
		DataStackTop:   rt.Stack.Top(),
		LifeguardDepth: rt.Guard.Len(),
		Depletion:      rt.collector.depletion,
	}
}

// MarshalJSON renders Stats with sorted keys and two-space indent, the
// format corevmctl prints to stdout.
func (s Stats) MarshalJSON() ([]byte, error) {
	return oj.Marshal(map[string]any{
		"heap_bytes":      s.HeapBytes,
		"stubs_live":      s.StubsLive,
		"pairings_live":   s.PairingsLive,
		"manuals_pending": s.ManualsPending,
		"data_stack_top":  s.DataStackTop,
		"lifeguard_depth": s.LifeguardDepth,
		"depletion":       s.Depletion,
	}, &oj.Options{Sort: true, Indent: 2})
}

// Sweeplist runs RecycleCore in sweeplist mode, returning the stubs
// that would be swept without freeing them (spec.md §4.8: "used by
// diagnostics"), encoded as their flavor names and allocation ticks.
func (rt *Runtime) Sweeplist() ([]map[string]any, error) {
	var swept []*Stub
	if _, err := rt.RecycleCore(&swept); err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(swept))
	for i, s := range swept {
		out[i] = map[string]any{
			"flavor": flavorName(s.Flavor),
			"tick":   s.allocTick,
		}
	}
	return out, nil
}

func flavorName(f Flavor) string {
	names := [flavorCount]string{
		FlavorArray: "array", FlavorVarlist: "varlist", FlavorKeylist: "keylist",
		FlavorSource: "source", FlavorBinary: "binary", FlavorString: "string",
		FlavorSymbol: "symbol", FlavorHandle: "handle", FlavorPatch: "patch",
	}
	if int(f) >= len(names) {
		return "unknown"
	}
	return names[f]
}
