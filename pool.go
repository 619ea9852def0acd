// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "unsafe"

// stubPool and pairingPool are the segmented fixed-width free-list
// allocators of spec.md §4.2 for the two-cell-wide unit types. Design
// notes §9 favors distinguishing types statically wherever possible,
// so these are two small, nearly-identical pools rather than one
// unsafe byte-union pool keyed by a runtime tag — the duplication is
// deliberate (see DESIGN.md).
//
// Grounded on _examples/cznic-exp/lldb/falloc.go's segment-growth
// shape (a slab is allocated, chopped into fixed units, and the units
// are threaded onto a free list) combined with spec.md §4.2's
// unit_width/units_per_segment pairing.

const stubSegmentUnits = 512
const pairingSegmentUnits = 512

// stubPool hands out *Stub values from growable segments, backed by a
// Heap for byte accounting (spec.md §8 P5: every stub allocation,
// direct or pooled, is reflected in the same process-wide counter).
type stubPool struct {
	_ noCopy

	heap    *Heap
	checked bool

	// segmentUnits is normally stubSegmentUnits scaled by Startup's
	// pool_scale; ALWAYS_MALLOC forces it to 1, routing every stub
	// through its own heap allocation (spec.md §6).
	segmentUnits int

	free     *Stub
	segments [][]Stub
	live     int
}

func newStubPool(heap *Heap, checked bool, segmentUnits int) *stubPool {
	if segmentUnits < 1 {
		segmentUnits = 1
	}
	return &stubPool{heap: heap, checked: checked, segmentUnits: segmentUnits}
}

func (p *stubPool) grow() error {
	bytes := p.segmentUnits * int(unsafe.Sizeof(Stub{}))
	if err := p.heap.account(bytes); err != nil {
		return err
	}
	seg := make([]Stub, p.segmentUnits)
	p.segments = append(p.segments, seg)
	for i := range seg {
		seg[i].state = stateFree
		seg[i].next = p.free
		p.free = &seg[i]
	}
	return nil
}

// allocate returns a fresh stub in the live state, stamped with tick
// for leak reporting (spec.md §5: "report the oldest live allocation
// by tick").
func (p *stubPool) allocate(tick uint64) (*Stub, error) {
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	s := p.free
	p.free = s.next
	s.next = nil
	s.state = stateLive
	s.flags = 0
	s.allocTick = tick
	p.live++
	return s, nil
}

// release returns s to the free list. Call only after s has been
// diminished; release itself does not run cleanup.
func (p *stubPool) release(s *Stub) {
	if p.checked {
		s.Content = Cell{}
		s.Link = nil
		s.Misc = slotValue{}
		s.Info = slotValue{}
	}
	s.state = stateFree
	s.next = p.free
	p.free = s
	p.live--
}

func (p *stubPool) liveCount() int { return p.live }

// forEachUnit visits every unit across every segment, in allocation
// order, regardless of state — the segment-scan sweep relies on being
// able to distinguish free from in-use units by inspecting each one
// directly (spec.md §4.2: "the fact that in-use and free units are
// distinguishable by a single byte is the invariant that enables
// segment scanning").
func (p *stubPool) forEachUnit(fn func(*Stub)) {
	for _, seg := range p.segments {
		for i := range seg {
			fn(&seg[i])
		}
	}
}

// segmentBytes reports the total bytes currently charged against the
// heap for this pool's segments, for diagnostics.
func (p *stubPool) segmentBytes() int {
	return len(p.segments) * p.segmentUnits * int(unsafe.Sizeof(Stub{}))
}

// pairingPool mirrors stubPool for *Pairing (spec.md §4.2: "pairings
// share the stub pool" when a pair of cells fits the stub's width,
// which it always does here — see Pairing's doc comment — but corevm
// keeps the free lists themselves separate per design notes §9).
type pairingPool struct {
	_ noCopy

	heap    *Heap
	checked bool

	segmentUnits int

	free     *Pairing
	segments [][]Pairing
	live     int
}

func newPairingPool(heap *Heap, checked bool, segmentUnits int) *pairingPool {
	if segmentUnits < 1 {
		segmentUnits = 1
	}
	return &pairingPool{heap: heap, checked: checked, segmentUnits: segmentUnits}
}

func (p *pairingPool) grow() error {
	bytes := p.segmentUnits * int(unsafe.Sizeof(Pairing{}))
	if err := p.heap.account(bytes); err != nil {
		return err
	}
	seg := make([]Pairing, p.segmentUnits)
	p.segments = append(p.segments, seg)
	for i := range seg {
		seg[i].state = stateFree
		seg[i].next = p.free
		p.free = &seg[i]
	}
	return nil
}

func (p *pairingPool) allocate() (*Pairing, error) {
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	pr := p.free
	p.free = pr.next
	pr.next = nil
	pr.state = stateLive
	pr.flags = 0
	p.live++
	return pr, nil
}

func (p *pairingPool) release(pr *Pairing) {
	if p.checked {
		pr.Cells = [2]Cell{}
	}
	pr.state = stateFree
	pr.next = p.free
	p.free = pr
	p.live--
}

func (p *pairingPool) liveCount() int { return p.live }

// segmentBytes reports the total bytes currently charged against the
// heap for this pool's segments, for diagnostics and shutdown teardown.
func (p *pairingPool) segmentBytes() int {
	return len(p.segments) * p.segmentUnits * int(unsafe.Sizeof(Pairing{}))
}

// forEachUnit visits every pairing unit across every segment,
// regardless of state, mirroring stubPool.forEachUnit.
func (p *pairingPool) forEachUnit(fn func(*Pairing)) {
	for _, seg := range p.segments {
		for i := range seg {
			fn(&seg[i])
		}
	}
}
