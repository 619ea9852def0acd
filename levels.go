// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "unsafe"

// Feed is a pooled record tracking an evaluator's position within a
// source array (spec.md §4.2: "two more pools hold call-level and
// feed records... the collector must walk the former"). corevm does
// not implement an evaluator, but the collector's root-enumeration
// contract (spec.md §4.8 step 6) requires feed/level records to exist
// and to be collector-traceable, so they are modeled here as minimal
// structs exposing only the cells and references a real evaluator
// would need traced.
type Feed struct {
	_ noCopy

	Source  *Stub // backing source array stub
	Current Cell  // the cell currently being fetched

	inUse bool
	next  *Feed
}

// Level is a pooled call-level record (spec.md §4.2/§4.8 step 6):
// its Feed, Binding, Output, Scratch, and Spare cells/refs, plus
// argument slots whose fulfillment progress the collector must
// respect ("not-yet-initialized argument cells are not touched").
type Level struct {
	_ noCopy

	Feed    *Feed
	Binding *Stub
	Output  Cell
	Scratch Cell
	Spare   Cell

	Args      []Cell
	Fulfilled int // Args[:Fulfilled] are initialized and traceable

	inUse bool
	next  *Level
}

const levelSegmentUnits = 64
const feedSegmentUnits = 64

// levelPool and feedPool are segmented pools in the shape of stubPool
// (spec.md §4.2), duplicated rather than shared for the same
// static-typing reason documented on stubPool/pairingPool.
type levelPool struct {
	_ noCopy

	heap     *Heap
	free     *Level
	segments [][]Level
	live     int
}

func newLevelPool(heap *Heap) *levelPool { return &levelPool{heap: heap} }

func (p *levelPool) grow() error {
	bytes := levelSegmentUnits * int(unsafe.Sizeof(Level{}))
	if err := p.heap.account(bytes); err != nil {
		return err
	}
	seg := make([]Level, levelSegmentUnits)
	p.segments = append(p.segments, seg)
	for i := range seg {
		seg[i].next = p.free
		p.free = &seg[i]
	}
	return nil
}

func (p *levelPool) allocate() (*Level, error) {
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	l := p.free
	p.free = l.next
	*l = Level{inUse: true}
	p.live++
	return l, nil
}

func (p *levelPool) release(l *Level) {
	*l = Level{next: p.free}
	p.free = l
	p.live--
}

// forEachAllocated invokes fn for every in-use level across every
// segment, in allocation order (spec.md §4.8 step 6).
func (p *levelPool) forEachAllocated(fn func(*Level)) {
	for _, seg := range p.segments {
		for i := range seg {
			if seg[i].inUse {
				fn(&seg[i])
			}
		}
	}
}

// segmentBytes reports the total bytes charged against the heap for
// this pool's segments, for Shutdown's teardown accounting.
func (p *levelPool) segmentBytes() int {
	return len(p.segments) * levelSegmentUnits * int(unsafe.Sizeof(Level{}))
}

type feedPool struct {
	_ noCopy

	heap     *Heap
	free     *Feed
	segments [][]Feed
	live     int
}

func newFeedPool(heap *Heap) *feedPool { return &feedPool{heap: heap} }

func (p *feedPool) grow() error {
	bytes := feedSegmentUnits * int(unsafe.Sizeof(Feed{}))
	if err := p.heap.account(bytes); err != nil {
		return err
	}
	seg := make([]Feed, feedSegmentUnits)
	p.segments = append(p.segments, seg)
	for i := range seg {
		seg[i].next = p.free
		p.free = &seg[i]
	}
	return nil
}

func (p *feedPool) allocate() (*Feed, error) {
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	f := p.free
	p.free = f.next
	*f = Feed{inUse: true}
	p.live++
	return f, nil
}

func (p *feedPool) release(f *Feed) {
	*f = Feed{next: p.free}
	p.free = f
	p.live--
}

func (p *feedPool) forEachAllocated(fn func(*Feed)) {
	for _, seg := range p.segments {
		for i := range seg {
			if seg[i].inUse {
				fn(&seg[i])
			}
		}
	}
}

// segmentBytes reports the total bytes charged against the heap for
// this pool's segments, for Shutdown's teardown accounting.
func (p *feedPool) segmentBytes() int {
	return len(p.segments) * feedSegmentUnits * int(unsafe.Sizeof(Feed{}))
}
