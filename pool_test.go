// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "testing"

func TestStubPool_GrowAndRecycle(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newStubPool(heap, false, 4)

	var stubs []*Stub
	for i := 0; i < 10; i++ {
		s, err := pool.allocate(uint64(i))
		if err != nil {
			t.Fatalf("allocate() failed at %d: %v", i, err)
		}
		stubs = append(stubs, s)
	}
	if pool.liveCount() != 10 {
		t.Fatalf("liveCount() = %d, want 10", pool.liveCount())
	}
	if len(pool.segments) != 3 {
		t.Fatalf("expected 3 segments of 4 units for 10 allocations, got %d", len(pool.segments))
	}

	for _, s := range stubs {
		pool.release(s)
	}
	if pool.liveCount() != 0 {
		t.Fatalf("liveCount() = %d after releasing all, want 0", pool.liveCount())
	}

	// Released units must be reusable without growing further.
	segsBefore := len(pool.segments)
	if _, err := pool.allocate(99); err != nil {
		t.Fatalf("allocate() after release failed: %v", err)
	}
	if len(pool.segments) != segsBefore {
		t.Fatal("allocate() after a full release must not grow a new segment")
	}
}

func TestStubPool_ForEachUnitVisitsFreeAndLive(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newStubPool(heap, false, 4)

	s1, _ := pool.allocate(1)
	_, _ = pool.allocate(2)
	pool.release(s1)

	var live, free int
	pool.forEachUnit(func(s *Stub) {
		switch s.state {
		case stateLive:
			live++
		case stateFree:
			free++
		}
	})
	if live != 1 || free != 3 {
		t.Fatalf("forEachUnit saw live=%d free=%d, want live=1 free=3", live, free)
	}
}

func TestStubPool_SegmentBytesTracksHeapAccounting(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newStubPool(heap, false, 8)
	if _, err := pool.allocate(1); err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	if got := pool.segmentBytes(); uint64(got) != heap.Bytes() {
		t.Fatalf("segmentBytes() = %d, heap.Bytes() = %d, want equal", got, heap.Bytes())
	}
}

func TestStubPool_OutOfMemoryOnGrow(t *testing.T) {
	heap := NewHeap(1, false) // quota too small for even one segment
	pool := newStubPool(heap, false, 4)
	if _, err := pool.allocate(1); err != ErrOutOfMemory {
		t.Fatalf("allocate() = %v, want ErrOutOfMemory", err)
	}
}

func TestPairingPool_GrowAndRecycle(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newPairingPool(heap, false, 4)

	var prs []*Pairing
	for i := 0; i < 9; i++ {
		p, err := pool.allocate()
		if err != nil {
			t.Fatalf("allocate() failed at %d: %v", i, err)
		}
		prs = append(prs, p)
	}
	if pool.liveCount() != 9 {
		t.Fatalf("liveCount() = %d, want 9", pool.liveCount())
	}
	for _, p := range prs {
		pool.release(p)
	}
	if pool.liveCount() != 0 {
		t.Fatal("liveCount() should be 0 after releasing every pairing")
	}
}

func TestPairingPool_ReleaseClearsContentWhenChecked(t *testing.T) {
	heap := NewHeap(0, true)
	pool := newPairingPool(heap, true, 4)

	p, err := pool.allocate()
	if err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	p.Cells[0] = CellFromInt(42)
	pool.release(p)
	if p.Cells[0] != (Cell{}) {
		t.Fatal("checked-build release must clear Cells")
	}
}

func TestAlwaysMallocForcesSingleUnitSegments(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newStubPool(heap, false, 1)
	if _, err := pool.allocate(1); err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	if len(pool.segments) != 1 || len(pool.segments[0]) != 1 {
		t.Fatalf("segmentUnits=1 must produce one-unit segments, got %v", pool.segments)
	}
}
