// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "testing"

func TestLevelPool_AllocateZeroesOnReuse(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newLevelPool(heap)

	l, err := pool.allocate()
	if err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	l.Output = CellFromInt(7)
	l.Fulfilled = 2
	pool.release(l)

	l2, err := pool.allocate()
	if err != nil {
		t.Fatalf("allocate() after release failed: %v", err)
	}
	if l2.Output != (Cell{}) || l2.Fulfilled != 0 {
		t.Fatal("reused level must come back zeroed")
	}
}

func TestLevelPool_ForEachAllocatedSkipsFree(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newLevelPool(heap)

	l1, _ := pool.allocate()
	_, _ = pool.allocate()
	pool.release(l1)

	var seen int
	pool.forEachAllocated(func(l *Level) { seen++ })
	if seen != 1 {
		t.Fatalf("forEachAllocated visited %d levels, want 1", seen)
	}
}

func TestFeedPool_AllocateAndRelease(t *testing.T) {
	heap := NewHeap(0, false)
	pool := newFeedPool(heap)

	f, err := pool.allocate()
	if err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	f.Current = CellFromInt(1)
	pool.release(f)
	if pool.live != 0 {
		t.Fatalf("pool.live = %d after release, want 0", pool.live)
	}
}
