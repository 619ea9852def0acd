// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm_test

import (
	"testing"

	"code.hybscloud.com/corevm"
)

// linkArray builds a managed array stub whose dynamic buffer holds two
// cells, wiring the first cell's One.Ref to target so the collector
// traces an edge between the two (spec.md §4.8 marking protocol).
func linkArray(t *testing.T, rt *corevm.Runtime, target *corevm.Stub) *corevm.Stub {
	t.Helper()
	s, err := rt.AllocStub(corevm.FlavorArray)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	rt.Manage(s)
	buf, err := rt.AllocDynBuffer(corevm.BufferSizeNano)
	if err != nil {
		t.Fatalf("AllocDynBuffer() failed: %v", err)
	}
	s.Dynamic = true
	s.Buffer = buf
	cells := buf.CellSlice()
	if target != nil {
		cells[0] = corevm.CellFromStub(target)
	}
	return s
}

// TestRecycle_ReachabilityKeepsRootedChain covers P1: a stub reachable
// from a root survives collection.
func TestRecycle_ReachabilityKeepsRootedChain(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	leaf := linkArray(t, rt, nil)
	root := linkArray(t, rt, leaf)
	if err := rt.Guard.PushStub(root); err != nil {
		t.Fatalf("PushStub() failed: %v", err)
	}
	defer rt.Guard.DropStub(root)

	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if !root.Live() || !leaf.Live() {
		t.Fatal("both root and its reachable leaf must survive collection")
	}
}

// TestRecycle_UnreachableStubIsSwept covers P2: an unreachable managed
// stub is reclaimed and its flag byte reads as the free sentinel.
func TestRecycle_UnreachableStubIsSwept(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s := linkArray(t, rt, nil)
	swept, err := rt.Recycle()
	if err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if swept < 1 {
		t.Fatal("expected at least the unreachable stub to be swept")
	}
	if s.FlagByte() != 0x00 {
		t.Fatalf("FlagByte() = %#x after sweep, want the free sentinel 0x00", s.FlagByte())
	}
}

// TestRecycle_CyclicStructureIsCollected is the cycle-collection
// end-to-end scenario: two stubs referencing each other, with no
// external root, must both be reclaimed (non-recursive mark/sweep
// tolerates cycles by construction; reference counting would not).
func TestRecycle_CyclicStructureIsCollected(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	a := linkArray(t, rt, nil)
	b := linkArray(t, rt, a)
	// Close the cycle: a's buffer cell now points back to b.
	aCells := a.Buffer.CellSlice()
	aCells[0] = corevm.CellFromStub(b)

	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if a.Live() || b.Live() {
		t.Fatal("an unrooted cycle must be fully collected")
	}
}

// TestRecycle_LifeguardProtectsCycle is the lifeguard-protects-cycle
// scenario: the same cyclic pair survives when one member is rooted.
func TestRecycle_LifeguardProtectsCycle(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	a := linkArray(t, rt, nil)
	b := linkArray(t, rt, a)
	aCells := a.Buffer.CellSlice()
	aCells[0] = corevm.CellFromStub(b)

	if err := rt.Guard.PushStub(b); err != nil {
		t.Fatalf("PushStub() failed: %v", err)
	}
	defer rt.Guard.DropStub(b)

	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if !a.Live() || !b.Live() {
		t.Fatal("rooting one member of a cycle must keep both members alive")
	}
}

// TestRuntime_DiminishUnmanagedDefersKillToRecycle exercises
// DiminishUnmanaged's half of P3: a diminished-but-not-killed stub's
// pool unit is not reclaimed until a Recycle pass processes it (see
// scenarios_internal_test.go for the full canonicalization scenario,
// which needs package-internal access to assert the canon-diminished
// rewrite directly).
func TestRuntime_DiminishUnmanagedDefersKillToRecycle(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorHandle)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	if err := rt.DiminishUnmanaged(s); err != nil {
		t.Fatalf("DiminishUnmanaged() failed: %v", err)
	}
	if !s.Diminished() {
		t.Fatal("expected s diminished immediately")
	}
	if s.FlagByte() == 0x00 {
		t.Fatal("a diminished-but-not-killed stub must not yet read as the free sentinel")
	}
	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if s.FlagByte() != 0x00 {
		t.Fatal("Recycle() must return a lingering diminished unit to the pool")
	}
}

// TestRecycle_DeepNestingWithoutStackOverflow is the
// 200,000-deep-nesting scenario: the collector's mark queue is an
// explicit Go slice, not recursion, so a long reference chain must not
// overflow the Go call stack.
func TestRecycle_DeepNestingWithoutStackOverflow(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	const depth = 200_000
	var head *corevm.Stub
	for i := 0; i < depth; i++ {
		head = linkArray(t, rt, head)
	}
	if err := rt.Guard.PushStub(head); err != nil {
		t.Fatalf("PushStub() failed: %v", err)
	}
	defer rt.Guard.DropStub(head)

	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if !head.Live() {
		t.Fatal("the whole chain is reachable from head and must survive")
	}
}

// TestRecycle_FreezeProtectsKeys is the freeze-protects-keys scenario:
// a deep freeze on a keylist stub is monotonic and visible through
// IsFrozenDeep even across a collection pass.
func TestRecycle_FreezeProtectsKeys(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	keys := linkArray(t, rt, nil)
	keys.Flavor = corevm.FlavorKeylist
	if err := rt.Guard.PushStub(keys); err != nil {
		t.Fatalf("PushStub() failed: %v", err)
	}
	defer rt.Guard.DropStub(keys)

	c := corevm.CellFromStub(keys)
	if err := corevm.Protect(rt, &c, corevm.ProtectFlags{Freeze: true, Deep: true}, "owner"); err != nil {
		t.Fatalf("Protect() failed: %v", err)
	}
	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if !keys.IsFrozenDeep() {
		t.Fatal("deep freeze must survive a collection pass")
	}
}

// TestRecycle_DoubleIsIdempotent covers P7: running Recycle twice back
// to back must not reclaim anything on the second pass.
func TestRecycle_DoubleIsIdempotent(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	_ = linkArray(t, rt, nil) // unreachable garbage for the first pass to find

	first, err := rt.RecycleDouble()
	if err != nil {
		t.Fatalf("RecycleDouble() failed: %v", err)
	}
	if first < 1 {
		t.Fatal("expected the first pass to reclaim at least the unreachable stub")
	}
}

// TestRuntime_ManualFreeOutsideGC covers P6: an explicitly
// freed-unmanaged stub never needs the collector to reclaim it, and
// leaves no trace on the manuals leak-check list.
func TestRuntime_ManualFreeOutsideGC(t *testing.T) {
	rt, err := corevm.Startup(corevm.WithChecked(true))
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorHandle)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	if err := rt.FreeUnmanaged(s); err != nil {
		t.Fatalf("FreeUnmanaged() failed: %v", err)
	}
	if s.FlagByte() != 0x00 {
		t.Fatalf("FlagByte() = %#x after FreeUnmanaged, want the free sentinel 0x00 immediately, without waiting for a collection", s.FlagByte())
	}
}

// TestRuntime_HeapByteAccounting covers P5: the heap byte counter
// returns to zero once every allocation made during the test is freed.
func TestRuntime_HeapByteAccounting(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}

	s := linkArray(t, rt, nil)
	_ = s
	if _, err := rt.Recycle(); err != nil {
		t.Fatalf("Recycle() failed: %v", err)
	}
	if err := rt.Shutdown(); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
}
