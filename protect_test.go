// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm_test

import (
	"testing"

	"code.hybscloud.com/corevm"
)

func newManagedArray(t *testing.T, rt *corevm.Runtime) *corevm.Stub {
	t.Helper()
	s, err := rt.AllocStub(corevm.FlavorArray)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	rt.Manage(s)
	return s
}

func TestProtect_ShallowTogglable(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s := newManagedArray(t, rt)
	rt.Guard.PushStub(s)
	defer rt.Guard.DropStub(s)

	c := corevm.CellFromStub(s)
	if err := corevm.Protect(rt, &c, corevm.ProtectFlags{Values: true, Set: true}, ""); err != nil {
		t.Fatalf("Protect() failed: %v", err)
	}
	if err := corevm.Unprotect(rt, &c, corevm.ProtectFlags{Values: true}); err != nil {
		t.Fatalf("Unprotect() failed: %v", err)
	}
}

// TestProtect_FreezeIsMonotonic exercises P8: once a stub is frozen
// deep, Unprotect must never clear it, even if asked to.
func TestProtect_FreezeIsMonotonic(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s := newManagedArray(t, rt)
	rt.Guard.PushStub(s)
	defer rt.Guard.DropStub(s)

	c := corevm.CellFromStub(s)
	if err := corevm.Protect(rt, &c, corevm.ProtectFlags{Freeze: true, Deep: true}, "locker"); err != nil {
		t.Fatalf("Protect(freeze) failed: %v", err)
	}
	if !s.IsFrozenDeep() {
		t.Fatal("expected IsFrozenDeep() after a deep freeze")
	}

	if err := corevm.Unprotect(rt, &c, corevm.ProtectFlags{Freeze: true, Deep: true}); err != nil {
		t.Fatalf("Unprotect() failed: %v", err)
	}
	if !s.IsFrozenDeep() {
		t.Fatal("freeze must be monotonic: Unprotect must not clear it")
	}
}

// TestProtect_DeepHandlesCycles verifies that a deep protect over a
// self-referential structure terminates rather than recursing forever,
// and leaves the cyclic stub frozen deep.
func TestProtect_DeepHandlesCycles(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s := newManagedArray(t, rt)
	rt.Guard.PushStub(s)
	defer rt.Guard.DropStub(s)

	buf, err := rt.AllocDynBuffer(corevm.BufferSizeNano)
	if err != nil {
		t.Fatalf("AllocDynBuffer() failed: %v", err)
	}
	s.Dynamic = true
	s.Buffer = buf
	cells := buf.CellSlice()
	if len(cells) == 0 {
		t.Fatal("expected at least one cell in the buffer")
	}
	cells[0] = corevm.CellFromStub(s) // self-reference: a cycle

	c := corevm.CellFromStub(s)
	if err := corevm.Protect(rt, &c, corevm.ProtectFlags{Deep: true, Freeze: true}, ""); err != nil {
		t.Fatalf("Protect(deep) over a cycle failed: %v", err)
	}
	if !s.IsFrozenDeep() {
		t.Fatal("expected the cyclic stub itself to end up frozen deep")
	}
}

func TestProtect_NoopOnScalarCell(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	c := corevm.CellFromInt(5)
	if err := corevm.Protect(rt, &c, corevm.ProtectFlags{Freeze: true}, ""); err != nil {
		t.Fatalf("Protect() on a scalar cell failed: %v", err)
	}
	if c.One.Bits != 5 {
		t.Fatal("Protect() on a scalar cell must not alter its value")
	}
}
