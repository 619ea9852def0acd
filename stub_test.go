// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm_test

import (
	"testing"

	"code.hybscloud.com/corevm"
)

func TestStub_AllocIsLiveUnmanaged(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorString)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	if !s.Live() {
		t.Fatal("freshly allocated stub must be live")
	}
	if s.Managed() {
		t.Fatal("freshly allocated stub must not be managed until Manage is called")
	}
	if err := rt.FreeUnmanaged(s); err != nil {
		t.Fatalf("FreeUnmanaged() failed: %v", err)
	}
	if s.FlagByte() != 0x00 {
		t.Fatalf("FlagByte() = %#x after FreeUnmanaged, want the free sentinel 0x00", s.FlagByte())
	}
}

func TestStub_FreeUnmanagedRejectsManaged(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorString)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	rt.Manage(s)
	rt.Guard.PushStub(s)
	defer rt.Guard.DropStub(s)

	if err := rt.FreeUnmanaged(s); err == nil {
		t.Fatal("expected FreeUnmanaged to reject a managed stub")
	}
}

func TestStub_FlagByteEncodesState(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorArray)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	if s.FlagByte()&0x80 == 0 {
		t.Fatal("live stub's flag byte must have the validity bit set")
	}
	rt.Manage(s)
	if s.FlagByte()&0x01 == 0 {
		t.Fatal("managed stub's flag byte must have the managed bit set")
	}

	if err := rt.FreeUnmanaged(s); err == nil {
		t.Skip("stub is managed, freed via Recycle instead")
	}
}

func TestStub_RootFlag(t *testing.T) {
	rt, err := corevm.Startup()
	if err != nil {
		t.Fatalf("Startup() failed: %v", err)
	}
	defer rt.Shutdown()

	s, err := rt.AllocStub(corevm.FlavorHandle)
	if err != nil {
		t.Fatalf("AllocStub() failed: %v", err)
	}
	if s.IsRoot() {
		t.Fatal("fresh stub must not be a root")
	}
	s.SetRoot(true)
	if !s.IsRoot() {
		t.Fatal("expected IsRoot after SetRoot(true)")
	}
	s.SetRoot(false)
	if s.IsRoot() {
		t.Fatal("expected !IsRoot after SetRoot(false)")
	}

	if err := rt.FreeUnmanaged(s); err != nil {
		t.Fatalf("FreeUnmanaged() failed: %v", err)
	}
}
