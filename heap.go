// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import (
	"math/rand"
	"unsafe"
)

// Heap is the malloc/free wrapper of spec.md §4.1: a byte-accounted,
// optionally quota-limited allocator that every pool segment and every
// oversized allocation ultimately goes through.
//
// Grounded on the accounting-counter shape of
// _examples/cznic-exp/lldb/falloc.go's AllocStats (AllocBytes,
// TotalAtoms): a running byte total plus a hard ceiling, no more.
type Heap struct {
	_ noCopy

	bytes uint64 // process-wide byte counter (spec.md §4.1, §8 P5)
	quota uint64 // usage_limit; 0 means unlimited

	checked  bool // prefixes each allocation with its requested size
	fuzz     bool // debug-only: random allocation failures
	fuzzRand *rand.Rand
}

// NewHeap constructs a Heap with the given quota (0 = unlimited).
func NewHeap(quota uint64, checked bool) *Heap {
	return &Heap{quota: quota, checked: checked}
}

// SetFuzz enables or disables the debug-only allocation-failure fuzz
// switch, seeding its PRNG deterministically so tests are reproducible.
func (h *Heap) SetFuzz(enabled bool, seed int64) {
	h.fuzz = enabled
	if enabled {
		h.fuzzRand = rand.New(rand.NewSource(seed))
	}
}

// checkedPrefix is the number of bytes a checked-build allocation
// reserves ahead of the caller's data to record the requested size,
// verified again on Free. The prefix lives in the same backing array
// as the data the caller sees but outside the slice bounds handed
// back; Free recovers it via pointer arithmetic (unsafe.Add with a
// negative offset), the same unsafe-pointer-arithmetic idiom the
// teacher package uses for its own page/cache-line alignment helpers.
const checkedPrefix = 8

// Alloc returns a zeroed block of n bytes, or ErrOutOfMemory if the
// quota would be exceeded, the fuzz switch trips, or the underlying
// allocation fails. The caller supplies n again on Free — this
// interface intentionally does not rely on the platform allocator
// remembering the size itself (spec.md §4.1).
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrIndexOutOfRange
	}
	if h.fuzz && h.fuzzRand.Intn(16) == 0 {
		return nil, ErrOutOfMemory
	}
	total := n
	if h.checked {
		total += checkedPrefix
	}
	if h.quota != 0 && h.bytes+uint64(total) > h.quota {
		return nil, ErrOutOfMemory
	}
	full := make([]byte, total)
	h.bytes += uint64(total)
	if h.checked {
		putSize(full, uint64(n))
		return full[checkedPrefix:], nil
	}
	return full, nil
}

// Free releases a block previously returned by Alloc, given its
// original requested size n. In checked builds it verifies the
// recorded size prefix matches n before releasing it.
func (h *Heap) Free(buf []byte, n int) {
	total := n
	if h.checked {
		total += checkedPrefix
		full := prefixOf(buf, n)
		if got := sizeOf(full); got != uint64(n) {
			panic("corevm: heap free size mismatch")
		}
	}
	if h.bytes < uint64(total) {
		panic("corevm: heap byte counter underflow")
	}
	h.bytes -= uint64(total)
}

// Bytes returns the current process-wide byte counter (spec.md §8 P5).
func (h *Heap) Bytes() uint64 { return h.bytes }

// account charges n bytes against the quota without performing an
// allocation itself. The pool allocators use this to keep segment
// growth (native Go slices of Stub/Pairing, not raw []byte) under the
// same byte ceiling and counter as Alloc/Free, so P5 holds across both
// allocation paths.
func (h *Heap) account(n int) error {
	if h.fuzz && h.fuzzRand.Intn(16) == 0 {
		return ErrOutOfMemory
	}
	if h.quota != 0 && h.bytes+uint64(n) > h.quota {
		return ErrOutOfMemory
	}
	h.bytes += uint64(n)
	return nil
}

// unaccount releases n previously-accounted bytes.
func (h *Heap) unaccount(n int) {
	if h.bytes < uint64(n) {
		panic("corevm: heap byte counter underflow")
	}
	h.bytes -= uint64(n)
}

func putSize(full []byte, n uint64) {
	for i := 0; i < checkedPrefix; i++ {
		full[i] = byte(n >> (8 * i))
	}
}

func sizeOf(full []byte) uint64 {
	var n uint64
	for i := 0; i < checkedPrefix; i++ {
		n |= uint64(full[i]) << (8 * i)
	}
	return n
}

// prefixOf reconstructs the checkedPrefix-byte header that precedes
// data in its backing array.
func prefixOf(data []byte, n int) []byte {
	base := unsafe.Pointer(unsafe.SliceData(data))
	return unsafe.Slice((*byte)(unsafe.Add(base, -checkedPrefix)), checkedPrefix+n)
}
