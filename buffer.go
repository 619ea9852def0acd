// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import "unsafe"

// cellSize is the byte width of one Cell, used to address cell-array
// buffers (data stack, array/varlist/keylist/source stub content) in
// cell units while still routing through the byte-oriented pool and
// heap allocators (spec.md §4.2: pools are characterized by a byte
// unit_width regardless of what the caller reinterprets the bytes as).
const cellSize = int(unsafe.Sizeof(Cell{}))

// DynBuffer is a stub's separately pooled dynamic payload (spec.md
// §4.3/§4.4): a byte-class- or heap-backed chunk with used/rest/bias
// counters, reserved headroom for O(1) head-inserts, and an optional
// fixed-size lock.
//
// data is always the full chunk as returned by the byte-class pool or
// heap (never a sub-slice of it); bias and used locate the logical
// content within it. Freeing or re-growing the buffer always operates
// on this full chunk so the pool/heap accounting stays exact.
type DynBuffer struct {
	_ noCopy

	data  []byte
	class int // size-class index the chunk came from, or -1 for a direct heap allocation

	bias int // reserved bytes before the logical head
	used int // logical content length

	locked bool // fixed-size stub: ExpandAt always fails
}

// Bytes returns the buffer's current logical content. The slice is
// invalidated by any call to ExpandAt that reallocates.
func (b *DynBuffer) Bytes() []byte { return b.data[b.bias : b.bias+b.used] }

// Used returns the logical content length.
func (b *DynBuffer) Used() int { return b.used }

// CellSlice reinterprets the buffer's content as a Cell slice, for
// stub flavors in the "holds cells" class (spec.md §3). The backing
// bytes must be a whole number of cellSize-sized units; callers that
// mix byte and cell buffers never reinterpret the same DynBuffer both
// ways.
func (b *DynBuffer) CellSlice() []Cell {
	n := b.used / cellSize
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Cell)(unsafe.Pointer(&b.data[b.bias])), n)
}

// rest is the free space after the logical content, before the end of
// the chunk.
func (b *DynBuffer) rest() int { return len(b.data) - b.bias - b.used }

// AllocDynBuffer allocates a buffer of n content bytes from the
// byte-class pools (or the heap, for oversized requests), centering
// the content within whatever slack the size class rounds up to so a
// freshly allocated buffer already carries some head/tail bias.
func (rt *Runtime) AllocDynBuffer(n int) (*DynBuffer, error) {
	buf, class, err := rt.bytePools.alloc(n)
	if err != nil {
		return nil, err
	}
	full := buf
	if class >= 0 {
		full = buf[:cap(buf):cap(buf)]
	}
	bias := (len(full) - n) / 2
	if bias < 0 {
		bias = 0
	}
	if bias > 0 {
		copy(full[bias:bias+n], full[:n])
	}
	return &DynBuffer{data: full, class: class, bias: bias, used: n}, nil
}

// NewFixedDynBuffer allocates a buffer that permanently rejects
// ExpandAt, for stubs whose width is fixed at creation (spec.md §4.4:
// "Fixed-size stubs reject expansion with a locked error").
func (rt *Runtime) NewFixedDynBuffer(n int) (*DynBuffer, error) {
	b, err := rt.AllocDynBuffer(n)
	if err != nil {
		return nil, err
	}
	b.locked = true
	return b, nil
}

// freeDynBuffer returns a buffer's chunk to its byte-class pool or the
// heap. Called from Stub.diminish.
func (rt *Runtime) freeDynBuffer(b *DynBuffer) {
	if b.class >= 0 {
		rt.bytePools.free(b.data, b.class, len(b.data))
		return
	}
	rt.bytePools.free(b.data, -1, len(b.data))
}

// growthLRUSize bounds the small recently-expanded-buffer table that
// keys the doubling heuristic (spec.md §4.4: "a doubling heuristic
// keyed off a small LRU table of recently expanded stubs"). A buffer
// seen in the table grows by doubling; one growing for the first time
// gets exactly what it asked for, so one-shot buffers don't waste
// pool capacity.
const growthLRUSize = 8

func (rt *Runtime) recentlyGrown(b *DynBuffer) bool {
	for _, e := range rt.growthLRU {
		if e == b {
			return true
		}
	}
	return false
}

func (rt *Runtime) noteGrowth(b *DynBuffer) {
	rt.growthLRU[rt.growthLRUPos] = b
	rt.growthLRUPos = (rt.growthLRUPos + 1) % growthLRUSize
}

// ExpandAt inserts (delta > 0) or removes (delta < 0) |delta| bytes at
// logical index within b, per spec.md §4.4. Any raw slice previously
// returned by Bytes is invalidated.
func (rt *Runtime) ExpandAt(b *DynBuffer, index, delta int) error {
	if b.locked {
		return ErrLocked
	}
	if index < 0 || index > b.used {
		return ErrIndexOutOfRange
	}
	if d := int64(delta); d > 1<<31 || d < -(1<<31) {
		return ErrIndexOutOfRange
	}
	switch {
	case delta == 0:
		return nil
	case delta < 0:
		return rt.shrinkAt(b, index, -delta)
	default:
		return rt.growAt(b, index, delta)
	}
}

func (rt *Runtime) shrinkAt(b *DynBuffer, index, n int) error {
	if n > b.used-index {
		return ErrIndexOutOfRange
	}
	if index == 0 {
		// Symmetric with the head-insert fast path: shrinking at the
		// head just grows bias back (spec.md §8 P10).
		b.bias += n
		b.used -= n
		return nil
	}
	tailStart := b.bias + index + n
	tailLen := b.used - index - n
	copy(b.data[b.bias+index:b.bias+index+tailLen], b.data[tailStart:tailStart+tailLen])
	b.used -= n
	return nil
}

func (rt *Runtime) growAt(b *DynBuffer, index, n int) error {
	if index == 0 && b.bias >= n {
		b.bias -= n
		b.used += n
		return nil
	}
	if b.rest() >= n {
		src := b.data[b.bias+index : b.bias+b.used]
		dst := b.data[b.bias+index+n : b.bias+b.used+n]
		copy(dst, src)
		b.used += n
		return nil
	}
	return rt.regrow(b, index, n)
}

// regrow reallocates b's chunk to fit the requested insert, copying
// the prefix and suffix around the gap and freeing the old chunk.
func (rt *Runtime) regrow(b *DynBuffer, index, n int) error {
	needed := b.used + n
	reqSize := needed
	if rt.recentlyGrown(b) {
		reqSize = needed * 2
	}
	buf, class, err := rt.bytePools.alloc(reqSize)
	if err != nil {
		return err
	}
	full := buf
	if class >= 0 {
		full = buf[:cap(buf):cap(buf)]
	}
	newBias := (len(full) - needed) / 2
	if newBias < 0 {
		newBias = 0
	}
	old := b.Bytes()
	copy(full[newBias:newBias+index], old[:index])
	copy(full[newBias+index+n:newBias+needed], old[index:])

	rt.freeDynBuffer(b)
	b.data = full
	b.class = class
	b.bias = newBias
	b.used = needed
	rt.noteGrowth(b)
	return nil
}
