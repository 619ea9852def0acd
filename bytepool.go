// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// byteClassPool is one size class's segmented free-list allocator
// (spec.md §4.2): a segment is requested from the Heap in one shot and
// chopped into unitsPerSegment fixed-width chunks, which are then
// handed out and reclaimed LIFO.
type byteClassPool struct {
	class sizeClass
	heap  *Heap
	free  [][]byte
}

func (b *byteClassPool) grow() error {
	total := b.class.width * b.class.unitsPerSegment
	seg, err := b.heap.Alloc(total)
	if err != nil {
		return err
	}
	for i := 0; i < b.class.unitsPerSegment; i++ {
		start := i * b.class.width
		end := start + b.class.width
		b.free = append(b.free, seg[start:end:end])
	}
	return nil
}

func (b *byteClassPool) get() ([]byte, error) {
	if len(b.free) == 0 {
		if err := b.grow(); err != nil {
			return nil, err
		}
	}
	n := len(b.free)
	buf := b.free[n-1]
	b.free = b.free[:n-1]
	return buf, nil
}

func (b *byteClassPool) put(buf []byte) {
	b.free = append(b.free, buf[:cap(buf):cap(buf)])
}

// bytePools is the array of byte-class pools, one per size class built
// by buildSizeClasses (ten in all), plus the heap fallback for requests
// exceeding the largest
// class. DynBuffer (buffer.go) is the sole caller: it asks for a
// class-backed chunk first and only reaches the heap directly for
// oversized buffers.
type bytePools struct {
	table   *sizeClassTable
	classes []*byteClassPool
	heap    *Heap
}

func newBytePools(heap *Heap, table *sizeClassTable) *bytePools {
	bp := &bytePools{table: table, heap: heap}
	bp.classes = make([]*byteClassPool, len(table.classes))
	for i, c := range table.classes {
		bp.classes[i] = &byteClassPool{class: c, heap: heap}
	}
	return bp
}

// alloc returns a byte slice of length n, the size-class index it came
// from (or -1 if it fell through to the heap directly), and any error.
func (bp *bytePools) alloc(n int) (buf []byte, class int, err error) {
	idx := bp.table.classFor(n)
	if idx < 0 {
		buf, err = bp.heap.Alloc(n)
		return buf, -1, err
	}
	buf, err = bp.classes[idx].get()
	if err != nil {
		return nil, -1, err
	}
	return buf[:n], idx, nil
}

// free returns a buffer obtained from alloc, given the class index and
// original byte length n it reported.
func (bp *bytePools) free(buf []byte, class int, n int) {
	if class < 0 {
		bp.heap.Free(buf, n)
		return
	}
	bp.classes[class].put(buf)
}
