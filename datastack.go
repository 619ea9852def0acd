// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// DataStack is the dedicated array-flavored GC root of spec.md §4.5:
// a growable cell array backed by a DynBuffer, index 0 holding a
// poisoned sentinel and live elements occupying 1..top. tail caches
// the buffer's current cell capacity (the source's movable_tail) so
// Push can compare against it without recomputing Used()/cellSize on
// every call.
type DataStack struct {
	_ noCopy

	rt  *Runtime
	buf *DynBuffer

	top      int // index of the topmost live cell; 0 means empty
	tail     int // cached capacity in cells
	maxCells int
	poison   bool
}

// NewDataStack allocates a data stack with room for initialCells
// cells (including the sentinel), rejecting growth past maxCells.
// poison enables debug-only zeroing of dropped cells.
func (rt *Runtime) NewDataStack(initialCells, maxCells int, poison bool) (*DataStack, error) {
	if initialCells < 1 {
		initialCells = 1
	}
	buf, err := rt.AllocDynBuffer(initialCells * cellSize)
	if err != nil {
		return nil, err
	}
	cells := buf.CellSlice()
	if len(cells) > 0 {
		cells[0].SetUnreadable()
	}
	return &DataStack{rt: rt, buf: buf, tail: len(cells), maxCells: maxCells, poison: poison}, nil
}

// Top returns the index of the topmost live cell (0 if the stack is
// empty).
func (ds *DataStack) Top() int { return ds.top }

// At returns a pointer to the cell at index. The pointer is
// invalidated by any Push that triggers expansion (spec.md §8 P9).
func (ds *DataStack) At(index int) *Cell {
	return &ds.buf.CellSlice()[index]
}

// Push appends c and returns its new index, expanding the backing
// buffer first if the stack is full. Returns ErrStackOverflow if the
// stack is already at its configured cap (maxCells).
func (ds *DataStack) Push(c Cell) (int, error) {
	next := ds.top + 1
	if next >= ds.maxCells {
		return 0, ErrStackOverflow
	}
	if next >= ds.tail {
		if err := ds.expand(); err != nil {
			return 0, err
		}
	}
	ds.buf.CellSlice()[next] = c
	ds.top = next
	return ds.top, nil
}

// expand doubles the stack's cell capacity (or grows to a minimum of
// 8 cells for a freshly created stack), re-caching tail afterward.
func (ds *DataStack) expand() error {
	growCells := ds.tail
	if growCells < 8 {
		growCells = 8
	}
	if err := ds.rt.ExpandAt(ds.buf, ds.buf.Used(), growCells*cellSize); err != nil {
		return err
	}
	ds.tail = ds.buf.Used() / cellSize
	return nil
}

// DropTo truncates the stack to index, optionally poisoning the
// dropped cells. Popping never shrinks the backing buffer.
func (ds *DataStack) DropTo(index int) error {
	if index < 0 || index > ds.top {
		return ErrIndexOutOfRange
	}
	if ds.poison {
		cells := ds.buf.CellSlice()
		for i := index + 1; i <= ds.top; i++ {
			cells[i] = Cell{}
			cells[i].SetUnreadable()
		}
	}
	ds.top = index
	return nil
}

// PopToArray copies the cells in (baseIndex, top] into a new array
// stub of the given flavor, preserving all flags, then drops the
// stack back to baseIndex (spec.md §4.5: "copies cells preserving all
// flags").
func (ds *DataStack) PopToArray(flavor Flavor, baseIndex int) (*Stub, error) {
	if baseIndex < 0 || baseIndex > ds.top {
		return nil, ErrIndexOutOfRange
	}
	n := ds.top - baseIndex
	s, err := ds.rt.AllocStub(flavor)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		buf, err := ds.rt.AllocDynBuffer(n * cellSize)
		if err != nil {
			return nil, err
		}
		src := ds.buf.CellSlice()
		copy(buf.CellSlice(), src[baseIndex+1:ds.top+1])
		s.Dynamic = true
		s.Buffer = buf
	}
	if err := ds.DropTo(baseIndex); err != nil {
		return nil, err
	}
	return s, nil
}

// forEachLive invokes fn for every live cell, indices 1..top. Used by
// the collector to mark the stack as a root (spec.md §4.5/§4.8 step 4).
func (ds *DataStack) forEachLive(fn func(*Cell)) {
	cells := ds.buf.CellSlice()
	for i := 1; i <= ds.top; i++ {
		fn(&cells[i])
	}
}
