// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// protectFlags carries the per-stub protection bits of spec.md §4.7:
// shallow protection (togglable) and the two permanent freeze states.
// A dedicated "black" bit, independent of the collector's marked bit,
// lets deep operations recolor stubs during a cycle-safe traversal and
// restore them afterward.
type protectFlags uint8

const (
	protectShallow     protectFlags = 1 << 0 // protected: togglable
	protectFrozenShallow protectFlags = 1 << 1 // permanent
	protectFrozenDeep  protectFlags = 1 << 2 // permanent, transitive
	protectBlack       protectFlags = 1 << 3 // cycle-guard recoloring, not the GC mark bit
)

// ProtectFlags are the caller-facing options to Protect/Unprotect,
// mirroring spec.md §6's protect(value, flags: {deep, hide, freeze,
// words, values, set}).
type ProtectFlags struct {
	Deep   bool
	Hide   bool
	Freeze bool
	Words  bool
	Values bool
	Set    bool // false means "unset" the named flags instead of setting them
}

func (s *Stub) protectedShallow() bool { return s.protect&protectShallow != 0 }
func (s *Stub) frozenShallow() bool    { return s.protect&protectFrozenShallow != 0 }
func (s *Stub) frozenDeep() bool       { return s.protect&protectFrozenDeep != 0 }
func (s *Stub) blacked() bool          { return s.protect&protectBlack != 0 }

// IsFrozenDeep reports whether s is permanently, transitively
// immutable (spec.md §8 P8: monotonic once true).
func (s *Stub) IsFrozenDeep() bool { return s.frozenDeep() }

// Protect applies flags to a cell's referenced value, mirroring the
// per-cell and per-stub halves of spec.md §4.7. If the cell references
// no stub (a scalar, word, etc.) protection is a no-op, matching
// "freezing a value that is already immutable... is a no-op".
//
// Deep freeze/protect traverses into arrays, contexts, and series
// using a temporary recolor pass (protectBlack) so cycles are visited
// exactly once; the color is restored by an explicit uncolor walk
// after traversal, never left set across calls.
func Protect(rt *Runtime, c *Cell, flags ProtectFlags, locker string) error {
	if flags.Hide {
		c.SetHidden(flags.Set)
	}
	if flags.Words && flags.Set {
		c.SetProtected(true)
	} else if flags.Words && !flags.Set {
		c.SetProtected(false)
	}
	target := c.One.Ref
	if target == nil {
		return nil
	}
	if !flags.Values && !flags.Freeze {
		return nil
	}
	if flags.Deep {
		visited := make(map[*Stub]bool)
		applyDeep(rt, target, flags, locker, visited)
		for s := range visited {
			s.protect &^= protectBlack
		}
		return nil
	}
	applyOne(target, flags, locker)
	return nil
}

func applyOne(s *Stub, flags ProtectFlags, locker string) {
	if flags.Freeze {
		if flags.Deep {
			s.protect |= protectFrozenDeep | protectFrozenShallow
		} else {
			s.protect |= protectFrozenShallow
		}
		if locker != "" && s.locker == "" {
			s.locker = locker
		}
		return
	}
	if flags.Values {
		if flags.Set {
			s.protect |= protectShallow
		} else if !s.frozenShallow() && !s.frozenDeep() {
			s.protect &^= protectShallow
		}
	}
}

// applyDeep walks s and, if it holds cells, every stub reachable
// through its cell slots, marking each visited stub black so a cyclic
// reference is never processed twice.
func applyDeep(rt *Runtime, s *Stub, flags ProtectFlags, locker string, visited map[*Stub]bool) {
	if s.blacked() {
		return
	}
	s.protect |= protectBlack
	visited[s] = true
	applyOne(s, flags, locker)
	if !s.Flavor.HoldsCells() {
		return
	}
	for _, cell := range cellsOf(s) {
		if !cell.IsReadable() {
			continue
		}
		if cell.TracesOne() && cell.One.Ref != nil {
			applyDeep(rt, cell.One.Ref, flags, locker, visited)
		}
		if cell.TracesTwo() && cell.Two.Ref != nil {
			applyDeep(rt, cell.Two.Ref, flags, locker, visited)
		}
	}
}

// cellsOf returns a stub's cell content regardless of whether it is
// stored inline or in a dynamic buffer.
func cellsOf(s *Stub) []Cell {
	if s.Dynamic {
		if s.Buffer == nil {
			return nil
		}
		return s.Buffer.CellSlice()
	}
	return []Cell{s.Content}
}

// Unprotect clears flags previously set by Protect. Freezing is
// monotonic (spec.md §4.7): a Freeze flag passed to Unprotect is
// ignored, frozen state is left as it is, and no error is returned.
func Unprotect(rt *Runtime, c *Cell, flags ProtectFlags) error {
	flags.Set = false
	flags.Freeze = false
	return Protect(rt, c, flags, "")
}
