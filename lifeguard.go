// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// lifeguardEntry holds exactly one of stub or cell, matching spec.md
// §4.6: "a pointer pushed may be either a stub... or a cell." A cell
// entry with its own IsErased() true stands in for "an entry whose
// first byte is zero denotes an erased cell" — the collector skips it
// harmlessly rather than needing a separate erased variant.
type lifeguardEntry struct {
	stub    *Stub
	cell    *Cell
	pairing *Pairing
}

// Lifeguard is the append-only root registry of spec.md §4.6.
type Lifeguard struct {
	_ noCopy

	entries []lifeguardEntry
	checked bool
}

func (rt *Runtime) NewLifeguard() *Lifeguard {
	return &Lifeguard{checked: rt.Checked}
}

// PushStub roots s until a matching DropStub. s must be managed and
// live; in checked builds this is verified.
func (lg *Lifeguard) PushStub(s *Stub) error {
	if lg.checked && (!s.Managed() || !s.Live()) {
		return ErrInvalidRoot
	}
	lg.entries = append(lg.entries, lifeguardEntry{stub: s})
	return nil
}

// PushCell roots c until a matching DropCell. c must not already be
// marked; checked builds additionally require c not live inside an
// array or pairing, which callers indicate via inStructure.
func (lg *Lifeguard) PushCell(c *Cell, inStructure bool) error {
	if lg.checked && (c.Marked() || inStructure) {
		return ErrInvalidRoot
	}
	lg.entries = append(lg.entries, lifeguardEntry{cell: c})
	return nil
}

// PushPairing roots p until a matching DropPairing. Pairings are
// usable anywhere a stub may appear (spec.md §3), including here.
func (lg *Lifeguard) PushPairing(p *Pairing) error {
	if lg.checked && !p.Managed() {
		return ErrInvalidRoot
	}
	lg.entries = append(lg.entries, lifeguardEntry{pairing: p})
	return nil
}

// DropPairing releases the most recent entry, which must be p.
func (lg *Lifeguard) DropPairing(p *Pairing) error {
	return lg.drop(lifeguardEntry{pairing: p})
}

// DropStub releases the most recent entry, which must be s. In
// checked builds, dropping any entry but the last is an ordering
// error (spec.md §4.6: "enforces strict nesting on drop in checked
// builds").
func (lg *Lifeguard) DropStub(s *Stub) error {
	return lg.drop(lifeguardEntry{stub: s})
}

// DropCell releases the most recent entry, which must be c.
func (lg *Lifeguard) DropCell(c *Cell) error {
	return lg.drop(lifeguardEntry{cell: c})
}

func (lg *Lifeguard) drop(want lifeguardEntry) error {
	n := len(lg.entries)
	if n == 0 {
		return ErrLifeguardOrder
	}
	top := lg.entries[n-1]
	if lg.checked && top != want {
		return ErrLifeguardOrder
	}
	lg.entries = lg.entries[:n-1]
	return nil
}

// forEachLive invokes fnStub for every root stub entry, fnPairing for
// every root pairing entry and fnCell for every root cell entry,
// skipping erased cell entries. Used by the
// collector to mark the registry as a root (spec.md §4.8 step 5).
func (lg *Lifeguard) forEachLive(fnStub func(*Stub), fnCell func(*Cell), fnPairing func(*Pairing)) {
	for _, e := range lg.entries {
		switch {
		case e.stub != nil:
			fnStub(e.stub)
		case e.pairing != nil:
			fnPairing(e.pairing)
		case e.cell != nil:
			if e.cell.IsErased() {
				continue
			}
			fnCell(e.cell)
		}
	}
}

// Len reports the number of live root entries, used by Shutdown's
// leak check (spec.md §4.9: "verifies the lifeguard... stubs are
// empty").
func (lg *Lifeguard) Len() int { return len(lg.entries) }
