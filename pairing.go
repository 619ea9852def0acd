// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Pairing is two cells allocated contiguously, usable anywhere a stub
// may appear (spec.md §3). A cell pair never exceeds the stub's
// two-cell width on this implementation; even so, pairings are
// allocated from their own pairingPool, with a free list separate from
// the stub pool's (see pool.go).
//
// Design note (spec.md §9): pairings are not queued for element
// marking even though their two cells could reference arbitrary
// structures. This implementation enforces the source's restriction by
// construction rather than by convention: AllocPairing panics in
// checked builds if either cell's heart traces a nesting-capable
// reference (anything whose heart is HeartBlock/HeartGroup/HeartObject)
// — see checkNonNesting.
type Pairing struct {
	state stubState
	flags stubFlags
	Cells [2]Cell

	next *Pairing
}

func (p *Pairing) Managed() bool { return p.flags&stubManaged != 0 }
func (p *Pairing) Marked() bool  { return p.flags&stubMarked != 0 }
func (p *Pairing) SetMarked()    { p.flags |= stubMarked }
func (p *Pairing) ClearMarked()  { p.flags &^= stubMarked }

func (p *Pairing) FlagByte() byte {
	switch p.state {
	case stateFree:
		return freeSentinelByte
	default:
		b := byte(0x80)
		if p.Managed() {
			b |= 0x01
		}
		if p.Marked() {
			b |= 0x02
		}
		return b
	}
}

// checkNonNesting enforces the open question decision recorded in
// SPEC_FULL.md §E.3: a pairing's cells may never hold a nesting-capable
// reference. Called by AllocPairing in checked builds.
func checkNonNesting(c *Cell) {
	switch c.Heart() {
	case HeartBlock, HeartGroup, HeartObject:
		panic("corevm: pairing cell must not hold a nesting-capable heart")
	}
}
