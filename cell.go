// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Heart is a cell's primary type discriminator (spec.md §3, Glossary).
// corevm only needs enough hearts to exercise the traceability and
// flavor machinery the collector depends on; datatype-specific
// dispatch tables are out of scope (spec.md §1).
type Heart uint8

const (
	HeartNone    Heart = iota // erased / no value
	HeartInteger              // scalar, never traces Extra or payload
	HeartDecimal              // scalar
	HeartWord                 // bindable: Extra carries a binding context
	HeartBlock                // array: One.Ref is the backing stub
	HeartGroup                // array variant, same storage as HeartBlock
	HeartString               // backing stub holds UTF-8 bytes
	HeartBinary               // backing stub holds raw bytes
	HeartObject               // context: Extra carries the keylist stub
	HeartHandle               // opaque handle stub, holds neither cells nor bytes
	heartCount
)

// heartTraceExtra answers whether a cell's Extra slot should be traced
// for the given heart. This is a table keyed by heart, not a per-cell
// flag (spec.md §3): "its traceability is determined by a table keyed
// by heart... and must tolerate a null value."
var heartTraceExtra = [heartCount]bool{
	HeartWord:   true,
	HeartObject: true,
}

// TracesExtra reports whether cells of this heart trace their Extra
// slot. Tolerates an out-of-range heart by treating it as untraced.
func (h Heart) TracesExtra() bool {
	if int(h) >= len(heartTraceExtra) {
		return false
	}
	return heartTraceExtra[h]
}

// cellFlag packs the per-cell flag bits described in spec.md §3. Only
// the low byte of the conceptual header is flag bits; heart and quote
// live in separate header bytes (see Cell.header).
type cellFlag uint8

const (
	cellValid      cellFlag = 1 << 0 // validity bit, set on every live cell/stub
	cellIsCell     cellFlag = 1 << 1 // cell-vs-stub discriminator
	cellManaged    cellFlag = 1 << 2
	cellMarked     cellFlag = 1 << 3 // reserved for the collector
	cellRoot       cellFlag = 1 << 4
	cellUnreadable cellFlag = 1 << 5
	cellProtected  cellFlag = 1 << 6 // protected: slot is read-only
	cellHidden     cellFlag = 1 << 7 // hidden: excluded from binding/enumeration
)

// payloadTrace records, for a single cell, whether each payload word
// should be skipped by the marker even though it holds a Ref. This is
// the "two bits indicating whether each payload word is a reference to
// be traced" from spec.md §3.
type payloadTrace uint8

const (
	payloadOneNoTrace payloadTrace = 1 << 0
	payloadTwoNoTrace payloadTrace = 1 << 1
)

// constMutability governs whether the object a cell refers to may be
// mutated through this cell, without affecting the object's own
// protection state (spec.md §4.7).
type constMutability uint8

const (
	mutabilityInherit constMutability = iota
	mutabilityConst
	mutabilityExplicitMutable
)

// header is the packed representation of a cell's flag byte, heart,
// quote/lift byte, and payload-trace flags (spec.md §3: "one header
// word"). Kept as named byte fields rather than a single bit-packed
// integer: corevm has no need to scan a cell header out of band the
// way the stub pool scans free-list bytes, so there is nothing to gain
// from raw packing and clarity is worth more.
type header struct {
	flag    cellFlag
	heart   Heart
	quote   uint8
	trace   payloadTrace
	mutable constMutability
}

// Payload is one of a cell's value slots: Extra, One, or Two. A
// payload either holds a reference to a managed Stub (Ref != nil) or a
// scalar value packed into Bits.
type Payload struct {
	Ref  *Stub
	Bits uint64
}

// Cell is the runtime's fixed-size tagged value (spec.md §3): one
// header plus three payload words (Extra, One, Two).
type Cell struct {
	header header
	Extra  Payload
	One    Payload
	Two    Payload
}

// IsErased reports whether c is in the erased state: every bit zero.
// Erased is legal only in named collaborator roles (lifeguard entries,
// an argument cell not yet fulfilled) — see Lifeguard.PushCell and
// levels.go.
func (c *Cell) IsErased() bool {
	return c.header == header{} && c.Extra == Payload{} && c.One == Payload{} && c.Two == Payload{}
}

// IsUnreadable reports whether c is initialized but semantically
// absent (spec.md §3).
func (c *Cell) IsUnreadable() bool {
	return c.header.flag&cellUnreadable != 0
}

// IsReadable reports whether c is a normal, readable value.
func (c *Cell) IsReadable() bool {
	return !c.IsErased() && !c.IsUnreadable()
}

// Heart returns the cell's type discriminator.
func (c *Cell) Heart() Heart { return c.header.heart }

// SetHeart sets the cell's type discriminator and marks it valid and
// readable (clearing erased/unreadable state).
func (c *Cell) SetHeart(h Heart) {
	c.header.heart = h
	c.header.flag |= cellValid | cellIsCell
	c.header.flag &^= cellUnreadable
}

// SetUnreadable marks c unreadable in place, preserving its heart so
// diagnostics can still report what it used to be.
func (c *Cell) SetUnreadable() {
	c.header.flag |= cellValid | cellIsCell | cellUnreadable
}

// Erase resets c to the all-zero erased state.
func (c *Cell) Erase() { *c = Cell{} }

// Marked / SetMarked / ClearMarked manipulate the collector's mark bit.
// Cells on the data stack, in stub content, or inside a pairing share
// this bit with their owning stub or pairing during a collection pass;
// a bare Cell value (e.g. one held in a Go local) is never itself
// swept, only the stub/pairing/array slot holding it is.
func (c *Cell) Marked() bool   { return c.header.flag&cellMarked != 0 }
func (c *Cell) SetMarked()     { c.header.flag |= cellMarked }
func (c *Cell) ClearMarked()   { c.header.flag &^= cellMarked }
func (c *Cell) Root() bool     { return c.header.flag&cellRoot != 0 }
func (c *Cell) SetRoot()       { c.header.flag |= cellRoot }
func (c *Cell) Protected() bool { return c.header.flag&cellProtected != 0 }
func (c *Cell) SetProtected(v bool) {
	if v {
		c.header.flag |= cellProtected
	} else {
		c.header.flag &^= cellProtected
	}
}
func (c *Cell) Hidden() bool { return c.header.flag&cellHidden != 0 }
func (c *Cell) SetHidden(v bool) {
	if v {
		c.header.flag |= cellHidden
	} else {
		c.header.flag &^= cellHidden
	}
}

// Mutability reports the const/explicitly-mutable state carried by
// this cell for the object it refers to.
func (c *Cell) Mutability() constMutability { return c.header.mutable }
func (c *Cell) SetMutability(m constMutability) { c.header.mutable = m }

// TracesOne / TracesTwo report whether the marker should follow the
// One/Two payload slot when it holds a Ref, honoring the per-cell
// "don't mark payload" flags (spec.md §3/§4.8).
func (c *Cell) TracesOne() bool { return c.header.trace&payloadOneNoTrace == 0 }
func (c *Cell) TracesTwo() bool { return c.header.trace&payloadTwoNoTrace == 0 }
func (c *Cell) SetTracesOne(v bool) { c.setTrace(payloadOneNoTrace, !v) }
func (c *Cell) SetTracesTwo(v bool) { c.setTrace(payloadTwoNoTrace, !v) }
func (c *Cell) setTrace(bit payloadTrace, set bool) {
	if set {
		c.header.trace |= bit
	} else {
		c.header.trace &^= bit
	}
}

// CellFromStub builds a readable HeartBlock cell referencing s. A
// convenience used throughout the tests; the
// evaluator (out of scope here) would build cells of every heart this
// way via its own constructors.
func CellFromStub(s *Stub) Cell {
	var c Cell
	c.SetHeart(HeartBlock)
	c.One.Ref = s
	return c
}

// CellFromInt builds a readable scalar HeartInteger cell.
func CellFromInt(n int64) Cell {
	var c Cell
	c.SetHeart(HeartInteger)
	c.One.Bits = uint64(n)
	return c
}
