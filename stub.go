// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Flavor is a stub's subtag within type: it determines which of
// link/misc/info are traced by the collector and which cleanup hook
// (if any) runs when the stub is diminished (spec.md §3/§4.3).
type Flavor uint8

const (
	FlavorArray   Flavor = iota // holds cells: general array
	FlavorVarlist               // holds cells: variable/value pairs
	FlavorKeylist               // holds cells: object keys
	FlavorSource                // holds cells: evaluator source array
	FlavorBinary                // holds bytes: raw binary
	FlavorString                // holds bytes: UTF-8 string/symbol content
	FlavorSymbol                // holds bytes: interned symbol
	FlavorHandle                // holds neither: external handle
	FlavorPatch                 // holds neither: module/library variable patch
	flavorCount
)

// flavorClass classifies what a flavor's payload is made of.
type flavorClass uint8

const (
	classHoldsCells flavorClass = iota
	classHoldsBytes
	classHoldsNeither
)

var flavorClassOf = [flavorCount]flavorClass{
	FlavorArray:   classHoldsCells,
	FlavorVarlist: classHoldsCells,
	FlavorKeylist: classHoldsCells,
	FlavorSource:  classHoldsCells,
	FlavorBinary:  classHoldsBytes,
	FlavorString:  classHoldsBytes,
	FlavorSymbol:  classHoldsBytes,
	FlavorHandle:  classHoldsNeither,
	FlavorPatch:   classHoldsNeither,
}

func (f Flavor) HoldsCells() bool  { return flavorClassOf[f] == classHoldsCells }
func (f Flavor) HoldsBytes() bool  { return flavorClassOf[f] == classHoldsBytes }
func (f Flavor) HoldsNeither() bool { return flavorClassOf[f] == classHoldsNeither }

// tracedSlots records which of a stub's Link/Misc/Info slots the
// collector must trace for a given flavor.
type tracedSlots struct {
	link, misc, info bool
}

var tracedSlotsOf = [flavorCount]tracedSlots{
	FlavorArray:   {link: true},
	FlavorVarlist: {link: true, misc: true},
	FlavorKeylist: {link: true},
	FlavorSource:  {link: true},
	FlavorBinary:  {},
	FlavorString:  {misc: true}, // misc: interned-symbol patch chain head
	FlavorSymbol:  {misc: true},
	FlavorHandle:  {},
	FlavorPatch:   {link: true, info: true}, // link: owning module/context; info: next patch in chain
}

// CleanupFunc is a per-flavor hook run once, during diminish, before a
// stub's payload is released (spec.md §4.3). Datatype implementations
// register these; corevm itself registers none, so a flavor without a
// registered hook is diminished without one.
type CleanupFunc func(rt *Runtime, s *Stub)

var cleanupHooks [flavorCount]CleanupFunc

// RegisterCleanup installs the cleanup hook for a flavor. Intended to
// be called once at Startup by datatype implementations that need one;
// Startup itself installs no hooks.
func RegisterCleanup(f Flavor, fn CleanupFunc) {
	cleanupHooks[f] = fn
}

// slotValue is the storage for a stub's Misc and Info slots: either a
// reference to another stub or an opaque scalar/callback pointer.
type slotValue struct {
	Ref  *Stub
	Bits uint64
}

// stubState is the tagged-variant discriminator design notes §9 calls
// for in place of the source's first-byte convention: Go distinguishes
// live/diminished/free statically instead of by casting a byte.
type stubState uint8

const (
	stateFree stubState = iota
	stateLive
	stateDiminishedNonCanon
	stateDiminishedCanon
)

// Stub is a two-cell-sized control block identifying a managed or
// unmanaged heap object (spec.md §3).
type Stub struct {
	state  stubState
	flags  stubFlags
	Flavor Flavor

	Link *Stub
	Misc slotValue
	Info slotValue

	// protect and locker back the Protection Registry (spec.md §4.7).
	// They live directly on the stub rather than in a side table: the
	// registry's "per-stub info flags" are, in this implementation,
	// just more bits of stub state.
	protect protectFlags
	locker  string

	// Content is the inline cell-or-bytes payload when Dynamic is
	// false. When Dynamic is true, Buffer holds a separately pooled
	// buffer and Content is unused.
	Dynamic bool
	Content Cell
	Buffer  *DynBuffer

	allocTick uint64 // monotonic tick at alloc_stub time, for leak reporting
	next      *Stub  // free-list link, valid only while state == stateFree
}

// stubFlags carries the managed/marked/root bits shared with cells
// (spec.md §3: "sharing the low-byte convention with cells").
type stubFlags uint8

const (
	stubManaged stubFlags = 1 << 0
	stubMarked  stubFlags = 1 << 1
	stubRoot    stubFlags = 1 << 2
)

func (s *Stub) Managed() bool { return s.flags&stubManaged != 0 }
func (s *Stub) Marked() bool  { return s.flags&stubMarked != 0 }
func (s *Stub) IsRoot() bool  { return s.flags&stubRoot != 0 }
func (s *Stub) SetMarked()    { s.flags |= stubMarked }
func (s *Stub) ClearMarked()  { s.flags &^= stubMarked }
func (s *Stub) SetRoot(v bool) {
	if v {
		s.flags |= stubRoot
	} else {
		s.flags &^= stubRoot
	}
}

// Diminished reports whether s has already had its payload released
// (spec.md §3: "a stub with the unreadable flag is diminished").
func (s *Stub) Diminished() bool {
	return s.state == stateDiminishedNonCanon || s.state == stateDiminishedCanon
}

// Live reports whether s currently holds a real payload (neither free
// nor diminished).
func (s *Stub) Live() bool { return s.state == stateLive }

// FlagByte synthesizes the spec's "first byte" observable for s, so
// diagnostics and tests can assert the P2/P3 properties literally
// against an external-facing byte instead of the internal state enum.
func (s *Stub) FlagByte() byte {
	switch s.state {
	case stateFree:
		return freeSentinelByte
	case stateDiminishedNonCanon:
		return nonCanonDiminishedByte
	case stateDiminishedCanon:
		return canonDiminishedByte
	default:
		b := byte(0x80) // validity bit analogue for a live stub
		if s.Managed() {
			b |= 0x01
		}
		if s.Marked() {
			b |= 0x02
		}
		if s.IsRoot() {
			b |= 0x04
		}
		return b
	}
}

const (
	freeSentinelByte        byte = 0x00 // FREE_POOLUNIT_BYTE: no live stub has bit 0x80 clear
	nonCanonDiminishedByte  byte = 0x41
	canonDiminishedByte     byte = 0xC1
)

// diminish runs step 1 of reclamation (spec.md §4.3): the flavor's
// cleanup hook, buffer release, and the transition to the diminished
// state. Idempotent — calling it on an already-diminished stub is a
// no-op, matching "both idempotent with respect to the diminished
// state".
func (s *Stub) diminish(rt *Runtime) {
	if s.Diminished() {
		return
	}
	if hook := cleanupHooks[s.Flavor]; hook != nil {
		hook(rt, s)
	}
	if s.Dynamic && s.Buffer != nil {
		rt.freeDynBuffer(s.Buffer)
		s.Buffer = nil
		s.Dynamic = false
	}
	if rt.Checked {
		s.Content = Cell{}
		s.Link = nil
		s.Misc = slotValue{}
		s.Info = slotValue{}
	}
	s.state = stateDiminishedNonCanon
}

// kill runs step 2 of reclamation: returning the stub's pool unit to
// the free list. Call only after diminish.
func (s *Stub) kill(rt *Runtime) {
	rt.stubPool.release(s)
}
