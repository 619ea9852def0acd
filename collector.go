// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Collector is the non-recursive mark/sweep collector of spec.md
// §4.8: non-concurrent, non-moving, non-generational. A collection
// runs only when Recycle (or RecycleCore) is called: NoteAlloc tracks
// the ballast depletion budget and reports when it is used up, but no
// allocation path in this package calls NoteAlloc.
//
// The mark queue that design notes §9 insists on preserving
// ("preserve this design verbatim — do not be tempted to use native
// recursion") is modeled here as a plain Go slice used as a stack,
// rather than literally as an array-flavored stub: that is an
// array-flavored stub in spec terms too (its own elements are stub
// pointers, scanned as they're popped), but nothing about its
// treatment as a root is required — the queue never survives past the
// end of one collection pass — so a slice is the idiomatic Go
// equivalent without losing the non-recursion property it exists for.
type Collector struct {
	_ noCopy

	rt    *Runtime
	queue []*Stub

	recycling       bool
	deferredRecycle bool
	torture         bool
	doubleRecycle   bool

	ballast   uint64
	depletion uint64

	marksAdded   uint64 // P4 mark-balance counters, kept in every build
	marksCleared uint64
}

func newCollector(rt *Runtime, ballast uint64) *Collector {
	return &Collector{rt: rt, ballast: ballast, depletion: ballast}
}

// NoteAlloc counts n bytes against the depletion budget, returning
// true if the budget has reached zero and a collection should run
// (spec.md §4.8: "triggered by depletion of an allocation-byte
// budget").
func (c *Collector) NoteAlloc(n uint64) bool {
	if c.depletion <= n {
		c.depletion = 0
		return true
	}
	c.depletion -= n
	return c.torture
}

// markRef marks the stub *ref points to, rewriting the pointer to the
// canon diminished stub if it refers to a dead (non-canon-diminished)
// stub (spec.md §4.8, marking protocol steps 1-4).
func (c *Collector) markRef(ref **Stub) {
	s := *ref
	if s == nil || s == c.rt.canonDiminished {
		return
	}
	if s.Marked() {
		return
	}
	if s.state == stateDiminishedNonCanon {
		*ref = c.rt.canonDiminished
		return
	}
	s.SetMarked()
	c.marksAdded++

	traced := tracedSlotsOf[s.Flavor]
	if traced.link {
		c.markRef(&s.Link)
	}
	if traced.misc && s.Misc.Ref != nil {
		c.markRef(&s.Misc.Ref)
	}
	if traced.info && s.Info.Ref != nil {
		c.markRef(&s.Info.Ref)
	}
	if s.Flavor.HoldsCells() {
		c.queue = append(c.queue, s)
	}
}

// markRootedStub marks a stub reached directly as a root (lifeguard
// entry, root stub pass) rather than through a rewritable pointer
// slot: a rooted stub cannot legitimately be a dead reference, so
// there is nothing to canonicalize here, only to mark.
func (c *Collector) markRootedStub(s *Stub) {
	if s == nil || s.Marked() {
		return
	}
	s.SetMarked()
	c.marksAdded++
	if s.Flavor.HoldsCells() {
		c.queue = append(c.queue, s)
	}
	traced := tracedSlotsOf[s.Flavor]
	if traced.link {
		c.markRef(&s.Link)
	}
	if traced.misc && s.Misc.Ref != nil {
		c.markRef(&s.Misc.Ref)
	}
	if traced.info && s.Info.Ref != nil {
		c.markRef(&s.Info.Ref)
	}
}

// markPairing marks p's two cells, then p itself. Matches the
// marking protocol's pairing branch: pairings are never queued for
// deferred element scanning, only their two cells are scanned
// directly — safe because AllocPairing enforces the non-nesting
// restriction at construction (spec.md §9 open question, resolved by
// construction rather than by queueing).
func (c *Collector) markPairing(p *Pairing) {
	if p.Marked() {
		return
	}
	c.scanCell(&p.Cells[0])
	c.scanCell(&p.Cells[1])
	p.SetMarked()
	c.marksAdded++
}

// scanCell marks the references a single cell carries, honoring the
// heart-indexed extra-trace table and the per-cell payload trace bits
// (spec.md §4.8, cell scanning).
func (c *Collector) scanCell(cell *Cell) {
	if !cell.IsReadable() {
		return
	}
	if cell.Heart().TracesExtra() && cell.Extra.Ref != nil {
		c.markRef(&cell.Extra.Ref)
	}
	if cell.TracesOne() && cell.One.Ref != nil {
		c.markRef(&cell.One.Ref)
	}
	if cell.TracesTwo() && cell.Two.Ref != nil {
		c.markRef(&cell.Two.Ref)
	}
}

// drain runs the propagation loop until the queue is empty, scanning
// one array's element cells per iteration.
func (c *Collector) drain() {
	for len(c.queue) > 0 {
		n := len(c.queue)
		s := c.queue[n-1]
		c.queue = c.queue[:n-1]
		if s.Dynamic {
			if s.Buffer == nil {
				continue
			}
			cells := s.Buffer.CellSlice()
			for i := range cells {
				c.scanCell(&cells[i])
			}
			continue
		}
		c.scanCell(&s.Content)
	}
}

// markRoots performs the root enumeration of spec.md §4.8, steps 1-7.
func (c *Collector) markRoots() {
	// Step 1: built-in type-descriptor and library patches. corevm
	// does not implement a datatype dispatch table (out of scope per
	// spec.md §1); nothing to mark here.

	// Step 2: thrown value / label slots.
	if c.rt.Thrown != nil {
		c.scanCell(c.rt.Thrown)
	}
	if c.rt.ThrownLabel != nil {
		c.scanCell(c.rt.ThrownLabel)
	}

	// Step 3: root stubs, scanned across every stub pool segment.
	c.rt.stubPool.forEachUnit(func(s *Stub) {
		if s.Live() && s.IsRoot() {
			c.markRootedStub(s)
		}
	})

	// Step 4: the data stack.
	c.rt.Stack.forEachLive(c.scanCell)

	// Step 5: the lifeguard registry.
	c.rt.Guard.forEachLive(c.markRootedStub, c.scanCell, c.markPairing)

	// Step 6: every allocated call level.
	c.rt.levels.forEachAllocated(func(l *Level) {
		if l.Feed != nil {
			if l.Feed.Source != nil {
				c.markRef(&l.Feed.Source)
			}
			c.scanCell(&l.Feed.Current)
		}
		if l.Binding != nil {
			c.markRef(&l.Binding)
		}
		c.scanCell(&l.Output)
		c.scanCell(&l.Scratch)
		c.scanCell(&l.Spare)
		for i := 0; i < l.Fulfilled && i < len(l.Args); i++ {
			c.scanCell(&l.Args[i])
		}
	})
	c.drain()

	// Step 7: iterated module patch sweep. corevm does not implement
	// the interned-symbol/module system this step exists for (out of
	// scope per spec.md §1); patchSweepHook lets a datatype
	// implementation opt in without the collector depending on one.
	if c.rt.patchSweepHook != nil {
		for c.rt.patchSweepHook(c.rt) {
			c.drain()
		}
	}
}

// RecycleCore runs one collection pass. If sweeplist is non-nil, swept
// stubs are appended to it instead of being freed (spec.md §4.8:
// "sweeplist mode ... used by diagnostics"). Returns the number of
// objects reclaimed (or that would be reclaimed, in sweeplist mode).
//
// Re-entrant calls are coalesced: a call arriving while a collection
// is already running sets a deferred flag and returns 0 (spec.md §7).
func (rt *Runtime) RecycleCore(sweeplist *[]*Stub) (int, error) {
	c := rt.collector
	if c.recycling {
		c.deferredRecycle = true
		return 0, nil
	}
	c.recycling = true
	defer func() { c.recycling = false }()

	c.markRoots()

	swept := 0
	rt.stubPool.forEachUnit(func(s *Stub) {
		// Free units and the single canon diminished sentinel are not
		// sweep's concern: canon diminished is permanently marked and
		// never killed (spec.md §4.8: "whose marked bit is permanently
		// set").
		if s.state == stateFree || s.state == stateDiminishedCanon {
			return
		}
		if !s.Managed() {
			// spec.md §4.8 sweep step: "if unmanaged, assert that it
			// is not marked [tolerated here rather than fatal, per the
			// open-question resolution in SPEC_FULL.md §E.4, since
			// root stubs are deliberately marked during step 3 above],
			// and if it is the non-canon diminished sentinel, return
			// it to the pool."
			if s.Marked() {
				s.ClearMarked()
				c.marksCleared++
			}
			if s.state == stateDiminishedNonCanon {
				s.kill(rt)
			}
			return
		}
		if s.Marked() {
			s.ClearMarked()
			c.marksCleared++
			return
		}
		// Unreachable managed stub: garbage.
		if sweeplist != nil {
			*sweeplist = append(*sweeplist, s)
			swept++
			return
		}
		if !s.Diminished() {
			s.diminish(rt)
		}
		s.kill(rt)
		swept++
	})

	rt.pairingPool.forEachUnit(func(p *Pairing) {
		if p.state != stateLive || !p.Managed() {
			return
		}
		if p.Marked() {
			p.ClearMarked()
			c.marksCleared++
			return
		}
		if sweeplist == nil {
			rt.pairingPool.release(p)
		}
		swept++
	})

	c.depletion = c.ballast
	if c.torture {
		c.depletion = 0
	}

	if c.deferredRecycle {
		c.deferredRecycle = false
		return swept, nil
	}
	return swept, nil
}

// Recycle runs one collection pass, freeing unreachable objects.
func (rt *Runtime) Recycle() (int, error) {
	return rt.RecycleCore(nil)
}

// RecycleDouble runs two collection passes back to back and panics if
// the second reclaims anything — used by tests to assert idempotency
// (spec.md §8 P7, §4.8 "double-recycle mode"). It returns the first
// pass's count, or the error of either pass.
func (rt *Runtime) RecycleDouble() (first int, err error) {
	first, err = rt.Recycle()
	if err != nil {
		return first, err
	}
	second, err := rt.Recycle()
	if err != nil {
		return first, err
	}
	if second != 0 {
		panic("corevm: second recycle pass reclaimed objects")
	}
	return first, nil
}
