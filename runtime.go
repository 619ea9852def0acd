// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import (
	"fmt"
	"os"
)

// Runtime is the process-wide context design notes §9 calls for in
// place of package-level globals: every pool, the data stack, the
// lifeguard registry, the collector, and the heap counter are fields
// here, explicitly threaded to every operation rather than reached
// through package state.
type Runtime struct {
	_ noCopy

	Checked bool

	heap      *Heap
	sizeTable *sizeClassTable
	bytePools *bytePools

	stubPool    *stubPool
	pairingPool *pairingPool
	levels      *levelPool
	feeds       *feedPool

	Stack *DataStack
	Guard *Lifeguard

	collector       *Collector
	canonDiminished *Stub

	// Thrown and ThrownLabel are the evaluator's current thrown-value
	// slots (spec.md §4.8 step 2). The evaluator itself is out of
	// scope; these exist purely as root-enumeration hook points a
	// caller may set.
	Thrown      *Cell
	ThrownLabel *Cell

	patchSweepHook func(rt *Runtime) bool

	growthLRU    [growthLRUSize]*DynBuffer
	growthLRUPos int

	// manuals is the per-process list of allocated-but-unmanaged
	// stubs (spec.md §4.3). Modeled directly as a slice of pointers
	// rather than as an array-flavored stub holding raw pointers,
	// since nothing requires manuals itself to be collector-visible —
	// it exists purely for Shutdown's leak check (spec.md §4.9, §8 P6).
	manuals []*Stub

	tick uint64

	alwaysMalloc bool
}

// Option configures Startup, following the functional-options shape
// used throughout the pool's dependency set.
type Option func(*startupConfig)

type startupConfig struct {
	poolScale    int
	quota        uint64
	checked      bool
	stackInitial int
	stackMax     int
	stackPoison  bool
	ballast      uint64
}

// WithPoolScale multiplies the default segment sizes for the stub and
// pairing pools (spec.md §6: startup(pool_scale)).
func WithPoolScale(scale int) Option {
	return func(c *startupConfig) { c.poolScale = scale }
}

// WithHeapQuota sets the heap's usage_limit (0 means unlimited).
func WithHeapQuota(quota uint64) Option {
	return func(c *startupConfig) { c.quota = quota }
}

// WithChecked enables checked-build behavior: size-prefixed heap
// allocations, corrupted-in-checked-builds diminish semantics,
// lifeguard ordering assertions, and fatal invariant panics.
func WithChecked(checked bool) Option {
	return func(c *startupConfig) { c.checked = checked }
}

// WithDataStack configures the initial and maximum cell capacity of
// the data stack, and whether dropped cells are poisoned.
func WithDataStack(initialCells, maxCells int, poison bool) Option {
	return func(c *startupConfig) { c.stackInitial = initialCells; c.stackMax = maxCells; c.stackPoison = poison }
}

// WithBallast sets the collector's depletion budget between
// collections (spec.md §4.8, Glossary: "depletion/ballast").
func WithBallast(ballast uint64) Option {
	return func(c *startupConfig) { c.ballast = ballast }
}

const (
	defaultStackInitialCells = 64
	defaultStackMaxCells     = 1 << 20
	defaultBallast           = 4 << 20 // 4 MiB between collections
)

// Startup constructs a Runtime (spec.md §6: startup(pool_scale)).
// RECYCLE_TORTURE=1 and ALWAYS_MALLOC=1 are consulted here if set,
// matching the environment variables spec.md §6 documents.
func Startup(opts ...Option) (*Runtime, error) {
	cfg := startupConfig{
		poolScale:    1,
		stackInitial: defaultStackInitialCells,
		stackMax:     defaultStackMaxCells,
		ballast:      defaultBallast,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := &Runtime{Checked: cfg.checked}
	rt.alwaysMalloc = os.Getenv("ALWAYS_MALLOC") == "1"

	rt.heap = NewHeap(cfg.quota, cfg.checked)
	rt.sizeTable = newSizeClassTable(buildSizeClasses())
	rt.bytePools = newBytePools(rt.heap, rt.sizeTable)

	stubUnits, pairUnits := stubSegmentUnits*cfg.poolScale, pairingSegmentUnits*cfg.poolScale
	if rt.alwaysMalloc {
		stubUnits, pairUnits = 1, 1
	}
	rt.stubPool = newStubPool(rt.heap, cfg.checked, stubUnits)
	rt.pairingPool = newPairingPool(rt.heap, cfg.checked, pairUnits)
	rt.levels = newLevelPool(rt.heap)
	rt.feeds = newFeedPool(rt.heap)

	rt.Guard = rt.NewLifeguard()

	ballast := cfg.ballast
	if os.Getenv("RECYCLE_TORTURE") == "1" {
		ballast = 0
	}
	rt.collector = newCollector(rt, ballast)
	rt.collector.torture = ballast == 0

	stack, err := rt.NewDataStack(cfg.stackInitial, cfg.stackMax, cfg.stackPoison)
	if err != nil {
		return nil, err
	}
	rt.Stack = stack

	canon, err := rt.stubPool.allocate(0)
	if err != nil {
		return nil, err
	}
	canon.state = stateDiminishedCanon
	canon.flags = stubMarked
	rt.canonDiminished = canon

	return rt, nil
}

// AllocStub pops a stub from the pool, marks it unmanaged, and
// records it on the manuals list (spec.md §4.3: alloc_stub()).
func (rt *Runtime) AllocStub(flavor Flavor) (*Stub, error) {
	rt.tick++
	s, err := rt.stubPool.allocate(rt.tick)
	if err != nil {
		return nil, err
	}
	s.Flavor = flavor
	rt.manuals = append(rt.manuals, s)
	return s, nil
}

// AllocPairing pops a pairing from the pool, validating its initial
// cell contents against the non-nesting restriction in checked builds
// (spec.md §9 open question, resolved by construction).
func (rt *Runtime) AllocPairing(first, second Cell) (*Pairing, error) {
	if rt.Checked {
		checkNonNesting(&first)
		checkNonNesting(&second)
	}
	p, err := rt.pairingPool.allocate()
	if err != nil {
		return nil, err
	}
	p.Cells[0], p.Cells[1] = first, second
	return p, nil
}

// AllocLevel pops a call-level record from the pool (spec.md §4.2: the
// evaluator's per-call frame). The evaluator itself is out of scope;
// this and AllocFeed exist so the collector's root enumeration (spec.md
// §4.8 step 6) has real records to walk rather than an always-empty
// pool.
func (rt *Runtime) AllocLevel() (*Level, error) {
	return rt.levels.allocate()
}

// ReleaseLevel returns a call-level record to the pool. Callers must
// clear any references they set on Feed/Binding/Args themselves if
// those objects should become collectible immediately rather than at
// the next collection.
func (rt *Runtime) ReleaseLevel(l *Level) {
	rt.levels.release(l)
}

// AllocFeed pops a feed record from the pool (spec.md §4.2/§4.8 step 6).
func (rt *Runtime) AllocFeed() (*Feed, error) {
	return rt.feeds.allocate()
}

// ReleaseFeed returns a feed record to the pool.
func (rt *Runtime) ReleaseFeed(f *Feed) {
	rt.feeds.release(f)
}

// Manage sets the managed bit and removes s from the manuals list via
// an O(1) swap-with-last (spec.md §4.3: manage(stub)).
func (rt *Runtime) Manage(s *Stub) {
	s.flags |= stubManaged
	for i, m := range rt.manuals {
		if m == s {
			last := len(rt.manuals) - 1
			rt.manuals[i] = rt.manuals[last]
			rt.manuals = rt.manuals[:last]
			return
		}
	}
}

// Unmanage clears the managed bit and re-adds s to the manuals list.
// Provided for symmetry with Manage; spec.md §6 lists unmanage(obj)
// among the exposed operations without further constraint.
func (rt *Runtime) Unmanage(s *Stub) {
	s.flags &^= stubManaged
	rt.manuals = append(rt.manuals, s)
}

// FreeUnmanaged verifies s is not managed, removes it from the
// manuals list, and runs diminish+kill (spec.md §4.3:
// free_unmanaged(stub)).
func (rt *Runtime) FreeUnmanaged(s *Stub) error {
	if s.Managed() {
		return ErrInvalidRoot
	}
	for i, m := range rt.manuals {
		if m == s {
			last := len(rt.manuals) - 1
			rt.manuals[i] = rt.manuals[last]
			rt.manuals = rt.manuals[:last]
			break
		}
	}
	s.diminish(rt)
	s.kill(rt)
	return nil
}

// DiminishUnmanaged runs only the diminish half of reclamation on an
// unmanaged stub, releasing its cleanup hook and buffer but leaving its
// pool unit allocated in the non-canon-diminished state rather than
// killing it outright (spec.md §8's diminished-canonicalization
// scenario: "free A via explicit diminish, without killing"). A later
// Recycle pass both canonicalizes any live reference still pointing at
// s and returns s's unit to the pool.
func (rt *Runtime) DiminishUnmanaged(s *Stub) error {
	if s.Managed() {
		return ErrInvalidRoot
	}
	for i, m := range rt.manuals {
		if m == s {
			last := len(rt.manuals) - 1
			rt.manuals[i] = rt.manuals[last]
			rt.manuals = rt.manuals[:last]
			break
		}
	}
	s.diminish(rt)
	return nil
}

// Shutdown runs the ordered teardown of spec.md §4.9: one final
// collection, leak checks on the lifeguard/manuals lists, releasing
// every pool segment, and asserting the heap byte counter returned to
// zero.
func (rt *Runtime) Shutdown() error {
	if _, err := rt.Recycle(); err != nil {
		return err
	}

	if rt.Checked {
		if rt.Guard.Len() != 0 {
			panic("corevm: shutdown with live lifeguard entries")
		}
		if len(rt.collector.queue) != 0 {
			panic("corevm: shutdown with a non-empty mark queue")
		}
		if len(rt.manuals) != 0 {
			oldest := rt.manuals[0]
			for _, m := range rt.manuals[1:] {
				if m.allocTick < oldest.allocTick {
					oldest = m
				}
			}
			panic(fmt.Sprintf("corevm: shutdown with %d leaked unmanaged stub(s), oldest at tick %d", len(rt.manuals), oldest.allocTick))
		}
	}

	rt.heap.unaccount(rt.stubPool.segmentBytes())
	rt.heap.unaccount(rt.pairingPool.segmentBytes())
	rt.heap.unaccount(rt.levels.segmentBytes())
	rt.heap.unaccount(rt.feeds.segmentBytes())
	rt.stubPool.segments = nil
	rt.pairingPool.segments = nil
	rt.levels.segments = nil
	rt.feeds.segments = nil

	if rt.Checked && rt.heap.Bytes() != 0 {
		panic(fmt.Sprintf("corevm: shutdown leaked %d heap bytes", rt.heap.Bytes()))
	}
	return nil
}
