// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

// Size classes for the byte-class pools that back dynamic stub
// buffers (spec.md §4.2: "an array of ~27 pools, each characterized by
// (unit_width, units_per_segment)... sizes exceeding the largest pool
// fall through to the heap allocator").
//
// Grounded on _examples/cloudfly-readgo/runtime/msize.go's documented
// approach: classes are computed, not hand-listed, to bound waste from
// rounding an allocation up to its class (the source's "wastes at most
// 12.5%" commentary) and the unit count per segment is chosen so
// chopping a segment into units wastes little of the segment itself.
// The starting geometry below the smallest teacher tier is finer than
// iobuf's 12-tier progression because small fixed headers (a two-cell
// stub's dynamic buffer for a short symbol, say) are common and a 4x
// jump wastes too much; from BufferSizePico up, corevm's classes are
// the BufferSizePico..BufferSizeGreat tier constants, copied from
// iobuf into buffers.go, as the coarse end of the table.
const (
	minSizeClass = 8
	numSizeClasses = 27
	maxSegmentBytes = 32 * 1024 // target bytes per segment, waste-bounded
)

// sizeClass describes one pool's unit width and the number of units a
// freshly allocated segment should contain.
type sizeClass struct {
	width          int
	unitsPerSegment int
}

// buildSizeClasses constructs the size-class table at Startup. Classes
// double from minSizeClass until they reach the BufferSizePico tier
// (8 and 16 bytes), then follow the eight power-of-4 tiers up to
// BufferSizeGreat: ten classes in all. numSizeClasses only caps the
// table's length; the table does not reach it. Allocations larger than
// the top class fall through to the heap allocator directly.
func buildSizeClasses() []sizeClass {
	classes := make([]sizeClass, 0, numSizeClasses)
	w := minSizeClass
	for w < BufferSizePico && len(classes) < numSizeClasses-8 {
		classes = append(classes, sizeClass{width: w, unitsPerSegment: segmentUnits(w)})
		w *= 2
	}
	tiers := []int{
		BufferSizePico, BufferSizeNano, BufferSizeMicro, BufferSizeSmall,
		BufferSizeMedium, BufferSizeBig, BufferSizeLarge, BufferSizeGreat,
	}
	for _, t := range tiers {
		if len(classes) >= numSizeClasses {
			break
		}
		classes = append(classes, sizeClass{width: t, unitsPerSegment: segmentUnits(t)})
	}
	return classes
}

// segmentUnits picks a per-segment unit count that keeps a segment
// near maxSegmentBytes without going below 8 units, so very large
// classes still batch more than one unit per heap allocation.
func segmentUnits(width int) int {
	n := maxSegmentBytes / width
	if n < 8 {
		n = 8
	}
	return n
}

// sizeClassTable maps a requested byte size to the smallest size class
// that fits it, mirroring msize.go's SizeToClass lookup. Sizes larger
// than the last class return -1, signaling "not small" (spec.md §4.2:
// "sizes exceeding the largest pool fall through to the heap
// allocator").
type sizeClassTable struct {
	classes []sizeClass
}

func newSizeClassTable(classes []sizeClass) *sizeClassTable {
	return &sizeClassTable{classes: classes}
}

func (t *sizeClassTable) classFor(n int) int {
	for i, c := range t.classes {
		if n <= c.width {
			return i
		}
	}
	return -1
}
