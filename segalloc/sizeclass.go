package segalloc

import (
	"math/bits"

	"github.com/cloudwego/wasmalloc/linmem"
)

const (
	// wordSize is the pointer-sized word of the 32-bit target. The last
	// word of every slot doubles as the intrusive free-list link while
	// the slot is free.
	wordSize = 4

	// BigPageSize is the page-group: the unit the big tier hands out and
	// requests from the host, and the ceiling of the small classes.
	BigPageSize = 4 * linmem.PageSize // 256KB = 2^18

	bigPageShift = 18

	// minClassShift is the exponent of the smallest slot (8 bytes): one
	// word for the free-list link plus at least one data byte.
	minClassShift = 3

	// numSmallClasses covers slot sizes 8B..128KB, strictly below a
	// page-group.
	numSmallClasses = bigPageShift - minClassShift

	// numBigClasses covers 1..2^14 page-groups; 2^14 page-groups is the
	// whole 32-bit address space.
	numBigClasses = 15
)

// classBig marks a request that is served in whole page-groups.
const classBig = -1

// classify maps a (size, align) request to its small class and slot size,
// or to classBig when the rounded slot reaches a page-group. The mapping
// is the single source of truth: Alloc, Resize and Free all recompute it
// from the caller-supplied values, so the allocator stores no per
// allocation metadata.
func classify(size, align uint32) (class int, slotSize uint32, err error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 || align > BigPageSize {
		return 0, 0, ErrBadAlign
	}
	// Reserve the link word even for zero-size requests.
	actual := uint64(size) + wordSize
	if uint64(align) > actual {
		actual = uint64(align)
	}
	slot := nextPow2(actual)
	if slot >= BigPageSize {
		return classBig, 0, nil
	}
	if slot < 1<<minClassShift {
		slot = 1 << minClassShift
	}
	return bits.Len64(slot-1) - minClassShift, uint32(slot), nil
}

// bigClass maps a byte length to its big class index and span in
// page-groups. The span is the exact ceiling rounded up to a power of two.
func bigClass(size uint32) (class int, pages uint32, err error) {
	p := nextPow2((uint64(size) + BigPageSize - 1) / BigPageSize)
	b := bits.Len64(p) - 1
	if b >= numBigClasses {
		return 0, 0, ErrOutOfMemory
	}
	return b, uint32(p), nil
}

// nextPow2 rounds v up to a power of two; 0 and 1 round to 1.
func nextPow2(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len64(v-1)
}
