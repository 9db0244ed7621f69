// Package segalloc implements a segregated-fit allocator for a 32-bit
// linear memory that can only grow, never shrink, and only by asking the
// host for whole native pages.
//
// Requests are rounded to power-of-two size classes. Small classes (below
// one page-group) are served from a per-class intrusive free list, then by
// bumping a per-class frontier through the class's current page-group. The
// big tier serves whole power-of-two page-group spans from its own free
// lists and is the only code that calls the host growth primitive.
//
// The allocator keeps no per-allocation metadata: every operation
// recomputes the size class from the caller-supplied (size, align) pair,
// which therefore must match the values the block was allocated with.
// Allocator is not safe for concurrent use.
package segalloc

import (
	"errors"
	"fmt"
	"math"

	"github.com/cloudwego/wasmalloc/linmem"
)

var (
	// ErrOutOfMemory reports that the host cannot commit the pages a
	// request needs, or that the rounded request overflows the 32-bit
	// address space. It is fatal to the call; the allocator never retries.
	ErrOutOfMemory = errors.New("segalloc: out of memory")

	// ErrBadAlign reports an alignment that is not a power of two or is
	// larger than a page-group.
	ErrBadAlign = errors.New("segalloc: align must be a power of two no larger than a page-group")

	// ErrMoveRequired reports that Remap cannot keep the address and the
	// caller must allocate-copy-free itself.
	ErrMoveRequired = errors.New("segalloc: remap requires moving the allocation")
)

// Allocator carves a linear memory into power-of-two slots. Construct one
// per memory with New; the zero value is not usable.
type Allocator struct {
	mem linmem.Memory

	// freeHeads and bumps are the per-class free-list heads and bump
	// frontiers of the small tier. A zero head is an empty list; a bump
	// frontier on a page-group boundary has no capacity left.
	freeHeads [numSmallClasses]uint32
	bumps     [numSmallClasses]uint32

	// bigHeads are the free-list heads of the big tier, indexed by the
	// log2 of the span in page-groups.
	bigHeads [numBigClasses]uint32

	// frontier is the high-water mark of memory ever handed out. It is
	// page-group aligned and never decreases.
	frontier uint32
}

// New returns an allocator managing mem above heapBase. heapBase marks the
// end of whatever the embedder reserved at startup (data segments, stack);
// it is rounded up to a page-group boundary, and never below one so that
// address 0 stays free to mean "no block".
func New(mem linmem.Memory, heapBase uint32) (*Allocator, error) {
	if mem == nil {
		return nil, fmt.Errorf("segalloc: nil memory")
	}
	frontier := (uint64(heapBase) + BigPageSize - 1) &^ (BigPageSize - 1)
	if frontier == 0 {
		frontier = BigPageSize
	}
	if frontier > math.MaxUint32 {
		return nil, fmt.Errorf("segalloc: heap base %d leaves no address space", heapBase)
	}
	return &Allocator{mem: mem, frontier: uint32(frontier)}, nil
}

// Alloc returns the address of a block of at least size bytes aligned to
// align. align 0 means no requirement. The returned address is never 0.
// Callers must pass the same (size, align) back to Resize, Remap and Free.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	c, slot, err := classify(size, align)
	if err != nil {
		return 0, err
	}
	if c == classBig {
		return a.allocBig(size)
	}
	return a.allocSmall(c, slot)
}

// Free recycles the block at addr onto the free list of its class, which
// is recomputed from (size, align). Freeing addr 0 is a no-op. Panics if
// the arguments cannot describe a block this allocator returned.
func (a *Allocator) Free(addr, size, align uint32) {
	if addr == 0 {
		return
	}
	c, slot, err := classify(size, align)
	if err != nil {
		panic("segalloc: free with invalid align")
	}
	if c == classBig {
		a.freeBig(addr, size)
		return
	}
	if addr%slot != 0 {
		panic("segalloc: misaligned free")
	}
	a.storeWord(addr+slot-wordSize, a.freeHeads[c])
	a.freeHeads[c] = addr
}

// Resize reports whether the block at addr can hold newSize bytes without
// moving: true iff (oldSize, align) and (newSize, align) round to the same
// size class. It is a pure admissibility check and touches no memory.
func (a *Allocator) Resize(addr, oldSize, align, newSize uint32) bool {
	oldC, _, err := classify(oldSize, align)
	if err != nil {
		return false
	}
	newC, _, err := classify(newSize, align)
	if err != nil {
		return false
	}
	if oldC == classBig && newC == classBig {
		ob, _, err := bigClass(oldSize)
		if err != nil {
			return false
		}
		nb, _, err := bigClass(newSize)
		return err == nil && ob == nb
	}
	return oldC == newC
}

// Remap returns addr unchanged when the block can hold newSize in place,
// and ErrMoveRequired otherwise; the caller then does allocate-copy-free
// itself. Content is never moved or altered.
func (a *Allocator) Remap(addr, oldSize, align, newSize uint32) (uint32, error) {
	if a.Resize(addr, oldSize, align, newSize) {
		return addr, nil
	}
	return 0, ErrMoveRequired
}

// Frontier returns the high-water mark of memory ever handed out. It is
// non-decreasing for the life of the allocator.
func (a *Allocator) Frontier() uint32 {
	return a.frontier
}

func (a *Allocator) allocSmall(c int, slot uint32) (uint32, error) {
	// Freed slots are preferred over fresh bump space, so the never-used
	// tail of a page-group stays bounded by one class's worth.
	if head := a.freeHeads[c]; head != 0 {
		a.freeHeads[c] = a.loadWord(head + slot - wordSize)
		return head, nil
	}
	// A bump frontier off a page-group boundary still has room: the group
	// size is an exact multiple of every small slot size.
	if bump := a.bumps[c]; bump%BigPageSize != 0 {
		a.bumps[c] = bump + slot
		return bump, nil
	}
	base, err := a.allocBig(1) // exactly one fresh page-group
	if err != nil {
		return 0, err
	}
	a.bumps[c] = base + slot
	return base, nil
}

func (a *Allocator) allocBig(size uint32) (uint32, error) {
	b, pages, err := bigClass(size)
	if err != nil {
		return 0, err
	}
	span := uint64(pages) * BigPageSize
	if head := a.bigHeads[b]; head != 0 {
		a.bigHeads[b] = a.loadWord(head + uint32(span) - wordSize)
		return head, nil
	}
	end := uint64(a.frontier) + span
	if end > math.MaxUint32 {
		return 0, ErrOutOfMemory
	}
	if committed := uint64(a.mem.Size()); end > committed {
		delta := (end - committed + linmem.PageSize - 1) / linmem.PageSize
		if _, ok := a.mem.Grow(uint32(delta)); !ok {
			// Nothing changed; the caller may free memory and retry.
			return 0, ErrOutOfMemory
		}
	}
	addr := a.frontier
	a.frontier = uint32(end)
	return addr, nil
}

func (a *Allocator) freeBig(addr, size uint32) {
	b, pages, err := bigClass(size)
	if err != nil {
		panic("segalloc: free beyond the largest big class")
	}
	if addr%BigPageSize != 0 {
		panic("segalloc: misaligned free")
	}
	tail := uint64(addr) + uint64(pages)*BigPageSize - wordSize
	if tail > math.MaxUint32 {
		panic("segalloc: freed span exceeds the address space")
	}
	a.storeWord(uint32(tail), a.bigHeads[b])
	a.bigHeads[b] = addr
}

func (a *Allocator) loadWord(addr uint32) uint32 {
	v, ok := a.mem.ReadUint32Le(addr)
	if !ok {
		panic("segalloc: free-list link out of bounds")
	}
	return v
}

func (a *Allocator) storeWord(addr, v uint32) {
	if !a.mem.WriteUint32Le(addr, v) {
		panic("segalloc: free-list link out of bounds")
	}
}
