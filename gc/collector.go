// Package gc implements the incremental, copying semi-space collector:
// allocation, the forwarding/chase engine, incremental scanning, the
// read/write barriers, and the stats/diagnostic surface. It plays the role
// TinyGo's runtime/gc_blocks.go plays for its mark/sweep block allocator —
// same shape (alloc tries a fast path, falls back to running the
// collector, object headers carry tag + field-count bits) — rewired for a
// Baker-style copying algorithm with explicit, host-declared roots instead
// of conservative stack scanning.
package gc

import (
	"sync"

	"github.com/tinygo-org/ssgc/config"
	"github.com/tinygo-org/ssgc/header"
	"github.com/tinygo-org/ssgc/roots"
	"github.com/tinygo-org/ssgc/space"
)

// ObjPtr is an opaque heap object address. The zero value, Null, represents
// the absence of an object (a null field, an empty root slot).
type ObjPtr uintptr

// Null is the zero ObjPtr.
const Null ObjPtr = 0

// Collector is the process-wide singleton described in §5: every entry
// point takes the same mutex for its entire duration, so only one mutator
// operation runs against the heap at a time.
type Collector struct {
	mu sync.Mutex

	masks        header.Masks
	maxAllocSize uintptr

	toSpace   *space.Space
	fromSpace *space.Space // nil when idle

	// next, scan, and limit are only meaningful relative to toSpace; see
	// spec.md §3 for their meaning in each of the idle/in-cycle states.
	next, scan, limit uintptr

	// fromNext/fromLimit record what next/limit were for the space that is
	// now fromSpace, at the moment it was evacuated. They bound the valid
	// object ranges inside fromSpace (mirroring toSpace's own
	// [start,next) + [limit,end) layout) purely for the diagnostic dumper;
	// the collector itself never needs to walk from-space object-by-object.
	fromNext, fromLimit uintptr

	gcInProgress bool

	roots roots.Stack

	stats Stats
}

// New constructs a collector sized by cfg.MaxAllocSize and using cfg's
// header bitmasks. The collector owns the returned to-space until Close is
// called.
func New(cfg config.Tunables) (*Collector, error) {
	to, err := space.New(cfg.MaxAllocSize)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		masks:        header.Masks{Tag: cfg.TagMask, Field: cfg.FieldCountMask},
		maxAllocSize: cfg.MaxAllocSize,
		toSpace:      to,
	}
	c.next = to.Start()
	c.scan = to.Start()
	c.limit = to.End()
	return c, nil
}

// Close releases the collector's space(s). It is the only explicit
// shutdown hook this collector needs (§5: "teardown is implicit at process
// exit" for the global singleton; Close exists for hosts/tests that want to
// release memory without exiting the process).
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.fromSpace != nil {
		err = c.fromSpace.Drop()
		c.fromSpace = nil
	}
	if e := c.toSpace.Drop(); e != nil && err == nil {
		err = e
	}
	return err
}

// alignUp rounds n up to the heap alignment.
func alignUp(n uintptr) uintptr {
	return (n + space.Alignment - 1) &^ (space.Alignment - 1)
}

// Alloc implements §4.4: the allocator plus cycle controller. The returned
// region is uninitialized; per invariant 6, zeroing it is the caller's
// responsibility, not the collector's.
func (c *Collector) Alloc(bytes uintptr) ObjPtr {
	size := alignUp(bytes)
	if size < bytes {
		fatal("out of memory") // size calculation overflowed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gcInProgress {
		// Fast path: strict less-than, matching the source's comparison
		// exactly. Since next, size and limit are all multiples of
		// space.Alignment, a request that would exactly fill [next, limit)
		// fails this test and starts a cycle instead, so the fast path
		// always leaves at least Alignment bytes below limit unused.
		if c.next+size < c.limit {
			p := c.next
			c.next += size
			c.recordAlloc(size)
			return ObjPtr(p)
		}
		c.beginCycle()
	}

	// In-cycle allocation: reserve from the high end (§3: "[limit, end) is
	// newly-allocated-during-cycle, growing downward").
	if c.toSpace == nil || c.limit < size || c.limit-size < c.next {
		fatal("out of memory")
	}
	c.limit -= size
	p := c.limit
	c.recordAlloc(size)

	// Every in-cycle allocation funds scanning proportional to its size —
	// the incremental work contract that guarantees the cycle finishes no
	// later than when to-space fills (§4.4 step 5).
	c.runGC(size)

	return ObjPtr(p)
}

func (c *Collector) recordAlloc(size uintptr) {
	c.stats.AllTimeAllocated += uint64(size)
	c.stats.AllTimeAllocatedObjs++
	if used := uint64(c.usedMemoryLocked()); used > c.stats.MaxUsed {
		c.stats.MaxUsed = used
	}
}

// beginCycle implements §4.5. It swaps to-space and from-space (allocating
// a fresh partner space for every cycle, since only one space exists while
// idle: runGC releases from-space when the previous cycle ends), resets the
// to-space cursors, and forwards every root
// so invariant 3 ("every root, after begin_cycle completes, points into
// to-space") holds before this call returns.
func (c *Collector) beginCycle() {
	c.gcInProgress = true
	c.stats.GCCycles++

	if c.fromSpace == nil {
		fresh, err := space.New(c.toSpace.Size())
		if err != nil {
			fatal("out of memory")
		}
		c.fromSpace = fresh
	}

	c.fromNext, c.fromLimit = c.next, c.limit
	c.toSpace, c.fromSpace = c.fromSpace, c.toSpace

	c.next = c.toSpace.Start()
	c.scan = c.toSpace.Start()
	c.limit = c.toSpace.End()

	c.roots.Each(func(slot roots.Slot) {
		*slot = uintptr(c.forward(ObjPtr(*slot)))
	})
}

// PushRoot declares slot as holding a live object pointer for the duration
// of the region the host is about to enter.
func (c *Collector) PushRoot(slot roots.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots.Push(slot)
}

// PopRoot retires the most recently pushed root. When Asserts is set, it
// fatally panics if slot doesn't match the top of the stack, catching
// unbalanced push/pop pairs emitted by a buggy host (§8 S6). Popping an
// already-empty stack is always fatal, regardless of Asserts (§5).
func (c *Collector) PopRoot(slot roots.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roots.Len() == 0 {
		fatal("pop_root: empty root stack")
	}
	balanced := c.roots.Pop(slot)
	if Asserts && !balanced {
		fatal("pop_root: unbalanced push/pop")
	}
}

// usedMemoryLocked returns the number of live bytes: the to-space
// bump-allocated/copied prefix [start, next) plus whatever sits in
// [limit, end), plus the entire from-space while a cycle is in progress.
// The [limit, end) term is usually empty, but objects allocated during a
// cycle are parked there and — per §4.7's design note — stay parked there
// even after the cycle ends, until the next cycle's forwarding pass copies
// them down into a fresh to-space. The from-space term matches the Rust
// source's used_memory(), which adds the whole from-space size while one
// exists: until the incremental scanner finishes, from-space still holds
// not-yet-forwarded live data that hasn't been freed. Must be called with
// c.mu held.
func (c *Collector) usedMemoryLocked() uintptr {
	used := (c.next - c.toSpace.Start()) + (c.toSpace.End() - c.limit)
	if c.fromSpace != nil {
		used += c.fromSpace.Size()
	}
	return used
}

// UsedMemory returns the number of bytes currently in use in to-space,
// including in-cycle allocations at the high end, plus the whole size of
// from-space while a cycle is in progress. Carried over from the
// Rust source's used_memory() (see SPEC_FULL.md §5).
func (c *Collector) UsedMemory() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedMemoryLocked()
}

// TotalMemory returns the size of to-space.
func (c *Collector) TotalMemory() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toSpace.Size()
}
