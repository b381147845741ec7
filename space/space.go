// Package space implements a semi-space: a contiguous, page-backed byte
// range that the collector either copies objects into (to-space) or
// evacuates from (from-space). TinyGo's runtime/gc_blocks.go grows its heap
// with a single big slab handed to it by the target's linker script; since
// this collector is hosted rather than freestanding, each space instead owns
// its own anonymous mmap, released with munmap the same way the runtime
// would hand memory back if it ever shrank the heap.
package space

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Alignment is the heap alignment: the max of the header word's natural
// alignment and 8, which on every platform this collector targets is just 8.
const Alignment = 8

// Space is an aligned byte range [start, start+size). The zero value is a
// null/empty space, matching a zero-size request in New.
type Space struct {
	mem   []byte
	start uintptr
}

// New allocates a semi-space of the requested size, rounded down to
// Alignment (but never below 1 byte for a nonzero request). A zero request
// yields a null space that Contains nothing and Drop does nothing to.
func New(size uintptr) (*Space, error) {
	if size == 0 {
		return &Space{}, nil
	}
	rounded := (size / Alignment) * Alignment
	if rounded == 0 {
		rounded = 1
	}
	mem, err := unix.Mmap(-1, 0, int(rounded), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("space: mmap %d bytes: %w", rounded, err)
	}
	return &Space{mem: mem, start: uintptr(unsafe.Pointer(&mem[0]))}, nil
}

// Start returns the first address in the space, or 0 for a null space.
func (s *Space) Start() uintptr {
	return s.start
}

// End returns the address just past the last byte in the space, or 0 for a
// null space.
func (s *Space) End() uintptr {
	if s.mem == nil {
		return 0
	}
	return s.start + uintptr(len(s.mem))
}

// Size returns End()-Start().
func (s *Space) Size() uintptr {
	return s.End() - s.start
}

// Contains reports whether p lies in [Start, End). The null pointer is
// never contained, even in a null space.
func (s *Space) Contains(p uintptr) bool {
	if p == 0 || s.mem == nil {
		return false
	}
	return p >= s.start && p < s.End()
}

// Bytes returns a []byte view of [from, to) within the space, for the
// diagnostic heap fingerprint. Both bounds must lie within the space.
func (s *Space) Bytes(from, to uintptr) []byte {
	return s.mem[from-s.start : to-s.start]
}

// Drop releases the space's memory. It is a no-op on a null space. The
// caller must not use the Space afterwards; the collector calls Drop
// exactly once per space, at cycle end (from-space) or shutdown (to-space).
func (s *Space) Drop() error {
	if s.mem == nil {
		return nil
	}
	mem := s.mem
	s.mem = nil
	s.start = 0
	return unix.Munmap(mem)
}
