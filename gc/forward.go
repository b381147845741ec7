package gc

import (
	"unsafe"

	"github.com/tinygo-org/ssgc/header"
)

func loadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func storeWord(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// firstFieldAddr is where a forwarded from-space object's copy address is
// stashed (§3 invariant 5, §4.6). It also doubles as "the field the debug
// dumper renders specially for a forwarded object" (§6.1).
func firstFieldAddr(p uintptr) uintptr {
	return header.FieldAddr(p, 0)
}

// isForwarded reports whether p — which must lie in from-space — has
// already been copied to to-space.
func (c *Collector) isForwarded(p uintptr) bool {
	return c.toSpace.Contains(loadWord(firstFieldAddr(p)))
}

// forward implements §4.6's forward(p) entry point.
func (c *Collector) forward(p ObjPtr) ObjPtr {
	addr := uintptr(p)
	if addr == 0 || c.fromSpace == nil || !c.fromSpace.Contains(addr) {
		return p
	}

	first := loadWord(firstFieldAddr(addr))
	if c.toSpace.Contains(first) {
		// Already forwarded.
		return ObjPtr(first)
	}

	c.chase(p)

	fwd := loadWord(firstFieldAddr(addr))
	if Asserts && !c.toSpace.Contains(fwd) {
		fatal("forward postcondition violated for %#x", addr)
	}
	return ObjPtr(fwd)
}

// chase implements §4.6's "semi-DFS": it copies p and, greedily, one
// uncopied child per step, to keep the scan queue shallow. The "last
// uncopied child wins" selection is intentional (preserved from spec.md)
// and gives a deterministic traversal order that the debug dumper can make
// visible.
func (c *Collector) chase(start ObjPtr) {
	p := uintptr(start)
	for p != 0 {
		tag, ok := header.DecodeTag(c.masks, p)
		if !ok {
			fatal("unknown tag bits at %#x", p)
		}
		fieldCount := header.FieldCount(c.masks, p)
		size := header.Size(c.masks, p)
		alignedSize := alignUp(size)

		if c.next+alignedSize > c.limit {
			fatal("out of memory")
		}
		dst := c.next
		c.next += alignedSize
		copyWords(dst, p, size)

		var next uintptr
		for i := uintptr(0); i < fieldCount; i++ {
			if header.RawField(tag, i) {
				// §3: fn[0] is a raw pointer and must never be traced.
				continue
			}
			f := loadWord(header.FieldAddr(p, i))
			if c.fromSpace.Contains(f) && !c.toSpace.Contains(loadWord(firstFieldAddr(f))) {
				next = f // last such child wins
			}
		}

		// Install the forwarding pointer into the ORIGINAL object's first
		// field; the copy's fields still point into from-space and are
		// fixed up later by the incremental scanner or a read barrier.
		storeWord(firstFieldAddr(p), dst)

		p = next
	}
}

// copyWords copies n bytes (rounded up to a whole number of words, which is
// safe since both header and field slots are word-sized) from src to dst.
func copyWords(dst, src, n uintptr) {
	words := (n + header.PointerSize - 1) / header.PointerSize
	for i := uintptr(0); i < words; i++ {
		off := i * header.PointerSize
		storeWord(dst+off, loadWord(src+off))
	}
}
