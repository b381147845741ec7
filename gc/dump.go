package gc

import (
	"fmt"
	"io"

	"github.com/tinygo-org/ssgc/diag"
	"github.com/tinygo-org/ssgc/header"
)

// spaceLabel renders a Classification as the "space" token the §6.1 format
// uses: "from+OFF", "to+OFF", or "unmanaged", colorized per space.
func spaceLabel(cl Classification) string {
	switch cl.Space {
	case From:
		return diag.FromLabel(fmt.Sprintf("from+%d", cl.Offset))
	case To:
		return diag.ToLabel(fmt.Sprintf("to+%d", cl.Offset))
	default:
		return diag.UnmanagedLabel("unmanaged")
	}
}

// objectHeaderLine renders "<tag @ 0xADDR (space, N B)>" for the object at
// p, without descending into its fields.
func (c *Collector) objectHeaderLine(p uintptr) string {
	tagName := "?"
	if tag, ok := header.DecodeTag(c.masks, p); ok {
		tagName = tag.String()
	}
	size := header.Size(c.masks, p)
	return fmt.Sprintf("<%s @ %#x (%s, %d B)>", tagName, p, spaceLabel(c.classifyLocked(p)), size)
}

// dumpObject writes the full §6.1 rendering of the object at p, including
// one level of field expansion (nested Obj fields print their own header
// line followed by "{...}" rather than recursing further).
func (c *Collector) dumpObject(w io.Writer, p uintptr) {
	fmt.Fprint(w, c.objectHeaderLine(p))

	fieldCount := header.FieldCount(c.masks, p)
	if fieldCount == 0 {
		return
	}

	tag, _ := header.DecodeTag(c.masks, p)
	forwarded := c.fromSpace != nil && c.fromSpace.Contains(p) && c.isForwarded(p)

	fmt.Fprint(w, " { ")
	for i := uintptr(0); i < fieldCount; i++ {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		f := loadWord(header.FieldAddr(p, i))
		cl := c.classifyLocked(f)

		switch {
		case i == 0 && forwarded:
			fmt.Fprintf(w, "#%#x (%s, fwd)", f, spaceLabel(cl))
		case header.FieldKindAt(tag, fieldCount, i) == header.Raw:
			fmt.Fprintf(w, "#%#x (%s)", f, spaceLabel(cl))
		case header.FieldKindAt(tag, fieldCount, i) == header.Invalid:
			fmt.Fprintf(w, "#%#x (%s, **UNEXPECTED FIELD**)", f, spaceLabel(cl))
		case f == 0:
			fmt.Fprintf(w, "#0x0 (%s)", spaceLabel(cl))
		default:
			fmt.Fprint(w, c.objectHeaderLine(f))
			fmt.Fprint(w, " {...}")
		}
	}
	fmt.Fprint(w, " }")
}

// walkSpace calls fn for every object header starting at each aligned
// offset in [start, end), matching how finishMark walks to-space in
// TinyGo's gc_blocks.go sweep — except here the range is known to hold only
// live, header-aligned objects (copying leaves no dead space to skip over).
func (c *Collector) walkSpace(start, end uintptr, fn func(p uintptr)) {
	for p := start; p < end; {
		fn(p)
		p += alignUp(header.Size(c.masks, p))
	}
}

// HeapDumpTo writes the exact §6.1 textual dump of every live object in
// to-space to w. Carried over from the Rust source's Write-taking dumper
// (SPEC_FULL.md §5) so tests can capture the output as a string instead of
// only being able to observe it on stderr.
func (c *Collector) HeapDumpTo(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(w, "gc state:\n")
	fmt.Fprintf(w, "  cycle:        %d\n", c.stats.GCCycles)
	fmt.Fprintf(w, "  in progress:  %v\n", c.gcInProgress)
	fmt.Fprintf(w, "  to-space:     [%#x, %#x)\n", c.toSpace.Start(), c.toSpace.End())
	if c.fromSpace != nil {
		fmt.Fprintf(w, "  from-space:   [%#x, %#x)\n", c.fromSpace.Start(), c.fromSpace.End())
	}
	fmt.Fprintf(w, "  next/scan/limit: %#x / %#x / %#x\n", c.next, c.scan, c.limit)

	fmt.Fprintf(w, "  objects:\n")
	c.walkSpace(c.toSpace.Start(), c.next, func(p uintptr) {
		fmt.Fprint(w, "    ")
		c.dumpObject(w, p)
		fmt.Fprintln(w)
	})
	if c.limit < c.toSpace.End() {
		fmt.Fprintf(w, "  objects allocated during a cycle:\n")
		c.walkSpace(c.limit, c.toSpace.End(), func(p uintptr) {
			fmt.Fprint(w, "    ")
			c.dumpObject(w, p)
			fmt.Fprintln(w)
		})
	}

	// from-space still holds every object this cycle hasn't forwarded yet,
	// in exactly the two regions its own next/limit bounded it to when it
	// was last to-space. Walking past fromNext or before fromLimit would
	// read whatever bytes a prior cycle (or mmap) left there.
	if c.fromSpace != nil {
		fmt.Fprintf(w, "  from-space objects:\n")
		c.walkSpace(c.fromSpace.Start(), c.fromNext, func(p uintptr) {
			fmt.Fprint(w, "    ")
			c.dumpObject(w, p)
			fmt.Fprintln(w)
		})
		if c.fromLimit < c.fromSpace.End() {
			c.walkSpace(c.fromLimit, c.fromSpace.End(), func(p uintptr) {
				fmt.Fprint(w, "    ")
				c.dumpObject(w, p)
				fmt.Fprintln(w)
			})
		}
	}
}

// PrintGCState implements print_gc_state(): HeapDumpTo written to stderr.
func (c *Collector) PrintGCState() {
	c.HeapDumpTo(diag.Stderr())
}

// PrintGCRoots implements print_gc_roots(): one line per pushed root.
func (c *Collector) PrintGCRoots() {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := diag.Stderr()
	fmt.Fprintf(w, "gc roots (%d):\n", c.roots.Len())
	c.roots.Each(func(slot *uintptr) {
		v := *slot
		if v == 0 {
			fmt.Fprintf(w, "  #0x0 (%s)\n", diag.UnmanagedLabel("unmanaged"))
			return
		}
		fmt.Fprintf(w, "  %s\n", c.objectHeaderLine(v))
	})
}

// PrintGCAllocStats implements print_gc_alloc_stats().
func (c *Collector) PrintGCAllocStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := diag.Stderr()
	fmt.Fprintf(w, "gc alloc stats:\n")
	fmt.Fprintf(w, "  cycles:             %d\n", c.stats.GCCycles)
	fmt.Fprintf(w, "  reads:              %d\n", c.stats.Reads)
	fmt.Fprintf(w, "  read barriers:      %d\n", c.stats.ReadBarriers)
	fmt.Fprintf(w, "  writes:             %d\n", c.stats.Writes)
	fmt.Fprintf(w, "  total allocated:    %d B (%d objects)\n", c.stats.AllTimeAllocated, c.stats.AllTimeAllocatedObjs)
	fmt.Fprintf(w, "  used:               %d B\n", c.usedMemoryLocked())
	fmt.Fprintf(w, "  max used:           %d B\n", c.stats.MaxUsed)
	fmt.Fprintf(w, "  heap fingerprint:   %04x\n", diag.Fingerprint(c.toSpace.Bytes(c.toSpace.Start(), c.next)))
}
