// Command ssgcdemo drives the collector through the end-to-end scenarios
// spec.md §8 describes (S1-S6), printing its diagnostic dumps at each step
// the same way a host embedding the library would call print_gc_state()
// and print_gc_alloc_stats() to watch a cycle happen. It takes the place
// TinyGo's own cmd/tinygo CLI takes in the source repo: a thin flag-parsing
// front end over the library, not where any interesting logic lives.
package main

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/tinygo-org/ssgc/config"
	"github.com/tinygo-org/ssgc/gc"
	"github.com/tinygo-org/ssgc/header"
)

func main() {
	var (
		scenario   = flag.String("scenario", "all", "scenario to run: s1, s2, s3, s4, s5, s6, or all")
		configPath = flag.String("config", "", "path to a YAML tunables file (defaults built in if empty or missing)")
	)
	flag.Parse()

	scenarios := map[string]func(config.Tunables){
		"s1": runS1,
		"s2": runS2,
		"s3": runS3,
		"s4": runS4,
		"s5": runS5,
		"s6": runS6,
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *scenario == "all" {
		for _, name := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
			runNamed(name, scenarios[name], cfg)
		}
		return
	}

	fn, ok := scenarios[*scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(1)
	}
	runNamed(*scenario, fn, cfg)
}

func runNamed(name string, fn func(config.Tunables), cfg config.Tunables) {
	fmt.Fprintf(os.Stderr, "=== %s ===\n", name)
	fn(cfg)
	fmt.Fprintln(os.Stderr)
}

// encodeHeader encodes a tag (low nibble) plus field count (next byte) using the
// default bit layout config.Default hands to every demo scenario below.
func encodeHeader(tag header.Tag, fieldCount uintptr) uintptr {
	return uintptr(tag) | fieldCount<<4
}

func writeHeader(p uintptr, tag header.Tag, fieldCount uintptr) {
	*(*uintptr)(unsafe.Pointer(p)) = encodeHeader(tag, fieldCount)
}

func writeField(p, i, v uintptr) {
	*(*uintptr)(unsafe.Pointer(header.FieldAddr(p, i))) = v
}

// objSize mirrors header.Size's reserved-forwarding-slot contract (§9):
// every object, even a declared zero-field one, occupies at least one
// field slot.
func objSize(fieldCount uintptr) uintptr {
	if fieldCount < 1 {
		fieldCount = 1
	}
	return header.HeaderSize + fieldCount*header.PointerSize
}

func must(c *gc.Collector, err error) *gc.Collector {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return c
}

// runS1 — no-GC allocation: a single zero-field true, max_alloc_size large
// enough that the fast path always succeeds.
func runS1(cfg config.Tunables) {
	cfg.MaxAllocSize = 1024
	c := must(gc.New(cfg))
	defer c.Close()

	p := c.Alloc(objSize(0))
	writeHeader(uintptr(p), header.True, 0)

	fmt.Fprintf(os.Stderr, "allocated true @ %#x, used=%d\n", p, c.UsedMemory())
	c.PrintGCAllocStats()
}

// runS2 — trigger a cycle via a root-reachable chain: root A=cons(B,empty),
// B=succ(zero), then fill the heap with unrooted allocations until the
// triggering Alloc runs begin_cycle.
func runS2(cfg config.Tunables) {
	cfg.MaxAllocSize = 64
	c := must(gc.New(cfg))
	defer c.Close()

	b := c.Alloc(objSize(1))
	writeHeader(uintptr(b), header.Succ, 1)
	writeField(uintptr(b), 0, 0) // zero

	a := c.Alloc(objSize(2))
	writeHeader(uintptr(a), header.Cons, 2)
	writeField(uintptr(a), 0, uintptr(b))
	writeField(uintptr(a), 1, 0) // empty

	root := uintptr(a)
	c.PushRoot(&root)
	defer c.PopRoot(&root)

	fmt.Fprintf(os.Stderr, "before cycle: root=%#x, cycles=%d\n", root, c.Stats().GCCycles)

	// Unrooted filler, discarded immediately, to push next toward limit.
	_ = c.Alloc(objSize(0))
	// This allocation no longer fits; it forces begin_cycle.
	_ = c.Alloc(objSize(0))

	fmt.Fprintf(os.Stderr, "after cycle: root=%#x, cycles=%d\n", root, c.Stats().GCCycles)
	c.PrintGCState()
}

// runS3 — read barrier forwards lazily: R -> X -> Y, force a cycle, then
// read R's field to a still-from-space X and observe the lazy forward.
func runS3(cfg config.Tunables) {
	cfg.MaxAllocSize = 96
	c := must(gc.New(cfg))
	defer c.Close()

	y := c.Alloc(objSize(0))
	writeHeader(uintptr(y), header.Zero, 0)

	x := c.Alloc(objSize(1))
	writeHeader(uintptr(x), header.Succ, 1)
	writeField(uintptr(x), 0, uintptr(y))

	r := c.Alloc(objSize(1))
	writeHeader(uintptr(r), header.Succ, 1)
	writeField(uintptr(r), 0, uintptr(x))

	// F is a childless cons rooted ahead of R, so its copy lands first in
	// the new to-space and absorbs the scan work the triggering allocation
	// funds.
	f := c.Alloc(objSize(2))
	writeHeader(uintptr(f), header.Cons, 2)
	writeField(uintptr(f), 0, 0)
	writeField(uintptr(f), 1, 0)
	fRoot := uintptr(f)
	c.PushRoot(&fRoot)
	defer c.PopRoot(&fRoot)

	root := uintptr(r)
	c.PushRoot(&root)
	defer c.PopRoot(&root)

	// Allocate until begin_cycle runs. It chases the whole R->X->Y chain
	// (it's linear, so chase never stops partway) but only updates the
	// ORIGINAL objects' forwarding slots, not R's copy's own field, and the
	// triggering allocation's 16-byte scan budget is used up on F's 24-byte
	// copy, so R's copy still points at X in from-space.
	for c.Stats().GCCycles == 0 {
		_ = c.Alloc(objSize(0))
	}

	fmt.Fprintf(os.Stderr, "R copy @ %#x, read_barriers before=%d\n", root, c.Stats().ReadBarriers)
	forwarded := c.ReadBarrier(gc.ObjPtr(root), 0)
	fmt.Fprintf(os.Stderr, "R.field[0] forwarded to %#x, read_barriers after=%d\n", forwarded, c.Stats().ReadBarriers)
	c.PrintGCState()
}

// runS4 — raw field untouched: fn(raw=0xDEADBEEF, captured=zero), force a
// cycle, confirm field 0 survives byte-identical.
func runS4(cfg config.Tunables) {
	cfg.MaxAllocSize = 64
	c := must(gc.New(cfg))
	defer c.Close()

	const rawMarker = 0xDEADBEEF

	captured := c.Alloc(objSize(0))
	writeHeader(uintptr(captured), header.Zero, 0)

	fn := c.Alloc(objSize(2))
	writeHeader(uintptr(fn), header.Fn, 2)
	writeField(uintptr(fn), 0, rawMarker)
	writeField(uintptr(fn), 1, uintptr(captured))

	root := uintptr(fn)
	c.PushRoot(&root)
	defer c.PopRoot(&root)

	for i := 0; i < 3; i++ {
		_ = c.Alloc(objSize(2))
	}

	raw := *(*uintptr)(unsafe.Pointer(header.FieldAddr(root, 0)))
	fmt.Fprintf(os.Stderr, "fn copy @ %#x, raw field = %#x (want %#x)\n", root, raw, uintptr(rawMarker))
	c.PrintGCState()
}

// runS5 — out of memory: root 24 bytes of live data in a 32-byte heap, then
// request 24 more; the live copy plus the request can never fit, so the
// triggering allocation dies fatally.
func runS5(cfg config.Tunables) {
	cfg.MaxAllocSize = 32
	c := must(gc.New(cfg))
	defer c.Close()

	a := c.Alloc(objSize(2))
	writeHeader(uintptr(a), header.Cons, 2)
	writeField(uintptr(a), 0, 0)
	writeField(uintptr(a), 1, 0)
	root := uintptr(a)
	c.PushRoot(&root)
	defer c.PopRoot(&root)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "allocation failed as expected: %v\n", r)
			return
		}
		fmt.Fprintln(os.Stderr, "expected a fatal out-of-memory panic, got none")
	}()
	_ = c.Alloc(objSize(2))
}

// runS6 — unbalanced root pop: push a, pop b where a != b, expect a fatal
// panic from the debug check.
func runS6(cfg config.Tunables) {
	c := must(gc.New(cfg))
	defer c.Close()

	var a, b uintptr
	c.PushRoot(&a)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "unbalanced pop rejected as expected: %v\n", r)
			return
		}
		fmt.Fprintln(os.Stderr, "expected a fatal panic on unbalanced pop, got none")
	}()
	c.PopRoot(&b)
}
