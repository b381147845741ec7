// Command libssgc builds the collector as a C-callable shared library
// (-buildmode=c-shared): the §6 "Exported entry points" table, each wired
// straight through to a lazily-initialized, process-wide *gc.Collector —
// the singleton §5 and §9 describe. TinyGo's own runtime exports its
// entry points (gcMalloc, markRoots, and friends) as freestanding symbols
// the compiler calls directly rather than through cgo; this binary plays
// the same role for a hosted library called in from C, so the export
// boundary is cgo's //export instead.
package main

import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/tinygo-org/ssgc/config"
	"github.com/tinygo-org/ssgc/gc"
)

var (
	once      sync.Once
	collector *gc.Collector
)

// configEnvVar names the environment variable a host sets to point at a
// YAML tunables file before the first entry point runs. An unset variable,
// or a path naming a file that does not exist, falls back to
// config.Default(), matching config.Load; any other read or parse error is
// printed and the process exits.
const configEnvVar = "SSGC_CONFIG"

// instance returns the process-wide collector, constructing it from
// SSGC_CONFIG (or the built-in defaults) on first use. §9: "process-wide
// state initialized lazily on first entry; teardown is implicit at
// process exit" — there is no exported shutdown entry point.
func instance() *gc.Collector {
	once.Do(func() {
		cfg, err := config.Load(os.Getenv(configEnvVar))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		c, err := gc.New(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		collector = c
	})
	return collector
}

//export gc_alloc
func gc_alloc(size C.size_t) unsafe.Pointer {
	p := instance().Alloc(uintptr(size))
	return unsafe.Pointer(uintptr(p))
}

//export gc_read_barrier
func gc_read_barrier(obj unsafe.Pointer, fieldIdx C.int) unsafe.Pointer {
	p := instance().ReadBarrier(gc.ObjPtr(uintptr(obj)), uintptr(fieldIdx))
	return unsafe.Pointer(uintptr(p))
}

//export gc_write_barrier
func gc_write_barrier(obj unsafe.Pointer, fieldIdx C.int, value unsafe.Pointer) {
	instance().WriteBarrier(gc.ObjPtr(uintptr(obj)), uintptr(fieldIdx), gc.ObjPtr(uintptr(value)))
}

//export gc_push_root
func gc_push_root(slot *unsafe.Pointer) {
	instance().PushRoot((*uintptr)(unsafe.Pointer(slot)))
}

//export gc_pop_root
func gc_pop_root(slot *unsafe.Pointer) {
	instance().PopRoot((*uintptr)(unsafe.Pointer(slot)))
}

//export print_gc_alloc_stats
func print_gc_alloc_stats() {
	instance().PrintGCAllocStats()
}

//export print_gc_state
func print_gc_state() {
	instance().PrintGCState()
}

//export print_gc_roots
func print_gc_roots() {
	instance().PrintGCRoots()
}

func main() {}
