package gc

import "fmt"

// Asserts gates the extra consistency checks described as "(debug)" in
// spec.md (root-stack balance, forward's to-space postcondition). It
// mirrors TinyGo's own gcAsserts/gcDebug constants in gc_blocks.go, except
// it's a variable rather than a build-tag-gated const: this collector runs
// as an ordinary hosted library, so tests can flip it instead of needing a
// separate build.
var Asserts = true

// FatalError is raised for the conditions §7 classifies as fatal: out of
// memory mid-cycle, chase exhaustion, and heap corruption (unknown tag
// bits, a pop on an empty root stack, an unbalanced root pop when Asserts
// is set). There is no recoverable
// error channel across the collector's API or its C ABI (cmd/libssgc): a
// host that wants to turn this into a controlled process abort should
// recover() at the FFI boundary, log it, and exit.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ssgc: fatal: %s", e.Msg)
}

func fatal(format string, args ...any) {
	panic(&FatalError{Msg: fmt.Sprintf(format, args...)})
}
