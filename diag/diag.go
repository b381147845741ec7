// Package diag holds the generic, heap-agnostic pieces of the collector's
// diagnostic dumps (§6.1): a colorized stderr writer and a CRC-16 "heap
// fingerprint" helper. The actual object/state/root walkers live in package
// gc, which knows the heap layout; this package only knows how to present
// bytes and labels.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sigurn/crc16"
)

// colorEnabled mirrors the check TinyGo's own CLI output does before
// emitting ANSI escapes: only colorize when stderr is an actual terminal,
// so piping `print_gc_state` output to a file or test harness stays plain.
var colorEnabled = isatty.IsTerminal(os.Stderr.Fd())

// Stderr returns the writer diagnostic dumps print to: stderr wrapped with
// go-colorable so ANSI escapes render correctly on Windows consoles too.
func Stderr() io.Writer {
	return colorable.NewColorable(os.Stderr)
}

func wrap(code int, s string) string {
	if !colorEnabled {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

// FromLabel colorizes a "from+OFF" space label.
func FromLabel(s string) string { return wrap(31, s) } // red

// ToLabel colorizes a "to+OFF" space label.
func ToLabel(s string) string { return wrap(32, s) } // green

// UnmanagedLabel colorizes the "unmanaged" space label.
func UnmanagedLabel(s string) string { return wrap(90, s) } // dim gray

var fingerprintTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Fingerprint computes a CRC-16 over data, printed by print_gc_alloc_stats
// as a cheap, diffable tripwire for heap corruption across dumps.
func Fingerprint(data []byte) uint16 {
	return crc16.Checksum(data, fingerprintTable)
}
