// Package config loads the three host-provided globals spec.md §6 says are
// "read once at startup": TAG_MASK, FIELD_COUNT_MASK, and max_alloc_size.
// TinyGo's compileopts package loads target tunables (RAM/flash sizes,
// whether a target has a second flash bank, etc.) from YAML files under
// compileopts/target-data and parses human-readable sizes with
// inhies/go-bytesize; this package follows the same two-library pattern for
// the collector's much smaller set of tunables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Default tag/field-count bit layout: tag in the low nibble, field count in
// the next byte (bits 4-11), matching the worked example in spec.md §3 and
// the fixtures used by the demo and the gc package's own tests.
const (
	DefaultTagMask        = 0xF
	DefaultFieldCountMask = 0xFF0
	DefaultMaxAllocSize   = 1 << 20 // 1 MiB
)

// Tunables are the collector's host-provided globals.
type Tunables struct {
	TagMask        uintptr
	FieldCountMask uintptr
	MaxAllocSize   uintptr
}

// Default returns the built-in tunables, used when no config file is given.
func Default() Tunables {
	return Tunables{
		TagMask:        DefaultTagMask,
		FieldCountMask: DefaultFieldCountMask,
		MaxAllocSize:   DefaultMaxAllocSize,
	}
}

// fileFormat is the on-disk YAML shape. Masks are hex/decimal strings (so a
// config file can write "0xF" instead of a decimal literal) and the heap
// size is a human size string like "4MiB", parsed with go-bytesize the same
// way TinyGo's target YAML files write "64KB" for flash/RAM sizes.
type fileFormat struct {
	TagMask        string `yaml:"tag_mask"`
	FieldCountMask string `yaml:"field_count_mask"`
	MaxAllocSize   string `yaml:"max_alloc_size"`
}

// Load reads host tunables from a YAML file at path. An empty path, or a
// path that doesn't exist, yields Default() (no config file is required to
// run with sensible defaults). Any other read or parse error is returned.
func Load(path string) (Tunables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return t, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if ff.TagMask != "" {
		v, err := strconv.ParseUint(ff.TagMask, 0, 64)
		if err != nil {
			return t, fmt.Errorf("config: tag_mask: %w", err)
		}
		t.TagMask = uintptr(v)
	}
	if ff.FieldCountMask != "" {
		v, err := strconv.ParseUint(ff.FieldCountMask, 0, 64)
		if err != nil {
			return t, fmt.Errorf("config: field_count_mask: %w", err)
		}
		t.FieldCountMask = uintptr(v)
	}
	if ff.MaxAllocSize != "" {
		sz, err := bytesize.Parse([]byte(ff.MaxAllocSize))
		if err != nil {
			return t, fmt.Errorf("config: max_alloc_size: %w", err)
		}
		t.MaxAllocSize = uintptr(sz)
	}

	return t, nil
}
