// Package header decodes the single-word object header shared by every heap
// object: a tag (low bits) and a field count (next bits, shifted by 4). It
// mirrors how TinyGo's runtime/gc_precise.go packs pointer/size information
// into a single header word, adapted from a bitstring-of-layout encoding to
// the tag+field-count encoding this collector's host uses.
package header

import "unsafe"

// HeaderSize is the size in bytes of the header word, and also the offset of
// the first field slot.
const HeaderSize = unsafe.Sizeof(uintptr(0))

// PointerSize is the size in bytes of a single field slot.
const PointerSize = unsafe.Sizeof(uintptr(0))

// Masks holds the host-provided bitmasks used to decode a header word. They
// are read once at startup (see package config) and never change afterwards.
type Masks struct {
	Tag   uintptr
	Field uintptr
}

// Tag identifies an object variant. The collector's copying algorithm treats
// the tag as opaque; it is only consulted to find the raw (non-traced) field
// of fn objects and to label the debug dump.
type Tag uint8

const (
	Zero Tag = iota
	Succ
	False
	True
	Fn
	Ref
	Unit
	Tuple
	Inl
	Inr
	Empty
	Cons
	numTags
)

// String renders the tag in the lowercase kebab-case form the diagnostic
// dumper uses (§6.1).
func (t Tag) String() string {
	switch t {
	case Zero:
		return "zero"
	case Succ:
		return "succ"
	case False:
		return "false"
	case True:
		return "true"
	case Fn:
		return "fn"
	case Ref:
		return "ref"
	case Unit:
		return "unit"
	case Tuple:
		return "tuple"
	case Inl:
		return "inl"
	case Inr:
		return "inr"
	case Empty:
		return "empty"
	case Cons:
		return "cons"
	default:
		return "?"
	}
}

// FieldKind classifies a single field slot for the purposes of tracing and
// the debug dumper.
type FieldKind int

const (
	Obj FieldKind = iota
	Raw
	Invalid
)

func (k FieldKind) String() string {
	switch k {
	case Obj:
		return "obj"
	case Raw:
		return "raw"
	default:
		return "invalid"
	}
}

func word(p uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(p))
}

// FieldCount returns the number of pointer-sized fields following the header
// at p.
func FieldCount(m Masks, p uintptr) uintptr {
	return (word(p) & m.Field) >> 4
}

// DecodeTag extracts the tag bits from the header at p. It returns false if
// the bits don't name a known tag; callers MUST treat that as corruption and
// fail loudly (§4.1), never silently ignore it.
func DecodeTag(m Masks, p uintptr) (Tag, bool) {
	raw := word(p) & m.Tag
	if raw >= uintptr(numTags) {
		return 0, false
	}
	return Tag(raw), true
}

// Size returns the unaligned byte size of the object at p: the header plus
// its fields. Every object reserves at least one field slot, even a
// declared zero-field one (zero, true, false, unit, empty): the forwarding
// protocol overwrites field 0 with the to-space address once an object is
// copied (§4.5/§4.6), so a zero-field object still needs somewhere to put
// it. Callers round up to the heap alignment before bumping an allocation
// pointer by this amount.
func Size(m Masks, p uintptr) uintptr {
	count := FieldCount(m, p)
	if count < 1 {
		count = 1
	}
	return HeaderSize + count*PointerSize
}

// FieldAddr returns the address of field i of the object at p. The decoder
// performs no bounds checking: the caller guarantees i < field count (or is
// deliberately probing a suspect layout for the diagnostic dumper).
func FieldAddr(p, i uintptr) uintptr {
	return p + HeaderSize + i*PointerSize
}

// RawField reports whether field i of an object with this tag is the
// non-traced raw pointer carried by fn objects (§3: "fn[0] is a raw
// (non-GC) pointer and must not be forwarded"). Every tracing site — chase,
// the incremental scanner, and the read barrier — MUST consult this before
// treating a field as an object reference.
func RawField(tag Tag, i uintptr) bool {
	return tag == Fn && i == 0
}

// FieldKindAt classifies field i of an object with the given tag and field
// count, for the diagnostic dumper. It does not require i to be in range:
// an out-of-range i yields Invalid, matching the "**UNEXPECTED FIELD**"
// rendering in §6.1.
func FieldKindAt(tag Tag, fieldCount, i uintptr) FieldKind {
	if RawField(tag, i) {
		return Raw
	}
	if i >= fieldCount {
		return Invalid
	}
	return Obj
}
