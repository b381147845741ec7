package gc

import "github.com/tinygo-org/ssgc/header"

// ReadBarrier implements §4.8. During a cycle, it lazily forwards a field
// still pointing into from-space and writes the forwarded value back, so
// later reads of the same field are O(1). It is the sole place the fn[0]
// raw-pointer exception (§3) must be enforced for mutator reads, since the
// host may call this on any field index without knowing which ones are raw.
func (c *Collector) ReadBarrier(obj ObjPtr, i uintptr) ObjPtr {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Reads++

	faddr := header.FieldAddr(uintptr(obj), i)
	v := loadWord(faddr)

	if c.gcInProgress && c.fromSpace != nil && c.fromSpace.Contains(v) {
		tag, ok := header.DecodeTag(c.masks, uintptr(obj))
		if !ok {
			fatal("unknown tag bits at %#x", uintptr(obj))
		}
		if !header.RawField(tag, i) {
			fv := c.forward(ObjPtr(v))
			storeWord(faddr, uintptr(fv))
			c.stats.ReadBarriers++
			v = uintptr(fv)
		}
	}

	return ObjPtr(v)
}

// WriteBarrier implements §4.9: a pure counter. It bumps stats.Writes iff
// obj currently lies in from- or to-space and otherwise does nothing — no
// tracing logic, and no store of its own. The mutator's actual field store
// is the host's own raw write, performed outside the barrier.
func (c *Collector) WriteBarrier(obj ObjPtr, i uintptr, v ObjPtr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.classifyLocked(uintptr(obj)).Space != Unmanaged {
		c.stats.Writes++
	}
}

// SpaceKind classifies which space an address belongs to, for diagnostics
// and the write barrier's counter (§4.10).
type SpaceKind int

const (
	Unmanaged SpaceKind = iota
	From
	To
)

func (k SpaceKind) String() string {
	switch k {
	case From:
		return "from"
	case To:
		return "to"
	default:
		return "unmanaged"
	}
}

// Classification is the result of classify_space: which space p lies in,
// and its byte offset from that space's start.
type Classification struct {
	Space  SpaceKind
	Offset uintptr
}

func (c *Collector) classifyLocked(p uintptr) Classification {
	if c.fromSpace != nil && c.fromSpace.Contains(p) {
		return Classification{Space: From, Offset: p - c.fromSpace.Start()}
	}
	if c.toSpace.Contains(p) {
		return Classification{Space: To, Offset: p - c.toSpace.Start()}
	}
	return Classification{Space: Unmanaged}
}

// Classify implements classify_space(p) (§4.10).
func (c *Collector) Classify(p ObjPtr) Classification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifyLocked(uintptr(p))
}
