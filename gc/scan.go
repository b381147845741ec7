package gc

import "github.com/tinygo-org/ssgc/header"

// runGC implements §4.7's incremental scanner. It advances scan by at most
// approximately n bytes — the "incremental work contract" that funds a
// bounded amount of scanning per mutator allocation — and, if scan catches
// up with next, ends the cycle: from-space is dropped and the collector
// returns to idle. Must be called with c.mu held.
func (c *Collector) runGC(n uintptr) {
	target := c.scan + n
	for c.scan < c.next {
		if c.scan > target {
			return
		}

		q := c.scan
		tag, ok := header.DecodeTag(c.masks, q)
		if !ok {
			fatal("unknown tag bits at %#x", q)
		}
		fieldCount := header.FieldCount(c.masks, q)

		for i := uintptr(0); i < fieldCount; i++ {
			if header.RawField(tag, i) {
				continue
			}
			faddr := header.FieldAddr(q, i)
			forwarded := c.forward(ObjPtr(loadWord(faddr)))
			storeWord(faddr, uintptr(forwarded))
		}

		c.scan += alignUp(header.Size(c.masks, q))
	}

	// Drained: every copied object has been scanned, so every pointer
	// anywhere in to-space now points into to-space. The cycle is over.
	c.gcInProgress = false
	if err := c.fromSpace.Drop(); err != nil {
		fatal("releasing from-space: %v", err)
	}
	c.fromSpace = nil
}
