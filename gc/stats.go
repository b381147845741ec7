package gc

// Stats are the counters §8 property 7 requires to be monotonically
// non-decreasing (other than the derived UsedMemory, which can of course
// shrink). Carried over from the Rust source's Stats struct (SPEC_FULL.md
// §5) as a value type so a host or test can snapshot it without holding the
// collector's lock.
type Stats struct {
	Reads                uint64
	Writes               uint64
	ReadBarriers         uint64
	GCCycles             uint64
	AllTimeAllocated     uint64
	AllTimeAllocatedObjs uint64
	MaxUsed              uint64
}

// Stats returns a snapshot of the collector's counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
