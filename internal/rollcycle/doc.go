// Package rollcycle defines the roll-cycle policies that partition a queue's
// time line into fixed-length cycles, and the address arithmetic built on top
// of them.
//
// # Overview
//
// A Policy fixes three things: how long a cycle lasts, how segment files for
// a cycle are named, and the two sparse-index parameters (fanout and spacing)
// that bound how many entries one cycle may hold. From fanout and spacing the
// policy derives a bit split for the global Address: the low bits carry the
// sequence number inside a cycle, the high bits carry the cycle number. The
// split is fixed at construction and never recomputed, so every address ever
// produced under a policy stays decodable.
//
//	p, _ := rollcycle.NewCatalog().ByName("fast-daily")
//	addr := p.Compose(cycle, seq)
//	c, _ := p.CycleOf(addr)
//	s := p.SequenceOf(addr)
//
// Policies are immutable values; the catalog is an explicit registry object
// handed to whoever needs it rather than package-global state. The current
// cycle is resolved from a Clock and a fixed epoch with CycleAt.
package rollcycle
