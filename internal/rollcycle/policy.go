package rollcycle

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"time"
)

const (
	// minIndexFanout is the smallest fanout a policy may carry; smaller
	// requests are rounded up.
	minIndexFanout = 8

	// maxCycle bounds cycle numbers to a non-negative 31-bit range.
	maxCycle = int64(1)<<31 - 1
)

var errBadLength = errors.New("rollcycle: cycle length must be positive")

// Policy is an immutable roll-cycle configuration. The zero value is not a
// valid policy; construct one with NewPolicy or take one from a catalog.
type Policy struct {
	name         string
	format       string
	lengthMillis int64
	indexFanout  int
	indexSpacing int

	shift uint
	mask  uint64
}

// NewPolicy builds a policy from a segment name format (a time layout applied
// to the cycle's start instant in UTC), a cycle length and the two index
// parameters. Fanout is rounded up to the next power of two of at least 8,
// spacing to the next power of two of at least 1. The derived address split
// reserves at least 32 bits for sequence numbers.
func NewPolicy(name, format string, lengthMillis int64, indexFanout, indexSpacing int) (Policy, error) {
	if name == "" || format == "" {
		return Policy{}, errors.New("rollcycle: policy name and format are required")
	}
	if lengthMillis <= 0 {
		return Policy{}, errBadLength
	}
	fanout := nextPower2(indexFanout, minIndexFanout)
	spacing := nextPower2(indexSpacing, 1)

	shift := uint(2*intLog2(fanout) + intLog2(spacing))
	if shift < 32 {
		shift = 32
	}
	if shift > 62 {
		return Policy{}, fmt.Errorf("rollcycle: index parameters of %q demand %d sequence bits, max 62", name, shift)
	}
	return Policy{
		name:         name,
		format:       format,
		lengthMillis: lengthMillis,
		indexFanout:  fanout,
		indexSpacing: spacing,
		shift:        shift,
		mask:         uint64(1)<<shift - 1,
	}, nil
}

// mustPolicy is used for the built-in catalog, whose parameters are fixed.
func mustPolicy(name, format string, lengthMillis int64, indexFanout, indexSpacing int) Policy {
	p, err := NewPolicy(name, format, lengthMillis, indexFanout, indexSpacing)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the catalog name of the policy.
func (p Policy) Name() string { return p.name }

// Format returns the segment name time layout.
func (p Policy) Format() string { return p.format }

// LengthMillis returns the cycle duration in milliseconds.
func (p Policy) LengthMillis() int64 { return p.lengthMillis }

// Length returns the cycle duration.
func (p Policy) Length() time.Duration { return time.Duration(p.lengthMillis) * time.Millisecond }

// IndexFanout returns the per-level slot count of the sparse index.
func (p Policy) IndexFanout() int { return p.indexFanout }

// IndexSpacing returns the number of entries between index breadcrumbs.
func (p Policy) IndexSpacing() int { return p.indexSpacing }

// AddressBits returns how many low bits of an address carry the sequence.
func (p Policy) AddressBits() uint { return p.shift }

// SequenceMask returns the mask covering the sequence bits of an address.
func (p Policy) SequenceMask() uint64 { return p.mask }

// MaxEntriesPerCycle bounds how many entries one cycle may hold before
// sequence numbers would collide after masking or outgrow the index.
func (p Policy) MaxEntriesPerCycle() uint64 {
	byIndex := uint64(p.indexFanout) * uint64(p.indexFanout) * uint64(p.indexSpacing)
	if p.mask < byIndex {
		return p.mask
	}
	return byIndex
}

// SegmentName derives the segment base name for a cycle from this policy's
// format and the store epoch. Any process using the same policy and epoch
// derives the same name; no shared catalog file is needed.
func (p Policy) SegmentName(cycle, epochMillis int64) string {
	start := time.UnixMilli(epochMillis + cycle*p.lengthMillis).UTC()
	return start.Format(p.format)
}

// ParseSegmentName recovers the cycle number from a segment base name. The
// epoch should be aligned to the format's granularity; the cycle is recovered
// by rounding to the nearest boundary to absorb formatting truncation.
func (p Policy) ParseSegmentName(name string, epochMillis int64) (int64, error) {
	t, err := time.ParseInLocation(p.format, name, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("rollcycle: segment name %q does not match policy %s: %w", name, p.name, err)
	}
	delta := t.UnixMilli() - epochMillis
	cycle := (delta + p.lengthMillis/2) / p.lengthMillis
	if cycle < 0 || cycle > maxCycle {
		return 0, fmt.Errorf("rollcycle: segment name %q maps to out-of-range cycle %d", name, cycle)
	}
	return cycle, nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%s(%s every %s, fanout %d, spacing %d)",
		p.name, p.format, p.Length(), p.indexFanout, p.indexSpacing)
}

// nextPower2 rounds n up to the next power of two, at least min (itself a
// power of two).
func nextPower2(n, min int) int {
	if n < min {
		return min
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

// intLog2 returns log2 of a power of two.
func intLog2(n int) int {
	return bits.Len(uint(n)) - 1
}

// Registry is an immutable set of named policies.
type Registry struct {
	byName   map[string]Policy
	ordered  []Policy
	fallback string
}

// NewRegistry builds a registry from the given policies. The first policy is
// the registry default. Duplicate names are rejected.
func NewRegistry(policies ...Policy) (*Registry, error) {
	if len(policies) == 0 {
		return nil, errors.New("rollcycle: registry needs at least one policy")
	}
	r := &Registry{
		byName:   make(map[string]Policy, len(policies)),
		ordered:  make([]Policy, 0, len(policies)),
		fallback: policies[0].name,
	}
	for _, p := range policies {
		if _, dup := r.byName[p.name]; dup {
			return nil, fmt.Errorf("rollcycle: duplicate policy name %q", p.name)
		}
		r.byName[p.name] = p
		r.ordered = append(r.ordered, p)
	}
	return r, nil
}

// All returns every policy in registration order.
func (r *Registry) All() []Policy {
	out := make([]Policy, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns all policy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByName looks a policy up by its catalog name.
func (r *Registry) ByName(name string) (Policy, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Default returns the registry's default policy.
func (r *Registry) Default() Policy {
	return r.byName[r.fallback]
}

// DefaultPolicyName is the catalog default used when nothing is configured.
const DefaultPolicyName = "fast-daily"

// NewCatalog constructs the standard policy catalog. Callers build it once at
// startup and pass it to whoever needs policy lookup.
//
// The letter suffixes keep segment names of different policies from
// colliding in a shared directory. Sequence-bit minimum of 32 means even the
// smallest production policies address billions of entries per cycle; the
// large/huge policies trade address granularity for fewer rolls. The test
// policies shrink the index drastically so capacity edges are reachable in
// tests.
func NewCatalog() *Registry {
	const (
		minute = 60 * 1000
		hour   = 60 * minute
		day    = 24 * hour
	)
	r, err := NewRegistry(
		mustPolicy(DefaultPolicyName, "20060102F", day, 4<<10, 256),
		mustPolicy("five-minutely", "20060102-1504V", 5*minute, 2<<10, 256),
		mustPolicy("ten-minutely", "20060102-1504X", 10*minute, 2<<10, 256),
		mustPolicy("twenty-minutely", "20060102-1504XX", 20*minute, 2<<10, 256),
		mustPolicy("half-hourly", "20060102-1504H", 30*minute, 2<<10, 256),
		mustPolicy("fast-hourly", "20060102-15F", hour, 4<<10, 256),
		mustPolicy("two-hourly", "20060102-15II", 2*hour, 4<<10, 256),
		mustPolicy("four-hourly", "20060102-15IV", 4*hour, 4<<10, 256),
		mustPolicy("six-hourly", "20060102-15VI", 6*hour, 4<<10, 256),
		mustPolicy("minutely", "20060102-1504", minute, 2<<10, 16),
		mustPolicy("hourly", "20060102-15", hour, 4<<10, 16),
		mustPolicy("daily", "20060102", day, 8<<10, 64),
		mustPolicy("large-hourly", "20060102-15L", hour, 8<<10, 64),
		mustPolicy("large-daily", "20060102L", day, 32<<10, 128),
		mustPolicy("xlarge-daily", "20060102X", day, 128<<10, 256),
		mustPolicy("huge-daily", "20060102H", day, 512<<10, 1024),
		mustPolicy("small-daily", "20060102S", day, 8<<10, 8),
		mustPolicy("large-hourly-sparse", "20060102-15LS", hour, 4<<10, 1024),
		mustPolicy("large-hourly-xsparse", "20060102-15LX", hour, 2<<10, 1<<20),
		mustPolicy("huge-daily-xsparse", "20060102HX", day, 16<<10, 1<<20),
		mustPolicy("test-secondly", "20060102-150405T", 1000, 1<<15, 4),
		mustPolicy("test4-secondly", "20060102-150405TIV", 1000, 32, 4),
		mustPolicy("test-hourly", "20060102-15T", hour, 16, 4),
		mustPolicy("test-daily", "20060102TI", day, 8, 1),
		mustPolicy("test4-daily", "20060102TIV", day, 32, 4),
	)
	if err != nil {
		panic(err)
	}
	return r
}
