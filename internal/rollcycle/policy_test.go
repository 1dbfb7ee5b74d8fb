package rollcycle

import (
	"testing"
)

func TestNewPolicyRoundsParameters(t *testing.T) {
	p, err := NewPolicy("p", "20060102", 1000, 3, 3)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if p.IndexFanout() != 8 {
		t.Fatalf("fanout not rounded to minimum: %d", p.IndexFanout())
	}
	if p.IndexSpacing() != 4 {
		t.Fatalf("spacing not rounded to power of two: %d", p.IndexSpacing())
	}
	if p.AddressBits() != 32 {
		t.Fatalf("small policies must still reserve 32 sequence bits, got %d", p.AddressBits())
	}
}

func TestNewPolicyRejectsBadLength(t *testing.T) {
	if _, err := NewPolicy("p", "20060102", 0, 8, 1); err == nil {
		t.Fatalf("expected error for zero cycle length")
	}
	if _, err := NewPolicy("p", "20060102", -5, 8, 1); err == nil {
		t.Fatalf("expected error for negative cycle length")
	}
}

func TestCatalogCapacities(t *testing.T) {
	// Known capacities of the production catalog.
	cases := []struct {
		name string
		want uint64
	}{
		{"fast-daily", 4294967295},
		{"five-minutely", 1073741824},
		{"minutely", 67108864},
		{"hourly", 268435456},
		{"daily", 4294967295},
		{"large-daily", 137438953471},
		{"xlarge-daily", 4398046511103},
		{"huge-daily", 281474976710655},
		{"test-secondly", 4294967295},
		{"test4-secondly", 4096},
		{"test-hourly", 1024},
		{"test-daily", 64},
		{"test4-daily", 4096},
	}
	cat := NewCatalog()
	for _, tc := range cases {
		p, ok := cat.ByName(tc.name)
		if !ok {
			t.Fatalf("policy %q missing from catalog", tc.name)
		}
		if got := p.MaxEntriesPerCycle(); got != tc.want {
			t.Fatalf("%s: max entries = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestCatalogDerivedBits(t *testing.T) {
	cat := NewCatalog()
	for _, p := range cat.All() {
		if p.AddressBits() < 32 {
			t.Fatalf("%s: address bits %d below floor", p.Name(), p.AddressBits())
		}
		if p.SequenceMask() != uint64(1)<<p.AddressBits()-1 {
			t.Fatalf("%s: mask does not match bits", p.Name())
		}
		if p.IndexFanout()&(p.IndexFanout()-1) != 0 || p.IndexFanout() < 8 {
			t.Fatalf("%s: fanout %d not a power of two >= 8", p.Name(), p.IndexFanout())
		}
		if p.IndexSpacing()&(p.IndexSpacing()-1) != 0 || p.IndexSpacing() < 1 {
			t.Fatalf("%s: spacing %d not a power of two >= 1", p.Name(), p.IndexSpacing())
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	cat := NewCatalog()
	if _, ok := cat.ByName("no-such-policy"); ok {
		t.Fatalf("unexpected policy hit")
	}
	def := cat.Default()
	if def.Name() != DefaultPolicyName {
		t.Fatalf("default = %q, want %q", def.Name(), DefaultPolicyName)
	}
	if len(cat.All()) != len(cat.Names()) {
		t.Fatalf("All and Names disagree")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	p := mustPolicy("dup", "20060102", 1000, 8, 1)
	if _, err := NewRegistry(p, p); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestSegmentNameRoundTrip(t *testing.T) {
	cat := NewCatalog()
	p, _ := cat.ByName("test-secondly")
	const epoch = int64(0)
	for _, cycle := range []int64{0, 1, 5, 86400, 1755856800} {
		name := p.SegmentName(cycle, epoch)
		got, err := p.ParseSegmentName(name, epoch)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != cycle {
			t.Fatalf("cycle %d round-tripped to %d via %q", cycle, got, name)
		}
	}
}

func TestSegmentNamesDistinctAcrossPolicies(t *testing.T) {
	// Policies sharing a directory must not collide on segment names.
	cat := NewCatalog()
	daily, _ := cat.ByName("daily")
	fast, _ := cat.ByName("fast-daily")
	if daily.SegmentName(3, 0) == fast.SegmentName(3, 0) {
		t.Fatalf("daily and fast-daily produce the same segment name")
	}
}
