package rollcycle

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrAddressRange reports an address whose cycle component falls outside the
// representable non-negative 31-bit range. Such an address was composed under
// a different policy or is corrupt.
var ErrAddressRange = errors.New("rollcycle: address cycle out of range")

// Address identifies one entry uniquely across all segments of a store. It is
// opaque: compose and decompose only through a Policy. Addresses order the
// same way entries were appended, so they compare with < and == directly.
type Address uint64

// Uint64 exposes the raw value for persistence and wire use.
func (a Address) Uint64() uint64 { return uint64(a) }

// String renders the address in hex, the form the tooling accepts back.
func (a Address) String() string { return "0x" + strconv.FormatUint(uint64(a), 16) }

// ParseAddress parses the textual forms produced by Address.String (hex with
// 0x prefix) plus plain decimal.
func ParseAddress(s string) (Address, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("rollcycle: bad address %q: %w", s, err)
		}
		return Address(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rollcycle: bad address %q: %w", s, err)
	}
	return Address(v), nil
}

// Compose packs (cycle, sequence) into one address. The sequence is masked to
// the policy's sequence bits rather than rejected; callers gate overflow via
// MaxEntriesPerCycle before composing, which keeps the mask unreachable for
// validated appends.
func (p Policy) Compose(cycle int64, seq uint64) Address {
	return Address(uint64(cycle)<<p.shift | (seq & p.mask))
}

// CycleOf unpacks the cycle number, failing with ErrAddressRange when the
// high bits exceed the non-negative 31-bit cycle range.
func (p Policy) CycleOf(a Address) (int64, error) {
	cycle := int64(uint64(a) >> p.shift)
	if cycle > maxCycle {
		return 0, fmt.Errorf("%w: %s has cycle %d", ErrAddressRange, a, cycle)
	}
	return cycle, nil
}

// SequenceOf unpacks the sequence-in-cycle.
func (p Policy) SequenceOf(a Address) uint64 {
	return uint64(a) & p.mask
}
