package permission

import (
	"fmt"
	"math"
	"slices"
)

// Rule maps an inclusive platform version range to the capabilities a scan
// needs there.
type Rule struct {
	MinVersion int
	MaxVersion int
	Required   []ID
}

func (r Rule) covers(version int) bool {
	return version >= r.MinVersion && version <= r.MaxVersion
}

// Policy is an ordered table of rules. The first covering rule wins.
type Policy struct {
	rules []Rule
}

// DefaultPolicy returns the shipped table. Up to API level 30 location access
// is enough to see scan results; from 31 the dedicated bluetooth
// capabilities are needed as well as fine location.
func DefaultPolicy() Policy {
	return Policy{rules: []Rule{
		{
			MinVersion: math.MinInt,
			MaxVersion: 30,
			Required:   []ID{LocationCoarse, LocationFine},
		},
		{
			MinVersion: 31,
			MaxVersion: math.MaxInt,
			Required:   []ID{LocationFine, BluetoothScan, BluetoothConnect, BluetoothAdvertise},
		},
	}}
}

// NewPolicy builds a policy from rules, rejecting overlapping ranges.
func NewPolicy(rules ...Rule) (Policy, error) {
	for i, a := range rules {
		if a.MinVersion > a.MaxVersion {
			return Policy{}, fmt.Errorf("permission: rule %d has min %d above max %d", i, a.MinVersion, a.MaxVersion)
		}
		for j := i + 1; j < len(rules); j++ {
			b := rules[j]
			if a.MinVersion <= b.MaxVersion && b.MinVersion <= a.MaxVersion {
				return Policy{}, fmt.Errorf("%w: rules %d and %d", ErrOverlappingRules, i, j)
			}
		}
	}
	return Policy{rules: slices.Clone(rules)}, nil
}

// Required returns the capability set for a platform version, in table order.
// A version no rule covers needs nothing.
func (p Policy) Required(version int) []ID {
	for _, r := range p.rules {
		if r.covers(version) {
			return slices.Clone(r.Required)
		}
	}
	return nil
}
