package interaction

import "github.com/inodb/vibe-hic/internal/probe"

// Filters holds the bounds an interaction must meet to be reported.
type Filters struct {
	MinDistance int64 // minimum gap between cis probes
	MaxDistance int64 // maximum gap between cis probes, 0 for no limit

	MinStrength     float64 // minimum observed/expected
	MaxSignificance float64 // maximum corrected p-value, 1 or more for no limit
	MinAbsolute     int     // minimum number of supporting read pairs
}

// DefaultFilters returns bounds which accept every interaction.
func DefaultFilters() Filters {
	return Filters{MaxSignificance: 1}
}

// Passes reports whether p meets every bound. Any finite maximum distance
// excludes trans pairs.
func (f Filters) Passes(p *Pair) bool {
	if p.Strength < f.MinStrength {
		return false
	}

	if d, ok := p.Distance(); ok {
		if d < f.MinDistance {
			return false
		}
		if f.MaxDistance != 0 && d > f.MaxDistance {
			return false
		}
	} else if f.MaxDistance != 0 {
		return false
	}

	if f.MaxSignificance < 1 && p.Significance > f.MaxSignificance {
		return false
	}

	return p.Absolute >= f.MinAbsolute
}

// clamp returns f tightened so that no bound is laxer than the matching
// bound of initial.
func (f Filters) clamp(initial Filters) Filters {
	f.MinDistance = clampMinDistance(f.MinDistance, initial.MinDistance)
	f.MaxDistance = clampMaxDistance(f.MaxDistance, initial.MaxDistance)
	f.MinStrength = max(f.MinStrength, initial.MinStrength)
	f.MaxSignificance = min(f.MaxSignificance, initial.MaxSignificance)
	f.MinAbsolute = max(f.MinAbsolute, initial.MinAbsolute)
	return f
}

func clampMinDistance(d, initial int64) int64 {
	return max(d, initial)
}

func clampMaxDistance(d, initial int64) int64 {
	if d < 0 {
		d = 0
	}
	if initial != 0 && (d == 0 || d > initial) {
		return initial
	}
	return d
}

// probeSet is a membership test built from a probe list.
type probeSet map[*probe.Probe]struct{}

func newProbeSet(l *probe.List) probeSet {
	if l == nil {
		return nil
	}
	s := make(probeSet, l.Len())
	for _, p := range l.Probes() {
		s[p] = struct{}{}
	}
	return s
}

// touches reports whether either end of p is in the set. A nil set matches
// every pair.
func (s probeSet) touches(p *Pair) bool {
	if s == nil {
		return true
	}
	_, ok1 := s[p.Probe1]
	_, ok2 := s[p.Probe2]
	return ok1 || ok2
}
