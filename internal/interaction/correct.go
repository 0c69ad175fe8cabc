package interaction

import (
	"sort"

	"github.com/inodb/vibe-hic/internal/probe"
)

// TotalTests returns the number of tests to correct for: every pair of
// probes on the same chromosome when a maximum distance restricts the search
// to cis, otherwise every pair of probes.
func TotalTests(index *probe.Index, maxDistance int64) int64 {
	if maxDistance > 0 {
		var total int64
		for _, n := range index.ChromosomeCounts() {
			total += choose2(int64(n))
		}
		return total
	}
	return choose2(int64(index.Len()))
}

func choose2(n int64) int64 {
	return n * (n - 1) / 2
}

// Correct sorts pairs by raw p-value and replaces each significance with its
// rank-scaled value raw*totalTests/rank, kept non-decreasing in rank order.
func Correct(pairs []*Pair, totalTests int64) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Significance < pairs[j].Significance
	})

	for i, p := range pairs {
		p.Significance = p.Significance * (float64(totalTests) / float64(i+1))
		if i > 0 && p.Significance < pairs[i-1].Significance {
			p.Significance = pairs[i-1].Significance
		}
	}
}

// Retain returns the prefix of corrected pairs whose significance is below
// ceiling. A ceiling of 1 or more keeps every pair.
func Retain(pairs []*Pair, ceiling float64) []*Pair {
	if ceiling >= 1 {
		return pairs
	}
	for i, p := range pairs {
		if p.Significance >= ceiling {
			return pairs[:i]
		}
	}
	return pairs
}
