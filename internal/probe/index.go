package probe

import "sort"

// Indexed pairs a probe with its global index. Indices are assigned in the
// order the probe lists are concatenated, before sorting, so the same probe
// appearing in two lists gets two indices.
type Indexed struct {
	Probe *Probe
	Index int
}

// Index is an immutable, globally indexed view over one or more probe lists,
// sorted by probe natural order.
type Index struct {
	probes  []Indexed
	offsets map[string]int
	lists   []*List
}

// NewIndex concatenates the lists, assigns global indices and sorts the result.
func NewIndex(lists ...*List) *Index {
	var probes []Indexed
	for _, l := range lists {
		for _, p := range l.Probes() {
			probes = append(probes, Indexed{Probe: p, Index: len(probes)})
		}
	}

	sort.SliceStable(probes, func(i, j int) bool {
		return Compare(probes[i].Probe, probes[j].Probe) < 0
	})

	offsets := make(map[string]int)
	for i, p := range probes {
		if i == 0 || p.Probe.Chrom != probes[i-1].Probe.Chrom {
			offsets[p.Probe.Chrom] = i
		}
	}

	return &Index{probes: probes, offsets: offsets, lists: lists}
}

// Len returns the number of indexed probes.
func (x *Index) Len() int {
	return len(x.probes)
}

// At returns the probe at a sorted position.
func (x *Index) At(pos int) Indexed {
	return x.probes[pos]
}

// Probes returns all indexed probes in sorted order. The slice must not be modified.
func (x *Index) Probes() []Indexed {
	return x.probes
}

// Offset returns the sorted position of the first probe on chrom.
func (x *Index) Offset(chrom string) (int, bool) {
	off, ok := x.offsets[chrom]
	return off, ok
}

// Lists returns the probe lists the index was built from.
func (x *Index) Lists() []*List {
	return x.lists
}

// ChromosomeCounts returns the number of probes on each chromosome.
func (x *Index) ChromosomeCounts() map[string]int {
	counts := make(map[string]int, len(x.offsets))
	for _, p := range x.probes {
		counts[p.Probe.Chrom]++
	}
	return counts
}

// OriginalOrder returns the probes indexed by global index, i.e. in
// concatenation order.
func (x *Index) OriginalOrder() []*Probe {
	ordered := make([]*Probe, len(x.probes))
	for _, p := range x.probes {
		ordered[p.Index] = p.Probe
	}
	return ordered
}
