package contact

import "sort"

// entry is one stored contact end on a source chromosome.
type entry struct {
	source      Interval
	target      Interval
	targetChrom string
}

// overlapIndex provides O(log n + k) overlap queries over contact ends using
// a sorted slice with a prefix-max of end coordinates.
// Entries are added before build and never modified afterwards.
type overlapIndex struct {
	entries []entry
	maxEnd  []int64 // maxEnd[i] = max(source.End) for entries[:i+1]
}

func (x *overlapIndex) add(e entry) {
	x.entries = append(x.entries, e)
}

// build sorts the entries by source start and fills the prefix-max array.
func (x *overlapIndex) build() {
	if len(x.entries) == 0 {
		return
	}

	sort.SliceStable(x.entries, func(i, j int) bool {
		if x.entries[i].source.Start != x.entries[j].source.Start {
			return x.entries[i].source.Start < x.entries[j].source.Start
		}
		return x.entries[i].source.End < x.entries[j].source.End
	})

	x.maxEnd = make([]int64, len(x.entries))
	x.maxEnd[0] = x.entries[0].source.End
	for i := 1; i < len(x.entries); i++ {
		x.maxEnd[i] = x.entries[i].source.End
		if x.maxEnd[i-1] > x.maxEnd[i] {
			x.maxEnd[i] = x.maxEnd[i-1]
		}
	}
}

// findOverlaps calls fn, in ascending source order, for every entry whose
// source interval overlaps [start, end].
func (x *overlapIndex) findOverlaps(start, end int64, fn func(e *entry)) {
	if len(x.entries) == 0 {
		return
	}

	// Candidates are [0, hi): every entry starting after end is excluded.
	hi := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].source.Start > end
	})

	// maxEnd is non-decreasing, so everything before lo ends before start.
	lo := sort.Search(hi, func(i int) bool {
		return x.maxEnd[i] >= start
	})

	for i := lo; i < hi; i++ {
		if x.entries[i].source.End >= start {
			fn(&x.entries[i])
		}
	}
}
