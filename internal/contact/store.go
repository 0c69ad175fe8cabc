package contact

import (
	"errors"
	"sync"

	"github.com/inodb/vibe-hic/internal/probe"
)

// DistanceBinLength is the resolution, in bases, of the linkage-correction table.
const DistanceBinLength = 10000

// minBinObservations is the number of contacts a distance bin needs before its
// own correction is trusted; sparser bins reuse the last trusted value.
const minBinObservations = 10

// ErrFinalised is returned when pairs are added to a finalised store.
var ErrFinalised = errors.New("contact store is finalised")

// StoreOptions controls which read pairs a Store accepts.
type StoreOptions struct {
	// MinDistance drops cis pairs whose fragment length is below this value.
	MinDistance int64

	// IgnoreTrans drops all trans pairs.
	IgnoreTrans bool
}

// Store is an in-memory contact store. Each accepted read pair is stored in
// both directions so either end can be queried. Pairs are added first, then
// the store is finalised (sorted and summarised) before it is queried.
type Store struct {
	opts StoreOptions

	mu        sync.Mutex
	finalised bool

	chroms       map[string]*overlapIndex
	corrections  map[string][]float64
	pairs        int64
	cisCount     int64
	transCount   int64
	cisByChrom   map[string]int64
	transByChrom map[string]int64
}

// NewStore creates an empty contact store.
func NewStore(opts StoreOptions) *Store {
	return &Store{
		opts:         opts,
		chroms:       make(map[string]*overlapIndex),
		corrections:  make(map[string][]float64),
		cisByChrom:   make(map[string]int64),
		transByChrom: make(map[string]int64),
	}
}

// AddPair adds a read pair. Pairs rejected by the store options are silently
// skipped.
func (s *Store) AddPair(chrom1 string, read1 Interval, chrom2 string, read2 Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalised {
		return ErrFinalised
	}

	cis := chrom1 == chrom2
	if !cis && s.opts.IgnoreTrans {
		return nil
	}
	if cis && s.opts.MinDistance > 0 && fragmentLength(read1, read2) < s.opts.MinDistance {
		return nil
	}

	if cis {
		s.cisCount += 2
		s.cisByChrom[chrom1]++
	} else {
		s.transCount += 2
		s.transByChrom[chrom1]++
		s.transByChrom[chrom2]++
	}
	s.pairs++

	s.chromIndex(chrom1).add(entry{source: read1, target: read2, targetChrom: chrom2})
	s.chromIndex(chrom2).add(entry{source: read2, target: read1, targetChrom: chrom1})
	return nil
}

func (s *Store) chromIndex(chrom string) *overlapIndex {
	x, ok := s.chroms[chrom]
	if !ok {
		x = &overlapIndex{}
		s.chroms[chrom] = x
	}
	return x
}

// Finalise sorts the stored contacts and computes the linkage-correction
// tables. It is called implicitly by the first query.
func (s *Store) Finalise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalise()
}

func (s *Store) finalise() {
	if s.finalised {
		return
	}
	for chrom, x := range s.chroms {
		x.build()
		s.corrections[chrom] = distanceCorrections(chrom, x)
	}
	s.finalised = true
}

// HitsForProbe returns every contact with one end overlapping p.
func (s *Store) HitsForProbe(p *probe.Probe) *HitCollection {
	s.mu.Lock()
	s.finalise()
	x := s.chroms[p.Chrom]
	s.mu.Unlock()

	hits := NewHitCollection(p.Chrom)
	if x == nil {
		return hits
	}
	x.findOverlaps(p.Start, p.End, func(e *entry) {
		hits.Add(e.targetChrom, e.source, e.target)
	})
	return hits
}

// PairCount returns the number of accepted read pairs.
func (s *Store) PairCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs
}

// CisCount returns the number of read ends in cis pairs.
func (s *Store) CisCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cisCount
}

// TransCount returns the number of read ends in trans pairs.
func (s *Store) TransCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transCount
}

// CisCountForChromosome returns the number of cis read pairs on chrom.
func (s *Store) CisCountForChromosome(chrom string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cisByChrom[chrom]
}

// TransCountForChromosome returns the number of trans read ends on chrom.
func (s *Store) TransCountForChromosome(chrom string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transByChrom[chrom]
}

// CorrectionForLength averages the distance corrections of every bin between
// minDist and maxDist. Chromosomes without cis data have no correction (1).
func (s *Store) CorrectionForLength(chrom string, minDist, maxDist int64) float64 {
	s.mu.Lock()
	s.finalise()
	table := s.corrections[chrom]
	s.mu.Unlock()

	if len(table) == 0 {
		return 1
	}

	startIndex := minDist / DistanceBinLength
	endIndex := maxDist / DistanceBinLength
	if startIndex < 0 {
		startIndex = 0
	}
	if endIndex < startIndex {
		endIndex = startIndex
	}

	var total float64
	for i := startIndex; i <= endIndex; i++ {
		bin := i
		if bin > int64(len(table)-1) {
			bin = int64(len(table) - 1)
		}
		total += table[bin]
	}
	return total / float64(endIndex-startIndex+1)
}

// distanceCorrections compares the observed distribution of cis fragment
// lengths on one chromosome with the distribution expected for randomly
// placed pairs, one factor per distance bin.
func distanceCorrections(chrom string, x *overlapIndex) []float64 {
	var length int64
	for _, e := range x.entries {
		if e.source.End > length {
			length = e.source.End
		}
	}
	bins := int(length/DistanceBinLength) + 1

	counts := make([]int, bins)
	total := 0
	for _, e := range x.entries {
		if e.targetChrom != chrom {
			continue
		}
		bin := int(fragmentLength(e.source, e.target) / DistanceBinLength)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
		total++
	}
	if total == 0 {
		return nil
	}

	// Randomly placed pairs separated by bin i are proportional to (bins - i).
	categories := 0
	for i := 0; i <= bins; i++ {
		categories += i
	}

	corrections := make([]float64, bins)
	lastGood := -1.0
	for i := range counts {
		observed := float64(counts[i]) / float64(total)
		random := float64(bins-i) / float64(categories)
		correction := observed / random

		if counts[i] < minBinObservations && lastGood > 0 {
			correction = lastGood
		} else {
			lastGood = correction
		}
		corrections[i] = correction
	}
	return corrections
}

// fragmentLength is the span covered by both ends of a cis pair.
func fragmentLength(a, b Interval) int64 {
	return max(a.End, b.End) - min(a.Start, b.Start)
}
