// Package contact provides access to Hi-C contact data: the read-source
// interface consumed by the interaction matrix, an in-memory contact store
// and a parser for text pairs files.
package contact

import (
	"sort"

	"github.com/inodb/vibe-hic/internal/probe"
)

// Source supplies contact records and the contact totals needed to
// normalise interaction strengths.
type Source interface {
	// HitsForProbe returns every contact with one end overlapping p,
	// grouped by the chromosome of the other end.
	HitsForProbe(p *probe.Probe) *HitCollection

	// CisCount returns the number of read ends in cis contacts genome-wide.
	CisCount() int64

	// TransCount returns the number of read ends in trans contacts genome-wide.
	TransCount() int64

	// CisCountForChromosome returns the number of cis read pairs on chrom.
	CisCountForChromosome(chrom string) int64

	// TransCountForChromosome returns the number of trans read ends on chrom.
	TransCountForChromosome(chrom string) int64
}

// LinkageCorrector is implemented by sources which can correct expected cis
// contact frequencies for the genomic distance between two regions.
type LinkageCorrector interface {
	// CorrectionForLength returns the correction factor for contacts on
	// chrom separated by between minDist and maxDist bases.
	CorrectionForLength(chrom string, minDist, maxDist int64) float64
}

// Interval is a 1-based inclusive genomic interval.
type Interval struct {
	Start int64
	End   int64
}

// Overlaps returns true if the interval overlaps [start, end].
func (i Interval) Overlaps(start, end int64) bool {
	return i.Start <= end && i.End >= start
}

// Hit is one contact: the end which was queried and the other end.
type Hit struct {
	Source Interval
	Target Interval
}

// HitCollection holds the contacts found for one query, keyed by the
// chromosome of the other end.
type HitCollection struct {
	sourceChrom string
	hits        map[string][]Hit
}

// NewHitCollection creates an empty collection for a query on sourceChrom.
func NewHitCollection(sourceChrom string) *HitCollection {
	return &HitCollection{
		sourceChrom: sourceChrom,
		hits:        make(map[string][]Hit),
	}
}

// Add records a contact whose other end lies on targetChrom.
func (c *HitCollection) Add(targetChrom string, source, target Interval) {
	c.hits[targetChrom] = append(c.hits[targetChrom], Hit{Source: source, Target: target})
}

// SourceChromosome returns the chromosome of the queried ends.
func (c *HitCollection) SourceChromosome() string {
	return c.sourceChrom
}

// Chromosomes returns the sorted names of chromosomes with at least one hit.
func (c *HitCollection) Chromosomes() []string {
	names := make([]string, 0, len(c.hits))
	for name := range c.hits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hits returns the contacts whose other end lies on chrom.
func (c *HitCollection) Hits(chrom string) []Hit {
	return c.hits[chrom]
}

// Targets returns a copy of the other-end intervals on chrom.
func (c *HitCollection) Targets(chrom string) []Interval {
	hits := c.hits[chrom]
	targets := make([]Interval, len(hits))
	for i, h := range hits {
		targets[i] = h.Target
	}
	return targets
}

// Count returns the number of contacts whose other end lies on chrom.
func (c *HitCollection) Count(chrom string) int {
	return len(c.hits[chrom])
}

// Total returns the number of contacts in the collection.
func (c *HitCollection) Total() int {
	n := 0
	for _, h := range c.hits {
		n += len(h)
	}
	return n
}
