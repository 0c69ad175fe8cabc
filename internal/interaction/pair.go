package interaction

import (
	"cmp"

	"github.com/inodb/vibe-hic/internal/probe"
)

// Pair is one scored interaction between two probes. Index1 is always lower
// than Index2.
type Pair struct {
	Probe1 *probe.Probe
	Index1 int
	Probe2 *probe.Probe
	Index2 int

	Strength float64 // observed/expected
	Absolute int     // number of supporting read pairs

	// Significance holds the raw p-value until the pair is corrected, then
	// the corrected value.
	Significance float64
}

// NewPair creates an uncorrected pair.
func NewPair(p1 probe.Indexed, p2 probe.Indexed, strength float64, absolute int) *Pair {
	return &Pair{
		Probe1:   p1.Probe,
		Index1:   p1.Index,
		Probe2:   p2.Probe,
		Index2:   p2.Index,
		Strength: strength,
		Absolute: absolute,
	}
}

// SameChromosome reports whether the pair is a cis interaction.
func (p *Pair) SameChromosome() bool {
	return p.Probe1.Chrom == p.Probe2.Chrom
}

// Distance returns the gap between the two probes, 0 if they overlap.
// The second result is false for trans pairs, which have no distance.
func (p *Pair) Distance() (int64, bool) {
	if !p.SameChromosome() {
		return 0, false
	}
	d := max(p.Probe1.Start-p.Probe2.End, p.Probe2.Start-p.Probe1.End)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (p *Pair) lowestIsProbe1() bool {
	return probe.Compare(p.Probe1, p.Probe2) <= 0
}

// LowestProbe returns the probe which sorts first.
func (p *Pair) LowestProbe() *probe.Probe {
	if p.lowestIsProbe1() {
		return p.Probe1
	}
	return p.Probe2
}

// HighestProbe returns the probe which sorts last.
func (p *Pair) HighestProbe() *probe.Probe {
	if p.lowestIsProbe1() {
		return p.Probe2
	}
	return p.Probe1
}

func (p *Pair) lowestIndex() int {
	if p.lowestIsProbe1() {
		return p.Index1
	}
	return p.Index2
}

// Compare orders pairs by their lowest then highest probe. Pairs between the
// same probe objects, from probes listed more than once, are ordered by the
// index of their lowest probe.
func Compare(a, b *Pair) int {
	if la, lb := a.LowestProbe(), b.LowestProbe(); la != lb {
		if c := probe.Compare(la, lb); c != 0 {
			return c
		}
	}
	if ha, hb := a.HighestProbe(), b.HighestProbe(); ha != hb {
		if c := probe.Compare(ha, hb); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.lowestIndex(), b.lowestIndex())
}
