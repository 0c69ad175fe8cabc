package interaction

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/probe"
)

// Strength is the scored result for one probe pair.
type Strength struct {
	Probability float64 // expected probability of a contact landing in probe 2
	ObsExp      float64
	PValue      float64 // P(X >= count)
}

// neutral is returned when there is not enough data to score a pair.
var neutral = Strength{Probability: 0, ObsExp: 1, PValue: 1}

// StrengthCalculator scores raw interaction counts against a binomial
// background built from the marginal contact totals.
type StrengthCalculator struct {
	source    contact.Source
	corrector contact.LinkageCorrector
}

// NewStrengthCalculator creates a calculator for source. When correctLinkage
// is set and the source implements contact.LinkageCorrector, expected cis
// probabilities are corrected for the distance between the probes.
func NewStrengthCalculator(source contact.Source, correctLinkage bool) *StrengthCalculator {
	c := &StrengthCalculator{source: source}
	if correctLinkage {
		if lc, ok := source.(contact.LinkageCorrector); ok {
			c.corrector = lc
		}
	}
	return c
}

// Calculate scores count contacts between p1 and p2 given the cis and trans
// totals of both probes.
func (c *StrengthCalculator) Calculate(count, p1Cis, p1Trans, p2Cis, p2Trans int, p1, p2 *probe.Probe) Strength {
	cis := p1.Chrom == p2.Chrom

	if p1Cis+p1Trans == 0 || p2Cis+p2Trans == 0 {
		return neutral
	}
	if cis && c.source.CisCount() == 0 || !cis && c.source.TransCount() == 0 {
		return neutral
	}

	var trials int
	var expected float64
	if cis {
		denom := c.source.CisCountForChromosome(p1.Chrom)
		if denom <= 0 {
			return neutral
		}
		expected = float64(p2Cis) / float64(denom)
		if c.corrector != nil {
			shortest, longest := separation(p1, p2)
			expected *= c.corrector.CorrectionForLength(p1.Chrom, shortest, longest)
		}
		trials = p1Cis
	} else {
		denom := c.source.TransCount() - c.source.TransCountForChromosome(p1.Chrom)
		if denom <= 0 {
			return neutral
		}
		expected = float64(p2Trans) / float64(denom)
		trials = p1Trans
	}

	if expected > 1 {
		expected = 1
	}
	if expected <= 0 || trials <= 0 {
		return neutral
	}

	b := distuv.Binomial{N: float64(trials), P: expected}
	return Strength{
		Probability: expected,
		ObsExp:      float64(count) / (float64(trials) * expected),
		PValue:      b.Survival(float64(count - 1)),
	}
}

// separation returns the shortest and longest distance between two probes on
// the same chromosome.
func separation(p1, p2 *probe.Probe) (shortest, longest int64) {
	lowStart := min(p1.Start, p2.Start)
	highStart := max(p1.Start, p2.Start)
	lowEnd := min(p1.End, p2.End)
	highEnd := max(p1.End, p2.End)
	return highStart - lowEnd, highEnd - lowStart
}
