// Package probe provides genomic probe intervals and probe collections.
package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Probe is a genomic interval over which contacts are aggregated.
// Probes are never modified once created.
type Probe struct {
	Chrom  string // Chromosome name
	Start  int64  // Start position (1-based)
	End    int64  // End position (1-based, inclusive)
	Strand int8   // +1, -1 or 0 for unknown
	Name   string // Optional name
}

// New creates an unstranded probe.
func New(chrom string, start, end int64, name string) *Probe {
	return &Probe{Chrom: chrom, Start: start, End: end, Name: name}
}

// Length returns the number of bases covered by the probe.
func (p *Probe) Length() int64 {
	return p.End - p.Start + 1
}

// Overlaps returns true if the probe overlaps [start, end] on the same chromosome.
func (p *Probe) Overlaps(start, end int64) bool {
	return p.Start <= end && p.End >= start
}

// String formats the probe as name or chrom:start-end.
func (p *Probe) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s:%d-%d", p.Chrom, p.Start, p.End)
}

// Compare orders probes by chromosome, start, end and name.
// It returns 0 for distinct probes at identical coordinates with the same name,
// so stable sorts keep their input order.
func Compare(a, b *Probe) int {
	if a == b {
		return 0
	}
	if c := CompareChrom(a.Chrom, b.Chrom); c != 0 {
		return c
	}
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	case a.End < b.End:
		return -1
	case a.End > b.End:
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// CompareChrom orders chromosome names naturally: numbered chromosomes first
// in numeric order, then the rest alphabetically. A "chr" prefix is ignored.
func CompareChrom(a, b string) int {
	if a == b {
		return 0
	}
	na, aNum := chromNumber(a)
	nb, bNum := chromNumber(b)
	switch {
	case aNum && bNum:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case aNum:
		return -1
	case bNum:
		return 1
	}
	if c := strings.Compare(trimChr(a), trimChr(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func chromNumber(name string) (int, bool) {
	n, err := strconv.Atoi(trimChr(name))
	if err != nil {
		return 0, false
	}
	return n, true
}

func trimChr(name string) string {
	if len(name) > 3 && strings.EqualFold(name[:3], "chr") {
		return name[3:]
	}
	return name
}
