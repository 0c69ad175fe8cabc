// Package output provides interaction report and probe list formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-hic/internal/duckdb"
	"github.com/inodb/vibe-hic/internal/interaction"
	"github.com/inodb/vibe-hic/internal/probe"
)

// ReportWriter writes interactions in tab-delimited format, one row per
// interaction with the lowest probe first.
type ReportWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewReportWriter creates a new tab-delimited interaction report writer.
func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"Probe1",
			"Chromosome",
			"Start",
			"End",
			"Probe2",
			"Chromosome",
			"Start",
			"End",
			"Distance",
			"Obs/Exp",
			"P-value",
			"Interactions",
		},
	}
}

// WriteHeader writes the header line.
func (rw *ReportWriter) WriteHeader() error {
	_, err := rw.w.WriteString(strings.Join(rw.columns, "\t") + "\n")
	return err
}

// Write writes a single interaction.
func (rw *ReportWriter) Write(p *interaction.Pair) error {
	// Trans interactions have no distance
	distance := "-"
	if d, cis := p.Distance(); cis {
		distance = strconv.FormatInt(d, 10)
	}
	return rw.writeRow(p.LowestProbe(), p.HighestProbe(), distance, p.Strength, p.Significance, p.Absolute)
}

// WriteStored writes an interaction read back from a results database.
func (rw *ReportWriter) WriteStored(r duckdb.InteractionRow) error {
	low := probe.New(r.Chrom1, r.Start1, r.End1, r.Probe1)
	high := probe.New(r.Chrom2, r.Start2, r.End2, r.Probe2)
	if probe.Compare(low, high) > 0 {
		low, high = high, low
	}

	distance := "-"
	if r.Cis {
		distance = strconv.FormatInt(r.Distance, 10)
	}
	return rw.writeRow(low, high, distance, r.ObsExp, r.PValue, r.Absolute)
}

func (rw *ReportWriter) writeRow(low, high *probe.Probe, distance string, strength, significance float64, absolute int) error {
	values := []string{
		low.String(),
		low.Chrom,
		strconv.FormatInt(low.Start, 10),
		strconv.FormatInt(low.End, 10),
		high.String(),
		high.Chrom,
		strconv.FormatInt(high.Start, 10),
		strconv.FormatInt(high.End, 10),
		distance,
		strconv.FormatFloat(strength, 'f', 3, 64),
		strconv.FormatFloat(significance, 'g', 4, 64),
		strconv.Itoa(absolute),
	}

	_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header followed by every interaction and flushes.
func (rw *ReportWriter) WriteAll(pairs []*interaction.Pair) error {
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := rw.Write(p); err != nil {
			return err
		}
	}
	return rw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (rw *ReportWriter) Flush() error {
	return rw.w.Flush()
}
