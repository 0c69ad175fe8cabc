package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-hic/internal/probe"
)

// ProbeListWriter writes probe lists in tab-delimited format. Each row
// carries the list name so several lists can share one file.
type ProbeListWriter struct {
	w *bufio.Writer
}

// NewProbeListWriter creates a new probe list writer.
func NewProbeListWriter(w io.Writer) *ProbeListWriter {
	return &ProbeListWriter{w: bufio.NewWriter(w)}
}

// WriteList writes the header line and one row per probe in l. Annotation
// values named by the list's ValueNames follow the coordinates.
func (pw *ProbeListWriter) WriteList(l *probe.List) error {
	header := append([]string{"List", "Probe", "Chromosome", "Start", "End"}, l.ValueNames...)
	if _, err := pw.w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}
	return pw.writeRows(l)
}

// WriteChildren writes every child of parent under a single header. The
// value columns are taken from the first child.
func (pw *ProbeListWriter) WriteChildren(parent *probe.List) error {
	children := parent.Children()

	header := []string{"List", "Probe", "Chromosome", "Start", "End"}
	if len(children) > 0 {
		header = append(header, children[0].ValueNames...)
	}
	if _, err := pw.w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}
	for _, c := range children {
		if err := pw.writeRows(c); err != nil {
			return err
		}
	}
	return nil
}

func (pw *ProbeListWriter) writeRows(l *probe.List) error {
	for _, p := range l.Probes() {
		values := []string{
			l.Name,
			p.String(),
			p.Chrom,
			strconv.FormatInt(p.Start, 10),
			strconv.FormatInt(p.End, 10),
		}
		for _, v := range l.Values(p) {
			values = append(values, strconv.FormatFloat(float64(v), 'f', 3, 32))
		}
		if _, err := pw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (pw *ProbeListWriter) Flush() error {
	return pw.w.Flush()
}
