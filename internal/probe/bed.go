package probe

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseError represents an error parsing a probe file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ReadBEDFile reads probes from a BED file (optionally gzipped) into a root
// probe set named after the file.
func ReadBEDFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open probe file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return ReadBED(r, name)
}

// ReadBED reads BED records from r. BED coordinates are 0-based half-open and
// are converted to 1-based inclusive probe coordinates. Header, track and
// comment lines are skipped.
func ReadBED(r io.Reader, name string) (*List, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var probes []*Probe
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("expected at least 3 columns, got %d", len(fields))}
		}

		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("invalid start %q", fields[1])}
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("invalid end %q", fields[2])}
		}
		if end <= start {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("end %d not after start %d", end, start)}
		}

		p := &Probe{Chrom: fields[0], Start: start + 1, End: end}
		if len(fields) > 3 && fields[3] != "." {
			p.Name = fields[3]
		}
		if len(fields) > 5 {
			switch fields[5] {
			case "+":
				p.Strand = 1
			case "-":
				p.Strand = -1
			}
		}
		probes = append(probes, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read probe file: %w", err)
	}

	return NewSet(name, probes), nil
}
