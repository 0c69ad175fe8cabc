package contact

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultReadLength is the read length assumed for pairs files which only
// record a single position per end.
const DefaultReadLength = 50

// Pair is one read pair from a pairs file.
type Pair struct {
	Chrom1 string
	Read1  Interval
	Chrom2 string
	Read2  Interval
}

// ParseError represents an error parsing a pairs file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// PairsParser reads read pairs from a text pairs file.
//
// Two layouts are accepted, whitespace separated:
//
//	readID chr1 pos1 chr2 pos2 [strand1 strand2 ...]   (4DN pairs)
//	chr1 pos1 chr2 pos2
//
// Lines starting with '#' are headers. Each end becomes an interval of the
// configured read length starting at pos (or ending at pos for '-' strand).
type PairsParser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	readLength int64
}

// NewPairsParser opens a pairs file. Gzipped files are detected by their
// magic bytes. A path of "-" reads from stdin.
func NewPairsParser(path string, readLength int64) (*PairsParser, error) {
	if path == "-" {
		return NewPairsParserFromReader(os.Stdin, readLength), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs file: %w", err)
	}

	p := &PairsParser{file: file, readLength: normaliseReadLength(readLength)}

	br := bufio.NewReader(file)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	return p, nil
}

// NewPairsParserFromReader creates a parser from an io.Reader.
func NewPairsParserFromReader(r io.Reader, readLength int64) *PairsParser {
	return &PairsParser{
		reader:     bufio.NewReader(r),
		readLength: normaliseReadLength(readLength),
	}
}

func normaliseReadLength(n int64) int64 {
	if n <= 0 {
		return DefaultReadLength
	}
	return n
}

// Next reads the next pair. Returns nil, nil when there are no more pairs.
func (p *PairsParser) Next() (*Pair, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read line %d: %w", p.lineNumber+1, err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}

		return p.parseLine(line)
	}
}

func (p *PairsParser) parseLine(line string) (*Pair, error) {
	fields := strings.Fields(line)

	var chrom1, pos1, chrom2, pos2 string
	var strand1, strand2 string
	switch {
	case len(fields) == 4:
		chrom1, pos1, chrom2, pos2 = fields[0], fields[1], fields[2], fields[3]
	case len(fields) >= 5:
		chrom1, pos1, chrom2, pos2 = fields[1], fields[2], fields[3], fields[4]
		if len(fields) >= 7 {
			strand1, strand2 = fields[5], fields[6]
		}
	default:
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("expected at least 4 columns, got %d", len(fields))}
	}

	p1, err := strconv.ParseInt(pos1, 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("invalid position %q", pos1)}
	}
	p2, err := strconv.ParseInt(pos2, 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: fmt.Sprintf("invalid position %q", pos2)}
	}

	return &Pair{
		Chrom1: chrom1,
		Read1:  p.readInterval(p1, strand1),
		Chrom2: chrom2,
		Read2:  p.readInterval(p2, strand2),
	}, nil
}

func (p *PairsParser) readInterval(pos int64, strand string) Interval {
	if strand == "-" {
		start := pos - p.readLength + 1
		if start < 1 {
			start = 1
		}
		return Interval{Start: start, End: pos}
	}
	return Interval{Start: pos, End: pos + p.readLength - 1}
}

// LineNumber returns the current line number.
func (p *PairsParser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and releases resources.
func (p *PairsParser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// LoadPairs reads every pair from the parser into the store and returns the
// number of pairs read.
func LoadPairs(p *PairsParser, s *Store) (int, error) {
	n := 0
	for {
		pair, err := p.Next()
		if err != nil {
			return n, err
		}
		if pair == nil {
			return n, nil
		}
		if err := s.AddPair(pair.Chrom1, pair.Read1, pair.Chrom2, pair.Read2); err != nil {
			return n, fmt.Errorf("add pair at line %d: %w", p.LineNumber(), err)
		}
		n++
	}
}
