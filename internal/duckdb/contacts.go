package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inodb/vibe-hic/internal/contact"
)

// WriteContacts batch-inserts read pairs into the contacts table using the
// Appender API.
func (s *Store) WriteContacts(pairs []contact.Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	a, err := s.newAppender("contacts")
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := appendContact(a, p); err != nil {
			a.Close()
			return err
		}
	}
	return a.Close()
}

// ImportPairs streams every pair from the parser into the contacts table and
// returns the number of pairs written.
func (s *Store) ImportPairs(p *contact.PairsParser) (int, error) {
	a, err := s.newAppender("contacts")
	if err != nil {
		return 0, err
	}

	n := 0
	for {
		pair, err := p.Next()
		if err != nil {
			return n, errors.Join(err, a.Close())
		}
		if pair == nil {
			break
		}
		if err := appendContact(a, *pair); err != nil {
			return n, errors.Join(err, a.Close())
		}
		n++
	}
	if err := a.Close(); err != nil {
		return n, fmt.Errorf("flush contacts: %w", err)
	}
	return n, nil
}

func appendContact(a *appender, p contact.Pair) error {
	if err := a.AppendRow(
		p.Chrom1, p.Read1.Start, p.Read1.End,
		p.Chrom2, p.Read2.Start, p.Read2.End,
	); err != nil {
		return fmt.Errorf("append contact: %w", err)
	}
	return nil
}

// LoadContacts adds every stored contact to dst and returns the number of
// pairs read. Pairs rejected by dst's options are still counted.
func (s *Store) LoadContacts(dst *contact.Store) (int, error) {
	rows, err := s.db.Query(`SELECT chrom1, start1, end1, chrom2, start2, end2 FROM contacts`)
	if err != nil {
		return 0, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var p contact.Pair
		if err := rows.Scan(
			&p.Chrom1, &p.Read1.Start, &p.Read1.End,
			&p.Chrom2, &p.Read2.Start, &p.Read2.End,
		); err != nil {
			return n, fmt.Errorf("scan contact: %w", err)
		}
		if err := dst.AddPair(p.Chrom1, p.Read1, p.Chrom2, p.Read2); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate contacts: %w", err)
	}
	return n, nil
}

// ContactCount returns the number of stored read pairs.
func (s *Store) ContactCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

// ChromosomeContactCounts returns the number of stored read ends per
// chromosome.
func (s *Store) ChromosomeContactCounts() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT chrom, COUNT(*) FROM (
		SELECT chrom1 AS chrom FROM contacts
		UNION ALL
		SELECT chrom2 AS chrom FROM contacts
	) GROUP BY chrom`)
	if err != nil {
		return nil, fmt.Errorf("query chromosome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var chrom string
		var n int64
		if err := rows.Scan(&chrom, &n); err != nil {
			return nil, fmt.Errorf("scan chromosome count: %w", err)
		}
		counts[chrom] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chromosome counts: %w", err)
	}
	return counts, nil
}

// ClearContacts removes all stored contacts and their source records.
func (s *Store) ClearContacts() error {
	if _, err := s.db.Exec("DELETE FROM contacts"); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM contact_sources")
	return err
}

// RecordContactSource records the pairs file the contacts were imported from.
func (s *Store) RecordContactSource(fp FileFingerprint, readLength int64, pairs int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO contact_sources (path, size, mod_time, read_length, pairs)
		VALUES (?, ?, ?, ?, ?)`, fp.Path, fp.Size, fp.ModTime.UTC(), readLength, pairs)
	if err != nil {
		return fmt.Errorf("record contact source: %w", err)
	}
	return nil
}

// ContactSourceValid reports whether the contacts were imported from a file
// matching fp with the same read length.
func (s *Store) ContactSourceValid(fp FileFingerprint, readLength int64) bool {
	var size, length int64
	var modTime sql.NullTime
	err := s.db.QueryRow(`SELECT size, mod_time, read_length FROM contact_sources WHERE path = ?`, fp.Path).
		Scan(&size, &modTime, &length)
	if err != nil {
		return false
	}
	return size == fp.Size && length == readLength && modTime.Valid && modTime.Time.Equal(fp.ModTime.UTC().Truncate(time.Microsecond))
}
