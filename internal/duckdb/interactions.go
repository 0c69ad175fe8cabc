package duckdb

import (
	"fmt"

	"github.com/inodb/vibe-hic/internal/interaction"
)

// InteractionRow is one stored interaction.
type InteractionRow struct {
	Probe1   string
	Chrom1   string
	Start1   int64
	End1     int64
	Index1   int
	Probe2   string
	Chrom2   string
	Start2   int64
	End2     int64
	Index2   int
	Cis      bool
	Distance int64 // 0 for trans rows
	ObsExp   float64
	PValue   float64
	Absolute int
}

// WriteInteractions batch-inserts scored interactions using the Appender API.
func (s *Store) WriteInteractions(pairs []*interaction.Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	a, err := s.newAppender("interactions")
	if err != nil {
		return err
	}

	for _, p := range pairs {
		distance, cis := p.Distance()
		if err := a.AppendRow(
			p.Probe1.String(), p.Probe1.Chrom, p.Probe1.Start, p.Probe1.End, int32(p.Index1),
			p.Probe2.String(), p.Probe2.Chrom, p.Probe2.Start, p.Probe2.End, int32(p.Index2),
			cis, distance, p.Strength, p.Significance, int32(p.Absolute),
		); err != nil {
			a.Close()
			return fmt.Errorf("append interaction: %w", err)
		}
	}

	return a.Close()
}

// ClearInteractions removes all stored interactions.
func (s *Store) ClearInteractions() error {
	_, err := s.db.Exec("DELETE FROM interactions")
	return err
}

const interactionColumns = `probe1, chrom1, start1, end1, index1,
	probe2, chrom2, start2, end2, index2,
	cis, distance, obs_exp, p_value, absolute`

// InteractionsForProbe returns the stored interactions with either end named
// probe, strongest first.
func (s *Store) InteractionsForProbe(probe string) ([]InteractionRow, error) {
	rows, err := s.db.Query(`SELECT `+interactionColumns+`
		FROM interactions
		WHERE probe1=? OR probe2=?
		ORDER BY obs_exp DESC, index1, index2`, probe, probe)
	if err != nil {
		return nil, fmt.Errorf("query by probe: %w", err)
	}
	defer rows.Close()

	return scanInteractionRows(rows)
}

// SignificantInteractions returns the stored interactions with a p-value at
// most maxP, most significant first. A limit of 0 returns them all.
func (s *Store) SignificantInteractions(maxP float64, limit int) ([]InteractionRow, error) {
	query := `SELECT ` + interactionColumns + `
		FROM interactions
		WHERE p_value <= ?
		ORDER BY p_value, index1, index2`
	args := []any{maxP}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query significant interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractionRows(rows)
}

// InteractionCount returns the number of stored interactions.
func (s *Store) InteractionCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// scanInteractionRows scans rows into InteractionRow slices.
func scanInteractionRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]InteractionRow, error) {
	var results []InteractionRow
	for rows.Next() {
		var r InteractionRow
		var index1, index2, absolute int32
		if err := rows.Scan(
			&r.Probe1, &r.Chrom1, &r.Start1, &r.End1, &index1,
			&r.Probe2, &r.Chrom2, &r.Start2, &r.End2, &index2,
			&r.Cis, &r.Distance, &r.ObsExp, &r.PValue, &absolute,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		r.Index1, r.Index2, r.Absolute = int(index1), int(index2), int(absolute)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return results, nil
}
