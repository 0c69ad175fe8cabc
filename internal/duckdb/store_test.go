package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/interaction"
	"github.com/inodb/vibe-hic/internal/probe"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func iv(start, end int64) contact.Interval {
	return contact.Interval{Start: start, End: end}
}

// --- Contacts ---

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contacts.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteAndLoadContacts(t *testing.T) {
	s := openInMemory(t)

	pairs := []contact.Pair{
		{Chrom1: "1", Read1: iv(100, 149), Chrom2: "1", Read2: iv(5000, 5049)},
		{Chrom1: "1", Read1: iv(120, 169), Chrom2: "2", Read2: iv(300, 349)},
	}
	require.NoError(t, s.WriteContacts(pairs))
	require.NoError(t, s.WriteContacts(nil))

	n, err := s.ContactCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	dst := contact.NewStore(contact.StoreOptions{})
	loaded, err := s.LoadContacts(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, int64(2), dst.CisCount())
	assert.Equal(t, int64(2), dst.TransCount())

	hits := dst.HitsForProbe(probe.New("1", 1, 500, "p"))
	assert.Equal(t, []contact.Interval{iv(5000, 5049)}, hits.Targets("1"))
	assert.Equal(t, []contact.Interval{iv(300, 349)}, hits.Targets("2"))

	counts, err := s.ChromosomeContactCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"1": 3, "2": 1}, counts)
}

func TestLoadContacts_StoreOptionsApply(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteContacts([]contact.Pair{
		{Chrom1: "1", Read1: iv(100, 149), Chrom2: "2", Read2: iv(300, 349)},
		{Chrom1: "1", Read1: iv(100, 149), Chrom2: "1", Read2: iv(200, 249)},
	}))

	dst := contact.NewStore(contact.StoreOptions{IgnoreTrans: true, MinDistance: 1000})
	n, err := s.LoadContacts(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, dst.PairCount())
}

func TestImportPairs(t *testing.T) {
	s := openInMemory(t)
	input := "#columns: readID chr1 pos1 chr2 pos2 strand1 strand2\n" +
		"r1\t1\t100\t1\t5000\t+\t-\n" +
		"r2\t1\t120\t2\t300\t-\t+\n"
	p := contact.NewPairsParserFromReader(strings.NewReader(input), 50)

	n, err := s.ImportPairs(p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := contact.NewStore(contact.StoreOptions{})
	_, err = s.LoadContacts(dst)
	require.NoError(t, err)
	hits := dst.HitsForProbe(probe.New("1", 4960, 4970, "p"))
	assert.Equal(t, []contact.Interval{iv(100, 149)}, hits.Targets("1"))
}

func TestImportPairs_ParseError(t *testing.T) {
	s := openInMemory(t)
	p := contact.NewPairsParserFromReader(strings.NewReader("1 100 1 200\n1 x\n"), 50)

	n, err := s.ImportPairs(p)
	require.Error(t, err)
	var pe *contact.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, n)
}

func TestClearContacts(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteContacts([]contact.Pair{
		{Chrom1: "1", Read1: iv(100, 149), Chrom2: "1", Read2: iv(5000, 5049)},
	}))
	require.NoError(t, s.RecordContactSource(FileFingerprint{Path: "/x.pairs", Size: 1, ModTime: time.Now()}, 50, 1))

	require.NoError(t, s.ClearContacts())
	n, err := s.ContactCount()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, s.ContactSourceValid(FileFingerprint{Path: "/x.pairs", Size: 1}, 50))
}

func TestContactSource(t *testing.T) {
	s := openInMemory(t)
	now := time.Now()
	fp := FileFingerprint{Path: "/data/sample.pairs.gz", Size: 1000, ModTime: now}

	assert.False(t, s.ContactSourceValid(fp, 50))

	require.NoError(t, s.RecordContactSource(fp, 50, 42))
	assert.True(t, s.ContactSourceValid(fp, 50))
	assert.False(t, s.ContactSourceValid(fp, 100), "different read length")

	changed := fp
	changed.Size = 2000
	assert.False(t, s.ContactSourceValid(changed, 50))

	changed = fp
	changed.ModTime = now.Add(time.Hour)
	assert.False(t, s.ContactSourceValid(changed, 50))

	// Re-importing replaces the record.
	require.NoError(t, s.RecordContactSource(changed, 50, 43))
	assert.True(t, s.ContactSourceValid(changed, 50))
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pairs")
	require.NoError(t, os.WriteFile(path, []byte("1 1 1 1\n"), 0644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8), fp.Size)
	assert.True(t, filepath.IsAbs(fp.Path))

	_, err = StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

// --- Interactions ---

func buildInteractions(t *testing.T) []*interaction.Pair {
	t.Helper()
	probes := []*probe.Probe{
		probe.New("1", 1, 100, "p0"),
		probe.New("1", 1001, 1100, "p1"),
		probe.New("2", 1, 100, "p2"),
	}
	s := contact.NewStore(contact.StoreOptions{})
	add := func(n int, c1 string, pos1 int64, c2 string, pos2 int64) {
		for i := 0; i < n; i++ {
			require.NoError(t, s.AddPair(c1, iv(pos1, pos1+49), c2, iv(pos2, pos2+49)))
		}
	}
	add(10, "1", 10, "1", 1010)
	add(4, "1", 1020, "2", 10)
	add(5, "1", 20, "1", 50000)
	add(3, "2", 30, "3", 500)

	m := interaction.NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)},
		interaction.Options{Filters: interaction.DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))
	return m.Interactions()
}

func TestWriteAndQueryInteractions(t *testing.T) {
	s := openInMemory(t)
	pairs := buildInteractions(t)
	require.Len(t, pairs, 2)

	require.NoError(t, s.WriteInteractions(pairs))
	require.NoError(t, s.WriteInteractions(nil))

	n, err := s.InteractionCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.InteractionsForProbe("p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.GreaterOrEqual(t, rows[0].ObsExp, rows[1].ObsExp)

	rows, err = s.InteractionsForProbe("p0")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "p0", r.Probe1)
	assert.Equal(t, "p1", r.Probe2)
	assert.True(t, r.Cis)
	assert.Equal(t, int64(901), r.Distance)
	assert.Equal(t, 10, r.Absolute)
	assert.Less(t, r.Index1, r.Index2)

	rows, err = s.InteractionsForProbe("p2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Cis)
	assert.Zero(t, rows[0].Distance)

	rows, err = s.InteractionsForProbe("missing")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSignificantInteractions(t *testing.T) {
	s := openInMemory(t)
	pairs := buildInteractions(t)
	require.NoError(t, s.WriteInteractions(pairs))

	rows, err := s.SignificantInteractions(1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.LessOrEqual(t, rows[0].PValue, rows[1].PValue)

	rows, err = s.SignificantInteractions(1, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.SignificantInteractions(-1, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClearInteractions(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteInteractions(buildInteractions(t)))
	require.NoError(t, s.ClearInteractions())

	n, err := s.InteractionCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}
