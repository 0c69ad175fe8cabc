package interaction

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/probe"
	"github.com/inodb/vibe-hic/internal/progress/progresstest"
)

func read(start int64) contact.Interval {
	return contact.Interval{Start: start, End: start + 49}
}

// addPairs adds n identical read pairs to s.
func addPairs(t *testing.T, s *contact.Store, n int, chrom1 string, pos1 int64, chrom2 string, pos2 int64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.AddPair(chrom1, read(pos1), chrom2, read(pos2)))
	}
}

// scenarioA builds three probes on one chromosome with 10 contacts between
// p0 and p1, 5 between p1 and p2 and none between p0 and p2. Unrelated
// contacts give every probe the same total of 15.
func scenarioA(t *testing.T) (*contact.Store, []*probe.Probe) {
	probes := []*probe.Probe{
		probe.New("1", 1, 100, "p0"),
		probe.New("1", 1001, 1100, "p1"),
		probe.New("1", 2001, 2100, "p2"),
	}
	s := contact.NewStore(contact.StoreOptions{})
	addPairs(t, s, 10, "1", 10, "1", 1010)
	addPairs(t, s, 5, "1", 1020, "1", 2010)
	addPairs(t, s, 5, "1", 20, "1", 50000)
	addPairs(t, s, 10, "1", 2020, "1", 60000)
	return s, probes
}

func findPair(pairs []*Pair, a, b *probe.Probe) *Pair {
	for _, p := range pairs {
		if p.Probe1 == a && p.Probe2 == b || p.Probe1 == b && p.Probe2 == a {
			return p
		}
	}
	return nil
}

func TestMatrix_ScenarioA(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))

	pairs := m.Interactions()
	require.Len(t, pairs, 2)

	p01 := findPair(pairs, probes[0], probes[1])
	p12 := findPair(pairs, probes[1], probes[2])
	require.NotNil(t, p01)
	require.NotNil(t, p12)
	assert.Nil(t, findPair(pairs, probes[0], probes[2]))

	assert.Equal(t, 10, p01.Absolute)
	assert.Equal(t, 5, p12.Absolute)
	assert.Greater(t, p01.Strength, p12.Strength)

	// Every probe has 15 cis contacts and chromosome 1 holds 30 cis pairs.
	assert.InDelta(t, 10.0/(15*0.5), p01.Strength, 1e-9)
	assert.InDelta(t, 5.0/(15*0.5), p12.Strength, 1e-9)
	assert.InDelta(t, 10.0/(15*0.5), m.MaxValue(), 1e-9)
}

func TestMatrix_PairInvariants(t *testing.T) {
	a := probe.New("1", 1, 100, "a")
	b := probe.New("1", 1001, 1100, "b")
	c := probe.New("1", 1050, 1200, "c")
	d := probe.New("2", 500, 600, "d")

	// b is listed twice; c overlaps b.
	l1 := probe.NewSet("first", []*probe.Probe{a, b, d})
	l2 := probe.NewSet("second", []*probe.Probe{b, c})

	s := contact.NewStore(contact.StoreOptions{})
	addPairs(t, s, 3, "1", 10, "1", 1060) // lands on b, b and c
	addPairs(t, s, 2, "1", 1010, "1", 1030)
	addPairs(t, s, 4, "1", 1150, "2", 520)
	addPairs(t, s, 1, "2", 510, "1", 30)

	m := NewMatrix(s, []*probe.List{l1, l2}, Options{Filters: DefaultFilters(), Workers: 2})
	require.NoError(t, m.Run(context.Background()))
	pairs := m.Interactions()
	require.NotEmpty(t, pairs)

	for _, p := range pairs {
		assert.Less(t, p.Index1, p.Index2)
		assert.NotSame(t, p.Probe1, p.Probe2)
	}

	// a with b (both copies) and with c, three reads each.
	var withA []*Pair
	for _, p := range pairs {
		if p.Probe1 == a && p.Probe2 != d {
			withA = append(withA, p)
		}
	}
	require.Len(t, withA, 3)
	for _, p := range withA {
		assert.Equal(t, 3, p.Absolute)
	}

	cd := findPair(pairs, c, d)
	require.NotNil(t, cd)
	assert.Equal(t, 4, cd.Absolute)
	ad := findPair(pairs, a, d)
	require.NotNil(t, ad)
	assert.Equal(t, 1, ad.Absolute)
}

func TestMatrix_ZeroContactProbe(t *testing.T) {
	s, probes := scenarioA(t)
	lonely := probe.New("3", 1, 100, "lonely")
	probes = append(probes, lonely)

	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))

	for _, p := range m.Interactions() {
		assert.NotSame(t, lonely, p.Probe1)
		assert.NotSame(t, lonely, p.Probe2)
	}
	assert.Len(t, m.Interactions(), 2)

	counter := NewCounter(m.Index(), s, false, DefaultMaxInteractions)
	totals, err := counter.Totals(context.Background())
	require.NoError(t, err)
	pos := m.Index().Len() - 1
	require.Same(t, lonely, m.Index().At(pos).Probe)
	assert.Zero(t, totals.Cis[pos])
	assert.Zero(t, totals.Trans[pos])
}

func TestMatrix_EmptyDataset(t *testing.T) {
	m := NewMatrix(contact.NewStore(contact.StoreOptions{}), []*probe.List{probe.NewSet("none", nil)}, Options{})
	require.NoError(t, m.Run(context.Background()))
	assert.NotNil(t, m.Interactions())
	assert.Empty(t, m.FilteredInteractions())
}

func transOnly(t *testing.T) (*contact.Store, []*probe.List) {
	a := probe.New("1", 1, 100, "a")
	b := probe.New("2", 1, 100, "b")
	c := probe.New("3", 1, 100, "c")
	s := contact.NewStore(contact.StoreOptions{})
	addPairs(t, s, 6, "1", 10, "2", 10)
	addPairs(t, s, 3, "2", 20, "3", 20)
	addPairs(t, s, 20, "1", 5000, "3", 5000)
	return s, []*probe.List{probe.NewSet("probes", []*probe.Probe{a, b, c})}
}

func TestMatrix_ScenarioC_TransExcludedByMaxDistance(t *testing.T) {
	s, lists := transOnly(t)
	m := NewMatrix(s, lists, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))
	require.Len(t, m.Interactions(), 2)
	require.Len(t, m.FilteredInteractions(), 2)

	m.SetMaxDistance(1000)
	assert.Empty(t, m.FilteredInteractions())
	assert.NotNil(t, m.FilteredInteractions())

	m.SetMaxDistance(0)
	assert.Len(t, m.FilteredInteractions(), 2)
}

func TestMatrix_InitialMaxDistanceSkipsTrans(t *testing.T) {
	s, lists := transOnly(t)
	m := NewMatrix(s, lists, Options{Filters: Filters{MaxDistance: 1000, MaxSignificance: 1}})
	require.NoError(t, m.Run(context.Background()))
	assert.Empty(t, m.Interactions())
}

// cancellingSource cancels the matrix once a number of probe queries have
// been served.
type cancellingSource struct {
	contact.Source
	m     *Matrix
	after int64
	calls atomic.Int64
}

func (c *cancellingSource) HitsForProbe(p *probe.Probe) *contact.HitCollection {
	if c.calls.Add(1) == c.after {
		c.m.Cancel()
	}
	return c.Source.HitsForProbe(p)
}

func TestMatrix_ScenarioD_CancelDuringScan(t *testing.T) {
	s, probes := scenarioA(t)
	src := &cancellingSource{Source: s, after: int64(len(probes)) + 1}
	m := NewMatrix(src, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters(), Workers: 1})
	src.m = m

	rec := &progresstest.Recorder{}
	m.AddProgressListener(rec)

	err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, m.Interactions())
	assert.Nil(t, m.FilteredInteractions())
	assert.Equal(t, 1, rec.Cancels)
	assert.Empty(t, rec.Completed)
	assert.Equal(t, int64(len(probes))+1, src.calls.Load(), "the scan stops at the first probe")
}

func TestMatrix_RunAfterCancel(t *testing.T) {
	s, probes := scenarioA(t)
	src := &cancellingSource{Source: s, after: int64(len(probes)) + 1}
	m := NewMatrix(src, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters(), Workers: 1})
	src.m = m

	require.ErrorIs(t, m.Run(context.Background()), ErrCancelled)

	// The source never cancels again, so the rebuild completes.
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, m.Interactions(), 2)

	m.Cancel()
	require.NoError(t, <-m.Start(context.Background()))
	assert.Len(t, m.Interactions(), 2)
}

func TestMatrix_CancelledContext(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := <-m.Start(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, m.Interactions())
}

func TestMatrix_Start(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	rec := &progresstest.Recorder{}
	h := m.AddProgressListener(rec)

	done := m.Start(context.Background())
	require.NoError(t, <-done)
	_, open := <-done
	assert.False(t, open)

	assert.Equal(t, []string{CompleteTag}, rec.Completed)
	require.Len(t, rec.Updates, 3)
	assert.Equal(t, "Getting probe total counts", rec.Updates[0].Message)
	assert.Equal(t, "Getting probe total counts", rec.Updates[1].Message)
	assert.Equal(t, 3, rec.Updates[1].Current)
	assert.Equal(t, "Processed 0 probes", rec.Updates[2].Message)

	m.RemoveProgressListener(h)
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, rec.Completed, 1)
}

func TestMatrix_MaxInteractions(t *testing.T) {
	probes := []*probe.Probe{
		probe.New("1", 1, 100, "p0"),
		probe.New("1", 1001, 1100, "p1"),
		probe.New("1", 2001, 2100, "p2"),
		probe.New("1", 3001, 3100, "p3"),
	}
	s := contact.NewStore(contact.StoreOptions{})
	addPairs(t, s, 2, "1", 10, "1", 1010)
	addPairs(t, s, 2, "1", 10, "1", 2010)
	addPairs(t, s, 2, "1", 10, "1", 3010)

	core, logs := observer.New(zap.WarnLevel)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters(), MaxInteractions: 1})
	m.SetLogger(zap.New(core))
	rec := &progresstest.Recorder{}
	m.AddProgressListener(rec)

	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, m.Interactions(), 1)

	require.NotEmpty(t, rec.Warnings)
	for _, w := range rec.Warnings {
		assert.ErrorIs(t, w, ErrTooManyInteractions)
	}
	assert.NotZero(t, logs.FilterMessage("interaction limit reached").Len())
}

func TestMatrix_InitialFiltersApplied(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{
		Filters: Filters{MinAbsolute: 6, MaxSignificance: 1},
	})
	require.NoError(t, m.Run(context.Background()))
	require.Len(t, m.Interactions(), 1)
	assert.Equal(t, 10, m.Interactions()[0].Absolute)

	m = NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{
		Filters: Filters{MinStrength: 1, MaxSignificance: 1},
	})
	require.NoError(t, m.Run(context.Background()))
	require.Len(t, m.Interactions(), 1)
	assert.Same(t, probes[1], m.Interactions()[0].Probe2)
}

func TestMatrix_SignificanceCorrected(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))

	pairs := m.Interactions()
	require.Len(t, pairs, 2)
	calc := NewStrengthCalculator(s, false)

	// Three probes give three possible tests.
	p01 := findPair(pairs, probes[0], probes[1])
	raw := calc.Calculate(10, 15, 0, 15, 0, probes[0], probes[1]).PValue
	assert.InDelta(t, raw*3, p01.Significance, 1e-9)
	assert.LessOrEqual(t, pairs[0].Significance, pairs[1].Significance)
}

func TestMatrix_FilterSettersClamp(t *testing.T) {
	initial := Filters{MinDistance: 100, MaxDistance: 10000, MinStrength: 1, MaxSignificance: 0.05, MinAbsolute: 2}
	m := NewMatrix(contact.NewStore(contact.StoreOptions{}), nil, Options{Filters: initial})

	m.SetMinDistance(50)
	assert.Equal(t, int64(100), m.CurrentFilters().MinDistance)
	m.SetMinDistance(500)
	assert.Equal(t, int64(500), m.CurrentFilters().MinDistance)

	m.SetMaxDistance(0)
	assert.Equal(t, int64(10000), m.CurrentFilters().MaxDistance)
	m.SetMaxDistance(20000)
	assert.Equal(t, int64(10000), m.CurrentFilters().MaxDistance)
	m.SetMaxDistance(5000)
	assert.Equal(t, int64(5000), m.CurrentFilters().MaxDistance)

	m.SetMinStrength(0.5)
	assert.Equal(t, 1.0, m.CurrentFilters().MinStrength)
	m.SetMinStrength(3)
	assert.Equal(t, 3.0, m.CurrentFilters().MinStrength)

	m.SetMaxSignificance(0.5)
	assert.Equal(t, 0.05, m.CurrentFilters().MaxSignificance)
	m.SetMaxSignificance(0.01)
	assert.Equal(t, 0.01, m.CurrentFilters().MaxSignificance)

	m.SetMinAbsolute(1)
	assert.Equal(t, 2, m.CurrentFilters().MinAbsolute)

	assert.Equal(t, initial, m.InitialFilters())
}

func TestMatrix_NoInitialMaxDistance(t *testing.T) {
	m := NewMatrix(contact.NewStore(contact.StoreOptions{}), nil, Options{Filters: DefaultFilters()})
	m.SetMaxDistance(5000)
	assert.Equal(t, int64(5000), m.CurrentFilters().MaxDistance)
	m.SetMaxDistance(0)
	assert.Equal(t, int64(0), m.CurrentFilters().MaxDistance)
	m.SetMaxDistance(-5)
	assert.Equal(t, int64(0), m.CurrentFilters().MaxDistance)
}

func TestMatrix_RoundTripAndMemo(t *testing.T) {
	s, probes := scenarioA(t)
	initial := DefaultFilters()
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: initial})
	require.NoError(t, m.Run(context.Background()))

	m.SetMinStrength(1)
	require.Len(t, m.FilteredInteractions(), 1)

	m.SetMinDistance(initial.MinDistance)
	m.SetMaxDistance(initial.MaxDistance)
	m.SetMinStrength(initial.MinStrength)
	m.SetMaxSignificance(initial.MaxSignificance)
	m.SetMinAbsolute(initial.MinAbsolute)
	assert.Equal(t, m.Interactions(), m.FilteredInteractions())

	first := m.FilteredInteractions()
	second := m.FilteredInteractions()
	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0], "unchanged filters reuse the cached slice")

	m.SetMinAbsolute(initial.MinAbsolute)
	third := m.FilteredInteractions()
	assert.NotSame(t, &first[0], &third[0], "a setter invalidates the cache")
	assert.Equal(t, first, third)
}

func TestMatrix_ProbeFilter(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))

	only0 := probe.NewSet("p0", []*probe.Probe{probes[0]})
	m.SetProbeFilter(only0)
	require.Len(t, m.FilteredInteractions(), 1)
	assert.Same(t, probes[0], m.FilteredInteractions()[0].Probe1)
	assert.Same(t, only0, m.ProbeFilter())

	// p1 is in both interactions.
	m.SetProbeFilter(probe.NewSet("p1", []*probe.Probe{probes[1]}))
	assert.Len(t, m.FilteredInteractions(), 2)

	m.SetProbeFilter(nil)
	assert.Len(t, m.FilteredInteractions(), 2)
	assert.Nil(t, m.ProbeFilter())
}

func TestMatrix_FilterListeners(t *testing.T) {
	initial := Filters{MinDistance: 100, MaxSignificance: 1}
	m := NewMatrix(contact.NewStore(contact.StoreOptions{}), nil, Options{Filters: initial})

	var events []FilterEvent
	h := m.OnFilterChange(func(ev FilterEvent) {
		// The new bounds are visible from inside the callback.
		assert.Equal(t, ev.Filters, m.CurrentFilters())
		events = append(events, ev)
	})

	m.SetMinDistance(10)
	m.SetMinStrength(2)
	m.SetClusterRValue(0.7)
	m.SetCluster(nil)
	m.SetProbeFilter(nil)

	require.Len(t, events, 5)
	assert.Equal(t, MinDistanceChanged, events[0].Kind)
	assert.Equal(t, int64(100), events[0].Filters.MinDistance, "events carry clamped bounds")
	assert.Equal(t, MinStrengthChanged, events[1].Kind)
	assert.Equal(t, 2.0, events[1].Filters.MinStrength)
	assert.Equal(t, ClusterRValueChanged, events[2].Kind)
	assert.Equal(t, float32(0.7), events[2].ClusterRValue)
	assert.Equal(t, ClusterChanged, events[3].Kind)
	assert.Equal(t, ProbeFilterChanged, events[4].Kind)
	assert.Equal(t, "min_strength", events[1].Kind.String())

	m.RemoveFilterListener(h)
	m.SetMinAbsolute(3)
	assert.Len(t, events, 5)
}

func TestMatrix_ClusterSettersKeepCache(t *testing.T) {
	s, probes := scenarioA(t)
	m := NewMatrix(s, []*probe.List{probe.NewSet("probes", probes)}, Options{Filters: DefaultFilters()})
	require.NoError(t, m.Run(context.Background()))

	first := m.FilteredInteractions()
	m.SetClusterRValue(0.5)
	second := m.FilteredInteractions()
	assert.Same(t, &first[0], &second[0])
}

func TestMatrix_Accessors(t *testing.T) {
	s, probes := scenarioA(t)
	lists := []*probe.List{probe.NewSet("probes", probes)}
	m := NewMatrix(s, lists, Options{Filters: DefaultFilters(), CorrectLinkage: true})

	assert.Equal(t, 3, m.ProbeCount())
	assert.Same(t, s, m.Source().(*contact.Store))
	assert.Equal(t, lists, m.Lists())
	assert.True(t, m.CorrectLinkage())
	assert.Nil(t, m.Interactions())
	assert.Nil(t, m.FilteredInteractions())
	assert.Zero(t, m.MaxValue())
}
