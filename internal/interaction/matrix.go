package interaction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/probe"
	"github.com/inodb/vibe-hic/internal/progress"
)

// DefaultMaxInteractions bounds the per-probe count map and the retained
// interactions when Options.MaxInteractions is unset.
const DefaultMaxInteractions = math.MaxInt32

// maxStrengthValue caps MaxValue so a handful of extreme pairs cannot
// flatten a colour scale.
const maxStrengthValue = 100

// CompleteTag identifies matrix builds in progress.Listener.Complete.
const CompleteTag = "heatmap"

var (
	// ErrCancelled is returned by Run when the build was cancelled.
	ErrCancelled = errors.New("interaction matrix build cancelled")

	// ErrTooManyInteractions is reported as a warning when pairs are
	// dropped to stay within the interaction limit.
	ErrTooManyInteractions = errors.New("too many interactions")
)

// Options configures a Matrix.
type Options struct {
	// Filters are the initial bounds. Pairs outside them are never stored
	// and the current bounds can never be laxer.
	Filters Filters

	// CorrectLinkage corrects expected cis frequencies for the distance
	// between the probes when the source supports it.
	CorrectLinkage bool

	// MaxInteractions limits the pairs counted per probe and the pairs
	// retained overall. Zero means DefaultMaxInteractions.
	MaxInteractions int

	// Workers is the number of goroutines collecting probe totals.
	// Zero means runtime.NumCPU().
	Workers int
}

// Matrix builds the scored interactions between a set of probes and serves
// filtered views of them.
type Matrix struct {
	source  contact.Source
	index   *probe.Index
	opts    Options
	initial Filters
	logger  *zap.Logger

	progress progress.Registry
	cancel   atomic.Bool

	mu           sync.RWMutex
	current      Filters
	probeFilter  probeSet
	filterList   *probe.List
	interactions []*Pair
	filtered     []*Pair
	maxValue     float64
	cluster      ClusterTree
	clusterR     float32

	filterListeners filterRegistry
}

// NewMatrix creates a matrix over the probes of lists, scored from source.
// Nothing is counted until Run.
func NewMatrix(source contact.Source, lists []*probe.List, opts Options) *Matrix {
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = DefaultMaxInteractions
	}
	opts.Filters.MaxDistance = max(opts.Filters.MaxDistance, 0)
	return &Matrix{
		source:  source,
		index:   probe.NewIndex(lists...),
		opts:    opts,
		initial: opts.Filters,
		current: opts.Filters,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for build statistics and warnings.
func (m *Matrix) SetLogger(l *zap.Logger) {
	m.logger = l
}

// AddProgressListener registers a listener for build progress.
func (m *Matrix) AddProgressListener(l progress.Listener) progress.Handle {
	return m.progress.Add(l)
}

// RemoveProgressListener unregisters a progress listener.
func (m *Matrix) RemoveProgressListener(h progress.Handle) {
	m.progress.Remove(h)
}

// Cancel asks a running build to stop at its next checkpoint. The request
// is cleared when the next Run starts.
func (m *Matrix) Cancel() {
	m.cancel.Store(true)
}

func (m *Matrix) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || m.cancel.Load()
}

// Start runs the build on a new goroutine. The returned channel receives the
// result of the build and is then closed. Cancel may be called as soon as
// Start returns.
func (m *Matrix) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	m.cancel.Store(false)
	go func() {
		defer close(done)
		done <- m.run(ctx)
	}()
	return done
}

// Run counts the contacts between every pair of probes, scores and corrects
// them and publishes the pairs passing the initial filters. It returns
// ErrCancelled, leaving Interactions unset, if the context is cancelled or
// Cancel is called.
func (m *Matrix) Run(ctx context.Context) error {
	m.cancel.Store(false)
	return m.run(ctx)
}

func (m *Matrix) run(ctx context.Context) error {
	pairs, err := m.build(ctx)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			m.logger.Info("interaction matrix build cancelled")
			m.progress.Cancelled()
		}
		return err
	}

	maxValue := 0.0
	for _, p := range pairs {
		maxValue = max(maxValue, p.Strength)
	}

	m.mu.Lock()
	m.interactions = pairs
	m.filtered = nil
	m.maxValue = min(maxValue, maxStrengthValue)
	m.mu.Unlock()

	m.progress.Complete(CompleteTag, pairs)
	return nil
}

func (m *Matrix) build(ctx context.Context) ([]*Pair, error) {
	n := m.index.Len()
	initial := m.initial

	counter := NewCounter(m.index, m.source, initial.MaxDistance > 0, m.opts.MaxInteractions)
	counter.SetWorkers(m.opts.Workers)
	counter.SetProgress(&m.progress)
	counter.SetStopped(m.cancel.Load)

	totals, err := counter.Totals(ctx)
	if err != nil {
		return nil, err
	}
	if m.cancelled(ctx) {
		return nil, ErrCancelled
	}

	totalTests := TotalTests(m.index, initial.MaxDistance)
	m.logger.Info("collected probe totals",
		zap.Int("probes", n),
		zap.Int64("tests", totalTests))

	calc := NewStrengthCalculator(m.source, m.opts.CorrectLinkage)
	var pairs []*Pair
	retainedWarned := false

	for pos := 0; pos < n; pos++ {
		if pos%progressInterval == 0 {
			m.progress.Updated(fmt.Sprintf("Processed %d probes", pos), pos, n)
			if m.cancelled(ctx) {
				return nil, ErrCancelled
			}
		}

		counts, overflow, err := counter.Scan(ctx, pos)
		if err != nil {
			return nil, err
		}
		if overflow {
			m.warn(capacityError(m.opts.MaxInteractions, "interactions for probe "+m.index.At(pos).Probe.String()))
		}

		keys := make([]Key, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			absolute := counts[k]
			if absolute < initial.MinAbsolute {
				continue
			}

			pos1, pos2 := k.Unpack(n)
			p1, p2 := m.index.At(pos1), m.index.At(pos2)
			s := calc.Calculate(absolute,
				totals.Cis[pos1], totals.Trans[pos1],
				totals.Cis[pos2], totals.Trans[pos2],
				p1.Probe, p2.Probe)

			if s.ObsExp < initial.MinStrength {
				continue
			}
			if initial.MaxSignificance < 1 && s.PValue > initial.MaxSignificance {
				continue
			}

			pair := NewPair(p1, p2, s.ObsExp, absolute)
			pair.Significance = s.PValue
			if !initial.Passes(pair) {
				continue
			}

			if len(pairs) >= m.opts.MaxInteractions {
				if !retainedWarned {
					m.warn(capacityError(m.opts.MaxInteractions, "interactions passed the filters"))
					retainedWarned = true
				}
				continue
			}
			pairs = append(pairs, pair)
		}
	}

	Correct(pairs, totalTests)
	found := len(pairs)
	pairs = Retain(pairs, initial.MaxSignificance)
	m.logger.Info("corrected interactions",
		zap.Int("found", found),
		zap.Int("retained", len(pairs)))

	if pairs == nil {
		pairs = []*Pair{}
	}
	return pairs, nil
}

func (m *Matrix) warn(err error) {
	m.logger.Warn("interaction limit reached", zap.Error(err))
	m.progress.Warning(err)
}

// Interactions returns every corrected pair passing the initial filters, or
// nil if Run has not completed. The slice must not be modified.
func (m *Matrix) Interactions() []*Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.interactions
}

// FilteredInteractions returns the pairs passing the current filters. The
// result is cached until a filter changes; it is nil before Run completes.
func (m *Matrix) FilteredInteractions() []*Pair {
	m.mu.RLock()
	if m.filtered != nil || m.interactions == nil {
		f := m.filtered
		m.mu.RUnlock()
		return f
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.filtered == nil && m.interactions != nil {
		m.filtered = m.filter()
	}
	return m.filtered
}

// filter must be called with mu held.
func (m *Matrix) filter() []*Pair {
	filtered := make([]*Pair, 0, len(m.interactions))
	for _, p := range m.interactions {
		if m.probeFilter.touches(p) && m.current.Passes(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// setFilters applies update to the current bounds, clamps the result,
// invalidates the cache and notifies filter listeners.
func (m *Matrix) setFilters(kind FilterKind, update func(f *Filters)) {
	m.mu.Lock()
	update(&m.current)
	m.current = m.current.clamp(m.initial)
	m.filtered = nil
	ev := m.eventLocked(kind)
	m.mu.Unlock()

	m.filterListeners.notify(ev)
}

// must be called with mu held.
func (m *Matrix) eventLocked(kind FilterKind) FilterEvent {
	return FilterEvent{
		Kind:          kind,
		Filters:       m.current,
		ProbeFilter:   m.filterList,
		ClusterRValue: m.clusterR,
	}
}

// SetMinDistance sets the minimum distance between cis probes. Values below
// the initial minimum are raised to it.
func (m *Matrix) SetMinDistance(d int64) {
	m.setFilters(MinDistanceChanged, func(f *Filters) { f.MinDistance = d })
}

// SetMaxDistance sets the maximum distance between cis probes, 0 for no
// limit. When an initial maximum was set it can only be tightened.
func (m *Matrix) SetMaxDistance(d int64) {
	m.setFilters(MaxDistanceChanged, func(f *Filters) { f.MaxDistance = d })
}

// SetMinStrength sets the minimum observed/expected value.
func (m *Matrix) SetMinStrength(s float64) {
	m.setFilters(MinStrengthChanged, func(f *Filters) { f.MinStrength = s })
}

// SetMaxSignificance sets the maximum corrected p-value.
func (m *Matrix) SetMaxSignificance(s float64) {
	m.setFilters(MaxSignificanceChanged, func(f *Filters) { f.MaxSignificance = s })
}

// SetMinAbsolute sets the minimum number of supporting read pairs.
func (m *Matrix) SetMinAbsolute(n int) {
	m.setFilters(MinAbsoluteChanged, func(f *Filters) { f.MinAbsolute = n })
}

// SetProbeFilter restricts the filtered interactions to pairs with at least
// one probe in l. A nil list removes the restriction.
func (m *Matrix) SetProbeFilter(l *probe.List) {
	set := newProbeSet(l)

	m.mu.Lock()
	m.probeFilter = set
	m.filterList = l
	m.filtered = nil
	ev := m.eventLocked(ProbeFilterChanged)
	m.mu.Unlock()

	m.filterListeners.notify(ev)
}

// SetCluster sets the clustering of the current interactions used by
// ProbeListsFromClusters.
func (m *Matrix) SetCluster(c ClusterTree) {
	m.mu.Lock()
	m.cluster = c
	ev := m.eventLocked(ClusterChanged)
	m.mu.Unlock()

	m.filterListeners.notify(ev)
}

// SetClusterRValue sets the correlation threshold for splitting clusters.
func (m *Matrix) SetClusterRValue(r float32) {
	m.mu.Lock()
	m.clusterR = r
	ev := m.eventLocked(ClusterRValueChanged)
	m.mu.Unlock()

	m.filterListeners.notify(ev)
}

// InitialFilters returns the bounds the matrix was built with.
func (m *Matrix) InitialFilters() Filters {
	return m.initial
}

// CurrentFilters returns the bounds currently applied.
func (m *Matrix) CurrentFilters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// ProbeFilter returns the probe filter list, or nil.
func (m *Matrix) ProbeFilter() *probe.List {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterList
}

// Cluster returns the cluster tree, or nil.
func (m *Matrix) Cluster() ClusterTree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cluster
}

// ClusterRValue returns the current cluster threshold.
func (m *Matrix) ClusterRValue() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clusterR
}

// CorrectLinkage reports whether cis expectations are distance corrected.
func (m *Matrix) CorrectLinkage() bool {
	return m.opts.CorrectLinkage
}

// ProbeCount returns the number of indexed probes.
func (m *Matrix) ProbeCount() int {
	return m.index.Len()
}

// Index returns the probe index.
func (m *Matrix) Index() *probe.Index {
	return m.index
}

// MaxValue returns the largest retained observed/expected value, capped at 100.
func (m *Matrix) MaxValue() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxValue
}

// Source returns the contact source.
func (m *Matrix) Source() contact.Source {
	return m.source
}

// Lists returns the probe lists the matrix was built from.
func (m *Matrix) Lists() []*probe.List {
	return m.index.Lists()
}
