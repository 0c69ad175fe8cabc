package interaction

import (
	"context"
	"math"
	"math/bits"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/inodb/vibe-hic/internal/progress"
)

// CorrelationTag identifies correlation builds in progress.Listener.Complete.
const CorrelationTag = "interaction_cluster_matrix"

// Cluster is one connected group of probes, by global index.
type Cluster struct {
	Indices []int
	RValue  float32 // representative correlation of the group
}

// ClusterTree splits probes into connected clusters at a correlation
// threshold.
type ClusterTree interface {
	ConnectedClusters(rValue float32) []Cluster
}

// CorrelationMatrix holds the phi correlation between the interaction
// profiles of every pair of probes. A probe's profile records which probes,
// by global index, it interacts with.
type CorrelationMatrix struct {
	pairs      []*Pair
	probeCount int

	progress progress.Registry
	cancel   atomic.Bool

	corr *mat.SymDense
}

// NewCorrelationMatrix creates a correlation matrix over pairs between
// probeCount probes. Nothing is computed until Run.
func NewCorrelationMatrix(pairs []*Pair, probeCount int) *CorrelationMatrix {
	return &CorrelationMatrix{pairs: pairs, probeCount: probeCount}
}

// AddProgressListener registers a listener for build progress.
func (c *CorrelationMatrix) AddProgressListener(l progress.Listener) progress.Handle {
	return c.progress.Add(l)
}

// RemoveProgressListener unregisters a progress listener.
func (c *CorrelationMatrix) RemoveProgressListener(h progress.Handle) {
	c.progress.Remove(h)
}

// Cancel asks a running build to stop at its next checkpoint.
func (c *CorrelationMatrix) Cancel() {
	c.cancel.Store(true)
}

func (c *CorrelationMatrix) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || c.cancel.Load()
}

// Run computes the correlations. It returns ErrCancelled if the context is
// cancelled or Cancel is called.
func (c *CorrelationMatrix) Run(ctx context.Context) error {
	n := c.probeCount
	c.progress.Updated("Making correlation matrix", 0, 1)

	words := (n + 63) / 64
	profiles := make([][]uint64, n)
	for i := range profiles {
		profiles[i] = make([]uint64, words)
	}
	for _, p := range c.pairs {
		if c.cancelled(ctx) {
			c.progress.Cancelled()
			return ErrCancelled
		}
		setBit(profiles[p.Index1], p.Index2)
		setBit(profiles[p.Index2], p.Index1)
	}

	ones := make([]int, n)
	for i, prof := range profiles {
		ones[i] = popCount(prof)
	}

	corr := mat.NewSymDense(max(n, 1), nil)
	for i := 0; i < n; i++ {
		if i%progressInterval == 0 {
			c.progress.Updated("Making correlation matrix", i, n)
		}
		if c.cancelled(ctx) {
			c.progress.Cancelled()
			return ErrCancelled
		}
		for j := i + 1; j < n; j++ {
			both := 0
			for w := range profiles[i] {
				both += bits.OnesCount64(profiles[i][w] & profiles[j][w])
			}
			corr.SetSym(i, j, phi(n, ones[i], ones[j], both))
		}
	}

	c.corr = corr
	c.pairs = nil
	c.progress.Complete(CorrelationTag, c)
	return nil
}

func setBit(words []uint64, i int) {
	words[i/64] |= 1 << (uint(i) % 64)
}

func popCount(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}

// phi returns the correlation of two boolean vectors of length n with ones1
// and ones2 set entries, both of them set together. It is 0 when either
// vector is constant.
func phi(n, ones1, ones2, both int) float64 {
	n11 := float64(both)
	n10 := float64(ones1 - both)
	n01 := float64(ones2 - both)
	n00 := float64(n) - n11 - n10 - n01

	denom := math.Sqrt(float64(ones1) * float64(n-ones1) * float64(ones2) * float64(n-ones2))
	if denom <= 0 {
		return 0
	}
	return (n11*n00 - n10*n01) / denom
}

// ProbeCount returns the dimension of the matrix.
func (c *CorrelationMatrix) ProbeCount() int {
	return c.probeCount
}

// At returns the correlation between the probes with global indices i and j.
// The diagonal is zero. At panics if Run has not completed.
func (c *CorrelationMatrix) At(i, j int) float64 {
	if i == j {
		return 0
	}
	return c.corr.At(i, j)
}

// ClusterValue returns the average correlation between every probe of ind1
// and every probe of ind2.
func (c *CorrelationMatrix) ClusterValue(ind1, ind2 []int) float64 {
	if len(ind1) == 0 || len(ind2) == 0 {
		return 0
	}
	var total float64
	for _, i := range ind1 {
		for _, j := range ind2 {
			total += c.At(i, j)
		}
	}
	return total / float64(len(ind1)*len(ind2))
}

// ThresholdClusters implements ClusterTree over a correlation matrix: two
// probes are connected when their correlation exceeds the threshold.
type ThresholdClusters struct {
	corr *CorrelationMatrix
}

// NewThresholdClusters creates a clusterer over a computed matrix.
func NewThresholdClusters(corr *CorrelationMatrix) *ThresholdClusters {
	return &ThresholdClusters{corr: corr}
}

// ConnectedClusters returns the connected components of the graph linking
// probes with correlation above rValue, largest first. Equal sized clusters
// are ordered by their lowest index. RValue is the average correlation
// within the cluster, 1 for single probes.
func (t *ThresholdClusters) ConnectedClusters(rValue float32) []Cluster {
	n := t.corr.ProbeCount()
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if t.corr.At(i, j) > float64(rValue) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[max(ri, rj)] = min(ri, rj)
				}
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	clusters := make([]Cluster, 0, len(roots))
	for _, r := range roots {
		idx := groups[r]
		clusters = append(clusters, Cluster{Indices: idx, RValue: t.withinValue(idx)})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Indices) > len(clusters[j].Indices)
	})
	return clusters
}

func (t *ThresholdClusters) withinValue(idx []int) float32 {
	if len(idx) < 2 {
		return 1
	}
	var total float64
	count := 0
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			total += t.corr.At(idx[a], idx[b])
			count++
		}
	}
	return float32(total / float64(count))
}
