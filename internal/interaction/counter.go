package interaction

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/probe"
	"github.com/inodb/vibe-hic/internal/progress"
)

// progressInterval is the number of probes between progress notifications
// and cancellation checks.
const progressInterval = 100

const totalsMessage = "Getting probe total counts"

// Totals holds the cis and trans contact totals of every probe, indexed by
// sorted position.
type Totals struct {
	Cis   []int
	Trans []int
}

// Counter counts contacts between the probes of an index.
type Counter struct {
	index           *probe.Index
	source          contact.Source
	cisOnly         bool
	maxInteractions int
	workers         int
	progress        *progress.Registry
	stopped         func() bool
}

// NewCounter creates a counter. When cisOnly is set, contacts with other
// chromosomes are never examined. Raw count maps hold at most maxInteractions
// pairs per probe.
func NewCounter(index *probe.Index, source contact.Source, cisOnly bool, maxInteractions int) *Counter {
	return &Counter{
		index:           index,
		source:          source,
		cisOnly:         cisOnly,
		maxInteractions: maxInteractions,
		stopped:         func() bool { return false },
	}
}

// SetWorkers sets the number of goroutines used to collect totals.
// If workers is 0, runtime.NumCPU() is used.
func (c *Counter) SetWorkers(workers int) {
	c.workers = workers
}

// SetProgress sets the registry notified while totals are collected.
func (c *Counter) SetProgress(r *progress.Registry) {
	c.progress = r
}

// SetStopped sets an extra cancellation check polled with the context.
func (c *Counter) SetStopped(fn func() bool) {
	c.stopped = fn
}

func (c *Counter) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || c.stopped()
}

// Totals counts, for every probe, the contacts with an end on the probe's own
// chromosome (cis) and on any other chromosome (trans). Progress reports the
// number of probes finished, ending at the probe count.
func (c *Counter) Totals(ctx context.Context) (*Totals, error) {
	n := c.index.Len()
	totals := &Totals{Cis: make([]int, n), Trans: make([]int, n)}

	workers := c.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Progress counts finished probes. Reports are made under the lock so
	// listeners see them in order.
	var (
		mu        sync.Mutex
		completed int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if c.progress != nil && (completed%progressInterval == 0 || completed == n) {
			c.progress.Updated(totalsMessage, completed, n)
		}
	}
	if c.progress != nil {
		c.progress.Updated(totalsMessage, 0, n)
	}

	positions := make(chan int, 2*workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for pos := range positions {
				p := c.index.At(pos).Probe
				hits := c.source.HitsForProbe(p)
				cis := hits.Count(p.Chrom)
				totals.Cis[pos] = cis
				totals.Trans[pos] = hits.Total() - cis
				report()
			}
		}()
	}

	var err error
	for pos := 0; pos < n; pos++ {
		if pos%progressInterval == 0 && c.cancelled(ctx) {
			err = ErrCancelled
			break
		}
		positions <- pos
	}
	close(positions)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return totals, nil
}

// Scan counts the contacts between the probe at sorted position pos and every
// probe with a higher global index. It returns the raw counts and whether
// pairs were dropped because the map reached its size limit.
func (c *Counter) Scan(ctx context.Context, pos int) (map[Key]int, bool, error) {
	n := c.index.Len()
	from := c.index.At(pos)
	counts := make(map[Key]int)
	overflow := false

	credit := func(toPos int) bool {
		to := c.index.At(toPos)
		if from.Index >= to.Index || from.Probe == to.Probe {
			return true
		}
		k := NewKey(pos, toPos, n)
		if _, ok := counts[k]; !ok && len(counts) >= c.maxInteractions {
			overflow = true
			return false
		}
		counts[k]++
		return true
	}

	hits := c.source.HitsForProbe(from.Probe)

chromosomes:
	for _, chrom := range hits.Chromosomes() {
		if c.cisOnly && chrom != from.Probe.Chrom {
			continue
		}
		last, ok := c.index.Offset(chrom)
		if !ok {
			continue
		}

		targets := hits.Targets(chrom)
		sort.Slice(targets, func(i, j int) bool {
			if targets[i].Start != targets[j].Start {
				return targets[i].Start < targets[j].Start
			}
			return targets[i].End < targets[j].End
		})

	records:
		for _, r := range targets {
			if c.cancelled(ctx) {
				return nil, false, ErrCancelled
			}

			for x := last; x < n; x++ {
				xp := c.index.At(x).Probe
				if xp.Chrom != chrom {
					// Records are sorted, so no later record on this
					// chromosome can reach a probe either.
					continue chromosomes
				}
				if xp.Start > r.End {
					continue records
				}
				if !r.Overlaps(xp.Start, xp.End) {
					continue
				}

				credit(x)
				last = x

				// Following probes which repeat this one or also overlap the
				// record share the contact.
				for x = x + 1; x < n; x++ {
					prev, cur := c.index.At(x-1).Probe, c.index.At(x).Probe
					if cur.Chrom != prev.Chrom {
						break
					}
					if cur != prev && !r.Overlaps(cur.Start, cur.End) {
						break
					}
					if !credit(x) {
						continue records
					}
				}
				continue records
			}
		}
	}

	return counts, overflow, nil
}

// capacityError wraps ErrTooManyInteractions with the limit that was hit.
func capacityError(limit int, what string) error {
	return fmt.Errorf("more than %d %s: %w", limit, what, ErrTooManyInteractions)
}
