package interaction

import (
	"errors"
	"fmt"
	"slices"

	"github.com/inodb/vibe-hic/internal/probe"
)

// ErrNoCluster is returned by ProbeListsFromClusters when no cluster tree
// has been set.
var ErrNoCluster = errors.New("no cluster tree set")

// ProbeListFromCurrentInteractions returns a list of every probe in the
// filtered interactions, each once, in interaction order. The list is a
// child of the nearest common parent of the matrix's probe lists, or a root
// list when they share none.
func (m *Matrix) ProbeListFromCurrentInteractions() *probe.List {
	parent := probe.CommonParent(m.Lists()...)
	list := probe.NewList(parent, "Filtered HiC hits", "HiC hits "+listName(parent), nil)

	seen := make(map[*probe.Probe]bool)
	for _, p := range m.FilteredInteractions() {
		for _, pr := range []*probe.Probe{p.Probe1, p.Probe2} {
			if !seen[pr] {
				list.Add(pr, nil)
				seen[pr] = true
			}
		}
	}
	return list
}

// ProbeListsFromClusters splits the probes into one list per connected
// cluster at the current cluster threshold. Clusters are paged by their
// cumulative probe position: a cluster starting before start is skipped and
// the walk stops once the position passes end. Clusters with fewer than
// minSize distinct probes are dropped.
//
// The returned parent list holds every clustered probe once and has one
// child per cluster, each probe annotated with the cluster's R-value.
func (m *Matrix) ProbeListsFromClusters(minSize, start, end int) (*probe.List, error) {
	m.mu.RLock()
	tree, r := m.cluster, m.clusterR
	m.mu.RUnlock()
	if tree == nil {
		return nil, ErrNoCluster
	}

	clusters := tree.ConnectedClusters(r)
	ordered := m.index.OriginalOrder()

	common := probe.CommonParent(m.Lists()...)
	all := probe.NewList(common, "HiC Clusters", fmt.Sprintf("HiC Clusters with R > %g", r), nil)
	inAll := make(map[*probe.Probe]bool)

	position := 0
	for ci, c := range clusters {
		position += len(c.Indices)
		if position-len(c.Indices) < start {
			continue
		}
		if position > end {
			break
		}
		if len(c.Indices) < minSize {
			continue
		}

		probes := make([]*probe.Probe, 0, len(c.Indices))
		for _, idx := range c.Indices {
			if idx < 0 || idx >= len(ordered) {
				return nil, fmt.Errorf("cluster %d: probe index %d out of range", ci+1, idx)
			}
			probes = append(probes, ordered[idx])
		}
		slices.SortStableFunc(probes, probe.Compare)
		probes = slices.Compact(probes)
		if len(probes) < minSize {
			continue
		}

		list := probe.NewList(all, fmt.Sprintf("Cluster %d", ci+1),
			fmt.Sprintf("HiC cluster list number %d", ci+1), []string{"R-value"})
		for _, pr := range probes {
			list.Add(pr, []float32{c.RValue})
			if !inAll[pr] {
				all.Add(pr, nil)
				inAll[pr] = true
			}
		}
	}
	return all, nil
}

func listName(l *probe.List) string {
	if l == nil {
		return "all probe lists"
	}
	return l.Name
}
