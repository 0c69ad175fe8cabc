package probe

import "sort"

// List is an ordered collection of probes. Lists derived from another list
// record it as their parent; a list without a parent is a root probe set.
type List struct {
	Name        string
	Description string
	ValueNames  []string // names of the per-probe annotation values

	parent   *List
	children []*List
	probes   []*Probe
	values   map[*Probe][]float32
	sorted   bool
}

// NewSet creates a root probe list holding the given probes.
func NewSet(name string, probes []*Probe) *List {
	l := &List{Name: name, values: make(map[*Probe][]float32)}
	for _, p := range probes {
		l.Add(p, nil)
	}
	return l
}

// NewList creates a list derived from parent. A nil parent creates a root list.
func NewList(parent *List, name, description string, valueNames []string) *List {
	l := &List{
		Name:        name,
		Description: description,
		ValueNames:  valueNames,
		parent:      parent,
		values:      make(map[*Probe][]float32),
	}
	if parent != nil {
		parent.children = append(parent.children, l)
	}
	return l
}

// Add appends a probe with optional annotation values.
func (l *List) Add(p *Probe, values []float32) {
	l.probes = append(l.probes, p)
	if values != nil {
		l.values[p] = values
	}
	l.sorted = false
}

// Probes returns the probes of the list in natural order.
func (l *List) Probes() []*Probe {
	if !l.sorted {
		sort.SliceStable(l.probes, func(i, j int) bool {
			return Compare(l.probes[i], l.probes[j]) < 0
		})
		l.sorted = true
	}
	return l.probes
}

// Len returns the number of probes in the list.
func (l *List) Len() int {
	return len(l.probes)
}

// Contains reports whether p (the same probe object) is in the list.
func (l *List) Contains(p *Probe) bool {
	for _, q := range l.probes {
		if q == p {
			return true
		}
	}
	return false
}

// Values returns the annotation values stored for p, or nil.
func (l *List) Values(p *Probe) []float32 {
	return l.values[p]
}

// Parent returns the list this one was derived from, or nil for a root set.
func (l *List) Parent() *List {
	return l.parent
}

// Children returns the lists derived from this one, in creation order.
func (l *List) Children() []*List {
	return l.children
}

// IsRoot reports whether the list has no parent.
func (l *List) IsRoot() bool {
	return l.parent == nil
}

// CommonParent returns the nearest list which is an ancestor of, or equal to,
// every given list. A single list is its own common parent. Lists from
// unrelated trees have no common parent and nil is returned.
func CommonParent(lists ...*List) *List {
	if len(lists) == 0 {
		return nil
	}
	if len(lists) == 1 {
		return lists[0]
	}

	ancestors := make([]map[*List]bool, len(lists)-1)
	for i, l := range lists[1:] {
		ancestors[i] = make(map[*List]bool)
		for cur := l; cur != nil; cur = cur.parent {
			ancestors[i][cur] = true
		}
	}

	for cur := lists[0]; cur != nil; cur = cur.parent {
		found := true
		for _, a := range ancestors {
			if !a[cur] {
				found = false
				break
			}
		}
		if found {
			return cur
		}
	}
	return nil
}
