// Package interaction builds and filters probe-to-probe Hi-C interaction
// matrices: a two-pass sparse count over sorted probes, a binomial strength
// model and a rank-based multiple-testing correction.
package interaction

// Key identifies an unordered pair of sorted probe positions in a sparse
// count map. It packs pos1 + pos2*n for an index of n probes.
//
// The key type does not order its positions. Callers only insert keys whose
// first position belongs to the probe with the lower global index.
type Key uint64

// NewKey packs two sorted positions of an index holding n probes.
func NewKey(pos1, pos2, n int) Key {
	return Key(uint64(pos1) + uint64(pos2)*uint64(n))
}

// Unpack returns the two sorted positions packed into k.
func (k Key) Unpack(n int) (pos1, pos2 int) {
	return int(uint64(k) % uint64(n)), int(uint64(k) / uint64(n))
}
