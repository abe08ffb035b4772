package datasets

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// weightedIndex is the shared sampling helper behind the chain, sequence and
// self-distillation distributions: a categorical distribution over string
// keys with normalized weights. Keys are held in sorted order so sampling is
// reproducible for a given seed regardless of map iteration order.
type weightedIndex struct {
	keys []string
	cum  []float64
}

func newWeightedIndex(weights map[string]float64) (*weightedIndex, error) {
	if len(weights) == 0 {
		return nil, errors.New("datasets: empty sample-weight table")
	}
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var total float64
	for _, k := range keys {
		w := weights[k]
		if w < 0 {
			return nil, errors.Errorf("datasets: negative sample weight for %q", k)
		}
		total += w
	}
	if total <= 0 {
		return nil, errors.New("datasets: sample weights sum to zero")
	}

	cum := make([]float64, len(keys))
	var acc float64
	for i, k := range keys {
		acc += weights[k] / total
		cum[i] = acc
	}
	cum[len(cum)-1] = 1 // guard against accumulated rounding
	return &weightedIndex{keys: keys, cum: cum}, nil
}

// sample draws one key from the distribution using rng.
func (w *weightedIndex) sample(rng *rand.Rand) string {
	u := rng.Float64()
	i := sort.SearchFloat64s(w.cum, u)
	if i >= len(w.keys) {
		i = len(w.keys) - 1
	}
	return w.keys[i]
}

// key returns the i-th key in sorted order; eval mode indexes chains
// directly through this.
func (w *weightedIndex) key(i int) string { return w.keys[i] }

func (w *weightedIndex) len() int { return len(w.keys) }

// inverseMap inverts a one-to-many sequence→labels mapping into label→
// sequence. A label claimed by two distinct sequences is a fatal
// inconsistency in the dataset manifests.
func inverseMap(mapping map[string][]string) (map[string]string, error) {
	inverse := make(map[string]string)
	for seq, labels := range mapping {
		for _, label := range labels {
			if prev, ok := inverse[label]; ok && prev != seq {
				return nil, errors.Errorf(
					"datasets: multiple sequences (%s, %s) exist for label %s", prev, seq, label)
			}
			inverse[label] = seq
		}
	}
	return inverse, nil
}
