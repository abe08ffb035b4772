package feat

import (
	"sort"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Tensor converts the array into a gomlx tensor. String arrays carry
// annotations, not model inputs, and cannot be converted.
func (a *Array) Tensor() (*tensors.Tensor, error) {
	switch a.Kind {
	case Float32:
		return tensors.FromFlatDataAndDimensions(a.F, a.Dims...), nil
	case Int64:
		return tensors.FromFlatDataAndDimensions(a.I, a.Dims...), nil
	}
	return nil, errors.Errorf("feat: cannot convert %s array to tensor", a.Kind)
}

// TensorKeys returns the names of the record's tensor-convertible features in
// sorted order, so repeated conversions see a stable layout.
func (m Map) TensorKeys() []string {
	keys := make([]string, 0, len(m))
	for k, a := range m {
		if a.Kind == String {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tensors converts the named features into gomlx tensors, in order.
func (m Map) Tensors(keys []string) ([]*tensors.Tensor, error) {
	out := make([]*tensors.Tensor, len(keys))
	for i, k := range keys {
		a, ok := m[k]
		if !ok {
			return nil, errors.Errorf("feat: feature %q absent from record", k)
		}
		t, err := a.Tensor()
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", k)
		}
		out[i] = t
	}
	return out, nil
}
