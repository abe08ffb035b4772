package feat

import "github.com/pkg/errors"

// CollateError reports which feature could not be stacked into a batch, so a
// bad example can be traced back to its source record.
type CollateError struct {
	Key  string
	Why  string
	Dims [][]int
}

func (e *CollateError) Error() string {
	return "feat: cannot collate feature " + e.Key + ": " + e.Why
}

// Collate stacks per-example records into one batch record, inserting the
// batch axis at position dim. The training pipeline collates at dim=1: the
// recycling axis is decided per example and stays leading, the batch axis
// comes second.
func Collate(samples []Map, dim int) (Map, error) {
	if len(samples) == 0 {
		return nil, errors.New("feat: collate of empty batch")
	}
	out := make(Map, len(samples[0]))
	for key, first := range samples[0] {
		arrays := make([]*Array, len(samples))
		for i, s := range samples {
			a, ok := s[key]
			if !ok {
				return nil, &CollateError{Key: key, Why: "missing in one of the samples"}
			}
			if a.Kind != first.Kind || !sameDims(a.Dims, first.Dims) {
				return nil, &CollateError{
					Key:  key,
					Why:  "heterogeneous shapes across batch",
					Dims: [][]int{first.Dims, a.Dims},
				}
			}
			arrays[i] = a
		}
		stacked, err := stack(arrays, dim)
		if err != nil {
			return nil, &CollateError{Key: key, Why: err.Error()}
		}
		out[key] = stacked
	}
	return out, nil
}

// stack inserts a new batch axis at position dim and interleaves the sample
// buffers accordingly. dim must be within [0, rank].
func stack(arrays []*Array, dim int) (*Array, error) {
	first := arrays[0]
	if dim < 0 || dim > len(first.Dims) {
		return nil, errors.Errorf("batch axis %d out of range for rank %d", dim, len(first.Dims))
	}
	batch := len(arrays)
	outer := 1
	for _, d := range first.Dims[:dim] {
		outer *= d
	}
	inner := 1
	for _, d := range first.Dims[dim:] {
		inner *= d
	}
	dims := make([]int, 0, len(first.Dims)+1)
	dims = append(dims, first.Dims[:dim]...)
	dims = append(dims, batch)
	dims = append(dims, first.Dims[dim:]...)

	out := &Array{Kind: first.Kind, Dims: dims}
	switch first.Kind {
	case Float32:
		out.F = make([]float32, outer*batch*inner)
		for o := 0; o < outer; o++ {
			for b, a := range arrays {
				copy(out.F[(o*batch+b)*inner:], a.F[o*inner:(o+1)*inner])
			}
		}
	case Int64:
		out.I = make([]int64, outer*batch*inner)
		for o := 0; o < outer; o++ {
			for b, a := range arrays {
				copy(out.I[(o*batch+b)*inner:], a.I[o*inner:(o+1)*inner])
			}
		}
	case String:
		out.S = make([]string, outer*batch*inner)
		for o := 0; o < outer; o++ {
			for b, a := range arrays {
				copy(out.S[(o*batch+b)*inner:], a.S[o*inner:(o+1)*inner])
			}
		}
	}
	return out, nil
}

func sameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
