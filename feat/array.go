package feat

import "fmt"

// Kind identifies the element type stored in an Array.
type Kind uint8

const (
	// Float32 arrays hold coordinates, masks and other continuous values.
	Float32 Kind = iota
	// Int64 arrays hold residue types, MSA rows, assembly ids and counters.
	Int64
	// String arrays hold species identifiers and other per-row annotations.
	String
)

func (k Kind) String() string {
	switch k {
	case Float32:
		return "float32"
	case Int64:
		return "int64"
	case String:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Array is a dense n-dimensional value stored as a flat buffer plus shape
// metadata. Exactly one of F, I, S is populated, according to Kind. Keeping
// the buffer flat makes records cheap to clone, gob-encode and convert into
// gomlx tensors.
type Array struct {
	Kind Kind
	Dims []int
	F    []float32
	I    []int64
	S    []string
}

// Floats builds a float32 array. The buffer length must match the product of
// the dimensions; a mismatch is a programming error and panics.
func Floats(data []float32, dims ...int) *Array {
	checkSize(len(data), dims)
	return &Array{Kind: Float32, Dims: dims, F: data}
}

// Ints builds an int64 array.
func Ints(data []int64, dims ...int) *Array {
	checkSize(len(data), dims)
	return &Array{Kind: Int64, Dims: dims, I: data}
}

// Strings builds a string array.
func Strings(data []string, dims ...int) *Array {
	checkSize(len(data), dims)
	return &Array{Kind: String, Dims: dims, S: data}
}

// IntScalar builds a 0-dimensional int64 array.
func IntScalar(v int64) *Array {
	return &Array{Kind: Int64, Dims: []int{}, I: []int64{v}}
}

// FloatScalar builds a 0-dimensional float32 array.
func FloatScalar(v float32) *Array {
	return &Array{Kind: Float32, Dims: []int{}, F: []float32{v}}
}

// ZeroFloats builds a float32 array of the given shape filled with zeros.
func ZeroFloats(dims ...int) *Array {
	return Floats(make([]float32, sizeOf(dims)), dims...)
}

// OneFloats builds a float32 array of the given shape filled with ones.
func OneFloats(dims ...int) *Array {
	data := make([]float32, sizeOf(dims))
	for i := range data {
		data[i] = 1
	}
	return Floats(data, dims...)
}

func checkSize(n int, dims []int) {
	if n != sizeOf(dims) {
		panic(fmt.Sprintf("feat: buffer length %d does not match dims %v", n, dims))
	}
}

func sizeOf(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// Len returns the number of elements (the product of the dimensions).
func (a *Array) Len() int { return sizeOf(a.Dims) }

// Dim returns the i-th dimension, supporting negative indices from the end.
func (a *Array) Dim(i int) int {
	if i < 0 {
		i += len(a.Dims)
	}
	return a.Dims[i]
}

// ScalarInt returns the first element of an int64 array. Useful for
// 0-dimensional bookkeeping values such as seq_length.
func (a *Array) ScalarInt() int64 { return a.I[0] }

// ScalarFloat returns the first element of a float32 array.
func (a *Array) ScalarFloat() float32 { return a.F[0] }

// Clone returns a deep copy sharing no memory with the receiver.
func (a *Array) Clone() *Array {
	c := &Array{Kind: a.Kind, Dims: append([]int(nil), a.Dims...)}
	switch a.Kind {
	case Float32:
		c.F = append([]float32(nil), a.F...)
	case Int64:
		c.I = append([]int64(nil), a.I...)
	case String:
		c.S = append([]string(nil), a.S...)
	}
	return c
}

// Reshape returns a view of the array with new dimensions of identical size.
func (a *Array) Reshape(dims ...int) *Array {
	checkSize(a.Len(), dims)
	return &Array{Kind: a.Kind, Dims: dims, F: a.F, I: a.I, S: a.S}
}

// Equal reports whether two arrays have the same kind, shape and contents.
func (a *Array) Equal(b *Array) bool {
	if a.Kind != b.Kind || len(a.Dims) != len(b.Dims) {
		return false
	}
	for i := range a.Dims {
		if a.Dims[i] != b.Dims[i] {
			return false
		}
	}
	switch a.Kind {
	case Float32:
		for i := range a.F {
			if a.F[i] != b.F[i] {
				return false
			}
		}
	case Int64:
		for i := range a.I {
			if a.I[i] != b.I[i] {
				return false
			}
		}
	case String:
		for i := range a.S {
			if a.S[i] != b.S[i] {
				return false
			}
		}
	}
	return true
}

// ConcatArrays concatenates arrays along axis 0. All inputs must share kind
// and trailing dimensions.
func ConcatArrays(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("feat: concat of zero arrays")
	}
	first := arrays[0]
	rest := 1
	for _, d := range first.Dims[1:] {
		rest *= d
	}
	total := 0
	for _, a := range arrays {
		if a.Kind != first.Kind {
			return nil, fmt.Errorf("feat: concat kind mismatch: %v vs %v", first.Kind, a.Kind)
		}
		if len(a.Dims) != len(first.Dims) {
			return nil, fmt.Errorf("feat: concat rank mismatch: %v vs %v", first.Dims, a.Dims)
		}
		for i := 1; i < len(a.Dims); i++ {
			if a.Dims[i] != first.Dims[i] {
				return nil, fmt.Errorf("feat: concat shape mismatch: %v vs %v", first.Dims, a.Dims)
			}
		}
		total += a.Dims[0]
	}
	dims := append([]int{total}, first.Dims[1:]...)
	out := &Array{Kind: first.Kind, Dims: dims}
	switch first.Kind {
	case Float32:
		out.F = make([]float32, 0, total*rest)
		for _, a := range arrays {
			out.F = append(out.F, a.F...)
		}
	case Int64:
		out.I = make([]int64, 0, total*rest)
		for _, a := range arrays {
			out.I = append(out.I, a.I...)
		}
	case String:
		out.S = make([]string, 0, total*rest)
		for _, a := range arrays {
			out.S = append(out.S, a.S...)
		}
	}
	return out, nil
}
