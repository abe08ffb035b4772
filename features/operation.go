package features

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"foldset/feat"
)

// Operation is a crystallographic symmetry operation attached to a chain in
// a biological assembly: either the identity (encoded "I" in the assembly
// side file) or a rigid transform with a 3x3 rotation and a translation.
// Coordinates transform as x' = x·Rᵀ + t.
type Operation struct {
	identity bool
	Rot      [9]float64
	Trans    [3]float64
}

// Identity is the no-op symmetry operation.
var Identity = Operation{identity: true}

// NewOperation builds a rigid transform from a flat row-major rotation and a
// translation.
func NewOperation(rot [9]float64, trans [3]float64) Operation {
	return Operation{Rot: rot, Trans: trans}
}

// IsIdentity reports whether the operation leaves coordinates unchanged.
func (o Operation) IsIdentity() bool { return o.identity }

// Apply transforms an atom-position array of shape (..., 3). The identity
// returns the input untouched; otherwise a new array is returned.
func (o Operation) Apply(pos *feat.Array) *feat.Array {
	if o.identity {
		return pos
	}
	n := pos.Len() / 3
	data := make([]float64, pos.Len())
	for i, v := range pos.F {
		data[i] = float64(v)
	}
	points := mat.NewDense(n, 3, data)
	rot := mat.NewDense(3, 3, o.Rot[:])
	var rotated mat.Dense
	rotated.Mul(points, rot.T())

	out := make([]float32, pos.Len())
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = float32(rotated.At(i, j) + o.Trans[j])
		}
	}
	return feat.Floats(out, pos.Dims...)
}

// Inverse returns the operation undoing the receiver. For an orthonormal
// rotation the inverse rotation is the transpose and the translation maps to
// -t·R.
func (o Operation) Inverse() Operation {
	if o.identity {
		return Identity
	}
	var inv Operation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv.Rot[i*3+j] = o.Rot[j*3+i]
		}
	}
	for j := 0; j < 3; j++ {
		var s float64
		for i := 0; i < 3; i++ {
			s -= o.Trans[i] * o.Rot[i*3+j]
		}
		inv.Trans[j] = s
	}
	return inv
}

// MarshalJSON encodes the identity as "I" and any other operation as a
// [rotation, translation] pair with a flat row-major rotation.
func (o Operation) MarshalJSON() ([]byte, error) {
	if o.identity {
		return json.Marshal("I")
	}
	return json.Marshal([2][]float64{o.Rot[:], o.Trans[:]})
}

// UnmarshalJSON accepts "I", or a [rotation, translation] pair where the
// rotation is flat (9 values) or nested (3x3).
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "I" {
			return errors.Errorf("features: unknown symmetry operation %q", s)
		}
		*o = Identity
		return nil
	}
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(err, "features: parse symmetry operation")
	}
	rot, err := flattenFloats(pair[0])
	if err != nil {
		return errors.Wrap(err, "features: parse rotation")
	}
	if len(rot) != 9 {
		return errors.Errorf("features: rotation has %d values, want 9", len(rot))
	}
	trans, err := flattenFloats(pair[1])
	if err != nil {
		return errors.Wrap(err, "features: parse translation")
	}
	if len(trans) != 3 {
		return errors.Errorf("features: translation has %d values, want 3", len(trans))
	}
	op := Operation{}
	copy(op.Rot[:], rot)
	copy(op.Trans[:], trans)
	*o = op
	return nil
}

// flattenFloats reads a possibly nested JSON number array into a flat slice.
func flattenFloats(raw json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	var out []float64
	for _, elem := range nested {
		vals, err := flattenFloats(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

// IdentityOps returns n identity operations, the default when an assembly
// provides no explicit symmetry.
func IdentityOps(n int) []Operation {
	ops := make([]Operation, n)
	for i := range ops {
		ops[i] = Identity
	}
	return ops
}
