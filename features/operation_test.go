package features

import (
	"encoding/json"
	"math"
	"testing"

	"foldset/feat"
)

// rot90z rotates 90 degrees about the z axis.
var rot90z = [9]float64{
	0, -1, 0,
	1, 0, 0,
	0, 0, 1,
}

func TestIdentityLeavesCoordinatesUnchanged(t *testing.T) {
	pos := feat.Floats([]float32{1, 2, 3, 4, 5, 6}, 2, 1, 3)
	got := Identity.Apply(pos)
	if got != pos {
		t.Fatal("identity should return the input array")
	}
}

func TestApplyRotatesAndTranslates(t *testing.T) {
	op := NewOperation(rot90z, [3]float64{1, 0, 0})
	pos := feat.Floats([]float32{1, 2, 3}, 1, 1, 3)
	got := op.Apply(pos)
	// x' = R·x + t = (-2, 1, 3) + (1, 0, 0)
	want := []float32{-1, 1, 3}
	for i := range want {
		if math.Abs(float64(got.F[i]-want[i])) > 1e-6 {
			t.Fatalf("unexpected transform result %v, want %v", got.F, want)
		}
	}
	// Input untouched.
	if pos.F[0] != 1 {
		t.Fatal("apply mutated its input")
	}
}

func TestInverseRoundTrip(t *testing.T) {
	op := NewOperation(rot90z, [3]float64{1.5, -2.25, 0.75})
	pos := feat.Floats([]float32{
		0.1, 0.2, 0.3,
		-4, 5, -6,
		7.5, -8.25, 9,
	}, 3, 1, 3)

	back := op.Inverse().Apply(op.Apply(pos))
	for i := range pos.F {
		if math.Abs(float64(back.F[i]-pos.F[i])) > 1e-4 {
			t.Fatalf("round trip differs at %d: %v vs %v", i, back.F[i], pos.F[i])
		}
	}
}

func TestOperationJSON(t *testing.T) {
	var op Operation
	if err := json.Unmarshal([]byte(`"I"`), &op); err != nil {
		t.Fatalf("parse identity: %v", err)
	}
	if !op.IsIdentity() {
		t.Fatal("expected identity")
	}

	// Nested 3x3 rotation plus translation, as written in assembly files.
	raw := `[[[0,-1,0],[1,0,0],[0,0,1]],[1,0,0]]`
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		t.Fatalf("parse rigid operation: %v", err)
	}
	if op.IsIdentity() || op.Rot != rot90z || op.Trans != [3]float64{1, 0, 0} {
		t.Fatalf("unexpected parsed operation %+v", op)
	}

	// Flat rotations are accepted too.
	flat := `[[0,-1,0,1,0,0,0,0,1],[1,0,0]]`
	if err := json.Unmarshal([]byte(flat), &op); err != nil {
		t.Fatalf("parse flat rotation: %v", err)
	}
	if op.Rot != rot90z {
		t.Fatalf("unexpected flat rotation %+v", op.Rot)
	}

	if err := json.Unmarshal([]byte(`"Q"`), &op); err == nil {
		t.Fatal("expected error for unknown operation name")
	}
}
