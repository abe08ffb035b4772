package features

import (
	"math"
	"testing"

	"foldset/feat"
)

func TestLoadTwoChainAssembly(t *testing.T) {
	dir := t.TempDir()
	chainA := []int64{0, 1, 2}
	chainB := []int64{5, 6}
	writeFeature(t, dir, "seqA", chainA)
	writeFeature(t, dir, "seqB", chainB)
	writeLabel(t, dir, "1xyz_A", chainA, nil)
	writeLabel(t, dir, "1xyz_B", chainB, nil)

	op := NewOperation(rot90z, [3]float64{1, 0, 0})
	merged, labels, err := Load(StandardAssembler{}, NewLoader(), LoadParams{
		SequenceIDs: []string{"seqA", "seqB"},
		FeatureDir:  dir,
		LabelIDs:    []string{"1xyz_A", "1xyz_B"},
		LabelDir:    dir,
		SymmetryOps: []Operation{Identity, op},
		IsMonomer:   false,
	})
	if err != nil {
		t.Fatalf("load assembly: %v", err)
	}

	asymLen := merged[feat.KeyAsymLen]
	if asymLen.Len() != 2 || asymLen.I[0] != 3 || asymLen.I[1] != 2 {
		t.Fatalf("unexpected asym_len %v", asymLen.I)
	}
	if merged.SeqLength() != 5 {
		t.Fatalf("unexpected merged seq_length %d", merged.SeqLength())
	}

	// Assembly ids: chain A residues then chain B residues.
	asym := merged[feat.KeyAsymID]
	want := []int64{1, 1, 1, 2, 2}
	for i, v := range want {
		if asym.I[i] != v {
			t.Fatalf("unexpected asym_id %v", asym.I)
		}
	}

	// Chain B's labels reflect the rotation + translation. Its first atom
	// was (0,1,2) in writeLabel: R·x + t = (-1,0,2) + (1,0,0) = (0,0,2).
	if len(labels) != 2 {
		t.Fatalf("expected 2 per-chain labels, got %d", len(labels))
	}
	pos := labels[1][feat.KeyAllAtomPositions].F
	wantPos := []float32{0, 0, 2}
	for i := range wantPos {
		if math.Abs(float64(pos[i]-wantPos[i])) > 1e-5 {
			t.Fatalf("chain B label positions %v, want %v", pos[:3], wantPos)
		}
	}

	// The merged record holds complex-level coordinates: chain B's block
	// starts after chain A's 3 residues.
	mergedPos := merged[feat.KeyAllAtomPositions]
	if mergedPos.Dim(0) != 5 {
		t.Fatalf("merged positions have %d residues", mergedPos.Dim(0))
	}
	if mergedPos.F[3*3] != pos[0] {
		t.Fatal("merged coordinates do not match chain B's transformed label")
	}

	// MSAs block-stack: 2 rows per chain, columns span the complex.
	msa := merged[feat.KeyMSA]
	if msa.Dim(0) != 4 || msa.Dim(1) != 5 {
		t.Fatalf("unexpected merged msa shape %v", msa.Dims)
	}
	// Chain B's rows are gap-padded over chain A's span.
	if msa.I[2*5] != gapToken {
		t.Fatalf("expected gap padding, got %d", msa.I[2*5])
	}
}

func TestLoadMonomerKeepsSingleChain(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "seqA", []int64{0, 1, 2})
	writeLabel(t, dir, "1abc_A", []int64{0, 1, 2}, nil)

	merged, labels, err := Load(StandardAssembler{}, NewLoader(), LoadParams{
		SequenceIDs: []string{"seqA"},
		FeatureDir:  dir,
		LabelIDs:    []string{"1abc_A"},
		LabelDir:    dir,
		IsMonomer:   true,
	})
	if err != nil {
		t.Fatalf("load monomer: %v", err)
	}
	if merged[feat.KeyAsymLen].Len() != 1 || merged[feat.KeyAsymLen].I[0] != 3 {
		t.Fatalf("unexpected asym_len %v", merged[feat.KeyAsymLen].I)
	}
	if len(labels) != 1 {
		t.Fatalf("expected 1 label, got %d", len(labels))
	}
	// Monomer path keeps the chain's own alignment untouched.
	if merged[feat.KeyMSA].Dim(1) != 3 {
		t.Fatalf("monomer msa width %d, want 3", merged[feat.KeyMSA].Dim(1))
	}
}

func TestLoadRejectsMismatchedLabelCount(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "seqA", []int64{0})

	_, _, err := Load(StandardAssembler{}, NewLoader(), LoadParams{
		SequenceIDs: []string{"seqA"},
		FeatureDir:  dir,
		LabelIDs:    []string{"a", "b"},
		LabelDir:    dir,
	})
	if err == nil {
		t.Fatal("expected error for mismatched label/sequence counts")
	}
}

func TestLoadRejectsMismatchedSymmetryOpCount(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "seqA", []int64{0})
	writeFeature(t, dir, "seqB", []int64{1})
	writeLabel(t, dir, "a", []int64{0}, nil)
	writeLabel(t, dir, "b", []int64{1}, nil)

	// An assembly entry listing fewer opers than chains must surface as an
	// error, not a panic.
	_, _, err := Load(StandardAssembler{}, NewLoader(), LoadParams{
		SequenceIDs: []string{"seqA", "seqB"},
		FeatureDir:  dir,
		LabelIDs:    []string{"a", "b"},
		LabelDir:    dir,
		SymmetryOps: []Operation{Identity},
	})
	if err == nil {
		t.Fatal("expected error for mismatched symmetry op count")
	}
}

func TestAddAssemblyFeaturesGroupsEntities(t *testing.T) {
	mk := func(aatype []int64) feat.Map {
		return feat.Map{
			feat.KeyAatype:    feat.Ints(aatype, len(aatype)),
			feat.KeySeqLength: feat.IntScalar(int64(len(aatype))),
		}
	}
	// Two copies of one sequence separated by a different chain.
	chains := StandardAssembler{}.AddAssemblyFeatures([]feat.Map{
		mk([]int64{1, 2}), mk([]int64{3}), mk([]int64{1, 2}),
	})

	// Copies regroup: entity 1 twice, then entity 2.
	entities := []int64{
		chains[0][feat.KeyEntityID].I[0],
		chains[1][feat.KeyEntityID].I[0],
		chains[2][feat.KeyEntityID].I[0],
	}
	if entities[0] != 1 || entities[1] != 1 || entities[2] != 2 {
		t.Fatalf("unexpected entity grouping %v", entities)
	}
	syms := []int64{
		chains[0][feat.KeySymID].I[0],
		chains[1][feat.KeySymID].I[0],
	}
	if syms[0] != 1 || syms[1] != 2 {
		t.Fatalf("unexpected sym ids %v", syms)
	}
	for i, c := range chains {
		if got := c[feat.KeyAsymID].I[0]; got != int64(i)+1 {
			t.Fatalf("asym_id of chain %d is %d", i, got)
		}
	}
}
