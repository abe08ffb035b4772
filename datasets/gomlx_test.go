package datasets

import (
	"io"
	"testing"

	"foldset/pipeline"
)

func TestChainDatasetYield(t *testing.T) {
	root := chainFixture(t, pipeline.ModeEval, map[string][]string{
		"seqA": {"1abc_A"},
		"seqB": {"1abc_B"},
	})
	d, err := NewChainDataset(Options{
		DataDir:   root,
		Mode:      pipeline.ModeEval,
		Seed:      1,
		BatchSize: 2,
	}, chainConfig(), pipeline.Passthrough{}, nil)
	if err != nil {
		t.Fatalf("new chain dataset: %v", err)
	}

	spec, inputs, labels, err := d.Yield()
	if err != nil {
		t.Fatalf("yield: %v", err)
	}
	keys, ok := spec.([]string)
	if !ok || len(keys) == 0 {
		t.Fatalf("spec = %v, want sorted key list", spec)
	}
	if len(inputs) != len(keys) {
		t.Fatalf("%d inputs for %d keys", len(inputs), len(keys))
	}
	if labels != nil {
		t.Fatalf("labels = %v, want nil", labels)
	}
	for i, in := range inputs {
		if in == nil {
			t.Fatalf("nil tensor for %q", keys[i])
		}
		// Batch axis of 2 is inserted second.
		if got := in.Shape().Dimensions[1]; got != 2 {
			t.Fatalf("%q batch dim = %d, want 2", keys[i], got)
		}
	}

	if _, _, _, err := d.Yield(); err != io.EOF {
		t.Fatalf("second yield err = %v, want io.EOF", err)
	}
	if err := d.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, _, _, err := d.Yield(); err != nil {
		t.Fatalf("yield after restart: %v", err)
	}
	if d.Name() == "" {
		t.Fatal("empty dataset name")
	}
}
