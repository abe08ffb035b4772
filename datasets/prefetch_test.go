package datasets

import (
	"testing"

	"foldset/feat"
	"foldset/pipeline"
)

func TestPrefetcherMatchesSerialGets(t *testing.T) {
	root := chainFixture(t, pipeline.ModeTrain, map[string][]string{
		"seqA": {"1abc_A", "2xyz_A"},
		"seqB": {"1abc_B"},
	})
	factory := func() (*ChainDataset, error) {
		return NewChainDataset(Options{
			DataDir: root,
			Mode:    pipeline.ModeTrain,
			Seed:    21,
			MaxStep: 8,
		}, chainConfig(), pipeline.Passthrough{}, nil)
	}

	serial, err := factory()
	if err != nil {
		t.Fatalf("new chain dataset: %v", err)
	}
	want := make([]feat.Map, serial.Len())
	for i := range want {
		m, err := serial.Get(i)
		if err != nil {
			t.Fatalf("serial get %d: %v", i, err)
		}
		want[i] = m
	}

	p, err := NewPrefetcher(factory, 4)
	if err != nil {
		t.Fatalf("new prefetcher: %v", err)
	}
	indices := make([]int, p.Len())
	for i := range indices {
		indices[i] = i
	}
	got, err := p.Fetch(indices)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("fetched %d records, want %d", len(got), len(want))
	}
	// Every example's draws are scoped to its index, so the parallel result
	// must match the serial one exactly.
	for i := range want {
		for key, a := range want[i] {
			b, ok := got[i][key]
			if !ok {
				t.Fatalf("example %d missing %q", i, key)
			}
			if !a.Equal(b) {
				t.Fatalf("example %d feature %q differs", i, key)
			}
		}
	}
}

func TestPrefetcherFetchBatch(t *testing.T) {
	root := chainFixture(t, pipeline.ModeEval, map[string][]string{
		"seqA": {"1abc_A"},
		"seqB": {"1abc_B"},
	})
	p, err := NewPrefetcher(func() (*ChainDataset, error) {
		return NewChainDataset(Options{
			DataDir: root,
			Mode:    pipeline.ModeEval,
			Seed:    1,
		}, chainConfig(), pipeline.Passthrough{}, nil)
	}, 2)
	if err != nil {
		t.Fatalf("new prefetcher: %v", err)
	}

	batch, err := p.FetchBatch(0, 5) // clamps to the 2 available examples
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if aa := batch[feat.KeyAatype]; aa.Dims[1] != 2 {
		t.Fatalf("batch dims = %v, want batch axis 2", aa.Dims)
	}

	if _, err := p.FetchBatch(2, 1); err == nil {
		t.Fatal("expected error for an out-of-range batch")
	}
}
