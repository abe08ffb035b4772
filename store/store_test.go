package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"foldset/feat"
)

func TestRecordRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	path := FeaturePath(tmp, "seqA")

	in := feat.Map{
		feat.KeyAatype:    feat.Ints([]int64{0, 4, 7}, 3),
		feat.KeySeqLength: feat.IntScalar(3),
		feat.KeyAllAtomPositions: feat.Floats(
			[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 3, 1, 3),
		feat.KeySpeciesIDs: feat.Strings([]string{"a", "b"}, 2),
	}
	if err := WriteRecord(path, in); err != nil {
		t.Fatalf("write record: %v", err)
	}
	out, err := ReadRecord(path)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("key count mismatch: %d vs %d", len(out), len(in))
	}
	for k, v := range in {
		if !out[k].Equal(v) {
			t.Fatalf("feature %q differs after round trip", k)
		}
	}
}

func TestReadRecordMissingFile(t *testing.T) {
	_, err := ReadRecord(FeaturePath(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing record")
	}
	if !os.IsNotExist(errors.Cause(err)) {
		t.Fatalf("expected a not-found cause, got %v", err)
	}
}

func TestGzJSONRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "links.json.gz")

	in := map[string]map[string][]int{"A": {"B": {1, 2, 3}}}
	if err := WriteGzJSON(path, in); err != nil {
		t.Fatalf("write gz json: %v", err)
	}
	var out map[string]map[string][]int
	if err := ReadGzJSON(path, &out); err != nil {
		t.Fatalf("read gz json: %v", err)
	}
	if len(out["A"]["B"]) != 3 || out["A"]["B"][2] != 3 {
		t.Fatalf("unexpected round trip result: %v", out)
	}
}

func TestPathHelpers(t *testing.T) {
	if got := LabelPath("/d", "1abc_A"); got != filepath.Join("/d", "1abc_A.label.gob.gz") {
		t.Fatalf("unexpected label path %q", got)
	}
	if got := UniprotPath("/d", "seqA"); got != filepath.Join("/d", "seqA.uniprot.gob.gz") {
		t.Fatalf("unexpected uniprot path %q", got)
	}
}
