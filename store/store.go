// Package store reads and writes the on-disk records the training pipeline
// consumes: gzip-compressed gob feature/label records plus the JSON side
// files (sample weights, label maps, assembly descriptions). Records are
// expected to exist per those manifests; a missing file is a configuration
// error surfaced to the caller, never retried.
package store

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"foldset/feat"
)

// Record suffixes under the dataset root. The directory layout is
//
//	<root>/pdb_features/<seq_id>.feature.gob.gz
//	<root>/pdb_uniprots/<seq_id>.uniprot.gob.gz
//	<root>/pdb_labels/<label_id>.label.gob.gz
//	<root>/sd_features, <root>/sd_labels  (self-distillation mirrors)
const (
	FeatureSuffix = ".feature.gob.gz"
	UniprotSuffix = ".uniprot.gob.gz"
	LabelSuffix   = ".label.gob.gz"
)

// FeaturePath returns the path of a sequence's feature record.
func FeaturePath(dir, seqID string) string {
	return filepath.Join(dir, seqID+FeatureSuffix)
}

// UniprotPath returns the path of a sequence's full-database alignment record.
func UniprotPath(dir, seqID string) string {
	return filepath.Join(dir, seqID+UniprotSuffix)
}

// LabelPath returns the path of a chain's ground-truth label record.
func LabelPath(dir, labelID string) string {
	return filepath.Join(dir, labelID+LabelSuffix)
}

// ReadRecord loads one gzip-compressed gob record.
func ReadRecord(path string) (feat.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open record")
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "store: decompress %s", path)
	}
	defer zr.Close()
	var m feat.Map
	if err := gob.NewDecoder(zr).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "store: decode %s", path)
	}
	return m, nil
}

// WriteRecord stores one record as gzip-compressed gob, creating parent
// directories as needed.
func WriteRecord(path string, m feat.Map) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "store: mkdir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "store: create record")
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(m); err != nil {
		zw.Close()
		return errors.Wrapf(err, "store: encode %s", path)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "store: flush %s", path)
	}
	return f.Close()
}

// ReadJSON loads a JSON side file into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "store: read json")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "store: parse %s", path)
	}
	return nil
}

// ReadGzJSON loads a gzip-compressed JSON file into v. Used for hand-authored
// inputs such as cross-link tables.
func ReadGzJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "store: open gz json")
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "store: decompress %s", path)
	}
	defer zr.Close()
	if err := json.NewDecoder(zr).Decode(v); err != nil {
		return errors.Wrapf(err, "store: parse %s", path)
	}
	return nil
}

// WriteGzJSON stores v as gzip-compressed JSON.
func WriteGzJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "store: mkdir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "store: create gz json")
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return errors.Wrapf(err, "store: encode %s", path)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "store: flush %s", path)
	}
	return f.Close()
}
