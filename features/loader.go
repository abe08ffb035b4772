// Package features loads per-chain sequence/alignment records and
// ground-truth labels from a dataset root and assembles them into
// multi-chain complex records. It owns the bounded feature cache and the
// symmetry-operation handling; the heavier numeric assembly steps are
// collaborator seams (see Assembler).
package features

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"foldset/feat"
	"foldset/store"
)

type record = feat.Map

// allSeqKeys are the alignment fields taken from the full-database search and
// attached to multimer chains under the _all_seq suffix.
var allSeqKeys = []string{feat.KeyMSA, feat.KeySpeciesIDs, feat.KeyDeletionMatrix}

// Loader reads per-chain feature records through a bounded copy-on-read
// cache. One Loader per data-loading worker; not safe for concurrent use.
type Loader struct {
	cache *featureCache

	// ConvertMonomer optionally normalizes a freshly read monomer record
	// (dtype fixes, squeezing) before alignments are merged. Nil means the
	// record is used as stored.
	ConvertMonomer func(feat.Map) feat.Map
}

// NewLoader returns a Loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{cache: newFeatureCache()}
}

// LoadFeature reads one chain's feature record from featureDir, keyed by
// sequence id. When alignmentDir is non-empty the full-database alignment
// record is read as well and either merged into the base alignment (monomer)
// or attached under _all_seq keys (multimer). Results are cached (capacity 8,
// LRU) and every call returns an independent copy.
func (l *Loader) LoadFeature(seqID, featureDir, alignmentDir string, isMonomer bool) (feat.Map, error) {
	key := cacheKey{seqID: seqID, featureDir: featureDir, alignmentDir: alignmentDir, monomer: isMonomer}
	if m, ok := l.cache.get(key); ok {
		return m, nil
	}

	chain, err := store.ReadRecord(store.FeaturePath(featureDir, seqID))
	if err != nil {
		return nil, errors.Wrapf(err, "features: load feature %q", seqID)
	}
	if l.ConvertMonomer != nil {
		chain = l.ConvertMonomer(chain)
	}

	if alignmentDir != "" {
		allSeq, err := store.ReadRecord(store.UniprotPath(alignmentDir, seqID))
		if err != nil {
			return nil, errors.Wrapf(err, "features: load alignment %q", seqID)
		}
		if isMonomer {
			msa, del, err := mergeMSAs(
				chain[feat.KeyMSA], chain[feat.KeyDeletionMatrix],
				allSeq[feat.KeyMSA], allSeq[feat.KeyDeletionMatrix],
			)
			if err != nil {
				return nil, errors.Wrapf(err, "features: merge alignment %q", seqID)
			}
			chain[feat.KeyMSA] = msa
			chain[feat.KeyDeletionMatrix] = del
		} else {
			for _, k := range allSeqKeys {
				if a, ok := allSeq[k]; ok {
					chain[k+feat.AllSeqSuffix] = a
				}
			}
		}
	}

	return l.cache.add(key, chain), nil
}

// LoadLabel reads one chain's ground-truth record from labelDir, applies the
// symmetry operation to the atom positions, and projects the record down to
// exactly the label fields. A missing required field is a format error.
func LoadLabel(labelID, labelDir string, op Operation) (feat.Map, error) {
	label, err := store.ReadRecord(store.LabelPath(labelDir, labelID))
	if err != nil {
		return nil, errors.Wrapf(err, "features: load label %q", labelID)
	}
	for _, k := range feat.LabelKeys {
		if !label.Has(k) {
			return nil, errors.Errorf("features: label %q missing required field %q", labelID, k)
		}
	}
	if !op.IsIdentity() {
		label[feat.KeyAllAtomPositions] = op.Apply(label[feat.KeyAllAtomPositions])
	}
	return label.Filter(feat.LabelKeys), nil
}

// mergeMSAs appends the extra alignment's rows to the base alignment,
// dropping rows whose sequence already occurs in the base. Row order is
// preserved: base rows first, new rows in extra order.
func mergeMSAs(baseMSA, baseDel, extraMSA, extraDel *feat.Array) (*feat.Array, *feat.Array, error) {
	if baseMSA == nil || baseDel == nil {
		return nil, nil, errors.New("base record has no alignment")
	}
	if extraMSA == nil || extraDel == nil {
		return nil, nil, errors.New("alignment record has no alignment")
	}
	width := baseMSA.Dim(1)
	if extraMSA.Dim(1) != width {
		return nil, nil, errors.Errorf("alignment widths differ: %d vs %d", width, extraMSA.Dim(1))
	}

	seen := make(map[string]bool, baseMSA.Dim(0))
	for r := 0; r < baseMSA.Dim(0); r++ {
		seen[rowKey(baseMSA.I[r*width:(r+1)*width])] = true
	}

	msa := append([]int64(nil), baseMSA.I...)
	del := append([]int64(nil), baseDel.I...)
	rows := baseMSA.Dim(0)
	for r := 0; r < extraMSA.Dim(0); r++ {
		row := extraMSA.I[r*width : (r+1)*width]
		k := rowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		msa = append(msa, row...)
		del = append(del, extraDel.I[r*width:(r+1)*width]...)
		rows++
	}
	return feat.Ints(msa, rows, width), feat.Ints(del, rows, width), nil
}

func rowKey(row []int64) string {
	var b strings.Builder
	for _, v := range row {
		b.WriteString(strconv.FormatInt(v, 36))
		b.WriteByte(',')
	}
	return b.String()
}
