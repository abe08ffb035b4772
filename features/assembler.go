package features

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"foldset/feat"
)

// gapToken pads MSA rows outside their own chain's residue span when chains
// are block-stacked into one assembly alignment.
const gapToken = 21

// StandardAssembler is the default assembly collaborator. Chains with
// identical sequences form one entity; chains are reordered grouped by
// entity; per-residue asym/entity/sym id arrays are attached (all 1-based).
// Pairing concatenates per-residue features along the residue axis and
// block-stacks the MSAs with gap padding.
// Training setups with richer cross-chain MSA pairing substitute their own
// Assembler.
type StandardAssembler struct{}

// perResidueKeys are concatenated along the residue axis during PairAndMerge
// when present in every chain.
var perResidueKeys = []string{
	feat.KeyAatype,
	feat.KeyResidueIndex,
	feat.KeyAllAtomPositions,
	feat.KeyAllAtomMask,
	feat.KeyAsymID,
	feat.KeyEntityID,
	feat.KeySymID,
}

// AddAssemblyFeatures groups chains into entities by sequence identity,
// reorders the chain list so copies of an entity are adjacent, and attaches
// per-residue assembly ids.
func (StandardAssembler) AddAssemblyFeatures(chains []feat.Map) []feat.Map {
	entityOrder := make([]string, 0, len(chains))
	byEntity := make(map[string][]feat.Map, len(chains))
	for _, c := range chains {
		key := sequenceKey(c)
		if _, ok := byEntity[key]; !ok {
			entityOrder = append(entityOrder, key)
		}
		byEntity[key] = append(byEntity[key], c)
	}

	out := make([]feat.Map, 0, len(chains))
	asym := int64(0)
	for entity, key := range entityOrder {
		for sym, c := range byEntity[key] {
			asym++
			n := c.SeqLength()
			c[feat.KeyAsymID] = constInts(asym, n)
			c[feat.KeyEntityID] = constInts(int64(entity)+1, n)
			c[feat.KeySymID] = constInts(int64(sym)+1, n)
			out = append(out, c)
		}
	}
	return out
}

// PairAndMerge fuses the chains of one assembly into a single record:
// per-residue features concatenate along the residue axis, the MSAs
// block-stack with gap padding, and scalar bookkeeping is recomputed.
func (StandardAssembler) PairAndMerge(chains []feat.Map) (feat.Map, error) {
	if len(chains) == 0 {
		return nil, errors.New("no chains to merge")
	}
	merged := make(feat.Map)

	for _, key := range perResidueKeys {
		parts := make([]*feat.Array, 0, len(chains))
		for _, c := range chains {
			a, ok := c[key]
			if !ok {
				parts = nil
				break
			}
			parts = append(parts, a)
		}
		if parts == nil {
			continue
		}
		a, err := feat.ConcatArrays(parts...)
		if err != nil {
			return nil, errors.Wrapf(err, "merge %q", key)
		}
		merged[key] = a
	}

	msa, del, err := blockStackMSAs(chains)
	if err != nil {
		return nil, err
	}
	if msa != nil {
		merged[feat.KeyMSA] = msa
		merged[feat.KeyDeletionMatrix] = del
	}

	total := 0
	for _, c := range chains {
		total += c.SeqLength()
	}
	merged[feat.KeySeqLength] = feat.IntScalar(int64(total))
	if r, ok := chains[0][feat.KeyResolution]; ok {
		merged[feat.KeyResolution] = r
	}
	return merged, nil
}

// PostProcess is a hook point; the standard assembler returns the record
// unchanged.
func (StandardAssembler) PostProcess(merged feat.Map) feat.Map { return merged }

// blockStackMSAs lays each chain's alignment into its own row and column
// block of the assembly alignment: rows total across chains, columns span
// the whole complex, positions outside a row's chain filled with the gap
// token (deletions with zero).
func blockStackMSAs(chains []feat.Map) (*feat.Array, *feat.Array, error) {
	totalRows, totalCols := 0, 0
	for _, c := range chains {
		msa, ok := c[feat.KeyMSA]
		if !ok {
			return nil, nil, nil
		}
		if c[feat.KeyDeletionMatrix] == nil {
			return nil, nil, errors.New("chain has msa but no deletion_matrix")
		}
		totalRows += msa.Dim(0)
		totalCols += msa.Dim(1)
	}

	msaOut := make([]int64, totalRows*totalCols)
	for i := range msaOut {
		msaOut[i] = gapToken
	}
	delOut := make([]int64, totalRows*totalCols)

	rowOff, colOff := 0, 0
	for _, c := range chains {
		msa, del := c[feat.KeyMSA], c[feat.KeyDeletionMatrix]
		rows, cols := msa.Dim(0), msa.Dim(1)
		for r := 0; r < rows; r++ {
			dst := (rowOff+r)*totalCols + colOff
			copy(msaOut[dst:dst+cols], msa.I[r*cols:(r+1)*cols])
			copy(delOut[dst:dst+cols], del.I[r*cols:(r+1)*cols])
		}
		rowOff += rows
		colOff += cols
	}
	return feat.Ints(msaOut, totalRows, totalCols), feat.Ints(delOut, totalRows, totalCols), nil
}

func sequenceKey(c feat.Map) string {
	a, ok := c[feat.KeyAatype]
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, v := range a.I {
		b.WriteString(strconv.FormatInt(v, 36))
		b.WriteByte('.')
	}
	return b.String()
}

func constInts(v int64, n int) *feat.Array {
	data := make([]int64, n)
	for i := range data {
		data[i] = v
	}
	return feat.Ints(data, n)
}
