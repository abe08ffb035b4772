// Package crosslink converts experimentally observed residue-residue
// proximity constraints (cross-links with false-discovery-rate confidences)
// into a dense per-residue-pair binned feature aligned with an assembled
// complex's flattened numbering.
package crosslink

import (
	"sort"

	"foldset/feat"
	"foldset/seedrand"
	"foldset/store"
)

// Entry is one cross-link between two residues of a chain pair, using
// chain-local residue numbering. FDR is the link's false-discovery rate.
type Entry struct {
	Start int64   `json:"start"`
	End   int64   `json:"end"`
	FDR   float64 `json:"fdr"`
}

// Table maps chain description -> chain description -> observed links.
type Table map[string]map[string][]Entry

// LoadTable reads a gzip-compressed JSON cross-link table.
func LoadTable(path string) (Table, error) {
	var t Table
	if err := store.ReadGzJSON(path, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Link is one cross-link in complex-wide residue numbering.
type Link struct {
	I, J int64
	FDR  float64
}

// CalculateOffsets returns, for each chain of the assembly in id order, the
// index of its first residue in the flattened complex numbering. The input
// is the per-residue asym id array; asym ids [0,0,1,1,1] give [0,2,5].
func CalculateOffsets(asymID *feat.Array) []int64 {
	counts := make(map[int64]int64)
	var order []int64
	for _, id := range asymID.I {
		if _, ok := counts[id]; !ok {
			order = append(order, id)
		}
		counts[id]++
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	offsets := make([]int64, len(order)+1)
	for i, id := range order {
		offsets[i+1] = offsets[i] + counts[id]
	}
	return offsets
}

// Create collects the table's links for every ordered pair of chain
// descriptions, self-pairs included, shifting residue indices by the
// respective chain offsets. The result is empty when nothing matches.
func Create(table Table, offsets []int64, chains []string) []Link {
	var out []Link
	for i, chain1 := range chains {
		byChain2, ok := table[chain1]
		if !ok {
			continue
		}
		for j, chain2 := range chains {
			for _, e := range byChain2[chain2] {
				out = append(out, Link{
					I:   e.Start + offsets[i],
					J:   e.End + offsets[j],
					FDR: e.FDR,
				})
			}
		}
	}
	return out
}

// binEdges are 21 uniform confidence thresholds from 0.0 to 1.0.
var binEdges = func() []float64 {
	edges := make([]float64, 21)
	for i := range edges {
		edges[i] = float64(i) * 0.05
	}
	return edges
}()

// Bin writes each link's confidence bin into a dense (numRes, numRes, 1)
// array, symmetrically at [i,j] and [j,i]. The bin index is the first edge
// >= (1 - fdr). Entries are visited in a random order from the current
// seeded scope, so for duplicate pairs the surviving bin does not depend on
// input order.
func Bin(links []Link, numRes int) *feat.Array {
	out := make([]float32, numRes*numRes)
	for _, k := range seedrand.Perm(len(links)) {
		l := links[k]
		bin := float32(sort.SearchFloat64s(binEdges, 1-l.FDR))
		out[l.I*int64(numRes)+l.J] = bin
		out[l.J*int64(numRes)+l.I] = bin
	}
	return feat.Floats(out, numRes, numRes, 1)
}
