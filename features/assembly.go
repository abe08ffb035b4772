package features

import (
	"github.com/pkg/errors"

	"foldset/feat"
)

// Assembler is the complex-level feature collaborator: it augments chain
// records with assembly bookkeeping, fuses per-chain alignments and
// coordinates into one record, and applies assembly post-processing.
// AddAssemblyFeatures may reorder the chain list.
type Assembler interface {
	AddAssemblyFeatures(chains []feat.Map) []feat.Map
	PairAndMerge(chains []feat.Map) (feat.Map, error)
	PostProcess(merged feat.Map) feat.Map
}

// LoadParams names the inputs of one assembly load. LabelIDs, LabelDir and
// SymmetryOps are optional as a group: when LabelIDs is set it must have one
// id per sequence and LabelDir must be set; SymmetryOps defaults to the
// identity per chain.
type LoadParams struct {
	SequenceIDs  []string
	FeatureDir   string
	AlignmentDir string
	LabelIDs     []string
	LabelDir     string
	SymmetryOps  []Operation
	IsMonomer    bool
}

// Load fetches every chain of one complex, attaches ground truth when
// requested, and merges the chains into a single assembly record. It returns
// the merged features and the per-chain labels in final assembly order, or
// nil labels when none were requested.
//
// Labels are merged into the chain records before assembly so spatial
// cropping downstream sees true coordinates, then re-extracted afterwards
// because AddAssemblyFeatures may reorder the chains.
func Load(asm Assembler, loader *Loader, p LoadParams) (feat.Map, []feat.Map, error) {
	chains := make([]feat.Map, len(p.SequenceIDs))
	for i, seqID := range p.SequenceIDs {
		c, err := loader.LoadFeature(seqID, p.FeatureDir, p.AlignmentDir, p.IsMonomer)
		if err != nil {
			return nil, nil, err
		}
		chains[i] = c
	}

	haveLabels := p.LabelIDs != nil
	if haveLabels {
		if len(p.LabelIDs) != len(p.SequenceIDs) {
			return nil, nil, errors.Errorf(
				"features: %d label ids for %d sequence ids", len(p.LabelIDs), len(p.SequenceIDs))
		}
		if p.LabelDir == "" {
			return nil, nil, errors.New("features: label ids given without a label dir")
		}
		ops := p.SymmetryOps
		if ops == nil {
			ops = IdentityOps(len(p.LabelIDs))
		} else if len(ops) != len(p.LabelIDs) {
			return nil, nil, errors.Errorf(
				"features: %d symmetry ops for %d label ids", len(ops), len(p.LabelIDs))
		}
		for i, labelID := range p.LabelIDs {
			label, err := LoadLabel(labelID, p.LabelDir, ops[i])
			if err != nil {
				return nil, nil, err
			}
			chains[i].Update(label)
		}
	}

	chains = asm.AddAssemblyFeatures(chains)

	var labels []feat.Map
	if haveLabels {
		labels = make([]feat.Map, len(chains))
		for i, c := range chains {
			labels[i] = c.Filter(feat.LabelKeys)
		}
	}

	asymLen := make([]int64, len(chains))
	for i, c := range chains {
		asymLen[i] = int64(c.SeqLength())
	}

	var merged feat.Map
	if p.IsMonomer {
		merged = chains[0]
	} else {
		var err error
		merged, err = asm.PairAndMerge(chains)
		if err != nil {
			return nil, nil, errors.Wrap(err, "features: pair and merge")
		}
		merged = asm.PostProcess(merged)
	}
	merged[feat.KeyAsymLen] = feat.Ints(asymLen, len(asymLen))

	return merged, labels, nil
}
