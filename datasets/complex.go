package datasets

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"foldset/feat"
	"foldset/features"
	"foldset/pipeline"
	"foldset/store"
)

// AssemblyInfo describes one structure's biological assembly: the chain ids
// forming the complex and the symmetry operation generating each of them.
type AssemblyInfo struct {
	Chains []string             `json:"chains"`
	Opers  []features.Operation `json:"opers"`
}

// Example is one multi-chain training example: the merged assembly features
// and the per-chain ground-truth labels (nil when the source carries none).
type Example struct {
	Features feat.Map
	Labels   []feat.Map
}

// Batch is a collated set of Examples. Labels holds each example's per-chain
// label list; it is nil when no example carried labels.
type Batch struct {
	Features feat.Map
	Labels   [][]feat.Map
}

// ComplexDataset serves multi-chain assembly examples. It composes a
// ChainDataset for the weighted chain sampling and adds the structure→
// assembly map, symmetry-aware chain grouping, and chain-count filtering.
type ComplexDataset struct {
	chains      *ChainDataset
	pdbAssembly map[string]AssemblyInfo
	pdbChains   map[string][]string
	uniprotDir  string
}

// NewComplexDataset builds the multimer dataset. In train mode, structures
// whose assembly exceeds MaxChains chains, or whose assembly chains are not
// all present in the label map, are dropped; structures absent from the
// assembly map survive only with exactly one chain. Sample weights are
// re-filtered to the surviving chains and the chain distribution rebuilt.
//
// Self-distillation is disabled for complexes: the upstream implementation
// discarded the distillation draw on the multimer path, so the branch never
// ran; here that is explicit.
func NewComplexDataset(opts Options, cfg pipeline.Config, proc pipeline.Processor, logger *zap.Logger) (*ComplexDataset, error) {
	if opts.Mode == pipeline.ModeTrain && opts.MaxChains <= 0 {
		return nil, errors.Errorf(
			"datasets: train mode needs a positive MaxChains, got %d", opts.MaxChains)
	}
	opts.DisableSD = true
	chains, err := NewChainDataset(opts, cfg, proc, logger)
	if err != nil {
		return nil, err
	}
	d := &ComplexDataset{
		chains:     chains,
		uniprotDir: filepath.Join(opts.DataDir, pdbUniprotDir),
	}

	if err := readJSONFile(opts, pdbAssemblyFile, &d.pdbAssembly); err != nil {
		return nil, err
	}
	d.pdbChains = groupChains(chains.inverseLabel)

	if opts.Mode == pipeline.ModeTrain {
		kept, keptWeight := filterPDBByMaxChains(
			d.pdbChains, d.pdbAssembly, chains.chainWeight, opts.MaxChains, chains.inverseLabel)
		chains.log.Infof(
			"filtered out %d / %d structures (%d / %d chains) by max_chains %d",
			len(d.pdbChains)-len(kept), len(d.pdbChains),
			len(chains.chainWeight)-len(keptWeight), len(chains.chainWeight),
			opts.MaxChains,
		)
		d.pdbChains = kept
		chains.chainWeight = keptWeight
		if chains.chainIndex, err = newWeightedIndex(keptWeight); err != nil {
			return nil, err
		}
		if opts.MaxStep == 0 {
			chains.dataLen = chains.chainIndex.len()
		}
	}
	return d, nil
}

// Len returns the effective dataset length.
func (d *ComplexDataset) Len() int { return d.chains.Len() }

// ChainWeights returns the surviving chains' sampling weights in sorted
// chain-id order.
func (d *ComplexDataset) ChainWeights() []float64 { return d.chains.ChainWeights() }

// Get assembles and processes the full complex owning the chain drawn for
// idx. In train mode the assembly side file decides the sibling chains and
// their symmetry operations; otherwise (or when the structure has no assembly
// entry) the raw chain list is used with identity operations.
func (d *ComplexDataset) Get(idx int) (*Example, error) {
	_, labelID, _ := d.chains.SampleChain(idx, false)

	pdbID := pdbName(labelID)
	var labelIDs []string
	var ops []features.Operation
	if info, ok := d.pdbAssembly[pdbID]; ok && d.chains.opts.Mode == pipeline.ModeTrain {
		labelIDs = make([]string, len(info.Chains))
		for i, ch := range info.Chains {
			labelIDs[i] = pdbID + "_" + ch
		}
		ops = info.Opers
	} else {
		labelIDs = d.pdbChains[pdbID]
	}
	if len(labelIDs) == 0 {
		return nil, errors.Errorf("datasets: structure %q has no chains", pdbID)
	}

	seqIDs := make([]string, len(labelIDs))
	for i, chain := range labelIDs {
		seq, ok := d.chains.inverseLabel[chain]
		if !ok {
			return nil, errors.Errorf("datasets: chain %q of structure %q has no sequence", chain, pdbID)
		}
		seqIDs[i] = seq
	}

	fs, labels, err := d.chains.pl.LoadAndProcess(
		d.chains.asm, d.chains.ldr, d.chains.opts.Mode,
		features.LoadParams{
			SequenceIDs:  seqIDs,
			FeatureDir:   d.chains.featureDir,
			AlignmentDir: d.uniprotDir,
			LabelIDs:     labelIDs,
			LabelDir:     d.chains.labelDir,
			SymmetryOps:  ops,
			IsMonomer:    false,
		},
		d.chains.opts.Seed, idx/d.chains.opts.BatchSize, idx, false,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: example %d (%s)", idx, pdbID)
	}
	return &Example{Features: fs, Labels: labels}, nil
}

// CollateComplex stacks multi-chain examples into a batch. An empty input is
// a recoverable condition and yields a nil batch. Labels are gathered
// per-example; a batch where no example carries labels gets nil Labels. A
// feature that cannot be stacked surfaces as a *feat.CollateError naming it.
func CollateComplex(samples []*Example) (*Batch, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	fs := make([]feat.Map, len(samples))
	for i, s := range samples {
		fs[i] = s.Features
	}
	collated, err := Collate(fs)
	if err != nil {
		return nil, errors.Wrap(err, "datasets: collate complex batch")
	}

	var labels [][]feat.Map
	for _, s := range samples {
		if s.Labels != nil {
			labels = append(labels, s.Labels)
		}
	}
	return &Batch{Features: collated, Labels: labels}, nil
}

// pdbName extracts the structure id from a chain id like "1abc_A".
func pdbName(chain string) string {
	if i := strings.IndexByte(chain, '_'); i >= 0 {
		return chain[:i]
	}
	return chain
}

// groupChains indexes the inverse label map's chains by owning structure.
func groupChains(inverseLabel map[string]string) map[string][]string {
	out := make(map[string][]string)
	for chain := range inverseLabel {
		pdb := pdbName(chain)
		out[pdb] = append(out[pdb], chain)
	}
	return out
}

// filterPDBByMaxChains keeps structures whose assembly chain list has at most
// maxChains entries and whose assembly chains all resolve through the inverse
// label map; structures without an assembly entry survive only when they have
// exactly one chain. The sample weights are filtered to the surviving chains.
func filterPDBByMaxChains(
	pdbChains map[string][]string,
	pdbAssembly map[string]AssemblyInfo,
	chainWeight map[string]float64,
	maxChains int,
	inverseLabel map[string]string,
) (map[string][]string, map[string]float64) {
	kept := make(map[string][]string)
	for pdb, chains := range pdbChains {
		if info, ok := pdbAssembly[pdb]; ok {
			if len(info.Chains) > maxChains {
				continue
			}
			resolvable := true
			for _, ch := range info.Chains {
				if _, ok := inverseLabel[pdb+"_"+ch]; !ok {
					resolvable = false
					break
				}
			}
			if resolvable {
				kept[pdb] = chains
			}
		} else if len(chains) == 1 {
			kept[pdb] = chains
		}
	}

	keptWeight := make(map[string]float64)
	for chain, w := range chainWeight {
		if _, ok := kept[pdbName(chain)]; ok {
			keptWeight[chain] = w
		}
	}
	return kept, keptWeight
}

func readJSONFile(opts Options, name string, v interface{}) error {
	return store.ReadJSON(filepath.Join(opts.DataDir, opts.JSONPrefix+name), v)
}
