// Package datasets exposes the training corpus as index-addressable example
// sources: a weighted-sampling single-chain dataset and a multi-chain
// complex dataset. Both follow the Len / Get / Collate contract expected by
// external data-loading workers, each of which holds its own dataset
// instance and seeded random state.
package datasets

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"foldset/feat"
	"foldset/features"
	"foldset/pipeline"
	"foldset/seedrand"
	"foldset/store"
)

// Side-file names under the dataset root, optionally prefixed.
const (
	sampleWeightSuffix = "_sample_weight.json"
	multiLabelSuffix   = "_multi_label.json"
	sdSampleWeightFile = "sd_train_sample_weight.json"
	pdbAssemblyFile    = "pdb_assembly.json"
)

// Subdirectories of the dataset root.
const (
	pdbFeatureDir = "pdb_features"
	pdbLabelDir   = "pdb_labels"
	pdbUniprotDir = "pdb_uniprots"
	sdFeatureDir  = "sd_features"
	sdLabelDir    = "sd_labels"
)

// Options configures dataset construction.
type Options struct {
	// DataDir is the dataset root holding the record subdirectories and the
	// JSON side files.
	DataDir string
	// Mode is pipeline.ModeTrain or pipeline.ModeEval.
	Mode string
	// Seed is the base seed all per-example draws derive from.
	Seed int64
	// BatchSize is the number of examples per step; with MaxStep it caps the
	// effective dataset length. Defaults to 1.
	BatchSize int
	// MaxStep caps the number of steps; 0 means the chain count decides the
	// length.
	MaxStep int
	// SDProb is the per-example probability of drawing a self-distillation
	// example when a self-distillation weight table is present.
	SDProb float64
	// DisableSD turns self-distillation sampling off even when the weight
	// table exists.
	DisableSD bool
	// JSONPrefix is prepended to the side-file names.
	JSONPrefix string
	// MaxChains filters out assemblies with more chains in train mode.
	// Required positive for the complex dataset in train mode.
	MaxChains int
}

// ChainDataset serves single-chain (monomer) examples drawn by weighted
// sampling over chains or sequences, with optional self-distillation mixing.
// The weight tables and id maps are loaded once at construction and immutable
// afterwards.
type ChainDataset struct {
	opts Options
	pl   *pipeline.Pipeline
	asm  features.Assembler
	ldr  *features.Loader
	log  *zap.SugaredLogger

	multiLabel   map[string][]string
	inverseLabel map[string]string
	chainWeight  map[string]float64

	chainIndex *weightedIndex
	seqIndex   *weightedIndex
	sdIndex    *weightedIndex

	featureDir   string
	labelDir     string
	sdFeatureDir string
	sdLabelDir   string

	dataLen int
	cursor  int
}

// NewChainDataset loads the mode's sample-weight and multi-label side files,
// inverts the label map (a label owned by two sequences aborts construction),
// and derives the sampling distributions. A nil logger disables logging.
func NewChainDataset(opts Options, cfg pipeline.Config, proc pipeline.Processor, logger *zap.Logger) (*ChainDataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	d := &ChainDataset{
		opts:       opts,
		pl:         &pipeline.Pipeline{Config: cfg, Proc: proc},
		asm:        features.StandardAssembler{},
		ldr:        features.NewLoader(),
		log:        logger.Sugar(),
		featureDir: filepath.Join(opts.DataDir, pdbFeatureDir),
		labelDir:   filepath.Join(opts.DataDir, pdbLabelDir),
	}

	seqWeight := make(map[string]float64)
	path := filepath.Join(opts.DataDir, opts.JSONPrefix+opts.Mode+sampleWeightSuffix)
	if err := store.ReadJSON(path, &seqWeight); err != nil {
		return nil, err
	}
	if err := store.ReadJSON(
		filepath.Join(opts.DataDir, opts.JSONPrefix+opts.Mode+multiLabelSuffix),
		&d.multiLabel,
	); err != nil {
		return nil, err
	}

	var err error
	d.inverseLabel, err = inverseMap(d.multiLabel)
	if err != nil {
		return nil, err
	}

	d.chainWeight = make(map[string]float64, len(d.inverseLabel))
	for chain, seq := range d.inverseLabel {
		w, ok := seqWeight[seq]
		if !ok {
			return nil, errors.Errorf("datasets: sequence %q of chain %q has no sample weight", seq, chain)
		}
		d.chainWeight[chain] = w
	}
	d.log.Infof("loaded %d chains (%d unique sequences)", len(d.chainWeight), len(seqWeight))

	if d.chainIndex, err = newWeightedIndex(d.chainWeight); err != nil {
		return nil, err
	}
	if d.seqIndex, err = newWeightedIndex(seqWeight); err != nil {
		return nil, err
	}

	sdPath := filepath.Join(opts.DataDir, opts.JSONPrefix+sdSampleWeightFile)
	if opts.Mode == pipeline.ModeTrain && !opts.DisableSD && fileExists(sdPath) {
		sdWeight := make(map[string]float64)
		if err := store.ReadJSON(sdPath, &sdWeight); err != nil {
			return nil, err
		}
		if d.sdIndex, err = newWeightedIndex(sdWeight); err != nil {
			return nil, err
		}
		d.sdFeatureDir = filepath.Join(opts.DataDir, sdFeatureDir)
		d.sdLabelDir = filepath.Join(opts.DataDir, sdLabelDir)
		d.log.Infof("loaded %d self-distillation samples", d.sdIndex.len())
	}

	d.dataLen = d.chainIndex.len()
	if opts.MaxStep > 0 {
		d.dataLen = opts.MaxStep * opts.BatchSize
	}
	return d, nil
}

// Len returns the effective dataset length: maxStep*batchSize when a step cap
// is configured, otherwise the chain count.
func (d *ChainDataset) Len() int { return d.dataLen }

// ChainWeights returns the relative sampling weights of the chains in sorted
// chain-id order. Useful for inspecting the sampling distribution.
func (d *ChainDataset) ChainWeights() []float64 {
	out := make([]float64, d.chainIndex.len())
	for i := range out {
		out[i] = d.chainWeight[d.chainIndex.key(i)]
	}
	return out
}

// SampleChain resolves index idx to a (sequence, label) pair. In train mode
// the draws happen under the scope (data_sample, seed, idx): first whether
// the example is self-distillation, then the chain: by chain weight, or by
// sequence weight followed by a uniform pick among the sequence's labels when
// sampleBySeq is set. In eval mode idx indexes the chain list directly.
func (d *ChainDataset) SampleChain(idx int, sampleBySeq bool) (seqID, labelID string, isDistillation bool) {
	if d.opts.Mode != pipeline.ModeTrain {
		labelID = d.chainIndex.key(idx)
		return d.inverseLabel[labelID], labelID, false
	}

	defer seedrand.Scoped("data_sample", d.opts.Seed, int64(idx))()
	rng := seedrand.Global()

	if d.sdIndex != nil && rng.Float64() < d.opts.SDProb {
		labelID = d.sdIndex.sample(rng)
		return labelID, labelID, true
	}
	if !sampleBySeq {
		labelID = d.chainIndex.sample(rng)
		return d.inverseLabel[labelID], labelID, false
	}
	seqID = d.seqIndex.sample(rng)
	labels := d.multiLabel[seqID]
	labelID = labels[rng.Intn(len(labels))]
	return seqID, labelID, false
}

// Get returns the processed tensor example for one chain (the monomer path).
func (d *ChainDataset) Get(idx int) (feat.Map, error) {
	seqID, labelID, isDistillation := d.SampleChain(idx, true)

	featureDir, labelDir := d.featureDir, d.labelDir
	if isDistillation {
		featureDir, labelDir = d.sdFeatureDir, d.sdLabelDir
	}

	fs, _, err := d.pl.LoadAndProcess(
		d.asm, d.ldr, d.opts.Mode,
		features.LoadParams{
			SequenceIDs: []string{seqID},
			FeatureDir:  featureDir,
			LabelIDs:    []string{labelID},
			LabelDir:    labelDir,
			IsMonomer:   true,
		},
		d.opts.Seed, idx/d.opts.BatchSize, idx, isDistillation,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: example %d (%s)", idx, labelID)
	}
	return fs, nil
}

// Collate stacks per-example feature records into a batch. The recycling
// axis is decided per example and leads; the batch axis is inserted second.
func Collate(samples []feat.Map) (feat.Map, error) {
	return feat.Collate(samples, 1)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
