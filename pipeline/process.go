package pipeline

import (
	"github.com/pkg/errors"

	"foldset/crosslink"
	"foldset/feat"
	"foldset/features"
	"foldset/seedrand"
)

// cropSeedRange bounds the seed handed to the crop/fix-size transforms.
const cropSeedRange = 63355

// Discriminator strings for the scoped seeds, so the recycling draws and the
// feature-transform draws come from independent streams.
const (
	recyclingSeedKey = "recycling"
	featureSeedKey   = "protein_feature"
)

// Extra feature names process_ap keeps regardless of the base config.
var apExtraNames = []string{
	feat.KeyAsymID,
	feat.KeyEntityID,
	feat.KeySymID,
	"template_all_atom_mask",
	feat.KeyTemplateAatype,
	"template_all_atom_positions",
}

// Processor performs the numeric feature/label transforms (cropping,
// fix-size padding, recycling expansion). It is an external collaborator;
// this package decides what it sees and with which seeds.
type Processor interface {
	ProcessFeatures(m feat.Map, common CommonConfig, mode ModeConfig) (feat.Map, error)
	ProcessLabels(labels []feat.Map) ([]feat.Map, error)
}

// Passthrough is a Processor that returns its inputs unchanged. Useful for
// tests and for inspecting raw assembled records.
type Passthrough struct{}

func (Passthrough) ProcessFeatures(m feat.Map, _ CommonConfig, _ ModeConfig) (feat.Map, error) {
	return m, nil
}

func (Passthrough) ProcessLabels(labels []feat.Map) ([]feat.Map, error) { return labels, nil }

// Pipeline binds a data config to a Processor.
type Pipeline struct {
	Config Config
	Proc   Processor
}

// Process converts one merged assembly record (and optional per-chain
// labels) into a final example.
//
// In train mode the recycling-iteration count and the clamped-FAPE flag are
// drawn under the scope (recycling, seed, batchIdx); identical tuples
// reproduce identical draws. Other modes use the maximum recycling count and
// always clamp. A second independent seed for the crop/fix-size transforms
// is drawn under (protein_feature, seed, dataIdx). The record is filtered
// down to the mode's recognized feature names before the Processor sees it.
func (p *Pipeline) Process(
	mode string,
	fs feat.Map,
	labels []feat.Map,
	seed int64,
	batchIdx, dataIdx int,
	isDistillation bool,
) (feat.Map, []feat.Map, error) {
	if err := p.drawRecycling(mode, fs, seed, batchIdx); err != nil {
		return nil, nil, err
	}
	fs[feat.KeyIsDistillation] = feat.IntScalar(boolInt(isDistillation))
	if isDistillation {
		delete(fs, feat.KeyMSAChains)
	}

	numRes := fs.SeqLength()
	cfg, names, err := MakeDataConfig(p.Config, mode, numRes)
	if err != nil {
		return nil, nil, err
	}
	mc, _ := cfg.Mode(mode)

	if labels != nil {
		res, ok := labels[0][feat.KeyResolution]
		if !ok {
			return nil, nil, errors.New("pipeline: label record has no resolution")
		}
		fs[feat.KeyResolution] = res.Clone().Reshape(res.Len())
	}

	err = func() error {
		defer seedrand.Scoped(featureSeedKey, seed, int64(dataIdx))()
		fs[feat.KeyCropSeed] = feat.IntScalar(int64(seedrand.Intn(cropSeedRange)))
		fs = fs.Filter(names)
		var perr error
		fs, perr = p.Proc.ProcessFeatures(fs, cfg.Common, mc)
		return perr
	}()
	if err != nil {
		return nil, nil, errors.Wrap(err, "pipeline: process features")
	}

	if labels != nil {
		labels, err = p.Proc.ProcessLabels(labels)
		if err != nil {
			return nil, nil, errors.Wrap(err, "pipeline: process labels")
		}
	}
	return fs, labels, nil
}

// ProcessAP is the affinity/cross-link-aware variant of Process: templates
// are always on, the assembly-id and template features survive filtering
// regardless of the base config, an all-ones template mask is synthesized,
// and a dense cross-link feature "xl" is attached, all zeros when no
// cross-link source is given or it contains no matching links.
func (p *Pipeline) ProcessAP(
	mode string,
	fs feat.Map,
	labels []feat.Map,
	seed int64,
	batchIdx int,
	isDistillation bool,
	crosslinkPath string,
	chainDescs []string,
) (feat.Map, []feat.Map, error) {
	if err := p.drawRecycling(mode, fs, seed, batchIdx); err != nil {
		return nil, nil, err
	}
	fs[feat.KeyIsDistillation] = feat.IntScalar(boolInt(isDistillation))
	if isDistillation {
		delete(fs, feat.KeyMSAChains)
	}

	numRes := fs.SeqLength()
	cfg, names, err := MakeDataConfig(p.Config, mode, numRes)
	if err != nil {
		return nil, nil, err
	}
	cfg.Common.UseTemplates = true
	names = append(names, apExtraNames...)
	mc, _ := cfg.Mode(mode)

	if labels != nil {
		res, ok := labels[0][feat.KeyResolution]
		if !ok {
			return nil, nil, errors.New("pipeline: label record has no resolution")
		}
		fs[feat.KeyResolution] = res.Clone().Reshape(res.Len())
	}

	err = func() error {
		defer seedrand.Scoped(featureSeedKey, seed)()
		fs[feat.KeyCropSeed] = feat.IntScalar(int64(seedrand.Intn(cropSeedRange)))
		fs = fs.Filter(names)
		ta, ok := fs[feat.KeyTemplateAatype]
		if !ok {
			return errors.New("record has no template_aatype")
		}
		fs[feat.KeyTemplateMask] = feat.OneFloats(1, ta.Dim(-1))
		var perr error
		fs, perr = p.Proc.ProcessFeatures(fs, cfg.Common, mc)
		return perr
	}()
	if err != nil {
		return nil, nil, errors.Wrap(err, "pipeline: process features")
	}

	if labels != nil {
		labels, err = p.Proc.ProcessLabels(labels)
		if err != nil {
			return nil, nil, errors.Wrap(err, "pipeline: process labels")
		}
	}

	xl, err := p.crossLinkFeature(fs, crosslinkPath, chainDescs, numRes)
	if err != nil {
		return nil, nil, err
	}
	fs[feat.KeyCrossLink] = xl

	return fs, labels, nil
}

func (p *Pipeline) crossLinkFeature(fs feat.Map, path string, chainDescs []string, numRes int) (*feat.Array, error) {
	if path == "" {
		return feat.ZeroFloats(numRes, numRes, 1), nil
	}
	table, err := crosslink.LoadTable(path)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: load cross-links")
	}
	asym, ok := fs[feat.KeyAsymID]
	if !ok {
		return nil, errors.New("pipeline: cross-links need asym_id in the processed record")
	}
	offsets := crosslink.CalculateOffsets(asym)
	links := crosslink.Create(table, offsets, chainDescs)
	if len(links) == 0 {
		return feat.ZeroFloats(numRes, numRes, 1), nil
	}
	return crosslink.Bin(links, numRes), nil
}

// drawRecycling samples num_recycling_iters and use_clamped_fape in train
// mode, or applies the deterministic non-train values, writing both into the
// record.
func (p *Pipeline) drawRecycling(mode string, fs feat.Map, seed int64, batchIdx int) error {
	var numIters int
	var clamped int64
	if mode == ModeTrain {
		if batchIdx < 0 {
			return errors.New("pipeline: train mode needs a batch index")
		}
		mc := p.Config.Train
		restore := seedrand.Scoped(recyclingSeedKey, seed, int64(batchIdx))
		numIters = seedrand.Intn(p.Config.Common.MaxRecyclingIters + 1)
		if seedrand.Float64() < mc.UseClampedFAPEProb {
			clamped = 1
		}
		restore()
	} else {
		numIters = p.Config.Common.MaxRecyclingIters
		clamped = 1
	}
	fs[feat.KeyNumRecycling] = feat.IntScalar(int64(numIters))
	fs[feat.KeyUseClampedFAPE] = feat.IntScalar(clamped)
	return nil
}

// LoadAndProcess assembles one complex and runs Process on it in one call.
func (p *Pipeline) LoadAndProcess(
	asm features.Assembler,
	loader *features.Loader,
	mode string,
	lp features.LoadParams,
	seed int64,
	batchIdx, dataIdx int,
	isDistillation bool,
) (feat.Map, []feat.Map, error) {
	fs, labels, err := features.Load(asm, loader, lp)
	if err != nil {
		return nil, nil, err
	}
	return p.Process(mode, fs, labels, seed, batchIdx, dataIdx, isDistillation)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
