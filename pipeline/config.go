// Package pipeline turns merged assembly records into final training
// examples: it resolves the per-mode feature configuration, draws the
// stochastic recycling and cropping parameters under scoped seeds, and
// delegates the numeric transforms to an external Processor.
package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Mode names recognized by the data config.
const (
	ModeTrain = "train"
	ModeEval  = "eval"
)

// CommonConfig is the mode-independent half of the data config.
type CommonConfig struct {
	UnsupervisedFeatures []string `yaml:"unsupervised_features"`
	RecyclingFeatures    []string `yaml:"recycling_features"`
	TemplateFeatures     []string `yaml:"template_features"`
	MultimerFeatures     []string `yaml:"multimer_features"`
	UseTemplates         bool     `yaml:"use_templates"`
	IsMultimer           bool     `yaml:"is_multimer"`
	MaxRecyclingIters    int      `yaml:"max_recycling_iters"`
}

// ModeConfig configures one pipeline mode. CropSize zero means "default to
// the example's own residue count".
type ModeConfig struct {
	CropSize           int     `yaml:"crop_size"`
	Supervised         bool    `yaml:"supervised"`
	UseClampedFAPEProb float64 `yaml:"use_clamped_fape_prob"`
}

// SupervisedConfig names the label-derived features added in supervised
// modes.
type SupervisedConfig struct {
	SupervisedFeatures []string `yaml:"supervised_features"`
}

// Config is the nested data configuration consumed by the pipeline.
type Config struct {
	Common     CommonConfig     `yaml:"common"`
	Supervised SupervisedConfig `yaml:"supervised"`
	Train      ModeConfig       `yaml:"train"`
	Eval       ModeConfig       `yaml:"eval"`
}

// LoadConfig reads a YAML data config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "pipeline: read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "pipeline: parse config %s", path)
	}
	return cfg, nil
}

// Mode returns the named mode's config.
func (c Config) Mode(mode string) (ModeConfig, error) {
	switch mode {
	case ModeTrain:
		return c.Train, nil
	case ModeEval:
		return c.Eval, nil
	}
	return ModeConfig{}, errors.Errorf("pipeline: unknown mode %q", mode)
}

func (c *Config) setMode(mode string, mc ModeConfig) {
	switch mode {
	case ModeTrain:
		c.Train = mc
	case ModeEval:
		c.Eval = mc
	}
}

// MakeDataConfig returns a copy of cfg with the mode's crop size defaulted to
// numRes when unset, together with the recognized feature-name set for that
// mode: unsupervised + recycling names, plus template names when templates
// are enabled, multimer names in multimer mode, and supervised names when the
// mode is supervised.
func MakeDataConfig(cfg Config, mode string, numRes int) (Config, []string, error) {
	mc, err := cfg.Mode(mode)
	if err != nil {
		return cfg, nil, err
	}
	if mc.CropSize == 0 {
		mc.CropSize = numRes
	}
	cfg.setMode(mode, mc)

	names := make([]string, 0,
		len(cfg.Common.UnsupervisedFeatures)+len(cfg.Common.RecyclingFeatures))
	names = append(names, cfg.Common.UnsupervisedFeatures...)
	names = append(names, cfg.Common.RecyclingFeatures...)
	if cfg.Common.UseTemplates {
		names = append(names, cfg.Common.TemplateFeatures...)
	}
	if cfg.Common.IsMultimer {
		names = append(names, cfg.Common.MultimerFeatures...)
	}
	if mc.Supervised {
		names = append(names, cfg.Supervised.SupervisedFeatures...)
	}
	return cfg, names, nil
}
