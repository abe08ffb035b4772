// foldstat inspects a training dataset directory: it reports chain and
// sequence counts, optionally fetches a few examples to exercise the full
// loading pipeline, and can render the sampling-weight distribution as a
// histogram.
//
// Usage:
//
//	foldstat -data /path/to/dataset -config data.yaml -mode eval -samples 2
//	foldstat -data /path/to/dataset -config data.yaml -multimer -plot weights.png
package main

import (
	"flag"
	"log"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"foldset/datasets"
	"foldset/feat"
	"foldset/pipeline"
)

func main() {
	var (
		dataDir    = flag.String("data", "", "dataset root directory")
		configPath = flag.String("config", "", "YAML data config")
		mode       = flag.String("mode", pipeline.ModeEval, "pipeline mode (train or eval)")
		multimer   = flag.Bool("multimer", false, "inspect the multi-chain complex dataset")
		maxChains  = flag.Int("max-chains", 18, "train-mode assembly chain-count cap (multimer)")
		seed       = flag.Int64("seed", 42, "base sampling seed")
		batchSize  = flag.Int("batch-size", 1, "examples per step")
		samples    = flag.Int("samples", 0, "number of examples to fetch as a pipeline check")
		workers    = flag.Int("workers", 1, "parallel loader workers for the sample check")
		plotOut    = flag.String("plot", "", "write a sampling-weight histogram PNG to this path")
	)
	flag.Parse()
	if *dataDir == "" || *configPath == "" {
		flag.Usage()
		log.Fatal("foldstat: -data and -config are required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("foldstat: logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		sugar.Fatalf("load config: %v", err)
	}

	opts := datasets.Options{
		DataDir:   *dataDir,
		Mode:      *mode,
		Seed:      *seed,
		BatchSize: *batchSize,
		MaxChains: *maxChains,
	}

	var (
		length   int
		weights  []float64
		fetch    func(int) (feat.Map, error)
		fetchAll func([]int) ([]feat.Map, error)
	)
	if *multimer {
		ds, err := datasets.NewComplexDataset(opts, cfg, pipeline.Passthrough{}, logger)
		if err != nil {
			sugar.Fatalf("build complex dataset: %v", err)
		}
		length = ds.Len()
		weights = ds.ChainWeights()
		fetch = func(i int) (feat.Map, error) {
			ex, err := ds.Get(i)
			if err != nil {
				return nil, err
			}
			return ex.Features, nil
		}
	} else {
		factory := func() (*datasets.ChainDataset, error) {
			return datasets.NewChainDataset(opts, cfg, pipeline.Passthrough{}, logger)
		}
		ds, err := factory()
		if err != nil {
			sugar.Fatalf("build chain dataset: %v", err)
		}
		length = ds.Len()
		weights = ds.ChainWeights()
		fetch = ds.Get
		if *workers > 1 {
			pf, err := datasets.NewPrefetcher(factory, *workers)
			if err != nil {
				sugar.Fatalf("build prefetcher: %v", err)
			}
			fetchAll = pf.Fetch
		}
	}

	sugar.Infof("dataset length %d, %d weighted chains", length, len(weights))

	n := *samples
	if n > length {
		n = length
	}
	var records []feat.Map
	if fetchAll != nil && n > 0 {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		if records, err = fetchAll(indices); err != nil {
			sugar.Fatalf("fetch examples: %v", err)
		}
	} else {
		for i := 0; i < n; i++ {
			m, err := fetch(i)
			if err != nil {
				sugar.Fatalf("fetch example %d: %v", i, err)
			}
			records = append(records, m)
		}
	}
	for i, m := range records {
		keys := m.Keys()
		sort.Strings(keys)
		sugar.Infof("example %d: %d residues, features %v", i, m.SeqLength(), keys)
	}

	if *plotOut != "" {
		if err := plotWeights(weights, *plotOut); err != nil {
			sugar.Fatalf("plot weights: %v", err)
		}
		sugar.Infof("wrote %s", *plotOut)
	}
}

// plotWeights renders a histogram of the chain sampling weights.
func plotWeights(weights []float64, out string) error {
	values := make(plotter.Values, len(weights))
	copy(values, weights)

	p := plot.New()
	p.Title.Text = "chain sampling weights"
	p.X.Label.Text = "weight"
	p.Y.Label.Text = "chains"

	h, err := plotter.NewHist(values, 32)
	if err != nil {
		return err
	}
	p.Add(h)
	return p.Save(6*vg.Inch, 4*vg.Inch, out)
}
