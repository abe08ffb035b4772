package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"foldset/feat"
)

// Yield returns the next batch as gomlx tensors, implementing the
// train.Dataset contract. The spec value is the sorted list of feature names;
// inputs holds one tensor per name in that order. Labels are folded into the
// features by the pipeline, so the label slice is empty.
//
// Exhausting the dataset returns io.EOF; Restart begins a new epoch.
func (d *ChainDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.dataLen {
		return nil, nil, nil, io.EOF
	}
	n := d.opts.BatchSize
	if d.cursor+n > d.dataLen {
		n = d.dataLen - d.cursor
	}
	samples := make([]feat.Map, 0, n)
	for i := 0; i < n; i++ {
		m, err := d.Get(d.cursor + i)
		if err != nil {
			return nil, nil, nil, err
		}
		samples = append(samples, m)
	}
	d.cursor += n

	batch, err := Collate(samples)
	if err != nil {
		return nil, nil, nil, err
	}
	keys := batch.TensorKeys()
	inputs, err = batch.Tensors(keys)
	if err != nil {
		return nil, nil, nil, err
	}
	return keys, inputs, nil, nil
}

// Restart resets the epoch cursor used by Yield.
func (d *ChainDataset) Restart() error {
	d.cursor = 0
	return nil
}

// Name identifies the dataset in training logs.
func (d *ChainDataset) Name() string {
	return "ChainDataset(" + d.opts.Mode + ")"
}
