package datasets

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"foldset/feat"
)

// Prefetcher loads examples through a fixed pool of workers. Each worker owns
// its own dataset instance, so the per-instance feature caches and sampling
// state never cross goroutines; every example's draws are scoped to its index,
// making the result independent of which worker serves it.
type Prefetcher struct {
	workers []*ChainDataset
}

// NewPrefetcher builds one dataset per worker through factory. workers <= 0
// means one per CPU.
func NewPrefetcher(factory func() (*ChainDataset, error), workers int) (*Prefetcher, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Prefetcher{workers: make([]*ChainDataset, workers)}
	for i := range p.workers {
		d, err := factory()
		if err != nil {
			return nil, errors.Wrapf(err, "datasets: prefetch worker %d", i)
		}
		p.workers[i] = d
	}
	return p, nil
}

// Len returns the effective dataset length.
func (p *Prefetcher) Len() int { return p.workers[0].Len() }

// Fetch loads the given example indices concurrently, returning the records
// in input order. The first load error aborts the remaining work.
func (p *Prefetcher) Fetch(indices []int) ([]feat.Map, error) {
	out := make([]feat.Map, len(indices))

	workerCount := len(p.workers)
	if workerCount > len(indices) {
		workerCount = len(indices)
	}
	jobs := make(chan int, len(indices))
	var wg sync.WaitGroup
	wg.Add(workerCount)

	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workerCount; w++ {
		go func(d *ChainDataset) {
			defer wg.Done()
			for pos := range jobs {
				mu.Lock()
				stop := firstErr != nil
				mu.Unlock()
				if stop {
					continue
				}
				m, err := d.Get(indices[pos])
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				out[pos] = m
			}
		}(p.workers[w])
	}
	for pos := range indices {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// FetchBatch loads one collated batch covering indices [start, start+size).
func (p *Prefetcher) FetchBatch(start, size int) (feat.Map, error) {
	if start+size > p.Len() {
		size = p.Len() - start
	}
	if size <= 0 {
		return nil, errors.New("datasets: empty prefetch batch")
	}
	indices := make([]int, size)
	for i := range indices {
		indices[i] = start + i
	}
	samples, err := p.Fetch(indices)
	if err != nil {
		return nil, err
	}
	return Collate(samples)
}
