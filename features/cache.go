package features

import lru "github.com/hashicorp/golang-lru"

// cacheCapacity bounds the per-worker feature cache. Eight entries cover the
// chains of one assembly being revisited across consecutive examples without
// holding a meaningful share of worker memory.
const cacheCapacity = 8

// cacheKey identifies one loaded feature record. Two loads agree only when
// every part of the tuple matches, including the monomer flag, since the
// alignment merge changes the record contents.
type cacheKey struct {
	seqID        string
	featureDir   string
	alignmentDir string
	monomer      bool
}

// featureCache is a fixed-capacity LRU cache with copy-on-read semantics:
// every hit returns an independent deep copy, so callers may mutate results
// freely without poisoning later reads. Instances are per-worker and not
// safe for concurrent use, matching the single-threaded fetch model.
type featureCache struct {
	entries *lru.Cache
}

func newFeatureCache() *featureCache {
	c, err := lru.New(cacheCapacity)
	if err != nil {
		// lru.New only fails on non-positive capacity.
		panic(err)
	}
	return &featureCache{entries: c}
}

func (c *featureCache) get(k cacheKey) (record, bool) {
	v, ok := c.entries.Get(k)
	if !ok {
		return nil, false
	}
	return v.(record).Clone(), true
}

// add stores the record and returns an independent copy for the caller, so
// the cached original is never aliased.
func (c *featureCache) add(k cacheKey, m record) record {
	c.entries.Add(k, m)
	return m.Clone()
}

func (c *featureCache) len() int { return c.entries.Len() }
