// Package locking provides a striped mutex keyed by string, used to
// serialize read-modify-write cycles on a single aggregate (one product's
// stock counters, one order's state) while letting unrelated keys proceed
// in parallel.
package locking

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 64

// Keyed is a fixed set of mutex shards addressed by key hash. Two distinct
// keys may share a shard; that costs parallelism, never correctness.
type Keyed struct {
	shards []sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{shards: make([]sync.Mutex, defaultShards)}
}

func (k *Keyed) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &k.shards[h.Sum32()%uint32(len(k.shards))]
}

// Lock acquires the shard for key and returns the unlock function.
func (k *Keyed) Lock(key string) func() {
	m := k.shard(key)
	m.Lock()
	return m.Unlock
}
