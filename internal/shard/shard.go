// Package shard assigns row keys to a fixed number of write workers.
package shard

import (
	"hash/fnv"
	"sort"
)

// Index returns the shard of key among n shards.
// With n<=1 every key goes to shard 0.
func Index(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(n))
}

// Partition splits keys into at most n groups by Index. Empty groups are
// dropped and each group is sorted, so the result depends only on the set of
// keys and n.
func Partition(keys []string, n int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	groups := make([][]string, n)
	for _, k := range keys {
		i := Index([]byte(k), n)
		groups[i] = append(groups[i], k)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		sort.Strings(g)
		out = append(out, g)
	}
	return out
}
