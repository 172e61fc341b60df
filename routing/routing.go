// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package routing implements the fixed-size table of per-distance KBuckets
// and the zig-zag closest-node traversal used to answer find_node/
// find_value and to seed and feed iterative lookups.
package routing

import (
	"sync"

	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/kbucket"
)

// Table is a self_id and a fixed vector of id.Bits KBuckets indexed by
// distance bit. self_id never appears in any bucket.
type Table struct {
	mu      sync.Mutex
	self    id.Id
	buckets [id.Bits]*kbucket.KBucket
}

// New returns an empty Table for the given local identifier. bucketSize is
// the k used for every bucket (main and cache capacity alike).
func New(self id.Id, bucketSize int) *Table {
	t := &Table{self: self}
	for i := range t.buckets {
		t.buckets[i] = kbucket.New(bucketSize)
	}
	return t
}

// Self returns the local node identifier this table is rooted at.
func (t *Table) Self() id.Id {
	return t.self
}

// bucketIndex returns the bucket slot for n, or -1 if n is the local id.
func (t *Table) bucketIndex(nid id.Id) int {
	return id.BitIndex(t.self, nid)
}

// Update observes n in its bucket. A no-op when n.ID is the local id.
func (t *Table) Update(n contact.NodeId) {
	if n.ID.Equal(t.self) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.bucketIndex(n.ID)
	t.buckets[i].Observe(n)
}

// Remove evicts n from its bucket, promoting a cached replacement.
func (t *Table) Remove(n contact.NodeId) {
	if n.ID.Equal(t.self) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.bucketIndex(n.ID)
	t.buckets[i].Evict(n, true)
}

// Closest returns NodeIds approximately ordered by ascending distance from
// key, via the zig-zag bucket traversal: starting at bit_index(self, key),
// alternating +1/-1 offsets clamped to [0, Bits), yielding each visited
// bucket's Ordered() (most-recently-seen first) contents, skipping exclude.
// It never yields self.
func (t *Table) Closest(key id.Id, exclude *id.Id) []contact.NodeId {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := id.BitIndex(t.self, key)
	if start == id.Coincident {
		start = 0
	}

	var out []contact.NodeId
	visited := make(map[int]bool, id.Bits)
	for _, i := range zigzag(start, id.Bits) {
		if visited[i] {
			continue
		}
		visited[i] = true
		for _, n := range t.buckets[i].Ordered() {
			if exclude != nil && n.ID.Equal(*exclude) {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

// KClosest returns up to limit NodeIds from Closest.
func (t *Table) KClosest(key id.Id, exclude *id.Id, limit int) []contact.NodeId {
	all := t.Closest(key, exclude)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// BucketOccupancy returns the number of main-list entries in each bucket,
// indexed by distance bit -- a diagnostics helper with no role in routing
// itself.
func (t *Table) BucketOccupancy() [id.Bits]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [id.Bits]int
	for i, b := range t.buckets {
		out[i] = b.Len()
	}
	return out
}

// KClosestTriples is KClosest materialized as wire triples.
func (t *Table) KClosestTriples(key id.Id, exclude *id.Id, limit int) []contact.Triple {
	nodes := t.KClosest(key, exclude, limit)
	out := make([]contact.Triple, len(nodes))
	for i, n := range nodes {
		out[i] = contact.ToTriple(n)
	}
	return out
}

// RandomIdForBucket returns a random Id whose bit_index against self is
// exactly i, suitable as a lookup target for refreshing bucket i.
func RandomIdForBucket(self id.Id, i int) (id.Id, error) {
	rnd, err := id.Random()
	if err != nil {
		return id.Id{}, err
	}
	return fitDistance(self, rnd, i), nil
}

// fitDistance forces candidate's bit_index against self to equal i by
// overwriting its most significant differing bit and zeroing the bits
// above it, while leaving the lower-order bits random.
func fitDistance(self, candidate id.Id, i int) id.Id {
	out := candidate
	bitFromMSB := id.Bits - 1 - i
	byteIdx := bitFromMSB / 8
	bitInByte := 7 - (bitFromMSB % 8)
	selfBytes := self.Bytes()
	outBytes := out.Bytes()
	for j := 0; j < byteIdx; j++ {
		outBytes[j] = selfBytes[j]
	}
	mask := byte(1) << uint(bitInByte)
	flipped := selfBytes[byteIdx] ^ mask
	outBytes[byteIdx] = (flipped & ^byteMaskBelow(bitInByte)) | (outBytes[byteIdx] & byteMaskBelow(bitInByte))
	fixed, _ := id.FromBytes(outBytes)
	return fixed
}

// byteMaskBelow returns a mask selecting the bits strictly less
// significant than bitInByte within a byte.
func byteMaskBelow(bitInByte int) byte {
	return (1 << uint(bitInByte)) - 1
}

// zigzag returns the visiting order start, start+1, start-1, start+2,
// start-2, ... clamped to [0, n).
func zigzag(start, n int) []int {
	out := make([]int, 0, n)
	out = append(out, start)
	for off := 1; len(out) < n; off++ {
		if hi := start + off; hi < n {
			out = append(out, hi)
		}
		if lo := start - off; lo >= 0 {
			out = append(out, lo)
		}
		if start+off >= n && start-off < 0 {
			break
		}
	}
	return out
}
