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

// Package kbucket implements the per-distance contact list with its
// least-recently-seen main list and replacement cache.
package kbucket

import (
	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
)

// DefaultSize is the default capacity k of both the main list and the
// replacement cache.
const DefaultSize = 20

// KBucket holds the contacts at one distance class. Main is ordered head
// (least-recently-seen) to tail (most-recently-seen); Cache holds
// replacement candidates in the same order. Both lists are capped at Size.
//
// KBucket is not safe for concurrent use; callers (RoutingTable) serialize
// access.
type KBucket struct {
	Size  int
	main  []contact.NodeId
	cache []contact.NodeId
}

// New returns an empty KBucket with the given main/cache capacity.
func New(size int) *KBucket {
	return &KBucket{Size: size}
}

// Contains reports whether n appears in either list.
func (b *KBucket) Contains(n contact.NodeId) bool {
	return indexOf(b.main, n.ID) >= 0 || indexOf(b.cache, n.ID) >= 0
}

// Len returns the number of entries in the main list.
func (b *KBucket) Len() int {
	return len(b.main)
}

// Observe is the central update rule described by the KBucket design: if n
// is already known it is moved to the tail of whichever list holds it;
// otherwise it is appended to main if main has room, or to cache
// (evicting the oldest replacement candidate if cache is full) otherwise.
func (b *KBucket) Observe(n contact.NodeId) {
	if i := indexOf(b.main, n.ID); i >= 0 {
		b.main = append(removeAt(b.main, i), n)
		return
	}
	if i := indexOf(b.cache, n.ID); i >= 0 {
		b.cache = append(removeAt(b.cache, i), n)
		return
	}
	if len(b.main) < b.Size {
		b.main = append(b.main, n)
		return
	}
	if len(b.cache) < b.Size {
		b.cache = append(b.cache, n)
		return
	}
	// cache is full: drop the oldest replacement candidate (the head) and
	// give the most recently seen candidate the tail slot.
	b.cache = append(b.cache[1:], n)
}

// Evict removes n from whichever list holds it. When n was removed from
// main and replace is true, the most recently seen cache entry is promoted
// to the tail of main.
func (b *KBucket) Evict(n contact.NodeId, replace bool) {
	if i := indexOf(b.main, n.ID); i >= 0 {
		b.main = removeAt(b.main, i)
		if replace && len(b.cache) > 0 {
			promoted := b.cache[len(b.cache)-1]
			b.cache = b.cache[:len(b.cache)-1]
			b.main = append(b.main, promoted)
		}
		return
	}
	if i := indexOf(b.cache, n.ID); i >= 0 {
		b.cache = removeAt(b.cache, i)
	}
}

// Ordered returns the main list from tail to head, i.e.
// most-recently-seen first.
func (b *KBucket) Ordered() []contact.NodeId {
	out := make([]contact.NodeId, len(b.main))
	for i := range b.main {
		out[i] = b.main[len(b.main)-1-i]
	}
	return out
}

func indexOf(list []contact.NodeId, target id.Id) int {
	for i, n := range list {
		if n.ID.Equal(target) {
			return i
		}
	}
	return -1
}

func removeAt(list []contact.NodeId, i int) []contact.NodeId {
	out := make([]contact.NodeId, 0, len(list)-1)
	out = append(out, list[:i]...)
	out = append(out, list[i+1:]...)
	return out
}
