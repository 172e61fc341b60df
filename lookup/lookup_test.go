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

package lookup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kademux/kadnode/codec"
	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/node"
	"github.com/kademux/kadnode/nodecache"
	"github.com/kademux/kadnode/protocol"
	"github.com/kademux/kadnode/routing"
	"github.com/kademux/kadnode/transport"
)

// meshTransport delivers every Send synchronously through a shared
// registry keyed by address, simulating a ring of UDP peers without any
// real sockets.
type meshTransport struct {
	addr     contact.Addr
	registry *meshRegistry
	handle   transport.Handler
}

type meshRegistry struct {
	mu    sync.Mutex
	peers map[contact.Addr]*meshTransport
}

func newMeshRegistry() *meshRegistry {
	return &meshRegistry{peers: make(map[contact.Addr]*meshTransport)}
}

func (r *meshRegistry) transportFor(addr contact.Addr) *meshTransport {
	t := &meshTransport{addr: addr, registry: r}
	r.mu.Lock()
	r.peers[addr] = t
	r.mu.Unlock()
	return t
}

func (t *meshTransport) OnDatagram(h transport.Handler) { t.handle = h }

func (t *meshTransport) Send(b []byte, address contact.Addr) error {
	t.registry.mu.Lock()
	dst, ok := t.registry.peers[address]
	t.registry.mu.Unlock()
	if !ok {
		return nil // unreachable address: datagram silently lost, like UDP to nowhere
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	go dst.handle(cp, t.addr)
	return nil
}

func (t *meshTransport) Close() error { return nil }

type meshNode struct {
	self  contact.NodeId
	table *routing.Table
	proto *protocol.Protocol
	node  *node.Node
}

func buildMesh(t *testing.T, n int) []*meshNode {
	t.Helper()
	reg := newMeshRegistry()
	nodes := make([]*meshNode, n)
	for i := 0; i < n; i++ {
		selfID := id.MustRandom()
		addr := contact.Addr{Host: "mesh", Port: i}
		self := contact.NodeId{ID: selfID, Address: addr}
		table := routing.New(selfID, 20)
		trans := reg.transportFor(addr)
		proto := protocol.New(self, codec.NewJSON(), trans, table, logger.Nop{}, 300*time.Millisecond)
		nd := node.New(self, table, proto, 20, logger.Nop{}, nil)
		nodes[i] = &meshNode{self: self, table: table, proto: proto, node: nd}
	}
	// Fully connect every node's routing table to every other, as a
	// stand-in for a prior bootstrap phase.
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b {
				a.table.Update(b.self)
			}
		}
	}
	return nodes
}

// S6 -- lookup convergence. A ring of nodes fully bootstrapped into each
// other's tables; a find_node lookup must return k distinct NodeIds, all
// genuinely among the closest in the network, with no duplicates.
func TestLookupConvergenceOverMesh(t *testing.T) {
	const size = 30
	const k = 20
	const alpha = 3
	nodes := buildMesh(t, size)

	seeker := nodes[0]
	target := id.MustRandom()

	l := New(seeker.self.ID, target, target.String(), FindNode, alpha, k, seeker.table, seeker.proto, logger.Nop{}, nil)
	res, err := l.Run()
	require.NoError(t, err)

	assert.Len(t, res.Closest, k)

	seen := map[id.Id]bool{}
	for _, n := range res.Closest {
		assert.False(t, seen[n.ID], "duplicate NodeId in lookup result")
		seen[n.ID] = true
		assert.False(t, n.ID.Equal(seeker.self.ID))
	}

	// Every id actually in the network, ranked by true distance to the
	// target; the lookup result must be a subset of the true k closest.
	type distAndID struct {
		id   id.Id
		dist id.Id
	}
	var all []distAndID
	for _, n := range nodes {
		if n == seeker {
			continue
		}
		all = append(all, distAndID{id: n.self.ID, dist: target.Xor(n.self.ID)})
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].dist.Less(all[i].dist) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	trueClosest := map[id.Id]bool{}
	limit := k
	if limit > len(all) {
		limit = len(all)
	}
	for i := 0; i < limit; i++ {
		trueClosest[all[i].id] = true
	}
	for _, n := range res.Closest {
		assert.True(t, trueClosest[n.ID], "result %s not among the true %d closest", n.ID, k)
	}
}

func TestLookupEmptyShortlistFails(t *testing.T) {
	selfID := id.MustRandom()
	table := routing.New(selfID, 20)
	self := contact.NodeId{ID: selfID}
	proto := protocol.New(self, codec.NewJSON(), &deadTransport{}, table, logger.Nop{}, time.Second)
	l := New(selfID, id.MustRandom(), "x", FindNode, 3, 20, table, proto, logger.Nop{}, nil)
	_, err := l.Run()
	assert.Equal(t, ErrEmpty, err)
}

type deadTransport struct{}

func (deadTransport) OnDatagram(transport.Handler)   {}
func (deadTransport) Send([]byte, contact.Addr) error { return nil }
func (deadTransport) Close() error                   { return nil }

func TestLookupFindValueHit(t *testing.T) {
	nodes := buildMesh(t, 10)
	key := id.MustRandom()
	holder := nodes[5]
	holder.node.Put(key.String(), "the-value")

	seeker := nodes[0]
	l := New(seeker.self.ID, key, key.String(), FindValue, 3, 20, seeker.table, seeker.proto, logger.Nop{}, nil)
	res, err := l.Run()
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "the-value", res.Value)
}

func TestLookupFindValueMiss(t *testing.T) {
	nodes := buildMesh(t, 10)
	key := id.MustRandom()
	seeker := nodes[0]
	l := New(seeker.self.ID, key, key.String(), FindValue, 3, 20, seeker.table, seeker.proto, logger.Nop{}, nil)
	_, err := l.Run()
	assert.Equal(t, ErrNotFound, err)
}

// A successful lookup over the mesh records liveness history for every
// peer it actually talked to.
func TestLookupRecordsSuccessInCache(t *testing.T) {
	nodes := buildMesh(t, 10)
	cache, err := nodecache.New(32)
	require.NoError(t, err)

	seeker := nodes[0]
	target := id.MustRandom()
	l := New(seeker.self.ID, target, target.String(), FindNode, 3, 20, seeker.table, seeker.proto, logger.Nop{}, cache)
	_, err = l.Run()
	require.NoError(t, err)

	assert.Greater(t, cache.Len(), 0)
	for queried := range l.queried {
		h, ok := cache.Get(queried)
		require.True(t, ok, "expected history for queried peer %s", queried)
		assert.Equal(t, 0, h.FailStreak)
	}
}

// A lookup that times out against an unreachable peer records a failure,
// not a success.
func TestLookupRecordsFailureInCache(t *testing.T) {
	selfID := id.MustRandom()
	table := routing.New(selfID, 20)
	self := contact.NodeId{ID: selfID}
	proto := protocol.New(self, codec.NewJSON(), &deadTransport{}, table, logger.Nop{}, 10*time.Millisecond)

	unreachable := id.MustRandom()
	table.Update(contact.NodeId{ID: unreachable, Address: contact.Addr{Host: "nowhere", Port: 1}})

	cache, err := nodecache.New(32)
	require.NoError(t, err)
	l := New(selfID, id.MustRandom(), "x", FindNode, 3, 20, table, proto, logger.Nop{}, cache)
	_, _ = l.Run()

	h, ok := cache.Get(unreachable)
	require.True(t, ok)
	assert.Equal(t, 1, h.FailStreak)
}

// Among exactly-equidistant candidates, the shortlist prefers the one with
// the shorter recorded failure streak over falling back to id byte order.
func TestShortlistBreaksDistanceTiesByFailStreak(t *testing.T) {
	key := id.MustRandom()
	cache, err := nodecache.New(8)
	require.NoError(t, err)

	// Construct two ids equidistant from key by flipping the same single
	// bit from each end of key's own bytes.
	a := key
	a[0] ^= 0x01
	b := key
	b[id.Len-1] ^= 0x01
	require.Equal(t, key.Xor(a), key.Xor(b))

	na := contact.NodeId{ID: a, Address: contact.Addr{Host: "a", Port: 1}}
	nb := contact.NodeId{ID: b, Address: contact.Addr{Host: "b", Port: 2}}
	cache.RecordFailure(na.ID)
	cache.RecordFailure(na.ID)
	cache.RecordSuccess(nb.ID, time.Millisecond)

	s := newShortlist(key, 20, cache)
	s.merge([]contact.NodeId{na, nb})

	got := s.sorted()
	require.Len(t, got, 2)
	assert.True(t, got[0].ID.Equal(nb.ID), "expected the clean-history peer first")
}
