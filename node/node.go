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

// Package node implements the four RPC handlers (ping, store, find_node,
// find_value) and the in-memory local key/value store they operate on. It
// owns a RoutingTable and a Protocol exclusively. The RoutingTable holds no
// reference back to Node; the Protocol reaches Node only through the
// handlers registered on it.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/lookup"
	"github.com/kademux/kadnode/nodecache"
	"github.com/kademux/kadnode/protocol"
	"github.com/kademux/kadnode/routing"
)

// Node wires the RPC surface to a RoutingTable, a Protocol, and an
// unbounded in-memory store.
type Node struct {
	Self       contact.NodeId
	Table      *routing.Table
	Proto      *protocol.Protocol
	BucketSize int

	log   logger.Logger
	cache *nodecache.Cache

	mu    sync.RWMutex
	store map[string]string
}

// New constructs a Node and registers its four RPC handlers on proto.
// cache may be nil, in which case liveness history is not recorded.
func New(self contact.NodeId, table *routing.Table, proto *protocol.Protocol, bucketSize int, log logger.Logger, cache *nodecache.Cache) *Node {
	n := &Node{
		Self:       self,
		Table:      table,
		Proto:      proto,
		BucketSize: bucketSize,
		log:        log,
		cache:      cache,
		store:      make(map[string]string),
	}
	proto.RegisterHandler("ping", n.handlePing)
	proto.RegisterHandler("store", n.handleStore)
	proto.RegisterHandler("find_node", n.handleFindNode)
	proto.RegisterHandler("find_value", n.handleFindValue)
	return n
}

// Put inserts a key/value pair into the local store directly, bypassing
// the wire RPC -- the "local administrative insert" path the data model
// describes alongside the STORE RPC.
func (n *Node) Put(key, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store[key] = value
}

// Get reads a key from the local store.
func (n *Node) Get(key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.store[key]
	return v, ok
}

// Stats is a point-in-time diagnostics snapshot: per-bucket occupancy, the
// size of the local store, and the current cached-liveness count. It adds
// no new wire behavior.
type Stats struct {
	BucketOccupancy [id.Bits]int
	StoreSize       int
	CachedContacts  int
}

// Stats gathers a diagnostics snapshot of this node.
func (n *Node) Stats() Stats {
	n.mu.RLock()
	storeSize := len(n.store)
	n.mu.RUnlock()

	cached := 0
	if n.cache != nil {
		cached = n.cache.Len()
	}

	return Stats{
		BucketOccupancy: n.Table.BucketOccupancy(),
		StoreSize:       storeSize,
		CachedContacts:  cached,
	}
}

// Refresh repopulates the routing table: it runs a self-lookup, then one
// find_node lookup targeted at a random id per empty bucket, so that
// buckets nothing has recently touched still get a chance to fill. It
// stops early if ctx is cancelled between bucket refreshes.
func (n *Node) Refresh(ctx context.Context, alpha int) error {
	self := n.Self.ID
	selfLookup := lookup.New(self, self, self.String(), lookup.FindNode, alpha, n.BucketSize, n.Table, n.Proto, n.log, n.cache)
	if _, err := selfLookup.Run(); err != nil && err != lookup.ErrEmpty {
		return err
	}

	for i, count := range n.Table.BucketOccupancy() {
		if count > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		target, err := routing.RandomIdForBucket(self, i)
		if err != nil {
			return err
		}
		bucketLookup := lookup.New(self, target, target.String(), lookup.FindNode, alpha, n.BucketSize, n.Table, n.Proto, n.log, n.cache)
		if _, err := bucketLookup.Run(); err != nil && err != lookup.ErrEmpty {
			n.log.Warn(fmt.Sprintf("refresh: bucket %d: %v", i, err))
		}
	}
	return nil
}

func (n *Node) handlePing(caller contact.NodeId, args []interface{}) ([]interface{}, error) {
	return []interface{}{n.Self.ID.String()}, nil
}

func (n *Node) handleStore(caller contact.NodeId, args []interface{}) ([]interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("store: want 2 args, got %d", len(args))
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("store: key must be a string")
	}
	value, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("store: value must be a string")
	}
	n.Put(key, value)
	return []interface{}{true}, nil
}

func (n *Node) handleFindNode(caller contact.NodeId, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("find_node: want 1 arg, got %d", len(args))
	}
	keyStr, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("find_node: key must be a string")
	}
	key, err := id.FromHex(keyStr)
	if err != nil {
		return nil, fmt.Errorf("find_node: %w", err)
	}
	excl := caller.ID
	triples := n.Table.KClosestTriples(key, &excl, n.BucketSize)
	return []interface{}{triples}, nil
}

func (n *Node) handleFindValue(caller contact.NodeId, args []interface{}) ([]interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("find_value: want 1 arg, got %d", len(args))
	}
	keyStr, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("find_value: key must be a string")
	}
	if value, ok := n.Get(keyStr); ok {
		return []interface{}{true, value}, nil
	}
	key, err := id.FromHex(keyStr)
	if err != nil {
		return nil, fmt.Errorf("find_value: %w", err)
	}
	excl := caller.ID
	triples := n.Table.KClosestTriples(key, &excl, n.BucketSize)
	return []interface{}{false, triples}, nil
}
