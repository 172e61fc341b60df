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

package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kademux/kadnode/codec"
	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/nodecache"
	"github.com/kademux/kadnode/protocol"
	"github.com/kademux/kadnode/routing"
	"github.com/kademux/kadnode/transport"
)

// loopbackTransport hands every Send straight to its own handler, enough
// to exercise a Node's RPC handlers via a real *protocol.Protocol without
// a second peer.
type loopbackTransport struct {
	handle transport.Handler
}

func (l *loopbackTransport) OnDatagram(h transport.Handler) { l.handle = h }
func (l *loopbackTransport) Send(b []byte, address contact.Addr) error {
	if l.handle != nil {
		l.handle(b, contact.Addr{})
	}
	return nil
}
func (l *loopbackTransport) Close() error { return nil }

func newTestNode(t *testing.T) (*Node, contact.NodeId) {
	t.Helper()
	selfID := id.MustRandom()
	self := contact.NodeId{ID: selfID, Address: contact.Addr{Host: "self", Port: 1}}
	table := routing.New(selfID, 20)
	proto := protocol.New(self, codec.NewJSON(), &loopbackTransport{}, table, logger.Nop{}, 0)
	cache, err := nodecache.New(16)
	require.NoError(t, err)
	return New(self, table, proto, 20, logger.Nop{}, cache), self
}

func TestHandlePingReturnsSelfId(t *testing.T) {
	n, self := newTestNode(t)
	caller := contact.NodeId{ID: id.MustRandom()}
	out, err := n.handlePing(caller, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{self.ID.String()}, out)
}

func TestHandleStoreThenFindValueHit(t *testing.T) {
	n, _ := newTestNode(t)
	caller := contact.NodeId{ID: id.MustRandom()}

	_, err := n.handleStore(caller, []interface{}{"hello", "world"})
	require.NoError(t, err)

	out, err := n.handleFindValue(caller, []interface{}{"hello"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, true, out[0])
	assert.Equal(t, "world", out[1])
}

func TestHandleFindValueMissFallsBackToFindNode(t *testing.T) {
	n, _ := newTestNode(t)
	key := id.MustRandom()
	caller := contact.NodeId{ID: id.MustRandom()}
	other := contact.NodeId{ID: id.MustRandom(), Address: contact.Addr{Host: "x", Port: 2}}
	n.Table.Update(other)

	out, err := n.handleFindValue(caller, []interface{}{key.String()})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, false, out[0])
	triples, ok := out[1].([]contact.Triple)
	require.True(t, ok)
	assert.NotEmpty(t, triples)
}

func TestHandleFindNodeExcludesCaller(t *testing.T) {
	n, _ := newTestNode(t)
	caller := contact.NodeId{ID: id.MustRandom(), Address: contact.Addr{Host: "c", Port: 3}}
	n.Table.Update(caller)

	out, err := n.handleFindNode(caller, []interface{}{caller.ID.String()})
	require.NoError(t, err)
	triples := out[0].([]contact.Triple)
	for _, tr := range triples {
		assert.NotEqual(t, caller.ID.String(), tr.ID)
	}
}

func TestStatsReflectsStoreAndBucketOccupancy(t *testing.T) {
	n, _ := newTestNode(t)
	caller := contact.NodeId{ID: id.MustRandom()}
	_, err := n.handleStore(caller, []interface{}{"k", "v"})
	require.NoError(t, err)
	other := contact.NodeId{ID: id.MustRandom(), Address: contact.Addr{Host: "x", Port: 9}}
	n.Table.Update(other)

	stats := n.Stats()
	assert.Equal(t, 1, stats.StoreSize)
	total := 0
	for _, occ := range stats.BucketOccupancy {
		total += occ
	}
	assert.Equal(t, 1, total)
}

func TestRefreshToleratesEmptyTable(t *testing.T) {
	n, _ := newTestNode(t)
	err := n.Refresh(context.Background(), 3)
	assert.NoError(t, err)
}

func TestRefreshRespectsCancelledContext(t *testing.T) {
	n, _ := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Refresh(ctx, 3)
	assert.Equal(t, context.Canceled, err)
}

func TestHandleStoreOverwrites(t *testing.T) {
	n, _ := newTestNode(t)
	caller := contact.NodeId{ID: id.MustRandom()}
	_, err := n.handleStore(caller, []interface{}{"k", "v1"})
	require.NoError(t, err)
	_, err = n.handleStore(caller, []interface{}{"k", "v2"})
	require.NoError(t, err)
	v, ok := n.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}
