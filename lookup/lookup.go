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

// Package lookup implements the iterative, alpha-parallel convergent
// search that both find_node and find_value lookups are built from.
package lookup

import (
	"fmt"
	"sort"
	"time"

	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/metrics"
	"github.com/kademux/kadnode/nodecache"
	"github.com/kademux/kadnode/protocol"
	"github.com/kademux/kadnode/routing"
)

// Mode selects whether a Lookup hunts for the closest nodes or for a
// stored value.
type Mode int

const (
	// FindNode seeds and drives a pure find_node search.
	FindNode Mode = iota
	// FindValue additionally accepts early termination on a value hit.
	FindValue
)

// Error reports why a Lookup failed to produce a result.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lookup: %s", e.Reason)
}

// ErrEmpty is returned when the seed shortlist (RoutingTable.KClosest) is
// empty.
var ErrEmpty = &Error{Reason: "empty shortlist"}

// ErrNotFound is returned by a FindValue lookup that exhausted or
// converged without a hit.
var ErrNotFound = &Error{Reason: "not found"}

// Result is what a Lookup produces: either the k closest NodeIds found
// (find_node, or a find_value miss), or a value (find_value hit).
type Result struct {
	Closest []contact.NodeId
	Value   string
	Found   bool
}

// reply is one completed (or failed) per-peer RPC outcome gathered during
// a round.
type reply struct {
	peer    contact.NodeId
	found   bool
	value   string
	triples []contact.Triple
	err     error
}

// Lookup drives one iterative search to completion.
type Lookup struct {
	self  id.Id
	key   id.Id
	mode  Mode
	alpha int
	k     int
	table *routing.Table
	proto *protocol.Protocol
	log   logger.Logger
	// rpcKey is the literal string sent as the find_node/find_value RPC
	// argument, normally key.String(). The remote handlers parse it as a
	// hex id (find_value first tries it as a store key), so a string that
	// is not a hex id only succeeds on a find_value hit.
	rpcKey string

	// cache records per-peer liveness history and breaks shortlist ties
	// among otherwise-equidistant candidates. May be nil, in which case
	// ties fall back to comparing NodeId bytes.
	cache *nodecache.Cache

	shortlist *shortlist
	queried   map[id.Id]bool
}

// New prepares a Lookup for key. cache may be nil.
func New(self id.Id, key id.Id, rpcKey string, mode Mode, alpha, k int, table *routing.Table, proto *protocol.Protocol, log logger.Logger, cache *nodecache.Cache) *Lookup {
	return &Lookup{
		self: self, key: key, mode: mode, alpha: alpha, k: k,
		table: table, proto: proto, log: log, rpcKey: rpcKey,
		cache:   cache,
		queried: make(map[id.Id]bool),
	}
}

// Run executes the lookup to completion and returns its Result.
func (l *Lookup) Run() (Result, error) {
	start := time.Now()
	res, err := l.run()
	metrics.LookupTimer.UpdateSince(start)
	switch {
	case err == nil && l.mode == FindValue:
		metrics.LookupValueFound.Mark(1)
	case err == nil || err == ErrNotFound:
		metrics.LookupConverged.Mark(1)
	}
	return res, err
}

func (l *Lookup) run() (Result, error) {
	seed := l.table.KClosest(l.key, &l.self, l.alpha)
	if len(seed) == 0 {
		return Result{}, ErrEmpty
	}

	l.shortlist = newShortlist(l.key, l.k, l.cache)
	l.shortlist.merge(seed)

	for {
		round := l.selectUnqueried(l.alpha)
		if len(round) == 0 {
			// Exhaustion: nothing left to probe at all.
			break
		}

		improved, found, err := l.issueRound(round)
		if found != nil {
			return Result{Value: found.value, Found: true}, nil
		}
		if err != nil {
			return Result{}, err
		}

		if !improved {
			if found := l.finalFanout(); found != nil {
				return Result{Value: found.value, Found: true}, nil
			}
			break
		}
	}

	closest := l.shortlist.closest(l.k)
	if l.mode == FindValue {
		return Result{Closest: closest}, ErrNotFound
	}
	return Result{Closest: closest}, nil
}

// selectUnqueried returns up to limit shortlist members not yet queried,
// preferring smallest distance (the shortlist is already distance-sorted).
func (l *Lookup) selectUnqueried(limit int) []contact.NodeId {
	var out []contact.NodeId
	for _, n := range l.shortlist.sorted() {
		if len(out) >= limit {
			break
		}
		if l.queried[n.ID] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// issueRound fires one find_node/find_value RPC per peer concurrently and
// waits for every reply in the round, merging results into the shortlist
// as they arrive. It reports whether any reply improved the shortlist's
// closest distance, and returns early with a non-nil *reply if a
// find_value hit is observed.
func (l *Lookup) issueRound(peers []contact.NodeId) (improved bool, found *reply, err error) {
	before := l.shortlist.closestDistance()
	replies := make(chan reply, len(peers))

	rpc := "find_node"
	if l.mode == FindValue {
		rpc = "find_value"
	}
	for _, p := range peers {
		l.queried[p.ID] = true
		go l.issueOne(p, rpc, replies)
	}

	for i := 0; i < len(peers); i++ {
		r := <-replies
		if r.err != nil {
			l.table.Remove(r.peer)
			continue
		}
		if r.found {
			rr := r
			return false, &rr, nil
		}
		nodes, convErr := contact.NodeIdsFromTriples(r.triples)
		if convErr != nil {
			l.log.Warn(fmt.Sprintf("lookup: %v", convErr))
			continue
		}
		fresh := nodes[:0]
		for _, n := range nodes {
			if n.ID.Equal(l.self) {
				continue
			}
			l.table.Update(n)
			fresh = append(fresh, n)
		}
		l.shortlist.merge(fresh)
	}

	after := l.shortlist.closestDistance()
	return after.Less(before), nil, nil
}

// finalFanout issues one last alpha-bounded pass over any still-unqueried
// members of the k closest, per the convergence termination rule, and
// folds their replies in without affecting the convergence decision. It
// stops at, and returns, the first find_value hit it observes; otherwise it
// returns nil.
func (l *Lookup) finalFanout() *reply {
	for {
		round := l.selectUnqueried(l.alpha)
		if len(round) == 0 {
			return nil
		}
		if _, found, _ := l.issueRound(round); found != nil {
			return found
		}
	}
}

func (l *Lookup) issueOne(peer contact.NodeId, rpc string, out chan<- reply) {
	start := time.Now()
	fut := l.proto.SendRequest(rpc, []interface{}{l.rpcKey}, peer)
	msg, err := fut.Wait()
	if err != nil {
		if l.cache != nil {
			l.cache.RecordFailure(peer.ID)
		}
		out <- reply{peer: peer, err: err}
		return
	}
	if l.cache != nil {
		l.cache.RecordSuccess(peer.ID, time.Since(start))
	}
	if l.mode == FindValue && len(msg.Payload) == 2 {
		if hit, ok := msg.Payload[0].(bool); ok && hit {
			value, _ := msg.Payload[1].(string)
			out <- reply{peer: peer, found: true, value: value}
			return
		}
		triples, err := contact.TriplesFromPayload(msg.Payload[1])
		if err != nil {
			out <- reply{peer: peer, err: err}
			return
		}
		out <- reply{peer: peer, triples: triples}
		return
	}
	if len(msg.Payload) != 1 {
		out <- reply{peer: peer, err: fmt.Errorf("lookup: unexpected payload shape for %s", rpc)}
		return
	}
	triples, err := contact.TriplesFromPayload(msg.Payload[0])
	if err != nil {
		out <- reply{peer: peer, err: err}
		return
	}
	out <- reply{peer: peer, triples: triples}
}

// candidate is a shortlist entry paired with its distance from key, to
// avoid recomputing XOR distance on every comparison.
type candidate struct {
	node contact.NodeId
	dist id.Id
}

// shortlist keeps candidates sorted by ascending distance from key,
// truncated to its k closest. The comparator breaks distance ties through
// cache (shorter failure streak first, then more recently seen) and then
// by id. Distinct ids always lie at distinct XOR distances from key and
// merge drops repeated ids, so those tie-break branches are not reached
// from merge and the order is by distance alone.
type shortlist struct {
	key   id.Id
	k     int
	cache *nodecache.Cache
	items []candidate
}

func newShortlist(key id.Id, k int, cache *nodecache.Cache) *shortlist {
	return &shortlist{key: key, k: k, cache: cache}
}

func (s *shortlist) merge(nodes []contact.NodeId) {
	seen := make(map[id.Id]bool, len(s.items))
	for _, c := range s.items {
		seen[c.node.ID] = true
	}
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.items = append(s.items, candidate{node: n, dist: s.key.Xor(n.ID)})
	}
	sort.Slice(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]
		if a.dist != b.dist {
			return a.dist.Less(b.dist)
		}
		if s.cache != nil {
			if preferred, ok := s.preferByHistory(a.node.ID, b.node.ID); ok {
				return preferred
			}
		}
		return a.node.ID.Less(b.node.ID)
	})
	if len(s.items) > s.k {
		s.items = s.items[:s.k]
	}
}

// preferByHistory reports whether a should sort before b based on recorded
// liveness history, and whether cache had an opinion at all.
func (s *shortlist) preferByHistory(a, b id.Id) (aFirst, decided bool) {
	ha, haveA := s.cache.Get(a)
	hb, haveB := s.cache.Get(b)
	if !haveA && !haveB {
		return false, false
	}
	if ha.FailStreak != hb.FailStreak {
		return ha.FailStreak < hb.FailStreak, true
	}
	if !ha.LastSeen.Equal(hb.LastSeen) {
		return ha.LastSeen.After(hb.LastSeen), true
	}
	return false, false
}

func (s *shortlist) sorted() []contact.NodeId {
	out := make([]contact.NodeId, len(s.items))
	for i, c := range s.items {
		out[i] = c.node
	}
	return out
}

func (s *shortlist) closest(limit int) []contact.NodeId {
	out := s.sorted()
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// closestDistance returns the distance of the shortlist's nearest entry,
// or the maximal possible distance when the shortlist is empty.
func (s *shortlist) closestDistance() id.Id {
	if len(s.items) == 0 {
		var max id.Id
		for i := range max {
			max[i] = 0xff
		}
		return max
	}
	return s.items[0].dist
}
