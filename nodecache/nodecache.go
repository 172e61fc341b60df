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

// Package nodecache keeps a bounded, recent history of contact liveness
// independent of the RoutingTable's own main/cache bucket lists. It exists
// purely for diagnostics and candidate preference during a lookup; losing
// an entry never affects routing-table correctness.
package nodecache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kademux/kadnode/id"
)

// History is the recent liveness record for one contact.
type History struct {
	LastSeen    time.Time
	LastRTT     time.Duration
	FailStreak  int
}

// Cache is a bounded id.Id -> History map backed by an LRU of recently
// touched contacts.
type Cache struct {
	lru *lru.Cache
}

// New returns a Cache holding at most size entries.
func New(size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// RecordSuccess marks nid as having responded within rtt, resetting its
// failure streak.
func (c *Cache) RecordSuccess(nid id.Id, rtt time.Duration) {
	c.lru.Add(nid, History{LastSeen: rttNow(), LastRTT: rtt})
}

// RecordFailure increments nid's failure streak, preserving its last
// successful contact history.
func (c *Cache) RecordFailure(nid id.Id) {
	h := History{}
	if prev, ok := c.lru.Get(nid); ok {
		h = prev.(History)
	}
	h.FailStreak++
	c.lru.Add(nid, h)
}

// Get returns the recorded history for nid, if any.
func (c *Cache) Get(nid id.Id) (History, bool) {
	v, ok := c.lru.Get(nid)
	if !ok {
		return History{}, false
	}
	return v.(History), true
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// rttNow returns the current wall-clock time, recorded as LastSeen.
func rttNow() time.Time {
	return time.Now()
}
