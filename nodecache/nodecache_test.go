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

package nodecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kademux/kadnode/id"
)

func TestRecordSuccessThenGet(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	nid := id.MustRandom()
	c.RecordSuccess(nid, 5*time.Millisecond)

	h, ok := c.Get(nid)
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, h.LastRTT)
	assert.Zero(t, h.FailStreak)
}

func TestRecordFailureIncrementsStreakAndPreservesLastRTT(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	nid := id.MustRandom()
	c.RecordSuccess(nid, 10*time.Millisecond)
	c.RecordFailure(nid)
	c.RecordFailure(nid)

	h, ok := c.Get(nid)
	require.True(t, ok)
	assert.Equal(t, 2, h.FailStreak)
	assert.Equal(t, 10*time.Millisecond, h.LastRTT)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)
	_, ok := c.Get(id.MustRandom())
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsedBeyondSize(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	a, b, d := id.MustRandom(), id.MustRandom(), id.MustRandom()
	c.RecordSuccess(a, time.Millisecond)
	c.RecordSuccess(b, time.Millisecond)
	c.RecordSuccess(d, time.Millisecond)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(a)
	assert.False(t, ok, "oldest entry should have been evicted")
}
