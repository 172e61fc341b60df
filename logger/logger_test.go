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

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlogImplementsLogger(t *testing.T) {
	var _ Logger = NewGlog("test")
}

func TestNopImplementsLogger(t *testing.T) {
	var _ Logger = Nop{}
	var l Logger = Nop{}
	l.Info("should not panic")
	l.Warn("should not panic")
	l.Debug("should not panic")
}

func TestRecordingCapturesEachLevel(t *testing.T) {
	r := &Recording{}
	var l Logger = r
	l.Info("a")
	l.Warn("b")
	l.Debug("c")

	assert.Equal(t, []string{"INFO a", "WARN b", "DEBUG c"}, r.Lines)
}
