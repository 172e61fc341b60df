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

// Package id implements the fixed-width identifier space and XOR metric that
// every other Kademlia component is built on top of.
package id

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// Bits is the width of the identifier space in bits. Every Id, bucket index
// and routing table is sized against this constant.
const Bits = 160

// Len is the width of an Id in bytes.
const Len = Bits / 8

// Id is an opaque, fixed-width unsigned integer used both as a node
// identifier and as a lookup key. The zero value is the all-zero id.
type Id [Len]byte

// Coincident is the sentinel value returned by BitIndex when its two
// arguments are equal, i.e. there is no most-significant differing bit.
const Coincident = -1

// FromKey derives an Id by hashing an arbitrary byte string with SHA-1, the
// algorithm this system standardizes on for deriving ids from opaque keys.
func FromKey(key []byte) Id {
	return Id(sha1.Sum(key))
}

// Random returns a uniformly random Id drawn from a cryptographically
// strong source.
func Random() (Id, error) {
	var out Id
	if _, err := rand.Read(out[:]); err != nil {
		return Id{}, err
	}
	return out, nil
}

// MustRandom is like Random but panics on entropy-source failure, which in
// practice never happens on supported platforms. It exists for call sites
// (tests, CLI bootstrap) that have no sensible error path.
func MustRandom() Id {
	out, err := Random()
	if err != nil {
		panic(err)
	}
	return out
}

// Equal reports whether a and b are the same identifier.
func (a Id) Equal(b Id) bool {
	return a == b
}

// Xor returns the bitwise XOR of a and b, i.e. the Kademlia distance metric
// between the two identifiers.
func (a Id) Xor(b Id) Id {
	var out Id
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// IsZero reports whether the id is the all-zero value.
func (a Id) IsZero() bool {
	return a == Id{}
}

// Less reports whether a sorts before b under the natural big-endian
// total order over the identifier space. Since an XOR distance is itself
// an Id, Less orders distances as well as identifiers.
func (a Id) Less(b Id) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Bytes returns the big-endian byte representation of the id.
func (a Id) Bytes() []byte {
	out := make([]byte, Len)
	copy(out, a[:])
	return out
}

// String returns the hex encoding of the id, used for logging and the
// wire-friendly decimal-free debug representation.
func (a Id) String() string {
	return hex.EncodeToString(a[:])
}

// FromHex parses the hex encoding produced by String back into an Id.
func FromHex(s string) (Id, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Id{}, err
	}
	return FromBytes(b)
}

// FromBytes reinterprets a byte slice as an Id. It returns an error if b is
// not exactly Len bytes long, matching the width-preservation requirement
// the wire codec relies on.
func FromBytes(b []byte) (Id, error) {
	var out Id
	if len(b) != Len {
		return out, errors.New("id: wrong byte length")
	}
	copy(out[:], b)
	return out, nil
}

// BitIndex returns floor(log2(a^b)), counted from the least significant bit
// of the identifier (bit 0) up to Bits-1. This is the canonical Kademlia
// bucket index: bucket i holds peers whose distance from a lies in
// [2^i, 2^(i+1)). It returns Coincident when a == b. The implementation
// counts bits of the XOR directly and never uses floating-point math.
func BitIndex(a, b Id) int {
	x := a.Xor(b)
	for byteIdx := 0; byteIdx < Len; byteIdx++ {
		v := x[byteIdx]
		if v == 0 {
			continue
		}
		bitInByte := 7
		for ; bitInByte >= 0; bitInByte-- {
			if v&(1<<uint(bitInByte)) != 0 {
				break
			}
		}
		// x[byteIdx] is the most significant non-zero byte (big-endian
		// encoding); convert its highest set bit to a position counted
		// from the least significant bit of the whole identifier.
		return (Len-1-byteIdx)*8 + bitInByte
	}
	return Coincident
}
