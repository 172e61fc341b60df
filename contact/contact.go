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

// Package contact defines the address-carrying node identifier and its wire
// representation.
package contact

import (
	"fmt"

	"github.com/kademux/kadnode/id"
)

// ToTriples renders a slice of NodeIds as wire triples.
func ToTriples(nodes []NodeId) []Triple {
	out := make([]Triple, len(nodes))
	for i, n := range nodes {
		out[i] = ToTriple(n)
	}
	return out
}

// TriplesFromPayload converts a message payload element back into wire
// triples. It accepts the shape produced by decoding JSON into
// interface{}: an []interface{} of map[string]interface{}, each holding
// "host", "port" and "id" keys -- exactly what a Codec decode round-trip
// of []Triple yields.
func TriplesFromPayload(v interface{}) ([]Triple, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("contact: payload element is not a triple list")
	}
	out := make([]Triple, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("contact: triple %d is not an object", i)
		}
		host, _ := m["host"].(string)
		idStr, _ := m["id"].(string)
		port, ok := m["port"].(float64)
		if !ok {
			return nil, fmt.Errorf("contact: triple %d missing numeric port", i)
		}
		out[i] = Triple{Host: host, Port: int(port), ID: idStr}
	}
	return out, nil
}

// NodeIdsFromTriples parses each triple, failing on the first malformed
// entry.
func NodeIdsFromTriples(triples []Triple) ([]NodeId, error) {
	out := make([]NodeId, len(triples))
	for i, t := range triples {
		n, err := FromTriple(t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Addr is a (host, port) pair. It is carried for contact purposes only and
// never participates in NodeId equality.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// NodeId is the tuple (address, id) that every routing table and RPC
// surface in this system passes around. Two NodeIds are equal iff their ID
// fields are equal; Address is informational and is refreshed on
// rediscovery of the same id.
type NodeId struct {
	Address Addr
	ID      id.Id
}

// Equal reports whether two NodeIds carry the same identifier, ignoring
// address.
func (n NodeId) Equal(o NodeId) bool {
	return n.ID.Equal(o.ID)
}

func (n NodeId) String() string {
	return fmt.Sprintf("%s@%s", n.ID, n.Address)
}

// Triple is the wire form of a NodeId: (host, port, id). It is the shape
// that travels inside find_node/find_value responses.
type Triple struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	ID   string `json:"id"`
}

// ToTriple renders a NodeId as its wire triple. The identifier is carried
// as a hex string so the codec never needs to losslessly round-trip a raw
// 160-bit integer through a numeric JSON type.
func ToTriple(n NodeId) Triple {
	return Triple{Host: n.Address.Host, Port: n.Address.Port, ID: n.ID.String()}
}

// FromTriple parses a wire triple back into a NodeId.
func FromTriple(t Triple) (NodeId, error) {
	parsed, err := id.FromHex(t.ID)
	if err != nil {
		return NodeId{}, err
	}
	return NodeId{Address: Addr{Host: t.Host, Port: t.Port}, ID: parsed}, nil
}
