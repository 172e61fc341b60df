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

// Package message defines the wire-level record exchanged by Protocol and
// the error it fails with on malformed input.
package message

import (
	"fmt"

	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
)

// Type classifies a Message as a request, a successful response, or an
// error response.
type Type string

const (
	// Request marks an outbound RPC invocation awaiting a response.
	Request Type = "request"
	// Response marks a successful reply to a request.
	Response Type = "response"
	// Error marks a failed reply to a request.
	Error Type = "error"
)

// Message is the record every Protocol send/receive operates on:
// (type, origin_id, origin_address, rpc_name, rpc_id, payload).
type Message struct {
	Type          Type
	OriginID      id.Id
	OriginAddress contact.Addr
	RPC           string
	RPCID         id.Id
	Payload       []interface{}
}

// NewRequest builds a request Message with a fresh random rpc_id.
func NewRequest(origin contact.NodeId, rpc string, args ...interface{}) (Message, error) {
	rpcID, err := id.Random()
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:          Request,
		OriginID:      origin.ID,
		OriginAddress: origin.Address,
		RPC:           rpc,
		RPCID:         rpcID,
		Payload:       args,
	}, nil
}

// NewResponse builds a response Message echoing rpcID unchanged.
func NewResponse(origin contact.NodeId, rpc string, rpcID id.Id, args ...interface{}) Message {
	return Message{
		Type:          Response,
		OriginID:      origin.ID,
		OriginAddress: origin.Address,
		RPC:           rpc,
		RPCID:         rpcID,
		Payload:       args,
	}
}

// NewError builds an error Message echoing rpcID unchanged.
func NewError(origin contact.NodeId, rpc string, rpcID id.Id, reason string) Message {
	return Message{
		Type:          Error,
		OriginID:      origin.ID,
		OriginAddress: origin.Address,
		RPC:           rpc,
		RPCID:         rpcID,
		Payload:       []interface{}{reason},
	}
}

// Origin reassembles the NodeId the message claims as its sender.
func (m Message) Origin() contact.NodeId {
	return contact.NodeId{Address: m.OriginAddress, ID: m.OriginID}
}

// FormatError reports that an inbound or outbound record failed to satisfy
// the Message field contract: a required field was missing, mistyped, or
// Type was not one of the three recognized variants.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("message: format error: %s", e.Reason)
}
