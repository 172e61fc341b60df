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

// Package codec is the external collaborator that turns a Message into
// bytes and back. The core only depends on the Codec interface; JSONCodec
// is the default, self-describing implementation.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/message"
)

// Error wraps any failure to convert between bytes and a Message.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("codec: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Codec turns a Message into bytes and back. Both directions fail with a
// dedicated *Error rather than a generic error.
type Codec interface {
	Encode(m message.Message) ([]byte, error)
	Decode(b []byte) (message.Message, error)
}

// wireMessage is the JSON shape on the wire. Ids are carried as hex
// strings (see id.Id.String/FromHex) so a 160-bit identifier never passes
// through a JSON numeric type and risks silent truncation.
type wireMessage struct {
	Type     string        `json:"type"`
	NodeID   string        `json:"node_id"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	RPC      string        `json:"rpc"`
	RPCID    string        `json:"rpc_id"`
	Payload  []json.RawMessage `json:"payload"`
}

// JSONCodec is the default Codec, built entirely on the standard library's
// encoding/json.
type JSONCodec struct{}

// NewJSON returns a ready-to-use JSONCodec.
func NewJSON() *JSONCodec {
	return &JSONCodec{}
}

// Encode renders m as a wireMessage. Payload elements are marshaled
// individually so mixed-type argument lists (ids, booleans, triples,
// opaque bytes) each round-trip through their own JSON representation.
func (c *JSONCodec) Encode(m message.Message) ([]byte, error) {
	if m.Type != message.Request && m.Type != message.Response && m.Type != message.Error {
		return nil, &Error{Reason: fmt.Sprintf("unrecognized message type %q", m.Type)}
	}
	payload := make([]json.RawMessage, len(m.Payload))
	for i, arg := range m.Payload {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, &Error{Reason: "marshal payload element", Cause: err}
		}
		payload[i] = raw
	}
	w := wireMessage{
		Type:    string(m.Type),
		NodeID:  m.OriginID.String(),
		Host:    m.OriginAddress.Host,
		Port:    m.OriginAddress.Port,
		RPC:     m.RPC,
		RPCID:   m.RPCID.String(),
		Payload: payload,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, &Error{Reason: "marshal message", Cause: err}
	}
	return b, nil
}

// Decode parses bytes produced by Encode (or any conforming peer) back
// into a Message. It fails with a *message.FormatError -- wrapped as a
// *Error -- when required fields are missing, mistyped, or Type is not one
// of the three recognized variants.
func (c *JSONCodec) Decode(b []byte) (message.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return message.Message{}, &Error{Reason: "unmarshal message", Cause: err}
	}
	switch message.Type(w.Type) {
	case message.Request, message.Response, message.Error:
	default:
		fe := &message.FormatError{Reason: fmt.Sprintf("unrecognized type %q", w.Type)}
		return message.Message{}, &Error{Reason: "invalid message", Cause: fe}
	}
	originID, err := id.FromHex(w.NodeID)
	if err != nil {
		return message.Message{}, &Error{Reason: "decode node_id", Cause: err}
	}
	rpcID, err := id.FromHex(w.RPCID)
	if err != nil {
		return message.Message{}, &Error{Reason: "decode rpc_id", Cause: err}
	}
	payload := make([]interface{}, len(w.Payload))
	for i, raw := range w.Payload {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return message.Message{}, &Error{Reason: "unmarshal payload element", Cause: err}
		}
		payload[i] = v
	}
	return message.Message{
		Type:          message.Type(w.Type),
		OriginID:      originID,
		OriginAddress: contact.Addr{Host: w.Host, Port: w.Port},
		RPC:           w.RPC,
		RPCID:         rpcID,
		Payload:       payload,
	}, nil
}
