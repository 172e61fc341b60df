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

// Package protocol multiplexes request/response traffic over a Transport:
// it owns the pending-request table, applies timeouts, and dispatches
// inbound requests to a registered rpc_name-keyed handler table.
package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/kademux/kadnode/codec"
	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/message"
	"github.com/kademux/kadnode/metrics"
	"github.com/kademux/kadnode/routing"
	"github.com/kademux/kadnode/transport"
)

// RPCError surfaces an `error`-typed response or a pending request that
// was cancelled by shutdown.
type RPCError struct {
	Reason string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("protocol: rpc error: %s", e.Reason)
}

// ErrTimeout is returned when a request's pending entry expired before a
// matching response arrived.
var ErrTimeout = &RPCError{Reason: "timeout"}

// ErrClosed is returned to every outstanding and future request once the
// Protocol has been shut down.
var ErrClosed = &RPCError{Reason: "protocol closed"}

// Handler answers one inbound RPC request. It receives the caller's
// NodeId (synthesized from the inbound message's origin fields) and the
// request payload, and returns the response payload.
//
// A Handler's failure never becomes a response: per the error handling
// design, the caller instead observes a timeout. RoutingTable.Update for
// the caller happens regardless of success.
type Handler func(caller contact.NodeId, args []interface{}) ([]interface{}, error)

// Future is the single-shot result of a SendRequest call.
type Future struct {
	ch chan result
}

type result struct {
	msg message.Message
	err error
}

// Wait blocks until the request completes, by response, error response,
// timeout, or protocol shutdown.
func (f *Future) Wait() (message.Message, error) {
	r := <-f.ch
	return r.msg, r.err
}

type pendingEntry struct {
	ch    chan result
	timer *time.Timer
	rpc   string
}

// Protocol owns one Transport and multiplexes it into RPC-shaped
// request/response traffic.
type Protocol struct {
	self    contact.NodeId
	codec   codec.Codec
	trans   transport.Transport
	table   *routing.Table
	log     logger.Logger
	timeout time.Duration

	mu       sync.Mutex
	pending  map[id.Id]*pendingEntry
	handlers map[string]Handler
	closed   bool
}

// New wires a Protocol around trans, dispatching decoded datagrams
// immediately. Callers must still arrange for trans to actually read
// datagrams (e.g. by running a UDPTransport.Serve goroutine).
func New(self contact.NodeId, c codec.Codec, trans transport.Transport, table *routing.Table, log logger.Logger, timeout time.Duration) *Protocol {
	p := &Protocol{
		self:     self,
		codec:    c,
		trans:    trans,
		table:    table,
		log:      log,
		timeout:  timeout,
		pending:  make(map[id.Id]*pendingEntry),
		handlers: make(map[string]Handler),
	}
	trans.OnDatagram(p.onDatagram)
	return p
}

// RegisterHandler installs the local handler for an inbound rpc_name. It
// must be called before the transport starts delivering datagrams.
func (p *Protocol) RegisterHandler(rpc string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[rpc] = h
}

// SendRequest encodes and sends a request message to peer, returning a
// Future that resolves to the matching response (or an error).
func (p *Protocol) SendRequest(rpc string, args []interface{}, peer contact.NodeId) *Future {
	fut := &Future{ch: make(chan result, 1)}

	msg, err := message.NewRequest(p.self, rpc, args...)
	if err != nil {
		fut.ch <- result{err: err}
		return fut
	}

	entry := &pendingEntry{ch: fut.ch, rpc: rpc}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fut.ch <- result{err: ErrClosed}
		return fut
	}
	p.pending[msg.RPCID] = entry
	p.mu.Unlock()

	entry.timer = time.AfterFunc(p.timeout, func() {
		p.mu.Lock()
		cur, ok := p.pending[msg.RPCID]
		if !ok || cur != entry {
			p.mu.Unlock()
			return
		}
		delete(p.pending, msg.RPCID)
		p.mu.Unlock()
		if metrics.RPCTimeout[rpc] != nil {
			metrics.RPCTimeout[rpc].Mark(1)
		}
		entry.ch <- result{err: ErrTimeout}
	})

	if metrics.RPCSent[rpc] != nil {
		metrics.RPCSent[rpc].Mark(1)
	}

	b, err := p.codec.Encode(msg)
	if err != nil {
		p.log.Warn(fmt.Sprintf("encode %s request: %v", rpc, err))
		p.failPending(msg.RPCID, err)
		return fut
	}
	if err := p.trans.Send(b, peer.Address); err != nil {
		p.log.Warn(fmt.Sprintf("send %s request to %s: %v", rpc, peer.Address, err))
		// Best-effort: the timeout path remains authoritative, so we do
		// not fail the future here unless the transport is closed.
		if err == transport.ErrClosed {
			p.failPending(msg.RPCID, ErrClosed)
		}
	}
	return fut
}

// failPending completes and removes rpcID's pending entry immediately,
// used when a request never made it onto the wire.
func (p *Protocol) failPending(rpcID id.Id, err error) {
	p.mu.Lock()
	entry, ok := p.pending[rpcID]
	if ok {
		delete(p.pending, rpcID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	entry.timer.Stop()
	entry.ch <- result{err: err}
}

// SendResponse sends a best-effort response/error message with no
// correlation bookkeeping.
func (p *Protocol) SendResponse(msg message.Message, address contact.Addr) {
	b, err := p.codec.Encode(msg)
	if err != nil {
		p.log.Warn(fmt.Sprintf("encode response for %s: %v", msg.RPC, err))
		return
	}
	if err := p.trans.Send(b, address); err != nil {
		p.log.Warn(fmt.Sprintf("send response to %s: %v", address, err))
	}
}

// onDatagram is installed as the Transport's inbound handler.
func (p *Protocol) onDatagram(b []byte, from contact.Addr) {
	msg, err := p.codec.Decode(b)
	if err != nil {
		p.log.Warn(fmt.Sprintf("drop malformed datagram from %s: %v", from, err))
		metrics.MessageDropped.Mark(1)
		return
	}
	// The address a message actually arrived from is more trustworthy
	// than the self-reported origin address; callers contact peers at
	// the address recorded by the transport.
	msg.OriginAddress = from

	switch msg.Type {
	case message.Request:
		p.handleRequest(msg)
	case message.Response:
		p.handleCompletion(msg, nil)
	case message.Error:
		reason := "remote error"
		if len(msg.Payload) > 0 {
			if s, ok := msg.Payload[0].(string); ok {
				reason = s
			}
		}
		p.handleCompletion(msg, &RPCError{Reason: reason})
	default:
		p.log.Warn(fmt.Sprintf("drop message with unrecognized type from %s", from))
		metrics.MessageDropped.Mark(1)
	}
}

func (p *Protocol) handleRequest(msg message.Message) {
	caller := msg.Origin()

	p.mu.Lock()
	h, ok := p.handlers[msg.RPC]
	p.mu.Unlock()

	if !ok {
		p.log.Warn(fmt.Sprintf("drop request for unregistered rpc %q from %s", msg.RPC, caller))
		metrics.MessageDropped.Mark(1)
		p.table.Update(caller)
		return
	}

	result, err := p.invokeHandler(h, caller, msg.Payload)

	// Regardless of handler success, the caller is observed.
	p.table.Update(caller)
	metrics.TableUpdates.Mark(1)
	if metrics.RPCHandled[msg.RPC] != nil {
		metrics.RPCHandled[msg.RPC].Mark(1)
	}

	if err != nil {
		p.log.Warn(fmt.Sprintf("handler for %q failed: %v", msg.RPC, err))
		return
	}

	resp := message.NewResponse(p.self, msg.RPC, msg.RPCID, result...)
	p.SendResponse(resp, caller.Address)
}

// invokeHandler calls h, recovering from any panic so that a broken
// handler can never crash the dispatch loop or corrupt routing-table
// state; a recovered panic is reported the same as any other handler
// error (the caller observes a timeout).
func (p *Protocol) invokeHandler(h Handler, caller contact.NodeId, args []interface{}) (result []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(caller, args)
}

func (p *Protocol) handleCompletion(msg message.Message, rpcErr error) {
	p.mu.Lock()
	entry, ok := p.pending[msg.RPCID]
	if ok {
		delete(p.pending, msg.RPCID)
	}
	p.mu.Unlock()

	if !ok {
		p.log.Warn(fmt.Sprintf("drop late/unmatched response for rpc_id %s", msg.RPCID))
		metrics.MessageDropped.Mark(1)
		return
	}
	entry.timer.Stop()
	entry.ch <- result{msg: msg, err: rpcErr}
}

// Close shuts the transport down and completes every outstanding pending
// request with ErrClosed.
func (p *Protocol) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := p.pending
	p.pending = make(map[id.Id]*pendingEntry)
	p.mu.Unlock()

	for _, entry := range pending {
		entry.timer.Stop()
		entry.ch <- result{err: ErrClosed}
	}
	return p.trans.Close()
}
