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

// Package transport is the external collaborator that moves bytes over an
// unreliable datagram socket. UDPTransport is the default implementation;
// Protocol only depends on the Transport interface, so tests can swap in an
// in-memory fake.
package transport

import (
	"fmt"
	"net"

	"github.com/kademux/kadnode/contact"
)

// Error reports a transport-level failure: connection refused, socket
// closed, or similarly unrecoverable-per-send condition.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = &Error{Reason: "closed"}

// Handler is invoked once per inbound datagram.
type Handler func(b []byte, from contact.Addr)

// Transport is the datagram send/receive collaborator the core consumes.
type Transport interface {
	// Send transmits b to address. It is best-effort: a nil error does
	// not mean the datagram was delivered, and nothing retries a failed
	// send; Protocol's timeout path is authoritative.
	Send(b []byte, address contact.Addr) error
	// OnDatagram installs the handler invoked for every inbound datagram.
	// It must be called before Serve.
	OnDatagram(h Handler)
	// Close shuts the transport down; subsequent Sends no-op with
	// ErrClosed.
	Close() error
}

// UDPTransport is the default Transport, backed by a bound net.PacketConn.
type UDPTransport struct {
	conn   *net.UDPConn
	handle Handler
	closed chan struct{}
}

// Listen binds a UDPTransport to addr (host:port form, per net.ResolveUDPAddr).
func Listen(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &Error{Reason: "resolve listen address", Cause: err}
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, &Error{Reason: "bind socket", Cause: err}
	}
	return &UDPTransport{conn: conn, closed: make(chan struct{})}, nil
}

// OnDatagram installs the inbound datagram handler.
func (t *UDPTransport) OnDatagram(h Handler) {
	t.handle = h
}

// Serve reads datagrams until the transport is closed, dispatching each to
// the installed handler. It blocks and is meant to run in its own
// goroutine.
func (t *UDPTransport) Serve() error {
	buf := make([]byte, 65535)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return nil
			default:
				return &Error{Reason: "read datagram", Cause: err}
			}
		}
		if t.handle == nil {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		t.handle(cp, contact.Addr{Host: from.IP.String(), Port: from.Port})
	}
}

// Send transmits b to address over the bound UDP socket.
func (t *UDPTransport) Send(b []byte, address contact.Addr) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address.Host, address.Port))
	if err != nil {
		return &Error{Reason: "resolve send address", Cause: err}
	}
	if _, err := t.conn.WriteToUDP(b, udpAddr); err != nil {
		return &Error{Reason: "write datagram", Cause: err}
	}
	return nil
}

// Close shuts down the socket.
func (t *UDPTransport) Close() error {
	select {
	case <-t.closed:
		return nil
	default:
		close(t.closed)
	}
	return t.conn.Close()
}
