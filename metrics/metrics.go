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

// Package metrics centralizes the registration of the node's runtime
// counters: per-RPC send/receive/timeout meters and lookup-round timing.
package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/kademux/kadnode/logger/glog"
	"github.com/rcrowley/go-metrics"
)

// Reg is the metrics destination every meter and timer below registers
// against.
var Reg = metrics.NewRegistry()

var (
	// RPCSent counts outbound requests per RPC name.
	RPCSent = map[string]metrics.Meter{
		"ping":       metrics.NewRegisteredMeter("rpc/ping/sent", Reg),
		"store":      metrics.NewRegisteredMeter("rpc/store/sent", Reg),
		"find_node":  metrics.NewRegisteredMeter("rpc/find_node/sent", Reg),
		"find_value": metrics.NewRegisteredMeter("rpc/find_value/sent", Reg),
	}
	// RPCTimeout counts requests whose pending entry expired before a
	// matching response arrived.
	RPCTimeout = map[string]metrics.Meter{
		"ping":       metrics.NewRegisteredMeter("rpc/ping/timeout", Reg),
		"store":      metrics.NewRegisteredMeter("rpc/store/timeout", Reg),
		"find_node":  metrics.NewRegisteredMeter("rpc/find_node/timeout", Reg),
		"find_value": metrics.NewRegisteredMeter("rpc/find_value/timeout", Reg),
	}
	// RPCHandled counts inbound requests dispatched to a local handler.
	RPCHandled = map[string]metrics.Meter{
		"ping":       metrics.NewRegisteredMeter("rpc/ping/handled", Reg),
		"store":      metrics.NewRegisteredMeter("rpc/store/handled", Reg),
		"find_node":  metrics.NewRegisteredMeter("rpc/find_node/handled", Reg),
		"find_value": metrics.NewRegisteredMeter("rpc/find_value/handled", Reg),
	}

	// MessageDropped counts inbound datagrams dropped for codec or
	// format failure, or an unrecognized rpc/rpc_id.
	MessageDropped = metrics.NewRegisteredMeter("message/dropped", Reg)

	// LookupTimer measures the wall-clock duration of a full iterative
	// lookup, from seed to termination.
	LookupTimer = metrics.NewRegisteredTimer("lookup/duration", Reg)
	// LookupConverged counts lookups that terminated without a find_value
	// hit, whether by convergence or by exhaustion.
	LookupConverged = metrics.NewRegisteredMeter("lookup/converged", Reg)
	// LookupValueFound counts find_value lookups that ended in a hit.
	LookupValueFound = metrics.NewRegisteredMeter("lookup/value_found", Reg)

	// TableUpdates counts the RoutingTable.Update calls Protocol makes for
	// the callers of handled inbound requests, a proxy for peer churn
	// observed by this node.
	TableUpdates = metrics.NewRegisteredMeter("table/updates", Reg)
)

// Collect periodically dumps the registry to file as newline-delimited
// JSON, in the teacher's own "tick and append" style.
func Collect(file string) {
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		glog.Fatal(err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	for range time.Tick(3 * time.Second) {
		if err := encoder.Encode(Reg); err != nil {
			glog.Errorf("metrics: log to %q: %s", file, err)
			continue
		}
		if err := w.Flush(); err != nil {
			glog.Errorf("metrics: log to %q: %s", file, err)
		}
	}
}
