// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// kadnode runs a standalone Kademlia DHT peer: it binds a UDP socket,
// optionally joins a network via a bootstrap-peers file, and otherwise
// just serves ping/store/find_node/find_value for other peers.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/kademux/kadnode/codec"
	"github.com/kademux/kadnode/config"
	"github.com/kademux/kadnode/contact"
	"github.com/kademux/kadnode/id"
	"github.com/kademux/kadnode/logger"
	"github.com/kademux/kadnode/logger/glog"
	"github.com/kademux/kadnode/node"
	"github.com/kademux/kadnode/nodecache"
	"github.com/kademux/kadnode/protocol"
	"github.com/kademux/kadnode/routing"
	"github.com/kademux/kadnode/transport"
)

// Version is the application revision identifier. It can be set with the
// linker as in: go build -ldflags "-X main.Version="`git describe --tags`
var Version = "unknown"

var (
	ListenFlag = cli.StringFlag{
		Name:  "addr",
		Value: ":30301",
		Usage: "listen address",
	}
	BootstrapFlag = cli.StringFlag{
		Name:  "bootstrap",
		Usage: "JSON file of wire triples to join through",
	}
	BucketSizeFlag = cli.IntFlag{
		Name:  "k",
		Value: config.DefaultBucketSize,
		Usage: "routing table bucket size / lookup result width",
	}
	AlphaFlag = cli.IntFlag{
		Name:  "alpha",
		Value: config.DefaultAlpha,
		Usage: "lookup concurrency",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-9)",
	}
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Version = Version
	app.Usage = "run a Kademlia DHT peer"
	app.Action = run
	app.Flags = []cli.Flag{
		ListenFlag,
		BootstrapFlag,
		BucketSizeFlag,
		AlphaFlag,
		VerbosityFlag,
	}
}

func run(ctx *cli.Context) error {
	glog.SetToStderr(true)
	glog.SetV(ctx.Int(VerbosityFlag.Name))

	cfg := config.New(ctx.String(ListenFlag.Name))
	cfg.BucketSize = ctx.Int(BucketSizeFlag.Name)
	cfg.Alpha = ctx.Int(AlphaFlag.Name)
	cfg.BootstrapPeersFile = ctx.String(BootstrapFlag.Name)

	selfID := id.MustRandom()
	log.Printf("kadnode %s starting with id %s", Version, selfID)

	trans, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := trans.Serve(); err != nil {
			glog.Errorf("transport: %v", err)
		}
	}()

	self := contact.NodeId{Address: contact.Addr{Host: "0.0.0.0", Port: udpPort(cfg.ListenAddr)}, ID: selfID}
	table := routing.New(selfID, cfg.BucketSize)
	lg := logger.NewGlog("kadnode")
	proto := protocol.New(self, codec.NewJSON(), trans, table, lg, config.DefaultRequestTimeout)

	cache, err := nodecache.New(1024)
	if err != nil {
		return fmt.Errorf("nodecache: %w", err)
	}
	n := node.New(self, table, proto, cfg.BucketSize, lg, cache)

	peers, err := cfg.LoadBootstrapPeers()
	if err != nil {
		return fmt.Errorf("load bootstrap peers: %w", err)
	}
	for _, p := range peers {
		table.Update(p)
	}
	if len(peers) > 0 {
		if err := n.Refresh(context.Background(), cfg.Alpha); err != nil {
			glog.Warningf("bootstrap refresh: %v", err)
		}
	}

	go refreshPeriodically(n, cfg.Alpha, cfg.RefreshInterval)

	select {}
}

// refreshPeriodically runs Node.Refresh on a fixed tick for as long as the
// process lives. Errors are logged and otherwise ignored -- a failed
// refresh just leaves the table as stale as it already was.
func refreshPeriodically(n *node.Node, alpha int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := n.Refresh(context.Background(), alpha); err != nil {
			glog.Warningf("periodic refresh: %v", err)
		}
	}
}

func udpPort(addr string) int {
	// addr is host:port or :port; a malformed value defaults to 0 rather
	// than aborting startup, since this is only used for the locally
	// recorded self-address and never for binding.
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port := 0
			fmt.Sscanf(addr[i+1:], "%d", &port)
			return port
		}
	}
	return 0
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
