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

// Package config holds this node's runtime configuration and the loader
// for its bootstrap-peer file.
package config

import (
	"encoding/json"
	"time"

	"github.com/spf13/afero"

	"github.com/kademux/kadnode/contact"
)

// Default constants, per the wire-format specification: k=20, alpha=3,
// default request timeout 10s.
const (
	DefaultBucketSize      = 20
	DefaultAlpha           = 3
	DefaultRequestTimeout  = 10 * time.Second
	DefaultRefreshInterval = time.Hour
)

// Config is this node's runtime configuration.
type Config struct {
	// ListenAddr is the local UDP address to bind, host:port form.
	ListenAddr string
	// BucketSize is k, the width of both bucket lists and lookup results.
	BucketSize int
	// Alpha is the lookup concurrency.
	Alpha int
	// RequestTimeout is the Protocol default pending-request timeout.
	RequestTimeout time.Duration
	// RefreshInterval is how often Node.Refresh runs once the node is
	// serving.
	RefreshInterval time.Duration
	// BootstrapPeersFile, if non-empty, names a JSON file of wire
	// triples to seed the routing table from at startup.
	BootstrapPeersFile string

	fs afero.Fs
}

// New returns a Config with the spec's default constants and an OS-backed
// filesystem for bootstrap-file loading.
func New(listenAddr string) *Config {
	return &Config{
		ListenAddr:      listenAddr,
		BucketSize:      DefaultBucketSize,
		Alpha:           DefaultAlpha,
		RequestTimeout:  DefaultRequestTimeout,
		RefreshInterval: DefaultRefreshInterval,
		fs:              afero.NewOsFs(),
	}
}

// WithFs overrides the backing filesystem, for tests that want to seed a
// bootstrap file into an in-memory afero.Fs instead of touching disk.
func (c *Config) WithFs(fs afero.Fs) *Config {
	c.fs = fs
	return c
}

// LoadBootstrapPeers reads BootstrapPeersFile, if set, as a JSON array of
// wire triples and returns the parsed NodeIds.
func (c *Config) LoadBootstrapPeers() ([]contact.NodeId, error) {
	if c.BootstrapPeersFile == "" {
		return nil, nil
	}
	fs := c.fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	raw, err := afero.ReadFile(fs, c.BootstrapPeersFile)
	if err != nil {
		return nil, err
	}
	var triples []contact.Triple
	if err := json.Unmarshal(raw, &triples); err != nil {
		return nil, err
	}
	out := make([]contact.NodeId, 0, len(triples))
	for _, t := range triples {
		n, err := contact.FromTriple(t)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
