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

// Package logger defines the minimal logging collaborator the core
// consumes, plus a glog-backed default and two test doubles.
package logger

import "github.com/kademux/kadnode/logger/glog"

// Logger is the external collaborator every core component logs through.
type Logger interface {
	Info(text string)
	Warn(text string)
	Debug(text string)
}

// debugVerbosity is the glog -verbosity level Debug is gated behind.
const debugVerbosity = glog.Level(1)

// Glog is the default Logger, backed by the leveled glog facility: Info and
// Warn always print, Debug only prints once -verbosity is raised.
type Glog struct {
	component string
}

// NewGlog returns a Logger that prefixes every line with component.
func NewGlog(component string) *Glog {
	return &Glog{component: component}
}

func (g *Glog) Info(text string) {
	glog.Infof("%s: %s", g.component, text)
}

func (g *Glog) Warn(text string) {
	glog.Warningf("%s: %s", g.component, text)
}

func (g *Glog) Debug(text string) {
	glog.V(debugVerbosity).Infof("%s: %s", g.component, text)
}

// Nop discards everything. Useful in tests that don't want log noise.
type Nop struct{}

func (Nop) Info(string)  {}
func (Nop) Warn(string)  {}
func (Nop) Debug(string) {}

// Recording appends every call to an in-memory slice, for tests that
// assert on what was logged.
type Recording struct {
	Lines []string
}

func (r *Recording) Info(text string)  { r.Lines = append(r.Lines, "INFO "+text) }
func (r *Recording) Warn(text string)  { r.Lines = append(r.Lines, "WARN "+text) }
func (r *Recording) Debug(text string) { r.Lines = append(r.Lines, "DEBUG "+text) }
