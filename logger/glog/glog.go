// Go support for leveled logs, analogous to https://code.google.com/p/google-glog/
//
// Copyright 2013 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package glog is a small leveled-logging facility in the style of the
// Google-internal C++ INFO/WARNING/ERROR/V setup. Unlike the original
// glog, this version only ever writes to stderr: there is no log-file
// rotation and no -vmodule per-file override.
package glog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Level is a verbosity threshold, set via SetV and tested by V.
type Level int32

var verbosity int32 // atomic; current -v level

// SetV sets the verbosity threshold. Calls to V(n) with n <= the
// threshold produce output.
func SetV(v int) {
	atomic.StoreInt32(&verbosity, int32(v))
}

// SetToStderr exists for compatibility with the original glog flag set.
// This implementation always logs to stderr, so it is a no-op.
func SetToStderr(bool) {}

// Verbose is returned by V; its Infof method is a no-op unless the
// requested level has been met by the current verbosity threshold.
type Verbose bool

// V reports whether verbosity has been set at least to level.
func V(level Level) Verbose {
	return Verbose(atomic.LoadInt32(&verbosity) >= int32(level))
}

// Infof logs at info severity if v is true (i.e. the threshold was met).
func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		output('I', format, args...)
	}
}

// Infof logs an info-severity message unconditionally.
func Infof(format string, args ...interface{}) {
	output('I', format, args...)
}

// Warningf logs a warning-severity message unconditionally.
func Warningf(format string, args ...interface{}) {
	output('W', format, args...)
}

// Errorf logs an error-severity message unconditionally.
func Errorf(format string, args ...interface{}) {
	output('E', format, args...)
}

// Fatal logs its arguments at fatal severity and terminates the process.
func Fatal(args ...interface{}) {
	fmt.Fprintf(os.Stderr, "F%s %s\n", timestamp(), fmt.Sprint(args...))
	os.Exit(1)
}

func output(severity byte, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%c%s %s\n", severity, timestamp(), fmt.Sprintf(format, args...))
}

func timestamp() string {
	return time.Now().Format("0102 15:04:05.000000")
}
