/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package node hosts the runtime every handle delegates to: the slave RPC
// endpoint, the stream listener and the datagram socket, the per key endpoint
// maps, inbound connection dispatch and shutdown orchestration.
//
// A process normally runs a single node initialized through Init; New builds
// detached instances for embedding and tests.
package node

import (
	"context"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/names"
)

// Node is the top level runtime owner.
type Node interface {
	// Name returns the fully qualified node name.
	Name() string

	// Resolver returns the naming state of this node.
	Resolver() names.Resolver

	// Master returns the directory client of this node.
	Master() master.Client

	// SlaveURI returns the slave RPC endpoint of this node.
	SlaveURI() string

	// TCPPort returns the bound stream listener port.
	TCPPort() int

	// UDPPort returns the bound datagram socket port.
	UDPPort() int

	// IsShutdown reports whether the node is shut down.
	IsShutdown() bool

	// OnShutdown appends a callback fired once when the node shuts down.
	OnShutdown(fct func())

	// Handle returns a namespaced facade; an empty namespace means the
	// node's own namespace.
	Handle(ns string) (Handle, liberr.Error)

	// Shutdown closes the listeners, unregisters every endpoint and stops
	// the schedule. Safe to call twice.
	Shutdown()
}

var (
	single Node
	singmx sync.Mutex
)

// Init brings up the process wide node. A second call under the same name
// returns the existing instance; another name is refused.
func Init(ctx context.Context, cfg Config, fct liblog.FuncLog) (Node, liberr.Error) {
	singmx.Lock()
	defer singmx.Unlock()

	if single != nil && !single.IsShutdown() {
		if r, e := names.NewResolver(cfg.Name, cfg.Namespace, nil); e == nil && r.NodeName() == single.Name() {
			return single, nil
		}

		return nil, ErrorAlreadyInit.Error(nil)
	}

	n, e := New(ctx, cfg, fct)
	if e != nil {
		return nil, e
	}

	if r, k := n.(*nod); k {
		r.trapSignals()
	}

	single = n
	return n, nil
}

// Get returns the node built by Init, nil before initialization.
func Get() Node {
	singmx.Lock()
	defer singmx.Unlock()

	return single
}
