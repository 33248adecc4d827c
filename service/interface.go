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

// Package service implements the request/response plane: the per service
// server endpoint fed by the node's stream listener, and the service client
// with its queued call pipeline and optional persistent connection.
package service

import (
	"context"
	"net"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/wire"
)

// UnboundedQueue disables the client queue bound.
const UnboundedQueue = -1

// HandlerFunc serves one request. A nil error frames the returned response
// message; a non nil error frames its message as the failure reply.
type HandlerFunc func(req interface{}) (interface{}, error)

// Deps binds a service endpoint to its node runtime collaborators.
type Deps struct {
	Master   master.Client
	Log      liblog.FuncLog
	Ctx      context.Context
	Ready    <-chan struct{}
	Host     string
	SlaveURI func() string
	TCPPort  func() int
}

// ServerConfig parameterizes one service server endpoint.
type ServerConfig struct {
	Service string
	Type    msgs.ServiceType
	Handler HandlerFunc
}

// Server is the shared per service server endpoint.
type Server interface {
	// Service returns the resolved service name.
	Service() string

	// Type returns the declared service type.
	Type() msgs.ServiceType

	// URI returns the rosrpc endpoint advertised to the directory.
	URI() string

	// IsShutdown reports whether the lifecycle state is shutdown.
	IsShutdown() bool

	// NumClients counts connected service clients.
	NumClients() int

	// OnRegistered appends a callback fired once the directory accepted the
	// registration.
	OnRegistered(fct func())

	// OnError appends a callback fired on handler or socket errors.
	OnError(fct func(err error))

	// HandleClient validates an inbound service client header and serves its
	// requests; called by the node runtime with the connection's deframer,
	// the parsed first record and any records already deframed behind it.
	HandleClient(conn net.Conn, dfr *wire.Deframer, hdr wire.Header, extra []wire.Record)

	// Connections lists live client connections for bus introspection.
	Connections() []ConnInfo

	// Retain increments the handle reference count.
	Retain() int

	// Release decrements the handle reference count and returns it.
	Release() int

	// Shutdown closes every client socket and unregisters. Safe to call
	// twice.
	Shutdown()
}

// ConnInfo mirrors the bus introspection record for service connections.
type ConnInfo struct {
	ID        int
	PeerURI   string
	Direction string
	Transport string
	Topic     string
	Connected bool
}

// ClientConfig parameterizes one service client. MaxQueue bounds the pending
// calls; UnboundedQueue or zero means no bound.
type ClientConfig struct {
	Service    string
	Type       msgs.ServiceType
	Persistent bool
	MaxQueue   int
	Timeout    time.Duration
}

// Client is the queued service call pipeline.
type Client interface {
	// Service returns the resolved service name.
	Service() string

	// Type returns the declared service type.
	Type() msgs.ServiceType

	// IsShutdown reports whether the client is shut down.
	IsShutdown() bool

	// Call queues one request and blocks until its response, a failure, or
	// displacement by queue overflow.
	Call(ctx context.Context, req interface{}) (interface{}, liberr.Error)

	// Shutdown rejects the call in flight and every pending call.
	Shutdown()
}
