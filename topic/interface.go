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

// Package topic implements the per topic endpoints shared by every handle:
// the publisher endpoint owning one socket per streaming subscriber and the
// datagram subscriber table, and the subscriber endpoint owning one
// connection per discovered publisher.
//
// Endpoints are reference counted: the node runtime holds them in its maps
// and handles retain and release them; the endpoint unregisters from the
// directory when the last reference is released.
package topic

import (
	"context"
	"net"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/slave"
	"github.com/nabbar/rosnet/spinner"
	"github.com/nabbar/rosnet/wire"
)

// Lifecycle states of an endpoint.
const (
	StateRegistering uint8 = iota + 1
	StateRegistered
	StateShutdown
)

// SyncDispatch disables the spinner schedule for an endpoint: items drain
// synchronously in the caller's context.
const SyncDispatch = time.Duration(-1)

// Deps binds an endpoint to its node runtime collaborators. SlaveURI and
// UDPPort resolve once Ready is closed; the endpoint awaits Ready before any
// directory call.
type Deps struct {
	Master   master.Client
	Caller   slave.Caller
	Spin     spinner.Spinner
	Log      liblog.FuncLog
	Ctx      context.Context
	Ready    <-chan struct{}
	Host     string
	SlaveURI func() string
	UDPPort  func() int
	UDPWrite func(b []byte, host string, port int) error
}

// ConnInfo describes one live transport connection for the bus
// introspection surface.
type ConnInfo struct {
	ID        int
	PeerURI   string
	Direction string // "i" inbound, "o" outbound
	Transport string
	Topic     string
	Connected bool
}

// Stats carries the per endpoint traffic counters.
type Stats struct {
	Messages uint64
	Bytes    uint64
	Drops    uint64
}

// PublisherConfig parameterizes one publisher endpoint; Topic must be
// resolved and Type non nil.
type PublisherConfig struct {
	Topic      string
	Type       msgs.MessageType
	Latching   bool
	TCPNoDelay bool
	QueueSize  int
	Throttle   time.Duration
}

// Publisher is the shared per topic publisher endpoint.
type Publisher interface {
	// Topic returns the resolved topic name.
	Topic() string

	// Type returns the declared message type.
	Type() msgs.MessageType

	// Publish enqueues one message for delivery to every subscriber.
	Publish(msg interface{}) liberr.Error

	// NumSubscribers counts live streaming and datagram subscribers.
	NumSubscribers() int

	// IsLatching reports whether the endpoint caches the last message.
	IsLatching() bool

	// IsShutdown reports whether the lifecycle state is shutdown.
	IsShutdown() bool

	// OnRegistered appends a callback fired once the directory accepted the
	// registration.
	OnRegistered(fct func())

	// OnConnect appends a callback fired for every validated subscriber.
	OnConnect(fct func(peer string))

	// OnDisconnect appends a callback fired when a subscriber drops.
	OnDisconnect(fct func(peer string))

	// OnError appends a callback fired on drain or registration errors.
	OnError(fct func(err error))

	// HandleStreamPeer validates an inbound subscriber header and attaches
	// the socket; called by the node runtime with the parsed first record.
	HandleStreamPeer(conn net.Conn, hdr wire.Header)

	// AddDgramPeer registers one negotiated datagram subscriber.
	AddDgramPeer(connID uint32, host string, port, dgramSize int)

	// RemoveDgramPeer drops one datagram subscriber. Idempotent.
	RemoveDgramPeer(connID uint32)

	// Connections lists live connections for bus introspection.
	Connections() []ConnInfo

	// Stats returns the traffic counters.
	Stats() Stats

	// Retain increments the handle reference count.
	Retain() int

	// Release decrements the handle reference count and returns it.
	Release() int

	// Shutdown closes every socket, disconnects from the spinner and
	// unregisters from the directory. Safe to call twice.
	Shutdown()
}

// SubscriberConfig parameterizes one subscriber endpoint. Transports is the
// preference ordered transport list; empty means streaming only.
type SubscriberConfig struct {
	Topic      string
	Type       msgs.MessageType
	QueueSize  int
	Throttle   time.Duration
	Transports []string
	DgramSize  int
}

// Subscriber is the shared per topic subscriber endpoint.
type Subscriber interface {
	// Topic returns the resolved topic name.
	Topic() string

	// Type returns the declared message type.
	Type() msgs.MessageType

	// NumPublishers counts validated publisher connections.
	NumPublishers() int

	// IsShutdown reports whether the lifecycle state is shutdown.
	IsShutdown() bool

	// OnRegistered appends a callback fired once the directory accepted the
	// registration.
	OnRegistered(fct func())

	// OnConnect appends a callback fired when a publisher validates; exactly
	// one firing per pending to validated transition.
	OnConnect(fct func(peer string))

	// OnDisconnect appends a callback fired when a publisher drops.
	OnDisconnect(fct func(peer string))

	// OnMessage appends the delivery callback: decoded message, wire byte
	// length and origin URI.
	OnMessage(fct func(msg interface{}, n int, uri string))

	// OnError appends a callback fired on dispatch errors.
	OnError(fct func(err error))

	// HandlePublisherUpdate diffs the full publisher URI set against the
	// known peers, connecting and disconnecting as needed.
	HandlePublisherUpdate(uris []string)

	// ConnID returns the peer assigned datagram connection id, zero when no
	// datagram transport is negotiated.
	ConnID() uint32

	// HandleDgram feeds one datagram routed to this endpoint by the node.
	HandleDgram(h wire.DgramHeader, payload []byte)

	// Connections lists live connections for bus introspection.
	Connections() []ConnInfo

	// Stats returns the traffic counters.
	Stats() Stats

	// Retain increments the handle reference count.
	Retain() int

	// Release decrements the handle reference count and returns it.
	Release() int

	// Shutdown disconnects every peer, the spinner and the directory.
	// Safe to call twice.
	Shutdown()
}
