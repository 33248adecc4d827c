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

package topic

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libsck "github.com/nabbar/golib/socket"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/wire"
)

type streamSub struct {
	c net.Conn
	i string // subscriber caller id
}

type dgramSub struct {
	host string
	port int
	size int
}

type pub struct {
	m sync.Mutex
	c PublisherConfig
	d Deps
	e events

	sta libatm.Value[uint8] // lifecycle state
	ref atomic.Int32        // handle count
	cnt atomic.Uint32       // datagram message id counter

	sck map[string]*streamSub
	udp map[uint32]*dgramSub
	lst []byte // last serialized message, latching only

	nbm atomic.Uint64 // messages drained
	nbb atomic.Uint64 // serialized bytes, summed over drained messages

	sid string // spinner client id
}

// NewPublisher builds the publisher endpoint, registers its spinner queue and
// starts the directory registration; the registration completes once the node
// listeners are ready.
func NewPublisher(cfg PublisherConfig, dep Deps) (Publisher, liberr.Error) {
	if len(cfg.Topic) == 0 || cfg.Type == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if dep.Master == nil || dep.Spin == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	o := &pub{
		c:   cfg,
		d:   dep,
		sck: make(map[string]*streamSub),
		udp: make(map[uint32]*dgramSub),
		sid: "pub:" + cfg.Topic,
	}

	o.sta = libatm.NewValue[uint8]()
	o.sta.Store(StateRegistering)
	o.d.Spin.AddClient(o.sid, cfg.QueueSize, cfg.Throttle, o.drain)

	go o.register()

	return o, nil
}

func (o *pub) logger() liblog.Logger {
	if o.d.Log != nil {
		if l := o.d.Log(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *pub) register() {
	select {
	case <-o.d.Ready:
	case <-o.d.Ctx.Done():
		return
	}

	if o.IsShutdown() {
		return
	}

	_, e := o.d.Master.RegisterPublisher(o.d.Ctx, o.c.Topic, o.c.Type.Name(), o.d.SlaveURI())
	if e != nil {
		o.logger().Entry(loglvl.ErrorLevel, "publisher registration failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, e).Log()
		o.e.fireError(ErrorRegister.Error(e))
		return
	}

	// a shutdown raced the registration: the response is discarded
	if !o.sta.CompareAndSwap(StateRegistering, StateRegistered) {
		return
	}

	o.logger().Entry(loglvl.InfoLevel, "publisher registered").FieldAdd("topic", o.c.Topic).Log()
	o.e.fireRegistered()
}

func (o *pub) Topic() string {
	return o.c.Topic
}

func (o *pub) Type() msgs.MessageType {
	return o.c.Type
}

func (o *pub) IsLatching() bool {
	return o.c.Latching
}

func (o *pub) IsShutdown() bool {
	return o.sta.Load() == StateShutdown
}

func (o *pub) OnRegistered(fct func()) {
	o.e.onRegistered(fct)
}

func (o *pub) OnConnect(fct func(string)) {
	o.e.onConnect(fct)
}

func (o *pub) OnDisconnect(fct func(string)) {
	o.e.onDisconnect(fct)
}

func (o *pub) OnError(fct func(error)) {
	o.e.onError(fct)
}

func (o *pub) Publish(msg interface{}) liberr.Error {
	if o.IsShutdown() {
		return ErrorShutdown.Error(nil)
	}

	o.d.Spin.Ping(o.sid, msg)
	return nil
}

// drain serializes every queued message once and writes the framed buffer to
// each streaming peer and the chunked datagrams to each datagram peer.
func (o *pub) drain(items []interface{}) {
	for _, i := range items {
		if o.IsShutdown() {
			return
		}

		var msg = i

		if r, k := o.c.Type.(msgs.Normalizer); k {
			msg = r.Resolve(msg)
		}

		b, err := o.c.Type.Serialize(msg)
		if err != nil {
			o.logger().Entry(loglvl.ErrorLevel, "message serialization failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, err).Log()
			o.e.fireError(ErrorSerialize.Error(err))
			return
		}

		o.send(b)
	}
}

func (o *pub) send(b []byte) {
	var (
		f    = wire.Frame(b)
		drop []string
	)

	o.m.Lock()

	for a, s := range o.sck {
		if _, err := s.c.Write(f); err != nil {
			drop = append(drop, a)
		}
	}

	for _, a := range drop {
		if s, k := o.sck[a]; k {
			_ = s.c.Close()
			delete(o.sck, a)
		}
	}

	if o.c.Latching {
		o.lst = append([]byte(nil), b...)
	}

	var id = uint8(o.cnt.Add(1) - 1)

	for cid, u := range o.udp {
		pkts, e := wire.Chunk(cid, id, b, u.size)
		if e != nil {
			continue
		}

		for _, p := range pkts {
			_ = o.d.UDPWrite(p, u.host, u.port)
		}
	}

	o.m.Unlock()

	o.nbm.Add(1)
	o.nbb.Add(uint64(len(b)))

	for _, a := range drop {
		o.e.fireDisconnect(a)
	}
}

func (o *pub) HandleStreamPeer(conn net.Conn, hdr wire.Header) {
	if o.IsShutdown() {
		_ = conn.Close()
		return
	}

	if e := wire.ValidateSubscriber(hdr, o.c.Topic, o.c.Type.Name(), o.c.Type.MD5Sum()); e != nil {
		o.logger().Entry(loglvl.WarnLevel, "subscriber header rejected").FieldAdd("topic", o.c.Topic).ErrorAdd(true, e).Log()
		_, _ = conn.Write(wire.ErrorHeader(e.Error()))
		_ = conn.Close()
		return
	}

	var rep = wire.Header{
		wire.KeyCallerID:   o.d.Master.CallerID(),
		wire.KeyMD5Sum:     o.c.Type.MD5Sum(),
		wire.KeyType:       o.c.Type.Name(),
		wire.KeyDefinition: o.c.Type.Definition(),
	}

	if o.c.Latching {
		rep[wire.KeyLatching] = "1"
	} else {
		rep[wire.KeyLatching] = "0"
	}

	if _, err := conn.Write(rep.Encode()); err != nil {
		_ = conn.Close()
		return
	}

	if o.c.TCPNoDelay || hdr.Flag(wire.KeyNoDelay) {
		if t, k := conn.(*net.TCPConn); k {
			_ = t.SetNoDelay(true)
		}
	}

	var a = conn.RemoteAddr().String()

	o.m.Lock()

	// the latched message goes out before anything published later
	if o.c.Latching && o.lst != nil {
		if _, err := conn.Write(wire.Frame(o.lst)); err != nil {
			o.m.Unlock()
			_ = conn.Close()
			return
		}
	}

	o.sck[a] = &streamSub{
		c: conn,
		i: hdr[wire.KeyCallerID],
	}

	o.m.Unlock()

	go o.watch(a, conn)

	o.logger().Entry(loglvl.InfoLevel, "subscriber connected").FieldAdd("topic", o.c.Topic).FieldAdd("peer", a).Log()
	o.e.fireConnect(a)
}

// watch blocks on the peer socket to observe its close; a publisher side
// socket never receives payload after the handshake.
func (o *pub) watch(addr string, conn net.Conn) {
	var b [256]byte

	for {
		if _, err := conn.Read(b[:]); err != nil {
			break
		}
	}

	o.m.Lock()
	s, k := o.sck[addr]
	if k {
		delete(o.sck, addr)
	}
	o.m.Unlock()

	if k {
		_ = s.c.Close()
		o.e.fireDisconnect(addr)
	}
}

func (o *pub) AddDgramPeer(connID uint32, host string, port, dgramSize int) {
	if o.IsShutdown() {
		return
	}

	o.m.Lock()
	o.udp[connID] = &dgramSub{
		host: host,
		port: port,
		size: dgramSize,
	}
	o.m.Unlock()

	o.e.fireConnect(udpPeerName(host, port))
}

func (o *pub) RemoveDgramPeer(connID uint32) {
	o.m.Lock()
	u, k := o.udp[connID]
	if k {
		delete(o.udp, connID)
	}
	o.m.Unlock()

	if k {
		o.e.fireDisconnect(udpPeerName(u.host, u.port))
	}
}

func (o *pub) NumSubscribers() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.sck) + len(o.udp)
}

func (o *pub) Connections() []ConnInfo {
	o.m.Lock()
	defer o.m.Unlock()

	var (
		res = make([]ConnInfo, 0, len(o.sck)+len(o.udp))
		id  int
	)

	for a := range o.sck {
		res = append(res, ConnInfo{
			ID:        id,
			PeerURI:   a,
			Direction: "o",
			Transport: "TCPROS",
			Topic:     o.c.Topic,
			Connected: true,
		})
		id++
	}

	for _, u := range o.udp {
		res = append(res, ConnInfo{
			ID:        id,
			PeerURI:   udpPeerName(u.host, u.port),
			Direction: "o",
			Transport: "UDPROS",
			Topic:     o.c.Topic,
			Connected: true,
		})
		id++
	}

	return res
}

func (o *pub) Stats() Stats {
	return Stats{
		Messages: o.nbm.Load(),
		Bytes:    o.nbb.Load(),
	}
}

func (o *pub) Retain() int {
	return int(o.ref.Add(1))
}

func (o *pub) Release() int {
	return int(o.ref.Add(-1))
}

func (o *pub) Shutdown() {
	if o.sta.Swap(StateShutdown) == StateShutdown {
		return
	}

	o.d.Spin.Disconnect(o.sid)

	o.m.Lock()
	var conns = make([]net.Conn, 0, len(o.sck))
	for _, s := range o.sck {
		conns = append(conns, s.c)
	}
	o.sck = make(map[string]*streamSub)
	o.udp = make(map[uint32]*dgramSub)
	o.m.Unlock()

	for _, c := range conns {
		if err := libsck.ErrorFilter(c.Close()); err != nil {
			o.logger().Entry(loglvl.DebugLevel, "subscriber socket close").FieldAdd("topic", o.c.Topic).ErrorAdd(true, err).Log()
		}
	}

	if e := o.d.Master.UnregisterPublisher(o.d.Ctx, o.c.Topic, o.d.SlaveURI(), master.Options{MaxAttempts: 1}); e != nil {
		o.logger().Entry(loglvl.WarnLevel, "publisher unregister failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, e).Log()
	}

	o.logger().Entry(loglvl.InfoLevel, "publisher shut down").FieldAdd("topic", o.c.Topic).Log()
}

func udpPeerName(host string, port int) string {
	return "udp://" + net.JoinHostPort(host, strconv.Itoa(port))
}
