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
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/golib/socket"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/slave"
	"github.com/nabbar/rosnet/wire"
)

type pubConn struct {
	uri string
	trs string
	con net.Conn       // nil on datagram
	dfr *wire.Deframer // nil on datagram
}

// slot is the single in flight datagram reassembly per endpoint.
type slot struct {
	connID uint32
	msgID  uint8
	expect uint8
	next   uint8
	buf    []byte
}

type inMsg struct {
	b   []byte
	uri string
}

type sub struct {
	m sync.Mutex
	c SubscriberConfig
	d Deps
	e events

	sta libatm.Value[uint8]
	ref atomic.Int32
	cid atomic.Uint32 // peer assigned datagram connection id

	pnd map[string]*pubConn
	val map[string]*pubConn
	ras *slot
	uu  string // uri of the datagram publisher

	nbm atomic.Uint64
	nbb atomic.Uint64
	drp atomic.Uint64

	sid string
}

// NewSubscriber builds the subscriber endpoint, registers its spinner queue
// and starts the directory registration; publishers listed in the directory
// reply are connected as a publisher update.
func NewSubscriber(cfg SubscriberConfig, dep Deps) (Subscriber, liberr.Error) {
	if len(cfg.Topic) == 0 || cfg.Type == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if dep.Master == nil || dep.Spin == nil || dep.Caller == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	if len(cfg.Transports) == 0 {
		cfg.Transports = []string{slave.ProtocolTCP}
	}

	o := &sub{
		c:   cfg,
		d:   dep,
		pnd: make(map[string]*pubConn),
		val: make(map[string]*pubConn),
		sid: "sub:" + cfg.Topic,
	}

	o.sta = libatm.NewValue[uint8]()
	o.sta.Store(StateRegistering)
	o.d.Spin.AddClient(o.sid, cfg.QueueSize, cfg.Throttle, o.drain)

	go o.register()

	return o, nil
}

func (o *sub) logger() liblog.Logger {
	if o.d.Log != nil {
		if l := o.d.Log(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *sub) register() {
	select {
	case <-o.d.Ready:
	case <-o.d.Ctx.Done():
		return
	}

	if o.IsShutdown() {
		return
	}

	pubs, e := o.d.Master.RegisterSubscriber(o.d.Ctx, o.c.Topic, o.c.Type.Name(), o.d.SlaveURI())
	if e != nil {
		o.logger().Entry(loglvl.ErrorLevel, "subscriber registration failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, e).Log()
		o.e.fireError(ErrorRegister.Error(e))
		return
	}

	if !o.sta.CompareAndSwap(StateRegistering, StateRegistered) {
		return
	}

	o.logger().Entry(loglvl.InfoLevel, "subscriber registered").FieldAdd("topic", o.c.Topic).Log()
	o.e.fireRegistered()

	if len(pubs) > 0 {
		o.HandlePublisherUpdate(pubs)
	}
}

func (o *sub) Topic() string {
	return o.c.Topic
}

func (o *sub) Type() msgs.MessageType {
	return o.c.Type
}

func (o *sub) IsShutdown() bool {
	return o.sta.Load() == StateShutdown
}

func (o *sub) OnRegistered(fct func()) {
	o.e.onRegistered(fct)
}

func (o *sub) OnConnect(fct func(string)) {
	o.e.onConnect(fct)
}

func (o *sub) OnDisconnect(fct func(string)) {
	o.e.onDisconnect(fct)
}

func (o *sub) OnMessage(fct func(interface{}, int, string)) {
	o.e.onMessage(fct)
}

func (o *sub) OnError(fct func(error)) {
	o.e.onError(fct)
}

func (o *sub) ConnID() uint32 {
	return o.cid.Load()
}

func (o *sub) NumPublishers() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.val)
}

// HandlePublisherUpdate diffs the full URI set: unknown URIs start a topic
// request, known URIs missing from the set disconnect.
func (o *sub) HandlePublisherUpdate(uris []string) {
	if o.IsShutdown() {
		return
	}

	var set = make(map[string]bool, len(uris))
	for _, u := range uris {
		if len(u) > 0 {
			set[u] = true
		}
	}

	var (
		add  []string
		gone []*pubConn
	)

	o.m.Lock()

	for u := range set {
		if _, k := o.pnd[u]; k {
			continue
		}
		if _, k := o.val[u]; k {
			continue
		}

		o.pnd[u] = &pubConn{uri: u}
		add = append(add, u)
	}

	for u, p := range o.val {
		if !set[u] {
			delete(o.val, u)
			gone = append(gone, p)
		}
	}

	for u := range o.pnd {
		if !set[u] {
			delete(o.pnd, u)
		}
	}

	o.m.Unlock()

	for _, p := range gone {
		o.drop(p)
	}

	for _, u := range add {
		go o.connect(u)
	}
}

func (o *sub) drop(p *pubConn) {
	if p.con != nil {
		if err := libsck.ErrorFilter(p.con.Close()); err != nil {
			o.logger().Entry(loglvl.DebugLevel, "publisher socket close").FieldAdd("topic", o.c.Topic).ErrorAdd(true, err).Log()
		}
	}

	o.e.fireDisconnect(p.uri)
}

// header returns the connection header this subscriber presents.
func (o *sub) header() wire.Header {
	return wire.Header{
		wire.KeyCallerID: o.d.Master.CallerID(),
		wire.KeyTopic:    o.c.Topic,
		wire.KeyType:     o.c.Type.Name(),
		wire.KeyMD5Sum:   o.c.Type.MD5Sum(),
	}
}

func (o *sub) candidates() []slave.ProtocolRequest {
	var res = make([]slave.ProtocolRequest, 0, len(o.c.Transports))

	for _, t := range o.c.Transports {
		switch t {
		case slave.ProtocolTCP:
			res = append(res, slave.ProtocolRequest{Name: slave.ProtocolTCP})
		case slave.ProtocolUDP:
			res = append(res, slave.ProtocolRequest{
				Name:      slave.ProtocolUDP,
				Header:    o.header().Encode(),
				Host:      o.d.Host,
				Port:      o.d.UDPPort(),
				DgramSize: o.c.DgramSize,
			})
		}
	}

	return res
}

// connect negotiates the transport with one publisher and attaches it.
func (o *sub) connect(uri string) {
	res, e := o.d.Caller.RequestTopic(o.d.Ctx, uri, o.d.Master.CallerID(), o.c.Topic, o.candidates())
	if e != nil {
		o.forget(uri)
		o.logger().Entry(loglvl.WarnLevel, "topic request failed").FieldAdd("topic", o.c.Topic).FieldAdd("peer", uri).ErrorAdd(true, e).Log()
		o.e.fireError(e)
		return
	}

	switch res.Name {
	case slave.ProtocolTCP:
		o.connectStream(uri, res)
	case slave.ProtocolUDP:
		o.connectDgram(uri, res)
	default:
		o.forget(uri)
		o.e.fireError(slave.ErrorProtocolUnknown.Error(nil))
	}
}

func (o *sub) forget(uri string) {
	o.m.Lock()
	defer o.m.Unlock()

	delete(o.pnd, uri)
}

// validate moves the peer from pending to validated; exactly one connection
// event fires per transition. It reports false when the peer was forgotten
// or the endpoint shut down meanwhile.
func (o *sub) validate(uri string, p *pubConn) bool {
	o.m.Lock()

	if _, k := o.pnd[uri]; !k || o.IsShutdown() {
		o.m.Unlock()
		return false
	}

	delete(o.pnd, uri)
	o.val[uri] = p

	o.m.Unlock()

	o.e.fireConnect(uri)
	return true
}

func (o *sub) connectStream(uri string, res slave.ProtocolResponse) {
	con, err := net.Dial(libptc.NetworkTCP.Code(), net.JoinHostPort(res.Host, strconv.Itoa(res.Port)))
	if err != nil {
		o.forget(uri)
		o.logger().Entry(loglvl.WarnLevel, "publisher dial failed").FieldAdd("topic", o.c.Topic).FieldAdd("peer", uri).ErrorAdd(true, err).Log()
		o.e.fireError(ErrorConnect.Error(err))
		return
	}

	if _, err = con.Write(o.header().Encode()); err != nil {
		_ = con.Close()
		o.forget(uri)
		o.e.fireError(ErrorConnect.Error(err))
		return
	}

	p := &pubConn{
		uri: uri,
		trs: slave.ProtocolTCP,
		con: con,
		dfr: wire.NewDeframer(),
	}

	go o.read(uri, p)
}

// read runs the socket loop of one streaming publisher: the first record is
// the publisher header, every further record is one message.
func (o *sub) read(uri string, p *pubConn) {
	var (
		b     [4096]byte
		first = true
	)

	for {
		n, err := p.con.Read(b[:])
		if err != nil {
			break
		}

		for _, r := range p.dfr.Feed(b[:n]) {
			if first {
				first = false

				h, e := wire.ParseHeader(r.Body)
				if e == nil {
					e = wire.ValidatePublisher(h, o.c.Type.Name(), o.c.Type.MD5Sum())
				}

				if e != nil {
					o.logger().Entry(loglvl.WarnLevel, "publisher header rejected").FieldAdd("topic", o.c.Topic).FieldAdd("peer", uri).ErrorAdd(true, e).Log()
					_, _ = p.con.Write(wire.ErrorHeader(e.Error()))
					_ = p.con.Close()
					o.forget(uri)
					o.e.fireError(ErrorHandshake.Error(e))
					return
				}

				if !o.validate(uri, p) {
					_ = p.con.Close()
					return
				}

				continue
			}

			o.dispatch(r.Body, uri)
		}
	}

	if e := p.dfr.Close(); e != nil {
		o.logger().Entry(loglvl.DebugLevel, "publisher stream truncated").FieldAdd("topic", o.c.Topic).FieldAdd("peer", uri).Log()
	}

	o.m.Lock()
	_, k := o.val[uri]
	if k {
		delete(o.val, uri)
	}
	delete(o.pnd, uri)
	o.m.Unlock()

	_ = p.con.Close()

	if k {
		o.e.fireDisconnect(uri)
	}
}

func (o *sub) connectDgram(uri string, res slave.ProtocolResponse) {
	if len(res.Header) > 4 {
		h, e := wire.ParseHeader(res.Header[4:])
		if e == nil {
			e = wire.ValidatePublisher(h, o.c.Type.Name(), o.c.Type.MD5Sum())
		}

		if e != nil {
			o.forget(uri)
			o.e.fireError(ErrorHandshake.Error(e))
			return
		}
	}

	o.cid.Store(res.ConnID)

	p := &pubConn{
		uri: uri,
		trs: slave.ProtocolUDP,
	}

	o.m.Lock()
	o.uu = uri
	o.m.Unlock()

	o.validate(uri, p)
}

// HandleDgram feeds one datagram of this endpoint's connection id. A single
// message reassembles at a time; any packet not matching the slot in flight
// is discarded silently.
func (o *sub) HandleDgram(h wire.DgramHeader, payload []byte) {
	if o.IsShutdown() {
		return
	}

	o.m.Lock()
	var uri = o.uu
	o.m.Unlock()

	switch h.OpCode {
	case wire.OpData0:
		if h.BlockCount <= 1 {
			o.dispatch(append([]byte(nil), payload...), uri)
			return
		}

		o.m.Lock()
		o.ras = &slot{
			connID: h.ConnID,
			msgID:  h.MsgID,
			expect: h.BlockCount,
			next:   1,
			buf:    append([]byte(nil), payload...),
		}
		o.m.Unlock()

	case wire.OpDataN:
		o.m.Lock()

		r := o.ras
		if r == nil || r.connID != h.ConnID || r.msgID != h.MsgID || r.next != h.BlockNr {
			o.m.Unlock()
			o.drp.Add(1)
			return
		}

		r.buf = append(r.buf, payload...)
		r.next++

		if r.next == r.expect {
			o.ras = nil
			o.m.Unlock()
			o.dispatch(r.buf, uri)
			return
		}

		o.m.Unlock()

	default:
		// PING and ERR are reserved
	}
}

func (o *sub) dispatch(b []byte, uri string) {
	o.nbm.Add(1)
	o.nbb.Add(uint64(len(b)))

	o.d.Spin.Ping(o.sid, inMsg{b: b, uri: uri})
}

func (o *sub) drain(items []interface{}) {
	for _, i := range items {
		if o.IsShutdown() {
			return
		}

		m, k := i.(inMsg)
		if !k {
			continue
		}

		v, err := o.c.Type.Deserialize(m.b)
		if err != nil {
			o.logger().Entry(loglvl.ErrorLevel, "message deserialization failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, err).Log()
			o.e.fireError(ErrorDeserialize.Error(err))
			continue
		}

		o.e.fireMessage(v, len(m.b), m.uri)
	}
}

func (o *sub) Connections() []ConnInfo {
	o.m.Lock()
	defer o.m.Unlock()

	var (
		res = make([]ConnInfo, 0, len(o.val))
		id  int
	)

	for u, p := range o.val {
		res = append(res, ConnInfo{
			ID:        id,
			PeerURI:   u,
			Direction: "i",
			Transport: p.trs,
			Topic:     o.c.Topic,
			Connected: true,
		})
		id++
	}

	return res
}

func (o *sub) Stats() Stats {
	return Stats{
		Messages: o.nbm.Load(),
		Bytes:    o.nbb.Load(),
		Drops:    o.drp.Load(),
	}
}

func (o *sub) Retain() int {
	return int(o.ref.Add(1))
}

func (o *sub) Release() int {
	return int(o.ref.Add(-1))
}

func (o *sub) Shutdown() {
	if o.sta.Swap(StateShutdown) == StateShutdown {
		return
	}

	o.d.Spin.Disconnect(o.sid)

	o.m.Lock()
	var conns []*pubConn
	for _, p := range o.val {
		conns = append(conns, p)
	}
	for _, p := range o.pnd {
		conns = append(conns, p)
	}
	o.val = make(map[string]*pubConn)
	o.pnd = make(map[string]*pubConn)
	o.ras = nil
	o.m.Unlock()

	for _, p := range conns {
		if p.con != nil {
			if err := libsck.ErrorFilter(p.con.Close()); err != nil {
				o.logger().Entry(loglvl.DebugLevel, "publisher socket close").FieldAdd("topic", o.c.Topic).ErrorAdd(true, err).Log()
			}
		}
	}

	if e := o.d.Master.UnregisterSubscriber(o.d.Ctx, o.c.Topic, o.d.SlaveURI(), master.Options{MaxAttempts: 1}); e != nil {
		o.logger().Entry(loglvl.WarnLevel, "subscriber unregister failed").FieldAdd("topic", o.c.Topic).ErrorAdd(true, e).Log()
	}

	o.logger().Entry(loglvl.InfoLevel, "subscriber shut down").FieldAdd("topic", o.c.Topic).Log()
}
