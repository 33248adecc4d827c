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

package service

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

const (
	stateRegistering uint8 = iota + 1
	stateRegistered
	stateShutdown
)

type srvClient struct {
	c net.Conn
	p bool // persistent
}

type srv struct {
	m sync.Mutex
	c ServerConfig
	d Deps

	sta libatm.Value[uint8]
	ref atomic.Int32

	cl map[string]*srvClient

	reg []func()
	erf []func(error)
	evm sync.Mutex
}

// NewServer builds the service server endpoint and starts the directory
// registration once the node listeners are ready.
func NewServer(cfg ServerConfig, dep Deps) (Server, liberr.Error) {
	if len(cfg.Service) == 0 || cfg.Type == nil || cfg.Handler == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if dep.Master == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	o := &srv{
		c:  cfg,
		d:  dep,
		cl: make(map[string]*srvClient),
	}

	o.sta = libatm.NewValue[uint8]()
	o.sta.Store(stateRegistering)

	go o.register()

	return o, nil
}

func (o *srv) logger() liblog.Logger {
	if o.d.Log != nil {
		if l := o.d.Log(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *srv) register() {
	select {
	case <-o.d.Ready:
	case <-o.d.Ctx.Done():
		return
	}

	if o.IsShutdown() {
		return
	}

	e := o.d.Master.RegisterService(o.d.Ctx, o.c.Service, o.URI(), o.d.SlaveURI())
	if e != nil {
		o.logger().Entry(loglvl.ErrorLevel, "service registration failed").FieldAdd("service", o.c.Service).ErrorAdd(true, e).Log()
		o.fireError(ErrorRegister.Error(e))
		return
	}

	if !o.sta.CompareAndSwap(stateRegistering, stateRegistered) {
		return
	}

	o.logger().Entry(loglvl.InfoLevel, "service registered").FieldAdd("service", o.c.Service).Log()
	o.fireRegistered()
}

func (o *srv) Service() string {
	return o.c.Service
}

func (o *srv) Type() msgs.ServiceType {
	return o.c.Type
}

func (o *srv) URI() string {
	return "rosrpc://" + net.JoinHostPort(o.d.Host, strconv.Itoa(o.d.TCPPort()))
}

func (o *srv) IsShutdown() bool {
	return o.sta.Load() == stateShutdown
}

func (o *srv) NumClients() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.cl)
}

func (o *srv) OnRegistered(fct func()) {
	if fct == nil {
		return
	}

	o.evm.Lock()
	defer o.evm.Unlock()
	o.reg = append(o.reg, fct)
}

func (o *srv) OnError(fct func(error)) {
	if fct == nil {
		return
	}

	o.evm.Lock()
	defer o.evm.Unlock()
	o.erf = append(o.erf, fct)
}

func (o *srv) fireRegistered() {
	o.evm.Lock()
	l := append([]func(){}, o.reg...)
	o.evm.Unlock()

	for _, f := range l {
		f()
	}
}

func (o *srv) fireError(err error) {
	o.evm.Lock()
	l := append([]func(error){}, o.erf...)
	o.evm.Unlock()

	for _, f := range l {
		f(err)
	}
}

func (o *srv) HandleClient(conn net.Conn, dfr *wire.Deframer, hdr wire.Header, extra []wire.Record) {
	if o.IsShutdown() {
		_ = conn.Close()
		return
	}

	if e := wire.ValidateServiceClient(hdr, o.c.Service, o.c.Type.MD5Sum()); e != nil {
		o.logger().Entry(loglvl.WarnLevel, "service client header rejected").FieldAdd("service", o.c.Service).ErrorAdd(true, e).Log()
		_, _ = conn.Write(wire.ErrorHeader(e.Error()))
		_ = conn.Close()
		return
	}

	var rep = wire.Header{
		wire.KeyCallerID: o.d.Master.CallerID(),
		wire.KeyMD5Sum:   o.c.Type.MD5Sum(),
		wire.KeyType:     o.c.Type.Name(),
	}

	if _, err := conn.Write(rep.Encode()); err != nil {
		_ = conn.Close()
		return
	}

	var (
		a = conn.RemoteAddr().String()
		p = hdr.Flag(wire.KeyPersistent)
	)

	o.m.Lock()
	o.cl[a] = &srvClient{
		c: conn,
		p: p,
	}
	o.m.Unlock()

	if dfr == nil {
		dfr = wire.NewDeframer()
	}

	go o.serve(a, conn, dfr, extra, p)
}

// serve runs the request loop of one client: each record is a request; the
// framed reply carries the handler result. A non persistent client closes
// after the first reply.
func (o *srv) serve(addr string, conn net.Conn, d *wire.Deframer, extra []wire.Record, persistent bool) {
	var b [4096]byte

	defer func() {
		o.m.Lock()
		_, k := o.cl[addr]
		if k {
			delete(o.cl, addr)
		}
		o.m.Unlock()

		if err := libsck.ErrorFilter(conn.Close()); err != nil {
			o.logger().Entry(loglvl.DebugLevel, "service client close").FieldAdd("service", o.c.Service).ErrorAdd(true, err).Log()
		}
	}()

	for _, r := range extra {
		if !o.answer(conn, r.Body) {
			return
		}

		if !persistent {
			return
		}
	}

	for {
		n, err := conn.Read(b[:])
		if err != nil {
			return
		}

		for _, r := range d.Feed(b[:n]) {
			if !o.answer(conn, r.Body) {
				return
			}

			if !persistent {
				return
			}
		}
	}
}

// answer decodes one request, runs the handler and writes the framed reply.
// The write is suppressed when the endpoint shut down during the handler.
func (o *srv) answer(conn net.Conn, req []byte) bool {
	v, err := o.c.Type.Request().Deserialize(req)
	if err != nil {
		o.fireError(ErrorDeserialize.Error(err))
		_, _ = conn.Write(wire.FrameServiceReply(false, []byte(err.Error())))
		return false
	}

	res, err := o.c.Handler(v)

	if o.IsShutdown() {
		return false
	}

	if err != nil {
		_, werr := conn.Write(wire.FrameServiceReply(false, []byte(err.Error())))
		return werr == nil
	}

	b, err := o.c.Type.Response().Serialize(res)
	if err != nil {
		o.fireError(ErrorSerialize.Error(err))
		_, _ = conn.Write(wire.FrameServiceReply(false, []byte(err.Error())))
		return false
	}

	_, werr := conn.Write(wire.FrameServiceReply(true, b))
	return werr == nil
}

func (o *srv) Connections() []ConnInfo {
	o.m.Lock()
	defer o.m.Unlock()

	var (
		res = make([]ConnInfo, 0, len(o.cl))
		id  int
	)

	for a := range o.cl {
		res = append(res, ConnInfo{
			ID:        id,
			PeerURI:   a,
			Direction: "i",
			Transport: "TCPROS",
			Topic:     o.c.Service,
			Connected: true,
		})
		id++
	}

	return res
}

func (o *srv) Retain() int {
	return int(o.ref.Add(1))
}

func (o *srv) Release() int {
	return int(o.ref.Add(-1))
}

func (o *srv) Shutdown() {
	if o.sta.Swap(stateShutdown) == stateShutdown {
		return
	}

	o.m.Lock()
	var conns = make([]net.Conn, 0, len(o.cl))
	for _, c := range o.cl {
		conns = append(conns, c.c)
	}
	o.cl = make(map[string]*srvClient)
	o.m.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	if e := o.d.Master.UnregisterService(o.d.Ctx, o.c.Service, o.URI(), master.Options{MaxAttempts: 1}); e != nil {
		o.logger().Entry(loglvl.WarnLevel, "service unregister failed").FieldAdd("service", o.c.Service).ErrorAdd(true, e).Log()
	}

	o.logger().Entry(loglvl.InfoLevel, "service shut down").FieldAdd("service", o.c.Service).Log()
}
