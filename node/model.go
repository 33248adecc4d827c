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

package node

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/golib/socket"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/names"
	"github.com/nabbar/rosnet/service"
	"github.com/nabbar/rosnet/slave"
	"github.com/nabbar/rosnet/spinner"
	"github.com/nabbar/rosnet/topic"
	"github.com/nabbar/rosnet/wire"
)

// shutdownGrace bounds the close of each listener on shutdown.
const shutdownGrace = 200 * time.Millisecond

type nod struct {
	m sync.Mutex
	c Config
	l liblog.FuncLog

	r names.Resolver
	d master.Client
	s slave.Server
	p slave.Caller
	w spinner.Spinner

	x context.Context
	n context.CancelFunc

	tl net.Listener
	uc *net.UDPConn

	rdy chan struct{}

	mp map[string]topic.Publisher
	ms map[string]topic.Subscriber
	mv map[string]service.Server

	cid atomic.Uint32 // datagram connection id allocator
	dwn atomic.Bool
	sig chan os.Signal

	evm sync.Mutex
	evf []func()
}

// New brings up a node: the three listeners bind, the directory is contacted
// within the configured timeout, and the instance is ready when it returns.
// A failed directory contact shuts the node down and reports
// ErrorShutdownDuringInit.
func New(ctx context.Context, cfg Config, fct liblog.FuncLog) (Node, liberr.Error) {
	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	r, e := names.NewResolver(cfg.Name, cfg.Namespace, cfg.Remaps)
	if e != nil {
		return nil, e
	}

	d, e := master.New(cfg.MasterURI, r.NodeName(), fct)
	if e != nil {
		return nil, e
	}

	if ctx == nil {
		ctx = context.Background()
	}

	o := &nod{
		c:   cfg,
		l:   fct,
		r:   r,
		d:   d,
		p:   slave.NewCaller(fct),
		w:   spinner.New(spinner.DefaultPeriod, fct),
		rdy: make(chan struct{}),
		mp:  make(map[string]topic.Publisher),
		ms:  make(map[string]topic.Subscriber),
		mv:  make(map[string]service.Server),
	}

	o.x, o.n = context.WithCancel(ctx)

	if e = o.listen(); e != nil {
		o.Shutdown()
		return nil, e
	}

	close(o.rdy)
	o.w.Start(o.x)

	if e = o.contactMaster(); e != nil {
		o.Shutdown()
		return nil, ErrorShutdownDuringInit.Error(e)
	}

	o.logger().Entry(loglvl.InfoLevel, "node ready").
		FieldAdd("node", o.r.NodeName()).
		FieldAdd("slave", o.SlaveURI()).
		FieldAdd("tcp", o.TCPPort()).
		FieldAdd("udp", o.UDPPort()).Log()

	return o, nil
}

func (o *nod) logger() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

// listen binds the slave endpoint, the stream listener and the datagram
// socket; the node is not ready until all three resolved their ports.
func (o *nod) listen() liberr.Error {
	var e liberr.Error

	if o.s, e = slave.NewServer(o, o.c.BindAddr, o.c.XMLRPCPort, o.l); e != nil {
		return e
	}

	if e = o.s.Listen(o.x); e != nil {
		return ErrorListen.Error(e)
	}

	tl, err := net.Listen(libptc.NetworkTCP.Code(), net.JoinHostPort(o.c.BindAddr, strconv.Itoa(o.c.TCPPort)))
	if err != nil {
		return ErrorListen.Error(err)
	}

	o.tl = tl

	ua, err := net.ResolveUDPAddr(libptc.NetworkUDP.Code(), net.JoinHostPort(o.c.BindAddr, strconv.Itoa(o.c.UDPPort)))
	if err != nil {
		return ErrorListen.Error(err)
	}

	uc, err := net.ListenUDP(libptc.NetworkUDP.Code(), ua)
	if err != nil {
		return ErrorListen.Error(err)
	}

	o.uc = uc

	go o.acceptLoop()
	go o.dgramLoop()

	return nil
}

// contactMaster verifies the directory is reachable, retrying within the
// configured timeout; a zero timeout tries once.
func (o *nod) contactMaster() liberr.Error {
	var opt master.Options

	if t := o.c.InitTimeout.Time(); t > 0 {
		opt.Timeout = t
	} else {
		opt.MaxAttempts = 1
	}

	_, e := o.d.GetUri(o.x, opt)
	return e
}

func (o *nod) Name() string {
	return o.r.NodeName()
}

func (o *nod) Resolver() names.Resolver {
	return o.r
}

func (o *nod) Master() master.Client {
	return o.d
}

func (o *nod) SlaveURI() string {
	return o.s.URI(o.c.Host)
}

func (o *nod) TCPPort() int {
	if o.tl == nil {
		return 0
	}

	return o.tl.Addr().(*net.TCPAddr).Port
}

func (o *nod) UDPPort() int {
	if o.uc == nil {
		return 0
	}

	return o.uc.LocalAddr().(*net.UDPAddr).Port
}

func (o *nod) IsShutdown() bool {
	return o.dwn.Load()
}

// trapSignals shuts the node down on interrupt or termination; Shutdown
// detaches the handler.
func (o *nod) trapSignals() {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-o.x.Done():
		case <-o.sig:
			o.Shutdown()
		}
	}()
}

func (o *nod) OnShutdown(fct func()) {
	if fct == nil {
		return
	}

	o.evm.Lock()
	defer o.evm.Unlock()
	o.evf = append(o.evf, fct)
}

// acceptLoop owns the stream listener: the first record of every accepted
// connection is a header routed on its topic or service key.
func (o *nod) acceptLoop() {
	for {
		c, err := o.tl.Accept()
		if err != nil {
			return
		}

		go o.handshake(c)
	}
}

func (o *nod) handshake(c net.Conn) {
	var (
		d = wire.NewDeframer()
		b [4096]byte
	)

	o.logger().Entry(loglvl.DebugLevel, "inbound stream connection").
		FieldAdd("state", libsck.ConnectionNew.String()).
		FieldAdd("remote", c.RemoteAddr().String()).Log()

	for {
		n, err := c.Read(b[:])
		if err != nil {
			_ = c.Close()
			return
		}

		r := d.Feed(b[:n])
		if len(r) == 0 {
			continue
		}

		h, e := wire.ParseHeader(r[0].Body)
		if e != nil {
			o.logger().Entry(loglvl.WarnLevel, "inbound header rejected").ErrorAdd(true, e).Log()
			_, _ = c.Write(wire.ErrorHeader(e.Error()))
			_ = c.Close()
			return
		}

		if t, k := h[wire.KeyTopic]; k {
			o.m.Lock()
			p := o.mp[t]
			o.m.Unlock()

			if p == nil {
				o.logger().Entry(loglvl.WarnLevel, "inbound subscriber for unknown topic").FieldAdd("topic", t).Log()
				_, _ = c.Write(wire.ErrorHeader(ErrorTopicUnknown.Error(nil).Error()))
				_ = c.Close()
				return
			}

			p.HandleStreamPeer(c, h)
			return
		}

		if s, k := h[wire.KeyService]; k {
			o.m.Lock()
			v := o.mv[s]
			o.m.Unlock()

			if v == nil {
				o.logger().Entry(loglvl.WarnLevel, "inbound client for unknown service").FieldAdd("service", s).Log()
				_, _ = c.Write(wire.ErrorHeader(ErrorServiceUnknown.Error(nil).Error()))
				_ = c.Close()
				return
			}

			v.HandleClient(c, d, h, r[1:])
			return
		}

		o.logger().Entry(loglvl.WarnLevel, "inbound header carries neither topic nor service").
			FieldAdd("state", libsck.ConnectionClose.String()).
			FieldAdd("remote", c.RemoteAddr().String()).Log()
		_ = c.Close()
		return
	}
}

// dgramLoop owns the datagram socket and routes every packet to the
// subscriber endpoint holding its connection id.
func (o *nod) dgramLoop() {
	var b = make([]byte, 65536)

	for {
		n, _, err := o.uc.ReadFromUDP(b)
		if err != nil {
			return
		}

		h, pay, e := wire.ParseDgram(b[:n])
		if e != nil {
			continue
		}

		o.m.Lock()
		var dst topic.Subscriber
		for _, s := range o.ms {
			if s.ConnID() == h.ConnID {
				dst = s
				break
			}
		}
		o.m.Unlock()

		if dst != nil {
			dst.HandleDgram(h, pay)
		}
	}
}

func (o *nod) udpWrite(b []byte, host string, port int) error {
	a, err := net.ResolveUDPAddr(libptc.NetworkUDP.Code(), net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}

	_, err = o.uc.WriteToUDP(b, a)
	return err
}

func (o *nod) topicDeps() topic.Deps {
	return topic.Deps{
		Master:   o.d,
		Caller:   o.p,
		Spin:     o.w,
		Log:      o.l,
		Ctx:      o.x,
		Ready:    o.rdy,
		Host:     o.c.Host,
		SlaveURI: o.SlaveURI,
		UDPPort:  o.UDPPort,
		UDPWrite: o.udpWrite,
	}
}

func (o *nod) serviceDeps() service.Deps {
	return service.Deps{
		Master:   o.d,
		Log:      o.l,
		Ctx:      o.x,
		Ready:    o.rdy,
		Host:     o.c.Host,
		SlaveURI: o.SlaveURI,
		TCPPort:  o.TCPPort,
	}
}

func (o *nod) Shutdown() {
	if o.dwn.Swap(true) {
		return
	}

	o.evm.Lock()
	l := append([]func(){}, o.evf...)
	o.evm.Unlock()

	for _, f := range l {
		f()
	}

	o.m.Lock()
	var (
		pubs = make([]topic.Publisher, 0, len(o.mp))
		subs = make([]topic.Subscriber, 0, len(o.ms))
		svcs = make([]service.Server, 0, len(o.mv))
	)

	for _, p := range o.mp {
		pubs = append(pubs, p)
	}
	for _, s := range o.ms {
		subs = append(subs, s)
	}
	for _, v := range o.mv {
		svcs = append(svcs, v)
	}

	o.mp = make(map[string]topic.Publisher)
	o.ms = make(map[string]topic.Subscriber)
	o.mv = make(map[string]service.Server)
	o.m.Unlock()

	// unregister before the context dies so each endpoint gets its single
	// attempt at the directory
	for _, p := range pubs {
		p.Shutdown()
	}
	for _, s := range subs {
		s.Shutdown()
	}
	for _, v := range svcs {
		v.Shutdown()
	}

	o.p.Shutdown()
	o.w.Stop()

	if o.s != nil {
		o.s.Shutdown(shutdownGrace)
	}

	if o.tl != nil {
		if err := libsck.ErrorFilter(o.tl.Close()); err != nil {
			o.logger().Entry(loglvl.DebugLevel, "stream listener close").ErrorAdd(true, err).Log()
		}
	}

	if o.uc != nil {
		if err := libsck.ErrorFilter(o.uc.Close()); err != nil {
			o.logger().Entry(loglvl.DebugLevel, "datagram socket close").ErrorAdd(true, err).Log()
		}
	}

	if o.sig != nil {
		signal.Stop(o.sig)
	}

	if o.n != nil {
		o.n()
	}

	o.logger().Entry(loglvl.InfoLevel, "node shut down").FieldAdd("node", o.r.NodeName()).Log()
}
