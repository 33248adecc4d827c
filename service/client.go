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
	"errors"
	"net"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/golib/socket"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/wire"
)

type callRes struct {
	v interface{}
	e liberr.Error
}

type call struct {
	req interface{}
	ch  chan callRes
}

type clt struct {
	m sync.Mutex
	c ClientConfig
	d Deps

	q    []*call
	busy bool
	down bool

	sck net.Conn
	dfr *wire.Deframer
	cur net.Conn // socket of the call in flight
}

// NewClient builds a service client; the connection opens lazily on the
// first call.
func NewClient(cfg ClientConfig, dep Deps) (Client, liberr.Error) {
	if len(cfg.Service) == 0 || cfg.Type == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if dep.Master == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	return &clt{
		c: cfg,
		d: dep,
	}, nil
}

func (o *clt) logger() liblog.Logger {
	if o.d.Log != nil {
		if l := o.d.Log(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *clt) Service() string {
	return o.c.Service
}

func (o *clt) Type() msgs.ServiceType {
	return o.c.Type
}

func (o *clt) IsShutdown() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.down
}

func (o *clt) Call(ctx context.Context, req interface{}) (interface{}, liberr.Error) {
	var c = &call{
		req: req,
		ch:  make(chan callRes, 1),
	}

	o.m.Lock()

	if o.down {
		o.m.Unlock()
		return nil, ErrorShutdown.Error(nil)
	}

	o.q = append(o.q, c)

	// overflow displaces the oldest waiting call
	if o.c.MaxQueue > 0 && len(o.q) > o.c.MaxQueue {
		old := o.q[0]
		o.q = o.q[1:]
		old.ch <- callRes{e: ErrorQueueFull.Error(nil)}
	}

	if !o.busy {
		o.busy = true
		go o.worker()
	}

	o.m.Unlock()

	select {
	case r := <-c.ch:
		return r.v, r.e
	case <-ctx.Done():
		return nil, ErrorShutdown.Error(ctx.Err())
	}
}

// worker drains the pending queue one call at a time.
func (o *clt) worker() {
	for {
		o.m.Lock()

		if o.down {
			var rest = o.q
			o.q = nil
			o.busy = false
			o.m.Unlock()

			for _, c := range rest {
				c.ch <- callRes{e: ErrorShutdown.Error(nil)}
			}
			return
		}

		if len(o.q) == 0 {
			o.busy = false
			o.m.Unlock()
			return
		}

		c := o.q[0]
		o.q = o.q[1:]
		o.m.Unlock()

		var r callRes
		r.v, r.e = o.execute(c.req)
		c.ch <- r
	}
}

func (o *clt) socket() (net.Conn, *wire.Deframer, liberr.Error) {
	o.m.Lock()
	if o.sck != nil {
		var (
			s = o.sck
			d = o.dfr
		)
		o.m.Unlock()
		return s, d, nil
	}
	o.m.Unlock()

	uri, e := o.d.Master.LookupService(o.d.Ctx, o.c.Service, master.Options{MaxAttempts: 1, Timeout: o.c.Timeout})
	if e != nil {
		return nil, nil, ErrorLookup.Error(e)
	}

	host, port, e := splitRosRPC(uri)
	if e != nil {
		return nil, nil, e
	}

	con, err := net.Dial(libptc.NetworkTCP.Code(), net.JoinHostPort(host, port))
	if err != nil {
		return nil, nil, ErrorConnect.Error(err)
	}

	var hdr = wire.Header{
		wire.KeyCallerID: o.d.Master.CallerID(),
		wire.KeyService:  o.c.Service,
		wire.KeyMD5Sum:   o.c.Type.MD5Sum(),
		wire.KeyType:     o.c.Type.Name(),
	}

	if o.c.Persistent {
		hdr[wire.KeyPersistent] = "1"
	}

	if _, err = con.Write(hdr.Encode()); err != nil {
		_ = con.Close()
		return nil, nil, ErrorConnect.Error(err)
	}

	dfr := wire.NewDeframer()

	rec, e := readRecord(con, dfr)
	if e != nil {
		_ = con.Close()
		return nil, nil, ErrorHandshake.Error(e)
	}

	rep, e := wire.ParseHeader(rec.Body)
	if e != nil {
		_ = con.Close()
		return nil, nil, ErrorHandshake.Error(e)
	}

	if msg, k := rep[wire.KeyError]; k {
		_ = con.Close()
		return nil, nil, ErrorHandshake.Error(errors.New(msg))
	}

	dfr.SetMode(wire.ModeServiceReply)

	if o.c.Persistent {
		o.m.Lock()
		if o.down {
			o.m.Unlock()
			_ = con.Close()
			return nil, nil, ErrorShutdown.Error(nil)
		}
		o.sck = con
		o.dfr = dfr
		o.m.Unlock()
	}

	return con, dfr, nil
}

func (o *clt) execute(req interface{}) (interface{}, liberr.Error) {
	con, dfr, e := o.socket()
	if e != nil {
		return nil, e
	}

	o.m.Lock()
	if o.down {
		o.m.Unlock()
		_ = con.Close()
		return nil, ErrorShutdown.Error(nil)
	}
	o.cur = con
	o.m.Unlock()

	defer func() {
		o.m.Lock()
		o.cur = nil
		o.m.Unlock()
	}()

	if !o.c.Persistent {
		defer func() {
			if err := libsck.ErrorFilter(con.Close()); err != nil {
				o.logger().Entry(loglvl.DebugLevel, "service socket close").FieldAdd("service", o.c.Service).ErrorAdd(true, err).Log()
			}
		}()
	}

	var msg = req
	if r, k := o.c.Type.Request().(msgs.Normalizer); k {
		msg = r.Resolve(msg)
	}

	b, err := o.c.Type.Request().Serialize(msg)
	if err != nil {
		return nil, ErrorSerialize.Error(err)
	}

	if _, err = con.Write(wire.Frame(b)); err != nil {
		o.dropSocket(con)
		return nil, ErrorSocketClosed.Error(err)
	}

	rec, e := readRecord(con, dfr)
	if e != nil {
		o.dropSocket(con)

		if o.IsShutdown() {
			return nil, ErrorShutdown.Error(e)
		}

		return nil, ErrorSocketClosed.Error(e)
	}

	if !rec.OK {
		return nil, ErrorFailed.Error(errors.New(string(rec.Body)))
	}

	res, err := o.c.Type.Response().Deserialize(rec.Body)
	if err != nil {
		return nil, ErrorDeserialize.Error(err)
	}

	return res, nil
}

func (o *clt) dropSocket(con net.Conn) {
	_ = con.Close()

	o.m.Lock()
	defer o.m.Unlock()

	if o.sck == con {
		o.sck = nil
		o.dfr = nil
	}
}

func (o *clt) Shutdown() {
	o.m.Lock()

	if o.down {
		o.m.Unlock()
		return
	}

	o.down = true

	var (
		s    = o.sck
		c    = o.cur
		rest = o.q
	)

	o.sck = nil
	o.dfr = nil
	o.q = nil

	o.m.Unlock()

	if s != nil {
		_ = s.Close()
	}

	if c != nil && c != s {
		_ = c.Close()
	}

	for _, c := range rest {
		c.ch <- callRes{e: ErrorShutdown.Error(nil)}
	}
}

// readRecord blocks until one whole record is available on the connection.
func readRecord(con net.Conn, dfr *wire.Deframer) (wire.Record, liberr.Error) {
	var b [4096]byte

	for {
		n, err := con.Read(b[:])
		if err != nil {
			return wire.Record{}, wire.ErrorTruncated.Error(err)
		}

		if r := dfr.Feed(b[:n]); len(r) > 0 {
			return r[0], nil
		}
	}
}
