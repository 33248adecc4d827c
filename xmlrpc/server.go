/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

package xmlrpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
)

// HandlerFunc serves one method call. The returned value is encoded as the
// single response value; a returned error becomes a fault.
type HandlerFunc func(ctx context.Context, params []interface{}) (interface{}, error)

// Server is an XML-RPC endpoint over HTTP bound to one TCP port. Methods are
// registered before Listen; an unknown method call returns a fault.
type Server interface {
	// Register binds a method name to its handler.
	Register(method string, fct HandlerFunc)

	// Listen binds the TCP listener and starts serving. It returns once the
	// port is resolved; an ephemeral port (0) is supported.
	Listen(ctx context.Context) liberr.Error

	// Port returns the bound port, zero before Listen.
	Port() int

	// URI returns the http endpoint for the given advertised host.
	URI(host string) string

	// IsRunning reports whether the listener is accepting calls.
	IsRunning() bool

	// Shutdown stops the listener, waiting at most the given grace delay.
	Shutdown(grace time.Duration)
}

type srv struct {
	m sync.RWMutex
	h map[string]HandlerFunc
	a string // bind address
	p int    // resolved port
	s *http.Server
	l liblog.FuncLog
	x context.Context
}

// NewServer builds a Server bound to the given host and port; port zero asks
// the system for an ephemeral one.
func NewServer(bindHost string, port int, fct liblog.FuncLog) Server {
	return &srv{
		m: sync.RWMutex{},
		h: make(map[string]HandlerFunc),
		a: net.JoinHostPort(bindHost, strconv.Itoa(port)),
		l: fct,
	}
}

func (o *srv) logger() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *srv) Register(method string, fct HandlerFunc) {
	o.m.Lock()
	defer o.m.Unlock()

	o.h[method] = fct
}

func (o *srv) handler(method string) HandlerFunc {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.h[method]
}

func (o *srv) Listen(ctx context.Context) liberr.Error {
	o.m.Lock()
	defer o.m.Unlock()

	if o.s != nil {
		return nil
	}

	lis, err := net.Listen(libptc.NetworkTCP.Code(), o.a)
	if err != nil {
		return ErrorServerListen.Error(err)
	}

	o.p = lis.Addr().(*net.TCPAddr).Port
	o.x = ctx
	o.s = &http.Server{
		Handler: o,
	}

	go func() {
		if e := o.s.Serve(lis); e != nil && e != http.ErrServerClosed {
			o.logger().Entry(loglvl.ErrorLevel, "xmlrpc server stopped").ErrorAdd(true, e).Log()
		}
	}()

	o.logger().Entry(loglvl.DebugLevel, "xmlrpc server listening").FieldAdd("addr", lis.Addr().String()).Log()
	return nil
}

func (o *srv) Port() int {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.p
}

func (o *srv) URI(host string) string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, strconv.Itoa(o.Port())))
}

func (o *srv) IsRunning() bool {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.s != nil
}

func (o *srv) Shutdown(grace time.Duration) {
	o.m.Lock()
	s := o.s
	o.s = nil
	o.m.Unlock()

	if s == nil {
		return
	}

	ctx, cnl := context.WithTimeout(context.Background(), grace)
	defer cnl()

	if e := s.Shutdown(ctx); e != nil {
		_ = s.Close()
	}
}

func (o *srv) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		_ = r.Body.Close()
	}()

	method, params, err := DecodeCall(r.Body)
	if err != nil {
		o.writeFault(w, -1, err.Error())
		return
	}

	fct := o.handler(method)
	if fct == nil {
		o.logger().Entry(loglvl.WarnLevel, "xmlrpc method not registered").FieldAdd("method", method).Log()
		o.writeFault(w, -1, ErrorMethodUnknown.Error(nil).Error())
		return
	}

	var ctx context.Context
	if o.x != nil {
		ctx = o.x
	} else {
		ctx = r.Context()
	}

	res, e := fct(ctx, params)
	if e != nil {
		o.writeFault(w, -1, e.Error())
		return
	}

	s, fe := EncodeResponse(res)
	if fe != nil {
		o.writeFault(w, -1, fe.Error())
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(s))
}

func (o *srv) writeFault(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(EncodeFault(code, msg)))
}
