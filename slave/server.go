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

package slave

import (
	"context"
	"errors"
	"os"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/xmlrpc"
)

// Handler is the node side of the slave API. The server adapts each RPC to
// one call and wraps the result into the status triple.
type Handler interface {
	// RequestTopic picks the first supported candidate for the given topic
	// and returns its descriptor.
	RequestTopic(callerID, topic string, protocols []ProtocolRequest) (ProtocolResponse, liberr.Error)

	// PublisherUpdate hands the full publisher URI set for a subscribed
	// topic; the subscriber endpoint computes the diff.
	PublisherUpdate(callerID, topic string, uris []string) liberr.Error

	// ParamUpdate notifies a subscribed parameter change.
	ParamUpdate(callerID, key string, value interface{}) liberr.Error

	// Publications returns [topic, type] pairs for every advertised topic.
	Publications() [][2]string

	// Subscriptions returns [topic, type] pairs for every subscribed topic.
	Subscriptions() [][2]string

	// BusInfo returns per connection records
	// [id, peer-uri, direction, transport, topic, connected].
	BusInfo() [][]interface{}

	// BusStats returns the pub/sub statistics triple.
	BusStats() []interface{}

	// MasterURI returns the directory endpoint this node registered with.
	MasterURI() string

	// ShutdownRequested asks the node to terminate, carrying the caller's
	// reason.
	ShutdownRequested(callerID, msg string)
}

// Server is the slave RPC endpoint of one node.
type Server interface {
	// Listen binds the endpoint; an ephemeral port is resolved on return.
	Listen(ctx context.Context) liberr.Error

	// Port returns the bound port, zero before Listen.
	Port() int

	// URI returns the endpoint for the given advertised host.
	URI(host string) string

	// Shutdown stops the endpoint, waiting at most the given grace delay.
	Shutdown(grace time.Duration)
}

type srv struct {
	s xmlrpc.Server
	h Handler
}

// NewServer builds the slave Server bound to the given host and port,
// dispatching every method to the given handler.
func NewServer(h Handler, bindHost string, port int, fct liblog.FuncLog) (Server, liberr.Error) {
	if h == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	o := &srv{
		s: xmlrpc.NewServer(bindHost, port, fct),
		h: h,
	}

	o.s.Register("requestTopic", o.requestTopic)
	o.s.Register("publisherUpdate", o.publisherUpdate)
	o.s.Register("paramUpdate", o.paramUpdate)
	o.s.Register("getPublications", o.getPublications)
	o.s.Register("getSubscriptions", o.getSubscriptions)
	o.s.Register("getPid", o.getPid)
	o.s.Register("getBusInfo", o.getBusInfo)
	o.s.Register("getBusStats", o.getBusStats)
	o.s.Register("getMasterUri", o.getMasterUri)
	o.s.Register("shutdown", o.shutdown)

	return o, nil
}

func (o *srv) Listen(ctx context.Context) liberr.Error {
	return o.s.Listen(ctx)
}

func (o *srv) Port() int {
	return o.s.Port()
}

func (o *srv) URI(host string) string {
	return o.s.URI(host)
}

func (o *srv) Shutdown(grace time.Duration) {
	o.s.Shutdown(grace)
}

func triple(code int, msg string, pay interface{}) interface{} {
	return []interface{}{code, msg, pay}
}

func callerOf(params []interface{}) string {
	if len(params) > 0 {
		if s, k := params[0].(string); k {
			return s
		}
	}

	return ""
}

func (o *srv) requestTopic(ctx context.Context, params []interface{}) (interface{}, error) {
	if len(params) < 3 {
		return nil, errors.New("requestTopic needs callerID, topic, protocols")
	}

	topic, _ := params[1].(string)

	res, e := o.h.RequestTopic(callerOf(params), topic, decodeRequests(params[2]))
	if e != nil {
		return triple(0, e.Error(), 0), nil
	}

	return triple(1, "ready on "+res.Name, res.encode()), nil
}

func (o *srv) publisherUpdate(ctx context.Context, params []interface{}) (interface{}, error) {
	if len(params) < 3 {
		return nil, errors.New("publisherUpdate needs callerID, topic, publishers")
	}

	var (
		topic, _ = params[1].(string)
		uris     []string
	)

	if t, k := params[2].([]interface{}); k {
		for _, i := range t {
			if s, k := i.(string); k {
				uris = append(uris, s)
			}
		}
	}

	if e := o.h.PublisherUpdate(callerOf(params), topic, uris); e != nil {
		return triple(0, e.Error(), 0), nil
	}

	return triple(1, "", 0), nil
}

func (o *srv) paramUpdate(ctx context.Context, params []interface{}) (interface{}, error) {
	if len(params) < 3 {
		return nil, errors.New("paramUpdate needs callerID, key, value")
	}

	key, _ := params[1].(string)

	if e := o.h.ParamUpdate(callerOf(params), key, params[2]); e != nil {
		return triple(0, e.Error(), 0), nil
	}

	return triple(1, "", 0), nil
}

func pairs(in [][2]string) interface{} {
	var res = make([]interface{}, 0, len(in))
	for _, p := range in {
		res = append(res, []interface{}{p[0], p[1]})
	}
	return res
}

func (o *srv) getPublications(ctx context.Context, params []interface{}) (interface{}, error) {
	return triple(1, "", pairs(o.h.Publications())), nil
}

func (o *srv) getSubscriptions(ctx context.Context, params []interface{}) (interface{}, error) {
	return triple(1, "", pairs(o.h.Subscriptions())), nil
}

func (o *srv) getPid(ctx context.Context, params []interface{}) (interface{}, error) {
	return triple(1, "", os.Getpid()), nil
}

func (o *srv) getBusInfo(ctx context.Context, params []interface{}) (interface{}, error) {
	var res = make([]interface{}, 0)
	for _, r := range o.h.BusInfo() {
		res = append(res, r)
	}
	return triple(1, "", res), nil
}

func (o *srv) getBusStats(ctx context.Context, params []interface{}) (interface{}, error) {
	return triple(1, "", o.h.BusStats()), nil
}

func (o *srv) getMasterUri(ctx context.Context, params []interface{}) (interface{}, error) {
	return triple(1, "", o.h.MasterURI()), nil
}

func (o *srv) shutdown(ctx context.Context, params []interface{}) (interface{}, error) {
	var msg string
	if len(params) > 1 {
		msg, _ = params[1].(string)
	}

	o.h.ShutdownRequested(callerOf(params), msg)
	return triple(1, "", 0), nil
}
