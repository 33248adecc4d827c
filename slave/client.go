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
	"sync"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/xmlrpc"
)

// Caller performs requestTopic against peer nodes. Shutdown aborts every
// call in flight with ErrorAborted.
type Caller interface {
	// RequestTopic negotiates the transport for the given topic with the
	// peer slave at the given URI. Candidates are ordered by preference.
	RequestTopic(ctx context.Context, peerURI, callerID, topic string, protocols []ProtocolRequest) (ProtocolResponse, liberr.Error)

	// Shutdown aborts calls in flight; the Caller is unusable afterwards.
	Shutdown()
}

type clt struct {
	m sync.RWMutex
	l liblog.FuncLog
	x context.Context
	c context.CancelFunc
}

// NewCaller builds a Caller.
func NewCaller(fct liblog.FuncLog) Caller {
	x, c := context.WithCancel(context.Background())

	return &clt{
		l: fct,
		x: x,
		c: c,
	}
}

func (o *clt) RequestTopic(ctx context.Context, peerURI, callerID, topic string, protocols []ProtocolRequest) (ProtocolResponse, liberr.Error) {
	var res ProtocolResponse

	if len(peerURI) == 0 || len(topic) == 0 || len(protocols) == 0 {
		return res, ErrorParamEmpty.Error(nil)
	}

	if o.x.Err() != nil {
		return res, ErrorAborted.Error(nil)
	}

	c, e := xmlrpc.NewClient(peerURI, o.l)
	if e != nil {
		return res, ErrorPeerUnreachable.Error(e)
	}

	var cand = make([]interface{}, 0, len(protocols))
	for _, p := range protocols {
		cand = append(cand, p.encode())
	}

	ctx, cnl := mergeCancel(ctx, o.x)
	defer cnl()

	v, e := c.CallOpt(ctx, "requestTopic", []interface{}{callerID, topic, cand}, xmlrpc.Options{MaxAttempts: 1})
	if e != nil {
		if o.x.Err() != nil {
			return res, ErrorAborted.Error(e)
		} else if e.HasCode(xmlrpc.ErrorFault) {
			return res, ErrorPeerRejected.Error(e)
		}
		return res, ErrorPeerUnreachable.Error(e)
	}

	t, k := v.([]interface{})
	if !k || len(t) < 3 {
		return res, ErrorPeerResponse.Error(nil)
	}

	code, _ := t[0].(int)
	if code != 1 {
		msg, _ := t[1].(string)
		return res, ErrorPeerRejected.Error(errors.New(msg))
	}

	return decodeResponse(t[2])
}

func (o *clt) Shutdown() {
	o.c()
}

// mergeCancel derives a context cancelled when either parent is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cnl := context.WithCancel(a)

	go func() {
		select {
		case <-ctx.Done():
		case <-b.Done():
			cnl()
		}
	}()

	return ctx, cnl
}
