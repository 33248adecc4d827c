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

package master

import (
	"context"
	"errors"

	liberr "github.com/nabbar/golib/errors"

	"github.com/nabbar/rosnet/xmlrpc"
)

type mst struct {
	c xmlrpc.Client
	i string
}

func (o *mst) URI() string {
	return o.c.URI()
}

func (o *mst) CallerID() string {
	return o.i
}

// call performs one directory RPC and normalizes the status triple: the
// payload on status 1, a typed error otherwise.
func (o *mst) call(ctx context.Context, method string, args []interface{}, opt []Options) (interface{}, liberr.Error) {
	var xo xmlrpc.Options

	if len(opt) > 0 {
		xo.MaxAttempts = opt[0].MaxAttempts
		xo.Timeout = opt[0].Timeout
	}

	res, e := o.c.CallOpt(ctx, method, append([]interface{}{o.i}, args...), xo)
	if e != nil {
		return nil, ErrorCall.Error(e)
	}

	t, k := res.([]interface{})
	if !k || len(t) < 3 {
		return nil, ErrorResponse.Error(nil)
	}

	code, k := t[0].(int)
	if !k {
		return nil, ErrorResponse.Error(nil)
	}

	msg, _ := t[1].(string)

	switch code {
	case 1:
		return t[2], nil
	case 0:
		return nil, ErrorFailure.Error(errors.New(msg))
	default:
		return nil, ErrorReported.Error(errors.New(msg))
	}
}

func asStrings(v interface{}) []string {
	var res []string

	if t, k := v.([]interface{}); k {
		for _, i := range t {
			if s, k := i.(string); k {
				res = append(res, s)
			}
		}
	}

	return res
}

func asTuples(v interface{}) []TopicTuple {
	var res []TopicTuple

	if t, k := v.([]interface{}); k {
		for _, i := range t {
			if p, k := i.([]interface{}); k && len(p) >= 2 {
				var e TopicTuple
				e.Name, _ = p[0].(string)
				e.Type, _ = p[1].(string)
				res = append(res, e)
			}
		}
	}

	return res
}

func asPeers(v interface{}) map[string][]string {
	var res = make(map[string][]string)

	if t, k := v.([]interface{}); k {
		for _, i := range t {
			if p, k := i.([]interface{}); k && len(p) >= 2 {
				if n, k := p[0].(string); k {
					res[n] = asStrings(p[1])
				}
			}
		}
	}

	return res
}

func (o *mst) RegisterPublisher(ctx context.Context, topic, topicType, slaveURI string, opt ...Options) ([]string, liberr.Error) {
	res, e := o.call(ctx, "registerPublisher", []interface{}{topic, topicType, slaveURI}, opt)
	if e != nil {
		return nil, e
	}

	return asStrings(res), nil
}

func (o *mst) UnregisterPublisher(ctx context.Context, topic, slaveURI string, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "unregisterPublisher", []interface{}{topic, slaveURI}, opt)
	return e
}

func (o *mst) RegisterSubscriber(ctx context.Context, topic, topicType, slaveURI string, opt ...Options) ([]string, liberr.Error) {
	res, e := o.call(ctx, "registerSubscriber", []interface{}{topic, topicType, slaveURI}, opt)
	if e != nil {
		return nil, e
	}

	return asStrings(res), nil
}

func (o *mst) UnregisterSubscriber(ctx context.Context, topic, slaveURI string, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "unregisterSubscriber", []interface{}{topic, slaveURI}, opt)
	return e
}

func (o *mst) RegisterService(ctx context.Context, service, serviceURI, slaveURI string, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "registerService", []interface{}{service, serviceURI, slaveURI}, opt)
	return e
}

func (o *mst) UnregisterService(ctx context.Context, service, serviceURI string, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "unregisterService", []interface{}{service, serviceURI}, opt)
	return e
}

func (o *mst) LookupNode(ctx context.Context, nodeName string, opt ...Options) (string, liberr.Error) {
	res, e := o.call(ctx, "lookupNode", []interface{}{nodeName}, opt)
	if e != nil {
		if e.HasCode(ErrorFailure) || e.HasCode(ErrorReported) {
			return "", ErrorNotFound.Error(e)
		}
		return "", e
	}

	u, _ := res.(string)
	return u, nil
}

func (o *mst) LookupService(ctx context.Context, service string, opt ...Options) (string, liberr.Error) {
	res, e := o.call(ctx, "lookupService", []interface{}{service}, opt)
	if e != nil {
		if e.HasCode(ErrorFailure) || e.HasCode(ErrorReported) {
			return "", ErrorNotFound.Error(e)
		}
		return "", e
	}

	u, _ := res.(string)
	return u, nil
}

func (o *mst) GetUri(ctx context.Context, opt ...Options) (string, liberr.Error) {
	res, e := o.call(ctx, "getUri", nil, opt)
	if e != nil {
		return "", e
	}

	u, _ := res.(string)
	return u, nil
}

func (o *mst) GetPublishedTopics(ctx context.Context, subgraph string, opt ...Options) ([]TopicTuple, liberr.Error) {
	res, e := o.call(ctx, "getPublishedTopics", []interface{}{subgraph}, opt)
	if e != nil {
		return nil, e
	}

	return asTuples(res), nil
}

func (o *mst) GetTopicTypes(ctx context.Context, opt ...Options) ([]TopicTuple, liberr.Error) {
	res, e := o.call(ctx, "getTopicTypes", nil, opt)
	if e != nil {
		return nil, e
	}

	return asTuples(res), nil
}

func (o *mst) GetSystemState(ctx context.Context, opt ...Options) (SystemState, liberr.Error) {
	var sta SystemState

	res, e := o.call(ctx, "getSystemState", nil, opt)
	if e != nil {
		return sta, e
	}

	t, k := res.([]interface{})
	if !k || len(t) < 3 {
		return sta, ErrorResponse.Error(nil)
	}

	sta.Publishers = asPeers(t[0])
	sta.Subscribers = asPeers(t[1])
	sta.Services = asPeers(t[2])

	return sta, nil
}

func (o *mst) SetParam(ctx context.Context, key string, value interface{}, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "setParam", []interface{}{key, value}, opt)
	return e
}

func (o *mst) GetParam(ctx context.Context, key string, opt ...Options) (interface{}, liberr.Error) {
	return o.call(ctx, "getParam", []interface{}{key}, opt)
}

func (o *mst) HasParam(ctx context.Context, key string, opt ...Options) (bool, liberr.Error) {
	res, e := o.call(ctx, "hasParam", []interface{}{key}, opt)
	if e != nil {
		return false, e
	}

	b, _ := res.(bool)
	return b, nil
}

func (o *mst) DeleteParam(ctx context.Context, key string, opt ...Options) liberr.Error {
	_, e := o.call(ctx, "deleteParam", []interface{}{key}, opt)
	return e
}

func (o *mst) GetParamNames(ctx context.Context, opt ...Options) ([]string, liberr.Error) {
	res, e := o.call(ctx, "getParamNames", nil, opt)
	if e != nil {
		return nil, e
	}

	return asStrings(res), nil
}

func (o *mst) SearchParam(ctx context.Context, key string, opt ...Options) (interface{}, liberr.Error) {
	return o.call(ctx, "searchParam", []interface{}{key}, opt)
}
