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

// Package master is the typed client of the directory server: one method per
// directory RPC, the status triple normalized into payload or typed error,
// and reshaped payloads for the introspection calls.
//
// Every call retries on a refused connection with exponential backoff
// starting at 100 ms, bounded by the caller's options and context.
package master

import (
	"context"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"

	"github.com/nabbar/rosnet/xmlrpc"
)

// Options bounds one directory call. A zero MaxAttempts means unlimited.
type Options struct {
	MaxAttempts int
	Timeout     time.Duration
}

// TopicTuple pairs a topic name with its declared message type.
type TopicTuple struct {
	Name string
	Type string
}

// SystemState is the full graph registry: each map binds a topic or service
// name to the node names participating.
type SystemState struct {
	Publishers  map[string][]string
	Subscribers map[string][]string
	Services    map[string][]string
}

// Client is the typed surface of the directory server.
type Client interface {
	// URI returns the directory endpoint.
	URI() string

	// CallerID returns the node name sent as first argument of every call.
	CallerID() string

	RegisterPublisher(ctx context.Context, topic, topicType, slaveURI string, opt ...Options) ([]string, liberr.Error)
	UnregisterPublisher(ctx context.Context, topic, slaveURI string, opt ...Options) liberr.Error
	RegisterSubscriber(ctx context.Context, topic, topicType, slaveURI string, opt ...Options) ([]string, liberr.Error)
	UnregisterSubscriber(ctx context.Context, topic, slaveURI string, opt ...Options) liberr.Error
	RegisterService(ctx context.Context, service, serviceURI, slaveURI string, opt ...Options) liberr.Error
	UnregisterService(ctx context.Context, service, serviceURI string, opt ...Options) liberr.Error

	LookupNode(ctx context.Context, nodeName string, opt ...Options) (string, liberr.Error)
	LookupService(ctx context.Context, service string, opt ...Options) (string, liberr.Error)
	GetUri(ctx context.Context, opt ...Options) (string, liberr.Error)
	GetPublishedTopics(ctx context.Context, subgraph string, opt ...Options) ([]TopicTuple, liberr.Error)
	GetTopicTypes(ctx context.Context, opt ...Options) ([]TopicTuple, liberr.Error)
	GetSystemState(ctx context.Context, opt ...Options) (SystemState, liberr.Error)

	SetParam(ctx context.Context, key string, value interface{}, opt ...Options) liberr.Error
	GetParam(ctx context.Context, key string, opt ...Options) (interface{}, liberr.Error)
	HasParam(ctx context.Context, key string, opt ...Options) (bool, liberr.Error)
	DeleteParam(ctx context.Context, key string, opt ...Options) liberr.Error
	GetParamNames(ctx context.Context, opt ...Options) ([]string, liberr.Error)
	SearchParam(ctx context.Context, key string, opt ...Options) (interface{}, liberr.Error)
}

// New builds a Client for the given directory URI, calling as callerID.
func New(uri, callerID string, fct liblog.FuncLog) (Client, liberr.Error) {
	if len(uri) == 0 || len(callerID) == 0 {
		return nil, ErrorParamEmpty.Error(nil)
	}

	c, e := xmlrpc.NewClient(uri, fct)
	if e != nil {
		return nil, e
	}

	return &mst{
		c: c,
		i: callerID,
	}, nil
}
