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
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/golib/errors"

	"github.com/nabbar/rosnet/master"
	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/service"
	"github.com/nabbar/rosnet/topic"
)

// waitPollInterval paces WaitForService lookups after the immediate first
// attempt.
const waitPollInterval = 500 * time.Millisecond

// AdvertiseOptions parameterizes Advertise; Topic resolves through the
// handle's namespace.
type AdvertiseOptions struct {
	Topic      string
	Type       msgs.MessageType
	Latching   bool
	TCPNoDelay bool
	QueueSize  int
	Throttle   time.Duration
}

// SubscribeOptions parameterizes Subscribe. Callback receives the decoded
// message, its wire byte length and the origin URI.
type SubscribeOptions struct {
	Topic      string
	Type       msgs.MessageType
	QueueSize  int
	Throttle   time.Duration
	Transports []string
	DgramSize  int
	Callback   func(msg interface{}, n int, uri string)
}

// ServiceOptions parameterizes AdvertiseService.
type ServiceOptions struct {
	Service string
	Type    msgs.ServiceType
	Handler service.HandlerFunc
}

// ClientOptions parameterizes ServiceClient.
type ClientOptions struct {
	Service    string
	Type       msgs.ServiceType
	Persistent bool
	MaxQueue   int
	Timeout    time.Duration
}

// Publication is the reference counted publisher facade. Shutting one
// publication down never closes the endpoint while other handles remain.
type Publication interface {
	Topic() string
	Publish(msg interface{}) liberr.Error
	NumSubscribers() int
	IsShutdown() bool
	OnRegistered(fct func())
	OnConnect(fct func(peer string))
	OnDisconnect(fct func(peer string))
	OnError(fct func(err error))
	Shutdown()
}

// Subscription is the reference counted subscriber facade.
type Subscription interface {
	Topic() string
	NumPublishers() int
	IsShutdown() bool
	OnRegistered(fct func())
	OnConnect(fct func(peer string))
	OnDisconnect(fct func(peer string))
	OnMessage(fct func(msg interface{}, n int, uri string))
	OnError(fct func(err error))
	Shutdown()
}

// ServiceAdvertisement is the reference counted service server facade.
type ServiceAdvertisement interface {
	Service() string
	NumClients() int
	IsShutdown() bool
	OnRegistered(fct func())
	OnError(fct func(err error))
	Shutdown()
}

// Handle is the namespaced facade applications consume; every target name
// resolves through the node's naming state before reaching the runtime.
type Handle interface {
	// Node returns the owning runtime.
	Node() Node

	// Namespace returns the resolved namespace of this handle.
	Namespace() string

	// Resolve resolves a name against this handle's namespace and the remap
	// table.
	Resolve(name string) (string, liberr.Error)

	// Advertise returns a publication on the resolved topic; handles on the
	// same key share the endpoint.
	Advertise(opt AdvertiseOptions) (Publication, liberr.Error)

	// Subscribe returns a subscription on the resolved topic.
	Subscribe(opt SubscribeOptions) (Subscription, liberr.Error)

	// AdvertiseService returns a service advertisement on the resolved name.
	AdvertiseService(opt ServiceOptions) (ServiceAdvertisement, liberr.Error)

	// ServiceClient returns a call pipeline for the resolved service.
	ServiceClient(opt ClientOptions) (service.Client, liberr.Error)

	// WaitForService polls the directory until the service appears or the
	// timeout elapses; a non positive timeout waits until the context dies.
	WaitForService(ctx context.Context, name string, timeout time.Duration) (bool, liberr.Error)

	// GetPublishedTopics, GetTopicTypes and GetSystemState pass through to
	// the directory.
	GetPublishedTopics(ctx context.Context) ([]master.TopicTuple, liberr.Error)
	GetTopicTypes(ctx context.Context) ([]master.TopicTuple, liberr.Error)
	GetSystemState(ctx context.Context) (master.SystemState, liberr.Error)
}

type hnd struct {
	o *nod
	s string // namespace of this handle
}

func (o *nod) Handle(ns string) (Handle, liberr.Error) {
	var (
		e liberr.Error
		s = o.r.Namespace()
	)

	if len(ns) > 0 {
		if s, e = o.r.Resolve(ns); e != nil {
			return nil, e
		}
	}

	return &hnd{
		o: o,
		s: s,
	}, nil
}

func (h *hnd) Node() Node {
	return h.o
}

func (h *hnd) Namespace() string {
	return h.s
}

func (h *hnd) Resolve(name string) (string, liberr.Error) {
	return h.o.r.ResolveIn(h.s, name)
}

func (h *hnd) Advertise(opt AdvertiseOptions) (Publication, liberr.Error) {
	t, e := h.Resolve(opt.Topic)
	if e != nil {
		return nil, e
	}

	p, e := h.o.retainPublisher(topic.PublisherConfig{
		Topic:      t,
		Type:       opt.Type,
		Latching:   opt.Latching,
		TCPNoDelay: opt.TCPNoDelay,
		QueueSize:  opt.QueueSize,
		Throttle:   opt.Throttle,
	})
	if e != nil {
		return nil, e
	}

	return &pubHandle{
		o: h.o,
		e: p,
	}, nil
}

func (h *hnd) Subscribe(opt SubscribeOptions) (Subscription, liberr.Error) {
	t, e := h.Resolve(opt.Topic)
	if e != nil {
		return nil, e
	}

	s, e := h.o.retainSubscriber(topic.SubscriberConfig{
		Topic:      t,
		Type:       opt.Type,
		QueueSize:  opt.QueueSize,
		Throttle:   opt.Throttle,
		Transports: opt.Transports,
		DgramSize:  opt.DgramSize,
	})
	if e != nil {
		return nil, e
	}

	w := &subHandle{
		o: h.o,
		e: s,
	}

	if opt.Callback != nil {
		w.OnMessage(opt.Callback)
	}

	return w, nil
}

func (h *hnd) AdvertiseService(opt ServiceOptions) (ServiceAdvertisement, liberr.Error) {
	s, e := h.Resolve(opt.Service)
	if e != nil {
		return nil, e
	}

	v, e := h.o.retainService(service.ServerConfig{
		Service: s,
		Type:    opt.Type,
		Handler: opt.Handler,
	})
	if e != nil {
		return nil, e
	}

	return &svcHandle{
		o: h.o,
		e: v,
	}, nil
}

func (h *hnd) ServiceClient(opt ClientOptions) (service.Client, liberr.Error) {
	s, e := h.Resolve(opt.Service)
	if e != nil {
		return nil, e
	}

	return service.NewClient(service.ClientConfig{
		Service:    s,
		Type:       opt.Type,
		Persistent: opt.Persistent,
		MaxQueue:   opt.MaxQueue,
		Timeout:    opt.Timeout,
	}, h.o.serviceDeps())
}

func (h *hnd) WaitForService(ctx context.Context, name string, timeout time.Duration) (bool, liberr.Error) {
	s, e := h.Resolve(name)
	if e != nil {
		return false, e
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if _, e = h.o.d.LookupService(ctx, s, master.Options{MaxAttempts: 1}); e == nil {
			return true, nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ErrorShutdown.Error(ctx.Err())
		case <-h.o.x.Done():
			return false, ErrorShutdown.Error(nil)
		case <-time.After(waitPollInterval):
		}
	}
}

func (h *hnd) GetPublishedTopics(ctx context.Context) ([]master.TopicTuple, liberr.Error) {
	return h.o.d.GetPublishedTopics(ctx, "")
}

func (h *hnd) GetTopicTypes(ctx context.Context) ([]master.TopicTuple, liberr.Error) {
	return h.o.d.GetTopicTypes(ctx)
}

func (h *hnd) GetSystemState(ctx context.Context) (master.SystemState, liberr.Error) {
	return h.o.d.GetSystemState(ctx)
}

// pubHandle forwards to the shared endpoint while it is open; its listeners
// stop firing once this handle shuts down, independent of other handles.
type pubHandle struct {
	o *nod
	e topic.Publisher
	c atomic.Bool
}

func (w *pubHandle) Topic() string {
	return w.e.Topic()
}

func (w *pubHandle) Publish(msg interface{}) liberr.Error {
	if w.c.Load() {
		return ErrorShutdown.Error(nil)
	}

	return w.e.Publish(msg)
}

func (w *pubHandle) NumSubscribers() int {
	return w.e.NumSubscribers()
}

func (w *pubHandle) IsShutdown() bool {
	return w.c.Load() || w.e.IsShutdown()
}

func (w *pubHandle) OnRegistered(fct func()) {
	if fct == nil {
		return
	}

	w.e.OnRegistered(func() {
		if !w.c.Load() {
			fct()
		}
	})
}

func (w *pubHandle) OnConnect(fct func(string)) {
	if fct == nil {
		return
	}

	w.e.OnConnect(func(p string) {
		if !w.c.Load() {
			fct(p)
		}
	})
}

func (w *pubHandle) OnDisconnect(fct func(string)) {
	if fct == nil {
		return
	}

	w.e.OnDisconnect(func(p string) {
		if !w.c.Load() {
			fct(p)
		}
	})
}

func (w *pubHandle) OnError(fct func(error)) {
	if fct == nil {
		return
	}

	w.e.OnError(func(e error) {
		if !w.c.Load() {
			fct(e)
		}
	})
}

func (w *pubHandle) Shutdown() {
	if w.c.Swap(true) {
		return
	}

	w.o.releasePublisher(w.e.Topic())
}

type subHandle struct {
	o *nod
	e topic.Subscriber
	c atomic.Bool
}

func (w *subHandle) Topic() string {
	return w.e.Topic()
}

func (w *subHandle) NumPublishers() int {
	return w.e.NumPublishers()
}

func (w *subHandle) IsShutdown() bool {
	return w.c.Load() || w.e.IsShutdown()
}

func (w *subHandle) OnRegistered(fct func()) {
	if fct == nil {
		return
	}

	w.e.OnRegistered(func() {
		if !w.c.Load() {
			fct()
		}
	})
}

func (w *subHandle) OnConnect(fct func(string)) {
	if fct == nil {
		return
	}

	w.e.OnConnect(func(p string) {
		if !w.c.Load() {
			fct(p)
		}
	})
}

func (w *subHandle) OnDisconnect(fct func(string)) {
	if fct == nil {
		return
	}

	w.e.OnDisconnect(func(p string) {
		if !w.c.Load() {
			fct(p)
		}
	})
}

func (w *subHandle) OnMessage(fct func(interface{}, int, string)) {
	if fct == nil {
		return
	}

	w.e.OnMessage(func(m interface{}, n int, u string) {
		if !w.c.Load() {
			fct(m, n, u)
		}
	})
}

func (w *subHandle) OnError(fct func(error)) {
	if fct == nil {
		return
	}

	w.e.OnError(func(e error) {
		if !w.c.Load() {
			fct(e)
		}
	})
}

func (w *subHandle) Shutdown() {
	if w.c.Swap(true) {
		return
	}

	w.o.releaseSubscriber(w.e.Topic())
}

type svcHandle struct {
	o *nod
	e service.Server
	c atomic.Bool
}

func (w *svcHandle) Service() string {
	return w.e.Service()
}

func (w *svcHandle) NumClients() int {
	return w.e.NumClients()
}

func (w *svcHandle) IsShutdown() bool {
	return w.c.Load() || w.e.IsShutdown()
}

func (w *svcHandle) OnRegistered(fct func()) {
	if fct == nil {
		return
	}

	w.e.OnRegistered(func() {
		if !w.c.Load() {
			fct()
		}
	})
}

func (w *svcHandle) OnError(fct func(error)) {
	if fct == nil {
		return
	}

	w.e.OnError(func(e error) {
		if !w.c.Load() {
			fct(e)
		}
	})
}

func (w *svcHandle) Shutdown() {
	if w.c.Swap(true) {
		return
	}

	w.o.releaseService(w.e.Service())
}
