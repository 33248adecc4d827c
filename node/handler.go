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
	liberr "github.com/nabbar/golib/errors"
	loglvl "github.com/nabbar/golib/logger/level"

	"github.com/nabbar/rosnet/slave"
	"github.com/nabbar/rosnet/topic"
	"github.com/nabbar/rosnet/wire"
)

// RequestTopic picks the first supported candidate of the subscriber's
// preference list for one of this node's publishers.
func (o *nod) RequestTopic(callerID, topicName string, protocols []slave.ProtocolRequest) (slave.ProtocolResponse, liberr.Error) {
	var res slave.ProtocolResponse

	o.m.Lock()
	p := o.mp[topicName]
	o.m.Unlock()

	if p == nil {
		return res, ErrorTopicUnknown.Error(nil)
	}

	for _, c := range protocols {
		switch c.Name {
		case slave.ProtocolTCP:
			return slave.ProtocolResponse{
				Name: slave.ProtocolTCP,
				Host: o.c.Host,
				Port: o.TCPPort(),
			}, nil

		case slave.ProtocolUDP:
			if len(c.Header) <= 4 {
				continue
			}

			h, e := wire.ParseHeader(c.Header[4:])
			if e != nil {
				return res, e
			}

			if e = wire.ValidateSubscriber(h, topicName, p.Type().Name(), p.Type().MD5Sum()); e != nil {
				return res, e
			}

			var size = c.DgramSize
			if size <= wire.DgramHeaderLen {
				size = int(o.c.DgramSize)
			}

			id := o.cid.Add(1)
			p.AddDgramPeer(id, c.Host, c.Port, size)

			var rep = wire.Header{
				wire.KeyCallerID:   o.r.NodeName(),
				wire.KeyMD5Sum:     p.Type().MD5Sum(),
				wire.KeyType:       p.Type().Name(),
				wire.KeyDefinition: p.Type().Definition(),
			}

			return slave.ProtocolResponse{
				Name:      slave.ProtocolUDP,
				Host:      o.c.Host,
				Port:      o.UDPPort(),
				ConnID:    id,
				DgramSize: size,
				Header:    rep.Encode(),
			}, nil
		}
	}

	return res, ErrorProtocolUnknown.Error(nil)
}

// PublisherUpdate routes the full URI set to the subscriber endpoint; an
// update for an unknown topic is benign.
func (o *nod) PublisherUpdate(callerID, topicName string, uris []string) liberr.Error {
	o.m.Lock()
	s := o.ms[topicName]
	o.m.Unlock()

	if s == nil {
		return nil
	}

	s.HandlePublisherUpdate(uris)
	return nil
}

func (o *nod) ParamUpdate(callerID, key string, value interface{}) liberr.Error {
	o.logger().Entry(loglvl.DebugLevel, "parameter update").FieldAdd("key", key).Log()
	return nil
}

func (o *nod) Publications() [][2]string {
	o.m.Lock()
	defer o.m.Unlock()

	var res = make([][2]string, 0, len(o.mp))
	for t, p := range o.mp {
		res = append(res, [2]string{t, p.Type().Name()})
	}

	return res
}

func (o *nod) Subscriptions() [][2]string {
	o.m.Lock()
	defer o.m.Unlock()

	var res = make([][2]string, 0, len(o.ms))
	for t, s := range o.ms {
		res = append(res, [2]string{t, s.Type().Name()})
	}

	return res
}

func (o *nod) BusInfo() [][]interface{} {
	o.m.Lock()
	defer o.m.Unlock()

	var (
		res = make([][]interface{}, 0)
		id  int
	)

	add := func(uri, dir, trs, top string, up bool) {
		res = append(res, []interface{}{id, uri, dir, trs, top, up})
		id++
	}

	for _, p := range o.mp {
		for _, c := range p.Connections() {
			add(c.PeerURI, c.Direction, c.Transport, c.Topic, c.Connected)
		}
	}

	for _, s := range o.ms {
		for _, c := range s.Connections() {
			add(c.PeerURI, c.Direction, c.Transport, c.Topic, c.Connected)
		}
	}

	for _, v := range o.mv {
		for _, c := range v.Connections() {
			add(c.PeerURI, c.Direction, c.Transport, c.Topic, c.Connected)
		}
	}

	return res
}

func (o *nod) BusStats() []interface{} {
	o.m.Lock()
	defer o.m.Unlock()

	var pub = make([]interface{}, 0, len(o.mp))
	for t, p := range o.mp {
		s := p.Stats()
		pub = append(pub, []interface{}{t, int(s.Messages), int(s.Bytes)})
	}

	var sub = make([]interface{}, 0, len(o.ms))
	for t, s := range o.ms {
		st := s.Stats()
		sub = append(sub, []interface{}{t, int(st.Messages), int(st.Bytes), int(st.Drops)})
	}

	return []interface{}{pub, sub, []interface{}{}}
}

func (o *nod) MasterURI() string {
	return o.c.MasterURI
}

// ShutdownRequested implements the slave API shutdown: the node terminates.
func (o *nod) ShutdownRequested(callerID, msg string) {
	o.logger().Entry(loglvl.InfoLevel, "shutdown requested over slave api").FieldAdd("caller", callerID).FieldAdd("reason", msg).Log()
	go o.Shutdown()
}

// retainPublisher returns the endpoint for the given config, creating it on
// first use; the reference count covers the returned handle.
func (o *nod) retainPublisher(cfg topic.PublisherConfig) (topic.Publisher, liberr.Error) {
	if o.IsShutdown() {
		return nil, ErrorShutdown.Error(nil)
	}

	o.m.Lock()
	defer o.m.Unlock()

	if p, k := o.mp[cfg.Topic]; k {
		if p.Type().Name() != cfg.Type.Name() {
			return nil, ErrorTypeConflict.Error(nil)
		}

		p.Retain()
		return p, nil
	}

	p, e := topic.NewPublisher(cfg, o.topicDeps())
	if e != nil {
		return nil, e
	}

	p.Retain()
	o.mp[cfg.Topic] = p
	return p, nil
}

func (o *nod) releasePublisher(topicName string) {
	o.m.Lock()

	p, k := o.mp[topicName]
	if !k {
		o.m.Unlock()
		return
	}

	if p.Release() > 0 {
		o.m.Unlock()
		return
	}

	delete(o.mp, topicName)
	o.m.Unlock()

	p.Shutdown()
}

func (o *nod) retainSubscriber(cfg topic.SubscriberConfig) (topic.Subscriber, liberr.Error) {
	if o.IsShutdown() {
		return nil, ErrorShutdown.Error(nil)
	}

	o.m.Lock()
	defer o.m.Unlock()

	if s, k := o.ms[cfg.Topic]; k {
		if s.Type().Name() != cfg.Type.Name() {
			return nil, ErrorTypeConflict.Error(nil)
		}

		s.Retain()
		return s, nil
	}

	s, e := topic.NewSubscriber(cfg, o.topicDeps())
	if e != nil {
		return nil, e
	}

	s.Retain()
	o.ms[cfg.Topic] = s
	return s, nil
}

func (o *nod) releaseSubscriber(topicName string) {
	o.m.Lock()

	s, k := o.ms[topicName]
	if !k {
		o.m.Unlock()
		return
	}

	if s.Release() > 0 {
		o.m.Unlock()
		return
	}

	delete(o.ms, topicName)
	o.m.Unlock()

	s.Shutdown()
}

func (o *nod) retainService(cfg service.ServerConfig) (service.Server, liberr.Error) {
	if o.IsShutdown() {
		return nil, ErrorShutdown.Error(nil)
	}

	o.m.Lock()
	defer o.m.Unlock()

	if v, k := o.mv[cfg.Service]; k {
		if v.Type().Name() != cfg.Type.Name() {
			return nil, ErrorTypeConflict.Error(nil)
		}

		v.Retain()
		return v, nil
	}

	v, e := service.NewServer(cfg, o.serviceDeps())
	if e != nil {
		return nil, e
	}

	v.Retain()
	o.mv[cfg.Service] = v
	return v, nil
}

func (o *nod) releaseService(serviceName string) {
	o.m.Lock()

	v, k := o.mv[serviceName]
	if !k {
		o.m.Unlock()
		return
	}

	if v.Release() > 0 {
		o.m.Unlock()
		return
	}

	delete(o.mv, serviceName)
	o.m.Unlock()

	v.Shutdown()
}
