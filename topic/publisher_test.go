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

package topic_test

import (
	"net"
	"sync"
	"time"

	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/topic"
	"github.com/nabbar/rosnet/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// peerEnd drives the subscriber half of a publisher handshake over a pipe.
type peerEnd struct {
	c net.Conn
	d *wire.Deframer

	m sync.Mutex
	r []wire.Record
}

func newPeerEnd(c net.Conn) *peerEnd {
	o := &peerEnd{
		c: c,
		d: wire.NewDeframer(),
	}

	go func() {
		var b [4096]byte
		for {
			n, err := c.Read(b[:])
			if err != nil {
				return
			}

			o.m.Lock()
			o.r = append(o.r, o.d.Feed(b[:n])...)
			o.m.Unlock()
		}
	}()

	return o
}

func (o *peerEnd) records() []wire.Record {
	o.m.Lock()
	defer o.m.Unlock()
	return append([]wire.Record(nil), o.r...)
}

func subHeader(topicName string) wire.Header {
	return wire.Header{
		wire.KeyCallerID: "/peer_node",
		wire.KeyTopic:    topicName,
		wire.KeyType:     "std_msgs/Int8",
		wire.KeyMD5Sum:   "27ffa0c9c4b8fb8492252bcad9e5c57b",
	}
}

var _ = Describe("Publisher Endpoint", func() {
	var (
		stub *stubMaster
		dep  topic.Deps
		stop func()
	)

	BeforeEach(func() {
		stub = newStubMaster()
		dep, stop = newDeps(stub, nil)
	})

	AfterEach(func() {
		stop()
		stub.close()
	})

	newPub := func(cfg topic.PublisherConfig) topic.Publisher {
		p, err := topic.NewPublisher(cfg, dep)
		Expect(err).To(BeNil())
		return p
	}

	It("should register with the directory and fire the signal", func() {
		var done = make(chan struct{})

		p := newPub(topic.PublisherConfig{Topic: "/t", Type: msgs.Int8Type(), QueueSize: 3})
		p.OnRegistered(func() { close(done) })

		Eventually(done, time.Second).Should(BeClosed())
		Expect(stub.count("registerPublisher")).To(Equal(1))
		Expect(p.IsShutdown()).To(BeFalse())

		p.Shutdown()
	})

	It("should complete the handshake and stream published messages in order", func() {
		p := newPub(topic.PublisherConfig{Topic: "/t", Type: msgs.Int8Type(), QueueSize: 3})
		defer p.Shutdown()

		a, b := net.Pipe()
		peer := newPeerEnd(a)

		p.HandleStreamPeer(b, subHeader("/t"))
		Eventually(p.NumSubscribers, time.Second).Should(Equal(1))

		// publisher reply header
		Eventually(func() int { return len(peer.records()) }, time.Second).Should(BeNumerically(">=", 1))
		h, err := wire.ParseHeader(peer.records()[0].Body)
		Expect(err).To(BeNil())
		Expect(h[wire.KeyType]).To(Equal("std_msgs/Int8"))
		Expect(h[wire.KeyCallerID]).To(Equal("/test_node"))

		for _, v := range []int8{1, 2, 3} {
			Expect(p.Publish(msgs.Int8{Data: v})).To(BeNil())
		}

		Eventually(func() int { return len(peer.records()) }, time.Second).Should(Equal(4))

		var got []int8
		for _, r := range peer.records()[1:] {
			v, err := msgs.Int8Type().Deserialize(r.Body)
			Expect(err).ToNot(HaveOccurred())
			got = append(got, v.(msgs.Int8).Data)
		}

		Expect(got).To(Equal([]int8{1, 2, 3}))
		Expect(p.Stats().Messages).To(Equal(uint64(3)))
	})

	It("should reject a mismatching header with a framed error", func() {
		p := newPub(topic.PublisherConfig{Topic: "/t", Type: msgs.Int8Type(), QueueSize: 1})
		defer p.Shutdown()

		a, b := net.Pipe()
		peer := newPeerEnd(a)

		h := subHeader("/t")
		h[wire.KeyMD5Sum] = "deadbeef"

		p.HandleStreamPeer(b, h)

		Eventually(func() int { return len(peer.records()) }, time.Second).Should(Equal(1))

		rep, err := wire.ParseHeader(peer.records()[0].Body)
		Expect(err).To(BeNil())
		Expect(rep).To(HaveKey(wire.KeyError))
		Expect(p.NumSubscribers()).To(Equal(0))
	})

	It("should replay the latched message to a late subscriber", func() {
		p := newPub(topic.PublisherConfig{Topic: "/t", Type: msgs.Int8Type(), QueueSize: 1, Latching: true})
		defer p.Shutdown()

		Expect(p.Publish(msgs.Int8{Data: 1})).To(BeNil())

		// wait for the drain to cache the message
		Eventually(func() uint64 { return p.Stats().Messages }, time.Second).Should(Equal(uint64(1)))

		a, b := net.Pipe()
		peer := newPeerEnd(a)
		p.HandleStreamPeer(b, subHeader("/t"))

		Eventually(func() int { return len(peer.records()) }, time.Second).Should(Equal(2))

		v, err := msgs.Int8Type().Deserialize(peer.records()[1].Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(msgs.Int8{Data: 1}))
	})

	It("should chunk messages to datagram peers", func() {
		var (
			m    sync.Mutex
			pkts [][]byte
		)

		stub2 := newStubMaster()
		defer stub2.close()

		dep2, stop2 := newDeps(stub2, func(b []byte, host string, port int) error {
			m.Lock()
			defer m.Unlock()
			pkts = append(pkts, append([]byte(nil), b...))
			return nil
		})
		defer stop2()

		p, err := topic.NewPublisher(topic.PublisherConfig{Topic: "/t", Type: msgs.StringType(), QueueSize: 1}, dep2)
		Expect(err).To(BeNil())
		defer p.Shutdown()

		p.AddDgramPeer(7, "127.0.0.1", 9998, 1500)
		Expect(p.NumSubscribers()).To(Equal(1))

		Expect(p.Publish(msgs.String{Data: "hello"})).To(BeNil())

		Eventually(func() int {
			m.Lock()
			defer m.Unlock()
			return len(pkts)
		}, time.Second).Should(Equal(1))

		m.Lock()
		h, body, e := wire.ParseDgram(pkts[0])
		m.Unlock()

		Expect(e).To(BeNil())
		Expect(h.ConnID).To(Equal(uint32(7)))
		Expect(h.OpCode).To(Equal(wire.OpData0))
		Expect(h.BlockCount).To(Equal(uint8(1)))

		v, err2 := msgs.StringType().Deserialize(body)
		Expect(err2).ToNot(HaveOccurred())
		Expect(v).To(Equal(msgs.String{Data: "hello"}))

		p.RemoveDgramPeer(7)
		Expect(p.NumSubscribers()).To(Equal(0))
	})

	It("should unregister exactly once on shutdown", func() {
		p := newPub(topic.PublisherConfig{Topic: "/t", Type: msgs.Int8Type(), QueueSize: 1})

		Eventually(func() int { return stub.count("registerPublisher") }, time.Second).Should(Equal(1))

		p.Shutdown()
		p.Shutdown()

		Eventually(func() int { return stub.count("unregisterPublisher") }, time.Second).Should(Equal(1))
		Consistently(func() int { return stub.count("unregisterPublisher") }, 100*time.Millisecond).Should(Equal(1))
		Expect(p.IsShutdown()).To(BeTrue())

		Expect(p.Publish(msgs.Int8{Data: 1})).To(HaveOccurred())
	})
})
