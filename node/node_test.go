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

package node_test

import (
	"sync"
	"time"

	"github.com/nabbar/rosnet/msgs"
	"github.com/nabbar/rosnet/node"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Node Runtime", func() {
	var (
		stub *stubMaster
		nd   node.Node
		h    node.Handle
	)

	BeforeEach(func() {
		stub = newStubMaster()

		var err error
		nd, err = node.New(x, node.Config{
			Name:      "test_node",
			MasterURI: stub.uri(),
			Host:      "127.0.0.1",
		}, nil)
		Expect(err).To(BeNil())

		h, err = nd.Handle("")
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		nd.Shutdown()
		stub.close()
	})

	It("should resolve all three listener ports", func() {
		Expect(nd.TCPPort()).To(BeNumerically(">", 0))
		Expect(nd.UDPPort()).To(BeNumerically(">", 0))
		Expect(nd.SlaveURI()).To(ContainSubstring("http://127.0.0.1:"))
		Expect(nd.Name()).To(Equal("/test_node"))
	})

	It("should round trip a streaming message sequence in order", func() {
		var (
			m   sync.Mutex
			got []int8
		)

		sub, err := h.Subscribe(node.SubscribeOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 3,
			Callback: func(msg interface{}, n int, uri string) {
				m.Lock()
				defer m.Unlock()
				got = append(got, msg.(msgs.Int8).Data)
			},
		})
		Expect(err).To(BeNil())
		defer sub.Shutdown()

		pub, err := h.Advertise(node.AdvertiseOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 3,
		})
		Expect(err).To(BeNil())
		defer pub.Shutdown()

		Eventually(pub.NumSubscribers, 5*time.Second).Should(Equal(1))
		Eventually(sub.NumPublishers, 5*time.Second).Should(Equal(1))

		for _, v := range []int8{1, 2, 3} {
			Expect(pub.Publish(msgs.Int8{Data: v})).To(BeNil())
		}

		Eventually(func() []int8 {
			m.Lock()
			defer m.Unlock()
			return append([]int8(nil), got...)
		}, 5*time.Second).Should(Equal([]int8{1, 2, 3}))
	})

	It("should deliver a UTF-8 payload byte equal", func() {
		const payload = "Hello, 世界世界世界"

		var got = make(chan string, 1)

		sub, err := h.Subscribe(node.SubscribeOptions{
			Topic:     "chatter",
			Type:      msgs.StringType(),
			QueueSize: 1,
			Callback: func(msg interface{}, n int, uri string) {
				select {
				case got <- msg.(msgs.String).Data:
				default:
				}
			},
		})
		Expect(err).To(BeNil())
		defer sub.Shutdown()

		pub, err := h.Advertise(node.AdvertiseOptions{
			Topic:     "chatter",
			Type:      msgs.StringType(),
			QueueSize: 1,
		})
		Expect(err).To(BeNil())
		defer pub.Shutdown()

		Eventually(pub.NumSubscribers, 5*time.Second).Should(Equal(1))

		Expect(pub.Publish(msgs.String{Data: payload})).To(BeNil())

		var s string
		Eventually(got, 5*time.Second).Should(Receive(&s))
		Expect(s).To(Equal(payload))
	})

	It("should replay the latched message to a subscriber arriving later", func() {
		pub, err := h.Advertise(node.AdvertiseOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 1,
			Latching:  true,
		})
		Expect(err).To(BeNil())
		defer pub.Shutdown()

		Expect(pub.Publish(msgs.Int8{Data: 1})).To(BeNil())

		// no subscriber yet: wait for the drain to cache the message
		time.Sleep(100 * time.Millisecond)

		var (
			m   sync.Mutex
			got []int8
		)

		sub, err := h.Subscribe(node.SubscribeOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 1,
			Callback: func(msg interface{}, n int, uri string) {
				m.Lock()
				defer m.Unlock()
				got = append(got, msg.(msgs.Int8).Data)
			},
		})
		Expect(err).To(BeNil())
		defer sub.Shutdown()

		Eventually(func() []int8 {
			m.Lock()
			defer m.Unlock()
			return append([]int8(nil), got...)
		}, 5*time.Second).Should(Equal([]int8{1}))

		Consistently(func() int {
			m.Lock()
			defer m.Unlock()
			return len(got)
		}, 200*time.Millisecond).Should(Equal(1))
	})

	It("should throttle delivery to the configured interval", func() {
		var (
			m   sync.Mutex
			got []int8
		)

		sub, err := h.Subscribe(node.SubscribeOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 1,
			Callback: func(msg interface{}, n int, uri string) {
				m.Lock()
				defer m.Unlock()
				got = append(got, msg.(msgs.Int8).Data)
			},
		})
		Expect(err).To(BeNil())
		defer sub.Shutdown()

		pub, err := h.Advertise(node.AdvertiseOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 1,
			Throttle:  100 * time.Millisecond,
		})
		Expect(err).To(BeNil())
		defer pub.Shutdown()

		Eventually(pub.NumSubscribers, 5*time.Second).Should(Equal(1))

		for v := int8(1); v <= 10; v++ {
			Expect(pub.Publish(msgs.Int8{Data: v})).To(BeNil())
			time.Sleep(50 * time.Millisecond)
		}

		Eventually(func() int8 {
			m.Lock()
			defer m.Unlock()
			if len(got) == 0 {
				return 0
			}
			return got[len(got)-1]
		}, 5*time.Second).Should(Equal(int8(10)))

		m.Lock()
		defer m.Unlock()

		// half rate plus the trailing drain
		Expect(len(got)).To(BeNumerically("<", 10))
		Expect(len(got)).To(BeNumerically(">=", 4))
	})

	It("should resolve a service call", func() {
		adv, err := h.AdvertiseService(node.ServiceOptions{
			Service: "s",
			Type:    msgs.EmptySrvType(),
			Handler: func(req interface{}) (interface{}, error) {
				return msgs.Empty{}, nil
			},
		})
		Expect(err).To(BeNil())
		defer adv.Shutdown()

		ok, err := h.WaitForService(x, "s", 5*time.Second)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		cli, err := h.ServiceClient(node.ClientOptions{
			Service: "s",
			Type:    msgs.EmptySrvType(),
		})
		Expect(err).To(BeNil())
		defer cli.Shutdown()

		res, err := cli.Call(x, msgs.Empty{})
		Expect(err).To(BeNil())
		Expect(res).To(Equal(msgs.Empty{}))
	})

	It("should reject a failing service call with the server message", func() {
		adv, err := h.AdvertiseService(node.ServiceOptions{
			Service: "s",
			Type:    msgs.EmptySrvType(),
			Handler: func(req interface{}) (interface{}, error) {
				return nil, errFailed
			},
		})
		Expect(err).To(BeNil())
		defer adv.Shutdown()

		ok, err := h.WaitForService(x, "s", 5*time.Second)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		cli, err := h.ServiceClient(node.ClientOptions{
			Service: "s",
			Type:    msgs.EmptySrvType(),
		})
		Expect(err).To(BeNil())
		defer cli.Shutdown()

		_, err = cli.Call(x, msgs.Empty{})
		Expect(err).To(HaveOccurred())
		Expect(err.ContainsString("handler says no")).To(BeTrue())
	})

	It("should share one endpoint between handles and unregister once", func() {
		sub, err := h.Subscribe(node.SubscribeOptions{
			Topic:     "t",
			Type:      msgs.Int8Type(),
			QueueSize: 1,
		})
		Expect(err).To(BeNil())
		defer sub.Shutdown()

		one, err := h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.Int8Type(), QueueSize: 1})
		Expect(err).To(BeNil())

		two, err := h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.Int8Type(), QueueSize: 1})
		Expect(err).To(BeNil())

		Eventually(sub.NumPublishers, 5*time.Second).Should(Equal(1))
		Expect(stub.counted("registerPublisher")).To(Equal(1))

		one.Shutdown()

		Consistently(sub.NumPublishers, 300*time.Millisecond).Should(Equal(1))
		Expect(stub.counted("unregisterPublisher")).To(Equal(0))
		Expect(two.IsShutdown()).To(BeFalse())

		two.Shutdown()

		Eventually(func() int { return stub.counted("unregisterPublisher") }, 5*time.Second).Should(Equal(1))
		Eventually(sub.NumPublishers, 5*time.Second).Should(Equal(0))
	})

	It("should refuse a second endpoint under another type", func() {
		one, err := h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.Int8Type(), QueueSize: 1})
		Expect(err).To(BeNil())
		defer one.Shutdown()

		_, err = h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.StringType(), QueueSize: 1})
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(node.ErrorTypeConflict)).To(BeTrue())
	})

	It("should resolve topics against the handle namespace", func() {
		pub, err := h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.Int8Type(), QueueSize: 1})
		Expect(err).To(BeNil())
		defer pub.Shutdown()

		Expect(pub.Topic()).To(Equal("/t"))

		ns, err := nd.Handle("ns")
		Expect(err).To(BeNil())

		r, err := ns.Resolve("x")
		Expect(err).To(BeNil())
		Expect(r).To(Equal("/ns/x"))
	})

	It("should be safe to shut the node down twice", func() {
		nd.Shutdown()
		nd.Shutdown()
		Expect(nd.IsShutdown()).To(BeTrue())

		_, err := h.Advertise(node.AdvertiseOptions{Topic: "t", Type: msgs.Int8Type(), QueueSize: 1})
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(node.ErrorShutdown)).To(BeTrue())
	})
})

var _ = Describe("Node Initialization", func() {
	It("should reject with shutdown during init against an unreachable directory", func() {
		nd, err := node.New(x, node.Config{
			Name:      "lonely",
			MasterURI: "http://127.0.0.1:1/",
			Host:      "127.0.0.1",
		}, nil)

		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(node.ErrorShutdownDuringInit)).To(BeTrue())
		Expect(nd).To(BeNil())
	})

	It("should build its configuration from env and remap args", func() {
		cfg := node.NewConfig("talker", []string{
			"__ns:=/demo",
			"__master:=http://127.0.0.1:22422/",
			"old:=new",
			"_private:=dropped",
		})

		Expect(cfg.Name).To(Equal("talker"))
		Expect(cfg.Namespace).To(Equal("/demo"))
		Expect(cfg.MasterURI).To(Equal("http://127.0.0.1:22422/"))
		Expect(cfg.Remaps).To(HaveKeyWithValue("old", "new"))
		Expect(cfg.Remaps).ToNot(HaveKey("_private"))

		Expect(cfg.Validate()).To(BeNil())
		Expect(cfg.DgramSize).To(BeNumerically(">", 0))
	})

	It("should reject an empty node name", func() {
		cfg := node.Config{}
		Expect(cfg.Validate()).To(HaveOccurred())
	})
})
