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

package spinner_test

import (
	"sync"
	"time"

	"github.com/nabbar/rosnet/spinner"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sink struct {
	m sync.Mutex
	v []interface{}
	n int // drain invocations
}

func (o *sink) drain(items []interface{}) {
	o.m.Lock()
	defer o.m.Unlock()
	o.v = append(o.v, items...)
	o.n++
}

func (o *sink) items() []interface{} {
	o.m.Lock()
	defer o.m.Unlock()
	return append([]interface{}(nil), o.v...)
}

var _ = Describe("Spinner", func() {
	var (
		s spinner.Spinner
		k *sink
	)

	BeforeEach(func() {
		s = spinner.New(spinner.DefaultPeriod, nil)
		k = &sink{}
	})

	It("should deliver queued items in insertion order on tick", func() {
		s.AddClient("c", 10, 0, k.drain)
		s.Ping("c", 1)
		s.Ping("c", 2)
		s.Ping("c", 3)
		Expect(s.Len("c")).To(Equal(3))

		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{1, 2, 3}))
		Expect(s.Len("c")).To(Equal(0))
	})

	It("should evict the oldest item beyond capacity", func() {
		s.AddClient("c", 3, 0, k.drain)
		for i := 1; i <= 5; i++ {
			s.Ping("c", i)
		}
		Expect(s.Len("c")).To(Equal(3))

		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{3, 4, 5}))
	})

	It("should hold delivery until the throttle interval elapsed", func() {
		s.AddClient("c", 10, 50*time.Millisecond, k.drain)
		s.Ping("c", 1)
		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{1}))

		s.Ping("c", 2)
		s.Tick()
		// second drain throttled
		Expect(k.items()).To(Equal([]interface{}{1}))

		time.Sleep(60 * time.Millisecond)
		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{1, 2}))
	})

	It("should drain synchronously on a negative throttle", func() {
		s.AddClient("c", 10, -1, k.drain)
		s.Ping("c", 42)
		Expect(k.items()).To(Equal([]interface{}{42}))
	})

	It("should drop items for a disconnected client", func() {
		s.AddClient("c", 10, 0, k.drain)
		s.Ping("c", 1)
		s.Disconnect("c")
		s.Disconnect("c") // idempotent
		s.Tick()
		Expect(k.items()).To(BeEmpty())
		Expect(s.Len("c")).To(Equal(0))
	})

	It("should ignore pings for unknown clients", func() {
		s.Ping("nope", 1)
		s.Tick()
		Expect(k.items()).To(BeEmpty())
	})

	It("should run the schedule from Start", func() {
		s.AddClient("c", 10, 0, k.drain)
		s.Start(x)
		defer s.Stop()

		s.Ping("c", 9)
		Eventually(k.items, time.Second, 5*time.Millisecond).Should(Equal([]interface{}{9}))
	})

	It("should append a re-entrant ping for the next tick", func() {
		var again = true
		s.AddClient("c", 10, 0, func(items []interface{}) {
			k.drain(items)
			if again {
				again = false
				s.Ping("c", "re")
			}
		})

		s.Ping("c", "first")
		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{"first"}))

		s.Tick()
		Expect(k.items()).To(Equal([]interface{}{"first", "re"}))
	})
})
