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

package xmlrpc_test

import (
	"context"
	"errors"
	"time"

	"github.com/nabbar/rosnet/xmlrpc"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client / Server", func() {
	var s xmlrpc.Server

	BeforeEach(func() {
		s = xmlrpc.NewServer("127.0.0.1", 0, nil)
		s.Register("echo", func(ctx context.Context, params []interface{}) (interface{}, error) {
			return params, nil
		})
		s.Register("fail", func(ctx context.Context, params []interface{}) (interface{}, error) {
			return nil, errors.New("handler failed")
		})
		Expect(s.Listen(x)).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		s.Shutdown(200 * time.Millisecond)
	})

	It("should resolve an ephemeral port", func() {
		Expect(s.Port()).To(BeNumerically(">", 0))
		Expect(s.IsRunning()).To(BeTrue())
	})

	It("should serve a registered method", func() {
		c, err := xmlrpc.NewClient(s.URI("127.0.0.1"), nil)
		Expect(err).ToNot(HaveOccurred())

		v, err := c.Call(x, "echo", []interface{}{"hello", 5})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal([]interface{}{"hello", 5}))
	})

	It("should fault on an unknown method", func() {
		c, err := xmlrpc.NewClient(s.URI("127.0.0.1"), nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = c.Call(x, "nope", nil)
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(xmlrpc.ErrorFault)).To(BeTrue())
	})

	It("should fault on a handler error", func() {
		c, err := xmlrpc.NewClient(s.URI("127.0.0.1"), nil)
		Expect(err).ToNot(HaveOccurred())

		_, err = c.Call(x, "fail", nil)
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(xmlrpc.ErrorFault)).To(BeTrue())
	})

	It("should stop retrying on a bounded attempt count", func() {
		// nothing listens on this port
		c, err := xmlrpc.NewClient("http://127.0.0.1:1/", nil)
		Expect(err).ToNot(HaveOccurred())

		start := time.Now()
		_, err = c.CallOpt(x, "echo", nil, xmlrpc.Options{MaxAttempts: 1})
		Expect(err).To(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
	})
})
