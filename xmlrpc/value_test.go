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
	"strings"

	"github.com/nabbar/rosnet/xmlrpc"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Value Codec", func() {
	Describe("EncodeCall / DecodeCall", func() {
		It("should round trip positional parameters", func() {
			doc, err := xmlrpc.EncodeCall("registerPublisher", []interface{}{
				"/caller", "/topic", "std_msgs/String", "http://host:123/",
			})
			Expect(err).ToNot(HaveOccurred())

			m, p, err := xmlrpc.DecodeCall(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal("registerPublisher"))
			Expect(p).To(Equal([]interface{}{"/caller", "/topic", "std_msgs/String", "http://host:123/"}))
		})

		It("should round trip mixed typed values", func() {
			doc, err := xmlrpc.EncodeCall("requestTopic", []interface{}{
				"/caller", "/topic", []interface{}{
					[]interface{}{"TCPROS"},
					[]interface{}{"UDPROS", []byte{0x01, 0x02}, "host", 1234, 1500},
				},
			})
			Expect(err).ToNot(HaveOccurred())

			m, p, err := xmlrpc.DecodeCall(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal("requestTopic"))
			Expect(p).To(HaveLen(3))

			prt := p[2].([]interface{})
			Expect(prt).To(HaveLen(2))
			Expect(prt[0]).To(Equal([]interface{}{"TCPROS"}))

			udp := prt[1].([]interface{})
			Expect(udp[0]).To(Equal("UDPROS"))
			Expect(udp[1]).To(Equal([]byte{0x01, 0x02}))
			Expect(udp[3]).To(Equal(1234))
		})

		It("should escape markup in strings", func() {
			doc, err := xmlrpc.EncodeCall("setParam", []interface{}{"/caller", "/key", "<a&b>"})
			Expect(err).ToNot(HaveOccurred())

			_, p, err := xmlrpc.DecodeCall(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())
			Expect(p[2]).To(Equal("<a&b>"))
		})

		It("should round trip booleans and doubles", func() {
			doc, err := xmlrpc.EncodeCall("m", []interface{}{true, false, 3.5})
			Expect(err).ToNot(HaveOccurred())

			_, p, err := xmlrpc.DecodeCall(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal([]interface{}{true, false, 3.5}))
		})

		It("should reject a document without a method name", func() {
			_, _, err := xmlrpc.DecodeCall(strings.NewReader("<methodCall><params></params></methodCall>"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("EncodeResponse / DecodeResponse", func() {
		It("should round trip the status triple", func() {
			doc, err := xmlrpc.EncodeResponse([]interface{}{1, "ok", []string{"http://a/", "http://b/"}})
			Expect(err).ToNot(HaveOccurred())

			v, err := xmlrpc.DecodeResponse(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())

			t := v.([]interface{})
			Expect(t[0]).To(Equal(1))
			Expect(t[1]).To(Equal("ok"))
			Expect(t[2]).To(Equal([]interface{}{"http://a/", "http://b/"}))
		})

		It("should surface a fault as an error", func() {
			doc := xmlrpc.EncodeFault(-1, "boom")
			_, err := xmlrpc.DecodeResponse(strings.NewReader(doc))
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(xmlrpc.ErrorFault)).To(BeTrue())
		})

		It("should decode a struct value", func() {
			doc, err := xmlrpc.EncodeResponse(map[string]interface{}{"k": 7})
			Expect(err).ToNot(HaveOccurred())

			v, err := xmlrpc.DecodeResponse(strings.NewReader(doc))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(map[string]interface{}{"k": 7}))
		})
	})
})
