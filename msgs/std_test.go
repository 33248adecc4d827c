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

package msgs_test

import (
	"github.com/nabbar/rosnet/msgs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Std Types", func() {
	It("should round trip Int8", func() {
		t := msgs.Int8Type()
		b, err := t.Serialize(msgs.Int8{Data: -3})
		Expect(err).ToNot(HaveOccurred())

		v, err := t.Deserialize(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(msgs.Int8{Data: -3}))
	})

	It("should round trip String with multi byte runes", func() {
		t := msgs.StringType()
		b, err := t.Serialize(msgs.String{Data: "Hello, 世界世界世界"})
		Expect(err).ToNot(HaveOccurred())

		v, err := t.Deserialize(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(msgs.String{Data: "Hello, 世界世界世界"}))
	})

	It("should reject a wrong value type", func() {
		_, err := msgs.Int8Type().Serialize("nope")
		Expect(err).To(MatchError(msgs.ErrMessageType))
	})

	It("should reject short buffers", func() {
		_, err := msgs.StringType().Deserialize([]byte{1, 0})
		Expect(err).To(MatchError(msgs.ErrShortBuffer))
	})

	It("should serialize Empty to no bytes", func() {
		b, err := msgs.EmptyType().Serialize(msgs.Empty{})
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(BeEmpty())
	})

	It("should expose both halves of the empty service", func() {
		s := msgs.EmptySrvType()
		Expect(s.Name()).To(Equal("std_srvs/Empty"))
		Expect(s.Request()).ToNot(BeNil())
		Expect(s.Response()).ToNot(BeNil())
	})
})
