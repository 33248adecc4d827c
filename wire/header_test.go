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

package wire_test

import (
	"encoding/binary"

	"github.com/nabbar/rosnet/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connection Header", func() {
	It("should round trip through encode and parse", func() {
		h := wire.Header{
			wire.KeyCallerID: "/node",
			wire.KeyTopic:    "/chatter",
			wire.KeyType:     "std_msgs/String",
			wire.KeyMD5Sum:   "992ce8a1687cec8c8bd883ec73ca41d1",
			wire.KeyLatching: "1",
		}

		b := h.Encode()
		l := binary.LittleEndian.Uint32(b)
		Expect(int(l)).To(Equal(len(b) - 4))

		p, err := wire.ParseHeader(b[4:])
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(Equal(h))
		Expect(p.Flag(wire.KeyLatching)).To(BeTrue())
		Expect(p.Flag(wire.KeyPersistent)).To(BeFalse())
	})

	It("should reject a record without separator", func() {
		b := []byte{5, 0, 0, 0, 'n', 'o', 's', 'e', 'p'}
		_, err := wire.ParseHeader(b)
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(wire.ErrorInvalidHeader)).To(BeTrue())
	})

	It("should reject a field length overrun", func() {
		b := []byte{9, 0, 0, 0, 'a', '=', 'b'}
		_, err := wire.ParseHeader(b)
		Expect(err).To(HaveOccurred())
	})

	Describe("ValidateSubscriber", func() {
		var h wire.Header

		BeforeEach(func() {
			h = wire.Header{
				wire.KeyTopic:  "/t",
				wire.KeyType:   "std_msgs/Int8",
				wire.KeyMD5Sum: "27ffa0c9c4b8fb8492252bcad9e5c57b",
			}
		})

		It("should accept a matching header", func() {
			Expect(wire.ValidateSubscriber(h, "/t", "std_msgs/Int8", "27ffa0c9c4b8fb8492252bcad9e5c57b")).To(BeNil())
		})

		It("should accept wildcards for type and md5sum", func() {
			h[wire.KeyType] = wire.Wildcard
			h[wire.KeyMD5Sum] = wire.Wildcard
			Expect(wire.ValidateSubscriber(h, "/t", "std_msgs/Int8", "27ffa0c9c4b8fb8492252bcad9e5c57b")).To(BeNil())
		})

		It("should reject a missing field", func() {
			delete(h, wire.KeyMD5Sum)
			err := wire.ValidateSubscriber(h, "/t", "std_msgs/Int8", "x")
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(wire.ErrorHeaderMissingField)).To(BeTrue())
		})

		It("should reject a topic mismatch", func() {
			err := wire.ValidateSubscriber(h, "/other", "std_msgs/Int8", "27ffa0c9c4b8fb8492252bcad9e5c57b")
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(wire.ErrorTopicMismatch)).To(BeTrue())
		})

		It("should reject a md5sum mismatch", func() {
			h[wire.KeyMD5Sum] = "deadbeef"
			err := wire.ValidateSubscriber(h, "/t", "std_msgs/Int8", "27ffa0c9c4b8fb8492252bcad9e5c57b")
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(wire.ErrorMd5Mismatch)).To(BeTrue())
		})
	})

	Describe("ValidatePublisher", func() {
		It("should surface a framed error field", func() {
			h := wire.Header{wire.KeyError: "no such topic"}
			err := wire.ValidatePublisher(h, "std_msgs/Int8", "x")
			Expect(err).To(HaveOccurred())
		})

		It("should accept when the subscriber asked for the wildcard", func() {
			h := wire.Header{wire.KeyType: "std_msgs/Int8", wire.KeyMD5Sum: "abc"}
			Expect(wire.ValidatePublisher(h, wire.Wildcard, wire.Wildcard)).To(BeNil())
		})
	})

	Describe("ValidateServiceClient", func() {
		It("should require service and md5sum", func() {
			err := wire.ValidateServiceClient(wire.Header{wire.KeyService: "/s"}, "/s", "x")
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(wire.ErrorHeaderMissingField)).To(BeTrue())
		})

		It("should reject a service mismatch", func() {
			h := wire.Header{wire.KeyService: "/a", wire.KeyMD5Sum: wire.Wildcard}
			err := wire.ValidateServiceClient(h, "/b", "x")
			Expect(err).To(HaveOccurred())
			Expect(err.HasCode(wire.ErrorServiceMismatch)).To(BeTrue())
		})
	})
})
