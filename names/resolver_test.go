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

package names_test

import (
	"github.com/nabbar/rosnet/names"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolver", func() {
	var r names.Resolver

	BeforeEach(func() {
		var err error
		r, err = names.NewResolver("my_node", "/my_ns", nil)
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("NewResolver", func() {
		It("should qualify the node name with the namespace", func() {
			Expect(r.NodeName()).To(Equal("/my_ns/my_node"))
			Expect(r.Namespace()).To(Equal("/my_ns"))
		})

		It("should default an empty namespace to the root", func() {
			n, err := names.NewResolver("node", "", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.NodeName()).To(Equal("/node"))
			Expect(n.Namespace()).To(Equal("/"))
		})

		It("should reject an empty node name", func() {
			_, err := names.NewResolver("", "/ns", nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid node name", func() {
			_, err := names.NewResolver("9node", "/ns", nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Resolve", func() {
		It("should keep a global name", func() {
			Expect(r.Resolve("/foo/bar")).To(Equal("/foo/bar"))
		})

		It("should prefix a relative name with the namespace", func() {
			Expect(r.Resolve("foo")).To(Equal("/my_ns/foo"))
		})

		It("should resolve a private name against the node name", func() {
			Expect(r.Resolve("~foo")).To(Equal("/my_ns/my_node/foo"))
		})

		It("should resolve an empty name to the namespace", func() {
			Expect(r.Resolve("")).To(Equal("/my_ns"))
		})

		It("should reject an invalid name", func() {
			_, err := r.Resolve("not valid")
			Expect(err).To(HaveOccurred())
		})

		It("should be idempotent over its own result", func() {
			for _, n := range []string{"foo", "/foo/bar", "~baz", ""} {
				one, err := r.Resolve(n)
				Expect(err).ToNot(HaveOccurred())
				two, err := r.Resolve(one)
				Expect(err).ToNot(HaveOccurred())
				Expect(two).To(Equal(one))
			}
		})
	})

	Describe("Remap", func() {
		BeforeEach(func() {
			Expect(r.AddRemap("old", "/elsewhere/new")).ToNot(HaveOccurred())
		})

		It("should substitute a resolved entry", func() {
			Expect(r.Resolve("old")).To(Equal("/elsewhere/new"))
		})

		It("should leave unknown names unchanged", func() {
			Expect(r.Remap("/my_ns/other")).To(Equal("/my_ns/other"))
		})

		It("should be idempotent", func() {
			once := r.Remap("/my_ns/old")
			Expect(r.Remap(once)).To(Equal(once))
		})

		It("should expose the table snapshot", func() {
			Expect(r.Remaps()).To(HaveKeyWithValue("/my_ns/old", "/elsewhere/new"))
		})
	})
})
