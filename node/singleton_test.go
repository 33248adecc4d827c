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
	"github.com/nabbar/rosnet/node"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Process Singleton", Ordered, func() {
	var (
		stub *stubMaster
		nd   node.Node
	)

	BeforeAll(func() {
		stub = newStubMaster()
	})

	AfterAll(func() {
		if nd != nil {
			nd.Shutdown()
		}
		stub.close()
	})

	It("should expose the node built by Init", func() {
		var err error
		nd, err = node.Init(x, node.Config{
			Name:      "single",
			MasterURI: stub.uri(),
			Host:      "127.0.0.1",
		}, nil)
		Expect(err).To(BeNil())
		Expect(node.Get()).To(Equal(nd))
	})

	It("should return the same instance for the same name", func() {
		again, err := node.Init(x, node.Config{
			Name:      "single",
			MasterURI: stub.uri(),
			Host:      "127.0.0.1",
		}, nil)
		Expect(err).To(BeNil())
		Expect(again).To(Equal(nd))
	})

	It("should refuse re-initialization under another name", func() {
		_, err := node.Init(x, node.Config{
			Name:      "other",
			MasterURI: stub.uri(),
			Host:      "127.0.0.1",
		}, nil)
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(node.ErrorAlreadyInit)).To(BeTrue())
	})
})
