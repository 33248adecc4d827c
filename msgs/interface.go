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

// Package msgs defines the contract between the node runtime and the
// generated message and service types. The runtime never interprets payload
// bytes beyond framing; serialization belongs entirely to the MessageType
// implementation.
package msgs

// MessageType describes one message type: its identity on the graph and the
// byte level codec for its values.
type MessageType interface {
	// Name returns the graph type name, as "pkg/Type".
	Name() string

	// MD5Sum returns the 32 hex character checksum of the type definition.
	MD5Sum() string

	// Definition returns the full text of the message definition.
	Definition() string

	// Serialize renders one message value to its wire bytes.
	Serialize(msg interface{}) ([]byte, error)

	// Deserialize rebuilds a message value from its wire bytes.
	Deserialize(b []byte) (interface{}, error)
}

// Normalizer is implemented by message types whose values need a
// normalization pass before serialization.
type Normalizer interface {
	// Resolve returns the normalized form of the given message value.
	Resolve(msg interface{}) interface{}
}

// ServiceType describes one service type: its identity plus the message
// types of its request and response halves.
type ServiceType interface {
	// Name returns the graph type name, as "pkg/Type".
	Name() string

	// MD5Sum returns the checksum covering both halves.
	MD5Sum() string

	// Request returns the request message type.
	Request() MessageType

	// Response returns the response message type.
	Response() MessageType
}
