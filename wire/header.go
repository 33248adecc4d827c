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

// Package wire implements the on-wire formats of the graph transports: the
// framed connection header exchanged on every stream, the length prefixed
// message framing, the service response framing, the datagram header with its
// chunker, and the stateful deframer turning a byte stream back into records.
//
// All integers on the wire are little endian; strings are UTF-8.
package wire

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

const (
	KeyCallerID   = "callerid"
	KeyMD5Sum     = "md5sum"
	KeyTopic      = "topic"
	KeyService    = "service"
	KeyType       = "type"
	KeyLatching   = "latching"
	KeyPersistent = "persistent"
	KeyNoDelay    = "tcp_nodelay"
	KeyDefinition = "message_definition"
	KeyError      = "error"

	// Wildcard matches any type or md5sum in a connection header.
	Wildcard = "*"
)

// Header is the key/value set of one connection header.
type Header map[string]string

// Flag reports whether the given key is present with the value "1".
func (h Header) Flag(key string) bool {
	return h[key] == "1"
}

// Encode renders the header with its outer length prefix followed by one
// length prefixed 'key=value' record per field, in sorted key order.
func (h Header) Encode() []byte {
	var k = make([]string, 0, len(h))
	for f := range h {
		k = append(k, f)
	}

	sort.Strings(k)

	var n int
	for _, f := range k {
		n += 4 + len(f) + 1 + len(h[f])
	}

	var b = make([]byte, 4, 4+n)
	binary.LittleEndian.PutUint32(b, uint32(n))

	for _, f := range k {
		r := f + "=" + h[f]
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(r)))
		b = append(b, l[:]...)
		b = append(b, r...)
	}

	return b
}

// ParseHeader decodes the record set of a connection header. The outer length
// prefix must already be stripped (the deframer emits the record body). A
// record without '=' is rejected.
func ParseHeader(b []byte) (Header, liberr.Error) {
	var h = make(Header)

	for len(b) > 0 {
		if len(b) < 4 {
			return nil, ErrorInvalidHeader.Error(fmt.Errorf("dangling %d bytes", len(b)))
		}

		l := binary.LittleEndian.Uint32(b)
		b = b[4:]

		if uint32(len(b)) < l {
			return nil, ErrorInvalidHeader.Error(fmt.Errorf("field length %d exceeds remainder %d", l, len(b)))
		}

		r := string(b[:l])
		b = b[l:]

		i := strings.Index(r, "=")
		if i < 0 {
			return nil, ErrorInvalidHeader.Error(fmt.Errorf("field without separator: %s", r))
		}

		h[r[:i]] = r[i+1:]
	}

	return h, nil
}

// ErrorHeader renders the framed error record sent back before closing a
// connection whose header failed validation.
func ErrorHeader(msg string) []byte {
	return Header{KeyError: msg}.Encode()
}

// ValidateSubscriber checks a subscriber to publisher header against the
// publisher endpoint: topic, type and md5sum must be present; topic must
// match; type and md5sum must match or be the wildcard.
func ValidateSubscriber(h Header, topic, dataType, md5 string) liberr.Error {
	for _, k := range []string{KeyTopic, KeyType, KeyMD5Sum} {
		if _, ok := h[k]; !ok {
			return ErrorHeaderMissingField.Error(fmt.Errorf("missing %s", k))
		}
	}

	if h[KeyTopic] != topic {
		return ErrorTopicMismatch.Error(fmt.Errorf("got '%s' want '%s'", h[KeyTopic], topic))
	}

	if t := h[KeyType]; t != Wildcard && t != dataType {
		return ErrorTypeMismatch.Error(fmt.Errorf("got '%s' want '%s'", t, dataType))
	}

	if m := h[KeyMD5Sum]; m != Wildcard && m != md5 {
		return ErrorMd5Mismatch.Error(fmt.Errorf("got '%s' want '%s'", m, md5))
	}

	return nil
}

// ValidatePublisher checks a publisher reply header on the subscriber side:
// type and md5sum must match the subscriber expectation or be the wildcard.
func ValidatePublisher(h Header, dataType, md5 string) liberr.Error {
	if m, ok := h[KeyError]; ok {
		return ErrorInvalidHeader.Error(fmt.Errorf("%s", m))
	}

	if t, ok := h[KeyType]; ok && t != Wildcard && dataType != Wildcard && t != dataType {
		return ErrorTypeMismatch.Error(fmt.Errorf("got '%s' want '%s'", t, dataType))
	}

	if m, ok := h[KeyMD5Sum]; ok && m != Wildcard && md5 != Wildcard && m != md5 {
		return ErrorMd5Mismatch.Error(fmt.Errorf("got '%s' want '%s'", m, md5))
	}

	return nil
}

// ValidateServiceClient checks a service client to server header: service and
// md5sum must be present; service must match; md5sum must match or be the
// wildcard.
func ValidateServiceClient(h Header, service, md5 string) liberr.Error {
	for _, k := range []string{KeyService, KeyMD5Sum} {
		if _, ok := h[k]; !ok {
			return ErrorHeaderMissingField.Error(fmt.Errorf("missing %s", k))
		}
	}

	if h[KeyService] != service {
		return ErrorServiceMismatch.Error(fmt.Errorf("got '%s' want '%s'", h[KeyService], service))
	}

	if m := h[KeyMD5Sum]; m != Wildcard && m != md5 {
		return ErrorMd5Mismatch.Error(fmt.Errorf("got '%s' want '%s'", m, md5))
	}

	return nil
}
