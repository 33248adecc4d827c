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

package wire

import (
	"encoding/binary"
	"io"
)

// Frame prefixes the given body with its 4 byte little endian length.
func Frame(body []byte) []byte {
	var b = make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(b, uint32(len(body)))
	return append(b, body...)
}

// WriteFrame writes one framed record to the given writer.
func WriteFrame(w io.Writer, body []byte) (int, error) {
	return w.Write(Frame(body))
}

// FrameServiceReply renders a service response: a one byte success flag then
// the length prefixed response bytes on success, or the length prefixed error
// string on failure.
func FrameServiceReply(ok bool, body []byte) []byte {
	var b = make([]byte, 5, 5+len(body))

	if ok {
		b[0] = 1
	}

	binary.LittleEndian.PutUint32(b[1:], uint32(len(body)))
	return append(b, body...)
}
