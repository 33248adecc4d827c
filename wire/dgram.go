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

	liberr "github.com/nabbar/golib/errors"
)

// Datagram opcodes.
const (
	OpData0 uint8 = iota // first block, carries the total block count
	OpDataN              // continuation block
	OpPing               // reserved
	OpErr                // reserved
)

// DgramHeaderLen is the framing overhead accounted per packet; the payload of
// every block is the negotiated datagram size minus this.
const DgramHeaderLen = 8

// DgramHeader is the application level header opening every datagram.
type DgramHeader struct {
	ConnID     uint32
	OpCode     uint8
	MsgID      uint8
	BlockNr    uint8
	BlockCount uint8 // meaningful on OpData0 only
}

// ParseDgram splits one datagram into its header and payload.
func ParseDgram(b []byte) (DgramHeader, []byte, liberr.Error) {
	var h DgramHeader

	if len(b) < 7 {
		return h, nil, ErrorDatagramShort.Error(nil)
	}

	h.ConnID = binary.LittleEndian.Uint32(b)
	h.OpCode = b[4]
	h.MsgID = b[5]
	h.BlockNr = b[6]

	if h.OpCode == OpData0 {
		if len(b) < 8 {
			return h, nil, ErrorDatagramShort.Error(nil)
		}
		h.BlockCount = b[7]
		return h, b[8:], nil
	}

	return h, b[7:], nil
}

func (h DgramHeader) encode() []byte {
	var b []byte

	if h.OpCode == OpData0 {
		b = make([]byte, 8)
		b[7] = h.BlockCount
	} else {
		b = make([]byte, 7)
	}

	binary.LittleEndian.PutUint32(b, h.ConnID)
	b[4] = h.OpCode
	b[5] = h.MsgID
	b[6] = h.BlockNr

	return b
}

// Chunk splits one serialized message into datagrams for the given connection
// and message counter. A message fitting one block yields a single OpData0
// with a block count of one; larger messages yield OpData0 followed by OpDataN
// blocks in order.
func Chunk(connID uint32, msgID uint8, buf []byte, dgramSize int) ([][]byte, liberr.Error) {
	if dgramSize <= DgramHeaderLen {
		return nil, ErrorDatagramSize.Error(nil)
	}

	var (
		p = dgramSize - DgramHeaderLen
		n = (len(buf) + p - 1) / p
	)

	if n == 0 {
		n = 1
	} else if n > 255 {
		return nil, ErrorDatagramSize.Error(nil)
	}

	var res = make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		var (
			h DgramHeader
			s = i * p
			e = s + p
		)

		if e > len(buf) {
			e = len(buf)
		}

		h.ConnID = connID
		h.MsgID = msgID
		h.BlockNr = uint8(i)

		if i == 0 {
			h.OpCode = OpData0
			h.BlockCount = uint8(n)
		} else {
			h.OpCode = OpDataN
		}

		res = append(res, append(h.encode(), buf[s:e]...))
	}

	return res, nil
}
