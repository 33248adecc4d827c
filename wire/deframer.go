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

// Mode selects the record layout the deframer expects.
type Mode uint8

const (
	// ModeRecord emits length prefixed records; the first record of any
	// accepted stream is always a connection header.
	ModeRecord Mode = iota

	// ModeServiceReply emits service responses: a one byte success flag then
	// a length prefixed body. The service client switches a deframer to this
	// mode once the server header has been read.
	ModeServiceReply
)

// Record is one complete unit emitted by the deframer. OK is always true in
// ModeRecord; in ModeServiceReply it carries the response success flag.
type Record struct {
	OK   bool
	Body []byte
}

// Deframer is a stateful byte stream chunker producing whole records. It is
// not safe for concurrent use; each connection owns one.
type Deframer struct {
	b []byte
	m Mode
}

// NewDeframer builds a Deframer in ModeRecord.
func NewDeframer() *Deframer {
	return &Deframer{}
}

// SetMode switches the record layout; safe between Feed calls only.
func (o *Deframer) SetMode(m Mode) {
	o.m = m
}

// Pending returns the number of buffered bytes not yet forming a record.
func (o *Deframer) Pending() int {
	return len(o.b)
}

// Feed appends bytes from the stream and returns every record completed by
// them, in order.
func (o *Deframer) Feed(p []byte) []Record {
	o.b = append(o.b, p...)

	var res []Record

	for {
		if o.m == ModeServiceReply {
			if len(o.b) < 5 {
				return res
			}

			l := binary.LittleEndian.Uint32(o.b[1:])
			if uint32(len(o.b)-5) < l {
				return res
			}

			r := Record{
				OK:   o.b[0] == 1,
				Body: append([]byte(nil), o.b[5:5+l]...),
			}
			o.b = o.b[5+l:]
			res = append(res, r)
			continue
		}

		if len(o.b) < 4 {
			return res
		}

		l := binary.LittleEndian.Uint32(o.b)
		if uint32(len(o.b)-4) < l {
			return res
		}

		r := Record{
			OK:   true,
			Body: append([]byte(nil), o.b[4:4+l]...),
		}
		o.b = o.b[4+l:]
		res = append(res, r)
	}
}

// Close reports ErrorTruncated when the stream ended mid record.
func (o *Deframer) Close() liberr.Error {
	if len(o.b) > 0 {
		o.b = nil
		return ErrorTruncated.Error(nil)
	}

	return nil
}
