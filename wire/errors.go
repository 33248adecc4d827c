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

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 80
	ErrorInvalidHeader
	ErrorHeaderMissingField
	ErrorTopicMismatch
	ErrorTypeMismatch
	ErrorMd5Mismatch
	ErrorServiceMismatch
	ErrorTruncated
	ErrorDatagramShort
	ErrorDatagramSize
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorParamEmpty)
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case liberr.UNK_ERROR:
		return ""
	case ErrorParamEmpty:
		return "at least one given parameter is empty"
	case ErrorInvalidHeader:
		return "connection header is not valid"
	case ErrorHeaderMissingField:
		return "connection header misses a required field"
	case ErrorTopicMismatch:
		return "connection header topic does not match"
	case ErrorTypeMismatch:
		return "connection header type does not match"
	case ErrorMd5Mismatch:
		return "connection header md5sum does not match"
	case ErrorServiceMismatch:
		return "connection header service does not match"
	case ErrorTruncated:
		return "stream closed in the middle of a record"
	case ErrorDatagramShort:
		return "datagram shorter than its header"
	case ErrorDatagramSize:
		return "datagram size too small for payload framing"
	}

	return ""
}
