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

package node

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 180
	ErrorConfigInvalid
	ErrorListen
	ErrorShutdown
	ErrorShutdownDuringInit
	ErrorAlreadyInit
	ErrorTopicUnknown
	ErrorServiceUnknown
	ErrorProtocolUnknown
	ErrorTypeConflict
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
	case ErrorConfigInvalid:
		return "node configuration is not valid"
	case ErrorListen:
		return "cannot bind a node listener"
	case ErrorShutdown:
		return "node is shut down"
	case ErrorShutdownDuringInit:
		return "node shut down before initialization completed"
	case ErrorAlreadyInit:
		return "node already initialized under another name"
	case ErrorTopicUnknown:
		return "no endpoint for the given topic"
	case ErrorServiceUnknown:
		return "no endpoint for the given service"
	case ErrorProtocolUnknown:
		return "no requested protocol is supported"
	case ErrorTypeConflict:
		return "endpoint exists with another message type"
	}

	return ""
}
