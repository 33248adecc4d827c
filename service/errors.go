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

package service

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 150
	ErrorShutdown
	ErrorQueueFull
	ErrorFailed
	ErrorSocketClosed
	ErrorLookup
	ErrorConnect
	ErrorHandshake
	ErrorSerialize
	ErrorDeserialize
	ErrorRegister
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
	case ErrorShutdown:
		return "service endpoint is shut down"
	case ErrorQueueFull:
		return "service call displaced by queue overflow"
	case ErrorFailed:
		return "service handler reported a failure"
	case ErrorSocketClosed:
		return "service socket closed before the response"
	case ErrorLookup:
		return "cannot look up the service provider"
	case ErrorConnect:
		return "cannot connect to the service provider"
	case ErrorHandshake:
		return "service header exchange failed"
	case ErrorSerialize:
		return "cannot serialize service payload"
	case ErrorDeserialize:
		return "cannot deserialize service payload"
	case ErrorRegister:
		return "cannot register service with the directory"
	}

	return ""
}
