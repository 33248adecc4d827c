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

package xmlrpc

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"syscall"
	"time"

	htcrty "github.com/hashicorp/go-retryablehttp"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

const (
	retryWaitMin = 100 * time.Millisecond
	retryWaitMax = 30 * time.Second

	// no caller bound on attempts
	RetryUnlimited = -1
)

// Options bounds one call. MaxAttempts counts the first try; RetryUnlimited
// or zero means retry until the context expires.
type Options struct {
	MaxAttempts int
	Timeout     time.Duration
}

// Client performs XML-RPC method calls against a fixed endpoint, retrying on
// connection refused with exponential backoff.
type Client interface {
	// URI returns the endpoint this client calls.
	URI() string

	// Call performs one method call with default options.
	Call(ctx context.Context, method string, params []interface{}) (interface{}, liberr.Error)

	// CallOpt performs one method call bounded by the given options.
	CallOpt(ctx context.Context, method string, params []interface{}, opt Options) (interface{}, liberr.Error)
}

type cli struct {
	u string
	l liblog.FuncLog
}

// NewClient builds a Client for the given endpoint URI.
func NewClient(uri string, fct liblog.FuncLog) (Client, liberr.Error) {
	if len(uri) == 0 {
		return nil, ErrorParamEmpty.Error(nil)
	} else if _, e := url.Parse(uri); e != nil {
		return nil, ErrorParamEmpty.Error(e)
	}

	return &cli{
		u: uri,
		l: fct,
	}, nil
}

func (o *cli) logger() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *cli) URI() string {
	return o.u
}

func (o *cli) Call(ctx context.Context, method string, params []interface{}) (interface{}, liberr.Error) {
	return o.CallOpt(ctx, method, params, Options{})
}

func (o *cli) CallOpt(ctx context.Context, method string, params []interface{}, opt Options) (interface{}, liberr.Error) {
	var (
		e liberr.Error
		s string
	)

	if s, e = EncodeCall(method, params); e != nil {
		return nil, e
	}

	if opt.Timeout > 0 {
		var cnl context.CancelFunc
		ctx, cnl = context.WithTimeout(ctx, opt.Timeout)
		defer cnl()
	}

	req, err := htcrty.NewRequestWithContext(ctx, http.MethodPost, o.u, bytes.NewBufferString(s))
	if err != nil {
		return nil, ErrorRequest.Error(err)
	}

	req.Header.Set("Content-Type", "text/xml")

	rsp, err := o.newRetry(opt).Do(req)
	if err != nil {
		return nil, ErrorRequest.Error(err)
	}

	defer func() {
		_ = rsp.Body.Close()
	}()

	if rsp.StatusCode != http.StatusOK {
		return nil, ErrorResponse.Error(errors.New(rsp.Status))
	}

	return DecodeResponse(rsp.Body)
}

func (o *cli) newRetry(opt Options) *htcrty.Client {
	c := htcrty.NewClient()
	c.RetryWaitMin = retryWaitMin
	c.RetryWaitMax = retryWaitMax
	c.Logger = o.logger().GetStdLogger(loglvl.DebugLevel, log.LstdFlags)

	if opt.MaxAttempts > 0 {
		c.RetryMax = opt.MaxAttempts - 1
	} else {
		// bounded by the caller's context only
		c.RetryMax = int(^uint(0) >> 1)
	}

	c.CheckRetry = func(ctx context.Context, rsp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		// only a refused connection is worth retrying: the directory is not
		// up yet or is restarting
		if err != nil && errors.Is(err, syscall.ECONNREFUSED) {
			return true, nil
		}

		return false, err
	}

	return c
}
