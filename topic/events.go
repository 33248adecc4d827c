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

package topic

import "sync"

// events is the typed callback fan out shared by both endpoints. Callback
// lists grow only; firing copies the list so a callback can append safely.
type events struct {
	m   sync.Mutex
	reg []func()
	con []func(string)
	dis []func(string)
	err []func(error)
	msg []func(interface{}, int, string)
}

func (o *events) onRegistered(fct func()) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()
	o.reg = append(o.reg, fct)
}

func (o *events) onConnect(fct func(string)) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()
	o.con = append(o.con, fct)
}

func (o *events) onDisconnect(fct func(string)) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()
	o.dis = append(o.dis, fct)
}

func (o *events) onError(fct func(error)) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()
	o.err = append(o.err, fct)
}

func (o *events) onMessage(fct func(interface{}, int, string)) {
	if fct == nil {
		return
	}

	o.m.Lock()
	defer o.m.Unlock()
	o.msg = append(o.msg, fct)
}

func (o *events) fireRegistered() {
	o.m.Lock()
	l := append([]func(){}, o.reg...)
	o.m.Unlock()

	for _, f := range l {
		f()
	}
}

func (o *events) fireConnect(peer string) {
	o.m.Lock()
	l := append([]func(string){}, o.con...)
	o.m.Unlock()

	for _, f := range l {
		f(peer)
	}
}

func (o *events) fireDisconnect(peer string) {
	o.m.Lock()
	l := append([]func(string){}, o.dis...)
	o.m.Unlock()

	for _, f := range l {
		f(peer)
	}
}

func (o *events) fireError(err error) {
	o.m.Lock()
	l := append([]func(error){}, o.err...)
	o.m.Unlock()

	for _, f := range l {
		f(err)
	}
}

func (o *events) fireMessage(msg interface{}, n int, uri string) {
	o.m.Lock()
	l := append([]func(interface{}, int, string){}, o.msg...)
	o.m.Unlock()

	for _, f := range l {
		f(msg, n, uri)
	}
}
