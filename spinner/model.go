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

package spinner

import (
	"context"
	"sync"
	"time"

	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type client struct {
	cap int
	thr time.Duration
	fct FuncDrain

	q    []interface{}
	nxt  []interface{} // re-entrant pings landed during a drain
	last time.Time
	busy bool
}

type spn struct {
	m sync.Mutex
	p time.Duration
	c map[string]*client
	l liblog.FuncLog
	x context.CancelFunc
}

func (o *spn) logger() liblog.Logger {
	if o.l != nil {
		if l := o.l(); l != nil {
			return l
		}
	}

	return liblog.New(context.Background)
}

func (o *spn) Start(ctx context.Context) {
	o.m.Lock()

	if o.x != nil {
		o.m.Unlock()
		return
	}

	ctx, cnl := context.WithCancel(ctx)
	o.x = cnl
	o.m.Unlock()

	go func() {
		t := time.NewTicker(o.p)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				o.Tick()
			}
		}
	}()
}

func (o *spn) Stop() {
	o.m.Lock()
	defer o.m.Unlock()

	if o.x != nil {
		o.x()
		o.x = nil
	}

	for _, c := range o.c {
		c.q = nil
		c.nxt = nil
	}
}

func (o *spn) AddClient(id string, capacity int, throttle time.Duration, drain FuncDrain) {
	if len(id) == 0 || drain == nil {
		return
	}

	if capacity < 1 {
		capacity = 1
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.c[id] = &client{
		cap: capacity,
		thr: throttle,
		fct: drain,
	}
}

func (o *spn) Ping(id string, item interface{}) {
	o.m.Lock()

	c, k := o.c[id]
	if !k {
		o.m.Unlock()
		o.logger().Entry(loglvl.DebugLevel, "ping for unregistered client").FieldAdd("client", id).Log()
		return
	}

	if c.busy {
		c.nxt = append(c.nxt, item)
		if len(c.nxt) > c.cap {
			c.nxt = c.nxt[1:]
		}
		o.m.Unlock()
		return
	}

	c.q = append(c.q, item)
	if len(c.q) > c.cap {
		c.q = c.q[1:]
	}

	if c.thr < 0 {
		c.busy = true
		items := c.q
		c.q = nil
		o.m.Unlock()

		c.fct(items)

		o.m.Lock()
		c.busy = false
		c.q = append(c.nxt, c.q...)
		c.nxt = nil
	}

	o.m.Unlock()
}

func (o *spn) Disconnect(id string) {
	o.m.Lock()
	defer o.m.Unlock()

	delete(o.c, id)
}

func (o *spn) Tick() {
	var (
		now = time.Now()
		due []*client
	)

	o.m.Lock()
	for _, c := range o.c {
		if c.busy || len(c.q) == 0 {
			continue
		}

		if c.thr > 0 && now.Before(c.last.Add(c.thr)) {
			continue
		}

		c.busy = true
		due = append(due, c)
	}
	o.m.Unlock()

	for _, c := range due {
		o.m.Lock()
		items := c.q
		c.q = nil
		o.m.Unlock()

		c.fct(items)

		o.m.Lock()
		c.busy = false
		c.last = now
		c.q = append(c.nxt, c.q...)
		c.nxt = nil
		o.m.Unlock()
	}
}

func (o *spn) Len(id string) int {
	o.m.Lock()
	defer o.m.Unlock()

	if c, k := o.c[id]; k {
		return len(c.q) + len(c.nxt)
	}

	return 0
}
