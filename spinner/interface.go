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

// Package spinner implements the queued dispatch schedule shared by every
// endpoint: each registered client owns a bounded queue with a throttle
// interval, drained in insertion order on a single scheduling goroutine.
//
// A client whose throttle interval is negative bypasses the schedule: its
// items drain synchronously in the caller's context, still serialized
// against any other drain of the same client.
package spinner

import (
	"context"
	"time"

	liblog "github.com/nabbar/golib/logger"
)

// FuncDrain receives every queued item of one client, in insertion order.
// A drain never overlaps another drain of the same client.
type FuncDrain func(items []interface{})

// DefaultPeriod is the schedule granularity used when New is given zero.
const DefaultPeriod = 10 * time.Millisecond

// Spinner schedules the queued dispatch of registered clients.
type Spinner interface {
	// Start launches the scheduling goroutine; it stops when the context is
	// cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop halts the schedule and clears every queue.
	Stop()

	// AddClient registers a client queue. Capacity bounds the pending items:
	// the arrival exceeding it evicts the oldest. A negative throttle makes
	// Ping drain synchronously. Re-registering an id replaces its record.
	AddClient(id string, capacity int, throttle time.Duration, drain FuncDrain)

	// Ping enqueues one item for the given client; unknown ids are dropped.
	Ping(id string, item interface{})

	// Disconnect removes the client and drops its pending items. Idempotent.
	Disconnect(id string)

	// Tick runs one scheduling pass synchronously. The running schedule calls
	// this on every period; tests call it directly.
	Tick()

	// Len returns the number of pending items for the given client.
	Len(id string) int
}

// New builds a Spinner with the given schedule period.
func New(period time.Duration, fct liblog.FuncLog) Spinner {
	if period <= 0 {
		period = DefaultPeriod
	}

	return &spn{
		p: period,
		c: make(map[string]*client),
		l: fct,
	}
}
