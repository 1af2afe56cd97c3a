// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"container/heap"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only through Advance. Pending
// waits are kept in deadline order and fire during Advance; waits with
// equal deadlines fire in registration order.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu       sync.Mutex
	current  time.Time
	pending  waitQueue
	sequence uint64
	changed  *sync.Cond
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

type wait struct {
	deadline time.Time
	sequence uint64
	channel  chan time.Time
	index    int
}

// waitQueue is a min-heap on (deadline, sequence).
type waitQueue []*wait

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].sequence < q[j].sequence
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitQueue) Push(item any) {
	entry := item.(*wait)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *waitQueue) Pop() any {
	old := *q
	entry := old[len(old)-1]
	old[len(old)-1] = nil
	entry.index = -1
	*q = old[:len(old)-1]
	return entry
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a wait of d. With d <= 0 the channel is ready on
// return and nothing is registered.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C
}

// NewTimer registers a wait of d and returns its Timer.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return &Timer{C: channel, stop: func() bool { return false }}
	}

	entry := &wait{
		deadline: c.current.Add(d),
		sequence: c.sequence,
		channel:  channel,
	}
	c.sequence++
	heap.Push(&c.pending, entry)
	c.changed.Broadcast()

	return &Timer{
		C: channel,
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if entry.index < 0 {
				return false
			}
			heap.Remove(&c.pending, entry.index)
			c.changed.Broadcast()
			return true
		},
	}
}

// Advance moves the clock forward by d and fires every wait whose
// deadline is at or before the new time. Each fired channel receives
// the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	for c.pending.Len() > 0 && !c.pending[0].deadline.After(c.current) {
		entry := heap.Pop(&c.pending).(*wait)
		entry.channel <- c.current
	}
	c.changed.Broadcast()
}

// WaitForTimers blocks until at least n waits are pending. It closes
// the race between a goroutine registering a wait and the test
// advancing past it.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending.Len() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered waits that have not
// fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}
