// Copyright 2026 The Minikernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TickSource supplements the distilled scheduling core with the timer
// interrupt that a real kernel relies on: xv6's sys_sleep/sys_uptime
// assume some external handler is incrementing a global `ticks` counter
// under `tickslock`. Here a rate.Limiter paces a goroutine that does
// exactly that, so Sleep(ticks) and Uptime() behave plausibly without
// real hardware.
type TickSource struct {
	mu    sync.Mutex
	ticks uint64

	limiter *rate.Limiter
	waiters map[uint64][]chan struct{}
}

// NewTickSource returns a tick source that advances hz times per second.
func NewTickSource(hz int) *TickSource {
	return &TickSource{
		limiter: rate.NewLimiter(rate.Limit(hz), 1),
		waiters: make(map[uint64][]chan struct{}),
	}
}

// Run drives the tick counter until ctx is canceled. Intended to be run
// in its own goroutine for the lifetime of the kernel.
func (ts *TickSource) Run(ctx context.Context) {
	for {
		if err := ts.limiter.Wait(ctx); err != nil {
			return
		}
		ts.mu.Lock()
		ts.ticks++
		now := ts.ticks
		var fire []chan struct{}
		for target, chans := range ts.waiters {
			if target <= now {
				fire = append(fire, chans...)
				delete(ts.waiters, target)
			}
		}
		ts.mu.Unlock()
		for _, c := range fire {
			close(c)
		}
	}
}

// Uptime returns the number of ticks elapsed since boot, backing the
// uptime system call.
func (ts *TickSource) Uptime() uint64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.ticks
}

// WaitTicks blocks until n more ticks have elapsed or ctx is canceled.
// Used by the SysSleep case of Dispatch in syscalls.go.
func (ts *TickSource) WaitTicks(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}
	ts.mu.Lock()
	target := ts.ticks + n
	done := make(chan struct{})
	ts.waiters[target] = append(ts.waiters[target], done)
	ts.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
