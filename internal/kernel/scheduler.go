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
	"time"
)

// CPU is one simulated processor: a goroutine running the scheduler
// loop below, standing in for the per-CPU scheduler() loop in xv6. Each
// CPU has its own handoff channel that a running task's Sched call
// signals on to give the CPU back.
type CPU struct {
	id      int
	yielded chan struct{}
}

// NewCPU returns CPU number id, ready to be started with Run.
func NewCPU(id int) *CPU {
	return &CPU{id: id, yielded: make(chan struct{})}
}

// idleBackoff is how long a CPU with nothing runnable waits before
// rescanning, mirroring xv6's sti/hlt idle loop.
const idleBackoff = 500 * time.Microsecond

// Run executes this CPU's scheduler loop until ctx is canceled. Per
// spec.md §4.2, the loop is strict index order and restarts scanning
// from the beginning of the table after every single dispatch — it
// never continues from where it left off, which is the one deliberate
// departure this repository takes from the upstream xv6 scheduler().
func (cpu *CPU) Run(ctx context.Context, tt *TaskTable) {
	for {
		if ctx.Err() != nil {
			return
		}

		tt.mu.Lock()
		var dispatched *Task
		for _, t := range tt.slots {
			if t.state == Runnable {
				dispatched = t
				break
			}
		}
		if dispatched == nil {
			tt.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleBackoff):
			}
			continue
		}

		dispatched.state = Running
		dispatched.cpu = cpu.id
		dispatched.ncli = 1
		dispatched.intena = false

		// Hand the CPU to the task. tt.mu remains locked across this
		// handoff: exactly one goroutine is ever actually running at a
		// time (the other is parked on a channel receive), so this is
		// equivalent to xv6's single memory-resident spinlock staying
		// held across swtch in both directions.
		dispatched.resume <- struct{}{}
		<-cpu.yielded

		// The task handed control back to us (via Sched) still holding
		// the logical lock; release it before rescanning from the top.
		tt.mu.Unlock()
	}
}
