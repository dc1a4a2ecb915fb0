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

// Sched hands the CPU back to the scheduler loop, backing sched() in
// proc.c. The caller must already hold table.mu, must have exactly one
// nested interrupt-disable section open (ncli == 1), must not be in the
// RUNNING state (the caller is expected to have just set its own state
// to SLEEPING or RUNNABLE), and must have interrupts disabled — all four
// preconditions spec.md §4.3 requires, enforced here with the same
// panics xv6's sched() raises. sync.Mutex does not record its holder, so
// the lock check only verifies that table.mu is locked.
//
// Sched blocks until this task is next dispatched by its CPU's
// scheduler loop, at which point it returns with table.mu held again (by
// protocol, not by a fresh Lock call — see scheduler.go).
func (t *Task) Sched() {
	if t.table.mu.TryLock() {
		t.table.mu.Unlock()
		t.kernelPanic("sched ptable.lock")
	}
	if t.ncli != 1 {
		t.kernelPanic("sched locks: ncli=%d, want 1", t.ncli)
	}
	if t.state == Running {
		t.kernelPanic("sched running")
	}
	if t.intena {
		t.kernelPanic("sched interruptible")
	}

	cpu := t.table.cpus[t.cpu]
	t.cpu = -1

	// Give the CPU back to the scheduler loop, then park until we are
	// dispatched again. This pair of channel operations is this
	// repository's translation of swtch(&p->context, cpu->scheduler):
	// the raw register save/restore xv6 performs has no meaning for a
	// goroutine, so the "context" being switched is simply which
	// goroutine currently holds the processor's attention.
	cpu.yielded <- struct{}{}
	<-t.resume
}

// Yield voluntarily gives up the CPU for one round, backing yield() in
// proc.c: mark RUNNABLE and call Sched. Must be called with table.mu
// held and the task in the RUNNING state.
func (t *Task) Yield() {
	if t.state != Running {
		t.kernelPanic("yield: not running")
	}
	t.state = Runnable
	t.Sched()
}

// ForkRet is the first code a freshly forked or cloned task's goroutine
// runs once dispatched, backing forkret() in proc.c. It releases the
// table lock that was (logically) held across the dispatch handoff —
// exactly as forkret() must call release(&ptable.lock) itself, since
// the scheduler's own loop body never ran the "release lock, return to
// user" half of a normal context switch for a task that has never run
// before.
//
// firstBoot is true exactly once, for the very first task the kernel
// ever dispatches, matching the `static int first` one-shot log-init
// call in forkret().
func (t *Task) ForkRet(firstBoot bool) {
	t.table.mu.Unlock()
	if firstBoot {
		t.Infof("first scheduled task, initializing log layer")
	}
}
