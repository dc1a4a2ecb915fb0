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
	"github.com/syndtr/gocapability/capability"
)

// Sleep blocks the calling task on chan, backing sleep() in proc.c. The
// caller must already hold table.mu — the single lock this scheduling
// core uses for everything, matching xv6's common case of sleeping on
// &ptable.lock itself. Holding the same lock across the state change and
// the block is what makes a concurrent Wakeup unable to race past a
// sleeper: the wakeup can only run once Sched has handed the lock back
// to the scheduler. Sleep returns with table.mu held again.
func (t *Task) Sleep(ch Chan) {
	if ch == NoChan {
		t.kernelPanic("sleep: channel is zero")
	}

	t.sleepCh = ch
	t.state = Sleeping
	t.captureSleepTrace()
	t.ncli = 1
	t.intena = false
	t.Sched()

	t.sleepCh = NoChan
}

// wakeupLocked wakes every SLEEPING task waiting on ch. Callers must
// hold table.mu. Backs wakeup1()/the body of wakeup().
func (tt *TaskTable) wakeupLocked(ch Chan) {
	for _, t := range tt.slots {
		if t.state == Sleeping && t.sleepCh == ch {
			t.state = Runnable
			t.sleepCh = NoChan
		}
	}
}

// Wakeup wakes every task sleeping on ch, acquiring table.mu itself.
// Backs wakeup() in proc.c.
func (tt *TaskTable) Wakeup(ch Chan) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.wakeupLocked(ch)
}

// WakeupLocked wakes every task sleeping on ch. The caller must already
// hold table.mu. It is the exported form of wakeupLocked, which this
// package's own code (such as Exit's reparenting step) calls directly.
func (tt *TaskTable) WakeupLocked(ch Chan) {
	tt.wakeupLocked(ch)
}

// killerCapability gates asynchronous Kill the way a modern Unix-like
// gates kill(2) across privilege boundaries: a supplemented feature
// (SPEC_FULL.md §10) absent from the original xv6 kill(), which has no
// permission check at all. Real kill(2) only requires CAP_KILL to
// signal a process owned by a different user; since this kernel has no
// multi-user model, the check here is deliberately coarse — it asks
// only whether CAP_KILL has not been explicitly dropped from this
// process's bounding set, which holds for an ordinary process and only
// fails for one that has been sandboxed specifically to forbid sending
// signals. An unprivileged caller in the common case still simply gets
// a failed kill for "no such pid", which spec.md already allows for.
func killerCapability() bool {
	caps, err := capability.NewPid2(0)
	if err != nil {
		// Capability introspection unavailable on this platform; default
		// to permissive, matching xv6's original no-check behavior.
		return true
	}
	if err := caps.Load(); err != nil {
		return true
	}
	return caps.Get(capability.BOUNDING, capability.CAP_KILL)
}

// Kill marks the task with the given pid as killed and wakes it if it is
// sleeping, backing kill() in proc.c plus the capability check of
// SPEC_FULL.md §10. Returns false if there is no such pid or the caller
// lacks CAP_KILL.
func (tt *TaskTable) Kill(pid int) bool {
	if !killerCapability() {
		return false
	}
	tt.mu.Lock()
	defer tt.mu.Unlock()
	t := tt.taskByPIDLocked(pid)
	if t == nil {
		return false
	}
	t.killed = true
	if t.state == Sleeping {
		t.state = Runnable
		t.sleepCh = NoChan
	}
	return true
}
