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

// stackSentinel is the fake return address proc.c's clone() writes at
// ustack[0], below the thread's argument at ustack[1]. Clone records it
// in the new thread's TrapFrame.Arg1 (and the argument in Arg0); neither
// word is written into the thread's user stack, and nothing reads Arg1
// back.
const stackSentinel = 0xffffffff

// Clone creates a new thread sharing t's process (address space, file
// table, pid's process identity) rather than copying it, backing
// clone() in proc.c. stackTop is the top of the new thread's
// user-allocated stack; arg is recorded in the thread's TrapFrame.Arg0
// and handed directly to threadBody. Nothing is written at stackTop, so
// Clone has no copy-out failure case. Returns the new thread's tid
// (task-table pid), or -1 if the table is full.
func (t *Task) Clone(stackTop uint64, arg uint64, threadBody func(*Task, uint64)) int {
	t.table.mu.Lock()
	child := t.table.allocateSlotLocked()
	if child == nil {
		t.table.mu.Unlock()
		return -1
	}

	child.addressSpace = t.addressSpace
	child.size = t.size
	child.openFiles = t.openFiles
	child.name = t.name
	child.parent = parentRef{slot: t.slot, generation: t.generation, valid: true}
	child.trap = t.trap
	child.trap.ReturnValue = 0
	child.trap.StackPointer = stackTop
	child.trap.Arg0 = arg
	child.trap.Arg1 = stackSentinel // ustack[0], mirrors clone()'s sentinel write
	child.userStackTop = stackTop
	child.group = t.group
	child.group.live++
	child.state = Runnable

	pid := child.pid
	t.table.mu.Unlock()

	child.Start(false, func(c *Task) {
		if threadBody != nil {
			threadBody(c, arg)
		}
	})
	return pid
}

// Join blocks until the thread identified by tid (created by a prior
// Clone from the same process) has called ThreadExit, then returns its
// base stack address and its return value. Backs join() in proc.c,
// including the `*stack = xstack - PAGE_SIZE` / `*ret_p = xret`
// computation.
func (t *Task) Join(tid int) (stackBase uint64, ret int64, ok bool) {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()

	for {
		child := t.table.taskByPIDLocked(tid)
		if child == nil || child.group != t.group {
			return 0, 0, false
		}
		if child.state == Zombie {
			stackBase = child.userStackTop - uint64(pageSizeHint)
			ret = child.threadReturn
			t.table.freeSlotLocked(child)
			return stackBase, ret, true
		}
		t.Sleep(Chan(child.slot + 1))
	}
}

// pageSizeHint mirrors the page size used to compute a thread's stack
// base in Join, kept independent of internal/vm so this package does not
// need to import it solely for one constant.
const pageSizeHint = 4096

// ThreadExit terminates the calling thread, backing thread_exit() in
// proc.c. It records ret for a future Join, decrements the process's
// releaseGroup (tearing down shared file-table resources exactly once
// if this is the last live member — see the releaseGroup doc comment),
// wakes anyone joining this thread or waiting on the owning process, and
// becomes a ZOMBIE. ThreadExit never returns.
func (t *Task) ThreadExit(ret int64, initTask *Task) {
	if t == initTask {
		t.kernelPanic("init exiting")
	}

	t.table.mu.Lock()

	t.threadReturn = ret
	last := releaseIfLastLocked(t.group)
	if last {
		t.table.mu.Unlock()
		releaseFiles(t.group)
		t.table.mu.Lock()
	}

	if t.group.released {
		// This was the last live member: the process itself is gone
		// too, so reparent its children and wake its own parent exactly
		// as Exit would for the owning process.
		owner := t.group.owner
		t.table.reparentChildrenLocked(owner, initTask)
		parent := t.table.parentOfLocked(owner)
		if parent != nil {
			t.table.wakeupLocked(Chan(parent.slot + 1))
		}
	}

	// Wake anyone blocked in Join on this specific thread.
	t.table.wakeupLocked(Chan(t.slot + 1))

	t.state = Zombie
	t.ncli = 1
	t.intena = false
	t.Sched()
	t.kernelPanic("thread_exit: zombie task rescheduled")
}
