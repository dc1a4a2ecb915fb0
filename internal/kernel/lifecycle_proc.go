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

// releaseGroup is the consolidated reference count that resolves
// spec.md §9's Open Question: rather than xv6's two independent
// "am I the last thread/process" checks in exit()/thread_exit() (which
// can double-release or under-release a parent's resources depending on
// interleaving), every process owns exactly one releaseGroup shared with
// every thread Clone creates from it. Whichever of Exit/ThreadExit drives
// live to zero performs the one-time teardown.
type releaseGroup struct {
	live     int
	released bool
	// owner is the process (thread-group leader) whose file table/cwd
	// this group tears down exactly once.
	owner *Task
}

// Fork creates a new process as a copy of the caller, backing fork() in
// proc.c. Returns the child's pid, or -1 if the table is full. childBody
// is the code the child runs once scheduled: a goroutine cannot fall out
// of the parent's own stack with a different return value the way a
// forked process can, so the child's post-fork control flow must be
// supplied explicitly (see Task.run's doc comment for why).
func (t *Task) Fork(childBody func(*Task)) int {
	t.table.mu.Lock()
	child := t.table.allocateSlotLocked()
	if child == nil {
		t.table.mu.Unlock()
		return -1
	}
	parentAS := t.addressSpace
	parentFiles := t.openFiles
	parentName := t.name
	parentSlot, parentGen := t.slot, t.generation
	t.table.mu.Unlock()

	childAS := parentAS.Fork()

	t.table.mu.Lock()
	child.addressSpace = childAS
	child.size = t.size
	child.openFiles = parentFiles.Fork()
	child.name = parentName
	child.parent = parentRef{slot: parentSlot, generation: parentGen, valid: true}
	child.trap = t.trap
	child.trap.ReturnValue = 0 // child sees fork() return 0
	child.group = &releaseGroup{live: 1, owner: child}
	child.state = Runnable
	pid := child.pid
	t.table.mu.Unlock()

	child.Start(false, childBody)
	return pid
}

// Grow changes the calling task's address space size by n bytes
// (positive to grow, negative to shrink), backing growproc()/sbrk().
// Returns 0 on success, -1 on failure.
func (t *Task) Grow(n int) int {
	t.table.mu.Lock()
	as := t.addressSpace
	t.table.mu.Unlock()

	var err error
	if n > 0 {
		err = as.Grow(n)
	} else if n < 0 {
		err = as.Shrink(-n)
	}
	if err != nil {
		return -1
	}

	t.table.mu.Lock()
	t.size += n
	t.table.mu.Unlock()
	return 0
}

// reparentChildrenLocked hands every live non-thread child of t over to
// initTask, backing the reparenting loop in exit(). A clone()d thread's
// parent field names the task that cloned it purely for bookkeeping; it
// is reaped by Join/ThreadExit, never by a process's wait(), so it is
// excluded here (spec.md §4.5: exit reparents every non-thread child).
// Callers must hold table.mu.
func (tt *TaskTable) reparentChildrenLocked(t *Task, initTask *Task) {
	for _, c := range tt.slots {
		if c.userStackTop != 0 {
			continue
		}
		if c.parent.valid && c.parent.slot == t.slot && c.parent.generation == t.generation {
			c.parent = parentRef{slot: initTask.slot, generation: initTask.generation, valid: true}
			if c.state == Zombie {
				tt.wakeupLocked(Chan(initTask.slot + 1))
			}
		}
	}
}

// releaseIfLastLocked decrements g's live count and reports whether this
// call drove it to zero. Callers must hold table.mu; when it returns
// true, the caller must drop table.mu, call releaseFiles(g), and
// reacquire table.mu before continuing — mirroring how exit() in proc.c
// calls iput(cp->cwd), bracketed by begin_op()/end_op(), before it ever
// acquires ptable.lock.
func releaseIfLastLocked(g *releaseGroup) bool {
	g.live--
	if g.live > 0 || g.released {
		return false
	}
	g.released = true
	return true
}

// releaseFiles tears down g's shared file table exactly once, under the
// log layer's begin_op/end_op transaction boundary (files.LogLayer),
// backing exit()'s log-bracketed iput(cp->cwd). Callers must not hold
// table.mu.
func releaseFiles(g *releaseGroup) {
	if g.owner.openFiles == nil {
		return
	}
	if g.owner.logLayer != nil {
		g.owner.logLayer.BeginOp()
		defer g.owner.logLayer.EndOp()
	}
	g.owner.openFiles.CloseAll()
}

// Exit terminates the calling process, backing exit() in proc.c. It
// releases this process's share of its releaseGroup (performing the
// one-time file-table teardown if it is the last live member), reparents
// any live children to initTask, wakes a waiting parent, and becomes a
// ZOMBIE. Exit never returns.
func (t *Task) Exit(initTask *Task) {
	if t == initTask {
		t.kernelPanic("init exiting")
	}

	t.table.mu.Lock()

	if t.addressSpace != nil {
		as := t.addressSpace
		t.table.mu.Unlock()
		as.Release()
		t.table.mu.Lock()
	}

	if releaseIfLastLocked(t.group) {
		t.table.mu.Unlock()
		releaseFiles(t.group)
		t.table.mu.Lock()
	}
	t.table.reparentChildrenLocked(t, initTask)

	parent := t.table.parentOfLocked(t)
	if parent != nil {
		t.table.wakeupLocked(Chan(parent.slot + 1))
	}

	t.state = Zombie
	t.ncli = 1
	t.intena = false
	t.Sched()
	t.kernelPanic("exit: zombie task rescheduled")
}

// Wait blocks until any non-thread child of t has exited, frees that
// child's slot, and returns its pid, or -1 if t has no non-thread
// children at all. Backs wait() in proc.c. spec.md §4.5: wait scans for
// a child of the caller that is not a thread — a clone()d thread shares
// its owner's address space rather than owning one independently, so
// reaping it here would release VM still in use by the live process and
// double-account against its releaseGroup; threads are reaped by Join.
func (t *Task) Wait() int {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()

	for {
		haveChildren := false
		for _, c := range t.table.slots {
			if c.userStackTop != 0 {
				continue
			}
			if !c.parent.valid || c.parent.slot != t.slot || c.parent.generation != t.generation {
				continue
			}
			haveChildren = true
			if c.state == Zombie {
				pid := c.pid
				as := c.addressSpace
				t.table.freeSlotLocked(c)
				if as != nil {
					as.Release()
				}
				return pid
			}
		}
		if !haveChildren || t.killed {
			return -1
		}
		t.Sleep(Chan(t.slot + 1))
	}
}

