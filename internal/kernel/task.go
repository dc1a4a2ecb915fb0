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

// Package kernel implements the process/thread scheduling core of a
// teaching kernel: a fixed-size task table, a round-robin per-CPU
// scheduler, the sched/yield/forkret context-switch protocol, the
// sleep/wakeup rendezvous, and the fork/exit/wait and clone/join/
// thread_exit lifecycle operations. It is modeled closely on the
// xv6 scheduling core, translated into goroutine-per-task form rather
// than raw register-save context switching.
package kernel

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/minikernel/minikernel/internal/files"
	"github.com/minikernel/minikernel/internal/vm"
)

// State is a task slot's lifecycle state.
type State int

// The task states, in the order xv6's proc.h declares them.
const (
	Unused State = iota
	Embryo
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Embryo:
		return "EMBRYO"
	case Sleeping:
		return "SLEEPING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "INVALID"
	}
}

// Chan is an opaque sleep/wakeup rendezvous token. NoChan is the
// reserved "not sleeping on anything" value.
type Chan uint64

// NoChan is the zero value, meaning "not currently sleeping".
const NoChan Chan = 0

// TrapFrame stands in for the saved user-mode register frame a real trap
// handler would build on kernel entry. Only the fields the scheduling
// core actually inspects or rewrites are modeled.
type TrapFrame struct {
	InstructionPointer uint64
	StackPointer       uint64
	ReturnValue         int64
	Arg0, Arg1, Arg2    uint64
}

// parentRef identifies a task's parent by slot index plus the
// generation the slot held when the reference was taken, so a reused
// slot can never be mistaken for the original parent (see invariant
// notes in table.go).
type parentRef struct {
	slot       int
	generation uint64
	valid      bool
}

// Task is one task-table slot. Every field the spec calls out as
// lock-protected is guarded by the owning TaskTable's mu; fields marked
// "immutable after creation" may be read without the lock.
type Task struct {
	table *TaskTable

	// slot is immutable after creation. generation is incremented by
	// allocateSlotLocked each time the slot is reused, under table.mu.
	slot       int
	generation uint64

	// Guarded by table.mu.
	state    State
	pid      int
	parent   parentRef
	killed   bool
	sleepCh  Chan
	name     string

	size int // address space size in bytes, mirrors Task.Size in proc.h

	addressSpace *vm.AddressSpace
	openFiles    *files.Table
	group        *releaseGroup
	// logLayer is the kernel's shared begin_op/end_op transaction
	// boundary, set once at slot allocation time (see
	// TaskTable.allocateSlotLocked). Used to bracket the file-table
	// teardown a releaseGroup performs on its owner's behalf.
	logLayer *files.LogLayer

	trap TrapFrame

	// userStackTop is the top of this task's user stack, used by
	// clone/join's stack-sentinel protocol.
	userStackTop uint64
	// threadReturn carries a thread's return value from thread_exit to
	// the joiner, set under table.mu.
	threadReturn int64

	// Context-switch channel pair (see switch.go). resume is sent to by
	// the scheduler to hand this task the CPU; the task's own goroutine
	// blocks reading it whenever it calls Sched.
	resume chan struct{}

	// cpu is the id of the simulated CPU currently running this task,
	// or -1 if not running. ncli/intena mirror xv6's per-CPU
	// interrupt-disable nesting count and saved interrupt-enable flag;
	// because exactly one task occupies "current" on a given CPU
	// between dispatch and the next Sched call, storing them on the
	// Task is equivalent to storing them on the CPU.
	cpu       int
	ncli      int
	intena    bool

	// sleepTrace captures a short call-stack snippet at the moment this
	// task last called Sleep, for Dump's best-effort diagnostics.
	sleepTrace string

	log *logrus.Entry
}

// PID returns the task's process id. Valid for the task's whole
// lifetime once assigned by Fork/Clone.
func (t *Task) PID() int {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.pid
}

// Name returns the task's diagnostic name.
func (t *Task) Name() string {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.name
}

// State returns the task's current state.
func (t *Task) State() State {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.state
}

// Killed reports whether an asynchronous kill has been recorded against
// this task.
func (t *Task) Killed() bool {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.killed
}

// captureSleepTrace records a short stack snippet for Dump, mirroring
// xv6's getcallerpc walk in spirit (it has no saved frame pointer to
// chase in a goroutine, so it captures a live trace instead).
func (t *Task) captureSleepTrace() {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	t.sleepTrace = string(buf[:n])
}

func (t *Task) logFields() *logrus.Entry {
	return t.log.WithFields(logrus.Fields{"pid": t.pid, "name": t.name})
}

// Infof logs at info level with this task's pid/name attached, mirroring
// gVisor's Task.Infof convention.
func (t *Task) Infof(format string, args ...any) {
	t.logFields().Infof(format, args...)
}

// Debugf logs at debug level with this task's pid/name attached.
func (t *Task) Debugf(format string, args ...any) {
	t.logFields().Debugf(format, args...)
}

// Warningf logs at warning level with this task's pid/name attached.
func (t *Task) Warningf(format string, args ...any) {
	t.logFields().Warnf(format, args...)
}

// OpenFile installs name (typically a path backed by a real fifo or
// console device opened by the caller) in this task's file table, at the
// first free descriptor. Returns -1 if the table is full.
func (t *Task) OpenFile(name string) int {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.openFiles.Open(name)
}

// TrapReturn applies the pending-kill check and returns the task's saved
// trap frame, backing trap_return; the error is non-nil once the task has
// been killed. Nothing in this package calls it: run starts a task's body
// without this check.
func (t *Task) TrapReturn() (TrapFrame, error) {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	if t.killed {
		return t.trap, fmt.Errorf("task %d killed", t.pid)
	}
	return t.trap, nil
}

// run is every task's goroutine body: park until the scheduler first
// dispatches this slot, release the table lock the way forkret() does,
// then execute body. This is the goroutine-per-task translation of
// xv6's "a new process's kernel stack is primed so that swtch returns
// into forkret" — here there is no stack to prime, so the new goroutine
// simply starts parked on the same resume channel every future dispatch
// uses.
//
// There is no way to duplicate a Go call stack the way fork() duplicates
// a process's: the child's post-fork control flow must be supplied
// explicitly as body, rather than "falling out of" the parent's own
// stack with a different return value. This is the one place the
// translation's fidelity to xv6 is necessarily loosest.
func (t *Task) run(firstBoot bool, body func(*Task)) {
	<-t.resume
	t.ForkRet(firstBoot)
	if body != nil {
		body(t)
	}
}

// Start spawns the goroutine that will execute once this task is first
// dispatched, backing Task.Start(tid) in the gVisor translation model.
// Callers must have already set the slot's fields (including state =
// Runnable) under table.mu before calling Start.
func (t *Task) Start(firstBoot bool, body func(*Task)) {
	go t.run(firstBoot, body)
}
