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
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/minikernel/minikernel/internal/files"
)

// TaskTable is the fixed-size array of task slots, guarded by a single
// global lock exactly as spec.md §5 requires: every field transition on
// any slot happens with mu held, and mu is also the lock sleep/wakeup
// release and reacquire atomically around.
type TaskTable struct {
	mu sync.Mutex

	slots    []*Task
	nextPID  int
	pidIdx   *pidIndex
	cpus     []*CPU
	logLayer *files.LogLayer

	log *logrus.Entry
}

// SetCPUs registers the simulated CPUs this table's scheduler loops run
// on. Must be called once, before Kernel.Boot starts the scheduler
// goroutines.
func (tt *TaskTable) SetCPUs(cpus []*CPU) {
	tt.cpus = cpus
}

// SetLogLayer registers the kernel's begin_op/end_op transaction
// boundary, handed to every task allocated from this point on. Must be
// called once, before any task is allocated.
func (tt *TaskTable) SetLogLayer(l *files.LogLayer) {
	tt.logLayer = l
}

// NewTaskTable allocates a table with nproc slots, all UNUSED.
func NewTaskTable(nproc int, log *logrus.Entry) *TaskTable {
	tt := &TaskTable{
		slots:   make([]*Task, nproc),
		nextPID: 1,
		pidIdx:  newPidIndex(),
		log:     log,
	}
	for i := range tt.slots {
		tt.slots[i] = &Task{
			table: tt,
			slot:  i,
			state: Unused,
			cpu:   -1,
			log:   log,
		}
	}
	return tt
}

// Len returns the table's fixed capacity (NPROC).
func (tt *TaskTable) Len() int {
	return len(tt.slots)
}

// allocateSlotLocked scans the table in index order for the first UNUSED
// slot, initializes it to EMBRYO with a freshly allocated pid, and
// returns it. Callers must hold tt.mu. Matches spec.md §4.1: strict
// index-order scan, strictly increasing pid allocation.
func (tt *TaskTable) allocateSlotLocked() *Task {
	for _, t := range tt.slots {
		if t.state == Unused {
			t.generation++
			t.state = Embryo
			t.pid = tt.nextPID
			tt.nextPID++
			t.parent = parentRef{}
			t.killed = false
			t.sleepCh = NoChan
			t.name = ""
			t.size = 0
			t.addressSpace = nil
			t.openFiles = nil
			t.group = nil
			t.logLayer = tt.logLayer
			t.trap = TrapFrame{}
			t.userStackTop = 0
			t.threadReturn = 0
			t.resume = make(chan struct{}, 1)
			t.cpu = -1
			t.ncli = 0
			t.intena = false
			t.sleepTrace = ""
			tt.pidIdx.insert(t.pid, t.slot)
			return t
		}
	}
	return nil
}

// freeSlotLocked returns a ZOMBIE slot to UNUSED once it has been reaped
// by Wait or Join. Callers must hold tt.mu.
func (tt *TaskTable) freeSlotLocked(t *Task) {
	tt.pidIdx.remove(t.pid)
	t.state = Unused
	t.pid = 0
	t.parent = parentRef{}
	t.killed = false
	t.sleepCh = NoChan
	t.name = ""
	t.addressSpace = nil
	t.openFiles = nil
	t.group = nil
}

// taskByPIDLocked resolves a pid to its live slot via the auxiliary
// btree index, or nil if no live slot currently holds that pid. Callers
// must hold tt.mu.
func (tt *TaskTable) taskByPIDLocked(pid int) *Task {
	slot, ok := tt.pidIdx.lookup(pid)
	if !ok {
		return nil
	}
	t := tt.slots[slot]
	if t.pid != pid {
		// The slot was recycled between index lookup and here; since
		// both happen under tt.mu this cannot actually occur, but the
		// check costs nothing and documents the invariant.
		return nil
	}
	return t
}

// TaskByPID resolves a pid to its task, or nil.
func (tt *TaskTable) TaskByPID(pid int) *Task {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.taskByPIDLocked(pid)
}

// parentOfLocked resolves t's parent reference, returning nil if the
// parent slot has since been recycled for something else (generation
// mismatch) or there is no parent. Callers must hold tt.mu.
func (tt *TaskTable) parentOfLocked(t *Task) *Task {
	if !t.parent.valid {
		return nil
	}
	p := tt.slots[t.parent.slot]
	if p.generation != t.parent.generation {
		return nil
	}
	return p
}
