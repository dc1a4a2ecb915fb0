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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// bootTest boots a small kernel for table-driven tests and returns it
// along with a cancel func that stops every scheduler goroutine.
func bootTest(t *testing.T, nproc int) (*Kernel, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	k, _, err := Boot(ctx, Params{
		NPROC:    nproc,
		NCPU:     2,
		Pages:    256,
		TickHz:   1000,
		InitName: "init",
	})
	if err != nil {
		cancel()
		t.Fatalf("Boot: %v", err)
	}
	return k, cancel
}

// waitForState polls t's state until it matches want or the deadline
// passes, returning the last observed state.
func waitForState(t *Task, want State, timeout time.Duration) State {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := t.State(); s == want {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	return t.State()
}

func TestForkWaitReturnsChildPID(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	result := make(chan int, 1)
	_, err := k.SpawnDemo("parent", func(p *Task) {
		p.Fork(func(c *Task) {
			c.Exit(k.Init)
		})
		result <- p.Wait()
		p.Exit(k.Init)
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	select {
	case got := <-result:
		if got <= 0 {
			t.Fatalf("Wait() = %d, want a positive child pid", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fork/wait scenario")
	}
}

func TestKillWakesSleeper(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	const sleepChan Chan = 0xdead
	killedObserved := make(chan bool, 1)

	sleeper, err := k.SpawnDemo("sleeper", func(s *Task) {
		s.table.mu.Lock()
		s.Sleep(sleepChan)
		s.table.mu.Unlock()
		killedObserved <- s.Killed()
		s.Exit(k.Init)
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	if waitForState(sleeper, Sleeping, time.Second) != Sleeping {
		t.Fatalf("sleeper never reached SLEEPING")
	}

	if ok := k.Table.Kill(sleeper.PID()); !ok {
		t.Fatalf("Kill: capability check rejected kill unexpectedly")
	}

	select {
	case killed := <-killedObserved:
		if !killed {
			t.Fatalf("sleeper woke but Killed() was false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for killed sleeper to wake")
	}
}

func TestThreadJoinReturnsValue(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	result := make(chan int64, 1)
	_, err := k.SpawnDemo("main-thread", func(p *Task) {
		tid := p.Clone(0x7fff0000, 41, func(c *Task, arg uint64) {
			c.ThreadExit(int64(arg)+1, k.Init)
		})
		_, ret, ok := p.Join(tid)
		if !ok {
			result <- -1
			return
		}
		result <- ret
		p.Exit(k.Init)
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	select {
	case got := <-result:
		if got != 42 {
			t.Fatalf("Join returned %d, want 42", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for clone/join scenario")
	}
}

func TestLastThreadCleanupReleasesExactlyOnce(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	groupCh := make(chan *releaseGroup, 1)
	var owner *Task
	var err error
	owner, err = k.SpawnDemo("owner", func(p *Task) {
		tid := p.Clone(0x7fff1000, 7, func(c *Task, arg uint64) {
			c.ThreadExit(int64(arg), k.Init)
		})
		p.Join(tid)
		// Exit never returns, and init's reap clears owner.group, so hand
		// the group to the test before exiting.
		p.table.mu.Lock()
		groupCh <- p.group
		p.table.mu.Unlock()
		p.Exit(k.Init)
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	var group *releaseGroup
	select {
	case group = <-groupCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for last-thread-cleanup scenario")
	}
	deadline := time.Now().Add(2 * time.Second)
	for s := owner.State(); s != Zombie && s != Unused; s = owner.State() {
		if time.Now().After(deadline) {
			t.Fatalf("owner never finished Exit (state %s)", s)
		}
		time.Sleep(time.Millisecond)
	}

	k.Table.mu.Lock()
	defer k.Table.mu.Unlock()
	if group.live != 0 {
		t.Fatalf("releaseGroup.live = %d, want 0", group.live)
	}
	if !group.released {
		t.Fatalf("releaseGroup.released = false, want true")
	}
}

func TestReparentOnExit(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	grandchildPID := make(chan int, 1)
	parentDone := make(chan struct{})

	_, err := k.SpawnDemo("parent", func(p *Task) {
		p.Fork(func(c *Task) {
			c.Fork(func(g *Task) {
				grandchildPID <- g.PID()
				g.Exit(k.Init)
			})
			// Child exits immediately without waiting on the grandchild,
			// leaving it to be reparented to init.
			c.Exit(k.Init)
		})
		close(parentDone)
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	var gcPID int
	select {
	case gcPID = <-grandchildPID:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for grandchild to start")
	}
	<-parentDone

	deadline := time.Now().Add(2 * time.Second)
	for {
		gc := k.Table.TaskByPID(gcPID)
		if gc == nil {
			// Already reaped by init; reparenting must have happened
			// for init to have been able to wait on it at all.
			break
		}
		k.Table.mu.Lock()
		parent := k.Table.parentOfLocked(gc)
		reparented := parent != nil && parent.slot == k.Init.slot
		k.Table.mu.Unlock()
		if reparented {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("grandchild was never reparented to init")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitTaskCannotExit(t *testing.T) {
	k, cancel := bootTest(t, 8)
	defer cancel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("init task's Exit did not panic")
		}
	}()
	k.Init.Exit(k.Init)
}

func TestInitTaskCannotThreadExit(t *testing.T) {
	k, cancel := bootTest(t, 8)
	defer cancel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("init task's ThreadExit did not panic")
		}
	}()
	k.Init.ThreadExit(0, k.Init)
}

func TestCloneRegistersCallerAsParent(t *testing.T) {
	k, cancel := bootTest(t, 16)
	defer cancel()

	grandparentPID := make(chan int, 1)
	childPID := make(chan int, 1)
	threadPID := make(chan int, 1)
	ready := make(chan struct{})

	_, err := k.SpawnDemo("grandparent", func(gp *Task) {
		grandparentPID <- gp.PID()
		gp.Fork(func(c *Task) {
			childPID <- c.PID()
			tid := c.Clone(0x7fff2000, 0, func(th *Task, arg uint64) {
				threadPID <- th.PID()
				<-ready
				th.ThreadExit(0, k.Init)
			})
			_, _, _ = c.Join(tid)
			c.Exit(k.Init)
		})
	})
	if err != nil {
		t.Fatalf("SpawnDemo: %v", err)
	}

	cPID := <-childPID
	tPID := <-threadPID

	k.Table.mu.Lock()
	thread := k.Table.taskByPIDLocked(tPID)
	parent := k.Table.parentOfLocked(thread)
	k.Table.mu.Unlock()
	if parent == nil || parent.pid != cPID {
		t.Fatalf("cloned thread's parent = %v, want the cloning task (pid %d)", parent, cPID)
	}

	close(ready)
	<-grandparentPID
}

func TestDumpOmitsUnusedSlots(t *testing.T) {
	k, cancel := bootTest(t, 8)
	defer cancel()

	time.Sleep(10 * time.Millisecond)
	entries := k.Table.Dump()
	if len(entries) == 0 {
		t.Fatalf("Dump() = empty, want at least the init task")
	}
	if len(entries) != 1 {
		t.Fatalf("Dump() = %d entries, want 1 (only init; unused slots omitted)", len(entries))
	}
	want := DumpEntry{Slot: k.Init.slot, PID: k.Init.PID(), State: entries[0].State, Name: "init"}
	got := entries[0]
	got.SleepTrace = ""
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("first dump entry mismatch (-want +got):\n%s", diff)
	}
}
