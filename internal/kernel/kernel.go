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
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/minikernel/minikernel/internal/files"
	"github.com/minikernel/minikernel/internal/vm"
)

// Params configures a Kernel at boot, the Go-native analog of the
// constants proc.c's allocproc/scheduler assume are already defined
// (NPROC, NCPU, and so on) — supplemented here with a tick rate since
// this repository also provides the timer interrupt xv6 assumes external
// hardware delivers (SPEC_FULL.md §10).
type Params struct {
	NPROC    int
	NCPU     int
	Pages    int
	TickHz   int
	InitName string
}

// DefaultParams mirrors the xv6 defaults (NPROC=64, one CPU for the
// uniprocessor configuration) plus a modest demo page arena and a
// 100Hz tick rate (the classic PC timer interrupt rate xv6 configures).
func DefaultParams() Params {
	return Params{
		NPROC:    64,
		NCPU:     1,
		Pages:    4096,
		TickHz:   100,
		InitName: "init",
	}
}

// Kernel owns the task table, its simulated CPUs, and the external
// collaborators (address-space arena, file/log layer, tick source) the
// scheduling core is wired against for SPEC_FULL.md §6/§9.
type Kernel struct {
	Table    *TaskTable
	Pages    *vm.PageAllocator
	Switcher *vm.Switcher
	LogLayer *files.LogLayer
	Ticks    *TickSource
	CPUs     []*CPU
	Init     *Task

	log *logrus.Entry
}

// Boot constructs a Kernel, seeds the init task, and starts every
// simulated CPU's scheduler loop plus the tick source as goroutines
// managed by an errgroup.Group — the supplemented boot/demo harness of
// SPEC_FULL.md §10, standing in for the boot sequence that would
// otherwise live in an unmodeled main.c.
func Boot(ctx context.Context, p Params) (*Kernel, *errgroup.Group, error) {
	log := NewLogger()

	k := &Kernel{
		Table:    NewTaskTable(p.NPROC, log),
		Pages:    vm.NewPageAllocator(p.Pages),
		Switcher: vm.NewSwitcher(),
		Ticks:    NewTickSource(p.TickHz),
		log:      log,
	}
	k.LogLayer = files.NewLogLayer(log)
	k.Table.SetLogLayer(k.LogLayer)

	k.CPUs = make([]*CPU, p.NCPU)
	for i := range k.CPUs {
		k.CPUs[i] = NewCPU(i)
	}
	k.Table.SetCPUs(k.CPUs)

	init, err := k.seedInit(p.InitName)
	if err != nil {
		return nil, nil, err
	}
	k.Init = init

	g, gctx := errgroup.WithContext(ctx)
	for _, cpu := range k.CPUs {
		cpu := cpu
		g.Go(func() error {
			cpu.Run(gctx, k.Table)
			return gctx.Err()
		})
	}
	g.Go(func() error {
		k.Ticks.Run(gctx)
		return gctx.Err()
	})

	return k, g, nil
}

// seedInit allocates and fills in the very first task, standing in for
// userinit() in proc.c.
func (k *Kernel) seedInit(name string) (*Task, error) {
	k.Table.mu.Lock()
	t := k.Table.allocateSlotLocked()
	if t == nil {
		k.Table.mu.Unlock()
		return nil, fmt.Errorf("kernel: no free task slots for init")
	}
	as := vm.NewAddressSpace(k.Pages)
	if err := as.InitUser(nil); err != nil {
		k.Table.freeSlotLocked(t)
		k.Table.mu.Unlock()
		return nil, err
	}
	t.addressSpace = as
	t.openFiles = files.NewTable("/")
	t.name = name
	t.group = &releaseGroup{live: 1, owner: t}
	t.state = Runnable
	k.Table.mu.Unlock()

	t.Start(true, k.initBody)
	return t, nil
}

// initBody is init's forever loop: reap whatever orphan ends up
// reparented to it, the same role initproc plays in xv6. Wait blocks
// on its own once init has at least one live child; when it has none
// (Wait returns -1 immediately) init yields instead of retrying in a
// tight loop, since a real idle task would need an interrupt to wake it
// and this simulation has none.
func (k *Kernel) initBody(t *Task) {
	for {
		if pid := t.Wait(); pid < 0 {
			t.table.mu.Lock()
			t.Yield()
			t.table.mu.Unlock()
		}
	}
}

// SpawnDemo seeds an additional demo task as a direct child of init,
// used by the CLI's boot subcommand to populate the table from
// bootconfig's seed list. body is the code the task runs once
// scheduled; a nil body makes the task exit immediately.
func (k *Kernel) SpawnDemo(name string, body func(*Task)) (*Task, error) {
	k.Table.mu.Lock()
	t := k.Table.allocateSlotLocked()
	if t == nil {
		k.Table.mu.Unlock()
		return nil, fmt.Errorf("kernel: no free task slots")
	}
	as := vm.NewAddressSpace(k.Pages)
	if err := as.InitUser(nil); err != nil {
		k.Table.freeSlotLocked(t)
		k.Table.mu.Unlock()
		return nil, err
	}
	t.addressSpace = as
	t.openFiles = files.NewTable("/")
	t.name = name
	t.group = &releaseGroup{live: 1, owner: t}
	t.parent = parentRef{slot: k.Init.slot, generation: k.Init.generation, valid: true}
	t.state = Runnable
	k.Table.mu.Unlock()

	if body == nil {
		body = func(c *Task) { c.Exit(k.Init) }
	}
	t.Start(false, body)
	return t, nil
}
