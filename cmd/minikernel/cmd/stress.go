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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"sync"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/minikernel/minikernel/internal/kernel"
)

// Stress implements subcommands.Command for the "stress" command: it
// drives a wave of short-lived fork/wait demo tasks through the live
// kernel to exercise the scheduler's round-robin dispatch and the
// fork/exit/wait path under load, the way a load-generation harness
// would. A semaphore.Weighted bounds how many demo tasks are ever
// concurrently live, rather than firing all of them at once.
type Stress struct {
	tasks      int
	concurrent int64
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string { return "stress" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string { return "spawn a bounded wave of fork/wait demo tasks" }

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string { return "stress [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.tasks, "n", 50, "number of fork/wait demo tasks to run")
	f.Int64Var(&s.concurrent, "concurrent", 8, "max demo tasks live at once")
}

// Execute implements subcommands.Command.Execute. args[0] must be the
// *kernel.Kernel instance to drive, passed in by runShell (shell.go).
func (s *Stress) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	k, ok := args[0].(*kernel.Kernel)
	if !ok {
		logrus.Errorf("stress: no running kernel instance available")
		return subcommands.ExitFailure
	}

	sem := semaphore.NewWeighted(s.concurrent)
	var wg sync.WaitGroup

	spawned := 0
	for i := 0; i < s.tasks; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			logrus.Warningf("stress: %v, stopping early after %d task(s)", err, spawned)
			break
		}
		wg.Add(1)
		name := fmt.Sprintf("stress-%d", i)
		_, err := k.SpawnDemo(name, func(p *kernel.Task) {
			p.Fork(func(c *kernel.Task) {
				c.Exit(k.Init)
			})
			p.Wait()
			// Exit never returns, so the task is counted done first.
			sem.Release(1)
			wg.Done()
			p.Exit(k.Init)
		})
		if err != nil {
			wg.Done()
			sem.Release(1)
			logrus.Warningf("stress: spawning %q: %v", name, err)
			continue
		}
		spawned++
	}

	wg.Wait()
	fmt.Printf("stress: %d/%d task(s) completed (max %d concurrent)\n", spawned, s.tasks, s.concurrent)
	return subcommands.ExitSuccess
}
