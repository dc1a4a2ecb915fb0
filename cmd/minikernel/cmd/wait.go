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
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/minikernel/minikernel/internal/kernel"
)

// Wait implements subcommands.Command for the "wait" command: it polls
// a running kernel's task table until a given pid reaches ZOMBIE,
// following the same shape as runsc's own "wait" subcommand but backed
// by an exponential backoff poll rather than a blocking wait channel,
// since the task table here has no external wait(2)-style syscall to
// block on from outside the process.
type Wait struct {
	pid     int
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Wait) Name() string { return "wait" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Wait) Synopsis() string { return "wait for a task to reach ZOMBIE" }

// Usage implements subcommands.Command.Usage.
func (*Wait) Usage() string { return "wait -pid=<pid> [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (w *Wait) SetFlags(f *flag.FlagSet) {
	f.IntVar(&w.pid, "pid", -1, "pid to wait on")
	f.DurationVar(&w.timeout, "timeout", 30*time.Second, "give up after this long")
}

// Execute implements subcommands.Command.Execute. args[0] must be the
// *kernel.Kernel instance to poll, passed in by runShell (shell.go).
func (w *Wait) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if w.pid < 0 {
		fmt.Println("wait: -pid is required")
		return subcommands.ExitUsageError
	}
	k, ok := args[0].(*kernel.Kernel)
	if !ok {
		logrus.Errorf("wait: no running kernel instance available")
		return subcommands.ExitFailure
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = w.timeout
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	op := func() error {
		t := k.Table.TaskByPID(w.pid)
		if t == nil {
			return backoff.Permanent(fmt.Errorf("wait: no such pid %d", w.pid))
		}
		if t.State() != kernel.Zombie {
			return fmt.Errorf("wait: pid %d is %s", w.pid, t.State())
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("pid %d reached ZOMBIE\n", w.pid)
	return subcommands.ExitSuccess
}
