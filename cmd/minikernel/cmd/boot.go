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

// Package cmd implements the minikernel CLI's subcommands, following the
// same subcommands.Command shape runsc/cmd uses throughout the teacher
// repository (Name/Synopsis/Usage/SetFlags/Execute).
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/minikernel/minikernel/internal/bootconfig"
	"github.com/minikernel/minikernel/internal/console"
	"github.com/minikernel/minikernel/internal/kernel"
)

// Boot implements subcommands.Command for the "boot" command: it loads a
// boot configuration, seeds the init task plus any configured demo
// tasks, and runs the scheduler until interrupted.
type Boot struct {
	configPath  string
	lockPath    string
	runFor      time.Duration
	interactive bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string { return "boot" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string { return "boot a minikernel instance and run its scheduler" }

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string { return "boot [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.configPath, "config", "", "path to a boot TOML config (defaults used if empty)")
	f.StringVar(&b.lockPath, "lock", "/tmp/minikernel.lock", "single-instance boot lock file")
	f.DurationVar(&b.runFor, "run-for", 0, "stop the scheduler after this duration (0 = run until signaled)")
	f.BoolVar(&b.interactive, "shell", false, "after boot, run an interactive dump/wait/stress shell (on a pty, or stdin if none) until EOF or quit")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	// Only one minikernel instance may own a given lock file at a time,
	// the same single-instance guarantee runsc takes out on its root
	// directory before mutating container state.
	fl := flock.New(b.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		logrus.Errorf("boot: acquiring lock %s: %v", b.lockPath, err)
		return subcommands.ExitFailure
	}
	if !locked {
		logrus.Errorf("boot: another minikernel instance holds %s", b.lockPath)
		return subcommands.ExitFailure
	}
	defer fl.Unlock()

	cfg := bootconfig.Default()
	if b.configPath != "" {
		loaded, err := bootconfig.Load(b.configPath)
		if err != nil {
			logrus.Errorf("boot: %v", err)
			return subcommands.ExitFailure
		}
		if diff, err := bootconfig.Diff(cfg, loaded); err == nil && len(diff) > 0 {
			logrus.Infof("boot: %d field(s) overridden by %s", len(diff), b.configPath)
		}
		cfg = loaded
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if b.runFor > 0 {
		runCtx, cancel = context.WithTimeout(ctx, b.runFor)
		defer cancel()
	}

	k, g, err := kernel.Boot(runCtx, cfg.Params())
	if err != nil {
		logrus.Errorf("boot: %v", err)
		return subcommands.ExitFailure
	}
	logrus.Infof("boot: init pid=%d, %d CPU(s), %d slot(s)", k.Init.PID(), len(k.CPUs), k.Table.Len())

	for _, seed := range cfg.Seed {
		name := "task"
		if len(seed.Process.Args) > 0 {
			name = seed.Process.Args[0]
		}

		// Each seed task gets a real fifo backing its stdio descriptor,
		// the way a container's stdio is wired to a fifo before any
		// terminal is attached. The task's own file table only ever
		// sees the path; the fifo is what makes that path a real,
		// readable/writable file rather than a bare label.
		stdioPath := filepath.Join(os.TempDir(), fmt.Sprintf("minikernel-%s.stdio", name))
		stdio, ferr := console.StdioFIFO(runCtx, stdioPath)
		if ferr != nil {
			logrus.Warningf("boot: opening stdio fifo for %q: %v", name, ferr)
		}

		t, err := k.SpawnDemo(name, func(c *kernel.Task) {
			c.OpenFile(stdioPath)
			if stdio != nil {
				stdio.Close()
			}
			c.Exit(k.Init)
		})
		if err != nil {
			logrus.Warningf("boot: spawning seed task %q: %v", name, err)
			continue
		}
		logrus.Infof("boot: spawned %q as pid=%d, stdio=%s", name, t.PID(), stdioPath)
	}

	if b.interactive {
		runShell(runCtx, k)
	}

	if err := g.Wait(); err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		fmt.Println("minikernel exited:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
