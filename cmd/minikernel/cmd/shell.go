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
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/minikernel/minikernel/internal/console"
	"github.com/minikernel/minikernel/internal/kernel"
)

// runShell reads dump/wait/stress commands until EOF, "quit" or ctx is
// canceled, dispatching each line to the Dump/Wait/Stress
// subcommands.Command implementations (which main.go does not register
// at top level), against the single live
// k — there is no cross-process control channel in this teaching
// kernel (unlike runsc's sandbox + socket architecture), so
// "wait"/"dump" only make sense run in-process, interactively, against
// the instance that just booted.
//
// The REPL is attached to a real pty in raw mode rather than os.Stdin
// directly, the same terminal plumbing a container's attached shell
// would get; if allocating one fails (no controlling terminal, e.g.
// under a test harness) runShell falls back to plain stdin.
func runShell(ctx context.Context, k *kernel.Kernel) {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	term, err := console.OpenInteractive()
	if err != nil {
		fmt.Println("shell: no pty available, falling back to stdin:", err)
	} else {
		defer term.Close()
		in = term.Master
		out = term.Master
	}

	fmt.Fprintln(out, "minikernel shell ready (dump | wait -pid=N | stress -n=N | quit)")
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}

		fs := flag.NewFlagSet("shell", flag.ContinueOnError)
		cmdr := subcommands.NewCommander(fs, "shell")
		cmdr.Register(&Dump{}, "")
		cmdr.Register(&Wait{}, "")
		cmdr.Register(&Stress{}, "")
		if err := fs.Parse(fields); err != nil {
			fmt.Println("shell:", err)
			continue
		}
		cmdr.Execute(ctx, k)
	}
}
