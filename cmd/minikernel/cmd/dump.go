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

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/minikernel/minikernel/internal/kernel"
)

// Dump implements subcommands.Command for the "dump" command: a
// lock-free snapshot of the task table, the CLI-facing form of
// procdump().
type Dump struct{}

// Name implements subcommands.Command.Name.
func (*Dump) Name() string { return "dump" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Dump) Synopsis() string { return "print a snapshot of the task table" }

// Usage implements subcommands.Command.Usage.
func (*Dump) Usage() string { return "dump\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (*Dump) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute. args[0] must be the
// *kernel.Kernel instance to dump, passed in by runShell (shell.go).
func (*Dump) Execute(_ context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	k, ok := args[0].(*kernel.Kernel)
	if !ok {
		logrus.Errorf("dump: no running kernel instance available")
		return subcommands.ExitFailure
	}
	for _, e := range k.Table.Dump() {
		fmt.Println(e.String())
	}
	return subcommands.ExitSuccess
}
