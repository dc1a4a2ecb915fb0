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

// Package console backs the demo CLI's interactive REPL subcommand with
// a real pty and exposes a fifo-backed stdio file for seeded demo tasks,
// so internal/kernel's file-table plumbing has something concrete to
// dup/close against beyond an in-memory stub.
package console

import (
	"context"
	"fmt"
	"os"

	"github.com/containerd/console"
	"github.com/containerd/fifo"
	"github.com/kr/pty"
)

// Interactive wraps a pty pair placed into raw mode, the way a real
// terminal-attached container's stdio is wired up.
type Interactive struct {
	Master console.Console
	Slave  *os.File
}

// OpenInteractive allocates a pty pair and puts the master side into
// raw mode.
func OpenInteractive() (*Interactive, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("console: opening pty: %w", err)
	}
	c, err := console.ConsoleFromFile(master)
	if err != nil {
		slave.Close()
		master.Close()
		return nil, fmt.Errorf("console: wrapping pty master: %w", err)
	}
	if err := c.SetRaw(); err != nil {
		slave.Close()
		master.Close()
		return nil, fmt.Errorf("console: setting raw mode: %w", err)
	}
	return &Interactive{Master: c, Slave: slave}, nil
}

// Close restores the terminal and releases both ends of the pty.
func (i *Interactive) Close() error {
	resetErr := i.Master.Reset()
	slaveErr := i.Slave.Close()
	masterErr := i.Master.Close()
	if resetErr != nil {
		return resetErr
	}
	if slaveErr != nil {
		return slaveErr
	}
	return masterErr
}

// StdioFIFO opens (creating if needed) a named pipe at path to back one
// seeded demo task's stdio, the way containerd backs a container's
// stdio streams with fifos before a real terminal is attached.
func StdioFIFO(ctx context.Context, path string) (*fifo.FIFO, error) {
	f, err := fifo.OpenFifo(ctx, path, os.O_RDWR|os.O_CREATE|os.O_NONBLOCK, 0600)
	if err != nil {
		return nil, fmt.Errorf("console: opening fifo %s: %w", path, err)
	}
	return f, nil
}
