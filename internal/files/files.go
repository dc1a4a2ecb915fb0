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

// Package files simulates the per-task open-file table and the
// begin_op/end_op log-transaction boundary that a real kernel's file
// system layer would provide. It exists purely so internal/kernel's
// fork/exit/clone/thread_exit operations have something concrete to
// dup/close/begin/end against.
package files

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxOpenFiles bounds a task's open-file table, mirroring NOFILE in the
// original kernel.
const MaxOpenFiles = 16

// File is an opaque open-file reference, ref-counted across dup/close.
type File struct {
	mu   sync.Mutex
	refs int
	name string
}

func newFile(name string) *File {
	return &File{refs: 1, name: name}
}

// Table is a task's open-file table, backing file_dup/file_close.
type Table struct {
	mu    sync.Mutex
	slots [MaxOpenFiles]*File
	cwd   string
}

// NewTable returns an empty file table rooted at cwd.
func NewTable(cwd string) *Table {
	return &Table{cwd: cwd}
}

// Open installs a new file called name at the first free descriptor and
// returns it, or returns -1 if the table is full.
func (t *Table) Open(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = newFile(name)
			return i
		}
	}
	return -1
}

// Dup increments fd's reference count and returns it, backing file_dup.
func (t *Table) Dup(fd int) *File {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxOpenFiles || t.slots[fd] == nil {
		return nil
	}
	f := t.slots[fd]
	f.mu.Lock()
	f.refs++
	f.mu.Unlock()
	return f
}

// Close decrements fd's reference count, freeing the descriptor once it
// reaches zero, backing file_close/inode_put.
func (t *Table) Close(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxOpenFiles || t.slots[fd] == nil {
		return
	}
	f := t.slots[fd]
	f.mu.Lock()
	f.refs--
	dead := f.refs <= 0
	f.mu.Unlock()
	if dead {
		t.slots[fd] = nil
	}
}

// Fork returns a table sharing every open file with t (ref-counted), the
// way a forked child process inherits its parent's descriptors.
func (t *Table) Fork() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	child := &Table{cwd: t.cwd}
	for i, f := range t.slots {
		if f == nil {
			continue
		}
		f.mu.Lock()
		f.refs++
		f.mu.Unlock()
		child.slots[i] = f
	}
	return child
}

// CloseAll releases every open descriptor, called exactly once per
// release group (see kernel.releaseGroup) on final teardown.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.slots {
		if f == nil {
			continue
		}
		f.mu.Lock()
		f.refs--
		dead := f.refs <= 0
		f.mu.Unlock()
		if dead {
			t.slots[i] = nil
		}
	}
}

// Cwd returns the table's current working directory.
func (t *Table) Cwd() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// LogLayer simulates the on-disk log's transaction boundary
// (begin_op/end_op): a single writer at a time, with a running count of
// outstanding transactions purely for diagnostics.
type LogLayer struct {
	mu      sync.Mutex
	writer  sync.Mutex
	pending int
	log     *logrus.Entry
}

// NewLogLayer returns a log layer that reports through log.
func NewLogLayer(log *logrus.Entry) *LogLayer {
	return &LogLayer{log: log}
}

// BeginOp backs begin_op: blocks until the caller may start a
// file-system-modifying transaction.
func (l *LogLayer) BeginOp() {
	l.writer.Lock()
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
}

// EndOp backs end_op: ends the current transaction.
func (l *LogLayer) EndOp() {
	l.mu.Lock()
	l.pending--
	if l.pending < 0 {
		l.log.Warn("log: end_op without matching begin_op")
		l.pending = 0
	}
	l.mu.Unlock()
	l.writer.Unlock()
}
