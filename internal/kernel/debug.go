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
	"fmt"
	"strings"
)

// DumpEntry is one line of a task-table dump.
type DumpEntry struct {
	Slot       int
	PID        int
	State      string
	Name       string
	SleepTrace string
}

// Dump walks the task table without acquiring its lock, backing
// procdump() in proc.c: a best-effort diagnostic meant to be safe to
// call from a panic handler even if some other goroutine is mid-update.
// Fields are read with ordinary (non-atomic) loads, so a dump taken
// concurrently with a transition may show a slightly stale state; that
// tradeoff is the same one procdump() makes by design.
func (tt *TaskTable) Dump() []DumpEntry {
	entries := make([]DumpEntry, 0, len(tt.slots))
	for _, t := range tt.slots {
		if t.state == Unused {
			continue
		}
		e := DumpEntry{
			Slot:  t.slot,
			PID:   t.pid,
			State: t.state.String(),
			Name:  t.name,
		}
		if t.state == Sleeping {
			e.SleepTrace = t.sleepTrace
		}
		entries = append(entries, e)
	}
	return entries
}

// String renders a dump the way procdump() prints to the console.
func (e DumpEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", e.PID, e.State, e.Name)
	if e.SleepTrace != "" {
		b.WriteString("\n")
		b.WriteString(e.SleepTrace)
	}
	return b.String()
}
