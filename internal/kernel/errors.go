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

import "fmt"

// kernelPanic logs a fatal diagnostic then panics, backing the "fatal
// invariant violation" severity of spec.md §7. Every context-switch
// precondition violation goes through this path, exactly as xv6's
// sched()/scheduler() call panic() on the same conditions.
func (t *Task) kernelPanic(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.Warningf("kernel panic: %s", msg)
	panic("kernel panic: " + msg)
}
