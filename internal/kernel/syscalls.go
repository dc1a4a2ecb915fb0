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

import "context"

// Syscall numbers, matching sysproc.c's sys_* surface (spec.md §6).
const (
	SysFork = iota
	SysExit
	SysWait
	SysKill
	SysGetPID
	SysSbrk
	SysSleep
	SysUptime
	SysClone
	SysJoin
	SysThreadExit
)

// SyscallArgs carries the decoded arguments a real trap handler would
// have pulled out of the TrapFrame; this repository does not model
// argument decoding (spec.md Non-goals), so callers build this directly.
type SyscallArgs struct {
	PID       int
	N         int   // sbrk's byte delta, sleep's tick count
	StackTop  uint64
	ThreadArg uint64
	TID       int
	RetVal    int64
}

// Dispatch runs syscall number num on behalf of t, returning the value
// that would be written into the trap frame's return-value slot. It is
// the small syscall-number dispatch table SPEC_FULL.md §6 calls for, a
// convenience for the CLI demo harness — library callers are expected to
// call Task's methods directly instead.
func (t *Task) Dispatch(ctx context.Context, k *Kernel, num int, args SyscallArgs) int64 {
	switch num {
	case SysFork:
		// This simulation has no loader/interpreter backing a real
		// program image (spec.md Non-goals), so a forked child spawned
		// through the syscall-number boundary simply exits immediately;
		// library callers that want a child with real behavior should
		// call Task.Fork directly with a body closure instead.
		return int64(t.Fork(func(c *Task) { c.Exit(k.Init) }))
	case SysExit:
		t.Exit(k.Init)
		return 0 // unreachable; Exit never returns
	case SysWait:
		return int64(t.Wait())
	case SysKill:
		if k.Table.Kill(args.PID) {
			return 0
		}
		return -1
	case SysGetPID:
		return int64(t.PID())
	case SysSbrk:
		before := t.addressSpaceSize()
		if t.Grow(args.N) < 0 {
			return -1
		}
		return int64(before)
	case SysSleep:
		if err := k.Ticks.WaitTicks(ctx, uint64(args.N)); err != nil {
			return -1
		}
		return 0
	case SysUptime:
		return int64(k.Ticks.Uptime())
	case SysClone:
		return int64(t.Clone(args.StackTop, args.ThreadArg, func(c *Task, arg uint64) {
			c.ThreadExit(int64(arg), k.Init)
		}))
	case SysJoin:
		stack, ret, ok := t.Join(args.TID)
		if !ok {
			return -1
		}
		_ = stack
		return ret
	case SysThreadExit:
		t.ThreadExit(args.RetVal, k.Init)
		return 0 // unreachable; ThreadExit never returns
	default:
		return -1
	}
}

func (t *Task) addressSpaceSize() int {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.size
}
