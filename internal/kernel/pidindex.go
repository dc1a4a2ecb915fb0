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
	"github.com/google/btree"
)

// pidEntry is a btree.Item mapping a pid to its task-table slot index.
// The scheduler's own dispatch order never consults this index — it
// exists only to make Kill/Join/TaskByPID lookups O(log n) instead of an
// O(n) table scan, the way a real kernel would keep a separate pid hash
// alongside its array-ordered run queue.
type pidEntry struct {
	pid  int
	slot int
}

func (a pidEntry) Less(than btree.Item) bool {
	return a.pid < than.(pidEntry).pid
}

// pidIndex is a btree-backed pid -> slot map, guarded by the same lock
// as the task table it indexes.
type pidIndex struct {
	tree *btree.BTree
}

func newPidIndex() *pidIndex {
	return &pidIndex{tree: btree.New(16)}
}

func (idx *pidIndex) insert(pid, slot int) {
	idx.tree.ReplaceOrInsert(pidEntry{pid: pid, slot: slot})
}

func (idx *pidIndex) remove(pid int) {
	idx.tree.Delete(pidEntry{pid: pid})
}

func (idx *pidIndex) lookup(pid int) (int, bool) {
	item := idx.tree.Get(pidEntry{pid: pid})
	if item == nil {
		return 0, false
	}
	return item.(pidEntry).slot, true
}
