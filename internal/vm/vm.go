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

// Package vm simulates the address-space operations that a real kernel
// would hand off to hardware paging: allocation, growth, forking and
// teardown of a task's user memory. None of this touches physical pages —
// it backs each AddressSpace with a plain byte slice, which is enough to
// exercise the scheduling core's copy_user_vm/grow_user_vm/free_user_vm
// contract end to end without a real MMU.
package vm

import (
	"fmt"
	"sync"

	"github.com/mohae/deepcopy"
	"golang.org/x/sys/unix"
)

// PageSize is the simulated page size, seeded from the host's real page
// size so sizes behave plausibly without meaning anything physical.
var PageSize = unix.Getpagesize()

// PageAllocator is a free-list allocator over a fixed arena of pages,
// standing in for allocate_page/free_page.
type PageAllocator struct {
	mu    sync.Mutex
	free  []int
	pages [][]byte
}

// NewPageAllocator creates an allocator backed by n pages.
func NewPageAllocator(n int) *PageAllocator {
	a := &PageAllocator{
		free:  make([]int, n),
		pages: make([][]byte, n),
	}
	for i := 0; i < n; i++ {
		a.free[i] = n - 1 - i
		a.pages[i] = make([]byte, PageSize)
	}
	return a
}

// Allocate returns one zeroed page, or nil if the arena is exhausted.
func (a *PageAllocator) Allocate() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return nil
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	page := a.pages[idx]
	for i := range page {
		page[i] = 0
	}
	return page
}

// Free returns a page to the arena. It is a no-op on pages this allocator
// did not hand out, matching allocate_page/free_page's "trust the caller"
// contract.
func (a *PageAllocator) Free(page []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.pages {
		if &p[0] == &page[0] {
			a.free = append(a.free, i)
			return
		}
	}
}

// AddressSpace is a task's simulated user memory: a single growable
// buffer addressed from zero, with a size the scheduling core tracks on
// the task slot (kernel.Task's size field).
type AddressSpace struct {
	mu    sync.Mutex
	pages *PageAllocator
	mem   []byte
}

// NewAddressSpace allocates a fresh, empty address space.
func NewAddressSpace(pages *PageAllocator) *AddressSpace {
	return &AddressSpace{pages: pages}
}

// InitUser copies image into a freshly grown address space, as
// init_user_vm does for the first user process.
func (as *AddressSpace) InitUser(image []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if len(image) > PageSize {
		return fmt.Errorf("vm: init image larger than one page")
	}
	page := as.pages.Allocate()
	if page == nil {
		return fmt.Errorf("vm: out of pages")
	}
	copy(page, image)
	as.mem = page[:len(image)]
	return nil
}

// Grow extends the address space by n bytes, backing grow_user_vm.
func (as *AddressSpace) Grow(n int) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if n < 0 {
		return fmt.Errorf("vm: negative growth")
	}
	for len(as.mem)+n > cap(as.mem) {
		page := as.pages.Allocate()
		if page == nil {
			return fmt.Errorf("vm: out of pages")
		}
		as.mem = append(as.mem, make([]byte, 0, len(page))...)
		as.mem = as.mem[:len(as.mem):len(as.mem)+len(page)]
	}
	as.mem = as.mem[:len(as.mem)+n]
	return nil
}

// Shrink releases n bytes from the end of the address space, backing
// shrink_user_vm.
func (as *AddressSpace) Shrink(n int) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if n < 0 || n > len(as.mem) {
		return fmt.Errorf("vm: shrink out of range")
	}
	as.mem = as.mem[:len(as.mem)-n]
	return nil
}

// Size reports the current address space size in bytes.
func (as *AddressSpace) Size() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return len(as.mem)
}

// Fork deep-copies this address space for a child task, backing
// copy_user_vm. The copy is independent: later writes to either address
// space do not cross over.
func (as *AddressSpace) Fork() *AddressSpace {
	as.mu.Lock()
	defer as.mu.Unlock()
	child := NewAddressSpace(as.pages)
	if as.mem != nil {
		child.mem = deepcopy.Copy(as.mem).([]byte)
	}
	return child
}

// Release returns every page backing this address space, backing
// free_user_vm. The address space must not be used afterward.
func (as *AddressSpace) Release() {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.mem != nil {
		as.pages.Free(as.mem[:cap(as.mem)])
		as.mem = nil
	}
}

// CopyOut writes data into the address space at off, backing copy_out.
// It fails rather than extending the mapping, matching the kernel
// contract that copy_out never grows memory on the caller's behalf.
func (as *AddressSpace) CopyOut(off int, data []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if off < 0 || off+len(data) > len(as.mem) {
		return fmt.Errorf("vm: copy_out out of range")
	}
	copy(as.mem[off:], data)
	return nil
}

// Switcher tracks which address space is mapped on a simulated CPU,
// standing in for switch_user_vm/switch_kernel_vm. Enter and Leave record
// one mapping per CPU id; the scheduler loop in internal/kernel does not
// call them, so dispatching a task records no mapping here.
type Switcher struct {
	mu      sync.Mutex
	current map[int]*AddressSpace // cpu id -> active address space
}

// NewSwitcher creates an empty per-CPU mapping tracker.
func NewSwitcher() *Switcher {
	return &Switcher{current: make(map[int]*AddressSpace)}
}

// Enter maps as on cpu, backing switch_user_vm.
func (s *Switcher) Enter(cpu int, as *AddressSpace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[cpu] = as
}

// Leave unmaps whatever is mapped on cpu and maps the kernel's own
// address space, backing switch_kernel_vm.
func (s *Switcher) Leave(cpu int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, cpu)
}
