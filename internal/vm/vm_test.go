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

package vm

import "testing"

func TestAddressSpaceGrowShrink(t *testing.T) {
	pages := NewPageAllocator(4)
	as := NewAddressSpace(pages)
	if err := as.InitUser([]byte("hello")); err != nil {
		t.Fatalf("InitUser: %v", err)
	}
	if got := as.Size(); got != 5 {
		t.Fatalf("Size() = %d, want 5", got)
	}
	if err := as.Grow(10); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if got := as.Size(); got != 15 {
		t.Fatalf("Size() after Grow = %d, want 15", got)
	}
	if err := as.Shrink(10); err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	if got := as.Size(); got != 5 {
		t.Fatalf("Size() after Shrink = %d, want 5", got)
	}
	if err := as.Shrink(100); err == nil {
		t.Fatalf("Shrink(100) succeeded, want error (shrinking past zero)")
	}
}

func TestAddressSpaceForkIsIndependent(t *testing.T) {
	pages := NewPageAllocator(4)
	parent := NewAddressSpace(pages)
	if err := parent.InitUser([]byte("parent")); err != nil {
		t.Fatalf("InitUser: %v", err)
	}
	child := parent.Fork()

	if err := child.CopyOut(0, []byte("CHILD!")); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}

	buf := make([]byte, 6)
	copy(buf, "parent")
	if err := parent.CopyOut(0, buf); err != nil {
		t.Fatalf("CopyOut on parent: %v", err)
	}
	// A write through the child must not be visible from the parent: the
	// two address spaces must not alias after Fork.
	if err := child.CopyOut(0, []byte("CHILD!")); err != nil {
		t.Fatalf("CopyOut on child: %v", err)
	}
	if got := string(parent.mem[:6]); got != "parent" {
		t.Fatalf("parent memory = %q after child write, want %q", got, "parent")
	}
}

func TestPageAllocatorExhaustion(t *testing.T) {
	a := NewPageAllocator(2)
	if p := a.Allocate(); p == nil {
		t.Fatalf("first Allocate() returned nil")
	}
	if p := a.Allocate(); p == nil {
		t.Fatalf("second Allocate() returned nil")
	}
	if p := a.Allocate(); p != nil {
		t.Fatalf("third Allocate() = %v, want nil (arena exhausted)", p)
	}
}
