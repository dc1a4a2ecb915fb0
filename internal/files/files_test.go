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

package files

import "testing"

func TestDupCloseRefCounting(t *testing.T) {
	tbl := NewTable("/")
	fd := tbl.Open("console")
	if fd < 0 {
		t.Fatalf("Open failed")
	}
	if f := tbl.Dup(fd); f == nil {
		t.Fatalf("Dup failed on freshly opened fd")
	}
	// Two references now outstanding (the original open plus the dup);
	// one Close must not free the descriptor.
	tbl.Close(fd)
	if f := tbl.Dup(fd); f == nil {
		t.Fatalf("descriptor freed after only one of two references closed")
	}
	tbl.Close(fd)
	tbl.Close(fd)
	if f := tbl.Dup(fd); f != nil {
		t.Fatalf("descriptor still live after all references closed")
	}
}

func TestForkSharesDescriptors(t *testing.T) {
	parent := NewTable("/")
	fd := parent.Open("log")
	child := parent.Fork()

	if f := child.Dup(fd); f == nil {
		t.Fatalf("forked child does not see parent's open descriptor")
	}
	parent.Close(fd)
	// Child's independent reference must keep the file alive.
	if f := child.Dup(fd); f == nil {
		t.Fatalf("file closed in child even though parent's close should not affect it")
	}
}

func TestLogLayerSerializesWriters(t *testing.T) {
	l := NewLogLayer(nil)
	done := make(chan struct{})
	l.BeginOp()
	go func() {
		l.BeginOp()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("second BeginOp returned before first EndOp")
	default:
	}
	l.EndOp()
	<-done
}
