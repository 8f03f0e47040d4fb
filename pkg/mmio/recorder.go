// Copyright 2026 The gVisor Authors.
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

package mmio

import (
	"fmt"
	"sync"
)

// Op is the direction of a recorded transaction.
type Op uint8

// Transaction directions.
const (
	Read Op = iota
	Write
)

// String implements fmt.Stringer.String.
func (o Op) String() string {
	if o == Write {
		return "W"
	}
	return "R"
}

// Access is one bus transaction seen by a Recorder.
type Access struct {
	Op     Op
	Offset uint32
	// Width is the transfer width in bits, 32 or 64.
	Width int
	Value uint64
}

// String implements fmt.Stringer.String.
func (a Access) String() string {
	if a.Width == 32 {
		return fmt.Sprintf("%v%d %#06x %08x", a.Op, a.Width, a.Offset, a.Value)
	}
	return fmt.Sprintf("%v%d %#06x %016x", a.Op, a.Width, a.Offset, a.Value)
}

// Recorder is a Bus that forwards to another Bus and keeps the order in
// which transactions reached it.
type Recorder struct {
	Next Bus

	mu  sync.Mutex
	log []Access
}

// NewRecorder returns a Recorder forwarding to next.
func NewRecorder(next Bus) *Recorder {
	return &Recorder{Next: next}
}

// Size implements Bus.Size.
func (r *Recorder) Size() uint32 {
	return r.Next.Size()
}

// The forwarded access and the log append happen under one lock so that the
// log order is the order the backing store saw.

// Load32 implements Bus.Load32.
func (r *Recorder) Load32(off uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.Next.Load32(off)
	r.log = append(r.log, Access{Op: Read, Offset: off, Width: 32, Value: uint64(v)})
	return v
}

// Store32 implements Bus.Store32.
func (r *Recorder) Store32(off uint32, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Next.Store32(off, v)
	r.log = append(r.log, Access{Op: Write, Offset: off, Width: 32, Value: uint64(v)})
}

// Load64 implements Bus.Load64.
func (r *Recorder) Load64(off uint32) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.Next.Load64(off)
	r.log = append(r.log, Access{Op: Read, Offset: off, Width: 64, Value: v})
	return v
}

// Store64 implements Bus.Store64.
func (r *Recorder) Store64(off uint32, v uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Next.Store64(off, v)
	r.log = append(r.log, Access{Op: Write, Offset: off, Width: 64, Value: v})
}

// Accesses returns a copy of the transactions recorded so far.
func (r *Recorder) Accesses() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.log...)
}

// Reset discards the recorded transactions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
