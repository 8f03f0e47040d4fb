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

// Package mmio provides raw access to a device's memory-mapped register
// window.
//
// A Bus performs exactly one bus transaction per call. Registers are
// little-endian on the wire regardless of host byte order; values passed to
// and returned from a Bus are host integers. Offsets must be naturally
// aligned for the transfer width. Nothing in this package locks: ordering of
// multi-transfer sequences is the caller's business.
package mmio

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
)

// Bus is a memory-mapped register window.
type Bus interface {
	// Load32 performs one naturally aligned 32-bit read at off.
	Load32(off uint32) uint32

	// Store32 performs one naturally aligned 32-bit write at off.
	Store32(off uint32, v uint32)

	// Load64 performs one naturally aligned 64-bit read at off.
	Load64(off uint32) uint64

	// Store64 performs one naturally aligned 64-bit write at off.
	Store64(off uint32, v uint64)

	// Size returns the size of the window in bytes.
	Size() uint32
}

// checkAccess panics if an access of width bytes at off is misaligned or falls
// outside a window of the given size. Such accesses are programming errors.
func checkAccess(off, width, size uint32) {
	if off%width != 0 {
		panic(fmt.Sprintf("mmio: misaligned %d-bit access at %#x", width*8, off))
	}
	if uint64(off)+uint64(width) > uint64(size) {
		panic(fmt.Sprintf("mmio: %d-bit access at %#x outside %#x byte window", width*8, off, size))
	}
}

// Memory is a Bus backed by ordinary memory. It stands in for device
// registers in tests and dry runs.
//
// Memory is safe for concurrent use; each access is atomic with respect to
// other accesses of the same Memory.
type Memory struct {
	mu  sync.Mutex
	mem []byte
}

// NewMemory returns a zeroed Memory of size bytes.
func NewMemory(size uint32) *Memory {
	return &Memory{mem: make([]byte, size)}
}

// Size implements Bus.Size.
func (m *Memory) Size() uint32 {
	return uint32(len(m.mem))
}

// Load32 implements Bus.Load32.
func (m *Memory) Load32(off uint32) uint32 {
	checkAccess(off, 4, m.Size())
	m.mu.Lock()
	defer m.mu.Unlock()
	return binary.LittleEndian.Uint32(m.mem[off:])
}

// Store32 implements Bus.Store32.
func (m *Memory) Store32(off uint32, v uint32) {
	checkAccess(off, 4, m.Size())
	m.mu.Lock()
	defer m.mu.Unlock()
	binary.LittleEndian.PutUint32(m.mem[off:], v)
}

// Load64 implements Bus.Load64.
func (m *Memory) Load64(off uint32) uint64 {
	checkAccess(off, 8, m.Size())
	m.mu.Lock()
	defer m.mu.Unlock()
	return binary.LittleEndian.Uint64(m.mem[off:])
}

// Store64 implements Bus.Store64.
func (m *Memory) Store64(off uint32, v uint64) {
	checkAccess(off, 8, m.Size())
	m.mu.Lock()
	defer m.mu.Unlock()
	binary.LittleEndian.PutUint64(m.mem[off:], v)
}

// Bytes returns a copy of the backing store in wire order.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.mem...)
}

// ResourcePath returns the sysfs resource file for BAR bar of the PCI device
// at address bdf (e.g. "0000:01:00.0").
func ResourcePath(bdf string, bar int) string {
	return filepath.Join("/sys/bus/pci/devices", bdf, fmt.Sprintf("resource%d", bar))
}
