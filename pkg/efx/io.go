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

package efx

import (
	"fmt"

	"efx.dev/efx/pkg/log"
)

// checkAlign panics if reg is not aligned to size. Register addresses are
// fixed by hardware definitions, so a misaligned one is a programming error.
func checkAlign(reg, size uint32) {
	if reg%size != 0 {
		panic(fmt.Sprintf("efx: register %#x is not %d-byte aligned", reg, size))
	}
}

func (n *NIC) traceWrite(reg uint32, v fmt.Stringer) {
	if n.verbose {
		log.Debugf("%s: writing register %x with %v", n.name, reg, v)
	}
}

func (n *NIC) traceRead(reg uint32, v fmt.Stringer) {
	if n.verbose {
		log.Debugf("%s: read from register %x, got %v", n.name, reg, v)
	}
}

// storeQword moves v to reg in one 64-bit or two 32-bit transfers.
func (n *NIC) storeQword(reg uint32, v Qword) {
	if n.qwordIO {
		n.bus.Store64(reg, v.Uint64())
		return
	}
	n.bus.Store32(reg+0, v[0])
	n.bus.Store32(reg+4, v[1])
}

// storeOword moves v to reg in two 64-bit or four 32-bit transfers at
// ascending addresses.
func (n *NIC) storeOword(reg uint32, v Oword) {
	if n.qwordIO {
		n.bus.Store64(reg+0, v.Low())
		n.bus.Store64(reg+8, v.High())
		return
	}
	n.bus.Store32(reg+0, v[0])
	n.bus.Store32(reg+4, v[1])
	n.bus.Store32(reg+8, v[2])
	n.bus.Store32(reg+12, v[3])
}

// WriteDword writes a 32-bit register, or the last dword of a special 128-bit
// register. No lock is required.
func (n *NIC) WriteDword(reg uint32, v Dword) {
	checkAlign(reg, DwordSize)
	n.traceWrite(reg, v)
	n.bus.Store32(reg, v[0])
}

// ReadDword reads a 32-bit register or SRAM. No lock is required.
func (n *NIC) ReadDword(reg uint32) Dword {
	checkAlign(reg, DwordSize)
	v := Dword{n.bus.Load32(reg)}
	n.traceRead(reg, v)
	return v
}

// WriteQword writes a 64-bit register under the BIU lock.
func (n *NIC) WriteQword(reg uint32, v Qword) {
	checkAlign(reg, QwordSize)
	n.traceWrite(reg, v)

	n.biuLock.Lock()
	n.storeQword(reg, v)
	n.biuLock.Unlock()
}

// ReadQword reads a 64-bit register under the BIU lock.
func (n *NIC) ReadQword(reg uint32) Qword {
	checkAlign(reg, QwordSize)

	var v Qword
	n.biuLock.Lock()
	if n.qwordIO {
		v = QwordOf(n.bus.Load64(reg))
	} else {
		v[0] = n.bus.Load32(reg + 0)
		v[1] = n.bus.Load32(reg + 4)
	}
	n.biuLock.Unlock()

	n.traceRead(reg, v)
	return v
}

// WriteOword writes a normal 128-bit register under the BIU lock.
func (n *NIC) WriteOword(reg uint32, v Oword) {
	checkAlign(reg, OwordSize)
	n.traceWrite(reg, v)

	n.biuLock.Lock()
	n.storeOword(reg, v)
	n.biuLock.Unlock()
}

// ReadOword reads a 128-bit register under the BIU lock. Reads always use
// four 32-bit transfers.
func (n *NIC) ReadOword(reg uint32) Oword {
	checkAlign(reg, OwordSize)

	var v Oword
	n.biuLock.Lock()
	v[0] = n.bus.Load32(reg + 0)
	v[1] = n.bus.Load32(reg + 4)
	v[2] = n.bus.Load32(reg + 8)
	v[3] = n.bus.Load32(reg + 12)
	n.biuLock.Unlock()

	n.traceRead(reg, v)
	return v
}

// WriteOwordTable writes entry index of a table of 128-bit registers
// starting at reg.
func (n *NIC) WriteOwordTable(reg, index uint32, v Oword) {
	n.WriteOword(tableAddr(reg, index, OwordSize), v)
}

// ReadOwordTable reads entry index of a table of 128-bit registers starting
// at reg.
func (n *NIC) ReadOwordTable(reg, index uint32) Oword {
	return n.ReadOword(tableAddr(reg, index, OwordSize))
}

// WriteQwordTable writes entry index of a table of 64-bit registers starting
// at reg.
func (n *NIC) WriteQwordTable(reg, index uint32, v Qword) {
	n.WriteQword(tableAddr(reg, index, QwordSize), v)
}

// ReadQwordTable reads entry index of a table of 64-bit registers starting
// at reg.
func (n *NIC) ReadQwordTable(reg, index uint32) Qword {
	return n.ReadQword(tableAddr(reg, index, QwordSize))
}

func tableAddr(reg, index, size uint32) uint32 {
	addr := uint64(reg) + uint64(index)*uint64(size)
	if addr > 0xffffffff {
		panic(fmt.Sprintf("efx: table entry %d of register %#x overflows", index, reg))
	}
	return uint32(addr)
}

// PagedAddr returns the address of the copy of reg belonging to page.
func (n *NIC) PagedAddr(page, reg uint32) uint32 {
	addr := uint64(page)*uint64(n.stride) + uint64(reg)
	if addr > 0xffffffff {
		panic(fmt.Sprintf("efx: page %d of register %#x overflows", page, reg))
	}
	return uint32(addr)
}

// WriteOwordPage writes the whole of a paged descriptor update register. No
// lock is taken: the BIU collector latches the partial writes itself.
func (n *NIC) WriteOwordPage(r PagedOwordReg, v Oword, page uint32) {
	reg := n.PagedAddr(page, r.info().Offset)
	checkAlign(reg, OwordSize)
	n.traceWrite(reg, v)
	n.storeOword(reg, v)
}

// WriteDwordPage writes a paged 32-bit register, or one dword of a paged
// descriptor update register. Writing the last dword of a descriptor update
// register commits it with the unwritten low bits as zero.
func (n *NIC) WriteDwordPage(r PagedDwordReg, v Dword, page uint32) {
	n.WriteDword(n.PagedAddr(page, r.info().Offset), v)
}

// WriteDwordPageLocked writes a paged 32-bit register affected by the
// TIMER_COMMAND erratum: page 0 is written under the BIU lock, other pages
// are not.
func (n *NIC) WriteDwordPageLocked(r LockedPagedDwordReg, v Dword, page uint32) {
	reg := n.PagedAddr(page, r.info().Offset)
	if page == 0 {
		n.biuLock.Lock()
		n.WriteDword(reg, v)
		n.biuLock.Unlock()
		return
	}
	n.WriteDword(reg, v)
}
