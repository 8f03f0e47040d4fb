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
	"strings"
)

// Access describes how a register may be accessed.
type Access int

// Register access kinds.
const (
	ReadWrite Access = iota
	ReadOnly
	WriteOnly
)

// String implements fmt.Stringer.String.
func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "rw"
	case ReadOnly:
		return "ro"
	case WriteOnly:
		return "wo"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// RegisterInfo describes a named register.
type RegisterInfo struct {
	Name       string
	Generation Generation
	Offset     uint32
	// Width is the register width in bytes.
	Width  int
	Paged  bool
	Access Access
	// Locked is set for paged registers whose page 0 copy must be
	// written under the BIU lock.
	Locked bool
}

// String implements fmt.Stringer.String.
func (r RegisterInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-5s %#06x %3d-bit %s", r.Name, r.Generation, r.Offset, r.Width*8, r.Access)
	if r.Paged {
		b.WriteString(" paged")
	}
	if r.Locked {
		b.WriteString(" locked(page 0)")
	}
	return b.String()
}

// PagedOwordReg is a 128-bit paged register that may be written whole without
// the BIU lock. Only the values declared in this package are valid.
type PagedOwordReg struct{ r *RegisterInfo }

// PagedDwordReg is a paged register, or one dword of a paged descriptor
// update register, that may be written without the BIU lock. Only the values
// declared in this package are valid.
type PagedDwordReg struct{ r *RegisterInfo }

// LockedPagedDwordReg is a paged 32-bit register whose page 0 copy must be
// written under the BIU lock. Only the values declared in this package are
// valid.
type LockedPagedDwordReg struct{ r *RegisterInfo }

func checkReg(r *RegisterInfo) *RegisterInfo {
	if r == nil {
		panic("efx: use of zero register value")
	}
	return r
}

func (p PagedOwordReg) info() *RegisterInfo       { return checkReg(p.r) }
func (p PagedDwordReg) info() *RegisterInfo       { return checkReg(p.r) }
func (p LockedPagedDwordReg) info() *RegisterInfo { return checkReg(p.r) }

// Info returns the register description.
func (p PagedOwordReg) Info() RegisterInfo { return *p.info() }

// Info returns the register description.
func (p PagedDwordReg) Info() RegisterInfo { return *p.info() }

// Info returns the register description.
func (p LockedPagedDwordReg) Info() RegisterInfo { return *p.info() }

var (
	biuHwRevID      = RegisterInfo{Name: "BIU_HW_REV_ID", Generation: EF10, Offset: 0x0, Width: DwordSize, Access: ReadOnly}
	mcDbLwrd        = RegisterInfo{Name: "MC_DB_LWRD", Generation: EF10, Offset: 0x200, Width: DwordSize, Access: WriteOnly}
	mcDbHwrd        = RegisterInfo{Name: "MC_DB_HWRD", Generation: EF10, Offset: 0x204, Width: DwordSize, Access: WriteOnly}
	evqRptr         = RegisterInfo{Name: "EVQ_RPTR", Generation: EF10, Offset: 0x400, Width: DwordSize, Paged: true, Access: WriteOnly}
	evqTmr          = RegisterInfo{Name: "EVQ_TMR", Generation: EF100, Offset: 0x420, Width: DwordSize, Paged: true, Access: WriteOnly}
	timerCommand    = RegisterInfo{Name: "TIMER_COMMAND", Generation: EF10, Offset: 0x420, Width: DwordSize, Paged: true, Access: WriteOnly, Locked: true}
	rxDescUpd       = RegisterInfo{Name: "RX_DESC_UPD", Generation: EF10, Offset: 0x830, Width: OwordSize, Paged: true, Access: WriteOnly}
	rxDescUpdDword  = RegisterInfo{Name: "RX_DESC_UPD_DWORD", Generation: EF10, Offset: 0x830, Width: DwordSize, Paged: true, Access: WriteOnly}
	rxDescUpdHigh   = RegisterInfo{Name: "RX_DESC_UPD_HIGH", Generation: EF10, Offset: 0x83c, Width: DwordSize, Paged: true, Access: WriteOnly}
	txDescUpd       = RegisterInfo{Name: "TX_DESC_UPD", Generation: EF10, Offset: 0xa10, Width: OwordSize, Paged: true, Access: WriteOnly}
	txDescUpdDword  = RegisterInfo{Name: "TX_DESC_UPD_DWORD", Generation: EF10, Offset: 0xa18, Width: DwordSize, Paged: true, Access: WriteOnly}
	txDescUpdHigh   = RegisterInfo{Name: "TX_DESC_UPD_HIGH", Generation: EF10, Offset: 0xa1c, Width: DwordSize, Paged: true, Access: WriteOnly}
	rxRingDoorbell  = RegisterInfo{Name: "RX_RING_DOORBELL", Generation: EF100, Offset: 0x180, Width: DwordSize, Paged: true, Access: WriteOnly}
	txRingDoorbell  = RegisterInfo{Name: "TX_RING_DOORBELL", Generation: EF100, Offset: 0x200, Width: DwordSize, Paged: true, Access: WriteOnly}
	ef100EvqRptr    = RegisterInfo{Name: "EVQ_RPTR", Generation: EF100, Offset: 0x400, Width: DwordSize, Paged: true, Access: WriteOnly}
	ef100BiuHwRevID = RegisterInfo{Name: "BIU_HW_REV_ID", Generation: EF100, Offset: 0x0, Width: DwordSize, Access: ReadOnly}
)

// Paged registers written whole.
var (
	RxDescUpd = PagedOwordReg{&rxDescUpd}
	TxDescUpd = PagedOwordReg{&txDescUpd}
)

// Paged registers written a dword at a time.
var (
	EvqRptr        = PagedDwordReg{&evqRptr}
	EvqTmr         = PagedDwordReg{&evqTmr}
	RxDescUpdDword = PagedDwordReg{&rxDescUpdDword}
	RxDescUpdHigh  = PagedDwordReg{&rxDescUpdHigh}
	TxDescUpdDword = PagedDwordReg{&txDescUpdDword}
	TxDescUpdHigh  = PagedDwordReg{&txDescUpdHigh}
	RxRingDoorbell = PagedDwordReg{&rxRingDoorbell}
	TxRingDoorbell = PagedDwordReg{&txRingDoorbell}
	EF100EvqRptr   = PagedDwordReg{&ef100EvqRptr}
)

// TimerCommand is the EF10 event queue timer register.
//
// On EF10 a write to the page 0 copy of TIMER_COMMAND can corrupt a
// concurrent multi-transfer access in the BIU collector, so that copy is
// written under the BIU lock. Copies on other pages are written unlocked.
var TimerCommand = LockedPagedDwordReg{&timerCommand}

// Non-paged EF10 registers.
const (
	BiuHwRevID = 0x0
	McDbLwrd   = 0x200
	McDbHwrd   = 0x204
)

var registers = []*RegisterInfo{
	&biuHwRevID,
	&mcDbLwrd,
	&mcDbHwrd,
	&evqRptr,
	&timerCommand,
	&rxDescUpd,
	&rxDescUpdDword,
	&rxDescUpdHigh,
	&txDescUpd,
	&txDescUpdDword,
	&txDescUpdHigh,
	&ef100BiuHwRevID,
	&rxRingDoorbell,
	&txRingDoorbell,
	&ef100EvqRptr,
	&evqTmr,
}

// Registers returns the named registers of gen.
func Registers(gen Generation) []RegisterInfo {
	var rs []RegisterInfo
	for _, r := range registers {
		if r.Generation == gen {
			rs = append(rs, *r)
		}
	}
	return rs
}

// LookupRegister returns the register of gen called name. Names are case
// insensitive.
func LookupRegister(gen Generation, name string) (RegisterInfo, bool) {
	for _, r := range registers {
		if r.Generation == gen && strings.EqualFold(r.Name, name) {
			return *r, true
		}
	}
	return RegisterInfo{}, false
}

// Register fields.
var (
	// RxDescWptr is the RX write pointer in RX_DESC_UPD_DWORD.
	RxDescWptr = Field{LBN: 0, Width: 12}
	// TxDescWptrDword is the TX write pointer in TX_DESC_UPD_DWORD.
	TxDescWptrDword = Field{LBN: 0, Width: 12}
	// TxDescWptr is the TX write pointer in the full TX_DESC_UPD.
	TxDescWptr = Field{LBN: 64, Width: 12}
	// TxDescPush holds a pushed TX descriptor in the full TX_DESC_UPD.
	TxDescPush = Field{LBN: 0, Width: 64}
	// EvqRptrField is the event queue read pointer.
	EvqRptrField = Field{LBN: 0, Width: 15}
	// EvqRptrValid marks EvqRptrField as valid.
	EvqRptrValid = Field{LBN: 15, Width: 1}
	// TimerMode and TimerValue make up a timer command.
	TimerMode  = Field{LBN: 14, Width: 2}
	TimerValue = Field{LBN: 0, Width: 14}
	// RingPidx is the producer index in both EF100 ring doorbells.
	RingPidx = Field{LBN: 16, Width: 16}
)

// Event queue timer modes.
const (
	TimerModeDisabled   = 0
	TimerModeImmedStart = 1
	TimerModeTrigStart  = 2
	TimerModeIntHoldoff = 3
)

// PushRxDescriptors tells the controller that RX descriptors up to wptr are
// ready on queue.
func (n *NIC) PushRxDescriptors(queue, wptr uint32) {
	if n.gen == EF100 {
		n.WriteDwordPage(RxRingDoorbell, PopulateDword(FieldValue{RingPidx, uint64(wptr) & RingPidx.mask()}), queue)
		return
	}
	n.WriteDwordPage(RxDescUpdDword, PopulateDword(FieldValue{RxDescWptr, uint64(wptr) & RxDescWptr.mask()}), queue)
}

// PushTxDescriptors tells the controller that TX descriptors up to wptr are
// ready on queue.
func (n *NIC) PushTxDescriptors(queue, wptr uint32) {
	if n.gen == EF100 {
		n.WriteDwordPage(TxRingDoorbell, PopulateDword(FieldValue{RingPidx, uint64(wptr) & RingPidx.mask()}), queue)
		return
	}
	n.WriteDwordPage(TxDescUpdDword, PopulateDword(FieldValue{TxDescWptrDword, uint64(wptr) & TxDescWptrDword.mask()}), queue)
}

// PushTxDescriptor writes desc together with the new write pointer in a
// single TX_DESC_UPD write, saving the controller a descriptor fetch. It is
// only available on EF10.
func (n *NIC) PushTxDescriptor(queue, wptr uint32, desc Qword) {
	if n.gen != EF10 {
		panic(fmt.Sprintf("efx: descriptor push is not supported on %v", n.gen))
	}
	v := PopulateOword(
		FieldValue{TxDescPush, desc.Uint64()},
		FieldValue{TxDescWptr, uint64(wptr) & TxDescWptr.mask()},
	)
	n.WriteOwordPage(TxDescUpd, v, queue)
}

// AckEventQueue moves the read pointer of event queue evq to rptr.
func (n *NIC) AckEventQueue(evq, rptr uint32) {
	v := PopulateDword(FieldValue{EvqRptrField, uint64(rptr) & EvqRptrField.mask()})
	if n.gen == EF100 {
		n.WriteDwordPage(EF100EvqRptr, v, evq)
		return
	}
	n.WriteDwordPage(EvqRptr, v, evq)
}

// SetEventQueueTimer programs the timer of event queue evq.
func (n *NIC) SetEventQueueTimer(evq uint32, mode uint64, ticks uint64) {
	v := PopulateDword(FieldValue{TimerMode, mode}, FieldValue{TimerValue, ticks})
	if n.gen == EF100 {
		n.WriteDwordPage(EvqTmr, v, evq)
		return
	}
	n.WriteDwordPageLocked(TimerCommand, v, evq)
}

// lookup returns this package's entry for r, so that only declared registers
// can be accessed by description.
func lookup(r RegisterInfo) (*RegisterInfo, error) {
	for _, p := range registers {
		if *p == r {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s is not a register of this package", r.Name)
}

// WriteRegister writes the low r.Width bytes of v to the copy of r on page,
// using the accessor r requires.
func (n *NIC) WriteRegister(r RegisterInfo, page uint32, v Oword) error {
	p, err := lookup(r)
	if err != nil {
		return err
	}
	if p.Generation != n.gen {
		return fmt.Errorf("%s is an %v register, device is %v", p.Name, p.Generation, n.gen)
	}
	if p.Access == ReadOnly {
		return fmt.Errorf("%s is read-only", p.Name)
	}
	if !p.Paged && page != 0 {
		return fmt.Errorf("%s is not paged", p.Name)
	}
	switch {
	case p.Locked:
		n.WriteDwordPageLocked(LockedPagedDwordReg{p}, Dword{v[0]}, page)
	case p.Paged && p.Width == OwordSize:
		n.WriteOwordPage(PagedOwordReg{p}, v, page)
	case p.Paged:
		n.WriteDwordPage(PagedDwordReg{p}, Dword{v[0]}, page)
	case p.Width == OwordSize:
		n.WriteOword(p.Offset, v)
	case p.Width == QwordSize:
		n.WriteQword(p.Offset, Qword{v[0], v[1]})
	default:
		n.WriteDword(p.Offset, Dword{v[0]})
	}
	return nil
}

// ReadRegister reads r. The value is returned in the low r.Width bytes.
func (n *NIC) ReadRegister(r RegisterInfo) (Oword, error) {
	p, err := lookup(r)
	if err != nil {
		return Oword{}, err
	}
	if p.Generation != n.gen {
		return Oword{}, fmt.Errorf("%s is an %v register, device is %v", p.Name, p.Generation, n.gen)
	}
	if p.Access == WriteOnly {
		return Oword{}, fmt.Errorf("%s is write-only", p.Name)
	}
	switch p.Width {
	case OwordSize:
		return n.ReadOword(p.Offset), nil
	case QwordSize:
		q := n.ReadQword(p.Offset)
		return Oword{q[0], q[1]}, nil
	default:
		return Oword{n.ReadDword(p.Offset)[0]}, nil
	}
}
