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
	"testing"

	"efx.dev/efx/pkg/mmio"
	"github.com/google/go-cmp/cmp"
)

func TestDoorbells(t *testing.T) {
	for _, tc := range []struct {
		gen  Generation
		do   func(n *NIC)
		want []mmio.Access
	}{
		{
			gen:  EF10,
			do:   func(n *NIC) { n.PushRxDescriptors(1, 0x1234) },
			want: []mmio.Access{w32(0x2830, 0x234)},
		},
		{
			gen:  EF10,
			do:   func(n *NIC) { n.PushTxDescriptors(2, 0x10) },
			want: []mmio.Access{w32(0x4a18, 0x10)},
		},
		{
			gen: EF10,
			do:  func(n *NIC) { n.PushTxDescriptor(0, 5, QwordOf(0xaabbccdd00112233)) },
			want: []mmio.Access{
				w32(0xa10, 0x00112233),
				w32(0xa14, 0xaabbccdd),
				w32(0xa18, 5),
				w32(0xa1c, 0),
			},
		},
		{
			gen:  EF10,
			do:   func(n *NIC) { n.AckEventQueue(3, 0x8001) },
			want: []mmio.Access{w32(0x6400, 0x0001)},
		},
		{
			gen:  EF10,
			do:   func(n *NIC) { n.SetEventQueueTimer(0, TimerModeImmedStart, 4) },
			want: []mmio.Access{w32(0x420, 1<<14|4)},
		},
		{
			gen:  EF100,
			do:   func(n *NIC) { n.PushRxDescriptors(1, 0x1234) },
			want: []mmio.Access{w32(0x10180, 0x12340000)},
		},
		{
			gen:  EF100,
			do:   func(n *NIC) { n.PushTxDescriptors(0, 0x20001) },
			want: []mmio.Access{w32(0x200, 0x00010000)},
		},
		{
			gen:  EF100,
			do:   func(n *NIC) { n.SetEventQueueTimer(2, TimerModeDisabled, 0) },
			want: []mmio.Access{w32(0x20420, 0)},
		},
	} {
		n, rec := newTestNIC(tc.gen, true)
		tc.do(n)
		if diff := cmp.Diff(tc.want, rec.Accesses()); diff != "" {
			t.Errorf("%v: bus transactions mismatch (-want +got):\n%s", tc.gen, diff)
		}
	}
}

func TestPushTxDescriptorEF100Panics(t *testing.T) {
	n, _ := newTestNIC(EF100, true)
	defer func() {
		if recover() == nil {
			t.Errorf("PushTxDescriptor on EF100 did not panic")
		}
	}()
	n.PushTxDescriptor(0, 1, Qword{})
}

func TestLookupRegister(t *testing.T) {
	r, ok := LookupRegister(EF10, "timer_command")
	if !ok {
		t.Fatalf("LookupRegister(EF10, timer_command) not found")
	}
	if want := TimerCommand.Info(); r != want {
		t.Errorf("LookupRegister() = %+v, want %+v", r, want)
	}
	if _, ok := LookupRegister(EF100, "TIMER_COMMAND"); ok {
		t.Errorf("LookupRegister(EF100, TIMER_COMMAND) found an EF10-only register")
	}
	for _, gen := range []Generation{EF10, EF100} {
		for _, r := range Registers(gen) {
			if r.Generation != gen {
				t.Errorf("Registers(%v) returned %v", gen, r)
			}
		}
	}
}

func TestWriteRegister(t *testing.T) {
	n, rec := newTestNIC(EF10, true)
	evq, _ := LookupRegister(EF10, "EVQ_RPTR")
	if err := n.WriteRegister(evq, 2, OwordOf(0x8005, 0)); err != nil {
		t.Fatalf("WriteRegister(EVQ_RPTR) failed: %v", err)
	}
	rx, _ := LookupRegister(EF10, "RX_DESC_UPD")
	if err := n.WriteRegister(rx, 1, Oword{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteRegister(RX_DESC_UPD) failed: %v", err)
	}
	want := []mmio.Access{
		w32(0x4400, 0x8005),
		w32(0x2830, 1),
		w32(0x2834, 2),
		w32(0x2838, 3),
		w32(0x283c, 4),
	}
	if diff := cmp.Diff(want, rec.Accesses()); diff != "" {
		t.Errorf("bus transactions mismatch (-want +got):\n%s", diff)
	}

	rev, _ := LookupRegister(EF10, "BIU_HW_REV_ID")
	mc, _ := LookupRegister(EF10, "MC_DB_LWRD")
	tmr, _ := LookupRegister(EF100, "EVQ_TMR")
	forged := evq
	forged.Offset = 0x404
	for _, tc := range []struct {
		name string
		r    RegisterInfo
		page uint32
	}{
		{"read-only", rev, 0},
		{"not paged", mc, 1},
		{"wrong generation", tmr, 0},
		{"undeclared", forged, 0},
	} {
		if err := n.WriteRegister(tc.r, tc.page, Oword{}); err == nil {
			t.Errorf("WriteRegister(%s) succeeded", tc.name)
		}
	}
}

func TestReadRegister(t *testing.T) {
	n, rec := newTestNIC(EF10, true)
	rev, _ := LookupRegister(EF10, "BIU_HW_REV_ID")
	n.WriteDword(rev.Offset, DwordOf(0x1234))
	rec.Reset()
	got, err := n.ReadRegister(rev)
	if err != nil {
		t.Fatalf("ReadRegister(BIU_HW_REV_ID) failed: %v", err)
	}
	if got != OwordOf(0x1234, 0) {
		t.Errorf("ReadRegister(BIU_HW_REV_ID) = %v", got)
	}
	if diff := cmp.Diff([]mmio.Access{r32(0, 0x1234)}, rec.Accesses()); diff != "" {
		t.Errorf("bus transactions mismatch (-want +got):\n%s", diff)
	}
	if _, err := n.ReadRegister(TimerCommand.Info()); err == nil {
		t.Errorf("ReadRegister(TIMER_COMMAND) of a write-only register succeeded")
	}
}

func TestParseOword(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Oword
	}{
		{"0x10", Oword{0x10}},
		{"42", Oword{42}},
		{"0x1122334455667788", Oword{0x55667788, 0x11223344}},
		{"1:2", Oword{2, 1}},
		{"44444444:33333333:22222222:11111111", Oword{0x11111111, 0x22222222, 0x33333333, 0x44444444}},
	} {
		got, err := ParseOword(tc.in)
		if err != nil {
			t.Errorf("ParseOword(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOword(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if _, err := ParseOword(got.String()); err != nil {
			t.Errorf("ParseOword(%q) failed: %v", got.String(), err)
		}
	}
	for _, in := range []string{"", "zz", "1:2:3:4:5", "100000000:0"} {
		if _, err := ParseOword(in); err == nil {
			t.Errorf("ParseOword(%q) succeeded", in)
		}
	}
}
