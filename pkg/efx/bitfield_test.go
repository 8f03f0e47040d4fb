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
)

func TestFieldStraddlesLimbs(t *testing.T) {
	f := Field{LBN: 28, Width: 8}
	var q Qword
	q.Set(f, 0xab)
	if want := (Qword{0xb0000000, 0x0000000a}); q != want {
		t.Errorf("Set(%v, 0xab) = %v, want %v", f, q, want)
	}
	if got := q.Get(f); got != 0xab {
		t.Errorf("Get(%v) = %#x, want 0xab", f, got)
	}
}

func TestFieldPreservesNeighbours(t *testing.T) {
	o := Oword{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff}
	o.Set(Field{LBN: 60, Width: 8}, 0)
	if want := (Oword{0xffffffff, 0x0fffffff, 0xfffffff0, 0xffffffff}); o != want {
		t.Errorf("clearing bits 60-67 gave %v, want %v", o, want)
	}
}

func TestPopulate(t *testing.T) {
	d := PopulateDword(FieldValue{TimerMode, TimerModeIntHoldoff}, FieldValue{TimerValue, 0x123})
	if got, want := d.Uint32(), uint32(3<<14|0x123); got != want {
		t.Errorf("PopulateDword() = %#x, want %#x", got, want)
	}

	o := PopulateOword(FieldValue{TxDescPush, 0x1122334455667788}, FieldValue{TxDescWptr, 0xabc})
	if want := OwordOf(0x1122334455667788, 0xabc); o != want {
		t.Errorf("PopulateOword() = %v, want %v", o, want)
	}
}

func TestFieldOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("setting 0x1000 in a 12-bit field did not panic")
		}
	}()
	PopulateDword(FieldValue{RxDescWptr, 0x1000})
}

func TestValueString(t *testing.T) {
	for _, tc := range []struct {
		v    interface{ String() string }
		want string
	}{
		{DwordOf(0x1a), "0000001a"},
		{QwordOf(0x0123456789abcdef), "01234567:89abcdef"},
		{Oword{1, 2, 3, 4}, "00000004:00000003:00000002:00000001"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
