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
	"strconv"
	"strings"
)

// Register values are sequences of 32-bit limbs. Limb 0 holds bits [31:0] and
// is transferred at the lowest address; limbs are little-endian on the wire.

// Dword is a 32-bit register value.
type Dword [1]uint32

// Qword is a 64-bit register value.
type Qword [2]uint32

// Oword is a 128-bit register value.
type Oword [4]uint32

// Sizes of register values in bytes. Table entries are spaced by these.
const (
	DwordSize = 4
	QwordSize = 8
	OwordSize = 16
)

// DwordOf returns the Dword holding v.
func DwordOf(v uint32) Dword {
	return Dword{v}
}

// QwordOf returns the Qword holding v.
func QwordOf(v uint64) Qword {
	return Qword{uint32(v), uint32(v >> 32)}
}

// OwordOf returns the Oword whose low 64 bits are lo and high 64 bits are hi.
func OwordOf(lo, hi uint64) Oword {
	return Oword{uint32(lo), uint32(lo >> 32), uint32(hi), uint32(hi >> 32)}
}

// Uint32 returns the value as an integer.
func (d Dword) Uint32() uint32 {
	return d[0]
}

// Uint64 returns the value as an integer.
func (q Qword) Uint64() uint64 {
	return uint64(q[1])<<32 | uint64(q[0])
}

// Low returns bits [63:0].
func (o Oword) Low() uint64 {
	return uint64(o[1])<<32 | uint64(o[0])
}

// High returns bits [127:64].
func (o Oword) High() uint64 {
	return uint64(o[3])<<32 | uint64(o[2])
}

// String implements fmt.Stringer.String.
func (d Dword) String() string {
	return fmt.Sprintf("%08x", d[0])
}

// String implements fmt.Stringer.String. The most significant limb comes
// first.
func (q Qword) String() string {
	return fmt.Sprintf("%08x:%08x", q[1], q[0])
}

// String implements fmt.Stringer.String. The most significant limb comes
// first.
func (o Oword) String() string {
	return fmt.Sprintf("%08x:%08x:%08x:%08x", o[3], o[2], o[1], o[0])
}

// ParseOword parses a register value written either as one number of at most
// 64 bits, in any base strconv.ParseUint accepts, or as up to four
// colon-separated hexadecimal limbs with the most significant first, as
// printed by Oword.String.
func ParseOword(s string) (Oword, error) {
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return Oword{}, fmt.Errorf("invalid register value %q: %w", s, err)
		}
		return OwordOf(v, 0), nil
	}
	limbs := strings.Split(s, ":")
	if len(limbs) > 4 {
		return Oword{}, fmt.Errorf("invalid register value %q: more than 4 limbs", s)
	}
	var o Oword
	for i, l := range limbs {
		v, err := strconv.ParseUint(l, 16, 32)
		if err != nil {
			return Oword{}, fmt.Errorf("invalid register value %q: %w", s, err)
		}
		o[len(limbs)-1-i] = uint32(v)
	}
	return o, nil
}
