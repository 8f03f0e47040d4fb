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

import "fmt"

// Field is a bit field within a register value, given by its lowest bit
// number and width. A field may straddle limbs.
type Field struct {
	LBN   uint
	Width uint
}

// mask returns the all-ones value of the field's width.
func (f Field) mask() uint64 {
	if f.Width == 64 {
		return ^uint64(0)
	}
	return uint64(1)<<f.Width - 1
}

// check panics if f does not fit in nbits or v does not fit in f. Both are
// programming errors in register definitions or their users.
func (f Field) check(nbits uint, v uint64) {
	if f.Width == 0 || f.Width > 64 || f.LBN+f.Width > nbits {
		panic(fmt.Sprintf("efx: field %d:%d does not fit in %d bits", f.LBN, f.Width, nbits))
	}
	if v&^f.mask() != 0 {
		panic(fmt.Sprintf("efx: value %#x does not fit in %d-bit field", v, f.Width))
	}
}

// setField stores v into f across limbs.
func setField(limbs []uint32, f Field, v uint64) {
	f.check(uint(32*len(limbs)), v)
	end := f.LBN + f.Width
	for bit := f.LBN; bit < end; {
		i, shift := bit/32, bit%32
		n := min(32-shift, end-bit)
		m := uint32((uint64(1)<<n - 1) << shift)
		part := uint32((v >> (bit - f.LBN)) << shift)
		limbs[i] = limbs[i]&^m | part&m
		bit += n
	}
}

// getField extracts f from limbs.
func getField(limbs []uint32, f Field) uint64 {
	f.check(uint(32*len(limbs)), 0)
	end := f.LBN + f.Width
	var v uint64
	for bit := f.LBN; bit < end; {
		i, shift := bit/32, bit%32
		n := min(32-shift, end-bit)
		part := uint64(limbs[i]>>shift) & (uint64(1)<<n - 1)
		v |= part << (bit - f.LBN)
		bit += n
	}
	return v
}

// Set stores v in field f.
func (d *Dword) Set(f Field, v uint64) { setField(d[:], f, v) }

// Get returns field f.
func (d Dword) Get(f Field) uint64 { return getField(d[:], f) }

// Set stores v in field f.
func (q *Qword) Set(f Field, v uint64) { setField(q[:], f, v) }

// Get returns field f.
func (q Qword) Get(f Field) uint64 { return getField(q[:], f) }

// Set stores v in field f.
func (o *Oword) Set(f Field, v uint64) { setField(o[:], f, v) }

// Get returns field f.
func (o Oword) Get(f Field) uint64 { return getField(o[:], f) }

// FieldValue pairs a field with the value to populate it with.
type FieldValue struct {
	Field Field
	Value uint64
}

// PopulateDword returns a Dword with the given fields set and all other bits
// zero.
func PopulateDword(fvs ...FieldValue) Dword {
	var d Dword
	for _, fv := range fvs {
		d.Set(fv.Field, fv.Value)
	}
	return d
}

// PopulateQword returns a Qword with the given fields set and all other bits
// zero.
func PopulateQword(fvs ...FieldValue) Qword {
	var q Qword
	for _, fv := range fvs {
		q.Set(fv.Field, fv.Value)
	}
	return q
}

// PopulateOword returns an Oword with the given fields set and all other bits
// zero.
func PopulateOword(fvs ...FieldValue) Oword {
	var o Oword
	for _, fv := range fvs {
		o.Set(fv.Field, fv.Value)
	}
	return o
}
