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

// Package efx provides register access for Solarflare EF10 and EF100 network
// controllers.
//
// The controllers expose few registers to the host and most of them are 32
// bits wide. A handful are 64 or 128 bits wide, but the bus only guarantees
// atomicity for naturally aligned 32- or 64-bit transfers, so a wide value is
// moved as a sequence of limbs. Accessors that need the sequence to appear
// atomic to the device hold the NIC's BIU (bus interface unit) lock for
// exactly that sequence and nothing more.
//
// The descriptor update registers (RX_DESC_UPD, TX_DESC_UPD) are special in
// the BIU and need no host locking:
//
//   - They are write-only.
//   - Replacing the low 96 bits with zero does not affect functionality.
//   - A write to the last dword of the register always commits it. If the
//     collector and the current write together do not provide all 128 bits,
//     the missing low bits are written as zero.
//
// So writing only the high dword is a complete, intentional doorbell, and is
// offered as its own operation rather than as a shortcut for the full write.
//
// Interrupt handlers of a userspace driver run as goroutines. The BIU lock is
// a plain mutex: a goroutine servicing an interrupt that blocks on it cannot
// prevent the holder from running, so no interrupt masking is needed.
package efx

import (
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"efx.dev/efx/pkg/mmio"
)

// Generation identifies the controller architecture.
type Generation int

// Supported controller generations.
const (
	EF10 Generation = iota
	EF100
)

// Default VI strides: the step between the per-queue copies of a paged
// register.
const (
	EF10DefaultVIStride  = 0x2000
	EF100DefaultVIStride = 0x10000
)

// String implements fmt.Stringer.String.
func (g Generation) String() string {
	switch g {
	case EF10:
		return "ef10"
	case EF100:
		return "ef100"
	default:
		return fmt.Sprintf("Generation(%d)", int(g))
	}
}

// DefaultVIStride returns the page stride used by g.
func (g Generation) DefaultVIStride() uint32 {
	if g == EF100 {
		return EF100DefaultVIStride
	}
	return EF10DefaultVIStride
}

// ParseGeneration parses "ef10" or "ef100".
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(s) {
	case "ef10":
		return EF10, nil
	case "ef100":
		return EF100, nil
	}
	return EF10, fmt.Errorf("unknown controller generation %q, must be ef10 or ef100", s)
}

// Config configures a NIC.
type Config struct {
	// Name identifies the NIC in log messages.
	Name string

	// Generation selects register layout and the default VI stride.
	Generation Generation

	// VIStride overrides the generation's default VI stride if non-zero.
	VIStride uint32

	// DwordIO forces all transfers to 32 bits. By default 64-bit hosts
	// use 64-bit transfers where a register allows it.
	DwordIO bool

	// Verbose logs every register access at debug level.
	Verbose bool
}

// NIC is the register access context of one controller function.
//
// All methods are safe to call from any goroutine.
type NIC struct {
	name    string
	gen     Generation
	bus     mmio.Bus
	stride  uint32
	qwordIO bool
	verbose bool

	// biuLock serializes register accesses that take more than one bus
	// transaction and must appear atomic to the device. It is never held
	// across anything other than the transfers of one logical access.
	biuLock sync.Mutex
}

// New returns a NIC accessing registers through bus.
func New(bus mmio.Bus, cfg Config) *NIC {
	stride := cfg.VIStride
	if stride == 0 {
		stride = cfg.Generation.DefaultVIStride()
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Generation.String()
	}
	return &NIC{
		name:    name,
		gen:     cfg.Generation,
		bus:     bus,
		stride:  stride,
		qwordIO: bits.UintSize == 64 && !cfg.DwordIO,
		verbose: cfg.Verbose,
	}
}

// Name returns the name given in Config.
func (n *NIC) Name() string {
	return n.name
}

// Generation returns the controller generation.
func (n *NIC) Generation() Generation {
	return n.gen
}

// VIStride returns the page stride of paged registers.
func (n *NIC) VIStride() uint32 {
	return n.stride
}

// QwordIO reports whether 64-bit transfers are used.
func (n *NIC) QwordIO() bool {
	return n.qwordIO
}
