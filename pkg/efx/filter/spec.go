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

// Package filter describes receive filters of the controller and translates
// them to ethtool flow classification rules.
package filter

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"efx.dev/efx/pkg/abi/linux"
)

// MatchFlags selects the fields of a Spec that a filter matches on.
type MatchFlags uint32

// Match flags.
const (
	MatchRemHost MatchFlags = 1 << iota
	MatchLocHost
	MatchRemMAC
	MatchRemPort
	MatchLocMAC
	MatchLocPort
	MatchEtherType
	MatchInnerVID
	MatchOuterVID
	MatchIPProto
	// MatchLocMACIG matches the individual/group bit of the local MAC
	// only, catching all unicast or all multicast traffic.
	MatchLocMACIG
	MatchEncapType
)

var matchFlagNames = []string{
	"REM_HOST", "LOC_HOST", "REM_MAC", "REM_PORT", "LOC_MAC", "LOC_PORT",
	"ETHER_TYPE", "INNER_VID", "OUTER_VID", "IP_PROTO", "LOC_MAC_IG", "ENCAP_TYPE",
}

// String implements fmt.Stringer.String.
func (m MatchFlags) String() string {
	return flagString(uint64(m), matchFlagNames)
}

// Flags controls where a filter delivers packets.
type Flags uint32

// Filter flags.
const (
	FlagRxRSS Flags = 1 << iota
	FlagRxScatter
	FlagRxOverAuto
	FlagRx
	FlagTx
	FlagVPortID
	FlagStackID
)

var flagNames = []string{
	"RX_RSS", "RX_SCATTER", "RX_OVER_AUTO", "RX", "TX", "VPORT_ID", "STACK_ID",
}

// String implements fmt.Stringer.String.
func (f Flags) String() string {
	return flagString(uint64(f), flagNames)
}

func flagString(v uint64, names []string) string {
	if v == 0 {
		return "0"
	}
	var parts []string
	for i, name := range names {
		if v&(1<<i) != 0 {
			parts = append(parts, name)
			v &^= 1 << i
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("%#x", v))
	}
	return strings.Join(parts, "|")
}

// Priority is the priority of a filter. A filter only replaces one of lower
// priority.
type Priority int

// Filter priorities.
const (
	// PriorityHint is a hint to the hardware; it may be dropped or
	// replaced at any time.
	PriorityHint Priority = iota
	// PriorityAuto is inserted automatically by the driver.
	PriorityAuto
	// PriorityManual is requested by the user.
	PriorityManual
	// PriorityRequired is required for correct operation.
	PriorityRequired
)

// String implements fmt.Stringer.String.
func (p Priority) String() string {
	switch p {
	case PriorityHint:
		return "hint"
	case PriorityAuto:
		return "auto"
	case PriorityManual:
		return "manual"
	case PriorityRequired:
		return "required"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority parses the name of a priority.
func ParsePriority(s string) (Priority, error) {
	for p := PriorityHint; p <= PriorityRequired; p++ {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return PriorityHint, fmt.Errorf("unknown filter priority %q", s)
}

// VIDUnspec is the VLAN id of a Spec that does not match a VLAN.
const VIDUnspec = 0xffff

// Spec is a receive filter. Fields not selected by MatchFlags are ignored.
type Spec struct {
	MatchFlags MatchFlags
	Priority   Priority
	Flags      Flags
	RSSContext uint32
	// DMAQID is the receive queue packets are delivered to.
	DMAQID  uint16
	VPortID uint32
	StackID uint16

	OuterVID  uint16
	InnerVID  uint16
	LocMAC    [6]byte
	RemMAC    [6]byte
	EtherType uint16
	IPProto   uint8

	// LocHost and RemHost are in network order. An IPv4 address occupies
	// the first four bytes.
	LocHost [16]byte
	RemHost [16]byte
	LocPort uint16
	RemPort uint16
}

// NewRxSpec returns a receive filter delivering to queue rxq that matches
// nothing yet.
func NewRxSpec(priority Priority, flags Flags, rxq uint16) *Spec {
	return &Spec{
		Priority: priority,
		Flags:    FlagRx | flags,
		DMAQID:   rxq,
		OuterVID: VIDUnspec,
		InnerVID: VIDUnspec,
	}
}

func setHost(dst *[16]byte, addr netip.Addr) {
	*dst = [16]byte{}
	if addr.Is4() {
		a := addr.As4()
		copy(dst[:], a[:])
		return
	}
	*dst = addr.As16()
}

// SetIPv4Local matches IPv4 packets of protocol proto sent to host:port.
func (s *Spec) SetIPv4Local(proto uint8, host netip.Addr, port uint16) error {
	if !host.Is4() {
		return fmt.Errorf("%v is not an IPv4 address", host)
	}
	s.MatchFlags |= MatchEtherType | MatchIPProto | MatchLocHost | MatchLocPort
	s.EtherType = linux.ETH_P_IP
	s.IPProto = proto
	setHost(&s.LocHost, host)
	s.LocPort = port
	return nil
}

// SetIPv4Full matches IPv4 packets of protocol proto sent from rhost:rport to
// lhost:lport.
func (s *Spec) SetIPv4Full(proto uint8, lhost netip.Addr, lport uint16, rhost netip.Addr, rport uint16) error {
	if err := s.SetIPv4Local(proto, lhost, lport); err != nil {
		return err
	}
	if !rhost.Is4() {
		return fmt.Errorf("%v is not an IPv4 address", rhost)
	}
	s.MatchFlags |= MatchRemHost | MatchRemPort
	setHost(&s.RemHost, rhost)
	s.RemPort = rport
	return nil
}

// SetIPv6Local matches IPv6 packets of protocol proto sent to host:port.
func (s *Spec) SetIPv6Local(proto uint8, host netip.Addr, port uint16) error {
	if !host.Is6() || host.Is4In6() {
		return fmt.Errorf("%v is not an IPv6 address", host)
	}
	s.MatchFlags |= MatchEtherType | MatchIPProto | MatchLocHost | MatchLocPort
	s.EtherType = linux.ETH_P_IPV6
	s.IPProto = proto
	setHost(&s.LocHost, host)
	s.LocPort = port
	return nil
}

// SetIPv6Full matches IPv6 packets of protocol proto sent from rhost:rport to
// lhost:lport.
func (s *Spec) SetIPv6Full(proto uint8, lhost netip.Addr, lport uint16, rhost netip.Addr, rport uint16) error {
	if err := s.SetIPv6Local(proto, lhost, lport); err != nil {
		return err
	}
	if !rhost.Is6() || rhost.Is4In6() {
		return fmt.Errorf("%v is not an IPv6 address", rhost)
	}
	s.MatchFlags |= MatchRemHost | MatchRemPort
	setHost(&s.RemHost, rhost)
	s.RemPort = rport
	return nil
}

// SetEthLocal matches packets sent to addr on VLAN vid. A vid of VIDUnspec or
// a nil addr leaves that field unmatched.
func (s *Spec) SetEthLocal(vid uint16, addr net.HardwareAddr) error {
	if addr != nil && len(addr) != len(s.LocMAC) {
		return fmt.Errorf("%v is not an Ethernet address", addr)
	}
	if vid != VIDUnspec {
		s.MatchFlags |= MatchOuterVID
		s.OuterVID = vid
	}
	if addr != nil {
		s.MatchFlags |= MatchLocMAC
		copy(s.LocMAC[:], addr)
	}
	return nil
}

// SetOuterVID matches packets on VLAN vid.
func (s *Spec) SetOuterVID(vid uint16) {
	s.MatchFlags |= MatchOuterVID
	s.OuterVID = vid
}

// SetUCDef matches unicast packets not matched by any other filter.
func (s *Spec) SetUCDef() {
	s.MatchFlags |= MatchLocMACIG
	s.LocMAC[0] &^= 1
}

// SetMCDef matches multicast packets not matched by any other filter.
func (s *Spec) SetMCDef() {
	s.MatchFlags |= MatchLocMACIG
	s.LocMAC[0] |= 1
}

// SetStackID delivers matching packets to the network stack with id.
func (s *Spec) SetStackID(id uint16) {
	s.Flags |= FlagStackID
	s.StackID = id
}

// SetVPortID delivers matching packets through virtual port id.
func (s *Spec) SetVPortID(id uint32) {
	s.Flags |= FlagVPortID
	s.VPortID = id
}

// String implements fmt.Stringer.String.
func (s *Spec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "match=%v flags=%v priority=%v rxq=%d", s.MatchFlags, s.Flags, s.Priority, s.DMAQID)
	if s.MatchFlags&MatchEtherType != 0 {
		fmt.Fprintf(&b, " ether_type=%#04x", s.EtherType)
	}
	if s.MatchFlags&MatchIPProto != 0 {
		fmt.Fprintf(&b, " ip_proto=%d", s.IPProto)
	}
	if s.MatchFlags&MatchLocHost != 0 {
		fmt.Fprintf(&b, " loc=%v", s.hostAddr(s.LocHost))
	}
	if s.MatchFlags&MatchLocPort != 0 {
		fmt.Fprintf(&b, " loc_port=%d", s.LocPort)
	}
	if s.MatchFlags&MatchRemHost != 0 {
		fmt.Fprintf(&b, " rem=%v", s.hostAddr(s.RemHost))
	}
	if s.MatchFlags&MatchRemPort != 0 {
		fmt.Fprintf(&b, " rem_port=%d", s.RemPort)
	}
	if s.MatchFlags&MatchOuterVID != 0 {
		fmt.Fprintf(&b, " vid=%d", s.OuterVID)
	}
	if s.MatchFlags&(MatchLocMAC|MatchLocMACIG) != 0 {
		fmt.Fprintf(&b, " loc_mac=%v", net.HardwareAddr(s.LocMAC[:]))
	}
	return b.String()
}

// isIPv6 reports whether the filter's addresses are IPv6. The ether type
// decides even when it is not matched on; an unset ether type means IPv4.
func (s *Spec) isIPv6() bool {
	return s.EtherType == linux.ETH_P_IPV6
}

func (s *Spec) hostAddr(h [16]byte) netip.Addr {
	if s.isIPv6() {
		return netip.AddrFrom16(h)
	}
	return netip.AddrFrom4([4]byte(h[:4]))
}
