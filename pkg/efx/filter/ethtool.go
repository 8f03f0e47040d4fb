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

package filter

import (
	"errors"

	"efx.dev/efx/pkg/abi/linux"
	"golang.org/x/sys/unix"
)

// ErrUnsupported is matched by errors.Is for every filter that has no
// equivalent ethtool flow rule. Callers should fall back to another
// classification mechanism.
var ErrUnsupported = errors.New("filter has no ethtool flow equivalent")

// UnsupportedError is returned by ToEthtoolFlow. It unwraps to
// EPROTONOSUPPORT.
type UnsupportedError struct {
	// Reason names the rule that rejected the filter.
	Reason string
}

// Error implements error.Error.
func (e *UnsupportedError) Error() string {
	return "unsupported filter: " + e.Reason
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Unwrap returns EPROTONOSUPPORT.
func (e *UnsupportedError) Unwrap() error {
	return unix.EPROTONOSUPPORT
}

func unsupported(reason string) error {
	return &UnsupportedError{Reason: reason}
}

const (
	supportedFlags = FlagRx | FlagStackID | FlagVPortID | FlagRxScatter

	supportedMatch = MatchRemHost | MatchLocHost | MatchRemPort | MatchLocPort |
		MatchIPProto | MatchEtherType | MatchOuterVID
)

var (
	allOnes = [16]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}

	ip4MulticastAddr = [4]byte{224, 0, 0, 0}
	ip4MulticastMask = [4]byte{240, 0, 0, 0}
)

// combinePorts packs two ports into the l4_4_bytes word of the user flow
// views: loc in the low 16 bits, rem in the high 16 bits.
func combinePorts(loc, rem uint16) uint32 {
	return uint32(rem)<<16 | uint32(loc)
}

// ToEthtoolFlow returns the ethtool flow rule matching the same packets as
// s. The rule's location is RX_CLS_LOC_ANY, leaving placement to the driver.
//
// Only IP filters on hosts, ports, protocol, ether type and outer VLAN, and
// the default multicast filter, can be expressed. Any other filter yields an
// error matching ErrUnsupported.
func ToEthtoolFlow(s *Spec) (linux.EthtoolRxFlowSpec, error) {
	fs := linux.EthtoolRxFlowSpec{Location: linux.RX_CLS_LOC_ANY}

	if s.Flags&^supportedFlags != 0 {
		return linux.EthtoolRxFlowSpec{}, unsupported("flags " + (s.Flags &^ supportedFlags).String())
	}

	// A single rule matching 224.0.0.0/4 catches all IPv4 multicast.
	if s.MatchFlags == MatchLocMACIG && s.LocMAC[0]&1 != 0 {
		fs.FlowType = linux.UDP_V4_FLOW
		fs.HU = &linux.EthtoolTCPIP4Spec{IP4Dst: ip4MulticastAddr}
		fs.MU = &linux.EthtoolTCPIP4Spec{IP4Dst: ip4MulticastMask}
		return fs, nil
	}

	if s.MatchFlags&^supportedMatch != 0 {
		return linux.EthtoolRxFlowSpec{}, unsupported("match " + (s.MatchFlags &^ supportedMatch).String())
	}
	if s.MatchFlags&(MatchRemHost|MatchLocHost) == MatchRemHost {
		return linux.EthtoolRxFlowSpec{}, unsupported("remote host without local host")
	}
	if s.MatchFlags&(MatchRemPort|MatchLocPort) == MatchRemPort {
		return linux.EthtoolRxFlowSpec{}, unsupported("remote port without local port")
	}
	if s.MatchFlags&MatchEtherType != 0 && s.EtherType != linux.ETH_P_IP && s.EtherType != linux.ETH_P_IPV6 {
		return linux.EthtoolRxFlowSpec{}, unsupported("ether type is neither IPv4 nor IPv6")
	}

	// Unmatched fields are wildcards: zero value, zero mask.
	proto := -1
	if s.MatchFlags&MatchIPProto != 0 {
		proto = int(s.IPProto)
	}
	var locIP, locIPMask, remIP, remIPMask [16]byte
	var locPort, locPortMask, remPort, remPortMask uint16
	if s.MatchFlags&MatchLocHost != 0 {
		locIP, locIPMask = s.LocHost, allOnes
	}
	if s.MatchFlags&MatchLocPort != 0 {
		locPort, locPortMask = s.LocPort, 0xffff
	}
	if s.MatchFlags&MatchRemHost != 0 {
		remIP, remIPMask = s.RemHost, allOnes
	}
	if s.MatchFlags&MatchRemPort != 0 {
		remPort, remPortMask = s.RemPort, 0xffff
	}

	var protoMask uint8
	if proto >= 0 {
		protoMask = 0xff
	}

	// The flow rule's destination is the filter's local end.
	switch {
	case s.isIPv6() && (proto == linux.IPPROTO_UDP || proto == linux.IPPROTO_TCP):
		fs.FlowType = linux.TCP_V6_FLOW
		if proto == linux.IPPROTO_UDP {
			fs.FlowType = linux.UDP_V6_FLOW
		}
		fs.HU = &linux.EthtoolTCPIP6Spec{IP6Dst: locIP, PDst: locPort, IP6Src: remIP, PSrc: remPort}
		fs.MU = &linux.EthtoolTCPIP6Spec{IP6Dst: locIPMask, PDst: locPortMask, IP6Src: remIPMask, PSrc: remPortMask}

	case s.isIPv6():
		fs.FlowType = linux.IPV6_USER_FLOW
		fs.HU = &linux.EthtoolUsrIP6Spec{
			IP6Dst:    locIP,
			IP6Src:    remIP,
			L4_4Bytes: combinePorts(locPort, remPort),
			L4Proto:   uint8(proto) & protoMask,
		}
		fs.MU = &linux.EthtoolUsrIP6Spec{
			IP6Dst:    locIPMask,
			IP6Src:    remIPMask,
			L4_4Bytes: combinePorts(locPortMask, remPortMask),
			L4Proto:   protoMask,
		}

	case proto == linux.IPPROTO_UDP || proto == linux.IPPROTO_TCP:
		fs.FlowType = linux.TCP_V4_FLOW
		if proto == linux.IPPROTO_UDP {
			fs.FlowType = linux.UDP_V4_FLOW
		}
		fs.HU = &linux.EthtoolTCPIP4Spec{IP4Dst: ip4(locIP), PDst: locPort, IP4Src: ip4(remIP), PSrc: remPort}
		fs.MU = &linux.EthtoolTCPIP4Spec{IP4Dst: ip4(locIPMask), PDst: locPortMask, IP4Src: ip4(remIPMask), PSrc: remPortMask}

	default:
		fs.FlowType = linux.IPV4_USER_FLOW
		fs.HU = &linux.EthtoolUsrIP4Spec{
			IP4Dst:    ip4(locIP),
			IP4Src:    ip4(remIP),
			L4_4Bytes: combinePorts(locPort, remPort),
			Proto:     uint8(proto) & protoMask,
		}
		fs.MU = &linux.EthtoolUsrIP4Spec{
			IP4Dst:    ip4(locIPMask),
			IP4Src:    ip4(remIPMask),
			L4_4Bytes: combinePorts(locPortMask, remPortMask),
			Proto:     protoMask,
		}
	}

	if s.MatchFlags&MatchOuterVID != 0 {
		fs.FlowType |= linux.FLOW_EXT
		fs.HExt.VLANTCI = s.OuterVID
		fs.MExt.VLANTCI = 0xffff
	}
	return fs, nil
}

// ip4 returns the IPv4 address held in the first four bytes of h.
func ip4(h [16]byte) [4]byte {
	return [4]byte(h[:4])
}
