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

package linux

import (
	"encoding/binary"
	"fmt"
)

// Receive flow classification commands for SIOCETHTOOL.
// See: <linux/ethtool.h>
const (
	ETHTOOL_GRXRINGS    EthtoolCmd = 0x2d
	ETHTOOL_GRXCLSRLCNT EthtoolCmd = 0x2e
	ETHTOOL_GRXCLSRULE  EthtoolCmd = 0x2f
	ETHTOOL_GRXCLSRLALL EthtoolCmd = 0x30
	ETHTOOL_SRXCLSRLDEL EthtoolCmd = 0x31
	ETHTOOL_SRXCLSRLINS EthtoolCmd = 0x32
)

// Flow types, for EthtoolRxFlowSpec.FlowType.
const (
	TCP_V4_FLOW    = 0x01
	UDP_V4_FLOW    = 0x02
	SCTP_V4_FLOW   = 0x03
	AH_ESP_V4_FLOW = 0x04
	TCP_V6_FLOW    = 0x05
	UDP_V6_FLOW    = 0x06
	SCTP_V6_FLOW   = 0x07
	AH_ESP_V6_FLOW = 0x08
	AH_V4_FLOW     = 0x09
	ESP_V4_FLOW    = 0x0a
	AH_V6_FLOW     = 0x0b
	ESP_V6_FLOW    = 0x0c
	IPV4_USER_FLOW = 0x0d
	IPV6_USER_FLOW = 0x0e
	IPV4_FLOW      = 0x10
	IPV6_FLOW      = 0x11
	ETHER_FLOW     = 0x12
)

// Flags that may be or'ed into a flow type.
const (
	FLOW_EXT     = 0x80000000
	FLOW_MAC_EXT = 0x40000000
	FLOW_RSS     = 0x20000000

	flowTypeFlags = FLOW_EXT | FLOW_MAC_EXT | FLOW_RSS
)

// Special values of EthtoolRxFlowSpec.RingCookie and Location.
const (
	RX_CLS_FLOW_DISC = 0xffffffffffffffff
	RX_CLS_FLOW_WAKE = 0xfffffffffffffffe

	RX_CLS_LOC_SPECIAL = 0x80000000
	RX_CLS_LOC_ANY     = 0xffffffff
	RX_CLS_LOC_FIRST   = 0xfffffffe
	RX_CLS_LOC_LAST    = 0xfffffffd
)

// ETH_RX_NFC_IP4 is the only valid value of EthtoolUsrIP4Spec.IPVer.
const ETH_RX_NFC_IP4 = 1

// Ether types matched by receive filters.
const (
	ETH_P_IP   = 0x0800
	ETH_P_IPV6 = 0x86dd
)

// Sizes of the flow classification structures.
const (
	SizeOfEthtoolFlowUnion  = 52
	SizeOfEthtoolFlowExt    = 20
	SizeOfEthtoolRxFlowSpec = 168
	SizeOfEthtoolRxnfc      = 192

	// offsetOfRuleLocs is where struct ethtool_rxnfc's flexible rule_locs
	// array starts; it overlaps the struct's tail padding.
	offsetOfRuleLocs = 188
)

// FlowUnion is one view of union ethtool_flow_union. The view in use is
// selected by the flow type. Only the types in this package implement it.
type FlowUnion interface {
	// marshalUnion encodes the view into dst, which is
	// SizeOfEthtoolFlowUnion bytes of zeroes.
	marshalUnion(dst []byte)
}

// EthtoolTCPIP4Spec is struct ethtool_tcpip4_spec, the view used by
// TCP_V4_FLOW, UDP_V4_FLOW and SCTP_V4_FLOW. Ports are host-order values;
// addresses and ports are big-endian on the wire.
type EthtoolTCPIP4Spec struct {
	IP4Src [4]byte
	IP4Dst [4]byte
	PSrc   uint16
	PDst   uint16
	TOS    uint8
}

// EthtoolUsrIP4Spec is struct ethtool_usrip4_spec, the view used by
// IPV4_USER_FLOW. L4_4Bytes is big-endian on the wire.
type EthtoolUsrIP4Spec struct {
	IP4Src    [4]byte
	IP4Dst    [4]byte
	L4_4Bytes uint32
	TOS       uint8
	IPVer     uint8
	Proto     uint8
}

// EthtoolTCPIP6Spec is struct ethtool_tcpip6_spec, the view used by
// TCP_V6_FLOW, UDP_V6_FLOW and SCTP_V6_FLOW.
type EthtoolTCPIP6Spec struct {
	IP6Src [16]byte
	IP6Dst [16]byte
	PSrc   uint16
	PDst   uint16
	TClass uint8
}

// EthtoolUsrIP6Spec is struct ethtool_usrip6_spec, the view used by
// IPV6_USER_FLOW.
type EthtoolUsrIP6Spec struct {
	IP6Src    [16]byte
	IP6Dst    [16]byte
	L4_4Bytes uint32
	TClass    uint8
	L4Proto   uint8
}

// EthtoolRawFlowUnion holds the union bytes of flow types without a typed
// view.
type EthtoolRawFlowUnion [SizeOfEthtoolFlowUnion]byte

func (s *EthtoolTCPIP4Spec) marshalUnion(dst []byte) {
	copy(dst[0:4], s.IP4Src[:])
	copy(dst[4:8], s.IP4Dst[:])
	binary.BigEndian.PutUint16(dst[8:10], s.PSrc)
	binary.BigEndian.PutUint16(dst[10:12], s.PDst)
	dst[12] = s.TOS
}

func (s *EthtoolTCPIP4Spec) unmarshalUnion(src []byte) {
	copy(s.IP4Src[:], src[0:4])
	copy(s.IP4Dst[:], src[4:8])
	s.PSrc = binary.BigEndian.Uint16(src[8:10])
	s.PDst = binary.BigEndian.Uint16(src[10:12])
	s.TOS = src[12]
}

func (s *EthtoolUsrIP4Spec) marshalUnion(dst []byte) {
	copy(dst[0:4], s.IP4Src[:])
	copy(dst[4:8], s.IP4Dst[:])
	binary.BigEndian.PutUint32(dst[8:12], s.L4_4Bytes)
	dst[12] = s.TOS
	dst[13] = s.IPVer
	dst[14] = s.Proto
}

func (s *EthtoolUsrIP4Spec) unmarshalUnion(src []byte) {
	copy(s.IP4Src[:], src[0:4])
	copy(s.IP4Dst[:], src[4:8])
	s.L4_4Bytes = binary.BigEndian.Uint32(src[8:12])
	s.TOS = src[12]
	s.IPVer = src[13]
	s.Proto = src[14]
}

func (s *EthtoolTCPIP6Spec) marshalUnion(dst []byte) {
	copy(dst[0:16], s.IP6Src[:])
	copy(dst[16:32], s.IP6Dst[:])
	binary.BigEndian.PutUint16(dst[32:34], s.PSrc)
	binary.BigEndian.PutUint16(dst[34:36], s.PDst)
	dst[36] = s.TClass
}

func (s *EthtoolTCPIP6Spec) unmarshalUnion(src []byte) {
	copy(s.IP6Src[:], src[0:16])
	copy(s.IP6Dst[:], src[16:32])
	s.PSrc = binary.BigEndian.Uint16(src[32:34])
	s.PDst = binary.BigEndian.Uint16(src[34:36])
	s.TClass = src[36]
}

func (s *EthtoolUsrIP6Spec) marshalUnion(dst []byte) {
	copy(dst[0:16], s.IP6Src[:])
	copy(dst[16:32], s.IP6Dst[:])
	binary.BigEndian.PutUint32(dst[32:36], s.L4_4Bytes)
	dst[36] = s.TClass
	dst[37] = s.L4Proto
}

func (s *EthtoolUsrIP6Spec) unmarshalUnion(src []byte) {
	copy(s.IP6Src[:], src[0:16])
	copy(s.IP6Dst[:], src[16:32])
	s.L4_4Bytes = binary.BigEndian.Uint32(src[32:36])
	s.TClass = src[36]
	s.L4Proto = src[37]
}

func (s *EthtoolRawFlowUnion) marshalUnion(dst []byte) {
	copy(dst, s[:])
}

// unmarshalFlowUnion decodes src with the view selected by flowType.
func unmarshalFlowUnion(flowType uint32, src []byte) FlowUnion {
	switch flowType &^ flowTypeFlags {
	case TCP_V4_FLOW, UDP_V4_FLOW, SCTP_V4_FLOW:
		var s EthtoolTCPIP4Spec
		s.unmarshalUnion(src)
		return &s
	case IPV4_USER_FLOW:
		var s EthtoolUsrIP4Spec
		s.unmarshalUnion(src)
		return &s
	case TCP_V6_FLOW, UDP_V6_FLOW, SCTP_V6_FLOW:
		var s EthtoolTCPIP6Spec
		s.unmarshalUnion(src)
		return &s
	case IPV6_USER_FLOW:
		var s EthtoolUsrIP6Spec
		s.unmarshalUnion(src)
		return &s
	default:
		var s EthtoolRawFlowUnion
		copy(s[:], src)
		return &s
	}
}

// EthtoolFlowExt is struct ethtool_flow_ext: additional fields to match,
// used when the flow type has FLOW_EXT or FLOW_MAC_EXT set. All fields are
// big-endian on the wire, after two bytes of padding.
type EthtoolFlowExt struct {
	HDest     [6]byte
	VLANEtype uint16
	VLANTCI   uint16
	Data      [2]uint32
}

func (e *EthtoolFlowExt) marshal(dst []byte) {
	copy(dst[2:8], e.HDest[:])
	binary.BigEndian.PutUint16(dst[8:10], e.VLANEtype)
	binary.BigEndian.PutUint16(dst[10:12], e.VLANTCI)
	binary.BigEndian.PutUint32(dst[12:16], e.Data[0])
	binary.BigEndian.PutUint32(dst[16:20], e.Data[1])
}

func (e *EthtoolFlowExt) unmarshal(src []byte) {
	copy(e.HDest[:], src[2:8])
	e.VLANEtype = binary.BigEndian.Uint16(src[8:10])
	e.VLANTCI = binary.BigEndian.Uint16(src[10:12])
	e.Data[0] = binary.BigEndian.Uint32(src[12:16])
	e.Data[1] = binary.BigEndian.Uint32(src[16:20])
}

// EthtoolRxFlowSpec is struct ethtool_rx_flow_spec, a receive classification
// rule. A field of HU is matched where the corresponding bits of MU are set.
// HU and MU must be the same view.
type EthtoolRxFlowSpec struct {
	FlowType   uint32
	HU         FlowUnion
	HExt       EthtoolFlowExt
	MU         FlowUnion
	MExt       EthtoolFlowExt
	RingCookie uint64
	Location   uint32
}

// SizeBytes returns the size of the encoded rule.
func (fs *EthtoolRxFlowSpec) SizeBytes() int {
	return SizeOfEthtoolRxFlowSpec
}

// MarshalBytes encodes fs into dst in the kernel's layout and returns the
// rest of dst.
func (fs *EthtoolRxFlowSpec) MarshalBytes(dst []byte) []byte {
	dst = dst[:SizeOfEthtoolRxFlowSpec]
	clear(dst)
	binary.NativeEndian.PutUint32(dst[0:4], fs.FlowType)
	if fs.HU != nil {
		fs.HU.marshalUnion(dst[4:56])
	}
	fs.HExt.marshal(dst[56:76])
	if fs.MU != nil {
		fs.MU.marshalUnion(dst[76:128])
	}
	fs.MExt.marshal(dst[128:148])
	binary.NativeEndian.PutUint64(dst[152:160], fs.RingCookie)
	binary.NativeEndian.PutUint32(dst[160:164], fs.Location)
	return dst[SizeOfEthtoolRxFlowSpec:]
}

// UnmarshalBytes decodes fs from src and returns the rest of src.
func (fs *EthtoolRxFlowSpec) UnmarshalBytes(src []byte) []byte {
	src = src[:SizeOfEthtoolRxFlowSpec]
	fs.FlowType = binary.NativeEndian.Uint32(src[0:4])
	fs.HU = unmarshalFlowUnion(fs.FlowType, src[4:56])
	fs.HExt.unmarshal(src[56:76])
	fs.MU = unmarshalFlowUnion(fs.FlowType, src[76:128])
	fs.MExt.unmarshal(src[128:148])
	fs.RingCookie = binary.NativeEndian.Uint64(src[152:160])
	fs.Location = binary.NativeEndian.Uint32(src[160:164])
	return src[SizeOfEthtoolRxFlowSpec:]
}

// String implements fmt.Stringer.String.
func (fs *EthtoolRxFlowSpec) String() string {
	return fmt.Sprintf("flow_type=%#x h_u=%+v m_u=%+v h_ext=%+v m_ext=%+v ring_cookie=%#x location=%#x",
		fs.FlowType, fs.HU, fs.MU, fs.HExt, fs.MExt, fs.RingCookie, fs.Location)
}

// EthtoolRxnfc is struct ethtool_rxnfc, the argument of the receive flow
// classification commands.
type EthtoolRxnfc struct {
	Cmd      EthtoolCmd
	FlowType uint32
	Data     uint64
	FS       EthtoolRxFlowSpec
	// RuleCnt is also rss_context.
	RuleCnt uint32
	// RuleLocs is the flexible array filled in by ETHTOOL_GRXCLSRLALL.
	// Its length is the capacity offered to the kernel.
	RuleLocs []uint32
}

// SizeBytes returns the size of the encoded request, including RuleLocs.
func (nfc *EthtoolRxnfc) SizeBytes() int {
	return max(SizeOfEthtoolRxnfc, offsetOfRuleLocs+4*len(nfc.RuleLocs))
}

// MarshalBytes encodes nfc into dst and returns the rest of dst.
func (nfc *EthtoolRxnfc) MarshalBytes(dst []byte) []byte {
	size := nfc.SizeBytes()
	dst = dst[:size]
	clear(dst)
	binary.NativeEndian.PutUint32(dst[0:4], uint32(nfc.Cmd))
	binary.NativeEndian.PutUint32(dst[4:8], nfc.FlowType)
	binary.NativeEndian.PutUint64(dst[8:16], nfc.Data)
	nfc.FS.MarshalBytes(dst[16:184])
	binary.NativeEndian.PutUint32(dst[184:188], nfc.RuleCnt)
	for i, loc := range nfc.RuleLocs {
		off := offsetOfRuleLocs + 4*i
		binary.NativeEndian.PutUint32(dst[off:off+4], loc)
	}
	return dst[size:]
}

// UnmarshalBytes decodes nfc from src and returns the rest of src. RuleLocs
// keeps its length; at most that many locations are decoded.
func (nfc *EthtoolRxnfc) UnmarshalBytes(src []byte) []byte {
	size := nfc.SizeBytes()
	src = src[:size]
	nfc.Cmd = EthtoolCmd(binary.NativeEndian.Uint32(src[0:4]))
	nfc.FlowType = binary.NativeEndian.Uint32(src[4:8])
	nfc.Data = binary.NativeEndian.Uint64(src[8:16])
	nfc.FS.UnmarshalBytes(src[16:184])
	nfc.RuleCnt = binary.NativeEndian.Uint32(src[184:188])
	for i := range nfc.RuleLocs {
		off := offsetOfRuleLocs + 4*i
		nfc.RuleLocs[i] = binary.NativeEndian.Uint32(src[off : off+4])
	}
	return src[size:]
}
