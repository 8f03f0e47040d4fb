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
	"net/netip"
	"testing"

	"efx.dev/efx/pkg/abi/linux"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

var (
	ones4  = [4]byte{0xff, 0xff, 0xff, 0xff}
	ones16 = [16]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
)

func host16(s string) [16]byte {
	var h [16]byte
	setHost(&h, netip.MustParseAddr(s))
	return h
}

func TestToEthtoolFlow(t *testing.T) {
	for _, tc := range []struct {
		name string
		spec Spec
		want linux.EthtoolRxFlowSpec
	}{
		{
			name: "udp4 local",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchLocPort | MatchEtherType | MatchIPProto,
				Flags:      FlagRx,
				EtherType:  linux.ETH_P_IP,
				IPProto:    linux.IPPROTO_UDP,
				LocHost:    host16("10.0.0.1"),
				LocPort:    53,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.UDP_V4_FLOW,
				HU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{10, 0, 0, 1}, PDst: 53},
				MU:       &linux.EthtoolTCPIP4Spec{IP4Dst: ones4, PDst: 0xffff},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "multicast default",
			spec: Spec{
				MatchFlags: MatchLocMACIG,
				Flags:      FlagRx,
				LocMAC:     [6]byte{0x01},
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.UDP_V4_FLOW,
				HU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{224, 0, 0, 0}},
				MU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{240, 0, 0, 0}},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "multicast default with other group bits",
			spec: Spec{
				MatchFlags: MatchLocMACIG,
				LocMAC:     [6]byte{0x33},
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.UDP_V4_FLOW,
				HU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{224, 0, 0, 0}},
				MU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{240, 0, 0, 0}},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "tcp6 full",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchRemHost | MatchLocPort | MatchRemPort | MatchEtherType | MatchIPProto,
				EtherType:  linux.ETH_P_IPV6,
				IPProto:    linux.IPPROTO_TCP,
				LocHost:    host16("2001:db8::1"),
				RemHost:    host16("2001:db8::2"),
				LocPort:    80,
				RemPort:    40000,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.TCP_V6_FLOW,
				HU: &linux.EthtoolTCPIP6Spec{
					IP6Dst: host16("2001:db8::1"),
					IP6Src: host16("2001:db8::2"),
					PDst:   80,
					PSrc:   40000,
				},
				MU: &linux.EthtoolTCPIP6Spec{
					IP6Dst: ones16,
					IP6Src: ones16,
					PDst:   0xffff,
					PSrc:   0xffff,
				},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "outer vlan",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchLocPort | MatchIPProto | MatchOuterVID,
				IPProto:    linux.IPPROTO_TCP,
				LocHost:    host16("192.168.1.1"),
				LocPort:    443,
				OuterVID:   100,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.TCP_V4_FLOW | linux.FLOW_EXT,
				HU:       &linux.EthtoolTCPIP4Spec{IP4Dst: [4]byte{192, 168, 1, 1}, PDst: 443},
				MU:       &linux.EthtoolTCPIP4Spec{IP4Dst: ones4, PDst: 0xffff},
				HExt:     linux.EthtoolFlowExt{VLANTCI: 100},
				MExt:     linux.EthtoolFlowExt{VLANTCI: 0xffff},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "user ip4 with protocol",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchRemHost | MatchLocPort | MatchRemPort | MatchIPProto,
				Flags:      FlagRx | FlagStackID | FlagVPortID | FlagRxScatter,
				IPProto:    linux.IPPROTO_SCTP,
				LocHost:    host16("10.1.1.1"),
				RemHost:    host16("10.2.2.2"),
				LocPort:    0x1234,
				RemPort:    0x5678,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.IPV4_USER_FLOW,
				HU: &linux.EthtoolUsrIP4Spec{
					IP4Dst:    [4]byte{10, 1, 1, 1},
					IP4Src:    [4]byte{10, 2, 2, 2},
					L4_4Bytes: 0x56781234,
					Proto:     linux.IPPROTO_SCTP,
				},
				MU: &linux.EthtoolUsrIP4Spec{
					IP4Dst:    ones4,
					IP4Src:    ones4,
					L4_4Bytes: 0xffffffff,
					Proto:     0xff,
				},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "user ip4 wildcard protocol",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchLocPort,
				LocHost:    host16("10.1.1.1"),
				LocPort:    7,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.IPV4_USER_FLOW,
				HU:       &linux.EthtoolUsrIP4Spec{IP4Dst: [4]byte{10, 1, 1, 1}, L4_4Bytes: 7},
				MU:       &linux.EthtoolUsrIP4Spec{IP4Dst: ones4, L4_4Bytes: 0x0000ffff},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "udp6 by unmatched ether type",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchIPProto,
				EtherType:  linux.ETH_P_IPV6,
				IPProto:    linux.IPPROTO_UDP,
				LocHost:    host16("2001:db8::1"),
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.UDP_V6_FLOW,
				HU:       &linux.EthtoolTCPIP6Spec{IP6Dst: host16("2001:db8::1")},
				MU:       &linux.EthtoolTCPIP6Spec{IP6Dst: ones16},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "udp6 full",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchRemHost | MatchLocPort | MatchRemPort | MatchEtherType | MatchIPProto,
				EtherType:  linux.ETH_P_IPV6,
				IPProto:    linux.IPPROTO_UDP,
				LocHost:    host16("2001:db8::1"),
				RemHost:    host16("2001:db8::53"),
				LocPort:    5353,
				RemPort:    53,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.UDP_V6_FLOW,
				HU: &linux.EthtoolTCPIP6Spec{
					IP6Dst: host16("2001:db8::1"),
					IP6Src: host16("2001:db8::53"),
					PDst:   5353,
					PSrc:   53,
				},
				MU: &linux.EthtoolTCPIP6Spec{
					IP6Dst: ones16,
					IP6Src: ones16,
					PDst:   0xffff,
					PSrc:   0xffff,
				},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "user ip6 full with protocol",
			spec: Spec{
				MatchFlags: MatchLocHost | MatchRemHost | MatchLocPort | MatchRemPort | MatchEtherType | MatchIPProto,
				EtherType:  linux.ETH_P_IPV6,
				IPProto:    linux.IPPROTO_SCTP,
				LocHost:    host16("2001:db8::1"),
				RemHost:    host16("2001:db8::2"),
				LocPort:    0x1234,
				RemPort:    0x5678,
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.IPV6_USER_FLOW,
				HU: &linux.EthtoolUsrIP6Spec{
					IP6Dst:    host16("2001:db8::1"),
					IP6Src:    host16("2001:db8::2"),
					L4_4Bytes: 0x56781234,
					L4Proto:   linux.IPPROTO_SCTP,
				},
				MU: &linux.EthtoolUsrIP6Spec{
					IP6Dst:    ones16,
					IP6Src:    ones16,
					L4_4Bytes: 0xffffffff,
					L4Proto:   0xff,
				},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
		{
			name: "user ip6 wildcard protocol",
			spec: Spec{
				MatchFlags: MatchEtherType | MatchLocHost,
				EtherType:  linux.ETH_P_IPV6,
				LocHost:    host16("fe80::1"),
			},
			want: linux.EthtoolRxFlowSpec{
				FlowType: linux.IPV6_USER_FLOW,
				HU:       &linux.EthtoolUsrIP6Spec{IP6Dst: host16("fe80::1")},
				MU:       &linux.EthtoolUsrIP6Spec{IP6Dst: ones16},
				Location: linux.RX_CLS_LOC_ANY,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToEthtoolFlow(&tc.spec)
			if err != nil {
				t.Fatalf("ToEthtoolFlow(%v) failed: %v", &tc.spec, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ToEthtoolFlow(%v) mismatch (-want +got):\n%s", &tc.spec, diff)
			}
		})
	}
}

func TestToEthtoolFlowUnsupported(t *testing.T) {
	for _, tc := range []struct {
		name string
		spec Spec
	}{
		{
			name: "remote host without local host",
			spec: Spec{MatchFlags: MatchRemHost, RemHost: host16("10.0.0.2")},
		},
		{
			name: "remote port without local port",
			spec: Spec{MatchFlags: MatchLocHost | MatchRemHost | MatchRemPort},
		},
		{
			name: "unknown flag",
			spec: Spec{Flags: FlagRx | 0x80},
		},
		{
			name: "unknown flag with multicast default",
			spec: Spec{Flags: FlagRxRSS, MatchFlags: MatchLocMACIG, LocMAC: [6]byte{1}},
		},
		{
			name: "tx filter",
			spec: Spec{Flags: FlagTx, MatchFlags: MatchLocHost},
		},
		{
			name: "unicast default",
			spec: Spec{MatchFlags: MatchLocMACIG},
		},
		{
			name: "local mac",
			spec: Spec{MatchFlags: MatchLocMAC | MatchLocHost},
		},
		{
			name: "inner vlan",
			spec: Spec{MatchFlags: MatchInnerVID | MatchLocHost},
		},
		{
			name: "arp ether type",
			spec: Spec{MatchFlags: MatchEtherType, EtherType: 0x0806},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToEthtoolFlow(&tc.spec)
			if err == nil {
				t.Fatalf("ToEthtoolFlow(%v) = %v, want error", &tc.spec, &got)
			}
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("ToEthtoolFlow(%v) error %v does not match ErrUnsupported", &tc.spec, err)
			}
			if !errors.Is(err, unix.EPROTONOSUPPORT) {
				t.Errorf("ToEthtoolFlow(%v) error %v does not match EPROTONOSUPPORT", &tc.spec, err)
			}
			var ue *UnsupportedError
			if !errors.As(err, &ue) || ue.Reason == "" {
				t.Errorf("ToEthtoolFlow(%v) error %v is not an UnsupportedError with a reason", &tc.spec, err)
			}
		})
	}
}

func TestSetters(t *testing.T) {
	s := NewRxSpec(PriorityManual, FlagRxScatter, 4)
	if err := s.SetIPv4Full(linux.IPPROTO_UDP, netip.MustParseAddr("10.0.0.1"), 53, netip.MustParseAddr("10.0.0.2"), 1024); err != nil {
		t.Fatalf("SetIPv4Full failed: %v", err)
	}
	s.SetStackID(2)
	want := &Spec{
		MatchFlags: MatchEtherType | MatchIPProto | MatchLocHost | MatchLocPort | MatchRemHost | MatchRemPort,
		Priority:   PriorityManual,
		Flags:      FlagRx | FlagRxScatter | FlagStackID,
		DMAQID:     4,
		StackID:    2,
		OuterVID:   VIDUnspec,
		InnerVID:   VIDUnspec,
		EtherType:  linux.ETH_P_IP,
		IPProto:    linux.IPPROTO_UDP,
		LocHost:    host16("10.0.0.1"),
		RemHost:    host16("10.0.0.2"),
		LocPort:    53,
		RemPort:    1024,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("setters mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetIPv6Local(linux.IPPROTO_TCP, netip.MustParseAddr("10.0.0.1"), 1); err == nil {
		t.Errorf("SetIPv6Local accepted an IPv4 address")
	}

	mc := NewRxSpec(PriorityAuto, 0, 0)
	mc.SetMCDef()
	if _, err := ToEthtoolFlow(mc); err != nil {
		t.Errorf("ToEthtoolFlow(SetMCDef()) failed: %v", err)
	}
	uc := NewRxSpec(PriorityAuto, 0, 0)
	uc.SetUCDef()
	if _, err := ToEthtoolFlow(uc); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ToEthtoolFlow(SetUCDef()) = %v, want ErrUnsupported", err)
	}
}

func TestSpecString(t *testing.T) {
	s := NewRxSpec(PriorityManual, 0, 1)
	if err := s.SetIPv6Local(linux.IPPROTO_UDP, netip.MustParseAddr("2001:db8::5"), 4789); err != nil {
		t.Fatalf("SetIPv6Local failed: %v", err)
	}
	want := "match=LOC_HOST|LOC_PORT|ETHER_TYPE|IP_PROTO flags=RX priority=manual rxq=1 ether_type=0x86dd ip_proto=17 loc=2001:db8::5 loc_port=4789"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
