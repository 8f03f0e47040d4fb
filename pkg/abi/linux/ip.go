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
	"fmt"
	"strconv"
	"strings"
)

// IP protocols a receive filter may name.
const (
	IPPROTO_ICMP    = 1
	IPPROTO_IGMP    = 2
	IPPROTO_TCP     = 6
	IPPROTO_UDP     = 17
	IPPROTO_GRE     = 47
	IPPROTO_ESP     = 50
	IPPROTO_AH      = 51
	IPPROTO_ICMPV6  = 58
	IPPROTO_SCTP    = 132
	IPPROTO_UDPLITE = 136
)

var ipProtoNames = map[string]uint8{
	"icmp":    IPPROTO_ICMP,
	"igmp":    IPPROTO_IGMP,
	"tcp":     IPPROTO_TCP,
	"udp":     IPPROTO_UDP,
	"gre":     IPPROTO_GRE,
	"esp":     IPPROTO_ESP,
	"ah":      IPPROTO_AH,
	"icmpv6":  IPPROTO_ICMPV6,
	"sctp":    IPPROTO_SCTP,
	"udplite": IPPROTO_UDPLITE,
}

// ParseIPProto parses a protocol name such as "udp", or a decimal protocol
// number.
func ParseIPProto(s string) (uint8, error) {
	if p, ok := ipProtoNames[strings.ToLower(s)]; ok {
		return p, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown IP protocol %q", s)
	}
	return uint8(n), nil
}
