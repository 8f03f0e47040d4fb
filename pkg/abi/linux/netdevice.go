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

// Package linux contains the Linux network device ABI used to program
// receive flow classification.
package linux

import "fmt"

const (
	// IFNAMSIZ is the size of the name field for IFReq.
	IFNAMSIZ = 16

	// SIOCETHTOOL is the ioctl carrying ethtool commands.
	SIOCETHTOOL = 0x8946
)

// IFReq is an interface request.
type IFReq struct {
	// IFName is an encoded name, normally null-terminated. This should be
	// accessed via the Name and SetName functions.
	IFName [IFNAMSIZ]byte

	// Data is the union of the request payloads. SIOCETHTOOL uses the
	// leading pointer-sized ifr_data.
	Data [24]byte
}

// SizeOfIFReq is the binary size of an IFReq struct.
const SizeOfIFReq = IFNAMSIZ + 24

// Name returns the name.
func (ifr *IFReq) Name() string {
	for c := 0; c < len(ifr.IFName); c++ {
		if ifr.IFName[c] == 0 {
			return string(ifr.IFName[:c])
		}
	}
	return string(ifr.IFName[:])
}

// SetName sets the name. Names longer than IFNAMSIZ-1 bytes are truncated so
// the result stays null-terminated.
func (ifr *IFReq) SetName(name string) {
	n := copy(ifr.IFName[:IFNAMSIZ-1], name)
	for i := n; i < len(ifr.IFName); i++ {
		ifr.IFName[i] = 0
	}
}

// EthtoolCmd is the leading command word of every SIOCETHTOOL argument.
type EthtoolCmd uint32

// String implements fmt.Stringer.String.
func (c EthtoolCmd) String() string {
	switch c {
	case ETHTOOL_GRXRINGS:
		return "ETHTOOL_GRXRINGS"
	case ETHTOOL_GRXCLSRLCNT:
		return "ETHTOOL_GRXCLSRLCNT"
	case ETHTOOL_GRXCLSRULE:
		return "ETHTOOL_GRXCLSRULE"
	case ETHTOOL_GRXCLSRLALL:
		return "ETHTOOL_GRXCLSRLALL"
	case ETHTOOL_SRXCLSRLDEL:
		return "ETHTOOL_SRXCLSRLDEL"
	case ETHTOOL_SRXCLSRLINS:
		return "ETHTOOL_SRXCLSRLINS"
	default:
		return fmt.Sprintf("EthtoolCmd(%#x)", uint32(c))
	}
}
