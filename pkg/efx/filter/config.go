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
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"efx.dev/efx/pkg/abi/linux"
	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

// Named is a filter read from a filter file.
type Named struct {
	Name string
	Spec *Spec
}

// entry is one [[filter]] table of a filter file. A match field takes part
// in the filter only when present.
type entry struct {
	Name       string   `toml:"name" yaml:"name"`
	RxQueue    uint16   `toml:"rx_queue" yaml:"rx_queue"`
	Priority   string   `toml:"priority" yaml:"priority"`
	Flags      []string `toml:"flags" yaml:"flags"`
	StackID    *uint16  `toml:"stack_id" yaml:"stack_id"`
	VPortID    *uint32  `toml:"vport_id" yaml:"vport_id"`
	EtherType  *string  `toml:"ether_type" yaml:"ether_type"`
	IPProto    *string  `toml:"ip_proto" yaml:"ip_proto"`
	LocalHost  *string  `toml:"local_host" yaml:"local_host"`
	LocalPort  *uint16  `toml:"local_port" yaml:"local_port"`
	RemoteHost *string  `toml:"remote_host" yaml:"remote_host"`
	RemotePort *uint16  `toml:"remote_port" yaml:"remote_port"`
	OuterVID   *uint16  `toml:"outer_vid" yaml:"outer_vid"`
	LocalMAC   *string  `toml:"local_mac" yaml:"local_mac"`
	// Default is "unicast" or "multicast" for the catch-all filters.
	Default *string `toml:"default" yaml:"default"`
}

type file struct {
	Filters []entry `toml:"filter" yaml:"filter"`
}

var flagsByName = map[string]Flags{
	"rss":       FlagRxRSS,
	"scatter":   FlagRxScatter,
	"over_auto": FlagRxOverAuto,
	"tx":        FlagTx,
}

// Decode reads a filter file from r.
//
// A filter file is TOML with one [[filter]] table per filter:
//
//	[[filter]]
//	name = "dns"
//	rx_queue = 3
//	ip_proto = "udp"
//	local_host = "10.0.0.1"
//	local_port = 53
func Decode(r io.Reader) ([]Named, error) {
	var f file
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, err
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return f.build()
}

// DecodeYAML reads a filter file in YAML from r. The keys are those of the
// TOML form, under a top-level "filter" list:
//
//	filter:
//	- name: dns
//	  rx_queue: 3
//	  ip_proto: udp
//	  local_host: 10.0.0.1
//	  local_port: 53
func DecodeYAML(r io.Reader) ([]Named, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, err
	}
	return f.build()
}

// LoadFile reads the filter file at path. Files named *.yaml or *.yml are
// YAML, anything else TOML.
func LoadFile(path string) ([]Named, error) {
	var (
		fs  []Named
		err error
	)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var r *os.File
		if r, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("reading filter file %q: %w", path, err)
		}
		defer r.Close()
		fs, err = DecodeYAML(r)
	default:
		var (
			f  file
			md toml.MetaData
		)
		if md, err = toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("reading filter file %q: %w", path, err)
		}
		if err = checkUndecoded(md); err == nil {
			fs, err = f.build()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("filter file %q: %w", path, err)
	}
	return fs, nil
}

func checkUndecoded(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func (f *file) build() ([]Named, error) {
	out := make([]Named, 0, len(f.Filters))
	for i, e := range f.Filters {
		name := e.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		s, err := e.spec()
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}
		out = append(out, Named{Name: name, Spec: s})
	}
	return out, nil
}

func (e *entry) spec() (*Spec, error) {
	priority := PriorityManual
	if e.Priority != "" {
		p, err := ParsePriority(e.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}
	var flags Flags
	for _, name := range e.Flags {
		f, ok := flagsByName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown flag %q", name)
		}
		flags |= f
	}
	s := NewRxSpec(priority, flags, e.RxQueue)

	if e.StackID != nil {
		s.SetStackID(*e.StackID)
	}
	if e.VPortID != nil {
		s.SetVPortID(*e.VPortID)
	}
	if e.EtherType != nil {
		et, err := parseEtherType(*e.EtherType)
		if err != nil {
			return nil, err
		}
		s.MatchFlags |= MatchEtherType
		s.EtherType = et
	}
	if e.IPProto != nil {
		p, err := linux.ParseIPProto(*e.IPProto)
		if err != nil {
			return nil, err
		}
		s.MatchFlags |= MatchIPProto
		s.IPProto = p
	}
	if e.LocalHost != nil {
		if err := s.setHostField(MatchLocHost, &s.LocHost, *e.LocalHost); err != nil {
			return nil, err
		}
	}
	if e.RemoteHost != nil {
		if err := s.setHostField(MatchRemHost, &s.RemHost, *e.RemoteHost); err != nil {
			return nil, err
		}
	}
	if e.LocalPort != nil {
		s.MatchFlags |= MatchLocPort
		s.LocPort = *e.LocalPort
	}
	if e.RemotePort != nil {
		s.MatchFlags |= MatchRemPort
		s.RemPort = *e.RemotePort
	}
	if e.OuterVID != nil {
		s.SetOuterVID(*e.OuterVID)
	}
	if e.LocalMAC != nil {
		mac, err := net.ParseMAC(*e.LocalMAC)
		if err != nil {
			return nil, err
		}
		if err := s.SetEthLocal(VIDUnspec, mac); err != nil {
			return nil, err
		}
	}
	if e.Default != nil {
		switch strings.ToLower(*e.Default) {
		case "unicast":
			s.SetUCDef()
		case "multicast":
			s.SetMCDef()
		default:
			return nil, fmt.Errorf("default must be unicast or multicast, got %q", *e.Default)
		}
	}
	return s, nil
}

// setHostField matches host against the field selected by flag. Without an
// explicit ether type, the address family of host supplies one.
func (s *Spec) setHostField(flag MatchFlags, field *[16]byte, host string) error {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	addr = addr.Unmap()
	if s.MatchFlags&MatchEtherType == 0 {
		s.MatchFlags |= MatchEtherType
		s.EtherType = linux.ETH_P_IP
		if addr.Is6() {
			s.EtherType = linux.ETH_P_IPV6
		}
	}
	if addr.Is6() != s.isIPv6() {
		return fmt.Errorf("address %v does not match ether type %#04x", addr, s.EtherType)
	}
	s.MatchFlags |= flag
	setHost(field, addr)
	return nil
}

func parseEtherType(s string) (uint16, error) {
	switch strings.ToLower(s) {
	case "ipv4", "ip":
		return linux.ETH_P_IP, nil
	case "ipv6":
		return linux.ETH_P_IPV6, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid ether type %q", s)
	}
	return uint16(v), nil
}
