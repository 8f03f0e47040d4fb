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

//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

// Package cmd holds the efxctl subcommands.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"efx.dev/efx/pkg/efx"
	"efx.dev/efx/pkg/log"
	"efx.dev/efx/pkg/mmio"
	"efx.dev/efx/pkg/rxclass"
	"efx.dev/efx/tools/efxctl/config"
	"github.com/google/subcommands"
)

// errUsage is returned by command implementations when the arguments do not
// match the command's usage.
var errUsage = errors.New("invalid arguments")

// Fatalf logs the message to stderr and the log, then exits.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Warningf("FATAL ERROR: "+format, args...)
	os.Exit(128)
}

// status converts the result of a command implementation into an exit
// status.
func status(f *flag.FlagSet, err error) subcommands.ExitStatus {
	switch {
	case err == nil:
		return subcommands.ExitSuccess
	case errors.Is(err, errUsage):
		f.Usage()
		return subcommands.ExitUsageError
	default:
		fmt.Fprintf(os.Stderr, "%v\n", err)
		log.Warningf("%s failed: %v", f.Name(), err)
		return subcommands.ExitFailure
	}
}

// configFrom returns the configuration passed by main to
// subcommands.Execute.
func configFrom(args []any) *config.Config {
	if len(args) > 0 {
		if c, ok := args[0].(*config.Config); ok {
			return c
		}
	}
	return config.Default()
}

// deviceFlags selects the device a command works on.
type deviceFlags struct {
	device     string
	iface      string
	generation string
}

func (d *deviceFlags) setFlags(fs *flag.FlagSet) {
	fs.StringVar(&d.device, "device", "", "name of the configured device to use")
	fs.StringVar(&d.iface, "interface", "", "network interface of the device to use, if it is not configured")
	fs.StringVar(&d.generation, "generation", "", "controller generation (ef10 or ef100) of an unconfigured -interface")
}

// resolve returns the selected device. With no selection, the only
// configured device is used.
func (d *deviceFlags) resolve(conf *config.Config) (*config.Device, error) {
	switch {
	case d.device != "" && d.iface != "":
		return nil, fmt.Errorf("%w: -device and -interface are exclusive", errUsage)
	case d.device != "":
		dev, ok := conf.Device(d.device)
		if !ok {
			return nil, fmt.Errorf("no device %q is configured", d.device)
		}
		return dev, nil
	case d.iface != "":
		for i := range conf.Devices {
			if conf.Devices[i].Interface == d.iface {
				return &conf.Devices[i], nil
			}
		}
		gen := d.generation
		if gen == "" {
			gen = efx.EF10.String()
		}
		if _, err := efx.ParseGeneration(gen); err != nil {
			return nil, err
		}
		return &config.Device{Name: d.iface, Interface: d.iface, Generation: gen}, nil
	case len(conf.Devices) == 1:
		return &conf.Devices[0], nil
	default:
		return nil, fmt.Errorf("%w: one of -device or -interface is required", errUsage)
	}
}

// openNIC maps the register BAR of d.
func openNIC(d *config.Device, verbose bool) (*efx.NIC, *mmio.Mapping, error) {
	var pci string
	if d.Resource == "" && d.PCI == "" {
		dev, err := rxclass.LookupDevice(d.Interface)
		if err != nil {
			return nil, nil, err
		}
		pci = dev.BusInfo
	}
	m, err := mmio.OpenResource(d.ResourcePath(pci), mmio.DefaultLockDir)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("%s: mapped %s (%#x bytes)", d.Name, m.Path(), m.Size())
	return efx.New(m, d.NICConfig(verbose)), m, nil
}

// maxSimulatedBAR bounds the memory allocated for a dry run.
const maxSimulatedBAR = 64 << 20

func viStride(nc efx.Config) uint32 {
	if nc.VIStride != 0 {
		return nc.VIStride
	}
	return nc.Generation.DefaultVIStride()
}

// simulateNIC returns a NIC over zeroed memory of at least size bytes, a
// whole number of pages, and a recorder of the transactions issued to it.
// size must not exceed maxSimulatedBAR.
func simulateNIC(nc efx.Config, size uint64) (*efx.NIC, *mmio.Recorder) {
	stride := uint64(viStride(nc))
	size = (size + stride - 1) / stride * stride
	rec := mmio.NewRecorder(mmio.NewMemory(uint32(size)))
	return efx.New(rec, nc), rec
}
