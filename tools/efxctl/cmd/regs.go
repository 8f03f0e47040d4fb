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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"efx.dev/efx/pkg/efx"
	"efx.dev/efx/pkg/mmio"
	"efx.dev/efx/tools/efxctl/config"
	"github.com/google/subcommands"
)

// Regs implements subcommands.Command for the "regs" command.
type Regs struct {
	dev     deviceFlags
	dryRun  bool
	verbose bool
}

// Name implements subcommands.Command.Name.
func (*Regs) Name() string {
	return "regs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Regs) Synopsis() string {
	return "list, read or write controller registers"
}

// Usage implements subcommands.Command.Usage.
func (*Regs) Usage() string {
	return `regs [flags] list
regs [flags] read <register>
regs [flags] write <register> <value> [page]

Values are a number of at most 64 bits or colon-separated hexadecimal 32-bit
limbs, most significant first.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Regs) SetFlags(fs *flag.FlagSet) {
	r.dev.setFlags(fs)
	fs.BoolVar(&r.dryRun, "dry-run", false, "print the bus transactions instead of touching the device")
	fs.BoolVar(&r.verbose, "v", false, "log every register access at debug level")
}

// Execute implements subcommands.Command.Execute.
func (r *Regs) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return status(f, r.execute(configFrom(args), f.Args(), os.Stdout))
}

func (r *Regs) execute(conf *config.Config, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	d, err := r.dev.resolve(conf)
	if err != nil {
		return err
	}
	gen := d.NICConfig(false).Generation

	op := args[0]
	switch {
	case op == "list" && len(args) == 1:
		for _, ri := range efx.Registers(gen) {
			fmt.Fprintln(w, ri)
		}
		return nil
	case op == "read" && len(args) == 2:
	case op == "write" && (len(args) == 3 || len(args) == 4):
	default:
		return errUsage
	}

	ri, ok := efx.LookupRegister(gen, args[1])
	if !ok {
		return fmt.Errorf("no %v register named %q", gen, args[1])
	}
	var (
		value efx.Oword
		page  uint32
	)
	if op == "write" {
		if value, err = efx.ParseOword(args[2]); err != nil {
			return err
		}
		if len(args) == 4 {
			p, err := strconv.ParseUint(args[3], 0, 32)
			if err != nil {
				return fmt.Errorf("invalid page %q: %w", args[3], err)
			}
			page = uint32(p)
		}
	}

	// The last byte the access touches, checked against the BAR before any
	// address arithmetic in uint32 can overflow.
	nc := d.NICConfig(r.verbose)
	end := uint64(ri.Offset) + uint64(ri.Width)
	if ri.Paged {
		end += uint64(page) * uint64(viStride(nc))
	}

	var (
		nic *efx.NIC
		rec *mmio.Recorder
	)
	if r.dryRun {
		if end > maxSimulatedBAR {
			return fmt.Errorf("page %d of %s is beyond the %#x byte simulated BAR", page, ri.Name, maxSimulatedBAR)
		}
		nic, rec = simulateNIC(nc, end)
	} else {
		var m *mmio.Mapping
		nic, m, err = openNIC(d, r.verbose)
		if err != nil {
			return err
		}
		defer m.Close()
		if end > uint64(m.Size()) {
			return fmt.Errorf("page %d of %s is beyond the %#x byte BAR %s", page, ri.Name, m.Size(), m.Path())
		}
	}

	if op == "write" {
		if err := nic.WriteRegister(ri, page, value); err != nil {
			return err
		}
	} else {
		v, err := nic.ReadRegister(ri)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s = %s\n", ri.Name, formatValue(v, ri.Width))
	}
	if rec != nil {
		for _, a := range rec.Accesses() {
			fmt.Fprintln(w, a)
		}
	}
	return nil
}

// formatValue prints the low width bytes of v.
func formatValue(v efx.Oword, width int) string {
	switch width {
	case efx.DwordSize:
		return efx.Dword{v[0]}.String()
	case efx.QwordSize:
		return efx.Qword{v[0], v[1]}.String()
	default:
		return v.String()
	}
}
