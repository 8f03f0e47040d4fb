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
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"efx.dev/efx/pkg/efx/filter"
	"github.com/google/subcommands"
)

// Translate implements subcommands.Command for the "translate" command.
type Translate struct {
	dump   bool
	strict bool
}

// Name implements subcommands.Command.Name.
func (*Translate) Name() string {
	return "translate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Translate) Synopsis() string {
	return "show the ethtool rules a filter file translates to"
}

// Usage implements subcommands.Command.Usage.
func (*Translate) Usage() string {
	return "translate [-hex] [-strict] <filter file>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Translate) SetFlags(fs *flag.FlagSet) {
	fs.BoolVar(&t.dump, "hex", false, "also dump each rule as an encoded struct ethtool_rx_flow_spec")
	fs.BoolVar(&t.strict, "strict", false, "fail if any filter has no ethtool equivalent")
}

// Execute implements subcommands.Command.Execute.
func (t *Translate) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return status(f, t.execute(f.Arg(0), os.Stdout))
}

func (t *Translate) execute(path string, w io.Writer) error {
	filters, err := filter.LoadFile(path)
	if err != nil {
		return err
	}
	var unsupported int
	for _, nf := range filters {
		fmt.Fprintf(w, "%s: %v\n", nf.Name, nf.Spec)
		fs, err := filter.ToEthtoolFlow(nf.Spec)
		if errors.Is(err, filter.ErrUnsupported) {
			unsupported++
			fmt.Fprintf(w, "\t%v\n", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("filter %q: %w", nf.Name, err)
		}
		fs.RingCookie = uint64(nf.Spec.DMAQID)
		fmt.Fprintf(w, "\t%v\n", &fs)
		if t.dump {
			buf := make([]byte, fs.SizeBytes())
			fs.MarshalBytes(buf)
			fmt.Fprint(w, hex.Dump(buf))
		}
	}
	if t.strict && unsupported > 0 {
		return fmt.Errorf("%d of %d filters have no ethtool equivalent", unsupported, len(filters))
	}
	return nil
}
