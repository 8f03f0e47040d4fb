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

	"efx.dev/efx/pkg/abi/linux"
	"efx.dev/efx/pkg/efx/filter"
	"efx.dev/efx/pkg/rxclass"
	"efx.dev/efx/tools/efxctl/config"
	"github.com/google/subcommands"
)

// ruleTable is the flow classification table of an interface.
type ruleTable interface {
	InsertSpec(ctx context.Context, s *filter.Spec) (uint32, error)
	Delete(loc uint32) error
	Rule(loc uint32) (linux.EthtoolRxFlowSpec, error)
	Locations() ([]uint32, error)
	Count() (count, size uint32, special bool, err error)
	Close() error
}

// openRuleTable opens the table of iface. Tests replace it.
var openRuleTable = func(iface string) (ruleTable, error) {
	c, err := rxclass.Open(iface)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Rules implements subcommands.Command for the "rules" command.
type Rules struct {
	dev deviceFlags
}

// Name implements subcommands.Command.Name.
func (*Rules) Name() string {
	return "rules"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Rules) Synopsis() string {
	return "show or delete receive flow classification rules"
}

// Usage implements subcommands.Command.Usage.
func (*Rules) Usage() string {
	return `rules [flags] list
rules [flags] get <location>
rules [flags] delete <location>...
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Rules) SetFlags(fs *flag.FlagSet) {
	r.dev.setFlags(fs)
}

// Execute implements subcommands.Command.Execute.
func (r *Rules) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return status(f, r.execute(configFrom(args), f.Args(), os.Stdout))
}

func (r *Rules) execute(conf *config.Config, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	var locs []uint32
	switch op := args[0]; {
	case op == "list" && len(args) == 1:
	case op == "get" && len(args) == 2, op == "delete" && len(args) >= 2:
		for _, a := range args[1:] {
			loc, err := strconv.ParseUint(a, 0, 32)
			if err != nil {
				return fmt.Errorf("invalid location %q: %w", a, err)
			}
			locs = append(locs, uint32(loc))
		}
	default:
		return errUsage
	}

	d, err := r.dev.resolve(conf)
	if err != nil {
		return err
	}
	if d.Interface == "" {
		return fmt.Errorf("device %q has no network interface", d.Name)
	}
	t, err := openRuleTable(d.Interface)
	if err != nil {
		return err
	}
	defer t.Close()

	switch args[0] {
	case "list":
		return listRules(t, d.Interface, w)
	case "get":
		fs, err := t.Rule(locs[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d: %v\n", locs[0], &fs)
	case "delete":
		for _, loc := range locs {
			if err := t.Delete(loc); err != nil {
				return err
			}
			fmt.Fprintf(w, "deleted %d\n", loc)
		}
	}
	return nil
}

func listRules(t ruleTable, iface string, w io.Writer) error {
	count, size, _, err := t.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d of %d rules in use\n", iface, count, size)
	locs, err := t.Locations()
	if err != nil {
		return err
	}
	for _, loc := range locs {
		fs, err := t.Rule(loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d: %v\n", loc, &fs)
	}
	return nil
}
