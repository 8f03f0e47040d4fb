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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"efx.dev/efx/pkg/efx/filter"
	"efx.dev/efx/pkg/log"
	"efx.dev/efx/tools/efxctl/config"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
)

// Install implements subcommands.Command for the "install" command.
type Install struct {
	dev     deviceFlags
	filters string
}

// Name implements subcommands.Command.Name.
func (*Install) Name() string {
	return "install"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Install) Synopsis() string {
	return "install filters as receive flow classification rules"
}

// Usage implements subcommands.Command.Usage.
func (*Install) Usage() string {
	return `install [flags]

Installs the filter file of every configured device, or of the one selected
by -device or -interface. -filters overrides the configured filter file.
Filters with no ethtool equivalent are skipped.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *Install) SetFlags(fs *flag.FlagSet) {
	i.dev.setFlags(fs)
	fs.StringVar(&i.filters, "filters", "", "filter file to install instead of the configured one")
}

// Execute implements subcommands.Command.Execute.
func (i *Install) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return status(f, i.execute(ctx, configFrom(args), os.Stdout))
}

// installTarget is a filter file to install on an interface.
type installTarget struct {
	iface string
	path  string
}

func (i *Install) targets(conf *config.Config) ([]installTarget, error) {
	var devs []*config.Device
	if i.dev.device != "" || i.dev.iface != "" {
		d, err := i.dev.resolve(conf)
		if err != nil {
			return nil, err
		}
		devs = append(devs, d)
	} else {
		for j := range conf.Devices {
			if i.filters != "" || conf.Devices[j].Filters != "" {
				devs = append(devs, &conf.Devices[j])
			}
		}
	}
	var ts []installTarget
	for _, d := range devs {
		path := d.Filters
		if i.filters != "" {
			path = i.filters
		}
		if path == "" {
			return nil, fmt.Errorf("device %q has no filter file", d.Name)
		}
		if d.Interface == "" {
			return nil, fmt.Errorf("device %q has no network interface", d.Name)
		}
		ts = append(ts, installTarget{iface: d.Interface, path: path})
	}
	if len(ts) == 0 {
		return nil, errors.New("no device has a filter file")
	}
	return ts, nil
}

func (i *Install) execute(ctx context.Context, conf *config.Config, w io.Writer) error {
	ts, err := i.targets(conf)
	if err != nil {
		return err
	}
	// Each interface is programmed by its own goroutine. Output is gathered
	// per target and printed in order once all are done.
	out := make([][]string, len(ts))
	g, ctx := errgroup.WithContext(ctx)
	for j, t := range ts {
		j, t := j, t
		g.Go(func() error {
			lines, err := installFilters(ctx, t)
			out[j] = lines
			return err
		})
	}
	err = g.Wait()
	for _, lines := range out {
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
	return err
}

func installFilters(ctx context.Context, t installTarget) ([]string, error) {
	filters, err := filter.LoadFile(t.path)
	if err != nil {
		return nil, err
	}
	table, err := openRuleTable(t.iface)
	if err != nil {
		return nil, err
	}
	defer table.Close()

	var lines []string
	for _, nf := range filters {
		loc, err := table.InsertSpec(ctx, nf.Spec)
		switch {
		case errors.Is(err, filter.ErrUnsupported):
			log.Warningf("%s: skipping filter %q: %v", t.iface, nf.Name, err)
			lines = append(lines, fmt.Sprintf("%s: %s: skipped: %v", t.iface, nf.Name, err))
		case err != nil:
			return lines, fmt.Errorf("%s: filter %q: %w", t.iface, nf.Name, err)
		default:
			log.Infof("%s: installed filter %q at %d", t.iface, nf.Name, loc)
			lines = append(lines, fmt.Sprintf("%s: %s: location %d", t.iface, nf.Name, loc))
		}
	}
	return lines, nil
}
