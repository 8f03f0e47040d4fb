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

// Package config holds the efxctl configuration file.
package config

import (
	"fmt"
	"io"
	"strings"

	"efx.dev/efx/pkg/efx"
	"efx.dev/efx/pkg/log"
	"efx.dev/efx/pkg/mmio"
	"github.com/BurntSushi/toml"
)

// DefaultPath is where efxctl looks for its configuration.
const DefaultPath = "/etc/efx/efxctl.toml"

// DefaultBAR is the PCI BAR holding the controller's registers.
const DefaultBAR = 2

// Log configures logging.
type Log struct {
	// Level is "warning", "info" or "debug".
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	// File receives the log instead of stderr if set.
	File string `toml:"file"`
}

// Device is one controller function.
type Device struct {
	Name      string `toml:"name"`
	Interface string `toml:"interface"`
	// Generation is "ef10" or "ef100".
	Generation string `toml:"generation"`
	// PCI is the function's PCI address. If empty it is looked up from
	// Interface.
	PCI string `toml:"pci"`
	// BAR is the register BAR, DefaultBAR if unset.
	BAR *int `toml:"bar"`
	// Resource overrides the BAR resource file derived from PCI and BAR.
	Resource string `toml:"resource"`
	VIStride uint32 `toml:"vi_stride"`
	DwordIO  bool   `toml:"dword_io"`
	// Filters is a filter file installed on Interface by "efxctl install".
	Filters string `toml:"filters"`
}

// Config is the efxctl configuration.
type Config struct {
	Log     Log      `toml:"log"`
	Devices []Device `toml:"device"`
}

// Default returns the configuration used without a configuration file.
func Default() *Config {
	return &Config{Log: Log{Level: "info", Format: "text"}}
}

// Decode reads a configuration from r.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, err
	}
	if err := c.check(md); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("decode config file %q: %w", path, err)
	}
	if err := c.check(md); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return c, nil
}

func (c *Config) check(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := log.NewEmitter(c.Log.Format, io.Discard); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			d.Name = d.Interface
		}
		if d.Name == "" {
			return fmt.Errorf("device %d has neither name nor interface", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate device %q", d.Name)
		}
		seen[d.Name] = true
		if d.Generation == "" {
			d.Generation = efx.EF10.String()
		}
		if _, err := efx.ParseGeneration(d.Generation); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if d.Interface == "" && d.PCI == "" && d.Resource == "" {
			return fmt.Errorf("device %q: one of interface, pci or resource is required", d.Name)
		}
	}
	return nil
}

// Device returns the device called name.
func (c *Config) Device(name string) (*Device, bool) {
	for i := range c.Devices {
		if c.Devices[i].Name == name {
			return &c.Devices[i], true
		}
	}
	return nil, false
}

// NICConfig returns the register access configuration of d.
func (d *Device) NICConfig(verbose bool) efx.Config {
	gen, _ := efx.ParseGeneration(d.Generation)
	return efx.Config{
		Name:       d.Name,
		Generation: gen,
		VIStride:   d.VIStride,
		DwordIO:    d.DwordIO,
		Verbose:    verbose,
	}
}

// ResourcePath returns the BAR resource file of d, using pci if d does not
// name its PCI address.
func (d *Device) ResourcePath(pci string) string {
	if d.Resource != "" {
		return d.Resource
	}
	if d.PCI != "" {
		pci = d.PCI
	}
	bar := DefaultBAR
	if d.BAR != nil {
		bar = *d.BAR
	}
	return mmio.ResourcePath(pci, bar)
}
