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

//go:build linux
// +build linux

// Package rxclass installs receive flow classification rules on a network
// interface through the SIOCETHTOOL ioctl.
package rxclass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"efx.dev/efx/pkg/abi/linux"
	"efx.dev/efx/pkg/efx/filter"
	"efx.dev/efx/pkg/log"
	"github.com/cenkalti/backoff"
	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Device describes a network interface.
type Device struct {
	Name  string
	Index int
	// Driver is the kernel driver bound to the interface, e.g. "sfc".
	Driver string
	// BusInfo is the PCI address of the function, e.g. "0000:01:00.0".
	BusInfo string
}

// LookupDevice returns the device behind interface iface.
func LookupDevice(iface string) (Device, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return Device{}, fmt.Errorf("looking up link %q: %w", iface, err)
	}
	et, err := ethtool.NewEthtool()
	if err != nil {
		return Device{}, fmt.Errorf("opening ethtool socket: %w", err)
	}
	defer et.Close()

	attrs := link.Attrs()
	driver, err := et.DriverName(attrs.Name)
	if err != nil {
		return Device{}, fmt.Errorf("querying driver of %q: %w", attrs.Name, err)
	}
	bus, err := et.BusInfo(attrs.Name)
	if err != nil {
		return Device{}, fmt.Errorf("querying bus info of %q: %w", attrs.Name, err)
	}
	return Device{Name: attrs.Name, Index: attrs.Index, Driver: driver, BusInfo: bus}, nil
}

// transport carries one SIOCETHTOOL request for an interface. buf holds an
// encoded struct ethtool_rxnfc and is updated in place.
type transport interface {
	ethtool(iface string, buf []byte) error
	close() error
}

// Client programs the flow classification table of one interface.
//
// Methods may be called from any goroutine; the kernel serializes requests.
type Client struct {
	dev Device
	t   transport

	// newBackOff returns the retry policy of Insert.
	newBackOff func() backoff.BackOff
	warn       log.Logger
}

// Open returns a Client for interface iface.
func Open(iface string) (*Client, error) {
	dev, err := LookupDevice(iface)
	if err != nil {
		return nil, err
	}
	t, err := newSocketTransport()
	if err != nil {
		return nil, err
	}
	log.Debugf("rxclass: opened %s (driver %s, bus %s)", dev.Name, dev.Driver, dev.BusInfo)
	return newClient(dev, t), nil
}

func newClient(dev Device, t transport) *Client {
	return &Client{
		dev: dev,
		t:   t,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			b.Reset()
			return backoff.WithMaxRetries(b, 8)
		},
		warn: log.BasicRateLimitedLogger(time.Second),
	}
}

// Device returns the device the client programs.
func (c *Client) Device() Device {
	return c.dev
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.t.close()
}

func (c *Client) do(nfc *linux.EthtoolRxnfc) error {
	buf := make([]byte, nfc.SizeBytes())
	nfc.MarshalBytes(buf)
	if err := c.t.ethtool(c.dev.Name, buf); err != nil {
		return err
	}
	nfc.UnmarshalBytes(buf)
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.EAGAIN)
}

// Insert installs fs and returns the location the driver placed it at.
// Requests the driver reports as busy are retried until ctx is done.
// Unsupported rules fail with the driver's error, typically EOPNOTSUPP or
// EINVAL.
func (c *Client) Insert(ctx context.Context, fs linux.EthtoolRxFlowSpec) (uint32, error) {
	var loc uint32
	op := func() error {
		nfc := linux.EthtoolRxnfc{Cmd: linux.ETHTOOL_SRXCLSRLINS, FS: fs}
		err := c.do(&nfc)
		switch {
		case err == nil:
			loc = nfc.FS.Location
			return nil
		case retryable(err):
			c.warn.Warningf("rxclass: %s busy inserting rule, retrying: %v", c.dev.Name, err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return 0, fmt.Errorf("inserting rule on %s: %w", c.dev.Name, err)
	}
	log.Debugf("rxclass: %s: inserted rule at %d: %v", c.dev.Name, loc, &fs)
	return loc, nil
}

// InsertSpec translates s and installs the result, steering matches to s's
// receive queue. Filters without an ethtool equivalent fail with an error
// matching filter.ErrUnsupported before the driver is called.
func (c *Client) InsertSpec(ctx context.Context, s *filter.Spec) (uint32, error) {
	fs, err := filter.ToEthtoolFlow(s)
	if err != nil {
		return 0, err
	}
	fs.RingCookie = uint64(s.DMAQID)
	return c.Insert(ctx, fs)
}

// Delete removes the rule at loc.
func (c *Client) Delete(loc uint32) error {
	nfc := linux.EthtoolRxnfc{Cmd: linux.ETHTOOL_SRXCLSRLDEL}
	nfc.FS.Location = loc
	if err := c.do(&nfc); err != nil {
		return fmt.Errorf("deleting rule %d on %s: %w", loc, c.dev.Name, err)
	}
	return nil
}

// Rule returns the rule at loc.
func (c *Client) Rule(loc uint32) (linux.EthtoolRxFlowSpec, error) {
	nfc := linux.EthtoolRxnfc{Cmd: linux.ETHTOOL_GRXCLSRULE}
	nfc.FS.Location = loc
	if err := c.do(&nfc); err != nil {
		return linux.EthtoolRxFlowSpec{}, fmt.Errorf("getting rule %d on %s: %w", loc, c.dev.Name, err)
	}
	return nfc.FS, nil
}

// Count returns the number of installed rules and the size of the rule
// table. special reports whether the driver accepts the RX_CLS_LOC_ANY
// family of locations.
func (c *Client) Count() (count, size uint32, special bool, err error) {
	nfc := linux.EthtoolRxnfc{Cmd: linux.ETHTOOL_GRXCLSRLCNT}
	if err := c.do(&nfc); err != nil {
		return 0, 0, false, fmt.Errorf("counting rules on %s: %w", c.dev.Name, err)
	}
	special = nfc.Data&linux.RX_CLS_LOC_SPECIAL != 0
	return nfc.RuleCnt, uint32(nfc.Data &^ linux.RX_CLS_LOC_SPECIAL), special, nil
}

// Locations returns the locations of all installed rules.
func (c *Client) Locations() ([]uint32, error) {
	count, _, _, err := c.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	nfc := linux.EthtoolRxnfc{
		Cmd:      linux.ETHTOOL_GRXCLSRLALL,
		RuleCnt:  count,
		RuleLocs: make([]uint32, count),
	}
	if err := c.do(&nfc); err != nil {
		return nil, fmt.Errorf("listing rules on %s: %w", c.dev.Name, err)
	}
	return nfc.RuleLocs[:min(nfc.RuleCnt, count)], nil
}
