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

package mmio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unsafe"

	"efx.dev/efx/pkg/log"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// DefaultLockDir is where OpenResource places its ownership lock files.
const DefaultLockDir = "/run/lock"

// Mapping is a Bus over a shared mapping of a device BAR.
//
// Loads and stores are single aligned atomic instructions, which on amd64 and
// arm64 reach uncached device memory as single bus transactions of the same
// width. Both supported architectures are little-endian, so host integers are
// already in wire order.
type Mapping struct {
	// mem is the mmap'd BAR. It is never resliced after OpenResource.
	mem []byte

	// path is the resource file backing mem.
	path string

	// lock is held for the lifetime of the mapping so that two processes
	// never drive the same BAR.
	lock *flock.Flock
}

// lockPath returns the lock file guarding the resource at path.
func lockPath(lockDir, path string) string {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(strings.TrimPrefix(path, "/"))
	return filepath.Join(lockDir, "efx-"+name+".lock")
}

// OpenResource maps the memory BAR at path (usually from ResourcePath) for
// register access. An exclusive lock file under lockDir is taken first; the
// call fails if another process holds it. An empty lockDir selects
// DefaultLockDir.
func OpenResource(path, lockDir string) (*Mapping, error) {
	if lockDir == "" {
		lockDir = DefaultLockDir
	}
	l := flock.NewFlock(lockPath(lockDir, path))
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock file %q: %w", l.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("resource %q is in use by another process (lock %q)", path, l.Path())
	}

	m, err := mapResource(path)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	m.lock = l
	log.Debugf("Mapped %s: %#x bytes at %#x", path, len(m.mem), uintptr(unsafe.Pointer(&m.mem[0])))
	return m, nil
}

func mapResource(path string) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening resource %q: %w", path, err)
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error stating resource %q: %w", path, err)
	}
	size := fi.Size()
	if size <= 0 || size > math.MaxUint32 {
		return nil, fmt.Errorf("resource %q has unusable size %d", path, size)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap resource %q: %w", path, err)
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		unix.Munmap(mem)
		return nil, fmt.Errorf("resource %q mapped at unaligned address", path)
	}
	return &Mapping{mem: mem, path: path}, nil
}

// Path returns the resource file backing the mapping.
func (m *Mapping) Path() string {
	return m.path
}

// Size implements Bus.Size.
func (m *Mapping) Size() uint32 {
	return uint32(len(m.mem))
}

func (m *Mapping) addr(off, width uint32) unsafe.Pointer {
	checkAccess(off, width, m.Size())
	return unsafe.Pointer(&m.mem[off])
}

// Load32 implements Bus.Load32.
func (m *Mapping) Load32(off uint32) uint32 {
	return atomic.LoadUint32((*uint32)(m.addr(off, 4)))
}

// Store32 implements Bus.Store32.
func (m *Mapping) Store32(off uint32, v uint32) {
	atomic.StoreUint32((*uint32)(m.addr(off, 4)), v)
}

// Load64 implements Bus.Load64.
func (m *Mapping) Load64(off uint32) uint64 {
	return atomic.LoadUint64((*uint64)(m.addr(off, 8)))
}

// Store64 implements Bus.Store64.
func (m *Mapping) Store64(off uint32, v uint64) {
	atomic.StoreUint64((*uint64)(m.addr(off, 8)), v)
}

// Close unmaps the BAR and releases the ownership lock. The Mapping must not
// be used afterwards.
func (m *Mapping) Close() error {
	err := unix.Munmap(m.mem)
	m.mem = nil
	if m.lock != nil {
		if uerr := m.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}
