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
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// newResource creates a regular file standing in for a sysfs BAR resource.
func newResource(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resource2")
	if err := os.WriteFile(path, make([]byte, size), 0600); err != nil {
		t.Fatalf("WriteFile(%q) failed: %v", path, err)
	}
	return path
}

func TestMappingLoadStore(t *testing.T) {
	path := newResource(t, 4096)
	m, err := OpenResource(path, t.TempDir())
	if err != nil {
		t.Fatalf("OpenResource(%q) failed: %v", path, err)
	}
	if got, want := m.Size(), uint32(4096); got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	m.Store32(0x830, 0xa5a5a5a5)
	m.Store64(0xa10, 0x0123456789abcdef)
	if got, want := m.Load32(0x830), uint32(0xa5a5a5a5); got != want {
		t.Errorf("Load32(0x830) = %#x, want %#x", got, want)
	}
	if got, want := m.Load32(0xa14), uint32(0x01234567); got != want {
		t.Errorf("Load32(0xa14) = %#x, want %#x", got, want)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Stores went through the shared mapping to the file, little-endian.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q) failed: %v", path, err)
	}
	if got, want := binary.LittleEndian.Uint64(data[0xa10:]), uint64(0x0123456789abcdef); got != want {
		t.Errorf("file contents at 0xa10 = %#x, want %#x", got, want)
	}
}

func TestMappingExclusive(t *testing.T) {
	path := newResource(t, 4096)
	lockDir := t.TempDir()
	m, err := OpenResource(path, lockDir)
	if err != nil {
		t.Fatalf("OpenResource(%q) failed: %v", path, err)
	}
	if _, err := OpenResource(path, lockDir); err == nil {
		t.Errorf("second OpenResource(%q) succeeded while first mapping is open", path)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	m, err = OpenResource(path, lockDir)
	if err != nil {
		t.Fatalf("OpenResource(%q) after Close failed: %v", path, err)
	}
	m.Close()
}

func TestResourcePath(t *testing.T) {
	if got, want := ResourcePath("0000:01:00.1", 2), "/sys/bus/pci/devices/0000:01:00.1/resource2"; got != want {
		t.Errorf("ResourcePath() = %q, want %q", got, want)
	}
}
