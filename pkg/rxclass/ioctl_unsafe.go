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

package rxclass

import (
	"fmt"
	"runtime"
	"unsafe"

	"efx.dev/efx/pkg/abi/linux"
	"golang.org/x/exp/constraints"
	"golang.org/x/sys/unix"
)

// ioctlInvokePtrArg makes ioctl syscalls with the command of the integer type
// and the pointer to any given params.
func ioctlInvokePtrArg[Cmd constraints.Integer, Params any](fd int32, cmd Cmd, params *Params) (uintptr, error) {
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(cmd), uintptr(unsafe.Pointer(params)))
	if errno != 0 {
		return n, errno
	}
	return n, nil
}

// socketTransport issues SIOCETHTOOL on a datagram socket.
type socketTransport struct {
	fd int
}

func newSocketTransport() (*socketTransport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating ethtool socket: %w", err)
	}
	return &socketTransport{fd: fd}, nil
}

func (s *socketTransport) ethtool(iface string, buf []byte) error {
	var ifr linux.IFReq
	ifr.SetName(iface)
	// ifr_data points at buf. The pointer is hidden from the garbage
	// collector while in ifr, so buf is kept alive until the call returns.
	*(*uintptr)(unsafe.Pointer(&ifr.Data[0])) = uintptr(unsafe.Pointer(&buf[0]))
	_, err := ioctlInvokePtrArg(int32(s.fd), linux.SIOCETHTOOL, &ifr)
	runtime.KeepAlive(buf)
	return err
}

func (s *socketTransport) close() error {
	return unix.Close(s.fd)
}
