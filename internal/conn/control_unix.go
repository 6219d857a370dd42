//go:build unix

package conn

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// UDPBufferSize is requested for SO_RCVBUF and SO_SNDBUF on UDP sockets.
const UDPBufferSize = 4 << 20

func controlReuseAddr(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

func controlUDP(network, address string, c syscall.RawConn) error {
	if err := controlReuseAddr(network, address, c); err != nil {
		return err
	}
	// The kernel clamps these to its configured maximum; failure is not fatal.
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, UDPBufferSize)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, UDPBufferSize)
	})
}
