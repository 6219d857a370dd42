//go:build !unix

package conn

import "syscall"

func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}

func controlUDP(_, _ string, _ syscall.RawConn) error {
	return nil
}
