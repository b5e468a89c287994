//go:build windows

package mstream

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setReuseAddr sets SO_REUSEADDR so a restarted node can rebind its
// listen address immediately instead of waiting out TIME_WAIT.
// SO_REUSEPORT has no Windows equivalent.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
