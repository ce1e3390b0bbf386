//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// control applies the reuse flags and raw options to the socket before bind.
func control(config BindConfig) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			sock := int(fd)
			opts := append([]SocketOption{
				{Level: unix.SOL_SOCKET, Name: unix.SO_REUSEADDR, Value: boolToInt(config.ReuseAddr)},
				{Level: unix.SOL_SOCKET, Name: unix.SO_REUSEPORT, Value: boolToInt(config.ReusePort)},
			}, config.Options...)

			for _, o := range opts {
				if err := unix.SetsockoptInt(sock, o.Level, o.Name, o.Value); err != nil {
					opErr = gferrors.NewOperationError("netutil", "setsockopt", err).
						WithContext(address)
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
