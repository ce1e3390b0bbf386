//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package netutil

import (
	"errors"
	"syscall"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

func control(config BindConfig) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if config.ReusePort || len(config.Options) > 0 {
			return gferrors.NewOperationError("netutil", "setsockopt",
				errors.New("socket options are not supported on this platform"))
		}
		return nil
	}
}
