//go:build !windows

package ipc

import (
	"errors"
	"net"
	"time"
)

var errUnsupported = errors.New("ipc: named-pipe transport is only available on windows")

func init() {
	dialPipe = func(pipeName string, timeout time.Duration) (net.Conn, error) {
		return nil, errUnsupported
	}
}
