//go:build windows

package ipc

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

func init() {
	dialPipe = func(pipeName string, timeout time.Duration) (net.Conn, error) {
		conn, err := winio.DialPipe(pipeName, &timeout)
		if err != nil {
			return nil, fmt.Errorf("dial pipe %s: %w", pipeName, err)
		}
		return conn, nil
	}
}
