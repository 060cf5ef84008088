//go:build unix

package worker

import (
	"net"
	"syscall"

	"github.com/armb-farm/armb/internal/conn"
)

// pollListener is the Go analogue of the original's
// select.select([listen_sock], [], [], 0): a zero-timeout readiness probe
// on the listening socket. *net.TCPListener implements syscall.Conn, so
// this reuses conn.SocketStatus rather than duplicating the unix.Poll
// plumbing.
func pollListener(ln net.Listener) (readable, writable bool, err error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return true, false, nil
	}
	return conn.SocketStatus(sc)
}
