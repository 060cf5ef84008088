//go:build unix

package conn

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SocketStatus is the Go analogue of the original's
// select.select([sock], [sock], [], 0): a zero-timeout poll that reports
// which of read/write is immediately possible, without blocking. It
// takes syscall.Conn rather than net.Conn so both a *net.TCPConn
// (Connection.Poll) and a *net.TCPListener (a Worker's listening
// socket) can share the same readiness probe.
func SocketStatus(sc syscall.Conn) (readable, writable bool, err error) {
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, false, err
	}

	var pfd unix.PollFd
	ctrlErr := raw.Control(func(fd uintptr) {
		pfd = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT}
	})
	if ctrlErr != nil {
		return false, false, ctrlErr
	}

	fds := []unix.PollFd{pfd}
	if _, err := unix.Poll(fds, 0); err != nil {
		if err == unix.EINTR {
			return false, false, nil
		}
		return false, false, err
	}

	readable = fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
	writable = fds[0].Revents&unix.POLLOUT != 0
	return readable, writable, nil
}
