package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ListenTCP creates a non-blocking, listening IPv4 TCP socket bound to
// addr (host:port) and returns its raw file descriptor, ready to
// Register with a Reactor. IPv4 only, per §1's non-goals.
func ListenTCP(addr string) (int, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Accept accepts one pending connection off a non-blocking listening
// socket, returning the new connection's fd already set non-blocking.
// unix.EAGAIN means no connection was actually pending (the listen
// socket's readiness was a false wakeup or a race with another accept);
// callers should treat it as "nothing to do this pass".
func Accept(listenFd int) (int, error) {
	connFd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return connFd, nil
}

// DialTCP creates a non-blocking TCP socket and begins connecting to addr.
// A connect on a non-blocking socket returns EINPROGRESS immediately;
// callers register the fd for Writable and treat the first writable
// wakeup as "connected" (or check SO_ERROR for a failed connect).
func DialTCP(addr string) (int, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// DialUDP creates a non-blocking UDP socket connected to addr, suitable
// for sending datagrams to a multicast group or a fixed peer.
func DialUDP(addr string) (int, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// ListenUDP creates a non-blocking UDP socket bound to addr, for
// receiving datagrams (e.g. the ME's order intake group).
func ListenUDP(addr string) (int, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// readBufSize is large enough for any single OEP/CP frame or burst of
// small ones; a short read just means the caller sees less this pass.
const readBufSize = 65536

// Read performs one non-blocking read from fd. unix.EAGAIN means nothing
// is available this pass (not an error the caller should act on); a
// read of 0 bytes with no error means the peer closed the connection.
func Read(fd int) ([]byte, error) {
	buf := make([]byte, readBufSize)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write performs one non-blocking write, returning the number of bytes
// actually written (which may be less than len(b) if the kernel buffer
// is full — callers implementing cork/uncork bursts should retry the
// remainder on the next writable wakeup).
func Write(fd int, b []byte) (int, error) {
	return unix.Write(fd, b)
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

func resolveTCP4(addr string) (*unix.SockaddrInet4, error) {
	a, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	ip4 := a.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("reactor: %s is not an IPv4 address", addr)
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}
