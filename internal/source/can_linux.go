//go:build linux

package source

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// canSocket — raw SocketCAN сокет с таймаутом приёма через SO_RCVTIMEO.
type canSocket struct {
	fd int
}

// openCAN открывает AF_CAN/SOCK_RAW и привязывает к интерфейсу.
// Отсутствие интерфейса или поддержки CAN — ErrUnavailable.
func openCAN(iface string, timeout time.Duration) (*canSocket, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("can interface %s: %w", iface, ErrUnavailable)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("can socket: %w", ErrUnavailable)
	}
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can rcvtimeo: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can bind %s: %w", iface, ErrUnavailable)
	}
	return &canSocket{fd: fd}, nil
}

// readFrame принимает один сырой can_frame; таймаут приёма — ErrNoData.
func (s *canSocket) readFrame() ([]byte, error) {
	buf := make([]byte, canFrameSize)
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("can read: %w", err)
	}
	return buf[:n], nil
}

// close закрывает сокет.
func (s *canSocket) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
