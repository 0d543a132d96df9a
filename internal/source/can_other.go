//go:build !linux

package source

import (
	"fmt"
	"time"
)

// canSocket — вне Linux SocketCAN отсутствует; заглушка для сборки.
type canSocket struct{}

func openCAN(iface string, timeout time.Duration) (*canSocket, error) {
	return nil, fmt.Errorf("can interface %s: %w", iface, ErrUnavailable)
}

func (s *canSocket) readFrame() ([]byte, error) {
	return nil, ErrUnavailable
}

func (s *canSocket) close() error {
	return nil
}
