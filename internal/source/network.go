package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/vrulab/rigsync/internal/signal"
)

// Таймаут блокирующего приёма датаграммы.
const udpReadTimeout = 500 * time.Millisecond

// Предел размера датаграммы.
const udpMaxPacket = 64 * 1024

// NetworkPacket — приём UDP датаграмм от рига.
// Полезная нагрузка разбирается как JSON объект; при неудаче
// проходят сырые байты (raw fallback).
type NetworkPacket struct {
	addr string // host:port для прослушивания, например ":9000"
	conn net.PacketConn
	buf  []byte
}

// NewNetworkPacket создаёт источник на указанном адресе.
func NewNetworkPacket(addr string) *NetworkPacket {
	return &NetworkPacket{addr: addr}
}

// Name возвращает имя источника
func (n *NetworkPacket) Name() string {
	return fmt.Sprintf("udp:%s", n.addr)
}

// Type возвращает signal_type
func (n *NetworkPacket) Type() string {
	return signal.TypeNetwork
}

// Connect открывает UDP сокет; занятый/кривой адрес — ErrUnavailable.
func (n *NetworkPacket) Connect(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", n.addr)
	if err != nil {
		return fmt.Errorf("udp listen %s: %w", n.addr, ErrUnavailable)
	}
	n.conn = conn
	n.buf = make([]byte, udpMaxPacket)
	return nil
}

// Addr возвращает фактический адрес прослушивания (после Connect).
func (n *NetworkPacket) Addr() net.Addr {
	if n.conn == nil {
		return nil
	}
	return n.conn.LocalAddr()
}

// ReadSingle принимает одну датаграмму; пустой интервал приёма — ErrNoData.
// JSON объект идёт в payload как map; поле "value" (число) становится
// значением отсчёта, иначе значение 1.0 (факт пакета).
func (n *NetworkPacket) ReadSingle(ctx context.Context) (Reading, error) {
	if n.conn == nil {
		return Reading{}, ErrUnavailable
	}
	deadline := time.Now().Add(udpReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := n.conn.SetReadDeadline(deadline); err != nil {
		return Reading{}, err
	}
	nb, _, err := n.conn.ReadFrom(n.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Reading{}, ErrNoData
		}
		return Reading{}, fmt.Errorf("udp read: %w", err)
	}
	raw := append([]byte(nil), n.buf[:nb]...)
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Reading{Value: 1.0, Payload: raw}, nil
	}
	val := 1.0
	if f, ok := obj["value"].(float64); ok {
		val = f
	}
	return Reading{Value: val, Payload: obj}, nil
}

// Polled — событийный источник.
func (n *NetworkPacket) Polled() bool {
	return false
}

// Disconnect закрывает сокет.
func (n *NetworkPacket) Disconnect() error {
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		return err
	}
	return nil
}
