package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vrulab/rigsync/internal/signal"
)

// Классический can_frame (Linux SocketCAN): 16 байт.
const (
	canFrameSize = 16
	canEFFFlag   = 0x80000000
	canEFFMask   = 0x1fffffff
	canSFFMask   = 0x7ff
)

// Таймаут блокирующего приёма кадра.
const canReadTimeout = 500 * time.Millisecond

// CANFrame — принятый кадр шины.
type CANFrame struct {
	ID       uint32 `json:"id"`
	Extended bool   `json:"extended"`
	Data     []byte `json:"data"`
}

// ParseCANFrame разбирает сырой can_frame: id(4, little-endian) + len(1) + pad(3) + data(8).
func ParseCANFrame(raw []byte) (CANFrame, error) {
	if len(raw) < canFrameSize {
		return CANFrame{}, fmt.Errorf("can frame too short: %d bytes", len(raw))
	}
	id := binary.LittleEndian.Uint32(raw[0:4])
	f := CANFrame{Extended: id&canEFFFlag != 0}
	if f.Extended {
		f.ID = id & canEFFMask
	} else {
		f.ID = id & canSFFMask
	}
	dlc := int(raw[4])
	if dlc > 8 {
		dlc = 8
	}
	f.Data = append([]byte(nil), raw[8:8+dlc]...)
	return f, nil
}

// CANBus — приём кадров с интерфейса SocketCAN (can0 и т.п.).
// Вне Linux источник недоступен и уходит в degraded режим.
type CANBus struct {
	iface string
	sock  *canSocket
}

// NewCANBus создаёт источник по имени интерфейса.
func NewCANBus(iface string) *CANBus {
	return &CANBus{iface: iface}
}

// Name возвращает имя источника
func (c *CANBus) Name() string {
	return fmt.Sprintf("can:%s", c.iface)
}

// Type возвращает signal_type
func (c *CANBus) Type() string {
	return signal.TypeCAN
}

// Connect открывает raw CAN сокет и привязывает к интерфейсу.
func (c *CANBus) Connect(ctx context.Context) error {
	s, err := openCAN(c.iface, canReadTimeout)
	if err != nil {
		return err
	}
	c.sock = s
	return nil
}

// ReadSingle принимает один кадр; пустой интервал приёма — ErrNoData.
// Значение отсчёта — первый байт данных (полезная величина датчика),
// для кадров без данных — 1.0 (факт события); кадр целиком идёт в payload.
func (c *CANBus) ReadSingle(ctx context.Context) (Reading, error) {
	if c.sock == nil {
		return Reading{}, ErrUnavailable
	}
	raw, err := c.sock.readFrame()
	if err != nil {
		return Reading{}, err
	}
	frame, err := ParseCANFrame(raw)
	if err != nil {
		return Reading{}, err
	}
	val := 1.0
	if len(frame.Data) > 0 {
		val = float64(frame.Data[0])
	}
	return Reading{Value: val, Payload: frame}, nil
}

// Polled — событийный источник.
func (c *CANBus) Polled() bool {
	return false
}

// Disconnect закрывает сокет.
func (c *CANBus) Disconnect() error {
	if c.sock != nil {
		err := c.sock.close()
		c.sock = nil
		return err
	}
	return nil
}
