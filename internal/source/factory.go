package source

import (
	"fmt"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/signal"
)

// New создаёт Source из конфига (без подключения — Connect делает владелец сессии).
// Неизвестный signal_type — ErrUnsupported, фатально для старта сессии.
func New(c config.SourceConfig) (Source, error) {
	switch c.SignalType {
	case signal.TypeGPIO:
		pin := c.SourceID
		if pin == "" {
			pin = "GPIO17"
		}
		return NewGPIO(pin), nil
	case signal.TypeVoltage:
		bus := c.SourceID
		if bus == "" {
			bus = "1"
		}
		addr := uint16(c.MetaInt("i2c_addr", 0x68))
		channel := c.MetaInt("channel", 0)
		return NewVoltage(bus, addr, channel), nil
	case signal.TypeSerial:
		dev := c.SourceID
		if dev == "" {
			dev = "/dev/ttyUSB0"
		}
		baud := c.MetaInt("baud_rate", 9600)
		return NewSerialLine(dev, baud), nil
	case signal.TypeCAN:
		iface := c.SourceID
		if iface == "" {
			iface = "can0"
		}
		return NewCANBus(iface), nil
	case signal.TypeNetwork:
		addr := c.SourceID
		if addr == "" {
			addr = ":9000"
		}
		return NewNetworkPacket(addr), nil
	default:
		return nil, fmt.Errorf("signal_type %q: %w", c.SignalType, ErrUnsupported)
	}
}
