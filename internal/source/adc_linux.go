//go:build linux

package source

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// Опорное напряжение АЦП и разрядность (12 бит, знаковый выход).
const (
	adcVRef       = 4.096
	adcFullScale  = 2048
	adcConfigBase = 0x61 // continuous conversion, 12 bit
)

// i2cADC — АЦП на I2C шине через periph (MCP342x-совместимый протокол).
type i2cADC struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// newADCBackend открывает I2C шину и адресует АЦП.
func newADCBackend(busName string, addr uint16) (ADCBackend, error) {
	if err := initDrivers(); err != nil {
		return nil, fmt.Errorf("adc driver init: %w", ErrUnavailable)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("adc i2c open %s: %w", busName, ErrUnavailable)
	}
	return &i2cADC{
		bus: bus,
		dev: &i2c.Dev{Addr: addr, Bus: bus},
	}, nil
}

// ReadVoltage выбирает канал конфигурационным байтом и читает two-byte выборку.
func (a *i2cADC) ReadVoltage(channel int) (float64, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("adc channel %d out of range", channel)
	}
	cfg := byte(adcConfigBase | channel<<5)
	raw := make([]byte, 2)
	if err := a.dev.Tx([]byte{cfg}, raw); err != nil {
		return 0, fmt.Errorf("adc tx: %w", err)
	}
	// знаковое 12-битное значение, старший байт первым
	code := int16(uint16(raw[0])<<8 | uint16(raw[1]))
	return float64(code) * adcVRef / adcFullScale, nil
}

// Close закрывает шину.
func (a *i2cADC) Close() error {
	if a.bus == nil {
		return nil
	}
	err := a.bus.Close()
	a.bus = nil
	return err
}
