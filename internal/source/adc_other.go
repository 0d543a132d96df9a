//go:build !linux

package source

import "fmt"

// newADCBackend — вне Linux I2C АЦП недоступен; источник уходит в degraded режим.
func newADCBackend(busName string, addr uint16) (ADCBackend, error) {
	return nil, fmt.Errorf("adc %s: %w", busName, ErrUnavailable)
}
