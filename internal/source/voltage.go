package source

import (
	"context"
	"fmt"
	"math"

	"github.com/vrulab/rigsync/internal/signal"
)

// ADCBackend — стратегия чтения напряжения: I2C АЦП на Linux (adc_linux.go),
// заглушка на остальных платформах и в degraded режиме.
type ADCBackend interface {
	// ReadVoltage возвращает напряжение канала в вольтах
	ReadVoltage(channel int) (float64, error)
	// Close освобождает шину
	Close() error
}

// DetectionConfidence — уверенность детекции по модулю напряжения: min(|v|/10, 1).
func DetectionConfidence(v float64) float64 {
	c := math.Abs(v) / 10
	if c > 1 {
		c = 1
	}
	return c
}

// Voltage — непрерывное снятие напряжения с АЦП, опрашивается по кадансу.
// Детекцией считается отсчёт с |v| > threshold (порог применяет потребитель).
type Voltage struct {
	bus     string // имя I2C шины, например "/dev/i2c-1" или "1"
	addr    uint16
	channel int
	backend ADCBackend
}

// NewVoltage создаёт источник напряжения поверх платформенного АЦП.
func NewVoltage(bus string, addr uint16, channel int) *Voltage {
	return &Voltage{bus: bus, addr: addr, channel: channel}
}

// NewVoltageWithBackend создаёт источник с готовым backend (тесты, degraded).
func NewVoltageWithBackend(b ADCBackend, channel int) *Voltage {
	return &Voltage{backend: b, channel: channel}
}

// Name возвращает имя источника
func (v *Voltage) Name() string {
	return fmt.Sprintf("voltage:%s@%#x/ch%d", v.bus, v.addr, v.channel)
}

// Type возвращает signal_type
func (v *Voltage) Type() string {
	return signal.TypeVoltage
}

// Connect открывает АЦП; отсутствие шины/драйверов — ErrUnavailable.
func (v *Voltage) Connect(ctx context.Context) error {
	if v.backend != nil {
		return nil
	}
	b, err := newADCBackend(v.bus, v.addr)
	if err != nil {
		return err
	}
	v.backend = b
	return nil
}

// ReadSingle возвращает один отсчёт напряжения.
func (v *Voltage) ReadSingle(ctx context.Context) (Reading, error) {
	if v.backend == nil {
		return Reading{}, ErrUnavailable
	}
	val, err := v.backend.ReadVoltage(v.channel)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Value: val}, nil
}

// Polled — напряжение опрашивается по кадансу.
func (v *Voltage) Polled() bool {
	return true
}

// Disconnect закрывает АЦП.
func (v *Voltage) Disconnect() error {
	if v.backend != nil {
		err := v.backend.Close()
		v.backend = nil
		return err
	}
	return nil
}
