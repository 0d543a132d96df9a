package source

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/vrulab/rigsync/internal/signal"
)

// хост-драйверы periph инициализируются один раз на процесс
var (
	driverInitOnce sync.Once
	driverInitErr  error
)

func initDrivers() error {
	driverInitOnce.Do(func() {
		_, driverInitErr = driverreg.Init()
	})
	return driverInitErr
}

// GPIO — цифровой пин, опрашиваемый с кадансом sampling_rate.
// Отсчёт: 1.0 при высоком уровне, 0.0 при низком.
type GPIO struct {
	pinName string
	pin     gpio.PinIn
}

// NewGPIO создаёт источник по имени пина (gpioreg: "GPIO17", "P1_11" и т.п.).
func NewGPIO(pinName string) *GPIO {
	return &GPIO{pinName: pinName}
}

// Name возвращает имя источника
func (g *GPIO) Name() string {
	return fmt.Sprintf("gpio:%s", g.pinName)
}

// Type возвращает signal_type
func (g *GPIO) Type() string {
	return signal.TypeGPIO
}

// Connect резолвит пин через gpioreg и настраивает его на вход.
// Отсутствие пина (нет драйверов/железа) — ErrUnavailable.
func (g *GPIO) Connect(ctx context.Context) error {
	if err := initDrivers(); err != nil {
		return fmt.Errorf("gpio driver init: %w", ErrUnavailable)
	}
	p := gpioreg.ByName(g.pinName)
	if p == nil {
		return fmt.Errorf("gpio pin %s: %w", g.pinName, ErrUnavailable)
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("gpio pin %s input: %w", g.pinName, ErrUnavailable)
	}
	g.pin = p
	return nil
}

// ReadSingle возвращает текущий уровень пина.
func (g *GPIO) ReadSingle(ctx context.Context) (Reading, error) {
	if g.pin == nil {
		return Reading{}, ErrUnavailable
	}
	if g.pin.Read() == gpio.High {
		return Reading{Value: 1.0}, nil
	}
	return Reading{Value: 0.0}, nil
}

// Polled — GPIO опрашивается по кадансу.
func (g *GPIO) Polled() bool {
	return true
}

// Disconnect освобождает пин.
func (g *GPIO) Disconnect() error {
	if g.pin != nil {
		err := g.pin.Halt()
		g.pin = nil
		return err
	}
	return nil
}
