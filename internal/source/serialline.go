package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/vrulab/rigsync/internal/signal"
)

// Таймаут блокирующего чтения строки.
const serialReadTimeout = 500 * time.Millisecond

// SerialLine — построчный приём с последовательного порта.
// Числовая строка становится значением отсчёта; прочие строки
// проходят как полезная нагрузка со значением 1.0 (факт события).
type SerialLine struct {
	device string
	baud   int
	port   *serial.Port
	rd     *bufio.Reader
}

// NewSerialLine создаёт источник по пути устройства и скорости (0 = 9600).
func NewSerialLine(device string, baud int) *SerialLine {
	if baud == 0 {
		baud = 9600
	}
	return &SerialLine{device: device, baud: baud}
}

// Name возвращает имя источника
func (s *SerialLine) Name() string {
	return fmt.Sprintf("serial:%s", s.device)
}

// Type возвращает signal_type
func (s *SerialLine) Type() string {
	return signal.TypeSerial
}

// Connect открывает порт; недоступность устройства — ErrUnavailable.
func (s *SerialLine) Connect(ctx context.Context) error {
	c := &serial.Config{
		Name:        s.device,
		Baud:        s.baud,
		ReadTimeout: serialReadTimeout,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return fmt.Errorf("serial open %s: %w", s.device, ErrUnavailable)
	}
	s.port = port
	s.rd = bufio.NewReader(port)
	return nil
}

// ReadSingle читает одну строку; истечение таймаута без данных — ErrNoData.
func (s *SerialLine) ReadSingle(ctx context.Context) (Reading, error) {
	if s.rd == nil {
		return Reading{}, ErrUnavailable
	}
	line, err := s.rd.ReadString('\n')
	if err != nil {
		// tarm/serial по таймауту отдаёт EOF без данных
		if err == io.EOF && line == "" {
			return Reading{}, ErrNoData
		}
		if line == "" {
			return Reading{}, fmt.Errorf("serial read %s: %w", s.device, err)
		}
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return Reading{}, ErrNoData
	}
	if f, perr := strconv.ParseFloat(line, 64); perr == nil {
		return Reading{Value: f}, nil
	}
	return Reading{Value: 1.0, Payload: line}, nil
}

// Polled — событийный источник, чтение блокируется с таймаутом.
func (s *SerialLine) Polled() bool {
	return false
}

// Disconnect закрывает порт.
func (s *SerialLine) Disconnect() error {
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		s.rd = nil
		return err
	}
	return nil
}
